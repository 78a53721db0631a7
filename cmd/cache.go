package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/comicshelf/internal/comic"
	"github.com/MimeLyc/comicshelf/internal/warmer"
	"github.com/MimeLyc/comicshelf/pkg/log"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local shard cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached index and year shard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if a.cache == nil {
				return comic.NewError(comic.ErrUnsupported, "cache is disabled")
			}
			if err := a.cache.ClearAll(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cache cleared (%s)\n", a.cfg.Cache.Path)
			return nil
		})
	},
}

var warmFlags struct {
	schedule string
}

var cacheWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Load every year into the cache",
	Long: `Load every year into the cache so later sessions work offline.

With --schedule (or COMICSHELF_WARM_CRON) the command keeps running and,
on that cron schedule, refetches every year from the source and rewrites
the cache until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if a.cache == nil {
				log.Warn("Cache is disabled; warming only loads this session")
			}
			expr := warmFlags.schedule
			if expr == "" {
				expr = a.cfg.Cache.WarmCron
			}

			engine := cron.New()
			w := warmer.New(a.loader, engine, expr)
			report, err := w.RunOnce(ctx)
			if err != nil {
				return err
			}
			printReport(cmd, report.Loaded, report.Failed)

			if expr == "" {
				return nil
			}
			if err := w.Schedule(ctx); err != nil {
				return err
			}
			engine.Start()
			<-ctx.Done()
			<-engine.Stop().Done()
			return nil
		})
	},
}

func printReport(cmd *cobra.Command, loaded []string, failed map[string]error) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%d year(s) cached\n", len(loaded))
	years := make([]string, 0, len(failed))
	for year := range failed {
		years = append(years, year)
	}
	slices.Sort(years)
	for _, year := range years {
		fmt.Fprintf(w, "  %s failed: %v\n", year, failed[year])
	}
}

func init() {
	cacheWarmCmd.Flags().StringVar(&warmFlags.schedule, "schedule", "", "cron expression to keep warming on")
	cacheCmd.AddCommand(cacheClearCmd, cacheWarmCmd)
	rootCmd.AddCommand(cacheCmd)
}
