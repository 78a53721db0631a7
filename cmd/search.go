package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/comicshelf/internal/search"
)

var searchFlags struct {
	years []string
	limit int
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Find comics whose title or transcript contains a term",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		term := strings.Join(args, " ")
		return withApp(cmd, func(ctx context.Context, a *app) error {
			for _, year := range searchFlags.years {
				if err := a.loader.EnsureYear(ctx, year); err != nil {
					return err
				}
			}
			engine := search.NewEngine(a.loader)
			hits, err := engine.Search(ctx, term, search.Options{
				AllYears: len(searchFlags.years) == 0,
				Limit:    searchFlags.limit,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if rootFlags.jsonOutput {
				out := make([]map[string]string, 0, len(hits))
				for _, h := range hits {
					out = append(out, map[string]string{"date": h.Date, "title": h.Record.Title, "excerpt": h.Excerpt})
				}
				return printJSON(w, out)
			}
			for _, h := range hits {
				fmt.Fprintf(w, "%s  %s\n    %s\n", h.Date, h.Record.Title, h.Excerpt)
			}
			fmt.Fprintf(w, "%d result(s)\n", len(hits))
			return nil
		})
	},
}

func init() {
	searchCmd.Flags().StringSliceVar(&searchFlags.years, "year", nil, "search only these years (default: the whole archive)")
	searchCmd.Flags().IntVarP(&searchFlags.limit, "limit", "n", 50, "maximum results, 0 for all")
	rootCmd.AddCommand(searchCmd)
}
