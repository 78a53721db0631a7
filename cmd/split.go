package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/comicshelf/internal/comic"
	"github.com/MimeLyc/comicshelf/internal/source"
	"github.com/MimeLyc/comicshelf/pkg/file"
	"github.com/MimeLyc/comicshelf/pkg/log"
)

var splitFlags struct {
	in  string
	out string
}

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split a full date-keyed dataset into year shards and an index",
	Long: `Split reads one JSON object keyed by ISO date, each value holding title,
transcript and optionally image and originalimageurl, and writes one
minified shard per year plus the global index the viewer loads first.`,
	Example: `  comicshelf split --in comics.json --out public/`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(splitFlags.in)
		if err != nil {
			return err
		}
		var all map[string]comic.Record
		if err := json.Unmarshal(data, &all); err != nil {
			return fmt.Errorf("decode %s: %w", splitFlags.in, err)
		}

		shards, idx, err := comic.Partition(all)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		written, err := source.Publish(splitFlags.out, cfg.Layout(), shards, idx)
		if err != nil {
			return err
		}
		for _, path := range written {
			log.Info("Wrote %s (%d bytes)", path, file.SizeOf(path))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d comics in %d years, latest %s\n", len(idx.Dates), len(idx.Years), idx.LatestYear)
		return nil
	},
}

func init() {
	splitCmd.Flags().StringVar(&splitFlags.in, "in", "", "full dataset JSON file")
	splitCmd.Flags().StringVar(&splitFlags.out, "out", ".", "output directory")
	_ = splitCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(splitCmd)
}
