package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/comicshelf/internal/config"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change viewer preferences",
	Example: `  comicshelf prefs
  comicshelf prefs --local-images=true`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := config.OpenPreferencesStore(cfg.PrefsFile)
		if err != nil {
			return err
		}

		prefs := store.Get()
		if cmd.Flags().Changed("local-images") {
			prefs.UseLocalImages, _ = cmd.Flags().GetBool("local-images")
			if prefs, err = store.Update(prefs); err != nil {
				return err
			}
		}

		if rootFlags.jsonOutput {
			return printJSON(cmd.OutOrStdout(), prefs)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "local images: %t\n", prefs.UseLocalImages)
		return nil
	},
}

func init() {
	prefsCmd.Flags().Bool("local-images", false, "serve images from the archive's images/ tree")
	rootCmd.AddCommand(prefsCmd)
}
