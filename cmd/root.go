package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/comicshelf/pkg/log"
)

var rootFlags struct {
	dataDir      string
	cacheBackend string
	verbose      bool
	jsonOutput   bool
}

var rootCmd = &cobra.Command{
	Use:   "comicshelf",
	Short: "Browse and search a year-sharded comic strip archive",
	Long: `comicshelf reads a comic archive published as a global index plus one
JSON shard per year. Years are fetched on demand and kept in a local cache,
so later sessions work offline.

Configuration comes from COMICSHELF_* environment variables, optionally
loaded from a .env file in the working directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		level := log.ParseLevel(os.Getenv("LOG_LEVEL"))
		if rootFlags.verbose {
			level = log.LevelDebug
		}
		log.InitLogger(level)
		log.GetLogger().SetOutput(cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootFlags.dataDir, "data-dir", "", "read the archive from this directory instead of COMICSHELF_BASE_URL")
	flags.StringVar(&rootFlags.cacheBackend, "cache", "", "cache backend: sqlite, bolt, memory or none")
	flags.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "debug logging")
	flags.BoolVar(&rootFlags.jsonOutput, "json", false, "print JSON instead of text")
}
