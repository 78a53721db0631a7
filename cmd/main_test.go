package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullDataset = `{
  "1989-04-16": {"title": "First", "transcript": "Dilbert meets Dogbert", "image": "1989-04-16.gif"},
  "1990-01-01": {"title": "New Year", "transcript": "the quick brown fox\njumps over the lazy dog", "originalimageurl": "https://example.org/1990-01-01.gif"},
  "1990-01-02": {"title": "Fox Hunt", "transcript": "Nothing to see"}
}`

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	rootFlags = struct {
		dataDir      string
		cacheBackend string
		verbose      bool
		jsonOutput   bool
	}{}
	searchFlags.years = nil
	searchFlags.limit = 50
	warmFlags.schedule = ""
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), args)
	return out.String()
}

// resetFlags restores every flag of cmd and its children to its default so
// state set by one invocation does not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

func TestCLI_SplitThenBrowse(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("COMICSHELF_PREFS_FILE", filepath.Join(dir, "prefs.json"))
	t.Setenv("COMICSHELF_CACHE_PATH", filepath.Join(dir, "cache.db"))
	t.Setenv("COMICSHELF_CACHE_BACKEND", "")
	t.Setenv("COMICSHELF_DATA_DIR", "")
	t.Setenv("COMICSHELF_WARM_CRON", "")

	in := filepath.Join(dir, "comics.json")
	require.NoError(t, os.WriteFile(in, []byte(fullDataset), 0o644))
	archive := filepath.Join(dir, "public")

	out := runCLI(t, "split", "--in", in, "--out", archive)
	assert.Contains(t, out, "3 comics in 2 years, latest 1990")
	assert.FileExists(t, filepath.Join(archive, "comics-index.json"))
	assert.FileExists(t, filepath.Join(archive, "comics-data", "1989.json"))

	out = runCLI(t, "show", "--data-dir", archive)
	assert.Contains(t, out, "1990-01-02  Fox Hunt")

	out = runCLI(t, "show", "1990-01-01", "--data-dir", archive)
	assert.Contains(t, out, "New Year")
	assert.Contains(t, out, "image: https://example.org/1990-01-01.gif")

	out = runCLI(t, "nav", "previous", "1990-01-01", "--data-dir", archive)
	assert.Contains(t, out, "1989-04-16  First")

	out = runCLI(t, "nav", "next", "1990-01-02", "--data-dir", archive)
	assert.Contains(t, out, "1990-01-02  Fox Hunt")

	out = runCLI(t, "search", "fox", "--data-dir", archive)
	assert.Contains(t, out, "the quick brown fox jumps over the lazy dog")
	assert.Contains(t, out, "nothing to see...")
	assert.Contains(t, out, "2 result(s)")

	out = runCLI(t, "search", "dogbert", "--year", "1990", "--data-dir", archive)
	assert.Contains(t, out, "0 result(s)")

	out = runCLI(t, "cache", "warm", "--data-dir", archive)
	assert.Contains(t, out, "2 year(s) cached")

	out = runCLI(t, "cache", "clear", "--data-dir", archive)
	assert.Contains(t, out, "cache cleared")
}

func TestCLI_Prefs(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("COMICSHELF_PREFS_FILE", filepath.Join(dir, "prefs.json"))
	t.Setenv("COMICSHELF_CACHE_BACKEND", "memory")

	out := runCLI(t, "prefs")
	assert.Contains(t, out, "local images: false")

	out = runCLI(t, "prefs", "--local-images=true")
	assert.Contains(t, out, "local images: true")
	assert.FileExists(t, filepath.Join(dir, "prefs.json"))

	out = runCLI(t, "prefs")
	assert.Contains(t, out, "local images: true")

	fresh := filepath.Join(dir, "fresh.json")
	t.Setenv("COMICSHELF_PREFS_FILE", fresh)
	out = runCLI(t, "prefs")
	assert.Contains(t, out, "local images: false")
	assert.NoFileExists(t, fresh)
}
