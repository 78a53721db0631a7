package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/comicshelf/internal/comic"
	"github.com/MimeLyc/comicshelf/internal/config"
	"github.com/MimeLyc/comicshelf/internal/loader"
	"github.com/MimeLyc/comicshelf/internal/navigator"
	"github.com/MimeLyc/comicshelf/internal/shardstore"
	"github.com/MimeLyc/comicshelf/internal/source"
	"github.com/MimeLyc/comicshelf/pkg/log"
)

const shutdownTimeout = 10 * time.Second

// app wires one session: config, source, cache and loader.
type app struct {
	cfg    *config.Config
	fetch  *source.CountingSource
	cache  *shardstore.Handle
	loader *loader.Loader
}

func loadConfig() (*config.Config, error) {
	var opts []config.Option
	if rootFlags.dataDir != "" {
		opts = append(opts, config.WithDataDir(rootFlags.dataDir))
	}
	if rootFlags.cacheBackend != "" {
		opts = append(opts, config.WithCacheBackend(rootFlags.cacheBackend))
	}
	return config.NewFromEnv(opts...)
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	src, err := cfg.NewSource()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, fetch: source.NewCountingSource(src)}
	var opts []loader.Option
	if cfg.Cache.Backend != shardstore.BackendNone {
		a.cache = shardstore.NewHandleFromOptions(cfg.StoreOptions())
		opts = append(opts, loader.WithStore(a.cache))
	}
	a.loader = loader.New(a.fetch, opts...)
	log.Debug("Session %s started", a.loader.SessionID())
	return a, nil
}

// navigator loads the index and returns a navigator over it.
func (a *app) navigator(ctx context.Context) (*navigator.Navigator, error) {
	timeline, err := a.loader.Timeline(ctx)
	if err != nil {
		return nil, err
	}
	return navigator.New(timeline, a.loader), nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var stats shardstore.Stats
	var hasStats bool
	if a.cache != nil {
		stats, hasStats = a.cache.Stats()
	}
	if err := a.loader.Close(ctx); err != nil {
		log.Warn("Pending cache writes not finished: %v", err)
	}
	if hasStats {
		log.Debug("Session %s: %d fetches, cache %d hits / %d misses / %d writes, %d failed writes",
			a.loader.SessionID(), a.fetch.Total(), stats.Hits, stats.Misses, stats.Puts, a.loader.WriteFailures())
	} else {
		log.Debug("Session %s: %d fetches, no cache", a.loader.SessionID(), a.fetch.Total())
	}
}

// withApp runs fn with a session that is closed afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	return fn(cmd.Context(), a)
}

type comicView struct {
	Date       string `json:"date"`
	Title      string `json:"title"`
	Transcript string `json:"transcript"`
	ImageURL   string `json:"image_url,omitempty"`
}

func (a *app) view(rec comic.Record) comicView {
	useLocal := false
	if prefs, err := config.OpenPreferencesStore(a.cfg.PrefsFile); err == nil {
		useLocal = prefs.Get().UseLocalImages
	} else {
		log.Debug("Preferences unavailable, using defaults: %v", err)
	}
	return comicView{
		Date:       rec.Date,
		Title:      rec.Title,
		Transcript: rec.Transcript,
		ImageURL:   comic.ImageURL(rec, useLocal, a.cfg.ImageBase()),
	}
}

func printComic(w io.Writer, v comicView) error {
	if rootFlags.jsonOutput {
		return printJSON(w, v)
	}
	title := v.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(w, "%s  %s\n", v.Date, title)
	if v.ImageURL != "" {
		fmt.Fprintf(w, "image: %s\n", v.ImageURL)
	}
	if v.Transcript != "" {
		fmt.Fprintf(w, "\n%s\n", v.Transcript)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
