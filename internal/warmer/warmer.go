// Package warmer loads every year into the cache, then refreshes it from the
// source on a schedule so the cache holds the whole, current archive for
// offline use.
package warmer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/comicshelf/internal/loader"
	"github.com/MimeLyc/comicshelf/pkg/icron"
	"github.com/MimeLyc/comicshelf/pkg/log"
)

// Loader is the part of *loader.Loader the warmer drives.
type Loader interface {
	LoadAll(ctx context.Context) (loader.LoadReport, error)
	Refresh(ctx context.Context) (loader.LoadReport, error)
}

type Warmer struct {
	loader Loader
	cron   *cron.Cron
	group  singleflight.Group

	mu       sync.Mutex
	cronExpr string
	entryID  cron.EntryID
	lastRun  time.Time
}

func New(l Loader, c *cron.Cron, cronExpr string) *Warmer {
	return &Warmer{
		loader:   l,
		cron:     c,
		cronExpr: cronExpr,
	}
}

// Schedule registers the warm run with the cron engine. Calling it again
// replaces the previous entry.
func (w *Warmer) Schedule(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scheduleLocked(ctx, w.cronExpr)
}

// Reschedule switches to a new expression.
func (w *Warmer) Reschedule(ctx context.Context, cronExpr string) error {
	if _, err := icron.Parse(cronExpr); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scheduleLocked(ctx, cronExpr)
}

func (w *Warmer) scheduleLocked(ctx context.Context, cronExpr string) error {
	if cronExpr == "" {
		return fmt.Errorf("cron expression is required")
	}
	id, err := w.cron.AddFunc(cronExpr, func() {
		if _, err := w.Refresh(ctx); err != nil {
			log.Error("Cache refresh failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cache warm: %w", err)
	}
	if w.entryID != 0 {
		w.cron.Remove(w.entryID)
	}
	w.entryID = id
	w.cronExpr = cronExpr
	log.Info("Cache warm scheduled: %s", cronExpr)
	return nil
}

// RunOnce loads every year, serving years already cached from the cache.
// Overlapping runs share one.
func (w *Warmer) RunOnce(ctx context.Context) (loader.LoadReport, error) {
	return w.run(ctx, "warm", w.loader.LoadAll)
}

// Refresh refetches every year from the source and rewrites the cache.
// Scheduled runs call it. Overlapping runs share one.
func (w *Warmer) Refresh(ctx context.Context) (loader.LoadReport, error) {
	return w.run(ctx, "refresh", w.loader.Refresh)
}

func (w *Warmer) run(ctx context.Context, kind string, fn func(context.Context) (loader.LoadReport, error)) (loader.LoadReport, error) {
	v, err, shared := w.group.Do(kind, func() (any, error) {
		start := time.Now()
		report, err := fn(ctx)
		if err != nil {
			return report, err
		}
		w.mu.Lock()
		w.lastRun = start
		expr := w.cronExpr
		w.mu.Unlock()

		log.Info("Cache %s finished in %s: %d years loaded, %d failed",
			kind, time.Since(start).Round(time.Millisecond), len(report.Loaded), len(report.Failed))
		for year, ferr := range report.Failed {
			log.Warn("Year %s not cached: %v", year, ferr)
		}
		if expr != "" {
			if info, ierr := icron.GetTriggerInfo(expr, time.Now()); ierr == nil {
				log.Info("Next cache refresh: %s", info)
			}
		}
		return report, nil
	})
	if shared {
		log.Debug("Cache %s already running, joined it", kind)
	}
	report, _ := v.(loader.LoadReport)
	return report, err
}

func (w *Warmer) LastRun() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun
}
