// Package loader assembles the in-memory dataset from the shard cache and
// the network. Years are loaded on demand; concurrent requests for the same
// resource share one underlying fetch.
package loader

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/comicshelf/internal/comic"
	"github.com/MimeLyc/comicshelf/internal/shardstore"
	"github.com/MimeLyc/comicshelf/internal/source"
	"github.com/MimeLyc/comicshelf/internal/writeback"
	"github.com/MimeLyc/comicshelf/pkg/log"
)

const indexFlight = "index"

type Loader struct {
	source  source.Source
	store   shardstore.Store
	writes  *writeback.Queue
	session string

	group    singleflight.Group
	prefetch sync.WaitGroup

	mu       sync.RWMutex
	index    *comic.GlobalIndex
	timeline *comic.Timeline
	dataset  *comic.Dataset
	loaded   map[string]bool
}

type Option func(*Loader)

// WithStore sets the cache. The loader closes it on Close.
func WithStore(store shardstore.Store) Option {
	return func(l *Loader) {
		l.store = store
	}
}

func WithSessionID(id string) Option {
	return func(l *Loader) {
		l.session = id
	}
}

// New creates a loader reading from src. Without WithStore it runs
// network-only.
func New(src source.Source, opts ...Option) *Loader {
	l := &Loader{
		source:  src,
		writes:  writeback.NewQueue(1),
		session: uuid.NewString(),
		dataset: comic.NewDataset(),
		loaded:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.writes.Start()
	return l
}

func (l *Loader) SessionID() string {
	return l.session
}

// Index returns the global index, from memory, the cache or the network in
// that order. A failure on every path is comic.ErrDataUnavailable.
func (l *Loader) Index(ctx context.Context) (comic.GlobalIndex, error) {
	if idx, ok := l.cachedIndex(); ok {
		return idx, nil
	}
	if err := l.do(ctx, indexFlight, l.loadIndex); err != nil {
		return comic.GlobalIndex{}, err
	}
	idx, _ := l.cachedIndex()
	return idx, nil
}

// Timeline returns the sorted navigation view of the index.
func (l *Loader) Timeline(ctx context.Context) (*comic.Timeline, error) {
	if _, err := l.Index(ctx); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.timeline, nil
}

func (l *Loader) cachedIndex() (comic.GlobalIndex, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.index == nil {
		return comic.GlobalIndex{}, false
	}
	return *l.index, true
}

func (l *Loader) loadIndex(ctx context.Context) error {
	if _, ok := l.cachedIndex(); ok {
		return nil
	}

	if l.store != nil {
		idx, ok, err := l.store.GetIndex(ctx)
		switch {
		case err != nil:
			l.cacheReadFailed("index", err)
		case ok:
			if verr := idx.Validate(); verr != nil {
				log.Warn("[%s] %v", l.session, comic.WrapError(verr, comic.ErrCorruption, "cached index is inconsistent, refetching"))
				break
			}
			log.Debug("[%s] Index served from cache (%d dates)", l.session, len(idx.Dates))
			l.installIndex(idx)
			return nil
		}
	}

	idx, err := l.source.FetchIndex(ctx)
	if err != nil {
		return comic.WrapError(err, comic.ErrDataUnavailable, "global index unavailable")
	}
	log.Info("[%s] Fetched index: %d years, %d dates", l.session, len(idx.Years), len(idx.Dates))
	l.installIndex(idx)
	l.writeIndex(idx)
	return nil
}

// writeIndex queues a fire-and-forget cache write of idx.
func (l *Loader) writeIndex(idx comic.GlobalIndex) {
	if store := l.store; store != nil {
		l.writes.Enqueue("index", func(ctx context.Context) error {
			return ignoreUnsupported(store.PutIndex(ctx, idx))
		})
	}
}

func (l *Loader) writeYear(year string, shard comic.YearShard) {
	if store := l.store; store != nil {
		l.writes.Enqueue("year:"+year, func(ctx context.Context) error {
			return ignoreUnsupported(store.PutYear(ctx, year, shard))
		})
	}
}

func (l *Loader) installIndex(idx comic.GlobalIndex) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.index != nil {
		return
	}
	l.index = &idx
	l.timeline = comic.NewTimeline(idx.Dates)
}

// EnsureYear makes sure the shard of year is merged into memory. A year that
// the index does not list is comic.ErrNotFound; a year that missed the cache
// and could not be fetched is comic.ErrYearLoadFailed and will be retried on
// the next call.
func (l *Loader) EnsureYear(ctx context.Context, year string) error {
	if l.isLoaded(year) {
		return nil
	}
	idx, err := l.Index(ctx)
	if err != nil {
		return err
	}
	if _, ok := slices.BinarySearch(idx.Years, year); !ok {
		return comic.NewError(comic.ErrNotFound, "year is not in the index").WithContext("year", year)
	}
	return l.do(ctx, "year:"+year, func(ctx context.Context) error {
		return l.loadYear(ctx, year)
	})
}

func (l *Loader) isLoaded(year string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded[year]
}

func (l *Loader) loadYear(ctx context.Context, year string) error {
	if l.isLoaded(year) {
		return nil
	}

	if l.store != nil {
		shard, ok, err := l.store.GetYear(ctx, year)
		switch {
		case err != nil:
			l.cacheReadFailed(year, err)
		case ok:
			log.Debug("[%s] Year %s served from cache (%d records)", l.session, year, len(shard))
			l.merge(year, shard)
			return nil
		}
	}

	shard, err := l.source.FetchYear(ctx, year)
	if err != nil {
		return comic.WrapError(err, comic.ErrYearLoadFailed, "year shard unavailable").WithContext("year", year)
	}
	log.Info("[%s] Fetched year %s (%d records)", l.session, year, len(shard))
	l.merge(year, shard)
	l.writeYear(year, shard)
	return nil
}

// merge unions shard into the dataset. Records already present win, and a
// year merged once is never merged again.
func (l *Loader) merge(year string, shard comic.YearShard) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded[year] {
		return
	}

	for date := range shard {
		if comic.YearOf(date) != year {
			log.Warn("[%s] %v", l.session, comic.NewError(comic.ErrCorruption, "record filed under the wrong year").
				WithContext("date", date).
				WithContext("shard", year))
		}
	}
	_, collisions := l.dataset.Merge(shard)
	for _, date := range collisions {
		log.Warn("[%s] %v", l.session, comic.NewError(comic.ErrCorruption, "duplicate date, keeping the first record").
			WithContext("date", date).
			WithContext("shard", year))
	}
	l.loaded[year] = true
}

// Record resolves date to its record, loading the date's year if needed.
// It does not prefetch neighbouring years.
func (l *Loader) Record(ctx context.Context, date string) (comic.Record, error) {
	timeline, err := l.Timeline(ctx)
	if err != nil {
		return comic.Record{}, err
	}
	if !timeline.Contains(date) {
		return comic.Record{}, comic.NewError(comic.ErrNotFound, "date is not in the index").WithContext("date", date)
	}
	if rec, ok := l.lookup(date); ok {
		return rec, nil
	}
	if err := l.EnsureYear(ctx, comic.YearOf(date)); err != nil {
		return comic.Record{}, err
	}
	rec, ok := l.lookup(date)
	if !ok {
		return comic.Record{}, comic.NewError(comic.ErrCorruption, "date is indexed but missing from its shard").
			WithContext("date", date)
	}
	return rec, nil
}

func (l *Loader) lookup(date string) (comic.Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dataset.Get(date)
}

// Prefetch starts loading, in the background, the years of the dates
// immediately before and after date. It returns the years it scheduled.
func (l *Loader) Prefetch(ctx context.Context, date string) []string {
	timeline, err := l.Timeline(ctx)
	if err != nil {
		return nil
	}
	prev, next, ok := timeline.Neighbours(date)
	if !ok {
		return nil
	}

	var years []string
	for _, neighbour := range []string{prev, next} {
		if neighbour == "" {
			continue
		}
		year := comic.YearOf(neighbour)
		if l.isLoaded(year) || slices.Contains(years, year) {
			continue
		}
		years = append(years, year)
	}

	detached := context.WithoutCancel(ctx)
	for _, year := range years {
		l.prefetch.Add(1)
		go func() {
			defer l.prefetch.Done()
			if err := l.EnsureYear(detached, year); err != nil {
				log.Debug("[%s] Prefetch of %s failed: %v", l.session, year, err)
			}
		}()
	}
	return years
}

// Wait blocks until background prefetches finish.
func (l *Loader) Wait() {
	l.prefetch.Wait()
}

// LoadReport summarises LoadAll.
type LoadReport struct {
	Loaded []string
	Failed map[string]error
}

// LoadAll loads every indexed year one after another. Failures of single
// years are collected; only an index failure or ctx ends it early.
func (l *Loader) LoadAll(ctx context.Context) (LoadReport, error) {
	report := LoadReport{Failed: make(map[string]error)}
	idx, err := l.Index(ctx)
	if err != nil {
		return report, err
	}
	for _, year := range idx.Years {
		if err := l.EnsureYear(ctx, year); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			log.Warn("[%s] %v", l.session, err)
			report.Failed[year] = err
			continue
		}
		report.Loaded = append(report.Loaded, year)
	}
	return report, nil
}

// Refresh refetches the index and every indexed year from the source,
// bypassing memory and the cache, and writes the results back to the cache.
// Years already merged this session keep their in-memory records; only
// years not yet resident are merged. Concurrent calls share one refresh.
func (l *Loader) Refresh(ctx context.Context) (LoadReport, error) {
	v, err := l.doValue(ctx, "refresh", func(ctx context.Context) (any, error) {
		return l.refresh(ctx)
	})
	report, _ := v.(LoadReport)
	return report, err
}

func (l *Loader) refresh(ctx context.Context) (LoadReport, error) {
	report := LoadReport{Failed: make(map[string]error)}

	idx, err := l.source.FetchIndex(ctx)
	if err != nil {
		return report, comic.WrapError(err, comic.ErrDataUnavailable, "global index unavailable")
	}
	l.installIndex(idx)
	l.writeIndex(idx)

	for _, year := range idx.Years {
		shard, err := l.source.FetchYear(ctx, year)
		if err != nil {
			err = comic.WrapError(err, comic.ErrYearLoadFailed, "year shard unavailable").WithContext("year", year)
			log.Warn("[%s] %v", l.session, err)
			report.Failed[year] = err
			continue
		}
		l.merge(year, shard)
		l.writeYear(year, shard)
		report.Loaded = append(report.Loaded, year)
	}
	log.Info("[%s] Refreshed %d years, %d failed", l.session, len(report.Loaded), len(report.Failed))
	return report, nil
}

// Snapshot returns a copy of everything merged so far, in date order.
func (l *Loader) Snapshot() *comic.Dataset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dataset.Clone()
}

func (l *Loader) LoadedYears() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ret := make([]string, 0, len(l.loaded))
	for year := range l.loaded {
		ret = append(ret, year)
	}
	slices.Sort(ret)
	return ret
}

// WriteFailures counts cache writes that failed this session.
func (l *Loader) WriteFailures() uint64 {
	return l.writes.Failures()
}

// Flush waits for pending cache writes.
func (l *Loader) Flush(ctx context.Context) error {
	l.prefetch.Wait()
	return l.writes.Flush(ctx)
}

// Close waits for prefetches and pending cache writes, then closes the store.
func (l *Loader) Close(ctx context.Context) error {
	err := l.Flush(ctx)
	l.writes.Stop()
	if l.store != nil {
		if cerr := l.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// do runs fn once per key across concurrent callers. fn runs detached from
// the caller's cancellation; a cancelled caller only stops waiting.
func (l *Loader) do(ctx context.Context, key string, fn func(context.Context) error) error {
	_, err := l.doValue(ctx, key, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

func (l *Loader) doValue(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loader) cacheReadFailed(key string, err error) {
	if comic.IsKind(err, comic.ErrUnsupported) {
		log.Debug("[%s] No cache for %s: %v", l.session, key, err)
		return
	}
	log.Warn("[%s] Cache read of %s failed, treating as miss: %v", l.session, key, err)
}

func ignoreUnsupported(err error) error {
	if comic.IsKind(err, comic.ErrUnsupported) {
		return nil
	}
	return err
}
