package shardstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MimeLyc/comicshelf/internal/comic"
	"github.com/MimeLyc/comicshelf/pkg/log"
)

const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
	BackendNone   = "none"
)

// Options selects and configures a cache backend.
type Options struct {
	Backend       string
	Path          string
	SchemaVersion string
}

// Open builds a VersionedStore for opts. Any failure, including an explicit
// "none" backend, is reported as comic.ErrUnsupported.
func Open(ctx context.Context, opts Options) (*VersionedStore, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case BackendSQLite, "":
		backend, err = NewSQLiteBackend(ctx, opts.Path)
	case BackendBolt:
		backend, err = NewBoltBackend(opts.Path)
	case BackendMemory:
		backend = NewMemoryBackend()
	case BackendNone:
		return nil, comic.NewError(comic.ErrUnsupported, "persistent cache disabled")
	default:
		err = fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
	if err != nil {
		return nil, comic.WrapError(err, comic.ErrUnsupported, "open cache").
			WithContext("backend", opts.Backend)
	}

	store, err := NewVersionedStore(backend, opts.SchemaVersion)
	if err != nil {
		_ = backend.Close()
		return nil, comic.WrapError(err, comic.ErrUnsupported, "open cache")
	}
	return store, nil
}

// OpenFunc opens the underlying store on first use.
type OpenFunc func(ctx context.Context) (Store, error)

// Handle is a lazily opened Store. The first caller opens it; concurrent
// callers wait and share the result, including a failure, which is kept for
// the rest of the session.
type Handle struct {
	open OpenFunc

	mu     sync.Mutex
	opened bool
	store  Store
	err    error
}

func NewHandle(open OpenFunc) *Handle {
	return &Handle{open: open}
}

// NewHandleFromOptions opens with Open(opts) on first use.
func NewHandleFromOptions(opts Options) *Handle {
	return NewHandle(func(ctx context.Context) (Store, error) {
		store, err := Open(ctx, opts)
		if err != nil {
			return nil, err
		}
		return store, nil
	})
}

// Open returns the shared store. It is idempotent. The open itself is not
// bound to the caller's cancellation, so a cancelled first caller cannot
// disable the cache for everyone else.
func (h *Handle) Open(ctx context.Context) (Store, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.opened {
		return h.store, h.err
	}
	store, err := h.open(context.WithoutCancel(ctx))
	if err != nil {
		if !comic.IsKind(err, comic.ErrUnsupported) {
			err = comic.WrapError(err, comic.ErrUnsupported, "open cache")
		}
		log.Warn("Cache unavailable, continuing without it: %v", err)
		store = nil
	}
	h.opened = true
	h.store = store
	h.err = err
	return store, err
}

func (h *Handle) GetIndex(ctx context.Context) (comic.GlobalIndex, bool, error) {
	store, err := h.Open(ctx)
	if err != nil {
		return comic.GlobalIndex{}, false, err
	}
	return store.GetIndex(ctx)
}

func (h *Handle) PutIndex(ctx context.Context, idx comic.GlobalIndex) error {
	store, err := h.Open(ctx)
	if err != nil {
		return err
	}
	return store.PutIndex(ctx, idx)
}

func (h *Handle) GetYear(ctx context.Context, year string) (comic.YearShard, bool, error) {
	store, err := h.Open(ctx)
	if err != nil {
		return nil, false, err
	}
	return store.GetYear(ctx, year)
}

func (h *Handle) PutYear(ctx context.Context, year string, shard comic.YearShard) error {
	store, err := h.Open(ctx)
	if err != nil {
		return err
	}
	return store.PutYear(ctx, year, shard)
}

func (h *Handle) ClearAll(ctx context.Context) error {
	store, err := h.Open(ctx)
	if err != nil {
		return err
	}
	return store.ClearAll(ctx)
}

// Close closes the store if it was opened.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.store == nil {
		return nil
	}
	err := h.store.Close()
	h.store = nil
	h.err = comic.NewError(comic.ErrUnsupported, "cache closed")
	return err
}

// Stats reports the opened store's counters, if it keeps any.
func (h *Handle) Stats() (Stats, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.store.(interface{ Stats() Stats })
	if !ok {
		return Stats{}, false
	}
	return s.Stats(), true
}
