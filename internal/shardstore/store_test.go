package shardstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/comicshelf/internal/comic"
)

type backendFactory func(t *testing.T, path string) Backend

func backends() map[string]backendFactory {
	return map[string]backendFactory{
		"sqlite": func(t *testing.T, path string) Backend {
			b, err := NewSQLiteBackend(context.Background(), path+".db")
			require.NoError(t, err)
			return b
		},
		"bolt": func(t *testing.T, path string) Backend {
			b, err := NewBoltBackend(path + ".bolt")
			require.NoError(t, err)
			return b
		},
	}
}

func sampleShard() comic.YearShard {
	return comic.YearShard{
		"1990-01-01": {Date: "1990-01-01", Title: "New Year", Transcript: "Dilbert: hello\nDogbert: no", Image: "1990-01-01.gif"},
		"1990-01-02": {Date: "1990-01-02", Title: "", Transcript: "", OriginalImageURL: "https://example.org/2.gif"},
	}
}

func sampleIndex() comic.GlobalIndex {
	return comic.GlobalIndex{
		Years: []string{"1990"},
		Dates: []comic.DateSummary{
			{Date: "1990-01-01", Title: "New Year", Year: "1990"},
			{Date: "1990-01-02", Title: "", Year: "1990"},
		},
		LatestYear: "1990",
	}
}

func TestVersionedStore_RoundTrip(t *testing.T) {
	t.Parallel()

	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store, err := NewVersionedStore(factory(t, filepath.Join(t.TempDir(), "cache")), "1.0.0")
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })

			ctx := context.Background()
			_, ok, err := store.GetYear(ctx, "1990")
			require.NoError(t, err)
			assert.False(t, ok)

			shard := sampleShard()
			require.NoError(t, store.PutYear(ctx, "1990", shard))
			got, ok, err := store.GetYear(ctx, "1990")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, shard, got)

			idx := sampleIndex()
			require.NoError(t, store.PutIndex(ctx, idx))
			gotIdx, ok, err := store.GetIndex(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, idx, gotIdx)

			stats := store.Stats()
			assert.Equal(t, uint64(2), stats.Hits)
			assert.Equal(t, uint64(1), stats.Misses)
			assert.Equal(t, uint64(2), stats.Puts)
		})
	}
}

func TestVersionedStore_SchemaBumpInvalidates(t *testing.T) {
	t.Parallel()

	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "cache")
			ctx := context.Background()

			old, err := NewVersionedStore(factory(t, path), "1.0.0")
			require.NoError(t, err)
			require.NoError(t, old.PutYear(ctx, "1990", sampleShard()))
			require.NoError(t, old.PutIndex(ctx, sampleIndex()))
			require.NoError(t, old.Close())

			backend := factory(t, path)
			bumped, err := NewVersionedStore(backend, "2.0.0")
			require.NoError(t, err)
			t.Cleanup(func() { _ = bumped.Close() })

			_, ok, err := bumped.GetYear(ctx, "1990")
			require.NoError(t, err)
			assert.False(t, ok)
			_, ok, err = bumped.GetIndex(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			// the old bytes are still there until overwritten
			entry, ok, err := backend.Get(ctx, TableYears, "1990")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "1.0.0", entry.SchemaVersion)

			require.NoError(t, bumped.PutYear(ctx, "1990", sampleShard()))
			_, ok, err = bumped.GetYear(ctx, "1990")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestVersionedStore_ClearAll(t *testing.T) {
	t.Parallel()

	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store, err := NewVersionedStore(factory(t, filepath.Join(t.TempDir(), "cache")), "1.0.0")
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })

			ctx := context.Background()
			require.NoError(t, store.PutYear(ctx, "1990", sampleShard()))
			require.NoError(t, store.PutIndex(ctx, sampleIndex()))
			require.NoError(t, store.ClearAll(ctx))

			_, ok, err := store.GetYear(ctx, "1990")
			require.NoError(t, err)
			assert.False(t, ok)
			_, ok, err = store.GetIndex(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.PutYear(ctx, "1991", sampleShard()))
			_, ok, err = store.GetYear(ctx, "1991")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestVersionedStore_CorruptPayloadIsMiss(t *testing.T) {
	backend := NewMemoryBackend()
	store, err := NewVersionedStore(backend, "1.0.0")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, backend.Put(ctx, TableYears, "1990", Entry{SchemaVersion: "1.0.0", Payload: []byte("not zstd")}))

	_, ok, err := store.GetYear(ctx, "1990")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), store.Stats().Misses)
}

func TestVersionedStore_PutFailureLeavesPriorValue(t *testing.T) {
	backend := NewMemoryBackend()
	store, err := NewVersionedStore(backend, "1.0.0")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.PutYear(ctx, "1990", sampleShard()))

	backend.FailPuts(errors.New("quota exceeded"))
	err = store.PutYear(ctx, "1990", comic.YearShard{"1990-05-05": {Date: "1990-05-05"}})
	require.Error(t, err)

	got, ok, err := store.GetYear(ctx, "1990")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleShard(), got)
}

func TestOpen_Backends(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	for _, backend := range []string{BackendSQLite, BackendBolt, BackendMemory} {
		store, err := Open(ctx, Options{Backend: backend, Path: filepath.Join(dir, backend), SchemaVersion: "1.0.0"})
		require.NoError(t, err, backend)
		require.NoError(t, store.Close())
	}

	_, err := Open(ctx, Options{Backend: BackendNone, SchemaVersion: "1.0.0"})
	assert.True(t, comic.IsKind(err, comic.ErrUnsupported))

	_, err = Open(ctx, Options{Backend: BackendSQLite, Path: "", SchemaVersion: "1.0.0"})
	assert.True(t, comic.IsKind(err, comic.ErrUnsupported))

	_, err = Open(ctx, Options{Backend: "indexeddb", Path: dir, SchemaVersion: "1.0.0"})
	assert.True(t, comic.IsKind(err, comic.ErrUnsupported))
}

func TestHandle_OpensOnceUnderConcurrency(t *testing.T) {
	var opens atomic.Int32
	h := NewHandle(func(ctx context.Context) (Store, error) {
		opens.Add(1)
		s, err := NewVersionedStore(NewMemoryBackend(), "1.0.0")
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	t.Cleanup(func() { _ = h.Close() })

	ctx := context.Background()
	var wg sync.WaitGroup
	stores := make([]Store, 16)
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := h.Open(ctx)
			assert.NoError(t, err)
			stores[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	for _, s := range stores {
		assert.Same(t, stores[0], s)
	}

	require.NoError(t, h.PutYear(ctx, "1990", sampleShard()))
	_, ok, err := h.GetYear(ctx, "1990")
	require.NoError(t, err)
	assert.True(t, ok)

	stats, ok := h.Stats()
	require.True(t, ok)
	assert.Equal(t, uint64(1), stats.Puts)
}

func TestHandle_RemembersFailure(t *testing.T) {
	var opens atomic.Int32
	h := NewHandle(func(ctx context.Context) (Store, error) {
		opens.Add(1)
		return nil, errors.New("storage disabled")
	})

	ctx := context.Background()
	_, _, err := h.GetIndex(ctx)
	require.Error(t, err)
	assert.True(t, comic.IsKind(err, comic.ErrUnsupported))

	err = h.PutYear(ctx, "1990", sampleShard())
	assert.True(t, comic.IsKind(err, comic.ErrUnsupported))
	assert.Equal(t, int32(1), opens.Load())
	assert.NoError(t, h.Close())
}

func TestHandle_OpenIgnoresCallerCancellation(t *testing.T) {
	h := NewHandle(func(ctx context.Context) (Store, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := NewVersionedStore(NewMemoryBackend(), "1.0.0")
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	t.Cleanup(func() { _ = h.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Open(ctx)
	require.NoError(t, err)

	require.NoError(t, h.PutYear(context.Background(), "1990", sampleShard()))
	_, ok, err := h.GetYear(context.Background(), "1990")
	require.NoError(t, err)
	assert.True(t, ok)
}
