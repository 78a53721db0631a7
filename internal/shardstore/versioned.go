package shardstore

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MimeLyc/comicshelf/internal/comic"
	"github.com/MimeLyc/comicshelf/pkg/log"
)

// VersionedStore implements Store over a Backend, gating every read on the
// schema version it was opened with.
type VersionedStore struct {
	backend Backend
	version string
	codec   *codec

	hits   atomic.Uint64
	misses atomic.Uint64
	puts   atomic.Uint64
}

func NewVersionedStore(backend Backend, schemaVersion string) (*VersionedStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if strings.TrimSpace(schemaVersion) == "" {
		return nil, fmt.Errorf("schema version is required")
	}
	c, err := newCodec()
	if err != nil {
		return nil, err
	}
	return &VersionedStore{
		backend: backend,
		version: schemaVersion,
		codec:   c,
	}, nil
}

func (s *VersionedStore) SchemaVersion() string {
	return s.version
}

func (s *VersionedStore) Stats() Stats {
	return Stats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Puts:   s.puts.Load(),
	}
}

func (s *VersionedStore) GetIndex(ctx context.Context) (comic.GlobalIndex, bool, error) {
	var idx comic.GlobalIndex
	ok, err := s.get(ctx, TableIndex, indexKey, &idx)
	if err != nil || !ok {
		return comic.GlobalIndex{}, false, err
	}
	return idx, true, nil
}

func (s *VersionedStore) PutIndex(ctx context.Context, idx comic.GlobalIndex) error {
	return s.put(ctx, TableIndex, indexKey, idx)
}

func (s *VersionedStore) GetYear(ctx context.Context, year string) (comic.YearShard, bool, error) {
	var shard comic.YearShard
	ok, err := s.get(ctx, TableYears, year, &shard)
	if err != nil || !ok {
		return nil, false, err
	}
	return shard, true, nil
}

func (s *VersionedStore) PutYear(ctx context.Context, year string, shard comic.YearShard) error {
	if strings.TrimSpace(year) == "" {
		return comic.NewError(comic.ErrInvalidInput, "year key is required")
	}
	return s.put(ctx, TableYears, year, shard)
}

func (s *VersionedStore) ClearAll(ctx context.Context) error {
	return s.backend.Clear(ctx)
}

func (s *VersionedStore) Close() error {
	err := s.backend.Close()
	s.codec.close()
	return err
}

func (s *VersionedStore) get(ctx context.Context, table Table, key string, v any) (bool, error) {
	entry, ok, err := s.backend.Get(ctx, table, key)
	if err != nil {
		return false, err
	}
	if !ok {
		s.misses.Add(1)
		return false, nil
	}
	if entry.SchemaVersion != s.version {
		log.Debug("Cache %s/%s has schema %q, want %q", table, key, entry.SchemaVersion, s.version)
		s.misses.Add(1)
		return false, nil
	}
	if err := s.codec.decode(entry.Payload, v); err != nil {
		log.Warn("Cache %s/%s is unreadable, ignoring it: %v", table, key, err)
		s.misses.Add(1)
		return false, nil
	}
	s.hits.Add(1)
	return true, nil
}

func (s *VersionedStore) put(ctx context.Context, table Table, key string, v any) error {
	payload, err := s.codec.encode(v)
	if err != nil {
		return err
	}
	err = s.backend.Put(ctx, table, key, Entry{
		SchemaVersion: s.version,
		Payload:       payload,
		UpdatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	s.puts.Add(1)
	return nil
}
