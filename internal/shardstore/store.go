// Package shardstore persists the global index and year shards between
// sessions. Every record is stamped with a schema version; a record whose
// version differs from the store's current version reads as absent.
//
// The store is a speed optimisation only. Callers treat any error from it
// as a cache miss.
package shardstore

import (
	"context"
	"time"

	"github.com/MimeLyc/comicshelf/internal/comic"
)

// Store is the two-table cache used by the loader.
type Store interface {
	GetIndex(ctx context.Context) (comic.GlobalIndex, bool, error)
	PutIndex(ctx context.Context, idx comic.GlobalIndex) error
	GetYear(ctx context.Context, year string) (comic.YearShard, bool, error)
	PutYear(ctx context.Context, year string, shard comic.YearShard) error
	ClearAll(ctx context.Context) error
	Close() error
}

// Table names one of the two logical tables.
type Table string

const (
	TableIndex Table = "index"
	TableYears Table = "years"
)

// indexKey is the single row key of the index table.
const indexKey = "comics-index"

// Entry is a persisted record as a Backend sees it: opaque payload bytes
// plus the schema version they were written under.
type Entry struct {
	SchemaVersion string
	Payload       []byte
	UpdatedAt     time.Time
}

// Backend is a storage engine holding the two tables. A Put must either
// fully replace the previous entry or leave it intact.
type Backend interface {
	Get(ctx context.Context, table Table, key string) (Entry, bool, error)
	Put(ctx context.Context, table Table, key string, entry Entry) error
	Clear(ctx context.Context) error
	Close() error
}

// Stats counts cache traffic since the store was opened.
type Stats struct {
	Hits   uint64
	Misses uint64
	Puts   uint64
}
