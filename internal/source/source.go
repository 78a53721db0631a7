// Package source fetches the global index and year shards from where the
// static dataset is published.
package source

import (
	"context"
	"fmt"

	"github.com/MimeLyc/comicshelf/internal/comic"
)

// Source is the network side of the loader. Both methods may block and
// must honour ctx.
type Source interface {
	FetchIndex(ctx context.Context) (comic.GlobalIndex, error)
	FetchYear(ctx context.Context, year string) (comic.YearShard, error)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Layout names the files of a published dataset relative to its root.
type Layout struct {
	IndexPath string
	ShardDir  string
}

func DefaultLayout() Layout {
	return Layout{
		IndexPath: "comics-index.json",
		ShardDir:  "comics-data",
	}
}

// ShardFile is the file name of a year shard.
func ShardFile(year string) string {
	return year + ".json"
}

func (l Layout) withDefaults() Layout {
	def := DefaultLayout()
	if l.IndexPath == "" {
		l.IndexPath = def.IndexPath
	}
	if l.ShardDir == "" {
		l.ShardDir = def.ShardDir
	}
	return l
}

func checkIndex(idx comic.GlobalIndex) (comic.GlobalIndex, error) {
	if err := idx.Validate(); err != nil {
		return comic.GlobalIndex{}, fmt.Errorf("invalid index: %w", err)
	}
	return idx, nil
}

func checkYear(year string) error {
	if len(year) != 4 {
		return fmt.Errorf("invalid year %q", year)
	}
	for _, r := range year {
		if r < '0' || r > '9' {
			return fmt.Errorf("invalid year %q", year)
		}
	}
	return nil
}
