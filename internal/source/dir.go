package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MimeLyc/comicshelf/internal/comic"
)

// DirSource reads a dataset laid out on the local filesystem, for example
// the output directory of the split command.
type DirSource struct {
	root   string
	layout Layout
}

func NewDirSource(root string, layout Layout) *DirSource {
	return &DirSource{root: root, layout: layout.withDefaults()}
}

func (s *DirSource) FetchIndex(ctx context.Context) (comic.GlobalIndex, error) {
	var idx comic.GlobalIndex
	if err := s.readJSON(ctx, &idx, s.layout.IndexPath); err != nil {
		return comic.GlobalIndex{}, err
	}
	return checkIndex(idx)
}

func (s *DirSource) FetchYear(ctx context.Context, year string) (comic.YearShard, error) {
	if err := checkYear(year); err != nil {
		return nil, err
	}
	var shard comic.YearShard
	if err := s.readJSON(ctx, &shard, s.layout.ShardDir, ShardFile(year)); err != nil {
		return nil, err
	}
	return shard, nil
}

func (s *DirSource) readJSON(ctx context.Context, v any, elem ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(append([]string{s.root}, elem...)...)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
