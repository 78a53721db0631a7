package source

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/MimeLyc/comicshelf/internal/comic"
	"github.com/MimeLyc/comicshelf/pkg/file"
)

// Publish writes shards and idx under root in the layout DirSource and
// HTTPSource read. Every file is minified JSON written atomically. It
// returns the written paths, index last.
func Publish(root string, layout Layout, shards map[string]comic.YearShard, idx comic.GlobalIndex) ([]string, error) {
	layout = layout.withDefaults()
	if err := idx.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to publish invalid index: %w", err)
	}

	written := make([]string, 0, len(idx.Years)+1)
	for _, year := range idx.Years {
		shard, ok := shards[year]
		if !ok {
			return written, fmt.Errorf("index lists year %s but no shard was given", year)
		}
		path := filepath.Join(root, layout.ShardDir, ShardFile(year))
		if err := writeJSON(path, shard); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	path := filepath.Join(root, layout.IndexPath)
	if err := writeJSON(path, idx); err != nil {
		return written, err
	}
	return append(written, path), nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := file.WriteAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
