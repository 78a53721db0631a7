package source

import (
	"context"
	"sync"

	"github.com/MimeLyc/comicshelf/internal/comic"
)

// IndexKey is the Count key of index fetches; year fetches count under the year.
const IndexKey = "index"

// CountingSource wraps a Source and counts calls per key.
type CountingSource struct {
	inner Source

	mu     sync.Mutex
	counts map[string]int
}

func NewCountingSource(inner Source) *CountingSource {
	return &CountingSource{inner: inner, counts: make(map[string]int)}
}

func (s *CountingSource) FetchIndex(ctx context.Context) (comic.GlobalIndex, error) {
	s.bump(IndexKey)
	return s.inner.FetchIndex(ctx)
}

func (s *CountingSource) FetchYear(ctx context.Context, year string) (comic.YearShard, error) {
	s.bump(year)
	return s.inner.FetchYear(ctx, year)
}

func (s *CountingSource) Count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key]
}

// Total is the number of fetches of any kind.
func (s *CountingSource) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.counts {
		n += c
	}
	return n
}

func (s *CountingSource) bump(key string) {
	s.mu.Lock()
	s.counts[key]++
	s.mu.Unlock()
}
