// Package navigator moves through the sorted dates of the global index.
package navigator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/comicshelf/internal/comic"
)

// Resolver loads records on demand. *loader.Loader implements it.
type Resolver interface {
	Record(ctx context.Context, date string) (comic.Record, error)
	Prefetch(ctx context.Context, date string) []string
}

type Action string

const (
	ActionFirst    Action = "first"
	ActionPrevious Action = "previous"
	ActionNext     Action = "next"
	ActionLast     Action = "last"
	ActionRandom   Action = "random"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionFirst, ActionPrevious, ActionNext, ActionLast, ActionRandom:
		return a, nil
	case "prev":
		return ActionPrevious, nil
	default:
		return "", comic.NewError(comic.ErrInvalidInput, fmt.Sprintf("unknown action %q", s))
	}
}

// Navigator answers position queries in O(log n) against a Timeline.
// The zero-length timeline yields empty dates everywhere.
type Navigator struct {
	timeline *comic.Timeline
	resolver Resolver

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Navigator)

// WithRand fixes the random source, for reproducible tests.
func WithRand(r *rand.Rand) Option {
	return func(n *Navigator) {
		n.rng = r
	}
}

func New(timeline *comic.Timeline, resolver Resolver, opts ...Option) *Navigator {
	seed := uint64(time.Now().UnixNano())
	n := &Navigator{
		timeline: timeline,
		resolver: resolver,
		rng:      rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Navigator) Len() int {
	return n.timeline.Len()
}

func (n *Navigator) Contains(date string) bool {
	return n.timeline.Contains(date)
}

func (n *Navigator) First() string {
	if n.timeline.Len() == 0 {
		return ""
	}
	return n.timeline.At(0).Date
}

func (n *Navigator) Last() string {
	if n.timeline.Len() == 0 {
		return ""
	}
	return n.timeline.At(n.timeline.Len() - 1).Date
}

// Default is the date a fresh session opens on: the latest comic.
func (n *Navigator) Default() string {
	return n.Last()
}

// Previous clamps at the first date. An unknown date is treated as the first.
func (n *Navigator) Previous(date string) string {
	prev, _, ok := n.timeline.Neighbours(date)
	if !ok || prev == "" {
		return n.First()
	}
	return prev
}

// Next clamps at the last date. An unknown date is treated as the first.
func (n *Navigator) Next(date string) string {
	if _, ok := n.timeline.Position(date); !ok {
		date = n.First()
	}
	_, next, ok := n.timeline.Neighbours(date)
	if !ok {
		return ""
	}
	if next == "" {
		return date
	}
	return next
}

// Random picks uniformly among all dates other than excluding. With a single
// date that date is returned.
func (n *Navigator) Random(excluding string) string {
	size := n.timeline.Len()
	switch size {
	case 0:
		return ""
	case 1:
		return n.timeline.At(0).Date
	}

	n.rngMu.Lock()
	defer n.rngMu.Unlock()

	skip, ok := n.timeline.Position(excluding)
	if !ok {
		return n.timeline.At(n.rng.IntN(size)).Date
	}
	i := n.rng.IntN(size - 1)
	if i >= skip {
		i++
	}
	return n.timeline.At(i).Date
}

// Summary returns the index entry of date without loading its shard.
func (n *Navigator) Summary(date string) (comic.DateSummary, bool) {
	pos, ok := n.timeline.Position(date)
	if !ok {
		return comic.DateSummary{}, false
	}
	return n.timeline.At(pos), true
}

// Resolve returns the record of date, loading its year if needed.
func (n *Navigator) Resolve(ctx context.Context, date string) (comic.Record, error) {
	if !n.timeline.Contains(date) {
		return comic.Record{}, comic.NewError(comic.ErrNotFound, "date is not in the index").WithContext("date", date)
	}
	return n.resolver.Record(ctx, date)
}

// Visit resolves date and starts prefetching the years of its neighbours.
func (n *Navigator) Visit(ctx context.Context, date string) (comic.Record, error) {
	rec, err := n.Resolve(ctx, date)
	if err != nil {
		return comic.Record{}, err
	}
	n.resolver.Prefetch(ctx, date)
	return rec, nil
}

// Apply maps a navigation action from current to the target date.
func (n *Navigator) Apply(action Action, current string) (string, error) {
	switch action {
	case ActionFirst:
		return n.First(), nil
	case ActionLast:
		return n.Last(), nil
	case ActionPrevious:
		return n.Previous(current), nil
	case ActionNext:
		return n.Next(current), nil
	case ActionRandom:
		return n.Random(current), nil
	default:
		return "", comic.NewError(comic.ErrInvalidInput, fmt.Sprintf("unknown action %q", action))
	}
}
