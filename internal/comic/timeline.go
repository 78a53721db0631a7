package comic

import (
	"cmp"
	"slices"
)

// Timeline is the ascending sequence of date summaries from a GlobalIndex.
// Lexicographic order equals chronological order for zero-padded ISO dates.
type Timeline struct {
	entries []DateSummary
}

// NewTimeline sorts a copy of summaries; a repeated date keeps its first entry.
func NewTimeline(summaries []DateSummary) *Timeline {
	entries := slices.Clone(summaries)
	slices.SortStableFunc(entries, func(a, b DateSummary) int {
		return cmp.Compare(a.Date, b.Date)
	})
	entries = slices.CompactFunc(entries, func(a, b DateSummary) bool {
		return a.Date == b.Date
	})
	return &Timeline{entries: entries}
}

func (t *Timeline) Len() int {
	return len(t.entries)
}

func (t *Timeline) At(i int) DateSummary {
	return t.entries[i]
}

func (t *Timeline) Position(date string) (int, bool) {
	return slices.BinarySearchFunc(t.entries, date, func(e DateSummary, target string) int {
		return cmp.Compare(e.Date, target)
	})
}

func (t *Timeline) Contains(date string) bool {
	_, ok := t.Position(date)
	return ok
}

// Neighbours returns the dates immediately before and after date. Either is
// empty at a boundary; ok is false when date is not on the timeline.
func (t *Timeline) Neighbours(date string) (prev, next string, ok bool) {
	pos, found := t.Position(date)
	if !found {
		return "", "", false
	}
	if pos > 0 {
		prev = t.entries[pos-1].Date
	}
	if pos < len(t.entries)-1 {
		next = t.entries[pos+1].Date
	}
	return prev, next, true
}
