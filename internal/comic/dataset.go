package comic

import (
	"iter"
	"slices"
)

// Dataset is an ordered mapping from date to Record. Iteration follows
// ascending date order and positional lookups are binary searches.
// A Dataset is not safe for concurrent mutation.
type Dataset struct {
	keys    []string
	records map[string]Record
}

func NewDataset() *Dataset {
	return &Dataset{records: make(map[string]Record)}
}

func (d *Dataset) Len() int {
	return len(d.keys)
}

func (d *Dataset) Get(date string) (Record, bool) {
	rec, ok := d.records[date]
	return rec, ok
}

// Merge adds every record of shard whose date is not yet present. Dates that
// already exist keep their current record and are returned as collisions.
func (d *Dataset) Merge(shard YearShard) (added int, collisions []string) {
	fresh := make([]string, 0, len(shard))
	for _, date := range shard.Dates() {
		if _, exists := d.records[date]; exists {
			collisions = append(collisions, date)
			continue
		}
		rec := shard[date]
		rec.Date = date
		d.records[date] = rec
		fresh = append(fresh, date)
	}
	if len(fresh) == 0 {
		return 0, collisions
	}
	d.keys = append(d.keys, fresh...)
	slices.Sort(d.keys)
	return len(fresh), collisions
}

// Position returns the index of date in iteration order.
func (d *Dataset) Position(date string) (int, bool) {
	return slices.BinarySearch(d.keys, date)
}

func (d *Dataset) At(i int) Record {
	return d.records[d.keys[i]]
}

// Dates returns a copy of the keys in ascending order.
func (d *Dataset) Dates() []string {
	return slices.Clone(d.keys)
}

// All iterates records in ascending date order.
func (d *Dataset) All() iter.Seq2[string, Record] {
	return func(yield func(string, Record) bool) {
		for _, date := range d.keys {
			if !yield(date, d.records[date]) {
				return
			}
		}
	}
}

func (d *Dataset) Clone() *Dataset {
	ret := &Dataset{
		keys:    slices.Clone(d.keys),
		records: make(map[string]Record, len(d.records)),
	}
	for k, v := range d.records {
		ret.records[k] = v
	}
	return ret
}
