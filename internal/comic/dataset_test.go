package comic

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataset_MergeFirstWriterWins(t *testing.T) {
	ds := NewDataset()

	added, collisions := ds.Merge(YearShard{
		"1990-01-02": {Title: "b"},
		"1990-01-01": {Title: "a"},
	})
	assert.Equal(t, 2, added)
	assert.Empty(t, collisions)

	added, collisions = ds.Merge(YearShard{
		"1990-01-01": {Title: "overwrite attempt"},
		"1989-12-31": {Title: "z"},
	})
	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"1990-01-01"}, collisions)

	rec, ok := ds.Get("1990-01-01")
	require.True(t, ok)
	assert.Equal(t, "a", rec.Title)
	assert.Equal(t, "1990-01-01", rec.Date)

	assert.Equal(t, []string{"1989-12-31", "1990-01-01", "1990-01-02"}, ds.Dates())
}

func TestDataset_PositionAndIteration(t *testing.T) {
	ds := NewDataset()
	ds.Merge(YearShard{
		"2001-03-04": {Title: "c"},
		"1999-01-01": {Title: "a"},
		"2000-06-30": {Title: "b"},
	})

	pos, ok := ds.Position("2000-06-30")
	require.True(t, ok)
	assert.Equal(t, 1, pos)
	assert.Equal(t, "b", ds.At(pos).Title)

	_, ok = ds.Position("2000-07-01")
	assert.False(t, ok)

	var titles []string
	for _, rec := range ds.All() {
		titles = append(titles, rec.Title)
	}
	assert.Equal(t, []string{"a", "b", "c"}, titles)

	clone := ds.Clone()
	clone.Merge(YearShard{"2002-01-01": {Title: "d"}})
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 4, clone.Len())
}

func TestYearShard_UnmarshalStampsDate(t *testing.T) {
	var shard YearShard
	err := json.Unmarshal([]byte(`{"1989-04-16":{"title":"","transcript":"hi\nthere","image":"a.gif"}}`), &shard)
	require.NoError(t, err)

	rec := shard["1989-04-16"]
	assert.Equal(t, "1989-04-16", rec.Date)
	assert.Equal(t, "hi\nthere", rec.Transcript)
	assert.Equal(t, "a.gif", rec.Image)

	out, err := json.Marshal(shard)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"date"`)
}

func TestTimeline(t *testing.T) {
	tl := NewTimeline([]DateSummary{
		{Date: "1990-01-02", Year: "1990"},
		{Date: "1989-04-16", Year: "1989", Title: "first"},
		{Date: "1990-01-01", Year: "1990"},
		{Date: "1989-04-16", Year: "1989", Title: "dup"},
	})

	require.Equal(t, 3, tl.Len())
	assert.Equal(t, "first", tl.At(0).Title)

	prev, next, ok := tl.Neighbours("1990-01-01")
	require.True(t, ok)
	assert.Equal(t, "1989-04-16", prev)
	assert.Equal(t, "1990-01-02", next)

	prev, _, ok = tl.Neighbours("1989-04-16")
	require.True(t, ok)
	assert.Equal(t, "", prev)

	_, _, ok = tl.Neighbours("2000-01-01")
	assert.False(t, ok)
}

func TestError_KindMatching(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := fmt.Errorf("resolve: %w", WrapError(cause, ErrYearLoadFailed, "year 1990").WithContext("year", "1990"))

	assert.True(t, IsKind(err, ErrYearLoadFailed))
	assert.False(t, IsKind(err, ErrNotFound))
	assert.True(t, errors.Is(err, NewError(ErrYearLoadFailed, "")))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "[YearLoadFailed] year 1990")
	assert.Contains(t, err.Error(), "year=1990")
}

func TestImageURL(t *testing.T) {
	rec := Record{Date: "1995-02-03", Image: "1995-02-03.gif", OriginalImageURL: "https://archive.org/x.gif"}

	assert.Equal(t, "/base/images/1995/1995-02-03.gif", ImageURL(rec, true, "/base"))
	assert.Equal(t, "https://archive.org/x.gif", ImageURL(rec, false, "/base/"))

	rec.Image = ""
	assert.Equal(t, "https://archive.org/x.gif", ImageURL(rec, true, "/base/"))
}
