package navigator

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/comicshelf/internal/comic"
)

type stubResolver struct {
	records    map[string]comic.Record
	resolved   []string
	prefetched []string
}

func (s *stubResolver) Record(_ context.Context, date string) (comic.Record, error) {
	s.resolved = append(s.resolved, date)
	rec, ok := s.records[date]
	if !ok {
		return comic.Record{}, comic.NewError(comic.ErrYearLoadFailed, "unavailable")
	}
	return rec, nil
}

func (s *stubResolver) Prefetch(_ context.Context, date string) []string {
	s.prefetched = append(s.prefetched, date)
	return nil
}

func timeline(dates ...string) *comic.Timeline {
	summaries := make([]comic.DateSummary, 0, len(dates))
	for _, d := range dates {
		summaries = append(summaries, comic.DateSummary{Date: d, Title: "t" + d, Year: comic.YearOf(d)})
	}
	return comic.NewTimeline(summaries)
}

func TestNavigator_Boundaries(t *testing.T) {
	n := New(timeline("1990-01-02", "1989-04-16", "1990-01-01"), &stubResolver{})

	assert.Equal(t, 3, n.Len())
	assert.Equal(t, "1989-04-16", n.First())
	assert.Equal(t, "1990-01-02", n.Last())
	assert.Equal(t, "1990-01-02", n.Default())

	assert.Equal(t, "1989-04-16", n.Previous("1989-04-16"))
	assert.Equal(t, "1990-01-02", n.Next("1990-01-02"))
	assert.Equal(t, "1989-04-16", n.Previous("1990-01-01"))
	assert.Equal(t, "1990-01-02", n.Next("1990-01-01"))
}

func TestNavigator_UnknownDateActsLikeFirst(t *testing.T) {
	n := New(timeline("1989-04-16", "1990-01-01", "1990-01-02"), &stubResolver{})

	assert.Equal(t, "1989-04-16", n.Previous("2020-01-01"))
	assert.Equal(t, "1990-01-01", n.Next("2020-01-01"))
	assert.Equal(t, "1990-01-01", n.Next(""))
}

func TestNavigator_Empty(t *testing.T) {
	n := New(timeline(), &stubResolver{})

	assert.Empty(t, n.First())
	assert.Empty(t, n.Last())
	assert.Empty(t, n.Previous("1990-01-01"))
	assert.Empty(t, n.Next("1990-01-01"))
	assert.Empty(t, n.Random(""))
}

func TestNavigator_Random(t *testing.T) {
	t.Run("single date ignores exclusion", func(t *testing.T) {
		n := New(timeline("1990-01-01"), &stubResolver{})
		assert.Equal(t, "1990-01-01", n.Random("1990-01-01"))
	})

	t.Run("never returns the excluded date", func(t *testing.T) {
		dates := []string{"1989-04-16", "1990-01-01", "1990-01-02", "1990-01-03"}
		n := New(timeline(dates...), &stubResolver{}, WithRand(rand.New(rand.NewPCG(1, 2))))

		seen := make(map[string]int)
		for range 400 {
			got := n.Random("1990-01-01")
			require.NotEqual(t, "1990-01-01", got)
			seen[got]++
		}
		assert.Len(t, seen, 3)
		for date, count := range seen {
			assert.Greater(t, count, 80, date)
		}
	})

	t.Run("unknown exclusion picks from all", func(t *testing.T) {
		n := New(timeline("1989-04-16", "1990-01-01"), &stubResolver{}, WithRand(rand.New(rand.NewPCG(3, 4))))
		seen := make(map[string]bool)
		for range 100 {
			seen[n.Random("")] = true
		}
		assert.Len(t, seen, 2)
	})
}

func TestNavigator_ResolveAndVisit(t *testing.T) {
	res := &stubResolver{records: map[string]comic.Record{
		"1990-01-01": {Date: "1990-01-01", Title: "New Year"},
	}}
	n := New(timeline("1989-04-16", "1990-01-01"), res)

	_, err := n.Resolve(context.Background(), "1975-01-01")
	assert.True(t, comic.IsKind(err, comic.ErrNotFound))
	assert.Empty(t, res.resolved)

	rec, err := n.Resolve(context.Background(), "1990-01-01")
	require.NoError(t, err)
	assert.Equal(t, "New Year", rec.Title)
	assert.Empty(t, res.prefetched)

	_, err = n.Visit(context.Background(), "1990-01-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"1990-01-01"}, res.prefetched)

	_, err = n.Visit(context.Background(), "1989-04-16")
	assert.True(t, comic.IsKind(err, comic.ErrYearLoadFailed))
	assert.Len(t, res.prefetched, 1)
}

func TestNavigator_Summary(t *testing.T) {
	n := New(timeline("1989-04-16"), &stubResolver{})

	s, ok := n.Summary("1989-04-16")
	require.True(t, ok)
	assert.Equal(t, "t1989-04-16", s.Title)
	assert.Equal(t, "1989", s.Year)

	_, ok = n.Summary("1990-01-01")
	assert.False(t, ok)
}

func TestNavigator_Apply(t *testing.T) {
	n := New(timeline("1989-04-16", "1990-01-01", "1990-01-02"), &stubResolver{})

	tests := []struct {
		action  string
		current string
		want    string
	}{
		{"first", "1990-01-01", "1989-04-16"},
		{"last", "1990-01-01", "1990-01-02"},
		{"previous", "1990-01-01", "1989-04-16"},
		{"prev", "1990-01-02", "1990-01-01"},
		{"NEXT", "1990-01-01", "1990-01-02"},
	}
	for _, tt := range tests {
		action, err := ParseAction(tt.action)
		require.NoError(t, err, tt.action)
		got, err := n.Apply(action, tt.current)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.action)
	}

	_, err := ParseAction("sideways")
	assert.True(t, comic.IsKind(err, comic.ErrInvalidInput))
	_, err = n.Apply(Action("sideways"), "")
	assert.Error(t, err)
}
