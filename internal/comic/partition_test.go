package comic

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomDataset(r *rand.Rand, n int) map[string]Record {
	start := time.Date(1989, 4, 16, 0, 0, 0, 0, time.UTC)
	ret := make(map[string]Record, n)
	for len(ret) < n {
		day := start.AddDate(0, 0, r.IntN(34*365))
		date := day.Format(dateLayout)
		ret[date] = Record{
			Title:      fmt.Sprintf("strip %d", r.IntN(1000)),
			Transcript: "line one\nline two",
		}
	}
	return ret
}

func TestPartition_UnionMatchesIndex(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(7, 11))
	for iter := range 50 {
		all := randomDataset(r, 1+r.IntN(300))

		shards, idx, err := Partition(all)
		require.NoError(t, err)
		require.NoError(t, idx.Validate(), "iteration %d", iter)

		union := make(map[string]string)
		for year, shard := range shards {
			for date, rec := range shard {
				prev, dup := union[date]
				require.False(t, dup, "date %s in shards %s and %s", date, prev, year)
				union[date] = year
				assert.Equal(t, year, YearOf(date))
				assert.Equal(t, date, rec.Date)
			}
		}

		indexDates := make([]string, 0, len(idx.Dates))
		for _, d := range idx.Dates {
			indexDates = append(indexDates, d.Date)
		}
		unionDates := make([]string, 0, len(union))
		for date := range union {
			unionDates = append(unionDates, date)
		}
		slices.Sort(unionDates)

		assert.Equal(t, unionDates, indexDates)
		assert.Len(t, idx.Years, len(shards))
		assert.Equal(t, slices.Max(idx.Years), idx.LatestYear)
	}
}

func TestPartition_RejectsBadDate(t *testing.T) {
	_, _, err := Partition(map[string]Record{"89-04-16": {Title: "x"}})
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrInvalidInput))
}

func TestPartition_Empty(t *testing.T) {
	shards, idx, err := Partition(map[string]Record{})
	require.NoError(t, err)
	assert.Empty(t, shards)
	assert.Empty(t, idx.Dates)
	assert.Equal(t, "", idx.LatestYear)
	assert.NoError(t, idx.Validate())
}

func TestGlobalIndex_Validate(t *testing.T) {
	tests := []struct {
		name    string
		idx     GlobalIndex
		wantErr bool
	}{
		{
			name: "valid",
			idx: GlobalIndex{
				Years:      []string{"1989", "1990"},
				Dates:      []DateSummary{{Date: "1989-04-16", Year: "1989"}, {Date: "1990-01-01", Year: "1990"}},
				LatestYear: "1990",
			},
		},
		{
			name: "latest year mismatch",
			idx: GlobalIndex{
				Years:      []string{"1989", "1990"},
				Dates:      []DateSummary{{Date: "1989-04-16", Year: "1989"}},
				LatestYear: "1989",
			},
			wantErr: true,
		},
		{
			name: "year tag mismatch",
			idx: GlobalIndex{
				Years:      []string{"1989"},
				Dates:      []DateSummary{{Date: "1989-04-16", Year: "1990"}},
				LatestYear: "1989",
			},
			wantErr: true,
		},
		{
			name: "duplicate date",
			idx: GlobalIndex{
				Years:      []string{"1989"},
				Dates:      []DateSummary{{Date: "1989-04-16", Year: "1989"}, {Date: "1989-04-16", Year: "1989"}},
				LatestYear: "1989",
			},
			wantErr: true,
		},
		{
			name: "unsorted years",
			idx: GlobalIndex{
				Years:      []string{"1990", "1989"},
				LatestYear: "1989",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.idx.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
