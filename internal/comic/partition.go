package comic

import (
	"fmt"
	"slices"
)

// Partition splits a full date-keyed dataset into year shards and derives
// the matching GlobalIndex. Index dates are in ascending order.
func Partition(all map[string]Record) (map[string]YearShard, GlobalIndex, error) {
	dates := make([]string, 0, len(all))
	for date := range all {
		if !ValidDate(date) {
			return nil, GlobalIndex{}, NewError(ErrInvalidInput, fmt.Sprintf("invalid date key %q", date))
		}
		dates = append(dates, date)
	}
	slices.Sort(dates)

	shards := make(map[string]YearShard)
	idx := GlobalIndex{
		Years: make([]string, 0),
		Dates: make([]DateSummary, 0, len(dates)),
	}
	for _, date := range dates {
		year := YearOf(date)
		shard, ok := shards[year]
		if !ok {
			shard = make(YearShard)
			shards[year] = shard
			idx.Years = append(idx.Years, year)
		}
		rec := all[date]
		rec.Date = date
		shard[date] = rec
		idx.Dates = append(idx.Dates, DateSummary{
			Date:  date,
			Title: rec.Title,
			Year:  year,
		})
	}
	if n := len(idx.Years); n > 0 {
		idx.LatestYear = idx.Years[n-1]
	}
	return shards, idx, nil
}
