package comic

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

const dateLayout = "2006-01-02"

// Record is a single dated comic strip. Records are produced offline and
// never mutated at runtime.
type Record struct {
	Date             string `json:"-"`
	Title            string `json:"title"`
	Transcript       string `json:"transcript"`
	Image            string `json:"image,omitempty"`
	OriginalImageURL string `json:"originalimageurl,omitempty"`
}

// YearShard maps ISO dates to the records published in one year.
type YearShard map[string]Record

// UnmarshalJSON decodes a date-keyed object and stamps each record with its key.
func (s *YearShard) UnmarshalJSON(data []byte) error {
	var raw map[string]Record
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for date, rec := range raw {
		rec.Date = date
		raw[date] = rec
	}
	*s = raw
	return nil
}

// Dates returns the shard's dates in ascending order.
func (s YearShard) Dates() []string {
	ret := make([]string, 0, len(s))
	for date := range s {
		ret = append(ret, date)
	}
	slices.Sort(ret)
	return ret
}

// DateSummary is the lightweight navigation entry for one comic.
type DateSummary struct {
	Date  string `json:"date"`
	Title string `json:"title"`
	Year  string `json:"year"`
}

// GlobalIndex summarises every year and date of the dataset without
// carrying transcripts.
type GlobalIndex struct {
	Years      []string      `json:"years"`
	Dates      []DateSummary `json:"dates"`
	LatestYear string        `json:"latestYear"`
}

// Validate checks the derived-metadata invariants of the index.
func (idx GlobalIndex) Validate() error {
	if len(idx.Years) == 0 {
		if len(idx.Dates) > 0 || idx.LatestYear != "" {
			return fmt.Errorf("index has dates but no years")
		}
		return nil
	}
	if !slices.IsSorted(idx.Years) {
		return fmt.Errorf("years are not in ascending order")
	}
	if latest := idx.Years[len(idx.Years)-1]; idx.LatestYear != latest {
		return fmt.Errorf("latestYear %q does not match max year %q", idx.LatestYear, latest)
	}
	years := make(map[string]struct{}, len(idx.Years))
	for _, y := range idx.Years {
		years[y] = struct{}{}
	}
	seen := make(map[string]struct{}, len(idx.Dates))
	for _, d := range idx.Dates {
		if !ValidDate(d.Date) {
			return fmt.Errorf("invalid date %q", d.Date)
		}
		if d.Year != YearOf(d.Date) {
			return fmt.Errorf("date %s is tagged with year %q", d.Date, d.Year)
		}
		if _, ok := years[d.Year]; !ok {
			return fmt.Errorf("date %s belongs to unlisted year %s", d.Date, d.Year)
		}
		if _, dup := seen[d.Date]; dup {
			return fmt.Errorf("date %s listed twice", d.Date)
		}
		seen[d.Date] = struct{}{}
	}
	return nil
}

// ValidDate reports whether s is a zero-padded ISO calendar date.
func ValidDate(s string) bool {
	if len(s) != len(dateLayout) {
		return false
	}
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// YearOf returns the year key of an ISO date, or "" for short input.
func YearOf(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}
