// Package search does a linear, case-insensitive substring scan over the
// loaded dataset.
package search

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/MimeLyc/comicshelf/internal/comic"
	"github.com/MimeLyc/comicshelf/internal/loader"
)

const (
	contextRunes = 25
	previewRunes = 50
	ellipsis     = "..."
)

type Hit struct {
	Date    string
	Record  comic.Record
	Excerpt string
}

// Search returns every record whose title or transcript contains term,
// ignoring case, in ascending date order. A blank term matches nothing.
func Search(ds *comic.Dataset, term string) []Hit {
	if strings.TrimSpace(term) == "" || ds == nil {
		return nil
	}
	lower := cases.Lower(language.Und)
	needle := lower.String(term)

	var hits []Hit
	for date, rec := range ds.All() {
		transcript := lower.String(Normalize(rec.Transcript))
		inTranscript := strings.Index(transcript, needle)
		if inTranscript < 0 && !strings.Contains(lower.String(rec.Title), needle) {
			continue
		}

		var excerpt string
		if inTranscript >= 0 {
			excerpt = window(transcript, inTranscript, len(needle))
		} else {
			excerpt = prefix(transcript, previewRunes) + ellipsis
		}
		hits = append(hits, Hit{Date: date, Record: rec, Excerpt: excerpt})
	}
	return hits
}

// Normalize collapses every run of Unicode whitespace, newlines and
// no-break spaces included, to one space.
func Normalize(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	if len(fields) == 0 {
		if s == "" {
			return ""
		}
		return " "
	}

	var b strings.Builder
	b.Grow(len(s))
	if r, _ := utf8.DecodeRuneInString(s); unicode.IsSpace(r) {
		b.WriteByte(' ')
	}
	b.WriteString(strings.Join(fields, " "))
	if r, _ := utf8.DecodeLastRuneInString(s); unicode.IsSpace(r) {
		b.WriteByte(' ')
	}
	return b.String()
}

// window cuts contextRunes runes either side of the match at byte offset
// start with byte length n, marking truncated ends with an ellipsis.
func window(s string, start, n int) string {
	before := []rune(s[:start])
	after := []rune(s[start+n:])

	from := max(0, len(before)-contextRunes)
	to := min(len(after), contextRunes)

	var b strings.Builder
	if from > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(string(before[from:]))
	b.WriteString(s[start : start+n])
	b.WriteString(string(after[:to]))
	if to < len(after) {
		b.WriteString(ellipsis)
	}
	return b.String()
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Loader is the part of *loader.Loader the Engine needs.
type Loader interface {
	LoadAll(ctx context.Context) (loader.LoadReport, error)
	Snapshot() *comic.Dataset
}

type Options struct {
	// AllYears loads every year before scanning; otherwise only years
	// already in memory are searched.
	AllYears bool
	// Limit caps the number of hits; zero means no cap.
	Limit int
}

// Engine searches whatever a loader has merged.
type Engine struct {
	loader Loader
}

func NewEngine(l Loader) *Engine {
	return &Engine{loader: l}
}

func (e *Engine) Search(ctx context.Context, term string, opts Options) ([]Hit, error) {
	if strings.TrimSpace(term) == "" {
		return nil, nil
	}
	if opts.AllYears {
		if _, err := e.loader.LoadAll(ctx); err != nil {
			return nil, err
		}
	}
	hits := Search(e.loader.Snapshot(), term)
	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}
