package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/MimeLyc/comicshelf/internal/comic"
)

// HTTPConfig configures an HTTPSource.
//
// RequestsPerSecond limits outgoing requests; zero or less disables the limit.
type HTTPConfig struct {
	BaseURL           string
	Layout            Layout
	Timeout           time.Duration
	RequestsPerSecond float64
	Client            *http.Client
}

// HTTPSource reads a dataset published as static JSON files.
type HTTPSource struct {
	baseURL    string
	layout     Layout
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPSource creates a source rooted at cfg.BaseURL.
//
// Example:
//
//	src, err := source.NewHTTPSource(source.HTTPConfig{BaseURL: "https://example.org/"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	idx, err := src.FetchIndex(ctx)
func NewHTTPSource(cfg HTTPConfig) (*HTTPSource, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", cfg.BaseURL)
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &HTTPSource{
		baseURL:    cfg.BaseURL,
		layout:     cfg.Layout.withDefaults(),
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 2),
	}, nil
}

func (s *HTTPSource) FetchIndex(ctx context.Context) (comic.GlobalIndex, error) {
	var idx comic.GlobalIndex
	if err := s.getJSON(ctx, &idx, s.layout.IndexPath); err != nil {
		return comic.GlobalIndex{}, err
	}
	return checkIndex(idx)
}

func (s *HTTPSource) FetchYear(ctx context.Context, year string) (comic.YearShard, error) {
	if err := checkYear(year); err != nil {
		return nil, err
	}
	var shard comic.YearShard
	if err := s.getJSON(ctx, &shard, s.layout.ShardDir, ShardFile(year)); err != nil {
		return nil, err
	}
	return shard, nil
}

func (s *HTTPSource) getJSON(ctx context.Context, v any, elem ...string) error {
	target, err := url.JoinPath(s.baseURL, elem...)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{URL: target, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	return nil
}
