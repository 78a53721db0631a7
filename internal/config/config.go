package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/comicshelf/internal/shardstore"
	"github.com/MimeLyc/comicshelf/internal/source"
	"github.com/MimeLyc/comicshelf/pkg/file"
	"github.com/MimeLyc/comicshelf/pkg/log"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// Dataset:
// - COMICSHELF_BASE_URL: Root URL of the published dataset (default: http://localhost:5173/)
// - COMICSHELF_DATA_DIR: Read the dataset from this directory instead of over HTTP (optional)
// - COMICSHELF_INDEX_PATH: Index file relative to the root (default: comics-index.json)
// - COMICSHELF_SHARD_DIR: Directory of year shards relative to the root (default: comics-data)
// - COMICSHELF_HTTP_TIMEOUT: Request timeout in seconds (default: 15)
// - COMICSHELF_FETCH_RPS: Requests per second, 0 disables throttling (default: 4)
//
// Cache:
// - COMICSHELF_CACHE_BACKEND: sqlite, bolt, memory or none (default: sqlite)
// - COMICSHELF_CACHE_PATH: Cache database file (default: ~/.comicshelf/cache.db)
// - COMICSHELF_SCHEMA_VERSION: Stamp of cached records; changing it invalidates them (default: 1.0.0)
// - COMICSHELF_WARM_CRON: Schedule for refreshing the whole cache (optional)
//
// Preferences:
// - COMICSHELF_PREFS_FILE: Persisted viewer preferences (default: ~/.comicshelf/prefs.json)
type Config struct {
	Dataset DatasetConfig `json:"dataset"`
	Cache   CacheConfig   `json:"cache"`

	PrefsFile string `json:"prefs_file"`
}

type DatasetConfig struct {
	BaseURL           string  `json:"base_url"`
	DataDir           string  `json:"data_dir"`
	IndexPath         string  `json:"index_path"`
	ShardDir          string  `json:"shard_dir"`
	Timeout           int     `json:"timeout"`
	RequestsPerSecond float64 `json:"requests_per_second"`
}

type CacheConfig struct {
	Backend       string `json:"backend"`
	Path          string `json:"path"`
	SchemaVersion string `json:"schema_version"`
	WarmCron      string `json:"warm_cron"`
}

// Option is a function type for configuring Config
type Option func(*Config)

func WithDataDir(dir string) Option {
	return func(c *Config) {
		c.Dataset.DataDir = dir
	}
}

func WithCacheBackend(backend string) Option {
	return func(c *Config) {
		c.Cache.Backend = backend
	}
}

func WithCachePath(path string) Option {
	return func(c *Config) {
		c.Cache.Path = path
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Dataset: DatasetConfig{
			BaseURL:           getEnvString("COMICSHELF_BASE_URL", "http://localhost:5173/"),
			DataDir:           getEnvString("COMICSHELF_DATA_DIR", ""),
			IndexPath:         getEnvString("COMICSHELF_INDEX_PATH", source.DefaultLayout().IndexPath),
			ShardDir:          getEnvString("COMICSHELF_SHARD_DIR", source.DefaultLayout().ShardDir),
			Timeout:           getEnvInt("COMICSHELF_HTTP_TIMEOUT", 15),
			RequestsPerSecond: getEnvFloat("COMICSHELF_FETCH_RPS", 4),
		},
		Cache: CacheConfig{
			Backend:       getEnvString("COMICSHELF_CACHE_BACKEND", shardstore.BackendSQLite),
			Path:          getEnvString("COMICSHELF_CACHE_PATH", "~/.comicshelf/cache.db"),
			SchemaVersion: getEnvString("COMICSHELF_SCHEMA_VERSION", "1.0.0"),
			WarmCron:      getEnvString("COMICSHELF_WARM_CRON", ""),
		},
		PrefsFile: getEnvString("COMICSHELF_PREFS_FILE", "~/.comicshelf/prefs.json"),
	}

	for _, opt := range opts {
		opt(config)
	}

	config.Cache.Backend = strings.ToLower(strings.TrimSpace(config.Cache.Backend))
	config.Cache.Path = file.ExpandHome(config.Cache.Path)
	config.Dataset.DataDir = file.ExpandHome(config.Dataset.DataDir)
	config.PrefsFile = file.ExpandHome(config.PrefsFile)

	log.Debug("Config: %+v", config)

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case shardstore.BackendSQLite, shardstore.BackendBolt:
		if strings.TrimSpace(c.Cache.Path) == "" {
			return fmt.Errorf("COMICSHELF_CACHE_PATH is required for the %s backend", c.Cache.Backend)
		}
	case shardstore.BackendMemory, shardstore.BackendNone:
	default:
		return fmt.Errorf("unknown COMICSHELF_CACHE_BACKEND %q", c.Cache.Backend)
	}
	if strings.TrimSpace(c.Cache.SchemaVersion) == "" {
		return fmt.Errorf("COMICSHELF_SCHEMA_VERSION is required")
	}
	if c.Cache.WarmCron != "" {
		if _, err := cron.ParseStandard(c.Cache.WarmCron); err != nil {
			return fmt.Errorf("invalid COMICSHELF_WARM_CRON: %w", err)
		}
	}
	if c.Dataset.DataDir == "" && strings.TrimSpace(c.Dataset.BaseURL) == "" {
		return fmt.Errorf("either COMICSHELF_BASE_URL or COMICSHELF_DATA_DIR is required")
	}
	if c.Dataset.Timeout <= 0 {
		return fmt.Errorf("COMICSHELF_HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) Layout() source.Layout {
	return source.Layout{
		IndexPath: c.Dataset.IndexPath,
		ShardDir:  c.Dataset.ShardDir,
	}
}

func (c *Config) StoreOptions() shardstore.Options {
	return shardstore.Options{
		Backend:       c.Cache.Backend,
		Path:          c.Cache.Path,
		SchemaVersion: c.Cache.SchemaVersion,
	}
}

// NewSource builds the dataset source: a directory when DataDir is set,
// HTTP otherwise.
func (c *Config) NewSource() (source.Source, error) {
	if c.Dataset.DataDir != "" {
		return source.NewDirSource(c.Dataset.DataDir, c.Layout()), nil
	}
	return source.NewHTTPSource(source.HTTPConfig{
		BaseURL:           c.Dataset.BaseURL,
		Layout:            c.Layout(),
		Timeout:           time.Duration(c.Dataset.Timeout) * time.Second,
		RequestsPerSecond: c.Dataset.RequestsPerSecond,
	})
}

// ImageBase is the root local images are served from.
func (c *Config) ImageBase() string {
	if c.Dataset.DataDir != "" {
		return c.Dataset.DataDir
	}
	return c.Dataset.BaseURL
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
