package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/feedsearch/internal/logging"
)

// ProjectConfigName is the per-directory config file name.
const ProjectConfigName = ".feedsearch.yaml"

// Queue drivers accepted by queue.driver.
const (
	DriverSQLite  = "sqlite"  // modernc.org/sqlite, pure Go
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3, cgo
)

// Config represents the complete feedsearch configuration.
type Config struct {
	Version int          `yaml:"version" json:"version"`
	Paths   PathsConfig  `yaml:"paths" json:"paths"`
	Index   IndexConfig  `yaml:"index" json:"index"`
	Queue   QueueConfig  `yaml:"queue" json:"queue"`
	Search  SearchConfig `yaml:"search" json:"search"`
	Log     LogConfig    `yaml:"log" json:"log"`
}

// PathsConfig configures where persistent state lives.
type PathsConfig struct {
	// DataDir holds outstanding.db and articles.bleve.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// IndexConfig configures the full-text index and its flush policy.
type IndexConfig struct {
	// MaxClauseCount is the largest number of children any boolean node
	// may carry. Larger condition sets are nested to stay under it.
	MaxClauseCount int `yaml:"max_clause_count" json:"max_clause_count"`

	// FlushBatchSize is the number of outstanding entries applied per batch.
	FlushBatchSize int `yaml:"flush_batch_size" json:"flush_batch_size"`

	// FlushInterval enables a background flush ticker ("0" or "" disables it).
	FlushInterval string `yaml:"flush_interval" json:"flush_interval"`

	// FlushOnShutdown flushes pending work before the index is closed.
	FlushOnShutdown bool `yaml:"flush_on_shutdown" json:"flush_on_shutdown"`

	// ReindexWorkers bounds parallel document building during ReindexAll.
	ReindexWorkers int `yaml:"reindex_workers" json:"reindex_workers"`

	// OpenRetries is the number of retries when the index is busy at startup.
	OpenRetries int `yaml:"open_retries" json:"open_retries"`
}

// QueueConfig configures the durable outstanding-work queue.
type QueueConfig struct {
	// Driver selects the database/sql driver: "sqlite" or "sqlite3".
	Driver string `yaml:"driver" json:"driver"`
}

// SearchConfig configures query compilation and result limits.
type SearchConfig struct {
	// TokenCacheSize is the number of tokenized values kept in the LRU.
	TokenCacheSize int `yaml:"token_cache_size" json:"token_cache_size"`

	// MaxResults caps the hits returned per search (0 = unlimited).
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}

	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: filepath.Join(logging.BaseDir(), "data"),
		},
		Index: IndexConfig{
			MaxClauseCount:  1024,
			FlushBatchSize:  256,
			FlushInterval:   "0",
			FlushOnShutdown: true,
			ReindexWorkers:  workers,
			OpenRetries:     3,
		},
		Queue: QueueConfig{
			Driver: DriverSQLite,
		},
		Search: SearchConfig{
			TokenCacheSize: 512,
			MaxResults:     0,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// FlushIntervalDuration parses Index.FlushInterval. Zero disables the ticker.
func (c *Config) FlushIntervalDuration() time.Duration {
	v := strings.TrimSpace(c.Index.FlushInterval)
	if v == "" || v == "0" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/feedsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/feedsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "feedsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "feedsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "feedsearch", "config.yaml")
}

// Load loads configuration for the given directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config ($XDG_CONFIG_HOME/feedsearch/config.yaml)
//  3. Project config (.feedsearch.yaml in dir)
//  4. Environment variables (FEEDSEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if dir != "" {
		if path := filepath.Join(dir, ProjectConfigName); fileExists(path) {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML decodes path on top of the current values, so keys absent from
// the file keep their previous layer's value.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	parsed := *c
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	*c = parsed
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("FEEDSEARCH_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("FEEDSEARCH_FLUSH_INTERVAL"); v != "" {
		c.Index.FlushInterval = v
	}
	if v := os.Getenv("FEEDSEARCH_QUEUE_DRIVER"); v != "" {
		c.Queue.Driver = v
	}
	if v := os.Getenv("FEEDSEARCH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("FEEDSEARCH_FLUSH_ON_SHUTDOWN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FEEDSEARCH_FLUSH_ON_SHUTDOWN: %w", err)
		}
		c.Index.FlushOnShutdown = b
	}

	ints := []struct {
		env    string
		target *int
	}{
		{"FEEDSEARCH_MAX_CLAUSE_COUNT", &c.Index.MaxClauseCount},
		{"FEEDSEARCH_FLUSH_BATCH_SIZE", &c.Index.FlushBatchSize},
		{"FEEDSEARCH_REINDEX_WORKERS", &c.Index.ReindexWorkers},
		{"FEEDSEARCH_OPEN_RETRIES", &c.Index.OpenRetries},
		{"FEEDSEARCH_TOKEN_CACHE_SIZE", &c.Search.TokenCacheSize},
		{"FEEDSEARCH_MAX_RESULTS", &c.Search.MaxResults},
	}
	for _, o := range ints {
		v := os.Getenv(o.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", o.env, err)
		}
		*o.target = n
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir must not be empty")
	}
	if c.Index.MaxClauseCount < 2 {
		return fmt.Errorf("index.max_clause_count must be at least 2, got %d", c.Index.MaxClauseCount)
	}
	if c.Index.FlushBatchSize <= 0 {
		return fmt.Errorf("index.flush_batch_size must be positive, got %d", c.Index.FlushBatchSize)
	}
	if v := strings.TrimSpace(c.Index.FlushInterval); v != "" && v != "0" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("index.flush_interval: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("index.flush_interval must be non-negative, got %s", v)
		}
	}
	if c.Index.ReindexWorkers <= 0 {
		return fmt.Errorf("index.reindex_workers must be positive, got %d", c.Index.ReindexWorkers)
	}
	if c.Index.OpenRetries < 0 {
		return fmt.Errorf("index.open_retries must be non-negative, got %d", c.Index.OpenRetries)
	}
	switch c.Queue.Driver {
	case DriverSQLite, DriverSQLite3:
	default:
		return fmt.Errorf("queue.driver must be 'sqlite' or 'sqlite3', got %s", c.Queue.Driver)
	}
	if c.Search.TokenCacheSize <= 0 {
		return fmt.Errorf("search.token_cache_size must be positive, got %d", c.Search.TokenCacheSize)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Log.Level)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
