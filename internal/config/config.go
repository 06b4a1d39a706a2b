// Package config loads and validates logseek configuration.
//
// Configuration is resolved in priority order:
//  1. Environment variables (LOGSEEK_*) — highest priority
//  2. Config file (logseek.yaml, or path given via --config)
//  3. Built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default values for scalar knobs.
const (
	DefaultBatchSize     = 10000
	DefaultSearchLimit   = 30
	MaxSearchLimit       = 100
	DefaultMaxFileSizeMB = 100
	DefaultWatchDebounce = "500ms"
)

// Config represents the complete logseek configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Index  IndexConfig  `yaml:"index"`
	Import ImportConfig `yaml:"import"`
	Search SearchConfig `yaml:"search"`
	Gate   GateConfig   `yaml:"gate"`
	Watch  WatchConfig  `yaml:"watch"`
	Log    LogConfig    `yaml:"log"`
}

// StoreConfig configures the record store location.
type StoreConfig struct {
	// Path is the SQLite store file holding records and index structures.
	Path string `yaml:"path"`
}

// IndexConfig configures the full-text index.
type IndexConfig struct {
	// Backend selects the text index backend.
	// Options: "fts5" (default, index commits in the record transaction)
	// or "bleve" (separate index directory, reconciled on open).
	Backend string `yaml:"backend"`
}

// ImportConfig configures the bulk importer.
type ImportConfig struct {
	// BatchSize is the number of records per atomic commit (default: 10000).
	BatchSize int `yaml:"batch_size"`

	// Dedupe enables content-fingerprint deduplication (default: true).
	Dedupe bool `yaml:"dedupe"`

	// MaxRecordSize is the per-line byte ceiling. Lines above it are
	// counted as capacity-exceeded and skipped. 0 disables the ceiling.
	MaxRecordSize int `yaml:"max_record_size"`

	// MaxFileSizeMB is the largest file the watch spool will accept.
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
}

// SearchConfig configures the query engine.
type SearchConfig struct {
	// Limit is the default result page size (default: 30, capped at 100).
	Limit int `yaml:"limit"`
}

// GateConfig configures the admission gate for search calls.
type GateConfig struct {
	// RateLimit is the minimum interval between searches per caller,
	// e.g. "1s". Empty disables the gate.
	RateLimit string `yaml:"rate_limit"`

	// MaxCallers bounds the per-caller state table (default: 4096).
	MaxCallers int `yaml:"max_callers"`
}

// WatchConfig configures the spool directory watcher.
type WatchConfig struct {
	// Dir is the directory watched for dropped log files.
	Dir string `yaml:"dir"`

	// Debounce is the settle time before a new file is imported.
	Debounce string `yaml:"debounce"`

	// Extensions lists accepted file suffixes.
	Extensions []string `yaml:"extensions"`
}

// LogConfig configures process logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Store: StoreConfig{
			Path: DefaultStorePath(),
		},
		Index: IndexConfig{
			Backend: "fts5",
		},
		Import: ImportConfig{
			BatchSize:     DefaultBatchSize,
			Dedupe:        true,
			MaxRecordSize: 0,
			MaxFileSizeMB: DefaultMaxFileSizeMB,
		},
		Search: SearchConfig{
			Limit: DefaultSearchLimit,
		},
		Gate: GateConfig{
			RateLimit:  "1s",
			MaxCallers: 4096,
		},
		Watch: WatchConfig{
			Debounce:   DefaultWatchDebounce,
			Extensions: []string{".txt", ".log", ".csv", ".gz"},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultStorePath returns the default store file location (~/.logseek/records.db).
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "logseek", "records.db")
	}
	return filepath.Join(home, ".logseek", "records.db")
}

// Load reads configuration from the given file path, falling back to
// defaults when the path is empty or the file does not exist, then
// applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := New()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies LOGSEEK_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LOGSEEK_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("LOGSEEK_INDEX_BACKEND"); v != "" {
		c.Index.Backend = v
	}
	if v := os.Getenv("LOGSEEK_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Import.BatchSize = n
		}
	}
	if v := os.Getenv("LOGSEEK_DEDUPE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Import.Dedupe = b
		}
	}
	if v := os.Getenv("LOGSEEK_MAX_RECORD_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Import.MaxRecordSize = n
		}
	}
	if v := os.Getenv("LOGSEEK_SEARCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.Limit = n
		}
	}
	if v := os.Getenv("LOGSEEK_RATE_LIMIT"); v != "" {
		c.Gate.RateLimit = v
	}
	if v := os.Getenv("LOGSEEK_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks configuration values, clamping soft limits and
// rejecting values that would break the engine.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}

	switch strings.ToLower(c.Index.Backend) {
	case "", "fts5", "bleve":
	default:
		return fmt.Errorf("index.backend must be \"fts5\" or \"bleve\", got %q", c.Index.Backend)
	}

	if c.Import.BatchSize <= 0 {
		c.Import.BatchSize = DefaultBatchSize
	}
	if c.Import.MaxRecordSize < 0 {
		c.Import.MaxRecordSize = 0
	}

	if c.Search.Limit <= 0 {
		c.Search.Limit = DefaultSearchLimit
	}
	if c.Search.Limit > MaxSearchLimit {
		c.Search.Limit = MaxSearchLimit
	}

	if c.Gate.MaxCallers <= 0 {
		c.Gate.MaxCallers = 4096
	}

	return nil
}

// Save writes the configuration to the given path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
