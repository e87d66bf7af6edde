// Package config loads and validates palank-rag configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Config file (<data-dir>/config.yaml, or $PALANK_CONFIG)
//  3. Environment variables (PALANK_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Valid embedding output dimensions for gemini-embedding-001.
var validDimensions = map[int]bool{768: true, 1536: true, 3072: true}

// Config represents the complete palank-rag configuration.
type Config struct {
	// DataDir is where the knowledge base lives (knowledge.db, vectors
	// snapshot, logs). Default: ~/.palank-rag
	DataDir string `yaml:"data_dir"`

	Search     SearchConfig     `yaml:"search"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Scraper    ScraperConfig    `yaml:"scraper"`
	Collector  CollectorConfig  `yaml:"collector"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// SearchConfig configures hybrid search parameters.
type SearchConfig struct {
	// KeywordBackend selects the keyword index backend.
	// Options: "sqlite" (default, FTS5) or "bleve" (legacy).
	KeywordBackend string `yaml:"keyword_backend"`

	// RRFConstant is the RRF smoothing parameter (k). Default: 60.
	RRFConstant int `yaml:"rrf_constant"`

	// Overfetch is the per-backend candidate multiplier applied to the
	// requested limit before fusion. Default: 2.
	Overfetch int `yaml:"overfetch"`

	// MaxResults is the default result limit for queries. Default: 5.
	MaxResults int `yaml:"max_results"`
}

// ChunkerConfig configures document chunking.
type ChunkerConfig struct {
	MinSize     int `yaml:"min_size"`
	MaxSize     int `yaml:"max_size"`
	OverlapSize int `yaml:"overlap_size"`
}

// EmbeddingsConfig configures the Gemini embedding client.
type EmbeddingsConfig struct {
	// Model is the embedding model identifier.
	Model string `yaml:"model"`

	// Dimensions is the embedding output dimensionality (768, 1536, 3072).
	Dimensions int `yaml:"dimensions"`

	// RequestsPerWindow caps calls inside one sliding window. Default: 60.
	RequestsPerWindow int `yaml:"requests_per_window"`

	// Window is the sliding window duration (e.g. "60s").
	Window string `yaml:"window"`

	// MinDelay is the minimum delay between consecutive calls (e.g. "1s").
	MinDelay string `yaml:"min_delay"`

	// MaxRetries is the retry budget for rate-limited or transport-failed
	// calls. Default: 3.
	MaxRetries int `yaml:"max_retries"`

	// BackoffBase is the initial retry backoff, doubled per attempt
	// (e.g. "2s").
	BackoffBase string `yaml:"backoff_base"`

	// Timeout is the per-request HTTP timeout (e.g. "30s").
	Timeout string `yaml:"timeout"`

	// CacheSize is the LRU embedding cache capacity. Default: 1000.
	CacheSize int `yaml:"cache_size"`
}

// ScraperConfig configures the web scraper.
type ScraperConfig struct {
	// Timeout is the per-fetch HTTP timeout (e.g. "30s").
	Timeout string `yaml:"timeout"`

	// UserAgent is sent with every fetch.
	UserAgent string `yaml:"user_agent"`

	// MinFetchInterval paces consecutive fetches (e.g. "500ms").
	MinFetchInterval string `yaml:"min_fetch_interval"`
}

// CollectorConfig configures directory ingestion.
type CollectorConfig struct {
	// RespectGitignore skips paths matched by .gitignore files.
	RespectGitignore bool `yaml:"respect_gitignore"`

	// IncludeHidden includes dotfiles and dot-directories.
	IncludeHidden bool `yaml:"include_hidden"`

	// MaxFileSize in bytes; 0 means no limit. Default: 10MB.
	MaxFileSize int64 `yaml:"max_file_size"`

	// Extensions restricts collection to these extensions (without dot);
	// empty means all supported extensions.
	Extensions []string `yaml:"extensions"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Search: SearchConfig{
			KeywordBackend: "sqlite",
			// k=60 is the standard RRF constant
			RRFConstant: 60,
			Overfetch:   2,
			MaxResults:  5,
		},
		Chunker: ChunkerConfig{
			MinSize:     200,
			MaxSize:     1200,
			OverlapSize: 100,
		},
		Embeddings: EmbeddingsConfig{
			Model:             "gemini-embedding-001",
			Dimensions:        768,
			RequestsPerWindow: 60,
			Window:            "60s",
			MinDelay:          "1s",
			MaxRetries:        3,
			BackoffBase:       "2s",
			Timeout:           "30s",
			CacheSize:         1000,
		},
		Scraper: ScraperConfig{
			Timeout:          "30s",
			UserAgent:        "palank-rag/1.0 (+https://github.com/PALAN-K/palank-rag)",
			MinFetchInterval: "500ms",
		},
		Collector: CollectorConfig{
			RespectGitignore: true,
			IncludeHidden:    false,
			MaxFileSize:      10 * 1024 * 1024,
			Extensions:       nil,
		},
		LogLevel: "info",
	}
}

// DefaultDataDir returns ~/.palank-rag, falling back to the temp directory
// when the home directory cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".palank-rag")
	}
	return filepath.Join(home, ".palank-rag")
}

// ConfigFilePath returns the config file location: $PALANK_CONFIG if set,
// otherwise <default-data-dir>/config.yaml.
func ConfigFilePath() string {
	if p := os.Getenv("PALANK_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// Load builds the effective configuration: defaults, then the config file if
// present, then environment overrides, then validation.
func Load() (*Config, error) {
	cfg := NewConfig()

	path := ConfigFilePath()
	if _, err := os.Stat(path); err == nil {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadYAML merges configuration from a YAML file over the current values.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}

	if other.Search.KeywordBackend != "" {
		c.Search.KeywordBackend = other.Search.KeywordBackend
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.Overfetch != 0 {
		c.Search.Overfetch = other.Search.Overfetch
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	if other.Chunker.MinSize != 0 {
		c.Chunker.MinSize = other.Chunker.MinSize
	}
	if other.Chunker.MaxSize != 0 {
		c.Chunker.MaxSize = other.Chunker.MaxSize
	}
	if other.Chunker.OverlapSize != 0 {
		c.Chunker.OverlapSize = other.Chunker.OverlapSize
	}

	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.RequestsPerWindow != 0 {
		c.Embeddings.RequestsPerWindow = other.Embeddings.RequestsPerWindow
	}
	if other.Embeddings.Window != "" {
		c.Embeddings.Window = other.Embeddings.Window
	}
	if other.Embeddings.MinDelay != "" {
		c.Embeddings.MinDelay = other.Embeddings.MinDelay
	}
	if other.Embeddings.MaxRetries != 0 {
		c.Embeddings.MaxRetries = other.Embeddings.MaxRetries
	}
	if other.Embeddings.BackoffBase != "" {
		c.Embeddings.BackoffBase = other.Embeddings.BackoffBase
	}
	if other.Embeddings.Timeout != "" {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Scraper.Timeout != "" {
		c.Scraper.Timeout = other.Scraper.Timeout
	}
	if other.Scraper.UserAgent != "" {
		c.Scraper.UserAgent = other.Scraper.UserAgent
	}
	if other.Scraper.MinFetchInterval != "" {
		c.Scraper.MinFetchInterval = other.Scraper.MinFetchInterval
	}

	// Booleans cannot distinguish unset from false; only override the
	// gitignore/hidden flags when some collector field was provided.
	if other.Collector.MaxFileSize != 0 || len(other.Collector.Extensions) > 0 {
		c.Collector.RespectGitignore = other.Collector.RespectGitignore
		c.Collector.IncludeHidden = other.Collector.IncludeHidden
	}
	if other.Collector.MaxFileSize != 0 {
		c.Collector.MaxFileSize = other.Collector.MaxFileSize
	}
	if len(other.Collector.Extensions) > 0 {
		c.Collector.Extensions = other.Collector.Extensions
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// applyEnvOverrides applies PALANK_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PALANK_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("PALANK_KEYWORD_BACKEND"); v != "" {
		c.Search.KeywordBackend = v
	}
	if v := os.Getenv("PALANK_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("PALANK_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("PALANK_EMBED_DIMENSIONS"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			c.Embeddings.Dimensions = d
		}
	}
	if v := os.Getenv("PALANK_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Search.KeywordBackend) {
	case "sqlite", "bleve":
	default:
		return fmt.Errorf("search.keyword_backend must be 'sqlite' or 'bleve', got %s", c.Search.KeywordBackend)
	}

	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.Overfetch < 1 {
		return fmt.Errorf("search.overfetch must be at least 1, got %d", c.Search.Overfetch)
	}
	if c.Search.MaxResults < 1 {
		return fmt.Errorf("search.max_results must be at least 1, got %d", c.Search.MaxResults)
	}

	if c.Chunker.MinSize < 0 || c.Chunker.MaxSize < 0 || c.Chunker.OverlapSize < 0 {
		return fmt.Errorf("chunker sizes must be non-negative")
	}
	if c.Chunker.MaxSize > 0 && c.Chunker.OverlapSize >= c.Chunker.MaxSize {
		return fmt.Errorf("chunker.overlap_size (%d) must be smaller than chunker.max_size (%d)",
			c.Chunker.OverlapSize, c.Chunker.MaxSize)
	}

	if !validDimensions[c.Embeddings.Dimensions] {
		return fmt.Errorf("embeddings.dimensions must be 768, 1536, or 3072, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.RequestsPerWindow < 1 {
		return fmt.Errorf("embeddings.requests_per_window must be at least 1, got %d", c.Embeddings.RequestsPerWindow)
	}
	if c.Embeddings.MaxRetries < 0 {
		return fmt.Errorf("embeddings.max_retries must be non-negative, got %d", c.Embeddings.MaxRetries)
	}
	for _, d := range []struct {
		name  string
		value string
	}{
		{"embeddings.window", c.Embeddings.Window},
		{"embeddings.min_delay", c.Embeddings.MinDelay},
		{"embeddings.backoff_base", c.Embeddings.BackoffBase},
		{"embeddings.timeout", c.Embeddings.Timeout},
		{"scraper.timeout", c.Scraper.Timeout},
		{"scraper.min_fetch_interval", c.Scraper.MinFetchInterval},
	} {
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("%s is not a valid duration: %q", d.name, d.value)
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}

	return nil
}

// Duration helpers. Validate guarantees these parse; zero is returned on a
// malformed value so misuse stays visible in tests.

// WindowDuration returns the sliding window length.
func (e EmbeddingsConfig) WindowDuration() time.Duration { return parseDuration(e.Window) }

// MinDelayDuration returns the minimum inter-call delay.
func (e EmbeddingsConfig) MinDelayDuration() time.Duration { return parseDuration(e.MinDelay) }

// BackoffBaseDuration returns the initial retry backoff.
func (e EmbeddingsConfig) BackoffBaseDuration() time.Duration { return parseDuration(e.BackoffBase) }

// TimeoutDuration returns the per-request HTTP timeout.
func (e EmbeddingsConfig) TimeoutDuration() time.Duration { return parseDuration(e.Timeout) }

// TimeoutDuration returns the per-fetch HTTP timeout.
func (s ScraperConfig) TimeoutDuration() time.Duration { return parseDuration(s.Timeout) }

// MinFetchIntervalDuration returns the pacing interval between fetches.
func (s ScraperConfig) MinFetchIntervalDuration() time.Duration {
	return parseDuration(s.MinFetchInterval)
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
