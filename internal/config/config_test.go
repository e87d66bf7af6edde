package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_DefaultsAreValid(t *testing.T) {
	cfg := NewConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Search.KeywordBackend)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 2, cfg.Search.Overfetch)
	assert.Equal(t, 200, cfg.Chunker.MinSize)
	assert.Equal(t, 1200, cfg.Chunker.MaxSize)
	assert.Equal(t, 100, cfg.Chunker.OverlapSize)
	assert.Equal(t, "gemini-embedding-001", cfg.Embeddings.Model)
	assert.Equal(t, 768, cfg.Embeddings.Dimensions)
}

func TestDurationHelpers(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 60*time.Second, cfg.Embeddings.WindowDuration())
	assert.Equal(t, time.Second, cfg.Embeddings.MinDelayDuration())
	assert.Equal(t, 2*time.Second, cfg.Embeddings.BackoffBaseDuration())
	assert.Equal(t, 30*time.Second, cfg.Embeddings.TimeoutDuration())
	assert.Equal(t, 500*time.Millisecond, cfg.Scraper.MinFetchIntervalDuration())
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			"unknown backend",
			func(c *Config) { c.Search.KeywordBackend = "postgres" },
			"keyword_backend",
		},
		{
			"zero rrf constant",
			func(c *Config) { c.Search.RRFConstant = 0 },
			"rrf_constant",
		},
		{
			"overlap not below max",
			func(c *Config) { c.Chunker.OverlapSize = c.Chunker.MaxSize },
			"overlap_size",
		},
		{
			"unsupported dimension",
			func(c *Config) { c.Embeddings.Dimensions = 512 },
			"dimensions",
		},
		{
			"garbage duration",
			func(c *Config) { c.Embeddings.MinDelay = "soon" },
			"min_delay",
		},
		{
			"bad log level",
			func(c *Config) { c.LogLevel = "loud" },
			"log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_AcceptsAllDimensions(t *testing.T) {
	for _, d := range []int{768, 1536, 3072} {
		cfg := NewConfig()
		cfg.Embeddings.Dimensions = d
		assert.NoError(t, cfg.Validate(), "dimension %d", d)
	}
}

func TestLoadYAML_MergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data_dir: /tmp/kb
search:
  keyword_backend: bleve
  max_results: 10
chunker:
  max_size: 1500
embeddings:
  dimensions: 1536
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := NewConfig()
	require.NoError(t, cfg.loadYAML(path))

	assert.Equal(t, "/tmp/kb", cfg.DataDir)
	assert.Equal(t, "bleve", cfg.Search.KeywordBackend)
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, 1500, cfg.Chunker.MaxSize)
	assert.Equal(t, 1536, cfg.Embeddings.Dimensions)

	// Untouched values keep their defaults.
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 200, cfg.Chunker.MinSize)
	assert.Equal(t, "gemini-embedding-001", cfg.Embeddings.Model)
}

func TestLoadYAML_RejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: [not a map"), 0o644))

	cfg := NewConfig()
	err := cfg.loadYAML(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PALANK_DATA_DIR", "/tmp/override")
	t.Setenv("PALANK_KEYWORD_BACKEND", "bleve")
	t.Setenv("PALANK_EMBED_DIMENSIONS", "3072")
	t.Setenv("PALANK_LOG_LEVEL", "debug")

	cfg := NewConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/tmp/override", cfg.DataDir)
	assert.Equal(t, "bleve", cfg.Search.KeywordBackend)
	assert.Equal(t, 3072, cfg.Embeddings.Dimensions)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestApplyEnvOverrides_IgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("PALANK_EMBED_DIMENSIONS", "lots")
	t.Setenv("PALANK_RRF_CONSTANT", "-3")

	cfg := NewConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, 768, cfg.Embeddings.Dimensions)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := NewConfig()
	cfg.Search.MaxResults = 42
	require.NoError(t, cfg.WriteYAML(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))
	assert.Equal(t, 42, loaded.Search.MaxResults)
}

func TestConfigFilePath_EnvOverride(t *testing.T) {
	t.Setenv("PALANK_CONFIG", "/etc/palank/custom.yaml")
	assert.Equal(t, "/etc/palank/custom.yaml", ConfigFilePath())
}
