package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.Paths.DataDir)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.InDelta(t, 1.3, cfg.Retrieval.DistanceThreshold, 1e-9)
	assert.Equal(t, "qwen2.5:7b", cfg.LLM.Model)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	// Given: a config file overriding a few fields
	dir := t.TempDir()
	path := filepath.Join(dir, "docassist.yaml")
	content := `
paths:
  data_dir: /srv/docs
retrieval:
  top_k: 8
  distance_threshold: 0.9
embeddings:
  provider: static
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Then: file values win over defaults, untouched fields keep defaults
	assert.Equal(t, "/srv/docs", cfg.Paths.DataDir)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.9, cfg.Retrieval.DistanceThreshold, 1e-9)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 1000, cfg.Chunking.Size)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docassist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  top_k: 8\n"), 0o644))

	t.Setenv("DOCASSIST_TOP_K", "3")
	t.Setenv("DOCASSIST_EMBEDDER", "static")
	t.Setenv("DOCASSIST_DISTANCE_THRESHOLD", "1.1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.InDelta(t, 1.1, cfg.Retrieval.DistanceThreshold, 1e-9)
}

func TestLoad_RejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docassist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths: [not, a, map]"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"empty data dir", func(c *Config) { c.Paths.DataDir = "" }, true},
		{"overlap ge size", func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }, true},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }, true},
		{"negative threshold", func(c *Config) { c.Retrieval.DistanceThreshold = -0.1 }, true},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "pinecone" }, true},
		{"zero batch size", func(c *Config) { c.Embeddings.BatchSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
