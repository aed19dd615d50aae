// Package config loads DocAssist configuration from defaults, an optional
// YAML file, and DOCASSIST_* environment variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/docassist/docassist/internal/chunker"
)

// Config is the root configuration for DocAssist.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	LLM        LLMConfig        `yaml:"llm"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Watch      WatchConfig      `yaml:"watch"`
	Log        LogConfig        `yaml:"log"`
}

// PathsConfig locates the document directory and the index directory.
type PathsConfig struct {
	// DataDir is the directory scanned for PDF documents.
	DataDir string `yaml:"data_dir"`
	// IndexDir is the directory holding the vector index and chunk database.
	IndexDir string `yaml:"index_dir"`
}

// ChunkingConfig controls how extracted text is split.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig controls candidate retrieval and the relevance gate.
type RetrievalConfig struct {
	// TopK is the number of nearest chunks fetched per question.
	TopK int `yaml:"top_k"`
	// DistanceThreshold is the maximum cosine distance for a chunk to count
	// as relevant. Chunks at exactly the threshold are kept.
	DistanceThreshold float64 `yaml:"distance_threshold"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "ollama" or "static".
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	OllamaHost string `yaml:"ollama_host"`
	// BatchSize is the number of texts embedded per request.
	BatchSize int `yaml:"batch_size"`
	// CacheSize is the LRU embedding cache capacity. Zero disables caching.
	CacheSize int `yaml:"cache_size"`
}

// LLMConfig configures answer generation.
type LLMConfig struct {
	Model   string        `yaml:"model"`
	Host    string        `yaml:"host"`
	Timeout time.Duration `yaml:"timeout"`
}

// ExtractionConfig configures PDF text extraction and the OCR fallback.
type ExtractionConfig struct {
	PDFToText string `yaml:"pdftotext"`
	PDFToPPM  string `yaml:"pdftoppm"`
	Tesseract string `yaml:"tesseract"`
	// OCRDPI is the render resolution used when rasterizing pages for OCR.
	OCRDPI int `yaml:"ocr_dpi"`
}

// WatchConfig configures the filesystem watch mode.
type WatchConfig struct {
	// Debounce is how long to wait after the last filesystem event before
	// triggering a reindex.
	Debounce time.Duration `yaml:"debounce"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:  "data",
			IndexDir: ".docassist/index",
		},
		Chunking: ChunkingConfig{
			Size:    chunker.DefaultChunkSize,
			Overlap: chunker.DefaultChunkOverlap,
		},
		Retrieval: RetrievalConfig{
			TopK:              5,
			DistanceThreshold: 1.3,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			OllamaHost: "http://localhost:11434",
			BatchSize:  32,
			CacheSize:  10000,
		},
		LLM: LLMConfig{
			Model:   "qwen2.5:7b",
			Host:    "http://localhost:11434",
			Timeout: 120 * time.Second,
		},
		Extraction: ExtractionConfig{
			PDFToText: "pdftotext",
			PDFToPPM:  "pdftoppm",
			Tesseract: "tesseract",
			OCRDPI:    300,
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration. Values come from defaults, then
// the YAML file at path (skipped when path is empty or missing), then
// environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides configuration from DOCASSIST_* environment variables.
func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	setString("DOCASSIST_DATA_DIR", &c.Paths.DataDir)
	setString("DOCASSIST_INDEX_DIR", &c.Paths.IndexDir)
	setInt("DOCASSIST_CHUNK_SIZE", &c.Chunking.Size)
	setInt("DOCASSIST_CHUNK_OVERLAP", &c.Chunking.Overlap)
	setInt("DOCASSIST_TOP_K", &c.Retrieval.TopK)
	setFloat("DOCASSIST_DISTANCE_THRESHOLD", &c.Retrieval.DistanceThreshold)
	setString("DOCASSIST_EMBEDDER", &c.Embeddings.Provider)
	setString("DOCASSIST_EMBED_MODEL", &c.Embeddings.Model)
	setString("DOCASSIST_OLLAMA_HOST", &c.Embeddings.OllamaHost)
	setString("DOCASSIST_LLM_MODEL", &c.LLM.Model)
	setString("DOCASSIST_LLM_HOST", &c.LLM.Host)
	setString("DOCASSIST_LOG_LEVEL", &c.Log.Level)
	setString("DOCASSIST_LOG_FILE", &c.Log.File)
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir must not be empty")
	}
	if c.Paths.IndexDir == "" {
		return fmt.Errorf("paths.index_dir must not be empty")
	}
	if err := (chunker.Config{Size: c.Chunking.Size, Overlap: c.Chunking.Overlap}).Validate(); err != nil {
		return fmt.Errorf("chunking: %w", err)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.DistanceThreshold < 0 {
		return fmt.Errorf("retrieval.distance_threshold must be non-negative, got %g", c.Retrieval.DistanceThreshold)
	}
	switch c.Embeddings.Provider {
	case "ollama", "static":
	default:
		return fmt.Errorf("embeddings.provider must be one of [ollama, static], got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if c.Embeddings.CacheSize < 0 {
		return fmt.Errorf("embeddings.cache_size must be non-negative, got %d", c.Embeddings.CacheSize)
	}
	if c.Extraction.OCRDPI <= 0 {
		return fmt.Errorf("extraction.ocr_dpi must be positive, got %d", c.Extraction.OCRDPI)
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive, got %s", c.Watch.Debounce)
	}
	return nil
}

// DefaultPath returns the default config file location, checking the working
// directory first and then the user config directory.
func DefaultPath() string {
	if _, err := os.Stat("docassist.yaml"); err == nil {
		return "docassist.yaml"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "docassist.yaml"
	}
	return filepath.Join(home, ".docassist", "config.yaml")
}
