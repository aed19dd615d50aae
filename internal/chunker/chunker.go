// Package chunker splits extracted page text into overlapping fixed-size
// chunks, preserving the character offset of each chunk within its page.
package chunker

import (
	"fmt"
	"strings"

	"github.com/docassist/docassist/internal/document"
)

// Default splitting parameters, matching the ingestion defaults.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Config controls chunk size and overlap, both in characters (runes).
type Config struct {
	Size    int
	Overlap int
}

// DefaultConfig returns the default chunking configuration.
func DefaultConfig() Config {
	return Config{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap}
}

// Validate checks that the configuration produces a terminating split.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("chunk overlap must be non-negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.Overlap, c.Size)
	}
	return nil
}

// Split divides the ordered pages into chunks of at most cfg.Size characters.
// Consecutive chunks from the same page overlap by cfg.Overlap characters when
// the page is long enough. Chunks that are empty after trimming whitespace are
// dropped. StartOffset records the rune offset of the chunk's first character
// within the page text and is non-decreasing across chunks of the same page.
// Deterministic for a given input and configuration.
func Split(pages []document.Page, cfg Config) ([]document.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	step := cfg.Size - cfg.Overlap
	var chunks []document.Chunk

	for _, page := range pages {
		runes := []rune(page.Text)
		for start := 0; start < len(runes); start += step {
			end := start + cfg.Size
			if end > len(runes) {
				end = len(runes)
			}

			text := string(runes[start:end])
			if strings.TrimSpace(text) == "" {
				if end == len(runes) {
					break
				}
				continue
			}

			chunks = append(chunks, document.Chunk{
				PageNumber:  page.Number,
				StartOffset: start,
				Text:        text,
			})

			if end == len(runes) {
				break
			}
		}
	}

	return chunks, nil
}
