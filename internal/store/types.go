// Package store persists indexed chunks and their embeddings. Chunk text and
// metadata live in SQLite; vectors live in an HNSW graph persisted next to
// the database. Both are rooted in a single index directory.
package store

import (
	"errors"
	"fmt"

	"github.com/docassist/docassist/internal/document"
)

// ErrNotReady indicates the index directory has not been created yet. Callers
// should run an ingest before querying.
var ErrNotReady = errors.New("index not found, run ingest first")

// ErrClosed indicates the store has been closed.
var ErrClosed = errors.New("store is closed")

// ErrLocked indicates another process holds the index write lock.
var ErrLocked = errors.New("index is locked by another process")

// ErrDimensionMismatch indicates a vector has the wrong dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Result is a retrieved chunk with its cosine distance from the query.
type Result struct {
	Chunk    document.Chunk
	Distance float32
}

// DocumentInfo describes one indexed document.
type DocumentInfo struct {
	Title  string
	Hash   string
	Chunks int
}
