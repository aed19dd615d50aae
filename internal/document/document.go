// Package document defines the core data model shared by the indexing and
// retrieval pipelines: documents, extracted pages, and retrievable chunks.
package document

import (
	"crypto/sha256"
	"encoding/hex"
)

// Document is a named source unit. Title (the filename) is the stable external
// identity; ContentHash detects whether its bytes changed since last indexing.
type Document struct {
	Title       string
	ContentHash string
}

// Page is one unit of extracted text from a document. Text may be empty when
// extraction genuinely finds nothing on the page.
type Page struct {
	Number int
	Text   string
}

// Chunk is a contiguous slice of a page's text, the unit of storage, embedding,
// and retrieval. ID is assigned by the index store on insert and is empty
// before that.
type Chunk struct {
	ID          string
	DocTitle    string
	DocHash     string
	PageNumber  int
	StartOffset int
	Text        string
}

// Fingerprint computes the content hash for a document's raw bytes.
// Deterministic and collision-resistant enough for change detection; not
// security-sensitive.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
