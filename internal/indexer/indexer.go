// Package indexer drives incremental ingestion: it scans the document
// directory, fingerprints each PDF, and indexes only what is new or changed.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/docassist/docassist/internal/chunker"
	"github.com/docassist/docassist/internal/document"
	"github.com/docassist/docassist/internal/embed"
	"github.com/docassist/docassist/internal/store"
)

// PageLoader extracts the page texts of one PDF file.
type PageLoader interface {
	Load(ctx context.Context, path string) ([]document.Page, error)
}

// Report summarizes one reindex run.
type Report struct {
	NewDocs       int
	ChangedDocs   int
	UnchangedDocs int
	FailedDocs    int
	ChunksAdded   int
	ChunksEvicted int
}

// Indexer performs incremental reindexing of a document directory.
type Indexer struct {
	dataDir  string
	loader   PageLoader
	chunking chunker.Config
	embedder embed.Embedder
	index    *store.Index
}

// New creates an indexer over the given data directory and open writable
// index.
func New(dataDir string, loader PageLoader, chunking chunker.Config, embedder embed.Embedder, index *store.Index) *Indexer {
	return &Indexer{
		dataDir:  dataDir,
		loader:   loader,
		chunking: chunking,
		embedder: embedder,
		index:    index,
	}
}

// pendingDoc is a document that survived the scan phase and is waiting for
// the insert phase.
type pendingDoc struct {
	doc    document.Document
	chunks []document.Chunk
}

// Reindex scans the data directory for PDF files and brings the index up to
// date. Unchanged documents are skipped by content fingerprint; changed
// documents are evicted before their new chunks are inserted. A document
// that fails extraction is logged and skipped, it never aborts the run.
// Embedding or storage failures abort the run: a partial insert would leave
// the index inconsistent with the recorded fingerprints. Rerunning over an
// unchanged directory is a no-op.
func (x *Indexer) Reindex(ctx context.Context) (Report, error) {
	var report Report

	files, err := filepath.Glob(filepath.Join(x.dataDir, "*.pdf"))
	if err != nil {
		return report, fmt.Errorf("failed to scan data directory: %w", err)
	}
	sort.Strings(files)

	known, err := x.index.DocumentHashes(ctx)
	if err != nil {
		return report, err
	}

	// Scan phase: classify every file and collect the chunks to insert.
	var pending []pendingDoc
	for _, path := range files {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		title := filepath.Base(path)

		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read document, skipping",
				slog.String("doc", title), slog.String("error", err.Error()))
			report.FailedDocs++
			continue
		}
		hash := document.Fingerprint(data)

		storedHash, seen := known[title]
		if seen && storedHash == hash {
			report.UnchangedDocs++
			continue
		}

		chunks, err := x.prepareDocument(ctx, path)
		if err != nil {
			slog.Warn("failed to extract document, skipping",
				slog.String("doc", title), slog.String("error", err.Error()))
			report.FailedDocs++
			continue
		}

		if seen {
			// Changed content: evict the stale chunks before inserting
			evicted, err := x.index.DeleteDocument(ctx, title)
			if err != nil {
				return report, fmt.Errorf("failed to evict %s: %w", title, err)
			}
			report.ChunksEvicted += evicted
			report.ChangedDocs++
		} else {
			report.NewDocs++
		}

		if len(chunks) == 0 {
			slog.Warn("document has no indexable text",
				slog.String("doc", title))
			continue
		}
		pending = append(pending, pendingDoc{
			doc:    document.Document{Title: title, ContentHash: hash},
			chunks: chunks,
		})
	}

	// Insert phase: embed and store everything the scan produced.
	for _, p := range pending {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		texts := make([]string, len(p.chunks))
		for i, ch := range p.chunks {
			texts[i] = ch.Text
		}
		vectors, err := x.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return report, fmt.Errorf("failed to embed %s: %w", p.doc.Title, err)
		}
		if err := x.index.Add(ctx, p.doc, p.chunks, vectors); err != nil {
			return report, fmt.Errorf("failed to store %s: %w", p.doc.Title, err)
		}
		report.ChunksAdded += len(p.chunks)

		slog.Info("document indexed",
			slog.String("doc", p.doc.Title),
			slog.Int("chunks", len(p.chunks)))
	}

	if err := x.index.Save(); err != nil {
		return report, fmt.Errorf("failed to persist vector index: %w", err)
	}
	return report, nil
}

// prepareDocument extracts and chunks one document.
func (x *Indexer) prepareDocument(ctx context.Context, path string) ([]document.Chunk, error) {
	pages, err := x.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return chunker.Split(pages, x.chunking)
}
