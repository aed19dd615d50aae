package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/docassist/docassist/internal/document"
)

// Index directory layout.
const (
	dbFileName     = "chunks.db"
	vectorFileName = "vectors.hnsw"
	lockFileName   = "index.lock"
)

// index_state keys.
const (
	stateModelKey = "embedding_model"
	stateDimsKey  = "embedding_dims"
)

// Index is the persistent chunk index rooted in a single directory. Chunk
// text, metadata and embeddings live in SQLite; an HNSW graph over the same
// embeddings serves unfiltered nearest-neighbor queries.
type Index struct {
	dir      string
	db       *chunkDB
	graph    *vectorGraph
	lock     *flock.Flock
	writable bool
	dims     int
}

// Open opens an existing index read-only. Returns ErrNotReady when the index
// directory has not been created by a prior ingest.
func Open(ctx context.Context, dir string) (*Index, error) {
	dbPath := filepath.Join(dir, dbFileName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, ErrNotReady
	}

	db, err := openChunkDB(dbPath)
	if err != nil {
		return nil, err
	}

	idx := &Index{dir: dir, db: db}
	if err := idx.loadGraph(ctx); err != nil {
		_ = db.close()
		return nil, err
	}
	return idx, nil
}

// OpenWritable opens the index for modification, creating the directory on
// first use. The index write lock is held until Close; a second writer gets
// ErrLocked. dims is the embedding dimension used when creating a fresh
// index.
func OpenWritable(ctx context.Context, dir string, dims int) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire index lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	db, err := openChunkDB(filepath.Join(dir, dbFileName))
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	idx := &Index{dir: dir, db: db, lock: lock, writable: true, dims: dims}
	if err := idx.loadGraph(ctx); err != nil {
		_ = db.close()
		_ = lock.Unlock()
		return nil, err
	}
	return idx, nil
}

// loadGraph restores the vector graph from disk, rebuilding it from stored
// embeddings when the graph file is missing. The database is the source of
// truth.
func (i *Index) loadGraph(ctx context.Context) error {
	storedDims, err := i.db.getState(ctx, stateDimsKey)
	if err != nil {
		return err
	}
	if storedDims != "" {
		dims, err := strconv.Atoi(storedDims)
		if err != nil {
			return fmt.Errorf("corrupt embedding_dims state %q: %w", storedDims, err)
		}
		i.dims = dims
	}

	vectorPath := filepath.Join(i.dir, vectorFileName)
	if _, err := os.Stat(vectorPath); err == nil {
		g := newVectorGraph(i.dims)
		if err := g.load(vectorPath); err != nil {
			return err
		}
		i.graph = g
		i.dims = g.dims
		return nil
	}

	// No graph file. Rebuild from stored embeddings.
	ids, vectors, err := i.db.allEmbeddings(ctx)
	if err != nil {
		return err
	}
	if len(ids) > 0 && i.dims == 0 {
		i.dims = len(vectors[0])
	}
	g := newVectorGraph(i.dims)
	if len(ids) > 0 {
		if err := g.add(ids, vectors); err != nil {
			return fmt.Errorf("failed to rebuild vector graph: %w", err)
		}
		slog.Info("vector graph rebuilt from database", slog.Int("vectors", len(ids)))
	}
	i.graph = g
	return nil
}

// CheckModel verifies the index was built with the given embedding model.
// A fresh index adopts the model; a mismatch is an error because stored
// vectors from a different model are not comparable.
func (i *Index) CheckModel(ctx context.Context, model string, dims int) error {
	stored, err := i.db.getState(ctx, stateModelKey)
	if err != nil {
		return err
	}
	if stored == "" {
		if !i.writable {
			return nil
		}
		if err := i.db.setState(ctx, stateModelKey, model); err != nil {
			return err
		}
		return i.db.setState(ctx, stateDimsKey, strconv.Itoa(dims))
	}
	if stored != model {
		return fmt.Errorf("index was built with embedding model %q, current model is %q: delete the index directory and reingest", stored, model)
	}
	return nil
}

// Add indexes all chunks of one document in a single transaction and tags
// each chunk with the document title and fingerprint. Chunk IDs are assigned
// by the store. chunks[i] pairs with vectors[i]. Adding zero chunks is a
// no-op: a document is tracked only while it has chunks in the index.
func (i *Index) Add(ctx context.Context, doc document.Document, chunks []document.Chunk, vectors [][]float32) error {
	if !i.writable {
		return fmt.Errorf("index opened read-only")
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	if len(chunks) == 0 {
		return nil
	}

	rows := make([]chunkRow, len(chunks))
	ids := make([]string, len(chunks))
	for j, ch := range chunks {
		id := uuid.NewString()
		ids[j] = id
		rows[j] = chunkRow{
			id:          id,
			docTitle:    doc.Title,
			docHash:     doc.ContentHash,
			page:        ch.PageNumber,
			startOffset: ch.StartOffset,
			text:        ch.Text,
			embedding:   vectors[j],
		}
	}

	if err := i.db.insertChunks(ctx, doc.Title, doc.ContentHash, rows); err != nil {
		return err
	}
	if err := i.graph.add(ids, vectors); err != nil {
		return err
	}
	return nil
}

// DeleteDocument evicts a document and all of its chunks. Returns the number
// of chunks removed. Deleting an unknown title is a no-op.
func (i *Index) DeleteDocument(ctx context.Context, title string) (int, error) {
	if !i.writable {
		return 0, fmt.Errorf("index opened read-only")
	}

	ids, err := i.db.deleteDocument(ctx, title)
	if err != nil {
		return 0, err
	}
	i.graph.remove(ids)
	return len(ids), nil
}

// DocumentHashes returns doc title -> stored content fingerprint.
func (i *Index) DocumentHashes(ctx context.Context) (map[string]string, error) {
	return i.db.documentHashes(ctx)
}

// ListDocuments returns all indexed documents sorted by title.
func (i *Index) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	return i.db.listDocuments(ctx)
}

// ChunkCount returns the total number of indexed chunks.
func (i *Index) ChunkCount(ctx context.Context) (int, error) {
	return i.db.chunkCount(ctx)
}

// Search returns the k nearest chunks to the query vector by cosine
// distance, ordered nearest first. When filterTitles is non-empty, only
// chunks from those documents are eligible; the filter restricts the
// candidate set before ranking, it never trims an unfiltered result.
func (i *Index) Search(ctx context.Context, query []float32, k int, filterTitles []string) ([]Result, error) {
	if k <= 0 {
		return []Result{}, nil
	}

	if len(filterTitles) > 0 {
		return i.searchFiltered(ctx, query, k, filterTitles)
	}

	hits, err := i.graph.search(query, k)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []Result{}, nil
	}

	ids := make([]string, len(hits))
	for j, h := range hits {
		ids[j] = h.id
	}
	rows, err := i.db.getChunks(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		row, ok := rows[h.id]
		if !ok {
			continue
		}
		results = append(results, Result{Chunk: rowToChunk(row), Distance: h.distance})
	}
	return results, nil
}

// searchFiltered ranks the eligible chunks by exact cosine distance. The
// graph cannot restrict its candidate set by document, so the filtered path
// scans the stored embeddings of the eligible documents instead.
func (i *Index) searchFiltered(ctx context.Context, query []float32, k int, titles []string) ([]Result, error) {
	rows, err := i.db.chunksByTitles(ctx, titles)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			Chunk:    rowToChunk(row),
			Distance: cosineDistance(query, row.embedding),
		})
	}

	sort.Slice(results, func(a, b int) bool {
		return results[a].Distance < results[b].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Save persists the vector graph to disk. The database is durable on every
// write; only the graph needs an explicit save.
func (i *Index) Save() error {
	if !i.writable {
		return nil
	}
	return i.graph.save(filepath.Join(i.dir, vectorFileName))
}

// Close releases the database, the graph and the write lock.
func (i *Index) Close() error {
	var firstErr error
	if err := i.db.close(); err != nil {
		firstErr = err
	}
	i.graph.close()
	if i.lock != nil {
		if err := i.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func rowToChunk(row chunkRow) document.Chunk {
	return document.Chunk{
		ID:          row.id,
		DocTitle:    row.docTitle,
		DocHash:     row.docHash,
		PageNumber:  row.page,
		StartOffset: row.startOffset,
		Text:        row.text,
	}
}
