package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// vectorGraph wraps a coder/hnsw graph with string IDs and gob-persisted
// ID mappings. Deletion is lazy: the node stays in the graph but loses its
// ID mapping, so it can never surface in results.
type vectorGraph struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	dims  int

	idMap   map[string]uint64 // chunk ID -> internal key
	keyMap  map[uint64]string // internal key -> chunk ID
	nextKey uint64

	closed bool
}

// vectorGraphMeta stores ID mappings for persistence.
type vectorGraphMeta struct {
	IDMap   map[string]uint64
	NextKey uint64
	Dims    int
}

// newVectorGraph creates an empty cosine-distance HNSW graph.
func newVectorGraph(dims int) *vectorGraph {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &vectorGraph{
		graph:  graph,
		dims:   dims,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// add inserts vectors with their IDs. Existing IDs are lazily replaced.
func (g *vectorGraph) add(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrClosed
	}

	for _, v := range vectors {
		if len(v) != g.dims {
			return ErrDimensionMismatch{Expected: g.dims, Got: len(v)}
		}
	}

	for i, id := range ids {
		if existingKey, exists := g.idMap[id]; exists {
			delete(g.keyMap, existingKey)
			delete(g.idMap, id)
		}

		key := g.nextKey
		g.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		g.graph.Add(hnsw.MakeNode(key, vec))

		g.idMap[id] = key
		g.keyMap[key] = id
	}

	return nil
}

// graphHit pairs a chunk ID with its distance from the query.
type graphHit struct {
	id       string
	distance float32
}

// search finds the k nearest live neighbors to the query vector. Lazily
// deleted nodes are filtered out, so it over-fetches to compensate.
func (g *vectorGraph) search(query []float32, k int) ([]graphHit, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return nil, ErrClosed
	}
	if len(query) != g.dims {
		return nil, ErrDimensionMismatch{Expected: g.dims, Got: len(query)}
	}
	if g.graph.Len() == 0 {
		return []graphHit{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	orphans := g.graph.Len() - len(g.idMap)
	nodes := g.graph.Search(normalized, k+orphans)

	hits := make([]graphHit, 0, k)
	for _, node := range nodes {
		id, exists := g.keyMap[node.Key]
		if !exists {
			continue
		}
		hits = append(hits, graphHit{
			id:       id,
			distance: g.graph.Distance(normalized, node.Value),
		})
		if len(hits) == k {
			break
		}
	}

	return hits, nil
}

// remove drops IDs from the mappings. Graph nodes are orphaned, not removed.
func (g *vectorGraph) remove(ids []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range ids {
		if key, exists := g.idMap[id]; exists {
			delete(g.keyMap, key)
			delete(g.idMap, id)
		}
	}
}

// count returns the number of live vectors.
func (g *vectorGraph) count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.idMap)
}

// save persists the graph and ID mappings atomically (temp file + rename).
func (g *vectorGraph) save(path string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return ErrClosed
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	if err := g.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	return g.saveMeta(path + ".meta")
}

func (g *vectorGraph) saveMeta(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := vectorGraphMeta{
		IDMap:   g.idMap,
		NextKey: g.nextKey,
		Dims:    g.dims,
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// load restores the graph and ID mappings from disk.
func (g *vectorGraph) load(path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrClosed
	}

	if err := g.loadMeta(path + ".meta"); err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// coder/hnsw Import requires io.ByteReader
	if err := g.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	return nil
}

func (g *vectorGraph) loadMeta(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var meta vectorGraphMeta
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	g.idMap = meta.IDMap
	g.nextKey = meta.NextKey
	g.dims = meta.Dims
	g.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range g.idMap {
		g.keyMap[key] = id
	}

	return nil
}

func (g *vectorGraph) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.graph = nil
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// cosineDistance computes 1 - cosine similarity for unit or non-unit vectors.
func cosineDistance(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)))
}
