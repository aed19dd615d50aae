package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	_ "modernc.org/sqlite"
)

// chunkDB stores chunk text, metadata and raw embeddings in SQLite. It is the
// source of truth; the vector graph is a derived search structure.
type chunkDB struct {
	db *sql.DB
}

const schemaVersion = 1

// openChunkDB opens (or creates) the chunk database at path.
func openChunkDB(path string) (*chunkDB, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent access.
	db.SetMaxOpenConns(1)

	// WAL must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	s := &chunkDB{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *chunkDB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		doc_title TEXT PRIMARY KEY,
		doc_hash  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id           TEXT PRIMARY KEY,
		doc_title    TEXT NOT NULL,
		doc_hash     TEXT NOT NULL,
		page         INTEGER NOT NULL,
		start_offset INTEGER NOT NULL,
		text         TEXT NOT NULL,
		embedding    BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc_title ON chunks(doc_title);

	CREATE TABLE IF NOT EXISTS index_state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := s.db.Exec(
		"INSERT OR IGNORE INTO schema_version (version) VALUES (?)", schemaVersion,
	); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// chunkRow is the persisted form of one chunk.
type chunkRow struct {
	id          string
	docTitle    string
	docHash     string
	page        int
	startOffset int
	text        string
	embedding   []float32
}

// insertChunks writes chunk rows and the document fingerprint in one
// transaction so a crash never leaves a half-indexed document behind.
func (s *chunkDB) insertChunks(ctx context.Context, title, hash string, rows []chunkRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, doc_title, doc_hash, page, start_offset, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.id, row.docTitle, row.docHash, row.page, row.startOffset,
			row.text, encodeVector(row.embedding),
		); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", row.id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (doc_title, doc_hash) VALUES (?, ?)
		ON CONFLICT(doc_title) DO UPDATE SET doc_hash = excluded.doc_hash`,
		title, hash,
	); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	return tx.Commit()
}

// deleteDocument removes a document and its chunks, returning the IDs of the
// deleted chunks so the vector graph can be updated.
func (s *chunkDB) deleteDocument(ctx context.Context, title string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, "SELECT id FROM chunks WHERE doc_title = ?", title)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk ids: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE doc_title = ?", title); err != nil {
		return nil, fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE doc_title = ?", title); err != nil {
		return nil, fmt.Errorf("failed to delete document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// documentHashes returns doc_title -> fingerprint for all tracked documents.
func (s *chunkDB) documentHashes(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT doc_title, doc_hash FROM documents")
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hashes := make(map[string]string)
	for rows.Next() {
		var title, hash string
		if err := rows.Scan(&title, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		hashes[title] = hash
	}
	return hashes, rows.Err()
}

// listDocuments returns all documents with their chunk counts, sorted by title.
func (s *chunkDB) listDocuments(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.doc_title, d.doc_hash, COUNT(c.id)
		FROM documents d
		LEFT JOIN chunks c ON c.doc_title = d.doc_title
		GROUP BY d.doc_title
		ORDER BY d.doc_title`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []DocumentInfo
	for rows.Next() {
		var info DocumentInfo
		if err := rows.Scan(&info.Title, &info.Hash, &info.Chunks); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, info)
	}
	return docs, rows.Err()
}

// getChunks fetches chunk rows by ID, without embeddings.
func (s *chunkDB) getChunks(ctx context.Context, ids []string) (map[string]chunkRow, error) {
	if len(ids) == 0 {
		return map[string]chunkRow{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, doc_title, doc_hash, page, start_offset, text
		FROM chunks WHERE id IN (%s)`, placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]chunkRow, len(ids))
	for rows.Next() {
		var row chunkRow
		if err := rows.Scan(&row.id, &row.docTitle, &row.docHash, &row.page,
			&row.startOffset, &row.text); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		result[row.id] = row
	}
	return result, rows.Err()
}

// chunksByTitles streams chunk rows including embeddings for the given
// document titles. Used by the filtered search path.
func (s *chunkDB) chunksByTitles(ctx context.Context, titles []string) ([]chunkRow, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(titles))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(titles))
	for i, t := range titles {
		args[i] = t
	}

	query := fmt.Sprintf(`
		SELECT id, doc_title, doc_hash, page, start_offset, text, embedding
		FROM chunks WHERE doc_title IN (%s)`, placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []chunkRow
	for rows.Next() {
		var row chunkRow
		var blob []byte
		if err := rows.Scan(&row.id, &row.docTitle, &row.docHash, &row.page,
			&row.startOffset, &row.text, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		row.embedding = decodeVector(blob)
		result = append(result, row)
	}
	return result, rows.Err()
}

// allEmbeddings returns every chunk ID with its embedding. Used to rebuild
// the vector graph when the graph file is missing or stale.
func (s *chunkDB) allEmbeddings(ctx context.Context) ([]string, [][]float32, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, embedding FROM chunks")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	var vectors [][]float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		ids = append(ids, id)
		vectors = append(vectors, decodeVector(blob))
	}
	return ids, vectors, rows.Err()
}

// chunkCount returns the total number of stored chunks.
func (s *chunkDB) chunkCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// getState reads an index_state value. Returns "" when absent.
func (s *chunkDB) getState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM index_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read state %s: %w", key, err)
	}
	return value, nil
}

// setState writes an index_state value.
func (s *chunkDB) setState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	return nil
}

func (s *chunkDB) close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// encodeVector packs a float32 vector into a little-endian blob.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks a little-endian blob into a float32 vector.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
