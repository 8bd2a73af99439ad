// Package store provides the SQLite-backed document store for docrag.
// Documents and their chunks (text plus embedding) are the source of truth;
// the in-memory vector index is rebuilt from this store at startup.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/docrag-go/internal/rag"
)

// SQLiteStore implements rag.DocumentStore on a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// compile-time interface check
var _ rag.DocumentStore = (*SQLiteStore)(nil)

// DefaultDBPath returns the default path for the document database.
// It resolves to ~/.docrag/docrag.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docrag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "docrag.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection serialises writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id           TEXT    PRIMARY KEY,
    text         TEXT    NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS chunks (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    id           TEXT    NOT NULL UNIQUE,
    document_id  TEXT    NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    ordinal      INTEGER NOT NULL,
    text         TEXT    NOT NULL,
    embedding    BLOB    NOT NULL,  -- little-endian float32
    UNIQUE (document_id, ordinal)
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (document_id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Begin opens a transaction for a single ingestion.
func (s *SQLiteStore) Begin(ctx context.Context) (rag.StoreTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

// DeleteDocument removes a document; its chunks go with it by cascade.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, documentID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("store: delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete document: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: document %s: %w", documentID, rag.ErrNotFound)
	}
	return nil
}

// GetDocument returns a single document.
func (s *SQLiteStore) GetDocument(ctx context.Context, documentID string) (*rag.Document, error) {
	var d rag.Document
	err := s.db.QueryRowContext(ctx, `SELECT id, text FROM documents WHERE id = ?`, documentID).Scan(&d.ID, &d.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: document %s: %w", documentID, rag.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get document: %w", err)
	}
	return &d, nil
}

// ListChunks returns every chunk in insertion order.
func (s *SQLiteStore) ListChunks(ctx context.Context) ([]rag.Chunk, error) {
	const q = `SELECT id, document_id, ordinal, text, embedding FROM chunks ORDER BY seq ASC`
	return s.queryChunks(ctx, q)
}

// DocumentChunks returns the chunks of one document ordered by ordinal.
func (s *SQLiteStore) DocumentChunks(ctx context.Context, documentID string) ([]rag.Chunk, error) {
	const q = `SELECT id, document_id, ordinal, text, embedding FROM chunks WHERE document_id = ? ORDER BY ordinal ASC`
	return s.queryChunks(ctx, q, documentID)
}

// queryChunks runs q and scans every row into a rag.Chunk.
func (s *SQLiteStore) queryChunks(ctx context.Context, q string, args ...any) ([]rag.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []rag.Chunk
	for rows.Next() {
		var c rag.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Text, &blob); err != nil {
			return nil, fmt.Errorf("store: list chunks scan: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("store: chunk %s: %w", c.ID, err)
		}
		c.Vector = vec
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list chunks rows: %w", err)
	}
	return chunks, nil
}

// CountDocuments returns the number of stored documents.
func (s *SQLiteStore) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count documents: %w", err)
	}
	return n, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// sqliteTx implements rag.StoreTx on a *sql.Tx.
type sqliteTx struct {
	// tx is the open transaction.
	tx *sql.Tx
}

// CreateDocument inserts a new document with a fresh UUID.
func (t *sqliteTx) CreateDocument(ctx context.Context, text string) (string, error) {
	id := uuid.NewString()
	const q = `INSERT INTO documents (id, text, created_at) VALUES (?, ?, ?)`
	if _, err := t.tx.ExecContext(ctx, q, id, text, time.Now().Unix()); err != nil {
		return "", fmt.Errorf("store: create document: %w", err)
	}
	return id, nil
}

// CreateChunk inserts one chunk of documentID with a fresh UUID.
func (t *sqliteTx) CreateChunk(ctx context.Context, documentID string, ordinal int, text string, vector []float32) (string, error) {
	id := uuid.NewString()
	const q = `INSERT INTO chunks (id, document_id, ordinal, text, embedding) VALUES (?, ?, ?, ?, ?)`
	if _, err := t.tx.ExecContext(ctx, q, id, documentID, ordinal, text, encodeVector(vector)); err != nil {
		return "", fmt.Errorf("store: create chunk %d: %w", ordinal, err)
	}
	return id, nil
}

// Commit makes the transaction's writes visible.
func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Rollback discards the transaction's writes. It is a no-op after Commit.
func (t *sqliteTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("store: rollback: %w", err)
	}
	return nil
}

// encodeVector serialises vec as little-endian float32 values.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
