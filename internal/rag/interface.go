// Package rag defines the interfaces for retrieval-augmented generation
// components: embedding, vector indexing, document persistence and
// generation. Concrete implementations (in-memory, Qdrant, SQLite, eino chat
// models) satisfy these interfaces so the pipelines never depend on a
// specific backend.
package rag

import (
	"context"
)

// Dimensions is the default embedding vector length used across the system.
const Dimensions = 384

// Document represents an ingested body of text.
type Document struct {
	// ID is the unique identifier assigned on creation.
	ID string

	// Text is the raw text as submitted.
	Text string
}

// Chunk is a contiguous slice of a Document's text with its embedding.
type Chunk struct {
	// ID is the unique identifier of the chunk.
	ID string

	// DocumentID is the parent document.
	DocumentID string

	// Ordinal is the zero-based position of the chunk within its document.
	Ordinal int

	// Text is the chunk content.
	Text string

	// Vector is the chunk embedding.
	Vector []float32
}

// Entry is a single record in a VectorIndex.
type Entry struct {
	// ChunkID identifies the chunk this entry projects.
	ChunkID string

	// DocumentID is used by DeleteByDocument.
	DocumentID string

	// Text is returned verbatim by Nearest.
	Text string

	// Vector is the chunk embedding.
	Vector []float32
}

// Hit is a single Nearest result.
type Hit struct {
	// ChunkID identifies the matched chunk.
	ChunkID string

	// DocumentID is the matched chunk's parent document.
	DocumentID string

	// Text is the matched chunk content.
	Text string

	// Distance is 1 - cosine similarity. Lower is closer.
	Distance float32
}

// Embedder converts text into a dense vector of fixed length.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed returns the embedding for text. A successful result always has
	// the configured dimensionality.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores chunk embeddings and answers nearest-neighbour queries.
// Implementations must be safe to call from multiple goroutines, and a
// DeleteByDocument must never be observed half-applied by Nearest.
type VectorIndex interface {
	// Insert adds a single entry. A vector of the wrong length fails with
	// ErrDimensionMismatch and leaves the index unchanged.
	Insert(ctx context.Context, e Entry) error

	// InsertBatch adds every entry or none of them.
	InsertBatch(ctx context.Context, entries []Entry) error

	// Nearest returns up to k entries ordered by ascending cosine distance.
	// Ties are broken by insertion order, earliest first.
	Nearest(ctx context.Context, query []float32, k int) ([]Hit, error)

	// DeleteByDocument removes every entry belonging to documentID.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Len returns the number of entries currently held.
	Len() int
}

// DocumentStore persists documents and chunks.
// Implementations must be safe to call from multiple goroutines.
type DocumentStore interface {
	// Begin opens a transactional scope for a single ingestion.
	Begin(ctx context.Context) (StoreTx, error)

	// DeleteDocument removes a document and, by cascade, its chunks.
	// It returns ErrNotFound when no such document exists.
	DeleteDocument(ctx context.Context, documentID string) error

	// ListChunks returns every persisted chunk in insertion order.
	ListChunks(ctx context.Context) ([]Chunk, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// StoreTx is a single ingestion's transactional scope. Nothing written
// through it is visible to other callers until Commit succeeds.
type StoreTx interface {
	// CreateDocument persists text as a new document and returns its ID.
	CreateDocument(ctx context.Context, text string) (string, error)

	// CreateChunk persists one chunk of documentID and returns its ID.
	CreateChunk(ctx context.Context, documentID string, ordinal int, text string, vector []float32) (string, error)

	// Commit makes all writes visible.
	Commit() error

	// Rollback discards all writes. Calling it after Commit is a no-op.
	Rollback() error
}

// Generator produces a natural-language answer from a system instruction
// and a user message. Implementations must be safe to call from multiple
// goroutines.
type Generator interface {
	// Complete sends the prompt pair to the generation backend and returns
	// the answer text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Retriever fetches relevant chunks for a query without generating an answer.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the top-k most relevant chunks for the given query.
	Retrieve(ctx context.Context, query string, topK int) ([]Hit, error)
}
