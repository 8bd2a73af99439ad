// Package ingestion implements the document ingestion pipeline. It chunks
// submitted text, embeds each chunk, persists the document and its chunks in
// a single store transaction and finally publishes the chunks to the vector
// index. An ingestion either fully succeeds or leaves no trace.
// This pipeline is invoked by POST /upload and the `docrag ingest` command.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/54b3r/docrag-go/internal/chunker"
	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// MaxWords is the maximum number of words per chunk.
	// Defaults to chunker.DefaultMaxWords if zero.
	MaxWords int

	// HTTPTimeout is the timeout for each URL fetch.
	// Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
}

// Result describes a successful ingestion.
type Result struct {
	// DocumentID is the ID assigned to the new document.
	DocumentID string

	// Chunks is the number of chunks created.
	Chunks int
}

// Pipeline orchestrates the chunk → embed → persist → index flow.
// It holds no per-call state and is safe for concurrent use.
type Pipeline struct {
	// embedder converts chunk text into dense vector embeddings.
	embedder rag.Embedder

	// store persists documents and chunks transactionally.
	store rag.DocumentStore

	// index receives the chunk embeddings once the store commits.
	index rag.VectorIndex

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// loader reads file and URL sources.
	loader *Loader
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.DocumentStore, index rag.VectorIndex, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = chunker.DefaultMaxWords
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		index:    index,
		cfg:      cfg,
		loader:   NewLoader(cfg),
	}, nil
}

// failed wraps cause as an ingestion partial failure.
func failed(cause error) error {
	return fmt.Errorf("ingestion: %w: %w", rag.ErrIngestionPartialFailure, cause)
}

// Ingest stores text as a new document. Every chunk is embedded before the
// store transaction opens, so the transaction never waits on the network.
// Any failure rolls everything back, including the document itself, and
// returns an error wrapping rag.ErrIngestionPartialFailure and the cause.
// Empty text yields a document with zero chunks.
func (p *Pipeline) Ingest(ctx context.Context, text string) (*Result, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	chunks := chunker.Chunk(text, p.cfg.MaxWords)

	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		vec, err := p.embedder.Embed(ctx, c)
		if err != nil {
			return nil, failed(fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err))
		}
		vectors[i] = vec
	}

	tx, err := p.store.Begin(ctx)
	if err != nil {
		return nil, failed(err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("ingestion: rollback failed", slog.String("error", rbErr.Error()))
		}
	}()

	docID, err := tx.CreateDocument(ctx, text)
	if err != nil {
		return nil, failed(err)
	}

	entries := make([]rag.Entry, len(chunks))
	for i, c := range chunks {
		chunkID, err := tx.CreateChunk(ctx, docID, i, c, vectors[i])
		if err != nil {
			return nil, failed(err)
		}
		entries[i] = rag.Entry{
			ChunkID:    chunkID,
			DocumentID: docID,
			Text:       c,
			Vector:     vectors[i],
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, failed(err)
	}
	committed = true

	if err := p.index.InsertBatch(ctx, entries); err != nil {
		// The store already committed and the index may have applied part
		// of the batch before failing; take the document back out of both.
		if cerr := p.compensate(context.WithoutCancel(ctx), docID); cerr != nil {
			log.Error("ingestion: compensating delete failed",
				slog.String("document_id", docID),
				slog.String("error", cerr.Error()),
			)
			return nil, failed(errors.Join(err, cerr))
		}
		return nil, failed(err)
	}

	log.Info("ingestion: document ingested",
		slog.String("document_id", docID),
		slog.Int("chunks", len(chunks)),
		slog.Duration("duration", time.Since(start)),
	)
	return &Result{DocumentID: docID, Chunks: len(chunks)}, nil
}

// compensate removes docID from the index and then from the store after a
// failed index insert. Both steps always run.
func (p *Pipeline) compensate(ctx context.Context, docID string) error {
	var errs []error
	if err := p.index.DeleteByDocument(ctx, docID); err != nil {
		errs = append(errs, fmt.Errorf("index: %w", err))
	}
	if err := p.store.DeleteDocument(ctx, docID); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	return errors.Join(errs...)
}

// Delete removes a document and all of its chunks. Index entries go first so
// no query can return a chunk whose document is already gone. An unknown ID
// returns an error wrapping rag.ErrNotFound.
func (p *Pipeline) Delete(ctx context.Context, documentID string) error {
	if err := p.index.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("ingestion: delete %s from index: %w", documentID, err)
	}
	if err := p.store.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("ingestion: delete %s: %w", documentID, err)
	}
	logging.FromContext(ctx).Info("ingestion: document deleted", slog.String("document_id", documentID))
	return nil
}
