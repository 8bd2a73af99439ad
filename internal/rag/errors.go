package rag

import "errors"

// Error kinds surfaced by the pipelines. Callers match them with errors.Is;
// the wrapping error carries the detail.
var (
	// ErrDimensionMismatch means a vector's length differs from the
	// configured dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmbedding means the embedding backend failed or returned an
	// unusable vector.
	ErrEmbedding = errors.New("embedding failed")

	// ErrGeneration means the generation backend failed.
	ErrGeneration = errors.New("generation failed")

	// ErrNoRelevantContent means the index returned nothing for a query.
	ErrNoRelevantContent = errors.New("no relevant content")

	// ErrIngestionPartialFailure means an ingestion was aborted and rolled
	// back.
	ErrIngestionPartialFailure = errors.New("ingestion failed and was rolled back")

	// ErrNotFound means the referenced document does not exist.
	ErrNotFound = errors.New("not found")
)
