package embedder

import (
	"context"
	"fmt"

	"github.com/54b3r/docrag-go/internal/rag"
)

// Backend is a batch embedding client for one provider. The returned slice is
// parallel to texts. Implementations must be safe to call from multiple
// goroutines.
type Backend interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Checked adapts a Backend to rag.Embedder. It embeds one text per call,
// never caches, and rejects any vector whose length is not the configured
// dimensionality. Every failure wraps rag.ErrEmbedding.
type Checked struct {
	// backend performs the actual embedding call.
	backend Backend

	// dims is the required vector length.
	dims int

	// name labels the backend in errors and readiness output.
	name string
}

// compile-time interface check
var _ rag.Embedder = (*Checked)(nil)

// NewChecked wraps backend. dims <= 0 selects rag.Dimensions.
func NewChecked(backend Backend, name string, dims int) *Checked {
	if dims <= 0 {
		dims = rag.Dimensions
	}
	return &Checked{backend: backend, dims: dims, name: name}
}

// Name returns the backend label (e.g. "ollama").
func (c *Checked) Name() string { return c.name }

// Dimensions returns the vector length every result is checked against.
func (c *Checked) Dimensions() int { return c.dims }

// Embed returns the embedding for text.
func (c *Checked) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.backend.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedder: %s: %w: %w", c.name, rag.ErrEmbedding, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder: %s: %w: expected 1 vector, got %d", c.name, rag.ErrEmbedding, len(vecs))
	}
	if err := rag.CheckDimensions(vecs[0], c.dims); err != nil {
		return nil, fmt.Errorf("embedder: %s: %w: %w", c.name, rag.ErrEmbedding, err)
	}
	return vecs[0], nil
}
