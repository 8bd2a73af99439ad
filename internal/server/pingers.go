package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/docrag-go/internal/provider"
	"github.com/54b3r/docrag-go/internal/rag"
)

// StorePinger probes the document store.
type StorePinger struct {
	// store is the document store to probe.
	store interface{ Ping(ctx context.Context) error }
	// name labels the store (e.g. "sqlite").
	name string
}

// NewStorePinger constructs a StorePinger.
func NewStorePinger(store interface{ Ping(ctx context.Context) error }, name string) *StorePinger {
	return &StorePinger{store: store, name: name}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return p.name }

// Ping delegates to the store.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// LLMPinger probes the generation backend. When a token-free health check is
// available it is used exclusively; otherwise it falls back to a tiny
// completion, which consumes tokens.
type LLMPinger struct {
	// healthCheck is the token-free probe, or nil.
	healthCheck provider.HealthChecker
	// generator is the fallback probe target.
	generator rag.Generator
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger. hc may be nil.
func NewLLMPinger(hc provider.HealthChecker, g rag.Generator, name string) *LLMPinger {
	return &LLMPinger{healthCheck: hc, generator: g, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping probes the LLM backend for readiness.
func (p *LLMPinger) Ping(ctx context.Context) error {
	if p.healthCheck != nil {
		if err := p.healthCheck.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s health check failed: %w", p.name, err)
		}
		return nil
	}
	if p.generator == nil {
		return fmt.Errorf("%s: no probe available", p.name)
	}

	slog.Warn("pinger: falling back to completion-based health check, tokens will be consumed",
		slog.String("backend", p.name),
	)
	if _, err := p.generator.Complete(ctx, "Reply with OK.", "ping"); err != nil {
		return fmt.Errorf("completion failed: %w", err)
	}
	return nil
}

// EmbedderPinger probes the embedding backend with a one-word input and
// checks the returned vector length.
type EmbedderPinger struct {
	// embedder is the backend to probe.
	embedder rag.Embedder
	// dims is the expected vector length.
	dims int
	// name identifies the backend (e.g. "embedder/ollama").
	name string
}

// NewEmbedderPinger constructs an EmbedderPinger.
func NewEmbedderPinger(e rag.Embedder, dims int, name string) *EmbedderPinger {
	return &EmbedderPinger{embedder: e, dims: dims, name: name}
}

// Name returns the dependency label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping embeds a single word.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vec, err := p.embedder.Embed(ctx, "ping")
	if err != nil {
		return err
	}
	return rag.CheckDimensions(vec, p.dims)
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
