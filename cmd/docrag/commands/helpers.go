package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/docrag-go/internal/budget"
	"github.com/54b3r/docrag-go/internal/chunker"
	"github.com/54b3r/docrag-go/internal/embedder"
	"github.com/54b3r/docrag-go/internal/ingestion"
	"github.com/54b3r/docrag-go/internal/provider"
	"github.com/54b3r/docrag-go/internal/rag"
	"github.com/54b3r/docrag-go/internal/server"
	"github.com/54b3r/docrag-go/internal/store"
)

// Vector index backends selectable with VECTOR_INDEX.
const (
	indexMemory = "memory"
	indexQdrant = "qdrant"
)

// components bundles the storage and embedding side shared by every command.
type components struct {
	// store is the SQLite document store (source of truth).
	store *store.SQLiteStore
	// index is the vector index selected by VECTOR_INDEX.
	index rag.VectorIndex
	// qdrant is set when index is Qdrant-backed, for readiness probes.
	qdrant *rag.QdrantIndex
	// embedder is the dimension-checked embedding backend.
	embedder *embedder.Checked
	// pipeline runs ingestion and deletion.
	pipeline *ingestion.Pipeline
	// closers release resources in reverse order.
	closers []func() error
}

// Close releases every resource opened by buildComponents.
func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

// buildComponents opens the store, the embedder and the vector index, and
// wires the ingestion pipeline over them. When hydrate is true a memory index
// is rebuilt from the store.
func buildComponents(ctx context.Context, log *slog.Logger, hydrate bool) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	embCfg, err := embedder.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if err := embedder.ValidateForRAG(log, embCfg); err != nil {
		return nil, err
	}
	c.embedder, err = embedder.New(ctx, embCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised",
		slog.String("backend", c.embedder.Name()),
		slog.Int("dimensions", c.embedder.Dimensions()),
	)

	dbPath := os.Getenv("DOCRAG_DB")
	if dbPath == "" {
		if dbPath, err = store.DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	c.store, err = store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, c.store.Close)
	log.Info("store opened", slog.String("path", dbPath))

	switch backend := indexBackend(); backend {
	case indexMemory:
		mem := rag.NewMemoryIndex(c.embedder.Dimensions())
		if hydrate {
			n, err := mem.Hydrate(ctx, c.store)
			if err != nil {
				return nil, err
			}
			log.Info("memory index hydrated", slog.Int("chunks", n))
		}
		c.index = mem
	case indexQdrant:
		qcfg := &rag.QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "docrag"),
			VectorSize: uint64(c.embedder.Dimensions()), //nolint:gosec // dimensions are validated positive
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		}
		q, err := rag.NewQdrantIndex(ctx, qcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", qcfg.Host, qcfg.Port, err)
		}
		c.qdrant, c.index = q, q
		c.closers = append(c.closers, q.Close)
		log.Info("qdrant index ready",
			slog.String("host", qcfg.Host),
			slog.Int("port", qcfg.Port),
			slog.String("collection", qcfg.Collection),
		)
	default:
		return nil, fmt.Errorf("unknown VECTOR_INDEX %q (want %s or %s)", backend, indexMemory, indexQdrant)
	}

	c.pipeline, err = ingestion.NewPipeline(c.embedder, c.store, c.index, &ingestion.Config{
		MaxWords: getEnvInt("CHUNK_MAX_WORDS", chunker.DefaultMaxWords),
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// buildAnswerer constructs the chat model, wraps it as a generator, and wires
// the query pipeline over c.
func buildAnswerer(ctx context.Context, c *components, log *slog.Logger) (*rag.Answerer, *provider.Generator, *provider.Config, error) {
	chatModel, providerCfg, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	gen, err := provider.NewGenerator(ctx, chatModel, string(providerCfg.Backend), providerCfg.Tuning)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.ModelName()),
	)

	retriever, err := buildRetriever(c)
	if err != nil {
		return nil, nil, nil, err
	}
	answerer, err := rag.NewAnswerer(retriever, gen, getEnvInt("RAG_MAX_CONTEXT_TOKENS", budget.DefaultMaxContextTokens))
	if err != nil {
		return nil, nil, nil, err
	}
	return answerer, gen, providerCfg, nil
}

// buildRetriever wires the retriever over c with RAG_TOP_K as the default k.
func buildRetriever(c *components) (*rag.DefaultRetriever, error) {
	return rag.NewRetriever(c.embedder, c.index, getEnvInt("RAG_TOP_K", rag.DefaultTopK))
}

// buildPingers returns the readiness probes for the running configuration.
func buildPingers(c *components, gen rag.Generator, providerCfg *provider.Config) []server.Pinger {
	pingers := []server.Pinger{
		server.NewStorePinger(c.store, "sqlite"),
		server.NewEmbedderPinger(c.embedder, c.embedder.Dimensions(), "embedder/"+c.embedder.Name()),
	}
	if c.qdrant != nil {
		pingers = append(pingers, server.NewQdrantPinger(c.qdrant.Client()))
	}
	pingers = append(pingers, server.NewLLMPinger(provider.NewHealthChecker(providerCfg), gen, string(providerCfg.Backend)))
	return pingers
}

// indexBackend resolves VECTOR_INDEX. When unset, a configured QDRANT_HOST
// selects qdrant; otherwise memory.
func indexBackend() string {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("VECTOR_INDEX"))); v != "" {
		return v
	}
	if os.Getenv("QDRANT_HOST") != "" {
		return indexQdrant
	}
	return indexMemory
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
