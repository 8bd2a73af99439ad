package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/54b3r/docrag-go/internal/rag"
)

// Default embedding models per backend. Each is requested at (or natively
// produces) rag.Dimensions.
const (
	defaultOllamaModel = "all-minilm"
	defaultOpenAIModel = "text-embedding-3-small"
	defaultGeminiModel = "text-embedding-004"
)

// Config is the resolved embedding configuration.
type Config struct {
	// Backend is one of ollama, openai, azure, gemini.
	Backend string
	// Model is the embedding model or deployment name.
	Model string
	// Endpoint is the backend base URL (Ollama host, OpenAI base, Azure endpoint).
	Endpoint string
	// APIKey is the backend credential.
	APIKey string
	// APIVersion is the Azure OpenAI API version.
	APIVersion string
	// Dimensions is the required vector length.
	Dimensions int
}

// Dimensions returns the configured embedding vector length:
// EMBEDDING_DIMENSIONS when set to a positive integer, rag.Dimensions
// otherwise. Callers that pre-configure a vector index should use this
// rather than hardcoding a value.
func Dimensions() int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	return rag.Dimensions
}

// ConfigFromEnv resolves embedding configuration using cascading defaults
// that inherit from the chat provider configuration when embedding-specific
// overrides are not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, else MODEL_PROVIDER, else ollama
//  2. Per-backend credentials are inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY overrides the inherited API key
//  5. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  6. EMBEDDING_DIMENSIONS overrides the default of 384
func ConfigFromEnv() (*Config, error) {
	cfg := &Config{
		Backend:    getEnv("EMBEDDING_PROVIDER"),
		Model:      getEnv("EMBEDDING_MODEL"),
		Endpoint:   getEnv("EMBEDDING_ENDPOINT"),
		APIKey:     getEnv("EMBEDDING_API_KEY"),
		Dimensions: Dimensions(),
	}
	if cfg.Backend == "" {
		cfg.Backend = getEnvOrDefault("MODEL_PROVIDER", "ollama")
	}

	switch cfg.Backend {
	case "ollama":
		cfg.Endpoint = firstNonEmpty(cfg.Endpoint, getEnv("OLLAMA_HOST"), "http://localhost:11434")
		cfg.Model = firstNonEmpty(cfg.Model, defaultOllamaModel)

	case "openai":
		cfg.APIKey = firstNonEmpty(cfg.APIKey, getEnv("OPENAI_API_KEY"))
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		cfg.Endpoint = firstNonEmpty(cfg.Endpoint, "https://api.openai.com/v1")
		cfg.Model = firstNonEmpty(cfg.Model, defaultOpenAIModel)

	case "azure":
		cfg.APIKey = firstNonEmpty(cfg.APIKey, getEnv("AZURE_OPENAI_API_KEY"))
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		cfg.Endpoint = firstNonEmpty(cfg.Endpoint, getEnv("AZURE_OPENAI_ENDPOINT"))
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		cfg.APIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview")
		cfg.Model = firstNonEmpty(cfg.Model, defaultOpenAIModel)

	case "gemini":
		cfg.APIKey = firstNonEmpty(cfg.APIKey, getEnv("GOOGLE_API_KEY"))
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: gemini requires GOOGLE_API_KEY or EMBEDDING_API_KEY")
		}
		cfg.Model = firstNonEmpty(cfg.Model, defaultGeminiModel)

	default:
		return nil, fmt.Errorf("embedder: unsupported backend %q, valid values: ollama, openai, azure, gemini (set EMBEDDING_PROVIDER when MODEL_PROVIDER has no embedding API)", cfg.Backend)
	}
	return cfg, nil
}

// New constructs the backend selected by cfg and wraps it in a Checked
// embedder enforcing cfg.Dimensions.
func New(ctx context.Context, cfg *Config) (*Checked, error) {
	var backend Backend
	switch cfg.Backend {
	case "ollama":
		backend = NewOllamaEmbedder(&OllamaConfig{Host: cfg.Endpoint, Model: cfg.Model})

	case "openai":
		backend = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})

	case "azure":
		backend = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint + "/openai",
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: cfg.APIVersion,
		})

	case "gemini":
		g, err := NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		backend = g

	default:
		return nil, fmt.Errorf("embedder: unsupported backend %q", cfg.Backend)
	}
	return NewChecked(backend, cfg.Backend, cfg.Dimensions), nil
}

// NewFromEnv resolves configuration with ConfigFromEnv and constructs the
// embedder.
func NewFromEnv(ctx context.Context) (*Checked, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

// firstNonEmpty returns the first non-empty value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
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
