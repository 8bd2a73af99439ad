package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// httpHealthCheck probes a model-listing endpoint. Listing models costs no
// tokens and fails on bad credentials, which is what readiness needs.
type httpHealthCheck struct {
	// url is the endpoint to GET.
	url string
	// header holds auth headers to send.
	header http.Header
	// client is the HTTP client used for probes.
	client *http.Client
}

// HealthCheck issues the GET and expects a 2xx.
func (h *httpHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range h.header {
		req.Header[k] = v
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, h.url)
	}
	return nil
}

// NewHealthChecker returns a token-free probe for the configured backend, or
// nil when the backend has none (ark, gemini).
func NewHealthChecker(cfg *Config) HealthChecker {
	client := &http.Client{Timeout: 5 * time.Second}
	switch cfg.Backend {
	case BackendOllama:
		return &httpHealthCheck{
			url:    strings.TrimRight(cfg.Ollama.Host, "/") + "/api/tags",
			client: client,
		}
	case BackendOpenAI:
		base := cfg.OpenAI.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return &httpHealthCheck{
			url:    strings.TrimRight(base, "/") + "/models",
			header: http.Header{"Authorization": {"Bearer " + cfg.OpenAI.APIKey}},
			client: client,
		}
	case BackendAzure:
		az := cfg.AzureOpenAI
		return &httpHealthCheck{
			url:    strings.TrimRight(az.Endpoint, "/") + "/openai/models?api-version=" + az.APIVersion,
			header: http.Header{"Api-Key": {az.APIKey}},
			client: client,
		}
	default:
		return nil
	}
}
