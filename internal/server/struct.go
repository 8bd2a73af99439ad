package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docrag-go/internal/ingestion"
	"github.com/54b3r/docrag-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// RequestTimeout bounds each upload or query, including embedding and
	// generation calls. Defaults to 2 minutes.
	RequestTimeout time.Duration
	// MaxBodyBytes caps request bodies. Defaults to 8 MiB.
	MaxBodyBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on upload, query and delete.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// IndexLen reports the number of indexed chunks for the index size gauge.
	// Optional.
	IndexLen func() int
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer serves GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Ingester is the write side used by POST /upload and DELETE /documents/{id}.
// *ingestion.Pipeline satisfies it; tests inject a fake.
type Ingester interface {
	// Ingest chunks, embeds and persists text as one document.
	Ingest(ctx context.Context, text string) (*ingestion.Result, error)
	// Delete removes a document and its chunks.
	Delete(ctx context.Context, documentID string) error
}

// Answerer is the read side used by POST /query.
// *rag.Answerer satisfies it; tests inject a fake.
type Answerer interface {
	// Answer retrieves up to k chunks and generates an answer from them.
	Answer(ctx context.Context, query string, k int) (*rag.Answer, error)
}

// Server is the HTTP server that exposes ingestion and querying.
type Server struct {
	// ingester handles uploads and deletes.
	ingester Ingester
	// answerer handles queries.
	answerer Answerer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// uploadRequest is the JSON body for POST /upload.
type uploadRequest struct {
	// Text is the document content.
	Text string `json:"text"`
}

// uploadResponse is the JSON response for POST /upload.
type uploadResponse struct {
	// DocumentID identifies the stored document.
	DocumentID string `json:"document_id"`
	// Chunks is the number of chunks created.
	Chunks int `json:"chunks"`
}

// queryRequest is the JSON body for POST /query.
type queryRequest struct {
	// Text is the question.
	Text string `json:"text"`
	// K overrides the number of chunks retrieved. Zero uses the default.
	K int `json:"k,omitempty"`
}

// queryResponse is the JSON response for POST /query.
type queryResponse struct {
	// Answer is the generated answer.
	Answer string `json:"answer"`
	// Context is the chunk texts the answer was generated from, closest first.
	Context []string `json:"context"`
}

// errorResponse is the JSON body for every non-2xx API response.
type errorResponse struct {
	// Error is a human-readable message.
	Error string `json:"error"`
}
