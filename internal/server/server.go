// Package server implements the HTTP API that exposes document upload,
// question answering and deletion. It is started by the `docrag serve`
// command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/rag"
)

// Operation labels used in metrics.
const (
	opUpload = "upload"
	opQuery  = "query"
	opDelete = "delete"
)

// New constructs a Server around the ingestion and query sides.
func New(ing Ingester, ans Answerer, cfg *Config) (*Server, error) {
	if ing == nil {
		return nil, fmt.Errorf("server: ingester must not be nil")
	}
	if ans == nil {
		return nil, fmt.Errorf("server: answerer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		// Must outlast RequestTimeout so the error response can still be written.
		cfg.WriteTimeout = cfg.RequestTimeout + 10*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 8 << 20
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	s := &Server{
		ingester: ing,
		answerer: ans,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry, cfg.IndexLen),
	}

	if cfg.APIKey == "" {
		log.Warn("server: DOCRAG_API_KEY not set, authentication disabled")
	}

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// routes builds the handler tree. Upload and query are rate limited; every
// mutating or model-backed route requires the API key when one is set.
func (s *Server) routes() http.Handler {
	rl, stop := newRateLimiter(s.cfg.RateLimit, s.cfg.RateBurst, s.log)
	s.stopRL = stop

	protected := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(s.cfg.APIKey, h)
	}
	limited := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(s.cfg.APIKey, rl.middleware(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /upload", limited(s.handleUpload))
	mux.Handle("POST /query", limited(s.handleQuery))
	mux.Handle("DELETE /documents/{id}", protected(s.handleDelete))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	return requestLogger(s.log, s.metrics, mux)
}

// Handler returns the root handler, for embedding in another server or tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.log.Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleUpload handles POST /upload.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.ingester.Ingest(ctx, req.Text)
	s.observe(opUpload, start, err)
	if err != nil {
		s.writeFailure(w, r, "upload failed", err)
		return
	}
	s.metrics.chunksIngestedTotal.Add(float64(res.Chunks))

	writeJSON(w, http.StatusOK, uploadResponse{DocumentID: res.DocumentID, Chunks: res.Chunks})
}

// handleQuery handles POST /query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.K < 0 {
		writeError(w, http.StatusUnprocessableEntity, "k must not be negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	ans, err := s.answerer.Answer(ctx, req.Text, req.K)
	s.observe(opQuery, start, err)
	if err != nil {
		s.writeFailure(w, r, "query failed", err)
		return
	}
	s.metrics.contextChunks.Observe(float64(len(ans.Context)))

	resp := queryResponse{Answer: ans.Text, Context: ans.Context}
	if resp.Context == nil {
		resp.Context = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDelete handles DELETE /documents/{id}.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusUnprocessableEntity, "document id is required")
		return
	}

	start := time.Now()
	err := s.ingester.Delete(r.Context(), id)
	s.observe(opDelete, start, err)
	if err != nil {
		s.writeFailure(w, r, "delete failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body with a non-empty "text" field into dst. On failure
// it writes a 422 and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{ text() string }) bool {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return false
	}
	if strings.TrimSpace(dst.text()) == "" {
		writeError(w, http.StatusUnprocessableEntity, "text is required")
		return false
	}
	return true
}

func (r *uploadRequest) text() string { return r.Text }
func (r *queryRequest) text() string  { return r.Text }

// observe records the outcome and latency of one operation.
func (s *Server) observe(op string, start time.Time, err error) {
	outcome := outcomeFor(err)
	s.metrics.ragRequestsTotal.WithLabelValues(op, outcome).Inc()
	s.metrics.ragDurationSeconds.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

// writeFailure maps err to a status code, logs it, and writes a JSON error.
// Server-side failures hide the underlying message from the client.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	log := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error(msg, slog.Int("status", status), slog.String("error", err.Error()))
	} else {
		log.Info(msg, slog.Int("status", status), slog.String("error", err.Error()))
	}
	writeError(w, status, clientMessage(status, err))
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, rag.ErrNoRelevantContent), errors.Is(err, rag.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rag.ErrEmbedding), errors.Is(err, rag.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// outcomeFor maps an error to a low-cardinality metrics label.
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, rag.ErrNoRelevantContent), errors.Is(err, rag.ErrNotFound):
		return "not_found"
	case errors.Is(err, rag.ErrEmbedding):
		return "embedding_error"
	case errors.Is(err, rag.ErrGeneration):
		return "generation_error"
	default:
		return "error"
	}
}

// clientMessage returns the text sent to the client for a failure.
func clientMessage(status int, err error) string {
	switch status {
	case http.StatusNotFound:
		if errors.Is(err, rag.ErrNotFound) {
			return rag.ErrNotFound.Error()
		}
		return rag.ErrNoRelevantContent.Error()
	case http.StatusBadGateway:
		if errors.Is(err, rag.ErrGeneration) {
			return rag.ErrGeneration.Error()
		}
		return rag.ErrEmbedding.Error()
	case http.StatusServiceUnavailable:
		return "request cancelled or timed out"
	default:
		return "internal error"
	}
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": msg} with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
