package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/docrag-go/internal/rag"
)

// detectTimeout bounds the health probe used to find a running server.
const detectTimeout = 500 * time.Millisecond

// remoteClient sends ingest and delete to a running docrag server. In memory
// index mode the server owns the only live index, so writes from another
// process must go through it.
type remoteClient struct {
	// base is the server root URL without a trailing slash.
	base string

	// apiKey is sent as a bearer token when set.
	apiKey string

	// http performs the requests.
	http *http.Client
}

// uploadResult mirrors the POST /upload response body.
type uploadResult struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

// resolveRemote returns a client for the server that ingest and delete must
// go through, or nil when the command should write to the store directly.
//
// With a qdrant index every process shares the index, so nil is returned.
// With a memory index, an explicit serverURL (or DOCRAG_SERVER_URL) is used
// as is; otherwise the DOCRAG_HOST:DOCRAG_PORT address `serve` would bind is
// probed and used when a docrag server answers there.
func resolveRemote(ctx context.Context, log *slog.Logger, serverURL string) (*remoteClient, error) {
	if indexBackend() != indexMemory {
		return nil, nil
	}
	rc := &remoteClient{
		apiKey: os.Getenv("DOCRAG_API_KEY"),
		http:   &http.Client{Timeout: 5 * time.Minute},
	}

	if serverURL == "" {
		serverURL = os.Getenv("DOCRAG_SERVER_URL")
	}
	if serverURL != "" {
		u, err := url.Parse(serverURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid server URL %q", serverURL)
		}
		rc.base = strings.TrimRight(serverURL, "/")
		log.Info("forwarding to docrag server", slog.String("url", rc.base))
		return rc, nil
	}

	addr := net.JoinHostPort(
		getEnvOrDefault("DOCRAG_HOST", "127.0.0.1"),
		strconv.Itoa(getEnvInt("DOCRAG_PORT", 8080)),
	)
	rc.base = "http://" + addr
	if !rc.healthy(ctx) {
		return nil, nil
	}
	log.Info("docrag server detected, forwarding", slog.String("url", rc.base))
	return rc, nil
}

// healthy reports whether a docrag server answers GET /api/health.
func (rc *remoteClient) healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rc.base+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := rc.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
	}
	if resp.StatusCode != http.StatusOK || json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body) != nil {
		return false
	}
	return body.Status == "ok"
}

// upload posts text to /upload.
func (rc *remoteClient) upload(ctx context.Context, text string) (*uploadResult, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	resp, err := rc.do(ctx, http.MethodPost, "/upload", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, remoteError(resp)
	}
	var res uploadResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &res, nil
}

// delete calls DELETE /documents/{id}. A 404 wraps rag.ErrNotFound.
func (rc *remoteClient) delete(ctx context.Context, documentID string) error {
	resp, err := rc.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(documentID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("document %s: %w", documentID, rag.ErrNotFound)
	default:
		return remoteError(resp)
	}
}

// do sends a request with the API key and a JSON body when payload is set.
func (rc *remoteClient) do(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rc.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rc.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+rc.apiKey)
	}
	resp, err := rc.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// remoteError turns a non-success response into an error carrying the
// server's message.
func remoteError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	if body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
}
