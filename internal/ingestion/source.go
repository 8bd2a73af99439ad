package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// maxSourceBytes caps how much a single file or URL may contribute.
const maxSourceBytes = 16 << 20

// Source describes where a document's text comes from. Exactly one of Path
// or URL is set.
type Source struct {
	// Path is a local file. Files ending in .pdf have their text extracted;
	// everything else is read as UTF-8 text.
	Path string

	// URL is an HTTP(S) URL whose body is ingested as text.
	URL string
}

// String returns the path or URL for log and progress output.
func (s Source) String() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Path
}

// IngestSources loads and ingests each source in order and returns the
// results so far plus the first error encountered. Each source becomes its
// own document, so a failure leaves earlier documents in place.
// Progress is reported via the optional progress callback.
func (p *Pipeline) IngestSources(ctx context.Context, sources []Source, progress func(msg string)) ([]*Result, error) {
	if progress == nil {
		progress = func(string) {}
	}

	results := make([]*Result, 0, len(sources))
	for _, src := range sources {
		progress(fmt.Sprintf("loading %s", src))

		text, err := p.loader.Load(ctx, src)
		if err != nil {
			return results, fmt.Errorf("ingestion: load %s: %w", src, err)
		}

		res, err := p.Ingest(ctx, text)
		if err != nil {
			return results, fmt.Errorf("%s: %w", src, err)
		}
		results = append(results, res)

		progress(fmt.Sprintf("ingested %s as %s (%d chunks)", src, res.DocumentID, res.Chunks))
	}
	return results, nil
}

// Loader reads the text of file and URL sources without ingesting it, so
// callers that forward text elsewhere load sources the same way.
type Loader struct {
	// client fetches URL sources.
	client *http.Client

	// userAgent is sent with every fetch.
	userAgent string
}

// NewLoader returns a Loader using cfg's HTTP timeout and user agent,
// defaulting to 30s and a docrag user agent. cfg may be nil.
func NewLoader(cfg *Config) *Loader {
	timeout, ua := 30*time.Second, "docrag/1.0 (document ingestion)"
	if cfg != nil {
		if cfg.HTTPTimeout > 0 {
			timeout = cfg.HTTPTimeout
		}
		if cfg.UserAgent != "" {
			ua = cfg.UserAgent
		}
	}
	return &Loader{client: &http.Client{Timeout: timeout}, userAgent: ua}
}

// Load returns the text of src.
func (l *Loader) Load(ctx context.Context, src Source) (string, error) {
	switch {
	case src.URL != "":
		return l.fetch(ctx, src.URL)
	case src.Path != "":
		return LoadFile(src.Path)
	default:
		return "", fmt.Errorf("source has neither path nor url")
	}
}

// fetch retrieves the raw text content of a URL.
func (l *Loader) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/plain, text/markdown, text/html")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	return string(body), nil
}

// LoadFile returns the text of the file at path. PDFs are converted to plain
// text; any other file must be valid UTF-8.
func LoadFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return loadPDF(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxSourceBytes {
		return "", fmt.Errorf("file is %d bytes, limit is %d", len(data), maxSourceBytes)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file is not valid UTF-8 text")
	}
	return string(data), nil
}

// loadPDF extracts the plain text of every page of a PDF.
func loadPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(text, maxSourceBytes)); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	if strings.TrimSpace(buf.String()) == "" {
		return "", fmt.Errorf("no text extracted from pdf")
	}
	return buf.String(), nil
}
