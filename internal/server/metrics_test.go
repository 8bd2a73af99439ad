package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// counterValue returns the value of the counter series matching labels, or -1
// when absent.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			got := make(map[string]string)
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return -1
}

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	newServerMetrics(reg, nil)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/metrics", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_UploadCountersIncremented(t *testing.T) {
	t.Parallel()
	var reg *prometheus.Registry
	s := newTestServer(t, nil, nil, func(c *Config) {
		reg = prometheus.NewRegistry()
		c.MetricsRegistry, c.MetricsGatherer = reg, reg
	})

	if w := do(t, s, http.MethodPost, "/upload", `{"text":"hello"}`); w.Code != http.StatusOK {
		t.Fatalf("upload: %d", w.Code)
	}

	if got := counterValue(t, reg, "docrag_rag_requests_total", map[string]string{"operation": "upload", "outcome": "ok"}); got != 1 {
		t.Errorf("rag requests counter = %v, want 1", got)
	}
	if got := counterValue(t, reg, "docrag_ingestion_chunks_total", nil); got != 1 {
		t.Errorf("chunks counter = %v, want 1", got)
	}
	if got := counterValue(t, reg, "docrag_http_requests_total", map[string]string{"handler": "POST /upload", "code": "200"}); got != 1 {
		t.Errorf("http requests counter = %v, want 1", got)
	}
}

func Test_Metrics_IndexGauge(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	n := 7
	newServerMetrics(reg, func() int { return n })

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "docrag_index_chunks" {
			if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 7 {
				t.Errorf("want index_chunks=7, got %v", v)
			}
			return
		}
	}
	t.Error("docrag_index_chunks not found in gathered metrics")
}

func Test_Metrics_ServedByServer(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil, nil)

	w := do(t, s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "docrag_rag_requests_total") &&
		!strings.Contains(w.Body.String(), "# HELP") {
		t.Errorf("unexpected exposition body: %q", w.Body.String())
	}
}

func TestOutcomeFor(t *testing.T) {
	t.Parallel()
	if got := outcomeFor(nil); got != "ok" {
		t.Errorf("outcomeFor(nil) = %q", got)
	}
}
