package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"cratedigger/internal/core"
)

var _ core.Recorder = (*Metrics)(nil)

func TestCreateHTTPServer(t *testing.T) {
	config := &core.ServerConfig{
		Host:         "0.0.0.0",
		Port:         9090,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	mux := http.NewServeMux()
	server := createHTTPServer(config, mux)

	expectedAddr := "0.0.0.0:9090"
	if server.Addr != expectedAddr {
		t.Errorf("createHTTPServer() Addr = %q, expected %q", server.Addr, expectedAddr)
	}

	if server.Handler != mux {
		t.Errorf("createHTTPServer() Handler mismatch")
	}

	if server.ReadTimeout != config.ReadTimeout {
		t.Errorf("createHTTPServer() ReadTimeout = %v, expected %v", server.ReadTimeout, config.ReadTimeout)
	}

	if server.WriteTimeout != config.WriteTimeout {
		t.Errorf("createHTTPServer() WriteTimeout = %v, expected %v", server.WriteTimeout, config.WriteTimeout)
	}
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to call %s: %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", url, err)
	}
	return resp, string(body)
}

func TestSetupRoutes(t *testing.T) {
	tests := []struct {
		path        string
		contentType string
		body        string
	}{
		{"/healthz", "application/json", `{"status":"ok","service":"cratedigger"}`},
		{"/readyz", "application/json", `{"status":"ready","service":"cratedigger"}`},
	}

	server := httptest.NewServer(setupRoutes(prometheus.NewRegistry(), zap.NewNop()))
	defer server.Close()

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, server.URL+tt.path)

			if resp.StatusCode != http.StatusOK {
				t.Errorf("%s returned status %d, expected %d", tt.path, resp.StatusCode, http.StatusOK)
			}
			if contentType := resp.Header.Get("Content-Type"); contentType != tt.contentType {
				t.Errorf("%s Content-Type = %q, expected %q", tt.path, contentType, tt.contentType)
			}
			if body != tt.body {
				t.Errorf("%s body = %q, expected %q", tt.path, body, tt.body)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.RecordOutcome("discogs", core.OutcomeDone)
	metrics.RecordRemoteCall("discogs", core.CallStatusRateLimited)

	server := httptest.NewServer(setupRoutes(registry, zap.NewNop()))
	defer server.Close()

	resp, body := get(t, server.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics returned status %d", resp.StatusCode)
	}

	expected := []string{
		`cratedigger_queries_total{outcome="done",target="discogs"} 1`,
		`cratedigger_remote_calls_total{dependency="discogs",status="rate_limited"} 1`,
	}
	for _, line := range expected {
		if !strings.Contains(body, line) {
			t.Errorf("/metrics missing %q", line)
		}
	}
}

func TestHomeHandler(t *testing.T) {
	handler := homeHandler(zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	if contentType := rec.Header().Get("Content-Type"); contentType != "text/html" {
		t.Errorf("Expected Content-Type text/html, got %q", contentType)
	}

	body := rec.Body.String()
	for _, element := range []string{"<title>CrateDigger</title>", "/metrics", "/healthz", "/readyz"} {
		if !strings.Contains(body, element) {
			t.Errorf("Expected body to contain %q", element)
		}
	}
}

func TestMetrics_Recorder(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordOutcome("youtube", core.OutcomeNoMatch)
	metrics.RecordOutcome("youtube", core.OutcomeNoMatch)
	metrics.RecordRemoteCall("youtube", core.CallStatusOK)
	metrics.RecordScore("youtube", 87)
	metrics.RecordProcessingTime("youtube", 250*time.Millisecond)
	metrics.SetDedupSize("youtube", 12)

	if got := testutil.ToFloat64(metrics.QueriesTotal.WithLabelValues("youtube", "no_match")); got != 2 {
		t.Errorf("queries_total = %v, expected 2", got)
	}
	if got := testutil.ToFloat64(metrics.RemoteCallsTotal.WithLabelValues("youtube", "ok")); got != 1 {
		t.Errorf("remote_calls_total = %v, expected 1", got)
	}
	if got := testutil.ToFloat64(metrics.DedupSize.WithLabelValues("youtube")); got != 12 {
		t.Errorf("dedup_size = %v, expected 12", got)
	}
	if got := testutil.CollectAndCount(metrics.MatchScore); got != 1 {
		t.Errorf("match_score series = %d, expected 1", got)
	}
}

func TestServer_StartContextCancellation(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	config := &core.ServerConfig{Host: "127.0.0.1", Port: port, ReadTimeout: time.Second, WriteTimeout: time.Second}
	server := NewServer(config, NewRegistry(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v, expected nil after cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancellation")
	}
}
