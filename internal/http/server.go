package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cratedigger/internal/core"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	config *core.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// Metrics implements core.Recorder on Prometheus collectors.
type Metrics struct {
	QueriesTotal     *prometheus.CounterVec
	RemoteCallsTotal *prometheus.CounterVec
	MatchScore       *prometheus.HistogramVec
	ProcessingTime   *prometheus.HistogramVec
	DedupSize        *prometheus.GaugeVec
}

// NewMetrics creates the run metrics and registers them with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cratedigger_queries_total",
				Help: "Total number of queries processed, by terminal outcome",
			},
			[]string{"target", "outcome"},
		),
		RemoteCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cratedigger_remote_calls_total",
				Help: "Total number of remote API calls",
			},
			[]string{"dependency", "status"},
		),
		MatchScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cratedigger_match_score",
				Help:    "Similarity score of the best candidate above threshold",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
			[]string{"target"},
		),
		ProcessingTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cratedigger_processing_duration_seconds",
				Help:    "Time spent processing one query",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"target"},
		),
		DedupSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cratedigger_dedup_size",
				Help: "Number of identifiers known to be present in the target",
			},
			[]string{"target"},
		),
	}

	registry.MustRegister(
		metrics.QueriesTotal,
		metrics.RemoteCallsTotal,
		metrics.MatchScore,
		metrics.ProcessingTime,
		metrics.DedupSize,
	)

	return metrics
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func (m *Metrics) RecordOutcome(target string, outcome core.Outcome) {
	m.QueriesTotal.WithLabelValues(target, outcome.String()).Inc()
}

func (m *Metrics) RecordRemoteCall(dependency, status string) {
	m.RemoteCallsTotal.WithLabelValues(dependency, status).Inc()
}

func (m *Metrics) RecordScore(target string, score float64) {
	m.MatchScore.WithLabelValues(target).Observe(score)
}

func (m *Metrics) RecordProcessingTime(target string, duration time.Duration) {
	m.ProcessingTime.WithLabelValues(target).Observe(duration.Seconds())
}

func (m *Metrics) SetDedupSize(target string, size int) {
	m.DedupSize.WithLabelValues(target).Set(float64(size))
}

// NewServer serves /metrics from gatherer plus health endpoints.
func NewServer(config *core.ServerConfig, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	return &Server{
		config: config,
		logger: logger,
		server: createHTTPServer(config, setupRoutes(gatherer, logger)),
	}
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func setupRoutes(gatherer prometheus.Gatherer, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", jsonStatus(`{"status":"ok","service":"cratedigger"}`, logger))
	mux.HandleFunc("/readyz", jsonStatus(`{"status":"ready","service":"cratedigger"}`, logger))
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", homeHandler(logger))

	return mux
}

func jsonStatus(body string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(body)); err != nil {
			logger.Debug("Failed to write status response", zap.Error(err))
		}
	}
}

func homeHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>CrateDigger</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .header { color: #333; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
        .endpoint a:hover { text-decoration: underline; }
    </style>
</head>
<body>
    <h1 class="header">📀 CrateDigger</h1>
    <p>Spotify → Discogs / YouTube reconciliation run</p>

    <h2>Endpoints</h2>
    <div class="endpoint">📊 <a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint">💚 <a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint">✅ <a href="/readyz">Ready</a> - Readiness check</div>
</body>
</html>`)); err != nil {
			logger.Debug("Failed to write home page", zap.Error(err))
		}
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}
