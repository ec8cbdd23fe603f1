// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

// Package observability serves Prometheus metrics and the liveness and
// readiness checks of the OrderDesk core.
package observability

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// Endpoint paths.
const (
	MetricsPath   = "/metrics"
	LivenessPath  = "/healthz/liveness"
	ReadinessPath = "/healthz/readiness"
)

const readHeaderTimeout = 10 * time.Second

// Readiness is the body of the readiness check. Details carries component
// counts such as registered users and live sessions.
type Readiness struct {
	Ready   bool           `json:"ready"`
	Version string         `json:"version,omitempty"`
	Details map[string]int `json:"details,omitempty"`
}

// ReadinessReporter returns the current readiness report. A nil reporter
// means always ready.
type ReadinessReporter func() Readiness

// liveness is the body of the liveness check.
type liveness struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Metrics contains the server's own Prometheus metrics. Component metrics
// are registered with the default registry by the packages that own them.
type Metrics struct {
	BuildInfo     *prometheus.GaugeVec
	HealthRequests *prometheus.CounterVec
}

// NewMetrics creates and registers the server metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orderdesk_build_info",
			Help: "Build information; the value is always 1",
		}, []string{"version"}),
		HealthRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderdesk_health_requests_total",
			Help: "Total number of health check requests by check and result",
		}, []string{"check", "result"}),
	}
	reg.MustRegister(m.BuildInfo, m.HealthRequests)
	return m
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for uptime reporting.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Server serves /metrics and the health checks.
type Server struct {
	addr     string
	gatherer prometheus.Gatherer
	metrics  *Metrics
	report   ReadinessReporter
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	version  string
	started  time.Time
	listener net.Listener
	http     *http.Server
}

// NewServer creates a server listening on addr ("127.0.0.1:9100", or
// "127.0.0.1:0" for an ephemeral port). /metrics serves the server's own
// registry together with the default registry, which already carries the Go
// and process collectors.
func NewServer(addr string, report ReadinessReporter, opts ...Option) *Server {
	registry := prometheus.NewRegistry()
	s := &Server{
		addr:     addr,
		gatherer: prometheus.Gatherers{prometheus.DefaultGatherer, registry},
		metrics:  NewMetrics(registry),
		report:   report,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetVersion publishes the build version on /metrics and in health bodies.
func (s *Server) SetVersion(version string) {
	s.mu.Lock()
	s.version = version
	s.mu.Unlock()
	s.metrics.BuildInfo.Reset()
	s.metrics.BuildInfo.WithLabelValues(version).Set(1)
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the health and metrics routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc(LivenessPath, s.handleLiveness)
	mux.HandleFunc(ReadinessPath, s.handleReadiness)
	return mux
}

// Start listens and serves in the background. The returned channel receives
// a serve failure and is closed once serving ends.
func (s *Server) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http != nil {
		return nil, oops.Code("OBSERVABILITY_RUNNING").With("addr", s.addr).Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, oops.Code("OBSERVABILITY_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: readHeaderTimeout}
	s.listener = listener
	s.http = srv
	s.started = s.now()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("observability server failed", "error", err)
			errCh <- err
		}
	}()

	s.logger.Info("observability server listening", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop shuts the server down. Stopping a server that is not running is a
// no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	if err := srv.Shutdown(ctx); err != nil {
		return oops.Code("OBSERVABILITY_SHUTDOWN_FAILED").With("addr", s.Addr()).Wrap(err)
	}

	s.mu.Lock()
	if s.http == srv {
		s.http = nil
	}
	s.mu.Unlock()
	s.logger.Info("observability server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	body := liveness{
		Status:        "alive",
		Version:       s.version,
		UptimeSeconds: int64(s.now().Sub(s.started) / time.Second),
	}
	s.mu.Unlock()

	s.metrics.HealthRequests.WithLabelValues("liveness", "ok").Inc()
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	report := Readiness{Ready: true}
	if s.report != nil {
		report = s.report()
	}
	s.mu.Lock()
	report.Version = s.version
	s.mu.Unlock()

	if !report.Ready {
		s.metrics.HealthRequests.WithLabelValues("readiness", "not_ready").Inc()
		s.writeJSON(w, http.StatusServiceUnavailable, report)
		return
	}
	s.metrics.HealthRequests.WithLabelValues("readiness", "ok").Inc()
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("health response not written", "error", err)
	}
}
