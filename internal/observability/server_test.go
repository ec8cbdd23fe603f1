// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package observability

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// componentCounter stands in for a metric registered by another package.
var componentCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "orderdesk_observability_test_component_total",
	Help: "Counter registered on the default registry by a test",
})

// readyWhen reports readiness from a flag with no details.
func readyWhen(flag func() bool) ReadinessReporter {
	return func() Readiness { return Readiness{Ready: flag()} }
}

func startServer(t *testing.T, report ReadinessReporter, opts ...Option) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", report, opts...)
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	require.NotEmpty(t, server.Addr())
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func getJSON(t *testing.T, server *Server, path string, into any) int {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	return resp.StatusCode
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, readyWhen(func() bool { return true }))
	server.SetVersion("1.2.3")
	componentCounter.Inc()

	status, body := get(t, server, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "# TYPE")
	assert.Contains(t, body, "go_", "default registry Go collector")
	assert.Contains(t, body, `orderdesk_build_info{version="1.2.3"} 1`)
	assert.Contains(t, body, "orderdesk_observability_test_component_total")
}

func TestServer_SetVersionReplacesPrevious(t *testing.T) {
	server := startServer(t, nil)
	server.SetVersion("old")
	server.SetVersion("new")

	_, body := get(t, server, "/metrics")
	assert.Contains(t, body, `orderdesk_build_info{version="new"} 1`)
	assert.NotContains(t, body, `version="old"`)
}

func TestServer_Liveness(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var elapsed atomic.Int64
	clock := func() time.Time { return now.Add(time.Duration(elapsed.Load())) }
	server := startServer(t, readyWhen(func() bool { return false }), WithClock(clock))
	server.SetVersion("1.2.3")
	elapsed.Store(int64(90 * time.Second))

	var body liveness
	status := getJSON(t, server, LivenessPath, &body)
	assert.Equal(t, http.StatusOK, status, "liveness ignores readiness")
	assert.Equal(t, "alive", body.Status)
	assert.Equal(t, "1.2.3", body.Version)
	assert.Equal(t, int64(90), body.UptimeSeconds)
}

func TestServer_Readiness(t *testing.T) {
	var ready atomic.Bool
	server := startServer(t, readyWhen(ready.Load))

	var body Readiness
	status := getJSON(t, server, ReadinessPath, &body)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.False(t, body.Ready)

	ready.Store(true)
	body = Readiness{}
	status = getJSON(t, server, ReadinessPath, &body)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Ready)

	_, metrics := get(t, server, MetricsPath)
	assert.Contains(t, metrics, `orderdesk_health_requests_total{check="readiness",result="not_ready"} 1`)
	assert.Contains(t, metrics, `orderdesk_health_requests_total{check="readiness",result="ok"} 1`)
}

func TestServer_ReadinessCarriesDetails(t *testing.T) {
	server := startServer(t, func() Readiness {
		return Readiness{Ready: true, Version: "ignored", Details: map[string]int{"users": 3, "sessions": 1}}
	})
	server.SetVersion("2.0.0")

	var body Readiness
	status := getJSON(t, server, ReadinessPath, &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2.0.0", body.Version, "server version wins over the reporter's")
	assert.Equal(t, map[string]int{"users": 3, "sessions": 1}, body.Details)
}

func TestServer_ReadinessWithNilReporter(t *testing.T) {
	server := startServer(t, nil)

	var body Readiness
	status := getJSON(t, server, ReadinessPath, &body)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Ready)
	assert.Empty(t, body.Details)
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)

	_, err := server.Start()
	require.Error(t, err)
}

func TestServer_StopIdempotent(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	ctx := t.Context()

	require.NoError(t, server.Stop(ctx), "stop before start")
	_, err := server.Start()
	require.NoError(t, err)
	require.NoError(t, server.Stop(ctx))
	require.NoError(t, server.Stop(ctx))
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Stop(context.Background()) })

	_ = server.listener.Close()

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for serve error")
	}
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error channel to close")
	}
}
