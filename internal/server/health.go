// Package server implements health check handlers.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Ensure implementation satisfies interface at compile time.
var _ HealthChecker = (*SinkHealth)(nil)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// SinkStatus is the view of the file sink the readiness probe needs.
type SinkStatus interface {
	Ready() bool
	OpenFiles() int
}

// SinkHealth reports readiness from the sink and the consumer loop.
// It is ready while the writer cache is open and the consumer is running.
type SinkHealth struct {
	sink      SinkStatus
	consuming atomic.Bool
	failed    atomic.Bool
}

// NewSinkHealth creates a health checker for sink.
func NewSinkHealth(sink SinkStatus) *SinkHealth {
	return &SinkHealth{sink: sink}
}

// SetConsuming records whether the consumer loop is running.
func (h *SinkHealth) SetConsuming(running bool) {
	h.consuming.Store(running)
}

// MarkFailed makes the liveness probe fail so the process gets restarted.
func (h *SinkHealth) MarkFailed() {
	h.failed.Store(true)
}

// Liveness reports whether the process is still worth keeping.
func (h *SinkHealth) Liveness() bool {
	return !h.failed.Load()
}

// Readiness reports whether records are being consumed into open files.
func (h *SinkHealth) Readiness(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return h.IsHealthy()
}

// IsHealthy reports whether the sink is open and the consumer is running.
func (h *SinkHealth) IsHealthy() bool {
	return !h.failed.Load() && h.consuming.Load() && h.sink.Ready()
}

// GetStatus returns per-component status for the readiness body.
func (h *SinkHealth) GetStatus() map[string]string {
	sinkState := "open"
	if !h.sink.Ready() {
		sinkState = "closed"
	}
	consumerState := "running"
	if !h.consuming.Load() {
		consumerState = "stopped"
	}
	return map[string]string{
		"sink":         sinkState,
		"consumer":     consumerState,
		"open_writers": strconv.Itoa(h.sink.OpenFiles()),
	}
}

// LivenessHandler returns a handler for Kubernetes liveness probes.
// Liveness probes should only fail if the process needs to be restarted.
func LivenessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "alive"
		statusCode := http.StatusOK

		if !checker.Liveness() {
			status = "not alive"
			statusCode = http.StatusServiceUnavailable
		}

		writeHealth(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, logger)
	}
}

// ReadinessHandler returns a handler for Kubernetes readiness probes.
func ReadinessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ready"
		statusCode := http.StatusOK

		if !checker.Readiness(r.Context()) {
			status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		writeHealth(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checker.GetStatus(),
		}, logger)
	}
}

func writeHealth(w http.ResponseWriter, statusCode int, response HealthResponse, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}
