package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	logpkg "github.com/cyans/todo-app-sub000/internal/logger"
	"github.com/redis/go-redis/v9"
)

// Version is reported by the /version endpoint
var Version = "1.0.0"

const healthCheckTimeout = 5 * time.Second

// Pinger is a dependency the extended health check probes
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

type namedCheck struct {
	name   string
	pinger Pinger
}

// HealthChecker handles health check requests
type HealthChecker struct {
	checks  []namedCheck
	started time.Time
}

// HealthOption adds an optional dependency to the extended check
type HealthOption func(*HealthChecker)

// WithRedis checks the rate limit Redis connection
func WithRedis(client *redis.Client) HealthOption {
	return WithCheck("redis", PingFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
}

// WithCheck adds a named dependency
func WithCheck(name string, pinger Pinger) HealthOption {
	return func(h *HealthChecker) {
		h.checks = append(h.checks, namedCheck{name: name, pinger: pinger})
	}
}

// NewHealthChecker creates a health checker that always probes the todo store
func NewHealthChecker(store Pinger, opts ...HealthOption) *HealthChecker {
	h := &HealthChecker{
		checks:  []namedCheck{{name: "database", pinger: store}},
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	Checks        map[string]string `json:"checks,omitempty"`
	UptimeSeconds float64           `json:"uptimeSeconds,omitempty"`
	Version       string            `json:"version,omitempty"`
}

// HealthCheck handles the /healthz endpoint. Basic mode only reports that the
// process is serving; mode=extended probes every dependency and answers 503
// when one of them fails.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if r.URL.Query().Get("mode") == "extended" {
		var healthy bool
		response.Checks, healthy = h.runChecks(r.Context())
		if !healthy {
			response.Status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
		}
	}

	writeHealth(w, statusCode, response)
}

// Ready handles the /ready probe: every dependency must answer before the
// instance takes traffic
func (h *HealthChecker) Ready(w http.ResponseWriter, r *http.Request) {
	checks, healthy := h.runChecks(r.Context())
	response := HealthResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	statusCode := http.StatusOK
	if !healthy {
		response.Status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}
	writeHealth(w, statusCode, response)
}

// Live handles the /live probe. It never touches dependencies.
func (h *HealthChecker) Live(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, HealthResponse{
		Status:        "alive",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: time.Since(h.started).Seconds(),
		Version:       Version,
	})
}

func (h *HealthChecker) runChecks(ctx context.Context) (map[string]string, bool) {
	results := make(map[string]string, len(h.checks))
	healthy := true
	for _, check := range h.checks {
		if err := probe(ctx, check.pinger); err != nil {
			healthy = false
			results[check.name] = "unhealthy: " + logpkg.SanitizeError(err)
			continue
		}
		results[check.name] = "healthy"
	}
	return results, healthy
}

func probe(ctx context.Context, pinger Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return pinger.Ping(ctx)
}

// LegacyHealth handles the /health endpoint
func LegacyHealth(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// VersionInfo handles the /version endpoint
func VersionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"version":   Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeHealth(w http.ResponseWriter, statusCode int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
