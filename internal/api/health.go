package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/visuals"
)

const healthPingTimeout = 2 * time.Second

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResponse represents a comprehensive health check response
type HealthCheckResponse struct {
	Status        HealthStatus           `json:"status"`
	Timestamp     string                 `json:"timestamp"`
	Version       string                 `json:"version"`
	EngineVersion string                 `json:"engine_version"`
	GitCommit     string                 `json:"git_commit,omitempty"`
	BuildTime     string                 `json:"build_time,omitempty"`
	Uptime        string                 `json:"uptime"`
	Checks        map[string]HealthCheck `json:"checks"`
	System        SystemInfo             `json:"system"`
	RequestID     string                 `json:"request_id,omitempty"`
}

// HealthCheck represents an individual health check
type HealthCheck struct {
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked string       `json:"last_checked"`
	Duration    string       `json:"duration,omitempty"`
}

// SystemInfo contains system information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	GOMAXPROCS    int    `json:"gomaxprocs"`
	MemoryAlloc   uint64 `json:"memory_alloc_bytes"`
	MemorySys     uint64 `json:"memory_sys_bytes"`
	GCCycles      uint32 `json:"gc_cycles"`
}

// worse returns the more severe of two statuses.
func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{HealthStatusHealthy: 0, HealthStatusDegraded: 1, HealthStatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// handleHealthCheck provides comprehensive health check endpoint
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	checks := map[string]HealthCheck{
		"generator": s.checkGenerator(),
		"effects":   s.checkEffects(),
		"database":  s.checkDatabase(r.Context()),
	}
	overall := HealthStatusHealthy
	for _, c := range checks {
		overall = worse(overall, c.Status)
	}

	response := HealthCheckResponse{
		Status:        overall,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       Version,
		EngineVersion: engine.Version,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		Uptime:        s.Uptime().String(),
		Checks:        checks,
		System:        getSystemInfo(),
		RequestID:     requestID,
	}

	statusCode := http.StatusOK
	if overall == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	s.securityLogger.LogAuditEvent(requestID, "health_check", "system", string(overall), map[string]any{
		"checks":      len(checks),
		"status_code": statusCode,
	})

	s.writeJSON(w, statusCode, response)
}

// handleReadiness provides readiness probe endpoint
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	ready := true
	message := "Ready"
	if c := s.checkEffects(); c.Status == HealthStatusUnhealthy {
		ready, message = false, c.Message
	} else if c := s.checkDatabase(r.Context()); c.Status == HealthStatusUnhealthy {
		ready, message = false, c.Message
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	s.writeJSON(w, statusCode, map[string]any{
		"ready":          ready,
		"message":        message,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"engine_version": engine.Version,
		"request_id":     requestID,
	})
}

// handleLiveness provides liveness probe endpoint
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"alive":          true,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"engine_version": engine.Version,
		"uptime":         s.Uptime().String(),
		"request_id":     middleware.GetReqID(r.Context()),
	})
}

// checkGenerator confirms two generators on one seed agree and stay in [0,1).
func (s *Server) checkGenerator() HealthCheck {
	start := time.Now()
	a := engine.Floats("health", 8)
	b := engine.Floats("health", 8)

	status, message := HealthStatusHealthy, "generator deterministic"
	for i := range a {
		if a[i] != b[i] || a[i] < 0 || a[i] >= 1 {
			status, message = HealthStatusUnhealthy, fmt.Sprintf("draw %d out of contract", i)
			break
		}
	}
	return newHealthCheck(status, message, start)
}

func (s *Server) checkEffects() HealthCheck {
	start := time.Now()
	n := len(visuals.ListEffects())
	if n == 0 {
		return newHealthCheck(HealthStatusUnhealthy, "No effects registered", start)
	}
	return newHealthCheck(HealthStatusHealthy, fmt.Sprintf("%d effects registered", n), start)
}

// checkDatabase pings the store. Running without one is degraded, not down.
func (s *Server) checkDatabase(ctx context.Context) HealthCheck {
	start := time.Now()
	if s.db == nil {
		return newHealthCheck(HealthStatusDegraded, "Persistence disabled", start)
	}

	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		return newHealthCheck(HealthStatusUnhealthy, "Database unreachable: "+err.Error(), start)
	}
	return newHealthCheck(HealthStatusHealthy, "Database connection healthy", start)
}

func newHealthCheck(status HealthStatus, message string, start time.Time) HealthCheck {
	return HealthCheck{
		Status:      status,
		Message:     message,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}

// getSystemInfo collects system information
func getSystemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
		MemoryAlloc:   m.Alloc,
		MemorySys:     m.Sys,
		GCCycles:      m.NumGC,
	}
}
