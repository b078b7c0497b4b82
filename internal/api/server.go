// Package api exposes rendering, verification, scanning and scripted effects
// over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/metrics"
	"github.com/MJE43/visual-replay-go/internal/render"
	"github.com/MJE43/visual-replay-go/internal/scan"
	"github.com/MJE43/visual-replay-go/internal/scripting"
	"github.com/MJE43/visual-replay-go/internal/seeds"
	"github.com/MJE43/visual-replay-go/internal/store"
)

const defaultRequestTimeout = 60 * time.Second

// Services are the backends a Server routes to. Nil fields get defaults; a
// nil DB disables persistence and the history endpoints.
type Services struct {
	DB             store.DB
	Render         *render.Service
	Scans          *scan.Service
	Scripts        *scripting.Runner
	Clock          clockwork.Clock
	AmbientBucket  time.Duration
	RequestTimeout time.Duration
}

// Server handles HTTP requests
type Server struct {
	db             store.DB
	render         *render.Service
	scans          *scan.Service
	scripts        *scripting.Runner
	clock          clockwork.Clock
	bucket         time.Duration
	timeout        time.Duration
	errorHandler   *ErrorHandler
	logger         *slog.Logger
	securityLogger *SecurityLogger
	startTime      time.Time
}

// NewServer creates a new API server
func NewServer(svc Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if svc.Clock == nil {
		svc.Clock = clockwork.NewRealClock()
	}
	if svc.Render == nil {
		opts := []render.Option{render.WithClock(svc.Clock)}
		if svc.DB != nil {
			opts = append(opts, render.WithStore(svc.DB))
		}
		svc.Render = render.NewService(opts...)
	}
	if svc.Scans == nil {
		svc.Scans = scan.NewService(scan.NewScanner(), svc.DB)
	}
	if svc.Scripts == nil {
		opts := []scripting.Option{scripting.WithClock(svc.Clock)}
		if svc.DB != nil {
			opts = append(opts, scripting.WithStore(svc.DB))
		}
		svc.Scripts = scripting.NewRunner(opts...)
	}
	if svc.AmbientBucket <= 0 {
		svc.AmbientBucket = seeds.SecondBucket
	}
	if svc.RequestTimeout <= 0 {
		svc.RequestTimeout = defaultRequestTimeout
	}

	logger = logger.With("component", "api")
	securityLogger := NewSecurityLogger(logger)

	return &Server{
		db:             svc.DB,
		render:         svc.Render,
		scans:          svc.Scans,
		scripts:        svc.Scripts,
		clock:          svc.Clock,
		bucket:         svc.AmbientBucket,
		timeout:        svc.RequestTimeout,
		errorHandler:   NewErrorHandler(logger, securityLogger),
		logger:         logger,
		securityLogger: securityLogger,
		startTime:      svc.Clock.Now(),
	}
}

// SecurityLogger exposes the audit logger for startup and shutdown records.
func (s *Server) SecurityLogger() *SecurityLogger {
	return s.securityLogger
}

// Uptime is the time since the server was created.
func (s *Server) Uptime() time.Duration {
	return s.clock.Since(s.startTime)
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RequestContextMiddleware)
	r.Use(s.SecurityLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(metrics.Middleware)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(s.CORSMiddleware)

	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/version", s.handleVersion)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/effects", s.handleListEffects)
		r.Post("/seeds", s.handleBuildSeed)
		r.Post("/rng/draw", s.handleDraw)

		r.Post("/render", s.handleRender)
		r.Post("/verify", s.handleVerify)
		r.Get("/renders", s.handleListRenders)
		r.Get("/renders/{id}", s.handleGetRender)
		r.Post("/renders/{id}/verify", s.handleVerifyStored)

		r.Post("/scan", s.handleScan)
		r.Get("/scans", s.handleListScans)
		r.Get("/scans/{id}", s.handleGetScan)

		r.Post("/scripts/run", s.handleRunScript)
		r.Get("/scripts", s.handleListScriptRuns)
		r.Get("/scripts/{id}", s.handleGetScriptRun)
		r.Post("/scripts/{id}/replay", s.handleReplayScript)
	})

	return r
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", engine.Version)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
