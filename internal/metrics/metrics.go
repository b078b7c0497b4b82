package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "visualrng"

const (
	LabelMethod = "method"
	LabelPath   = "path"
	LabelStatus = "status"
	LabelEffect = "effect"
	LabelMode   = "mode"
	LabelResult = "result"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultCacheHit = "cache_hit"
	ResultMismatch = "mismatch"
	ResultTimeout  = "timeout"
)

var (
	HTTPLatencyBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	RenderLatencyBuckets = []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05}
	ScanLatencyBuckets   = prometheus.ExponentialBuckets(0.001, 4, 10)
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   HTTPLatencyBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served",
		},
	)
)

// Render Metrics
var (
	RendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Effect renders by effect, seed mode and result",
		},
		[]string{LabelEffect, LabelMode, LabelResult},
	)

	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent rendering one effect frame",
			Buckets:   RenderLatencyBuckets,
		},
		[]string{LabelEffect},
	)

	RNGDraws = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rng_draws_total",
			Help:      "Floats drawn from the deterministic generator",
		},
		[]string{LabelEffect},
	)

	RenderCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "render_cache_entries",
			Help:      "Frames currently held in the render cache",
		},
	)
)

// Scan Metrics
var (
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Completed scans by effect and result",
		},
		[]string{LabelEffect, LabelResult},
	)

	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of a scan",
			Buckets:   ScanLatencyBuckets,
		},
		[]string{LabelEffect},
	)

	ScanEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_evaluated_total",
			Help:      "Result indexes evaluated by scans",
		},
		[]string{LabelEffect},
	)
)

// Script Metrics
var (
	ScriptRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "script_runs_total",
			Help:      "Scripted effect executions by result",
		},
		[]string{LabelResult},
	)
)
