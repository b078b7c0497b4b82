package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MJE43/visual-replay-go/internal/logger"
	"github.com/MJE43/visual-replay-go/internal/metrics"
	"github.com/MJE43/visual-replay-go/internal/store"
)

// RunResult is a scan together with the ID of its stored run.
type RunResult struct {
	*Result
	RunID string `json:"run_id,omitempty"`
}

// Service runs scans and records them as runs when a store is configured.
type Service struct {
	scanner *Scanner
	db      store.DB
}

// NewService wraps scanner. db may be nil, in which case runs are not stored.
func NewService(scanner *Scanner, db store.DB) *Service {
	return &Service{scanner: scanner, db: db}
}

// Run scans req and persists the run and its hits.
func (s *Service) Run(ctx context.Context, req Request) (*RunResult, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	res, err := s.scanner.Scan(ctx, req)
	metrics.ScanDuration.WithLabelValues(req.Effect).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ScansTotal.WithLabelValues(req.Effect, metrics.ResultError).Inc()
		return nil, err
	}

	label := metrics.ResultOK
	if res.Summary.TimedOut {
		label = metrics.ResultTimeout
	}
	metrics.ScansTotal.WithLabelValues(req.Effect, label).Inc()
	metrics.ScanEvaluated.WithLabelValues(req.Effect).Add(float64(res.Summary.TotalEvaluated))

	out := &RunResult{Result: res}
	if s.db != nil {
		id, err := s.record(ctx, req, res)
		if err != nil {
			return nil, err
		}
		out.RunID = id
	}

	log.InfoContext(ctx, "scan completed",
		"effect", req.Effect,
		"run_id", out.RunID,
		"hits_found", res.Summary.HitsFound,
		"total_evaluated", res.Summary.TotalEvaluated,
		"timed_out", res.Summary.TimedOut,
		"duration_ms", res.Summary.DurationMs,
	)
	return out, nil
}

func (s *Service) record(ctx context.Context, req Request, res *Result) (string, error) {
	params, err := json.Marshal(req.Params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	if req.Params == nil {
		params = []byte("{}")
	}

	run := &store.Run{
		Effect:         req.Effect,
		ResultStart:    req.ResultStart,
		ResultEnd:      req.ResultEnd,
		Payout:         req.Payout,
		Wager:          req.Wager,
		ParamsJSON:     string(params),
		TargetOp:       string(req.TargetOp),
		TargetVal:      req.TargetVal,
		TargetVal2:     req.TargetVal2,
		Tolerance:      req.Tolerance,
		HitLimit:       req.Limit,
		TimedOut:       res.Summary.TimedOut,
		LimitReached:   res.Summary.LimitReached,
		HitCount:       res.Summary.HitsFound,
		TotalEvaluated: int64(res.Summary.TotalEvaluated),
		Errors:         int64(res.Summary.Errors),
		DurationMs:     res.Summary.DurationMs,
		EngineVersion:  res.EngineVersion,
	}
	if res.Summary.HitsFound > 0 {
		lo, hi, mean := res.Summary.MinMetric, res.Summary.MaxMetric, res.Summary.MeanMetric
		run.SummaryMin, run.SummaryMax, run.SummaryMean = &lo, &hi, &mean
	}

	if err := s.db.SaveRun(ctx, run); err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}

	hits := make([]store.Hit, len(res.Hits))
	for i, h := range res.Hits {
		hits[i] = store.Hit{ResultIndex: h.ResultIndex, Metric: h.Metric}
	}
	if err := s.db.SaveHits(ctx, run.ID, hits); err != nil {
		return "", fmt.Errorf("save hits: %w", err)
	}
	return run.ID, nil
}

// IsClientError reports whether err was caused by the request rather than
// by the scanner or the store.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEffectNotFound) ||
		errors.Is(err, ErrNotScannable) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidOp)
}
