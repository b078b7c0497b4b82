// Package render is the audited front door to the visual effects: it renders
// a frame, checks that a second render agrees byte for byte, caches and
// optionally persists the result.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/logger"
	"github.com/MJE43/visual-replay-go/internal/metrics"
	"github.com/MJE43/visual-replay-go/internal/seeds"
	"github.com/MJE43/visual-replay-go/internal/store"
	"github.com/MJE43/visual-replay-go/internal/visuals"
)

const metricTolerance = 1e-9

// Request asks for one frame. At pins the clock for ambient effects and is
// ignored by every other mode.
type Request struct {
	Effect  string          `json:"effect" validate:"required"`
	Outcome visuals.Outcome `json:"outcome"`
	Params  map[string]any  `json:"params,omitempty"`
	At      *time.Time      `json:"at,omitempty"`
	Persist bool            `json:"persist,omitempty"`
}

// Result is an audited frame.
type Result struct {
	Frame         visuals.Frame `json:"frame"`
	Seed          string        `json:"seed"`
	RenderedAt    time.Time     `json:"rendered_at"`
	RenderID      string        `json:"render_id,omitempty"`
	Cached        bool          `json:"cached"`
	EngineVersion string        `json:"engine_version"`

	encoded []byte
}

// VerifyRequest re-renders and compares against what a client displayed.
type VerifyRequest struct {
	Request
	ExpectedSeedHash string   `json:"expected_seed_hash,omitempty"`
	ExpectedMetric   *float64 `json:"expected_metric,omitempty"`
}

// VerifyResult reports whether the re-render matched.
type VerifyResult struct {
	Match      bool          `json:"match"`
	Mismatches []string      `json:"mismatches,omitempty"`
	Frame      visuals.Frame `json:"frame"`
}

// Service renders effects.
type Service struct {
	clock clockwork.Clock
	cache *frameCache
	db    store.DB
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock consulted by ambient effects.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithCache enables the frame cache. A non-positive size disables it.
func WithCache(size int, ttl time.Duration) Option {
	return func(s *Service) {
		if size > 0 {
			s.cache = newFrameCache(size, ttl)
		}
	}
}

// WithStore persists renders that ask for it.
func WithStore(db store.DB) Option {
	return func(s *Service) { s.db = db }
}

// NewService creates a render service.
func NewService(opts ...Option) *Service {
	s := &Service{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Render produces an audited frame for req.
func (s *Service) Render(ctx context.Context, req Request) (*Result, error) {
	effect, ok := visuals.GetEffect(req.Effect)
	if !ok {
		return nil, fmt.Errorf("%w: %s", visuals.ErrEffectNotFound, req.Effect)
	}
	spec := effect.Spec()
	mode := spec.Mode().String()
	log := logger.FromContext(ctx)

	if err := req.Outcome.Validate(); err != nil {
		metrics.RendersTotal.WithLabelValues(spec.ID, mode, metrics.ResultError).Inc()
		return nil, err
	}

	renderedAt := s.clock.Now().UTC()
	in := visuals.Input{Outcome: req.Outcome, Params: req.Params}
	if spec.Mode() == seeds.ModeAmbient {
		if req.At != nil {
			renderedAt = req.At.UTC()
		}
		in.Now = renderedAt
	}

	seed, err := effect.Seed(in)
	if err == nil {
		err = seed.Require(spec.Mode())
	}
	if err != nil {
		metrics.RendersTotal.WithLabelValues(spec.ID, mode, metrics.ResultError).Inc()
		return nil, err
	}

	key, err := cacheKey(spec.ID, seed, in)
	if err != nil {
		return nil, err
	}

	result := &Result{Seed: seed.String(), RenderedAt: renderedAt, EngineVersion: engine.Version}

	if entry, ok := s.cacheGet(key); ok {
		result.Frame, result.encoded, result.Cached = entry.Frame, entry.JSON, true
		metrics.RendersTotal.WithLabelValues(spec.ID, mode, metrics.ResultCacheHit).Inc()
	} else {
		start := time.Now()
		frame, encoded, err := renderAudited(effect, in)
		metrics.RenderDuration.WithLabelValues(spec.ID).Observe(time.Since(start).Seconds())
		if err != nil {
			label := metrics.ResultError
			if errors.Is(err, ErrNondeterministic) {
				label = metrics.ResultMismatch
				log.ErrorContext(ctx, "render not reproducible", "effect", spec.ID, "seed_hash", seed.Hash())
			}
			metrics.RendersTotal.WithLabelValues(spec.ID, mode, label).Inc()
			return nil, err
		}
		metrics.RendersTotal.WithLabelValues(spec.ID, mode, metrics.ResultOK).Inc()
		metrics.RNGDraws.WithLabelValues(spec.ID).Add(float64(2 * frame.Draws))

		result.Frame, result.encoded = frame, encoded
		if s.cache != nil {
			s.cache.Set(key, frame, encoded)
			metrics.RenderCacheEntries.Set(float64(s.cache.Len()))
		}
	}

	if req.Persist {
		id, err := s.persist(ctx, seed, in, result)
		if err != nil {
			return nil, err
		}
		result.RenderID = id
	}

	log.DebugContext(ctx, "render completed",
		"effect", spec.ID,
		"mode", mode,
		"seed_hash", seed.Hash(),
		"metric", result.Frame.Metric,
		"cached", result.Cached,
	)
	return result, nil
}

// Verify re-renders req and compares it with the expectations. Verification
// bypasses the cache.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	effect, ok := visuals.GetEffect(req.Effect)
	if !ok {
		return nil, fmt.Errorf("%w: %s", visuals.ErrEffectNotFound, req.Effect)
	}
	if err := req.Outcome.Validate(); err != nil {
		return nil, err
	}

	in := visuals.Input{Outcome: req.Outcome, Params: req.Params}
	if effect.Spec().Mode() == seeds.ModeAmbient {
		if req.At == nil {
			return nil, visuals.ErrNoTimestamp
		}
		in.Now = req.At.UTC()
	}

	frame, _, err := renderAudited(effect, in)
	if err != nil {
		return nil, err
	}

	res := &VerifyResult{Frame: frame}
	if req.ExpectedSeedHash != "" && !strings.EqualFold(req.ExpectedSeedHash, frame.SeedHash) {
		res.Mismatches = append(res.Mismatches,
			fmt.Sprintf("seed_hash: expected %s, got %s", req.ExpectedSeedHash, frame.SeedHash))
	}
	if req.ExpectedMetric != nil && math.Abs(*req.ExpectedMetric-frame.Metric) > metricTolerance {
		res.Mismatches = append(res.Mismatches,
			fmt.Sprintf("metric: expected %s, got %s",
				seeds.FormatNumber(*req.ExpectedMetric), seeds.FormatNumber(frame.Metric)))
	}
	res.Match = len(res.Mismatches) == 0

	logger.FromContext(ctx).InfoContext(ctx, "verify completed",
		"effect", req.Effect, "seed_hash", frame.SeedHash, "match", res.Match)
	return res, nil
}

// VerifyStored re-renders a persisted frame from its recorded inputs and
// reports whether the bytes still match.
func (s *Service) VerifyStored(ctx context.Context, id string) (*VerifyResult, error) {
	if s.db == nil {
		return nil, ErrNoStore
	}
	rec, err := s.db.GetRender(ctx, id)
	if err != nil {
		return nil, err
	}

	effect, ok := visuals.GetEffect(rec.Effect)
	if !ok {
		return nil, fmt.Errorf("%w: %s", visuals.ErrEffectNotFound, rec.Effect)
	}

	var params map[string]any
	if rec.ParamsJSON != "" {
		if err := json.Unmarshal([]byte(rec.ParamsJSON), &params); err != nil {
			return nil, fmt.Errorf("decode stored params: %w", err)
		}
	}
	in := visuals.Input{
		Outcome: visuals.Outcome{ResultIndex: rec.ResultIndex, Payout: rec.Payout, Wager: rec.Wager},
		Params:  params,
	}
	if effect.Spec().Mode() == seeds.ModeAmbient {
		in.Now = rec.CreatedAt
	}

	frame, encoded, err := renderAudited(effect, in)
	if err != nil {
		return nil, err
	}

	res := &VerifyResult{Frame: frame}
	if frame.SeedHash != rec.SeedHash {
		res.Mismatches = append(res.Mismatches,
			fmt.Sprintf("seed_hash: stored %s, got %s", rec.SeedHash, frame.SeedHash))
	}
	if !bytes.Equal(encoded, []byte(rec.FrameJSON)) {
		res.Mismatches = append(res.Mismatches, "frame: stored bytes differ from re-render")
	}
	if rec.EngineVersion != engine.Version {
		res.Mismatches = append(res.Mismatches,
			fmt.Sprintf("engine_version: stored %s, running %s", rec.EngineVersion, engine.Version))
	}
	res.Match = len(res.Mismatches) == 0
	return res, nil
}

// ClearCache drops every cached frame.
func (s *Service) ClearCache() {
	if s.cache == nil {
		return
	}
	s.cache.Clear()
	metrics.RenderCacheEntries.Set(0)
}

func (s *Service) cacheGet(key string) (*cachedFrame, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Service) persist(ctx context.Context, seed seeds.Seed, in visuals.Input, res *Result) (string, error) {
	if s.db == nil {
		return "", ErrNoStore
	}
	params, err := json.Marshal(in.Params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	if in.Params == nil {
		params = []byte("{}")
	}

	rec := &store.Render{
		Effect:        res.Frame.Effect,
		Mode:          seed.Mode().String(),
		Seed:          seed.String(),
		SeedHash:      seed.Hash(),
		ResultIndex:   in.Outcome.ResultIndex,
		Payout:        in.Outcome.Payout,
		Wager:         in.Outcome.Wager,
		ParamsJSON:    string(params),
		Metric:        res.Frame.Metric,
		FrameJSON:     string(res.encoded),
		EngineVersion: engine.Version,
		CreatedAt:     res.RenderedAt,
	}
	if err := s.db.SaveRender(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// renderAudited renders twice and insists both frames encode identically.
func renderAudited(effect visuals.Effect, in visuals.Input) (visuals.Frame, []byte, error) {
	first, err := effect.Render(in)
	if err != nil {
		return visuals.Frame{}, nil, err
	}
	second, err := effect.Render(in)
	if err != nil {
		return visuals.Frame{}, nil, err
	}

	a, err := json.Marshal(first)
	if err != nil {
		return visuals.Frame{}, nil, fmt.Errorf("encode frame: %w", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		return visuals.Frame{}, nil, fmt.Errorf("encode frame: %w", err)
	}
	if !bytes.Equal(a, b) {
		return visuals.Frame{}, nil, fmt.Errorf("%w: %s seed %s", ErrNondeterministic, first.Effect, first.SeedHash)
	}
	return first, a, nil
}

// cacheKey covers everything a frame may depend on: the seed and the full
// input, since conformance reads the wager and params may not all be seeded.
func cacheKey(effect string, seed seeds.Seed, in visuals.Input) (string, error) {
	body, err := json.Marshal(struct {
		Outcome visuals.Outcome `json:"o"`
		Params  map[string]any  `json:"p"`
	}{in.Outcome, in.Params})
	if err != nil {
		return "", fmt.Errorf("encode render input: %w", err)
	}
	return effect + "\x00" + seed.String() + "\x00" + string(body), nil
}
