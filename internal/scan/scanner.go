package scan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/seeds"
	"github.com/MJE43/visual-replay-go/internal/visuals"
)

// TargetOp represents comparison operations for scanning
type TargetOp string

const (
	OpEqual        TargetOp = "eq"
	OpGreater      TargetOp = "gt"
	OpGreaterEqual TargetOp = "ge"
	OpLess         TargetOp = "lt"
	OpLessEqual    TargetOp = "le"
	OpBetween      TargetOp = "between"
	OpOutside      TargetOp = "outside"
)

// Valid reports whether op is a known operation.
func (op TargetOp) Valid() bool {
	switch op {
	case OpEqual, OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpBetween, OpOutside:
		return true
	}
	return false
}

const (
	defaultTolerance = 1e-9
	defaultMaxRange  = 10_000_000
	batchSize        = 4096
)

// Request describes a scan: render one effect for every result index in
// [ResultStart, ResultEnd] with a fixed payout and wager and keep the indexes
// whose metric matches the target.
type Request struct {
	Effect      string          `json:"effect" validate:"required"`
	ResultStart int64           `json:"result_start" validate:"gte=0"`
	ResultEnd   int64           `json:"result_end" validate:"gtefield=ResultStart"`
	Payout      decimal.Decimal `json:"payout"`
	Wager       decimal.Decimal `json:"wager"`
	Params      map[string]any  `json:"params,omitempty"`
	TargetOp    TargetOp        `json:"target_op" validate:"required,oneof=eq gt ge lt le between outside"`
	TargetVal   float64         `json:"target_val"`
	TargetVal2  float64         `json:"target_val2,omitempty"` // for "between" and "outside"
	Tolerance   float64         `json:"tolerance"`
	Limit       int             `json:"limit,omitempty" validate:"gte=0"`
	TimeoutMs   int             `json:"timeout_ms,omitempty" validate:"gte=0"`
}

// Hit is a matching result index.
type Hit struct {
	ResultIndex int64   `json:"result_index"`
	Metric      float64 `json:"metric"`
}

// Summary contains aggregate statistics
type Summary struct {
	TotalEvaluated uint64  `json:"total_evaluated"`
	Errors         uint64  `json:"errors,omitempty"`
	HitsFound      int     `json:"hits_found"`
	MinMetric      float64 `json:"min_metric"`
	MaxMetric      float64 `json:"max_metric"`
	MeanMetric     float64 `json:"mean_metric"`
	TimedOut       bool    `json:"timed_out,omitempty"`
	LimitReached   bool    `json:"limit_reached,omitempty"`
	DurationMs     int64   `json:"duration_ms"`
}

// Result contains the complete scan results
type Result struct {
	Hits          []Hit   `json:"hits"`
	Summary       Summary `json:"summary"`
	EngineVersion string  `json:"engine_version"`
	Echo          Request `json:"echo"`
}

// TargetEvaluator handles target condition evaluation with tolerance
type TargetEvaluator struct {
	op        TargetOp
	val1      float64
	val2      float64
	tolerance float64
}

func NewTargetEvaluator(op TargetOp, val1, val2, tolerance float64) *TargetEvaluator {
	return &TargetEvaluator{op: op, val1: val1, val2: val2, tolerance: tolerance}
}

// Matches checks if a metric matches the target criteria
func (te *TargetEvaluator) Matches(metric float64) bool {
	switch te.op {
	case OpEqual:
		return math.Abs(metric-te.val1) <= te.tolerance
	case OpGreater:
		return metric > te.val1+te.tolerance
	case OpGreaterEqual:
		return metric >= te.val1-te.tolerance
	case OpLess:
		return metric < te.val1-te.tolerance
	case OpLessEqual:
		return metric <= te.val1+te.tolerance
	case OpBetween:
		return metric >= te.val1-te.tolerance && metric <= te.val2+te.tolerance
	case OpOutside:
		return metric < te.val1-te.tolerance || metric > te.val2+te.tolerance
	default:
		return false
	}
}

// Scanner fans result-index batches out to a pool of workers.
type Scanner struct {
	workerCount int
	maxRange    int64
	floatPool   *sync.Pool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithWorkers overrides the worker count, GOMAXPROCS by default.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithMaxRange caps how many result indexes one scan may cover.
func WithMaxRange(n int64) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.maxRange = n
		}
	}
}

func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		workerCount: runtime.GOMAXPROCS(0),
		maxRange:    defaultMaxRange,
		floatPool: &sync.Pool{
			New: func() any {
				buf := make([]float64, 0, 64)
				return &buf
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan evaluates the request across its result index range. Only outcome
// effects can be scanned: ambient and fixed seeds do not depend on the
// result index.
func (s *Scanner) Scan(ctx context.Context, req Request) (*Result, error) {
	effect, ok := visuals.GetEffect(req.Effect)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEffectNotFound, req.Effect)
	}
	if mode := effect.Spec().Mode(); mode != seeds.ModeOutcome {
		return nil, fmt.Errorf("%w: %s uses %s seeds", ErrNotScannable, req.Effect, mode)
	}
	if !req.TargetOp.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOp, req.TargetOp)
	}
	if req.ResultStart < 0 || req.ResultEnd < req.ResultStart {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, req.ResultStart, req.ResultEnd)
	}
	// Both ends are non-negative here, so the difference cannot overflow.
	if span := uint64(req.ResultEnd-req.ResultStart) + 1; span > uint64(s.maxRange) {
		return nil, fmt.Errorf("%w: %d indexes exceeds %d", ErrInvalidRange, span, s.maxRange)
	}

	// Fail fast on bad params instead of counting every index as an error.
	first := visuals.Input{Outcome: req.outcome(req.ResultStart), Params: req.Params}
	if _, err := effect.Render(first); err != nil {
		return nil, err
	}

	started := time.Now()
	scanCtx := ctx
	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}
	workCtx, stop := context.WithCancel(scanCtx)
	defer stop()

	tolerance := req.Tolerance
	if tolerance == 0 {
		tolerance = defaultTolerance
	}
	evaluator := NewTargetEvaluator(req.TargetOp, req.TargetVal, req.TargetVal2, tolerance)

	jobs := make(chan job, s.workerCount*2)
	hits := make(chan Hit, 1024)
	var evaluated, failed uint64

	var wg sync.WaitGroup
	for i := 0; i < s.workerCount; i++ {
		w := &worker{
			jobs:      jobs,
			hits:      hits,
			effect:    effect,
			req:       &req,
			evaluator: evaluator,
			floatPool: s.floatPool,
			evaluated: &evaluated,
			failed:    &failed,
		}
		wg.Add(1)
		go w.run(workCtx, &wg)
	}
	go generateJobs(workCtx, jobs, req.ResultStart, req.ResultEnd)
	go func() {
		wg.Wait()
		close(hits)
	}()

	collected, limitReached := collect(hits, req.Limit, stop)

	sort.Slice(collected, func(i, j int) bool { return collected[i].ResultIndex < collected[j].ResultIndex })
	summary := summarize(collected, atomic.LoadUint64(&evaluated))
	summary.Errors = atomic.LoadUint64(&failed)
	summary.LimitReached = limitReached
	summary.TimedOut = errors.Is(scanCtx.Err(), context.DeadlineExceeded)
	summary.DurationMs = time.Since(started).Milliseconds()

	return &Result{
		Hits:          collected,
		Summary:       summary,
		EngineVersion: engine.Version,
		Echo:          req,
	}, nil
}

func (r *Request) outcome(ri int64) visuals.Outcome {
	return visuals.Outcome{ResultIndex: ri, Payout: r.Payout, Wager: r.Wager}
}

// job is an inclusive batch of result indexes.
type job struct {
	start, end int64
}

type worker struct {
	jobs      <-chan job
	hits      chan<- Hit
	effect    visuals.Effect
	req       *Request
	evaluator *TargetEvaluator
	floatPool *sync.Pool
	evaluated *uint64
	failed    *uint64
}

func (w *worker) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	buf := w.floatPool.Get().(*[]float64)
	defer w.floatPool.Put(buf)

	for {
		select {
		case j, ok := <-w.jobs:
			if !ok {
				return
			}
			if !w.process(ctx, j, buf) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// process evaluates one batch. It returns false once the context is done.
// The loop exits on the last index instead of stepping past it, so a batch
// ending at math.MaxInt64 terminates.
func (w *worker) process(ctx context.Context, j job, buf *[]float64) bool {
	for ri := j.start; ; ri++ {
		if !w.evaluate(ctx, ri, buf) {
			return false
		}
		if ri == j.end {
			return true
		}
	}
}

func (w *worker) evaluate(ctx context.Context, ri int64, buf *[]float64) bool {
	if ctx.Err() != nil {
		return false
	}

	in := visuals.Input{Outcome: w.req.outcome(ri), Params: w.req.Params}
	floats, _, err := visuals.DrawFloats(w.effect, in, (*buf)[:0])
	if err != nil {
		atomic.AddUint64(w.failed, 1)
		return true
	}
	*buf = floats

	frame, err := w.effect.RenderWithFloats(floats, in)
	if err != nil {
		atomic.AddUint64(w.failed, 1)
		return true
	}
	atomic.AddUint64(w.evaluated, 1)

	if w.evaluator.Matches(frame.Metric) {
		select {
		case w.hits <- Hit{ResultIndex: ri, Metric: frame.Metric}:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func generateJobs(ctx context.Context, jobs chan<- job, start, end int64) {
	defer close(jobs)

	for current := start; current <= end; {
		batchEnd := end
		if end-current >= batchSize {
			batchEnd = current + batchSize - 1
		}
		select {
		case jobs <- job{start: current, end: batchEnd}:
			if batchEnd == end {
				return
			}
			current = batchEnd + 1
		case <-ctx.Done():
			return
		}
	}
}

// collect drains hits until the workers finish. Reaching limit stops the
// workers through stop and discards whatever is still in flight.
func collect(hits <-chan Hit, limit int, stop context.CancelFunc) ([]Hit, bool) {
	initialCap := 1024
	if limit > 0 && limit < initialCap {
		initialCap = limit
	}
	out := make([]Hit, 0, initialCap)
	limitReached := false

	for hit := range hits {
		if limitReached {
			continue
		}
		out = append(out, hit)
		if limit > 0 && len(out) >= limit {
			limitReached = true
			stop()
		}
	}
	return out, limitReached
}

func summarize(hits []Hit, totalEvaluated uint64) Summary {
	summary := Summary{TotalEvaluated: totalEvaluated, HitsFound: len(hits)}
	if len(hits) == 0 {
		return summary
	}

	lo, hi, sum := hits[0].Metric, hits[0].Metric, 0.0
	for _, h := range hits {
		lo = math.Min(lo, h.Metric)
		hi = math.Max(hi, h.Metric)
		sum += h.Metric
	}
	summary.MinMetric = lo
	summary.MaxMetric = hi
	summary.MeanMetric = sum / float64(len(hits))
	return summary
}
