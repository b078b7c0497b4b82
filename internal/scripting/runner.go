// Package scripting runs user-supplied JavaScript effects in a goja sandbox
// whose only randomness is the seeded cosmetic generator.
package scripting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/MJE43/visual-replay-go/internal/logger"
	"github.com/MJE43/visual-replay-go/internal/metrics"
	"github.com/MJE43/visual-replay-go/internal/seeds"
	"github.com/MJE43/visual-replay-go/internal/store"
	"github.com/MJE43/visual-replay-go/internal/visuals"
)

const (
	DefaultTimeout  = 250 * time.Millisecond
	DefaultMaxDraws = 100_000
)

// Namespaces for scripts that do not borrow an effect's namespace.
var (
	ScriptOutcome = mustNamespace("script", seeds.ModeOutcome)
	ScriptAmbient = mustNamespace("script-ambient", seeds.ModeAmbient)
	ScriptFixed   = mustNamespace("script-fixed", seeds.ModeFixed)
)

func mustNamespace(tag string, mode seeds.Mode) seeds.Namespace {
	ns, err := seeds.Register(tag, mode)
	if err != nil {
		panic(err)
	}
	return ns
}

// Request describes one scripted render. Namespace may name any registered
// seed namespace; when empty the script namespace for Mode is used. Outcome
// seeds default to the result index and payout when Fields is empty.
type Request struct {
	Source    string          `json:"source" validate:"required,max=65536"`
	Mode      string          `json:"mode,omitempty" validate:"omitempty,oneof=outcome ambient fixed"`
	Namespace string          `json:"namespace,omitempty" validate:"omitempty,max=64"`
	Fields    []any           `json:"fields,omitempty" validate:"max=16"`
	Outcome   visuals.Outcome `json:"outcome"`
	Params    map[string]any  `json:"params,omitempty"`
	At        *time.Time      `json:"at,omitempty"`
	Persist   bool            `json:"persist,omitempty"`
}

// Result is the output of a script run.
type Result struct {
	Output     any        `json:"output"`
	Seed       string     `json:"seed"`
	SeedHash   string     `json:"seed_hash"`
	Mode       seeds.Mode `json:"mode"`
	Draws      int        `json:"draws"`
	Logs       []LogEntry `json:"logs,omitempty"`
	DurationMs int64      `json:"duration_ms"`
	RunID      string     `json:"run_id,omitempty"`

	namespace string
	encoded   []byte
}

// Runner executes scripts.
type Runner struct {
	clock    clockwork.Clock
	timeout  time.Duration
	bucket   time.Duration
	maxDraws int
	db       store.DB
}

// Option configures a Runner.
type Option func(*Runner)

func WithClock(c clockwork.Clock) Option { return func(r *Runner) { r.clock = c } }

// WithTimeout bounds each script execution.
func WithTimeout(d time.Duration) Option { return func(r *Runner) { r.timeout = d } }

// WithBucket sets the ambient bucket width for ambient script seeds.
func WithBucket(d time.Duration) Option { return func(r *Runner) { r.bucket = d } }

func WithMaxDraws(n int) Option { return func(r *Runner) { r.maxDraws = n } }

// WithStore records runs that ask for it and enables Replay.
func WithStore(db store.DB) Option { return func(r *Runner) { r.db = db } }

// NewRunner creates a script runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		clock:    clockwork.NewRealClock(),
		timeout:  DefaultTimeout,
		bucket:   seeds.SecondBucket,
		maxDraws: DefaultMaxDraws,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Seed builds the seed a request binds its script to.
func (r *Runner) Seed(req Request) (seeds.Seed, error) {
	ns, err := r.namespace(req)
	if err != nil {
		return seeds.Seed{}, err
	}

	switch ns.Mode {
	case seeds.ModeOutcome:
		fields := req.Fields
		if len(fields) == 0 {
			fields = []any{req.Outcome.ResultIndex, req.Outcome.Payout}
		}
		return seeds.Outcome(ns, fields...)
	case seeds.ModeAmbient:
		now := r.clock.Now()
		if req.At != nil {
			now = *req.At
		}
		return seeds.Ambient(ns, seeds.BucketAt(now, r.bucket), req.Fields...)
	default:
		return seeds.Fixed(ns, req.Fields...)
	}
}

func (r *Runner) namespace(req Request) (seeds.Namespace, error) {
	var want seeds.Mode
	if req.Mode != "" {
		m, err := seeds.ParseMode(req.Mode)
		if err != nil {
			return seeds.Namespace{}, err
		}
		want = m
	}

	if req.Namespace == "" {
		switch want {
		case seeds.ModeAmbient:
			return ScriptAmbient, nil
		case seeds.ModeFixed:
			return ScriptFixed, nil
		default:
			return ScriptOutcome, nil
		}
	}

	ns, ok := seeds.Lookup(req.Namespace)
	if !ok {
		return seeds.Namespace{}, fmt.Errorf("%w: %q", ErrUnknownNamespace, req.Namespace)
	}
	if want != 0 && ns.Mode != want {
		return seeds.Namespace{}, fmt.Errorf("%w: namespace %q is %s, requested %s",
			seeds.ErrModeMismatch, ns.Tag, ns.Mode, want)
	}
	return ns, nil
}

// Run executes the script twice in fresh VMs and returns the output once
// both runs agree.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	req = r.pin(req)
	result, err := r.run(ctx, req)
	if err != nil {
		label := metrics.ResultError
		switch {
		case errors.Is(err, ErrTimeout):
			label = metrics.ResultTimeout
		case errors.Is(err, ErrNondeterministic):
			label = metrics.ResultMismatch
		}
		metrics.ScriptRunsTotal.WithLabelValues(label).Inc()
		logger.FromContext(ctx).WarnContext(ctx, "script failed", "error", err)
		return nil, err
	}
	metrics.ScriptRunsTotal.WithLabelValues(metrics.ResultOK).Inc()
	result.DurationMs = time.Since(start).Milliseconds()

	if req.Persist {
		id, err := r.record(ctx, req, result)
		if err != nil {
			return nil, err
		}
		result.RunID = id
	}
	return result, nil
}

// pin fixes the clock reading of an ambient request so the run can be
// replayed into the same bucket.
func (r *Runner) pin(req Request) Request {
	if req.At != nil {
		return req
	}
	if ns, err := r.namespace(req); err == nil && ns.Mode == seeds.ModeAmbient {
		now := r.clock.Now().UTC()
		req.At = &now
	}
	return req
}

func (r *Runner) run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Outcome.Validate(); err != nil {
		return nil, err
	}
	seed, err := r.Seed(req)
	if err != nil {
		return nil, err
	}

	in := visuals.Input{Outcome: req.Outcome, Params: req.Params}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	first := NewVM(seed, in, r.clock, r.maxDraws)
	out, err := first.Run(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	a, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("%w: output is not JSON: %v", ErrScript, err)
	}

	second := NewVM(seed, in, r.clock, r.maxDraws)
	again, err := second.Run(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(again)
	if err != nil {
		return nil, fmt.Errorf("%w: output is not JSON: %v", ErrScript, err)
	}
	if !bytes.Equal(a, b) || first.Draws() != second.Draws() {
		return nil, ErrNondeterministic
	}

	return &Result{
		Output:    out,
		Seed:      seed.String(),
		SeedHash:  seed.Hash(),
		Mode:      seed.Mode(),
		Draws:     first.Draws(),
		Logs:      first.Logs(),
		namespace: seed.Namespace().Tag,
		encoded:   a,
	}, nil
}
