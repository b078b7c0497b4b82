package scripting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/seeds"
	"github.com/MJE43/visual-replay-go/internal/visuals"
)

var morning = time.UnixMilli(1_700_000_000_250).UTC()

func newTestRunner(opts ...Option) *Runner {
	base := []Option{WithClock(clockwork.NewFakeClockAt(morning)), WithTimeout(2 * time.Second)}
	return NewRunner(append(base, opts...)...)
}

func floatsOf(t *testing.T, out any) []float64 {
	t.Helper()
	items, ok := out.([]any)
	if !ok {
		t.Fatalf("expected array output, got %T", out)
	}
	fs := make([]float64, len(items))
	for i, v := range items {
		f, ok := v.(float64)
		if !ok {
			t.Fatalf("item %d is %T, want float64", i, v)
		}
		fs[i] = f
	}
	return fs
}

func TestRngMatchesGenerator(t *testing.T) {
	r := newTestRunner()
	res, err := r.Run(context.Background(), Request{
		Source: `[rng(), rng(), Math.random()]`,
		Fields: []any{float64(1), "intro"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Seed != "script:1:intro" {
		t.Errorf("unexpected seed %q", res.Seed)
	}
	if res.SeedHash != seeds.HashText("script:1:intro") {
		t.Errorf("unexpected seed hash %q", res.SeedHash)
	}

	got := floatsOf(t, res.Output)
	want := engine.Floats("script:1:intro", 3)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("draw %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if res.Draws != 3 {
		t.Errorf("expected 3 draws, got %d", res.Draws)
	}
}

func TestPickAndShuffle(t *testing.T) {
	r := newTestRunner()
	res, err := r.Run(context.Background(), Request{
		Source: `pick(["a", "b", "c", "d"])`,
		Mode:   "fixed",
		Fields: []any{"pick"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want, _ := engine.Pick([]string{"a", "b", "c", "d"}, engine.MakeDeterministicRng("script-fixed:pick"))
	if res.Output != want {
		t.Errorf("expected %q, got %v", want, res.Output)
	}

	res, err = r.Run(context.Background(), Request{
		Source: `shuffle([1, 2, 3, 4, 5]).length`,
		Mode:   "fixed",
		Fields: []any{"shuffle"},
	})
	if err != nil {
		t.Fatalf("shuffle failed: %v", err)
	}
	if res.Output != int64(5) {
		t.Errorf("expected a 5-element copy, got %v", res.Output)
	}
	if res.Draws != 4 {
		t.Errorf("shuffling 5 items should draw 4 floats, got %d", res.Draws)
	}
}

func TestRenderFunctionSeesOutcome(t *testing.T) {
	r := newTestRunner()
	res, err := r.Run(context.Background(), Request{
		Source: `
			function render() {
				log("multiplier", outcome.multiplier);
				return { win: outcome.win, multiplier: outcome.multiplier, colour: params.colour };
			}
		`,
		Outcome: visuals.Outcome{ResultIndex: 12, Payout: decimal.RequireFromString("7.5"), Wager: decimal.NewFromInt(3)},
		Params:  map[string]any{"colour": "gold"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Seed != "script:12:7.5" {
		t.Errorf("outcome seed should default to index and payout, got %q", res.Seed)
	}

	out, ok := res.Output.(map[string]any)
	if !ok {
		t.Fatalf("expected object output, got %T", res.Output)
	}
	if out["win"] != true || out["multiplier"] != 2.5 || out["colour"] != "gold" {
		t.Errorf("unexpected output %v", out)
	}
	if len(res.Logs) != 1 || res.Logs[0].Message != "multiplier 2.5" {
		t.Errorf("unexpected logs %+v", res.Logs)
	}
}

func TestAmbientSeedUsesBucket(t *testing.T) {
	r := newTestRunner(WithBucket(seeds.SecondBucket))
	seed, err := r.Seed(Request{Mode: "ambient", Fields: []any{"sparkle"}})
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if seed.String() != "script-ambient:1700000000:sparkle" {
		t.Errorf("unexpected ambient seed %q", seed)
	}

	later := morning.Add(5 * time.Second)
	seed, err = r.Seed(Request{Mode: "ambient", Fields: []any{"sparkle"}, At: &later})
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if seed.String() != "script-ambient:1700000005:sparkle" {
		t.Errorf("At should override the clock, got %q", seed)
	}
}

func TestBorrowedNamespace(t *testing.T) {
	r := newTestRunner()

	seed, err := r.Seed(Request{Namespace: "stars", Fields: []any{"small"}})
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if seed.String() != "stars:small" || seed.Mode() != seeds.ModeFixed {
		t.Errorf("unexpected seed %q (%s)", seed, seed.Mode())
	}

	if _, err := r.Seed(Request{Namespace: "crash", Mode: "fixed"}); !errors.Is(err, seeds.ErrModeMismatch) {
		t.Errorf("expected ErrModeMismatch, got %v", err)
	}
	if _, err := r.Seed(Request{Namespace: "nope"}); !errors.Is(err, ErrUnknownNamespace) {
		t.Errorf("expected ErrUnknownNamespace, got %v", err)
	}
}

func TestSandboxBlocksGlobals(t *testing.T) {
	r := newTestRunner()
	res, err := r.Run(context.Background(), Request{
		Source: `[typeof require, typeof fetch, typeof eval, typeof Function, typeof Date].join(",")`,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Output != "undefined,undefined,undefined,undefined,undefined" {
		t.Errorf("globals not blocked: %v", res.Output)
	}
}

func TestScriptFailures(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		source string
		want   error
	}{
		{"timeout", []Option{WithTimeout(50 * time.Millisecond)}, `while (true) {}`, ErrTimeout},
		{"throw", nil, `throw new Error("boom")`, ErrScript},
		{"syntax", nil, `function (`, ErrScript},
		{"draw_limit", []Option{WithMaxDraws(10)}, `for (var i = 0; i < 11; i++) rng()`, ErrTooManyDraws},
		{"draw_limit_swallowed", []Option{WithMaxDraws(10)}, `try { for (;;) rng() } catch (e) {} 1`, ErrTooManyDraws},
		{"pick_empty", nil, `pick([])`, ErrScript},
		{"not_json", nil, `({f: function() {}, n: NaN}).n`, ErrScript},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRunner(tt.opts...)
			_, err := r.Run(context.Background(), Request{Source: tt.source})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCanceledContext(t *testing.T) {
	r := newTestRunner(WithTimeout(time.Minute))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, Request{Source: `while (true) {}`})
	if !errors.Is(err, ErrCanceled) {
		t.Errorf("expected ErrCanceled, got %v", err)
	}
}
