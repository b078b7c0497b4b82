package scan

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/MJE43/visual-replay-go/internal/visuals"
)

func TestTargetEvaluator(t *testing.T) {
	tests := []struct {
		name      string
		op        TargetOp
		val1      float64
		val2      float64
		tolerance float64
		metric    float64
		expected  bool
	}{
		{"equal_exact", OpEqual, 2.0, 0, 0, 2.0, true},
		{"equal_within_tolerance", OpEqual, 2.0, 0, 0.1, 2.05, true},
		{"equal_outside_tolerance", OpEqual, 2.0, 0, 0.01, 2.05, false},
		{"greater_than", OpGreater, 2.0, 0, 0, 2.1, true},
		{"greater_than_false", OpGreater, 2.0, 0, 0, 1.9, false},
		{"greater_equal", OpGreaterEqual, 2.0, 0, 0, 2.0, true},
		{"less_than", OpLess, 2.0, 0, 0, 1.9, true},
		{"less_equal", OpLessEqual, 2.0, 0, 0, 2.0, true},
		{"between_true", OpBetween, 1.0, 3.0, 0, 2.0, true},
		{"between_false", OpBetween, 1.0, 3.0, 0, 4.0, false},
		{"outside_true", OpOutside, 1.0, 3.0, 0, 4.0, true},
		{"outside_false", OpOutside, 1.0, 3.0, 0, 2.0, false},
		{"unknown_op", TargetOp("nope"), 1.0, 0, 0, 1.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator := NewTargetEvaluator(tt.op, tt.val1, tt.val2, tt.tolerance)
			if got := evaluator.Matches(tt.metric); got != tt.expected {
				t.Errorf("Expected %v, got %v for metric %f", tt.expected, got, tt.metric)
			}
		})
	}
}

func TestScannerBasic(t *testing.T) {
	scanner := NewScanner()

	req := Request{
		Effect:      "hilo-rank",
		ResultStart: 0,
		ResultEnd:   99,
		TargetOp:    OpGreaterEqual,
		TargetVal:   1, // every rank is at least 1
		Limit:       10,
	}

	result, err := scanner.Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(result.Hits) != req.Limit {
		t.Errorf("Expected %d hits, got %d", req.Limit, len(result.Hits))
	}
	if !result.Summary.LimitReached {
		t.Error("Expected limit_reached")
	}
	for i := 1; i < len(result.Hits); i++ {
		if result.Hits[i-1].ResultIndex >= result.Hits[i].ResultIndex {
			t.Fatalf("Hits not sorted: %+v", result.Hits)
		}
	}
	if result.Echo.Effect != req.Effect {
		t.Errorf("Echo mismatch: expected %s, got %s", req.Effect, result.Echo.Effect)
	}
	if result.EngineVersion == "" {
		t.Error("Expected engine version")
	}
}

func TestScannerMatchesDirectRender(t *testing.T) {
	cases := []struct {
		effect string
		params map[string]any
		op     TargetOp
		val    float64
	}{
		{"crash", map[string]any{"target": 2.0}, OpGreaterEqual, 10},
		{"roulette-ball", map[string]any{"pocket": 7}, OpLess, 2},
		{"slot-reel", map[string]any{"symbols": []any{"a", "b", "c"}}, OpEqual, 2},
		{"poker-deal", map[string]any{"players": 2, "discards": []any{[]any{0.0}}}, OpEqual, 2},
	}

	for _, tc := range cases {
		t.Run(tc.effect, func(t *testing.T) {
			req := Request{
				Effect:      tc.effect,
				ResultStart: 0,
				ResultEnd:   299,
				Payout:      decimal.NewFromInt(2),
				Wager:       decimal.NewFromInt(1),
				Params:      tc.params,
				TargetOp:    tc.op,
				TargetVal:   tc.val,
			}

			result, err := NewScanner(WithWorkers(4)).Scan(context.Background(), req)
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if result.Summary.TotalEvaluated != 300 {
				t.Errorf("Expected 300 evaluations, got %d", result.Summary.TotalEvaluated)
			}

			effect, _ := visuals.GetEffect(tc.effect)
			evaluator := NewTargetEvaluator(tc.op, tc.val, 0, defaultTolerance)
			want := 0
			for ri := int64(0); ri < 300; ri++ {
				frame, err := effect.Render(visuals.Input{Outcome: req.outcome(ri), Params: tc.params})
				if err != nil {
					t.Fatalf("Render(%d) failed: %v", ri, err)
				}
				if evaluator.Matches(frame.Metric) {
					want++
				}
			}
			if len(result.Hits) != want {
				t.Fatalf("Expected %d hits, got %d", want, len(result.Hits))
			}

			for _, hit := range result.Hits {
				frame, _ := effect.Render(visuals.Input{Outcome: req.outcome(hit.ResultIndex), Params: tc.params})
				if frame.Metric != hit.Metric {
					t.Errorf("Result %d: scan metric %v, render metric %v", hit.ResultIndex, hit.Metric, frame.Metric)
				}
			}
		})
	}
}

func TestScannerWithTimeout(t *testing.T) {
	req := Request{
		Effect:      "poker-deal",
		ResultStart: 0,
		ResultEnd:   9_999_999,
		TargetOp:    OpGreaterEqual,
		TargetVal:   0,
		TimeoutMs:   1,
	}

	result, err := NewScanner().Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !result.Summary.TimedOut {
		t.Error("Expected timeout, but scan completed")
	}
}

func TestScannerRejects(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		opts []Option
		want error
	}{
		{"unknown_effect", Request{Effect: "nope", TargetOp: OpEqual}, nil, ErrEffectNotFound},
		{"ambient_effect", Request{Effect: "dice-anim", TargetOp: OpEqual}, nil, ErrNotScannable},
		{"fixed_effect", Request{Effect: "starfield", TargetOp: OpEqual}, nil, ErrNotScannable},
		{"bad_op", Request{Effect: "crash", TargetOp: "almost"}, nil, ErrInvalidOp},
		{"reversed_range", Request{Effect: "crash", TargetOp: OpEqual, ResultStart: 5, ResultEnd: 4}, nil, ErrInvalidRange},
		{"range_too_wide", Request{Effect: "crash", TargetOp: OpEqual, ResultEnd: 100}, []Option{WithMaxRange(100)}, ErrInvalidRange},
		{"range_overflow", Request{Effect: "crash", TargetOp: OpEqual, ResultEnd: math.MaxInt64}, []Option{WithMaxRange(1000)}, ErrInvalidRange},
		{"range_overflow_default_cap", Request{Effect: "crash", TargetOp: OpEqual, ResultEnd: math.MaxInt64}, nil, ErrInvalidRange},
		{"bad_params", Request{Effect: "crash", TargetOp: OpEqual, Params: map[string]any{"target": 0.5}}, nil, visuals.ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScanner(tt.opts...).Scan(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestScannerTopOfRange(t *testing.T) {
	req := Request{
		Effect:      "hilo-rank",
		ResultStart: math.MaxInt64 - 9,
		ResultEnd:   math.MaxInt64,
		TargetOp:    OpGreaterEqual,
		TargetVal:   1,
		TimeoutMs:   5000,
	}

	result, err := NewScanner(WithWorkers(2)).Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.Summary.TotalEvaluated != 10 {
		t.Errorf("Expected 10 evaluated, got %d", result.Summary.TotalEvaluated)
	}
	if result.Summary.TimedOut {
		t.Error("Scan near math.MaxInt64 should finish before its timeout")
	}
	if n := len(result.Hits); n != 10 || result.Hits[n-1].ResultIndex != math.MaxInt64 {
		t.Errorf("Expected hits ending at math.MaxInt64, got %+v", result.Hits)
	}
}

func TestGenerateJobsAtMaxInt64(t *testing.T) {
	jobs := make(chan job, 8)
	generateJobs(context.Background(), jobs, math.MaxInt64-batchSize-1, math.MaxInt64)

	var got []job
	for j := range jobs {
		got = append(got, j)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 batches, got %+v", got)
	}
	if got[0].end != math.MaxInt64-2 || got[1].start != math.MaxInt64-1 || got[1].end != math.MaxInt64 {
		t.Errorf("Unexpected batches %+v", got)
	}
}

func TestSummarize(t *testing.T) {
	s := summarize([]Hit{{1, 2}, {2, 4}, {3, 9}}, 10)
	if s.MinMetric != 2 || s.MaxMetric != 9 || s.MeanMetric != 5 || s.HitsFound != 3 || s.TotalEvaluated != 10 {
		t.Errorf("Unexpected summary %+v", s)
	}
}
