package scan

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/MJE43/visual-replay-go/internal/store"
)

func TestServiceRecordsRun(t *testing.T) {
	ctx := context.Background()
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "scan.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc := NewService(NewScanner(WithWorkers(2)), db)
	res, err := svc.Run(ctx, Request{
		Effect:      "hilo-rank",
		ResultStart: 0,
		ResultEnd:   49,
		Payout:      decimal.NewFromInt(2),
		Wager:       decimal.NewFromInt(1),
		TargetOp:    OpGreaterEqual,
		TargetVal:   1,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.RunID == "" {
		t.Fatal("expected a run ID")
	}
	if len(res.Hits) != 50 {
		t.Fatalf("expected 50 hits, got %d", len(res.Hits))
	}

	run, err := db.GetRun(ctx, res.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Effect != "hilo-rank" || run.HitCount != 50 || run.TotalEvaluated != 50 {
		t.Errorf("unexpected run %+v", run)
	}
	if run.SummaryMin == nil || *run.SummaryMin != res.Summary.MinMetric {
		t.Errorf("summary min not stored: %v", run.SummaryMin)
	}
	if !run.Payout.Equal(decimal.NewFromInt(2)) {
		t.Errorf("payout not stored: %s", run.Payout)
	}
	if run.ParamsJSON != "{}" {
		t.Errorf("expected empty params object, got %q", run.ParamsJSON)
	}

	page, err := db.GetRunHits(ctx, res.RunID, 1, 20)
	if err != nil {
		t.Fatalf("GetRunHits failed: %v", err)
	}
	if page.TotalCount != 50 || len(page.Hits) != 20 {
		t.Errorf("unexpected hits page: total=%d len=%d", page.TotalCount, len(page.Hits))
	}
}

func TestServiceWithoutStore(t *testing.T) {
	svc := NewService(NewScanner(), nil)
	res, err := svc.Run(context.Background(), Request{
		Effect:      "roulette-ball",
		ResultStart: 0,
		ResultEnd:   9,
		TargetOp:    OpGreaterEqual,
		TargetVal:   0,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.RunID != "" {
		t.Errorf("expected no run ID, got %q", res.RunID)
	}
}

func TestServiceClientErrors(t *testing.T) {
	svc := NewService(NewScanner(), nil)
	ctx := context.Background()

	for _, req := range []Request{
		{Effect: "nope", TargetOp: OpEqual},
		{Effect: "starfield", TargetOp: OpEqual},
		{Effect: "crash", ResultStart: 5, ResultEnd: 1, TargetOp: OpEqual},
		{Effect: "crash", TargetOp: "near"},
	} {
		_, err := svc.Run(ctx, req)
		if err == nil {
			t.Errorf("%+v: expected an error", req)
			continue
		}
		if !IsClientError(err) {
			t.Errorf("%+v: %v should be a client error", req, err)
		}
	}

	if IsClientError(errors.New("disk full")) {
		t.Error("arbitrary errors are not client errors")
	}
}
