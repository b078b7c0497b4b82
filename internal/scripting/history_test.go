package scripting

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/MJE43/visual-replay-go/internal/store"
)

func newTestStore(t *testing.T) store.DB {
	t.Helper()
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "scripts.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func TestPersistAndReplay(t *testing.T) {
	db := newTestStore(t)
	r := newTestRunner(WithStore(db))
	ctx := context.Background()

	res, err := r.Run(ctx, Request{
		Source:  `[shuffle([1, 2, 3, 4]), rng()]`,
		Mode:    "fixed",
		Fields:  []any{"deck"},
		Persist: true,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.RunID == "" {
		t.Fatal("expected a run ID for a persisted run")
	}

	rec, err := db.GetScriptRun(ctx, res.RunID)
	if err != nil {
		t.Fatalf("GetScriptRun: %v", err)
	}
	if rec.Seed != "script-fixed:deck" || rec.Namespace != "script-fixed" || rec.Mode != "fixed" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Draws != res.Draws {
		t.Errorf("draws: got %d, want %d", rec.Draws, res.Draws)
	}

	replay, err := r.Replay(ctx, res.RunID)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if !replay.Match {
		t.Errorf("expected replay to match, mismatches: %v", replay.Mismatches)
	}
	if replay.Result.RunID != "" {
		t.Error("replay must not record a new run")
	}

	list, err := db.ListScriptRuns(ctx, store.ScriptRunsQuery{})
	if err != nil {
		t.Fatalf("ListScriptRuns: %v", err)
	}
	if list.TotalCount != 1 {
		t.Errorf("expected 1 stored run, got %d", list.TotalCount)
	}
}

func TestAmbientReplayKeepsBucket(t *testing.T) {
	db := newTestStore(t)
	clock := clockwork.NewFakeClockAt(morning)
	r := NewRunner(WithClock(clock), WithTimeout(2*time.Second), WithStore(db))
	ctx := context.Background()

	res, err := r.Run(ctx, Request{Source: `rng()`, Mode: "ambient", Persist: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Seed != "script-ambient:1700000000" {
		t.Errorf("unexpected seed %q", res.Seed)
	}

	clock.Advance(time.Hour)
	replay, err := r.Replay(ctx, res.RunID)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if !replay.Match || replay.Result.Seed != res.Seed {
		t.Errorf("replay drifted to %q: %v", replay.Result.Seed, replay.Mismatches)
	}
}

func TestPersistWithoutStore(t *testing.T) {
	r := newTestRunner()

	if _, err := r.Run(context.Background(), Request{Source: `1`, Persist: true}); !errors.Is(err, ErrNoStore) {
		t.Errorf("expected ErrNoStore, got %v", err)
	}
	if _, err := r.Replay(context.Background(), "x"); !errors.Is(err, ErrNoStore) {
		t.Errorf("expected ErrNoStore from Replay, got %v", err)
	}
}

func TestReplayMissingRun(t *testing.T) {
	r := newTestRunner(WithStore(newTestStore(t)))

	if _, err := r.Replay(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected store.ErrNotFound, got %v", err)
	}
}
