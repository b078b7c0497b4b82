package scripting

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/logger"
	"github.com/MJE43/visual-replay-go/internal/seeds"
	"github.com/MJE43/visual-replay-go/internal/store"
)

// ReplayResult compares a stored script run with a fresh one.
type ReplayResult struct {
	Match      bool     `json:"match"`
	Mismatches []string `json:"mismatches,omitempty"`
	Result     *Result  `json:"result"`
}

func (r *Runner) record(ctx context.Context, req Request, res *Result) (string, error) {
	if r.db == nil {
		return "", ErrNoStore
	}
	req.Persist = false
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode script request: %w", err)
	}

	run := &store.ScriptRun{
		Mode:          res.Mode.String(),
		Namespace:     res.namespace,
		Seed:          res.Seed,
		SeedHash:      res.SeedHash,
		SourceHash:    seeds.HashText(req.Source),
		RequestJSON:   string(body),
		OutputJSON:    string(res.encoded),
		Draws:         res.Draws,
		DurationMs:    res.DurationMs,
		EngineVersion: engine.Version,
		CreatedAt:     r.clock.Now(),
	}
	if err := r.db.SaveScriptRun(ctx, run); err != nil {
		return "", err
	}
	logger.FromContext(ctx).InfoContext(ctx, "script run recorded",
		"run_id", run.ID, "seed_hash", run.SeedHash, "source_hash", run.SourceHash)
	return run.ID, nil
}

// Replay runs a recorded script again from its stored request and reports
// whether the seed, output and draw count still match.
func (r *Runner) Replay(ctx context.Context, id string) (*ReplayResult, error) {
	if r.db == nil {
		return nil, ErrNoStore
	}
	rec, err := r.db.GetScriptRun(ctx, id)
	if err != nil {
		return nil, err
	}

	var req Request
	if err := json.Unmarshal([]byte(rec.RequestJSON), &req); err != nil {
		return nil, fmt.Errorf("decode stored script request: %w", err)
	}
	req.Persist = false

	res, err := r.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &ReplayResult{Result: res}
	if res.Seed != rec.Seed {
		out.Mismatches = append(out.Mismatches,
			fmt.Sprintf("seed_hash: stored %s, got %s", rec.SeedHash, res.SeedHash))
	}
	if string(res.encoded) != rec.OutputJSON {
		out.Mismatches = append(out.Mismatches, "output: stored value differs from replay")
	}
	if res.Draws != rec.Draws {
		out.Mismatches = append(out.Mismatches,
			fmt.Sprintf("draws: stored %d, got %d", rec.Draws, res.Draws))
	}
	if rec.EngineVersion != engine.Version {
		out.Mismatches = append(out.Mismatches,
			fmt.Sprintf("engine_version: stored %s, running %s", rec.EngineVersion, engine.Version))
	}
	out.Match = len(out.Mismatches) == 0
	return out, nil
}
