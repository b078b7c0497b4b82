package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a render or run does not exist.
var ErrNotFound = errors.New("store: not found")

// DB defines the persistence interface for renders, scan runs and script runs.
type DB interface {
	Close() error
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error

	SaveRender(ctx context.Context, r *Render) error
	GetRender(ctx context.Context, id string) (*Render, error)
	ListRenders(ctx context.Context, query RendersQuery) (*RendersList, error)

	SaveRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
	SaveHits(ctx context.Context, runID string, hits []Hit) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, query RunsQuery) (*RunsList, error)
	GetRunHits(ctx context.Context, runID string, page, perPage int) (*HitsPage, error)

	SaveScriptRun(ctx context.Context, run *ScriptRun) error
	GetScriptRun(ctx context.Context, id string) (*ScriptRun, error)
	ListScriptRuns(ctx context.Context, query ScriptRunsQuery) (*ScriptRunsList, error)
}

// RendersQuery filters and paginates stored renders.
type RendersQuery struct {
	Effect  string `json:"effect,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
}

// RendersList is one page of renders, newest first.
type RendersList struct {
	Renders    []Render `json:"renders"`
	TotalCount int      `json:"totalCount"`
	Page       int      `json:"page"`
	PerPage    int      `json:"perPage"`
	TotalPages int      `json:"totalPages"`
}

// RunsQuery represents query parameters for listing runs
type RunsQuery struct {
	Effect  string `json:"effect,omitempty"`
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
}

// RunsList represents paginated runs response
type RunsList struct {
	Runs       []Run `json:"runs"`
	TotalCount int   `json:"totalCount"`
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	TotalPages int   `json:"totalPages"`
}

// ScriptRunsQuery filters and paginates stored script runs.
type ScriptRunsQuery struct {
	SourceHash string `json:"source_hash,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Page       int    `json:"page"`
	PerPage    int    `json:"perPage"`
}

// ScriptRunsList is one page of script runs, newest first.
type ScriptRunsList struct {
	Runs       []ScriptRun `json:"runs"`
	TotalCount int         `json:"totalCount"`
	Page       int         `json:"page"`
	PerPage    int         `json:"perPage"`
	TotalPages int         `json:"totalPages"`
}

// HitsPage is a page of hits, each carrying the distance to the previous hit.
type HitsPage struct {
	Hits       []HitWithDelta `json:"hits"`
	TotalCount int            `json:"totalCount"`
	Page       int            `json:"page"`
	PerPage    int            `json:"perPage"`
	TotalPages int            `json:"totalPages"`
}

// Render is an audited frame. Seed holds the full seed text so the frame can
// be re-rendered later; logs only ever carry SeedHash.
type Render struct {
	ID            string          `json:"id" db:"id"`
	Effect        string          `json:"effect" db:"effect"`
	Mode          string          `json:"mode" db:"mode"`
	Seed          string          `json:"seed" db:"seed"`
	SeedHash      string          `json:"seed_hash" db:"seed_hash"`
	ResultIndex   int64           `json:"result_index" db:"result_index"`
	Payout        decimal.Decimal `json:"payout" db:"payout"`
	Wager         decimal.Decimal `json:"wager" db:"wager"`
	ParamsJSON    string          `json:"params_json" db:"params_json"`
	Metric        float64         `json:"metric" db:"metric"`
	FrameJSON     string          `json:"frame_json" db:"frame_json"`
	EngineVersion string          `json:"engine_version" db:"engine_version"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Run represents a scan run
type Run struct {
	ID             string          `json:"id" db:"id"`
	Effect         string          `json:"effect" db:"effect"`
	ResultStart    int64           `json:"result_start" db:"result_start"`
	ResultEnd      int64           `json:"result_end" db:"result_end"`
	Payout         decimal.Decimal `json:"payout" db:"payout"`
	Wager          decimal.Decimal `json:"wager" db:"wager"`
	ParamsJSON     string          `json:"params_json" db:"params_json"`
	TargetOp       string          `json:"target_op" db:"target_op"`
	TargetVal      float64         `json:"target_val" db:"target_val"`
	TargetVal2     float64         `json:"target_val2" db:"target_val2"`
	Tolerance      float64         `json:"tolerance" db:"tolerance"`
	HitLimit       int             `json:"hit_limit" db:"hit_limit"`
	TimedOut       bool            `json:"timed_out" db:"timed_out"`
	LimitReached   bool            `json:"limit_reached" db:"limit_reached"`
	HitCount       int             `json:"hit_count" db:"hit_count"`
	TotalEvaluated int64           `json:"total_evaluated" db:"total_evaluated"`
	Errors         int64           `json:"errors" db:"errors"`
	SummaryMin     *float64        `json:"summary_min" db:"summary_min"`
	SummaryMax     *float64        `json:"summary_max" db:"summary_max"`
	SummaryMean    *float64        `json:"summary_mean" db:"summary_mean"`
	DurationMs     int64           `json:"duration_ms" db:"duration_ms"`
	EngineVersion  string          `json:"engine_version" db:"engine_version"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// ScriptRun is a recorded script execution. RequestJSON holds everything
// needed to run it again; OutputJSON is the agreed output of both runs.
type ScriptRun struct {
	ID            string    `json:"id" db:"id"`
	Mode          string    `json:"mode" db:"mode"`
	Namespace     string    `json:"namespace" db:"namespace"`
	Seed          string    `json:"seed" db:"seed"`
	SeedHash      string    `json:"seed_hash" db:"seed_hash"`
	SourceHash    string    `json:"source_hash" db:"source_hash"`
	RequestJSON   string    `json:"request_json" db:"request_json"`
	OutputJSON    string    `json:"output_json" db:"output_json"`
	Draws         int       `json:"draws" db:"draws"`
	DurationMs    int64     `json:"duration_ms" db:"duration_ms"`
	EngineVersion string    `json:"engine_version" db:"engine_version"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Hit represents a single matching result
type Hit struct {
	ID          int64   `json:"id" db:"id"`
	RunID       string  `json:"run_id" db:"run_id"`
	ResultIndex int64   `json:"result_index" db:"result_index"`
	Metric      float64 `json:"metric" db:"metric"`
	Details     string  `json:"details,omitempty" db:"details"` // JSON string
}

// HitWithDelta represents a hit with the result-index gap since the previous hit
type HitWithDelta struct {
	Hit
	DeltaIndex *int64 `json:"delta_index,omitempty"`
}

// paginate normalises page/perPage and derives the offset and page count.
func paginate(page, perPage, def, total int) (int, int, int, int) {
	if perPage <= 0 {
		perPage = def
	}
	if perPage > 1000 {
		perPage = 1000
	}
	if page <= 0 {
		page = 1
	}
	totalPages := (total + perPage - 1) / perPage
	return page, perPage, (page - 1) * perPage, totalPages
}
