package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type dialect struct {
	name        string
	driver      string
	goose       goose.Dialect
	placeholder func(n int) string
}

var (
	sqliteDialect = dialect{
		name:        DriverSQLite,
		driver:      "sqlite",
		goose:       goose.DialectSQLite3,
		placeholder: func(int) string { return "?" },
	}
	postgresDialect = dialect{
		name:        DriverPostgres,
		driver:      "pgx",
		goose:       goose.DialectPostgres,
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
)

// SQLStore implements DB over database/sql for both SQLite and Postgres.
// Queries are written with ? placeholders and rebound per dialect.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

var _ DB = (*SQLStore)(nil)

// Open connects to the database named by driver ("sqlite" or "postgres").
// For SQLite dsn is a file path; for Postgres it is a connection URL.
func Open(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite:
		return NewSQLiteDB(dsn)
	case DriverPostgres:
		return NewPostgresDB(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NewSQLiteDB opens or creates a SQLite database at path.
func NewSQLiteDB(path string) (*SQLStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_time_format=sqlite", path)
	db, err := sql.Open(sqliteDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &SQLStore{db: db, dialect: sqliteDialect}, nil
}

// NewPostgresDB connects to Postgres through the pgx stdlib driver.
func NewPostgresDB(dsn string) (*SQLStore, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &SQLStore{db: db, dialect: postgresDialect}, nil
}

// Driver reports which dialect the store speaks.
func (s *SQLStore) Driver() string {
	return s.dialect.name
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping verifies the connection is usable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites ? placeholders for the store's dialect.
func (s *SQLStore) rebind(query string) string {
	if s.dialect.name == DriverSQLite {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func orEmptyJSON(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}

// --------- Renders ---------

const renderColumns = `id, effect, mode, seed, seed_hash, result_index, payout, wager,
	params_json, metric, frame_json, engine_version, created_at`

// SaveRender stores an audited frame, assigning an ID when missing.
func (s *SQLStore) SaveRender(ctx context.Context, r *Render) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.CreatedAt = stamp(r.CreatedAt)
	r.ParamsJSON = orEmptyJSON(r.ParamsJSON)

	_, err := s.exec(ctx, `INSERT INTO renders (`+renderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Effect, r.Mode, r.Seed, r.SeedHash, r.ResultIndex, r.Payout, r.Wager,
		r.ParamsJSON, r.Metric, r.FrameJSON, r.EngineVersion, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save render: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRender(row scanner) (*Render, error) {
	var r Render
	err := row.Scan(
		&r.ID, &r.Effect, &r.Mode, &r.Seed, &r.SeedHash, &r.ResultIndex, &r.Payout, &r.Wager,
		&r.ParamsJSON, &r.Metric, &r.FrameJSON, &r.EngineVersion, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRender retrieves a render by ID
func (s *SQLStore) GetRender(ctx context.Context, id string) (*Render, error) {
	r, err := scanRender(s.queryRow(ctx, `SELECT `+renderColumns+` FROM renders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get render: %w", err)
	}
	return r, nil
}

// ListRenders returns renders newest first, optionally filtered by effect
// and seed mode.
func (s *SQLStore) ListRenders(ctx context.Context, q RendersQuery) (*RendersList, error) {
	var where []string
	var args []any
	if q.Effect != "" {
		where = append(where, "effect = ?")
		args = append(args, q.Effect)
	}
	if q.Mode != "" {
		where = append(where, "mode = ?")
		args = append(args, q.Mode)
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var totalCount int
	if err := s.queryRow(ctx, "SELECT COUNT(*) FROM renders "+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	page, perPage, offset, totalPages := paginate(q.Page, q.PerPage, 50, totalCount)

	rows, err := s.query(ctx, `SELECT `+renderColumns+` FROM renders `+whereClause+`
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, perPage, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query renders: %w", err)
	}
	defer rows.Close()

	renders := []Render{}
	for rows.Next() {
		r, err := scanRender(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan render: %w", err)
		}
		renders = append(renders, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating renders: %w", err)
	}

	return &RendersList{
		Renders:    renders,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}

// --------- Scan runs ---------

const runColumns = `id, effect, result_start, result_end, payout, wager, params_json,
	target_op, target_val, target_val2, tolerance, hit_limit, timed_out, limit_reached,
	hit_count, total_evaluated, errors, summary_min, summary_max, summary_mean,
	duration_ms, engine_version, created_at`

// SaveRun saves a scan run to the database
func (s *SQLStore) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.CreatedAt = stamp(run.CreatedAt)
	run.ParamsJSON = orEmptyJSON(run.ParamsJSON)

	_, err := s.exec(ctx, `INSERT INTO scan_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Effect, run.ResultStart, run.ResultEnd, run.Payout, run.Wager, run.ParamsJSON,
		run.TargetOp, run.TargetVal, run.TargetVal2, run.Tolerance, run.HitLimit, run.TimedOut, run.LimitReached,
		run.HitCount, run.TotalEvaluated, run.Errors, run.SummaryMin, run.SummaryMax, run.SummaryMean,
		run.DurationMs, run.EngineVersion, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// UpdateRun updates the outcome columns of an existing run.
func (s *SQLStore) UpdateRun(ctx context.Context, run *Run) error {
	res, err := s.exec(ctx, `UPDATE scan_runs SET
		timed_out = ?, limit_reached = ?, hit_count = ?, total_evaluated = ?, errors = ?,
		summary_min = ?, summary_max = ?, summary_mean = ?, duration_ms = ?, engine_version = ?
		WHERE id = ?`,
		run.TimedOut, run.LimitReached, run.HitCount, run.TotalEvaluated, run.Errors,
		run.SummaryMin, run.SummaryMax, run.SummaryMean, run.DurationMs, run.EngineVersion,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveHits saves multiple hits to the database
func (s *SQLStore) SaveHits(ctx context.Context, runID string, hits []Hit) error {
	if len(hits) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		"INSERT INTO scan_hits (run_id, result_index, metric, details) VALUES (?, ?, ?, ?)"))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, hit := range hits {
		var details sql.NullString
		if hit.Details != "" {
			details = sql.NullString{String: hit.Details, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, runID, hit.ResultIndex, hit.Metric, details); err != nil {
			return fmt.Errorf("failed to save hit %d: %w", hit.ResultIndex, err)
		}
	}

	return tx.Commit()
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var summaryMin, summaryMax, summaryMean sql.NullFloat64

	err := row.Scan(
		&run.ID, &run.Effect, &run.ResultStart, &run.ResultEnd, &run.Payout, &run.Wager, &run.ParamsJSON,
		&run.TargetOp, &run.TargetVal, &run.TargetVal2, &run.Tolerance, &run.HitLimit, &run.TimedOut, &run.LimitReached,
		&run.HitCount, &run.TotalEvaluated, &run.Errors, &summaryMin, &summaryMax, &summaryMean,
		&run.DurationMs, &run.EngineVersion, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if summaryMin.Valid {
		run.SummaryMin = &summaryMin.Float64
	}
	if summaryMax.Valid {
		run.SummaryMax = &summaryMax.Float64
	}
	if summaryMean.Valid {
		run.SummaryMean = &summaryMean.Float64
	}
	return &run, nil
}

// GetRun retrieves a run by ID
func (s *SQLStore) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.queryRow(ctx, `SELECT `+runColumns+` FROM scan_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves runs with pagination and filtering
func (s *SQLStore) ListRuns(ctx context.Context, q RunsQuery) (*RunsList, error) {
	whereClause := ""
	var args []any
	if q.Effect != "" {
		whereClause = "WHERE effect = ?"
		args = append(args, q.Effect)
	}

	var totalCount int
	if err := s.queryRow(ctx, "SELECT COUNT(*) FROM scan_runs "+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	page, perPage, offset, totalPages := paginate(q.Page, q.PerPage, 50, totalCount)

	rows, err := s.query(ctx, `SELECT `+runColumns+` FROM scan_runs `+whereClause+`
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, perPage, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return &RunsList{
		Runs:       runs,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}

// GetRunHits returns a page of hits ordered by result index. Each hit carries
// the gap to the previous hit, looking back across the page boundary.
func (s *SQLStore) GetRunHits(ctx context.Context, runID string, page, perPage int) (*HitsPage, error) {
	var totalCount int
	if err := s.queryRow(ctx, "SELECT COUNT(*) FROM scan_hits WHERE run_id = ?", runID).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get hits count: %w", err)
	}

	page, perPage, offset, totalPages := paginate(page, perPage, 100, totalCount)

	rows, err := s.query(ctx, `SELECT id, run_id, result_index, metric, details
		FROM scan_hits WHERE run_id = ?
		ORDER BY result_index LIMIT ? OFFSET ?`, runID, perPage, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query hits: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var hit Hit
		var details sql.NullString
		if err := rows.Scan(&hit.ID, &hit.RunID, &hit.ResultIndex, &hit.Metric, &details); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		hit.Details = details.String
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hits: %w", err)
	}

	withDelta := make([]HitWithDelta, len(hits))
	for i, hit := range hits {
		withDelta[i] = HitWithDelta{Hit: hit}
		if i > 0 {
			delta := hit.ResultIndex - hits[i-1].ResultIndex
			withDelta[i].DeltaIndex = &delta
			continue
		}
		if page > 1 {
			var prev int64
			err := s.queryRow(ctx, `SELECT result_index FROM scan_hits
				WHERE run_id = ? AND result_index < ? ORDER BY result_index DESC LIMIT 1`,
				runID, hit.ResultIndex).Scan(&prev)
			if err == nil {
				delta := hit.ResultIndex - prev
				withDelta[i].DeltaIndex = &delta
			}
		}
	}

	return &HitsPage{
		Hits:       withDelta,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}
