package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const scriptRunColumns = `id, mode, namespace, seed, seed_hash, source_hash, request_json,
	output_json, draws, duration_ms, engine_version, created_at`

// SaveScriptRun records a script execution, assigning an ID when missing.
func (s *SQLStore) SaveScriptRun(ctx context.Context, run *ScriptRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.CreatedAt = stamp(run.CreatedAt)
	run.RequestJSON = orEmptyJSON(run.RequestJSON)

	_, err := s.exec(ctx, `INSERT INTO script_runs (`+scriptRunColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Mode, run.Namespace, run.Seed, run.SeedHash, run.SourceHash, run.RequestJSON,
		run.OutputJSON, run.Draws, run.DurationMs, run.EngineVersion, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save script run: %w", err)
	}
	return nil
}

func scanScriptRun(row scanner) (*ScriptRun, error) {
	var run ScriptRun
	err := row.Scan(
		&run.ID, &run.Mode, &run.Namespace, &run.Seed, &run.SeedHash, &run.SourceHash, &run.RequestJSON,
		&run.OutputJSON, &run.Draws, &run.DurationMs, &run.EngineVersion, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetScriptRun retrieves a script run by ID
func (s *SQLStore) GetScriptRun(ctx context.Context, id string) (*ScriptRun, error) {
	run, err := scanScriptRun(s.queryRow(ctx, `SELECT `+scriptRunColumns+` FROM script_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get script run: %w", err)
	}
	return run, nil
}

// ListScriptRuns returns script runs newest first, optionally narrowed to
// one script source or seed mode.
func (s *SQLStore) ListScriptRuns(ctx context.Context, q ScriptRunsQuery) (*ScriptRunsList, error) {
	var where []string
	var args []any
	if q.SourceHash != "" {
		where = append(where, "source_hash = ?")
		args = append(args, q.SourceHash)
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
	if err := s.queryRow(ctx, "SELECT COUNT(*) FROM script_runs "+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	page, perPage, offset, totalPages := paginate(q.Page, q.PerPage, 50, totalCount)

	rows, err := s.query(ctx, `SELECT `+scriptRunColumns+` FROM script_runs `+whereClause+`
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, perPage, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query script runs: %w", err)
	}
	defer rows.Close()

	runs := []ScriptRun{}
	for rows.Next() {
		run, err := scanScriptRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan script run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating script runs: %w", err)
	}

	return &ScriptRunsList{
		Runs:       runs,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}
