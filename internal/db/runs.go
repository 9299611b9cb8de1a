package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonathan/job-pricer/internal/types"
)

const runColumns = `id, job_title, country, COALESCE(job_code, ''), COALESCE(matching_method, ''),
	COALESCE(confidence, 0), COALESCE(confidence_tier, ''), COALESCE(parameters_version, ''),
	degraded, status, created_at, completed_at`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreateRun creates a new pricing run record and returns its ID
func (db *DB) CreateRun(ctx context.Context, jobTitle, country string) (uuid.UUID, error) {
	return createRun(ctx, db.pool, jobTitle, country)
}

// CompleteRun stores the outcome summary of a run and marks it finished
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, result *types.PricingResult) error {
	return completeRun(ctx, db.pool, runID, result)
}

// SaveArtifact stores a JSON artifact for a pricing run
func (db *DB) SaveArtifact(ctx context.Context, runID uuid.UUID, step string, content any) error {
	return saveArtifact(ctx, db.pool, runID, step, content)
}

func createRun(ctx context.Context, q querier, jobTitle, country string) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.QueryRow(ctx,
		`INSERT INTO pricing_runs (job_title, country, status)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		jobTitle, country, StatusRunning,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

func completeRun(ctx context.Context, q querier, runID uuid.UUID, result *types.PricingResult) error {
	status := StatusCompleted
	if result.Degraded() {
		status = StatusDegraded
	}
	_, err := q.Exec(ctx,
		`UPDATE pricing_runs SET job_code = NULLIF($1, ''), matching_method = $2, confidence = $3,
		     confidence_tier = $4, parameters_version = $5, degraded = $6, status = $7, completed_at = NOW()
		 WHERE id = $8`,
		result.Match.JobCode, string(result.Match.MatchingMethod), result.Confidence,
		string(result.ConfidenceTier), result.ParametersVersion, result.Degraded(), status, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

func saveArtifact(ctx context.Context, q querier, runID uuid.UUID, step string, content any) error {
	jsonBytes, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	_, err = q.Exec(ctx,
		`INSERT INTO pricing_artifacts (run_id, step, content)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (run_id, step) DO UPDATE SET content = $3, created_at = NOW()`,
		runID, step, jsonBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", step, err)
	}
	return nil
}

// GetArtifact retrieves a JSON artifact by run ID and step
func (db *DB) GetArtifact(ctx context.Context, runID uuid.UUID, step string) ([]byte, error) {
	var content []byte
	err := db.pool.QueryRow(ctx,
		`SELECT content FROM pricing_artifacts WHERE run_id = $1 AND step = $2`,
		runID, step,
	).Scan(&content)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get artifact %s: %w", step, err)
	}
	return content, nil
}

// GetPricingResult loads the stored result of a run, or nil when there is none
func (db *DB) GetPricingResult(ctx context.Context, runID uuid.UUID) (*types.PricingResult, error) {
	content, err := db.GetArtifact(ctx, runID, StepPricingResult)
	if err != nil || content == nil {
		return nil, err
	}
	var result types.PricingResult
	if err := json.Unmarshal(content, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pricing result: %w", err)
	}
	return &result, nil
}

// RecordPricing stores the request, the result and the run summary in one transaction.
func (db *DB) RecordPricing(ctx context.Context, req *types.JobRequest, result *types.PricingResult) (uuid.UUID, error) {
	var runID uuid.UUID
	err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		var err error
		if runID, err = createRun(ctx, tx, req.Title, req.Country); err != nil {
			return err
		}
		if err := saveArtifact(ctx, tx, runID, StepJobRequest, req); err != nil {
			return err
		}
		if err := saveArtifact(ctx, tx, runID, StepPricingResult, result); err != nil {
			return err
		}
		return completeRun(ctx, tx, runID, result)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to record pricing run: %w", err)
	}
	return runID, nil
}

// GetRun retrieves a pricing run by ID
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	err := db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM pricing_runs WHERE id = $1`,
		runID,
	).Scan(runDest(&run)...)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns retrieves runs with optional filters, newest first
func (db *DB) ListRuns(ctx context.Context, filters RunFilters) ([]Run, error) {
	if filters.Limit <= 0 {
		filters.Limit = 50
	}

	query := `SELECT ` + runColumns + ` FROM pricing_runs WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.JobCode != "" {
		query += fmt.Sprintf(" AND job_code = $%d", argNum)
		args = append(args, filters.JobCode)
		argNum++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filters.Status)
		argNum++
	}
	if filters.Degraded != nil {
		query += fmt.Sprintf(" AND degraded = $%d", argNum)
		args = append(args, *filters.Degraded)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(runDest(&run)...); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun deletes a pricing run and its artifacts (via cascade)
func (db *DB) DeleteRun(ctx context.Context, runID uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM pricing_runs WHERE id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func runDest(r *Run) []any {
	return []any{&r.ID, &r.JobTitle, &r.Country, &r.JobCode, &r.MatchingMethod, &r.Confidence,
		&r.ConfidenceTier, &r.ParametersVersion, &r.Degraded, &r.Status, &r.CreatedAt, &r.CompletedAt}
}
