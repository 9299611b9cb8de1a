package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jonathan/job-pricer/internal/types"
	"github.com/pgvector/pgvector-go"
)

const referenceJobColumns = `job_code, title, COALESCE(description, ''), family, subfamily, career_level,
	position_class, factors, skills`

// SearchReferenceJobs returns up to limit records ordered by cosine distance to vector, then by
// job code. An empty family matches every record; otherwise families compare case-insensitively.
func (db *DB) SearchReferenceJobs(ctx context.Context, vector []float32, family string, limit int) ([]types.MatchCandidate, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+referenceJobColumns+`, 1 - (embedding <=> $1::vector) AS similarity
		 FROM reference_jobs
		 WHERE embedding IS NOT NULL
		   AND ($2 = '' OR lower(family) = lower($2))
		 ORDER BY embedding <=> $1::vector, job_code
		 LIMIT $3`,
		pgvector.NewVector(vector), strings.TrimSpace(family), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search reference jobs: %w", err)
	}
	defer rows.Close()

	var candidates []types.MatchCandidate
	for rows.Next() {
		var (
			rec        types.ReferenceJobRecord
			factors    []byte
			similarity float64
		)
		if err := rows.Scan(&rec.JobCode, &rec.Title, &rec.Description, &rec.Family, &rec.Subfamily,
			&rec.CareerLevel, &rec.PositionClass, &factors, &rec.Skills, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan reference job: %w", err)
		}
		if err := decodeFactors(factors, &rec); err != nil {
			return nil, err
		}
		record := rec
		candidates = append(candidates, types.MatchCandidate{
			JobCode:    rec.JobCode,
			Title:      rec.Title,
			Similarity: similarity,
			Record:     &record,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search reference jobs: %w", err)
	}
	return candidates, nil
}

// GetReferenceJobs loads the records for codes, ordered by job code. Unknown codes are skipped.
func (db *DB) GetReferenceJobs(ctx context.Context, codes []string) ([]types.ReferenceJobRecord, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+referenceJobColumns+` FROM reference_jobs WHERE job_code = ANY($1) ORDER BY job_code`,
		codes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get reference jobs: %w", err)
	}
	return collectReferenceJobs(rows, false)
}

// ListReferenceJobs loads every record with its embedding, ordered by job code.
func (db *DB) ListReferenceJobs(ctx context.Context) ([]types.ReferenceJobRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+referenceJobColumns+`, embedding::text FROM reference_jobs ORDER BY job_code`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reference jobs: %w", err)
	}
	return collectReferenceJobs(rows, true)
}

// UpsertReferenceJob inserts or replaces a record.
func (db *DB) UpsertReferenceJob(ctx context.Context, rec *types.ReferenceJobRecord) error {
	if _, err := types.ParseJobCode(rec.JobCode); err != nil {
		return err
	}
	factors, err := json.Marshal(rec.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal factors: %w", err)
	}
	var embedding any
	if len(rec.Embedding) > 0 {
		embedding = pgvector.NewVector(rec.Embedding)
	}
	skills := rec.Skills
	if skills == nil {
		skills = []string{}
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO reference_jobs (job_code, title, description, family, subfamily, career_level,
		     position_class, factors, skills, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector)
		 ON CONFLICT (job_code) DO UPDATE SET
		     title = $2, description = $3, family = $4, subfamily = $5, career_level = $6,
		     position_class = $7, factors = $8, skills = $9, embedding = $10::vector, updated_at = NOW()`,
		rec.JobCode, rec.Title, rec.Description, rec.Family, rec.Subfamily, rec.CareerLevel,
		rec.PositionClass, factors, skills, embedding,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert reference job %s: %w", rec.JobCode, err)
	}
	return nil
}

func collectReferenceJobs(rows pgx.Rows, withEmbedding bool) ([]types.ReferenceJobRecord, error) {
	defer rows.Close()

	var records []types.ReferenceJobRecord
	for rows.Next() {
		var (
			rec     types.ReferenceJobRecord
			factors []byte
			vec     *pgvector.Vector
		)
		dest := []any{&rec.JobCode, &rec.Title, &rec.Description, &rec.Family, &rec.Subfamily,
			&rec.CareerLevel, &rec.PositionClass, &factors, &rec.Skills}
		if withEmbedding {
			dest = append(dest, &vec)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan reference job: %w", err)
		}
		if err := decodeFactors(factors, &rec); err != nil {
			return nil, err
		}
		if vec != nil {
			rec.Embedding = vec.Slice()
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reference jobs: %w", err)
	}
	return records, nil
}

func decodeFactors(data []byte, rec *types.ReferenceJobRecord) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &rec.Factors); err != nil {
		return fmt.Errorf("failed to unmarshal factors for %s: %w", rec.JobCode, err)
	}
	return nil
}
