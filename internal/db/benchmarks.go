package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/job-pricer/internal/types"
)

// ListBenchmarks returns the benchmark records for a cut key and country, newest first.
func (db *DB) ListBenchmarks(ctx context.Context, cut types.BenchmarkCut, key, country string) ([]types.MarketBenchmarkRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT cut, key, country, currency, p10, p25, p50, p75, p90, sample_size, survey_date
		 FROM market_benchmarks
		 WHERE cut = $1 AND lower(key) = lower($2) AND country = $3
		 ORDER BY survey_date DESC, sample_size DESC, currency`,
		string(cut), strings.TrimSpace(key), strings.ToUpper(strings.TrimSpace(country)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list benchmarks: %w", err)
	}
	defer rows.Close()

	var records []types.MarketBenchmarkRecord
	for rows.Next() {
		var r types.MarketBenchmarkRecord
		var cutName string
		if err := rows.Scan(&cutName, &r.Key, &r.Country, &r.Currency,
			&r.Percentiles.P10, &r.Percentiles.P25, &r.Percentiles.P50, &r.Percentiles.P75, &r.Percentiles.P90,
			&r.SampleSize, &r.SurveyDate); err != nil {
			return nil, fmt.Errorf("failed to scan benchmark: %w", err)
		}
		r.Cut = types.BenchmarkCut(cutName)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list benchmarks: %w", err)
	}
	return records, nil
}

// UpsertBenchmark inserts a benchmark or replaces the one for the same cut, key, country,
// currency and survey date.
func (db *DB) UpsertBenchmark(ctx context.Context, r *types.MarketBenchmarkRecord) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO market_benchmarks (cut, key, country, currency, p10, p25, p50, p75, p90, sample_size, survey_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (cut, key, country, currency, survey_date) DO UPDATE SET
		     p10 = $5, p25 = $6, p50 = $7, p75 = $8, p90 = $9, sample_size = $10`,
		string(r.Cut), r.Key, strings.ToUpper(r.Country), r.Currency,
		r.Percentiles.P10, r.Percentiles.P25, r.Percentiles.P50, r.Percentiles.P75, r.Percentiles.P90,
		r.SampleSize, r.SurveyDate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert benchmark %s %s: %w", r.Cut, r.Key, err)
	}
	return nil
}
