package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/job-pricer/internal/db"
	"github.com/jonathan/job-pricer/internal/engine"
	"github.com/jonathan/job-pricer/internal/index"
	"github.com/jonathan/job-pricer/internal/llm"
	"github.com/jonathan/job-pricer/internal/market"
	"github.com/jonathan/job-pricer/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema and optionally seed reference jobs and benchmarks",
	Long: `Applies the schema to database_url. With --records, reference jobs are upserted; records
without an embedding are embedded first when --embed-missing is set. With --benchmarks, market
benchmark records are upserted.`,
	RunE: runMigrate,
}

var (
	migrateRecordsPath    string
	migrateBenchmarksPath string
	migrateEmbedMissing   bool
)

func init() {
	migrateCmd.Flags().StringVar(&migrateRecordsPath, "records", "", "JSON file of reference job records to upsert")
	migrateCmd.Flags().StringVar(&migrateBenchmarksPath, "benchmarks", "", "YAML or JSON file of benchmark records to upsert")
	migrateCmd.Flags().BoolVar(&migrateEmbedMissing, "embed-missing", false, "Embed records that carry no embedding")

	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("database_url is required (set JOB_PRICER_DATABASE_URL)")
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return err
	}
	log.Info("schema applied")

	if migrateRecordsPath != "" {
		records, err := index.LoadRecordsFile(migrateRecordsPath)
		if err != nil {
			return err
		}
		if migrateEmbedMissing {
			provider, err := llm.ParseProvider(cfg.Embedding.Provider)
			if err != nil {
				return err
			}
			embedder, err := llm.NewEmbedder(ctx, provider, cfg.Embedding.Model, cfg.Embedding.APIKey)
			if err != nil {
				return fmt.Errorf("failed to create embedder: %w", err)
			}
			if err := embedMissing(ctx, embedder, records, cfg.Embedding.Dimension); err != nil {
				return err
			}
		}
		for i := range records {
			if err := database.UpsertReferenceJob(ctx, &records[i]); err != nil {
				return err
			}
		}
		log.Info("reference jobs seeded", zap.Int("count", len(records)))
	}

	if migrateBenchmarksPath != "" {
		benchmarks, err := market.LoadRecords(migrateBenchmarksPath)
		if err != nil {
			return err
		}
		for i := range benchmarks {
			if err := database.UpsertBenchmark(ctx, &benchmarks[i]); err != nil {
				return err
			}
		}
		log.Info("benchmarks seeded", zap.Int("count", len(benchmarks)))
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Migration complete")
	return nil
}

// embedMissing fills in embeddings for records that have none, embedding the same text a
// request with the record's title, description and skills would produce.
func embedMissing(ctx context.Context, embedder llm.Embedder, records []types.ReferenceJobRecord, dim int) error {
	for i := range records {
		r := &records[i]
		if len(r.Embedding) > 0 {
			continue
		}
		v, err := embedder.Embed(ctx, engine.SearchText(&types.JobRequest{
			Title:       r.Title,
			Description: r.Description,
			Skills:      r.Skills,
		}))
		if err != nil {
			return fmt.Errorf("failed to embed %s: %w", r.JobCode, err)
		}
		if dim > 0 && len(v) != dim {
			return fmt.Errorf("embedding for %s has dimension %d, expected %d", r.JobCode, len(v), dim)
		}
		r.Embedding = v
	}
	return nil
}
