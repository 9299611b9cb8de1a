package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/job-pricer/internal/config"
	"github.com/jonathan/job-pricer/internal/db"
	"github.com/jonathan/job-pricer/internal/index"
	"github.com/jonathan/job-pricer/internal/types"
	"github.com/spf13/cobra"
)

var syncIndexCmd = &cobra.Command{
	Use:   "sync-index",
	Short: "Copy reference job embeddings into the Milvus collection",
	Long: `Reads reference jobs from the database (or --records) and upserts their embeddings into
the configured Milvus collection, creating it when missing.`,
	RunE: runSyncIndex,
}

var syncRecordsPath string

func init() {
	syncIndexCmd.Flags().StringVar(&syncRecordsPath, "records", "", "JSON file of reference job records (defaults to the database)")
	rootCmd.AddCommand(syncIndexCmd)
}

func runSyncIndex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Milvus.Endpoint == "" || cfg.Milvus.Collection == "" {
		return errors.New("milvus.endpoint and milvus.collection are required")
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	records, err := syncRecords(ctx, cfg)
	if err != nil {
		return err
	}

	mv, err := index.NewMilvusIndex(ctx, cfg.Milvus.Endpoint, cfg.Milvus.Collection, cfg.Embedding.Dimension, nil, log)
	if err != nil {
		return err
	}
	defer mv.Close()

	if err := mv.Sync(ctx, records); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Synced %d reference jobs to %s\n", len(records), cfg.Milvus.Collection)
	return nil
}

func syncRecords(ctx context.Context, cfg *config.Config) ([]types.ReferenceJobRecord, error) {
	path := syncRecordsPath
	if path == "" && cfg.DatabaseURL == "" {
		path = cfg.Index.RecordsFile
	}
	if path != "" {
		return index.LoadRecordsFile(path)
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("reference jobs need --records, index.records_file or database_url")
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	defer database.Close()
	return database.ListReferenceJobs(ctx)
}
