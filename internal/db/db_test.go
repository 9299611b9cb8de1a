package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchema_DefinesTables(t *testing.T) {
	schema := Schema()

	for _, table := range []string{"reference_jobs", "market_benchmarks", "pricing_runs", "pricing_artifacts"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table, table)
	}
	assert.Contains(t, schema, "CREATE EXTENSION IF NOT EXISTS vector")
}

func TestArtifactStepConstants(t *testing.T) {
	for _, step := range []string{StepJobRequest, StepPricingResult} {
		assert.NotEmpty(t, step, "step constant should not be empty")
	}
}

func TestRunType(t *testing.T) {
	run := Run{
		JobTitle: "Data Engineer",
		Country:  "US",
		Status:   StatusRunning,
	}

	assert.Equal(t, "Data Engineer", run.JobTitle)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Nil(t, run.CompletedAt)
}

func TestRunDest_MatchesColumns(t *testing.T) {
	var run Run
	// one destination per selected column
	assert.Len(t, runDest(&run), 12)
}
