// Package types provides type definitions for structured data used throughout the job pricer.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// BenchmarkCut identifies the granularity a benchmark was aggregated at.
type BenchmarkCut string

// BenchmarkCut values, in resolution priority order.
const (
	CutByJob            BenchmarkCut = "by_job"
	CutByFamilyLevel    BenchmarkCut = "by_family_level"
	CutByFamilyClass    BenchmarkCut = "by_family_class"
	CutBySubfamilyLevel BenchmarkCut = "by_subfamily_level"
	CutBySubfamilyClass BenchmarkCut = "by_subfamily_class"
	CutBlended          BenchmarkCut = "blended"
)

// Percentiles are the compensation distribution points of a benchmark.
type Percentiles struct {
	P10 float64 `json:"p10" yaml:"p10"`
	P25 float64 `json:"p25" yaml:"p25"`
	P50 float64 `json:"p50" yaml:"p50"`
	P75 float64 `json:"p75" yaml:"p75"`
	P90 float64 `json:"p90" yaml:"p90"`
}

// MarketBenchmarkRecord is one survey data point. Key is the job code for by-job records and
// the cut's composite key (e.g. "ENG|P3") for aggregate cuts.
type MarketBenchmarkRecord struct {
	Key         string       `json:"key" yaml:"key"`
	Cut         BenchmarkCut `json:"cut" yaml:"cut"`
	Country     string       `json:"country" yaml:"country"`
	Currency    string       `json:"currency" yaml:"currency"`
	Percentiles Percentiles  `json:"percentiles" yaml:"percentiles"`
	SampleSize  int          `json:"sample_size" yaml:"sample_size"`
	SurveyDate  time.Time    `json:"survey_date" yaml:"survey_date"`
}

// MarketBenchmark is the resolved benchmark reported for a matched job.
type MarketBenchmark struct {
	Cut                 BenchmarkCut   `json:"cut"`
	Key                 string         `json:"key,omitempty"`
	Country             string         `json:"country"`
	Currency            string         `json:"currency"`
	Percentiles         Percentiles    `json:"percentiles"`
	SampleSize          int            `json:"sample_size"`
	SurveyDate          time.Time      `json:"survey_date"`
	LowSampleConfidence bool           `json:"low_sample_confidence"`
	SourceCuts          []BenchmarkCut `json:"source_cuts"`
}
