// Package types provides type definitions for structured data used throughout the job pricer.
//
//nolint:revive // types is a standard Go package name pattern
package types

// SalaryRange is a [min,max] compensation range.
type SalaryRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency,omitempty"`
}

// Midpoint returns the center of the range.
func (r SalaryRange) Midpoint() float64 {
	return (r.Min + r.Max) / 2
}

// Adjustment records one pricing step and the running range after it was applied.
type Adjustment struct {
	Name    string      `json:"name"`
	Key     string      `json:"key,omitempty"`
	Factor  float64     `json:"factor"`
	Running SalaryRange `json:"running"`
}

// Adjustment names, in application order.
const (
	AdjustmentIndustry     = "industry"
	AdjustmentCompanySize  = "company_size"
	AdjustmentSkillPremium = "skill_premium"
)

// PricingSource names a path that contributed numbers to a result.
type PricingSource string

// PricingSource values
const (
	SourceEvaluationBand PricingSource = "evaluation_band"
	SourceMarketData     PricingSource = "market_data"
)

// Provenance kinds for degraded paths.
const (
	DegradedInvalidParameters  = "invalid_parameters"
	DegradedEmbedding          = "embedding_unavailable"
	DegradedIndex              = "index_unavailable"
	DegradedNoCandidates       = "no_candidates_after_validation"
	DegradedNoMatch            = "no_match"
	DegradedReasoningDown      = "reasoning_unavailable"
	DegradedReasoningMalformed = "reasoning_malformed"
	DegradedNoMarketData       = "no_market_data"
	DegradedMarketStore        = "market_store_unavailable"
	DegradedLowSampleMarket    = "low_sample_market_data"
	DegradedEvaluation         = "evaluation_unavailable"
)

// ProvenanceEntry records a degraded path taken during a pricing call.
type ProvenanceEntry struct {
	Kind   string `json:"kind"`
	Stage  string `json:"stage"`
	Detail string `json:"detail,omitempty"`
}

// EvaluationSummary is the job-evaluation outcome used for internal banding.
type EvaluationSummary struct {
	Points           FactorPoints `json:"points"`
	TotalPoints      int          `json:"total_points"`
	PositionClass    int          `json:"position_class"`
	PointsSource     string       `json:"points_source"`
	OrganizationSize *float64     `json:"organization_size,omitempty"`
}

// Evaluation point sources
const (
	PointsFromRequest   = "request"
	PointsFromReference = "reference"
)

// PricingResult is the single recommendation returned by a pricing call. It carries no
// timestamps or generated identifiers, so identical inputs marshal to identical bytes.
type PricingResult struct {
	JobTitle             string             `json:"job_title"`
	Match                MatchResult        `json:"match"`
	Evaluation           *EvaluationSummary `json:"evaluation,omitempty"`
	BaseRange            SalaryRange        `json:"base_range"`
	Adjustments          []Adjustment       `json:"adjustments"`
	AppliedSkillPremium  float64            `json:"applied_skill_premium"`
	SkillPremiumCapped   bool               `json:"skill_premium_capped"`
	MatchedSkills        []string           `json:"matched_premium_skills"`
	FinalRange           SalaryRange        `json:"final_range"`
	Midpoint             float64            `json:"midpoint"`
	MarketBenchmark      *MarketBenchmark   `json:"market_benchmark,omitempty"`
	Confidence           float64            `json:"confidence"`
	ConfidenceTier       ConfidenceTier     `json:"confidence_tier"`
	RequiresManualReview bool               `json:"requires_manual_review"`
	Sources              []PricingSource    `json:"sources"`
	ParametersVersion    string             `json:"parameters_version"`
	Provenance           []ProvenanceEntry  `json:"provenance"`
}

// Degraded reports whether any fallback path was taken.
func (r *PricingResult) Degraded() bool {
	return len(r.Provenance) > 0
}

// HasProvenance reports whether a degraded path of the given kind was recorded.
func (r *PricingResult) HasProvenance(kind string) bool {
	for _, p := range r.Provenance {
		if p.Kind == kind {
			return true
		}
	}
	return false
}
