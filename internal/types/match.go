// Package types provides type definitions for structured data used throughout the job pricer.
//
//nolint:revive // types is a standard Go package name pattern
package types

// MatchCandidate is a reference job retrieved for a request, with its scores.
type MatchCandidate struct {
	JobCode         string              `json:"job_code"`
	Title           string              `json:"title"`
	Similarity      float64             `json:"similarity"`
	ValidationScore float64             `json:"validation_score"`
	FamilyMatch     bool                `json:"family_match"`
	LevelMatch      bool                `json:"level_match"`
	SkillOverlap    float64             `json:"skill_overlap"`
	Record          *ReferenceJobRecord `json:"-"`
}

// MatchingMethod identifies how the selected job was chosen.
type MatchingMethod string

// MatchingMethod values
const (
	MethodEmbeddingOnly MatchingMethod = "embedding_only"
	MethodHybridLLM     MatchingMethod = "hybrid_llm"
)

// ConfidenceTier is a coarse bucket over the fused confidence score.
type ConfidenceTier string

// ConfidenceTier values
const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
)

// Tier thresholds
const (
	HighConfidenceThreshold   = 0.80
	MediumConfidenceThreshold = 0.60
)

// TierFor maps a fused confidence score to its tier.
func TierFor(score float64) ConfidenceTier {
	switch {
	case score >= HighConfidenceThreshold:
		return TierHigh
	case score >= MediumConfidenceThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// MatchResult is the outcome of matching a request to the reference taxonomy.
type MatchResult struct {
	JobCode              string              `json:"job_code,omitempty"`
	Title                string              `json:"title,omitempty"`
	Confidence           float64             `json:"confidence"`
	Tier                 ConfidenceTier      `json:"confidence_tier"`
	RequiresManualReview bool                `json:"requires_manual_review"`
	Reasoning            string              `json:"reasoning,omitempty"`
	Similarities         []string            `json:"similarities"`
	Differences          []string            `json:"differences"`
	MatchingMethod       MatchingMethod      `json:"matching_method"`
	SemanticSimilarity   float64             `json:"semantic_similarity"`
	ValidationScore      float64             `json:"validation_score"`
	ReasoningConfidence  *float64            `json:"reasoning_confidence,omitempty"`
	FallbackReason       string              `json:"fallback_reason,omitempty"`
	Record               *ReferenceJobRecord `json:"-"`
}

// SetConfidence sets the score together with the fields derived from it, so the tier and
// review flag can never disagree with the score.
func (m *MatchResult) SetConfidence(score float64) {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	m.Confidence = score
	m.Tier = TierFor(score)
	m.RequiresManualReview = m.Tier == TierLow
}

// Matched reports whether a reference job was selected.
func (m *MatchResult) Matched() bool {
	return m != nil && m.JobCode != ""
}

// NoMatch returns the degraded result used when no candidate can be selected.
func NoMatch(reason string) MatchResult {
	m := MatchResult{
		MatchingMethod: MethodEmbeddingOnly,
		FallbackReason: reason,
		Similarities:   []string{},
		Differences:    []string{},
	}
	m.SetConfidence(0)
	return m
}
