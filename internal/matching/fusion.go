package matching

import (
	"github.com/jonathan/job-pricer/internal/types"
)

// Fused confidence weights.
const (
	SimilarityWeight = 0.4
	ValidationWeight = 0.2
	FamilyWeight     = 0.2
	ReasoningWeight  = 0.2
)

// FusedConfidence combines the selection signals so that no single signal can lift the score
// past 0.8 alone. Every input and the result are clamped to [0,1].
func FusedConfidence(similarity, validation float64, familyMatch bool, reasoning float64) float64 {
	family := 0.0
	if familyMatch {
		family = 1.0
	}
	fused := SimilarityWeight*clamp01(similarity) +
		ValidationWeight*clamp01(validation) +
		FamilyWeight*family +
		ReasoningWeight*clamp01(reasoning)
	return clamp01(fused)
}

// EmbeddingOnly selects the candidate with the highest raw similarity (ties by job code) and
// uses that similarity as the confidence. An empty list yields a no-match result.
func EmbeddingOnly(candidates []types.MatchCandidate, reason string) types.MatchResult {
	if len(candidates) == 0 {
		return types.NoMatch(reason)
	}

	best := 0
	for i := 1; i < len(candidates); i++ {
		c, b := candidates[i], candidates[best]
		if c.Similarity > b.Similarity || (c.Similarity == b.Similarity && c.JobCode < b.JobCode) {
			best = i
		}
	}
	top := candidates[best]

	result := types.MatchResult{
		JobCode:            top.JobCode,
		Title:              top.Title,
		Similarities:       []string{},
		Differences:        []string{},
		MatchingMethod:     types.MethodEmbeddingOnly,
		SemanticSimilarity: top.Similarity,
		ValidationScore:    top.ValidationScore,
		FallbackReason:     reason,
		Record:             top.Record,
	}
	result.SetConfidence(top.Similarity)
	return result
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
