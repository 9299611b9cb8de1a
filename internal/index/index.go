// Package index retrieves the reference jobs nearest to a request embedding.
package index

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/jonathan/job-pricer/internal/types"
)

// ErrIndexUnavailable wraps every backend failure during search.
var ErrIndexUnavailable = errors.New("reference job index unavailable")

// Index returns up to k candidates ordered by descending similarity, ties broken by job code.
// An empty family disables the family predicate.
type Index interface {
	Search(ctx context.Context, vector []float32, family string, k int) ([]types.MatchCandidate, error)
}

// RecordSource resolves full reference records by job code.
type RecordSource interface {
	GetReferenceJobs(ctx context.Context, codes []string) ([]types.ReferenceJobRecord, error)
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when either is a
// zero vector or the dimensions differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Normalize returns a unit-length copy of v. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	n := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// FamilyMatches reports whether a record belongs to family, compared case-insensitively.
func FamilyMatches(recordFamily, family string) bool {
	if strings.TrimSpace(family) == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(recordFamily), strings.TrimSpace(family))
}

// SortCandidates orders by similarity descending, then job code ascending, and truncates to k.
func SortCandidates(candidates []types.MatchCandidate, k int) []types.MatchCandidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].JobCode < candidates[j].JobCode
	})
	if k >= 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// Candidate builds a MatchCandidate for a record.
func Candidate(record types.ReferenceJobRecord, similarity float64) types.MatchCandidate {
	r := record
	return types.MatchCandidate{
		JobCode:    r.JobCode,
		Title:      r.Title,
		Similarity: similarity,
		Record:     &r,
	}
}
