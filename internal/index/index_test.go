package index

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonathan/job-pricer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(code, family string, emb ...float32) types.ReferenceJobRecord {
	return types.ReferenceJobRecord{
		JobCode:   code,
		Title:     code + " title",
		Family:    family,
		Embedding: emb,
	}
}

func fixture() []types.ReferenceJobRecord {
	return []types.ReferenceJobRecord{
		record("ENG.DATA.01.P3", "Engineering", 1, 0),
		record("ENG.DATA.01.P4", "Engineering", 0.8, 0.6),
		record("FIN.ACCT.01.P3", "Finance", 1, 0.01),
		record("ENG.SWE.01.P3", "Engineering", 0, 1),
		record("ENG.SWE.01.P2", "engineering", 1, 0),
		record("ENG.OLD.01.P1", "Engineering", 1, 0, 0),
		record("ENG.NOV.01.P1", "Engineering"),
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 0}))
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
	assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
}

func TestMemoryIndex_SearchOrderingAndTieBreak(t *testing.T) {
	idx := NewMemoryIndex(fixture(), nil)

	got, err := idx.Search(context.Background(), []float32{1, 0}, "", 10)
	require.NoError(t, err)

	codes := make([]string, len(got))
	for i, c := range got {
		codes[i] = c.JobCode
	}
	// Equal similarity resolves by ascending job code; mismatched dimensions and missing embeddings are skipped.
	assert.Equal(t, []string{"ENG.DATA.01.P3", "ENG.SWE.01.P2", "FIN.ACCT.01.P3", "ENG.DATA.01.P4", "ENG.SWE.01.P3"}, codes)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Similarity, got[i].Similarity)
	}
	require.NotNil(t, got[0].Record)
	assert.Equal(t, "Engineering", got[0].Record.Family)
}

func TestMemoryIndex_FamilyFilterIsCaseInsensitive(t *testing.T) {
	idx := NewMemoryIndex(fixture(), nil)

	got, err := idx.Search(context.Background(), []float32{1, 0}, "ENGINEERING", 10)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, c := range got {
		assert.True(t, FamilyMatches(c.Record.Family, "engineering"), c.JobCode)
	}

	got, err = idx.Search(context.Background(), []float32{1, 0}, "Legal", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryIndex_Truncates(t *testing.T) {
	idx := NewMemoryIndex(fixture(), nil)

	got, err := idx.Search(context.Background(), []float32{1, 0}, "", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = idx.Search(context.Background(), []float32{1, 0}, "", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryIndex_Errors(t *testing.T) {
	idx := NewMemoryIndex(fixture(), nil)

	_, err := idx.Search(context.Background(), nil, "", 5)
	assert.ErrorIs(t, err, ErrIndexUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = idx.Search(ctx, []float32{1, 0}, "", 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryIndex_GetReferenceJobs(t *testing.T) {
	idx := NewMemoryIndex(fixture(), nil)
	got, err := idx.GetReferenceJobs(context.Background(), []string{"FIN.ACCT.01.P3", "NOPE.X.Y.Z"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Finance", got[0].Family)
	assert.Equal(t, 7, idx.Len())
}

type failingSource struct{}

func (failingSource) ListReferenceJobs(context.Context) ([]types.ReferenceJobRecord, error) {
	return nil, errors.New("connection refused")
}

func TestNewMemoryIndexFromSource(t *testing.T) {
	idx, err := NewMemoryIndexFromSource(context.Background(), NewMemoryIndex(fixture(), nil), nil)
	require.NoError(t, err)
	assert.Equal(t, 7, idx.Len())

	_, err = NewMemoryIndexFromSource(context.Background(), failingSource{}, nil)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestLoadRecordsFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "jobs.json")
	require.NoError(t, os.WriteFile(good, []byte(`[
		{"job_code": "ENG.DATA.01.P3", "title": "Data Engineer III", "family": "Engineering",
		 "subfamily": "Data", "career_level": "P3", "position_class": 52,
		 "factors": {"impact": {"min": 10, "max": 14}}, "embedding": [0.1, 0.2]}
	]`), 0o644))

	records, err := LoadRecordsFile(good)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 12, records[0].Factors.Impact.Midpoint())
	assert.Equal(t, []float32{0.1, 0.2}, records[0].Embedding)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"job_code": "ENG-DATA"}]`), 0o644))
	_, err = LoadRecordsFile(bad)
	assert.Error(t, err)

	_, err = LoadRecordsFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

type mockSearcher struct {
	candidates []types.MatchCandidate
	err        error
}

func (m *mockSearcher) SearchReferenceJobs(context.Context, []float32, string, int) ([]types.MatchCandidate, error) {
	return m.candidates, m.err
}

func TestPostgresIndex(t *testing.T) {
	idx := NewPostgresIndex(&mockSearcher{candidates: []types.MatchCandidate{
		{JobCode: "B", Similarity: 0.9},
		{JobCode: "A", Similarity: 0.9},
		{JobCode: "C", Similarity: 0.95},
	}})
	got, err := idx.Search(context.Background(), []float32{1}, "", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "C", got[0].JobCode)
	assert.Equal(t, "A", got[1].JobCode)

	idx = NewPostgresIndex(&mockSearcher{err: errors.New("timeout")})
	_, err = idx.Search(context.Background(), []float32{1}, "", 2)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}
