package validation

import (
	"strings"
	"testing"

	"github.com/jonathan/job-pricer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(code, family, level, description string, similarity float64, explicit ...string) types.MatchCandidate {
	return types.MatchCandidate{
		JobCode:    code,
		Title:      code,
		Similarity: similarity,
		Record: &types.ReferenceJobRecord{
			JobCode:     code,
			Family:      family,
			CareerLevel: level,
			Description: description,
			Skills:      explicit,
		},
	}
}

func request(family, grade string, skills ...string) *types.JobRequest {
	return &types.JobRequest{
		Title:         "Data Engineer",
		Description:   "Builds batch and streaming pipelines",
		JobFamily:     family,
		InternalGrade: grade,
		Skills:        skills,
		Country:       "US",
	}
}

func codes(cs []types.MatchCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.JobCode
	}
	return out
}

func TestValidate_FamilyIsAHardFilter(t *testing.T) {
	v := New(nil)
	in := []types.MatchCandidate{
		candidate("FIN.ACCT.01.P3", "Finance", "P3", "Python reporting", 0.95),
		candidate("ENG.DATA.01.P3", "Engineering", "P3", "Python and Spark pipelines", 0.90),
		candidate("ENG.DATA.01.P4", "engineering", "P4", "Spark", 0.85),
	}

	out, err := v.Validate(request("Engineering", "", "python"), in)
	require.NoError(t, err)
	for _, c := range out {
		assert.True(t, strings.EqualFold(c.Record.Family, "Engineering"), c.JobCode)
		assert.True(t, c.FamilyMatch)
	}
	assert.NotContains(t, codes(out), "FIN.ACCT.01.P3")
}

func TestValidate_Scoring(t *testing.T) {
	v := New(nil)
	in := []types.MatchCandidate{
		candidate("ENG.DATA.01.P4", "Engineering", "P4", "Owns Python and SQL pipelines", 0.91),
		candidate("ENG.DATA.01.P3", "Engineering", "P3", "Python, SQL and Spark pipelines", 0.90, "airflow"),
	}

	out, err := v.Validate(request("Engineering", "G4", "Python", "SQL", "Spark"), in)
	require.NoError(t, err)
	require.Len(t, out, 2)

	// P3 is in the G4 band and matches all three request skills out of {airflow, python, spark, sql}.
	assert.Equal(t, "ENG.DATA.01.P3", out[0].JobCode)
	assert.True(t, out[0].LevelMatch)
	assert.InDelta(t, 0.75, out[0].SkillOverlap, 1e-9)
	assert.InDelta(t, 0.2+0.1+0.2*0.75, out[0].ValidationScore, 1e-9)

	assert.Equal(t, "ENG.DATA.01.P4", out[1].JobCode)
	assert.False(t, out[1].LevelMatch)
	assert.InDelta(t, 2.0/3.0, out[1].SkillOverlap, 1e-9)
}

func TestValidate_TiesKeepSimilarityOrder(t *testing.T) {
	v := New(nil)
	in := []types.MatchCandidate{
		candidate("ENG.B.01.P3", "Engineering", "P3", "", 0.9),
		candidate("ENG.A.01.P3", "Engineering", "P3", "", 0.8),
		candidate("ENG.C.01.P3", "Engineering", "P3", "", 0.7),
	}
	out, err := v.Validate(request("Engineering", ""), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"ENG.B.01.P3", "ENG.A.01.P3", "ENG.C.01.P3"}, codes(out))
}

func TestValidate_DropsBelowMinimum(t *testing.T) {
	v := New(nil)
	in := []types.MatchCandidate{
		candidate("ENG.DATA.01.P3", "Engineering", "P3", "Python pipelines", 0.9),
		candidate("ENG.DATA.01.P5", "Engineering", "P5", "Nothing relevant", 0.8),
	}

	// No declared family: only the grade and skill signals can reach the minimum.
	out, err := v.Validate(request("", "G4", "python"), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"ENG.DATA.01.P3"}, codes(out))
	assert.False(t, out[0].FamilyMatch)
	assert.InDelta(t, 0.1+0.2, out[0].ValidationScore, 1e-9)
}

func TestValidate_AllDropped(t *testing.T) {
	v := New(nil)
	in := []types.MatchCandidate{
		candidate("FIN.ACCT.01.P3", "Finance", "P3", "", 0.9),
	}
	out, err := v.Validate(request("Engineering", ""), in)
	assert.ErrorIs(t, err, ErrNoCandidatesAfterValidation)
	assert.Empty(t, out)
}

func TestValidate_EmptyInput(t *testing.T) {
	out, err := New(nil).Validate(request("Engineering", ""), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestValidate_DeterministicAndPure(t *testing.T) {
	v := New(nil)
	in := []types.MatchCandidate{
		candidate("ENG.DATA.01.P4", "Engineering", "P4", "Python", 0.91),
		candidate("ENG.DATA.01.P3", "Engineering", "P3", "Python, SQL", 0.90),
	}
	req := request("Engineering", "G4", "python", "sql")

	first, err := v.Validate(req, in)
	require.NoError(t, err)
	second, err := v.Validate(req, in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 0.0, in[0].ValidationScore, "input must not be modified")
	assert.Equal(t, "ENG.DATA.01.P4", in[0].JobCode)
}

func TestLevelsForGrade(t *testing.T) {
	assert.Equal(t, []string{"P2", "P3"}, LevelsForGrade(" g4 "))
	assert.Nil(t, LevelsForGrade("G11"))
	assert.Nil(t, LevelsForGrade(""))
}
