// Package validation scores retrieved reference jobs against the request's declared family,
// grade and skills, and drops candidates that fail the mandatory checks.
package validation

import (
	"errors"
	"sort"
	"strings"

	"github.com/jonathan/job-pricer/internal/skills"
	"github.com/jonathan/job-pricer/internal/types"
)

// ErrNoCandidatesAfterValidation is returned when every candidate was dropped.
var ErrNoCandidatesAfterValidation = errors.New("no candidates after validation")

// Score weights and the minimum score a candidate needs to survive.
const (
	FamilyWeight = 0.2
	LevelWeight  = 0.1
	SkillWeight  = 0.2
	MinScore     = 0.2

	scoreEpsilon = 1e-9
)

// gradeLevels maps an internal grade to the career levels it may be matched to.
var gradeLevels = map[string][]string{
	"G1":  {"S1", "S2", "P1"},
	"G2":  {"S2", "S3", "P1"},
	"G3":  {"P1", "P2"},
	"G4":  {"P2", "P3"},
	"G5":  {"P3", "P4", "M1"},
	"G6":  {"P4", "P5", "M2"},
	"G7":  {"P5", "P6", "M3"},
	"G8":  {"M3", "M4", "E1"},
	"G9":  {"M4", "M5", "E2"},
	"G10": {"E2", "E3", "E4"},
}

// LevelsForGrade returns the career levels mapped from grade, or nil for an unknown grade.
func LevelsForGrade(grade string) []string {
	return gradeLevels[strings.ToUpper(strings.TrimSpace(grade))]
}

// Validator scores candidates. It holds no mutable state and is safe for concurrent use.
type Validator struct {
	lexicon []string
}

// New creates a Validator that recognizes lexicon skills in candidate descriptions.
// A nil lexicon uses skills.DefaultLexicon.
func New(lexicon []string) *Validator {
	if lexicon == nil {
		lexicon = skills.DefaultLexicon
	}
	return &Validator{lexicon: lexicon}
}

// Validate scores and filters candidates for req. Candidates must arrive in similarity order;
// the output is ordered by validation score with ties kept in that order. The input slice is
// not modified. An empty input yields an empty output and no error.
func (v *Validator) Validate(req *types.JobRequest, candidates []types.MatchCandidate) ([]types.MatchCandidate, error) {
	out := make([]types.MatchCandidate, 0, len(candidates))
	if len(candidates) == 0 {
		return out, nil
	}

	family := strings.TrimSpace(req.JobFamily)
	levels := LevelsForGrade(req.InternalGrade)
	vocabulary := append(append([]string{}, v.lexicon...), req.Skills...)

	for _, c := range candidates {
		if c.Record == nil {
			continue
		}
		scored := c

		score := 0.0
		if family != "" {
			if !strings.EqualFold(strings.TrimSpace(c.Record.Family), family) {
				continue
			}
			scored.FamilyMatch = true
			score += FamilyWeight
		}

		if containsFold(levels, c.Record.CareerLevel) {
			scored.LevelMatch = true
			score += LevelWeight
		}

		scored.SkillOverlap = skills.Jaccard(req.Skills, CandidateSkills(c.Record, vocabulary))
		score += SkillWeight * scored.SkillOverlap

		if score+scoreEpsilon < MinScore {
			continue
		}
		scored.ValidationScore = score
		out = append(out, scored)
	}

	if len(out) == 0 {
		return out, ErrNoCandidatesAfterValidation
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ValidationScore > out[j].ValidationScore
	})
	return out, nil
}

// CandidateSkills returns the record's explicit skills plus vocabulary skills found in its description.
func CandidateSkills(record *types.ReferenceJobRecord, vocabulary []string) []string {
	found := skills.Extract(record.Description, vocabulary)
	return skills.NormalizeAll(append(found, record.Skills...))
}

func containsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
