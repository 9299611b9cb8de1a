package matching

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/jonathan/job-pricer/internal/llm"
	"github.com/jonathan/job-pricer/internal/schemas"
)

// Verdict is the reasoning collaborator's structured selection.
type Verdict struct {
	SelectedIndex int      `json:"selected_index"`
	Confidence    float64  `json:"confidence"`
	Reasoning     string   `json:"reasoning"`
	Similarities  []string `json:"similarities"`
	Differences   []string `json:"differences"`
}

// rawVerdict accepts the index as any JSON number so "1.0" is handled like "1".
type rawVerdict struct {
	SelectedIndex float64  `json:"selected_index"`
	Confidence    float64  `json:"confidence"`
	Reasoning     string   `json:"reasoning"`
	Similarities  []string `json:"similarities"`
	Differences   []string `json:"differences"`
}

// ParseVerdict validates a raw model response against the verdict schema and checks that the
// 0-based index addresses one of n candidates.
func ParseVerdict(raw string, n int) (*Verdict, error) {
	body := llm.ExtractJSONObject(llm.CleanJSONBlock(raw))

	if err := schemas.Validate(schemas.MatchVerdict, body); err != nil {
		return nil, &ParseError{Message: "response does not match verdict schema", Raw: raw, Cause: err}
	}

	var rv rawVerdict
	if err := json.Unmarshal([]byte(body), &rv); err != nil {
		return nil, &ParseError{Message: "invalid JSON", Raw: raw, Cause: err}
	}

	if rv.SelectedIndex != math.Trunc(rv.SelectedIndex) {
		return nil, &ParseError{Message: fmt.Sprintf("selected_index %v is not an integer", rv.SelectedIndex), Raw: raw}
	}
	idx := int(rv.SelectedIndex)
	if idx < 0 || idx >= n {
		return nil, &ParseError{Message: fmt.Sprintf("selected_index %d out of range [0,%d)", idx, n), Raw: raw}
	}

	v := &Verdict{
		SelectedIndex: idx,
		Confidence:    rv.Confidence,
		Reasoning:     rv.Reasoning,
		Similarities:  rv.Similarities,
		Differences:   rv.Differences,
	}
	if v.Similarities == nil {
		v.Similarities = []string{}
	}
	if v.Differences == nil {
		v.Differences = []string{}
	}
	return v, nil
}
