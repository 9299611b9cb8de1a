// Package types provides type definitions for structured data used throughout the job pricer.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"strings"
)

// FactorRange is an inclusive [min,max] point range for one evaluation factor.
type FactorRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Midpoint returns the integer midpoint of the range, rounded down.
func (r FactorRange) Midpoint() int {
	return (r.Min + r.Max) / 2
}

// FactorRanges holds the five evaluation factor ranges of a reference job.
type FactorRanges struct {
	Impact        FactorRange `json:"impact" yaml:"impact"`
	Communication FactorRange `json:"communication" yaml:"communication"`
	Innovation    FactorRange `json:"innovation" yaml:"innovation"`
	Knowledge     FactorRange `json:"knowledge" yaml:"knowledge"`
	Risk          FactorRange `json:"risk" yaml:"risk"`
}

// Midpoints collapses each range to its midpoint.
func (f FactorRanges) Midpoints() FactorPoints {
	return FactorPoints{
		Impact:        f.Impact.Midpoint(),
		Communication: f.Communication.Midpoint(),
		Innovation:    f.Innovation.Midpoint(),
		Knowledge:     f.Knowledge.Midpoint(),
		Risk:          f.Risk.Midpoint(),
	}
}

// ReferenceJobRecord is a canonical job in the reference taxonomy. Read-only to the engine.
type ReferenceJobRecord struct {
	JobCode       string       `json:"job_code"`
	Title         string       `json:"title"`
	Description   string       `json:"description,omitempty"`
	Family        string       `json:"family"`
	Subfamily     string       `json:"subfamily"`
	CareerLevel   string       `json:"career_level"`
	PositionClass int          `json:"position_class"`
	Factors       FactorRanges `json:"factors"`
	Skills        []string     `json:"skills,omitempty"`
	Embedding     []float32    `json:"embedding,omitempty"`
}

// JobCode is a parsed hierarchical job code: family.subfamily.sequence.level.
type JobCode struct {
	Family    string
	Subfamily string
	Sequence  string
	Level     string
}

// String reassembles the dotted form.
func (c JobCode) String() string {
	return strings.Join([]string{c.Family, c.Subfamily, c.Sequence, c.Level}, ".")
}

// ParseJobCode splits a code into its four segments.
func ParseJobCode(code string) (JobCode, error) {
	parts := strings.Split(strings.TrimSpace(code), ".")
	if len(parts) != 4 {
		return JobCode{}, fmt.Errorf("job code %q: expected 4 segments, got %d", code, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return JobCode{}, fmt.Errorf("job code %q: segment %d is empty", code, i+1)
		}
	}
	return JobCode{
		Family:    parts[0],
		Subfamily: parts[1],
		Sequence:  parts[2],
		Level:     parts[3],
	}, nil
}
