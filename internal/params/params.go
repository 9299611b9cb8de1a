// Package params loads versioned, effective-dated pricing parameter snapshots and serves the
// snapshot in force at a given time.
package params

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jonathan/job-pricer/internal/skills"
	"github.com/jonathan/job-pricer/internal/types"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidParameters is returned for snapshots that fail validation.
	ErrInvalidParameters = errors.New("invalid pricing parameters")
	// ErrNoSnapshot is returned when no snapshot is effective at the requested time.
	ErrNoSnapshot = errors.New("no effective pricing parameters")
)

// LoadFile reads every YAML document in path as one snapshot and validates each.
func LoadFile(path string) ([]types.PricingParameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters file: %w", err)
	}
	snapshots, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snapshots, nil
}

// Parse decodes a multi-document YAML stream of snapshots.
func Parse(data []byte) ([]types.PricingParameters, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var snapshots []types.PricingParameters
	for {
		var p types.PricingParameters
		err := dec.Decode(&p)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse parameters: %w", err)
		}
		if err := Validate(&p); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, p)
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("%w: no snapshots", ErrInvalidParameters)
	}

	seen := make(map[string]struct{}, len(snapshots))
	for _, s := range snapshots {
		if _, ok := seen[s.Version]; ok {
			return nil, fmt.Errorf("%w: duplicate version %q", ErrInvalidParameters, s.Version)
		}
		seen[s.Version] = struct{}{}
	}
	return snapshots, nil
}

// Validate checks a snapshot: contiguous sorted brackets with only the last unbounded,
// "default" factor entries, positive factors, non-negative premiums and a cap in [0,1].
func Validate(p *types.PricingParameters) error {
	if p == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidParameters)
	}

	var problems []string
	if strings.TrimSpace(p.Version) == "" {
		problems = append(problems, "version is required")
	}
	if p.EffectiveFrom.IsZero() {
		problems = append(problems, "effective_from is required")
	}
	problems = append(problems, validateBands(p.SalaryBands)...)
	problems = append(problems, validateFactors("industry_factors", p.IndustryFactors)...)
	problems = append(problems, validateFactors("company_size_factors", p.CompanySizeFactors)...)

	premiums := make([]string, 0, len(p.SkillPremiums))
	for k := range p.SkillPremiums {
		premiums = append(premiums, k)
	}
	sort.Strings(premiums)
	seen := make(map[string]string, len(premiums))
	for _, k := range premiums {
		if v := p.SkillPremiums[k]; v < 0 || v > 1 {
			problems = append(problems, fmt.Sprintf("skill_premiums[%s] must be in [0,1], got %v", k, v))
		}
		n := skills.Normalize(k)
		if prev, ok := seen[n]; ok {
			problems = append(problems, fmt.Sprintf("skill_premiums[%s] and skill_premiums[%s] both name skill %q", prev, k, n))
			continue
		}
		seen[n] = k
	}
	if p.SkillPremiumCap != nil && (*p.SkillPremiumCap < 0 || *p.SkillPremiumCap > 1) {
		problems = append(problems, fmt.Sprintf("skill_premium_cap must be in [0,1], got %v", *p.SkillPremiumCap))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: version %q: %s", ErrInvalidParameters, p.Version, strings.Join(problems, "; "))
	}
	return nil
}

func validateBands(bands []types.SalaryBand) []string {
	if len(bands) == 0 {
		return []string{"at least one salary band is required"}
	}

	var problems []string
	if bands[0].MinYears != 0 {
		problems = append(problems, "first salary band must start at 0 years")
	}
	for i, b := range bands {
		if b.Min < 0 || b.Max < b.Min {
			problems = append(problems, fmt.Sprintf("salary_bands[%d]: need 0 <= min <= max", i))
		}
		last := i == len(bands)-1
		switch {
		case b.MaxYears == nil && !last:
			problems = append(problems, fmt.Sprintf("salary_bands[%d]: only the final band may be unbounded", i))
		case b.MaxYears != nil && last:
			problems = append(problems, "final salary band must be unbounded")
		case b.MaxYears != nil && *b.MaxYears <= b.MinYears:
			problems = append(problems, fmt.Sprintf("salary_bands[%d]: max_years must exceed min_years", i))
		}
		if !last && b.MaxYears != nil && *b.MaxYears != bands[i+1].MinYears {
			problems = append(problems, fmt.Sprintf("salary_bands[%d]: gap or overlap before next band", i))
		}
	}
	return problems
}

func validateFactors(name string, table map[string]float64) []string {
	var problems []string
	if _, ok := table[types.DefaultFactorKey]; !ok {
		problems = append(problems, fmt.Sprintf("%s must include %q", name, types.DefaultFactorKey))
	}
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if table[k] <= 0 {
			problems = append(problems, fmt.Sprintf("%s[%s] must be positive", name, k))
		}
	}
	return problems
}

// Clone returns a deep copy so a snapshot handed to a pricing call cannot change under it.
func Clone(p *types.PricingParameters) *types.PricingParameters {
	if p == nil {
		return nil
	}
	out := *p
	out.SalaryBands = make([]types.SalaryBand, len(p.SalaryBands))
	for i, b := range p.SalaryBands {
		if b.MaxYears != nil {
			m := *b.MaxYears
			b.MaxYears = &m
		}
		out.SalaryBands[i] = b
	}
	out.IndustryFactors = cloneMap(p.IndustryFactors)
	out.CompanySizeFactors = cloneMap(p.CompanySizeFactors)
	out.SkillPremiums = cloneMap(p.SkillPremiums)
	if p.SkillPremiumCap != nil {
		c := *p.SkillPremiumCap
		out.SkillPremiumCap = &c
	}
	return &out
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
