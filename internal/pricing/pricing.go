// Package pricing applies the salary band, industry, company size and skill premium steps
// that turn an experience level into a final compensation range.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jonathan/job-pricer/internal/skills"
	"github.com/jonathan/job-pricer/internal/types"
)

var (
	// ErrNoParameters is returned when no parameter snapshot was supplied.
	ErrNoParameters = errors.New("no pricing parameters")
	// ErrNoSalaryBand is returned when no experience bracket contains the input.
	ErrNoSalaryBand = errors.New("no salary band for experience")
)

// Input is what the pipeline prices.
type Input struct {
	ExperienceYears float64
	Industry        string
	CompanySize     string
	Skills          []string
}

// Result is the priced range with every intermediate step.
type Result struct {
	Base          types.SalaryRange
	Adjustments   []types.Adjustment
	Premium       float64
	PremiumCapped bool
	MatchedSkills []string
	Final         types.SalaryRange
	Midpoint      float64
}

// Price runs the pipeline: base band, industry factor, company size factor, then the capped
// skill premium added as bound × premium. Amounts are rounded to cents after each step.
func Price(params *types.PricingParameters, in Input) (*Result, error) {
	if params == nil {
		return nil, ErrNoParameters
	}

	band, err := SelectBand(params.SalaryBands, in.ExperienceYears)
	if err != nil {
		return nil, err
	}

	running := types.SalaryRange{Min: roundCents(band.Min), Max: roundCents(band.Max), Currency: band.Currency}
	res := &Result{Base: running, Adjustments: make([]types.Adjustment, 0, 3)}

	industryKey, industryFactor := Factor(params.IndustryFactors, in.Industry)
	running = scale(running, industryFactor)
	res.Adjustments = append(res.Adjustments, types.Adjustment{
		Name: types.AdjustmentIndustry, Key: industryKey, Factor: industryFactor, Running: running,
	})

	sizeKey, sizeFactor := Factor(params.CompanySizeFactors, in.CompanySize)
	running = scale(running, sizeFactor)
	res.Adjustments = append(res.Adjustments, types.Adjustment{
		Name: types.AdjustmentCompanySize, Key: sizeKey, Factor: sizeFactor, Running: running,
	})

	premium, matched, capped := SkillPremium(params.SkillPremiums, in.Skills, params.PremiumCap())
	running = types.SalaryRange{
		Min:      roundCents(running.Min + running.Min*premium),
		Max:      roundCents(running.Max + running.Max*premium),
		Currency: running.Currency,
	}
	res.Adjustments = append(res.Adjustments, types.Adjustment{
		Name: types.AdjustmentSkillPremium, Key: strings.Join(matched, ","), Factor: premium, Running: running,
	})

	res.Premium = premium
	res.PremiumCapped = capped
	res.MatchedSkills = matched
	res.Final = running
	res.Midpoint = roundCents(running.Midpoint())
	return res, nil
}

// SelectBand returns the bracket containing years. Lower bounds are inclusive, upper bounds
// exclusive, and a nil upper bound is open.
func SelectBand(bands []types.SalaryBand, years float64) (types.SalaryBand, error) {
	if years < 0 || math.IsNaN(years) {
		return types.SalaryBand{}, fmt.Errorf("%w: %v years", ErrNoSalaryBand, years)
	}
	for _, b := range bands {
		if b.Contains(years) {
			return b, nil
		}
	}
	return types.SalaryBand{}, fmt.Errorf("%w: %v years", ErrNoSalaryBand, years)
}

// Factor looks key up in table, falling back to the "default" entry and then to 1.0. It
// returns the table key that supplied the factor.
func Factor(table map[string]float64, key string) (string, float64) {
	key = strings.TrimSpace(key)
	if key != "" {
		if f, ok := table[key]; ok {
			return key, f
		}
		names := make([]string, 0, len(table))
		for k := range table {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			if k != types.DefaultFactorKey && strings.EqualFold(k, key) {
				return k, table[k]
			}
		}
	}
	if f, ok := table[types.DefaultFactorKey]; ok {
		return types.DefaultFactorKey, f
	}
	return types.DefaultFactorKey, 1.0
}

// SkillPremium sums the premiums of requested skills found in table, after normalization and
// deduplication, and caps the aggregate. It returns the applied premium, the matched skills in
// sorted order and whether the cap was hit.
func SkillPremium(table map[string]float64, requested []string, ceiling float64) (float64, []string, bool) {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Keys that normalize to the same skill keep the first in sorted order.
	normalized := make(map[string]float64, len(table))
	for _, k := range keys {
		n := skills.Normalize(k)
		if _, seen := normalized[n]; !seen {
			normalized[n] = table[k]
		}
	}

	matched := []string{}
	var total float64
	for _, s := range skills.NormalizeAll(requested) {
		if p, ok := normalized[s]; ok {
			matched = append(matched, s)
			total += p
		}
	}

	if ceiling < 0 {
		ceiling = 0
	}
	if total > ceiling {
		return ceiling, matched, true
	}
	return total, matched, false
}

func scale(r types.SalaryRange, factor float64) types.SalaryRange {
	return types.SalaryRange{
		Min:      roundCents(r.Min * factor),
		Max:      roundCents(r.Max * factor),
		Currency: r.Currency,
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
