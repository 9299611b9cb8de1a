// Package types provides type definitions for structured data used throughout the job pricer.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// DefaultFactorKey is the sentinel entry used when a lookup key is not in a factor table.
const DefaultFactorKey = "default"

// DefaultSkillPremiumCap bounds the aggregate skill premium when a snapshot does not set one.
const DefaultSkillPremiumCap = 0.20

// SalaryBand is a base salary range for an experience bracket. MinYears is inclusive and
// MaxYears exclusive; a nil MaxYears marks the final, unbounded bracket.
type SalaryBand struct {
	MinYears float64  `json:"min_years" yaml:"min_years"`
	MaxYears *float64 `json:"max_years,omitempty" yaml:"max_years,omitempty"`
	Min      float64  `json:"min" yaml:"min"`
	Max      float64  `json:"max" yaml:"max"`
	Currency string   `json:"currency" yaml:"currency"`
}

// Contains reports whether years falls inside the bracket.
func (b SalaryBand) Contains(years float64) bool {
	if years < b.MinYears {
		return false
	}
	return b.MaxYears == nil || years < *b.MaxYears
}

// PricingParameters is one versioned, effective-dated snapshot of pricing tables.
// A single pricing call reads exactly one snapshot.
type PricingParameters struct {
	Version            string             `json:"version" yaml:"version"`
	EffectiveFrom      time.Time          `json:"effective_from" yaml:"effective_from"`
	SalaryBands        []SalaryBand       `json:"salary_bands" yaml:"salary_bands"`
	IndustryFactors    map[string]float64 `json:"industry_factors" yaml:"industry_factors"`
	CompanySizeFactors map[string]float64 `json:"company_size_factors" yaml:"company_size_factors"`
	SkillPremiums      map[string]float64 `json:"skill_premiums" yaml:"skill_premiums"`
	SkillPremiumCap    *float64           `json:"skill_premium_cap,omitempty" yaml:"skill_premium_cap,omitempty"`
}

// PremiumCap returns the configured cap or DefaultSkillPremiumCap.
func (p *PricingParameters) PremiumCap() float64 {
	if p.SkillPremiumCap == nil {
		return DefaultSkillPremiumCap
	}
	return *p.SkillPremiumCap
}
