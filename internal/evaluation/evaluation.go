// Package evaluation implements point-based job evaluation: factor points to position class,
// and the organization size input used when scoring impact.
package evaluation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jonathan/job-pricer/internal/types"
)

// Banding constants. Totals from BaseTotal upward fall into BandWidth-point bands, the first of
// which is BaseClass.
const (
	BaseTotal = 26
	BandWidth = 25
	BaseClass = 40
)

var (
	// ErrInvalidPoints is returned for negative factor points.
	ErrInvalidPoints = errors.New("invalid evaluation points")
	// ErrInvalidOrganization is returned for unknown organization types or stages.
	ErrInvalidOrganization = errors.New("invalid organization")
)

// TotalPoints sums the five factors. Risk is zero when not assessed.
func TotalPoints(p types.FactorPoints) (int, error) {
	factors := []struct {
		name  string
		value int
	}{
		{"impact", p.Impact},
		{"communication", p.Communication},
		{"innovation", p.Innovation},
		{"knowledge", p.Knowledge},
		{"risk", p.Risk},
	}

	total := 0
	for _, f := range factors {
		if f.value < 0 {
			return 0, fmt.Errorf("%w: %s is %d", ErrInvalidPoints, f.name, f.value)
		}
		total += f.value
	}
	return total, nil
}

// PositionClassForPoints maps a total to its position class. Totals below BaseTotal map to
// BaseClass; there is no upper bound.
func PositionClassForPoints(total int) int {
	if total < BaseTotal {
		return BaseClass
	}
	return BaseClass + (total-BaseTotal)/BandWidth
}

// PositionClass sums the factors and bands the total.
func PositionClass(p types.FactorPoints) (int, error) {
	total, err := TotalPoints(p)
	if err != nil {
		return 0, err
	}
	return PositionClassForPoints(total), nil
}

// Evaluate scores explicit points when given, otherwise the midpoints of the reference job's
// factor ranges. It returns an error when neither is available.
func Evaluate(explicit *types.FactorPoints, reference *types.ReferenceJobRecord) (*types.EvaluationSummary, error) {
	var (
		points types.FactorPoints
		source string
	)
	switch {
	case explicit != nil:
		points, source = *explicit, types.PointsFromRequest
	case reference != nil:
		points, source = reference.Factors.Midpoints(), types.PointsFromReference
	default:
		return nil, fmt.Errorf("%w: no explicit points and no matched reference job", ErrInvalidPoints)
	}

	total, err := TotalPoints(points)
	if err != nil {
		return nil, err
	}
	return &types.EvaluationSummary{
		Points:        points,
		TotalPoints:   total,
		PositionClass: PositionClassForPoints(total),
		PointsSource:  source,
	}, nil
}

// Organization types.
const (
	OrgProducts = "products"
	OrgServices = "services"
)

// valueChain holds the revenue multiplier per stage for each organization type.
var valueChain = map[string]map[string]float64{
	OrgProducts: {
		"full_value_chain":         1.00,
		"research_and_development": 0.50,
		"manufacturing":            0.60,
		"distribution":             0.40,
		"sales_and_marketing":      0.30,
	},
	OrgServices: {
		"full_value_chain":    1.00,
		"service_delivery":    0.70,
		"support_operations":  0.50,
		"sales_and_marketing": 0.30,
	},
}

// ValueChainMultiplier looks up the multiplier for an organization type and stage.
func ValueChainMultiplier(orgType, stage string) (float64, error) {
	table, ok := valueChain[normalizeKey(orgType)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown type %q", ErrInvalidOrganization, orgType)
	}
	m, ok := table[normalizeKey(stage)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown %s stage %q", ErrInvalidOrganization, orgType, stage)
	}
	return m, nil
}

// OrganizationSize returns net revenue scaled by the value-chain multiplier.
func OrganizationSize(netRevenue float64, orgType, stage string) (float64, error) {
	if netRevenue < 0 {
		return 0, fmt.Errorf("%w: negative net revenue %v", ErrInvalidOrganization, netRevenue)
	}
	m, err := ValueChainMultiplier(orgType, stage)
	if err != nil {
		return 0, err
	}
	return netRevenue * m, nil
}

// Stages lists the known stages for an organization type.
func Stages(orgType string) []string {
	table := valueChain[normalizeKey(orgType)]
	out := make([]string, 0, len(table))
	for s := range table {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}
