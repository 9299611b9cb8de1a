// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/job-pricer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func money(v float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.2f %s", v, currency)
}

// PrintMatch outputs the selected reference job and how it was chosen.
func (p *Printer) PrintMatch(match *types.MatchResult) {
	if match == nil {
		return
	}

	var sb strings.Builder
	if !match.Matched() {
		sb.WriteString("No reference job selected\n")
		if match.FallbackReason != "" {
			sb.WriteString(fmt.Sprintf("Reason:   %s\n", match.FallbackReason))
		}
		p.printBox("REFERENCE JOB MATCH", strings.TrimSuffix(sb.String(), "\n"))
		return
	}

	sb.WriteString(fmt.Sprintf("Job:        %s\n", match.JobCode))
	sb.WriteString(fmt.Sprintf("Title:      %s\n", match.Title))
	sb.WriteString(fmt.Sprintf("Method:     %s\n", match.MatchingMethod))
	sb.WriteString(fmt.Sprintf("Confidence: %.2f (%s)", match.Confidence, match.Tier))
	if match.RequiresManualReview {
		sb.WriteString(" ⚠ review")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Similarity: %.3f  Validation: %.2f", match.SemanticSimilarity, match.ValidationScore))
	if match.ReasoningConfidence != nil {
		sb.WriteString(fmt.Sprintf("  LLM: %.2f", *match.ReasoningConfidence))
	}
	sb.WriteString("\n")

	if len(match.Similarities) > 0 {
		sb.WriteString("\nSimilarities:\n")
		count := min(len(match.Similarities), 3)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", match.Similarities[i]))
		}
		if len(match.Similarities) > 3 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(match.Similarities)-3))
		}
	}
	if len(match.Differences) > 0 {
		sb.WriteString("\nDifferences:\n")
		count := min(len(match.Differences), 3)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", match.Differences[i]))
		}
		if len(match.Differences) > 3 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(match.Differences)-3))
		}
	}

	p.printBox("REFERENCE JOB MATCH", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCandidates outputs the top validated candidates with their scores.
func (p *Printer) PrintCandidates(candidates []types.MatchCandidate) {
	if len(candidates) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Candidates: %d\n\n", len(candidates)))

	count := min(len(candidates), maxItemsToShow)
	for i := 0; i < count; i++ {
		c := candidates[i]
		sb.WriteString(fmt.Sprintf("#%d  %s  %s\n", i+1, c.JobCode, c.Title))
		sb.WriteString(fmt.Sprintf("    Sim: %.3f  Val: %.2f  Skills: %.2f\n", c.Similarity, c.ValidationScore, c.SkillOverlap))
	}

	if len(candidates) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more candidates", len(candidates)-maxItemsToShow))
	}

	p.printBox("VALIDATED CANDIDATES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintEvaluation outputs the evaluation points and position class.
func (p *Printer) PrintEvaluation(eval *types.EvaluationSummary) {
	if eval == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Impact:         %d\n", eval.Points.Impact))
	sb.WriteString(fmt.Sprintf("Communication:  %d\n", eval.Points.Communication))
	sb.WriteString(fmt.Sprintf("Innovation:     %d\n", eval.Points.Innovation))
	sb.WriteString(fmt.Sprintf("Knowledge:      %d\n", eval.Points.Knowledge))
	if eval.Points.Risk > 0 {
		sb.WriteString(fmt.Sprintf("Risk:           %d\n", eval.Points.Risk))
	}
	sb.WriteString(fmt.Sprintf("\nTotal: %d points → class %d (%s)", eval.TotalPoints, eval.PositionClass, eval.PointsSource))
	if eval.OrganizationSize != nil {
		sb.WriteString(fmt.Sprintf("\nOrganization size: %.0f", *eval.OrganizationSize))
	}

	p.printBox("JOB EVALUATION", sb.String())
}

// PrintMarketBenchmark outputs the resolved benchmark percentiles.
func (p *Printer) PrintMarketBenchmark(b *types.MarketBenchmark) {
	if b == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Cut:      %s", b.Cut))
	if b.Key != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", b.Key))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Country:  %s  Samples: %d\n", b.Country, b.SampleSize))
	if !b.SurveyDate.IsZero() {
		sb.WriteString(fmt.Sprintf("Survey:   %s\n", b.SurveyDate.Format("2006-01-02")))
	}
	if b.LowSampleConfidence {
		parts := make([]string, 0, len(b.SourceCuts))
		for _, c := range b.SourceCuts {
			parts = append(parts, string(c))
		}
		sb.WriteString(fmt.Sprintf("⚠ low sample, blended from:\n  %s\n", strings.Join(parts, ", ")))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("P10 %s\n", money(b.Percentiles.P10, b.Currency)))
	sb.WriteString(fmt.Sprintf("P25 %s\n", money(b.Percentiles.P25, b.Currency)))
	sb.WriteString(fmt.Sprintf("P50 %s\n", money(b.Percentiles.P50, b.Currency)))
	sb.WriteString(fmt.Sprintf("P75 %s\n", money(b.Percentiles.P75, b.Currency)))
	sb.WriteString(fmt.Sprintf("P90 %s", money(b.Percentiles.P90, b.Currency)))

	p.printBox("MARKET BENCHMARK", sb.String())
}

// PrintAdjustments outputs the salary band and every adjustment step.
func (p *Printer) PrintAdjustments(result *types.PricingResult) {
	if result == nil || len(result.Adjustments) == 0 {
		return
	}

	currency := result.BaseRange.Currency
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Base:   %s - %s\n\n", money(result.BaseRange.Min, ""), money(result.BaseRange.Max, currency)))

	for _, a := range result.Adjustments {
		label := a.Name
		if a.Key != "" {
			key := a.Key
			if len(key) > 24 {
				key = key[:21] + "..."
			}
			label = fmt.Sprintf("%s [%s]", a.Name, key)
		}
		sb.WriteString(fmt.Sprintf("× %-32s %.3f\n", label, a.Factor))
		sb.WriteString(fmt.Sprintf("  → %s - %s\n", money(a.Running.Min, ""), money(a.Running.Max, currency)))
	}
	if result.SkillPremiumCapped {
		sb.WriteString("  (skill premium capped)\n")
	}

	sb.WriteString(fmt.Sprintf("\nFinal:  %s - %s\n", money(result.FinalRange.Min, ""), money(result.FinalRange.Max, currency)))
	sb.WriteString(fmt.Sprintf("Mid:    %s", money(result.Midpoint, currency)))

	p.printBox(fmt.Sprintf("PRICING (parameters %s)", result.ParametersVersion), sb.String())
}

// PrintProvenance outputs the degraded paths taken during a pricing call.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProvenance(provenance []types.ProvenanceEntry) {
	if len(provenance) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ NO DEGRADED PATHS")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Took %d degraded paths:\n\n", len(provenance)))

	for i, e := range provenance {
		detail := e.Detail
		if len(detail) > 45 {
			detail = detail[:42] + "..."
		}
		sb.WriteString(fmt.Sprintf("⚠ %s (%s)\n", e.Kind, e.Stage))
		if detail != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", detail))
		}
		if i < len(provenance)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("PROVENANCE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPricingResult outputs every section of a pricing result.
func (p *Printer) PrintPricingResult(result *types.PricingResult) {
	if result == nil {
		return
	}
	p.PrintMatch(&result.Match)
	p.PrintEvaluation(result.Evaluation)
	p.PrintMarketBenchmark(result.MarketBenchmark)
	p.PrintAdjustments(result)
	p.PrintProvenance(result.Provenance)
}
