package main

import (
	"fmt"

	"github.com/jonathan/job-pricer/internal/evaluation"
	"github.com/jonathan/job-pricer/internal/types"
	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Compute total job evaluation points and the position class",
	RunE:  runEvaluate,
}

var evalPoints types.FactorPoints

func init() {
	evaluateCmd.Flags().IntVar(&evalPoints.Impact, "impact", 0, "Impact points")
	evaluateCmd.Flags().IntVar(&evalPoints.Communication, "communication", 0, "Communication points")
	evaluateCmd.Flags().IntVar(&evalPoints.Innovation, "innovation", 0, "Innovation points")
	evaluateCmd.Flags().IntVar(&evalPoints.Knowledge, "knowledge", 0, "Knowledge points")
	evaluateCmd.Flags().IntVar(&evalPoints.Risk, "risk", 0, "Risk points (optional)")

	for _, f := range []string{"impact", "communication", "innovation", "knowledge"} {
		_ = evaluateCmd.MarkFlagRequired(f)
	}

	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	total, err := evaluation.TotalPoints(evalPoints)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Total points:   %d\n", total)
	_, _ = fmt.Fprintf(out, "Position class: %d\n", evaluation.PositionClassForPoints(total))
	return nil
}
