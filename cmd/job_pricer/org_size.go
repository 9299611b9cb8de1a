package main

import (
	"fmt"
	"strings"

	"github.com/jonathan/job-pricer/internal/evaluation"
	"github.com/spf13/cobra"
)

var orgSizeCmd = &cobra.Command{
	Use:   "org-size",
	Short: "Compute the adjusted organization size from net revenue",
	Long: `Scales net revenue by the value-chain multiplier of the organization type and stage.

Products stages: full_value_chain, research_and_development, manufacturing, distribution, sales_and_marketing.
Services stages: full_value_chain, service_delivery, support_operations, sales_and_marketing.`,
	RunE: runOrgSize,
}

var (
	orgRevenue float64
	orgType    string
	orgStage   string
)

func init() {
	orgSizeCmd.Flags().Float64Var(&orgRevenue, "revenue", 0, "Net revenue")
	orgSizeCmd.Flags().StringVar(&orgType, "type", "", "Organization type: products or services")
	orgSizeCmd.Flags().StringVar(&orgStage, "stage", "", "Business stage")

	_ = orgSizeCmd.MarkFlagRequired("revenue")
	_ = orgSizeCmd.MarkFlagRequired("type")
	_ = orgSizeCmd.MarkFlagRequired("stage")

	rootCmd.AddCommand(orgSizeCmd)
}

func runOrgSize(cmd *cobra.Command, _ []string) error {
	size, err := evaluation.OrganizationSize(orgRevenue, orgType, orgStage)
	if err != nil {
		if stages := evaluation.Stages(orgType); len(stages) > 0 {
			return fmt.Errorf("%w (known stages: %s)", err, strings.Join(stages, ", "))
		}
		return err
	}
	m, _ := evaluation.ValueChainMultiplier(orgType, orgStage)
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Multiplier:        %.2f\n", m)
	_, _ = fmt.Fprintf(out, "Organization size: %.2f\n", size)
	return nil
}
