package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jonathan/job-pricer/internal/engine"
	"github.com/jonathan/job-pricer/internal/observability"
	"github.com/jonathan/job-pricer/internal/schemas"
	"github.com/jonathan/job-pricer/internal/types"
	"github.com/spf13/cobra"
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Match and price a single job request",
	Long: `Reads a job request JSON file, matches it to a reference job and prices it against the
pricing parameters in force (or the version named by --params-version).

The result is written as JSON to --out, or to stdout when --out is not set.`,
	RunE: runPrice,
}

var (
	priceRequestPath   string
	priceParamsPath    string
	priceParamsVersion string
	priceOutPath       string
)

func init() {
	priceCmd.Flags().StringVarP(&priceRequestPath, "request", "r", "", "Path to job request JSON file (required)")
	priceCmd.Flags().StringVarP(&priceParamsPath, "params", "p", "", "Path to pricing parameters YAML (overrides params.file)")
	priceCmd.Flags().StringVar(&priceParamsVersion, "params-version", "", "Price against this parameters version instead of the current one")
	priceCmd.Flags().StringVarP(&priceOutPath, "out", "o", "", "Output file for the pricing result JSON")

	_ = priceCmd.MarkFlagRequired("request")

	rootCmd.AddCommand(priceCmd)
}

func runPrice(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := readRequestFile(priceRequestPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, appOptions{paramsFile: priceParamsPath, record: true})
	if err != nil {
		return err
	}
	defer a.Close()

	snapshot, err := selectSnapshot(a, priceParamsVersion)
	if err != nil {
		return err
	}

	e := a.engine
	if verbose {
		e = e.WithProgress(func(ev engine.ProgressEvent) {
			_, _ = fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Stage, ev.Message)
		})
	}

	result, err := e.PriceJob(ctx, req, snapshot)
	if err != nil {
		return fmt.Errorf("pricing failed: %w", err)
	}

	if verbose {
		observability.NewPrinter(os.Stderr).PrintPricingResult(result)
	}
	return writeResult(cmd.OutOrStdout(), priceOutPath, result)
}

// readRequestFile loads a job request after checking it against the request schema.
func readRequestFile(path string) (*types.JobRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}
	return decodeRequest(data)
}

func decodeRequest(data []byte) (*types.JobRequest, error) {
	if err := schemas.Validate(schemas.JobRequest, string(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidJobRequest, err)
	}
	var req types.JobRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidJobRequest, err)
	}
	return &req, nil
}

// selectSnapshot returns the named version, or the snapshot in force now. A missing current
// snapshot is not fatal: the engine prices without it and reports invalid_parameters.
func selectSnapshot(a *app, version string) (*types.PricingParameters, error) {
	if version != "" {
		return a.params.Version(version)
	}
	snapshot, err := a.params.Current()
	if err != nil {
		a.log.Warn("no pricing parameters in force")
		return nil, nil
	}
	return snapshot, nil
}

// writeResult validates result against the result schema and writes it to path, or to w when
// path is empty.
func writeResult(w io.Writer, path string, result *types.PricingResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := schemas.Validate(schemas.PricingResult, string(data)); err != nil {
		return fmt.Errorf("pricing result failed schema validation: %w", err)
	}

	if path == "" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Pricing result written to %s\n", path)
	return nil
}
