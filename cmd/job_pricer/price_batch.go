package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jonathan/job-pricer/internal/engine"
	"github.com/jonathan/job-pricer/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var priceBatchCmd = &cobra.Command{
	Use:   "price-batch",
	Short: "Price a JSONL file of job requests concurrently",
	Long: `Reads one job request per line from --requests and writes one result line per request to
--out (or stdout), in input order. A request that fails validation produces an error line and
does not stop the batch.`,
	RunE: runPriceBatch,
}

var (
	batchRequestsPath string
	batchOutPath      string
	batchParamsPath   string
	batchConcurrency  int
)

func init() {
	priceBatchCmd.Flags().StringVar(&batchRequestsPath, "requests", "", "Path to JSONL file of job requests (required)")
	priceBatchCmd.Flags().StringVarP(&batchOutPath, "out", "o", "", "Output JSONL file (defaults to stdout)")
	priceBatchCmd.Flags().StringVarP(&batchParamsPath, "params", "p", "", "Path to pricing parameters YAML (overrides params.file)")
	priceBatchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", 0, "Concurrent pricing calls (defaults to server.batch_concurrency)")

	_ = priceBatchCmd.MarkFlagRequired("requests")

	rootCmd.AddCommand(priceBatchCmd)
}

// batchLine is one output line of price-batch.
type batchLine struct {
	Line   int                  `json:"line"`
	Result *types.PricingResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

func runPriceBatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	in, err := os.Open(batchRequestsPath)
	if err != nil {
		return fmt.Errorf("failed to open requests: %w", err)
	}
	defer in.Close()

	reqs, lineNos, parseErrs, err := readRequestLines(in)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, appOptions{paramsFile: batchParamsPath, record: true})
	if err != nil {
		return err
	}
	defer a.Close()

	snapshot, err := selectSnapshot(a, "")
	if err != nil {
		return err
	}
	concurrency := batchConcurrency
	if concurrency <= 0 {
		concurrency = a.cfg.Server.BatchConcurrency
	}

	items, err := a.engine.PriceBatch(ctx, reqs, snapshot, concurrency)
	if err != nil {
		return fmt.Errorf("batch canceled: %w", err)
	}

	out := cmd.OutOrStdout()
	if batchOutPath != "" {
		f, err := os.Create(batchOutPath)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	failed, err := writeBatchLines(out, items, lineNos, parseErrs)
	if err != nil {
		return err
	}
	a.log.Info("batch priced", zap.Int("requests", len(items)), zap.Int("failed", failed))
	if batchOutPath != "" {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Priced %d requests (%d failed), results written to %s\n",
			len(items), failed, batchOutPath)
	}
	return nil
}

// readRequestLines decodes one request per non-blank line. Lines that fail to decode keep a
// nil slot so output stays aligned with input; their errors are returned by position.
func readRequestLines(r io.Reader) ([]*types.JobRequest, []int, map[int]error, error) {
	var (
		reqs      []*types.JobRequest
		lineNos   []int
		parseErrs = make(map[int]error)
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		req, err := decodeRequest([]byte(line))
		if err != nil {
			parseErrs[len(reqs)] = err
		}
		reqs = append(reqs, req)
		lineNos = append(lineNos, lineNo)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read requests: %w", err)
	}
	return reqs, lineNos, parseErrs, nil
}

func writeBatchLines(w io.Writer, items []engine.BatchItem, lineNos []int, parseErrs map[int]error) (int, error) {
	enc := json.NewEncoder(w)
	failed := 0
	for i, item := range items {
		line := batchLine{Line: lineNos[i], Result: item.Result}
		switch {
		case parseErrs[i] != nil:
			line.Result = nil
			line.Error = parseErrs[i].Error()
		case item.Err != nil:
			line.Error = item.Err.Error()
		}
		if line.Error != "" {
			failed++
		}
		if err := enc.Encode(line); err != nil {
			return failed, fmt.Errorf("failed to write result: %w", err)
		}
	}
	return failed, nil
}
