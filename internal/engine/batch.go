package engine

import (
	"context"

	"github.com/jonathan/job-pricer/internal/types"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds PriceBatch when no limit is given.
const DefaultConcurrency = 4

// BatchItem is the outcome of one request in a batch.
type BatchItem struct {
	Index  int                  `json:"index"`
	Result *types.PricingResult `json:"result,omitempty"`
	Err    error                `json:"-"`
}

// PriceBatch prices requests with at most concurrency calls in flight. Items come back in
// input order. A failed request is reported on its item and does not stop the batch; the
// returned error is set only when ctx ends.
func (e *Engine) PriceBatch(ctx context.Context, reqs []*types.JobRequest, snapshot *types.PricingParameters, concurrency int) ([]BatchItem, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	items := make([]BatchItem, len(reqs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, req := range reqs {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			result, err := e.PriceJob(gCtx, req, snapshot)
			if err != nil && gCtx.Err() != nil {
				return gCtx.Err()
			}
			items[i] = BatchItem{Index: i, Result: result, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return items, err
	}
	return items, nil
}
