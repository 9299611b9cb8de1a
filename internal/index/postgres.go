package index

import (
	"context"
	"fmt"

	"github.com/jonathan/job-pricer/internal/types"
)

// VectorSearcher runs nearest-neighbour search in the database.
type VectorSearcher interface {
	SearchReferenceJobs(ctx context.Context, vector []float32, family string, limit int) ([]types.MatchCandidate, error)
}

// PostgresIndex searches reference jobs stored with a pgvector column.
type PostgresIndex struct {
	db VectorSearcher
}

// NewPostgresIndex creates a PostgresIndex.
func NewPostgresIndex(db VectorSearcher) *PostgresIndex {
	return &PostgresIndex{db: db}
}

// Search implements Index.
func (p *PostgresIndex) Search(ctx context.Context, vector []float32, family string, k int) ([]types.MatchCandidate, error) {
	if k <= 0 {
		return nil, nil
	}
	candidates, err := p.db.SearchReferenceJobs(ctx, vector, family, k)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	// Re-sort so the tie-break does not depend on the database collation.
	return SortCandidates(candidates, k), nil
}
