package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonathan/job-pricer/internal/logger"
	"github.com/jonathan/job-pricer/internal/types"
	"go.uber.org/zap"
)

// MemoryIndex performs exact cosine search over records held in memory.
type MemoryIndex struct {
	records []types.ReferenceJobRecord
	byCode  map[string]int
	log     *zap.Logger
}

// NewMemoryIndex indexes records. Records without an embedding are kept for lookups but never returned by Search.
func NewMemoryIndex(records []types.ReferenceJobRecord, log *zap.Logger) *MemoryIndex {
	idx := &MemoryIndex{
		records: make([]types.ReferenceJobRecord, len(records)),
		byCode:  make(map[string]int, len(records)),
		log:     logger.OrNop(log),
	}
	copy(idx.records, records)
	for i, r := range idx.records {
		idx.byCode[r.JobCode] = i
	}
	return idx
}

// AllRecordsSource lists every reference record.
type AllRecordsSource interface {
	ListReferenceJobs(ctx context.Context) ([]types.ReferenceJobRecord, error)
}

// NewMemoryIndexFromSource preloads every record from src.
func NewMemoryIndexFromSource(ctx context.Context, src AllRecordsSource, log *zap.Logger) (*MemoryIndex, error) {
	records, err := src.ListReferenceJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load reference jobs: %v", ErrIndexUnavailable, err)
	}
	return NewMemoryIndex(records, log), nil
}

// LoadRecordsFile reads a JSON array of reference job records.
func LoadRecordsFile(path string) ([]types.ReferenceJobRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference jobs %s: %w", path, err)
	}
	var records []types.ReferenceJobRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse reference jobs %s: %w", path, err)
	}
	for i, r := range records {
		if _, err := types.ParseJobCode(r.JobCode); err != nil {
			return nil, fmt.Errorf("reference job %d: %w", i, err)
		}
	}
	return records, nil
}

// Search implements Index.
func (m *MemoryIndex) Search(ctx context.Context, vector []float32, family string, k int) ([]types.MatchCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrIndexUnavailable)
	}

	var candidates []types.MatchCandidate
	for _, r := range m.records {
		if !FamilyMatches(r.Family, family) {
			continue
		}
		if len(r.Embedding) != len(vector) {
			if len(r.Embedding) > 0 {
				m.log.Debug("skipping reference job with mismatched embedding dimension",
					zap.String(logger.FieldJobCode, r.JobCode),
					zap.Int("record_dim", len(r.Embedding)),
					zap.Int("query_dim", len(vector)))
			}
			continue
		}
		candidates = append(candidates, Candidate(r, CosineSimilarity(vector, r.Embedding)))
	}
	return SortCandidates(candidates, k), nil
}

// GetReferenceJobs implements RecordSource. Unknown codes are skipped.
func (m *MemoryIndex) GetReferenceJobs(_ context.Context, codes []string) ([]types.ReferenceJobRecord, error) {
	out := make([]types.ReferenceJobRecord, 0, len(codes))
	for _, c := range codes {
		if i, ok := m.byCode[c]; ok {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

// ListReferenceJobs implements AllRecordsSource.
func (m *MemoryIndex) ListReferenceJobs(context.Context) ([]types.ReferenceJobRecord, error) {
	out := make([]types.ReferenceJobRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

// Len returns the number of indexed records.
func (m *MemoryIndex) Len() int {
	return len(m.records)
}
