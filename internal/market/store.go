package market

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonathan/job-pricer/internal/types"
	"gopkg.in/yaml.v3"
)

// MemoryStore serves benchmark records held in memory.
type MemoryStore struct {
	records map[string][]types.MarketBenchmarkRecord
}

// NewMemoryStore indexes records by cut, key and country.
func NewMemoryStore(records []types.MarketBenchmarkRecord) *MemoryStore {
	s := &MemoryStore{records: make(map[string][]types.MarketBenchmarkRecord)}
	for _, r := range records {
		k := storeKey(r.Cut, r.Key, r.Country)
		s.records[k] = append(s.records[k], r)
	}
	return s
}

// LoadFile reads a YAML or JSON list of benchmark records into a MemoryStore.
func LoadFile(path string) (*MemoryStore, error) {
	records, err := LoadRecords(path)
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(records), nil
}

// LoadRecords reads and checks a YAML or JSON list of benchmark records.
func LoadRecords(path string) ([]types.MarketBenchmarkRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read benchmark file: %w", err)
	}

	var records []types.MarketBenchmarkRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &records)
	default:
		err = yaml.Unmarshal(data, &records)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse benchmark file %s: %w", path, err)
	}

	for i, r := range records {
		if r.Key == "" || r.Cut == "" || r.Country == "" {
			return nil, fmt.Errorf("benchmark %d in %s: cut, key and country are required", i, path)
		}
		if r.SampleSize < 0 {
			return nil, fmt.Errorf("benchmark %d in %s: negative sample size", i, path)
		}
	}
	return records, nil
}

// Lookup returns every record for the cut, key and country.
func (s *MemoryStore) Lookup(ctx context.Context, cut types.BenchmarkCut, key, country string) ([]types.MarketBenchmarkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found := s.records[storeKey(cut, key, country)]
	out := make([]types.MarketBenchmarkRecord, len(found))
	copy(out, found)
	return out, nil
}

func storeKey(cut types.BenchmarkCut, key, country string) string {
	return string(cut) + "\x00" + strings.ToLower(strings.TrimSpace(key)) + "\x00" + strings.ToUpper(strings.TrimSpace(country))
}

// BenchmarkLister is the database query the PostgresStore delegates to.
type BenchmarkLister interface {
	ListBenchmarks(ctx context.Context, cut types.BenchmarkCut, key, country string) ([]types.MarketBenchmarkRecord, error)
}

// PostgresStore reads benchmarks from the database.
type PostgresStore struct {
	db BenchmarkLister
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db BenchmarkLister) *PostgresStore {
	return &PostgresStore{db: db}
}

// Lookup implements Store.
func (s *PostgresStore) Lookup(ctx context.Context, cut types.BenchmarkCut, key, country string) ([]types.MarketBenchmarkRecord, error) {
	records, err := s.db.ListBenchmarks(ctx, cut, key, strings.ToUpper(strings.TrimSpace(country)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return records, nil
}
