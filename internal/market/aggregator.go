// Package market resolves the best available compensation benchmark for a matched job by
// walking a fixed priority order of benchmark cuts.
package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/job-pricer/internal/logger"
	"github.com/jonathan/job-pricer/internal/types"
	"go.uber.org/zap"
)

// DefaultMinSampleSize is the smallest sample a single cut needs to be used directly.
const DefaultMinSampleSize = 5

var (
	// ErrNoMarketData means no cut has data for the job and country.
	ErrNoMarketData = errors.New("no market data")
	// ErrStoreUnavailable wraps benchmark store failures.
	ErrStoreUnavailable = errors.New("market benchmark store unavailable")
)

// Store looks up benchmark records by cut, cut key and country.
type Store interface {
	Lookup(ctx context.Context, cut types.BenchmarkCut, key, country string) ([]types.MarketBenchmarkRecord, error)
}

// CutKey is one step of the resolution order.
type CutKey struct {
	Cut types.BenchmarkCut
	Key string
}

// CutKeys returns the lookup keys for record in priority order. Cuts whose key parts are
// unknown are left out.
func CutKeys(record *types.ReferenceJobRecord) []CutKey {
	if record == nil {
		return nil
	}

	family, subfamily, level := record.Family, record.Subfamily, record.CareerLevel
	if code, err := types.ParseJobCode(record.JobCode); err == nil {
		if family == "" {
			family = code.Family
		}
		if subfamily == "" {
			subfamily = code.Subfamily
		}
		if level == "" {
			level = code.Level
		}
	}

	var class string
	if record.PositionClass > 0 {
		class = strconv.Itoa(record.PositionClass)
	}

	candidates := []CutKey{
		{types.CutByJob, record.JobCode},
		{types.CutByFamilyLevel, compositeKey(family, level)},
		{types.CutByFamilyClass, compositeKey(family, class)},
		{types.CutBySubfamilyLevel, compositeKey(subfamily, level)},
		{types.CutBySubfamilyClass, compositeKey(subfamily, class)},
	}

	keys := make([]CutKey, 0, len(candidates))
	for _, c := range candidates {
		if c.Key != "" {
			keys = append(keys, c)
		}
	}
	return keys
}

func compositeKey(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return ""
	}
	return a + "|" + b
}

// Aggregator resolves benchmarks against a Store.
type Aggregator struct {
	store     Store
	minSample int
	log       *zap.Logger
}

// NewAggregator creates an Aggregator. A non-positive minSample uses DefaultMinSampleSize.
func NewAggregator(store Store, minSample int, log *zap.Logger) *Aggregator {
	if minSample <= 0 {
		minSample = DefaultMinSampleSize
	}
	return &Aggregator{store: store, minSample: minSample, log: logger.OrNop(log)}
}

// Resolve returns the first cut meeting the sample threshold, or a low-confidence blend of
// every available cut. It returns ErrNoMarketData when nothing is available and an error
// wrapping ErrStoreUnavailable when the store fails.
func (a *Aggregator) Resolve(ctx context.Context, record *types.ReferenceJobRecord, country string) (*types.MarketBenchmark, error) {
	if a.store == nil {
		return nil, fmt.Errorf("%w: no store configured", ErrStoreUnavailable)
	}
	country = strings.ToUpper(strings.TrimSpace(country))

	var available []types.MarketBenchmarkRecord
	for _, ck := range CutKeys(record) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := a.store.Lookup(ctx, ck.Cut, ck.Key, country)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, ErrStoreUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s %s: %w", ErrStoreUnavailable, ck.Cut, ck.Key, err)
		}
		latest, ok := MostRecent(records)
		if !ok {
			continue
		}
		latest.Cut = ck.Cut
		if latest.SampleSize >= a.minSample {
			a.log.Debug("market cut resolved",
				zap.String("cut", string(ck.Cut)),
				zap.String("key", ck.Key),
				zap.Int("sample_size", latest.SampleSize))
			return direct(latest, ck.Key), nil
		}
		available = append(available, latest)
	}

	if len(available) == 0 {
		return nil, ErrNoMarketData
	}

	blended := Blend(available)
	a.log.Debug("market cuts blended",
		zap.Int("cuts", len(blended.SourceCuts)),
		zap.Int("sample_size", blended.SampleSize))
	return blended, nil
}

func direct(r types.MarketBenchmarkRecord, key string) *types.MarketBenchmark {
	return &types.MarketBenchmark{
		Cut:         r.Cut,
		Key:         key,
		Country:     r.Country,
		Currency:    r.Currency,
		Percentiles: r.Percentiles,
		SampleSize:  r.SampleSize,
		SurveyDate:  r.SurveyDate,
		SourceCuts:  []types.BenchmarkCut{r.Cut},
	}
}

// MostRecent picks the latest survey. Ties go to the larger sample, then the lexically
// smaller currency.
func MostRecent(records []types.MarketBenchmarkRecord) (types.MarketBenchmarkRecord, bool) {
	if len(records) == 0 {
		return types.MarketBenchmarkRecord{}, false
	}
	sorted := make([]types.MarketBenchmarkRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.SurveyDate.Equal(b.SurveyDate) {
			return a.SurveyDate.After(b.SurveyDate)
		}
		if a.SampleSize != b.SampleSize {
			return a.SampleSize > b.SampleSize
		}
		return a.Currency < b.Currency
	})
	return sorted[0], true
}

// Blend combines cuts listed in priority order. Only cuts in the first cut's currency take
// part. Percentiles are sample-weighted, or a simple mean when every sample is zero.
func Blend(cuts []types.MarketBenchmarkRecord) *types.MarketBenchmark {
	if len(cuts) == 0 {
		return nil
	}

	currency := cuts[0].Currency
	var (
		used    []types.MarketBenchmarkRecord
		samples int
		latest  time.Time
	)
	for _, c := range cuts {
		if c.Currency != currency {
			continue
		}
		used = append(used, c)
		samples += c.SampleSize
		if c.SurveyDate.After(latest) {
			latest = c.SurveyDate
		}
	}

	weight := func(c types.MarketBenchmarkRecord) float64 {
		if samples == 0 {
			return 1
		}
		return float64(c.SampleSize)
	}

	var sum types.Percentiles
	var total float64
	sources := make([]types.BenchmarkCut, 0, len(used))
	for _, c := range used {
		w := weight(c)
		total += w
		sum.P10 += w * c.Percentiles.P10
		sum.P25 += w * c.Percentiles.P25
		sum.P50 += w * c.Percentiles.P50
		sum.P75 += w * c.Percentiles.P75
		sum.P90 += w * c.Percentiles.P90
		sources = append(sources, c.Cut)
	}

	return &types.MarketBenchmark{
		Cut:      types.CutBlended,
		Country:  used[0].Country,
		Currency: currency,
		Percentiles: types.Percentiles{
			P10: roundCents(sum.P10 / total),
			P25: roundCents(sum.P25 / total),
			P50: roundCents(sum.P50 / total),
			P75: roundCents(sum.P75 / total),
			P90: roundCents(sum.P90 / total),
		},
		SampleSize:          samples,
		SurveyDate:          latest,
		LowSampleConfidence: true,
		SourceCuts:          sources,
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
