package engine

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/job-pricer/internal/index"
	"github.com/jonathan/job-pricer/internal/llm"
	"github.com/jonathan/job-pricer/internal/market"
	"github.com/jonathan/job-pricer/internal/matching"
	"github.com/jonathan/job-pricer/internal/metrics"
	"github.com/jonathan/job-pricer/internal/retry"
	"github.com/jonathan/job-pricer/internal/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLLMClient implements llm.Client for testing
type MockLLMClient struct {
	GenerateJSONFunc func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
}

func (m *MockLLMClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, tier)
	}
	return "", errors.New("not configured")
}

func (m *MockLLMClient) GetModel(llm.ModelTier) string { return "mock-model" }

func (m *MockLLMClient) Close() error { return nil }

// selectCode answers with the index the prompt lists for code.
func selectCode(code string, confidence float64) *MockLLMClient {
	line := regexp.MustCompile(`\[(\d+)\] ` + regexp.QuoteMeta(code))
	return &MockLLMClient{
		GenerateJSONFunc: func(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
			m := line.FindStringSubmatch(prompt)
			if m == nil {
				return `{"selected_index": 99, "confidence": 0.1, "reasoning": "missing"}`, nil
			}
			idx, _ := strconv.Atoi(m[1])
			return `{"selected_index": ` + strconv.Itoa(idx) + `, "confidence": ` +
				strconv.FormatFloat(confidence, 'f', 2, 64) +
				`, "reasoning": "same pipeline scope", "similarities": ["Spark"], "differences": []}`, nil
		},
	}
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int32
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Model() string { return "fake-embedding" }

type indexFunc func(ctx context.Context, vector []float32, family string, k int) ([]types.MatchCandidate, error)

func (f indexFunc) Search(ctx context.Context, vector []float32, family string, k int) ([]types.MatchCandidate, error) {
	return f(ctx, vector, family, k)
}

type fakeRecorder struct {
	mu      sync.Mutex
	results []*types.PricingResult
	err     error
}

func (r *fakeRecorder) RecordPricing(_ context.Context, _ *types.JobRequest, result *types.PricingResult) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return uuid.New(), r.err
}

func ptr(f float64) *float64 { return &f }

func factors(lo, hi int) types.FactorRanges {
	r := types.FactorRange{Min: lo, Max: hi}
	return types.FactorRanges{Impact: r, Communication: r, Innovation: r, Knowledge: r}
}

func referenceRecords() []types.ReferenceJobRecord {
	return []types.ReferenceJobRecord{
		{
			JobCode: "ENG.DATA.01.P3", Title: "Data Engineer III", Family: "ENG", Subfamily: "DATA",
			CareerLevel: "P3", PositionClass: 52, Skills: []string{"python", "spark"},
			Description: "Owns batch pipelines.", Factors: factors(60, 80), Embedding: []float32{0.9, 0.1, 0},
		},
		{
			JobCode: "ENG.SWE.01.P3", Title: "Software Engineer III", Family: "ENG", Subfamily: "SWE",
			CareerLevel: "P3", PositionClass: 52, Skills: []string{"go", "rust"},
			Description: "Owns backend services.", Factors: factors(60, 80), Embedding: []float32{0.7, 0.7, 0},
		},
		{
			JobCode: "FIN.ACC.01.P3", Title: "Accountant III", Family: "FIN", Subfamily: "ACC",
			CareerLevel: "P3", PositionClass: 50, Factors: factors(50, 70), Embedding: []float32{1, 0, 0},
		},
	}
}

func benchmarks() []types.MarketBenchmarkRecord {
	return []types.MarketBenchmarkRecord{
		{
			Key: "ENG.DATA.01.P3", Cut: types.CutByJob, Country: "US", Currency: "USD", SampleSize: 12,
			SurveyDate:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			Percentiles: types.Percentiles{P10: 118000, P25: 131000, P50: 147000, P75: 163000, P90: 181000},
		},
	}
}

func snapshot() *types.PricingParameters {
	return &types.PricingParameters{
		Version:       "2025.1",
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		SalaryBands: []types.SalaryBand{
			{MinYears: 0, MaxYears: ptr(3), Min: 70000, Max: 95000, Currency: "USD"},
			{MinYears: 3, MaxYears: ptr(8), Min: 95000, Max: 130000, Currency: "USD"},
			{MinYears: 8, MaxYears: ptr(12), Min: 120000, Max: 170000, Currency: "USD"},
			{MinYears: 12, Min: 150000, Max: 220000, Currency: "USD"},
		},
		IndustryFactors:    map[string]float64{"Finance": 1.20, "default": 1.0},
		CompanySizeFactors: map[string]float64{"1000+": 1.20, "default": 1.0},
		SkillPremiums:      map[string]float64{"python": 0.02, "rust": 0.025},
		SkillPremiumCap:    ptr(0.20),
	}
}

func request() *types.JobRequest {
	return &types.JobRequest{
		Title:           "Senior Data Engineer",
		Description:     "Builds batch and streaming pipelines for the trading desk.",
		JobFamily:       "ENG",
		InternalGrade:   "G5",
		Skills:          []string{"python", "rust"},
		Country:         "US",
		ExperienceYears: ptr(9),
		Industry:        "Finance",
		CompanySize:     "1000+",
	}
}

func fastOptions() Options {
	return Options{
		TopK:          5,
		EmbedTimeout:  time.Second,
		SearchTimeout: time.Second,
		Retry:         retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
	}
}

type fixture struct {
	embedder *fakeEmbedder
	index    index.Index
	client   llm.Client
	store    market.Store
	recorder Recorder
	metrics  *metrics.Metrics
}

func newFixture() *fixture {
	return &fixture{
		embedder: &fakeEmbedder{vector: []float32{1, 0, 0}},
		index:    index.NewMemoryIndex(referenceRecords(), nil),
		client:   selectCode("ENG.DATA.01.P3", 0.9),
		store:    market.NewMemoryStore(benchmarks()),
	}
}

func (f *fixture) engine() *Engine {
	deps := Deps{
		Embedder: f.embedder,
		Index:    f.index,
		Market:   market.NewAggregator(f.store, market.DefaultMinSampleSize, nil),
		Recorder: f.recorder,
		Metrics:  f.metrics,
	}
	opts := fastOptions()
	if f.client != nil {
		deps.Reasoner = matching.NewReasoner(f.client, matching.WithRetry(opts.Retry))
	}
	return New(deps, opts)
}

func kinds(result *types.PricingResult) []string {
	out := make([]string, 0, len(result.Provenance))
	for _, p := range result.Provenance {
		out = append(out, p.Kind)
	}
	return out
}

func assertConfidenceInvariants(t *testing.T, result *types.PricingResult) {
	t.Helper()
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)
	assert.Equal(t, types.TierFor(result.Confidence), result.ConfidenceTier)
	assert.Equal(t, result.ConfidenceTier == types.TierLow, result.RequiresManualReview)
	assert.Equal(t, result.Match.Tier == types.TierLow, result.Match.RequiresManualReview)
}

func TestPriceJob_HybridMatchWithMarketData(t *testing.T) {
	f := newFixture()
	f.metrics = metrics.New()

	result, err := f.engine().PriceJob(context.Background(), request(), snapshot())
	require.NoError(t, err)

	assert.Equal(t, "ENG.DATA.01.P3", result.Match.JobCode)
	assert.Equal(t, types.MethodHybridLLM, result.Match.MatchingMethod)
	assert.Empty(t, result.Provenance)
	assert.False(t, result.Degraded())
	assertConfidenceInvariants(t, result)

	assert.Equal(t, types.SalaryRange{Min: 120000, Max: 170000, Currency: "USD"}, result.BaseRange)
	require.Len(t, result.Adjustments, 3)
	assert.InDelta(t, 172800, result.Adjustments[1].Running.Min, 0.001)
	assert.InDelta(t, 244800, result.Adjustments[1].Running.Max, 0.001)
	assert.InDelta(t, 0.045, result.AppliedSkillPremium, 1e-9)
	assert.InDelta(t, 180576, result.FinalRange.Min, 0.001)
	assert.InDelta(t, 255816, result.FinalRange.Max, 0.001)

	require.NotNil(t, result.MarketBenchmark)
	assert.Equal(t, types.CutByJob, result.MarketBenchmark.Cut)
	assert.Equal(t, []types.PricingSource{types.SourceEvaluationBand, types.SourceMarketData}, result.Sources)

	require.NotNil(t, result.Evaluation)
	assert.Equal(t, types.PointsFromReference, result.Evaluation.PointsSource)
	assert.Equal(t, 280, result.Evaluation.TotalPoints)
	assert.Equal(t, 50, result.Evaluation.PositionClass)
	assert.Equal(t, "2025.1", result.ParametersVersion)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PricingTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MatchesTotal.WithLabelValues("hybrid_llm", string(result.ConfidenceTier))))
}

func TestPriceJob_ReasoningDisabledUsesTopSimilarity(t *testing.T) {
	f := newFixture()
	f.client = nil

	result, err := f.engine().PriceJob(context.Background(), request(), snapshot())
	require.NoError(t, err)

	top := index.CosineSimilarity([]float32{1, 0, 0}, []float32{0.9, 0.1, 0})
	assert.Equal(t, types.MethodEmbeddingOnly, result.Match.MatchingMethod)
	assert.Equal(t, "ENG.DATA.01.P3", result.Match.JobCode)
	assert.InDelta(t, top, result.Confidence, 1e-9)
	assert.Equal(t, []string{types.DegradedReasoningDown}, kinds(result))
	assertConfidenceInvariants(t, result)
}

func TestPriceJob_MalformedVerdict(t *testing.T) {
	f := newFixture()
	f.client = &MockLLMClient{
		GenerateJSONFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			return `{"selected_index": 7, "confidence": 0.9, "reasoning": "x"}`, nil
		},
	}

	result, err := f.engine().PriceJob(context.Background(), request(), snapshot())
	require.NoError(t, err)

	assert.Equal(t, types.MethodEmbeddingOnly, result.Match.MatchingMethod)
	assert.Equal(t, []string{types.DegradedReasoningMalformed}, kinds(result))
}

func TestPriceJob_InvalidRequestFailsBeforeRetrieval(t *testing.T) {
	f := newFixture()
	req := request()
	req.Title = ""
	req.ExperienceYears = nil

	result, err := f.engine().PriceJob(context.Background(), req, snapshot())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, types.ErrInvalidJobRequest)
	var verr *types.RequestValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.embedder.calls))
}

func TestPriceJob_IndexUnavailable(t *testing.T) {
	f := newFixture()
	var searches int32
	f.index = indexFunc(func(context.Context, []float32, string, int) ([]types.MatchCandidate, error) {
		atomic.AddInt32(&searches, 1)
		return nil, index.ErrIndexUnavailable
	})

	result, err := f.engine().PriceJob(context.Background(), request(), snapshot())
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&searches), "one bounded retry")
	assert.False(t, result.Match.Matched())
	assert.True(t, result.RequiresManualReview)
	assert.Equal(t, []string{
		types.DegradedIndex,
		types.DegradedNoMatch,
		types.DegradedNoMarketData,
		types.DegradedEvaluation,
	}, kinds(result))
	assert.Nil(t, result.MarketBenchmark)
	assert.Equal(t, []types.PricingSource{types.SourceEvaluationBand}, result.Sources)
	assert.InDelta(t, 180576, result.FinalRange.Min, 0.001)
}

func TestPriceJob_EmbeddingFailureRetriedOnce(t *testing.T) {
	f := newFixture()
	f.embedder.err = errors.New("embedding timeout")

	result, err := f.engine().PriceJob(context.Background(), request(), snapshot())
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&f.embedder.calls))
	assert.Equal(t, types.DegradedEmbedding, result.Provenance[0].Kind)
	assert.Equal(t, StageEmbed, result.Provenance[0].Stage)
	assert.Contains(t, result.Provenance[0].Detail, "embedding timeout")
	assert.True(t, result.RequiresManualReview)
}

func TestPriceJob_NoCandidatesAfterValidation(t *testing.T) {
	f := newFixture()
	records := referenceRecords()
	f.index = indexFunc(func(context.Context, []float32, string, int) ([]types.MatchCandidate, error) {
		return []types.MatchCandidate{index.Candidate(records[2], 0.99)}, nil
	})

	result, err := f.engine().PriceJob(context.Background(), request(), snapshot())
	require.NoError(t, err)

	assert.False(t, result.Match.Matched())
	assert.Equal(t, types.DegradedNoCandidates, result.Provenance[0].Kind)
	assert.Equal(t, types.DegradedNoMatch, result.Provenance[1].Kind)
	assert.Equal(t, 0.0, result.Confidence)
	assert.True(t, result.RequiresManualReview)
}

func TestPriceJob_FamilyIsHardConstraint(t *testing.T) {
	f := newFixture()
	f.client = nil

	result, err := f.engine().PriceJob(context.Background(), request(), snapshot())
	require.NoError(t, err)

	require.NotNil(t, result.Match.Record)
	assert.Equal(t, "ENG", result.Match.Record.Family, "the closer FIN record is never selected")
}

func TestPriceJob_LowSampleMarketData(t *testing.T) {
	f := newFixture()
	f.store = market.NewMemoryStore([]types.MarketBenchmarkRecord{{
		Key: "DATA|P3", Cut: types.CutBySubfamilyLevel, Country: "US", Currency: "USD", SampleSize: 3,
		SurveyDate:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Percentiles: types.Percentiles{P10: 1, P25: 2, P50: 3, P75: 4, P90: 5},
	}})

	result, err := f.engine().PriceJob(context.Background(), request(), snapshot())
	require.NoError(t, err)

	require.NotNil(t, result.MarketBenchmark)
	assert.Equal(t, types.CutBlended, result.MarketBenchmark.Cut)
	assert.True(t, result.MarketBenchmark.LowSampleConfidence)
	assert.True(t, result.HasProvenance(types.DegradedLowSampleMarket))
	assert.Contains(t, result.Sources, types.SourceMarketData)
}

func TestPriceJob_NoMarketData(t *testing.T) {
	f := newFixture()
	f.store = market.NewMemoryStore(nil)

	result, err := f.engine().PriceJob(context.Background(), request(), snapshot())
	require.NoError(t, err)

	assert.Nil(t, result.MarketBenchmark)
	assert.Equal(t, []string{types.DegradedNoMarketData}, kinds(result))
	assert.Equal(t, []types.PricingSource{types.SourceEvaluationBand}, result.Sources)
}

func TestPriceJob_InvalidParameters(t *testing.T) {
	f := newFixture()

	result, err := f.engine().PriceJob(context.Background(), request(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{types.DegradedInvalidParameters}, kinds(result))
	assert.Equal(t, []types.PricingSource{types.SourceMarketData}, result.Sources)
	assert.Empty(t, result.Adjustments)
	assert.NotNil(t, result.Evaluation)
}

func TestPriceJob_ExplicitEvaluationAndOrganization(t *testing.T) {
	f := newFixture()
	req := request()
	req.Evaluation = &types.FactorPoints{Impact: 10, Communication: 10, Innovation: 10, Knowledge: 10}
	req.Organization = &types.Organization{NetRevenue: 200e6, Type: "services", Stage: "service_delivery"}

	result, err := f.engine().PriceJob(context.Background(), req, snapshot())
	require.NoError(t, err)

	require.NotNil(t, result.Evaluation)
	assert.Equal(t, types.PointsFromRequest, result.Evaluation.PointsSource)
	assert.Equal(t, 40, result.Evaluation.PositionClass)
	require.NotNil(t, result.Evaluation.OrganizationSize)
	assert.InDelta(t, 140e6, *result.Evaluation.OrganizationSize, 0.01)
}

func TestPriceJob_Idempotent(t *testing.T) {
	f := newFixture()
	e := f.engine()

	first, err := e.PriceJob(context.Background(), request(), snapshot())
	require.NoError(t, err)
	second, err := e.PriceJob(context.Background(), request(), snapshot())
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestPriceJob_CanceledContext(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.engine().PriceJob(ctx, request(), snapshot())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

func TestPriceJob_RecorderFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	rec := &fakeRecorder{err: errors.New("db down")}
	f.recorder = rec

	result, err := f.engine().PriceJob(context.Background(), request(), snapshot())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, rec.results, 1)
}

func TestPriceJob_Progress(t *testing.T) {
	f := newFixture()
	var mu sync.Mutex
	var stages []string

	deps := Deps{Embedder: f.embedder, Index: f.index, Reasoner: matching.NewReasoner(f.client)}
	opts := fastOptions()
	opts.OnProgress = func(ev ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		stages = append(stages, ev.Stage)
	}

	_, err := New(deps, opts).PriceJob(context.Background(), request(), snapshot())
	require.NoError(t, err)

	assert.Equal(t, StageRequest, stages[0])
	assert.Contains(t, stages, StageReason)
	assert.Contains(t, stages, StagePricing)
}

func TestSearchText(t *testing.T) {
	text := SearchText(&types.JobRequest{Title: " Analyst ", Description: "Builds models.", Skills: []string{"sql", "excel"}})
	assert.Equal(t, "Analyst\nBuilds models.\nSkills: sql, excel", text)
}
