package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/job-pricer/internal/logger"
	"github.com/jonathan/job-pricer/internal/types"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"
)

// Milvus collection field names.
const (
	milvusFieldCode      = "job_code"
	milvusFieldFamily    = "family_key"
	milvusFieldEmbedding = "embedding"
)

// scoredCode is one raw hit from the vector store.
type scoredCode struct {
	Code  string
	Score float64
}

// vectorStore is the subset of Milvus operations the index needs.
type vectorStore interface {
	search(ctx context.Context, vector []float32, familyKey string, k int) ([]scoredCode, error)
	upsert(ctx context.Context, records []types.ReferenceJobRecord) error
	close() error
}

// MilvusIndex searches unit-normalized embeddings with the inner-product metric, which equals
// cosine similarity, then hydrates the hits from a RecordSource.
type MilvusIndex struct {
	store   vectorStore
	records RecordSource
	log     *zap.Logger
}

// NewMilvusIndex connects to a Milvus endpoint.
func NewMilvusIndex(ctx context.Context, endpoint, collection string, dim int, records RecordSource, log *zap.Logger) (*MilvusIndex, error) {
	c, err := client.NewGrpcClient(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	log = logger.OrNop(log)
	log.Info("milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collection))

	return &MilvusIndex{
		store:   &milvusStore{client: c, collection: collection, dim: dim},
		records: records,
		log:     log,
	}, nil
}

// Close closes the client.
func (m *MilvusIndex) Close() error {
	return m.store.close()
}

// Sync writes records into the collection, creating it when missing.
func (m *MilvusIndex) Sync(ctx context.Context, records []types.ReferenceJobRecord) error {
	if err := m.store.upsert(ctx, records); err != nil {
		return err
	}
	m.log.Info("reference jobs synced to milvus", zap.Int("count", len(records)))
	return nil
}

// Search implements Index.
func (m *MilvusIndex) Search(ctx context.Context, vector []float32, family string, k int) ([]types.MatchCandidate, error) {
	if k <= 0 {
		return nil, nil
	}

	hits, err := m.store.search(ctx, Normalize(vector), familyKey(family), k)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	codes := make([]string, len(hits))
	for i, h := range hits {
		codes[i] = h.Code
	}
	records, err := m.records.GetReferenceJobs(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to hydrate hits: %v", ErrIndexUnavailable, err)
	}
	byCode := make(map[string]types.ReferenceJobRecord, len(records))
	for _, r := range records {
		byCode[r.JobCode] = r
	}

	candidates := make([]types.MatchCandidate, 0, len(hits))
	for _, h := range hits {
		r, ok := byCode[h.Code]
		if !ok {
			m.log.Warn("milvus hit has no reference record", zap.String(logger.FieldJobCode, h.Code))
			continue
		}
		candidates = append(candidates, Candidate(r, h.Score))
	}
	return SortCandidates(candidates, k), nil
}

func familyKey(family string) string {
	return strings.ToLower(strings.TrimSpace(family))
}

// familyExpr builds the boolean filter for a family key; empty means no filter.
func familyExpr(key string) string {
	if key == "" {
		return ""
	}
	escaped := strings.ReplaceAll(strings.ReplaceAll(key, `\`, `\\`), `"`, `\"`)
	return fmt.Sprintf(`%s == "%s"`, milvusFieldFamily, escaped)
}

// milvusStore implements vectorStore over the Milvus gRPC client.
type milvusStore struct {
	client     client.Client
	collection string
	dim        int
}

func (s *milvusStore) close() error {
	return s.client.Close()
}

func (s *milvusStore) search(ctx context.Context, vector []float32, familyKey string, k int) ([]scoredCode, error) {
	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	results, err := s.client.Search(
		ctx,
		s.collection,
		[]string{},
		familyExpr(familyKey),
		[]string{milvusFieldCode},
		[]entity.Vector{entity.FloatVector(vector)},
		milvusFieldEmbedding,
		entity.IP,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var hits []scoredCode
	for _, sr := range results {
		col := sr.Fields.GetColumn(milvusFieldCode)
		if col == nil {
			return nil, fmt.Errorf("search result missing %s column", milvusFieldCode)
		}
		for i := 0; i < sr.ResultCount; i++ {
			v, err := col.Get(i)
			if err != nil {
				return nil, fmt.Errorf("failed to read job code: %w", err)
			}
			code, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected job code type %T", v)
			}
			hits = append(hits, scoredCode{Code: code, Score: float64(sr.Scores[i])})
		}
	}
	return hits, nil
}

func (s *milvusStore) ensureCollection(ctx context.Context) error {
	has, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: s.collection,
		Description:    "Reference job embeddings",
		Fields: []*entity.Field{
			{
				Name:       milvusFieldCode,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "128"},
			},
			{
				Name:       milvusFieldFamily,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "128"},
			},
			{
				Name:       milvusFieldEmbedding,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", s.dim)},
			},
		},
	}
	if err := s.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.IP, 128)
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}
	if err := s.client.CreateIndex(ctx, s.collection, milvusFieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

func (s *milvusStore) upsert(ctx context.Context, records []types.ReferenceJobRecord) error {
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	codes := make([]string, 0, len(records))
	families := make([]string, 0, len(records))
	embeddings := make([][]float32, 0, len(records))
	for _, r := range records {
		if len(r.Embedding) != s.dim {
			return fmt.Errorf("reference job %s: embedding dimension %d, collection expects %d", r.JobCode, len(r.Embedding), s.dim)
		}
		codes = append(codes, r.JobCode)
		families = append(families, familyKey(r.Family))
		embeddings = append(embeddings, Normalize(r.Embedding))
	}

	_, err := s.client.Upsert(
		ctx,
		s.collection,
		"",
		entity.NewColumnVarChar(milvusFieldCode, codes),
		entity.NewColumnVarChar(milvusFieldFamily, families),
		entity.NewColumnFloatVector(milvusFieldEmbedding, s.dim, embeddings),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert reference jobs: %w", err)
	}
	if err := s.client.Flush(ctx, s.collection, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	if err := s.client.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}
