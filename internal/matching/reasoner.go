// Package matching selects one reference job among validated candidates, using a reasoning
// model when available and embedding similarity otherwise, and fuses the confidence signals.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/job-pricer/internal/llm"
	"github.com/jonathan/job-pricer/internal/logger"
	"github.com/jonathan/job-pricer/internal/prompts"
	"github.com/jonathan/job-pricer/internal/retry"
	"github.com/jonathan/job-pricer/internal/types"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single reasoning attempt.
const DefaultTimeout = 20 * time.Second

// maxDescriptionChars limits how much of each description goes into the prompt.
const maxDescriptionChars = 600

// Outcome is the match plus the reason reasoning was not used, if any.
type Outcome struct {
	Result types.MatchResult
	// Fallback is nil when the verdict was used. Otherwise it wraps ErrReasoningUnavailable,
	// ErrReasoningMalformed or ErrNoCandidates.
	Fallback error
}

// Reasoner asks a reasoning model to pick the best candidate.
type Reasoner struct {
	client  llm.Client
	tier    llm.ModelTier
	timeout time.Duration
	retry   retry.Config
	log     *zap.Logger
}

// Option configures a Reasoner.
type Option func(*Reasoner)

// WithTier sets the model tier used for reasoning.
func WithTier(tier llm.ModelTier) Option {
	return func(r *Reasoner) { r.tier = tier }
}

// WithTimeout bounds each reasoning attempt.
func WithTimeout(d time.Duration) Option {
	return func(r *Reasoner) { r.timeout = d }
}

// WithRetry sets the retry policy for transport failures.
func WithRetry(cfg retry.Config) Option {
	return func(r *Reasoner) { r.retry = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reasoner) { r.log = logger.OrNop(l) }
}

// NewReasoner creates a Reasoner. A nil client disables reasoning so every match falls back
// to embedding similarity.
func NewReasoner(client llm.Client, opts ...Option) *Reasoner {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 2

	r := &Reasoner{
		client:  client,
		tier:    llm.TierStandard,
		timeout: DefaultTimeout,
		retry:   cfg,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.retry.Logger = r.log
	return r
}

// Match selects a candidate for req. The returned error is non-nil only when ctx ends.
func (r *Reasoner) Match(ctx context.Context, req *types.JobRequest, candidates []types.MatchCandidate) (Outcome, error) {
	if len(candidates) == 0 {
		return Outcome{Result: types.NoMatch(ErrNoCandidates.Error()), Fallback: ErrNoCandidates}, nil
	}

	verdict, err := r.Propose(ctx, req, candidates)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		r.log.Warn("reasoning failed, using embedding similarity",
			zap.String(logger.FieldJobTitle, req.Title),
			zap.String(logger.FieldStage, "reason"),
			zap.Error(err))
		return Outcome{Result: EmbeddingOnly(candidates, err.Error()), Fallback: err}, nil
	}

	selected := candidates[verdict.SelectedIndex]
	reasoningConfidence := clamp01(verdict.Confidence)

	result := types.MatchResult{
		JobCode:             selected.JobCode,
		Title:               selected.Title,
		Reasoning:           verdict.Reasoning,
		Similarities:        verdict.Similarities,
		Differences:         verdict.Differences,
		MatchingMethod:      types.MethodHybridLLM,
		SemanticSimilarity:  selected.Similarity,
		ValidationScore:     selected.ValidationScore,
		ReasoningConfidence: &reasoningConfidence,
		Record:              selected.Record,
	}
	result.SetConfidence(FusedConfidence(selected.Similarity, selected.ValidationScore, selected.FamilyMatch, reasoningConfidence))
	return Outcome{Result: result}, nil
}

// Propose asks the reasoning model for a verdict. Transport failures are retried once with
// backoff; malformed responses are not retried.
func (r *Reasoner) Propose(ctx context.Context, req *types.JobRequest, candidates []types.MatchCandidate) (*Verdict, error) {
	if r.client == nil {
		return nil, fmt.Errorf("%w: no reasoning client configured", ErrReasoningUnavailable)
	}

	prompt, err := BuildPrompt(req, candidates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReasoningUnavailable, err)
	}

	raw, err := retry.DoWithResult(ctx, r.retry, func(ctx context.Context) (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return r.client.GenerateJSON(attemptCtx, prompt, r.tier)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReasoningUnavailable, err)
	}

	r.log.Debug("reasoning response",
		zap.String(logger.FieldModel, r.client.GetModel(r.tier)),
		zap.String("response", logger.TruncateForLog(raw, 500)))

	verdict, err := ParseVerdict(raw, len(candidates))
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, fmt.Errorf("%w: %v", ErrReasoningMalformed, err)
	}
	return verdict, nil
}

// BuildPrompt renders the selection prompt for req and the indexed candidate list.
func BuildPrompt(req *types.JobRequest, candidates []types.MatchCandidate) (string, error) {
	preamble, err := prompts.Render("matching.json", "select-reference-job", map[string]string{
		"Title":       req.Title,
		"Family":      orNotSpecified(req.JobFamily),
		"Level":       orNotSpecified(req.InternalGrade),
		"Skills":      orNotSpecified(strings.Join(req.Skills, ", ")),
		"Description": logger.TruncateForLog(req.Description, 4*maxDescriptionChars),
	})
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(candidates))
	for i, c := range candidates {
		var family, level, description string
		if c.Record != nil {
			family = c.Record.Family
			level = c.Record.CareerLevel
			description = c.Record.Description
		}
		line, err := prompts.Render("matching.json", "candidate-line", map[string]string{
			"Index":        strconv.Itoa(i),
			"JobCode":      c.JobCode,
			"Title":        c.Title,
			"Family":       family,
			"Level":        level,
			"Similarity":   strconv.FormatFloat(c.Similarity, 'f', 3, 64),
			"SkillOverlap": strconv.FormatFloat(c.SkillOverlap, 'f', 2, 64),
			"Description":  logger.TruncateForLog(description, maxDescriptionChars),
		})
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}

	return llm.BuildStructuredPrompt(llm.MatchVerdictSchema(preamble), strings.Join(lines, "\n")), nil
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not specified"
	}
	return s
}
