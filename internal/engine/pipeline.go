package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/orderstack/order-agent/internal/extractors"
	"github.com/orderstack/order-agent/internal/metrics"
	"github.com/orderstack/order-agent/internal/models"
	"github.com/orderstack/order-agent/internal/repo"
	"github.com/orderstack/order-agent/internal/utils"
)

// Fetcher retrieves the raw order batch.
type Fetcher interface {
	FetchRawOrders(ctx context.Context) (repo.RawBatch, error)
}

// OrderExtractor turns raw text into candidate orders and query filters.
type OrderExtractor interface {
	Extract(ctx context.Context, query string, lines []string, rawText string) (extractors.Result, error)
}

// Stage names a pipeline step.
type Stage string

const (
	StageFetching   Stage = "fetching"
	StageExtracting Stage = "extracting"
	StageValidating Stage = "validating"
	StageEnriching  Stage = "enriching"
	StageDone       Stage = "done"
)

type stageFunc func(ctx context.Context, state models.PipelineState) models.StateDelta

// Pipeline runs fetch, extract, validate, filter+enrich and respond in fixed order.
// A Pipeline holds no per-run state and is safe for concurrent use.
type Pipeline struct {
	logger    *slog.Logger
	fetcher   Fetcher
	extractor OrderExtractor
	validator *Validator
	enricher  *Enricher
	now       func() time.Time
	newID     func() string
}

// NewPipeline constructs a pipeline. validator and enricher default to fresh instances
// (the default enricher has no scorer).
func NewPipeline(logger *slog.Logger, fetcher Fetcher, extractor OrderExtractor, validator *Validator, enricher *Enricher) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if validator == nil {
		validator = NewValidator(logger)
	}
	if enricher == nil {
		enricher = NewEnricher(nil, logger)
	}
	return &Pipeline{
		logger:    logger,
		fetcher:   fetcher,
		extractor: extractor,
		validator: validator,
		enricher:  enricher,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// Run executes one pipeline run for query. It always returns a response; failures are
// reported through Success and Error, never as a Go error.
func (p *Pipeline) Run(ctx context.Context, query string) models.Response {
	start := p.now()
	runID := p.newID()
	logger := p.logger.With(slog.String("run_id", runID))

	stages := []struct {
		name Stage
		fn   stageFunc
	}{
		{StageFetching, p.fetch},
		{StageExtracting, p.extract},
		{StageValidating, p.validate},
		{StageEnriching, p.enrich},
		{StageDone, p.respond},
	}

	state := models.NewPipelineState(query)
	for _, st := range stages {
		logger.Debug("entering stage", slog.String("stage", string(st.name)))
		state = state.Apply(p.runStage(ctx, logger, st.name, st.fn, state))
	}

	if state.Response == nil {
		state = state.Apply(p.respond(ctx, state))
	}
	resp := *state.Response
	resp.RunID = runID
	elapsed := p.now().Sub(start)
	resp.ElapsedMs = elapsed.Milliseconds()

	metrics.ObserveRun(elapsed, runOutcome(state.Err))
	logger.Info("pipeline run complete",
		slog.Bool("success", resp.Success),
		slog.Int("total_parsed", resp.TotalParsed),
		slog.Int("total_matched", resp.TotalMatched),
		slog.Duration("elapsed", elapsed))
	return resp
}

// runStage invokes fn and converts a panic into a stage error so respond still runs.
func (p *Pipeline) runStage(ctx context.Context, logger *slog.Logger, name Stage, fn stageFunc, state models.PipelineState) (delta models.StateDelta) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline stage panicked",
				slog.String("stage", string(name)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			delta = models.StateDelta{Err: utils.NewAppError(string(name), "stage panicked", fmt.Errorf("%v", r))}
		}
	}()
	return fn(ctx, state)
}

func (p *Pipeline) fetch(ctx context.Context, state models.PipelineState) models.StateDelta {
	if state.Err != nil {
		return models.StateDelta{}
	}
	if p.fetcher == nil {
		return models.StateDelta{Err: utils.NewAppError("fetch", "order source not configured", utils.ErrFetchFailed)}
	}
	batch, err := p.fetcher.FetchRawOrders(ctx)
	if err != nil {
		return models.StateDelta{Err: err}
	}
	lines := batch.Lines
	if lines == nil {
		lines = []string{}
	}
	text := batch.Text
	return models.StateDelta{RawText: &text, RawLines: lines}
}

func (p *Pipeline) extract(ctx context.Context, state models.PipelineState) models.StateDelta {
	if state.Err != nil {
		return models.StateDelta{}
	}
	if p.extractor == nil {
		return models.StateDelta{Err: utils.NewAppError("extract", "extraction capability not configured", utils.ErrExtractionFailed)}
	}
	res, err := p.extractor.Extract(ctx, state.Query, state.RawLines, state.RawText)
	if err != nil {
		return models.StateDelta{Err: err}
	}
	candidates := res.Orders
	if candidates == nil {
		candidates = []models.Order{}
	}
	filters := res.Filters.Normalize()
	p.logger.Info("extraction stage complete", slog.Int("candidates", len(candidates)), slog.Any("filters", filters))
	return models.StateDelta{Candidates: candidates, Filters: &filters}
}

func (p *Pipeline) validate(_ context.Context, state models.PipelineState) models.StateDelta {
	if state.Err != nil {
		return models.StateDelta{}
	}
	validated, warnings := p.validator.Validate(state.RawText, state.Candidates)
	return models.StateDelta{Validated: validated, Warnings: warnings}
}

func (p *Pipeline) enrich(_ context.Context, state models.PipelineState) models.StateDelta {
	if state.Err != nil {
		return models.StateDelta{}
	}
	matched := Filter(state.Validated, state.Filters)
	p.logger.Info("filters applied",
		slog.Int("matched", len(matched)),
		slog.Int("validated", len(state.Validated)),
		slog.Any("filters", state.Filters))
	return models.StateDelta{Matched: matched, Predictions: p.enricher.Enrich(matched)}
}

// respond builds the terminal response for both outcomes.
func (p *Pipeline) respond(_ context.Context, state models.PipelineState) models.StateDelta {
	warnings := state.Warnings
	if warnings == nil {
		warnings = []models.ValidationWarning{}
	}
	if state.Err != nil {
		return models.StateDelta{Response: &models.Response{
			Success:            false,
			Error:              failureMessage(state.Err),
			Orders:             []models.Order{},
			FiltersApplied:     models.FilterCriteria{},
			ValidationWarnings: warnings,
			Predictions:        []models.Prediction{},
		}}
	}
	return models.StateDelta{Response: &models.Response{
		Success:            true,
		Orders:             models.CloneOrders(state.Matched),
		TotalParsed:        len(state.Validated),
		TotalMatched:       len(state.Matched),
		FiltersApplied:     state.Filters,
		ValidationWarnings: warnings,
		Predictions:        state.Predictions,
	}}
}

func failureMessage(err error) string {
	if errors.Is(err, utils.ErrNoOrderList) {
		return utils.ErrNoOrderList.Error()
	}
	if msg := utils.Message(err); msg != "" {
		return msg
	}
	return fmt.Sprintf("pipeline failed: %v", err)
}

func runOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, utils.ErrExtractionTimeout):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeError
	}
}
