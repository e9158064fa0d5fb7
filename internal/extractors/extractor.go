package extractors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/orderstack/order-agent/internal/cache"
	"github.com/orderstack/order-agent/internal/metrics"
	"github.com/orderstack/order-agent/internal/models"
	"github.com/orderstack/order-agent/internal/utils"
)

// Completer is the external extraction capability: one prompt in, one JSON document out.
type Completer interface {
	Complete(ctx context.Context, prompt string, schemaName string, schema json.RawMessage) (string, error)
}

// ExtractorConfig tunes chunking and call behaviour.
type ExtractorConfig struct {
	CallTimeout       time.Duration
	ChunkThreshold    int
	Concurrency       int
	RequestsPerSecond float64
	CacheTTL          time.Duration
	CacheNamespace    string
}

// Extractor turns raw order text into candidate orders and query filters.
type Extractor struct {
	completer Completer
	cache     cache.Provider
	limiter   *rate.Limiter
	cfg       ExtractorConfig
	logger    *slog.Logger
}

// NewExtractor wires an extractor. A nil cache disables result caching.
func NewExtractor(completer Completer, cfg ExtractorConfig, provider cache.Provider, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 120 * time.Second
	}
	if cfg.ChunkThreshold <= 0 {
		cfg.ChunkThreshold = DefaultChunkThreshold
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.CacheNamespace == "" {
		cfg.CacheNamespace = "order-agent:extract"
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Concurrency
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Extractor{
		completer: completer,
		cache:     provider,
		limiter:   limiter,
		cfg:       cfg,
		logger:    logger,
	}
}

type chunkResult struct {
	res Result
	err error
}

// Extract parses lines (joined as rawText) for query. Oversized input is partitioned and
// each chunk is extracted independently; failed chunks contribute nothing. Filters come
// from the first chunk only. The call fails when every chunk fails.
func (e *Extractor) Extract(ctx context.Context, query string, lines []string, rawText string) (Result, error) {
	if e == nil || e.completer == nil {
		return Result{}, utils.NewAppError("extract", "extraction capability not configured", utils.ErrExtractionFailed)
	}

	estimated := EstimateTokens(rawText)
	e.logger.Info("extracting orders", slog.Int("estimated_tokens", estimated), slog.Int("lines", len(lines)))

	chunks := Partition(lines, rawText, e.cfg.ChunkThreshold)
	if len(chunks) <= 1 {
		res, err := e.extractOne(ctx, query, rawText, nil)
		if err != nil {
			e.logger.Error("extraction failed", slog.Any("error", err))
			return Result{}, utils.NewAppError("extract", extractionMessage(err), fmt.Errorf("%w: %w", utils.ErrExtractionFailed, err))
		}
		e.logger.Info("extracted orders", slog.Int("orders", len(res.Orders)))
		return res, nil
	}

	e.logger.Info("chunking raw orders",
		slog.Int("lines", len(lines)),
		slog.Int("chunks", len(chunks)),
		slog.Int("lines_per_chunk", len(chunks[0])))

	results := make([]chunkResult, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, chunk := range chunks {
		pos := &ChunkPosition{Index: i, Total: len(chunks)}
		text := strings.Join(chunk, "\n")
		g.Go(func() error {
			res, err := e.extractOne(gctx, query, text, pos)
			results[pos.Index] = chunkResult{res: res, err: err}
			if err != nil {
				e.logger.Error("chunk extraction failed",
					slog.Int("chunk", pos.Index+1),
					slog.Int("chunks", pos.Total),
					slog.Any("error", err))
			}
			// Chunk failures are tolerated; never cancel siblings.
			return nil
		})
	}
	_ = g.Wait()

	merged := Result{Orders: []models.Order{}}
	succeeded := 0
	var lastErr error
	for i, r := range results {
		if r.err != nil {
			lastErr = r.err
			continue
		}
		succeeded++
		merged.Orders = append(merged.Orders, r.res.Orders...)
		if i == 0 {
			merged.Filters = r.res.Filters
		}
	}
	if succeeded == 0 {
		return Result{}, utils.NewAppError("extract",
			"LLM failed to parse any orders from chunked text",
			fmt.Errorf("%w: %w", utils.ErrExtractionFailed, lastErr))
	}
	if results[0].err != nil {
		e.logger.Warn("first chunk failed, query filters unavailable")
	}

	e.logger.Info("extracted orders across chunks",
		slog.Int("orders", len(merged.Orders)),
		slog.Int("chunks", len(chunks)),
		slog.Int("failed_chunks", len(chunks)-succeeded))
	return merged, nil
}

// extractOne performs a single bounded extraction call, consulting the cache first.
func (e *Extractor) extractOne(ctx context.Context, query, text string, pos *ChunkPosition) (Result, error) {
	prompt := BuildPrompt(query, text, pos)
	key := e.cacheKey(prompt)

	if cached, ok := e.lookup(ctx, key); ok {
		metrics.ObserveExtractionChunk(metrics.OutcomeSuccess)
		return cached, nil
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			metrics.ObserveExtractionChunk(metrics.OutcomeError)
			return Result{}, fmt.Errorf("%w: %v", utils.ErrExtractionCall, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	content, err := e.completer.Complete(callCtx, prompt, SchemaName, ResponseSchema)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			metrics.ObserveExtractionChunk(metrics.OutcomeTimeout)
			return Result{}, fmt.Errorf("%w after %s", utils.ErrExtractionTimeout, e.cfg.CallTimeout)
		}
		metrics.ObserveExtractionChunk(metrics.OutcomeError)
		return Result{}, fmt.Errorf("%w: %v", utils.ErrExtractionCall, err)
	}

	res, err := DecodeResult(content)
	if err != nil {
		metrics.ObserveExtractionChunk(metrics.OutcomeError)
		return Result{}, fmt.Errorf("%w: %v", utils.ErrExtractionCall, err)
	}
	for _, reason := range res.Skipped {
		e.logger.Warn("skipped undecodable order", slog.String("reason", reason))
	}
	metrics.ObserveExtractionChunk(metrics.OutcomeSuccess)
	e.store(ctx, key, res)
	return res, nil
}

func (e *Extractor) cacheKey(prompt string) string {
	return cache.Key(e.cfg.CacheNamespace, prompt)
}

func (e *Extractor) lookup(ctx context.Context, key string) (Result, bool) {
	if e.cfg.CacheTTL <= 0 {
		return Result{}, false
	}
	var res Result
	hit, err := cache.GetJSON(ctx, e.cache, key, &res)
	if err != nil {
		e.logger.Warn("extraction cache read failed", slog.String("key", key), slog.Any("error", err))
		return Result{}, false
	}
	if hit {
		e.logger.Debug("extraction cache hit", slog.String("key", key))
	}
	return res, hit
}

func (e *Extractor) store(ctx context.Context, key string, res Result) {
	if e.cfg.CacheTTL <= 0 {
		return
	}
	if err := cache.SetJSON(ctx, e.cache, key, res, e.cfg.CacheTTL); err != nil {
		e.logger.Warn("extraction cache write failed", slog.Any("error", err))
	}
}

func extractionMessage(err error) string {
	if errors.Is(err, utils.ErrExtractionTimeout) {
		return "LLM parsing timed out"
	}
	return "LLM parsing failed"
}
