package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/orderstack/order-agent/internal/api"
	"github.com/orderstack/order-agent/internal/models"
	"github.com/orderstack/order-agent/internal/utils"
)

const historySaveTimeout = 5 * time.Second

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, query string) models.Response
}

// RunHistory persists and lists pipeline runs.
type RunHistory interface {
	SaveRun(ctx context.Context, rec models.RunRecord) error
	ListRuns(ctx context.Context, req models.ListRunsRequest) (models.ListRunsResponse, error)
}

// RawOrderSource looks up single unparsed orders at the provider.
type RawOrderSource interface {
	FetchRawOrder(ctx context.Context, orderID string) (string, error)
}

// StatsProvider exposes the trained scoring model's statistics.
type StatsProvider interface {
	Stats() models.ModelStats
	Accuracy() float64
}

// OrderService implements the OrderAgent gRPC service and backs the HTTP API.
type OrderService struct {
	api.UnimplementedOrderAgentServer

	logger    *slog.Logger
	runner    Runner
	history   RunHistory
	model     StatsProvider
	source    RawOrderSource
	latencies *utils.LatencyTracker
	now       func() time.Time
}

// NewOrderService constructs the service facade. history, model and source may be nil.
func NewOrderService(logger *slog.Logger, runner Runner, history RunHistory, model StatsProvider, source RawOrderSource) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{
		logger:    logger,
		runner:    runner,
		history:   history,
		model:     model,
		source:    source,
		latencies: utils.NewLatencyTracker(1024),
		now:       time.Now,
	}
}

// Query runs the pipeline for one natural-language query and records the run.
// Pipeline failures come back inside the response; the error return covers bad input
// and missing wiring only.
func (s *OrderService) Query(ctx context.Context, req models.QueryRequest) (models.Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return models.Response{}, fmt.Errorf("%w: query is required", utils.ErrInvalidRequest)
	}
	if s.runner == nil {
		return models.Response{}, fmt.Errorf("pipeline %w", utils.ErrNotConfigured)
	}

	start := s.now()
	resp := s.runner.Run(ctx, query)
	s.latencies.Observe(s.now().Sub(start))
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		summary := s.latencies.Summary()
		s.logger.Info("query latency",
			slog.Duration("p50", summary.P50),
			slog.Duration("p95", summary.P95),
			slog.Duration("p99", summary.P99),
			slog.Int("samples", summary.Samples))
	}

	s.record(ctx, query, resp)
	return resp, nil
}

// Stats returns the scoring model statistics.
func (s *OrderService) Stats(_ context.Context) (models.ModelStats, error) {
	if s.model == nil {
		return models.ModelStats{}, fmt.Errorf("scoring model %w", utils.ErrNotConfigured)
	}
	return s.model.Stats(), nil
}

// History lists recorded runs, newest first.
func (s *OrderService) History(ctx context.Context, req models.ListRunsRequest) (models.ListRunsResponse, error) {
	if s.history == nil {
		return models.ListRunsResponse{}, fmt.Errorf("run history %w", utils.ErrNotConfigured)
	}
	if req.PageSize < 0 || req.PageSize > 100 {
		return models.ListRunsResponse{}, fmt.Errorf("%w: page_size must be between 0 and 100", utils.ErrInvalidRequest)
	}
	return s.history.ListRuns(ctx, req)
}

// RawOrder returns the provider's unparsed line for one order id.
func (s *OrderService) RawOrder(ctx context.Context, orderID string) (models.RawOrder, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return models.RawOrder{}, fmt.Errorf("%w: order id is required", utils.ErrInvalidRequest)
	}
	if s.source == nil {
		return models.RawOrder{}, fmt.Errorf("orders source %w", utils.ErrNotConfigured)
	}
	line, err := s.source.FetchRawOrder(ctx, orderID)
	if err != nil {
		return models.RawOrder{}, err
	}
	return models.RawOrder{OrderID: orderID, RawOrder: line}, nil
}

// Health reports liveness, the loaded model's accuracy and recent query latency.
func (s *OrderService) Health(_ context.Context) models.HealthStatus {
	summary := s.LatencySummary()
	out := models.HealthStatus{
		Status:          "healthy",
		QueriesObserved: summary.Samples,
		LatencyP50Ms:    summary.P50.Milliseconds(),
		LatencyP95Ms:    summary.P95.Milliseconds(),
		LatencyP99Ms:    summary.P99.Milliseconds(),
	}
	if s.model != nil {
		out.ModelAccuracy = s.model.Accuracy()
	}
	return out
}

// LatencySummary returns the tracked query latency percentiles.
func (s *OrderService) LatencySummary() utils.LatencySummary {
	if s.latencies == nil {
		return utils.LatencySummary{}
	}
	return s.latencies.Summary()
}

// record saves the run without failing the caller; the caller's cancellation does not abort it.
func (s *OrderService) record(ctx context.Context, query string, resp models.Response) {
	if s.history == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historySaveTimeout)
	defer cancel()

	rec := models.RunRecord{
		RunID:        resp.RunID,
		Query:        query,
		Success:      resp.Success,
		Error:        resp.Error,
		TotalParsed:  resp.TotalParsed,
		TotalMatched: resp.TotalMatched,
		Response:     resp,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.history.SaveRun(saveCtx, rec); err != nil {
		s.logger.Warn("failed to persist run", slog.String("run_id", resp.RunID), slog.Any("error", err))
	}
}

// RunQuery serves OrderAgent/RunQuery.
func (s *OrderService) RunQuery(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	domainReq, err := api.FromStructQueryRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp, err := s.Query(ctx, domainReq)
	if err != nil {
		return nil, grpcError(err)
	}
	out, err := api.ToStructResponse(resp)
	if err != nil {
		s.logger.Error("encode query response failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

// GetModelStats serves OrderAgent/GetModelStats.
func (s *OrderService) GetModelStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	out, err := api.ToStructModelStats(stats)
	if err != nil {
		s.logger.Error("encode model stats failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode model stats")
	}
	return out, nil
}

// ListRuns serves OrderAgent/ListRuns.
func (s *OrderService) ListRuns(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	domainReq, err := api.FromStructListRunsRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp, err := s.History(ctx, domainReq)
	if err != nil {
		if !errors.Is(err, utils.ErrInvalidRequest) && !errors.Is(err, utils.ErrNotConfigured) {
			s.logger.Error("list runs failed", slog.Any("error", err))
			return nil, status.Error(codes.Internal, "failed to list runs")
		}
		return nil, grpcError(err)
	}
	out, err := api.ToStructListRunsResponse(resp)
	if err != nil {
		s.logger.Error("encode run history failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode run history")
	}
	return out, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, utils.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, utils.ErrNotConfigured):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, utils.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
