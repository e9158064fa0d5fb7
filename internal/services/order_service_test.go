package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/orderstack/order-agent/internal/models"
	"github.com/orderstack/order-agent/internal/utils"
)

type runnerStub struct {
	queries []string
	resp    models.Response
}

func (r *runnerStub) Run(_ context.Context, query string) models.Response {
	r.queries = append(r.queries, query)
	return r.resp
}

type historyStub struct {
	saved   []models.RunRecord
	saveErr error
	listReq models.ListRunsRequest
	listErr error
}

func (h *historyStub) SaveRun(ctx context.Context, rec models.RunRecord) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	h.saved = append(h.saved, rec)
	return h.saveErr
}

func (h *historyStub) ListRuns(_ context.Context, req models.ListRunsRequest) (models.ListRunsResponse, error) {
	h.listReq = req
	if h.listErr != nil {
		return models.ListRunsResponse{}, h.listErr
	}
	return models.ListRunsResponse{Runs: h.saved}, nil
}

type statsStub struct{}

func (statsStub) Stats() models.ModelStats {
	return models.ModelStats{Accuracy: 81.5, TrainingSamples: 4000, TestSamples: 1000}
}

func (statsStub) Accuracy() float64 { return 81.5 }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueryRunsPipelineAndRecordsHistory(t *testing.T) {
	runner := &runnerStub{resp: models.Response{RunID: "run-1", Success: true, TotalParsed: 3, TotalMatched: 2}}
	history := &historyStub{}
	service := NewOrderService(quietLogger(), runner, history, statsStub{}, nil)

	resp, err := service.Query(context.Background(), models.QueryRequest{Query: "  orders from Ohio  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.RunID != "run-1" || !resp.Success {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(runner.queries) != 1 || runner.queries[0] != "orders from Ohio" {
		t.Fatalf("expected trimmed query, got %v", runner.queries)
	}
	if len(history.saved) != 1 {
		t.Fatalf("expected one saved run, got %d", len(history.saved))
	}
	rec := history.saved[0]
	if rec.RunID != "run-1" || rec.Query != "orders from Ohio" || rec.TotalMatched != 2 || rec.CreatedAt.IsZero() {
		t.Fatalf("unexpected run record: %+v", rec)
	}
}

func TestQueryHistoryFailureIsNotFatal(t *testing.T) {
	runner := &runnerStub{resp: models.Response{RunID: "run-2", Success: false, Error: "Failed to fetch data after 3 attempts"}}
	history := &historyStub{saveErr: errors.New("db down")}
	service := NewOrderService(quietLogger(), runner, history, nil, nil)

	resp, err := service.Query(context.Background(), models.QueryRequest{Query: "anything"})
	if err != nil {
		t.Fatalf("history failure must not fail the query: %v", err)
	}
	if resp.Success || resp.Error == "" {
		t.Fatalf("expected pipeline failure passed through, got %+v", resp)
	}
}

func TestQueryRecordsEvenWhenCallerCancelled(t *testing.T) {
	runner := &runnerStub{resp: models.Response{RunID: "run-3"}}
	history := &historyStub{}
	service := NewOrderService(quietLogger(), runner, history, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := service.Query(ctx, models.QueryRequest{Query: "q"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history.saved) != 1 {
		t.Fatalf("expected run saved despite cancelled caller")
	}
}

func TestQueryRejectsBlankQuery(t *testing.T) {
	runner := &runnerStub{}
	service := NewOrderService(quietLogger(), runner, nil, nil, nil)

	_, err := service.Query(context.Background(), models.QueryRequest{Query: "   "})
	if !errors.Is(err, utils.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if len(runner.queries) != 0 {
		t.Fatalf("pipeline must not run for blank query")
	}
}

func TestQueryWithoutRunner(t *testing.T) {
	service := NewOrderService(quietLogger(), nil, nil, nil, nil)
	if _, err := service.Query(context.Background(), models.QueryRequest{Query: "q"}); !errors.Is(err, utils.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestHealthReportsModelAccuracy(t *testing.T) {
	service := NewOrderService(quietLogger(), &runnerStub{}, nil, statsStub{}, nil)
	health := service.Health(context.Background())
	if health.Status != "healthy" || health.ModelAccuracy != 81.5 {
		t.Fatalf("unexpected health: %+v", health)
	}

	bare := NewOrderService(quietLogger(), nil, nil, nil, nil)
	if h := bare.Health(context.Background()); h.Status != "healthy" || h.ModelAccuracy != 0 {
		t.Fatalf("unexpected health without model: %+v", h)
	}
}

func TestLatencyTracked(t *testing.T) {
	service := NewOrderService(quietLogger(), &runnerStub{}, nil, nil, nil)
	tick := time.Unix(0, 0)
	service.now = func() time.Time {
		tick = tick.Add(50 * time.Millisecond)
		return tick
	}
	for i := 0; i < 3; i++ {
		if _, err := service.Query(context.Background(), models.QueryRequest{Query: "q"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	summary := service.LatencySummary()
	if summary.Samples != 3 || summary.P50 != 50*time.Millisecond || summary.P95 != 50*time.Millisecond {
		t.Fatalf("unexpected latency summary: %+v", summary)
	}
	health := service.Health(context.Background())
	if health.QueriesObserved != 3 || health.LatencyP95Ms != 50 || health.LatencyP99Ms != 50 {
		t.Fatalf("health should carry the latency summary: %+v", health)
	}
}

type rawSourceStub struct {
	lines map[string]string
	asked []string
}

func (r *rawSourceStub) FetchRawOrder(_ context.Context, orderID string) (string, error) {
	r.asked = append(r.asked, orderID)
	line, ok := r.lines[orderID]
	if !ok {
		return "", fmt.Errorf("%w: %s", utils.ErrOrderNotFound, orderID)
	}
	return line, nil
}

func TestRawOrderLooksUpProvider(t *testing.T) {
	source := &rawSourceStub{lines: map[string]string{"1003": "Order 1003: Buyer=Mike Turner"}}
	service := NewOrderService(quietLogger(), nil, nil, nil, source)

	got, err := service.RawOrder(context.Background(), " 1003 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.OrderID != "1003" || got.RawOrder != "Order 1003: Buyer=Mike Turner" {
		t.Fatalf("unexpected raw order: %+v", got)
	}
	if _, err := service.RawOrder(context.Background(), "4242"); !errors.Is(err, utils.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := service.RawOrder(context.Background(), "  "); !errors.Is(err, utils.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if len(source.asked) != 2 {
		t.Fatalf("blank ids must not reach the provider: %v", source.asked)
	}

	bare := NewOrderService(quietLogger(), nil, nil, nil, nil)
	if _, err := bare.RawOrder(context.Background(), "1003"); !errors.Is(err, utils.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if status.Code(grpcError(fmt.Errorf("%w: 1", utils.ErrOrderNotFound))) != codes.NotFound {
		t.Fatalf("missing orders should map to NotFound")
	}
}

func TestRunQueryGRPC(t *testing.T) {
	runner := &runnerStub{resp: models.Response{RunID: "run-9", Success: true, Orders: []models.Order{{OrderID: "1001", Buyer: "John Davis", State: "OH", Total: 742.1, Items: []string{"laptop"}}}}}
	service := NewOrderService(quietLogger(), runner, nil, nil, nil)

	req, err := structpb.NewStruct(map[string]any{"query": "Ohio orders"})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	out, err := service.RunQuery(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields := out.GetFields()
	if fields["run_id"].GetStringValue() != "run-9" || !fields["success"].GetBoolValue() {
		t.Fatalf("unexpected payload: %v", out)
	}
	orders := fields["orders"].GetListValue().GetValues()
	if len(orders) != 1 || orders[0].GetStructValue().GetFields()["order_id"].GetStringValue() != "1001" {
		t.Fatalf("unexpected orders: %v", orders)
	}
}

func TestRunQueryGRPCInvalidArgument(t *testing.T) {
	service := NewOrderService(quietLogger(), &runnerStub{}, nil, nil, nil)

	if _, err := service.RunQuery(context.Background(), nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for nil request, got %v", err)
	}
	empty, _ := structpb.NewStruct(map[string]any{"query": ""})
	if _, err := service.RunQuery(context.Background(), empty); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for blank query, got %v", err)
	}
}

func TestGetModelStatsGRPC(t *testing.T) {
	service := NewOrderService(quietLogger(), nil, nil, statsStub{}, nil)
	out, err := service.GetModelStats(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.GetFields()["accuracy"].GetNumberValue() != 81.5 {
		t.Fatalf("unexpected stats: %v", out)
	}

	bare := NewOrderService(quietLogger(), nil, nil, nil, nil)
	if _, err := bare.GetModelStats(context.Background(), &emptypb.Empty{}); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected failed precondition, got %v", err)
	}
}

func TestListRunsGRPC(t *testing.T) {
	history := &historyStub{saved: []models.RunRecord{{RunID: "r1", Query: "q", Success: false}}}
	service := NewOrderService(quietLogger(), nil, history, nil, nil)

	req, _ := structpb.NewStruct(map[string]any{"only_fails": true, "page_size": 5})
	out, err := service.ListRuns(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !history.listReq.OnlyFails || history.listReq.PageSize != 5 {
		t.Fatalf("request not forwarded: %+v", history.listReq)
	}
	runs := out.GetFields()["runs"].GetListValue().GetValues()
	if len(runs) != 1 || runs[0].GetStructValue().GetFields()["run_id"].GetStringValue() != "r1" {
		t.Fatalf("unexpected runs: %v", out)
	}

	history.listErr = errors.New("boom")
	if _, err := service.ListRuns(context.Background(), req); status.Code(err) != codes.Internal {
		t.Fatalf("expected internal error, got %v", err)
	}

	bad, _ := structpb.NewStruct(map[string]any{"since": "yesterday"})
	if _, err := service.ListRuns(context.Background(), bad); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}
