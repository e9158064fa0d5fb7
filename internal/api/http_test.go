package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orderstack/order-agent/internal/models"
	"github.com/orderstack/order-agent/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type queryServiceStub struct {
	lastQuery models.QueryRequest
	lastList  models.ListRunsRequest
	resp      models.Response
	queryErr  error
	statsErr  error
	listErr   error
	rawErr    error
	lastRawID string
}

func (s *queryServiceStub) Query(_ context.Context, req models.QueryRequest) (models.Response, error) {
	s.lastQuery = req
	return s.resp, s.queryErr
}

func (s *queryServiceStub) Stats(context.Context) (models.ModelStats, error) {
	if s.statsErr != nil {
		return models.ModelStats{}, s.statsErr
	}
	return models.ModelStats{Accuracy: 79.2, Coefficients: map[string]float64{"num_items": 0.4}}, nil
}

func (s *queryServiceStub) History(_ context.Context, req models.ListRunsRequest) (models.ListRunsResponse, error) {
	s.lastList = req
	return models.ListRunsResponse{}, s.listErr
}

func (s *queryServiceStub) Health(context.Context) models.HealthStatus {
	return models.HealthStatus{Status: "healthy", ModelAccuracy: 79.2}
}

func (s *queryServiceStub) RawOrder(_ context.Context, orderID string) (models.RawOrder, error) {
	s.lastRawID = orderID
	if s.rawErr != nil {
		return models.RawOrder{}, s.rawErr
	}
	return models.RawOrder{OrderID: orderID, RawOrder: "Order " + orderID + ": Buyer=Mike Turner"}, nil
}

func newTestRouter(stub *queryServiceStub) http.Handler {
	return NewRouter(stub, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	rec := serve(t, newTestRouter(&queryServiceStub{}), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body models.HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" || body.ModelAccuracy != 79.2 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestQueryEndpoint(t *testing.T) {
	stub := &queryServiceStub{resp: models.Response{
		RunID:              "run-1",
		Success:            true,
		Orders:             []models.Order{{OrderID: "1001", Buyer: "John Davis", State: "OH", Total: 742.1, Items: []string{"laptop"}}},
		TotalParsed:        4,
		TotalMatched:       1,
		ValidationWarnings: []models.ValidationWarning{},
		Predictions:        []models.Prediction{},
	}}
	rec := serve(t, newTestRouter(stub), http.MethodPost, "/api/query", `{"query":"orders from Ohio"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.lastQuery.Query != "orders from Ohio" {
		t.Fatalf("query not forwarded: %+v", stub.lastQuery)
	}
	var body models.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RunID != "run-1" || len(body.Orders) != 1 || body.TotalParsed != 4 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestQueryEndpointPipelineFailureIsStillOK(t *testing.T) {
	stub := &queryServiceStub{resp: models.Response{Success: false, Error: "Failed to fetch data after 3 attempts"}}
	rec := serve(t, newTestRouter(stub), http.MethodPost, "/api/query", `{"query":"x"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "after 3 attempts") {
		t.Fatalf("expected error message in body: %s", rec.Body.String())
	}
}

func TestQueryEndpointValidation(t *testing.T) {
	router := newTestRouter(&queryServiceStub{})

	rec := serve(t, router, http.MethodPost, "/api/query", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing query, got %d", rec.Code)
	}
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Details) != 1 || body.Details[0].Path != "Query" {
		t.Fatalf("expected Query detail, got %+v", body)
	}

	rec = serve(t, router, http.MethodPost, "/api/query", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestQueryEndpointErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: query is required", utils.ErrInvalidRequest), http.StatusBadRequest},
		{fmt.Errorf("pipeline %w", utils.ErrNotConfigured), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		stub := &queryServiceStub{queryErr: tc.err}
		rec := serve(t, newTestRouter(stub), http.MethodPost, "/api/query", `{"query":"x"}`)
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestStatsEndpoint(t *testing.T) {
	rec := serve(t, newTestRouter(&queryServiceStub{}), http.MethodGet, "/api/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body models.ModelStats
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Accuracy != 79.2 || body.Coefficients["num_items"] != 0.4 {
		t.Fatalf("unexpected stats: %+v", body)
	}

	rec = serve(t, newTestRouter(&queryServiceStub{statsErr: fmt.Errorf("scoring model %w", utils.ErrNotConfigured)}), http.MethodGet, "/api/stats", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRunsEndpointBindsQuery(t *testing.T) {
	stub := &queryServiceStub{}
	rec := serve(t, newTestRouter(stub), http.MethodGet, "/api/runs?only_fails=true&page_size=10&page_token=20&since=2026-01-02T03:04:05Z", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if !stub.lastList.OnlyFails || stub.lastList.PageSize != 10 || stub.lastList.PageToken != "20" || !stub.lastList.Since.Equal(want) {
		t.Fatalf("unexpected request: %+v", stub.lastList)
	}
	if !strings.Contains(rec.Body.String(), `"runs":[]`) {
		t.Fatalf("expected empty runs array, got %s", rec.Body.String())
	}

	rec = serve(t, newTestRouter(stub), http.MethodGet, "/api/runs?page_size=500", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized page, got %d", rec.Code)
	}
}

func TestRawOrderEndpoint(t *testing.T) {
	stub := &queryServiceStub{}
	rec := serve(t, newTestRouter(stub), http.MethodGet, "/api/orders/1003", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body models.RawOrder
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stub.lastRawID != "1003" || body.RawOrder != "Order 1003: Buyer=Mike Turner" {
		t.Fatalf("unexpected body: %+v", body)
	}

	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: order id is required", utils.ErrInvalidRequest), http.StatusBadRequest},
		{fmt.Errorf("%w: 4242", utils.ErrOrderNotFound), http.StatusNotFound},
		{fmt.Errorf("orders source %w", utils.ErrNotConfigured), http.StatusServiceUnavailable},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := serve(t, newTestRouter(&queryServiceStub{rawErr: tc.err}), http.MethodGet, "/api/orders/4242", "")
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := serve(t, newTestRouter(&queryServiceStub{}), http.MethodOptions, "/api/query", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
}

func TestHTTPServerLifecycle(t *testing.T) {
	srv, err := NewHTTPServer("127.0.0.1:0", newTestRouter(&queryServiceStub{}))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	resp, err := http.Get("http://" + srv.Address() + "/api/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("start returned %v", err)
	}
}
