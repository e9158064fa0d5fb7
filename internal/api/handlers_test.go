package api

import (
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/orderstack/order-agent/internal/models"
)

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("build struct: %v", err)
	}
	return s
}

func TestFromStructQueryRequest(t *testing.T) {
	req, err := FromStructQueryRequest(mustStruct(t, map[string]any{"query": "  orders from Ohio "}))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if req.Query != "orders from Ohio" {
		t.Fatalf("unexpected query: %q", req.Query)
	}

	for _, fields := range []map[string]any{{}, {"query": "   "}, {"query": 42.0}} {
		if _, err := FromStructQueryRequest(mustStruct(t, fields)); err == nil {
			t.Fatalf("expected error for %v", fields)
		}
	}
	if _, err := FromStructQueryRequest(nil); err == nil {
		t.Fatalf("expected error for nil request")
	}
}

func TestFromStructListRunsRequest(t *testing.T) {
	req, err := FromStructListRunsRequest(mustStruct(t, map[string]any{
		"since":      "2026-03-01T00:00:00Z",
		"only_fails": true,
		"page_size":  10.0,
		"page_token": "20",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.Since.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) || !req.OnlyFails || req.PageSize != 10 || req.PageToken != "20" {
		t.Fatalf("unexpected request: %+v", req)
	}

	if _, err := FromStructListRunsRequest(mustStruct(t, map[string]any{"since": "yesterday"})); err == nil {
		t.Fatalf("expected since parse error")
	}
	if _, err := FromStructListRunsRequest(mustStruct(t, map[string]any{"page_size": 2.5})); err == nil {
		t.Fatalf("expected page_size error")
	}
}

func TestToStructResponse(t *testing.T) {
	state := "OH"
	resp := models.Response{
		RunID:          "run-1",
		Success:        true,
		Orders:         []models.Order{{OrderID: "1001", Buyer: "John Davis", State: "OH", Total: 742.1, Items: []string{"laptop"}}},
		TotalParsed:    5,
		TotalMatched:   1,
		FiltersApplied: models.FilterCriteria{State: &state},
		Predictions: []models.Prediction{{
			OrderID: "1001", ReorderProbability: 0.81, Label: models.LabelLikely,
		}},
		ValidationWarnings: []models.ValidationWarning{},
	}

	s, err := ToStructResponse(resp)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	m := s.AsMap()
	if m["run_id"] != "run-1" || m["success"] != true || m["total_matched"] != 1.0 {
		t.Fatalf("unexpected top-level fields: %v", m)
	}
	filters := m["filters_applied"].(map[string]any)
	if filters["state"] != "OH" {
		t.Fatalf("expected state filter, got %v", filters)
	}
	if _, present := filters["min_total"]; present {
		t.Fatalf("inactive filters must be omitted: %v", filters)
	}
	preds := m["predictions"].([]any)
	if preds[0].(map[string]any)["prediction"] != "likely_reorder" {
		t.Fatalf("unexpected predictions: %v", preds)
	}
	if _, present := m["error"]; present {
		t.Fatalf("success response must not carry an error field")
	}
}

func TestToStructListRunsResponse(t *testing.T) {
	s, err := ToStructListRunsResponse(models.ListRunsResponse{})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	runs, ok := s.AsMap()["runs"].([]any)
	if !ok || len(runs) != 0 {
		t.Fatalf("expected empty runs list, got %v", s.AsMap())
	}
}
