package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/orderstack/order-agent/internal/models"
)

// FromStructQueryRequest maps a RunQuery payload into a domain QueryRequest.
func FromStructQueryRequest(req *structpb.Struct) (models.QueryRequest, error) {
	if req == nil {
		return models.QueryRequest{}, fmt.Errorf("request is nil")
	}
	field, ok := req.GetFields()["query"]
	if !ok {
		return models.QueryRequest{}, fmt.Errorf("query is required")
	}
	if _, isString := field.GetKind().(*structpb.Value_StringValue); !isString {
		return models.QueryRequest{}, fmt.Errorf("query must be a string")
	}
	query := strings.TrimSpace(field.GetStringValue())
	if query == "" {
		return models.QueryRequest{}, fmt.Errorf("query is required")
	}
	return models.QueryRequest{Query: query}, nil
}

// FromStructListRunsRequest maps a ListRuns payload into a domain request. All fields are optional.
func FromStructListRunsRequest(req *structpb.Struct) (models.ListRunsRequest, error) {
	var out models.ListRunsRequest
	if req == nil {
		return out, nil
	}
	fields := req.GetFields()
	if v, ok := fields["since"]; ok && v.GetStringValue() != "" {
		since, err := time.Parse(time.RFC3339, v.GetStringValue())
		if err != nil {
			return out, fmt.Errorf("since must be RFC3339: %w", err)
		}
		out.Since = since
	}
	if v, ok := fields["only_fails"]; ok {
		out.OnlyFails = v.GetBoolValue()
	}
	if v, ok := fields["page_size"]; ok {
		size := v.GetNumberValue()
		if size < 0 || size > 100 || size != float64(int(size)) {
			return out, fmt.Errorf("page_size must be an integer between 0 and 100")
		}
		out.PageSize = int(size)
	}
	if v, ok := fields["page_token"]; ok {
		out.PageToken = v.GetStringValue()
	}
	return out, nil
}

// ToStructResponse converts a pipeline response into its Struct form.
func ToStructResponse(resp models.Response) (*structpb.Struct, error) {
	return toStruct(resp)
}

// ToStructModelStats converts model statistics into their Struct form.
func ToStructModelStats(stats models.ModelStats) (*structpb.Struct, error) {
	return toStruct(stats)
}

// ToStructListRunsResponse converts run history into its Struct form.
func ToStructListRunsResponse(resp models.ListRunsResponse) (*structpb.Struct, error) {
	if resp.Runs == nil {
		resp.Runs = []models.RunRecord{}
	}
	return toStruct(resp)
}

// toStruct round-trips v through its JSON encoding so Struct payloads match the HTTP bodies.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return structpb.NewStruct(fields)
}
