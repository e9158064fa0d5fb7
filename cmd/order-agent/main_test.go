package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/orderstack/order-agent/internal/engine"
	"github.com/orderstack/order-agent/internal/extractors"
	"github.com/orderstack/order-agent/internal/models"
	"github.com/orderstack/order-agent/internal/repo"
	"github.com/orderstack/order-agent/internal/utils"
)

type stubFetcher struct {
	batch repo.RawBatch
	err   error
}

func (s stubFetcher) FetchRawOrders(context.Context) (repo.RawBatch, error) { return s.batch, s.err }

type stubExtractor struct {
	result extractors.Result
}

func (s stubExtractor) Extract(context.Context, string, []string, string) (extractors.Result, error) {
	return s.result, nil
}

func TestLogOutputUsesStderrForOneShot(t *testing.T) {
	if logOutput("orders in ohio") != os.Stderr {
		t.Fatalf("one-shot runs must log to stderr")
	}
	if logOutput("") != os.Stdout {
		t.Fatalf("server mode logs to stdout")
	}
}

func TestRunOnceWritesOnlyJSONToOutput(t *testing.T) {
	line := "Order 1001: Buyer=John Davis, Location=Columbus, OH, Total=$742.10, Items: laptop"
	var logs, out bytes.Buffer
	logger := utils.NewLoggerTo(&logs, "info", true)
	pipeline := engine.NewPipeline(logger,
		stubFetcher{batch: repo.RawBatch{Lines: []string{line}, Text: line}},
		stubExtractor{result: extractors.Result{Orders: []models.Order{
			{OrderID: "1001", Buyer: "John Davis", City: "Columbus", State: "OH", Total: 742.10, Items: []string{"laptop"}},
		}}},
		nil, nil)

	if code := runOnce(pipeline, "all orders", &out, logger); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	var resp models.Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("output is not a single JSON document: %v\n%s", err, out.String())
	}
	if !resp.Success || len(resp.Orders) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if logs.Len() == 0 || strings.Contains(out.String(), `"level"`) {
		t.Fatalf("log records must go to the logger, not the output")
	}
}

func TestRunOnceFailureExitsNonZero(t *testing.T) {
	var out bytes.Buffer
	logger := utils.NewLoggerTo(&bytes.Buffer{}, "error", false)
	pipeline := engine.NewPipeline(logger, stubFetcher{err: errors.New("provider down")}, stubExtractor{}, nil, nil)

	if code := runOnce(pipeline, "all orders", &out, logger); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	var resp models.Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil || resp.Success || resp.Error == "" {
		t.Fatalf("expected failure response, got %+v (err %v)", resp, err)
	}
}
