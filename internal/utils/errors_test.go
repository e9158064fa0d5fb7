package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppErrorUnwrapsKind(t *testing.T) {
	err := NewAppError("fetch", "after 3 attempts", fmt.Errorf("%w: connection refused", ErrFetchFailed))
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed in chain, got %v", err)
	}
	if got := err.Error(); got != "fetch: after 3 attempts: failed to fetch data: connection refused" {
		t.Fatalf("unexpected error text: %s", got)
	}
}

func TestMessageDropsOperation(t *testing.T) {
	err := NewAppError("extract", "no chunk produced orders", ErrExtractionFailed)
	if got := Message(err); got != "no chunk produced orders: extraction failed" {
		t.Fatalf("unexpected message: %s", got)
	}
	if got := Message(errors.New("plain")); got != "plain" {
		t.Fatalf("unexpected plain message: %s", got)
	}
	if Message(nil) != "" {
		t.Fatalf("expected empty message for nil error")
	}
}
