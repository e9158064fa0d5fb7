package extractors

import (
	"fmt"
	"strings"
	"testing"
)

func makeLines(n, width int) []string {
	lines := make([]string, n)
	for i := range lines {
		prefix := fmt.Sprintf("Order %d: ", 1000+i)
		lines[i] = prefix + strings.Repeat("x", width-len(prefix))
	}
	return lines
}

func TestPartitionBelowThresholdReturnsInput(t *testing.T) {
	lines := makeLines(20, 90)
	text := strings.Join(lines, "\n")
	chunks := Partition(lines, text, DefaultChunkThreshold)
	if len(chunks) != 1 {
		t.Fatalf("expected single chunk, got %d", len(chunks))
	}
	if strings.Join(chunks[0], "\n") != text {
		t.Fatalf("single chunk must equal the input")
	}
}

func TestPartitionReassemblesInOrder(t *testing.T) {
	lines := makeLines(500, 100)
	text := strings.Join(lines, "\n")
	if EstimateTokens(text) <= DefaultChunkThreshold {
		t.Fatalf("fixture too small: %d tokens", EstimateTokens(text))
	}

	chunks := Partition(lines, text, DefaultChunkThreshold)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	var rebuilt []string
	for i, c := range chunks {
		if len(c) == 0 {
			t.Fatalf("chunk %d is empty", i)
		}
		if i < len(chunks)-1 && len(c) != len(chunks[0]) {
			t.Fatalf("only the last chunk may be smaller: chunk %d has %d lines", i, len(c))
		}
		rebuilt = append(rebuilt, c...)
	}
	if strings.Join(rebuilt, "\n") != text {
		t.Fatalf("chunks do not reproduce the original lines")
	}
}

func TestPartitionChunkSize(t *testing.T) {
	// 500 lines * 101 bytes (with newlines) ~ 12624 tokens -> ~25.2 tokens/line -> 158 lines per chunk.
	lines := makeLines(500, 100)
	text := strings.Join(lines, "\n")
	est := EstimateTokens(text)
	want := int(float64(DefaultChunkThreshold) / (float64(est) / 500))

	chunks := Partition(lines, text, DefaultChunkThreshold)
	if len(chunks[0]) != want {
		t.Fatalf("expected %d lines per chunk, got %d", want, len(chunks[0]))
	}
}

func TestPartitionOversizedLineGetsOwnChunk(t *testing.T) {
	lines := []string{strings.Repeat("a", 40000), strings.Repeat("b", 40000)}
	chunks := Partition(lines, strings.Join(lines, "\n"), DefaultChunkThreshold)
	if len(chunks) != 2 || len(chunks[0]) != 1 || len(chunks[1]) != 1 {
		t.Fatalf("expected one line per chunk, got %v chunk sizes", len(chunks))
	}
}

func TestPartitionEmptyLines(t *testing.T) {
	chunks := Partition(nil, strings.Repeat("z", 20000), DefaultChunkThreshold)
	if len(chunks) != 1 || len(chunks[0]) != 0 {
		t.Fatalf("expected a single empty chunk, got %v", chunks)
	}
}
