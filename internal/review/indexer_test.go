package review

import (
	"strings"
	"testing"
)

func TestChunkTextSplitsOnLines(t *testing.T) {
	text := strings.Repeat("line one\n", 100)
	chunks := chunkText(text, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	var rebuilt strings.Builder
	for _, c := range chunks {
		if len(c) > 110 {
			t.Fatalf("chunk exceeds budget: %d bytes", len(c))
		}
		rebuilt.WriteString(c)
	}
	if rebuilt.String() != text {
		t.Fatal("chunks do not reassemble to original text")
	}
}

func TestChunkTextShortInput(t *testing.T) {
	chunks := chunkText("short", 100)
	if len(chunks) != 1 || chunks[0] != "short" {
		t.Fatalf("unexpected chunks %v", chunks)
	}
}
