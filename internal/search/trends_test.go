package search

import (
	"testing"

	"github.com/venturist-ai/venturist/internal/store"
)

func seedIndex(t *testing.T) *TrendIndex {
	t.Helper()
	idx, err := NewTrendIndex()
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	err = idx.AddAll([]store.Trend{
		{ID: "t1", Title: "AI bookkeeping for freelancers", Description: "automated accounting", Source: "reddit", Tags: []string{"ai", "fintech"}},
		{ID: "t2", Title: "Local-first note taking", Description: "offline sync for notes", Source: "hackernews", Tags: []string{"productivity"}},
		{ID: "t3", Title: "AI code review assistants", Description: "llm powered review", Source: "reddit", Tags: []string{"ai", "devtools"}},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return idx
}

func TestSearchRanksMatches(t *testing.T) {
	idx := seedIndex(t)

	hits, err := idx.Search("ai", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits for 'ai', got %d", len(hits))
	}
	for _, h := range hits {
		if h.ID == "t2" {
			t.Fatal("unexpected hit t2 for 'ai'")
		}
		if h.Score <= 0 {
			t.Fatalf("expected positive score, got %v", h.Score)
		}
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	idx := seedIndex(t)
	if _, err := idx.Search("   ", 10); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestRemoveDropsDocument(t *testing.T) {
	idx := seedIndex(t)
	if err := idx.Remove("t1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	n, err := idx.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 docs after remove, got %d", n)
	}
}

func TestSearchLimit(t *testing.T) {
	idx := seedIndex(t)
	hits, err := idx.Search("ai", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit with limit 1, got %d", len(hits))
	}
}
