package llm

import (
	"sync"
	"testing"
)

func TestCostKnownModel(t *testing.T) {
	got := Cost("gpt-4o", 1_000_000, 0)
	if got != 2.50 {
		t.Fatalf("expected 2.50, got %v", got)
	}
	got = Cost("gpt-4o", 0, 1_000_000)
	if got != 10.00 {
		t.Fatalf("expected 10.00, got %v", got)
	}
}

func TestCostUnknownModelFallsBack(t *testing.T) {
	got := Cost("some-future-model", 1_000_000, 1_000_000)
	want := Cost(DefaultModel, 1_000_000, 1_000_000)
	if got != want {
		t.Fatalf("expected fallback cost %v, got %v", want, got)
	}
	if want != 2.00 { // 0.50 input + 1.50 output
		t.Fatalf("unexpected default pricing: %v", want)
	}
}

func TestCostRounding(t *testing.T) {
	// 123 prompt tokens on gpt-4o-mini: 123/1e6*0.15 = 0.00001845 -> 0.0000
	if got := Cost("gpt-4o-mini", 123, 0); got != 0.0 {
		t.Fatalf("expected 0.0, got %v", got)
	}
	// 1000 completion tokens: 1000/1e6*0.60 = 0.0006
	if got := Cost("gpt-4o-mini", 0, 1000); got != 0.0006 {
		t.Fatalf("expected 0.0006, got %v", got)
	}
}

func TestMeterAccumulates(t *testing.T) {
	m := NewMeter()
	m.Record("gpt-4o", 1000, 500)
	m.Record("gpt-4o-mini", 2000, 0)
	u := m.Snapshot()
	if u.Tokens != 3500 {
		t.Fatalf("expected 3500 tokens, got %d", u.Tokens)
	}
	want := Cost("gpt-4o", 1000, 500) + Cost("gpt-4o-mini", 2000, 0)
	if u.CostUSD != want {
		t.Fatalf("expected cost %v, got %v", want, u.CostUSD)
	}
}

func TestMeterConcurrent(t *testing.T) {
	m := NewMeter()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Record("gpt-4o", 10, 10)
		}()
	}
	wg.Wait()
	if u := m.Snapshot(); u.Tokens != 1000 {
		t.Fatalf("expected 1000 tokens, got %d", u.Tokens)
	}
}
