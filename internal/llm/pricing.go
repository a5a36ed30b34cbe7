package llm

import (
	"math"
	"sync"
)

// ModelPrice holds USD prices per one million tokens.
type ModelPrice struct {
	Input  float64
	Output float64
}

// DefaultModel is the pricing fallback for models missing from the table.
const DefaultModel = "gpt-3.5-turbo"

// Pricing maps model name to per-million-token prices.
var Pricing = map[string]ModelPrice{
	"gpt-3.5-turbo": {Input: 0.50, Output: 1.50},
	"gpt-4o":        {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":   {Input: 0.15, Output: 0.60},
}

// Cost estimates the USD cost of one call, rounded to 4 decimal places.
// Unknown models fall back to the default entry rather than erroring.
func Cost(model string, promptTokens, completionTokens int64) float64 {
	price, ok := Pricing[model]
	if !ok {
		price = Pricing[DefaultModel]
	}
	cost := float64(promptTokens)/1_000_000*price.Input + float64(completionTokens)/1_000_000*price.Output
	return math.Round(cost*10000) / 10000
}

// Usage is the accumulated token/cost tally of one runner invocation.
type Usage struct {
	Tokens  int64
	CostUSD float64
}

// Meter accumulates token usage and cost for a single invocation. A fresh
// Meter is created per run; it is never shared across invocations, so
// concurrent runs of the same agent cannot bleed costs into each other.
type Meter struct {
	mu    sync.Mutex
	usage Usage
}

// NewMeter returns an empty meter.
func NewMeter() *Meter { return &Meter{} }

// Record adds one LLM call's tokens and its estimated cost.
func (m *Meter) Record(model string, promptTokens, completionTokens int64) float64 {
	cost := Cost(model, promptTokens, completionTokens)
	m.mu.Lock()
	m.usage.Tokens += promptTokens + completionTokens
	m.usage.CostUSD += cost
	m.mu.Unlock()
	return cost
}

// Snapshot returns the usage accumulated so far.
func (m *Meter) Snapshot() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}
