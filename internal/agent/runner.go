package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/venturist-ai/venturist/config"
	"github.com/venturist-ai/venturist/internal/index"
	"github.com/venturist-ai/venturist/internal/llm"
	"github.com/venturist-ai/venturist/internal/scraper"
	"github.com/venturist-ai/venturist/internal/search"
	"github.com/venturist-ai/venturist/internal/store"
)

// Agent types the runner knows about. Types listed with a nil capability are
// registered but not yet implemented and are rejected before any ledger write.
const (
	TypeTrendScout     = "trend_scout"
	TypeIdeaAnalyst    = "idea_analyst"
	TypeDevAgent       = "dev_agent"
	TypeMarketingAgent = "marketing_agent"
	TypeSalesAgent     = "sales_agent"
)

var (
	// ErrUnknownAgentType is returned for types the runner has never heard of.
	ErrUnknownAgentType = errors.New("unknown agent type")
	// ErrNotImplemented is returned for registered types without a capability.
	ErrNotImplemented = errors.New("agent type not implemented")
)

var (
	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "venturist_agent_executions_total",
		Help: "Agent executions by type and terminal status.",
	}, []string{"agent_type", "status"})
	llmCostTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "venturist_agent_llm_cost_usd_total",
		Help: "Estimated LLM spend in USD by agent type.",
	}, []string{"agent_type"})
	llmTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "venturist_agent_llm_tokens_total",
		Help: "LLM tokens consumed by agent type.",
	}, []string{"agent_type"})
)

// Invocation is the per-run context handed to a capability. Each run gets a
// fresh Meter, so token/cost accounting never leaks across concurrent runs.
type Invocation struct {
	ExecutionID string
	AgentType   string
	Params      map[string]interface{}
	Meter       *llm.Meter
	Deps        *Deps
}

// Capability executes one agent type and returns its output payload.
type Capability func(ctx context.Context, inv *Invocation) (map[string]interface{}, error)

// Deps bundles everything capabilities may need.
type Deps struct {
	Store          *store.Store
	Provider       llm.Provider
	Routing        config.LLMRoutingConfig
	EmbeddingModel string
	Reddit         *scraper.RedditScraper
	Search         *search.TrendIndex
	Index          *index.Client
	Logger         *log.Logger
}

// Runner resolves an agent type to a capability and records the invocation
// in the execution ledger start-to-finish.
type Runner struct {
	deps     *Deps
	registry map[string]Capability
	logger   *log.Logger
}

// NewRunner builds the default registry. Stub types map to nil so callers
// can tell "unknown" apart from "known but unimplemented".
func NewRunner(deps *Deps) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		deps:   deps,
		logger: logger,
		registry: map[string]Capability{
			TypeTrendScout:     TrendScout,
			TypeIdeaAnalyst:    IdeaAnalyst,
			TypeDevAgent:       nil,
			TypeMarketingAgent: nil,
			TypeSalesAgent:     nil,
		},
	}
}

// Register installs or overrides a capability. Mostly used by tests.
func (r *Runner) Register(agentType string, capability Capability) {
	r.registry[agentType] = capability
}

// Known reports whether the agent type is registered at all.
func (r *Runner) Known(agentType string) bool {
	_, ok := r.registry[agentType]
	return ok
}

// Types returns every registered agent type and whether it is implemented.
func (r *Runner) Types() map[string]bool {
	out := make(map[string]bool, len(r.registry))
	for name, capability := range r.registry {
		out[name] = capability != nil
	}
	return out
}

// Run executes one agent invocation end to end. Dispatch errors (unknown or
// unimplemented type) are returned before anything is written to the ledger.
// Once a pending record exists, the run always ends with exactly one terminal
// write; a capability failure is persisted first and then returned to the
// caller, even if the ledger write itself fails.
func (r *Runner) Run(ctx context.Context, agentType string, params map[string]interface{}) (store.Execution, error) {
	capability, ok := r.registry[agentType]
	if !ok {
		return store.Execution{}, fmt.Errorf("%w: %s", ErrUnknownAgentType, agentType)
	}
	if capability == nil {
		return store.Execution{}, fmt.Errorf("%w: %s", ErrNotImplemented, agentType)
	}

	exec, err := r.deps.Store.CreateExecution(ctx, agentType, params)
	if err != nil {
		return store.Execution{}, fmt.Errorf("create execution: %w", err)
	}
	if err := r.deps.Store.MarkExecutionRunning(ctx, exec.ID); err != nil {
		return store.Execution{}, fmt.Errorf("mark running: %w", err)
	}
	exec.Status = store.ExecutionStatusRunning
	r.logger.Printf("[RUNNER] execution %s (%s) started", exec.ID, agentType)

	inv := &Invocation{
		ExecutionID: exec.ID,
		AgentType:   agentType,
		Params:      params,
		Meter:       llm.NewMeter(),
		Deps:        r.deps,
	}

	start := time.Now()
	output, runErr := capability(ctx, inv)
	completedAt := time.Now()
	duration := int(completedAt.Sub(start).Seconds())
	usage := inv.Meter.Snapshot()

	llmTokensTotal.WithLabelValues(agentType).Add(float64(usage.Tokens))
	llmCostTotal.WithLabelValues(agentType).Add(usage.CostUSD)

	exec.TokensUsed = usage.Tokens
	exec.CostUSD = usage.CostUSD
	exec.CompletedAt = &completedAt
	exec.DurationSeconds = &duration

	if runErr != nil {
		executionsTotal.WithLabelValues(agentType, store.ExecutionStatusFailed).Inc()
		exec.Status = store.ExecutionStatusFailed
		exec.Error = runErr.Error()
		if err := r.deps.Store.FailExecution(ctx, exec.ID, runErr.Error(), usage.Tokens, usage.CostUSD, completedAt, duration); err != nil {
			r.logger.Printf("[RUNNER] execution %s: persisting failure: %v", exec.ID, err)
		}
		r.logger.Printf("[RUNNER] execution %s (%s) failed after %ds: %v", exec.ID, agentType, duration, runErr)
		return exec, runErr
	}

	executionsTotal.WithLabelValues(agentType, store.ExecutionStatusCompleted).Inc()
	exec.Status = store.ExecutionStatusCompleted
	exec.OutputData = output
	if err := r.deps.Store.CompleteExecution(ctx, exec.ID, output, usage.Tokens, usage.CostUSD, completedAt, duration); err != nil {
		return exec, fmt.Errorf("persist completion: %w", err)
	}
	r.logger.Printf("[RUNNER] execution %s (%s) completed in %ds (tokens=%d cost=$%.4f)", exec.ID, agentType, duration, usage.Tokens, usage.CostUSD)
	return exec, nil
}
