package llm

import (
	"context"
	"fmt"

	"github.com/venturist-ai/venturist/config"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes a single completion call.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// ChatResponse carries the model output plus token usage for cost accounting.
type ChatResponse struct {
	Content          string
	PromptTokens     int64
	CompletionTokens int64
}

// Provider is the single boundary to LLM backends. Provider errors are
// returned as *ProviderError so callers can treat them uniformly.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Embed(ctx context.Context, model string, input []string) ([][]float32, error)
}

// ProviderError wraps any failure surfaced by an LLM backend.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProvider creates an LLM provider from configuration.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai api key not configured")
		}
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return nil, fmt.Errorf("anthropic provider not implemented yet")
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
