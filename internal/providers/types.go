// Package providers implements LLM chat transports and the provider-chain
// fallback/retry policy described in spec §4.3.
//
// Grounded on internal/providers/types.go and internal/providers/openai.go.
// The teacher also carried Anthropic-native, DashScope and Gemini-specific
// wire variants (thought_signature echoing, vision parts, reasoning-effort
// passthrough); none of that vendor-specific shaping is exercised by any
// SPEC_FULL.md component, so it was dropped in favor of a single
// generalized OpenAI-compatible transport — see DESIGN.md.
package providers

import (
	"context"

	"github.com/loomgate/loomgate/internal/chatmodel"
)

// Provider is the capability every chat transport implements.
type Provider interface {
	// Chat sends messages to the LLM and returns the completed response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Name identifies the provider for logging (e.g. "openai", "openrouter").
	Name() string

	// DefaultModel returns the model used when ChatRequest.Model is empty.
	DefaultModel() string
}

// ToolDefinition describes one tool available to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ChatRequest is the input to a Provider.Chat call.
type ChatRequest struct {
	Messages    []chatmodel.Message
	Tools       []ToolDefinition
	Model       string
	Temperature float64
	MaxTokens   int
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the result of a completed Chat call.
type ChatResponse struct {
	Content      string
	ToolCalls    []chatmodel.ToolCall
	FinishReason string // "stop", "tool_calls", "length"
	Usage        *Usage
}
