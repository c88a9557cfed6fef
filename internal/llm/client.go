// Package llm defines the provider-agnostic completion client and the
// shared retry, pricing and error-classification machinery its adapters use.
package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"drover/internal/chat"
)

// GroundingTool is a reserved sentinel tool name. It is never shown to the
// user or the model: its presence in an offered tool list switches the
// adapter into web-grounding mode and it is stripped from the outgoing
// request.
const GroundingTool = "__google_search_trigger__"

// Usage is the normalized per-response accounting record. Provider-specific
// usage keys never leak past the adapter boundary.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	CachedTokens     int
	CacheCreated     int
	Cost             float64
}

// Completion is one model response in canonical form.
type Completion struct {
	Message chat.Message
	Usage   Usage
}

// Client is the boundary every provider adapter implements.
type Client interface {
	Complete(ctx context.Context, msgs chat.Conversation, tools []openai.Tool) (Completion, error)
}
