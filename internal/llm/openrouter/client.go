// Package openrouter implements the chat-completions style adapter. It
// forwards the canonical conversation close to verbatim, pins every request
// to a single upstream vendor with fallback disabled, and preserves the
// opaque reasoning blob Gemini-family models need for multi-turn tool use.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"drover/internal/chat"
	"drover/internal/config"
	"drover/internal/llm"
)

const defaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"

// Client calls the OpenRouter chat-completions API.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		apiKey:   cfg.OpenRouterAPIKey,
		model:    cfg.Model,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

// Model family predicates used for provider pinning and reasoning handling.
func isAnthropic(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "anthropic") || strings.Contains(m, "claude")
}

func isOpenAI(model string) bool {
	m := strings.ToLower(model)
	for _, marker := range []string{"openai", "gpt", "o1", "o3", "o4"} {
		if strings.Contains(m, marker) {
			return true
		}
	}
	return false
}

func isGemini(model string) bool {
	return strings.Contains(strings.ToLower(model), "gemini")
}

// Wire types. The request is close to the canonical shape; the additions are
// OpenRouter routing/usage controls the upstream schema does not know about.

type wirePart struct {
	Type         string           `json:"type"`
	Text         string           `json:"text,omitempty"`
	ImageURL     *wireImageURL    `json:"image_url,omitempty"`
	CacheControl *json.RawMessage `json:"cache_control,omitempty"`
}

type wireImageURL struct {
	URL string `json:"url"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireMessage struct {
	Role             string          `json:"role"`
	Content          json.RawMessage `json:"content,omitempty"`
	ToolCalls        []wireToolCall  `json:"tool_calls,omitempty"`
	ToolCallID       string          `json:"tool_call_id,omitempty"`
	Name             string          `json:"name,omitempty"`
	Reasoning        string          `json:"reasoning,omitempty"`
	ReasoningDetails json.RawMessage `json:"reasoning_details,omitempty"`
}

type providerPrefs struct {
	Order          []string `json:"order,omitempty"`
	AllowFallbacks bool     `json:"allow_fallbacks"`
}

type request struct {
	Model            string            `json:"model"`
	Messages         []wireMessage     `json:"messages"`
	Tools            []openai.Tool     `json:"tools,omitempty"`
	Temperature      float64           `json:"temperature"`
	Usage            map[string]bool   `json:"usage"`
	IncludeReasoning bool              `json:"include_reasoning"`
	Reasoning        map[string]string `json:"reasoning"`
	Provider         providerPrefs     `json:"provider"`
}

type response struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens       int     `json:"prompt_tokens"`
		CompletionTokens   int     `json:"completion_tokens"`
		Cost               float64 `json:"cost"`
		CacheCreated       int     `json:"cache_creation_input_tokens"`
		PromptTokenDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
	} `json:"usage"`
	Error json.RawMessage `json:"error,omitempty"`
}

var ephemeral = json.RawMessage(`{"type":"ephemeral"}`)

func toWireParts(parts []chat.Part) []wirePart {
	out := make([]wirePart, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case chat.PartImage:
			url := fmt.Sprintf("data:%s;base64,%s", p.MIME, p.Data)
			out = append(out, wirePart{Type: "image_url", ImageURL: &wireImageURL{URL: url}})
		default:
			wp := wirePart{Type: "text", Text: p.Text}
			if p.Cache {
				wp.CacheControl = &ephemeral
			}
			out = append(out, wp)
		}
	}
	return out
}

func toWireMessages(msgs chat.Conversation, model string) ([]wireMessage, error) {
	gemini := isGemini(model)
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		wm := wireMessage{
			Role:       m.Role,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		var err error
		if m.Parts != nil {
			wm.Content, err = json.Marshal(toWireParts(m.Parts))
		} else {
			wm.Content, err = json.Marshal(m.Content)
		}
		if err != nil {
			return nil, err
		}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: wireFunction{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		// The reasoning blob is only echoed back for Gemini-family models,
		// which need it for tool-call continuity.
		if gemini && m.ReasoningToken != nil {
			wm.ReasoningDetails = m.ReasoningToken
		}
		out = append(out, wm)
	}
	return out, nil
}

func pinProvider(model string) providerPrefs {
	prefs := providerPrefs{AllowFallbacks: false}
	switch {
	case isAnthropic(model):
		prefs.Order = []string{"Anthropic"}
	case isOpenAI(model):
		prefs.Order = []string{"OpenAI"}
	case isGemini(model):
		prefs.Order = []string{"Google AI Studio"}
	}
	return prefs
}

// Complete sends the conversation and returns the canonical completion.
func (c *Client) Complete(ctx context.Context, msgs chat.Conversation, tools []openai.Tool) (llm.Completion, error) {
	model := c.model

	grounding := false
	outTools := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		if t.Function != nil && t.Function.Name == llm.GroundingTool {
			grounding = true
			continue
		}
		outTools = append(outTools, t)
	}
	if grounding && !strings.HasSuffix(model, ":online") {
		model += ":online"
	}

	messages, err := toWireMessages(msgs, model)
	if err != nil {
		return llm.Completion{}, err
	}

	body := request{
		Model:            model,
		Messages:         messages,
		Temperature:      0,
		Usage:            map[string]bool{"include": true},
		IncludeReasoning: true,
		Reasoning:        map[string]string{"effort": "high"},
		Provider:         pinProvider(model),
	}
	if len(outTools) > 0 {
		body.Tools = outTools
	}

	return llm.Retry(ctx, "openrouter", func() (llm.Completion, error) {
		return c.send(ctx, model, body)
	})
}

func (c *Client) send(ctx context.Context, model string, body request) (llm.Completion, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return llm.Completion{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return llm.Completion{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return llm.Completion{}, llm.Transient(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Completion{}, llm.Transient(err)
	}
	if resp.StatusCode != http.StatusOK {
		return llm.Completion{}, llm.StatusError("OpenRouter", resp.StatusCode, string(raw))
	}

	var parsed response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return llm.Completion{}, fmt.Errorf("OpenRouter response: %w", err)
	}
	if parsed.Error != nil {
		return llm.Completion{}, fmt.Errorf("OpenRouter API error: %s", parsed.Error)
	}
	if len(parsed.Choices) == 0 {
		return llm.Completion{}, llm.Transient(llm.ErrNoChoices)
	}

	wm := parsed.Choices[0].Message
	msg := chat.Message{
		Role:           chat.RoleAssistant,
		Reasoning:      wm.Reasoning,
		ReasoningToken: wm.ReasoningDetails,
	}
	if len(wm.Content) > 0 {
		if err := json.Unmarshal(wm.Content, &msg.Content); err != nil {
			// Structured content from the model is flattened to text.
			var parts []wirePart
			if err := json.Unmarshal(wm.Content, &parts); err != nil {
				return llm.Completion{}, fmt.Errorf("OpenRouter message content: %w", err)
			}
			for _, p := range parts {
				msg.Content += p.Text
			}
		}
	}
	for _, tc := range wm.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	var usage llm.Usage
	if parsed.Usage != nil {
		usage = llm.Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			CachedTokens:     parsed.Usage.PromptTokenDetails.CachedTokens,
			CacheCreated:     parsed.Usage.CacheCreated,
			Cost:             parsed.Usage.Cost,
		}
		if usage.Cost == 0 {
			usage.Cost = llm.Cost(model, usage)
		}
	}

	return llm.Completion{Message: msg, Usage: usage}, nil
}
