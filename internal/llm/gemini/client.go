// Package gemini implements the parts-based adapter for the Gemini
// generateContent API. Roles are remapped, content is flattened into typed
// parts, tool schemas are rewritten to upper-case type names, and function
// results travel in a response envelope keyed by function name — this
// backend has no call-id mechanism.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"drover/internal/chat"
	"drover/internal/config"
	"drover/internal/llm"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Client calls the Gemini generateContent API.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		apiKey:  cfg.GeminiAPIKey,
		model:   strings.TrimPrefix(cfg.Model, "google/"),
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Wire types.

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type functionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type functionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	InlineData       *inlineData       `json:"inline_data,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
	ThoughtSignature string            `json:"thoughtSignature,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type functionDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type tool struct {
	FunctionDeclarations []functionDecl `json:"function_declarations,omitempty"`
	GoogleSearch         *struct{}      `json:"googleSearch,omitempty"`
}

type thinkingConfig struct {
	IncludeThoughts bool `json:"includeThoughts"`
}

type generationConfig struct {
	Temperature     float64         `json:"temperature"`
	ThinkingConfig  *thinkingConfig `json:"thinkingConfig,omitempty"`
	MaxOutputTokens int             `json:"maxOutputTokens,omitempty"`
}

type request struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Tools             []tool           `json:"tools,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type response struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	PromptFeedback json.RawMessage `json:"promptFeedback,omitempty"`
	UsageMetadata  *struct {
		PromptTokenCount        int `json:"promptTokenCount"`
		CandidatesTokenCount    int `json:"candidatesTokenCount"`
		ThoughtsTokenCount      int `json:"thoughtsTokenCount"`
		CachedContentTokenCount int `json:"cachedContentTokenCount"`
	} `json:"usageMetadata"`
}

// upperSchema rewrites JSON-Schema type names to their upper-case
// equivalents, recursing through properties and items.
func upperSchema(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		out[k] = v
	}
	if t, ok := out["type"].(string); ok {
		out["type"] = strings.ToUpper(t)
	}
	if props, ok := out["properties"].(map[string]any); ok {
		converted := make(map[string]any, len(props))
		for name, sub := range props {
			if m, ok := sub.(map[string]any); ok {
				converted[name] = upperSchema(m)
			} else {
				converted[name] = sub
			}
		}
		out["properties"] = converted
	}
	if items, ok := out["items"].(map[string]any); ok {
		out["items"] = upperSchema(items)
	}
	return out
}

func toFunctionDecls(tools []openai.Tool) ([]functionDecl, error) {
	decls := make([]functionDecl, 0, len(tools))
	for _, t := range tools {
		if t.Function == nil {
			continue
		}
		decl := functionDecl{Name: t.Function.Name, Description: t.Function.Description}
		if t.Function.Parameters != nil {
			raw, err := json.Marshal(t.Function.Parameters)
			if err != nil {
				return nil, err
			}
			var schema map[string]any
			if err := json.Unmarshal(raw, &schema); err != nil {
				return nil, fmt.Errorf("tool %s parameters: %w", t.Function.Name, err)
			}
			decl.Parameters, err = json.Marshal(upperSchema(schema))
			if err != nil {
				return nil, err
			}
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

func toParts(m chat.Message) []part {
	if m.Parts == nil {
		if m.Content == "" {
			return nil
		}
		return []part{{Text: m.Content}}
	}
	out := make([]part, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch p.Type {
		case chat.PartImage:
			out = append(out, part{InlineData: &inlineData{MIMEType: p.MIME, Data: p.Data}})
		default:
			out = append(out, part{Text: p.Text})
		}
	}
	return out
}

// toContents converts the canonical conversation. The system message is
// lifted out into a separate top-level instruction.
func toContents(msgs chat.Conversation) (contents []content, system *content) {
	for _, m := range msgs {
		switch m.Role {
		case chat.RoleSystem:
			system = &content{Parts: toParts(m)}
		case chat.RoleUser:
			contents = append(contents, content{Role: "user", Parts: toParts(m)})
		case chat.RoleAssistant:
			parts := toParts(m)
			for i, tc := range m.ToolCalls {
				p := part{FunctionCall: &functionCall{Name: tc.Name, Args: json.RawMessage(tc.Arguments)}}
				// The signature must stay attached to the call part;
				// losing it breaks subsequent tool calls in the turn.
				if i == 0 && m.ReasoningToken != nil {
					var sig string
					if err := json.Unmarshal(m.ReasoningToken, &sig); err == nil {
						p.ThoughtSignature = sig
					}
				}
				parts = append(parts, p)
			}
			if len(parts) > 0 {
				contents = append(contents, content{Role: "model", Parts: parts})
			}
		case chat.RoleTool:
			contents = append(contents, content{
				Role: "function",
				Parts: []part{{FunctionResponse: &functionResponse{
					Name:     m.Name,
					Response: map[string]any{"result": m.Text()},
				}}},
			})
		}
	}
	return contents, system
}

// Complete sends the conversation and returns the canonical completion.
func (c *Client) Complete(ctx context.Context, msgs chat.Conversation, tools []openai.Tool) (llm.Completion, error) {
	contents, system := toContents(msgs)

	grounding := false
	for _, t := range tools {
		if t.Function != nil && t.Function.Name == llm.GroundingTool {
			grounding = true
			break
		}
	}

	body := request{
		Contents:          contents,
		SystemInstruction: system,
		GenerationConfig:  generationConfig{Temperature: 0},
	}
	if grounding {
		body.Tools = []tool{{GoogleSearch: &struct{}{}}}
	} else if len(tools) > 0 {
		decls, err := toFunctionDecls(tools)
		if err != nil {
			return llm.Completion{}, err
		}
		body.Tools = []tool{{FunctionDeclarations: decls}}
	}
	if strings.Contains(strings.ToLower(c.model), "pro") {
		body.GenerationConfig.ThinkingConfig = &thinkingConfig{IncludeThoughts: true}
		body.GenerationConfig.MaxOutputTokens = 64000
	}

	return llm.Retry(ctx, "gemini", func() (llm.Completion, error) {
		return c.send(ctx, body)
	})
}

func (c *Client) send(ctx context.Context, body request) (llm.Completion, error) {
	status, raw, err := c.post(ctx, body)
	if err != nil {
		return llm.Completion{}, llm.Transient(err)
	}

	// Some models reject thinkingConfig outright; drop it and try again.
	if status == http.StatusBadRequest && body.GenerationConfig.ThinkingConfig != nil &&
		bytes.Contains(raw, []byte("thinkingConfig")) {
		body.GenerationConfig.ThinkingConfig = nil
		body.GenerationConfig.MaxOutputTokens = 0
		status, raw, err = c.post(ctx, body)
		if err != nil {
			return llm.Completion{}, llm.Transient(err)
		}
	}

	if status != http.StatusOK {
		return llm.Completion{}, llm.StatusError("Gemini", status, string(raw))
	}

	var parsed response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return llm.Completion{}, fmt.Errorf("Gemini response: %w", err)
	}

	if len(parsed.Candidates) == 0 {
		if parsed.PromptFeedback != nil {
			return llm.Completion{}, fmt.Errorf("%w: %s", llm.ErrSafetyBlocked, parsed.PromptFeedback)
		}
		return llm.Completion{}, llm.Transient(llm.ErrNoChoices)
	}

	msg := chat.Message{Role: chat.RoleAssistant}
	var reasoning strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		switch {
		case p.Thought:
			reasoning.WriteString(p.Text)
			reasoning.WriteString("\n")
		case p.Text != "":
			msg.Content += p.Text
		}
		if p.FunctionCall != nil {
			args, err := json.Marshal(p.FunctionCall.Args)
			if err != nil {
				return llm.Completion{}, err
			}
			msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
				// This backend assigns no call ids; generate one so tool
				// results can be matched canonically.
				ID:        "call_" + uuid.NewString(),
				Name:      p.FunctionCall.Name,
				Arguments: string(args),
			})
			if p.ThoughtSignature != "" && msg.ReasoningToken == nil {
				token, err := json.Marshal(p.ThoughtSignature)
				if err != nil {
					return llm.Completion{}, err
				}
				msg.ReasoningToken = token
			}
		}
	}
	msg.Reasoning = strings.TrimSpace(reasoning.String())

	var usage llm.Usage
	if parsed.UsageMetadata != nil {
		usage = llm.Usage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount + parsed.UsageMetadata.ThoughtsTokenCount,
			CachedTokens:     parsed.UsageMetadata.CachedContentTokenCount,
		}
		usage.Cost = llm.Cost(c.model, usage)
	}

	return llm.Completion{Message: msg, Usage: usage}, nil
}

func (c *Client) post(ctx context.Context, body request) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}
