// Package chat defines the provider-neutral conversation model. Every
// adapter translates to and from these types; nothing provider-specific
// leaks past an adapter boundary except the opaque reasoning token, which
// is carried verbatim and never interpreted.
package chat

import (
	"encoding/json"
	"fmt"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Part types.
const (
	PartText  = "text"
	PartImage = "image"
)

// Part is one typed segment of structured message content.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	MIME string `json:"mime,omitempty"`
	Data string `json:"data,omitempty"` // base64-encoded image bytes

	// Cache marks this part as a prompt-cache checkpoint. Only the cache
	// manager sets or clears it.
	Cache bool `json:"cache,omitempty"`
}

// ToolCall is a tool invocation requested by the model. Arguments is the
// raw JSON object text, exactly as the backend produced it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one conversational unit. Content and Parts are mutually
// exclusive: Parts non-nil means structured content and Content is ignored.
type Message struct {
	Role       string          `json:"role"`
	Content    string          `json:"-"`
	Parts      []Part          `json:"-"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Reasoning  string          `json:"reasoning,omitempty"`
	// ReasoningToken is an opaque provider blob that must be echoed back
	// verbatim on the next request or multi-turn tool use silently breaks.
	ReasoningToken json.RawMessage `json:"reasoning_token,omitempty"`
}

// Text returns a textual projection of the message content: the plain
// string, or the concatenation of all text parts.
func (m Message) Text() string {
	if m.Parts == nil {
		return m.Content
	}
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// HasContent reports whether the message carries any content at all.
func (m Message) HasContent() bool {
	if m.Parts != nil {
		return len(m.Parts) > 0
	}
	return m.Content != ""
}

// EnsureParts coerces plain-text content into the structured parts form,
// so a cache marker can be attached to the last segment.
func (m *Message) EnsureParts() {
	if m.Parts != nil {
		return
	}
	m.Parts = []Part{{Type: PartText, Text: m.Content}}
	m.Content = ""
}

// HasCacheMarker reports whether any content part carries a cache marker.
func (m Message) HasCacheMarker() bool {
	for _, p := range m.Parts {
		if p.Cache {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.Parts != nil {
		out.Parts = append([]Part(nil), m.Parts...)
	}
	if m.ToolCalls != nil {
		out.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	if m.ReasoningToken != nil {
		out.ReasoningToken = append(json.RawMessage(nil), m.ReasoningToken...)
	}
	return out
}

// messageJSON is the canonical wire shape: content is either a string or an
// array of typed parts.
type messageJSON struct {
	Role           string          `json:"role"`
	Content        json.RawMessage `json:"content,omitempty"`
	ToolCalls      []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID     string          `json:"tool_call_id,omitempty"`
	Name           string          `json:"name,omitempty"`
	Reasoning      string          `json:"reasoning,omitempty"`
	ReasoningToken json.RawMessage `json:"reasoning_token,omitempty"`
}

// MarshalJSON emits the canonical message shape.
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{
		Role:           m.Role,
		ToolCalls:      m.ToolCalls,
		ToolCallID:     m.ToolCallID,
		Name:           m.Name,
		Reasoning:      m.Reasoning,
		ReasoningToken: m.ReasoningToken,
	}
	var err error
	if m.Parts != nil {
		out.Content, err = json.Marshal(m.Parts)
	} else {
		out.Content, err = json.Marshal(m.Content)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both the plain-string and the parts form of content.
func (m *Message) UnmarshalJSON(data []byte) error {
	var in messageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = Message{
		Role:           in.Role,
		ToolCalls:      in.ToolCalls,
		ToolCallID:     in.ToolCallID,
		Name:           in.Name,
		Reasoning:      in.Reasoning,
		ReasoningToken: in.ReasoningToken,
	}
	if len(in.Content) == 0 {
		return nil
	}
	if in.Content[0] == '[' {
		return json.Unmarshal(in.Content, &m.Parts)
	}
	if err := json.Unmarshal(in.Content, &m.Content); err != nil {
		return fmt.Errorf("message content: %w", err)
	}
	return nil
}
