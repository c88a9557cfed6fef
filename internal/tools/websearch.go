package tools

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"drover/internal/chat"
	"drover/internal/llm"
)

// GoogleSearchTool answers a query through the backend's native search
// grounding. It issues a side-conversation carrying only the reserved
// sentinel tool; the adapter recognizes it and switches grounding on.
type GoogleSearchTool struct {
	Client llm.Client
}

func (t *GoogleSearchTool) Name() string { return "google_search" }

func (t *GoogleSearchTool) Schema() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "google_search",
			Description: "Perform a web search using Google Search Grounding.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"query": {Type: jsonschema.String, Description: "The search query."},
				},
				Required: []string{"query"},
			},
		},
	}
}

func (t *GoogleSearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return "", err
	}

	msgs := chat.Conversation{
		{Role: chat.RoleSystem, Content: "Search the web and provide a detailed answer."},
		{Role: chat.RoleUser, Content: query},
	}
	sentinel := []openai.Tool{{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        llm.GroundingTool,
			Description: "Trigger search",
			Parameters:  jsonschema.Definition{Type: jsonschema.Object, Properties: map[string]jsonschema.Definition{}},
		},
	}}

	comp, err := t.Client.Complete(ctx, msgs, sentinel)
	if err != nil {
		return fmt.Sprintf("Error performing google search: %v", err), nil
	}
	return comp.Message.Text(), nil
}
