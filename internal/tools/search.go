package tools

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// SearchFilesTool finds files by name pattern with fd.
type SearchFilesTool struct {
	Bash *BashTool
}

func (t *SearchFilesTool) Name() string { return "search_files" }

func (t *SearchFilesTool) Schema() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "search_files",
			Description: "Search for files by name pattern.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"pattern": {Type: jsonschema.String, Description: "The filename pattern to search for."},
				},
				Required: []string{"pattern"},
			},
		},
	}
}

func (t *SearchFilesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	pattern, err := requireString(args, "pattern")
	if err != nil {
		return "", err
	}
	return t.Bash.run(ctx, fmt.Sprintf("fd %q", pattern))
}

// SearchStringTool greps file contents with ripgrep.
type SearchStringTool struct {
	Bash *BashTool
}

func (t *SearchStringTool) Name() string { return "search_string" }

func (t *SearchStringTool) Schema() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "search_string",
			Description: "Search for a string in files.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"query": {Type: jsonschema.String, Description: "The string to search for."},
				},
				Required: []string{"query"},
			},
		},
	}
}

func (t *SearchStringTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return "", err
	}
	return t.Bash.run(ctx, fmt.Sprintf("rg -n -C 5 -- %q .", query))
}
