package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// BashTool executes a shell command with a per-command timeout.
type BashTool struct {
	Timeout   time.Duration
	CharLimit int
}

func (t *BashTool) Name() string { return "bash" }

func (t *BashTool) Schema() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "bash",
			Description: "Execute a bash command.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"command": {Type: jsonschema.String, Description: "The bash command to execute."},
				},
				Required: []string{"command"},
			},
		},
	}
}

func (t *BashTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	command, err := requireString(args, "command")
	if err != nil {
		return "", err
	}
	return t.run(ctx, command)
}

func (t *BashTool) run(ctx context.Context, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("Error: Command timed out after %d seconds.", int(t.Timeout.Seconds())), nil
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\nSTDERR:\n" + stderr.String()
	}
	if strings.TrimSpace(output) == "" {
		if runErr != nil {
			return fmt.Sprintf("Error executing command: %v", runErr), nil
		}
		return "(Command executed successfully with no output)", nil
	}
	// A failing exit status still returns its output; the model reads the
	// stderr section.
	return Truncate(output, t.CharLimit), nil
}
