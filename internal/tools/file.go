package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/sergi/go-diff/diffmatchpatch"

	"drover/internal/logger"
)

// maxReadLines caps how much of a file one read returns.
const maxReadLines = 500

// ReadFileTool reads file content with an optional line range.
type ReadFileTool struct {
	CharLimit int
}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Schema() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "read_file",
			Description: "Read the content of a file.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"path":       {Type: jsonschema.String, Description: "The path to the file."},
					"start_line": {Type: jsonschema.Integer, Description: "Start line number."},
					"end_line":   {Type: jsonschema.Integer, Description: "End line number."},
				},
				Required: []string{"path"},
			},
		},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path, err := requireString(args, "path")
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("Error reading file: %v", err), nil
	}
	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	total := len(lines)

	start := optionalInt(args, "start_line")
	if start < 1 {
		start = 1
	}
	start--
	if start > total {
		start = total
	}
	end := optionalInt(args, "end_line")
	if end <= 0 || end > total {
		end = total
	}
	if end-start > maxReadLines {
		end = start + maxReadLines
	}
	if end < start {
		end = start
	}

	out := fmt.Sprintf("(Total lines: %d)\n%s", total, strings.Join(lines[start:end], ""))
	return Truncate(out, t.CharLimit), nil
}

// ChangeRecorder receives the path of every file the agent is about to
// mutate, before the mutation happens. The undo manager implements it.
type ChangeRecorder interface {
	RecordFileChange(path string)
}

// UpdateFileTool writes a file, either wholesale or by replacing a matched
// block. Every write is reported to the recorder before the filesystem is
// touched so the pre-image is captured correctly.
type UpdateFileTool struct {
	Recorder ChangeRecorder
}

func (t *UpdateFileTool) Name() string { return "update_file" }

func (t *UpdateFileTool) Schema() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "update_file",
			Description: "Update a file.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"path":        {Type: jsonschema.String, Description: "The path to the file."},
					"content":     {Type: jsonschema.String, Description: "The new content."},
					"old_content": {Type: jsonschema.String, Description: "Optional text block to replace."},
				},
				Required: []string{"path", "content"},
			},
		},
	}
}

func (t *UpdateFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	path, err := requireString(args, "path")
	if err != nil {
		return "", err
	}
	content, ok := args["content"].(string)
	if !ok {
		return "", fmt.Errorf("'content' is required")
	}
	oldContent, _ := args["old_content"].(string)

	var previous string
	if oldContent != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Sprintf("Error updating file: %v", err), nil
		}
		previous = string(data)
		if !strings.Contains(previous, oldContent) {
			return "Error: 'old_content' text block not found in file. Ensure exact match (including whitespace).", nil
		}
		content = strings.ReplaceAll(previous, oldContent, content)
	} else if data, err := os.ReadFile(path); err == nil {
		previous = string(data)
	}

	if t.Recorder != nil {
		t.Recorder.RecordFileChange(path)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Sprintf("Error updating file: %v", err), nil
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Sprintf("Error updating file: %v", err), nil
	}

	logChange(path, previous, content)
	return fmt.Sprintf("Successfully updated %s.", path), nil
}

// logChange records a compact change summary for the debug log.
func logChange(path, before, after string) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	var added, removed int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += len(d.Text)
		case diffmatchpatch.DiffDelete:
			removed += len(d.Text)
		}
	}
	logger.L.Debug("file updated", "path", path, "added_chars", added, "removed_chars", removed)
}
