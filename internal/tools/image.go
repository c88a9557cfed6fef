package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"drover/internal/chat"
	"drover/internal/llm"
)

// DescribeImageTool sends one or more images through a vision completion
// and returns the model's description. A path of "clipboard" reads the
// image currently on the system clipboard.
type DescribeImageTool struct {
	Client llm.Client
}

func (t *DescribeImageTool) Name() string { return "describe_image" }

func (t *DescribeImageTool) Schema() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "describe_image",
			Description: "Describe one or more images.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"paths": {
						Type:        jsonschema.Array,
						Items:       &jsonschema.Definition{Type: jsonschema.String},
						Description: "Array of paths to image files, or 'clipboard'.",
					},
				},
				Required: []string{"paths"},
			},
		},
	}
}

func (t *DescribeImageTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	raw, ok := args["paths"].([]any)
	if !ok || len(raw) == 0 {
		return "", fmt.Errorf("'paths' is required")
	}

	parts := []chat.Part{{Type: chat.PartText, Text: "Describe these images in detail."}}
	for _, entry := range raw {
		path, _ := entry.(string)
		if path == "clipboard" {
			var err error
			path, err = SaveClipboardImage()
			if err != nil {
				return "Error reading from clipboard.", nil
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Sprintf("Error reading image %s: %v", path, err), nil
		}
		parts = append(parts, chat.Part{
			Type: chat.PartImage,
			MIME: "image/png",
			Data: base64.StdEncoding.EncodeToString(data),
		})
	}

	msgs := chat.Conversation{{Role: chat.RoleUser, Parts: parts}}
	comp, err := t.Client.Complete(ctx, msgs, nil)
	if err != nil {
		return fmt.Sprintf("Error describing image: %v", err), nil
	}
	return comp.Message.Text(), nil
}

// SaveClipboardImage writes the clipboard image to a temp file and returns
// its path, probing the usual platform tools in order.
func SaveClipboardImage() (string, error) {
	path := fmt.Sprintf("%s/clipboard_%d_%s.png", os.TempDir(), time.Now().Unix(), uuid.NewString()[:8])
	commands := []string{
		fmt.Sprintf("wl-paste -t image/png > %q", path),
		fmt.Sprintf("xclip -selection clipboard -t image/png -o > %q", path),
		fmt.Sprintf("pngpaste %q", path),
	}
	for _, cmd := range commands {
		if err := exec.Command("bash", "-c", cmd).Run(); err != nil {
			continue
		}
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return path, nil
		}
	}
	return "", fmt.Errorf("no clipboard image available")
}
