package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

type fakeMCPClient struct {
	tools    []mcp.Tool
	callFunc func(req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

func (f *fakeMCPClient) Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	return &mcp.InitializeResult{}, nil
}

func (f *fakeMCPClient) ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeMCPClient) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return f.callFunc(req)
}

func (f *fakeMCPClient) Close() error { return nil }

func TestRegisterMCPTools_SchemaAndDispatch(t *testing.T) {
	fake := &fakeMCPClient{
		tools: []mcp.Tool{{
			Name:           "get_weather",
			Description:    "Gets weather",
			RawInputSchema: json.RawMessage(`{"type":"object","properties":{"location":{"type":"string"}}}`),
		}},
		callFunc: func(req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			require.Equal(t, "get_weather", req.Params.Name)
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "sunny"}},
			}, nil
		},
	}

	reg := NewRegistry()
	registerMCPTools(context.Background(), reg, fake, "weather-server")

	tool, ok := reg.Get("get_weather")
	require.True(t, ok)
	require.Equal(t, "Gets weather", tool.Schema().Function.Description)

	out, err := tool.Execute(context.Background(), map[string]any{"location": "London"})
	require.NoError(t, err)
	require.Equal(t, "sunny", out)
}

func TestMCPTool_ErrorResult(t *testing.T) {
	fake := &fakeMCPClient{
		tools: []mcp.Tool{{Name: "broken", RawInputSchema: json.RawMessage(`{"type":"object"}`)}},
		callFunc: func(req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return nil, errors.New("server exploded")
		},
	}
	reg := NewRegistry()
	registerMCPTools(context.Background(), reg, fake, "srv")

	tool, _ := reg.Get("broken")
	_, err := tool.Execute(context.Background(), map[string]any{})
	require.ErrorContains(t, err, "server exploded")
}

func TestRegisterMCPTools_DuplicateSkipped(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{name: "bash", result: "local"})

	fake := &fakeMCPClient{tools: []mcp.Tool{{Name: "bash", RawInputSchema: json.RawMessage(`{"type":"object"}`)}}}
	registerMCPTools(context.Background(), reg, fake, "srv")

	tool, _ := reg.Get("bash")
	out, err := tool.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "local", out, "existing local tool must win")
}
