package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sashabaranov/go-openai"

	"drover/internal/config"
	"drover/internal/logger"
)

// MCPClient is the subset of the mcp-go client the bridge needs; tests
// substitute a fake.
type MCPClient interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// mcpTool adapts one remote MCP tool to the local Tool interface.
type mcpTool struct {
	client MCPClient
	name   string
	desc   string
	schema json.RawMessage
}

func (t *mcpTool) Name() string { return t.name }

func (t *mcpTool) Schema() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        t.name,
			Description: t.desc,
			Parameters:  t.schema,
		},
	}
}

func (t *mcpTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	result, err := t.client.CallTool(ctx, req)
	if err != nil {
		return "", err
	}
	var text string
	for _, item := range result.Content {
		if tc, ok := item.(mcp.TextContent); ok {
			text = tc.Text
			break
		}
	}
	if text == "" {
		raw, err := json.Marshal(result)
		if err != nil {
			return "Tool executed, but the result could not be formatted.", nil
		}
		text = string(raw)
	}
	if result.IsError {
		return fmt.Sprintf("Error: %s", text), nil
	}
	return text, nil
}

// RegisterMCPServers connects to each configured MCP server, lists its
// tools and registers them locally. A server that fails to come up is
// logged and skipped; it never blocks startup.
func RegisterMCPServers(ctx context.Context, registry *Registry, servers []config.MCPServerConfig) []MCPClient {
	var clients []MCPClient
	for _, serverCfg := range servers {
		mcpC, err := newMCPClient(serverCfg)
		if err != nil {
			logger.L.Error("failed to create MCP client", "name", serverCfg.Name, "error", err)
			continue
		}
		if serverCfg.Type != config.ClientTypeStdio {
			if err := mcpC.Start(ctx); err != nil {
				logger.L.Error("failed to start MCP client transport", "name", serverCfg.Name, "error", err)
				_ = mcpC.Close()
				continue
			}
		}
		if _, err := mcpC.Initialize(ctx, mcp.InitializeRequest{}); err != nil {
			logger.L.Error("failed to initialize MCP client", "name", serverCfg.Name, "error", err)
			_ = mcpC.Close()
			continue
		}
		registerMCPTools(ctx, registry, mcpC, serverCfg.Name)
		clients = append(clients, mcpC)
	}
	return clients
}

// registerMCPTools lists and registers one connected client's tools.
func registerMCPTools(ctx context.Context, registry *Registry, mcpC MCPClient, serverName string) {
	serverTools, err := mcpC.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		logger.L.Warn("failed to list MCP tools", "name", serverName, "error", err)
		return
	}
	for _, remote := range serverTools.Tools {
		schema := remote.RawInputSchema
		if len(schema) == 0 || string(schema) == "null" {
			raw, err := json.Marshal(remote.InputSchema)
			if err != nil || string(raw) == "{}" || string(raw) == "null" {
				raw = json.RawMessage(`{"type": "object", "properties": {}}`)
			}
			schema = raw
		}
		if _, exists := registry.Get(remote.Name); exists {
			logger.L.Warn("MCP tool name already registered, skipping", "tool", remote.Name, "name", serverName)
			continue
		}
		registry.Register(&mcpTool{client: mcpC, name: remote.Name, desc: remote.Description, schema: schema})
		logger.L.Info("registered MCP tool", "tool", remote.Name, "name", serverName)
	}
}

func newMCPClient(serverCfg config.MCPServerConfig) (*client.Client, error) {
	switch serverCfg.Type {
	case config.ClientTypeSSE:
		var opts []transport.ClientOption
		if len(serverCfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(serverCfg.Headers))
		}
		return client.NewSSEMCPClient(serverCfg.URL, opts...)
	case config.ClientTypeStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(serverCfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(serverCfg.Headers))
		}
		return client.NewStreamableHttpClient(serverCfg.URL, opts...)
	case config.ClientTypeStdio:
		var env []string
		for k, v := range serverCfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		return client.NewStdioMCPClient(serverCfg.Command, env, serverCfg.Args...)
	default:
		return nil, fmt.Errorf("unsupported MCP server type %q", serverCfg.Type)
	}
}
