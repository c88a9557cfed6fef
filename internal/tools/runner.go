package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"drover/internal/chat"
	"drover/internal/config"
	"drover/internal/logger"
)

// Approver asks the operator whether a batch of tool calls may run. The
// whole batch gets a single yes/no decision.
type Approver interface {
	Approve(calls []chat.ToolCall) bool
}

// Runner executes the ordered tool calls of one assistant message and
// produces their result messages in the same order.
type Runner struct {
	registry *Registry
	approver Approver
	mode     string
}

func NewRunner(registry *Registry, approver Approver, mode string) *Runner {
	return &Runner{registry: registry, approver: approver, mode: mode}
}

// Run dispatches the calls strictly in the order received. Declined
// approval produces a cancellation result for every call; a tool failure
// becomes that call's textual result and never aborts the batch.
func (r *Runner) Run(ctx context.Context, calls []chat.ToolCall) []chat.Message {
	if r.mode == config.ModeManual && r.approver != nil && !r.approver.Approve(calls) {
		results := make([]chat.Message, 0, len(calls))
		for _, tc := range calls {
			results = append(results, resultMessage(tc, "Tool execution cancelled by user."))
		}
		return results
	}

	results := make([]chat.Message, 0, len(calls))
	for _, tc := range calls {
		results = append(results, resultMessage(tc, r.execute(ctx, tc)))
	}
	return results
}

func (r *Runner) execute(ctx context.Context, tc chat.ToolCall) (result string) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.L.Error("tool panicked", "tool", tc.Name, "panic", rec)
			result = fmt.Sprintf("Error: %v", rec)
		}
	}()

	tool, ok := r.registry.Get(tc.Name)
	if !ok {
		return fmt.Sprintf("Error: Tool '%s' not found.", tc.Name)
	}

	args := map[string]any{}
	if tc.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			return fmt.Sprintf("Error: Could not parse arguments for tool %s", tc.Name)
		}
	}

	logger.L.Debug("executing tool", "tool", tc.Name, "args", args)
	out, err := tool.Execute(ctx, args)
	if err != nil {
		logger.L.Error("tool error", "tool", tc.Name, "error", err)
		return fmt.Sprintf("Error: %v", err)
	}
	return out
}

func resultMessage(tc chat.ToolCall, content string) chat.Message {
	id := tc.ID
	if id == "" {
		id = "unknown"
	}
	return chat.Message{
		Role:       chat.RoleTool,
		ToolCallID: id,
		Name:       tc.Name,
		Content:    content,
	}
}
