package agent

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/qmuntal/stateless"

	"drover/internal/cache"
	"drover/internal/chat"
	"drover/internal/config"
	"drover/internal/llm"
	"drover/internal/logger"
	"drover/internal/tools"
	"drover/internal/undo"
)

// SystemPrompt seeds every conversation.
const SystemPrompt = `You are a powerful agentic AI assistant.
You have access to a bash tool which allows you to do almost anything on the system.
You should use this tool to accomplish the user's requests.
You are optimized for high reasoning and complex tasks.
Always verify your actions and output.
If you need to run a command, just do it.
The user has set a strict output limit of 1k tokens per tool call. If you see truncated output, refine your command (e.g., use grep, head, tail) to get the specific information you need.

String and scalar parameters should be specified as is, while lists and objects should use JSON format.

Answer the user's request using the relevant tool(s), if they are available. Check that all the required parameters for each tool call are provided or can reasonably be inferred from context. IF there are no relevant tools or there are missing values for required parameters, ask the user to supply these values; otherwise proceed with the tool calls. If the user provides a specific value for a parameter (for example provided in quotes), make sure to use that value EXACTLY. DO NOT make up values for or ask about optional parameters.

If you intend to call multiple tools and there are no dependencies between the calls, make all of the independent calls in the same block, otherwise you MUST wait for previous calls to finish first to determine the dependent values (do NOT use placeholders or guess missing parameters).

Guidelines for tool usage:
- For bash commands, prefer concise commands that get specific information
- Use grep, head, tail, awk to filter output when needed
- For file operations, verify paths exist before modifying
- When searching code, use grep or find to locate relevant files first
- Always check command exit status and handle errors appropriately
- For complex multi-step tasks, break them down and verify each step

When working with files:
- Read files before modifying to understand context
- Use partial updates (old_content parameter) when possible for precision
- Create backups of important files before major changes
- Verify changes after making them

For debugging and investigation:
- Start with broad searches, then narrow down
- Check logs and error messages carefully
- Test hypotheses incrementally
- Document findings as you go`

// FSM states
type fsmState stateless.State

var (
	stateIdle           fsmState = "Idle"
	stateAwaitingModel  fsmState = "AwaitingModel"
	stateExecutingTools fsmState = "ExecutingTools"
	stateDone           fsmState = "Done"
	stateCancelled      fsmState = "Cancelled"
	stateError          fsmState = "Error"
)

// FSM triggers
type fsmTrigger stateless.Trigger

var (
	triggerProcessInput   fsmTrigger = "ProcessInput"
	triggerModelResponded fsmTrigger = "ModelResponded"
	triggerModelWantsTool fsmTrigger = "ModelRequestedTools"
	triggerToolsCompleted fsmTrigger = "ToolsExecutionCompleted"
	triggerStopRequested  fsmTrigger = "StopRequested"
	triggerErrorOccurred  fsmTrigger = "ErrorOccurred"
)

// Emitter receives everything an interactive front end would render.
// The engine never writes to the terminal itself.
type Emitter interface {
	AssistantText(text string)
	Reasoning(text string)
	ToolCallRequested(name, arguments string)
	ToolResult(name, content string)
	UsageCost(cost, total float64)
	CacheStats(read, created int)
	CacheDropWarning(reason string)
	Notice(text string)
}

// Engine drives one conversation: it owns the message history, calls
// the model, executes requested tools and loops until the model
// answers with plain content.
type Engine struct {
	client   llm.Client
	registry *tools.Registry
	runner   *tools.Runner
	undo     *undo.Manager
	emitter  Emitter
	model    string
	provider string

	conversation chat.Conversation
	totalCost    float64
	lastRequest  time.Time
	seenCached   bool
	stopFlag     atomic.Bool

	now func() time.Time
}

func New(cfg config.Config, client llm.Client, registry *tools.Registry, runner *tools.Runner, undoMgr *undo.Manager, emitter Emitter) *Engine {
	return &Engine{
		client:       client,
		registry:     registry,
		runner:       runner,
		undo:         undoMgr,
		emitter:      emitter,
		model:        cfg.Model,
		provider:     cfg.Provider,
		conversation: chat.NewConversation(SystemPrompt),
		now:          time.Now,
	}
}

// Conversation exposes the live history, e.g. for prompt prefill.
func (e *Engine) Conversation() chat.Conversation { return e.conversation }

// TotalCost is the accumulated spend across all turns.
func (e *Engine) TotalCost() float64 { return e.totalCost }

// RequestStop asks the engine to finish the current step and stop
// before the next model call or tool batch. Safe from any goroutine.
func (e *Engine) RequestStop() { e.stopFlag.Store(true) }

// Undo rolls the conversation and working directory back to the start
// of the last turn.
func (e *Engine) Undo() error {
	conv, err := e.undo.Undo()
	if err != nil {
		return err
	}
	e.conversation = conv
	return nil
}

// ProcessTurn runs one full user turn: snapshot, append the user
// message, then alternate model calls and tool execution until the
// model answers without tool calls, a stop is requested, the context
// is cancelled, or the provider fails for good.
func (e *Engine) ProcessTurn(ctx context.Context, userInput string) error {
	e.stopFlag.Store(false)
	e.undo.StartTurn(e.conversation)
	e.conversation.Append(chat.Message{Role: chat.RoleUser, Content: userInput})

	type turnContext struct {
		completion llm.Completion
		lastErr    error
	}
	fsmCtx := &turnContext{}

	fsm := stateless.NewStateMachine(stateIdle)

	fsm.Configure(stateIdle).
		Permit(triggerProcessInput, stateAwaitingModel)

	fsm.Configure(stateAwaitingModel).
		OnEntry(func(ctx context.Context, _ ...any) error {
			if e.stopFlag.Load() {
				e.emitter.Notice("Stopping after current step.")
				return fsm.FireCtx(ctx, triggerStopRequested)
			}

			elapsed := e.minutesSinceLastRequest()
			cache.Apply(e.conversation, e.model)

			completion, err := e.client.Complete(ctx, e.conversation, e.registry.Schemas())
			if err != nil {
				if ctx.Err() != nil {
					e.emitter.Notice("Interrupted.")
					return fsm.FireCtx(ctx, triggerStopRequested)
				}
				logger.L.Error("model call failed", "error", err)
				fsmCtx.lastErr = err
				return fsm.FireCtx(ctx, triggerErrorOccurred)
			}
			fsmCtx.completion = completion
			e.reportUsage(completion.Usage, elapsed)

			msg := completion.Message
			if msg.Reasoning != "" {
				e.emitter.Reasoning(msg.Reasoning)
			}
			e.conversation.Append(msg)
			if text := msg.Text(); text != "" {
				e.emitter.AssistantText(text)
			}

			if len(msg.ToolCalls) > 0 {
				return fsm.FireCtx(ctx, triggerModelWantsTool)
			}
			return fsm.FireCtx(ctx, triggerModelResponded)
		}).
		Permit(triggerModelWantsTool, stateExecutingTools).
		Permit(triggerModelResponded, stateDone).
		Permit(triggerStopRequested, stateCancelled).
		Permit(triggerErrorOccurred, stateError)

	fsm.Configure(stateExecutingTools).
		OnEntry(func(ctx context.Context, _ ...any) error {
			if e.stopFlag.Load() {
				e.emitter.Notice("Stopping after current step.")
				return fsm.FireCtx(ctx, triggerStopRequested)
			}

			calls := fsmCtx.completion.Message.ToolCalls
			for _, call := range calls {
				e.emitter.ToolCallRequested(call.Name, call.Arguments)
			}
			results := e.runner.Run(ctx, calls)
			for _, result := range results {
				e.emitter.ToolResult(result.Name, result.Text())
			}
			e.conversation.Append(results...)

			if ctx.Err() != nil {
				e.emitter.Notice("Interrupted.")
				return fsm.FireCtx(ctx, triggerStopRequested)
			}
			return fsm.FireCtx(ctx, triggerToolsCompleted)
		}).
		Permit(triggerToolsCompleted, stateAwaitingModel).
		Permit(triggerStopRequested, stateCancelled).
		Permit(triggerErrorOccurred, stateError)

	fsm.Configure(stateDone)
	fsm.Configure(stateCancelled)
	fsm.Configure(stateError)

	if err := fsm.FireCtx(ctx, triggerProcessInput); err != nil {
		return fmt.Errorf("turn state machine: %w", err)
	}

	finalState, err := fsm.State(ctx)
	if err != nil {
		return fmt.Errorf("turn state machine: %w", err)
	}
	switch finalState {
	case stateDone, stateCancelled:
		return nil
	case stateError:
		return fsmCtx.lastErr
	default:
		return fmt.Errorf("turn ended in unexpected state %v", finalState)
	}
}

func (e *Engine) minutesSinceLastRequest() float64 {
	requestTime := e.now()
	var elapsed float64
	if !e.lastRequest.IsZero() {
		elapsed = requestTime.Sub(e.lastRequest).Minutes()
	}
	e.lastRequest = requestTime
	return elapsed
}

// reportUsage surfaces per-request cost and cache statistics, and
// warns once a previously warm prompt cache comes back cold.
func (e *Engine) reportUsage(u llm.Usage, elapsedMinutes float64) {
	if u.Cost > 0 {
		e.totalCost += u.Cost
		e.emitter.UsageCost(u.Cost, e.totalCost)
	}
	if u.CachedTokens > 0 || u.CacheCreated > 0 {
		e.emitter.CacheStats(u.CachedTokens, u.CacheCreated)
	}
	if u.CachedTokens > 0 {
		e.seenCached = true
		return
	}
	if !e.seenCached {
		return
	}
	ttl := 5.0
	if e.provider == config.ProviderGemini {
		ttl = 60.0
	}
	reason := "Cache TTL expired"
	if elapsedMinutes < ttl-1 {
		reason = "Prefix mismatch"
	}
	e.emitter.CacheDropWarning(reason)
}
