package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"drover/internal/agent"
	"drover/internal/chat"
	"drover/internal/config"
	"drover/internal/llm"
	"drover/internal/llm/gemini"
	"drover/internal/llm/openrouter"
	"drover/internal/logger"
	"drover/internal/tools"
	"drover/internal/undo"
)

var (
	styleBanner    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	stylePrompt    = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	styleAssistant = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleReasoning = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Faint(true)
	styleTool      = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	styleResult    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleCost      = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	styleCache     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleNotice    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleError     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// consoleEmitter renders engine events to the terminal.
type consoleEmitter struct{}

func (consoleEmitter) AssistantText(text string) {
	fmt.Printf("\n%s\n%s\n", styleAssistant.Render("Assistant:"), text)
}

func (consoleEmitter) Reasoning(text string) {
	fmt.Printf("\n%s\n", styleReasoning.Render(clip(text, 500)))
}

func (consoleEmitter) ToolCallRequested(name, arguments string) {
	fmt.Printf("  %s(%s)\n", styleTool.Render(name), arguments)
}

func (consoleEmitter) ToolResult(_, content string) {
	fmt.Println(styleResult.Render("Result: " + clip(content, 100)))
}

func (consoleEmitter) UsageCost(cost, total float64) {
	fmt.Println(styleCost.Render(fmt.Sprintf("Cost: $%.6f | Total: $%.6f", cost, total)))
}

func (consoleEmitter) CacheStats(read, created int) {
	fmt.Println(styleCache.Render(fmt.Sprintf("Cache: %d read, %d created", read, created)))
}

func (consoleEmitter) CacheDropWarning(reason string) {
	fmt.Println(styleError.Render(fmt.Sprintf("WARNING: Cache dropped to 0! (%s)", reason)))
}

func (consoleEmitter) Notice(text string) {
	fmt.Println(styleNotice.Render(text))
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// consoleApprover asks for confirmation before a tool batch runs.
type consoleApprover struct {
	in *bufio.Reader
}

func (a *consoleApprover) Approve(calls []chat.ToolCall) bool {
	fmt.Println(styleNotice.Render("\nTool Calls:"))
	for _, call := range calls {
		fmt.Printf("  %s(%s)\n", styleTool.Render(call.Name), call.Arguments)
	}
	fmt.Print(stylePrompt.Render("Execute? [Y/n]: "))
	answer, err := a.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer != "n" && answer != "no"
}

func main() {
	pflag.StringP("mode", "m", "", "tool execution mode: 'auto' or 'manual'")
	pflag.String("provider", "", "model provider: 'openrouter' or 'gemini'")
	pflag.String("model", "", "model identifier")
	pflag.StringP("initial-prompt", "p", "", "prompt to run before the interactive loop")
	pflag.Bool("debug", false, "enable debug logging")
	pflag.Parse()

	_ = viper.BindPFlag("mode", pflag.Lookup("mode"))
	_ = viper.BindPFlag("provider", pflag.Lookup("provider"))
	_ = viper.BindPFlag("model", pflag.Lookup("model"))
	_ = viper.BindPFlag("initial_prompt", pflag.Lookup("initial-prompt"))
	_ = viper.BindPFlag("debug", pflag.Lookup("debug"))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Debug {
		logger.SetLevel("debug")
	}

	var client llm.Client
	switch cfg.Provider {
	case config.ProviderOpenRouter:
		client = openrouter.NewClient(cfg)
	default:
		client = gemini.NewClient(cfg)
	}

	ctx := context.Background()
	undoManager := undo.NewManager()

	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, cfg, client, undoManager)
	mcpClients := tools.RegisterMCPServers(ctx, registry, cfg.MCPServers)
	defer func() {
		for _, c := range mcpClients {
			_ = c.Close()
		}
	}()

	stdin := bufio.NewReader(os.Stdin)
	approver := &consoleApprover{in: stdin}
	runner := tools.NewRunner(registry, approver, cfg.Mode)
	engine := agent.New(*cfg, client, registry, runner, undoManager, consoleEmitter{})

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)

	fmt.Println(styleBanner.Render(fmt.Sprintf("Agent started (%s mode, %s)", cfg.Mode, cfg.Model)))

	if cfg.InitialPrompt != "" {
		fmt.Println(styleBanner.Render("\nExecuting initial prompt..."))
		runTurn(engine, interrupts, cfg.InitialPrompt)
	}

	for {
		fmt.Print(stylePrompt.Render("\nUser: "))
		line, err := stdin.ReadString('\n')
		if err != nil {
			break
		}
		input := strings.TrimSpace(line)
		switch {
		case input == "":
			continue
		case input == "exit" || input == "quit":
			return
		case input == "/undo":
			lastInput := engine.Conversation().LastUserInput()
			if err := engine.Undo(); err != nil {
				fmt.Println(styleError.Render("Nothing to undo."))
				continue
			}
			fmt.Println(styleNotice.Render("Undone last turn."))
			if lastInput != "" {
				fmt.Println(styleNotice.Render("Last input was: " + lastInput))
			}
		default:
			runTurn(engine, interrupts, input)
		}
	}
}

// runTurn drives one turn while listening for interrupts: the first
// Ctrl+C asks the engine to stop after the current step, the second
// cancels the turn outright.
func runTurn(engine *agent.Engine, interrupts chan os.Signal, input string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- engine.ProcessTurn(ctx, input) }()

	seen := 0
	for {
		select {
		case err := <-done:
			if err != nil {
				fmt.Println(styleError.Render(fmt.Sprintf("Error: %v", err)))
			}
			return
		case <-interrupts:
			seen++
			if seen == 1 {
				fmt.Println(styleNotice.Render("\nStopping... (Ctrl+C again to force)"))
				engine.RequestStop()
			} else {
				cancel()
			}
		}
	}
}
