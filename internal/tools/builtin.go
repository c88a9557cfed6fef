package tools

import (
	"time"

	"drover/internal/config"
	"drover/internal/llm"
)

// RegisterBuiltins wires the standard tool set into the registry.
func RegisterBuiltins(reg *Registry, cfg *config.Config, client llm.Client, recorder ChangeRecorder) {
	bash := &BashTool{
		Timeout:   time.Duration(cfg.CommandTimeout) * time.Second,
		CharLimit: cfg.OutputCharLimit(),
	}
	reg.Register(bash)
	reg.Register(&SearchFilesTool{Bash: bash})
	reg.Register(&SearchStringTool{Bash: bash})
	reg.Register(&ReadFileTool{CharLimit: cfg.OutputCharLimit()})
	reg.Register(&UpdateFileTool{Recorder: recorder})
	reg.Register(&GoogleSearchTool{Client: client})
	reg.Register(&DescribeImageTool{Client: client})
}
