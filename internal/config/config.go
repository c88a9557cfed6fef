package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Operation modes for tool execution.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// Provider identifiers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// MCP transport types.
const (
	ClientTypeSSE            = "sse"
	ClientTypeStreamableHTTP = "streamable_http"
	ClientTypeStdio          = "stdio"
)

// Config holds the application configuration.
type Config struct {
	Provider         string            `mapstructure:"provider"`
	Model            string            `mapstructure:"model"`
	Mode             string            `mapstructure:"mode"`
	OpenRouterAPIKey string            `mapstructure:"openrouter_api_key"`
	GeminiAPIKey     string            `mapstructure:"gemini_api_key"`
	ToolOutputLimit  int               `mapstructure:"tool_output_limit"`
	CommandTimeout   int               `mapstructure:"command_timeout_seconds"`
	InitialPrompt    string            `mapstructure:"initial_prompt"`
	Debug            bool              `mapstructure:"debug"`
	MCPServers       []MCPServerConfig `mapstructure:"mcp_servers"`
}

// MCPServerConfig describes one external MCP tool server.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	Type    string            `mapstructure:"type"`
	URL     string            `mapstructure:"url"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
	Headers map[string]string `mapstructure:"headers"`
}

// Load reads configuration from config.yaml (optional), the environment and
// any flags already bound into viper. Flags win over the file, the file wins
// over defaults.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	}

	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model", "gemini-3-pro-preview")
	viper.SetDefault("mode", ModeManual)
	viper.SetDefault("tool_output_limit", 1000)
	viper.SetDefault("command_timeout_seconds", 30)

	_ = viper.BindEnv("openrouter_api_key", "OPENROUTER_API_KEY")
	_ = viper.BindEnv("gemini_api_key", "GEMINI_API_KEY")
	_ = viper.BindEnv("model", "DEFAULT_MODEL")

	if err := viper.ReadInConfig(); err != nil {
		// The config file is optional; only a malformed one is an error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderOpenRouter, ProviderGemini:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	switch c.Mode {
	case ModeAuto, ModeManual:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if c.ToolOutputLimit <= 0 {
		return fmt.Errorf("tool_output_limit must be positive, got %d", c.ToolOutputLimit)
	}
	return nil
}

// OutputCharLimit is the character budget for unbounded tool output, derived
// from the token-denominated limit.
func (c *Config) OutputCharLimit() int {
	return c.ToolOutputLimit * 4
}
