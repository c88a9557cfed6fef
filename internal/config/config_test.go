package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
provider: openrouter
model: anthropic/claude-sonnet-4
mode: auto
tool_output_limit: 2000
mcp_servers:
  - name: sandbox
    type: stdio
    command: ./mock
    args: ["--flag"]
    env:
      FOO: bar
`

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	require.NoError(t, err)
	_, err = tmp.WriteString(sampleConfig)
	require.NoError(t, err)
	tmp.Close()

	t.Setenv("CONFIG_PATH", tmp.Name())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ProviderOpenRouter, cfg.Provider)
	require.Equal(t, "anthropic/claude-sonnet-4", cfg.Model)
	require.Equal(t, ModeAuto, cfg.Mode)
	require.Equal(t, 8000, cfg.OutputCharLimit())

	require.Len(t, cfg.MCPServers, 1)
	s := cfg.MCPServers[0]
	require.Equal(t, ClientTypeStdio, s.Type)
	require.Equal(t, "./mock", s.Command)
	require.Equal(t, []string{"--flag"}, s.Args)
	require.Equal(t, "bar", s.Env["foo"])
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	viper.Reset()
	t.Setenv("CONFIG_PATH", "")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ProviderGemini, cfg.Provider)
	require.Equal(t, ModeManual, cfg.Mode)
	require.Equal(t, 1000, cfg.ToolOutputLimit)
	require.Equal(t, 30, cfg.CommandTimeout)
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	viper.Reset()
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	require.NoError(t, err)
	_, err = tmp.WriteString("provider: azure\n")
	require.NoError(t, err)
	tmp.Close()
	t.Setenv("CONFIG_PATH", tmp.Name())

	_, err = Load()
	require.ErrorContains(t, err, "unknown provider")
}

func TestLoad_EnvAPIKeys(t *testing.T) {
	viper.Reset()
	t.Setenv("CONFIG_PATH", "")
	t.Chdir(t.TempDir())
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
	t.Setenv("GEMINI_API_KEY", "AIza-test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sk-or-test", cfg.OpenRouterAPIKey)
	require.Equal(t, "AIza-test", cfg.GeminiAPIKey)
}
