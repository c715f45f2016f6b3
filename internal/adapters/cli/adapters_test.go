//go:build !windows

package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/mendbot/internal/config"
	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	"github.com/hugo-lorenzo-mato/mendbot/internal/logging"
)

func TestClaudeAdapter_BuildArgs(t *testing.T) {
	agent, err := NewClaudeAdapter(AgentConfig{Continue: true, Model: "opus", Args: []string{"--verbose"}})
	require.NoError(t, err)
	claude := agent.(*ClaudeAdapter)

	args := claude.buildArgs(core.ExecuteOptions{Prompt: "fix it"})
	assert.Equal(t, []string{"--dangerously-skip-permissions", "-c", "--model", "opus", "--verbose", "-p", "fix it"}, args)
	assert.Equal(t, "claude", claude.Config().Path)
}

func TestClaudeAdapter_ModelOverride(t *testing.T) {
	agent, _ := NewClaudeAdapter(AgentConfig{Model: "sonnet"})
	args := agent.(*ClaudeAdapter).buildArgs(core.ExecuteOptions{Prompt: "p", Model: "haiku"})
	assert.Equal(t, []string{"--dangerously-skip-permissions", "--model", "haiku", "-p", "p"}, args)
}

func TestCodexAdapter_BuildArgs(t *testing.T) {
	agent, err := NewCodexAdapter(AgentConfig{})
	require.NoError(t, err)
	args := agent.(*CodexAdapter).buildArgs(core.ExecuteOptions{Prompt: "fix it"})
	assert.Equal(t, []string{"exec", "--full-auto", "fix it"}, args)
}

func TestGeminiAdapter_BuildArgs(t *testing.T) {
	agent, err := NewGeminiAdapter(AgentConfig{Model: "gemini-2.5-pro"})
	require.NoError(t, err)
	args := agent.(*GeminiAdapter).buildArgs(core.ExecuteOptions{Prompt: "fix it"})
	assert.Equal(t, []string{"--yolo", "--model", "gemini-2.5-pro", "-p", "fix it"}, args)
}

func TestCommandAdapter_RequiresPath(t *testing.T) {
	_, err := NewCommandAdapter(AgentConfig{})
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeInvalidConfig))
}

func TestCommandAdapter_Execute(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, `read -r line
echo "$line" > fixed.txt
echo "agent saw: $line"
`)
	agent, err := NewCommandAdapter(AgentConfig{Name: "my-agent", Path: script})
	require.NoError(t, err)
	assert.Equal(t, "my-agent", agent.Name())
	require.NoError(t, agent.Ping(context.Background()))

	result, err := agent.Execute(context.Background(), core.ExecuteOptions{
		Prompt:  "repair tests.test_a::test_x",
		WorkDir: dir,
		Timeout: 10 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Output, "agent saw: repair tests.test_a::test_x")

	written, err := os.ReadFile(filepath.Join(dir, "fixed.txt"))
	require.NoError(t, err)
	assert.Equal(t, "repair tests.test_a::test_x\n", string(written))
}

func TestCommandAdapter_FailureKeepsOutput(t *testing.T) {
	script := writeScript(t, "echo trying\nexit 2\n")
	agent, err := NewCommandAdapter(AgentConfig{Path: script})
	require.NoError(t, err)

	result, err := agent.Execute(context.Background(), core.ExecuteOptions{Prompt: "p", Timeout: 10 * time.Second})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.ExitCode)
	assert.True(t, strings.Contains(result.Output, "trying"))
}

func TestClaudeAdapter_ExecuteWithFakeBinary(t *testing.T) {
	script := writeScript(t, `printf '%s|' "$@"`+"\n")
	agent, err := NewClaudeAdapter(AgentConfig{Path: script})
	require.NoError(t, err)

	result, err := agent.Execute(context.Background(), core.ExecuteOptions{Prompt: "hello world", Timeout: 10 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "--dangerously-skip-permissions|-p|hello world|\n", result.Output)
}

func TestRegistry_Builtins(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"claude", "codex", "command", "gemini"}, r.List())
	assert.True(t, r.Has("claude"))
	assert.False(t, r.Has("aider"))

	_, err := r.Get("aider")
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeAgentNotFound))
}

func TestRegistry_GetCaches(t *testing.T) {
	r := NewRegistry()
	a1, err := r.Get("claude")
	require.NoError(t, err)
	a2, err := r.Get("claude")
	require.NoError(t, err)
	assert.Same(t, a1, a2)

	r.Configure("claude", AgentConfig{Name: "claude", Model: "opus"})
	a3, err := r.Get("claude")
	require.NoError(t, err)
	assert.NotSame(t, a1, a3)
	assert.Equal(t, "opus", a3.(*ClaudeAdapter).Config().Model)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Register("nil", nil))

	agent, _ := NewCodexAdapter(AgentConfig{})
	require.NoError(t, r.Register("custom", agent))
	got, err := r.Get("custom")
	require.NoError(t, err)
	assert.Same(t, agent, got)
	assert.Contains(t, r.List(), "custom")
}

func TestRegistry_ConfigureFromConfig(t *testing.T) {
	script := writeScript(t, "exit 0\n")
	cfg := &config.Config{Agent: config.AgentConfig{
		Name:    "command",
		Path:    script,
		Args:    []string{"--fast"},
		Timeout: "90s",
	}}

	r := NewRegistry()
	r.SetLogger(logging.NewNop())
	require.NoError(t, r.ConfigureFromConfig(cfg, "/repo"))

	agent, err := r.Get("command")
	require.NoError(t, err)
	got := agent.(*CommandAdapter).Config()
	assert.Equal(t, 90*time.Second, got.Timeout)
	assert.Equal(t, "/repo", got.WorkDir)
	assert.Equal(t, []string{"--fast"}, got.Args)
	require.NoError(t, r.Ping(context.Background(), "command"))
}

func TestRegistry_ConfigureFromConfig_BadTimeout(t *testing.T) {
	cfg := &config.Config{Agent: config.AgentConfig{Name: "claude", Timeout: "soon"}}
	err := NewRegistry().ConfigureFromConfig(cfg, "")
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeInvalidConfig))
}
