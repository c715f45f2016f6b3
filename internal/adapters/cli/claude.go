package cli

import (
	"context"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	"github.com/hugo-lorenzo-mato/mendbot/internal/logging"
)

// ClaudeAdapter implements Agent for Claude CLI.
type ClaudeAdapter struct {
	*BaseAdapter
}

// NewClaudeAdapter creates a new Claude adapter.
func NewClaudeAdapter(cfg AgentConfig) (core.Agent, error) {
	if cfg.Path == "" {
		cfg.Path = "claude"
	}
	if cfg.Name == "" {
		cfg.Name = "claude"
	}
	return &ClaudeAdapter{
		BaseAdapter: NewBaseAdapter(cfg, logging.NewNop().WithAgent("claude")),
	}, nil
}

// Name returns the adapter name.
func (c *ClaudeAdapter) Name() string {
	return "claude"
}

// Ping checks if Claude CLI is available.
func (c *ClaudeAdapter) Ping(ctx context.Context) error {
	if err := c.CheckAvailability(ctx); err != nil {
		return err
	}
	_, err := c.GetVersion(ctx, "--version")
	return err
}

// Execute runs a prompt through Claude CLI in print mode.
func (c *ClaudeAdapter) Execute(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
	result, err := c.ExecuteCommand(ctx, c.buildArgs(opts), "", opts.WorkDir, opts.Timeout)
	if err != nil {
		return resultOrNil(result), err
	}
	return toResult(result), nil
}

// buildArgs constructs CLI arguments. The prompt is always last.
func (c *ClaudeAdapter) buildArgs(opts core.ExecuteOptions) []string {
	// Auto-accept edits; the session is unattended
	args := []string{"--dangerously-skip-permissions"}
	if c.config.Continue {
		args = append(args, "-c")
	}
	if model := c.modelOrDefault(opts); model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, c.config.Args...)
	return append(args, "-p", opts.Prompt)
}

var _ core.Agent = (*ClaudeAdapter)(nil)
