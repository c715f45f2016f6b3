package cli

import (
	"context"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	"github.com/hugo-lorenzo-mato/mendbot/internal/logging"
)

// CodexAdapter implements Agent for the OpenAI Codex CLI.
type CodexAdapter struct {
	*BaseAdapter
}

// NewCodexAdapter creates a new Codex adapter.
func NewCodexAdapter(cfg AgentConfig) (core.Agent, error) {
	if cfg.Path == "" {
		cfg.Path = "codex"
	}
	if cfg.Name == "" {
		cfg.Name = "codex"
	}
	return &CodexAdapter{
		BaseAdapter: NewBaseAdapter(cfg, logging.NewNop().WithAgent("codex")),
	}, nil
}

// Name returns the adapter name.
func (c *CodexAdapter) Name() string {
	return "codex"
}

// Ping checks if Codex CLI is available.
func (c *CodexAdapter) Ping(ctx context.Context) error {
	if err := c.CheckAvailability(ctx); err != nil {
		return err
	}
	_, err := c.GetVersion(ctx, "--version")
	return err
}

// Execute runs a prompt through `codex exec`.
func (c *CodexAdapter) Execute(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
	result, err := c.ExecuteCommand(ctx, c.buildArgs(opts), "", opts.WorkDir, opts.Timeout)
	if err != nil {
		return resultOrNil(result), err
	}
	return toResult(result), nil
}

func (c *CodexAdapter) buildArgs(opts core.ExecuteOptions) []string {
	args := []string{"exec", "--full-auto"}
	if model := c.modelOrDefault(opts); model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, c.config.Args...)
	return append(args, opts.Prompt)
}

var _ core.Agent = (*CodexAdapter)(nil)
