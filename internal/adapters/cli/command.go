package cli

import (
	"context"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	"github.com/hugo-lorenzo-mato/mendbot/internal/logging"
)

// CommandAdapter runs an arbitrary executable as the agent. The rendered
// prompt is written to its stdin.
type CommandAdapter struct {
	*BaseAdapter
}

// NewCommandAdapter creates an adapter for a user-supplied command.
func NewCommandAdapter(cfg AgentConfig) (core.Agent, error) {
	if cfg.Path == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "command agent requires agent.path")
	}
	if cfg.Name == "" {
		cfg.Name = "command"
	}
	return &CommandAdapter{
		BaseAdapter: NewBaseAdapter(cfg, logging.NewNop().WithAgent(cfg.Name)),
	}, nil
}

// Name returns the adapter name.
func (c *CommandAdapter) Name() string {
	return c.config.Name
}

// Ping checks the executable resolves on PATH. Arbitrary commands have no
// common version flag, so nothing is executed.
func (c *CommandAdapter) Ping(ctx context.Context) error {
	return c.CheckAvailability(ctx)
}

// Execute pipes the prompt to the command.
func (c *CommandAdapter) Execute(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
	result, err := c.ExecuteCommand(ctx, append([]string{}, c.config.Args...), opts.Prompt, opts.WorkDir, opts.Timeout)
	if err != nil {
		return resultOrNil(result), err
	}
	return toResult(result), nil
}

// resultOrNil keeps partial output of failed runs for diagnostics.
func resultOrNil(result *CommandResult) *core.ExecuteResult {
	if result == nil {
		return nil
	}
	return toResult(result)
}

var _ core.Agent = (*CommandAdapter)(nil)
