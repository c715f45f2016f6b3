package cli

import (
	"context"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	"github.com/hugo-lorenzo-mato/mendbot/internal/logging"
)

// GeminiAdapter implements Agent for Gemini CLI.
type GeminiAdapter struct {
	*BaseAdapter
}

// NewGeminiAdapter creates a new Gemini adapter.
func NewGeminiAdapter(cfg AgentConfig) (core.Agent, error) {
	if cfg.Path == "" {
		cfg.Path = "gemini"
	}
	if cfg.Name == "" {
		cfg.Name = "gemini"
	}
	return &GeminiAdapter{
		BaseAdapter: NewBaseAdapter(cfg, logging.NewNop().WithAgent("gemini")),
	}, nil
}

// Name returns the adapter name.
func (g *GeminiAdapter) Name() string {
	return "gemini"
}

// Ping checks if Gemini CLI is available.
func (g *GeminiAdapter) Ping(ctx context.Context) error {
	if err := g.CheckAvailability(ctx); err != nil {
		return err
	}
	_, err := g.GetVersion(ctx, "--version")
	return err
}

// Execute runs a prompt through Gemini CLI with auto-approval.
func (g *GeminiAdapter) Execute(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
	result, err := g.ExecuteCommand(ctx, g.buildArgs(opts), "", opts.WorkDir, opts.Timeout)
	if err != nil {
		return resultOrNil(result), err
	}
	return toResult(result), nil
}

func (g *GeminiAdapter) buildArgs(opts core.ExecuteOptions) []string {
	args := []string{"--yolo"}
	if model := g.modelOrDefault(opts); model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, g.config.Args...)
	return append(args, "-p", opts.Prompt)
}

var _ core.Agent = (*GeminiAdapter)(nil)
