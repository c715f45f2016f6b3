package service

import (
	"context"
	"errors"
	"time"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	"github.com/hugo-lorenzo-mato/mendbot/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/mendbot/internal/logging"
)

// AgentOutcomeKind classifies how an agent run ended.
type AgentOutcomeKind string

const (
	AgentCompleted AgentOutcomeKind = "completed"
	AgentTimedOut  AgentOutcomeKind = "timed-out"
	AgentError     AgentOutcomeKind = "error"
)

// AgentOutcome is the result of one fix invocation. Err is set unless the
// agent completed.
type AgentOutcome struct {
	Kind     AgentOutcomeKind
	Output   string
	Duration time.Duration
	Err      error
}

// InvokerConfig configures an Invoker.
type InvokerConfig struct {
	Agent     core.Agent
	Preflight *diagnostics.Preflight
	Timeout   time.Duration
	Model     string
	WorkDir   string
	Logger    *logging.Logger
}

// Invoker renders the fix prompt and drives the agent synchronously.
type Invoker struct {
	agent     core.Agent
	preflight *diagnostics.Preflight
	timeout   time.Duration
	model     string
	workDir   string
	logger    *logging.Logger
}

// NewInvoker creates an invoker.
func NewInvoker(cfg InvokerConfig) *Invoker {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &Invoker{
		agent:     cfg.Agent,
		preflight: cfg.Preflight,
		timeout:   cfg.Timeout,
		model:     cfg.Model,
		workDir:   cfg.WorkDir,
		logger:    cfg.Logger,
	}
}

// AgentName returns the wrapped agent's name.
func (i *Invoker) AgentName() string {
	return i.agent.Name()
}

// Invoke asks the agent to fix name. The run is detached from ctx
// cancellation: an interrupt lets the agent finish or time out.
func (i *Invoker) Invoke(ctx context.Context, name core.TestName, failureOutput string, tmpl PromptTemplate) AgentOutcome {
	log := i.logger.WithTest(string(name)).WithAgent(i.agent.Name())

	prompt, err := tmpl.Render(name, failureOutput)
	if err != nil {
		log.Error("rendering prompt", "error", err)
		return AgentOutcome{Kind: AgentError, Err: err}
	}
	log.Debug("rendered prompt", "template", tmpl.Source, "prompt", prompt)

	res := i.preflight.Run()
	if !res.OK {
		err := core.ErrExecution(core.CodePreflightFailed, "preflight check failed: "+res.Summary())
		log.Error("preflight failed, agent not started", "errors", res.Errors)
		return AgentOutcome{Kind: AgentError, Err: err}
	}
	for _, w := range res.Warnings {
		log.Warn("preflight warning", "warning", w)
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.timeout)
	defer cancel()

	start := time.Now()
	result, err := i.agent.Execute(runCtx, core.ExecuteOptions{
		Prompt:  prompt,
		Model:   i.model,
		Timeout: i.timeout,
		WorkDir: i.workDir,
	})
	outcome := AgentOutcome{Duration: time.Since(start), Err: err}
	if result != nil {
		outcome.Output = result.Output
	}

	switch {
	case err == nil:
		outcome.Kind = AgentCompleted
		log.Info("agent completed", "duration", outcome.Duration)
	case core.IsCode(err, core.CodeTimeout) || errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded):
		outcome.Kind = AgentTimedOut
		log.Warn("agent timed out", "timeout", i.timeout)
	default:
		outcome.Kind = AgentError
		log.Warn("agent failed", "error", err)
	}
	return outcome
}
