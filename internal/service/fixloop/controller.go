// Package fixloop drives the fix session state machine: discover failing
// tests, pick one, let the agent try to fix it, validate the result and
// either commit it or roll it back.
package fixloop

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	"github.com/hugo-lorenzo-mato/mendbot/internal/logging"
	"github.com/hugo-lorenzo-mato/mendbot/internal/service"
	"github.com/hugo-lorenzo-mato/mendbot/internal/service/report"
)

// RegressionPolicy selects what VALIDATE_REGRESSION re-runs.
type RegressionPolicy string

const (
	// RegressionFull re-runs the whole suite.
	RegressionFull RegressionPolicy = "full"
	// RegressionPassing re-runs the previously passing tests plus the target.
	RegressionPassing RegressionPolicy = "passing"
)

// StopReason explains why a session ended.
type StopReason string

const (
	// StopAllPassing means no failing test is left to attempt.
	StopAllPassing StopReason = "all-passing"
	// StopMaxIterations means the configured attempt limit was reached.
	StopMaxIterations StopReason = "max-iterations"
	// StopInterrupted means a signal arrived or a fatal error ended the run.
	StopInterrupted StopReason = "interrupted"
	// StopDryRun means discovery ran and nothing was attempted.
	StopDryRun StopReason = "dry-run"
)

// CommitPrefix starts every fix commit message.
const CommitPrefix = "fix: resolve failing test "

// Config holds configuration for the controller.
type Config struct {
	// MaxIterations caps attempts; 0 means unlimited.
	MaxIterations int
	// Delay is slept between iterations.
	Delay      time.Duration
	Regression RegressionPolicy
	DryRun     bool
	// RepoPath is informational; it is copied into reports.
	RepoPath string
	// ReportPath, when set, receives the session report at DONE.
	ReportPath string
	// MetricsPath, when set, receives a Prometheus textfile after every
	// iteration.
	MetricsPath string
}

// Invoker runs one fix attempt through the agent.
type Invoker interface {
	Invoke(ctx context.Context, name core.TestName, failureOutput string, tmpl service.PromptTemplate) service.AgentOutcome
	AgentName() string
}

// PromptProvider returns the template for the next attempt.
type PromptProvider interface {
	Current() service.PromptTemplate
}

// Deps are the collaborators of a controller. Runner, Tree and Invoker are
// required.
type Deps struct {
	Runner   core.TestRunner
	Tree     core.TreeState
	Invoker  Invoker
	Selector *service.Selector
	Prompts  PromptProvider
	History  core.HistoryStore
	Metrics  *service.Metrics
	Logger   *logging.Logger
	// Now is the clock; nil uses time.Now.
	Now func() time.Time
}

// Controller orchestrates a fix session.
type Controller struct {
	cfg      Config
	runner   core.TestRunner
	tree     core.TreeState
	invoker  Invoker
	selector *service.Selector
	prompts  PromptProvider
	history  core.HistoryStore
	metrics  *service.Metrics
	logger   *logging.Logger
	now      func() time.Time
}

// New creates a controller.
func New(cfg Config, deps Deps) (*Controller, error) {
	if deps.Runner == nil || deps.Tree == nil || deps.Invoker == nil {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "controller requires a test runner, a tree manager and an invoker")
	}
	switch cfg.Regression {
	case "":
		cfg.Regression = RegressionFull
	case RegressionFull, RegressionPassing:
	default:
		return nil, core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("unknown regression policy %q (want full or passing)", cfg.Regression))
	}
	if cfg.MaxIterations < 0 {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "max iterations cannot be negative")
	}
	if deps.Selector == nil {
		deps.Selector = service.NewSelector(nil)
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Controller{
		cfg:      cfg,
		runner:   deps.Runner,
		tree:     deps.Tree,
		invoker:  deps.Invoker,
		selector: deps.Selector,
		prompts:  deps.Prompts,
		history:  deps.History,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      deps.Now,
	}, nil
}

// Run executes one session. It returns an error only for setup failures and
// for a rollback that could not restore a clean tree; every per-iteration
// failure becomes an attempt outcome. The returned session is non-nil
// whenever discovery succeeded.
func (c *Controller) Run(ctx context.Context) (*report.Session, error) {
	sess := newSession(uuid.NewString(), c.now())
	log := c.logger.WithSession(sess.id)

	if err := c.requireClean(ctx); err != nil {
		return nil, err
	}

	if err := c.discover(ctx, sess); err != nil {
		return nil, err
	}
	log.Info("discovery complete",
		"passing", len(sess.passing),
		"failing", len(sess.failing),
		"skipped", sess.skipped)
	c.metrics.SetCounts(len(sess.passing), len(sess.failing))

	if c.cfg.DryRun {
		for _, name := range sess.failing.Sorted() {
			log.Info("failing test", "test", string(name))
		}
		return c.finish(ctx, sess, StopDryRun), nil
	}

	c.beginHistory(ctx, sess)

	for {
		reason, err := c.boundary(ctx, sess)
		if err != nil {
			c.finishHistory(ctx, c.snapshot(sess, StopInterrupted))
			return nil, err
		}
		if reason != "" {
			return c.finish(ctx, sess, reason), nil
		}

		target, ok := c.selector.Select(sess.failing, sess.attempts)
		if !ok {
			return c.finish(ctx, sess, StopAllPassing), nil
		}

		rec, err := c.iterate(ctx, sess, target)
		if err != nil {
			c.finishHistory(ctx, c.snapshot(sess, StopInterrupted))
			return nil, err
		}
		c.record(ctx, sess, rec)

		if c.cfg.Delay > 0 && !c.done(sess) {
			log.Debug("waiting before next iteration", "delay", c.cfg.Delay)
			sleep(ctx, c.cfg.Delay)
		}
	}
}

// discover runs the suite once and seeds the session. A runner failure here
// means the test collaborator is unusable.
func (c *Controller) discover(ctx context.Context, sess *session) error {
	results, err := c.runner.RunAll(ctx)
	c.metrics.ObserveTestRun("all", err)
	if err != nil {
		return fmt.Errorf("discovering tests: %w", err)
	}
	sess.seed(results)
	return nil
}

// boundary runs the checks made at the start of SELECT. A non-empty reason
// ends the session.
func (c *Controller) boundary(ctx context.Context, sess *session) (StopReason, error) {
	if len(sess.failing) == 0 {
		return StopAllPassing, nil
	}
	if ctx.Err() != nil {
		c.logger.Info("interrupt received, stopping at iteration boundary")
		return StopInterrupted, nil
	}
	if c.cfg.MaxIterations > 0 && len(sess.attempts) >= c.cfg.MaxIterations {
		c.logger.Info("iteration limit reached", "max_iterations", c.cfg.MaxIterations)
		return StopMaxIterations, nil
	}
	if err := c.ensureClean(ctx); err != nil {
		return "", err
	}
	return "", nil
}

func (c *Controller) done(sess *session) bool {
	if len(sess.failing) == 0 {
		return true
	}
	return c.cfg.MaxIterations > 0 && len(sess.attempts) >= c.cfg.MaxIterations
}

// requireClean is the setup check: the session never starts on top of
// someone else's uncommitted work.
func (c *Controller) requireClean(ctx context.Context) error {
	clean, err := c.tree.IsClean(ctx)
	if err != nil {
		return fmt.Errorf("checking working tree: %w", err)
	}
	if !clean {
		return core.ErrState(core.CodeDirtyTree,
			"working tree has uncommitted changes; commit or stash them before running")
	}
	return nil
}

// ensureClean restores a clean tree before SELECT. Tools run during
// validation may leave artefacts behind, so one rollback is allowed.
func (c *Controller) ensureClean(parent context.Context) error {
	ctx := context.WithoutCancel(parent)
	clean, err := c.tree.IsClean(ctx)
	if err != nil {
		return fmt.Errorf("checking working tree: %w", err)
	}
	if clean {
		return nil
	}
	c.logger.Warn("working tree dirty at iteration boundary, rolling back")
	if err := c.rollback(ctx); err != nil {
		return err
	}
	clean, err = c.tree.IsClean(ctx)
	if err != nil {
		return fmt.Errorf("checking working tree: %w", err)
	}
	if !clean {
		return core.ErrState(core.CodeDirtyTree, "working tree still dirty after rollback")
	}
	return nil
}

// rollback discards uncommitted changes. Failure is fatal because the tree
// can no longer be trusted.
func (c *Controller) rollback(ctx context.Context) error {
	if err := c.tree.Rollback(context.WithoutCancel(ctx)); err != nil {
		return core.ErrState(core.CodeDirtyTree, "rollback failed, working tree left dirty").WithCause(err)
	}
	c.metrics.ObserveRollback()
	return nil
}

// record appends rec and publishes it.
func (c *Controller) record(ctx context.Context, sess *session, rec core.AttemptRecord) {
	sess.attempts = append(sess.attempts, rec)
	c.metrics.ObserveAttempt(rec)
	c.metrics.SetCounts(len(sess.passing), len(sess.failing))

	if c.history != nil {
		if err := c.history.RecordAttempt(context.WithoutCancel(ctx), sess.id, rec); err != nil {
			c.logger.Warn("recording attempt in history", "error", err)
		}
	}
	if err := c.metrics.WriteTextfile(c.cfg.MetricsPath); err != nil {
		c.logger.Warn("writing metrics", "error", err)
	}
}

// finish builds the final report and persists it.
func (c *Controller) finish(ctx context.Context, sess *session, reason StopReason) *report.Session {
	out := c.snapshot(sess, reason)
	c.logger.Info("session finished",
		"session_id", out.ID,
		"stop_reason", out.StopReason,
		"iterations", out.Iterations(),
		"fixed", out.Fixed(),
		"failing", len(out.Failing))

	if reason != StopDryRun {
		c.finishHistory(ctx, out)
	}
	if err := c.metrics.WriteTextfile(c.cfg.MetricsPath); err != nil {
		c.logger.Warn("writing metrics", "error", err)
	}
	if err := report.Write(c.cfg.ReportPath, out, c.logger); err != nil {
		c.logger.Warn("writing session report", "error", err)
	}
	return out
}

func (c *Controller) snapshot(sess *session, reason StopReason) *report.Session {
	return &report.Session{
		ID:                sess.id,
		RepoPath:          c.cfg.RepoPath,
		Agent:             c.invoker.AgentName(),
		StartedAt:         sess.startedAt,
		FinishedAt:        c.now(),
		StopReason:        string(reason),
		PreviouslyPassing: sess.passing.Sorted(),
		Failing:           sess.failing.Sorted(),
		Skipped:           sess.skipped,
		Attempts:          append([]core.AttemptRecord(nil), sess.attempts...),
	}
}

func (c *Controller) beginHistory(ctx context.Context, sess *session) {
	if c.history == nil {
		return
	}
	err := c.history.BeginSession(context.WithoutCancel(ctx), core.SessionSummary{
		ID:        sess.id,
		RepoPath:  c.cfg.RepoPath,
		Agent:     c.invoker.AgentName(),
		StartedAt: sess.startedAt,
		Passing:   len(sess.passing),
		Failing:   len(sess.failing),
	})
	if err != nil {
		c.logger.Warn("recording session in history", "error", err)
	}
}

func (c *Controller) finishHistory(ctx context.Context, out *report.Session) {
	if c.history == nil {
		return
	}
	if err := c.history.FinishSession(context.WithoutCancel(ctx), out.Summary()); err != nil {
		c.logger.Warn("finishing session in history", "error", err)
	}
}

func (c *Controller) template() service.PromptTemplate {
	if c.prompts == nil {
		return service.DefaultPromptTemplate()
	}
	return c.prompts.Current()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
