package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/mendbot/internal/adapters/cli"
	"github.com/hugo-lorenzo-mato/mendbot/internal/adapters/git"
	"github.com/hugo-lorenzo-mato/mendbot/internal/adapters/pytest"
	"github.com/hugo-lorenzo-mato/mendbot/internal/adapters/state"
	"github.com/hugo-lorenzo-mato/mendbot/internal/config"
	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	"github.com/hugo-lorenzo-mato/mendbot/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/mendbot/internal/fsutil"
	"github.com/hugo-lorenzo-mato/mendbot/internal/logging"
	"github.com/hugo-lorenzo-mato/mendbot/internal/service"
	"github.com/hugo-lorenzo-mato/mendbot/internal/service/fixloop"
	"github.com/hugo-lorenzo-mato/mendbot/internal/service/report"
)

var (
	runDryRun     bool
	runMaxIter    int
	runPrompt     string
	runVerbose    bool
	runAgent      string
	runModel      string
	runDelay      string
	runSeed       int64
	runRegression string
	runReport     string
	runTestPaths  []string
)

var runBindings = []flagBinding{
	{"dry-run", "loop.dry_run"},
	{"max-iterations", "loop.max_iterations"},
	{"prompt", "prompt.file"},
	{"agent", "agent.name"},
	{"model", "agent.model"},
	{"delay", "loop.delay"},
	{"seed", "selection.seed"},
	{"regression", "loop.regression"},
	{"report", "report.path"},
	{"test-path", "tests.paths"},
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&runDryRun, "dry-run", false, "discover failing tests and stop without invoking the agent")
	f.IntVar(&runMaxIter, "max-iterations", 0, "maximum fix attempts (0 = unlimited)")
	f.StringVar(&runPrompt, "prompt", "", "prompt template file (default: <path>/prompt-fix.md or built-in)")
	f.BoolVarP(&runVerbose, "verbose", "v", false, "enable debug logging")
	f.StringVar(&runAgent, "agent", "", "agent to use (claude, codex, gemini, command)")
	f.StringVar(&runModel, "model", "", "model passed to the agent")
	f.StringVar(&runDelay, "delay", "", "pause between iterations (e.g. 10s)")
	f.Int64Var(&runSeed, "seed", 0, "seed for candidate selection (0 = random)")
	f.StringVar(&runRegression, "regression", "", "regression validation: full or passing")
	f.StringVar(&runReport, "report", "", "write a session report (.md or .json)")
	f.StringSliceVar(&runTestPaths, "test-path", nil, "test paths passed to pytest (repeatable)")
}

func runFix(cmd *cobra.Command, args []string) error {
	repo, err := resolveRepo(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, repo, runBindings...)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, runVerbose)

	ctx, stop := signalContext(cmd.Context(), logger)
	defer stop()

	sess, err := newSession(ctx, cfg, repo, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	out, err := sess.controller.Run(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if err := report.PrintSummary(w, out, useColor(w)); err != nil {
		return err
	}
	if out.StopReason == string(fixloop.StopDryRun) {
		for _, name := range out.Failing {
			fmt.Fprintln(w, name)
		}
	}
	return nil
}

// signalContext cancels on the first SIGINT or SIGTERM, letting the current
// iteration finish. A second signal gets the default behaviour and kills the
// process.
func signalContext(parent context.Context, logger *logging.Logger) (context.Context, func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("signal received, finishing current iteration (repeat to abort)", "signal", sig.String())
			signal.Reset(os.Interrupt, syscall.SIGTERM)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// session bundles the wired collaborators of one run.
type session struct {
	controller *fixloop.Controller
	prompts    *service.PromptSource
	history    core.HistoryStore
	logger     *logging.Logger
}

// newSession builds every collaborator from cfg. Failures here are setup
// failures and end the run.
func newSession(ctx context.Context, cfg *config.Config, repo string, logger *logging.Logger) (*session, error) {
	tree, err := git.NewClient(repo)
	if err != nil {
		return nil, err
	}
	if _, err := fsutil.EnsureStateDir(repo); err != nil {
		return nil, err
	}
	historyPath, err := resolvePath(repo, "state.path", cfg.State.Path)
	if err != nil {
		return nil, err
	}
	reportPath, err := resolvePath(repo, "report.path", cfg.Report.Path)
	if err != nil {
		return nil, err
	}
	metricsPath, err := resolvePath(repo, "metrics.path", cfg.Metrics.Path)
	if err != nil {
		return nil, err
	}

	runner, err := pytest.NewRunner(pytest.Config{
		Command:      cfg.Tests.CommandArgs(),
		Paths:        cfg.Tests.Paths,
		Args:         cfg.Tests.Args,
		RepoPath:     repo,
		SuiteTimeout: config.MustDuration(cfg.Tests.SuiteTimeout),
		TestTimeout:  config.MustDuration(cfg.Tests.TestTimeout),
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := runner.Ping(ctx); err != nil {
		return nil, err
	}

	registry := cli.NewRegistry()
	registry.SetLogger(logger)
	if err := registry.ConfigureFromConfig(cfg, repo); err != nil {
		return nil, err
	}
	agent, err := registry.Get(cfg.Agent.Name)
	if err != nil {
		return nil, err
	}
	if !cfg.Loop.DryRun {
		if err := agent.Ping(ctx); err != nil {
			return nil, fmt.Errorf("agent %s unavailable: %w", cfg.Agent.Name, err)
		}
	}

	prompts, err := service.NewPromptSource(repo, cfg.Prompt.File, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Prompt.Watch {
		if err := prompts.Watch(); err != nil {
			logger.Warn("prompt watch disabled", "error", err)
		}
	}

	s := &session{prompts: prompts, logger: logger}
	if cfg.State.Enabled {
		store, err := state.NewSQLiteHistoryStore(historyPath)
		if err != nil {
			logger.Warn("attempt history disabled", "error", err)
		} else {
			s.history = store
		}
	}

	invoker := service.NewInvoker(service.InvokerConfig{
		Agent: agent,
		Preflight: diagnostics.NewPreflight(diagnostics.PreflightConfig{
			Enabled:         cfg.Diagnostics.Preflight,
			MinFreeMemoryMB: cfg.Diagnostics.MinFreeMemoryMB,
			MinFreeDiskMB:   cfg.Diagnostics.MinFreeDiskMB,
			Path:            repo,
		}),
		Timeout: config.MustDuration(cfg.Agent.Timeout),
		Model:   cfg.Agent.Model,
		WorkDir: repo,
		Logger:  logger,
	})

	deps := fixloop.Deps{
		Runner:   runner,
		Tree:     tree,
		Invoker:  invoker,
		Selector: service.NewSelector(service.NewRandomChooser(cfg.Selection.Seed)),
		Prompts:  prompts,
		Metrics:  service.NewMetrics(),
		Logger:   logger,
	}
	if s.history != nil {
		deps.History = s.history
	}

	controller, err := fixloop.New(fixloop.Config{
		MaxIterations: cfg.Loop.MaxIterations,
		Delay:         config.MustDuration(cfg.Loop.Delay),
		Regression:    fixloop.RegressionPolicy(cfg.Loop.Regression),
		DryRun:        cfg.Loop.DryRun,
		RepoPath:      repo,
		ReportPath:    reportPath,
		MetricsPath:   metricsPath,
	}, deps)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.controller = controller
	return s, nil
}

// Close releases the prompt watcher and the history store.
func (s *session) Close() error {
	if err := s.prompts.Close(); err != nil {
		s.logger.Debug("closing prompt watcher", "error", err)
	}
	if s.history != nil {
		return s.history.Close()
	}
	return nil
}
