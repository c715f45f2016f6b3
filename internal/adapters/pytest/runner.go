// Package pytest runs a Python test suite through pytest and models its JUnit
// XML report as test results.
package pytest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	"github.com/hugo-lorenzo-mato/mendbot/internal/fsutil"
	"github.com/hugo-lorenzo-mato/mendbot/internal/logging"
)

// pytest exit codes.
const (
	exitOK          = 0
	exitTestsFailed = 1
	exitInterrupted = 2
	exitInternal    = 3
	exitUsage       = 4
	exitNoTests     = 5
)

const (
	defaultSuiteTimeout = 10 * time.Minute
	defaultTestTimeout  = 60 * time.Second
	outputTailLen       = 2000
	maxSuggestions      = 3
)

// DefaultCommand is the command used when none is configured.
var DefaultCommand = []string{"uv", "run", "pytest"}

// Config configures the runner.
type Config struct {
	// Command is the pytest invocation, e.g. ["uv", "run", "pytest"].
	Command []string
	// Paths are the suite roots passed to RunAll.
	Paths []string
	// Args are extra arguments appended to every invocation.
	Args         []string
	RepoPath     string
	SuiteTimeout time.Duration
	TestTimeout  time.Duration
}

// Runner implements core.TestRunner on top of pytest.
type Runner struct {
	cfg      Config
	logger   *logging.Logger
	resolver *nameResolver

	mu    sync.Mutex
	known []string
}

// NewRunner creates a runner rooted at cfg.RepoPath.
func NewRunner(cfg Config, logger *logging.Logger) (*Runner, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if len(cfg.Command) == 0 {
		cfg.Command = DefaultCommand
	}
	if cfg.SuiteTimeout <= 0 {
		cfg.SuiteTimeout = defaultSuiteTimeout
	}
	if cfg.TestTimeout <= 0 {
		cfg.TestTimeout = defaultTestTimeout
	}
	absPath, err := filepath.Abs(cfg.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg.RepoPath = absPath

	return &Runner{
		cfg:      cfg,
		logger:   logger,
		resolver: newNameResolver(absPath),
	}, nil
}

// Ping verifies the test command can be found.
func (r *Runner) Ping(_ context.Context) error {
	if _, err := exec.LookPath(r.cfg.Command[0]); err != nil {
		return core.ErrHarnessFailure(fmt.Sprintf("test command %q not found", r.cfg.Command[0])).WithCause(err)
	}
	return nil
}

// RunAll executes the configured suite once.
func (r *Runner) RunAll(ctx context.Context) ([]core.TestResult, error) {
	run, err := r.run(ctx, r.cfg.Paths, r.cfg.SuiteTimeout)
	if err != nil {
		return nil, err
	}
	switch run.exitCode {
	case exitOK, exitTestsFailed, exitInterrupted, exitNoTests:
	default:
		return nil, core.ErrHarnessFailure(fmt.Sprintf("pytest exited with code %d", run.exitCode)).
			WithDetail("output", run.tail())
	}
	if err := run.requireReport(); err != nil {
		return nil, err
	}

	results, err := parseJUnit(run.report, r.resolver)
	if err != nil {
		return nil, err
	}
	r.remember(results)
	return results, nil
}

// RunOne executes exactly one test. A module-level name passes once the
// module collects without error.
func (r *Runner) RunOne(ctx context.Context, name core.TestName) (core.TestResult, error) {
	if name.IsModule() {
		return r.runModule(ctx, name)
	}
	run, err := r.run(ctx, []string{r.resolver.selector(name)}, r.cfg.TestTimeout)
	if err != nil {
		return core.TestResult{}, err
	}
	switch run.exitCode {
	case exitOK, exitTestsFailed, exitInterrupted:
	case exitUsage, exitNoTests:
		return core.TestResult{}, r.notFound(name)
	default:
		return core.TestResult{}, core.ErrHarnessFailure(fmt.Sprintf("pytest exited with code %d", run.exitCode)).
			WithDetail("output", run.tail())
	}
	if err := run.requireReport(); err != nil {
		return core.TestResult{}, err
	}

	results, err := parseJUnit(run.report, r.resolver)
	if err != nil {
		return core.TestResult{}, err
	}
	for _, res := range results {
		if res.Name == name {
			return res, nil
		}
	}
	// A lone result is the selected test even when the report names it
	// differently, e.g. a rootdir other than the repository root.
	if len(results) == 1 {
		res := results[0]
		r.logger.Debug("pytest: adopting single result under requested name",
			"requested", name, "reported", res.Name)
		res.Name = name
		return res, nil
	}
	return core.TestResult{}, r.notFound(name)
}

func (r *Runner) runModule(ctx context.Context, name core.TestName) (core.TestResult, error) {
	run, err := r.run(ctx, []string{r.resolver.selector(name)}, r.cfg.TestTimeout)
	if err != nil {
		return core.TestResult{}, err
	}
	switch run.exitCode {
	case exitOK, exitTestsFailed, exitInterrupted, exitNoTests:
	case exitUsage:
		return core.TestResult{}, r.notFound(name)
	default:
		return core.TestResult{}, core.ErrHarnessFailure(fmt.Sprintf("pytest exited with code %d", run.exitCode)).
			WithDetail("output", run.tail())
	}
	if err := run.requireReport(); err != nil {
		return core.TestResult{}, err
	}

	results, err := parseJUnit(run.report, r.resolver)
	if err != nil {
		return core.TestResult{}, err
	}
	for _, res := range results {
		if res.Name.IsModule() && res.Failing() {
			res.Name = name
			return res, nil
		}
	}
	return core.TestResult{
		Name:   name,
		Status: core.TestStatusPassed,
		Output: fmt.Sprintf("module collected %d test(s)", len(results)),
	}, nil
}

// RunSelected executes the named tests in one invocation.
func (r *Runner) RunSelected(ctx context.Context, names []core.TestName) ([]core.TestResult, error) {
	if len(names) == 0 {
		return nil, nil
	}
	selectors := make([]string, len(names))
	for i, n := range names {
		selectors[i] = r.resolver.selector(n)
	}

	run, err := r.run(ctx, selectors, r.cfg.SuiteTimeout)
	if err != nil {
		return nil, err
	}
	switch run.exitCode {
	case exitOK, exitTestsFailed, exitInterrupted:
	case exitUsage, exitNoTests:
		return nil, core.ErrTestNotFound(names[0]).
			WithDetail("output", run.tail())
	default:
		return nil, core.ErrHarnessFailure(fmt.Sprintf("pytest exited with code %d", run.exitCode)).
			WithDetail("output", run.tail())
	}
	if err := run.requireReport(); err != nil {
		return nil, err
	}
	return parseJUnit(run.report, r.resolver)
}

// Known returns the names observed by the last RunAll.
func (r *Runner) Known() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.known...)
}

func (r *Runner) remember(results []core.TestResult) {
	known := make([]string, len(results))
	for i, res := range results {
		known[i] = string(res.Name)
	}
	r.mu.Lock()
	r.known = known
	r.mu.Unlock()
}

func (r *Runner) notFound(name core.TestName) *core.DomainError {
	err := core.ErrTestNotFound(name)
	if s := r.suggest(name); len(s) > 0 {
		err = err.WithDetail("suggestions", s)
	}
	return err
}

// suggest returns the closest known names, matched on the test id.
func (r *Runner) suggest(name core.TestName) []string {
	known := r.Known()
	if len(known) == 0 {
		return nil
	}
	pattern := string(name)
	if i := strings.LastIndex(pattern, nodeSep); i >= 0 {
		pattern = pattern[i+len(nodeSep):]
	}
	if i := strings.IndexByte(pattern, '['); i > 0 {
		pattern = pattern[:i]
	}

	matches := fuzzy.Find(pattern, known)
	out := make([]string, 0, maxSuggestions)
	for _, m := range matches {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, m.Str)
	}
	return out
}

type runOutput struct {
	exitCode int
	output   []byte
	report   []byte
}

func (o runOutput) requireReport() error {
	if len(bytes.TrimSpace(o.report)) == 0 {
		return core.ErrHarnessFailure("pytest produced no junit report").
			WithDetail("exit_code", o.exitCode).
			WithDetail("output", o.tail())
	}
	return nil
}

func (o runOutput) tail() string {
	s := strings.TrimSpace(string(o.output))
	if len(s) > outputTailLen {
		s = "..." + s[len(s)-outputTailLen:]
	}
	return s
}

// run invokes pytest once and collects its exit code, combined output and
// JUnit report. Process-level failures to launch are harness failures.
func (r *Runner) run(ctx context.Context, selectors []string, timeout time.Duration) (runOutput, error) {
	stateDir, err := fsutil.EnsureStateDir(r.cfg.RepoPath)
	if err != nil {
		return runOutput{}, core.ErrHarnessFailure("preparing state directory").WithCause(err)
	}
	tmpDir := filepath.Join(stateDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o750); err != nil {
		return runOutput{}, core.ErrHarnessFailure("preparing report directory").WithCause(err)
	}
	reportFile, err := os.CreateTemp(tmpDir, "junit-*.xml")
	if err != nil {
		return runOutput{}, core.ErrHarnessFailure("creating report file").WithCause(err)
	}
	reportPath := reportFile.Name()
	_ = reportFile.Close()
	defer os.Remove(reportPath)

	args := append([]string{}, r.cfg.Command[1:]...)
	args = append(args, selectors...)
	args = append(args,
		"-v", "--tb=short",
		"-p", "no:cacheprovider",
		"-o", "junit_family=xunit1",
		"--junit-xml="+reportPath,
	)
	args = append(args, r.cfg.Args...)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- command comes from validated config
	cmd := exec.CommandContext(runCtx, r.cfg.Command[0], args...)
	cmd.Dir = r.cfg.RepoPath
	cmd.Env = append(os.Environ(), "PYTHONDONTWRITEBYTECODE=1", "MENDBOT_MANAGED=true")
	configureProcAttr(cmd)
	cmd.WaitDelay = 5 * time.Second

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	r.logger.Debug("pytest: running",
		"command", r.cfg.Command[0],
		"args", args,
		"timeout", timeout,
	)
	start := time.Now()
	err = cmd.Run()
	duration := time.Since(start)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return runOutput{}, core.ErrRunTimeout(fmt.Sprintf("test run exceeded %v", timeout)).
			WithDetail("selectors", len(selectors))
	}
	if ctx.Err() != nil {
		return runOutput{}, ctx.Err()
	}

	out := runOutput{output: output.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return runOutput{}, core.ErrHarnessFailure(fmt.Sprintf("running %s", r.cfg.Command[0])).WithCause(err)
		}
		out.exitCode = exitErr.ExitCode()
	}

	r.logger.Debug("pytest: finished",
		"exit_code", out.exitCode,
		"duration", duration,
		"output_length", output.Len(),
	)

	out.report, err = os.ReadFile(reportPath)
	if err != nil && !os.IsNotExist(err) {
		return runOutput{}, core.ErrHarnessFailure("reading junit report").WithCause(err)
	}
	return out, nil
}
