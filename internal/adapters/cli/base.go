package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	"github.com/hugo-lorenzo-mato/mendbot/internal/logging"
)

// DefaultTimeout bounds a single agent run when neither the call nor the
// configuration sets one.
const DefaultTimeout = 30 * time.Minute

// AgentConfig holds adapter configuration.
type AgentConfig struct {
	Name    string
	Path    string
	Model   string
	Args    []string
	Timeout time.Duration
	WorkDir string
	// Continue resumes the previous conversation where the CLI supports it.
	Continue bool
}

// BaseAdapter provides common CLI execution functionality.
type BaseAdapter struct {
	config AgentConfig
	logger *logging.Logger

	// ExtraEnv holds additional environment variables to set for command execution.
	// Values are applied on top of the current process environment.
	ExtraEnv map[string]string
}

// NewBaseAdapter creates a new base adapter.
func NewBaseAdapter(cfg AgentConfig, logger *logging.Logger) *BaseAdapter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &BaseAdapter{
		config: cfg,
		logger: logger,
	}
}

// SetLogger replaces the adapter logger.
func (b *BaseAdapter) SetLogger(logger *logging.Logger) {
	if logger != nil {
		b.logger = logger.WithAgent(b.config.Name)
	}
}

// CommandResult holds the result of a CLI execution.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Combined returns stdout followed by stderr.
func (r *CommandResult) Combined() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// ExecuteCommand runs the configured CLI with args, feeding stdin when it is
// non-empty. Both output streams are drained concurrently and echoed to the
// debug log line by line. optTimeout overrides the configured timeout when
// positive.
func (b *BaseAdapter) ExecuteCommand(ctx context.Context, args []string, stdin, workDir string, optTimeout time.Duration) (*CommandResult, error) {
	timeout := optTimeout
	if timeout <= 0 {
		timeout = b.config.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmdPath := b.config.Path
	if cmdPath == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "adapter path not configured")
	}

	// Handle multi-word commands (e.g., "npx codex")
	cmdParts := strings.Fields(cmdPath)
	if len(cmdParts) > 1 {
		cmdPath = cmdParts[0]
		args = append(append([]string{}, cmdParts[1:]...), args...)
	}

	// #nosec G204 -- command path and args come from validated config
	cmd := exec.CommandContext(ctx, cmdPath, args...)
	configureProcAttr(cmd)
	cmd.WaitDelay = 5 * time.Second
	if workDir != "" {
		cmd.Dir = workDir
	} else if b.config.WorkDir != "" {
		cmd.Dir = b.config.WorkDir
	}
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	cmd.Env = append(os.Environ(), "MENDBOT_MANAGED=true", "MENDBOT_AGENT="+b.config.Name)
	for k, v := range b.ExtraEnv {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		_ = stdoutPipe.Close()
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	b.logger.Info("cli: executing command",
		"path", cmdPath,
		"args", len(args),
		"work_dir", cmd.Dir,
		"stdin_length", len(stdin),
		"timeout", timeout,
	)

	startTime := time.Now()
	if err := cmd.Start(); err != nil {
		_ = stdoutPipe.Close()
		_ = stderrPipe.Close()
		return nil, core.ErrExecution(core.CodeAgentError,
			fmt.Sprintf("starting %s: %v", cmdPath, err)).WithCause(err)
	}

	b.logger.Debug("cli: process started", "pid", cmd.Process.Pid)

	var stdout, stderr bytes.Buffer
	var g errgroup.Group
	g.Go(func() error { return b.drain(stdoutPipe, &stdout, "stdout") })
	g.Go(func() error { return b.drain(stderrPipe, &stderr, "stderr") })
	drainErr := g.Wait()
	err = cmd.Wait()

	duration := time.Since(startTime)
	result := &CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		b.logger.Error("cli: command timeout",
			"path", cmdPath,
			"duration", duration,
			"timeout", timeout,
			"stderr_preview", truncateForLog(result.Stderr, 1000),
		)
		return result, core.ErrTimeout(fmt.Sprintf("agent timed out after %v", timeout))
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		b.logger.Info("cli: command cancelled", "path", cmdPath, "duration", duration)
		return result, core.ErrState("CANCELLED", "agent run cancelled").WithCause(ctx.Err())
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			b.logger.Error("cli: command failed",
				"path", cmdPath,
				"exit_code", result.ExitCode,
				"duration", duration,
				"stderr", truncateForLog(result.Stderr, 2000),
			)
			return result, b.classifyError(result)
		}
		return result, core.ErrExecution(core.CodeAgentError,
			fmt.Sprintf("executing %s: %v", cmdPath, err)).WithCause(err)
	}
	if drainErr != nil {
		b.logger.Warn("cli: reading agent output", "error", drainErr)
	}

	b.logger.Info("cli: command completed",
		"path", cmdPath,
		"duration", duration,
		"stdout_length", len(result.Stdout),
		"stderr_length", len(result.Stderr),
	)
	return result, nil
}

// drain copies r into buf line by line, logging each line at debug level.
func (b *BaseAdapter) drain(r io.Reader, buf *bytes.Buffer, stream string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		b.logger.Debug("agent output", "stream", stream, "line", line)
	}
	// Pipes close abruptly when the process group is killed.
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("%s: %w", stream, err)
	}
	return nil
}

// classifyError turns a non-zero exit into an AGENT_ERROR.
func (b *BaseAdapter) classifyError(result *CommandResult) error {
	msg := lastLine(result.Stderr)
	if msg == "" {
		msg = lastLine(result.Stdout)
	}
	if msg == "" {
		msg = "(no error message captured)"
	}
	return core.ErrExecution(core.CodeAgentError,
		fmt.Sprintf("%s exited with code %d: %s", b.config.Name, result.ExitCode, msg)).
		WithDetail("exit_code", result.ExitCode)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			return truncateForLog(line, 200)
		}
	}
	return ""
}

func truncateForLog(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "... [truncated]"
	}
	return s
}

// GetVersion retrieves the CLI version.
func (b *BaseAdapter) GetVersion(ctx context.Context, versionArg string) (string, error) {
	result, err := b.ExecuteCommand(ctx, []string{versionArg}, "", "", 30*time.Second)
	if err != nil {
		return "", err
	}

	output := result.Stdout + result.Stderr
	if match := versionPattern.FindString(output); match != "" {
		return match, nil
	}
	return strings.TrimSpace(output), nil
}

var versionPattern = regexp.MustCompile(`v?\d+\.\d+(\.\d+)?(-[a-zA-Z0-9]+)?`)

// CheckAvailability verifies the CLI is installed and accessible.
func (b *BaseAdapter) CheckAvailability(_ context.Context) error {
	cmdPath := b.config.Path
	if cmdPath == "" {
		return core.ErrValidation(core.CodeInvalidConfig, "adapter path not configured")
	}

	cmdPath = strings.Fields(cmdPath)[0]
	if _, err := exec.LookPath(cmdPath); err != nil {
		return core.ErrNotFound("CLI", cmdPath)
	}
	return nil
}

// Config returns the adapter configuration.
func (b *BaseAdapter) Config() AgentConfig {
	return b.config
}

// toResult converts a command result into the port's result type.
func toResult(result *CommandResult) *core.ExecuteResult {
	return &core.ExecuteResult{
		Output:   result.Combined(),
		ExitCode: result.ExitCode,
		Duration: result.Duration,
	}
}

// modelOrDefault prefers the per-call model over the configured one.
func (b *BaseAdapter) modelOrDefault(opts core.ExecuteOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return b.config.Model
}
