package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Tests       TestsConfig       `mapstructure:"tests" yaml:"tests"`
	Agent       AgentConfig       `mapstructure:"agent" yaml:"agent"`
	Loop        LoopConfig        `mapstructure:"loop" yaml:"loop"`
	Selection   SelectionConfig   `mapstructure:"selection" yaml:"selection"`
	Prompt      PromptConfig      `mapstructure:"prompt" yaml:"prompt"`
	State       StateConfig       `mapstructure:"state" yaml:"state"`
	Report      ReportConfig      `mapstructure:"report" yaml:"report"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	// Redact adds regular expressions whose matches are masked in logs.
	Redact []string `mapstructure:"redact" yaml:"redact"`
}

// TestsConfig configures the test runner.
type TestsConfig struct {
	// Command is the pytest invocation, split on whitespace.
	Command      string   `mapstructure:"command" yaml:"command"`
	Paths        []string `mapstructure:"paths" yaml:"paths"`
	Args         []string `mapstructure:"args" yaml:"args"`
	SuiteTimeout string   `mapstructure:"suite_timeout" yaml:"suite_timeout"`
	TestTimeout  string   `mapstructure:"test_timeout" yaml:"test_timeout"`
}

// CommandArgs returns the command split into argv.
func (c TestsConfig) CommandArgs() []string {
	return strings.Fields(c.Command)
}

// AgentConfig configures the fixing agent.
type AgentConfig struct {
	// Name selects the adapter: claude, codex, gemini or command.
	Name string `mapstructure:"name" yaml:"name"`
	// Path overrides the executable; required for the command adapter.
	Path    string   `mapstructure:"path" yaml:"path"`
	Model   string   `mapstructure:"model" yaml:"model"`
	Args    []string `mapstructure:"args" yaml:"args"`
	Timeout string   `mapstructure:"timeout" yaml:"timeout"`
	// Continue resumes the agent's previous conversation (claude -c).
	Continue bool `mapstructure:"continue" yaml:"continue"`
}

// LoopConfig configures the iteration controller.
type LoopConfig struct {
	// MaxIterations caps the number of attempts; 0 means unlimited.
	MaxIterations int    `mapstructure:"max_iterations" yaml:"max_iterations"`
	Delay         string `mapstructure:"delay" yaml:"delay"`
	// Regression is "full" (re-run the suite) or "passing" (re-run only
	// previously passing tests plus the target).
	Regression string `mapstructure:"regression" yaml:"regression"`
	DryRun     bool   `mapstructure:"dry_run" yaml:"dry_run"`
}

// SelectionConfig configures candidate selection.
type SelectionConfig struct {
	// Seed makes selection reproducible; 0 picks a random seed.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

// PromptConfig configures the fix prompt template.
type PromptConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Watch bool   `mapstructure:"watch" yaml:"watch"`
}

// StateConfig configures the attempt history database.
type StateConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ReportConfig configures the session report file.
type ReportConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DiagnosticsConfig configures resource checks before agent launches.
type DiagnosticsConfig struct {
	Preflight       bool `mapstructure:"preflight" yaml:"preflight"`
	MinFreeMemoryMB int  `mapstructure:"min_free_memory_mb" yaml:"min_free_memory_mb"`
	MinFreeDiskMB   int  `mapstructure:"min_free_disk_mb" yaml:"min_free_disk_mb"`
}

// ParseDuration parses a config duration, treating "" and "0" as zero.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", s, err)
	}
	return d, nil
}

// MustDuration parses a duration already checked by the validator.
func MustDuration(s string) time.Duration {
	d, _ := ParseDuration(s)
	return d
}
