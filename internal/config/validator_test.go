package config

import (
	"errors"
	"strings"
	"testing"
)

// validConfig returns a valid configuration for testing.
func validConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "auto"},
		Tests: TestsConfig{
			Command:      "uv run pytest",
			Paths:        []string{"tests"},
			SuiteTimeout: "10m",
			TestTimeout:  "60s",
		},
		Agent: AgentConfig{Name: "claude", Timeout: "30m"},
		Loop:  LoopConfig{Delay: "0s", Regression: RegressionFull},
		State: StateConfig{Enabled: true, Path: ".mendbot/history.db"},
		Diagnostics: DiagnosticsConfig{
			Preflight:       true,
			MinFreeMemoryMB: 256,
			MinFreeDiskMB:   512,
		},
	}
}

func TestValidator_ValidConfig(t *testing.T) {
	if err := ValidateConfig(validConfig()); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"redact pattern", func(c *Config) { c.Log.Redact = []string{"[unclosed"} }, "log.redact"},
		{"empty command", func(c *Config) { c.Tests.Command = "  " }, "tests.command"},
		{"suite timeout", func(c *Config) { c.Tests.SuiteTimeout = "soon" }, "tests.suite_timeout"},
		{"zero test timeout", func(c *Config) { c.Tests.TestTimeout = "0" }, "tests.test_timeout"},
		{"unknown agent", func(c *Config) { c.Agent.Name = "copilot" }, "agent.name"},
		{"command without path", func(c *Config) { c.Agent.Name = "command" }, "agent.path"},
		{"agent timeout", func(c *Config) { c.Agent.Timeout = "-1m" }, "agent.timeout"},
		{"negative iterations", func(c *Config) { c.Loop.MaxIterations = -1 }, "loop.max_iterations"},
		{"delay", func(c *Config) { c.Loop.Delay = "later" }, "loop.delay"},
		{"regression", func(c *Config) { c.Loop.Regression = "some" }, "loop.regression"},
		{"state path", func(c *Config) { c.State.Path = "" }, "state.path"},
		{"disk", func(c *Config) { c.Diagnostics.MinFreeDiskMB = -5 }, "diagnostics.min_free_disk_mb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %s", err, tt.field)
			}
		})
	}
}

func TestValidator_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Level = "loud"
	cfg.Loop.Regression = "none"

	v := NewValidator()
	_ = v.Validate(cfg)
	if len(v.Errors()) != 2 || !v.Errors().HasErrors() {
		t.Fatalf("Errors() = %v, want 2 errors", v.Errors())
	}
}

func TestValidator_CommandAgentWithPath(t *testing.T) {
	cfg := validConfig()
	cfg.Agent.Name = "command"
	cfg.Agent.Path = "./scripts/fix.sh"
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestParseDuration(t *testing.T) {
	for in, want := range map[string]string{"": "0s", "0": "0s", "90s": "1m30s", "2h": "2h0m0s"} {
		d, err := ParseDuration(in)
		if err != nil {
			t.Fatalf("ParseDuration(%q) error = %v", in, err)
		}
		if d.String() != want {
			t.Errorf("ParseDuration(%q) = %s, want %s", in, d, want)
		}
	}
	if _, err := ParseDuration("tomorrow"); err == nil {
		t.Error("expected error for invalid duration")
	}
}
