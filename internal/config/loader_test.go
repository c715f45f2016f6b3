package config

import (
	"os"
	"path/filepath"
	"testing"
)

func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func TestLoader_Defaults(t *testing.T) {
	isolateHome(t)

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Log.Format != "auto" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "auto")
	}
	if got := cfg.Tests.CommandArgs(); len(got) != 3 || got[2] != "pytest" {
		t.Errorf("Tests.CommandArgs() = %v, want [uv run pytest]", got)
	}
	if len(cfg.Tests.Paths) != 1 || cfg.Tests.Paths[0] != "tests" {
		t.Errorf("Tests.Paths = %v, want [tests]", cfg.Tests.Paths)
	}
	if cfg.Agent.Name != "claude" {
		t.Errorf("Agent.Name = %q, want claude", cfg.Agent.Name)
	}
	if cfg.Loop.MaxIterations != 0 {
		t.Errorf("Loop.MaxIterations = %d, want 0 (unlimited)", cfg.Loop.MaxIterations)
	}
	if cfg.Loop.Regression != RegressionFull {
		t.Errorf("Loop.Regression = %q, want %q", cfg.Loop.Regression, RegressionFull)
	}
	if !cfg.State.Enabled || cfg.State.Path != ".mendbot/history.db" {
		t.Errorf("State = %+v", cfg.State)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoader_EnvOverride(t *testing.T) {
	isolateHome(t)
	t.Setenv("MENDBOT_LOG_LEVEL", "debug")
	t.Setenv("MENDBOT_LOOP_MAX_ITERATIONS", "5")
	t.Setenv("MENDBOT_AGENT_NAME", "codex")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Loop.MaxIterations != 5 {
		t.Errorf("Loop.MaxIterations = %d, want 5", cfg.Loop.MaxIterations)
	}
	if cfg.Agent.Name != "codex" {
		t.Errorf("Agent.Name = %q, want codex", cfg.Agent.Name)
	}
}

func TestLoader_RepoConfig(t *testing.T) {
	isolateHome(t)
	repo := t.TempDir()
	if err := os.MkdirAll(filepath.Join(repo, ".mendbot"), 0o755); err != nil {
		t.Fatal(err)
	}
	content := `
tests:
  command: python -m pytest
  paths: [tests/unit, tests/integration]
loop:
  regression: passing
  max_iterations: 3
`
	if err := os.WriteFile(filepath.Join(repo, ".mendbot", "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader().WithRepo(repo)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Tests.Command != "python -m pytest" {
		t.Errorf("Tests.Command = %q", cfg.Tests.Command)
	}
	if len(cfg.Tests.Paths) != 2 {
		t.Errorf("Tests.Paths = %v", cfg.Tests.Paths)
	}
	if cfg.Loop.Regression != RegressionPassing || cfg.Loop.MaxIterations != 3 {
		t.Errorf("Loop = %+v", cfg.Loop)
	}
	if cfg.Tests.TestTimeout != "60s" {
		t.Errorf("unset keys keep defaults, got TestTimeout %q", cfg.Tests.TestTimeout)
	}
	if loader.ConfigFile() != filepath.Join(repo, ".mendbot", "config.yaml") {
		t.Errorf("ConfigFile() = %q", loader.ConfigFile())
	}
}

func TestLoader_Precedence(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "mendbot.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: warn\nagent:\n  name: gemini\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MENDBOT_LOG_LEVEL", "error")

	cfg, err := NewLoader().WithConfigFile(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "error" {
		t.Errorf("env should beat file: Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Agent.Name != "gemini" {
		t.Errorf("file should beat defaults: Agent.Name = %q", cfg.Agent.Name)
	}
}

func TestLoader_MissingExplicitConfig(t *testing.T) {
	isolateHome(t)
	_, err := NewLoader().WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoader_InvalidConfigFile(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("log: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewLoader().WithConfigFile(path).Load(); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoader_WithEnvPrefix(t *testing.T) {
	isolateHome(t)
	t.Setenv("CUSTOM_LOG_LEVEL", "error")

	cfg, err := NewLoader().WithEnvPrefix("CUSTOM").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, want error", cfg.Log.Level)
	}
}
