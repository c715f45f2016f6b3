package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// KnownAgents lists the agent adapter names accepted by agent.name.
var KnownAgents = []string{"claude", "codex", "gemini", "command"}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateTests(&cfg.Tests)
	v.validateAgent(&cfg.Agent)
	v.validateLoop(&cfg.Loop)
	v.validateState(&cfg.State)
	v.validateOutputs(cfg)
	v.validateDiagnostics(&cfg.Diagnostics)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}

	for _, p := range cfg.Redact {
		if _, err := regexp.Compile(p); err != nil {
			v.addError("log.redact", p, "invalid regular expression")
		}
	}
}

func (v *Validator) validateTests(cfg *TestsConfig) {
	if len(cfg.CommandArgs()) == 0 {
		v.addError("tests.command", cfg.Command, "required")
	}
	v.validatePositiveDuration("tests.suite_timeout", cfg.SuiteTimeout)
	v.validatePositiveDuration("tests.test_timeout", cfg.TestTimeout)
}

func (v *Validator) validateAgent(cfg *AgentConfig) {
	known := false
	for _, name := range KnownAgents {
		if cfg.Name == name {
			known = true
			break
		}
	}
	if !known {
		v.addError("agent.name", cfg.Name, "must be one of: "+strings.Join(KnownAgents, ", "))
	}
	if cfg.Name == "command" && strings.TrimSpace(cfg.Path) == "" {
		v.addError("agent.path", cfg.Path, "required for the command agent")
	}
	v.validatePositiveDuration("agent.timeout", cfg.Timeout)
}

func (v *Validator) validateLoop(cfg *LoopConfig) {
	if cfg.MaxIterations < 0 {
		v.addError("loop.max_iterations", cfg.MaxIterations, "must be >= 0")
	}
	if d, err := ParseDuration(cfg.Delay); err != nil {
		v.addError("loop.delay", cfg.Delay, "invalid duration format")
	} else if d < 0 {
		v.addError("loop.delay", cfg.Delay, "must be >= 0")
	}
	if cfg.Regression != RegressionFull && cfg.Regression != RegressionPassing {
		v.addError("loop.regression", cfg.Regression, "must be one of: full, passing")
	}
}

func (v *Validator) validateState(cfg *StateConfig) {
	if cfg.Enabled && cfg.Path == "" {
		v.addError("state.path", cfg.Path, "required when state is enabled")
	}
}

func (v *Validator) validateOutputs(cfg *Config) {
	if cfg.Report.Path != "" && !isValidPath(cfg.Report.Path) {
		v.addError("report.path", cfg.Report.Path, "invalid file path")
	}
	if cfg.Metrics.Path != "" && !isValidPath(cfg.Metrics.Path) {
		v.addError("metrics.path", cfg.Metrics.Path, "invalid file path")
	}
}

func (v *Validator) validateDiagnostics(cfg *DiagnosticsConfig) {
	if cfg.MinFreeMemoryMB < 0 {
		v.addError("diagnostics.min_free_memory_mb", cfg.MinFreeMemoryMB, "must be >= 0")
	}
	if cfg.MinFreeDiskMB < 0 {
		v.addError("diagnostics.min_free_disk_mb", cfg.MinFreeDiskMB, "must be >= 0")
	}
}

func (v *Validator) validatePositiveDuration(field, value string) {
	d, err := ParseDuration(value)
	if err != nil {
		v.addError(field, value, "invalid duration format")
		return
	}
	if d <= 0 {
		v.addError(field, value, "must be positive")
	}
}

func isValidPath(path string) bool {
	dir := filepath.Dir(path)
	_, err := os.Stat(dir)
	return err == nil || os.IsNotExist(err)
}

// ValidateConfig is a convenience function that creates a validator and validates config.
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	return v.Validate(cfg)
}
