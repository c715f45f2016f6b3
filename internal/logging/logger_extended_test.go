package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("DefaultConfig().Level = %q, want \"info\"", cfg.Level)
	}
	if cfg.Format != "auto" {
		t.Errorf("DefaultConfig().Format = %q, want \"auto\"", cfg.Format)
	}
	if cfg.Output == nil {
		t.Error("DefaultConfig().Output should not be nil")
	}
	if cfg.AddSource {
		t.Error("DefaultConfig().AddSource should be false")
	}
}

func TestLogger_NilOutput(t *testing.T) {
	logger := New(Config{Level: "info", Format: "text"})
	if logger == nil {
		t.Fatal("New() with nil output should not return nil")
	}
	logger.Info("test message")
}

func TestLogger_ChainedWith(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  "info",
		Format: "json",
		Output: &buf,
	})

	logger.
		WithSession("sess-123").
		WithIteration(4).
		WithTest("tests.test_lexer::test_number").
		WithAgent("claude").
		Info("chained log")

	output := buf.String()
	for _, want := range []string{`"session_id":"sess-123"`, `"iteration":4`, "tests.test_lexer::test_number", `"agent":"claude"`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  "info",
		Format: "json",
		Output: &buf,
	})

	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.HasPrefix(output, "{") {
		t.Error("JSON format should produce JSON output")
	}
	if !strings.Contains(output, "test message") {
		t.Error("JSON output should contain message")
	}
}

func TestParseLevel_AllLevels(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"DEBUG", "INFO"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "INFO"},
		{"error", "ERROR"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got.String() != tt.want {
				t.Errorf("ParseLevel(%q) = %s, want %s", tt.input, got.String(), tt.want)
			}
		})
	}
}

func TestSanitizer_AgentTranscript(t *testing.T) {
	sanitizer := NewSanitizer()

	input := "exported ANTHROPIC_API_KEY=sk-ant-REDACTED and ran pytest"
	result := sanitizer.Sanitize(input)

	if strings.Contains(result, "abcdefghij1234567890") {
		t.Errorf("key leaked: %s", result)
	}
	if !strings.Contains(result, "ran pytest") {
		t.Errorf("surrounding text should survive: %s", result)
	}
}

func TestSanitizer_ProjectKey(t *testing.T) {
	sanitizer := NewSanitizer()
	result := sanitizer.Sanitize("key sk-proj-AbCdEfGhIjKlMnOpQrStUv_wxyz")
	if strings.Contains(result, "AbCdEfGh") {
		t.Errorf("project key leaked: %s", result)
	}
}

func TestSanitizer_EmptyInput(t *testing.T) {
	if NewSanitizer().Sanitize("") != "" {
		t.Error("Empty input should produce empty output")
	}
}

func TestNewNop_Operations(t *testing.T) {
	logger := NewNop()

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")
	logger.With("key", "value").Info("with key")
	logger.WithSession("s").WithTest("t").WithIteration(1).WithAgent("claude").Info("scoped")
}

func TestPrettyHandler_AllLevels(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(NewPrettyHandler(&buf, slog.LevelDebug, true))
	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	for _, marker := range []string{"DBG", "INF", "WRN", "ERR"} {
		if !strings.Contains(output, marker) {
			t.Errorf("Expected %s level marker", marker)
		}
	}
	if !strings.Contains(output, "\033[") {
		t.Error("Expected ANSI escapes with color enabled")
	}
}

func TestPrettyHandler_NoColor(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(NewPrettyHandler(&buf, slog.LevelInfo, false))
	logger.With("test", "tests.test_a::test_x").WithGroup("run").Info("fixed", "outcome", "fixed")

	output := buf.String()
	if strings.Contains(output, "\033[") {
		t.Errorf("unexpected ANSI escapes: %q", output)
	}
	if !strings.Contains(output, "INF") || !strings.Contains(output, "outcome=fixed") {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestPrettyHandler_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, slog.LevelWarn, false))
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestIsTerminal_NonFile(t *testing.T) {
	var buf bytes.Buffer
	if isTerminal(&buf) {
		t.Error("bytes.Buffer should not be detected as terminal")
	}
}

func TestPrettyHandler_DomainValues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, slog.LevelInfo, false))
	logger.With("session_id", "0f8fad5b-d9cb-469f-a165-70867728950e").
		Info("target still failing", "output", "E   assert 1 == 2\nE   +  where 1 = add(1, 1)", "iteration", 3)

	output := buf.String()
	if strings.Count(output, "\n") != 1 {
		t.Errorf("expected a single line, got %q", output)
	}
	if !strings.Contains(output, "session_id=0f8fad5b ") {
		t.Errorf("session id not shortened: %q", output)
	}
	if !strings.Contains(output, `output="E   assert 1 == 2\nE   +  where 1 = add(1, 1)"`) {
		t.Errorf("multi-line value not quoted: %q", output)
	}
	if !strings.Contains(output, "iteration=3") {
		t.Errorf("missing iteration: %q", output)
	}
}
