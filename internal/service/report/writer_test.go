package report

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	"github.com/hugo-lorenzo-mato/mendbot/internal/logging"
)

func sampleSession() *Session {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &Session{
		ID:                "sess-1",
		RepoPath:          "/work/repo",
		Agent:             "claude",
		StartedAt:         start,
		FinishedAt:        start.Add(90 * time.Second),
		StopReason:        "max-iterations",
		PreviouslyPassing: []core.TestName{"tests.test_a::test_one", "tests.test_a::test_two"},
		Failing:           []core.TestName{"tests.test_b::test_three"},
		Attempts: []core.AttemptRecord{
			{Iteration: 1, Test: "tests.test_a::test_two", Outcome: core.OutcomeFixed, Committed: true, CommitID: "0123456789abcdef", FilesChanged: 1, LinesAdded: 3, LinesRemoved: 1, Duration: 40 * time.Second},
			{Iteration: 2, Test: "tests.test_b::test_three", Outcome: core.OutcomeRegressed, Regressions: []core.TestName{"tests.test_a::test_one"}, Duration: 30 * time.Second},
		},
	}
}

func TestSession_Counts(t *testing.T) {
	s := sampleSession()
	assert.Equal(t, 2, s.Iterations())
	assert.Equal(t, 1, s.Fixed())
	assert.InDelta(t, 50.0, s.SuccessRate(), 0.001)
	assert.Equal(t, 90*time.Second, s.Duration())

	summary := s.Summary()
	assert.Equal(t, "sess-1", summary.ID)
	assert.Equal(t, 2, summary.Passing)
	assert.Equal(t, 1, summary.Failing)
	require.NotNil(t, summary.FinishedAt)
}

func TestSession_SuccessRateNoAttempts(t *testing.T) {
	assert.Zero(t, (&Session{}).SuccessRate())
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatForPath("out/report.JSON"))
	assert.Equal(t, FormatMarkdown, FormatForPath("out/report.md"))
	assert.Equal(t, FormatMarkdown, FormatForPath("report"))
}

func TestWrite_Markdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.md")
	require.NoError(t, Write(path, sampleSession(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "session_id: sess-1")
	assert.Contains(t, text, "stop_reason: max-iterations")
	assert.Contains(t, text, "# Fix Session Report")
	assert.Contains(t, text, "| 1 | `tests.test_a::test_two` | fixed | 01234567 |")
	assert.Contains(t, text, "regressed: tests.test_a::test_one")
	assert.Contains(t, text, "- `tests.test_b::test_three`")
}

func TestWrite_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, Write(path, sampleSession(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded Session
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "sess-1", decoded.ID)
	assert.Len(t, decoded.Attempts, 2)
	assert.Equal(t, core.OutcomeRegressed, decoded.Attempts[1].Outcome)
}

func TestWrite_EmptyPath(t *testing.T) {
	assert.NoError(t, Write("", sampleSession(), nil))
}

func TestRender_UnknownFormat(t *testing.T) {
	_, err := Render(sampleSession(), Format("pdf"), nil)
	assert.Error(t, err)
}

func TestMarkdown_NoFailures(t *testing.T) {
	s := sampleSession()
	s.Failing = nil
	s.Attempts = nil
	data, err := Render(s, FormatMarkdown, nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), "_None._")
	assert.NotContains(t, string(data), "## Attempts")
}

func TestRenderSummary_Plain(t *testing.T) {
	out := RenderSummary(sampleSession(), false)
	assert.Contains(t, out, "mendbot session sess-1")
	assert.Contains(t, out, "success rate  50.0%")
	assert.Contains(t, out, "fixed=1 regressed=1")
	assert.Contains(t, out, "still failing:")
	assert.Contains(t, out, "tests.test_b::test_three")
}

func TestRenderSummary_Color(t *testing.T) {
	out := RenderSummary(sampleSession(), true)
	assert.Contains(t, out, "sess-1")
	assert.Contains(t, out, "tests.test_b::test_three")
}

func TestMarkdown_RedactsSecretsInDetails(t *testing.T) {
	s := sampleSession()
	s.Attempts[1].Regressions = nil
	s.Attempts[1].Outcome = core.OutcomeAgentFailed
	s.Attempts[1].Detail = "agent error: could not reach postgresql://app:pw-12345@db/app"

	data, err := Render(s, FormatMarkdown, nil)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "pw-12345")
	assert.Contains(t, string(data), "[REDACTED]")
}

func TestJSON_RedactsSecretsInDetails(t *testing.T) {
	s := sampleSession()
	s.Attempts[1].Outcome = core.OutcomeAgentFailed
	s.Attempts[1].Detail = "agent error: 401 for key sk-ant-api03-" + strings.Repeat("a", 40)

	data, err := Render(s, FormatJSON, nil)
	require.NoError(t, err)
	assert.NotContains(t, string(data), strings.Repeat("a", 40))
	assert.Contains(t, string(data), "[REDACTED]")

	var decoded Session
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, s.Attempts[0].CommitID, decoded.Attempts[0].CommitID)
	assert.Contains(t, s.Attempts[1].Detail, "sk-ant-api03-", "the session itself is left untouched")
}

func TestRender_UsesConfiguredRedactor(t *testing.T) {
	logger := logging.New(logging.Config{Output: io.Discard, Redact: []string{`ticket-[0-9]+`}})
	s := sampleSession()
	s.Attempts[1].Detail = "agent quoted ticket-4711 in its error"

	for _, format := range []Format{FormatMarkdown, FormatJSON} {
		data, err := Render(s, format, logger)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "ticket-4711", "format %s", format)
	}
}
