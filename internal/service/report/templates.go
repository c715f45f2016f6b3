package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
)

// formatDuration renders d with a precision suited to its magnitude.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}

// escapeCell keeps a value from breaking a markdown table row.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 120 {
		s = s[:117] + "..."
	}
	return s
}

func renderSessionMarkdown(s *Session) string {
	var sb strings.Builder

	sb.WriteString("# Fix Session Report\n\n")
	sb.WriteString(fmt.Sprintf("Session `%s` on `%s` stopped: **%s**.\n\n", s.ID, s.RepoPath, s.StopReason))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Agent | %s |\n", escapeCell(s.Agent)))
	sb.WriteString(fmt.Sprintf("| Iterations | %d |\n", s.Iterations()))
	sb.WriteString(fmt.Sprintf("| Fixed | %d |\n", s.Fixed()))
	sb.WriteString(fmt.Sprintf("| Success rate | %.1f%% |\n", s.SuccessRate()))
	sb.WriteString(fmt.Sprintf("| Passing | %d |\n", len(s.PreviouslyPassing)))
	sb.WriteString(fmt.Sprintf("| Failing | %d |\n", len(s.Failing)))
	sb.WriteString(fmt.Sprintf("| Skipped | %d |\n", s.Skipped))
	sb.WriteString(fmt.Sprintf("| Duration | %s |\n\n", formatDuration(s.Duration())))

	if len(s.Attempts) > 0 {
		sb.WriteString("## Attempts\n\n")
		sb.WriteString("| # | Test | Outcome | Commit | Changes | Duration | Detail |\n")
		sb.WriteString("|---|------|---------|--------|---------|----------|--------|\n")
		for _, a := range s.Attempts {
			commit := "-"
			if a.Committed {
				commit = shortID(a.CommitID)
			}
			detail := a.Detail
			if len(a.Regressions) > 0 {
				detail = "regressed: " + joinNames(a.Regressions)
			}
			sb.WriteString(fmt.Sprintf("| %d | `%s` | %s | %s | +%d/-%d in %d | %s | %s |\n",
				a.Iteration, a.Test, a.Outcome, commit,
				a.LinesAdded, a.LinesRemoved, a.FilesChanged,
				formatDuration(a.Duration), escapeCell(detail)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Still Failing\n\n")
	writeNameList(&sb, s.Failing)

	return sb.String()
}

func writeNameList(sb *strings.Builder, names []core.TestName) {
	if len(names) == 0 {
		sb.WriteString("_None._\n")
		return
	}
	for _, n := range names {
		sb.WriteString(fmt.Sprintf("- `%s`\n", n))
	}
}

func joinNames(names []core.TestName) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
