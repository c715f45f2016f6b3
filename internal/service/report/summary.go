package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
)

// Color palette
var (
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#9CA3AF")
	colorPrimary = lipgloss.Color("#7C3AED")
)

type summaryStyles struct {
	header  lipgloss.Style
	label   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
	box     lipgloss.Style
}

func newSummaryStyles(color bool) summaryStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return summaryStyles{plain, plain, plain, plain, plain, plain, plain}
	}
	return summaryStyles{
		header:  lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		label:   lipgloss.NewStyle().Foreground(colorMuted).Width(14),
		success: lipgloss.NewStyle().Foreground(colorSuccess).Bold(true),
		warning: lipgloss.NewStyle().Foreground(colorWarning),
		failure: lipgloss.NewStyle().Foreground(colorError).Bold(true),
		muted:   lipgloss.NewStyle().Foreground(colorMuted),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1),
	}
}

func (st summaryStyles) outcome(o core.Outcome) lipgloss.Style {
	switch o {
	case core.OutcomeFixed:
		return st.success
	case core.OutcomeRegressed, core.OutcomeAgentFailed:
		return st.failure
	case core.OutcomeTimedOut:
		return st.warning
	default:
		return st.muted
	}
}

// RenderSummary renders the end-of-session summary shown on the terminal.
func RenderSummary(s *Session, color bool) string {
	st := newSummaryStyles(color)
	row := func(label, value string) string {
		if color {
			return st.label.Render(label) + value
		}
		return fmt.Sprintf("%-14s%s", label, value)
	}

	failing := fmt.Sprintf("%d", len(s.Failing))
	if len(s.Failing) > 0 {
		failing = st.failure.Render(failing)
	} else {
		failing = st.success.Render(failing)
	}

	lines := []string{
		st.header.Render("mendbot session " + s.ID),
		row("stopped", s.StopReason),
		row("iterations", fmt.Sprintf("%d", s.Iterations())),
		row("fixed", st.success.Render(fmt.Sprintf("%d", s.Fixed()))),
		row("success rate", fmt.Sprintf("%.1f%%", s.SuccessRate())),
		row("passing", fmt.Sprintf("%d", len(s.PreviouslyPassing))),
		row("failing", failing),
		row("duration", formatDuration(s.Duration())),
	}

	counts := core.CountOutcomes(s.Attempts)
	var parts []string
	for _, o := range core.AllOutcomes {
		if counts[o] > 0 {
			parts = append(parts, st.outcome(o).Render(fmt.Sprintf("%s=%d", o, counts[o])))
		}
	}
	if len(parts) > 0 {
		lines = append(lines, row("outcomes", strings.Join(parts, " ")))
	}

	body := strings.Join(lines, "\n")
	if len(s.Failing) > 0 {
		names := make([]string, 0, len(s.Failing))
		for _, n := range s.Failing {
			names = append(names, "  "+st.muted.Render(string(n)))
		}
		body += "\n\n" + st.warning.Render("still failing:") + "\n" + strings.Join(names, "\n")
	}

	if !color {
		return body + "\n"
	}
	return st.box.Render(body) + "\n"
}

// PrintSummary writes RenderSummary to w.
func PrintSummary(w io.Writer, s *Session, color bool) error {
	_, err := io.WriteString(w, RenderSummary(s, color))
	return err
}
