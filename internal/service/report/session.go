// Package report renders and writes the outcome of a fix session.
package report

import (
	"time"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
)

// Session is the final state of one controller run.
type Session struct {
	ID                string               `json:"session_id" yaml:"session_id"`
	RepoPath          string               `json:"repo_path" yaml:"repo_path"`
	Agent             string               `json:"agent" yaml:"agent"`
	StartedAt         time.Time            `json:"started_at" yaml:"started_at"`
	FinishedAt        time.Time            `json:"finished_at" yaml:"finished_at"`
	StopReason        string               `json:"stop_reason" yaml:"stop_reason"`
	PreviouslyPassing []core.TestName      `json:"previously_passing" yaml:"previously_passing"`
	Failing           []core.TestName      `json:"failing" yaml:"failing"`
	Skipped           int                  `json:"skipped" yaml:"skipped"`
	Attempts          []core.AttemptRecord `json:"attempts" yaml:"attempts"`
}

// Iterations returns the number of attempts made.
func (s *Session) Iterations() int {
	return len(s.Attempts)
}

// Fixed returns the number of committed fixes.
func (s *Session) Fixed() int {
	n := 0
	for _, a := range s.Attempts {
		if a.Committed {
			n++
		}
	}
	return n
}

// SuccessRate is the percentage of attempts that ended in a commit.
func (s *Session) SuccessRate() float64 {
	if len(s.Attempts) == 0 {
		return 0
	}
	return float64(s.Fixed()) / float64(len(s.Attempts)) * 100
}

// Duration is the wall time of the session.
func (s *Session) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Summary converts the session into its persisted header.
func (s *Session) Summary() core.SessionSummary {
	summary := core.SessionSummary{
		ID:         s.ID,
		RepoPath:   s.RepoPath,
		Agent:      s.Agent,
		StartedAt:  s.StartedAt,
		StopReason: s.StopReason,
		Iterations: s.Iterations(),
		Fixed:      s.Fixed(),
		Passing:    len(s.PreviouslyPassing),
		Failing:    len(s.Failing),
	}
	if !s.FinishedAt.IsZero() {
		finished := s.FinishedAt
		summary.FinishedAt = &finished
	}
	return summary
}
