package core

import "time"

// Outcome classifies a single fix attempt.
type Outcome string

const (
	OutcomeFixed       Outcome = "fixed"
	OutcomeNoOp        Outcome = "no-op"
	OutcomeRegressed   Outcome = "regressed"
	OutcomeAgentFailed Outcome = "agent-failed"
	OutcomeTimedOut    Outcome = "timed-out"
)

// AllOutcomes lists outcomes in reporting order.
var AllOutcomes = []Outcome{
	OutcomeFixed,
	OutcomeNoOp,
	OutcomeRegressed,
	OutcomeAgentFailed,
	OutcomeTimedOut,
}

// IsValid reports whether o is a known outcome.
func (o Outcome) IsValid() bool {
	for _, known := range AllOutcomes {
		if o == known {
			return true
		}
	}
	return false
}

// AttemptRecord is the append-only record of one iteration.
type AttemptRecord struct {
	Iteration    int           `json:"iteration" yaml:"iteration"`
	Test         TestName      `json:"test" yaml:"test"`
	Outcome      Outcome       `json:"outcome" yaml:"outcome"`
	Committed    bool          `json:"committed" yaml:"committed"`
	CommitID     string        `json:"commit_id,omitempty" yaml:"commit_id,omitempty"`
	Regressions  []TestName    `json:"regressions,omitempty" yaml:"regressions,omitempty"`
	Detail       string        `json:"detail,omitempty" yaml:"detail,omitempty"`
	FilesChanged int           `json:"files_changed" yaml:"files_changed"`
	LinesAdded   int           `json:"lines_added" yaml:"lines_added"`
	LinesRemoved int           `json:"lines_removed" yaml:"lines_removed"`
	StartedAt    time.Time     `json:"started_at" yaml:"started_at"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
}

// LastAttempted returns the test of the most recent attempt, or "" when none.
func LastAttempted(attempts []AttemptRecord) TestName {
	if len(attempts) == 0 {
		return ""
	}
	return attempts[len(attempts)-1].Test
}

// CountOutcomes tallies attempts per outcome.
func CountOutcomes(attempts []AttemptRecord) map[Outcome]int {
	counts := make(map[Outcome]int, len(AllOutcomes))
	for _, a := range attempts {
		counts[a.Outcome]++
	}
	return counts
}
