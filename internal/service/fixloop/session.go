package fixloop

import (
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
)

// session is the mutable state of one run. Only the controller touches it.
type session struct {
	id        string
	startedAt time.Time

	// passing is the previously-passing set. It only grows.
	passing core.NameSet
	failing core.NameSet
	skipped int

	attempts []core.AttemptRecord
	// outputs holds the latest failure output per failing test.
	outputs map[core.TestName]string
}

func newSession(id string, startedAt time.Time) *session {
	return &session{
		id:        id,
		startedAt: startedAt,
		passing:   make(core.NameSet),
		failing:   make(core.NameSet),
		outputs:   make(map[core.TestName]string),
	}
}

// seed initialises the sets from the discovery run.
func (s *session) seed(results []core.TestResult) {
	for _, r := range core.Index(results) {
		switch {
		case r.Passed():
			s.passing.Add(r.Name)
		case r.Failing():
			s.failing.Add(r.Name)
			s.outputs[r.Name] = r.Output
		default:
			s.skipped++
		}
	}
}

func (s *session) output(name core.TestName) string {
	return s.outputs[name]
}

// noteFailure remembers fresher failure output for name.
func (s *session) noteFailure(r core.TestResult) {
	if r.Output != "" {
		s.outputs[r.Name] = r.Output
	}
}

// applyFix folds a committed fix into the sets. results is the regression
// run. When it covered the whole suite, tests failing there that were not
// known before join the failing set and failing tests it no longer reports
// are dropped. A fixed module-level target is never added to the passing
// set: its tests take its place, and those that fail become candidates.
func (s *session) applyFix(target core.TestName, results []core.TestResult, fullSuite bool) {
	if target.IsModule() {
		delete(s.failing, target)
		delete(s.outputs, target)
	} else {
		s.markPassing(target)
	}

	seen := make(core.NameSet, len(results))
	for _, r := range results {
		seen.Add(r.Name)
		switch {
		case r.Passed() && !r.Name.IsModule():
			s.markPassing(r.Name)
		case r.Failing() && !s.passing.Has(r.Name) && (fullSuite || inModule(r.Name, target)):
			s.failing.Add(r.Name)
			s.noteFailure(r)
		}
	}

	if !fullSuite {
		return
	}
	for name := range s.failing {
		if !seen.Has(name) {
			delete(s.failing, name)
			delete(s.outputs, name)
		}
	}
}

func inModule(name, module core.TestName) bool {
	return module.IsModule() && strings.HasPrefix(string(name), string(module)+"::")
}

func (s *session) markPassing(name core.TestName) {
	s.passing.Add(name)
	delete(s.failing, name)
	delete(s.outputs, name)
}
