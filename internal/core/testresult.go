package core

import (
	"sort"
	"strings"
	"time"
)

// TestName is the fully qualified, dotted identifier of a test, for example
// "tests.unit.test_parser::TestLexer::test_number[1.5]".
type TestName string

// IsModule reports whether n names a whole module rather than one test.
// pytest reports a module that fails to import this way.
func (n TestName) IsModule() bool {
	return n != "" && !strings.Contains(string(n), "::")
}

// TestStatus is the outcome of a single test in a single run.
type TestStatus string

const (
	TestStatusPassed  TestStatus = "passed"
	TestStatusFailed  TestStatus = "failed"
	TestStatusErrored TestStatus = "errored"
	TestStatusSkipped TestStatus = "skipped"
)

// IsValid reports whether s is a known status.
func (s TestStatus) IsValid() bool {
	switch s {
	case TestStatusPassed, TestStatusFailed, TestStatusErrored, TestStatusSkipped:
		return true
	}
	return false
}

// TestResult is the immutable result of one test in one run.
type TestResult struct {
	Name     TestName
	Status   TestStatus
	Output   string
	Duration time.Duration
}

// Passed reports whether the test passed.
func (r TestResult) Passed() bool {
	return r.Status == TestStatusPassed
}

// Failing reports whether the test failed or errored.
func (r TestResult) Failing() bool {
	return r.Status == TestStatusFailed || r.Status == TestStatusErrored
}

// NameSet is a set of test names.
type NameSet map[TestName]struct{}

// NewNameSet builds a set from names.
func NewNameSet(names ...TestName) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s NameSet) Has(name TestName) bool {
	_, ok := s[name]
	return ok
}

// Add inserts name.
func (s NameSet) Add(name TestName) {
	s[name] = struct{}{}
}

// Clone returns an independent copy.
func (s NameSet) Clone() NameSet {
	out := make(NameSet, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexical order.
func (s NameSet) Sorted() []TestName {
	out := make([]TestName, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Index maps results by name. Later results for the same name win.
func Index(results []TestResult) map[TestName]TestResult {
	out := make(map[TestName]TestResult, len(results))
	for _, r := range results {
		out[r.Name] = r
	}
	return out
}

// Partition splits results into passing names and failing results.
// Skipped tests belong to neither.
func Partition(results []TestResult) (passing NameSet, failing map[TestName]TestResult) {
	passing = make(NameSet)
	failing = make(map[TestName]TestResult)
	for _, r := range Index(results) {
		switch {
		case r.Passed():
			passing.Add(r.Name)
		case r.Failing():
			failing[r.Name] = r
		}
	}
	return passing, failing
}
