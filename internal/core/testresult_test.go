package core

import (
	"testing"
)

func TestTestStatus_IsValid(t *testing.T) {
	for _, s := range []TestStatus{TestStatusPassed, TestStatusFailed, TestStatusErrored, TestStatusSkipped} {
		if !s.IsValid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if TestStatus("flaky").IsValid() {
		t.Errorf("unknown status should be invalid")
	}
}

func TestTestResult_Failing(t *testing.T) {
	cases := map[TestStatus]bool{
		TestStatusPassed:  false,
		TestStatusFailed:  true,
		TestStatusErrored: true,
		TestStatusSkipped: false,
	}
	for status, want := range cases {
		r := TestResult{Name: "tests.test_a::test_x", Status: status}
		if got := r.Failing(); got != want {
			t.Errorf("Failing() for %s = %v, want %v", status, got, want)
		}
	}
}

func TestPartition(t *testing.T) {
	results := []TestResult{
		{Name: "a", Status: TestStatusPassed},
		{Name: "b", Status: TestStatusFailed, Output: "assert 1 == 2"},
		{Name: "c", Status: TestStatusErrored},
		{Name: "d", Status: TestStatusSkipped},
	}

	passing, failing := Partition(results)

	if len(passing) != 1 || !passing.Has("a") {
		t.Fatalf("passing = %v, want {a}", passing.Sorted())
	}
	if len(failing) != 2 {
		t.Fatalf("failing len = %d, want 2", len(failing))
	}
	if failing["b"].Output != "assert 1 == 2" {
		t.Fatalf("failing output not preserved: %q", failing["b"].Output)
	}
	if _, ok := failing["d"]; ok {
		t.Fatalf("skipped tests must not be failing")
	}
}

func TestPartition_LaterResultWins(t *testing.T) {
	results := []TestResult{
		{Name: "a", Status: TestStatusFailed},
		{Name: "a", Status: TestStatusPassed},
	}
	passing, failing := Partition(results)
	if !passing.Has("a") || len(failing) != 0 {
		t.Fatalf("expected later result to supersede earlier one")
	}
}

func TestNameSet(t *testing.T) {
	s := NewNameSet("b", "a")
	clone := s.Clone()
	clone.Add("c")

	if s.Has("c") {
		t.Fatalf("clone must be independent")
	}
	sorted := clone.Sorted()
	if len(sorted) != 3 || sorted[0] != "a" || sorted[2] != "c" {
		t.Fatalf("Sorted() = %v", sorted)
	}
}

func TestAttemptHelpers(t *testing.T) {
	if LastAttempted(nil) != "" {
		t.Fatalf("no attempts should yield empty name")
	}
	attempts := []AttemptRecord{
		{Iteration: 1, Test: "a", Outcome: OutcomeNoOp},
		{Iteration: 2, Test: "b", Outcome: OutcomeFixed},
		{Iteration: 3, Test: "a", Outcome: OutcomeNoOp},
	}
	if LastAttempted(attempts) != "a" {
		t.Fatalf("LastAttempted() = %q, want a", LastAttempted(attempts))
	}
	counts := CountOutcomes(attempts)
	if counts[OutcomeNoOp] != 2 || counts[OutcomeFixed] != 1 {
		t.Fatalf("CountOutcomes() = %v", counts)
	}
	if !OutcomeTimedOut.IsValid() || Outcome("maybe").IsValid() {
		t.Fatalf("Outcome.IsValid mismatch")
	}
}

func TestTestName_IsModule(t *testing.T) {
	cases := map[TestName]bool{
		"tests.test_calc":                  true,
		"tests.test_calc::test_add":        false,
		"tests.test_calc::TestOps::test_x": false,
		"":                                 false,
	}
	for name, want := range cases {
		if got := name.IsModule(); got != want {
			t.Errorf("%q.IsModule() = %v, want %v", name, got, want)
		}
	}
}
