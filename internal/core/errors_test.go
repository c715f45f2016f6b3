package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := (&DomainError{
		Category: ErrCatValidation,
		Code:     "CODE",
		Message:  "message",
	}).WithCause(cause)

	if err.Unwrap() != cause {
		t.Fatalf("expected cause to be unwrapped")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to match cause")
	}

	match := &DomainError{Category: ErrCatValidation, Code: "CODE"}
	if !errors.Is(err, match) {
		t.Fatalf("expected errors.Is to match category and code")
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := &DomainError{Category: ErrCatExecution, Code: "X", Message: "msg"}
	err.WithDetail("k", "v")
	if err.Details == nil || err.Details["k"] != "v" {
		t.Fatalf("expected details to be set")
	}
}

func TestErrorFactories(t *testing.T) {
	if ErrValidation("C", "m").Retryable {
		t.Fatalf("validation should not be retryable")
	}
	if !ErrExecution("C", "m").Retryable {
		t.Fatalf("execution should be retryable")
	}
	if !ErrTimeout("m").Retryable {
		t.Fatalf("timeout should be retryable")
	}
	if ErrState("C", "m").Retryable {
		t.Fatalf("state should not be retryable")
	}
	if ErrParse("m").Retryable {
		t.Fatalf("parse errors should not be retryable")
	}
}

func TestRunnerErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		code string
		cat  ErrorCategory
	}{
		{ErrHarnessFailure("crashed"), CodeHarnessFailure, ErrCatExecution},
		{ErrParse("bad xml"), CodeParseError, ErrCatExecution},
		{ErrRunTimeout("slow"), CodeRunTimeout, ErrCatTimeout},
		{ErrTestNotFound("tests.test_a::test_x"), CodeTestNotFound, ErrCatNotFound},
		{ErrNothingToCommit(), CodeNothingToCommit, ErrCatState},
	}
	for _, tc := range cases {
		if got := GetCode(tc.err); got != tc.code {
			t.Errorf("GetCode(%v) = %q, want %q", tc.err, got, tc.code)
		}
		if got := GetCategory(tc.err); got != tc.cat {
			t.Errorf("GetCategory(%v) = %q, want %q", tc.err, got, tc.cat)
		}
	}
}

func TestIsCode_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("validating target: %w", ErrTestNotFound("tests.test_a::test_x"))
	if !IsCode(wrapped, CodeTestNotFound) {
		t.Fatalf("expected wrapped error to carry TEST_NOT_FOUND")
	}
	if IsCode(nil, CodeTestNotFound) {
		t.Fatalf("nil error must not match any code")
	}
	if GetCode(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no code")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(ErrExecution("X", "m")) {
		t.Fatalf("expected retryable error")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("expected non-domain error to be non-retryable")
	}
}

func TestGetCategory(t *testing.T) {
	if GetCategory(ErrTimeout("m")) != ErrCatTimeout {
		t.Fatalf("expected timeout category")
	}
	if GetCategory(errors.New("plain")) != ErrCatInternal {
		t.Fatalf("expected internal category for non-domain error")
	}
	if !IsCategory(ErrNotFound("agent", "x"), ErrCatNotFound) {
		t.Fatalf("expected category match")
	}
}
