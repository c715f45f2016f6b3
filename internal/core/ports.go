package core

import (
	"context"
	"time"
)

// =============================================================================
// Agent Port
// =============================================================================

// Agent defines the contract for code-generating agent CLI adapters.
// The agent mutates the working tree directly; the controller only learns
// whether it completed.
type Agent interface {
	// Name returns the adapter identifier (e.g., "claude", "codex").
	Name() string

	// Ping checks if the agent CLI is available.
	Ping(ctx context.Context) error

	// Execute runs a prompt through the agent in the given working directory.
	Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error)
}

// ExecuteOptions configures an agent execution.
type ExecuteOptions struct {
	Prompt  string
	Model   string
	Timeout time.Duration
	WorkDir string
}

// ExecuteResult contains the output of an agent execution.
type ExecuteResult struct {
	Output   string
	ExitCode int
	Duration time.Duration
}

// AgentRegistry manages registered agents.
type AgentRegistry interface {
	// Register adds an agent to the registry.
	Register(name string, agent Agent) error

	// Get retrieves an agent by name.
	Get(name string) (Agent, error)

	// List returns all registered agent names.
	List() []string
}

// =============================================================================
// Test Runner Port
// =============================================================================

// TestRunner executes the suite of the target repository and models results.
type TestRunner interface {
	// RunAll executes the complete suite once and returns one result per test.
	RunAll(ctx context.Context) ([]TestResult, error)

	// RunOne executes exactly the named test in isolation.
	RunOne(ctx context.Context, name TestName) (TestResult, error)

	// RunSelected executes the named tests in a single invocation.
	RunSelected(ctx context.Context, names []TestName) ([]TestResult, error)
}

// =============================================================================
// Working Tree Port
// =============================================================================

// TreeState is the version-control boundary. Implementations hold no
// iteration-level state so Rollback is safe after any partial failure.
type TreeState interface {
	// IsClean reports whether the tree has no uncommitted changes.
	IsClean(ctx context.Context) (bool, error)

	// Commit stages and commits all changes, returning the commit id.
	// A clean tree yields a NOTHING_TO_COMMIT error.
	Commit(ctx context.Context, message string) (string, error)

	// Rollback discards all uncommitted changes. Idempotent.
	Rollback(ctx context.Context) error
}

// DiffStat summarizes the uncommitted change in the working tree.
type DiffStat struct {
	Files        []string
	LinesAdded   int
	LinesRemoved int
}

// DiffStater is implemented by tree managers that can describe pending changes.
type DiffStater interface {
	DiffStat(ctx context.Context) (DiffStat, error)
}

// =============================================================================
// History Port
// =============================================================================

// SessionSummary is the persisted header of one controller session.
type SessionSummary struct {
	ID         string
	RepoPath   string
	Agent      string
	StartedAt  time.Time
	FinishedAt *time.Time
	StopReason string
	Iterations int
	Fixed      int
	Passing    int
	Failing    int
}

// HistoryStore persists attempt history across runs. It is informational:
// the controller's in-memory state stays authoritative.
type HistoryStore interface {
	BeginSession(ctx context.Context, s SessionSummary) error
	RecordAttempt(ctx context.Context, sessionID string, rec AttemptRecord) error
	FinishSession(ctx context.Context, s SessionSummary) error
	ListSessions(ctx context.Context, limit int) ([]SessionSummary, error)
	ListAttempts(ctx context.Context, sessionID string) ([]AttemptRecord, error)
	Close() error
}
