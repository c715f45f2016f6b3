package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
)

// MockAgent implements Agent for testing.
type MockAgent struct {
	name        string
	executeFunc func(context.Context, core.ExecuteOptions) (*core.ExecuteResult, error)
	pingFunc    func(context.Context) error
	calls       []MockCall
	mu          sync.Mutex
}

// MockCall records a call to the mock.
type MockCall struct {
	Method    string
	Args      interface{}
	Timestamp time.Time
}

// NewMockAgent creates a new mock agent.
func NewMockAgent(name string) *MockAgent {
	return &MockAgent{
		name:  name,
		calls: make([]MockCall, 0),
	}
}

// Name returns the mock name.
func (m *MockAgent) Name() string {
	return m.name
}

// Ping mocks availability check.
func (m *MockAgent) Ping(ctx context.Context) error {
	m.recordCall("Ping", nil)
	if m.pingFunc != nil {
		return m.pingFunc(ctx)
	}
	return nil
}

// Execute mocks an agent run. Without a configured function it completes
// without touching anything.
func (m *MockAgent) Execute(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
	m.recordCall("Execute", opts)
	if m.executeFunc != nil {
		return m.executeFunc(ctx, opts)
	}
	return &core.ExecuteResult{Output: "done", Duration: time.Millisecond}, nil
}

// WithExecuteFunc sets a custom execute function.
func (m *MockAgent) WithExecuteFunc(fn func(context.Context, core.ExecuteOptions) (*core.ExecuteResult, error)) *MockAgent {
	m.executeFunc = fn
	return m
}

// WithPingFunc sets a custom ping function.
func (m *MockAgent) WithPingFunc(fn func(context.Context) error) *MockAgent {
	m.pingFunc = fn
	return m
}

// WithError configures the mock to return an error.
func (m *MockAgent) WithError(err error) *MockAgent {
	m.executeFunc = func(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
		return nil, err
	}
	return m
}

// WithResponse configures a fixed response.
func (m *MockAgent) WithResponse(output string) *MockAgent {
	m.executeFunc = func(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
		return &core.ExecuteResult{Output: output, Duration: time.Millisecond}, nil
	}
	return m
}

// Calls returns recorded calls.
func (m *MockAgent) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall{}, m.calls...)
}

// CallCount returns number of calls to a method.
func (m *MockAgent) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Prompts returns the prompts of every Execute call in order.
func (m *MockAgent) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var prompts []string
	for _, c := range m.calls {
		if opts, ok := c.Args.(core.ExecuteOptions); ok && c.Method == "Execute" {
			prompts = append(prompts, opts.Prompt)
		}
	}
	return prompts
}

// Reset clears call history.
func (m *MockAgent) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make([]MockCall, 0)
}

func (m *MockAgent) recordCall(method string, args interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method:    method,
		Args:      args,
		Timestamp: time.Now(),
	})
}

// =============================================================================
// FakeRepo
// =============================================================================

// Removed marks a test deleted by an edit.
const Removed core.TestStatus = ""

// FakeRepo is an in-memory repository that implements both core.TestRunner
// and core.TreeState. Test statuses live in a committed layer and a pending
// layer; agents edit the pending layer, Commit folds it in and Rollback drops
// it. Every call is appended to Events.
type FakeRepo struct {
	mu        sync.Mutex
	committed map[core.TestName]core.TestStatus
	pending   map[core.TestName]core.TestStatus
	dirty     bool
	failures  map[string][]error

	Events    []string
	Commits   []string
	Rollbacks int
	// OnRollback, when set, runs after each rollback.
	OnRollback func()
}

// NewFakeRepo creates a clean repository with the given test statuses.
func NewFakeRepo(statuses map[core.TestName]core.TestStatus) *FakeRepo {
	committed := make(map[core.TestName]core.TestStatus, len(statuses))
	for n, s := range statuses {
		committed[n] = s
	}
	return &FakeRepo{
		committed: committed,
		pending:   make(map[core.TestName]core.TestStatus),
		failures:  make(map[string][]error),
	}
}

// Edit changes test statuses in the working tree and marks it dirty. Use
// Removed to delete a test.
func (r *FakeRepo) Edit(changes map[core.TestName]core.TestStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for n, s := range changes {
		r.pending[n] = s
	}
	r.dirty = true
	r.Events = append(r.Events, "edit")
}

// Touch dirties the tree without changing any test outcome.
func (r *FakeRepo) Touch() {
	r.Edit(nil)
}

// FailNext makes the next call of method ("RunAll", "RunOne", "RunSelected",
// "Commit", "Rollback", "IsClean") return err. Calls queue up.
func (r *FakeRepo) FailNext(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[method] = append(r.failures[method], err)
}

func (r *FakeRepo) takeFailure(method string) error {
	queue := r.failures[method]
	if len(queue) == 0 {
		return nil
	}
	r.failures[method] = queue[1:]
	return queue[0]
}

// Status returns the effective status of name and whether it exists.
func (r *FakeRepo) Status(name core.TestName) (core.TestStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked(name)
}

func (r *FakeRepo) statusLocked(name core.TestName) (core.TestStatus, bool) {
	if s, ok := r.pending[name]; ok {
		return s, s != Removed
	}
	s, ok := r.committed[name]
	return s, ok && s != Removed
}

// CommittedStatus returns the status at the last commit.
func (r *FakeRepo) CommittedStatus(name core.TestName) core.TestStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed[name]
}

// Dirty reports whether the working tree has uncommitted edits.
func (r *FakeRepo) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// CountEvents counts events equal to name.
func (r *FakeRepo) CountEvents(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.Events {
		if e == name {
			n++
		}
	}
	return n
}

func (r *FakeRepo) result(name core.TestName, status core.TestStatus) core.TestResult {
	res := core.TestResult{Name: name, Status: status, Duration: time.Millisecond}
	if status == core.TestStatusFailed || status == core.TestStatusErrored {
		res.Output = fmt.Sprintf("AssertionError: %s failed", name)
	}
	return res
}

func (r *FakeRepo) namesLocked() []core.TestName {
	seen := make(map[core.TestName]bool)
	var names []core.TestName
	for n := range r.committed {
		if _, ok := r.statusLocked(n); ok && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for n := range r.pending {
		if _, ok := r.statusLocked(n); ok && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// RunAll implements core.TestRunner.
func (r *FakeRepo) RunAll(_ context.Context) ([]core.TestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, "run-all")
	if err := r.takeFailure("RunAll"); err != nil {
		return nil, err
	}
	var results []core.TestResult
	for _, n := range r.namesLocked() {
		s, _ := r.statusLocked(n)
		results = append(results, r.result(n, s))
	}
	return results, nil
}

// RunOne implements core.TestRunner.
func (r *FakeRepo) RunOne(_ context.Context, name core.TestName) (core.TestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, "run-one:"+string(name))
	if err := r.takeFailure("RunOne"); err != nil {
		return core.TestResult{}, err
	}
	s, ok := r.lookupLocked(name)
	if !ok {
		return core.TestResult{}, core.ErrTestNotFound(name)
	}
	return r.result(name, s), nil
}

// lookupLocked resolves name like pytest would. A module-level name without
// its own entry passes while the module still has tests.
func (r *FakeRepo) lookupLocked(name core.TestName) (core.TestStatus, bool) {
	if s, ok := r.statusLocked(name); ok || !name.IsModule() {
		return s, ok
	}
	prefix := string(name) + "::"
	for _, n := range r.namesLocked() {
		if strings.HasPrefix(string(n), prefix) {
			return core.TestStatusPassed, true
		}
	}
	return "", false
}

// RunSelected implements core.TestRunner.
func (r *FakeRepo) RunSelected(_ context.Context, names []core.TestName) ([]core.TestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, "run-selected")
	if err := r.takeFailure("RunSelected"); err != nil {
		return nil, err
	}
	results := make([]core.TestResult, 0, len(names))
	for _, n := range names {
		s, ok := r.lookupLocked(n)
		if !ok {
			return nil, core.ErrTestNotFound(n)
		}
		results = append(results, r.result(n, s))
	}
	return results, nil
}

// IsClean implements core.TreeState.
func (r *FakeRepo) IsClean(_ context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure("IsClean"); err != nil {
		return false, err
	}
	return !r.dirty, nil
}

// Commit implements core.TreeState.
func (r *FakeRepo) Commit(_ context.Context, message string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, "commit")
	if err := r.takeFailure("Commit"); err != nil {
		return "", err
	}
	if !r.dirty {
		return "", core.ErrNothingToCommit()
	}
	for n, s := range r.pending {
		r.committed[n] = s
	}
	r.pending = make(map[core.TestName]core.TestStatus)
	r.dirty = false
	r.Commits = append(r.Commits, message)
	return fmt.Sprintf("c%04d", len(r.Commits)), nil
}

// Rollback implements core.TreeState.
func (r *FakeRepo) Rollback(_ context.Context) error {
	r.mu.Lock()
	r.Events = append(r.Events, "rollback")
	if err := r.takeFailure("Rollback"); err != nil {
		r.mu.Unlock()
		return err
	}
	r.pending = make(map[core.TestName]core.TestStatus)
	r.dirty = false
	r.Rollbacks++
	hook := r.OnRollback
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

// DiffStat implements core.DiffStater with one line per edited test.
func (r *FakeRepo) DiffStat(_ context.Context) (core.DiffStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		return core.DiffStat{}, nil
	}
	return core.DiffStat{Files: []string{"src/module.py"}, LinesAdded: len(r.pending) + 1, LinesRemoved: len(r.pending)}, nil
}

var (
	_ core.TestRunner = (*FakeRepo)(nil)
	_ core.TreeState  = (*FakeRepo)(nil)
	_ core.DiffStater = (*FakeRepo)(nil)
)

// =============================================================================
// MemoryHistory
// =============================================================================

// MemoryHistory implements core.HistoryStore in memory.
type MemoryHistory struct {
	mu       sync.Mutex
	sessions map[string]core.SessionSummary
	order    []string
	attempts map[string][]core.AttemptRecord
	// RecordErr, when set, is returned by RecordAttempt.
	RecordErr error
	Closed    bool
}

// NewMemoryHistory creates an empty history store.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		sessions: make(map[string]core.SessionSummary),
		attempts: make(map[string][]core.AttemptRecord),
	}
}

// BeginSession implements core.HistoryStore.
func (h *MemoryHistory) BeginSession(_ context.Context, s core.SessionSummary) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.ID]; !ok {
		h.order = append(h.order, s.ID)
	}
	h.sessions[s.ID] = s
	return nil
}

// RecordAttempt implements core.HistoryStore.
func (h *MemoryHistory) RecordAttempt(_ context.Context, sessionID string, rec core.AttemptRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.RecordErr != nil {
		return h.RecordErr
	}
	h.attempts[sessionID] = append(h.attempts[sessionID], rec)
	return nil
}

// FinishSession implements core.HistoryStore.
func (h *MemoryHistory) FinishSession(_ context.Context, s core.SessionSummary) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.ID]; !ok {
		return core.ErrNotFound("session", s.ID)
	}
	h.sessions[s.ID] = s
	return nil
}

// ListSessions implements core.HistoryStore, newest first.
func (h *MemoryHistory) ListSessions(_ context.Context, limit int) ([]core.SessionSummary, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []core.SessionSummary
	for i := len(h.order) - 1; i >= 0; i-- {
		out = append(out, h.sessions[h.order[i]])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListAttempts implements core.HistoryStore.
func (h *MemoryHistory) ListAttempts(_ context.Context, sessionID string) ([]core.AttemptRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]core.AttemptRecord(nil), h.attempts[sessionID]...), nil
}

// Close implements core.HistoryStore.
func (h *MemoryHistory) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Closed = true
	return nil
}

var _ core.HistoryStore = (*MemoryHistory)(nil)
