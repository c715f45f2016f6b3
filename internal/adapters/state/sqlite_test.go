package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
)

func newTestStore(t *testing.T) *SQLiteHistoryStore {
	t.Helper()
	store, err := NewSQLiteHistoryStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteHistoryStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteHistoryStore_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	started := time.Now().Add(-time.Minute)
	sess := core.SessionSummary{
		ID:        "sess-1",
		RepoPath:  "/repo",
		Agent:     "claude",
		StartedAt: started,
		Passing:   10,
		Failing:   3,
	}
	if err := store.BeginSession(ctx, sess); err != nil {
		t.Fatalf("BeginSession() error = %v", err)
	}

	got, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.FinishedAt != nil {
		t.Errorf("unfinished session should have nil FinishedAt")
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}

	finished := time.Now()
	sess.FinishedAt = &finished
	sess.StopReason = "all-passing"
	sess.Iterations = 4
	sess.Fixed = 3
	sess.Passing = 13
	sess.Failing = 0
	if err := store.FinishSession(ctx, sess); err != nil {
		t.Fatalf("FinishSession() error = %v", err)
	}

	got, err = store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.StopReason != "all-passing" || got.Fixed != 3 || got.Iterations != 4 || got.Passing != 13 {
		t.Errorf("unexpected session after finish: %+v", got)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, finished)
	}
}

func TestSQLiteHistoryStore_FinishUnknownSession(t *testing.T) {
	store := newTestStore(t)
	err := store.FinishSession(context.Background(), core.SessionSummary{ID: "missing"})
	if core.GetCategory(err) != core.ErrCatNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.GetSession(context.Background(), "missing"); core.GetCategory(err) != core.ErrCatNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSQLiteHistoryStore_Attempts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.BeginSession(ctx, core.SessionSummary{ID: "s", RepoPath: "/r", Agent: "codex", StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	base := time.Now()
	records := []core.AttemptRecord{
		{
			Iteration: 2, Test: "tests.test_b::test_y", Outcome: core.OutcomeRegressed,
			Regressions: []core.TestName{"tests.test_a::test_ok", "tests.test_c::test_z"},
			Detail:      "2 previously passing tests failed", StartedAt: base.Add(time.Second),
			Duration: 3 * time.Second, FilesChanged: 2, LinesAdded: 5, LinesRemoved: 1,
		},
		{
			Iteration: 1, Test: "tests.test_a::test_x", Outcome: core.OutcomeFixed,
			Committed: true, CommitID: "abc123", StartedAt: base, Duration: 2 * time.Second,
		},
	}
	for _, rec := range records {
		if err := store.RecordAttempt(ctx, "s", rec); err != nil {
			t.Fatalf("RecordAttempt() error = %v", err)
		}
	}

	attempts, err := store.ListAttempts(ctx, "s")
	if err != nil {
		t.Fatalf("ListAttempts() error = %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("len(attempts) = %d, want 2", len(attempts))
	}
	first, second := attempts[0], attempts[1]
	if first.Iteration != 1 || !first.Committed || first.CommitID != "abc123" || first.Outcome != core.OutcomeFixed {
		t.Errorf("unexpected first attempt: %+v", first)
	}
	if len(first.Regressions) != 0 {
		t.Errorf("fixed attempt should have no regressions: %v", first.Regressions)
	}
	if second.Outcome != core.OutcomeRegressed || len(second.Regressions) != 2 || second.Regressions[1] != "tests.test_c::test_z" {
		t.Errorf("unexpected second attempt: %+v", second)
	}
	if second.Duration != 3*time.Second || second.FilesChanged != 2 || second.LinesAdded != 5 {
		t.Errorf("diff stat or duration lost: %+v", second)
	}

	byTest, err := store.ListAttemptsForTest(ctx, "tests.test_a::test_x")
	if err != nil {
		t.Fatalf("ListAttemptsForTest() error = %v", err)
	}
	if len(byTest) != 1 || byTest[0].Iteration != 1 {
		t.Errorf("ListAttemptsForTest() = %+v", byTest)
	}
}

func TestSQLiteHistoryStore_DuplicateIterationRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_ = store.BeginSession(ctx, core.SessionSummary{ID: "s", StartedAt: time.Now()})

	rec := core.AttemptRecord{Iteration: 1, Test: "t", Outcome: core.OutcomeNoOp, StartedAt: time.Now()}
	if err := store.RecordAttempt(ctx, "s", rec); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordAttempt(ctx, "s", rec); err == nil {
		t.Fatal("expected primary key violation for duplicate iteration")
	}
}

func TestSQLiteHistoryStore_AttemptRequiresSession(t *testing.T) {
	store := newTestStore(t)
	rec := core.AttemptRecord{Iteration: 1, Test: "t", Outcome: core.OutcomeNoOp, StartedAt: time.Now()}
	if err := store.RecordAttempt(context.Background(), "ghost", rec); err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestSQLiteHistoryStore_ListSessionsOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		err := store.BeginSession(ctx, core.SessionSummary{ID: id, StartedAt: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.ListSessions(ctx, 0)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(all) != 3 || all[0].ID != "new" || all[2].ID != "old" {
		t.Fatalf("unexpected order: %+v", all)
	}

	limited, err := store.ListSessions(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 || limited[1].ID != "mid" {
		t.Fatalf("unexpected limited list: %+v", limited)
	}
}

func TestSQLiteHistoryStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := NewSQLiteHistoryStore(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = store.BeginSession(ctx, core.SessionSummary{ID: "persisted", StartedAt: time.Now()})
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteHistoryStore(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer reopened.Close()
	if reopened.Path() != path {
		t.Errorf("Path() = %q", reopened.Path())
	}
	if _, err := reopened.GetSession(ctx, "persisted"); err != nil {
		t.Fatalf("session lost across reopen: %v", err)
	}
}
