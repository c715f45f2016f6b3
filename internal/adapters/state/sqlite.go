package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// SQLiteHistoryStore implements core.HistoryStore with SQLite storage.
type SQLiteHistoryStore struct {
	dbPath string
	db     *sql.DB
	mu     sync.RWMutex
}

// NewSQLiteHistoryStore opens (creating if needed) the history database.
func NewSQLiteHistoryStore(dbPath string) (*SQLiteHistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	// WAL so `mendbot history` can read while a session writes
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteHistoryStore{dbPath: dbPath, db: db}
	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteHistoryStore) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteHistoryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteHistoryStore) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table doesn't exist yet
		version = 0
	}

	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}
	return nil
}

// BeginSession inserts the session header.
func (s *SQLiteHistoryStore) BeginSession(ctx context.Context, sess core.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, repo_path, agent, started_at, passing, failing)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.RepoPath, sess.Agent, sess.StartedAt.UnixNano(), sess.Passing, sess.Failing)
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", sess.ID, err)
	}
	return nil
}

// RecordAttempt appends one attempt to a session.
func (s *SQLiteHistoryStore) RecordAttempt(ctx context.Context, sessionID string, rec core.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var regressions sql.NullString
	if len(rec.Regressions) > 0 {
		data, err := json.Marshal(rec.Regressions)
		if err != nil {
			return fmt.Errorf("marshaling regressions: %w", err)
		}
		regressions = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (
			session_id, iteration, test, outcome, committed, commit_id, regressions,
			detail, files_changed, lines_added, lines_removed, started_at, duration_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sessionID, rec.Iteration, string(rec.Test), string(rec.Outcome), rec.Committed, rec.CommitID,
		regressions, rec.Detail, rec.FilesChanged, rec.LinesAdded, rec.LinesRemoved,
		rec.StartedAt.UnixNano(), int64(rec.Duration),
	)
	if err != nil {
		return fmt.Errorf("inserting attempt %d: %w", rec.Iteration, err)
	}
	return nil
}

// FinishSession stores the final counters and stop reason.
func (s *SQLiteHistoryStore) FinishSession(ctx context.Context, sess core.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	finished := time.Now()
	if sess.FinishedAt != nil {
		finished = *sess.FinishedAt
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET finished_at = ?, stop_reason = ?, iterations = ?, fixed = ?, passing = ?, failing = ?
		WHERE id = ?
	`, finished.UnixNano(), sess.StopReason, sess.Iterations, sess.Fixed, sess.Passing, sess.Failing, sess.ID)
	if err != nil {
		return fmt.Errorf("finishing session %s: %w", sess.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound("session", sess.ID)
	}
	return nil
}

// ListSessions returns the most recent sessions first. A limit of zero
// returns all sessions.
func (s *SQLiteHistoryStore) ListSessions(ctx context.Context, limit int) ([]core.SessionSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.querySessions(ctx, `ORDER BY started_at DESC LIMIT ?`, limit)
}

func (s *SQLiteHistoryStore) querySessions(ctx context.Context, tail string, arg any) ([]core.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// #nosec G202 -- tails are package constants
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repo_path, agent, started_at, finished_at, stop_reason, iterations, fixed, passing, failing
		FROM sessions `+tail, arg)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []core.SessionSummary
	for rows.Next() {
		var (
			sess     core.SessionSummary
			started  int64
			finished sql.NullInt64
		)
		err := rows.Scan(&sess.ID, &sess.RepoPath, &sess.Agent, &started, &finished,
			&sess.StopReason, &sess.Iterations, &sess.Fixed, &sess.Passing, &sess.Failing)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess.StartedAt = time.Unix(0, started)
		if finished.Valid {
			t := time.Unix(0, finished.Int64)
			sess.FinishedAt = &t
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// GetSession returns one session header.
func (s *SQLiteHistoryStore) GetSession(ctx context.Context, id string) (*core.SessionSummary, error) {
	sessions, err := s.querySessions(ctx, `WHERE id = ? LIMIT 1`, id)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, core.ErrNotFound("session", id)
	}
	return &sessions[0], nil
}

// ListAttempts returns a session's attempts in iteration order.
func (s *SQLiteHistoryStore) ListAttempts(ctx context.Context, sessionID string) ([]core.AttemptRecord, error) {
	return s.queryAttempts(ctx, `WHERE session_id = ? ORDER BY iteration`, sessionID)
}

// ListAttemptsForTest returns every recorded attempt on one test across
// sessions, oldest first.
func (s *SQLiteHistoryStore) ListAttemptsForTest(ctx context.Context, test core.TestName) ([]core.AttemptRecord, error) {
	return s.queryAttempts(ctx, `WHERE test = ? ORDER BY started_at`, string(test))
}

func (s *SQLiteHistoryStore) queryAttempts(ctx context.Context, where string, arg any) ([]core.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// #nosec G202 -- where clauses are package constants
	rows, err := s.db.QueryContext(ctx, `
		SELECT iteration, test, outcome, committed, commit_id, regressions, detail,
			files_changed, lines_added, lines_removed, started_at, duration_ns
		FROM attempts `+where, arg)
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	defer rows.Close()

	var attempts []core.AttemptRecord
	for rows.Next() {
		rec, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attempts: %w", err)
	}
	return attempts, nil
}

func scanAttempt(rows *sql.Rows) (core.AttemptRecord, error) {
	var (
		rec         core.AttemptRecord
		test        string
		outcome     string
		regressions sql.NullString
		started     int64
		duration    int64
	)
	err := rows.Scan(&rec.Iteration, &test, &outcome, &rec.Committed, &rec.CommitID, &regressions,
		&rec.Detail, &rec.FilesChanged, &rec.LinesAdded, &rec.LinesRemoved, &started, &duration)
	if err != nil {
		return rec, fmt.Errorf("scanning attempt: %w", err)
	}
	rec.Test = core.TestName(test)
	rec.Outcome = core.Outcome(outcome)
	rec.StartedAt = time.Unix(0, started)
	rec.Duration = time.Duration(duration)
	if regressions.Valid && regressions.String != "" {
		if err := json.Unmarshal([]byte(regressions.String), &rec.Regressions); err != nil {
			return rec, fmt.Errorf("decoding regressions of attempt %d: %w", rec.Iteration, err)
		}
	}
	return rec, nil
}

var _ core.HistoryStore = (*SQLiteHistoryStore)(nil)
