package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harun/agentcore/pkg/agent"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite. Queryable fields get their own
// columns; the full result is kept as a JSON payload.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens dsn (a file path or ":memory:") and migrates it.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writes.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			status TEXT NOT NULL,
			response TEXT,
			error TEXT,
			turns INTEGER NOT NULL DEFAULT 0,
			tool_executions INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			finished_at INTEGER NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id, finished_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save upserts result.
func (s *SQLiteStore) Save(ctx context.Context, result *agent.AgentResult) error {
	if err := validate(result); err != nil {
		return err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, session_id, status, response, error, turns, tool_executions, duration_ms, finished_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			session_id = excluded.session_id,
			status = excluded.status,
			response = excluded.response,
			error = excluded.error,
			turns = excluded.turns,
			tool_executions = excluded.tool_executions,
			duration_ms = excluded.duration_ms,
			finished_at = excluded.finished_at,
			payload = excluded.payload`,
		result.RunID, result.SessionID, string(result.Status), result.Response, result.Error,
		result.Turns, len(result.ToolExecutions), result.Duration.Milliseconds(),
		time.Now().UnixNano(), string(payload))
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", result.RunID, err)
	}
	return nil
}

// Get retrieves a run by ID.
func (s *SQLiteStore) Get(ctx context.Context, runID string) (*agent.AgentResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE run_id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return decode([]byte(payload))
}

// ListBySession returns the session's runs, newest first.
func (s *SQLiteStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]*agent.AgentResult, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM runs WHERE session_id = ? ORDER BY finished_at DESC, rowid DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*agent.AgentResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		result, err := decode([]byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, rows.Err()
}
