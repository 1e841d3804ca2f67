package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"forge/internal/project"
)

// SQLiteStore persists project snapshots and build session history.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Init creates the schema if missing.
func (s *SQLiteStore) Init(ctx context.Context) error {
	ddl := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`CREATE TABLE IF NOT EXISTS projects (
			project_id TEXT PRIMARY KEY,
			root TEXT NOT NULL,
			session_id TEXT,
			saved_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS files (
			project_id TEXT NOT NULL,
			path TEXT NOT NULL,
			content TEXT NOT NULL,
			version INTEGER NOT NULL,
			PRIMARY KEY(project_id, path),
			FOREIGN KEY(project_id) REFERENCES projects(project_id)
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			request TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_id);`,
		`CREATE TABLE IF NOT EXISTS session_tasks (
			session_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			path TEXT NOT NULL,
			status TEXT NOT NULL,
			retries INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			PRIMARY KEY(session_id, task_id),
			FOREIGN KEY(session_id) REFERENCES sessions(session_id)
		);`,
	}

	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveSnapshot replaces the stored snapshot for the project. The whole write
// happens in one transaction so a load never sees a half-written tree.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap project.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projects (project_id, root, session_id, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET root=excluded.root,
			session_id=excluded.session_id, saved_at=excluded.saved_at`,
		snap.ProjectID, snap.Root, snap.SessionID, now,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE project_id = ?`, snap.ProjectID); err != nil {
		return err
	}

	for _, f := range snap.Files {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO files (project_id, path, content, version)
			VALUES (?, ?, ?, ?)`,
			snap.ProjectID, f.Path, f.Content, f.Version,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadSnapshot loads the stored snapshot for projectID.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, projectID string) (project.Snapshot, error) {
	var snap project.Snapshot

	row := s.db.QueryRowContext(ctx, `
		SELECT project_id, root, COALESCE(session_id, '')
		FROM projects WHERE project_id = ?`, projectID)
	if err := row.Scan(&snap.ProjectID, &snap.Root, &snap.SessionID); err != nil {
		return snap, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT path, content, version FROM files
		WHERE project_id = ? ORDER BY path`, projectID)
	if err != nil {
		return snap, err
	}
	defer rows.Close()

	for rows.Next() {
		var f project.FileSnapshot
		if err := rows.Scan(&f.Path, &f.Content, &f.Version); err != nil {
			return snap, err
		}
		snap.Files = append(snap.Files, f)
	}
	return snap, rows.Err()
}

// SessionRecord is one build session in the history.
type SessionRecord struct {
	SessionID  string
	ProjectID  string
	Mode       string
	Request    string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RecordSession inserts a new session record.
func (s *SQLiteStore) RecordSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, project_id, mode, request, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.ProjectID, rec.Mode, rec.Request, rec.Status,
		rec.StartedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// UpdateSessionStatus updates a session's status, stamping the finish time
// for terminal states.
func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, sessionID, status string, finished bool) error {
	if finished {
		_, err := s.db.ExecContext(ctx, `
			UPDATE sessions SET status = ?, finished_at = ? WHERE session_id = ?`,
			status, time.Now().UTC().Format(time.RFC3339), sessionID)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET status = ? WHERE session_id = ?`, status, sessionID)
	return err
}

// RecordTask upserts the state of one task within a session.
func (s *SQLiteStore) RecordTask(ctx context.Context, sessionID, taskID, path, status string, retries int, taskErr string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_tasks (session_id, task_id, path, status, retries, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, task_id) DO UPDATE SET
			status=excluded.status, retries=excluded.retries, error=excluded.error`,
		sessionID, taskID, path, status, retries, taskErr,
	)
	return err
}

// SessionHistory returns session records for a project, newest first.
func (s *SQLiteStore) SessionHistory(ctx context.Context, projectID string) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, project_id, mode, request, status, started_at, COALESCE(finished_at, '')
		FROM sessions WHERE project_id = ? ORDER BY started_at DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var started, finished string
		if err := rows.Scan(&rec.SessionID, &rec.ProjectID, &rec.Mode, &rec.Request,
			&rec.Status, &started, &finished); err != nil {
			return nil, err
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		if finished != "" {
			rec.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
