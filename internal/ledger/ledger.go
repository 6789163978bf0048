// Package ledger provides the SQLite-backed completion ledger: the persistent
// record that makes re-runs idempotent. It is the only mutable state shared
// across workers; all writes go through a single-writer connection.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/yzhou-dev/replayarc/internal/models"
	_ "modernc.org/sqlite"
)

// Ledger provides access to the completion ledger database.
type Ledger struct {
	db *sql.DB
}

// Open creates or opens the ledger at dbPath and runs migrations.
func Open(dbPath string) (*Ledger, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	// WAL for concurrent readers; SQLite allows one writer at a time.
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Ping checks the database connection is alive.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		content_id TEXT PRIMARY KEY,
		completed INTEGER NOT NULL DEFAULT 0,
		path TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		retries INTEGER NOT NULL DEFAULT 0,
		last_attempt DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		content_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_completed ON artifacts(completed);
	CREATE INDEX IF NOT EXISTS idx_attempts_content_id ON attempts(content_id);
	`

	_, err := l.db.Exec(schema)
	return err
}

// Get retrieves the entry for a content identifier, or nil when absent.
func (l *Ledger) Get(contentID string) (*models.LedgerEntry, error) {
	entry := &models.LedgerEntry{}
	var completed int

	err := l.db.QueryRow(
		`SELECT content_id, completed, path, size, retries, last_attempt FROM artifacts WHERE content_id = ?`,
		contentID,
	).Scan(&entry.ContentID, &completed, &entry.Path, &entry.Size, &entry.Retries, &entry.LastAttempt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query ledger entry: %w", err)
	}
	entry.Completed = completed != 0
	return entry, nil
}

// MarkCompleted atomically upserts a completed entry with its final path and
// size. Called by the coordinator before the task leaves the active set.
func (l *Ledger) MarkCompleted(contentID, path string, size int64) error {
	now := time.Now().UTC()
	_, err := l.db.Exec(
		`INSERT INTO artifacts (content_id, completed, path, size, retries, last_attempt)
		 VALUES (?, 1, ?, ?, 0, ?)
		 ON CONFLICT(content_id) DO UPDATE SET
		   completed = 1, path = excluded.path, size = excluded.size, last_attempt = excluded.last_attempt`,
		contentID, path, size, now,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// RecordAttempt upserts the retry count and last-attempt timestamp for an
// artifact without flipping its completed flag. Retry counts persist so
// exhaustion is cumulative across runs.
func (l *Ledger) RecordAttempt(contentID, path string, retries int) error {
	now := time.Now().UTC()
	_, err := l.db.Exec(
		`INSERT INTO artifacts (content_id, completed, path, size, retries, last_attempt)
		 VALUES (?, 0, ?, 0, ?, ?)
		 ON CONFLICT(content_id) DO UPDATE SET
		   retries = excluded.retries, path = excluded.path, last_attempt = excluded.last_attempt`,
		contentID, path, retries, now,
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// List returns all ledger entries, most recently attempted first.
func (l *Ledger) List() ([]models.LedgerEntry, error) {
	rows, err := l.db.Query(
		`SELECT content_id, completed, path, size, retries, last_attempt FROM artifacts ORDER BY last_attempt DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		var completed int
		if err := rows.Scan(&entry.ContentID, &completed, &entry.Path, &entry.Size, &entry.Retries, &entry.LastAttempt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entry.Completed = completed != 0
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// LogAttempt writes one transfer-attempt audit row.
func (l *Ledger) LogAttempt(contentID, taskID, outcome, detail string, startedAt, endedAt time.Time) (*models.Attempt, error) {
	attempt := &models.Attempt{
		ID:        uuid.New().String(),
		ContentID: contentID,
		TaskID:    taskID,
		Outcome:   outcome,
		Detail:    detail,
		StartedAt: startedAt.UTC(),
		EndedAt:   endedAt.UTC(),
	}

	_, err := l.db.Exec(
		`INSERT INTO attempts (id, content_id, task_id, outcome, detail, started_at, ended_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID, attempt.ContentID, attempt.TaskID, attempt.Outcome, attempt.Detail, attempt.StartedAt, attempt.EndedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert attempt: %w", err)
	}
	return attempt, nil
}

// AttemptsFor returns the audit trail for one artifact, oldest first.
func (l *Ledger) AttemptsFor(contentID string) ([]models.Attempt, error) {
	rows, err := l.db.Query(
		`SELECT id, content_id, task_id, outcome, detail, started_at, ended_at FROM attempts WHERE content_id = ? ORDER BY started_at ASC`,
		contentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.Attempt
	for rows.Next() {
		var a models.Attempt
		var detail sql.NullString
		if err := rows.Scan(&a.ID, &a.ContentID, &a.TaskID, &a.Outcome, &detail, &a.StartedAt, &a.EndedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if detail.Valid {
			a.Detail = detail.String
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
