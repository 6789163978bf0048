// Package models defines the core domain types for replayarc.
package models

import "time"

// ArtifactKind identifies the type of downloadable item tied to a session.
type ArtifactKind string

const (
	KindVideo    ArtifactKind = "video"
	KindSubtitle ArtifactKind = "subtitle"
	KindSummary  ArtifactKind = "summary"
)

// TaskStatus represents the current state of a download task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether the status ends a task's lifecycle.
func (ts TaskStatus) IsTerminal() bool {
	return ts == TaskStatusCompleted || ts == TaskStatusFailed
}

// Course identifies a collection of recorded sessions on the portal.
type Course struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Account int    `json:"account"`
}

// SessionRecord describes one recorded lecture occurrence. Owned by the
// catalog resolver, read-only downstream.
type SessionRecord struct {
	ID         int       `json:"id"`
	CourseID   int       `json:"course_id"`
	Title      string    `json:"title"`
	RecordedAt time.Time `json:"recorded_at"`
	VideoID    string    `json:"video_id"`
}

// Artifact is a single downloadable item resolved for a session. At most one
// artifact exists per (SessionID, Kind) pair; a later resolution replaces an
// earlier one.
type Artifact struct {
	SessionID int          `json:"session_id"`
	Kind      ArtifactKind `json:"kind"`
	URL       string       `json:"url"`
	ContentID string       `json:"content_id"`
	Size      int64        `json:"size,omitempty"`
}

// DownloadTask is a unit of work submitted to the download engine. Created by
// the planner; status transitions are owned by the coordinator.
type DownloadTask struct {
	ID           string     `json:"id"`
	Artifact     Artifact   `json:"artifact"`
	TargetPath   string     `json:"target_path"`
	Status       TaskStatus `json:"status"`
	Retries      int        `json:"retries"`
	ResumeOffset int64      `json:"resume_offset,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// LedgerEntry is the persisted completion record for one artifact. The ledger
// is the sole source of truth for idempotent re-runs.
type LedgerEntry struct {
	ContentID   string    `json:"content_id"`
	Completed   bool      `json:"completed"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Retries     int       `json:"retries"`
	LastAttempt time.Time `json:"last_attempt"`
}

// TaskEvent is one observable status transition, streamed upward for
// presentation. This is the only interface exposed to CLI/UI collaborators.
type TaskEvent struct {
	TaskID    string     `json:"task_id"`
	ContentID string     `json:"content_id"`
	Path      string     `json:"path"`
	From      TaskStatus `json:"from"`
	To        TaskStatus `json:"to"`
	Timestamp time.Time  `json:"timestamp"`
	Err       string     `json:"err,omitempty"`
}

// TaskFailure describes one permanently failed task in the final report.
type TaskFailure struct {
	TaskID    string `json:"task_id"`
	ContentID string `json:"content_id"`
	Path      string `json:"path"`
	Reason    string `json:"reason"`
}

// Report summarizes a pipeline run: completed downloads, artifacts skipped
// because the ledger already marks them done, and permanent failures.
type Report struct {
	Completed int           `json:"completed"`
	Skipped   int           `json:"skipped"`
	Failed    []TaskFailure `json:"failed,omitempty"`
}

// Attempt is one recorded transfer attempt, kept for audit.
type Attempt struct {
	ID        string    `json:"id"`
	ContentID string    `json:"content_id"`
	TaskID    string    `json:"task_id"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}
