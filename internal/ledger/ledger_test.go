package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to open ledger: %v", err)
	}
	return l
}

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "ledger.db")

	l, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open ledger: %v", err)
	}
	defer l.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Ledger file was not created")
	}
}

func TestGetAbsent(t *testing.T) {
	l := newTestLedger(t)
	defer l.Close()

	entry, err := l.Get("no-such-id")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry != nil {
		t.Errorf("Expected nil for absent entry, got %+v", entry)
	}
}

func TestMarkCompleted(t *testing.T) {
	l := newTestLedger(t)
	defer l.Close()

	if err := l.MarkCompleted("cid-1", "/archive/a.mp4", 1024); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	entry, err := l.Get("cid-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry == nil {
		t.Fatal("Expected entry after MarkCompleted")
	}
	if !entry.Completed {
		t.Error("Expected completed flag set")
	}
	if entry.Path != "/archive/a.mp4" || entry.Size != 1024 {
		t.Errorf("Unexpected entry: %+v", entry)
	}

	// Upsert is idempotent and updates in place.
	if err := l.MarkCompleted("cid-1", "/archive/a2.mp4", 2048); err != nil {
		t.Fatalf("MarkCompleted upsert failed: %v", err)
	}
	entry, _ = l.Get("cid-1")
	if entry.Path != "/archive/a2.mp4" || entry.Size != 2048 {
		t.Errorf("Upsert did not replace fields: %+v", entry)
	}

	entries, err := l.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected single entry after upsert, got %d", len(entries))
	}
}

func TestRecordAttempt(t *testing.T) {
	l := newTestLedger(t)
	defer l.Close()

	if err := l.RecordAttempt("cid-1", "/archive/a.mp4", 2); err != nil {
		t.Fatalf("RecordAttempt failed: %v", err)
	}

	entry, _ := l.Get("cid-1")
	if entry == nil {
		t.Fatal("Expected entry after RecordAttempt")
	}
	if entry.Completed {
		t.Error("RecordAttempt must not mark completion")
	}
	if entry.Retries != 2 {
		t.Errorf("Expected 2 retries, got %d", entry.Retries)
	}

	// Completion later flips the flag without touching the attempt history.
	if err := l.MarkCompleted("cid-1", "/archive/a.mp4", 512); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	entry, _ = l.Get("cid-1")
	if !entry.Completed {
		t.Error("Expected completed after MarkCompleted")
	}
}

func TestRecordAttemptKeepsCompleted(t *testing.T) {
	l := newTestLedger(t)
	defer l.Close()

	if err := l.MarkCompleted("cid-1", "/archive/a.mp4", 512); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordAttempt("cid-1", "/archive/a.mp4", 1); err != nil {
		t.Fatal(err)
	}

	entry, _ := l.Get("cid-1")
	if !entry.Completed {
		t.Error("RecordAttempt on completed entry must not clear the flag")
	}
	if entry.Retries != 1 {
		t.Errorf("Expected retries updated to 1, got %d", entry.Retries)
	}
}

func TestAttemptTrail(t *testing.T) {
	l := newTestLedger(t)
	defer l.Close()

	start := time.Now().Add(-time.Minute)
	if _, err := l.LogAttempt("cid-1", "task-1", "failed", "status 503", start, start.Add(time.Second)); err != nil {
		t.Fatalf("LogAttempt failed: %v", err)
	}
	if _, err := l.LogAttempt("cid-1", "task-1", "success", "", start.Add(2*time.Second), start.Add(3*time.Second)); err != nil {
		t.Fatalf("LogAttempt failed: %v", err)
	}

	attempts, err := l.AttemptsFor("cid-1")
	if err != nil {
		t.Fatalf("AttemptsFor failed: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("Expected 2 attempts, got %d", len(attempts))
	}
	if attempts[0].Outcome != "failed" || attempts[1].Outcome != "success" {
		t.Errorf("Attempts out of order: %+v", attempts)
	}
	if attempts[0].Detail != "status 503" {
		t.Errorf("Unexpected detail: %q", attempts[0].Detail)
	}
}
