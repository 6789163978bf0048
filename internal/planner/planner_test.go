package planner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yzhou-dev/replayarc/internal/models"
)

type fakeIndex map[string]*models.LedgerEntry

func (f fakeIndex) Get(contentID string) (*models.LedgerEntry, error) {
	return f[contentID], nil
}

func testItem(sessionID int, kind models.ArtifactKind, url string) Item {
	return Item{
		Artifact: models.Artifact{
			SessionID: sessionID,
			Kind:      kind,
			URL:       url,
			ContentID: string(kind) + "-" + url,
		},
		Course: models.Course{ID: 1, Name: "Algorithms"},
		Session: models.SessionRecord{
			ID:         sessionID,
			CourseID:   1,
			Title:      "Lecture 1",
			RecordedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		},
	}
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestPlanEmitsPendingTasks(t *testing.T) {
	dir := t.TempDir()
	items := []Item{
		testItem(101, models.KindVideo, "https://cdn.example.edu/a.mp4"),
		testItem(101, models.KindSubtitle, "https://portal.example.edu/export?courseId=101"),
	}

	tasks, skipped, err := Plan(items, fakeIndex{}, Options{DownloadDir: dir})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if skipped != 0 {
		t.Errorf("Expected 0 skipped, got %d", skipped)
	}
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.Status != models.TaskStatusPending {
			t.Errorf("Expected pending, got %s", task.Status)
		}
		if task.ID == "" {
			t.Error("Task ID should not be empty")
		}
	}
	if filepath.Ext(tasks[0].TargetPath) != ".mp4" {
		t.Errorf("Unexpected video target %s", tasks[0].TargetPath)
	}
	if filepath.Ext(tasks[1].TargetPath) != ".srt" {
		t.Errorf("Unexpected subtitle target %s", tasks[1].TargetPath)
	}
}

func TestPlanSkipsCompletedWithFile(t *testing.T) {
	dir := t.TempDir()
	item := testItem(101, models.KindVideo, "https://cdn.example.edu/a.mp4")
	target := TargetPath(dir, item.Course, item.Session, item.Artifact)
	writeFile(t, target, 100)

	index := fakeIndex{
		item.Artifact.ContentID: {ContentID: item.Artifact.ContentID, Completed: true, Path: target, Size: 100},
	}

	tasks, skipped, err := Plan([]Item{item}, index, Options{DownloadDir: dir})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(tasks) != 0 || skipped != 1 {
		t.Errorf("Expected 0 tasks / 1 skipped, got %d / %d", len(tasks), skipped)
	}
}

func TestPlanReplansWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	item := testItem(101, models.KindVideo, "https://cdn.example.edu/a.mp4")
	target := TargetPath(dir, item.Course, item.Session, item.Artifact)

	index := fakeIndex{
		item.Artifact.ContentID: {ContentID: item.Artifact.ContentID, Completed: true, Path: target, Size: 100},
	}

	tasks, skipped, err := Plan([]Item{item}, index, Options{DownloadDir: dir})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(tasks) != 1 || skipped != 0 {
		t.Errorf("Missing file should be re-planned, got %d tasks / %d skipped", len(tasks), skipped)
	}
}

func TestPlanReplansOnSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	item := testItem(101, models.KindVideo, "https://cdn.example.edu/a.mp4")
	target := TargetPath(dir, item.Course, item.Session, item.Artifact)
	writeFile(t, target, 50) // truncated relative to ledger record

	index := fakeIndex{
		item.Artifact.ContentID: {ContentID: item.Artifact.ContentID, Completed: true, Path: target, Size: 100},
	}

	tasks, _, err := Plan([]Item{item}, index, Options{DownloadDir: dir})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("Size mismatch should be re-planned, got %d tasks", len(tasks))
	}
	if tasks[0].ResumeOffset != 0 {
		t.Errorf("Stale completed file must be re-fetched whole, got resume offset %d", tasks[0].ResumeOffset)
	}
}

func TestPlanCarriesRetriesAndResume(t *testing.T) {
	dir := t.TempDir()
	item := testItem(101, models.KindVideo, "https://cdn.example.edu/a.mp4")
	target := TargetPath(dir, item.Course, item.Session, item.Artifact)
	writeFile(t, target, 40)

	index := fakeIndex{
		item.Artifact.ContentID: {ContentID: item.Artifact.ContentID, Completed: false, Path: target, Retries: 2},
	}

	tasks, _, err := Plan([]Item{item}, index, Options{DownloadDir: dir})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("Expected 1 task, got %d", len(tasks))
	}
	if tasks[0].Retries != 2 {
		t.Errorf("Expected carried retry count 2, got %d", tasks[0].Retries)
	}
	if tasks[0].ResumeOffset != 40 {
		t.Errorf("Expected resume offset 40, got %d", tasks[0].ResumeOffset)
	}
}

func TestPlanLastResolvedWinsOnPathCollision(t *testing.T) {
	dir := t.TempDir()
	early := testItem(101, models.KindVideo, "https://cdn.example.edu/old.mp4")
	late := testItem(101, models.KindVideo, "https://cdn.example.edu/new.mp4")

	tasks, _, err := Plan([]Item{early, late}, fakeIndex{}, Options{DownloadDir: dir})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("Expected 1 task after collision, got %d", len(tasks))
	}
	if tasks[0].Artifact.URL != late.Artifact.URL {
		t.Errorf("Expected later artifact to win, got %s", tasks[0].Artifact.URL)
	}
}

func TestPlanAtMostOneTaskPerPath(t *testing.T) {
	dir := t.TempDir()
	items := []Item{
		testItem(101, models.KindVideo, "https://cdn.example.edu/a.mp4"),
		testItem(101, models.KindVideo, "https://cdn.example.edu/b.mp4"),
		testItem(102, models.KindVideo, "https://cdn.example.edu/c.mp4"),
	}
	items[2].Session.Title = "Lecture 2"

	tasks, _, err := Plan(items, fakeIndex{}, Options{DownloadDir: dir})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	seen := make(map[string]bool)
	for _, task := range tasks {
		if seen[task.TargetPath] {
			t.Errorf("Duplicate target path %s", task.TargetPath)
		}
		seen[task.TargetPath] = true
	}
	if len(tasks) != 2 {
		t.Errorf("Expected 2 distinct paths, got %d", len(tasks))
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"Math 101":         "Math 101",
		"a/b\\c:d":         "a_b_c_d",
		"  spaced  ":       "spaced",
		"":                 "untitled",
		"q?uo\"te<s>|here": "q_uo_te_s__here",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTargetPathExtensions(t *testing.T) {
	course := models.Course{ID: 1, Name: "Nets"}
	session := models.SessionRecord{ID: 9, Title: "L1"}

	cases := []struct {
		art  models.Artifact
		want string
	}{
		{models.Artifact{Kind: models.KindVideo, URL: "https://c.example.edu/v.flv?sig=abc"}, ".flv"},
		{models.Artifact{Kind: models.KindVideo, URL: "https://c.example.edu/v/playlist.m3u8"}, ".mp4"},
		{models.Artifact{Kind: models.KindSubtitle, URL: "https://c.example.edu/export"}, ".srt"},
		{models.Artifact{Kind: models.KindSummary, URL: "https://c.example.edu/export"}, ".md"},
	}
	for _, c := range cases {
		got := TargetPath("/root", course, session, c.art)
		if filepath.Ext(got) != c.want {
			t.Errorf("TargetPath for %s = %s, want ext %s", c.art.Kind, got, c.want)
		}
	}
}
