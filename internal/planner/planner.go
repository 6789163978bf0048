// Package planner converts resolved artifacts into a deduplicated set of
// download tasks, consulting the completion ledger so finished artifacts are
// skipped and partial ones resume.
package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/yzhou-dev/replayarc/internal/models"
)

// CompletionIndex is the read side of the completion ledger.
type CompletionIndex interface {
	Get(contentID string) (*models.LedgerEntry, error)
}

// Options configure plan construction.
type Options struct {
	// DownloadDir is the root of the flat archive directory.
	DownloadDir string
}

// Item pairs a resolved artifact with the catalog records that name its
// target path.
type Item struct {
	Artifact models.Artifact
	Course   models.Course
	Session  models.SessionRecord
}

// Plan builds the task set for one run. For each artifact: a ledger entry
// marked completed whose target file still exists with the recorded size is
// skipped; anything else becomes a pending task, carrying over the ledger's
// retry count so exhaustion is cumulative across runs. When two artifacts map
// to the same target path the one resolved later wins, since a later pass may
// reflect an updated manifest.
func Plan(items []Item, index CompletionIndex, opts Options) (tasks []*models.DownloadTask, skipped int, err error) {
	byPath := make(map[string]int)

	for _, item := range items {
		target := TargetPath(opts.DownloadDir, item.Course, item.Session, item.Artifact)

		entry, err := index.Get(item.Artifact.ContentID)
		if err != nil {
			return nil, 0, fmt.Errorf("ledger lookup %s: %w", item.Artifact.ContentID, err)
		}

		if entry != nil && entry.Completed && fileHasSize(entry.Path, entry.Size) {
			skipped++
			continue
		}

		task := &models.DownloadTask{
			ID:         uuid.New().String(),
			Artifact:   item.Artifact,
			TargetPath: target,
			Status:     models.TaskStatusPending,
		}
		if entry != nil {
			task.Retries = entry.Retries
			// Resume only an attempt the ledger knows is incomplete; a
			// stale "completed" file with the wrong size is re-fetched
			// whole.
			if !entry.Completed {
				if st, err := os.Stat(target); err == nil && st.Size() > 0 {
					task.ResumeOffset = st.Size()
				}
			}
		}

		if prev, ok := byPath[target]; ok {
			// Last-resolved-wins on target path collision.
			tasks[prev] = task
			continue
		}
		byPath[target] = len(tasks)
		tasks = append(tasks, task)
	}

	return tasks, skipped, nil
}

// TargetPath derives the archive path for an artifact:
// <root>/<course>/<session title>_<recorded date><ext>, names sanitized.
func TargetPath(root string, course models.Course, session models.SessionRecord, art models.Artifact) string {
	base := SanitizeName(session.Title)
	if !session.RecordedAt.IsZero() {
		base += "_" + session.RecordedAt.Format("20060102")
	}
	return filepath.Join(root, SanitizeName(course.Name), base+extFor(art))
}

// extFor picks the file extension per artifact kind. Subtitles are rendered
// to SRT after download; summaries are markdown documents.
func extFor(art models.Artifact) string {
	switch art.Kind {
	case models.KindSubtitle:
		return ".srt"
	case models.KindSummary:
		return ".md"
	default:
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(urlPath(art.URL)), "."))
		switch ext {
		case "mp4", "flv", "ts", "mkv":
			return "." + ext
		default:
			return ".mp4"
		}
	}
}

// urlPath strips query and fragment so the extension comes from the path.
func urlPath(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// SanitizeName makes a display name safe as a single path element.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "untitled"
	}
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	return replacer.Replace(name)
}

// fileHasSize reports whether path exists as a regular file of exactly size
// bytes.
func fileHasSize(path string, size int64) bool {
	st, err := os.Stat(path)
	if err != nil {
		return false
	}
	return st.Mode().IsRegular() && st.Size() == size
}
