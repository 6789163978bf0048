// Package pipeline wires the full extraction-and-orchestration run: catalog
// listing, artifact resolution, task planning, and coordinated download.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/yzhou-dev/replayarc/internal/coordinator"
	"github.com/yzhou-dev/replayarc/internal/models"
	"github.com/yzhou-dev/replayarc/internal/planner"
	"github.com/yzhou-dev/replayarc/internal/portal"
)

// Pipeline runs one end-to-end archive pass.
type Pipeline struct {
	Client      *portal.Client
	Index       planner.CompletionIndex
	Coordinator *coordinator.Coordinator
	DownloadDir string

	// Courses optionally restricts the run to these course IDs.
	Courses []int
}

// Run enumerates the catalog, resolves artifacts, plans tasks against the
// ledger, and executes them. Errors local to one session or artifact are
// logged and skipped; only session expiry aborts the run, since nothing can
// be resolved without re-authentication.
func (p *Pipeline) Run(ctx context.Context) (*models.Report, error) {
	items, err := p.Collect(ctx)
	if err != nil {
		return nil, err
	}

	tasks, skipped, err := planner.Plan(items, p.Index, planner.Options{DownloadDir: p.DownloadDir})
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	log.Printf("planned %d tasks, %d artifacts already complete", len(tasks), skipped)

	report, err := p.Coordinator.Execute(ctx, tasks)
	if report != nil {
		report.Skipped = skipped
	}
	return report, err
}

// Collect resolves the artifacts of every accessible session into planner
// input.
func (p *Pipeline) Collect(ctx context.Context) ([]planner.Item, error) {
	courses, err := p.Client.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	wanted := make(map[int]bool, len(p.Courses))
	for _, id := range p.Courses {
		wanted[id] = true
	}

	var items []planner.Item
	for _, course := range courses {
		if len(wanted) > 0 && !wanted[course.ID] {
			continue
		}

		sessions, err := p.Client.ListSessions(ctx, course)
		if err != nil {
			if errors.Is(err, portal.ErrAuthExpired) {
				return nil, err
			}
			log.Printf("list sessions for course %d (%s): %v; skipping course", course.ID, course.Name, err)
			continue
		}

		for _, session := range sessions {
			artifacts, err := p.Client.ResolveArtifacts(ctx, session)
			if err != nil {
				switch {
				case errors.Is(err, portal.ErrAuthExpired):
					return nil, err
				case errors.Is(err, portal.ErrManifestParse):
					log.Printf("session %d (%s): unrecognized manifest, skipping session: %v", session.ID, session.Title, err)
				default:
					log.Printf("session %d (%s): resolve failed, skipping: %v", session.ID, session.Title, err)
				}
				continue
			}

			for _, art := range artifacts {
				items = append(items, planner.Item{Artifact: art, Course: course, Session: session})
			}
		}
	}

	return items, nil
}
