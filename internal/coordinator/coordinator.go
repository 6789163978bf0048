// Package coordinator drives download tasks to completion: it submits them to
// the download engine through a bounded worker pool, retries failed transfers
// with backoff up to a bound, and records completions in the ledger.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yzhou-dev/replayarc/internal/engine"
	"github.com/yzhou-dev/replayarc/internal/models"
	"github.com/yzhou-dev/replayarc/internal/subtitle"
)

// Config defines the coordinator configuration.
type Config struct {
	// Workers is the bounded worker pool size.
	Workers int
	// MaxRetries bounds resubmissions per task; a task failing
	// MaxRetries+1 times is reported as a permanent failure.
	MaxRetries int
	// BackoffBase is the delay before the first resubmission; doubled per
	// retry, capped at BackoffMax.
	BackoffBase time.Duration
	// BackoffMax caps the resubmission delay.
	BackoffMax time.Duration
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() *Config {
	return &Config{
		Workers:     4,
		MaxRetries:  3,
		BackoffBase: time.Second,
		BackoffMax:  30 * time.Second,
	}
}

// Ledger is the write side of the completion ledger used by the coordinator.
type Ledger interface {
	MarkCompleted(contentID, path string, size int64) error
	RecordAttempt(contentID, path string, retries int) error
	LogAttempt(contentID, taskID, outcome, detail string, startedAt, endedAt time.Time) (*models.Attempt, error)
}

// Coordinator executes planned download tasks.
type Coordinator struct {
	engine engine.Engine
	ledger Ledger
	config *Config

	mu      sync.Mutex
	onEvent func(models.TaskEvent)
}

// New creates a coordinator over the given engine and ledger.
func New(eng engine.Engine, led Ledger, cfg *Config) *Coordinator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Coordinator{engine: eng, ledger: led, config: cfg}
}

// SetEventFunc registers the progress callback. Every status transition is
// reported through it; this is the only interface exposed upward to CLI/UI
// collaborators.
func (c *Coordinator) SetEventFunc(fn func(models.TaskEvent)) {
	c.mu.Lock()
	c.onEvent = fn
	c.mu.Unlock()
}

// Execute drains the task set through the worker pool and returns the
// completion report. Tasks are independent: no ordering is guaranteed between
// them. Cancelling ctx stops new submissions and aborts in-flight transfers
// without ledger writes; unfinished tasks stay pending and the failure list
// keeps only retry-exhausted tasks. Execute then returns the partial report
// with ctx.Err().
func (c *Coordinator) Execute(ctx context.Context, tasks []*models.DownloadTask) (*models.Report, error) {
	report := &models.Report{}
	if len(tasks) == 0 {
		return report, nil
	}

	// Every task re-enters the queue at most MaxRetries times, so the
	// buffer never blocks a producer.
	queue := make(chan *models.DownloadTask, len(tasks)*(c.config.MaxRetries+1))
	remaining := int64(len(tasks))
	var reportMu sync.Mutex

	finish := func() {
		if atomic.AddInt64(&remaining, -1) == 0 {
			close(queue)
		}
	}

	for _, task := range tasks {
		queue <- task
	}

	workers := c.config.Workers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for task := range queue {
				c.runTask(ctx, task, queue, finish, report, &reportMu)
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// runTask drives one submission attempt through the task state machine.
func (c *Coordinator) runTask(ctx context.Context, task *models.DownloadTask, queue chan<- *models.DownloadTask, finish func(), report *models.Report, reportMu *sync.Mutex) {
	if ctx.Err() != nil {
		// Cancelled before any attempt: the task stays pending and out of the
		// failure list; Execute reports the cancellation itself.
		finish()
		return
	}

	c.transition(task, models.TaskStatusInProgress, nil)

	startedAt := time.Now()
	result, err := c.engine.Fetch(ctx, engine.Spec{
		SourceURL:    task.Artifact.URL,
		TargetPath:   task.TargetPath,
		ResumeOffset: task.ResumeOffset,
	})
	if err == nil {
		err = c.finalize(task, result)
	}
	endedAt := time.Now()

	if err == nil {
		// Ledger update happens in finalize, before the task leaves the
		// active set: a crash in between only costs an idempotent
		// re-download.
		c.logAttempt(task, "success", "", startedAt, endedAt)
		c.transition(task, models.TaskStatusCompleted, nil)
		reportMu.Lock()
		report.Completed++
		reportMu.Unlock()
		finish()
		return
	}

	task.LastError = err.Error()

	if ctx.Err() != nil {
		// Aborted in-flight: no ledger write, and the task goes back to
		// pending rather than counting as a retry-exhausted failure.
		c.transition(task, models.TaskStatusPending, err)
		finish()
		return
	}

	c.logAttempt(task, "failed", err.Error(), startedAt, endedAt)

	if task.Retries >= c.config.MaxRetries {
		c.transition(task, models.TaskStatusFailed, err)
		log.Printf("task %s failed permanently after %d retries: %v", task.ID, task.Retries, err)
		reportMu.Lock()
		report.Failed = append(report.Failed, failureFor(task))
		reportMu.Unlock()
		finish()
		return
	}

	task.Retries++
	if lerr := c.ledger.RecordAttempt(task.Artifact.ContentID, task.TargetPath, task.Retries); lerr != nil {
		log.Printf("record attempt for task %s: %v", task.ID, lerr)
	}
	c.transition(task, models.TaskStatusPending, err)
	log.Printf("task %s failed (attempt %d), retrying: %v", task.ID, task.Retries, err)

	delay := c.backoff(task.Retries)
	go func() {
		select {
		case <-time.After(delay):
			queue <- task
		case <-ctx.Done():
			// Cancelled while waiting to retry; the task is already pending.
			finish()
		}
	}()
}

// finalize post-processes the downloaded file and records completion in the
// ledger atomically before the task is dropped from the active set.
func (c *Coordinator) finalize(task *models.DownloadTask, result *engine.Result) error {
	if task.Artifact.Kind == models.KindSubtitle {
		if err := subtitle.RenderFile(task.TargetPath); err != nil {
			return fmt.Errorf("render subtitle: %w", err)
		}
	}

	size := result.BytesWritten + task.ResumeOffset
	if st, err := os.Stat(task.TargetPath); err == nil {
		size = st.Size()
	}

	if err := c.ledger.MarkCompleted(task.Artifact.ContentID, task.TargetPath, size); err != nil {
		return fmt.Errorf("ledger update: %w", err)
	}
	return nil
}

// backoff returns the resubmission delay for the given retry number.
func (c *Coordinator) backoff(retry int) time.Duration {
	delay := c.config.BackoffBase
	for i := 1; i < retry; i++ {
		delay *= 2
		if delay >= c.config.BackoffMax {
			return c.config.BackoffMax
		}
	}
	if delay > c.config.BackoffMax {
		delay = c.config.BackoffMax
	}
	return delay
}

// transition moves a task to a new status and emits the event.
func (c *Coordinator) transition(task *models.DownloadTask, to models.TaskStatus, cause error) {
	from := task.Status
	task.Status = to

	c.mu.Lock()
	fn := c.onEvent
	c.mu.Unlock()
	if fn == nil {
		return
	}

	event := models.TaskEvent{
		TaskID:    task.ID,
		ContentID: task.Artifact.ContentID,
		Path:      task.TargetPath,
		From:      from,
		To:        to,
		Timestamp: time.Now(),
	}
	if cause != nil {
		event.Err = cause.Error()
	}
	fn(event)
}

// logAttempt writes the audit row for one transfer attempt.
func (c *Coordinator) logAttempt(task *models.DownloadTask, outcome, detail string, startedAt, endedAt time.Time) {
	if _, err := c.ledger.LogAttempt(task.Artifact.ContentID, task.ID, outcome, detail, startedAt, endedAt); err != nil {
		log.Printf("log attempt for task %s: %v", task.ID, err)
	}
}

func failureFor(task *models.DownloadTask) models.TaskFailure {
	return models.TaskFailure{
		TaskID:    task.ID,
		ContentID: task.Artifact.ContentID,
		Path:      task.TargetPath,
		Reason:    task.LastError,
	}
}
