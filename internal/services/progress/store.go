// Package progress tracks the live state of conversion tasks.
//
// Workers write progress as a conversion runs and clients poll it. The
// default MemoryStore keeps everything in one process; RedisStore shares
// tasks between several server instances.
package progress

import (
	"context"
	"errors"
	"time"

	"github.com/jerin288/jdt-tool-web/internal/models"
)

// ErrNotFound means the task id is unknown or has expired.
var ErrNotFound = errors.New("task not found")

// CompletedMessage is the final message of a successful task.
const CompletedMessage = "Conversion completed successfully!"

// Outcome is what a successful task produced.
type Outcome struct {
	OutputFile string
	TableCount int
	TextCount  int
	Preview    *models.Preview
}

// Store holds task state keyed by task id.
//
// Implementations must be safe for concurrent use. Progress only moves
// forward while a task runs, and once a task is completed or failed it
// no longer changes.
type Store interface {
	// Start registers a new task owned by userID.
	Start(ctx context.Context, taskID, userID string) error
	// SetProgress records progress for a running task.
	SetProgress(ctx context.Context, taskID string, percent int, message string) error
	// Complete marks a task successful.
	Complete(ctx context.Context, taskID string, out Outcome) error
	// Fail marks a task failed with a user-facing message.
	Fail(ctx context.Context, taskID, message string) error
	// Get returns a copy of the task.
	Get(ctx context.Context, taskID string) (*models.Task, error)
	// Sweep removes tasks older than maxAge and returns how many it removed.
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
	// Name identifies the backend in health output.
	Name() string
}

// apply folds one update into a task, honouring the ordering rules.
// It reports whether the task changed.
func apply(t *models.Task, status models.ConversionStatus, percent int, message string, now time.Time) bool {
	if t.Status.Terminal() {
		return false
	}
	switch status {
	case models.StatusProcessing:
		percent = clamp(percent)
		if percent < t.Progress {
			percent = t.Progress
		}
		t.Progress = percent
	case models.StatusCompleted:
		t.Progress = 100
	case models.StatusError:
		// Progress stays where the task stopped.
	}
	t.Status = status
	t.Message = message
	t.UpdatedAt = now
	return true
}

func clamp(p int) int {
	return max(0, min(100, p))
}

func copyTask(t *models.Task) *models.Task {
	c := *t
	if t.Preview != nil {
		p := *t.Preview
		c.Preview = &p
	}
	return &c
}
