// Package cleanup removes expired work files and task state.
//
// Go Pattern: A janitor goroutine driven by time.Ticker. The same Run
// method backs both the ticker and the GET /cleanup endpoint.
package cleanup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jerin288/jdt-tool-web/internal/logging"
	"github.com/jerin288/jdt-tool-web/internal/models"
	"github.com/jerin288/jdt-tool-web/internal/services/progress"
)

// abandonedMessage is recorded on conversions that no worker will finish.
const abandonedMessage = "An error occurred during conversion: the server restarted before the file was processed"

// Report is the JSON body of GET /cleanup.
type Report struct {
	DeletedFiles int `json:"deleted_files"`
	DeletedTasks int `json:"deleted_tasks"`
	Abandoned    int `json:"abandoned,omitempty"`
}

// Conversions finds and fails conversions left unfinished. *database.DB
// implements it.
type Conversions interface {
	ListUnfinished(ctx context.Context, before time.Time) ([]models.Conversion, error)
	FailConversion(ctx context.Context, id, message string) error
}

// Refunder returns a conversion's credit. *ledger.Ledger implements it.
type Refunder interface {
	Refund(ctx context.Context, conversionID, reason string) (bool, error)
}

// Janitor sweeps the work directory, the task store and stale conversions.
type Janitor struct {
	workDir     string
	fileMaxAge  time.Duration
	taskMaxAge  time.Duration
	store       progress.Store
	conversions Conversions
	refunder    Refunder
	now         func() time.Time

	// mu keeps the ticker and an HTTP-triggered run from overlapping.
	mu sync.Mutex
}

// New creates a janitor. conversions and refunder may be nil, in which
// case stale conversions are left alone.
func New(workDir string, fileMaxAge, taskMaxAge time.Duration, store progress.Store, conversions Conversions, refunder Refunder) *Janitor {
	return &Janitor{
		workDir:     workDir,
		fileMaxAge:  fileMaxAge,
		taskMaxAge:  taskMaxAge,
		store:       store,
		conversions: conversions,
		refunder:    refunder,
		now:         time.Now,
	}
}

// Run performs one sweep. Individual failures are logged and skipped so a
// single unreadable file does not stop the rest of the sweep.
func (j *Janitor) Run(ctx context.Context) (Report, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var rep Report
	files, err := j.removeOldFiles()
	if err != nil {
		return rep, err
	}
	rep.DeletedFiles = files

	tasks, err := j.store.Sweep(ctx, j.taskMaxAge)
	if err != nil {
		return rep, err
	}
	rep.DeletedTasks = tasks

	if j.conversions != nil {
		rep.Abandoned = j.failAbandoned(ctx)
	}

	if rep.DeletedFiles > 0 || rep.DeletedTasks > 0 || rep.Abandoned > 0 {
		logging.Info("🧹 Cleanup finished", "deleted_files", rep.DeletedFiles,
			"deleted_tasks", rep.DeletedTasks, "abandoned", rep.Abandoned)
	}
	return rep, nil
}

func (j *Janitor) removeOldFiles() (int, error) {
	entries, err := os.ReadDir(j.workDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := j.now().Add(-j.fileMaxAge)
	deleted := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(j.workDir, e.Name())
		if err := os.Remove(path); err != nil {
			logging.Warn("failed to delete old file", "path", path, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// failAbandoned fails and refunds conversions older than the task max age
// that never reached a terminal state.
func (j *Janitor) failAbandoned(ctx context.Context) int {
	convs, err := j.conversions.ListUnfinished(ctx, j.now().Add(-j.taskMaxAge))
	if err != nil {
		logging.Warn("failed to list unfinished conversions", "error", err)
		return 0
	}
	n := 0
	for _, c := range convs {
		if err := j.conversions.FailConversion(ctx, c.ID, abandonedMessage); err != nil {
			logging.Warn("failed to fail abandoned conversion", "task_id", c.ID, "error", err)
			continue
		}
		if j.refunder != nil {
			if _, err := j.refunder.Refund(ctx, c.ID, abandonedMessage); err != nil {
				logging.Error("❌ Refund failed", "task_id", c.ID, "error", err)
			}
		}
		n++
	}
	return n
}

// Start runs the janitor every interval until ctx is cancelled. The
// returned channel closes once the loop has exited.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Go Pattern: time.Ticker sends values at regular intervals.
		// Always defer ticker.Stop() to release resources.
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := j.Run(ctx); err != nil {
					logging.Warn("cleanup failed", "error", err)
				}
			}
		}
	}()
	return done
}
