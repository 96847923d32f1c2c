package progress

import (
	"context"
	"sync"
	"time"

	"github.com/jerin288/jdt-tool-web/internal/models"
)

// MemoryStore keeps tasks in a map guarded by a mutex.
//
// Go Pattern: sync.RWMutex lets many pollers read at once while workers
// take the exclusive lock only to write.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*models.Task
	now   func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*models.Task), now: time.Now}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Start(_ context.Context, taskID, userID string) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[taskID] = &models.Task{
		ID:        taskID,
		UserID:    userID,
		Status:    models.StatusStarted,
		Message:   "Upload received, waiting for a worker...",
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *MemoryStore) SetProgress(_ context.Context, taskID string, percent int, message string) error {
	return s.update(taskID, func(t *models.Task, now time.Time) {
		apply(t, models.StatusProcessing, percent, message, now)
	})
}

func (s *MemoryStore) Complete(_ context.Context, taskID string, out Outcome) error {
	return s.update(taskID, func(t *models.Task, now time.Time) {
		if apply(t, models.StatusCompleted, 100, CompletedMessage, now) {
			t.OutputFile = out.OutputFile
			t.TableCount = out.TableCount
			t.TextCount = out.TextCount
			t.Preview = out.Preview
		}
	})
}

func (s *MemoryStore) Fail(_ context.Context, taskID, message string) error {
	return s.update(taskID, func(t *models.Task, now time.Time) {
		apply(t, models.StatusError, 0, message, now)
	})
}

func (s *MemoryStore) update(taskID string, fn func(*models.Task, time.Time)) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	fn(t, now)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, taskID string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTask(t), nil
}

func (s *MemoryStore) Sweep(_ context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, t := range s.tasks {
		if t.CreatedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked tasks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
