package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jerin288/jdt-tool-web/internal/models"
)

const (
	redisKeyPrefix = "jdt:task:"
	maxTxRetries   = 50
)

// RedisStore keeps tasks as JSON values that expire after ttl. Updates
// use WATCH/MULTI so concurrent writers cannot lose each other's changes.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, now: time.Now}
}

func (s *RedisStore) Name() string { return "redis" }

// redisTask carries the fields models.Task hides from API responses.
type redisTask struct {
	ID         string                  `json:"id"`
	UserID     string                  `json:"user_id"`
	Status     models.ConversionStatus `json:"status"`
	Progress   int                     `json:"progress"`
	Message    string                  `json:"message"`
	OutputFile string                  `json:"output_file,omitempty"`
	TableCount int                     `json:"table_count"`
	TextCount  int                     `json:"text_count"`
	Preview    *models.Preview         `json:"preview,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

func toRedis(t *models.Task) redisTask {
	return redisTask{
		ID: t.ID, UserID: t.UserID, Status: t.Status, Progress: t.Progress, Message: t.Message,
		OutputFile: t.OutputFile, TableCount: t.TableCount, TextCount: t.TextCount,
		Preview: t.Preview, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
}

func (r redisTask) task() *models.Task {
	return &models.Task{
		ID: r.ID, UserID: r.UserID, Status: r.Status, Progress: r.Progress, Message: r.Message,
		OutputFile: r.OutputFile, TableCount: r.TableCount, TextCount: r.TextCount,
		Preview: r.Preview, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func key(taskID string) string { return redisKeyPrefix + taskID }

func (s *RedisStore) Start(ctx context.Context, taskID, userID string) error {
	now := s.now()
	data, err := json.Marshal(toRedis(&models.Task{
		ID:        taskID,
		UserID:    userID,
		Status:    models.StatusStarted,
		Message:   "Upload received, waiting for a worker...",
		CreatedAt: now,
		UpdatedAt: now,
	}))
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, key(taskID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store task %s: %w", taskID, err)
	}
	return nil
}

func (s *RedisStore) SetProgress(ctx context.Context, taskID string, percent int, message string) error {
	return s.update(ctx, taskID, func(t *models.Task, now time.Time) bool {
		return apply(t, models.StatusProcessing, percent, message, now)
	})
}

func (s *RedisStore) Complete(ctx context.Context, taskID string, out Outcome) error {
	return s.update(ctx, taskID, func(t *models.Task, now time.Time) bool {
		if !apply(t, models.StatusCompleted, 100, CompletedMessage, now) {
			return false
		}
		t.OutputFile = out.OutputFile
		t.TableCount = out.TableCount
		t.TextCount = out.TextCount
		t.Preview = out.Preview
		return true
	})
}

func (s *RedisStore) Fail(ctx context.Context, taskID, message string) error {
	return s.update(ctx, taskID, func(t *models.Task, now time.Time) bool {
		return apply(t, models.StatusError, 0, message, now)
	})
}

// update runs a read-modify-write under WATCH, retrying when another
// writer touched the key in between.
func (s *RedisStore) update(ctx context.Context, taskID string, fn func(*models.Task, time.Time) bool) error {
	k := key(taskID)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var rt redisTask
		if err := json.Unmarshal(data, &rt); err != nil {
			return fmt.Errorf("decode task %s: %w", taskID, err)
		}

		now := s.now()
		t := rt.task()
		if !fn(t, now) {
			return nil
		}
		ttl := s.ttl - now.Sub(t.CreatedAt)
		if ttl <= 0 {
			ttl = time.Second
		}
		out, err := json.Marshal(toRedis(t))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, out, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update task %s: too much contention", taskID)
}

func (s *RedisStore) Get(ctx context.Context, taskID string) (*models.Task, error) {
	data, err := s.rdb.Get(ctx, key(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", taskID, err)
	}
	var rt redisTask
	if err := json.Unmarshal(data, &rt); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", taskID, err)
	}
	return rt.task(), nil
}

// Sweep deletes tasks created before the cutoff. Keys also expire on
// their own, so this only matters when maxAge is shorter than the TTL.
func (s *RedisStore) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)
	removed := 0
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		data, err := s.rdb.Get(ctx, k).Bytes()
		if err != nil {
			continue
		}
		var rt redisTask
		if err := json.Unmarshal(data, &rt); err != nil || rt.CreatedAt.Before(cutoff) {
			if n, err := s.rdb.Del(ctx, k).Result(); err == nil {
				removed += int(n)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan tasks: %w", err)
	}
	return removed, nil
}
