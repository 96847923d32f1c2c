// Package worker provides a background job processing system using goroutines.
//
// Go Pattern: Goroutines and channels are Go's concurrency primitives.
// A goroutine is like a lightweight thread (thousands are fine), and
// channels are typed pipes for communication between goroutines.
//
// This worker pool pattern is very common in Go:
// 1. Create a buffered channel as a job queue
// 2. Spawn N worker goroutines that read from the channel
// 3. Send jobs to the channel from your HTTP handlers
// 4. Workers process jobs concurrently
package worker

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/jerin288/jdt-tool-web/internal/logging"
	"github.com/jerin288/jdt-tool-web/internal/services/converter"
	"github.com/jerin288/jdt-tool-web/internal/services/progress"
)

var (
	// ErrQueueFull is returned by Submit when no slot is free.
	ErrQueueFull = errors.New("job queue is full; try again later")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("worker pool is stopped")
)

// Job is one uploaded PDF waiting for conversion.
type Job struct {
	TaskID    string
	UserID    string
	PDFPath   string
	Filename  string
	Options   converter.Options
	CreatedAt time.Time
}

// Converter runs a conversion. *converter.Converter implements it.
type Converter interface {
	Convert(ctx context.Context, pdfPath string, opts converter.Options, report converter.Reporter) (*converter.Result, error)
}

// Recorder persists conversion outcomes. *database.DB implements it.
type Recorder interface {
	MarkProcessing(ctx context.Context, id string) error
	CompleteConversion(ctx context.Context, id, outputFile string, tables, texts int) error
	FailConversion(ctx context.Context, id, message string) error
}

// Refunder returns a failed conversion's credit. *ledger.Ledger implements it.
type Refunder interface {
	Refund(ctx context.Context, conversionID, reason string) (bool, error)
}

// Pool manages a pool of worker goroutines.
type Pool struct {
	// Go Pattern: Channels are the backbone of Go concurrency.
	// This buffered channel acts as our job queue.
	jobs    chan Job
	workers int

	conv     Converter
	store    progress.Store
	recorder Recorder
	refunder Refunder

	// Go Pattern: sync.WaitGroup tracks running goroutines.
	// wg.Wait() blocks until all workers are done (used for graceful shutdown).
	wg sync.WaitGroup

	// mu guards stopped so Submit never sends on a closed channel.
	mu      sync.RWMutex
	stopped bool

	// Cancelling ctx aborts conversions that are still running.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates a new worker pool.
func NewPool(workers, queueSize int, conv Converter, store progress.Store, rec Recorder, ref Refunder) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		jobs:     make(chan Job, queueSize),
		workers:  workers,
		conv:     conv,
		store:    store,
		recorder: rec,
		refunder: ref,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	logging.Info("🚀 Starting background workers", "count", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the queue and waits for workers to drain it. If ctx ends
// first, running conversions are cancelled; each then fails and is refunded.
func (p *Pool) Stop(ctx context.Context) {
	logging.Info("⏹️  Stopping workers...")

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logging.Warn("shutdown deadline reached, cancelling running conversions")
		p.cancel()
		<-done
	}
	p.cancel()
	logging.Info("✅ All workers stopped")
}

// Submit adds a job to the queue. It never blocks.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	// Go Pattern: `select` with `default` makes channel operations non-blocking.
	// Without default, sending to a full channel would block the HTTP handler.
	select {
	case p.jobs <- job:
		logging.Info("📥 Job queued", "task_id", job.TaskID, "queue_length", len(p.jobs))
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueSize returns the current number of jobs in the queue.
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}

// WorkerCount returns the number of workers.
func (p *Pool) WorkerCount() int {
	return p.workers
}

// worker reads jobs until the channel is closed.
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	logging.Debug("👷 Worker started", "worker", id)

	// Go Pattern: `range` over a channel reads values until the channel is closed.
	for job := range p.jobs {
		p.process(id, job)
	}

	logging.Debug("👷 Worker stopped", "worker", id)
}

// storeReporter forwards converter progress to the task store.
type storeReporter struct {
	ctx    context.Context
	store  progress.Store
	taskID string
}

func (r storeReporter) Progress(percent int, message string) {
	if err := r.store.SetProgress(r.ctx, r.taskID, percent, message); err != nil {
		logging.Warn("failed to publish progress", "task_id", r.taskID, "error", err)
	}
}

// process converts one upload and records the outcome. The uploaded PDF
// is removed whatever happens.
func (p *Pool) process(id int, job Job) {
	defer func() {
		if err := os.Remove(job.PDFPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Warn("failed to remove upload", "task_id", job.TaskID, "error", err)
		}
	}()

	// Outcome writes must land even when the pool is being cancelled.
	bg := context.WithoutCancel(p.ctx)

	start := time.Now()
	logging.Info("👷 Processing conversion", "worker", id, "task_id", job.TaskID, "file", job.Filename)

	if err := p.recorder.MarkProcessing(bg, job.TaskID); err != nil {
		logging.Warn("failed to mark conversion processing", "task_id", job.TaskID, "error", err)
	}

	if err := p.ctx.Err(); err != nil {
		p.fail(bg, job, err)
		return
	}

	res, err := p.conv.Convert(p.ctx, job.PDFPath, job.Options, storeReporter{ctx: bg, store: p.store, taskID: job.TaskID})
	if err == nil {
		err = p.recorder.CompleteConversion(bg, job.TaskID, res.OutputFile, res.TableCount, res.TextCount)
		if err != nil {
			_ = os.Remove(res.OutputPath)
		}
	}
	if err != nil {
		p.fail(bg, job, err)
		return
	}

	err = p.store.Complete(bg, job.TaskID, progress.Outcome{
		OutputFile: res.OutputFile,
		TableCount: res.TableCount,
		TextCount:  res.TextCount,
		Preview:    res.Preview,
	})
	if err != nil {
		logging.Warn("failed to publish completion", "task_id", job.TaskID, "error", err)
	}
	logging.Info("✅ Conversion completed", "worker", id, "task_id", job.TaskID,
		"tables", res.TableCount, "texts", res.TextCount, "duration_ms", time.Since(start).Milliseconds())
}

func (p *Pool) fail(ctx context.Context, job Job, cause error) {
	msg := converter.UserMessage(cause)
	logging.Error("❌ Conversion failed", "task_id", job.TaskID, "error", cause)

	if err := p.store.Fail(ctx, job.TaskID, msg); err != nil {
		logging.Warn("failed to publish failure", "task_id", job.TaskID, "error", err)
	}
	if err := p.recorder.FailConversion(ctx, job.TaskID, msg); err != nil {
		logging.Warn("failed to record failure", "task_id", job.TaskID, "error", err)
	}
	if _, err := p.refunder.Refund(ctx, job.TaskID, msg); err != nil {
		logging.Error("❌ Refund failed", "task_id", job.TaskID, "error", err)
	}
}
