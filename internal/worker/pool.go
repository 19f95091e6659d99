package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrPoolStopped is returned when submitting to a stopped pool
var ErrPoolStopped = errors.New("worker pool stopped")

// WorkerPool runs chunk jobs on a fixed number of workers. Each worker owns
// at most one browser session at a time, so the worker count caps the number
// of concurrent sessions across all batches.
type WorkerPool struct {
	workers int
	jobs    chan Job
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.RWMutex
	stopped bool

	busy atomic.Int32
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workers int, jobQueueSize int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workers: workers,
		jobs:    make(chan Job, jobQueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the worker pool
func (wp *WorkerPool) Start() {
	slog.Info("Starting worker pool", "workers", wp.workers)

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop stops accepting jobs and waits for queued ones to drain
func (wp *WorkerPool) Stop() {
	slog.Info("Stopping worker pool")

	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobs)
	wp.mu.Unlock()

	wp.wg.Wait()
	wp.cancel()

	slog.Info("Worker pool stopped")
}

// Submit queues a job. It blocks while the queue is full, which is how
// excess batches wait for a free slot.
func (wp *WorkerPool) Submit(ctx context.Context, job Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return ErrPoolStopped
	}

	select {
	case wp.jobs <- job:
		slog.Debug("Job submitted to worker pool",
			"job_id", job.JobID,
			"chunk", job.Chunk,
			"size", job.Size,
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// worker is the worker goroutine that processes jobs
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	slog.Debug("Worker started", "worker_id", id)

	for job := range wp.jobs {
		slog.Debug("Worker processing job",
			"worker_id", id,
			"job_id", job.JobID,
			"chunk", job.Chunk,
		)
		wp.execute(id, job)
	}

	slog.Debug("Worker stopped", "worker_id", id)
}

func (wp *WorkerPool) execute(id int, job Job) {
	wp.busy.Add(1)
	defer wp.busy.Add(-1)
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Worker job panicked",
				"worker_id", id,
				"job_id", job.JobID,
				"chunk", job.Chunk,
				"panic", p,
			)
		}
	}()
	job.Run(wp.ctx)
}

// GetJobQueueLength returns the current number of jobs in the queue
func (wp *WorkerPool) GetJobQueueLength() int {
	return len(wp.jobs)
}

// Busy returns the number of workers currently running a job
func (wp *WorkerPool) Busy() int {
	return int(wp.busy.Load())
}

// Size returns the number of workers
func (wp *WorkerPool) Size() int {
	return wp.workers
}
