package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dandantas/tasyrunner/internal/automation"
	"github.com/dandantas/tasyrunner/internal/model"
	"github.com/dandantas/tasyrunner/internal/worker"
	"github.com/google/uuid"
)

// BatchRunner processes one chunk and reports each item through onProgress
type BatchRunner interface {
	Run(ctx context.Context, items []model.WorkItem, onProgress automation.ProgressFunc) []model.ItemResult
}

// RunnerFactory builds the runner for one chunk of a job
type RunnerFactory func(jobType model.JobType, logger *slog.Logger) (BatchRunner, error)

// NewRunnerFactory returns a factory that drives the given flows on sessions
// opened by opener
func NewRunnerFactory(opener automation.SessionOpener, flows ...automation.Flow) RunnerFactory {
	byType := make(map[model.JobType]automation.Flow, len(flows))
	for _, f := range flows {
		byType[f.Type()] = f
	}
	return func(jobType model.JobType, logger *slog.Logger) (BatchRunner, error) {
		flow, ok := byType[jobType]
		if !ok {
			return nil, fmt.Errorf("%w: %s", model.ErrUnknownJobType, jobType)
		}
		return automation.NewRunner(opener, flow, logger), nil
	}
}

// OrchestratorConfig tunes how jobs are split and recorded
type OrchestratorConfig struct {
	ChunkCount        int
	Owner             string
	WriteRetries      int
	WriteBackoff      time.Duration
	HeartbeatInterval time.Duration
}

// Orchestrator accepts batches, fans their chunks out over the worker pool
// and completes the job once every chunk has reported
type Orchestrator struct {
	ledger   Ledger
	pool     *worker.WorkerPool
	runners  RunnerFactory
	notifier Notifier
	cfg      OrchestratorConfig

	mu     sync.Mutex
	active map[string]struct{}
	jobs   sync.WaitGroup
}

// NewOrchestrator creates a new orchestrator. notifier may be nil.
func NewOrchestrator(ledger Ledger, pool *worker.WorkerPool, runners RunnerFactory, notifier Notifier, cfg OrchestratorConfig) *Orchestrator {
	if cfg.ChunkCount < 1 {
		cfg.ChunkCount = 10
	}
	if cfg.WriteRetries < 1 {
		cfg.WriteRetries = 3
	}
	if cfg.WriteBackoff <= 0 {
		cfg.WriteBackoff = 200 * time.Millisecond
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = time.Minute
	}
	return &Orchestrator{
		ledger:   ledger,
		pool:     pool,
		runners:  runners,
		notifier: notifier,
		cfg:      cfg,
		active:   make(map[string]struct{}),
	}
}

// Submit records a new job and starts processing it in the background
func (o *Orchestrator) Submit(ctx context.Context, jobType model.JobType, items []model.WorkItem) (string, error) {
	return o.submit(ctx, jobType, items, "")
}

// SubmitRetry starts a new job holding the technical failures of a finished
// job. Items that failed for a blank e-mail are left out.
func (o *Orchestrator) SubmitRetry(ctx context.Context, jobID string) (string, error) {
	job, err := o.ledger.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Status != model.JobComplete {
		return "", model.ErrJobStillRunning
	}

	var items []model.WorkItem
	for _, res := range job.Results {
		if res.Retryable() {
			items = append(items, res.Item())
		}
	}
	if len(items) == 0 {
		return "", model.ErrNothingToRetry
	}

	return o.submit(ctx, job.Type, items, job.ID)
}

func (o *Orchestrator) submit(ctx context.Context, jobType model.JobType, items []model.WorkItem, retryOf string) (string, error) {
	if !jobType.Valid() {
		return "", fmt.Errorf("%w: %s", model.ErrUnknownJobType, jobType)
	}
	if len(items) == 0 {
		return "", model.ErrEmptyBatch
	}

	now := time.Now().UTC()
	job := &model.Job{
		Type:        jobType,
		Status:      model.JobRunning,
		ItemCount:   len(items),
		Owner:       o.cfg.Owner,
		RetryOf:     retryOf,
		StartedAt:   now,
		HeartbeatAt: now,
		Items:       items,
		Results:     []model.ItemResult{},
	}

	jobID, err := o.ledger.CreateJob(ctx, job)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	o.mu.Lock()
	o.active[jobID] = struct{}{}
	o.mu.Unlock()

	slog.Info("Job accepted",
		"job_id", jobID,
		"automation_type", jobType,
		"items", len(items),
		"retry_of", retryOf,
	)

	o.jobs.Add(1)
	go o.execute(context.WithoutCancel(ctx), jobID, jobType, items)

	return jobID, nil
}

// IsActive reports whether this process is still working on jobID
func (o *Orchestrator) IsActive(jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[jobID]
	return ok
}

// Wait blocks until every accepted job has completed or ctx expires
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.jobs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) execute(ctx context.Context, jobID string, jobType model.JobType, items []model.WorkItem) {
	defer o.jobs.Done()
	start := time.Now()

	beatCtx, stopBeat := context.WithCancel(ctx)
	defer stopBeat()
	go o.heartbeat(beatCtx, jobID)

	var wg sync.WaitGroup
	for i, chunk := range SplitChunks(items, o.cfg.ChunkCount) {
		if len(chunk) == 0 {
			continue
		}

		index := i
		wg.Add(1)
		task := worker.Job{
			JobID: jobID,
			Chunk: index,
			Size:  len(chunk),
			Run: func(ctx context.Context) {
				defer wg.Done()
				o.runChunk(ctx, jobID, jobType, index, chunk)
			},
		}

		if err := o.pool.Submit(ctx, task); err != nil {
			wg.Done()
			slog.Error("Failed to schedule chunk", "job_id", jobID, "chunk", index, "error", err)
			o.failItems(ctx, jobID, chunk, fmt.Sprintf("chunk not scheduled: %v", err))
		}
	}
	wg.Wait()
	stopBeat()

	o.finish(ctx, jobID, start)
}

// heartbeat refreshes the job's heartbeat_at until ctx ends, covering time
// spent queued for pool slots and on slow items
func (o *Orchestrator) heartbeat(ctx context.Context, jobID string) {
	ticker := time.NewTicker(o.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case at := <-ticker.C:
			err := o.ledger.Touch(ctx, jobID, at)
			if errors.Is(err, model.ErrJobClosed) {
				if ctx.Err() == nil {
					slog.Warn("Job was closed while still running here", "job_id", jobID)
				}
				return
			}
			if err != nil && ctx.Err() == nil {
				slog.Warn("Failed to refresh job heartbeat", "job_id", jobID, "error", err)
			}
		}
	}
}

// runChunk runs one chunk and guarantees that every item in it ends up with a
// result in the ledger, even when the runner misbehaves
func (o *Orchestrator) runChunk(ctx context.Context, jobID string, jobType model.JobType, index int, chunk []model.WorkItem) {
	logger := slog.With("job_id", jobID, "chunk", index)

	reported := 0
	progress := func(res model.ItemResult) {
		reported++
		o.record(ctx, jobID, res)
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("Runner panicked", "panic", p)
			o.failItems(ctx, jobID, chunk[reported:], fmt.Sprintf("crash: runner panic: %v", p))
		}
	}()

	runner, err := o.runners(jobType, logger)
	if err != nil {
		logger.Error("Failed to build runner", "error", err)
		o.failItems(ctx, jobID, chunk, fmt.Sprintf("crash: %v", err))
		return
	}

	logger.Info("Chunk started", "items", len(chunk))
	runner.Run(ctx, chunk, progress)

	if reported < len(chunk) {
		logger.Error("Runner returned with unreported items", "missing", len(chunk)-reported)
		o.failItems(ctx, jobID, chunk[reported:], "crash: runner returned without a result")
	}
}

func (o *Orchestrator) failItems(ctx context.Context, jobID string, items []model.WorkItem, detail string) {
	for _, item := range items {
		o.record(ctx, jobID, model.NewFailure(item, model.ReasonCrash, detail))
	}
}

// record appends res to the ledger, retrying transient write failures. Every
// attempt carries the same result key, so a write that landed before its
// acknowledgement was lost is not applied twice. A result that still cannot
// be written is logged and dropped from the ledger; the sweeper closes the job
// if it never reaches its item count.
func (o *Orchestrator) record(ctx context.Context, jobID string, res model.ItemResult) {
	if res.Key == "" {
		res.Key = uuid.New().String()
	}
	err := o.withRetry(ctx, func() error {
		return o.ledger.AppendResult(ctx, jobID, res)
	})
	if err != nil {
		slog.Error("Failed to record item result",
			"job_id", jobID,
			"item_id", res.ItemID,
			"status", res.Status,
			"error", err,
		)
	}
}

func (o *Orchestrator) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= o.cfg.WriteRetries; attempt++ {
		if err = fn(); err == nil || errors.Is(err, model.ErrJobNotFound) || errors.Is(err, model.ErrJobClosed) {
			return err
		}
		if attempt == o.cfg.WriteRetries {
			break
		}
		select {
		case <-time.After(o.cfg.WriteBackoff * time.Duration(attempt)):
		case <-ctx.Done():
			return err
		}
	}
	return err
}

func (o *Orchestrator) finish(ctx context.Context, jobID string, start time.Time) {
	defer func() {
		o.mu.Lock()
		delete(o.active, jobID)
		o.mu.Unlock()
	}()

	err := o.withRetry(ctx, func() error {
		return o.ledger.MarkComplete(ctx, jobID, time.Now().UTC())
	})
	// ErrJobClosed also covers a retry after a completion whose
	// acknowledgement was lost; ClosedBy tells the two apart
	if err != nil && !errors.Is(err, model.ErrJobClosed) {
		slog.Error("Failed to mark job complete", "job_id", jobID, "error", err)
		return
	}

	job, err := o.ledger.GetJob(ctx, jobID)
	if err != nil {
		slog.Error("Failed to load finished job", "job_id", jobID, "error", err)
		return
	}
	if job.ClosedBy != "" {
		slog.Warn("Job was closed by a sweeper, skipping summary", "job_id", jobID, "closed_by", job.ClosedBy)
		return
	}

	success, emptyEmail, technical := job.Counts()
	slog.Info("Job completed",
		"job_id", jobID,
		"automation_type", job.Type,
		"total", job.ItemCount,
		"completed", job.CompletedCount,
		"succeeded", success,
		"empty_email", emptyEmail,
		"technical_failures", technical,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, job); err != nil {
		slog.Error("Failed to send job summary", "job_id", jobID, "error", err)
	}
}
