// Package scheduler closes jobs that were left RUNNING by a process that went
// away before finishing them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dandantas/tasyrunner/internal/model"
	"github.com/robfig/cron/v3"
)

const lockName = "job-sweeper"

// InterruptedDetail is recorded on items reaped from an abandoned job
const InterruptedDetail = "crash: interrupted before completion"

// Locker hands out a named lease. LockRepository implements it.
type Locker interface {
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error
	ReleaseAllLocks(ctx context.Context, owner string) error
}

// JobStore is the part of the ledger the sweeper needs
type JobStore interface {
	ListRunning(ctx context.Context) ([]model.Job, error)

	// CloseAbandoned appends results and completes the job in one step. It
	// fails with ErrJobChanged when completed no longer matches the ledger.
	CloseAbandoned(ctx context.Context, jobID, by string, completed int, results []model.ItemResult, endedAt time.Time) error
}

// ActivityChecker reports whether this process still works on a job
type ActivityChecker interface {
	IsActive(jobID string) bool
}

// Config controls when the sweeper runs
type Config struct {
	Enabled    bool
	Schedule   string // five-field cron expression
	StaleAfter time.Duration
	LockTTL    time.Duration
	Owner      string
}

// Sweeper periodically reaps abandoned jobs
type Sweeper struct {
	cfg     Config
	store   JobStore
	locker  Locker // nil runs without a lease
	active  ActivityChecker
	now     func() time.Time
	started time.Time

	cron *cron.Cron
	mu   sync.Mutex // one sweep at a time
}

// NewSweeper creates a new sweeper. locker may be nil when only one
// instance can exist, e.g. with the in-memory ledger.
func NewSweeper(cfg Config, store JobStore, locker Locker, active ActivityChecker) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = "*/5 * * * *"
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	return &Sweeper{
		cfg:     cfg,
		store:   store,
		locker:  locker,
		active:  active,
		now:     func() time.Time { return time.Now().UTC() },
		started: time.Now().UTC(),
	}
}

// Start runs a sweep immediately and then on the configured schedule
func (s *Sweeper) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		slog.Info("Job sweeper is disabled by configuration")
		return nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	s.cron = cron.New(cron.WithParser(parser))
	if _, err := s.cron.AddFunc(s.cfg.Schedule, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("invalid sweeper schedule '%s': %w", s.cfg.Schedule, err)
	}

	slog.Info("Starting job sweeper",
		"owner", s.cfg.Owner,
		"schedule", s.cfg.Schedule,
		"stale_after", s.cfg.StaleAfter,
	)

	go s.tick(ctx)
	s.cron.Start()
	return nil
}

// Stop waits for a running sweep and releases held leases
func (s *Sweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		slog.Warn("Timeout waiting for job sweeper to stop")
	}

	if s.locker != nil {
		if err := s.locker.ReleaseAllLocks(context.WithoutCancel(ctx), s.cfg.Owner); err != nil {
			slog.Error("Failed to release locks during shutdown", "error", err)
		}
	}
	slog.Info("Job sweeper stopped", "owner", s.cfg.Owner)
}

func (s *Sweeper) tick(ctx context.Context) {
	reaped, err := s.Sweep(ctx)
	if err != nil {
		slog.Error("Job sweep failed", "error", err)
		return
	}
	if reaped > 0 {
		slog.Info("Job sweep closed abandoned jobs", "count", reaped)
	}
}

// Sweep closes every abandoned job and returns how many it closed. Items
// without a result get a CRASH failure so the job accounts for all of them.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locker != nil {
		acquired, err := s.locker.AcquireLock(ctx, lockName, s.cfg.Owner, s.cfg.LockTTL)
		if err != nil {
			return 0, err
		}
		if !acquired {
			slog.Debug("Sweeper lease held by another instance")
			return 0, nil
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockName, s.cfg.Owner); err != nil {
				slog.Error("Failed to release sweeper lease", "error", err)
			}
		}()
	}

	jobs, err := s.store.ListRunning(ctx)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for i := range jobs {
		job := &jobs[i]
		if !s.abandoned(job) {
			continue
		}
		if err := s.reap(ctx, job); err != nil {
			if errors.Is(err, model.ErrJobChanged) || errors.Is(err, model.ErrJobClosed) {
				slog.Info("Job moved on since it was read, leaving it", "job_id", job.ID, "reason", err)
				continue
			}
			slog.Error("Failed to close abandoned job", "job_id", job.ID, "error", err)
			continue
		}
		reaped++
	}
	return reaped, nil
}

// abandoned reports whether nobody will finish job: it is not running here
// and was either started by an earlier run of this instance or its owner has
// not shown signs of life for longer than the stale threshold
func (s *Sweeper) abandoned(job *model.Job) bool {
	if s.active != nil && s.active.IsActive(job.ID) {
		return false
	}
	if job.Owner == s.cfg.Owner && job.StartedAt.Before(s.started) {
		return true
	}
	return s.now().Sub(job.LastSeen()) > s.cfg.StaleAfter
}

func (s *Sweeper) reap(ctx context.Context, job *model.Job) error {
	missing := model.MissingItems(job.Items, job.Results)

	slog.Warn("Closing abandoned job",
		"job_id", job.ID,
		"owner", job.Owner,
		"started_at", job.StartedAt,
		"last_seen", job.LastSeen(),
		"missing", len(missing),
	)

	results := make([]model.ItemResult, len(missing))
	for i, item := range missing {
		results[i] = model.NewFailure(item, model.ReasonCrash, InterruptedDetail)
	}
	return s.store.CloseAbandoned(ctx, job.ID, s.cfg.Owner, job.CompletedCount, results, s.now())
}
