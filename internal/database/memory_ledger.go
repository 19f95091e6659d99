package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dandantas/tasyrunner/internal/model"
	"github.com/google/uuid"
)

// MemoryLedger is an in-process job ledger used when no MongoDB URI is
// configured. Jobs do not survive a restart.
type MemoryLedger struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
	keys map[string]map[string]struct{} // result keys per job
}

// NewMemoryLedger creates an empty ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		jobs: make(map[string]*model.Job),
		keys: make(map[string]map[string]struct{}),
	}
}

func cloneJob(j *model.Job, withItems bool) model.Job {
	out := *j
	out.Results = append([]model.ItemResult(nil), j.Results...)
	if withItems {
		out.Items = append([]model.WorkItem(nil), j.Items...)
	} else {
		out.Items = nil
	}
	if j.EndedAt != nil {
		ended := *j.EndedAt
		out.EndedAt = &ended
	}
	return out
}

func (m *MemoryLedger) CreateJob(ctx context.Context, job *model.Job) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.ID = uuid.New().String()
	stored := cloneJob(job, true)
	m.jobs[job.ID] = &stored
	m.keys[job.ID] = make(map[string]struct{})
	return job.ID, nil
}

func (m *MemoryLedger) AppendResult(ctx context.Context, jobID string, res model.ItemResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return model.ErrJobNotFound
	}
	if res.Key != "" {
		if _, dup := m.keys[jobID][res.Key]; dup {
			return nil
		}
	}
	if job.Status != model.JobRunning {
		return model.ErrJobClosed
	}

	m.push(jobID, job, res)
	job.HeartbeatAt = time.Now().UTC()
	return nil
}

func (m *MemoryLedger) push(jobID string, job *model.Job, res model.ItemResult) {
	job.Results = append(job.Results, res)
	job.CompletedCount++
	if res.Key != "" {
		m.keys[jobID][res.Key] = struct{}{}
	}
}

func (m *MemoryLedger) Touch(ctx context.Context, jobID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return model.ErrJobNotFound
	}
	if job.Status != model.JobRunning {
		return model.ErrJobClosed
	}
	job.HeartbeatAt = at.UTC()
	return nil
}

func (m *MemoryLedger) MarkComplete(ctx context.Context, jobID string, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return model.ErrJobNotFound
	}
	if job.Status != model.JobRunning {
		return model.ErrJobClosed
	}
	ended := endedAt.UTC()
	job.Status = model.JobComplete
	job.EndedAt = &ended
	return nil
}

// CloseAbandoned appends results and completes the job on behalf of by in one
// step, provided nothing was recorded since the caller read completed
func (m *MemoryLedger) CloseAbandoned(ctx context.Context, jobID, by string, completed int, results []model.ItemResult, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return model.ErrJobNotFound
	}
	if job.Status != model.JobRunning {
		return model.ErrJobClosed
	}
	if job.CompletedCount != completed {
		return model.ErrJobChanged
	}

	for _, res := range results {
		m.push(jobID, job, res)
	}
	ended := endedAt.UTC()
	job.Status = model.JobComplete
	job.EndedAt = &ended
	job.ClosedBy = by
	return nil
}

func (m *MemoryLedger) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, model.ErrJobNotFound
	}
	out := cloneJob(job, true)
	return &out, nil
}

func (m *MemoryLedger) ListJobs(ctx context.Context, filter model.JobFilter) ([]model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]model.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if filter.Type != "" && job.Type != filter.Type {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && job.StartedAt.Before(filter.Since) {
			continue
		}
		jobs = append(jobs, cloneJob(job, false))
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
	if filter.Limit > 0 && len(jobs) > filter.Limit {
		jobs = jobs[:filter.Limit]
	}
	return jobs, nil
}

func (m *MemoryLedger) ListRunning(ctx context.Context) ([]model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var jobs []model.Job
	for _, job := range m.jobs {
		if job.Status == model.JobRunning {
			jobs = append(jobs, cloneJob(job, true))
		}
	}
	return jobs, nil
}

func (m *MemoryLedger) Ping(ctx context.Context) error {
	return nil
}
