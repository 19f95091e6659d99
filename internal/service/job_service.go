package service

import (
	"context"
	"math"
	"time"

	"github.com/dandantas/tasyrunner/internal/export"
	"github.com/dandantas/tasyrunner/internal/model"
)

const defaultListLimit = 100

// JobService answers read queries over the ledger
type JobService struct {
	ledger Ledger
	now    func() time.Time
}

// NewJobService creates a new job service
func NewJobService(ledger Ledger) *JobService {
	return &JobService{
		ledger: ledger,
		now:    time.Now,
	}
}

// GetJob returns a job with its results ordered by item ID
func (s *JobService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.ledger.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	job.Results = job.SortedResults()
	return job, nil
}

// ListJobs returns job summaries, newest first
func (s *JobService) ListJobs(ctx context.Context, jobType model.JobType, limit int) ([]model.JobSummary, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultListLimit
	}

	jobs, err := s.ledger.ListJobs(ctx, model.JobFilter{Type: jobType, Limit: limit})
	if err != nil {
		return nil, err
	}

	summaries := make([]model.JobSummary, 0, len(jobs))
	for i := range jobs {
		summaries = append(summaries, jobs[i].ToSummary())
	}
	return summaries, nil
}

// Export renders the job results in format
func (s *JobService) Export(ctx context.Context, jobID string, format export.Format) ([]byte, string, error) {
	job, err := s.ledger.GetJob(ctx, jobID)
	if err != nil {
		return nil, "", err
	}

	data, err := export.Render(job, format)
	if err != nil {
		return nil, "", err
	}
	return data, export.Filename(job, format), nil
}

// Dashboard aggregates executions per automation type plus a per-day count
// of the last seven days
func (s *JobService) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	jobs, err := s.ledger.ListJobs(ctx, model.JobFilter{})
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats := &model.DashboardStats{
		TotalJobs: len(jobs),
		ByType:    make(map[model.JobType]model.TypeStats),
		LastWeek:  make([]model.DailyCount, 7),
	}
	for i := range stats.LastWeek {
		day := today.AddDate(0, 0, i-6)
		stats.LastWeek[i].Day = day.Format("02/01")
	}

	for i := range jobs {
		job := &jobs[i]
		jobType := job.Type
		if jobType == "" {
			jobType = model.JobTypeBoletos
		}

		success, _, _ := job.Counts()
		ts := stats.ByType[jobType]
		ts.Executions++
		ts.Processed += job.ItemCount
		ts.Successes += success
		stats.ByType[jobType] = ts

		started := job.StartedAt.In(now.Location())
		day := time.Date(started.Year(), started.Month(), started.Day(), 0, 0, 0, 0, now.Location())
		offset := int(math.Round(today.Sub(day).Hours() / 24))
		if offset < 0 || offset > 6 {
			continue
		}
		slot := &stats.LastWeek[6-offset]
		switch jobType {
		case model.JobTypeRecursoProprio:
			slot.Recurso++
		default:
			slot.Boletos++
		}
	}

	for jobType, ts := range stats.ByType {
		if ts.Processed > 0 {
			ts.SuccessRate = math.Round(float64(ts.Successes)/float64(ts.Processed)*1000) / 10
		}
		stats.ByType[jobType] = ts
	}

	return stats, nil
}
