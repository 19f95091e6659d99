package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dandantas/tasyrunner/internal/database"
	"github.com/dandantas/tasyrunner/internal/model"
)

type fakeLocker struct {
	deny     bool
	err      error
	acquired int
	released int
}

func (f *fakeLocker) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.deny {
		return false, nil
	}
	f.acquired++
	return true, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, name, owner string) error {
	f.released++
	return nil
}

func (f *fakeLocker) ReleaseAllLocks(ctx context.Context, owner string) error { return nil }

type activeSet map[string]bool

func (a activeSet) IsActive(id string) bool { return a[id] }

func items(ids ...string) []model.WorkItem {
	out := make([]model.WorkItem, len(ids))
	for i, id := range ids {
		out[i] = model.WorkItem{ID: id}
	}
	return out
}

func createJob(t *testing.T, ledger *database.MemoryLedger, owner string, started time.Time, ids ...string) string {
	t.Helper()
	id, err := ledger.CreateJob(context.Background(), &model.Job{
		Type:      model.JobTypeBoletos,
		Status:    model.JobRunning,
		ItemCount: len(ids),
		Owner:     owner,
		StartedAt: started,
		Items:     items(ids...),
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return id
}

func TestSweep_ClosesAbandonedJobs(t *testing.T) {
	ctx := context.Background()
	ledger := database.NewMemoryLedger()
	locker := &fakeLocker{}
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	s := NewSweeper(Config{Owner: "pod-a", StaleAfter: time.Hour}, ledger, locker, activeSet{})
	s.now = func() time.Time { return now }
	s.started = now.Add(-time.Minute)

	// previous run of this instance, one item already recorded
	previous := createJob(t, ledger, "pod-a", now.Add(-10*time.Minute), "1", "2", "2")
	if err := ledger.AppendResult(ctx, previous, model.ItemResult{ItemID: "2", Status: model.ItemSuccess}); err != nil {
		t.Fatalf("append: %v", err)
	}
	// another instance, stale
	stale := createJob(t, ledger, "pod-b", now.Add(-2*time.Hour), "9")
	// another instance, recent
	recent := createJob(t, ledger, "pod-b", now.Add(-5*time.Minute), "7")

	reaped, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reaped != 2 {
		t.Fatalf("expected 2 jobs closed, got %d", reaped)
	}

	job, _ := ledger.GetJob(ctx, previous)
	if job.Status != model.JobComplete {
		t.Errorf("expected previous job COMPLETE, got %s", job.Status)
	}
	if job.CompletedCount != 3 || len(job.Results) != 3 {
		t.Errorf("expected every item accounted for, got %d results", len(job.Results))
	}
	crashes := 0
	for _, r := range job.Results {
		if r.Reason == model.ReasonCrash && r.Detail == InterruptedDetail {
			crashes++
		}
	}
	if crashes != 2 {
		t.Errorf("expected 2 interrupted results, got %d", crashes)
	}

	if job, _ := ledger.GetJob(ctx, stale); job.Status != model.JobComplete {
		t.Errorf("expected stale job COMPLETE, got %s", job.Status)
	}
	if job, _ := ledger.GetJob(ctx, recent); job.Status != model.JobRunning {
		t.Errorf("expected recent job untouched, got %s", job.Status)
	}
	if locker.acquired != 1 || locker.released != 1 {
		t.Errorf("expected lease taken and released once, got %d/%d", locker.acquired, locker.released)
	}
}

func TestSweep_SkipsActiveJobs(t *testing.T) {
	ledger := database.NewMemoryLedger()
	now := time.Now().UTC()
	id := createJob(t, ledger, "pod-a", now.Add(-48*time.Hour), "1")

	s := NewSweeper(Config{Owner: "pod-a"}, ledger, nil, activeSet{id: true})
	reaped, err := s.Sweep(context.Background())
	if err != nil || reaped != 0 {
		t.Fatalf("expected nothing closed, got %d, %v", reaped, err)
	}
}

func TestSweep_JobsFromThisRunWaitForStaleness(t *testing.T) {
	ledger := database.NewMemoryLedger()
	s := NewSweeper(Config{Owner: "pod-a", StaleAfter: time.Hour}, ledger, nil, activeSet{})
	createJob(t, ledger, "pod-a", s.started.Add(time.Second), "1")

	reaped, _ := s.Sweep(context.Background())
	if reaped != 0 {
		t.Errorf("expected job started by this run to be left alone, got %d", reaped)
	}
}

func TestSweep_Lease(t *testing.T) {
	ledger := database.NewMemoryLedger()
	createJob(t, ledger, "pod-z", time.Now().Add(-72*time.Hour), "1")

	s := NewSweeper(Config{Owner: "pod-a"}, ledger, &fakeLocker{deny: true}, nil)
	if reaped, err := s.Sweep(context.Background()); err != nil || reaped != 0 {
		t.Errorf("expected no work without the lease, got %d, %v", reaped, err)
	}

	boom := errors.New("mongo down")
	s = NewSweeper(Config{Owner: "pod-a"}, ledger, &fakeLocker{err: boom}, nil)
	if _, err := s.Sweep(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected lease error, got %v", err)
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := NewSweeper(Config{Enabled: true, Schedule: "not a cron"}, database.NewMemoryLedger(), nil, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Errorf("expected schedule error")
	}
}

func TestSweep_LeavesJobsWithRecentHeartbeat(t *testing.T) {
	ctx := context.Background()
	ledger := database.NewMemoryLedger()
	now := time.Now().UTC()

	// pod-a started long ago and is still working on the job
	id := createJob(t, ledger, "pod-a", now.Add(-7*time.Hour), "1", "2")
	if err := ledger.Touch(ctx, id, now.Add(-time.Minute)); err != nil {
		t.Fatalf("touch: %v", err)
	}

	s := NewSweeper(Config{Owner: "pod-b", StaleAfter: 15 * time.Minute}, ledger, &fakeLocker{}, activeSet{})
	s.now = func() time.Time { return now }

	reaped, err := s.Sweep(ctx)
	if err != nil || reaped != 0 {
		t.Fatalf("expected live job left alone, got %d, %v", reaped, err)
	}

	if err := ledger.AppendResult(ctx, id, model.ItemResult{Key: "a-1", ItemID: "1", Status: model.ItemSuccess}); err != nil {
		t.Fatalf("owner append: %v", err)
	}
	job, _ := ledger.GetJob(ctx, id)
	if job.Status != model.JobRunning || job.CompletedCount != 1 {
		t.Errorf("expected running job with 1 result, got %s/%d", job.Status, job.CompletedCount)
	}
}

func TestSweep_OwnerCannotWriteAfterReap(t *testing.T) {
	ctx := context.Background()
	ledger := database.NewMemoryLedger()
	now := time.Now().UTC()

	id := createJob(t, ledger, "pod-a", now.Add(-7*time.Hour), "1", "2")

	s := NewSweeper(Config{Owner: "pod-b", StaleAfter: 15 * time.Minute}, ledger, nil, activeSet{})
	s.now = func() time.Time { return now }

	if reaped, err := s.Sweep(ctx); err != nil || reaped != 1 {
		t.Fatalf("expected silent job closed, got %d, %v", reaped, err)
	}

	err := ledger.AppendResult(ctx, id, model.ItemResult{Key: "a-2", ItemID: "2", Status: model.ItemSuccess})
	if !errors.Is(err, model.ErrJobClosed) {
		t.Errorf("expected ErrJobClosed for a late owner write, got %v", err)
	}

	job, _ := ledger.GetJob(ctx, id)
	if job.CompletedCount != job.ItemCount || job.ClosedBy != "pod-b" {
		t.Errorf("expected %d results closed by pod-b, got %d by %q", job.ItemCount, job.CompletedCount, job.ClosedBy)
	}
}

// laggingStore serves a snapshot taken before a result arrives, as happens
// when the owner records a result between the sweeper's read and its write
type laggingStore struct {
	*database.MemoryLedger
	snapshot []model.Job
}

func (l *laggingStore) ListRunning(ctx context.Context) ([]model.Job, error) {
	return l.snapshot, nil
}

func TestSweep_SkipsJobThatMovedOn(t *testing.T) {
	ctx := context.Background()
	ledger := database.NewMemoryLedger()
	now := time.Now().UTC()

	id := createJob(t, ledger, "pod-a", now.Add(-time.Hour), "1", "2")
	snapshot, _ := ledger.ListRunning(ctx)
	if err := ledger.AppendResult(ctx, id, model.ItemResult{Key: "a-1", ItemID: "1", Status: model.ItemSuccess}); err != nil {
		t.Fatalf("append: %v", err)
	}

	s := NewSweeper(Config{Owner: "pod-b", StaleAfter: 15 * time.Minute}, &laggingStore{MemoryLedger: ledger, snapshot: snapshot}, nil, activeSet{})
	s.now = func() time.Time { return now }

	reaped, err := s.Sweep(ctx)
	if err != nil || reaped != 0 {
		t.Fatalf("expected no job closed, got %d, %v", reaped, err)
	}

	job, _ := ledger.GetJob(ctx, id)
	if job.Status != model.JobRunning || job.CompletedCount != 1 {
		t.Errorf("expected job untouched, got %s/%d", job.Status, job.CompletedCount)
	}
}
