package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dandantas/tasyrunner/internal/model"
)

func TestMemoryLedger_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	job := &model.Job{Type: model.JobTypeBoletos, Status: model.JobRunning, ItemCount: 200, StartedAt: time.Now()}
	id, err := ledger.CreateJob(ctx, job)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				res := model.ItemResult{ItemID: fmt.Sprintf("%d-%d", w, i), Status: model.ItemSuccess}
				if err := ledger.AppendResult(ctx, id, res); err != nil {
					t.Errorf("append: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	got, err := ledger.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CompletedCount != 200 || len(got.Results) != 200 {
		t.Errorf("expected 200 completed and results, got %d and %d", got.CompletedCount, len(got.Results))
	}
}

func TestMemoryLedger_Lifecycle(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	old := &model.Job{Type: model.JobTypeBoletos, Status: model.JobRunning, StartedAt: time.Now().Add(-time.Hour)}
	recent := &model.Job{Type: model.JobTypeRecursoProprio, Status: model.JobRunning, StartedAt: time.Now()}
	oldID, _ := ledger.CreateJob(ctx, old)
	recentID, _ := ledger.CreateJob(ctx, recent)

	if err := ledger.MarkComplete(ctx, oldID, time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	all, _ := ledger.ListJobs(ctx, model.JobFilter{})
	if len(all) != 2 || all[0].ID != recentID {
		t.Errorf("expected newest job first, got %+v", all)
	}

	boletos, _ := ledger.ListJobs(ctx, model.JobFilter{Type: model.JobTypeBoletos})
	if len(boletos) != 1 || boletos[0].Status != model.JobComplete || boletos[0].EndedAt == nil {
		t.Errorf("expected one completed boletos job, got %+v", boletos)
	}

	running, _ := ledger.ListRunning(ctx)
	if len(running) != 1 || running[0].ID != recentID {
		t.Errorf("expected only the recent job running, got %+v", running)
	}

	if _, err := ledger.GetJob(ctx, "missing"); !errors.Is(err, model.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if err := ledger.AppendResult(ctx, "missing", model.ItemResult{}); !errors.Is(err, model.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryLedger_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	id, _ := ledger.CreateJob(ctx, &model.Job{Items: []model.WorkItem{{ID: "1"}}})

	got, _ := ledger.GetJob(ctx, id)
	got.Items[0].ID = "changed"
	got.CompletedCount = 99

	again, _ := ledger.GetJob(ctx, id)
	if again.Items[0].ID != "1" || again.CompletedCount != 0 {
		t.Errorf("ledger state leaked through a returned job")
	}
}

func TestMemoryLedger_AppendIsIdempotentPerKey(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	id, _ := ledger.CreateJob(ctx, &model.Job{Status: model.JobRunning, ItemCount: 2})

	res := model.ItemResult{Key: "k-1", ItemID: "1", Status: model.ItemSuccess}
	for i := 0; i < 3; i++ {
		if err := ledger.AppendResult(ctx, id, res); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	// unkeyed results are always applied
	ledger.AppendResult(ctx, id, model.ItemResult{ItemID: "2", Status: model.ItemSuccess})

	job, _ := ledger.GetJob(ctx, id)
	if job.CompletedCount != 2 || len(job.Results) != 2 {
		t.Errorf("expected 2 results, got %d/%d", job.CompletedCount, len(job.Results))
	}
	if job.HeartbeatAt.IsZero() {
		t.Errorf("expected append to refresh the heartbeat")
	}
}

func TestMemoryLedger_ClosedJobRejectsWrites(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	id, _ := ledger.CreateJob(ctx, &model.Job{Status: model.JobRunning, ItemCount: 1})

	recorded := model.ItemResult{Key: "k-1", ItemID: "1", Status: model.ItemSuccess}
	ledger.AppendResult(ctx, id, recorded)
	if err := ledger.MarkComplete(ctx, id, time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if err := ledger.AppendResult(ctx, id, model.ItemResult{Key: "k-2", ItemID: "2"}); !errors.Is(err, model.ErrJobClosed) {
		t.Errorf("expected ErrJobClosed on append, got %v", err)
	}
	if err := ledger.AppendResult(ctx, id, recorded); err != nil {
		t.Errorf("a repeated write of a stored result should succeed, got %v", err)
	}
	if err := ledger.MarkComplete(ctx, id, time.Now()); !errors.Is(err, model.ErrJobClosed) {
		t.Errorf("expected ErrJobClosed on second complete, got %v", err)
	}
	if err := ledger.Touch(ctx, id, time.Now()); !errors.Is(err, model.ErrJobClosed) {
		t.Errorf("expected ErrJobClosed on touch, got %v", err)
	}

	job, _ := ledger.GetJob(ctx, id)
	if job.CompletedCount != 1 {
		t.Errorf("expected 1 result, got %d", job.CompletedCount)
	}
}

func TestMemoryLedger_CloseAbandoned(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	id, _ := ledger.CreateJob(ctx, &model.Job{Status: model.JobRunning, ItemCount: 2})
	ledger.AppendResult(ctx, id, model.ItemResult{ItemID: "1", Status: model.ItemSuccess})

	crash := []model.ItemResult{{ItemID: "2", Status: model.ItemFailure, Reason: model.ReasonCrash}}

	// stale read: the job has one result, not zero
	if err := ledger.CloseAbandoned(ctx, id, "pod-b", 0, crash, time.Now()); !errors.Is(err, model.ErrJobChanged) {
		t.Fatalf("expected ErrJobChanged, got %v", err)
	}
	if err := ledger.CloseAbandoned(ctx, id, "pod-b", 1, crash, time.Now()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := ledger.CloseAbandoned(ctx, id, "pod-b", 2, nil, time.Now()); !errors.Is(err, model.ErrJobClosed) {
		t.Errorf("expected ErrJobClosed, got %v", err)
	}

	job, _ := ledger.GetJob(ctx, id)
	if job.Status != model.JobComplete || job.CompletedCount != 2 || job.EndedAt == nil {
		t.Errorf("expected a complete job with 2 results, got %s/%d", job.Status, job.CompletedCount)
	}
	if job.ClosedBy != "pod-b" {
		t.Errorf("expected closed_by pod-b, got %q", job.ClosedBy)
	}
}
