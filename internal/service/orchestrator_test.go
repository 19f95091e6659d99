package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dandantas/tasyrunner/internal/automation"
	"github.com/dandantas/tasyrunner/internal/database"
	"github.com/dandantas/tasyrunner/internal/model"
	"github.com/dandantas/tasyrunner/internal/worker"
)

// livePage is a Page that is always alive. The scripted flow below never
// touches the browser, so the remaining methods are left unimplemented.
type livePage struct {
	automation.Page
	dead *bool
	mu   *sync.Mutex
}

func (p livePage) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if *p.dead {
		return automation.ErrSessionLost
	}
	return nil
}

type scriptedOpener struct {
	mu   sync.Mutex
	dead bool
}

func (o *scriptedOpener) Open(ctx context.Context) (*automation.Session, error) {
	o.mu.Lock()
	o.dead = false
	o.mu.Unlock()
	page := livePage{dead: &o.dead, mu: &o.mu}
	return automation.NewSession(page, func() {}, automation.DefaultLocators(), automation.Timings{}), nil
}

func (o *scriptedOpener) kill() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dead = true
}

// scriptedFlow resolves each item by the outcome registered for its ID.
// Unregistered items succeed.
type scriptedFlow struct {
	jobType  model.JobType
	attempts int
	mu       sync.Mutex
	outcomes map[string]func() (string, error)
	calls    map[string]int
}

func newScriptedFlow(jobType model.JobType) *scriptedFlow {
	return &scriptedFlow{
		jobType:  jobType,
		attempts: 2,
		outcomes: make(map[string]func() (string, error)),
		calls:    make(map[string]int),
	}
}

func (f *scriptedFlow) Type() model.JobType { return f.jobType }
func (f *scriptedFlow) Attempts() int       { return f.attempts }

func (f *scriptedFlow) Setup(ctx context.Context, s *automation.Session, tr *automation.Tracker) error {
	return nil
}

func (f *scriptedFlow) Process(ctx context.Context, s *automation.Session, item model.WorkItem, tr *automation.Tracker) (string, error) {
	f.mu.Lock()
	f.calls[item.ID]++
	outcome := f.outcomes[item.ID]
	f.mu.Unlock()

	var detail string
	err := tr.Do(automation.StepFilter, func() error {
		if outcome == nil {
			detail = "Sent to: payer@example.com"
			return nil
		}
		var err error
		detail, err = outcome()
		return err
	})
	return detail, err
}

func (f *scriptedFlow) Recover(ctx context.Context, s *automation.Session) {}

func (f *scriptedFlow) set(id string, outcome func() (string, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[id] = outcome
}

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []*model.Job
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, job *model.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
	return n.err
}

type harness struct {
	ledger   *database.MemoryLedger
	pool     *worker.WorkerPool
	opener   *scriptedOpener
	flow     *scriptedFlow
	notifier *recordingNotifier
	orch     *Orchestrator
}

func newHarness(t *testing.T, workers, chunks int) *harness {
	t.Helper()

	h := &harness{
		ledger:   database.NewMemoryLedger(),
		pool:     worker.NewWorkerPool(workers, 100),
		opener:   &scriptedOpener{},
		flow:     newScriptedFlow(model.JobTypeBoletos),
		notifier: &recordingNotifier{},
	}
	h.pool.Start()
	t.Cleanup(h.pool.Stop)

	h.orch = NewOrchestrator(h.ledger, h.pool, NewRunnerFactory(h.opener, h.flow), h.notifier, OrchestratorConfig{
		ChunkCount:   chunks,
		Owner:        "test-host",
		WriteBackoff: time.Millisecond,
	})
	return h
}

func (h *harness) submitAndWait(t *testing.T, ids ...string) *model.Job {
	t.Helper()

	id, err := h.orch.Submit(context.Background(), model.JobTypeBoletos, workItems(ids...))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return h.wait(t, id)
}

func (h *harness) wait(t *testing.T, id string) *model.Job {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.orch.Wait(ctx); err != nil {
		t.Fatalf("job %s did not finish: %v", id, err)
	}

	job, err := h.ledger.GetJob(context.Background(), id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	return job
}

func workItems(ids ...string) []model.WorkItem {
	items := make([]model.WorkItem, len(ids))
	for i, id := range ids {
		items[i] = model.WorkItem{ID: id}
	}
	return items
}

func resultsByID(job *model.Job) map[string]model.ItemResult {
	out := make(map[string]model.ItemResult, len(job.Results))
	for _, r := range job.Results {
		out[r.ItemID] = r
	}
	return out
}

func emptyEmail() (string, error) {
	return "", &automation.ValidationError{Reason: model.ReasonEmptyEmail, Message: "payer has no e-mail address on file"}
}

func TestOrchestrator_SuccessAndBlankEmail(t *testing.T) {
	h := newHarness(t, 10, 10)
	h.flow.set("102", emptyEmail)

	job := h.submitAndWait(t, "101", "102")

	if job.Status != model.JobComplete || job.EndedAt == nil {
		t.Fatalf("expected COMPLETE with end time, got %s", job.Status)
	}
	if job.CompletedCount != 2 || len(job.Results) != 2 {
		t.Fatalf("expected 2 completed results, got %d/%d", job.CompletedCount, len(job.Results))
	}

	results := resultsByID(job)
	if results["101"].Status != model.ItemSuccess {
		t.Errorf("101: expected SUCCESS, got %+v", results["101"])
	}
	if r := results["102"]; r.Status != model.ItemFailure || !strings.Contains(r.Detail, "EMPTY_EMAIL") {
		t.Errorf("102: expected EMPTY_EMAIL failure, got %+v", r)
	}
	if h.flow.calls["102"] != 1 {
		t.Errorf("blank e-mail must not be retried, got %d attempts", h.flow.calls["102"])
	}

	if len(h.notifier.jobs) != 1 || h.notifier.jobs[0].ID != job.ID {
		t.Errorf("expected one summary for the job, got %d", len(h.notifier.jobs))
	}
	if h.orch.IsActive(job.ID) {
		t.Errorf("finished job must not be reported active")
	}
}

func TestOrchestrator_CrashMidChunk(t *testing.T) {
	h := newHarness(t, 1, 1)
	h.flow.set("4", func() (string, error) {
		h.opener.kill()
		return "", fmt.Errorf("chrome exited: %w", automation.ErrSessionLost)
	})

	ids := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}
	job := h.submitAndWait(t, ids...)

	if job.CompletedCount != 10 || len(job.Results) != 10 {
		t.Fatalf("expected 10 results, got %d/%d", job.CompletedCount, len(job.Results))
	}

	results := resultsByID(job)
	for _, id := range ids[:3] {
		if results[id].Status != model.ItemSuccess {
			t.Errorf("item %s: expected real outcome, got %+v", id, results[id])
		}
	}
	for _, id := range ids[3:] {
		r := results[id]
		if r.Status != model.ItemFailure || r.Reason != model.ReasonCrash || !strings.Contains(r.Detail, "crash at step 'FILTER'") {
			t.Errorf("item %s: expected crash failure, got %+v", id, r)
		}
	}
}

func TestOrchestrator_EveryItemAccountedFor(t *testing.T) {
	h := newHarness(t, 3, 10)
	var ids []string
	for i := 1; i <= 47; i++ {
		id := fmt.Sprintf("%d", i)
		ids = append(ids, id)
		if i%5 == 0 {
			h.flow.set(id, func() (string, error) {
				return "", &automation.ElementTimeoutError{Locator: "//grid", Wait: "visible"}
			})
		}
	}
	// duplicates are legitimate input and must be kept
	ids = append(ids, "1", "1")

	job := h.submitAndWait(t, ids...)

	got := make([]string, 0, len(job.Results))
	for _, r := range job.Results {
		got = append(got, r.ItemID)
	}
	want := append([]string(nil), ids...)
	sort.Strings(got)
	sort.Strings(want)

	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("result ids do not match submitted ids\n got: %v\nwant: %v", got, want)
	}
	if job.CompletedCount != job.ItemCount {
		t.Errorf("completed %d of %d", job.CompletedCount, job.ItemCount)
	}
	if h.flow.calls["5"] != 2 {
		t.Errorf("timeouts should use the full attempt budget, got %d", h.flow.calls["5"])
	}
}

func TestOrchestrator_RetryFailures(t *testing.T) {
	h := newHarness(t, 10, 10)
	timeout := func() (string, error) {
		return "", &automation.ElementTimeoutError{Locator: "//grid", Wait: "visible"}
	}
	h.flow.set("1", timeout)
	h.flow.set("2", timeout)
	h.flow.set("3", emptyEmail)

	first := h.submitAndWait(t, "1", "2", "3", "4")

	h.flow.set("1", nil)
	h.flow.set("2", nil)

	retryID, err := h.orch.SubmitRetry(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	retry := h.wait(t, retryID)

	if retry.ItemCount != 2 {
		t.Fatalf("expected 2 items in retry job, got %d", retry.ItemCount)
	}
	if retry.RetryOf != first.ID {
		t.Errorf("expected retry_of %s, got %s", first.ID, retry.RetryOf)
	}
	results := resultsByID(retry)
	if _, ok := results["3"]; ok {
		t.Errorf("blank e-mail item must not be retried")
	}
	if results["1"].Status != model.ItemSuccess || results["2"].Status != model.ItemSuccess {
		t.Errorf("expected retried items to succeed, got %+v", retry.Results)
	}
}

func TestOrchestrator_RetryGuards(t *testing.T) {
	h := newHarness(t, 2, 2)
	ctx := context.Background()

	done := h.submitAndWait(t, "1")
	if _, err := h.orch.SubmitRetry(ctx, done.ID); !errors.Is(err, model.ErrNothingToRetry) {
		t.Errorf("expected ErrNothingToRetry, got %v", err)
	}

	if _, err := h.orch.SubmitRetry(ctx, "missing"); !errors.Is(err, model.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}

	running := &model.Job{Type: model.JobTypeBoletos, Status: model.JobRunning}
	id, _ := h.ledger.CreateJob(ctx, running)
	if _, err := h.orch.SubmitRetry(ctx, id); !errors.Is(err, model.ErrJobStillRunning) {
		t.Errorf("expected ErrJobStillRunning, got %v", err)
	}
}

func TestOrchestrator_SubmitValidation(t *testing.T) {
	h := newHarness(t, 1, 1)
	ctx := context.Background()

	if _, err := h.orch.Submit(ctx, model.JobTypeBoletos, nil); !errors.Is(err, model.ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}
	if _, err := h.orch.Submit(ctx, "PIX", workItems("1")); !errors.Is(err, model.ErrUnknownJobType) {
		t.Errorf("expected ErrUnknownJobType, got %v", err)
	}
}

func TestOrchestrator_UnsupportedFlowFailsItems(t *testing.T) {
	h := newHarness(t, 1, 1)

	// Only the boletos flow is registered
	id, err := h.orch.Submit(context.Background(), model.JobTypeRecursoProprio, workItems("1", "2"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	job := h.wait(t, id)

	if job.Status != model.JobComplete || job.CompletedCount != 2 {
		t.Fatalf("expected job to complete with 2 results, got %s/%d", job.Status, job.CompletedCount)
	}
	for _, r := range job.Results {
		if r.Reason != model.ReasonCrash {
			t.Errorf("expected crash failure, got %+v", r)
		}
	}
}

func TestOrchestrator_NotifierFailureDoesNotAffectJob(t *testing.T) {
	h := newHarness(t, 1, 1)
	h.notifier.err = errors.New("smtp down")

	job := h.submitAndWait(t, "1")

	if job.Status != model.JobComplete {
		t.Errorf("expected COMPLETE, got %s", job.Status)
	}
}

type panickyRunner struct{ after int }

func (r panickyRunner) Run(ctx context.Context, items []model.WorkItem, onProgress automation.ProgressFunc) []model.ItemResult {
	for i, item := range items {
		if i == r.after {
			panic("runner bug")
		}
		onProgress(model.ItemResult{ItemID: item.ID, Status: model.ItemSuccess})
	}
	return nil
}

func TestOrchestrator_RunnerPanicStillCompletesJob(t *testing.T) {
	ledger := database.NewMemoryLedger()
	pool := worker.NewWorkerPool(2, 10)
	pool.Start()
	defer pool.Stop()

	factory := func(model.JobType, *slog.Logger) (BatchRunner, error) {
		return panickyRunner{after: 1}, nil
	}
	orch := NewOrchestrator(ledger, pool, factory, nil, OrchestratorConfig{ChunkCount: 2})

	id, err := orch.Submit(context.Background(), model.JobTypeBoletos, workItems("1", "2", "3", "4"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := orch.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	job, _ := ledger.GetJob(context.Background(), id)
	if job.Status != model.JobComplete || job.CompletedCount != 4 {
		t.Fatalf("expected 4 results on a complete job, got %s/%d", job.Status, job.CompletedCount)
	}
	results := resultsByID(job)
	for _, id := range []string{"2", "4"} {
		if results[id].Reason != model.ReasonCrash {
			t.Errorf("item %s: expected crash failure, got %+v", id, results[id])
		}
	}
}

// unackedLedger commits writes and then reports a timeout, as a database does
// when the acknowledgement is lost on the way back
type unackedLedger struct {
	*database.MemoryLedger

	mu              sync.Mutex
	lostAppends     int
	lostCompletions int
}

func (l *unackedLedger) AppendResult(ctx context.Context, jobID string, res model.ItemResult) error {
	if err := l.MemoryLedger.AppendResult(ctx, jobID, res); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lostAppends > 0 {
		l.lostAppends--
		return context.DeadlineExceeded
	}
	return nil
}

func (l *unackedLedger) MarkComplete(ctx context.Context, jobID string, endedAt time.Time) error {
	if err := l.MemoryLedger.MarkComplete(ctx, jobID, endedAt); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lostCompletions > 0 {
		l.lostCompletions--
		return context.DeadlineExceeded
	}
	return nil
}

func TestOrchestrator_RetriedWritesAreAppliedOnce(t *testing.T) {
	h := newHarness(t, 1, 1)
	ledger := &unackedLedger{MemoryLedger: h.ledger, lostAppends: 2, lostCompletions: 1}
	h.orch = NewOrchestrator(ledger, h.pool, NewRunnerFactory(h.opener, h.flow), h.notifier, OrchestratorConfig{
		ChunkCount:   1,
		WriteBackoff: time.Millisecond,
	})

	job := h.submitAndWait(t, "1", "2")

	if job.CompletedCount != job.ItemCount || len(job.Results) != 2 {
		t.Fatalf("expected 2 results for 2 items, got completed=%d results=%d", job.CompletedCount, len(job.Results))
	}
	if job.Status != model.JobComplete {
		t.Errorf("expected COMPLETE, got %s", job.Status)
	}
	if len(h.notifier.jobs) != 1 {
		t.Errorf("expected the summary after a lost completion ack, got %d", len(h.notifier.jobs))
	}
}

func TestOrchestrator_JobClosedByASweeperMidRun(t *testing.T) {
	h := newHarness(t, 1, 1)
	ctx := context.Background()

	// While item 2 runs, another instance decides the job is abandoned
	h.flow.set("2", func() (string, error) {
		jobs, err := h.ledger.ListRunning(ctx)
		if err != nil || len(jobs) != 1 {
			return "", fmt.Errorf("expected one running job, got %d: %v", len(jobs), err)
		}
		job := jobs[0]
		missing := model.MissingItems(job.Items, job.Results)
		crash := make([]model.ItemResult, len(missing))
		for i, item := range missing {
			crash[i] = model.NewFailure(item, model.ReasonCrash, "crash: interrupted before completion")
		}
		if err := h.ledger.CloseAbandoned(ctx, job.ID, "pod-b", job.CompletedCount, crash, time.Now()); err != nil {
			return "", err
		}
		return "Sent to: payer@example.com", nil
	})

	job := h.submitAndWait(t, "1", "2")

	if job.CompletedCount != 2 || len(job.Results) != 2 {
		t.Fatalf("expected 2 results, got %d/%d", job.CompletedCount, len(job.Results))
	}
	if r := resultsByID(job)["2"]; r.Reason != model.ReasonCrash {
		t.Errorf("expected the reaped result to stand, got %+v", r)
	}
	if len(h.notifier.jobs) != 0 {
		t.Errorf("expected no summary for a reaped job, got %d", len(h.notifier.jobs))
	}
}

func TestOrchestrator_HeartbeatWhileRunning(t *testing.T) {
	h := newHarness(t, 1, 1)
	h.orch = NewOrchestrator(h.ledger, h.pool, NewRunnerFactory(h.opener, h.flow), nil, OrchestratorConfig{
		ChunkCount:        1,
		HeartbeatInterval: 5 * time.Millisecond,
	})

	var seen time.Time
	var started time.Time
	h.flow.set("1", func() (string, error) {
		time.Sleep(60 * time.Millisecond)
		jobs, _ := h.ledger.ListRunning(context.Background())
		if len(jobs) == 1 {
			seen, started = jobs[0].HeartbeatAt, jobs[0].StartedAt
		}
		return "done", nil
	})

	h.submitAndWait(t, "1")

	if !seen.After(started) {
		t.Errorf("expected heartbeat after start while the item ran, got start=%v heartbeat=%v", started, seen)
	}
}
