package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dandantas/tasyrunner/internal/model"
)

// ProgressFunc receives every terminal item result, in processing order
type ProgressFunc func(model.ItemResult)

// SessionOpener opens signed-in sessions. *Driver implements it.
type SessionOpener interface {
	Open(ctx context.Context) (*Session, error)
}

// Runner drives one chunk of items through a flow on a single session
type Runner struct {
	opener SessionOpener
	flow   Flow
	logger *slog.Logger
}

// NewRunner creates a runner. A nil logger falls back to slog.Default.
func NewRunner(opener SessionOpener, flow Flow, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		opener: opener,
		flow:   flow,
		logger: logger.With("flow", flow.Type()),
	}
}

// Run processes items in order and returns one result per item. It never
// fails: anything that kills the session is turned into CRASH results for the
// items that were not reached.
func (r *Runner) Run(ctx context.Context, items []model.WorkItem, onProgress ProgressFunc) []model.ItemResult {
	results := make([]model.ItemResult, 0, len(items))
	if len(items) == 0 {
		return results
	}

	tracker := NewTracker()
	var session *Session
	defer func() {
		if session != nil {
			session.Close()
		}
	}()

	deliver := func(res model.ItemResult) {
		results = append(results, res)
		r.report(onProgress, res)
	}

	start := time.Now()
	err := r.process(ctx, items, tracker, &session, deliver)
	if err != nil {
		crash := &CrashError{Step: tracker.Current(), Err: err}
		remaining := items[len(results):]

		r.logger.Error("Runner crashed, failing unprocessed items",
			"step", tracker.Current(),
			"processed", len(results),
			"remaining", len(remaining),
			"error", err,
		)

		for _, item := range remaining {
			deliver(model.NewFailure(item, model.ReasonCrash, crash.Error()))
		}
	}

	r.logger.Info("Runner finished",
		"items", len(items),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results
}

func (r *Runner) process(ctx context.Context, items []model.WorkItem, tr *Tracker, sessionOut **Session, deliver func(model.ItemResult)) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	tr.Enter(StepOpenSession)
	s, err := r.opener.Open(ctx)
	if err != nil {
		return err
	}
	*sessionOut = s

	if err := r.flow.Setup(ctx, s, tr); err != nil {
		return err
	}

	for _, item := range items {
		res, err := r.processItem(ctx, s, item, tr)
		if err != nil {
			return err
		}
		deliver(res)
	}
	return nil
}

// processItem runs the attempt loop for one item. A returned error means the
// session itself is unusable.
func (r *Runner) processItem(ctx context.Context, s *Session, item model.WorkItem, tr *Tracker) (model.ItemResult, error) {
	res := model.ItemResult{
		ItemID: item.ID,
		Status: model.ItemPending,
		Extra:  item.Metadata,
	}

	var lastErr error
	budget := r.flow.Attempts()
	for attempt := 1; attempt <= budget; attempt++ {
		res.Attempts = attempt

		detail, err := r.flow.Process(ctx, s, item, tr)
		if err == nil {
			res.Status = model.ItemSuccess
			res.Detail = detail
			res.FinishedAt = time.Now().UTC()
			r.logger.Debug("Item succeeded", "item_id", item.ID, "attempt", attempt)
			return res, nil
		}

		if errors.Is(err, ErrSessionLost) || s.Err() != nil {
			return res, err
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		lastErr = err
		r.logger.Warn("Item attempt failed",
			"item_id", item.ID,
			"attempt", attempt,
			"max_attempts", budget,
			"step", tr.Current(),
			"error", firstLine(err),
		)

		r.flow.Recover(ctx, s)

		if IsNonRetryable(err) {
			break
		}
	}

	res.Status = model.ItemFailure
	res.Reason = ReasonFor(lastErr)
	res.Detail = failureDetail(lastErr, tr.Current())
	res.FinishedAt = time.Now().UTC()
	return res, nil
}

func failureDetail(err error, step Step) string {
	var serr *StepError
	if errors.As(err, &serr) {
		return serr.Error()
	}
	return (&StepError{Step: step, Err: err}).Error()
}

// report hands res to the caller. A panicking callback is logged and
// otherwise ignored.
func (r *Runner) report(onProgress ProgressFunc, res model.ItemResult) {
	if onProgress == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Progress callback panicked", "item_id", res.ItemID, "panic", p)
		}
	}()
	onProgress(res)
}
