package automation

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// translate turns a page wait failure into the error the flows reason about
func translate(err error, query, wait string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSessionLost) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ElementTimeoutError{Locator: query, Wait: wait}
	}
	return err
}

func (s *Session) bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		// Zero timings still get a single chance to match
		timeout = time.Millisecond
	}
	return context.WithTimeout(ctx, timeout)
}

// act runs one page operation under timeout. Navigation and script calls wait
// on the browser too, and a page that stops responding must fail the step.
func (s *Session) act(ctx context.Context, timeout time.Duration, query, verb string, op func(context.Context) error) error {
	actx, cancel := s.bounded(ctx, timeout)
	defer cancel()
	return translate(op(actx), query, verb)
}

func (s *Session) jsClick(ctx context.Context, query string) error {
	return s.act(ctx, s.timings.DefaultWait, query, "clicked", func(ctx context.Context) error {
		return s.page.JSClick(ctx, query)
	})
}

func (s *Session) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// WaitOverlayClear waits for the loading mask to go away. The caller decides
// whether a lingering mask matters.
func (s *Session) WaitOverlayClear(ctx context.Context, timeout time.Duration) error {
	wctx, cancel := s.bounded(ctx, timeout)
	defer cancel()

	err := translate(s.page.WaitNotPresent(wctx, s.locators.LoadingMask), s.locators.LoadingMask, "absent")
	if err == nil {
		s.pause(ctx, s.timings.ClickSettle)
	}
	return err
}

// AwaitVisible waits until query is visible
func (s *Session) AwaitVisible(ctx context.Context, query string, timeout time.Duration) error {
	wctx, cancel := s.bounded(ctx, timeout)
	defer cancel()
	return translate(s.page.WaitVisible(wctx, query), query, "visible")
}

// AwaitAbsent waits until nothing matches query
func (s *Session) AwaitAbsent(ctx context.Context, query string, timeout time.Duration) error {
	wctx, cancel := s.bounded(ctx, timeout)
	defer cancel()
	return translate(s.page.WaitNotPresent(wctx, query), query, "absent")
}

func (s *Session) awaitClickable(ctx context.Context, query string, timeout time.Duration) error {
	wctx, cancel := s.bounded(ctx, timeout)
	defer cancel()
	if err := s.page.WaitVisible(wctx, query); err != nil {
		return translate(err, query, "clickable")
	}
	return translate(s.page.WaitEnabled(wctx, query), query, "clickable")
}

// Click waits out the loading mask, waits for query to become clickable and
// clicks it from script
func (s *Session) Click(ctx context.Context, query string, timeout time.Duration) error {
	if err := s.WaitOverlayClear(ctx, s.timings.OverlayWait); err != nil {
		if errors.Is(err, ErrSessionLost) {
			return err
		}
		slog.Debug("Loading mask still present, clicking anyway", "session_id", s.ID, "locator", query)
	}
	if err := s.awaitClickable(ctx, query, timeout); err != nil {
		return err
	}
	if err := s.jsClick(ctx, query); err != nil {
		return err
	}
	s.pause(ctx, s.timings.ClickSettle)
	return nil
}

// ClickFirst clicks the first of the alternatives that becomes visible within
// probe. The last alternative gets the full timeout.
func (s *Session) ClickFirst(ctx context.Context, probe, timeout time.Duration, queries ...string) error {
	for i, query := range queries {
		wait := probe
		if i == len(queries)-1 {
			wait = timeout
		}
		err := s.AwaitVisible(ctx, query, wait)
		if err == nil {
			if err := s.jsClick(ctx, query); err != nil {
				return err
			}
			s.pause(ctx, s.timings.ClickSettle)
			return nil
		}
		if errors.Is(err, ErrSessionLost) || i == len(queries)-1 {
			return err
		}
	}
	return errors.New("no alternatives given")
}

// Fill waits for query to become clickable and replaces its content
func (s *Session) Fill(ctx context.Context, query, text string, timeout time.Duration) error {
	if err := s.awaitClickable(ctx, query, timeout); err != nil {
		return err
	}
	return s.act(ctx, s.timings.DefaultWait, query, "filled", func(ctx context.Context) error {
		return s.page.Fill(ctx, query, text)
	})
}

// Value reads the current value of an input once it is visible
func (s *Session) Value(ctx context.Context, query string, timeout time.Duration) (string, error) {
	if err := s.AwaitVisible(ctx, query, timeout); err != nil {
		return "", err
	}
	var v string
	err := s.act(ctx, s.timings.DefaultWait, query, "read", func(ctx context.Context) error {
		var err error
		v, err = s.page.Value(ctx, query)
		return err
	})
	return v, err
}

// ContextClick opens the context menu on the first match of query
func (s *Session) ContextClick(ctx context.Context, query string, timeout time.Duration) error {
	if err := s.AwaitVisible(ctx, query, timeout); err != nil {
		return err
	}
	return s.act(ctx, s.timings.DefaultWait, query, "right-clicked", func(ctx context.Context) error {
		return s.page.ContextClick(ctx, query)
	})
}

// Hover moves the pointer over query once it is visible
func (s *Session) Hover(ctx context.Context, query string, timeout time.Duration) error {
	if err := s.AwaitVisible(ctx, query, timeout); err != nil {
		return err
	}
	return s.act(ctx, s.timings.DefaultWait, query, "hovered", func(ctx context.Context) error {
		return s.page.Hover(ctx, query)
	})
}

// DismissOptional clicks query if it shows up within probe and reports
// whether it did. Absence is not an error.
func (s *Session) DismissOptional(ctx context.Context, query string, probe time.Duration) bool {
	if query == "" {
		return false
	}
	if err := s.AwaitVisible(ctx, query, probe); err != nil {
		return false
	}
	if err := s.jsClick(ctx, query); err != nil {
		return false
	}
	s.pause(ctx, s.timings.ClickSettle)
	return true
}

// Count returns how many elements match query right now, without waiting
// for any to appear
func (s *Session) Count(ctx context.Context, query string) (int, error) {
	var n int
	err := s.act(ctx, s.timings.DefaultWait, query, "counted", func(ctx context.Context) error {
		var err error
		n, err = s.page.Count(ctx, query)
		return err
	})
	return n, err
}

// Escape sends the Escape key
func (s *Session) Escape(ctx context.Context) error {
	return s.act(ctx, s.timings.DefaultWait, "keyboard", "escaped", func(ctx context.Context) error {
		return s.page.PressKey(ctx, KeyEscape, false)
	})
}

// SendCtrlKey sends key with Ctrl held down
func (s *Session) SendCtrlKey(ctx context.Context, key Key) error {
	return s.act(ctx, s.timings.DefaultWait, "keyboard", "pressed", func(ctx context.Context) error {
		return s.page.PressKey(ctx, key, true)
	})
}

// Filter describes a grid filter panel
type Filter struct {
	Input  string
	Toggle string
	Button string
	Alert  string
}

// ApplyFilter types value into a filter panel and runs it, opening the panel
// first when it is collapsed
func (s *Session) ApplyFilter(ctx context.Context, f Filter, value string) error {
	_ = s.WaitOverlayClear(ctx, s.timings.OverlayWait)
	if err := s.Escape(ctx); errors.Is(err, ErrSessionLost) {
		return err
	}

	n, err := s.Count(ctx, f.Input)
	if errors.Is(err, ErrSessionLost) {
		return err
	}
	if n == 0 {
		if err := s.jsClick(ctx, f.Toggle); errors.Is(err, ErrSessionLost) {
			return err
		}
		s.pause(ctx, s.timings.ClickSettle)
	}

	if err := s.Fill(ctx, f.Input, value, s.timings.DefaultWait); err != nil {
		return err
	}
	if err := s.Click(ctx, f.Button, s.timings.DefaultWait); err != nil {
		return err
	}
	s.DismissOptional(ctx, f.Alert, s.timings.AlertProbe)
	return nil
}
