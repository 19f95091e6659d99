package automation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Credentials used to sign into the ERP
type Credentials struct {
	URL      string
	Username string
	Password string
}

// Driver opens authenticated sessions
type Driver struct {
	launcher Launcher
	creds    Credentials
	locators Locators
	timings  Timings
}

// NewDriver creates a new session driver
func NewDriver(launcher Launcher, creds Credentials, locators Locators, timings Timings) *Driver {
	return &Driver{
		launcher: launcher,
		creds:    creds,
		locators: locators,
		timings:  timings,
	}
}

// Open launches a browser and signs in. The returned session is ready on the
// ERP home screen.
func (d *Driver) Open(ctx context.Context) (*Session, error) {
	page, release, err := d.launcher.Launch(ctx)
	if err != nil {
		return nil, &SessionInitError{Phase: "launch", Err: err}
	}

	s := NewSession(page, release, d.locators, d.timings)

	if err := s.login(ctx, d.creds); err != nil {
		s.Close()
		return nil, &SessionInitError{Phase: "login", Err: err}
	}

	slog.Info("ERP session opened", "session_id", s.ID)
	return s, nil
}

// Session is one signed-in browser. It is owned by a single runner and is not
// safe for concurrent use.
type Session struct {
	ID string

	page     Page
	release  func()
	locators Locators
	timings  Timings

	// functionOpen tracks whether the current screen still shows the
	// function opened by OpenFunction
	functionOpen string

	closeOnce sync.Once
}

// Close releases the browser. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.release != nil {
			s.release()
		}
		slog.Debug("ERP session closed", "session_id", s.ID)
	})
}

// Err is non-nil once the browser behind the session is gone
func (s *Session) Err() error {
	return s.page.Err()
}

// Locators returns the selector catalogue the session was opened with
func (s *Session) Locators() Locators {
	return s.locators
}

// Timings returns the waits the session was opened with
func (s *Session) Timings() Timings {
	return s.timings
}

func (s *Session) login(ctx context.Context, creds Credentials) error {
	err := s.act(ctx, s.timings.LoginWait, creds.URL, "loaded", func(ctx context.Context) error {
		return s.page.Navigate(ctx, creds.URL)
	})
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", creds.URL, err)
	}
	if err := s.Fill(ctx, s.locators.LoginUser, creds.Username, s.timings.LoginWait); err != nil {
		return err
	}
	if err := s.Fill(ctx, s.locators.LoginPassword, creds.Password, s.timings.DefaultWait); err != nil {
		return err
	}
	if err := s.Click(ctx, s.locators.LoginSubmit, s.timings.DefaultWait); err != nil {
		return err
	}

	// Some accounts get a notice dialog right after signing in
	if s.DismissOptional(ctx, s.locators.DialogOK, s.timings.PopupProbe) {
		slog.Debug("Post-login dialog dismissed", "session_id", s.ID)
	}

	if err := s.AwaitVisible(ctx, s.locators.GlobalSearch, s.timings.LoginWait); err != nil {
		return fmt.Errorf("home screen did not load: %w", err)
	}
	return nil
}

// OpenFunction searches an ERP function by name from the global search box
// and waits for ready to show up
func (s *Session) OpenFunction(ctx context.Context, name, entry, ready string) error {
	if s.functionOpen == name {
		return nil
	}
	_ = s.WaitOverlayClear(ctx, s.timings.OverlayWait)

	if err := s.Fill(ctx, s.locators.GlobalSearch, name, s.timings.DefaultWait); err != nil {
		return err
	}
	if err := s.Click(ctx, entry, s.timings.DefaultWait); err != nil {
		return err
	}
	s.pause(ctx, s.timings.CommandSettle)

	if err := s.AwaitVisible(ctx, ready, s.timings.GridWait); err != nil {
		return err
	}
	s.functionOpen = name
	return nil
}

// Reload refreshes the current page. The open function is forgotten.
func (s *Session) Reload(ctx context.Context) error {
	s.functionOpen = ""
	return s.act(ctx, s.timings.NavigateWait, "page", "reloaded", s.page.Reload)
}

// NewSession wraps page in a session. release runs once on Close.
func NewSession(page Page, release func(), locators Locators, timings Timings) *Session {
	return &Session{
		ID:       uuid.New().String(),
		page:     page,
		release:  release,
		locators: locators,
		timings:  timings,
	}
}
