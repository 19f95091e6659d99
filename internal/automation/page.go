package automation

import "context"

// Key is a keyboard key sent to the page
type Key string

const (
	KeyEscape Key = "Escape"
	KeyF10    Key = "F10"
)

// Page is the set of low-level browser operations the flows are built on.
// Waits block until ctx expires; callers bound them with a deadline.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, query string) error
	WaitEnabled(ctx context.Context, query string) error
	WaitNotPresent(ctx context.Context, query string) error
	Count(ctx context.Context, query string) (int, error)
	JSClick(ctx context.Context, query string) error
	Fill(ctx context.Context, query, text string) error
	Value(ctx context.Context, query string) (string, error)
	ContextClick(ctx context.Context, query string) error
	Hover(ctx context.Context, query string) error
	PressKey(ctx context.Context, key Key, ctrl bool) error
	Reload(ctx context.Context) error

	// Err is non-nil once the underlying browser is gone
	Err() error
}

// Launcher starts a browser and returns its page plus a release func that
// tears everything down
type Launcher interface {
	Launch(ctx context.Context) (Page, func(), error)
}
