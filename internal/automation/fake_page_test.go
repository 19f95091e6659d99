package automation

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// fakePage is a scripted Page. Queries listed in visible match immediately;
// everything else never appears, so waits run into their deadline.
type fakePage struct {
	mu sync.Mutex

	visible map[string]bool
	values  map[string]string
	dead    bool

	// hang makes navigation block until its context ends, like a page whose
	// load event never fires
	hang bool

	clicks  []string
	fills   map[string]string
	keys    []string
	hovered []string
	menus   []string
	reloads int
	navTo   []string
}

func newFakePage(visible ...string) *fakePage {
	p := &fakePage{
		visible: make(map[string]bool),
		values:  make(map[string]string),
		fills:   make(map[string]string),
	}
	for _, q := range visible {
		p.visible[q] = true
	}
	return p
}

func (p *fakePage) isVisible(q string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible[q]
}

func (p *fakePage) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead {
		return ErrSessionLost
	}
	return nil
}

func (p *fakePage) wait(ctx context.Context, ok bool) error {
	if err := p.Err(); err != nil {
		return err
	}
	if ok {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakePage) hangs(ctx context.Context) error {
	p.mu.Lock()
	hang := p.hang
	p.mu.Unlock()
	if !hang {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.navTo = append(p.navTo, url)
	p.mu.Unlock()
	return p.hangs(ctx)
}

func (p *fakePage) WaitVisible(ctx context.Context, q string) error {
	return p.wait(ctx, p.isVisible(q))
}

func (p *fakePage) WaitEnabled(ctx context.Context, q string) error {
	return p.wait(ctx, p.isVisible(q))
}

func (p *fakePage) WaitNotPresent(ctx context.Context, q string) error {
	return p.wait(ctx, !p.isVisible(q))
}

func (p *fakePage) Count(ctx context.Context, q string) (int, error) {
	if err := p.Err(); err != nil {
		return 0, err
	}
	if p.isVisible(q) {
		return 1, nil
	}
	return 0, nil
}

func (p *fakePage) JSClick(ctx context.Context, q string) error {
	if err := p.Err(); err != nil {
		return err
	}
	if !p.isVisible(q) {
		return fmt.Errorf("no element matches %s", q)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, q)
	return nil
}

func (p *fakePage) Fill(ctx context.Context, q, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fills[q] = text
	return nil
}

func (p *fakePage) Value(ctx context.Context, q string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[q], nil
}

func (p *fakePage) ContextClick(ctx context.Context, q string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.menus = append(p.menus, q)
	return nil
}

func (p *fakePage) Hover(ctx context.Context, q string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hovered = append(p.hovered, q)
	return nil
}

func (p *fakePage) PressKey(ctx context.Context, key Key, ctrl bool) error {
	if err := p.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	name := string(key)
	if ctrl {
		name = "Ctrl+" + name
	}
	p.keys = append(p.keys, name)
	return nil
}

func (p *fakePage) Reload(ctx context.Context) error {
	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()
	return p.hangs(ctx)
}

func (p *fakePage) clicked(q string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.clicks {
		if c == q {
			return true
		}
	}
	return false
}

// newTestSession wraps page in a session with zero waits
func newTestSession(page Page) *Session {
	return &Session{
		ID:       "test-session",
		page:     page,
		release:  func() {},
		locators: DefaultLocators(),
		timings:  Timings{},
	}
}

type fakeLauncher struct {
	page     *fakePage
	err      error
	released int
}

func (l *fakeLauncher) Launch(ctx context.Context) (Page, func(), error) {
	if l.err != nil {
		return nil, nil, l.err
	}
	return l.page, func() { l.released++ }, nil
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
