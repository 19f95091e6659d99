package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"chrome",
}

// ChromeLauncher starts a Chrome instance tuned for unattended operation
type ChromeLauncher struct {
	Headless bool
	ExecPath string
}

// Launch starts Chrome and opens one tab
func (l ChromeLauncher) Launch(ctx context.Context) (Page, func(), error) {
	execPath, err := l.resolveExecPath()
	if err != nil {
		return nil, nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.Flag("headless", l.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("start-maximized", true),
		chromedp.WindowSize(1920, 1080),
	)

	// The browser must outlive the request that triggered the job, so it
	// hangs off a fresh context and is torn down only by release.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			slog.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
		}),
	)

	release := func() {
		cancelTab()
		cancelAlloc()
	}

	// An empty Run starts the browser process
	if err := chromedp.Run(tabCtx); err != nil {
		release()
		return nil, nil, fmt.Errorf("start chrome: %w", err)
	}

	slog.Debug("Chrome launched", "exec_path", execPath, "headless", l.Headless)

	return &chromePage{ctx: tabCtx}, release, nil
}

func (l ChromeLauncher) resolveExecPath() (string, error) {
	if l.ExecPath != "" {
		if _, err := os.Stat(l.ExecPath); err != nil {
			return "", fmt.Errorf("chrome binary not found at %s: %w", l.ExecPath, err)
		}
		return l.ExecPath, nil
	}
	for _, name := range chromeCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", errors.New("no chrome binary found in PATH")
}

// chromePage implements Page over one chromedp tab
type chromePage struct {
	ctx context.Context
}

// scoped derives a chromedp-capable context from the tab that also honours
// the caller's deadline and cancellation
func (p *chromePage) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		rctx   context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		rctx, cancel = context.WithDeadline(p.ctx, deadline)
	} else {
		rctx, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return rctx, func() {
		stop()
		cancel()
	}
}

func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.ctx.Err() != nil {
		return ErrSessionLost
	}
	rctx, cancel := p.scoped(ctx)
	defer cancel()

	err := chromedp.Run(rctx, actions...)
	if err != nil && p.ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	if err != nil && errors.Is(rctx.Err(), context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return err
}

func (p *chromePage) Err() error {
	if p.ctx.Err() != nil {
		return ErrSessionLost
	}
	return nil
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) WaitVisible(ctx context.Context, query string) error {
	return p.run(ctx, chromedp.WaitVisible(query, chromedp.BySearch))
}

func (p *chromePage) WaitEnabled(ctx context.Context, query string) error {
	return p.run(ctx, chromedp.WaitEnabled(query, chromedp.BySearch))
}

func (p *chromePage) WaitNotPresent(ctx context.Context, query string) error {
	return p.run(ctx, chromedp.WaitNotPresent(query, chromedp.BySearch))
}

func (p *chromePage) Count(ctx context.Context, query string) (int, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(query, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (p *chromePage) first(ctx context.Context, query string) (*cdp.Node, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(query, &nodes, chromedp.BySearch)); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no element matches %s", query)
	}
	return nodes[0], nil
}

// callOn runs a JS function with `this` bound to the first node matching query
func (p *chromePage) callOn(ctx context.Context, query, fn string) error {
	node, err := p.first(ctx, query)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(node.NodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve node: %w", err)
		}
		_, exception, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithAwaitPromise(false).
			Do(ctx)
		if err != nil {
			return err
		}
		if exception != nil {
			return fmt.Errorf("script exception: %s", exception.Text)
		}
		return nil
	}))
}

// JSClick dispatches the click from script so overlays cannot intercept it
func (p *chromePage) JSClick(ctx context.Context, query string) error {
	return p.callOn(ctx, query, `function() { this.click(); }`)
}

func (p *chromePage) Hover(ctx context.Context, query string) error {
	return p.callOn(ctx, query, `function() {
		for (const type of ['mouseover', 'mouseenter', 'mousemove']) {
			this.dispatchEvent(new MouseEvent(type, {bubbles: true, cancelable: true, view: window}));
		}
	}`)
}

func (p *chromePage) Fill(ctx context.Context, query, text string) error {
	return p.run(ctx,
		chromedp.Clear(query, chromedp.BySearch),
		chromedp.SendKeys(query, text, chromedp.BySearch),
	)
}

func (p *chromePage) Value(ctx context.Context, query string) (string, error) {
	var value string
	if err := p.run(ctx, chromedp.Value(query, &value, chromedp.BySearch)); err != nil {
		return "", err
	}
	return value, nil
}

func (p *chromePage) ContextClick(ctx context.Context, query string) error {
	node, err := p.first(ctx, query)
	if err != nil {
		return err
	}
	return p.run(ctx,
		chromedp.ScrollIntoView(query, chromedp.BySearch),
		chromedp.MouseClickNode(node, chromedp.ButtonType(input.Right)),
	)
}

func (p *chromePage) PressKey(ctx context.Context, key Key, ctrl bool) error {
	var k string
	switch key {
	case KeyEscape:
		k = kb.Escape
	case KeyF10:
		k = kb.F10
	default:
		return fmt.Errorf("unsupported key %q", key)
	}

	var opts []chromedp.KeyOption
	if ctrl {
		opts = append(opts, chromedp.KeyModifiers(input.ModifierCtrl))
	}
	return p.run(ctx, chromedp.KeyEvent(k, opts...))
}

func (p *chromePage) Reload(ctx context.Context) error {
	return p.run(ctx, chromedp.Reload())
}
