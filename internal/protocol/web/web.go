// Package web implements the browser adapter. A real CDP/browser-automation
// transport (xk6-browser/chromedp-style) is a heavyweight dependency for a
// secondarily-supported protocol, so this package instead defines the
// adapter's public surface against a small Page interface a real driver can
// implement, with an in-process fake backing it by default so the engine
// and its tests can exercise the full command set end-to-end without a real
// browser.
package web

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/protocol"
)

// Page is one VU's single browser page/context — single-writer, owned by
// that VU.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Select(ctx context.Context, selector, value string) error
	Press(ctx context.Context, selector, key string) error
	Hover(ctx context.Context, selector string) error
	Check(ctx context.Context, selector string) error
	Uncheck(ctx context.Context, selector string) error
	Exists(ctx context.Context, selector string) (bool, error)
	Visible(ctx context.Context, selector string) (bool, error)
	Text(ctx context.Context, selector string) (string, error)
	Value(ctx context.Context, selector string) (string, error)
	Screenshot(ctx context.Context, name string) error
	Close() error
}

// PageFactory lazily launches a browser context + page for one VU.
type PageFactory func(vuID int64) (Page, error)

const defaultCommandTimeout = 30 * time.Second

// Adapter owns one Page per VU, scoped-acquired and released on VU
// teardown (DESIGN NOTES "Browser per-VU resource ownership").
type Adapter struct {
	Factory PageFactory

	mu    sync.Mutex
	pages map[int64]Page
}

// New builds a browser adapter. A nil factory defaults to NewFakePage,
// which performs no real navigation but satisfies the full Page contract —
// useful for dry runs and tests.
func New(factory PageFactory) *Adapter {
	if factory == nil {
		factory = func(vuID int64) (Page, error) { return NewFakePage(), nil }
	}
	return &Adapter{Factory: factory, pages: make(map[int64]Page)}
}

func (a *Adapter) pageFor(vuID int64) (Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.pages[vuID]; ok {
		return p, nil
	}
	p, err := a.Factory(vuID)
	if err != nil {
		return nil, err
	}
	a.pages[vuID] = p
	return p, nil
}

// Cleanup releases the VU's page, guaranteeing release on VU teardown and
// on forced cancellation (DESIGN NOTES).
func (a *Adapter) Cleanup(vuID int64) error {
	a.mu.Lock()
	p, ok := a.pages[vuID]
	delete(a.pages, vuID)
	a.mu.Unlock()
	if !ok {
		return nil
	}
	return p.Close()
}

func (a *Adapter) Execute(ctx context.Context, in protocol.Input) (protocol.Output, error) {
	step := in.Step.Web
	if step == nil {
		return protocol.Output{}, fmt.Errorf("web adapter: step has no web payload")
	}
	result := protocol.NewResult(in, uuid.New().String())
	result.Action = "web"

	page, err := a.pageFor(in.VUID)
	if err != nil {
		result.Success = false
		result.ErrorKind = "protocol_error"
		result.ErrorMessage = err.Error()
		return protocol.Output{Result: result}, nil
	}

	start := time.Now()
	result.Success = true
	for _, cmd := range step.Commands {
		timeout := defaultCommandTimeout
		if cmd.Timeout.Duration > 0 {
			timeout = cmd.Timeout.Duration
		}
		cmdCtx, cancel := context.WithTimeout(ctx, timeout)
		err := runCommand(cmdCtx, page, cmd)
		cancel()
		if err != nil {
			result.Success = false
			result.ErrorKind = "check_failed"
			result.ErrorMessage = err.Error()
			break
		}
	}
	result.DurationMS = float64(time.Since(start).Microseconds()) / 1000.0
	return protocol.Output{Result: result}, nil
}

// runCommand dispatches one browser command. Verification mismatches
// return a descriptive error including the selector and observed/expected
// text.
func runCommand(ctx context.Context, page Page, cmd config.WebCommand) error {
	switch cmd.Action {
	case "navigate":
		return page.Navigate(ctx, cmd.Value)
	case "click":
		return page.Click(ctx, cmd.Selector)
	case "fill":
		return page.Fill(ctx, cmd.Selector, cmd.Value)
	case "select":
		return page.Select(ctx, cmd.Selector, cmd.Value)
	case "press":
		return page.Press(ctx, cmd.Selector, cmd.Value)
	case "hover":
		return page.Hover(ctx, cmd.Selector)
	case "check":
		return page.Check(ctx, cmd.Selector)
	case "uncheck":
		return page.Uncheck(ctx, cmd.Selector)
	case "screenshot":
		return page.Screenshot(ctx, cmd.Value)
	case "exists":
		ok, err := page.Exists(ctx, cmd.Selector)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("exists: selector %q not found", cmd.Selector)
		}
		return nil
	case "not-exists":
		ok, err := page.Exists(ctx, cmd.Selector)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("not-exists: selector %q unexpectedly found", cmd.Selector)
		}
		return nil
	case "visible":
		ok, err := page.Visible(ctx, cmd.Selector)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("visible: selector %q is not visible", cmd.Selector)
		}
		return nil
	case "text":
		actual, err := page.Text(ctx, cmd.Selector)
		if err != nil {
			return err
		}
		if actual != cmd.Value {
			return fmt.Errorf("text: selector %q expected %q, got %q", cmd.Selector, cmd.Value, actual)
		}
		return nil
	case "contains":
		actual, err := page.Text(ctx, cmd.Selector)
		if err != nil {
			return err
		}
		if !strings.Contains(actual, cmd.Value) {
			return fmt.Errorf("contains: selector %q expected to contain %q, got %q", cmd.Selector, cmd.Value, actual)
		}
		return nil
	case "value":
		actual, err := page.Value(ctx, cmd.Selector)
		if err != nil {
			return err
		}
		if actual != cmd.Value {
			return fmt.Errorf("value: selector %q expected %q, got %q", cmd.Selector, cmd.Value, actual)
		}
		return nil
	default:
		return fmt.Errorf("unknown browser action %q", cmd.Action)
	}
}
