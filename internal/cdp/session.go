// Package cdp drives a Desmos calculator tab in Chrome over the DevTools
// protocol and exposes it as a boundary.Channel.
//
// Outbound messages are delivered with window.postMessage inside the page.
// The embedded page adapter answers them against window.Calc and reports
// each response back through a DevTools binding, which the session turns
// into envelopes for its listeners.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/desmos-typeset/cli/pkg/boundary"
	"github.com/desmos-typeset/cli/pkg/util"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
)

const (
	// DefaultCalculatorURL is the page the session opens.
	DefaultCalculatorURL = "https://www.desmos.com/calculator"

	readyTimeout  = 30 * time.Second
	readyInterval = 250 * time.Millisecond
)

// Options configures a Session.
type Options struct {
	// CalculatorURL is navigated to after the adapter is installed.
	CalculatorURL string
	// RemoteURL attaches to an already running Chrome (its DevTools
	// websocket URL) instead of launching one.
	RemoteURL string
	// Headless launches Chrome without a window. Ignored with RemoteURL.
	Headless bool
	// Logger defaults to util.NewLogger().
	Logger *pterm.Logger
}

// Session is one calculator tab.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *pterm.Logger

	mu        sync.Mutex
	listeners map[int]boundary.Listener
	nextID    int
}

var _ boundary.Channel = (*Session)(nil)

// Open starts (or attaches to) Chrome, installs the page adapter and waits
// until the calculator API is available in the page.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.CalculatorURL == "" {
		opts.CalculatorURL = DefaultCalculatorURL
	}
	if opts.Logger == nil {
		opts.Logger = util.NewLogger()
	}

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		chromeOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.NoFirstRun,
			chromedp.NoDefaultBrowserCheck,
			chromedp.Flag("headless", opts.Headless),
			chromedp.WindowSize(1366, 900),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, chromeOpts...)
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		id:  uuid.NewString(),
		ctx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
		logger:    opts.Logger,
		listeners: make(map[int]boundary.Listener),
	}
	chromedp.ListenTarget(browserCtx, s.onEvent)

	err := chromedp.Run(browserCtx,
		runtime.AddBinding(BindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(PageAdapterScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(opts.CalculatorURL),
	)
	if err != nil {
		s.cancel()
		return nil, fmt.Errorf("failed to open calculator: %w", err)
	}

	if err := s.waitForCalculator(); err != nil {
		s.cancel()
		return nil, err
	}
	s.logger.Debug("calculator session ready", s.logger.Args("url", opts.CalculatorURL, "window", s.id))
	return s, nil
}

// waitForCalculator polls until window.Calc exists. The adapter tolerates
// a missing Calc, but requests sent before it appears would all fail.
func (s *Session) waitForCalculator() error {
	deadline := time.Now().Add(readyTimeout)
	for {
		var ready bool
		err := chromedp.Run(s.ctx, chromedp.Evaluate(`typeof window.Calc === "object" && window.Calc !== null`, &ready))
		if err != nil {
			return fmt.Errorf("failed to check calculator: %w", err)
		}
		if ready {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("calculator API not available after %s", readyTimeout)
		}
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case <-time.After(readyInterval):
		}
	}
}

// ID returns the session's window id; envelopes it delivers carry it.
func (s *Session) ID() string {
	return s.id
}

// PostMessage posts data on the page's window.
func (s *Session) PostMessage(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !json.Valid(data) {
		return fmt.Errorf("cdp: message is not valid JSON")
	}
	expr := fmt.Sprintf(`window.postMessage(%s, "*")`, data)
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(expr, nil)); err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	return nil
}

// Listen registers fn for responses reported by the page. fn is called on
// the DevTools event goroutine and must not block.
func (s *Session) Listen(fn boundary.Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// ApplyStylesheet replaces the settings stylesheet in the page with css.
func (s *Session) ApplyStylesheet(ctx context.Context, css string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	arg, err := json.Marshal(css)
	if err != nil {
		return fmt.Errorf("failed to encode stylesheet: %w", err)
	}
	var applied bool
	expr := fmt.Sprintf("(%s)(%s)", ApplyStylesheetScript, arg)
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(expr, &applied)); err != nil {
		return fmt.Errorf("failed to apply stylesheet: %w", err)
	}
	if !applied {
		return fmt.Errorf("failed to apply stylesheet: page rejected it")
	}
	return nil
}

// Close closes the tab and, when Chrome was launched by Open, Chrome itself.
func (s *Session) Close() {
	s.cancel()
}

func (s *Session) onEvent(ev any) {
	called, ok := ev.(*runtime.EventBindingCalled)
	if !ok || called.Name != BindingName {
		return
	}
	if !json.Valid([]byte(called.Payload)) {
		s.logger.Warn("dropping malformed binding payload", s.logger.Args("payload", called.Payload))
		return
	}
	env := boundary.Envelope{Source: s.id, Data: json.RawMessage(called.Payload)}

	s.mu.Lock()
	fns := make([]boundary.Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(env)
	}
}
