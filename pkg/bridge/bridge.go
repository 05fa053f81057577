// Package bridge correlates expression requests sent into the Desmos page
// context with the responses that come back across the boundary.
//
// The page context is not under our control and may never answer, so every
// call resolves on its own: with the page's answer if it arrives within
// ResponseTimeout, otherwise with the empty result. No error is ever
// returned to the caller; "not found", "page API missing" and "timed out"
// all look the same.
//
//	b, detach := bridge.Connect(window)
//	defer detach()
//	latex, ok := b.GetExpressionLatex(ctx, "3")
package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/desmos-typeset/cli/pkg/boundary"
	"github.com/desmos-typeset/cli/pkg/util"
	"github.com/pterm/pterm"
)

// ResponseTimeout is how long a call waits for the page to answer.
const ResponseTimeout = 3000 * time.Millisecond

// Poster sends raw message data into the page context.
type Poster interface {
	PostMessage(ctx context.Context, data []byte) error
}

type pendingRequest struct {
	want Kind
	ch   chan Message
}

// Bridge owns the pending-request table and the request id counter for one
// window. It is safe for concurrent use.
type Bridge struct {
	window  string
	poster  Poster
	logger  *pterm.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending map[int64]pendingRequest
	lastID  int64
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger used for dropped and timed-out traffic.
func WithLogger(l *pterm.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a Bridge that posts through poster and accepts responses only
// from the window with the given id.
func New(window string, poster Poster, opts ...Option) *Bridge {
	if poster == nil {
		panic("bridge: Poster must not be nil")
	}
	b := &Bridge{
		window:  window,
		poster:  poster,
		logger:  util.NewLogger(),
		timeout: ResponseTimeout,
		pending: make(map[int64]pendingRequest),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect creates a Bridge on ch and subscribes it to ch's inbound traffic.
// The returned function detaches it.
func Connect(ch boundary.Channel, opts ...Option) (*Bridge, func()) {
	b := New(ch.ID(), ch, opts...)
	return b, b.Attach(ch)
}

// Attach feeds every envelope delivered on ch to Dispatch.
func (b *Bridge) Attach(ch boundary.Channel) func() {
	return ch.Listen(b.Dispatch)
}

// GetExpressionLatex asks the page for the LaTeX source of an expression.
// ok is false when the page reports no such expression, when it does not
// answer in time, or when ctx ends first.
func (b *Bridge) GetExpressionLatex(ctx context.Context, exprID string) (latex string, ok bool) {
	resp, ok := b.call(ctx, func(id int64) Message {
		return GetExpressionRequest(id, exprID)
	})
	if !ok || resp.Latex == nil {
		return "", false
	}
	return *resp.Latex, true
}

// SetExpressionLatex asks the page to replace an expression's LaTeX source.
// It reports the page's answer, or false if none arrives in time.
func (b *Bridge) SetExpressionLatex(ctx context.Context, exprID, latex string) bool {
	resp, ok := b.call(ctx, func(id int64) Message {
		return SetExpressionRequest(id, exprID, latex)
	})
	return ok && resp.Success
}

// Pending returns the number of calls still waiting for an answer.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Dispatch handles one inbound envelope. Envelopes from other windows,
// data that is not a bridge message, request kinds and responses without a
// matching pending call are ignored.
func (b *Bridge) Dispatch(env boundary.Envelope) {
	if env.Source != b.window {
		return
	}
	msg, err := Decode(env.Data)
	if err != nil || !msg.Type.IsResponse() {
		return
	}
	if !b.resolve(msg) {
		b.logger.Debug("dropping unmatched bridge response",
			b.logger.Args("type", string(msg.Type), "requestId", msg.RequestID))
	}
}

func (b *Bridge) resolve(msg Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pending[msg.RequestID]
	if !ok || p.want != msg.Type {
		return false
	}
	delete(b.pending, msg.RequestID)
	// Buffered with capacity one and only ever sent to here, under the lock.
	p.ch <- msg
	return true
}

func (b *Bridge) call(ctx context.Context, build func(id int64) Message) (Message, bool) {
	ch := make(chan Message, 1)

	b.mu.Lock()
	b.lastID++
	id := b.lastID
	req := build(id)
	want, _ := req.Type.ResponseKind()
	b.pending[id] = pendingRequest{want: want, ch: ch}
	b.mu.Unlock()

	data, err := json.Marshal(req)
	if err == nil {
		err = b.poster.PostMessage(ctx, data)
	}
	if err != nil {
		b.logger.Debug("failed to post bridge request",
			b.logger.Args("type", string(req.Type), "requestId", id, "error", err.Error()))
		return b.abandon(id, ch)
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp, true
	case <-timer.C:
		b.logger.Debug("bridge request timed out",
			b.logger.Args("type", string(req.Type), "requestId", id, "timeout", b.timeout.String()))
		return b.abandon(id, ch)
	case <-ctx.Done():
		return b.abandon(id, ch)
	}
}

// abandon removes a pending call that gave up waiting. If a response
// claimed the entry first, that response is already in ch and wins.
func (b *Bridge) abandon(id int64, ch chan Message) (Message, bool) {
	b.mu.Lock()
	_, waiting := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()

	if waiting {
		return Message{}, false
	}
	return <-ch, true
}
