// Package boundary models the message channel between the extension's
// isolated context and the host page's own script context.
//
// A Window behaves like window.postMessage with a "*" target: every message
// posted on the window is delivered to every listener on it, the poster's
// own listeners included, stamped with the window's id as its source.
// Delivery is asynchronous and ordered per listener, so a listener may post
// from inside its callback without deadlocking.
package boundary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrClosed is returned when posting on a closed window.
var ErrClosed = errors.New("boundary: window closed")

// Envelope is one delivered message.
type Envelope struct {
	// Source is the id of the window the message was posted on.
	Source string
	// Data is the structured message as JSON.
	Data json.RawMessage
}

// Listener receives envelopes. It runs on the subscriber's own goroutine.
type Listener func(Envelope)

// Channel is anything messages can be posted on and listened to.
type Channel interface {
	ID() string
	PostMessage(ctx context.Context, data []byte) error
	Listen(fn Listener) (unsubscribe func())
}

// Window is an in-process Channel.
type Window struct {
	id string

	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

// NewWindow creates a window with a fresh random id.
func NewWindow() *Window {
	return &Window{
		id:   uuid.NewString(),
		subs: make(map[int]*subscriber),
	}
}

// ID returns the window's source id.
func (w *Window) ID() string {
	return w.id
}

// PostMessage broadcasts data to every current listener.
func (w *Window) PostMessage(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !json.Valid(data) {
		return fmt.Errorf("boundary: message is not valid JSON")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	env := Envelope{Source: w.id, Data: append(json.RawMessage(nil), data...)}
	for _, s := range w.subs {
		s.push(env)
	}
	return nil
}

// Post marshals v and posts it.
func (w *Window) Post(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return w.PostMessage(ctx, data)
}

// Listen registers fn and returns a function that removes it. Messages
// already queued for fn when it is removed are dropped.
func (w *Window) Listen(fn Listener) func() {
	s := &subscriber{
		fn:   fn,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return func() {}
	}
	id := w.nextID
	w.nextID++
	w.subs[id] = s
	w.mu.Unlock()

	go s.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			// Close may already have stopped it.
			if _, ok := w.subs[id]; ok {
				delete(w.subs, id)
				close(s.quit)
			}
		})
	}
}

// Close stops delivery to all listeners. Further posts fail with ErrClosed.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	for id, s := range w.subs {
		close(s.quit)
		delete(w.subs, id)
	}
}

type subscriber struct {
	fn Listener

	mu    sync.Mutex
	queue []Envelope

	wake chan struct{}
	quit chan struct{}
}

func (s *subscriber) push(env Envelope) {
	s.mu.Lock()
	s.queue = append(s.queue, env)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			env := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.quit:
				return
			default:
			}
			s.fn(env)
		}
	}
}
