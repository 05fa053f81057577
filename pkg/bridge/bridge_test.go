package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/desmos-typeset/cli/pkg/boundary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWindow = "window-under-test"

// recorder is a Poster that hands every posted request to the test.
type recorder struct {
	sent chan Message
	err  error
}

func (r *recorder) PostMessage(_ context.Context, data []byte) error {
	if r.err != nil {
		return r.err
	}
	msg, err := Decode(data)
	if err != nil {
		return err
	}
	r.sent <- msg
	return nil
}

func newTestBridge(timeout time.Duration) (*Bridge, *recorder) {
	rec := &recorder{sent: make(chan Message, 16)}
	b := New(testWindow, rec)
	b.timeout = timeout
	return b, rec
}

func envelope(t *testing.T, source string, m Message) boundary.Envelope {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	return boundary.Envelope{Source: source, Data: data}
}

func nextRequest(t *testing.T, rec *recorder) Message {
	t.Helper()
	select {
	case msg := <-rec.sent:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no request posted")
		return Message{}
	}
}

type getResult struct {
	latex string
	ok    bool
}

func goGet(b *Bridge, exprID string) <-chan getResult {
	out := make(chan getResult, 1)
	go func() {
		latex, ok := b.GetExpressionLatex(context.Background(), exprID)
		out <- getResult{latex, ok}
	}()
	return out
}

func goSet(b *Bridge, exprID, latex string) <-chan bool {
	out := make(chan bool, 1)
	go func() {
		out <- b.SetExpressionLatex(context.Background(), exprID, latex)
	}()
	return out
}

func ptr(s string) *string { return &s }

func TestBridge_GetResolvesWithResponse(t *testing.T) {
	b, rec := newTestBridge(time.Minute)

	result := goGet(b, "e1")
	req := nextRequest(t, rec)
	assert.Equal(t, KindGetExpression, req.Type)
	assert.Equal(t, "e1", req.ExprID)

	b.Dispatch(envelope(t, testWindow, GetExpressionResponse(req.RequestID, ptr("x^2"))))

	select {
	case r := <-result:
		assert.True(t, r.ok)
		assert.Equal(t, "x^2", r.latex)
	case <-time.After(time.Second):
		t.Fatal("call did not resolve")
	}
	assert.Equal(t, 0, b.Pending())
}

func TestBridge_GetPropagatesNull(t *testing.T) {
	b, rec := newTestBridge(time.Minute)

	result := goGet(b, "missing")
	req := nextRequest(t, rec)
	b.Dispatch(envelope(t, testWindow, GetExpressionResponse(req.RequestID, nil)))

	r := <-result
	assert.False(t, r.ok)
	assert.Empty(t, r.latex)
}

func TestBridge_GetEmptyLatexIsNotNull(t *testing.T) {
	b, rec := newTestBridge(time.Minute)

	result := goGet(b, "blank")
	req := nextRequest(t, rec)
	b.Dispatch(envelope(t, testWindow, GetExpressionResponse(req.RequestID, ptr(""))))

	r := <-result
	assert.True(t, r.ok)
	assert.Equal(t, "", r.latex)
}

func TestBridge_SetResolvesWithSuccessFlag(t *testing.T) {
	for _, success := range []bool{true, false} {
		b, rec := newTestBridge(time.Minute)

		result := goSet(b, "e3", "y=1")
		req := nextRequest(t, rec)
		assert.Equal(t, KindSetExpression, req.Type)
		assert.Equal(t, "e3", req.ExprID)
		require.NotNil(t, req.Latex)
		assert.Equal(t, "y=1", *req.Latex)

		b.Dispatch(envelope(t, testWindow, SetExpressionResponse(req.RequestID, success)))
		assert.Equal(t, success, <-result)
		assert.Equal(t, 0, b.Pending())
	}
}

func TestBridge_TimeoutResolvesEmptyAndRemovesEntry(t *testing.T) {
	b, rec := newTestBridge(50 * time.Millisecond)

	getRes := goGet(b, "e2")
	getReq := nextRequest(t, rec)
	setResult := goSet(b, "e2", "y=2")
	setReq := nextRequest(t, rec)
	assert.Equal(t, 2, b.Pending())

	r := <-getRes
	assert.False(t, r.ok)
	assert.False(t, <-setResult)
	assert.Equal(t, 0, b.Pending())

	// Late answers find nothing to resolve.
	assert.NotPanics(t, func() {
		b.Dispatch(envelope(t, testWindow, GetExpressionResponse(getReq.RequestID, ptr("late"))))
		b.Dispatch(envelope(t, testWindow, SetExpressionResponse(setReq.RequestID, true)))
	})
	assert.Equal(t, 0, b.Pending())
}

func TestBridge_TimeoutUsesFixedThreeSeconds(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the full response timeout")
	}
	b, rec := newTestBridge(ResponseTimeout)
	assert.Equal(t, 3*time.Second, b.timeout)

	start := time.Now()
	result := goGet(b, "e2")
	nextRequest(t, rec)

	select {
	case r := <-result:
		assert.False(t, r.ok)
		assert.GreaterOrEqual(t, time.Since(start), ResponseTimeout)
	case <-time.After(ResponseTimeout + 2*time.Second):
		t.Fatal("call did not time out")
	}
}

func TestBridge_CorrelatesOutOfOrderResponses(t *testing.T) {
	b, rec := newTestBridge(time.Minute)

	a := goGet(b, "a")
	reqA := nextRequest(t, rec)
	bb := goGet(b, "b")
	reqB := nextRequest(t, rec)
	require.NotEqual(t, reqA.RequestID, reqB.RequestID)

	b.Dispatch(envelope(t, testWindow, GetExpressionResponse(reqB.RequestID, ptr("B"))))
	b.Dispatch(envelope(t, testWindow, GetExpressionResponse(reqA.RequestID, ptr("A"))))

	assert.Equal(t, getResult{"A", true}, <-a)
	assert.Equal(t, getResult{"B", true}, <-bb)
}

func TestBridge_IgnoresForeignAndUnrelatedTraffic(t *testing.T) {
	b, rec := newTestBridge(100 * time.Millisecond)

	result := goGet(b, "e1")
	req := nextRequest(t, rec)

	// Right id, wrong window.
	b.Dispatch(envelope(t, "some-iframe", GetExpressionResponse(req.RequestID, ptr("spoofed"))))
	// Right id, wrong response kind.
	b.Dispatch(envelope(t, testWindow, SetExpressionResponse(req.RequestID, true)))
	// Our own request echoed back by the broadcast.
	b.Dispatch(envelope(t, testWindow, req))
	// Unrelated traffic sharing the channel.
	b.Dispatch(boundary.Envelope{Source: testWindow, Data: json.RawMessage(`{"type":"SETTINGS_CHANGED"}`)})
	b.Dispatch(boundary.Envelope{Source: testWindow, Data: json.RawMessage(`"hello"`)})
	b.Dispatch(boundary.Envelope{Source: testWindow, Data: json.RawMessage(`{"type":"DESMOS_GET_EXPRESSION_RESPONSE","latex":"no id"}`)})

	assert.Equal(t, 1, b.Pending())
	r := <-result
	assert.False(t, r.ok)
}

func TestBridge_ResponseForUnknownIDIsNoop(t *testing.T) {
	b, _ := newTestBridge(time.Minute)
	assert.NotPanics(t, func() {
		b.Dispatch(envelope(t, testWindow, GetExpressionResponse(999, ptr("x"))))
	})
	assert.Equal(t, 0, b.Pending())
}

func TestBridge_DuplicateResponseResolvesOnce(t *testing.T) {
	b, rec := newTestBridge(time.Minute)

	result := goGet(b, "e1")
	req := nextRequest(t, rec)
	b.Dispatch(envelope(t, testWindow, GetExpressionResponse(req.RequestID, ptr("first"))))
	b.Dispatch(envelope(t, testWindow, GetExpressionResponse(req.RequestID, ptr("second"))))

	assert.Equal(t, getResult{"first", true}, <-result)
}

func TestBridge_PostFailureResolvesImmediately(t *testing.T) {
	rec := &recorder{err: errors.New("page gone")}
	b := New(testWindow, rec)

	start := time.Now()
	_, ok := b.GetExpressionLatex(context.Background(), "e1")
	assert.False(t, ok)
	assert.False(t, b.SetExpressionLatex(context.Background(), "e1", "x"))
	assert.Less(t, time.Since(start), ResponseTimeout)
	assert.Equal(t, 0, b.Pending())
}

func TestBridge_ContextCancelResolvesEmpty(t *testing.T) {
	b, rec := newTestBridge(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		_, ok := b.GetExpressionLatex(ctx, "e1")
		done <- ok
	}()
	nextRequest(t, rec)
	cancel()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("cancelled call did not resolve")
	}
	assert.Equal(t, 0, b.Pending())
}

func TestBridge_RequestIDsIncrease(t *testing.T) {
	b, rec := newTestBridge(10 * time.Millisecond)

	var ids []int64
	for i := 0; i < 3; i++ {
		goGet(b, "e")
		ids = append(ids, nextRequest(t, rec).RequestID)
	}
	assert.Less(t, ids[0], ids[1])
	assert.Less(t, ids[1], ids[2])
}

func TestBridge_AbandonLosesToEarlierResponse(t *testing.T) {
	b, _ := newTestBridge(time.Minute)

	ch := make(chan Message, 1)
	b.pending[7] = pendingRequest{want: KindGetExpressionResponse, ch: ch}
	require.True(t, b.resolve(GetExpressionResponse(7, ptr("won"))))

	// The timer fired after the response claimed the entry.
	msg, ok := b.abandon(7, ch)
	require.True(t, ok)
	require.NotNil(t, msg.Latex)
	assert.Equal(t, "won", *msg.Latex)
}

func TestNew_PanicsWithoutPoster(t *testing.T) {
	assert.Panics(t, func() { New(testWindow, nil) })
}
