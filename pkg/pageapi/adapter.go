package pageapi

import (
	"context"

	"github.com/desmos-typeset/cli/pkg/boundary"
	"github.com/desmos-typeset/cli/pkg/bridge"
)

// Adapter answers bridge requests posted on a channel with calls against an
// API. It keeps no state between messages.
type Adapter struct {
	api *API
	ch  boundary.Channel
}

// NewAdapter creates an adapter serving api on ch.
func NewAdapter(api *API, ch boundary.Channel) *Adapter {
	return &Adapter{api: api, ch: ch}
}

// Start subscribes the adapter to ch. Replies are posted with ctx; the
// returned function unsubscribes.
func (a *Adapter) Start(ctx context.Context) func() {
	return a.ch.Listen(func(env boundary.Envelope) {
		a.Handle(ctx, env)
	})
}

// Handle answers a single envelope. Anything other than a request from the
// adapter's own window is ignored.
func (a *Adapter) Handle(ctx context.Context, env boundary.Envelope) {
	if env.Source != a.ch.ID() {
		return
	}
	msg, err := bridge.Decode(env.Data)
	if err != nil {
		return
	}

	var reply bridge.Message
	switch msg.Type {
	case bridge.KindGetExpression:
		var latex *string
		if v, ok := a.api.Lookup(msg.ExprID); ok {
			latex = &v
		}
		reply = bridge.GetExpressionResponse(msg.RequestID, latex)
	case bridge.KindSetExpression:
		var latex string
		if msg.Latex != nil {
			latex = *msg.Latex
		}
		reply = bridge.SetExpressionResponse(msg.RequestID, a.api.Write(msg.ExprID, latex))
	default:
		return
	}

	data, err := reply.MarshalJSON()
	if err != nil {
		return
	}
	if err := a.ch.PostMessage(ctx, data); err != nil {
		a.api.logger.Warn("failed to post bridge reply",
			a.api.logger.Args("type", string(reply.Type), "requestId", reply.RequestID, "error", err.Error()))
	}
}
