package pageapi

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desmos-typeset/cli/pkg/boundary"
	"github.com/desmos-typeset/cli/pkg/bridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCalculator struct{}

func (brokenCalculator) Expressions() ([]Expression, error) { return nil, ErrUnavailable }
func (brokenCalculator) SetExpression(Expression) error     { return errors.New("read only") }

func TestAPI_Lookup(t *testing.T) {
	api := New(NewMemoryCalculator(
		Expression{ID: "1", Latex: "y=x"},
		Expression{ID: "2", Latex: ""},
	), nil)

	latex, ok := api.Lookup("1")
	assert.True(t, ok)
	assert.Equal(t, "y=x", latex)

	latex, ok = api.Lookup("2")
	assert.True(t, ok)
	assert.Equal(t, "", latex)

	_, ok = api.Lookup("3")
	assert.False(t, ok)

	_, ok = api.Lookup("")
	assert.False(t, ok)
}

func TestAPI_FailuresCollapse(t *testing.T) {
	for name, api := range map[string]*API{
		"no calculator": New(nil, nil),
		"broken":        New(brokenCalculator{}, nil),
	} {
		t.Run(name, func(t *testing.T) {
			_, ok := api.Lookup("1")
			assert.False(t, ok)
			assert.False(t, api.Write("1", "x"))
		})
	}
}

func TestMemoryCalculator_SetReplacesOrAppends(t *testing.T) {
	calc := NewMemoryCalculator(Expression{ID: "1", Latex: "a"})
	require.NoError(t, calc.SetExpression(Expression{ID: "1", Latex: "b"}))
	require.NoError(t, calc.SetExpression(Expression{ID: "2", Latex: "c"}))

	exprs, err := calc.Expressions()
	require.NoError(t, err)
	assert.Equal(t, []Expression{
		{ID: "1", Type: DefaultExpressionType, Latex: "b"},
		{ID: "2", Type: DefaultExpressionType, Latex: "c"},
	}, exprs)
}

func TestAdapter_RepliesToRequests(t *testing.T) {
	w := boundary.NewWindow()
	defer w.Close()

	calc := NewMemoryCalculator(Expression{ID: "e1", Latex: "x^2"})
	a := NewAdapter(New(calc, nil), w)

	replies := make(chan bridge.Message, 8)
	w.Listen(func(env boundary.Envelope) {
		if msg, err := bridge.Decode(env.Data); err == nil && msg.Type.IsResponse() {
			replies <- msg
		}
	})

	ctx := context.Background()
	post := func(m bridge.Message) {
		data, err := json.Marshal(m)
		require.NoError(t, err)
		a.Handle(ctx, boundary.Envelope{Source: w.ID(), Data: data})
	}
	next := func() bridge.Message {
		select {
		case m := <-replies:
			return m
		case <-time.After(time.Second):
			t.Fatal("no reply")
			return bridge.Message{}
		}
	}

	post(bridge.GetExpressionRequest(1, "e1"))
	m := next()
	assert.Equal(t, bridge.KindGetExpressionResponse, m.Type)
	assert.Equal(t, int64(1), m.RequestID)
	require.NotNil(t, m.Latex)
	assert.Equal(t, "x^2", *m.Latex)

	post(bridge.GetExpressionRequest(2, "missing"))
	m = next()
	assert.Equal(t, int64(2), m.RequestID)
	assert.Nil(t, m.Latex)

	post(bridge.SetExpressionRequest(3, "e1", "x^3"))
	m = next()
	assert.Equal(t, bridge.KindSetExpressionResponse, m.Type)
	assert.True(t, m.Success)

	latex, _ := New(calc, nil).Lookup("e1")
	assert.Equal(t, "x^3", latex)
}

func TestAdapter_IgnoresForeignWindowsAndResponses(t *testing.T) {
	w := boundary.NewWindow()
	defer w.Close()

	calc := NewMemoryCalculator()
	a := NewAdapter(New(calc, nil), w)

	got := make(chan struct{}, 8)
	w.Listen(func(boundary.Envelope) { got <- struct{}{} })

	set, err := json.Marshal(bridge.SetExpressionRequest(1, "e1", "x"))
	require.NoError(t, err)
	resp, err := json.Marshal(bridge.SetExpressionResponse(2, true))
	require.NoError(t, err)

	a.Handle(context.Background(), boundary.Envelope{Source: "other-window", Data: set})
	a.Handle(context.Background(), boundary.Envelope{Source: w.ID(), Data: resp})
	a.Handle(context.Background(), boundary.Envelope{Source: w.ID(), Data: json.RawMessage(`{"type":"SETTINGS_CHANGED"}`)})

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, got)
	exprs, _ := calc.Expressions()
	assert.Empty(t, exprs)
}

const sampleState = `{
  "version": 11,
  "graph": {"viewport": {"xmin": -10, "ymin": -10, "xmax": 10, "ymax": 10}},
  "expressions": {
    "list": [
      {"type": "expression", "id": "1", "color": "#c74440", "latex": "y=x^2"},
      {"type": "text", "id": "2", "text": "notes"}
    ]
  }
}`

func writeState(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestStateFile_ReadsExpressionList(t *testing.T) {
	sf, err := OpenStateFile(writeState(t, sampleState))
	require.NoError(t, err)

	exprs, err := sf.Expressions()
	require.NoError(t, err)
	assert.Equal(t, []Expression{
		{ID: "1", Type: "expression", Latex: "y=x^2"},
		{ID: "2", Type: "text"},
	}, exprs)
}

func TestStateFile_WritePreservesOtherFields(t *testing.T) {
	path := writeState(t, sampleState)
	sf, err := OpenStateFile(path)
	require.NoError(t, err)
	assert.False(t, sf.Dirty())

	require.NoError(t, sf.SetExpression(Expression{ID: "1", Latex: `\sin(x)`}))
	require.NoError(t, sf.SetExpression(Expression{ID: "9", Latex: "a=3"}))
	assert.True(t, sf.Dirty())
	require.NoError(t, sf.Save())
	assert.False(t, sf.Dirty())

	reread, err := OpenStateFile(path)
	require.NoError(t, err)
	exprs, err := reread.Expressions()
	require.NoError(t, err)
	require.Len(t, exprs, 3)
	assert.Equal(t, `\sin(x)`, exprs[0].Latex)
	assert.Equal(t, Expression{ID: "9", Type: DefaultExpressionType, Latex: "a=3"}, exprs[2])

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.EqualValues(t, 11, doc["version"])
	list := doc["expressions"].(map[string]any)["list"].([]any)
	assert.Equal(t, "#c74440", list[0].(map[string]any)["color"])
}

func TestStateFile_CreatesListWhenMissing(t *testing.T) {
	sf, err := OpenStateFile(writeState(t, `{"version": 11}`))
	require.NoError(t, err)

	require.NoError(t, sf.SetExpression(Expression{ID: "1", Latex: "y=1"}))
	exprs, err := sf.Expressions()
	require.NoError(t, err)
	assert.Equal(t, []Expression{{ID: "1", Type: DefaultExpressionType, Latex: "y=1"}}, exprs)
}

func TestOpenStateFile_Errors(t *testing.T) {
	_, err := OpenStateFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = OpenStateFile(writeState(t, `{broken`))
	assert.Error(t, err)
}
