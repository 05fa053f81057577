package pageapi

import (
	"fmt"
	"os"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const expressionListPath = "expressions.list"

// StateFile is a Calculator over a saved Desmos graph state (the JSON that
// Calc.getState() produces). Only the latex of list items is touched; every
// other field of the document is kept byte for byte.
type StateFile struct {
	path string

	mu    sync.Mutex
	data  []byte
	dirty bool
}

// OpenStateFile reads a graph state file.
func OpenStateFile(path string) (*StateFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("state file %s is not valid JSON", path)
	}
	return &StateFile{path: path, data: data}, nil
}

// Path returns the file the state was read from.
func (s *StateFile) Path() string {
	return s.path
}

func (s *StateFile) Expressions() ([]Expression, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exprs []Expression
	gjson.GetBytes(s.data, expressionListPath).ForEach(func(_, item gjson.Result) bool {
		exprs = append(exprs, Expression{
			ID:    item.Get("id").String(),
			Type:  item.Get("type").String(),
			Latex: item.Get("latex").String(),
		})
		return true
	})
	return exprs, nil
}

func (s *StateFile) SetExpression(e Expression) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := gjson.GetBytes(s.data, expressionListPath)
	index := -1
	i := 0
	list.ForEach(func(_, item gjson.Result) bool {
		if item.Get("id").String() == e.ID {
			index = i
			return false
		}
		i++
		return true
	})

	var (
		data []byte
		err  error
	)
	switch {
	case index >= 0:
		data, err = sjson.SetBytes(s.data, fmt.Sprintf("%s.%d.latex", expressionListPath, index), e.Latex)
	case list.IsArray():
		data, err = sjson.SetBytes(s.data, expressionListPath+".-1", newItem(e))
	default:
		data, err = sjson.SetBytes(s.data, expressionListPath, []any{newItem(e)})
	}
	if err != nil {
		return fmt.Errorf("failed to set expression %q: %w", e.ID, err)
	}
	s.data = data
	s.dirty = true
	return nil
}

// Dirty reports whether the state changed since it was read or saved.
func (s *StateFile) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Save writes the state back to its file.
func (s *StateFile) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path, s.data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	s.dirty = false
	return nil
}

func newItem(e Expression) map[string]any {
	typ := e.Type
	if typ == "" {
		typ = DefaultExpressionType
	}
	return map[string]any{"type": typ, "id": e.ID, "latex": e.Latex}
}
