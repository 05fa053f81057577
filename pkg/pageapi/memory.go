package pageapi

import "sync"

// MemoryCalculator keeps the expression list in memory.
type MemoryCalculator struct {
	mu    sync.Mutex
	exprs []Expression
}

// NewMemoryCalculator returns a calculator holding exprs, in order.
func NewMemoryCalculator(exprs ...Expression) *MemoryCalculator {
	c := &MemoryCalculator{}
	for _, e := range exprs {
		_ = c.SetExpression(e)
	}
	return c
}

func (c *MemoryCalculator) Expressions() ([]Expression, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Expression(nil), c.exprs...), nil
}

func (c *MemoryCalculator) SetExpression(e Expression) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.exprs {
		if c.exprs[i].ID == e.ID {
			c.exprs[i].Latex = e.Latex
			return nil
		}
	}
	if e.Type == "" {
		e.Type = DefaultExpressionType
	}
	c.exprs = append(c.exprs, e)
	return nil
}
