// Package pageapi is the page-context side of the expression bridge: the
// two operations the host calculator exposes, and the adapter that answers
// bridge requests with them.
package pageapi

import (
	"errors"

	"github.com/desmos-typeset/cli/pkg/util"
	"github.com/pterm/pterm"
)

// ErrUnavailable is returned by calculators that cannot serve requests.
var ErrUnavailable = errors.New("pageapi: calculator unavailable")

// DefaultExpressionType is the item type Desmos gives plain expressions.
const DefaultExpressionType = "expression"

// Expression is one item of the calculator's expression list.
type Expression struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Latex string `json:"latex"`
}

// Calculator is the host application's expression state.
type Calculator interface {
	// Expressions returns the expression list in display order.
	Expressions() ([]Expression, error)
	// SetExpression replaces the expression with e.ID, or adds it.
	SetExpression(e Expression) error
}

// API collapses calculator failures into the "null"/false results the
// bridge protocol carries.
type API struct {
	calc   Calculator
	logger *pterm.Logger
}

// New wraps calc. A nil calc behaves like a page without a calculator.
func New(calc Calculator, logger *pterm.Logger) *API {
	if logger == nil {
		logger = util.NewLogger()
	}
	return &API{calc: calc, logger: logger}
}

// Lookup returns the LaTeX source of the expression with the given id.
func (a *API) Lookup(exprID string) (string, bool) {
	if a.calc == nil {
		return "", false
	}
	exprs, err := a.calc.Expressions()
	if err != nil {
		a.logger.Error("failed to read expressions", a.logger.Args("error", err.Error()))
		return "", false
	}
	for _, e := range exprs {
		if e.ID == exprID {
			return e.Latex, true
		}
	}
	return "", false
}

// Write sets the LaTeX source of the expression with the given id.
func (a *API) Write(exprID, latex string) bool {
	if a.calc == nil {
		return false
	}
	if err := a.calc.SetExpression(Expression{ID: exprID, Latex: latex}); err != nil {
		a.logger.Error("failed to set expression",
			a.logger.Args("id", exprID, "error", err.Error()))
		return false
	}
	return true
}
