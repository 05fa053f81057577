// Package stylesheet renders the settings into the CSS injected into the
// calculator page.
package stylesheet

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/desmos-typeset/cli/internal/settings"
)

// ElementID is the id of the <style> element holding the rendered CSS.
// Applying a new stylesheet replaces the element.
const ElementID = "desmos-font-settings"

const defaultMinChars = 2

//go:embed blocks/*.css
var blockFS embed.FS

var blocks = template.Must(template.ParseFS(blockFS, "blocks/*.css"))

type block struct {
	setting  string
	template string
	data     func(settings.Values) any
}

// Blocks are rendered in this order, each only when its setting is on.
var order = []block{
	{
		setting:  "uprightSubscript",
		template: "upright_subscript.css",
		data: func(v settings.Values) any {
			cond := ":has(var:nth-of-type(n + 2))"
			if minChars(v, "uprightSubscriptMinChars") == 1 {
				cond = ":has(var)"
			}
			return struct{ HasCondition string }{cond}
		},
	},
	{
		setting:  "normalSizeSubscript",
		template: "normal_size_subscript.css",
		data: func(v settings.Values) any {
			scope := ":is(.dcg-exppanel-container, #intellisense-container) .dcg-mq-math-mode"
			if !v.Bool("normalSizeSubscriptApplyWhileEditing") {
				scope += ":not(.dcg-mq-focused)"
			}
			return struct{ Scope, NthType string }{
				Scope:   scope,
				NthType: fmt.Sprintf("n + %d", minChars(v, "normalSizeSubscriptMinChars")),
			}
		},
	},
	{setting: "enhancedParentheses", template: "enhanced_parentheses.css"},
	{setting: "displayStyleIntegrals", template: "display_style_integrals.css"},
}

// minChars treats a zero value as unset.
func minChars(v settings.Values, id string) int {
	if n := v.Int(id); n > 0 {
		return n
	}
	return defaultMinChars
}

// Build renders the CSS for values. It is empty when every block is off.
func Build(values settings.Values) (string, error) {
	var sb strings.Builder
	for _, b := range order {
		if !values.Bool(b.setting) {
			continue
		}
		var data any
		if b.data != nil {
			data = b.data(values)
		}
		sb.WriteString("\n")
		if err := blocks.ExecuteTemplate(&sb, b.template, data); err != nil {
			return "", fmt.Errorf("failed to render %s: %w", b.template, err)
		}
	}
	return sb.String(), nil
}

// Enabled lists the settings whose blocks Build would render.
func Enabled(values settings.Values) []string {
	var out []string
	for _, b := range order {
		if values.Bool(b.setting) {
			out = append(out, b.setting)
		}
	}
	return out
}
