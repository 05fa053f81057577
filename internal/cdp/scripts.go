package cdp

import (
	_ "embed"
)

// Scripts evaluated in the calculator tab.

//go:embed scripts/page_adapter.js
var PageAdapterScript string

//go:embed scripts/apply_stylesheet.js
var ApplyStylesheetScript string

// BindingName is the DevTools binding the page adapter reports responses to.
// It must match BINDING in page_adapter.js.
const BindingName = "__desmosBridgeEmit"
