package util

import (
	"os"
	"sync/atomic"

	"github.com/pterm/pterm"
)

var debugLogging atomic.Bool

// SetDebug switches loggers created afterwards to debug level.
func SetDebug(on bool) {
	debugLogging.Store(on)
	if on {
		pterm.EnableDebugMessages()
	} else {
		pterm.DisableDebugMessages()
	}
}

// NewLogger returns a structured logger writing to stderr. It logs warnings
// and errors only, unless SetDebug(true) was called.
func NewLogger() *pterm.Logger {
	level := pterm.LogLevelWarn
	if debugLogging.Load() {
		level = pterm.LogLevelDebug
	}
	return pterm.DefaultLogger.WithLevel(level).WithWriter(os.Stderr)
}
