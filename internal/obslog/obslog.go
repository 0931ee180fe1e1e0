// Package obslog hosts the package-global structured logger used across
// coredoc. It defaults to a discard sink so embedding an engine into a
// host process never produces unsolicited output; hosts call SetLogger to
// route engine diagnostics into their own logging pipeline.
package obslog

import (
	"io"
	"log/slog"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// SetLogger installs l as the engine-wide logger. Passing nil restores the
// discard logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	current.Store(l)
}

// Log returns the currently installed logger.
func Log() *slog.Logger {
	return current.Load()
}
