// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package psxgpu

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/yeager/psxgpu/backend/software"
	"github.com/yeager/psxgpu/backend/wgpu"
	"github.com/yeager/psxgpu/device"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for psxgpu and all its sub-packages.
// By default, psxgpu produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger
// atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by psxgpu:
//   - [slog.LevelDebug]: internal diagnostics (queue depths, skipped
//     presents, texture reuse)
//   - [slog.LevelInfo]: important lifecycle events (renderer brought up,
//     display format negotiated)
//   - [slog.LevelWarn]: non-fatal issues (software fallback, device
//     loss recovery, texture allocation failures)
//
// Example:
//
//	// Enable info-level logging to stderr:
//	psxgpu.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	psxgpu.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	// Sub-packages keep their own atomic logger so they can be used
	// standalone; pushing here keeps everything on one configuration.
	device.SetLogger(l)
	software.SetLogger(l)
	wgpu.SetLogger(l)
}

// Logger returns the current logger used by psxgpu.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
