// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package psxgpu

import (
	"context"
	"log/slog"
	"time"

	"github.com/yeager/psxgpu/device"
)

// Durations for on-screen messages raised by the pipeline itself.
const (
	osdInfoDuration     = 5 * time.Second
	osdWarningDuration  = 10 * time.Second
	osdCriticalDuration = 20 * time.Second
)

// RenderWindowInfo describes the surface the render thread presents
// into. The pipeline publishes the latest value after device creation
// and window resizes; see [Pipeline.WindowInfo].
type RenderWindowInfo struct {
	// Width and Height are the surface size in pixels. A zero size
	// means headless operation: rendering proceeds but there is no
	// swapchain to present to.
	Width, Height int

	// Scale is the display scale of the window (for HiDPI hosts).
	// Zero means unscaled.
	Scale float32

	// Fullscreen reports whether the surface is a fullscreen
	// swapchain.
	Fullscreen bool
}

// Host connects the pipeline to the embedding application. The
// pipeline calls it from the render thread only.
type Host interface {
	// AcquireRenderWindow obtains (or re-obtains) the window surface a
	// device for the given API should be created against. It is called
	// before every device creation; fullscreen and exclusive carry the
	// requested swapchain mode.
	AcquireRenderWindow(api device.RenderAPI, fullscreen, exclusive bool) (RenderWindowInfo, error)

	// ReleaseRenderWindow hands the window back after the device that
	// used it has been destroyed.
	ReleaseRenderWindow()

	// AddOSDMessage surfaces a transient user-visible message.
	// severity follows slog levels; duration is how long the message
	// should stay up.
	AddOSDMessage(severity slog.Level, msg string, duration time.Duration)
}

// NopHost is a headless Host. It hands out a fixed-size surface and
// routes messages to the package logger instead of a screen.
type NopHost struct {
	// WindowWidth and WindowHeight are reported from
	// AcquireRenderWindow. Zero means a headless surface.
	WindowWidth, WindowHeight int
}

func (h NopHost) AcquireRenderWindow(api device.RenderAPI, fullscreen, exclusive bool) (RenderWindowInfo, error) {
	return RenderWindowInfo{
		Width:      h.WindowWidth,
		Height:     h.WindowHeight,
		Fullscreen: fullscreen,
	}, nil
}

func (NopHost) ReleaseRenderWindow() {}

func (NopHost) AddOSDMessage(severity slog.Level, msg string, duration time.Duration) {
	Logger().Log(context.Background(), severity, msg)
}
