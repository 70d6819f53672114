// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package psxgpu

import (
	"errors"
	"image"
	"log/slog"
	"runtime"
	"time"

	"github.com/yeager/psxgpu/backend"
	"github.com/yeager/psxgpu/device"
)

// maxSkippedPresents bounds how many consecutive frames may be dropped
// before one is forced through, so the screen never freezes while the
// emulator runs behind schedule.
const maxSkippedPresents = 50

// presentOnThread flushes pending rendering and presents the display.
// presentTime, when nonzero, is the earliest presentation instant on
// the [Now] clock; the thread waits it out. allowSkip lets a frame
// that is already past its time be dropped instead.
func (p *Pipeline) presentOnThread(allowSkip bool, presentTime int64) {
	if p.active == nil || p.dev == nil {
		return
	}
	if allowSkip && presentTime != 0 && Now() > presentTime &&
		p.skippedPresents < maxSkippedPresents {
		p.skippedPresents++
		p.stats.framesSkipped.Add(1)
		return
	}
	if presentTime != 0 {
		sleepUntilPresentTime(presentTime)
	}

	p.active.FlushRender()
	err := p.dev.Present(p.active.Display())
	switch {
	case err == nil:
		p.skippedPresents = 0
		p.stats.framesPresented.Add(1)
	case errors.Is(err, device.ErrDeviceLost):
		p.recoverFromDeviceLoss()
	case errors.Is(err, device.ErrFullscreenLost):
		Logger().Warn("exclusive fullscreen lost, switching to windowed")
		p.host.AddOSDMessage(slog.LevelWarn,
			"Exclusive fullscreen lost.", osdWarningDuration)
		req := p.lastReq
		req.Fullscreen = false
		req.Exclusive = false
		if err := p.reconfigureOnThread(req); err != nil {
			Logger().Error("windowed fallback failed", "error", err)
		}
	case errors.Is(err, device.ErrPresentFailed):
		// Transient. Count it like a skipped frame; a long run gets
		// logged so persistent failure is visible.
		p.skippedPresents++
		p.stats.framesSkipped.Add(1)
		if p.skippedPresents == maxSkippedPresents {
			Logger().Warn("presentation failing persistently", "error", err)
		}
	default:
		Logger().Warn("present failed", "error", err)
	}
}

// sleepUntilPresentTime waits out the gap to target on the [Now]
// clock: a coarse sleep that stops short, then a spin for the
// remainder, since timer wakeups overshoot by scheduler quanta.
func sleepUntilPresentTime(target int64) {
	const spinSlack = int64(500 * time.Microsecond)
	if gap := target - Now(); gap > spinSlack {
		time.Sleep(time.Duration(gap - spinSlack))
	}
	for Now() < target {
		runtime.Gosched()
	}
}

// captureOnThread renders the current display to an RGBA image, going
// through the device for displays that scan out straight from a
// texture.
func (p *Pipeline) captureOnThread(mode backend.ScreenshotMode) (*image.RGBA, error) {
	if p.active == nil {
		return nil, backend.ErrNotInitialized
	}
	p.active.FlushRender()
	d := p.active.Display()
	win := p.windowInfo.Load()
	if p.dev != nil {
		return device.CaptureDisplay(p.dev, d, mode, win.Width, win.Height)
	}
	img := d.RenderScreenshot(mode, win.Width, win.Height)
	if img == nil {
		return nil, device.ErrNoDisplayTexture
	}
	return img, nil
}
