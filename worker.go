// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package psxgpu

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/yeager/psxgpu/backend"
	"github.com/yeager/psxgpu/cmdq"
	"github.com/yeager/psxgpu/device"
	"github.com/yeager/psxgpu/vram"
)

// deviceLossCooldown is the minimum spacing between device loss
// recoveries. A second loss inside the window means recovery is not
// working; the pipeline then drops to headless software rendering
// instead of thrashing the driver.
const deviceLossCooldown = 15 * time.Second

// idlePresentInterval paces idle-run presents so a paused emulator
// does not spin the render thread. Short enough that a wake arriving
// mid-sleep is handled promptly.
const idlePresentInterval = 8 * time.Millisecond

// run is the render thread. It stays on one OS thread for the lifetime
// of the pipeline since graphics devices bind their context to the
// creating thread.
func (p *Pipeline) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(p.done)

	for {
		if !p.drainOnThread() {
			p.teardownOnThread()
			return
		}
		if p.waker.TrySleep(!p.runIdle.Load()) {
			continue
		}
		p.idleOnThread()
	}
}

// drainOnThread executes every record published so far, acknowledging
// each one as it completes. It returns false once it has consumed a
// shutdown record.
func (p *Pipeline) drainOnThread() bool {
	for {
		read := p.buf.ReadCursor()
		write := p.buf.WriteCursor()
		if write < read {
			// The producer wrapped: the tail up to capacity ends in a
			// wraparound sentinel.
			write = p.buf.Capacity()
		}
		if read == write {
			return true
		}
		p.stats.observeQueued(uint64(p.buf.PendingBytes()))
		for read < write {
			rec := p.buf.RecordAt(read)
			if rec.Type == cmdq.CmdWraparound {
				// Acknowledge before restarting at zero so the
				// producer stops waiting on tail space immediately.
				read = 0
				p.buf.PublishRead(0)
				break
			}
			read += rec.Size()
			if rec.Type == cmdq.CmdShutdown {
				p.buf.PublishRead(read)
				p.stats.commandsProcessed.Add(1)
				if n := p.buf.PendingBytes(); n != 0 {
					panic(fmt.Sprintf("psxgpu: shutdown with %d bytes still queued", n))
				}
				return false
			}
			p.execOnThread(rec)
			// The payload lives in the ring; release its space only
			// after execution.
			p.buf.PublishRead(read)
			p.stats.commandsProcessed.Add(1)
		}
	}
}

func (p *Pipeline) execOnThread(rec cmdq.Record) {
	switch rec.Type {
	case cmdq.CmdAsyncCall:
		p.asyncMu.Lock()
		fn := p.asyncCalls[0]
		p.asyncCalls = p.asyncCalls[1:]
		if len(p.asyncCalls) == 0 {
			p.asyncCalls = nil
		}
		p.asyncMu.Unlock()
		fn()
	case cmdq.CmdReconfigure:
		p.reconfigErr = p.reconfigureOnThread(p.reconfigReq)
	case cmdq.CmdUpdateDisplay:
		c := cmdq.DecodeUpdateDisplay(rec.Payload)
		if p.active != nil {
			p.active.UpdateDisplay(&c)
		}
		if c.Flags.PresentFrame() {
			p.presentOnThread(c.Flags.AllowSkip(), c.PresentTime)
			p.frames.FrameDone()
		}
	default:
		if p.active == nil {
			Logger().Debug("dropping command, no active backend", "type", rec.Type.String())
			return
		}
		backend.Dispatch(p.active, rec)
	}
}

// idleOnThread runs one iteration of idle-run mode: re-present the
// last frame at a throttled cadence so OSD and menus stay live while
// emulation is paused. It never blocks on the waker.
func (p *Pipeline) idleOnThread() {
	if p.active != nil && p.active.Display().HasFrame() {
		p.presentOnThread(false, 0)
	}
	time.Sleep(idlePresentInterval)
}

// teardownOnThread releases everything the render thread owns, in
// reverse dependency order, and unblocks a producer stuck in a
// synchronizing wait.
func (p *Pipeline) teardownOnThread() {
	if p.active != nil {
		p.active.Shutdown()
		p.active = nil
	}
	if p.dev != nil {
		p.dev.WaitIdle()
		p.dev.Destroy()
		p.dev = nil
		p.env.Textures = nil
		p.host.ReleaseRenderWindow()
	}
	p.waker.NudgeDone()
}

// reconfigureOnThread brings up the renderer and device named by req,
// tearing down whatever ran before. Emulated VRAM carries across
// whenever a backend was already up. On total failure both backend and
// device end up absent so the states cannot diverge.
func (p *Pipeline) reconfigureOnThread(req ReconfigureRequest) error {
	want := backend.Resolve(req.Renderer)
	if !backend.IsRegistered(want) {
		// Nothing was touched; the previous configuration keeps
		// running.
		return fmt.Errorf("%w: %v", backend.ErrRendererNotAvailable, want)
	}

	// Bring the CPU mirror up to date before the old backend goes
	// away, then let the new one upload it.
	uploadVRAM := false
	if p.active != nil {
		p.active.FlushRender()
		p.active.ReadVRAM(0, 0, vram.Width, vram.Height)
		p.active.Shutdown()
		p.active = nil
		uploadVRAM = true
	}

	needDevice := p.dev == nil ||
		(req.API != device.APIAuto && p.dev.API() != req.API) ||
		req.Fullscreen != p.lastReq.Fullscreen ||
		req.Exclusive != p.lastReq.Exclusive ||
		req.DisableFeatures != p.lastReq.DisableFeatures
	if needDevice && p.dev != nil {
		p.dev.WaitIdle()
		p.dev.Destroy()
		p.dev = nil
		p.env.Textures = nil
		p.host.ReleaseRenderWindow()
	}
	if p.dev == nil {
		win, err := p.host.AcquireRenderWindow(req.API, req.Fullscreen, req.Exclusive)
		if err != nil {
			return fmt.Errorf("acquire render window: %w", err)
		}
		dev, err := device.Create(req.API, &device.CreateOptions{
			WindowWidth:        win.Width,
			WindowHeight:       win.Height,
			Fullscreen:         req.Fullscreen,
			Exclusive:          req.Exclusive,
			VSync:              req.VSync,
			DisableFeatures:    req.DisableFeatures,
			ShaderCacheDir:     req.ShaderCacheDir,
			ShaderCacheVersion: shaderCacheVersion,
		})
		if err != nil {
			p.host.ReleaseRenderWindow()
			return fmt.Errorf("create device: %w", err)
		}
		p.dev = dev
		p.env.Textures = dev
		p.publishWindowInfoOnThread(win)
	} else if p.dev.VSyncEnabled() != req.VSync {
		p.dev.SetVSync(req.VSync)
	}

	b, err := p.createBackendOnThread(want, uploadVRAM)
	if err != nil && want == backend.RendererHardware {
		Logger().Warn("hardware renderer unavailable, falling back to software",
			"error", err)
		p.host.AddOSDMessage(slog.LevelWarn,
			"Hardware renderer unavailable, using software rendering.", osdWarningDuration)
		want = backend.RendererSoftware
		b, err = p.createBackendOnThread(want, uploadVRAM)
	}
	if err != nil {
		p.dev.WaitIdle()
		p.dev.Destroy()
		p.dev = nil
		p.env.Textures = nil
		p.host.ReleaseRenderWindow()
		return err
	}

	p.active = b
	p.lastReq = req
	p.skippedPresents = 0
	p.requestedRenderer.Store(uint32(want))
	Logger().Info("renderer configured",
		"renderer", want.String(),
		"api", p.dev.API().String(),
		"adapter", p.dev.AdapterInfo().String())
	return nil
}

func (p *Pipeline) createBackendOnThread(r backend.Renderer, uploadVRAM bool) (backend.Backend, error) {
	b, err := backend.New(r, &p.env)
	if err != nil {
		return nil, err
	}
	if err := b.Initialize(uploadVRAM); err != nil {
		b.Shutdown()
		return nil, err
	}
	return b, nil
}

func (p *Pipeline) publishWindowInfoOnThread(win RenderWindowInfo) {
	info := win
	p.windowInfo.Store(&info)
}

// recoverFromDeviceLoss tears the lost device down and recreates the
// last configuration. Losses arriving faster than the cooldown mean
// recovery does not stick, so the pipeline drops to headless software
// rendering permanently rather than looping through driver resets.
func (p *Pipeline) recoverFromDeviceLoss() {
	if p.deviceDead {
		return
	}
	now := time.Now()
	if !p.lastDeviceLoss.IsZero() && now.Sub(p.lastDeviceLoss) < deviceLossCooldown {
		Logger().Error("graphics device lost again within cooldown, disabling device output")
		p.host.AddOSDMessage(slog.LevelError,
			"Graphics device lost repeatedly. Display output disabled.", osdCriticalDuration)
		p.dropToHeadlessOnThread()
		return
	}
	p.lastDeviceLoss = now

	Logger().Warn("graphics device lost, recreating")
	// Drop the dead handle first so reconfigure creates a fresh device
	// instead of reusing it. The backend stays up until then: its
	// presence is what carries VRAM across the switch. No WaitIdle on a
	// lost device; there is nothing left to wait for.
	if p.dev != nil {
		p.dev.Destroy()
		p.dev = nil
		p.env.Textures = nil
		p.host.ReleaseRenderWindow()
	}
	if err := p.reconfigureOnThread(p.lastReq); err != nil {
		Logger().Error("device loss recovery failed", "error", err)
		p.host.AddOSDMessage(slog.LevelError,
			"Graphics device could not be recovered. Display output disabled.", osdCriticalDuration)
		p.dropToHeadlessOnThread()
		return
	}
	p.host.AddOSDMessage(slog.LevelWarn,
		"Graphics device was lost and has been recovered.", osdWarningDuration)
}

// dropToHeadlessOnThread abandons the device and keeps emulation alive
// on the software renderer with no presentation.
func (p *Pipeline) dropToHeadlessOnThread() {
	p.deviceDead = true
	if p.active != nil {
		p.active.FlushRender()
		p.active.ReadVRAM(0, 0, vram.Width, vram.Height)
		p.active.Shutdown()
		p.active = nil
	}
	if p.dev != nil {
		p.dev.Destroy()
		p.dev = nil
		p.env.Textures = nil
		p.host.ReleaseRenderWindow()
	}
	b, err := p.createBackendOnThread(backend.RendererSoftware, true)
	if err != nil {
		// Software with no texture factory cannot fail format
		// negotiation, so this is unreachable short of exhaustion.
		Logger().Error("headless software fallback failed", "error", err)
		return
	}
	p.active = b
	p.requestedRenderer.Store(uint32(backend.RendererSoftware))
}
