// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package psxgpu

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yeager/psxgpu/backend"
	"github.com/yeager/psxgpu/cmdq"
	"github.com/yeager/psxgpu/device"
	"github.com/yeager/psxgpu/vram"
)

// wakeThresholdBytes is how much may accumulate in the command ring
// before an asynchronous push wakes the render thread. Batching below
// the threshold keeps the producer out of the futex path on short
// command bursts; synchronizing operations always wake.
const wakeThresholdBytes = 64 * 1024

// shaderCacheVersion tags on-disk shader caches; bump it when pipeline
// layouts change incompatibly.
const shaderCacheVersion = "1"

var clockEpoch = time.Now()

// Now returns nanoseconds on the pipeline's monotonic presentation
// clock, the time base for [cmdq.UpdateDisplay].PresentTime.
func Now() int64 { return int64(time.Since(clockEpoch)) }

// Pipeline runs a render thread fed by a single-producer command ring.
// The emulation thread queues commands through the typed methods below;
// the render thread executes them against the configured backend and
// device.
//
// All command-queueing methods, Sync, Reconfigure, UpdateSettings and
// Shutdown must be called from one goroutine, the producer. Accessors
// (Stats, WindowInfo, GetRequestedRenderer) are safe anywhere.
type Pipeline struct {
	buf    *cmdq.Buffer
	waker  *cmdq.Waker
	frames *backend.FrameQueue
	host   Host

	// env is shared with the active backend. After Start the render
	// thread owns its mutable fields; the producer changes them only
	// through RunOnThread.
	env backend.Env

	// settings is the resolved configuration last applied. Producer
	// owned.
	settings ResolvedSettings

	// asyncCalls backs CmdAsyncCall records. Closures cannot travel
	// through the byte ring, so they queue here and the ring record
	// marks their place in command order.
	asyncMu    sync.Mutex
	asyncCalls []func()

	// Reconfigure request and result slot. The synchronizing barrier
	// around CmdReconfigure orders access: the producer writes the
	// request before publishing and reads the error after the barrier.
	reconfigReq ReconfigureRequest
	reconfigErr error

	requestedRenderer atomic.Uint32
	runIdle           atomic.Bool
	windowInfo        atomic.Pointer[RenderWindowInfo]
	stats             Stats

	started atomic.Bool
	running atomic.Bool
	done    chan struct{}

	// Render-thread state. Only the worker goroutine touches the
	// fields below after Start.
	active          backend.Backend
	dev             device.Device
	lastReq         ReconfigureRequest
	skippedPresents int
	lastDeviceLoss  time.Time
	deviceDead      bool
}

// New builds a pipeline from the given settings. The host may be nil
// for headless operation. The render thread is not started; call Start.
func New(host Host, s Settings) (*Pipeline, error) {
	r, err := s.Resolve()
	if err != nil {
		return nil, err
	}
	if host == nil {
		host = NopHost{}
	}
	p := &Pipeline{
		waker:    cmdq.NewWaker(),
		frames:   backend.NewFrameQueue(r.MaxQueuedFrames),
		host:     host,
		settings: r,
		env: backend.Env{
			VRAM:            vram.New(),
			CLUT:            new(vram.CLUT),
			Deinterlace:     r.Deinterlace,
			ChromaSmoothing: r.ChromaSmoothing,
			ShowVRAM:        r.ShowVRAM,
		},
		done: make(chan struct{}),
	}
	p.buf = cmdq.NewBuffer(r.CommandBufferSize, p.waker.Wake)
	p.windowInfo.Store(&RenderWindowInfo{})
	p.requestedRenderer.Store(uint32(r.Renderer))
	return p, nil
}

// Start launches the render thread and brings up the configured
// renderer and device. A hardware renderer that falls back to software
// is not an error; Start fails only when no renderer could be brought
// up at all. The pipeline keeps running after a failed Start so the
// caller can Reconfigure with different settings or shut down. A
// pipeline is one-shot: once shut down it cannot be started again.
func (p *Pipeline) Start() error {
	if !p.started.CompareAndSwap(false, true) {
		return errors.New("pipeline already started")
	}
	p.running.Store(true)
	go p.run()
	return p.Reconfigure(p.reconfigureRequest())
}

// reconfigureRequest derives a device bring-up request from the
// current settings.
func (p *Pipeline) reconfigureRequest() ReconfigureRequest {
	return ReconfigureRequest{
		Renderer:        p.settings.Renderer,
		API:             p.settings.API,
		Fullscreen:      p.settings.Fullscreen,
		Exclusive:       p.settings.ExclusiveFullscreen,
		VSync:           p.settings.VSync,
		DisableFeatures: p.settings.DisableFeatures,
		ShaderCacheDir:  p.settings.ShaderCacheDir,
	}
}

// Shutdown stops the render thread and tears down the backend, device
// and window. The command ring must be otherwise idle: Shutdown is the
// final producer operation.
func (p *Pipeline) Shutdown() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	rec := p.buf.Allocate(cmdq.CmdShutdown, 0)
	p.buf.Publish(rec)
	p.waker.Wake()
	<-p.done
}

// VRAM returns the shared VRAM mirror. It is only safe to read after a
// synchronizing operation (ReadVRAM, Sync) and until the next command
// is queued.
func (p *Pipeline) VRAM() vram.RAM { return p.env.VRAM }

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() StatsSnapshot { return p.stats.Snapshot() }

// WindowInfo returns the most recently published render surface state.
func (p *Pipeline) WindowInfo() RenderWindowInfo { return *p.windowInfo.Load() }

// GetRequestedRenderer reports the renderer the pipeline currently
// considers configured. A hardware request that fell back to software
// reports software.
func (p *Pipeline) GetRequestedRenderer() backend.Renderer {
	return backend.Renderer(p.requestedRenderer.Load())
}

// push helpers. Producer only.

func (p *Pipeline) pushAsync(rec cmdq.Record) {
	p.buf.Publish(rec)
	if p.buf.PendingBytes() >= wakeThresholdBytes {
		p.waker.Wake()
	}
}

func (p *Pipeline) pushAndWake(rec cmdq.Record) {
	p.buf.Publish(rec)
	p.waker.Wake()
}

func (p *Pipeline) pushAndSync(rec cmdq.Record) {
	p.buf.Publish(rec)
	p.waker.Wake()
	p.waker.SyncWait(p.settings.SyncSpinWait)
}

// Sync blocks until the render thread has drained everything published
// so far.
func (p *Pipeline) Sync() {
	p.waker.Wake()
	p.waker.SyncWait(p.settings.SyncSpinWait)
}

// RunOnThread queues fn for execution on the render thread, ordered
// with the surrounding commands. Like all queueing methods it may only
// be called from the producer goroutine.
func (p *Pipeline) RunOnThread(fn func()) {
	p.asyncMu.Lock()
	p.asyncCalls = append(p.asyncCalls, fn)
	p.asyncMu.Unlock()
	p.pushAndWake(p.buf.Allocate(cmdq.CmdAsyncCall, 0))
}

// ReconfigureRequest names the renderer and device configuration a
// Reconfigure should bring up.
type ReconfigureRequest struct {
	Renderer backend.Renderer
	API      device.RenderAPI

	Fullscreen bool
	Exclusive  bool
	VSync      bool

	// DisableFeatures force-disables device capabilities.
	DisableFeatures device.Feature
	// ShaderCacheDir holds compiled shaders across runs.
	ShaderCacheDir string
}

// Reconfigure switches renderer, device API or display mode on the
// render thread and blocks until the switch has finished. Emulated
// VRAM carries across the switch whenever a backend was already up.
//
// A failed hardware bring-up falls back to software and still returns
// nil; GetRequestedRenderer then reports the fallback. A request that
// cannot be satisfied at all leaves the previous renderer and device
// untouched when possible, or tears both down when the failure hit
// halfway, and returns the error.
func (p *Pipeline) Reconfigure(req ReconfigureRequest) error {
	p.reconfigReq = req
	p.reconfigErr = nil
	rec := p.buf.Allocate(cmdq.CmdReconfigure, 0)
	p.buf.Publish(rec)
	p.waker.Wake()
	p.waker.SyncWait(false)
	return p.reconfigErr
}

// UpdateSettings applies a new configuration. Renderer, API and
// fullscreen changes reconfigure synchronously; display processing
// options apply asynchronously on the render thread. Queue sizing
// (buffer size, queued frame bound) only takes effect at construction.
func (p *Pipeline) UpdateSettings(s Settings) error {
	r, err := s.Resolve()
	if err != nil {
		return err
	}
	old := p.settings
	p.settings = r
	if r.Renderer != old.Renderer || r.API != old.API ||
		r.Fullscreen != old.Fullscreen || r.ExclusiveFullscreen != old.ExclusiveFullscreen ||
		r.DisableFeatures != old.DisableFeatures || r.ShaderCacheDir != old.ShaderCacheDir {
		return p.Reconfigure(p.reconfigureRequest())
	}
	if r.VSync != old.VSync {
		p.SetVSync(r.VSync)
	}
	if r.Deinterlace != old.Deinterlace || r.ChromaSmoothing != old.ChromaSmoothing ||
		r.ShowVRAM != old.ShowVRAM {
		p.RunOnThread(func() {
			p.env.Deinterlace = r.Deinterlace
			p.env.ChromaSmoothing = r.ChromaSmoothing
			p.env.ShowVRAM = r.ShowVRAM
		})
	}
	return nil
}

// SetVSync switches presentation pacing without a full reconfigure.
func (p *Pipeline) SetVSync(enabled bool) {
	p.settings.VSync = enabled
	p.RunOnThread(func() {
		if p.dev != nil {
			p.dev.SetVSync(enabled)
		}
	})
}

// SetRunIdle makes the render thread keep presenting at a throttled
// cadence while the queue is empty, instead of sleeping. The system
// menu uses it to keep the screen live while emulation is paused.
func (p *Pipeline) SetRunIdle(enabled bool) {
	p.runIdle.Store(enabled)
	if enabled {
		p.waker.Wake()
	}
}

// ResizeDisplayWindow resizes the swapchain after a host window
// resize.
func (p *Pipeline) ResizeDisplayWindow(w, h int) {
	p.RunOnThread(func() {
		if p.dev == nil {
			return
		}
		if err := p.dev.ResizeSwapchain(w, h); err != nil {
			Logger().Warn("swapchain resize failed", "width", w, "height", h, "error", err)
			if errors.Is(err, device.ErrDeviceLost) {
				p.recoverFromDeviceLoss()
				return
			}
		}
		info := *p.windowInfo.Load()
		info.Width, info.Height = w, h
		p.windowInfo.Store(&info)
	})
}

// Screenshot renders the current display to an image on the render
// thread and returns it.
func (p *Pipeline) Screenshot(mode backend.ScreenshotMode) (*image.RGBA, error) {
	var img *image.RGBA
	var err error
	p.RunOnThread(func() { img, err = p.captureOnThread(mode) })
	p.Sync()
	return img, err
}

// Command producers. All push typed payloads into the ring; see cmdq
// for the wire formats.

// FillVRAM queues a solid fill of a VRAM rectangle.
func (p *Pipeline) FillVRAM(c cmdq.FillVRAM) {
	rec := p.buf.Allocate(cmdq.CmdFillVRAM, cmdq.FillVRAMSize)
	c.Encode(rec.Payload)
	p.pushAsync(rec)
}

// UpdateVRAM queues an upload of W*H halfwords of pixel data to VRAM.
// data must hold at least that much.
func (p *Pipeline) UpdateVRAM(c cmdq.UpdateVRAM, data []byte) {
	n := int(c.W) * int(c.H) * 2
	rec := p.buf.Allocate(cmdq.CmdUpdateVRAM, cmdq.UpdateVRAMSize+n)
	c.Encode(rec.Payload)
	copy(rec.Payload[cmdq.UpdateVRAMSize:], data[:n])
	p.pushAsync(rec)
}

// CopyVRAM queues a VRAM-to-VRAM rectangle copy.
func (p *Pipeline) CopyVRAM(c cmdq.CopyVRAM) {
	rec := p.buf.Allocate(cmdq.CmdCopyVRAM, cmdq.CopyVRAMSize)
	c.Encode(rec.Payload)
	p.pushAsync(rec)
}

// SetDrawingArea queues a change of the inclusive draw clip rectangle.
func (p *Pipeline) SetDrawingArea(c cmdq.SetDrawingArea) {
	rec := p.buf.Allocate(cmdq.CmdSetDrawingArea, cmdq.SetDrawingAreaSize)
	c.Encode(rec.Payload)
	p.pushAsync(rec)
}

// UpdateCLUT queues a palette cache refresh.
func (p *Pipeline) UpdateCLUT(c cmdq.UpdateCLUT) {
	rec := p.buf.Allocate(cmdq.CmdUpdateCLUT, cmdq.UpdateCLUTSize)
	c.Encode(rec.Payload)
	p.pushAsync(rec)
}

// DrawPolygon queues a polygon draw.
func (p *Pipeline) DrawPolygon(c *cmdq.DrawPolygon) {
	rec := p.buf.Allocate(cmdq.CmdDrawPolygon, cmdq.PolygonSize(len(c.Verts)))
	c.Encode(rec.Payload)
	p.pushAsync(rec)
}

// DrawPrecisePolygon queues a polygon draw with subpixel vertices.
func (p *Pipeline) DrawPrecisePolygon(c *cmdq.DrawPrecisePolygon) {
	rec := p.buf.Allocate(cmdq.CmdDrawPrecisePolygon, cmdq.PrecisePolygonSize(len(c.Verts)))
	c.Encode(rec.Payload)
	p.pushAsync(rec)
}

// DrawSprite queues a rectangle draw.
func (p *Pipeline) DrawSprite(c *cmdq.DrawRectangle) {
	rec := p.buf.Allocate(cmdq.CmdDrawRectangle, cmdq.DrawRectangleSize)
	c.Encode(rec.Payload)
	p.pushAsync(rec)
}

// DrawLine queues a line strip draw.
func (p *Pipeline) DrawLine(c *cmdq.DrawLine) {
	rec := p.buf.Allocate(cmdq.CmdDrawLine, cmdq.LineSize(len(c.Verts)))
	c.Encode(rec.Payload)
	p.pushAsync(rec)
}

// ClearVRAM queues a full VRAM clear.
func (p *Pipeline) ClearVRAM() {
	p.pushAsync(p.buf.Allocate(cmdq.CmdClearVRAM, 0))
}

// ClearDisplay queues a blank of the displayed frame.
func (p *Pipeline) ClearDisplay() {
	p.pushAsync(p.buf.Allocate(cmdq.CmdClearDisplay, 0))
}

// ClearCache queues a texture and palette cache flush.
func (p *Pipeline) ClearCache() {
	p.pushAsync(p.buf.Allocate(cmdq.CmdClearCache, 0))
}

// BufferSwapped tells the backend the emulated display buffer flipped.
func (p *Pipeline) BufferSwapped() {
	p.pushAsync(p.buf.Allocate(cmdq.CmdBufferSwapped, 0))
}

// LoadState replaces VRAM and the palette cache, for save-state
// restore. vramData must hold vram.NumBytes; clutData holds
// vram.CLUTSize little-endian halfwords and may be empty.
func (p *Pipeline) LoadState(vramData, clutData []byte) {
	rec := p.buf.Allocate(cmdq.CmdLoadState, vram.NumBytes+vram.CLUTSize*2)
	copy(rec.Payload, vramData)
	copy(rec.Payload[vram.NumBytes:], clutData)
	p.pushAndWake(rec)
}

// ReadVRAM drains the queue through the named rectangle and brings the
// shared VRAM mirror up to date. On return the producer may read
// [Pipeline.VRAM] directly until it queues the next command.
func (p *Pipeline) ReadVRAM(x, y, w, h int) {
	rec := p.buf.Allocate(cmdq.CmdReadVRAM, cmdq.ReadVRAMSize)
	cmdq.ReadVRAM{X: uint16(x), Y: uint16(y), W: uint16(w), H: uint16(h)}.Encode(rec.Payload)
	p.pushAndSync(rec)
}

// UpdateDisplay queues a scan-out geometry change and, when the
// PresentFrame flag is set, a presentation. With a bounded frame queue
// the call blocks while too many presents are in flight.
func (p *Pipeline) UpdateDisplay(c *cmdq.UpdateDisplay) {
	wait := false
	if c.Flags.PresentFrame() {
		wait = p.frames.BeginQueue()
	}
	rec := p.buf.Allocate(cmdq.CmdUpdateDisplay, cmdq.UpdateDisplaySize)
	c.Encode(rec.Payload)
	p.pushAndWake(rec)
	if wait {
		p.frames.WaitForOne()
	}
}
