// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"fmt"

	"github.com/yeager/psxgpu/cmdq"
	"github.com/yeager/psxgpu/vram"
)

// Common backend errors.
var (
	// ErrRendererNotAvailable is returned when no factory is registered
	// for a requested renderer.
	ErrRendererNotAvailable = errors.New("backend: renderer not available")

	// ErrNoDisplayFormat is returned when format negotiation finds no
	// display format the host supports.
	ErrNoDisplayFormat = errors.New("backend: no supported display format")

	// ErrNotInitialized is returned when operations are called before
	// Initialize.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Renderer selects a backend variant.
type Renderer uint8

const (
	// RendererAuto picks the best registered variant.
	RendererAuto Renderer = iota
	// RendererHardware renders through the graphics device.
	RendererHardware
	// RendererSoftware is the scale-1, deterministic reference
	// rasterizer. It is also the fallback when hardware setup fails.
	RendererSoftware
)

func (r Renderer) String() string {
	switch r {
	case RendererAuto:
		return "auto"
	case RendererHardware:
		return "hardware"
	case RendererSoftware:
		return "software"
	}
	return fmt.Sprintf("renderer(%d)", uint8(r))
}

// ParseRenderer maps a configuration string to a Renderer.
func ParseRenderer(s string) (Renderer, error) {
	switch s {
	case "", "auto":
		return RendererAuto, nil
	case "hardware", "hw":
		return RendererHardware, nil
	case "software", "sw":
		return RendererSoftware, nil
	}
	return RendererAuto, fmt.Errorf("backend: unknown renderer %q", s)
}

// DrawingArea is the inclusive clip rectangle applied to draws. A
// degenerate area (Right < Left or Bottom < Top) clips everything.
type DrawingArea struct {
	Left, Top, Right, Bottom int32
}

// Contains reports whether the pixel (x, y) falls inside the area.
func (a DrawingArea) Contains(x, y int32) bool {
	return x >= a.Left && x <= a.Right && y >= a.Top && y <= a.Bottom
}

// Texture is a host texture owned by the graphics device. Backends
// treat it as an opaque upload target; the presenter knows how to
// draw it.
type Texture interface {
	// Size returns the texture dimensions in pixels.
	Size() (w, h int)

	// Format returns the pixel format the texture was created with.
	Format() vram.PixelFormat

	// Update replaces the rectangle (x, y, w, h) with pixels laid out
	// stride bytes per row.
	Update(x, y, w, h int, pixels []byte, stride int) error

	// Destroy releases the texture. It must not be used afterwards.
	Destroy()
}

// TextureFactory creates display textures and answers format support
// queries during display format negotiation. The graphics device
// implements it; a nil factory means headless operation and backends
// keep their frames CPU-resident.
type TextureFactory interface {
	// SupportsFormat reports whether textures of the given pixel
	// format can be created and sampled.
	SupportsFormat(f vram.PixelFormat) bool

	// CreateTexture creates a texture of the given size and format.
	CreateTexture(w, h int, f vram.PixelFormat) (Texture, error)
}

// Env is everything a backend shares with the rest of the render
// thread: the VRAM and palette memory that survive backend switches,
// the device's texture factory, and the display settings the worker
// adopts from configuration updates. All fields are mutated only on
// the render thread.
type Env struct {
	// VRAM is the canonical emulated video memory. It outlives any
	// one backend so a renderer switch can carry the contents over.
	VRAM vram.RAM

	// CLUT is the palette cache, refreshed by UpdateCLUT commands.
	CLUT *vram.CLUT

	// Textures creates display textures, or is nil when running
	// without a device.
	Textures TextureFactory

	// Deinterlace selects how interlaced fields become frames.
	Deinterlace DeinterlaceMode

	// ChromaSmoothing enables 2x2 chroma averaging of 24-bit output.
	ChromaSmoothing bool

	// ShowVRAM scans out the whole VRAM instead of the display area,
	// for debugging.
	ShowVRAM bool
}

// Backend renders the command stream. All methods run on the render
// thread; nothing here is safe for concurrent use.
type Backend interface {
	// IsHardware reports whether this backend draws through the
	// graphics device rather than on the CPU.
	IsHardware() bool

	// ResolutionScale returns the internal rendering scale. The
	// software backend is always 1.
	ResolutionScale() int

	// Initialize prepares the backend. With uploadVRAM the shared
	// VRAM contents are carried over from a previous backend;
	// otherwise VRAM starts zeroed. A failed Initialize leaves no
	// partial state behind.
	Initialize(uploadVRAM bool) error

	// Shutdown releases everything the backend owns.
	Shutdown()

	// ReadVRAM makes the rectangle's pixels visible in the shared
	// VRAM for a synchronous CPU readback.
	ReadVRAM(x, y, w, h int)

	// FillVRAM fills a rectangle with a solid color, wrapping at the
	// VRAM edges. Interlaced rendering skips the active field's lines.
	FillVRAM(x, y, w, h int, color uint32, params cmdq.Params)

	// UpdateVRAM writes w*h little-endian halfwords from data at
	// (x, y), honoring mask set/check bits.
	UpdateVRAM(x, y, w, h int, data []byte, params cmdq.Params)

	// CopyVRAM copies a rectangle within VRAM, honoring mask bits and
	// toroidal wrapping of both rectangles.
	CopyVRAM(srcX, srcY, dstX, dstY, w, h int, params cmdq.Params)

	// DrawPolygon rasterizes a triangle or quad.
	DrawPolygon(cmd *cmdq.DrawPolygon)

	// DrawPrecisePolygon rasterizes a polygon given sub-pixel vertex
	// positions.
	DrawPrecisePolygon(cmd *cmdq.DrawPrecisePolygon)

	// DrawSprite rasterizes an axis-aligned rectangle.
	DrawSprite(cmd *cmdq.DrawRectangle)

	// DrawLine rasterizes line segments, one per vertex pair.
	DrawLine(cmd *cmdq.DrawLine)

	// DrawingAreaChanged installs a new clip rectangle.
	DrawingAreaChanged(area DrawingArea)

	// UpdateCLUT refreshes the palette cache from VRAM.
	UpdateCLUT(reg vram.PaletteReg, is8Bit bool)

	// ClearCache invalidates any cached texture or palette state.
	ClearCache()

	// OnBufferSwapped is called when the emulated program flips its
	// draw buffer.
	OnBufferSwapped()

	// ClearVRAM zeroes VRAM and the palette cache.
	ClearVRAM()

	// ClearDisplay blanks the display.
	ClearDisplay()

	// UpdateDisplay selects the display source rectangle, runs the
	// readback/deinterlace/smoothing chain, and leaves the result as
	// the current display frame.
	UpdateDisplay(cmd *cmdq.UpdateDisplay)

	// LoadState replaces VRAM and palette memory verbatim with
	// little-endian halfword data.
	LoadState(vramData, clutData []byte)

	// FlushRender makes all prior drawing visible before a readback
	// or present.
	FlushRender()

	// RestoreDeviceContext re-establishes device state after overlay
	// drawing has clobbered it. CPU backends ignore it.
	RestoreDeviceContext()

	// Display exposes the display state for presentation.
	Display() *Display
}

// Dispatch decodes a backend command record and routes it to b. The
// caller guarantees rec is not a control command.
func Dispatch(b Backend, rec cmdq.Record) {
	switch rec.Type {
	case cmdq.CmdClearVRAM:
		b.ClearVRAM()
	case cmdq.CmdClearDisplay:
		b.ClearDisplay()
	case cmdq.CmdLoadState:
		b.LoadState(rec.Payload[:vram.NumBytes], rec.Payload[vram.NumBytes:vram.NumBytes+vram.CLUTSize*2])
	case cmdq.CmdClearCache:
		b.ClearCache()
	case cmdq.CmdBufferSwapped:
		b.OnBufferSwapped()
	case cmdq.CmdReadVRAM:
		c := cmdq.DecodeReadVRAM(rec.Payload)
		b.FlushRender()
		b.ReadVRAM(int(c.X), int(c.Y), int(c.W), int(c.H))
	case cmdq.CmdFillVRAM:
		c := cmdq.DecodeFillVRAM(rec.Payload)
		b.FillVRAM(int(c.X), int(c.Y), int(c.W), int(c.H), c.Color, c.Params)
	case cmdq.CmdUpdateVRAM:
		c, data := cmdq.DecodeUpdateVRAM(rec.Payload)
		b.UpdateVRAM(int(c.X), int(c.Y), int(c.W), int(c.H), data, c.Params)
	case cmdq.CmdCopyVRAM:
		c := cmdq.DecodeCopyVRAM(rec.Payload)
		b.CopyVRAM(int(c.SrcX), int(c.SrcY), int(c.DstX), int(c.DstY), int(c.W), int(c.H), c.Params)
	case cmdq.CmdSetDrawingArea:
		c := cmdq.DecodeSetDrawingArea(rec.Payload)
		b.DrawingAreaChanged(DrawingArea{
			Left:   int32(c.Left),
			Top:    int32(c.Top),
			Right:  int32(c.Right),
			Bottom: int32(c.Bottom),
		})
	case cmdq.CmdUpdateCLUT:
		c := cmdq.DecodeUpdateCLUT(rec.Payload)
		b.UpdateCLUT(vram.PaletteReg(c.Reg), c.Is8Bit)
	case cmdq.CmdDrawPolygon:
		c := cmdq.DecodeDrawPolygon(rec.Payload)
		b.DrawPolygon(&c)
	case cmdq.CmdDrawPrecisePolygon:
		c := cmdq.DecodeDrawPrecisePolygon(rec.Payload)
		b.DrawPrecisePolygon(&c)
	case cmdq.CmdDrawRectangle:
		c := cmdq.DecodeDrawRectangle(rec.Payload)
		b.DrawSprite(&c)
	case cmdq.CmdDrawLine:
		c := cmdq.DecodeDrawLine(rec.Payload)
		b.DrawLine(&c)
	case cmdq.CmdUpdateDisplay:
		c := cmdq.DecodeUpdateDisplay(rec.Payload)
		b.UpdateDisplay(&c)
	default:
		panic(fmt.Sprintf("backend: unhandled command %v", rec.Type))
	}
}
