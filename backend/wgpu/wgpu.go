// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu implements the hardware backend variant. Drawing uses
// the same deterministic scale-1 semantics as the software backend,
// operating on the shared VRAM, but the display path runs on the
// graphics device: a device-resident copy of VRAM is kept current with
// dirty-rect uploads, and 15-bit progressive displays scan out as a
// texture view straight into that copy with no CPU conversion. 24-bit,
// interlaced, and smoothed displays fall back to the CPU development
// chain and a dedicated display texture.
//
// Initialize fails when the environment carries no graphics device;
// the render thread responds by falling back to the software renderer.
package wgpu

import (
	"errors"
	"fmt"

	"github.com/yeager/psxgpu/backend"
	"github.com/yeager/psxgpu/backend/software"
	"github.com/yeager/psxgpu/cmdq"
	"github.com/yeager/psxgpu/device"
	"github.com/yeager/psxgpu/vram"
)

func init() {
	backend.Register(backend.RendererHardware, func(env *backend.Env) backend.Backend {
		return New(env)
	})
}

// ErrNoDevice is returned by Initialize when the environment's texture
// factory is not a graphics device.
var ErrNoDevice = errors.New("wgpu: no graphics device")

// Format candidates for the device-resident VRAM copy, packed formats
// first.
var vramFormats = []vram.PixelFormat{
	vram.FormatRGBA5551, vram.FormatRGB565, vram.FormatRGBA8, vram.FormatBGRA8,
}

// Hardware is the device-backed renderer.
type Hardware struct {
	*software.Software

	env *backend.Env
	dev device.Device

	// Device-resident VRAM copy and the region of it still waiting to
	// be uploaded.
	vramFmt vram.PixelFormat
	vramTex backend.Texture
	dirty   vram.Rect
	upload  []byte

	area backend.DrawingArea
}

var _ backend.Backend = (*Hardware)(nil)

// New returns an uninitialized hardware backend bound to env.
func New(env *backend.Env) *Hardware {
	return &Hardware{Software: software.New(env), env: env}
}

// IsHardware reports true: presentation sources device textures.
func (hw *Hardware) IsHardware() bool { return true }

// ResolutionScale is 1: drawing runs on the shared VRAM at native
// resolution.
func (hw *Hardware) ResolutionScale() int { return 1 }

// Initialize negotiates the VRAM copy's texture format, creates the
// copy, and initializes the CPU delegate. On failure nothing is
// modified.
func (hw *Hardware) Initialize(uploadVRAM bool) error {
	dev, ok := hw.env.Textures.(device.Device)
	if !ok {
		return ErrNoDevice
	}

	vf := vram.FormatInvalid
	for _, f := range vramFormats {
		if dev.SupportsFormat(f) {
			vf = f
			break
		}
	}
	if vf == vram.FormatInvalid {
		return fmt.Errorf("vram copy format: %w (candidates %v)", backend.ErrNoDisplayFormat, vramFormats)
	}

	tex, err := dev.CreateTexture(vram.Width, vram.Height, vf)
	if err != nil {
		return fmt.Errorf("vram copy: %w", err)
	}

	if err := hw.Software.Initialize(uploadVRAM); err != nil {
		tex.Destroy()
		return err
	}

	hw.dev = dev
	hw.vramFmt = vf
	hw.vramTex = tex
	hw.dirty = vram.RectWH(0, 0, vram.Width, vram.Height)
	hw.FlushRender()

	slogger().Info("hardware renderer initialized",
		"api", dev.API(), "adapter", dev.AdapterInfo(), "vramFormat", vf)
	return nil
}

// Shutdown releases the VRAM copy and the delegate's display
// resources.
func (hw *Hardware) Shutdown() {
	if hw.vramTex != nil {
		hw.vramTex.Destroy()
		hw.vramTex = nil
	}
	hw.dirty = vram.Rect{}
	hw.Software.Shutdown()
}

// markDirty widens the pending upload region. Rectangles that wrap a
// VRAM edge dirty the whole copy; exact wrapped extents are not worth
// tracking.
func (hw *Hardware) markDirty(x, y, w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	if x < 0 || y < 0 || x+w > vram.Width || y+h > vram.Height {
		hw.dirty = vram.RectWH(0, 0, vram.Width, vram.Height)
		return
	}
	hw.dirty = hw.dirty.Union(vram.RectWH(int32(x), int32(y), int32(w), int32(h)))
}

// markDirtyBounds dirties the part of a primitive's bounding box that
// lies inside the drawing area, which bounds every pixel a draw can
// touch.
func (hw *Hardware) markDirtyBounds(minX, minY, maxX, maxY int32) {
	r := vram.Rect{Left: minX, Top: minY, Right: maxX + 1, Bottom: maxY + 1}
	clip := vram.Rect{
		Left:   hw.area.Left,
		Top:    hw.area.Top,
		Right:  hw.area.Right + 1,
		Bottom: hw.area.Bottom + 1,
	}
	r = r.Intersect(clip)
	if r.Empty() {
		return
	}
	hw.markDirty(int(r.Left), int(r.Top), int(r.Width()), int(r.Height()))
}

func vertexBounds(verts []cmdq.Vertex) (minX, minY, maxX, maxY int32) {
	minX, minY = 1<<30, 1<<30
	maxX, maxY = -(1 << 30), -(1 << 30)
	for i := range verts {
		minX = min(minX, verts[i].X)
		maxX = max(maxX, verts[i].X)
		minY = min(minY, verts[i].Y)
		maxY = max(maxY, verts[i].Y)
	}
	return minX, minY, maxX, maxY
}

func (hw *Hardware) DrawingAreaChanged(area backend.DrawingArea) {
	hw.area = area
	hw.Software.DrawingAreaChanged(area)
}

func (hw *Hardware) FillVRAM(x, y, w, h int, color uint32, params cmdq.Params) {
	hw.Software.FillVRAM(x, y, w, h, color, params)
	hw.markDirty(x&vram.WidthMask, y&vram.HeightMask, w, h)
}

func (hw *Hardware) UpdateVRAM(x, y, w, h int, data []byte, params cmdq.Params) {
	hw.Software.UpdateVRAM(x, y, w, h, data, params)
	hw.markDirty(x&vram.WidthMask, y&vram.HeightMask, w, h)
}

func (hw *Hardware) CopyVRAM(srcX, srcY, dstX, dstY, w, h int, params cmdq.Params) {
	hw.Software.CopyVRAM(srcX, srcY, dstX, dstY, w, h, params)
	hw.markDirty(dstX&vram.WidthMask, dstY&vram.HeightMask, w, h)
}

func (hw *Hardware) DrawPolygon(cmd *cmdq.DrawPolygon) {
	hw.Software.DrawPolygon(cmd)
	minX, minY, maxX, maxY := vertexBounds(cmd.Verts)
	hw.markDirtyBounds(minX, minY, maxX, maxY)
}

func (hw *Hardware) DrawPrecisePolygon(cmd *cmdq.DrawPrecisePolygon) {
	hw.Software.DrawPrecisePolygon(cmd)
	minX, minY := int32(1<<30), int32(1<<30)
	maxX, maxY := int32(-(1 << 30)), int32(-(1 << 30))
	for i := range cmd.Verts {
		v := &cmd.Verts[i]
		minX = min(minX, v.NativeX)
		maxX = max(maxX, v.NativeX)
		minY = min(minY, v.NativeY)
		maxY = max(maxY, v.NativeY)
	}
	hw.markDirtyBounds(minX, minY, maxX, maxY)
}

func (hw *Hardware) DrawSprite(cmd *cmdq.DrawRectangle) {
	hw.Software.DrawSprite(cmd)
	hw.markDirtyBounds(cmd.X, cmd.Y, cmd.X+int32(cmd.W)-1, cmd.Y+int32(cmd.H)-1)
}

func (hw *Hardware) DrawLine(cmd *cmdq.DrawLine) {
	hw.Software.DrawLine(cmd)
	minX, minY, maxX, maxY := vertexBounds(cmd.Verts)
	hw.markDirtyBounds(minX, minY, maxX, maxY)
}

func (hw *Hardware) ClearVRAM() {
	hw.Software.ClearVRAM()
	hw.markDirty(0, 0, vram.Width, vram.Height)
}

func (hw *Hardware) LoadState(vramData, clutData []byte) {
	hw.Software.LoadState(vramData, clutData)
	hw.markDirty(0, 0, vram.Width, vram.Height)
}

// FlushRender uploads the dirty region to the device-resident VRAM
// copy. A failed upload keeps the region dirty so the next flush
// retries it.
func (hw *Hardware) FlushRender() {
	if hw.vramTex == nil || hw.dirty.Empty() {
		return
	}
	r := hw.dirty
	w, h := int(r.Width()), int(r.Height())
	stride := w * hw.vramFmt.BytesPerPixel()
	if cap(hw.upload) < h*stride {
		hw.upload = make([]byte, h*stride)
	}
	buf := hw.upload[:h*stride]
	for row := 0; row < h; row++ {
		src := hw.env.VRAM.Row(int(r.Top) + row)
		vram.ConvertRow15(hw.vramFmt, buf[row*stride:], src[r.Left:r.Right])
	}
	if err := hw.vramTex.Update(int(r.Left), int(r.Top), w, h, buf, stride); err != nil {
		slogger().Warn("vram copy upload failed", "rect", r, "error", err)
		return
	}
	hw.dirty = vram.Rect{}
}

// canScanOutDirect reports whether the display can present straight
// from the VRAM copy: a 15-bit progressive source that does not wrap
// the VRAM edges.
func (hw *Hardware) canScanOutDirect(cmd *cmdq.UpdateDisplay) bool {
	if cmd.Flags&cmdq.DisplayDisabled != 0 {
		return false
	}
	if hw.env.ShowVRAM {
		return true
	}
	if cmd.Flags&(cmdq.Display24Bit|cmdq.DisplayInterlaced) != 0 {
		return false
	}
	w, h := int(cmd.VRAMWidth), int(cmd.VRAMHeight)
	if w <= 0 || h <= 0 {
		return false
	}
	return int(cmd.VRAMLeft)+w <= vram.Width && int(cmd.VRAMTop)+h <= vram.Height
}

// UpdateDisplay selects the scan-out source. Displays the VRAM copy
// can serve directly present as a view into it after a flush;
// everything else goes through the delegate's CPU development chain.
func (hw *Hardware) UpdateDisplay(cmd *cmdq.UpdateDisplay) {
	if hw.vramTex == nil || !hw.canScanOutDirect(cmd) {
		hw.Software.UpdateDisplay(cmd)
		return
	}

	hw.FlushRender()
	d := hw.Display()
	d.SetGeometry(cmd)
	if hw.env.ShowVRAM {
		d.Width = vram.Width
		d.Height = vram.Height
		d.OriginLeft = 0
		d.OriginTop = 0
		d.VRAMWidth = vram.Width
		d.VRAMHeight = vram.Height
		d.AspectRatio = 0
		d.SetFrame(nil, 0, 0, vram.Width, vram.Height)
	} else {
		d.SetFrame(nil, int(cmd.VRAMLeft), int(cmd.VRAMTop), int(cmd.VRAMWidth), int(cmd.VRAMHeight))
	}
	d.Texture = hw.vramTex
}
