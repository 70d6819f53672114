// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"math"

	"github.com/yeager/psxgpu/cmdq"
	"github.com/yeager/psxgpu/vram"
)

// Display is the shared display state a backend maintains for the
// presenter: the timing-derived geometry from the last display
// update, and the current scan-out source as both a CPU frame and the
// device texture it was uploaded to.
type Display struct {
	// Width and Height are the full display dimensions including
	// borders; OriginLeft/OriginTop place the active area within
	// them. VRAMWidth/VRAMHeight are the active area's size.
	Width, Height         int
	OriginLeft, OriginTop int
	VRAMWidth, VRAMHeight int
	AspectRatio           float32

	// Frame is the CPU copy of the current scan-out source, or nil
	// when the display is cleared or disabled.
	Frame *Frame

	// Texture holds Frame's pixels on the device, or nil when
	// headless or cleared.
	Texture Texture

	// View is the rectangle of Frame/Texture being scanned out.
	ViewX, ViewY, ViewWidth, ViewHeight int
}

// SetGeometry adopts the timing-derived fields of a display update.
func (d *Display) SetGeometry(cmd *cmdq.UpdateDisplay) {
	d.Width = int(cmd.Width)
	d.Height = int(cmd.Height)
	d.OriginLeft = int(cmd.OriginLeft)
	d.OriginTop = int(cmd.OriginTop)
	d.VRAMWidth = int(cmd.VRAMWidth)
	d.VRAMHeight = int(cmd.VRAMHeight)
	d.AspectRatio = cmd.AspectRatio
}

// SetFrame installs the scan-out source.
func (d *Display) SetFrame(f *Frame, viewX, viewY, viewW, viewH int) {
	d.Frame = f
	d.ViewX = viewX
	d.ViewY = viewY
	d.ViewWidth = viewW
	d.ViewHeight = viewH
}

// ClearFrame drops the scan-out source; the presenter shows black
// until the next display update.
func (d *Display) ClearFrame() {
	d.Frame = nil
	d.Texture = nil
}

// HasFrame reports whether there is anything to present.
func (d *Display) HasFrame() bool { return d.Frame != nil || d.Texture != nil }

// CalculateDrawRect computes where the display lands in a window:
// displayRect is the full display area (including borders) after
// scaling and centering, drawRect is the active region inside it
// where the current texture is drawn. With applyAspect false the
// display is stretched square-pixel instead of using the timing
// aspect ratio.
func (d *Display) CalculateDrawRect(windowW, windowH int, applyAspect bool) (displayRect, drawRect vram.Rect) {
	if d.Width <= 0 || d.Height <= 0 || windowW <= 0 || windowH <= 0 {
		r := vram.RectWH(0, 0, int32(windowW), int32(windowH))
		return r, r
	}

	dispW := float64(d.Width)
	dispH := float64(d.Height)
	ratio := dispW / dispH
	if applyAspect && d.AspectRatio > 0 {
		ratio = float64(d.AspectRatio)
	}

	boxW := float64(windowW)
	boxH := boxW / ratio
	if boxH > float64(windowH) {
		boxH = float64(windowH)
		boxW = boxH * ratio
	}
	left := (float64(windowW) - boxW) / 2
	top := (float64(windowH) - boxH) / 2

	displayRect = vram.Rect{
		Left:   int32(math.Round(left)),
		Top:    int32(math.Round(top)),
		Right:  int32(math.Round(left + boxW)),
		Bottom: int32(math.Round(top + boxH)),
	}

	activeW := float64(d.VRAMWidth)
	activeH := float64(d.VRAMHeight)
	if activeW <= 0 || activeH <= 0 {
		return displayRect, displayRect
	}
	ax := left + float64(d.OriginLeft)/dispW*boxW
	ay := top + float64(d.OriginTop)/dispH*boxH
	aw := activeW / dispW * boxW
	ah := activeH / dispH * boxH
	drawRect = vram.Rect{
		Left:   int32(math.Round(ax)),
		Top:    int32(math.Round(ay)),
		Right:  int32(math.Round(ax + aw)),
		Bottom: int32(math.Round(ay + ah)),
	}
	return displayRect, drawRect
}
