// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"fmt"

	"github.com/yeager/psxgpu/vram"
)

// DeinterlaceBufferCount is the number of field buffers the
// deinterlacer cycles through.
const DeinterlaceBufferCount = 4

// DeinterlaceMode selects how interlaced fields become progressive
// frames.
type DeinterlaceMode uint8

const (
	// DeinterlaceDisabled presents fields as they arrive, half
	// height, letting the presenter scale them.
	DeinterlaceDisabled DeinterlaceMode = iota
	// DeinterlaceWeave accumulates both fields at their line parity
	// into a full-height frame. Sharp for static images, combs on
	// motion.
	DeinterlaceWeave
	// DeinterlaceBob line-doubles the current field.
	DeinterlaceBob
	// DeinterlaceBlend averages the two most recent line-doubled
	// fields, trading sharpness for stable motion.
	DeinterlaceBlend
)

func (m DeinterlaceMode) String() string {
	switch m {
	case DeinterlaceDisabled:
		return "disabled"
	case DeinterlaceWeave:
		return "weave"
	case DeinterlaceBob:
		return "bob"
	case DeinterlaceBlend:
		return "blend"
	}
	return "unknown"
}

// ParseDeinterlace maps a configuration string to a DeinterlaceMode.
func ParseDeinterlace(s string) (DeinterlaceMode, error) {
	switch s {
	case "", "disabled", "off":
		return DeinterlaceDisabled, nil
	case "weave":
		return DeinterlaceWeave, nil
	case "bob":
		return DeinterlaceBob, nil
	case "blend":
		return DeinterlaceBlend, nil
	}
	return DeinterlaceDisabled, fmt.Errorf("backend: unknown deinterlace mode %q", s)
}

// Deinterlacer converts interlaced display fields into progressive
// frames using a fixed ring of field buffers plus a weave
// accumulator. It is owned by a backend and used only on the render
// thread.
type Deinterlacer struct {
	mode DeinterlaceMode

	bufs    [DeinterlaceBufferCount]Frame
	current int

	weave Frame
	out   Frame

	targetW, targetH int
}

// SetMode switches the deinterlacing strategy. Buffer contents become
// meaningless across a switch; the next SetTargetSize clears them.
func (d *Deinterlacer) SetMode(m DeinterlaceMode) {
	if d.mode != m {
		d.mode = m
		d.targetW, d.targetH = 0, 0
	}
}

// Mode returns the active strategy.
func (d *Deinterlacer) Mode() DeinterlaceMode { return d.mode }

// setTargetSize reshapes the ring for full-height output frames of
// the given size. With preserve set and an unchanged geometry the
// accumulated contents survive; any geometry change clears
// everything.
func (d *Deinterlacer) setTargetSize(f vram.PixelFormat, w, h int, preserve bool) {
	if d.targetW == w && d.targetH == h && d.weave.Format == f {
		if !preserve {
			for i := range d.bufs {
				d.bufs[i].Clear()
			}
			d.weave.Clear()
		}
		return
	}
	for i := range d.bufs {
		d.bufs[i].Resize(f, w, h)
		d.bufs[i].Clear()
	}
	d.weave.Resize(f, w, h)
	d.weave.Clear()
	d.targetW, d.targetH = w, h
}

// extractField copies every (1<<lineSkip)-th row of the src view into
// dst, packing the field contiguously. It returns the number of rows
// written.
func extractField(dst *Frame, src *Frame, viewX, viewY, viewW, viewH, lineSkip int) int {
	bpp := src.Format.BytesPerPixel()
	step := 1 << lineSkip
	rows := 0
	for y := viewY; y < viewY+viewH && rows < dst.Height; y += step {
		srcRow := src.Pixels[y*src.Stride+viewX*bpp:]
		copy(dst.Row(rows), srcRow[:viewW*bpp])
		rows++
	}
	return rows
}

// Apply runs the configured strategy over the current display frame.
// src holds the field identified by field (0 or 1); with lineSkip > 0
// the view still carries both fields interleaved and the wanted one
// is extracted first. Apply returns the frame and view to present,
// which aliases either src or one of the deinterlacer's buffers until
// the next call.
func (d *Deinterlacer) Apply(src *Frame, viewX, viewY, viewW, viewH int, field, lineSkip int) (*Frame, int, int, int, int) {
	if d.mode == DeinterlaceDisabled {
		if lineSkip == 0 {
			return src, viewX, viewY, viewW, viewH
		}
		// Drop the other field so the half-height image has no comb.
		d.out.Resize(src.Format, viewW, (viewH+(1<<lineSkip)-1)>>lineSkip)
		rows := extractField(&d.out, src, viewX, viewY, viewW, viewH, lineSkip)
		return &d.out, 0, 0, viewW, rows
	}

	fieldH := viewH >> lineSkip
	if fieldH == 0 {
		return src, viewX, viewY, viewW, viewH
	}
	fullH := fieldH * 2
	d.setTargetSize(src.Format, viewW, fullH, true)

	fieldBuf := &d.bufs[d.current]
	// The ring buffers are full height; the field occupies the top
	// half during extraction.
	rows := extractField(fieldBuf, src, viewX, viewY, viewW, viewH, lineSkip)
	prev := (d.current + DeinterlaceBufferCount - 1) % DeinterlaceBufferCount
	d.current = (d.current + 1) % DeinterlaceBufferCount

	bpp := src.Format.BytesPerPixel()
	rowBytes := viewW * bpp

	switch d.mode {
	case DeinterlaceWeave:
		for y := 0; y < rows; y++ {
			dst := y*2 + field
			if dst >= fullH {
				break
			}
			copy(d.weave.Row(dst)[:rowBytes], fieldBuf.Row(y)[:rowBytes])
		}
		return &d.weave, 0, 0, viewW, fullH

	case DeinterlaceBob:
		d.out.Resize(src.Format, viewW, fullH)
		for y := 0; y < rows; y++ {
			line := fieldBuf.Row(y)[:rowBytes]
			copy(d.out.Row(y*2)[:rowBytes], line)
			copy(d.out.Row(y*2+1)[:rowBytes], line)
		}
		return &d.out, 0, 0, viewW, fullH

	case DeinterlaceBlend:
		prevBuf := &d.bufs[prev]
		d.out.Resize(src.Format, viewW, fullH)
		for y := 0; y < rows; y++ {
			cur := fieldBuf.Row(y)
			old := prevBuf.Row(y)
			out := d.out.Row(y * 2)
			if src.Format.Is16Bit() {
				for x := 0; x < viewW; x++ {
					a := uint32(le16(cur[x*2:]))
					b := uint32(le16(old[x*2:]))
					put16(out[x*2:], uint16(averagePixel(src.Format, a, b)))
				}
			} else {
				for x := 0; x < viewW; x++ {
					a := le32(cur[x*4:])
					b := le32(old[x*4:])
					put32(out[x*4:], averagePixel(src.Format, a, b))
				}
			}
			copy(d.out.Row(y*2+1)[:rowBytes], out[:rowBytes])
		}
		return &d.out, 0, 0, viewW, fullH
	}

	return src, viewX, viewY, viewW, viewH
}
