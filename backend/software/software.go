// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package software implements the reference rasterizer backend: a
// fixed scale-1 renderer with deterministic per-pixel semantics,
// operating directly on the shared VRAM. It is the ground truth other
// renderers are compared against and the fallback when hardware setup
// fails.
//
// Drawing runs entirely on the CPU; the only device interaction is
// uploading the developed display frame to a texture for presentation.
// Without a texture factory the backend is fully functional and keeps
// its frames CPU-resident.
package software

import (
	"encoding/binary"
	"fmt"

	"github.com/yeager/psxgpu/backend"
	"github.com/yeager/psxgpu/cmdq"
	"github.com/yeager/psxgpu/vram"
)

func init() {
	backend.Register(backend.RendererSoftware, func(env *backend.Env) backend.Backend {
		return New(env)
	})
}

// Software is the reference rasterizer. All methods run on the render
// thread.
type Software struct {
	env  *backend.Env
	area backend.DrawingArea

	// Negotiated display formats for 16-bit and 24-bit scan-out.
	fmt16 vram.PixelFormat
	fmt24 vram.PixelFormat

	read   backend.Frame
	deint  backend.Deinterlacer
	chroma backend.ChromaSmoother
	disp   backend.Display
	tex    backend.Texture
	span   []uint16

	initialized bool
}

var _ backend.Backend = (*Software)(nil)

// New returns an uninitialized software backend bound to env.
func New(env *backend.Env) *Software {
	return &Software{env: env}
}

// IsHardware reports false: the software backend draws on the CPU.
func (s *Software) IsHardware() bool { return false }

// ResolutionScale is always 1 for the software backend.
func (s *Software) ResolutionScale() int { return 1 }

// Display format candidates in negotiation priority order.
var (
	formats16 = []vram.PixelFormat{
		vram.FormatRGBA5551, vram.FormatRGB565, vram.FormatRGBA8, vram.FormatBGRA8,
	}
	formats24 = []vram.PixelFormat{
		vram.FormatRGBA8, vram.FormatBGRA8, vram.FormatRGB565, vram.FormatRGBA5551,
	}
)

func negotiateFormat(tf backend.TextureFactory, candidates []vram.PixelFormat) (vram.PixelFormat, error) {
	if tf == nil {
		// Headless: frames stay CPU-resident, any format works.
		return candidates[0], nil
	}
	for _, f := range candidates {
		if tf.SupportsFormat(f) {
			return f, nil
		}
	}
	return vram.FormatInvalid, fmt.Errorf("%w (candidates %v)", backend.ErrNoDisplayFormat, candidates)
}

// Initialize negotiates the display formats and prepares VRAM. With
// uploadVRAM the shared contents carry over from a previous backend;
// otherwise VRAM starts zeroed. On failure nothing is modified.
func (s *Software) Initialize(uploadVRAM bool) error {
	f16, err := negotiateFormat(s.env.Textures, formats16)
	if err != nil {
		return fmt.Errorf("16-bit display format: %w", err)
	}
	f24, err := negotiateFormat(s.env.Textures, formats24)
	if err != nil {
		return fmt.Errorf("24-bit display format: %w", err)
	}

	if !uploadVRAM {
		s.env.VRAM.Clear()
	}
	s.fmt16 = f16
	s.fmt24 = f24
	s.initialized = true
	slogger().Info("software renderer initialized", "format16", f16, "format24", f24)
	return nil
}

// Shutdown releases the display texture and drops the current frame.
func (s *Software) Shutdown() {
	if s.tex != nil {
		s.tex.Destroy()
		s.tex = nil
	}
	s.disp.ClearFrame()
	s.initialized = false
}

// ReadVRAM is a no-op: the shared VRAM is always current because every
// draw lands in it directly.
func (s *Software) ReadVRAM(x, y, w, h int) {}

// FillVRAM fills a rectangle with a solid 24-bit color, wrapping at
// the VRAM edges. Interlaced rendering skips the displayed field's
// lines. Fills ignore the mask bits entirely.
func (s *Software) FillVRAM(x, y, w, h int, color uint32, params cmdq.Params) {
	c := vram.From24(color)
	ram := s.env.VRAM

	if x+w <= vram.Width && !params.Interlaced() {
		for yo := 0; yo < h; yo++ {
			row := ram.Row(y + yo)
			for xo := 0; xo < w; xo++ {
				row[x+xo] = c
			}
		}
		return
	}

	skipLSB := -1
	if params.Interlaced() {
		skipLSB = params.ActiveLineLSB()
	}
	for yo := 0; yo < h; yo++ {
		ry := (y + yo) & vram.HeightMask
		if ry&1 == skipLSB {
			continue
		}
		row := ram.Row(ry)
		for xo := 0; xo < w; xo++ {
			row[(x+xo)&vram.WidthMask] = c
		}
	}
}

// UpdateVRAM writes w*h little-endian halfwords from data at (x, y),
// honoring mask set/check bits and wrapping toroidally.
func (s *Software) UpdateVRAM(x, y, w, h int, data []byte, params cmdq.Params) {
	ram := s.env.VRAM

	if x+w <= vram.Width && y+h <= vram.Height && !params.SetMask() && !params.CheckMask() {
		for yo := 0; yo < h; yo++ {
			dst := ram[(y+yo)*vram.Width+x:]
			src := data[yo*w*2:]
			for xo := 0; xo < w; xo++ {
				dst[xo] = binary.LittleEndian.Uint16(src[xo*2:])
			}
		}
		return
	}

	maskAnd := params.MaskAnd()
	maskOr := params.MaskOr()
	i := 0
	for yo := 0; yo < h; yo++ {
		row := ram.Row(y + yo)
		for xo := 0; xo < w; xo++ {
			v := binary.LittleEndian.Uint16(data[i:])
			i += 2
			px := &row[(x+xo)&vram.WidthMask]
			if *px&maskAnd == 0 {
				*px = v | maskOr
			}
		}
	}
}

// CopyVRAM copies a rectangle within VRAM, honoring mask bits and
// wrapping both rectangles toroidally. Overlapping copies run
// backwards per column when the destination is to the right of the
// source, matching hardware.
func (s *Software) CopyVRAM(srcX, srcY, dstX, dstY, w, h int, params cmdq.Params) {
	// Break oversized copies into column-wrapped chunks.
	if srcX+w > vram.Width || dstX+w > vram.Width {
		rows := h
		sy, dy := srcY&vram.HeightMask, dstY&vram.HeightMask
		for rows > 0 {
			n := min(rows, vram.Height-sy, vram.Height-dy)
			cols := w
			sx, dx := srcX&vram.WidthMask, dstX&vram.WidthMask
			for cols > 0 {
				m := min(cols, vram.Width-sx, vram.Width-dx)
				s.CopyVRAM(sx, sy, dx, dy, m, n, params)
				sx = (sx + m) & vram.WidthMask
				dx = (dx + m) & vram.WidthMask
				cols -= m
			}
			sy = (sy + n) & vram.HeightMask
			dy = (dy + n) & vram.HeightMask
			rows -= n
		}
		return
	}

	ram := s.env.VRAM
	maskAnd := params.MaskAnd()
	maskOr := params.MaskOr()

	backwards := srcX < dstX || (srcX+w-1)&vram.WidthMask < (dstX+w-1)&vram.WidthMask
	for row := 0; row < h; row++ {
		src := ram.Row(srcY + row)
		dst := ram.Row(dstY + row)
		if backwards {
			for col := w - 1; col >= 0; col-- {
				v := src[(srcX+col)&vram.WidthMask]
				px := &dst[(dstX+col)&vram.WidthMask]
				if *px&maskAnd == 0 {
					*px = v | maskOr
				}
			}
		} else {
			for col := 0; col < w; col++ {
				v := src[(srcX+col)&vram.WidthMask]
				px := &dst[(dstX+col)&vram.WidthMask]
				if *px&maskAnd == 0 {
					*px = v | maskOr
				}
			}
		}
	}
}

// DrawingAreaChanged installs the new inclusive clip rectangle.
func (s *Software) DrawingAreaChanged(area backend.DrawingArea) {
	s.area = area
}

// UpdateCLUT refreshes the palette cache from VRAM.
func (s *Software) UpdateCLUT(reg vram.PaletteReg, is8Bit bool) {
	s.env.CLUT.Load(s.env.VRAM, reg, is8Bit)
}

// ClearCache is a no-op: the software backend samples VRAM directly
// and caches nothing besides the palette.
func (s *Software) ClearCache() {}

// OnBufferSwapped is a no-op for the software backend.
func (s *Software) OnBufferSwapped() {}

// ClearVRAM zeroes VRAM and the palette cache.
func (s *Software) ClearVRAM() {
	s.env.VRAM.Clear()
	clear(s.env.CLUT[:])
}

// ClearDisplay blanks the display until the next update.
func (s *Software) ClearDisplay() {
	s.disp.ClearFrame()
}

// LoadState replaces VRAM and palette memory verbatim with
// little-endian halfword data.
func (s *Software) LoadState(vramData, clutData []byte) {
	ram := s.env.VRAM
	for i := range ram {
		ram[i] = binary.LittleEndian.Uint16(vramData[i*2:])
	}
	for i := range s.env.CLUT {
		s.env.CLUT[i] = binary.LittleEndian.Uint16(clutData[i*2:])
	}
}

// FlushRender is a no-op: every draw is immediately visible in VRAM.
func (s *Software) FlushRender() {}

// RestoreDeviceContext is a no-op for a CPU backend.
func (s *Software) RestoreDeviceContext() {}

// Display exposes the display state for presentation.
func (s *Software) Display() *backend.Display { return &s.disp }
