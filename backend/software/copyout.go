// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"encoding/binary"

	"github.com/yeager/psxgpu/backend"
	"github.com/yeager/psxgpu/cmdq"
	"github.com/yeager/psxgpu/vram"
)

// copyOut15 develops a 15-bit VRAM rectangle into the read frame. With
// lineSkip > 0 every (1<<lineSkip)-th source row is read, extracting
// one field of an interleaved image into contiguous rows.
func (s *Software) copyOut15(f vram.PixelFormat, srcX, srcY, w, h, lineSkip int) {
	s.read.Resize(f, w, h)

	if srcX+w <= vram.Width && srcY+(h<<lineSkip) <= vram.Height {
		for r := 0; r < h; r++ {
			src := s.env.VRAM.Row(srcY + r<<lineSkip)
			vram.ConvertRow15(f, s.read.Row(r), src[srcX:srcX+w])
		}
		return
	}

	// The scan-out address wraps at the VRAM edges, so gather each row
	// pixel by pixel before converting.
	if cap(s.span) < w {
		s.span = make([]uint16, w)
	}
	span := s.span[:w]
	y := srcY
	for r := 0; r < h; r++ {
		row := s.env.VRAM.Row(y)
		for col := range span {
			span[col] = row[(srcX+col)&vram.WidthMask]
		}
		vram.ConvertRow15(f, s.read.Row(r), span)
		y += 1 << lineSkip
	}
}

// copyOut24 develops a packed 24-bit VRAM rectangle into the read
// frame. srcX is the halfword the raw scan-out starts at; skipX crops
// that many 24-bit pixels off its left edge.
func (s *Software) copyOut24(f vram.PixelFormat, srcX, skipX, srcY, w, h, lineSkip int) {
	s.read.Resize(f, w, h)
	is16 := f.Is16Bit()
	ram := s.env.VRAM

	// Fast path: linear byte reads. A row's triplets may run past the
	// row end into the next row, exactly like the incrementing
	// scan-out address, as long as the last byte stays inside VRAM.
	lastRow := srcY + (h-1)<<lineSkip
	lastByte := (lastRow*vram.Width+srcX)*2 + (skipX+w)*3 - 1
	if srcX+w <= vram.Width && srcY+(h<<lineSkip) <= vram.Height && lastByte < vram.NumBytes {
		for r := 0; r < h; r++ {
			base := ((srcY+r<<lineSkip)*vram.Width+srcX)*2 + skipX*3
			dst := s.read.Row(r)
			for col := 0; col < w; col++ {
				o := base + col*3
				red := uint8(ram[o>>1] >> ((o & 1) * 8))
				green := uint8(ram[(o+1)>>1] >> (((o + 1) & 1) * 8))
				blue := uint8(ram[(o+2)>>1] >> (((o + 2) & 1) * 8))
				px := vram.Pack24(f, red, green, blue)
				if is16 {
					binary.LittleEndian.PutUint16(dst[col*2:], uint16(px))
				} else {
					binary.LittleEndian.PutUint32(dst[col*4:], px)
				}
			}
		}
		return
	}

	// Wrapping path: each triplet straddles two halfwords of the
	// (wrapped) row; pick the three bytes out of the pair.
	y := srcY
	for r := 0; r < h; r++ {
		row := ram.Row(y)
		dst := s.read.Row(r)
		for col := 0; col < w; col++ {
			off := srcX + ((skipX+col)*3)/2
			s0 := row[off&vram.WidthMask]
			s1 := row[(off+1)&vram.WidthMask]
			shift := ((skipX + col) & 1) * 8
			rgb := (uint32(s1)<<16 | uint32(s0)) >> shift
			px := vram.Pack24(f, uint8(rgb), uint8(rgb>>8), uint8(rgb>>16))
			if is16 {
				binary.LittleEndian.PutUint16(dst[col*2:], uint16(px))
			} else {
				binary.LittleEndian.PutUint32(dst[col*4:], px)
			}
		}
		y += 1 << lineSkip
	}
}

// uploadFrame mirrors fr into the display texture, recreating it when
// the geometry or format changed. The previous texture stays alive
// until its replacement holds valid pixels, so a failure leaves the
// last good display intact.
func (s *Software) uploadFrame(fr *backend.Frame) error {
	if s.tex != nil {
		tw, th := s.tex.Size()
		if tw == fr.Width && th == fr.Height && s.tex.Format() == fr.Format {
			return s.tex.Update(0, 0, fr.Width, fr.Height, fr.Pixels, fr.Stride)
		}
	}
	tex, err := s.env.Textures.CreateTexture(fr.Width, fr.Height, fr.Format)
	if err != nil {
		return err
	}
	if err := tex.Update(0, 0, fr.Width, fr.Height, fr.Pixels, fr.Stride); err != nil {
		tex.Destroy()
		return err
	}
	if s.tex != nil {
		s.tex.Destroy()
	}
	s.tex = tex
	return nil
}

// setDisplay installs the developed frame as the scan-out source. When
// the device cannot take the frame the previous display is kept.
func (s *Software) setDisplay(fr *backend.Frame, viewX, viewY, viewW, viewH int) {
	if s.env.Textures != nil {
		if err := s.uploadFrame(fr); err != nil {
			slogger().Warn("keeping previous display frame",
				"width", fr.Width, "height", fr.Height, "format", fr.Format, "err", err)
			// The scratch frame was overwritten and no longer matches
			// what is on screen; only the texture stays presentable.
			s.disp.Frame = nil
			return
		}
	}
	s.disp.Texture = s.tex
	s.disp.SetFrame(fr, viewX, viewY, viewW, viewH)
}

// UpdateDisplay develops the displayed VRAM region into a frame in the
// negotiated format, runs chroma smoothing and deinterlacing as
// configured, and hands the result to the presenter.
func (s *Software) UpdateDisplay(cmd *cmdq.UpdateDisplay) {
	s.disp.SetGeometry(cmd)

	if cmd.Flags.Disabled() {
		s.disp.ClearFrame()
		return
	}

	if s.env.ShowVRAM {
		s.disp.Width, s.disp.Height = vram.Width, vram.Height
		s.disp.OriginLeft, s.disp.OriginTop = 0, 0
		s.disp.VRAMWidth, s.disp.VRAMHeight = vram.Width, vram.Height
		s.disp.AspectRatio = 0
		s.copyOut15(s.fmt16, 0, 0, vram.Width, vram.Height, 0)
		s.setDisplay(&s.read, 0, 0, vram.Width, vram.Height)
		return
	}

	is24 := cmd.Flags.Is24Bit()
	interlaced := cmd.Flags.Interlaced()
	field := int(cmd.Flags.Field())

	vramX := int(cmd.VRAMLeft)
	skipX := 0
	if is24 {
		// The raw scan-out starts at cmd.X; the crop rectangle's left
		// edge lands skipX 24-bit pixels into it.
		vramX = int(cmd.X)
		skipX = int(cmd.VRAMLeft) - int(cmd.X)
	}
	vramY := int(cmd.VRAMTop)
	readW := int(cmd.VRAMWidth)
	readH := int(cmd.VRAMHeight)
	lineSkip := 0
	if interlaced {
		readH /= 2
		if cmd.Flags.Interleaved() {
			lineSkip = 1
			vramY += field
		}
	}
	if readW <= 0 || readH <= 0 {
		s.disp.ClearFrame()
		return
	}

	if is24 {
		s.copyOut24(s.fmt24, vramX, skipX, vramY, readW, readH, lineSkip)
	} else {
		s.copyOut15(s.fmt16, vramX, vramY, readW, readH, lineSkip)
	}

	fr, vx, vy, vw, vh := &s.read, 0, 0, readW, readH
	if is24 && s.env.ChromaSmoothing {
		fr, vx, vy, vw, vh = s.chroma.Apply(fr, vx, vy, vw, vh)
	}
	if interlaced {
		// copyOut already packed the field contiguously, so the
		// deinterlacer sees lineSkip 0.
		s.deint.SetMode(s.env.Deinterlace)
		fr, vx, vy, vw, vh = s.deint.Apply(fr, vx, vy, vw, vh, field, 0)
	}
	s.setDisplay(fr, vx, vy, vw, vh)
}
