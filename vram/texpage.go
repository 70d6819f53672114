// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vram

import "fmt"

// BlendMode is the semi-transparency function applied when a blended
// pixel lands on the framebuffer. Values match bits 5-6 of the texture
// page attribute.
type BlendMode uint8

const (
	// BlendHalf writes background/2 + foreground/2.
	BlendHalf BlendMode = iota
	// BlendAdd writes background + foreground, saturating per channel.
	BlendAdd
	// BlendSubtract writes background - foreground, clamped at zero.
	BlendSubtract
	// BlendQuarter writes background + foreground/4, saturating.
	BlendQuarter
)

func (m BlendMode) String() string {
	switch m {
	case BlendHalf:
		return "B/2+F/2"
	case BlendAdd:
		return "B+F"
	case BlendSubtract:
		return "B-F"
	case BlendQuarter:
		return "B+F/4"
	}
	return fmt.Sprintf("blend(%d)", uint8(m))
}

// TexDepth is the texel storage depth from bits 7-8 of the texture
// page attribute. The reserved value 3 behaves as direct 15-bit.
type TexDepth uint8

const (
	// TexDepth4Bit packs four palette indices per VRAM halfword.
	TexDepth4Bit TexDepth = iota
	// TexDepth8Bit packs two palette indices per VRAM halfword.
	TexDepth8Bit
	// TexDepth15Bit stores one direct color per halfword.
	TexDepth15Bit
)

func (d TexDepth) String() string {
	switch d {
	case TexDepth4Bit:
		return "4bit"
	case TexDepth8Bit:
		return "8bit"
	}
	return "15bit"
}

// TexPageReg is the packed texture page attribute carried by draw
// commands: bits 0-3 select the page X base in units of 64 pixels,
// bit 4 the Y base in units of 256 lines, bits 5-6 the
// semi-transparency function, bits 7-8 the texel depth, and bit 9
// enables dithering of the 24-bit shading result down to 15 bits.
type TexPageReg uint16

// BaseX returns the texture page's left edge in VRAM.
func (t TexPageReg) BaseX() int { return int(t&0xF) * 64 }

// BaseY returns the texture page's top edge in VRAM.
func (t TexPageReg) BaseY() int { return int((t>>4)&1) * 256 }

// Blend returns the semi-transparency function.
func (t TexPageReg) Blend() BlendMode { return BlendMode((t >> 5) & 3) }

// Depth returns the texel depth; the reserved encoding maps to 15-bit.
func (t TexPageReg) Depth() TexDepth {
	d := TexDepth((t >> 7) & 3)
	if d > TexDepth15Bit {
		return TexDepth15Bit
	}
	return d
}

// Dither reports whether shaded and modulated colors are dithered.
func (t TexPageReg) Dither() bool { return t&(1<<9) != 0 }
