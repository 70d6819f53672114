// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vram

import "encoding/binary"

// A VRAM pixel is 16 bits: red in bits 0-4, green in bits 5-9, blue in
// bits 10-14, and the mask bit in bit 15. The conversion functions below
// repack those fields into the host-visible display formats. They are
// exact bit repositionings, never lossy rescales; round-tripping a value
// through any 16-bit format preserves the top five bits per channel.

// PixelFormat identifies a host-visible pixel encoding produced by the
// display readback path.
type PixelFormat uint8

const (
	// FormatInvalid is the zero value; no format has been negotiated.
	FormatInvalid PixelFormat = iota

	// FormatRGBA5551 packs blue in bits 0-4, green in 5-9, red in 10-14
	// and the mask bit in 15.
	FormatRGBA5551

	// FormatRGB565 packs blue in bits 0-4, green in 5-10, red in 11-15.
	FormatRGB565

	// FormatRGBA8 is 8 bits per channel, red in the low byte.
	FormatRGBA8

	// FormatBGRA8 is 8 bits per channel, blue in the low byte.
	FormatBGRA8
)

// String returns the format name.
func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA5551:
		return "RGBA5551"
	case FormatRGB565:
		return "RGB565"
	case FormatRGBA8:
		return "RGBA8"
	case FormatBGRA8:
		return "BGRA8"
	default:
		return "Invalid"
	}
}

// BytesPerPixel returns the storage size of one pixel in the format.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGBA5551, FormatRGB565:
		return 2
	case FormatRGBA8, FormatBGRA8:
		return 4
	default:
		return 0
	}
}

// Is16Bit reports whether the format stores one pixel in a 16-bit word.
func (f PixelFormat) Is16Bit() bool {
	return f == FormatRGBA5551 || f == FormatRGB565
}

// To5551 repacks a VRAM pixel into RGBA5551: the red and blue fields swap
// position, green stays in place, and the mask bit is dropped since
// scan-out is always opaque.
func To5551(v uint16) uint16 {
	return (v & 0x3E0) | ((v >> 10) & 0x1F) | ((v & 0x1F) << 10)
}

// To565 repacks a VRAM pixel into RGB565. The five-bit green field widens
// to six bits by duplicating its top bit into the extra position, so a
// full-intensity green stays full intensity.
func To565(v uint16) uint16 {
	return ((v & 0x3E0) << 1) | ((v & 0x200) >> 4) | ((v >> 10) & 0x1F) | ((v & 0x1F) << 11)
}

// ToRGBA8 expands a VRAM pixel to 8-bit channels by shifting each 5-bit
// field up three bits. Alpha is 255 when the mask bit is set, 0 otherwise.
func ToRGBA8(v uint16) uint32 {
	v32 := uint32(v)
	r := (v32 & 31) << 3
	g := ((v32 >> 5) & 31) << 3
	b := ((v32 >> 10) & 31) << 3
	var a uint32
	if v>>15 != 0 {
		a = 255
	}
	return r | g<<8 | b<<16 | a<<24
}

// ToBGRA8 expands a VRAM pixel to 8-bit channels with blue in the low
// byte and opaque alpha.
func ToBGRA8(v uint16) uint32 {
	v32 := uint32(v)
	r := (v32 & 31) << 3
	g := ((v32 >> 5) & 31) << 3
	b := ((v32 >> 10) & 31) << 3
	return b | g<<8 | r<<16 | 0xFF000000
}

// From24 packs a 24-bit command color (red in the low byte) into a VRAM
// halfword, truncating each channel to five bits. Bit 31 of the input
// carries into the mask bit.
func From24(c uint32) uint16 {
	r := uint16(c>>3) & 0x1F
	g := uint16(c>>11) & 0x1F
	b := uint16(c>>19) & 0x1F
	return r | g<<5 | b<<10 | uint16(c>>31)<<15
}

// Pack24 packs an 8-bit RGB triplet into the given 16- or 32-bit display
// format, truncating channels for the 16-bit formats. The result of the
// 32-bit formats fits in the returned uint32; 16-bit formats use the low
// 16 bits.
func Pack24(f PixelFormat, r, g, b uint8) uint32 {
	switch f {
	case FormatRGBA8:
		return uint32(r) | uint32(g)<<8 | uint32(b)<<16 | 0xFF000000
	case FormatBGRA8:
		return uint32(b) | uint32(g)<<8 | uint32(r)<<16 | 0xFF000000
	case FormatRGB565:
		return uint32(uint16(r)>>3)<<11 | uint32(uint16(g)>>2)<<5 | uint32(uint16(b)>>3)
	case FormatRGBA5551:
		return uint32(uint16(r)>>3)<<10 | uint32(uint16(g)>>3)<<5 | uint32(uint16(b)>>3)
	default:
		return 0
	}
}

// ConvertRow15 converts a row of VRAM pixels into the display format f,
// writing little-endian words to dst. dst must hold at least
// len(src)*f.BytesPerPixel() bytes.
func ConvertRow15(f PixelFormat, dst []byte, src []uint16) {
	switch f {
	case FormatRGBA5551:
		for i, v := range src {
			binary.LittleEndian.PutUint16(dst[i*2:], To5551(v))
		}
	case FormatRGB565:
		for i, v := range src {
			binary.LittleEndian.PutUint16(dst[i*2:], To565(v))
		}
	case FormatBGRA8:
		for i, v := range src {
			binary.LittleEndian.PutUint32(dst[i*4:], ToBGRA8(v))
		}
	default: // RGBA8
		for i, v := range src {
			binary.LittleEndian.PutUint32(dst[i*4:], ToRGBA8(v))
		}
	}
}
