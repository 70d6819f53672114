// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package vram models the emulated GPU's video memory: a fixed 1024x512
// array of 16-bit pixels addressed toroidally (coordinates wrap
// independently in X and Y), the 15-bit color encoding used by the
// hardware, and the texture palette (CLUT) cache.
//
// All functions in this package are deterministic and allocation-free on
// the hot paths; the software rasterizer backend is built directly on top
// of them and is used as the bit-exactness reference for every other
// renderer.
package vram

const (
	// Width and Height are the fixed dimensions of emulated VRAM in
	// 16-bit pixels.
	Width  = 1024
	Height = 512

	// WidthMask and HeightMask wrap a coordinate into VRAM. Both
	// dimensions are powers of two, so toroidal addressing reduces to a
	// bitwise AND.
	WidthMask  = Width - 1
	HeightMask = Height - 1

	// NumPixels is the total number of 16-bit pixels, NumBytes the total
	// byte size of VRAM.
	NumPixels = Width * Height
	NumBytes  = NumPixels * 2
)

// RAM is the emulated video memory, row-major with Width pixels per row.
// The slice always has exactly NumPixels elements.
type RAM []uint16

// New returns a zero-filled VRAM.
func New() RAM {
	return make(RAM, NumPixels)
}

// At returns the pixel at (x, y) with toroidal wrapping.
func (r RAM) At(x, y int) uint16 {
	return r[(y&HeightMask)*Width+(x&WidthMask)]
}

// Set stores the pixel at (x, y) with toroidal wrapping.
func (r RAM) Set(x, y int, value uint16) {
	r[(y&HeightMask)*Width+(x&WidthMask)] = value
}

// Row returns the full row containing y, wrapped.
func (r RAM) Row(y int) []uint16 {
	off := (y & HeightMask) * Width
	return r[off : off+Width]
}

// Clear zero-fills the memory.
func (r RAM) Clear() {
	clear(r)
}

// CopyFrom replaces the entire contents with src. src must hold exactly
// NumPixels values; extra elements are ignored, and a short src leaves the
// remainder untouched.
func (r RAM) CopyFrom(src []uint16) {
	copy(r, src)
}
