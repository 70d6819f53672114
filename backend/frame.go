// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"encoding/binary"

	"github.com/yeager/psxgpu/vram"
)

// Frame is a CPU-resident pixel buffer in one of the negotiated
// display formats. Backends develop each display update into a Frame,
// run deinterlacing and smoothing on it, and upload the result to a
// display texture.
type Frame struct {
	Format vram.PixelFormat
	Width  int
	Height int

	// Stride is the row pitch in bytes. It never shrinks below
	// Width * BytesPerPixel but may exceed it after a resize that
	// preserved a larger allocation.
	Stride int

	Pixels []byte
}

// NewFrame allocates a tightly packed frame.
func NewFrame(f vram.PixelFormat, w, h int) *Frame {
	stride := w * f.BytesPerPixel()
	return &Frame{
		Format: f,
		Width:  w,
		Height: h,
		Stride: stride,
		Pixels: make([]byte, stride*h),
	}
}

// Resize reshapes the frame in place, reallocating only when the new
// geometry needs more bytes than the current allocation holds.
func (f *Frame) Resize(format vram.PixelFormat, w, h int) {
	stride := w * format.BytesPerPixel()
	need := stride * h
	if cap(f.Pixels) < need {
		f.Pixels = make([]byte, need)
	}
	f.Pixels = f.Pixels[:need]
	f.Format = format
	f.Width = w
	f.Height = h
	f.Stride = stride
}

// Row returns the byte slice for row y.
func (f *Frame) Row(y int) []byte {
	off := y * f.Stride
	return f.Pixels[off : off+f.Width*f.Format.BytesPerPixel()]
}

// CopyFrom makes f a deep copy of src.
func (f *Frame) CopyFrom(src *Frame) {
	f.Resize(src.Format, src.Width, src.Height)
	if f.Stride == src.Stride {
		copy(f.Pixels, src.Pixels[:src.Stride*src.Height])
		return
	}
	for y := 0; y < src.Height; y++ {
		copy(f.Row(y), src.Row(y))
	}
}

// Pixel returns the packed pixel value at (x, y): 16 bits for the
// packed formats, 32 bits for the byte-per-channel formats.
func (f *Frame) Pixel(x, y int) uint32 {
	row := y * f.Stride
	if f.Format.Is16Bit() {
		return uint32(binary.LittleEndian.Uint16(f.Pixels[row+x*2:]))
	}
	return binary.LittleEndian.Uint32(f.Pixels[row+x*4:])
}

// SetPixel stores a packed pixel value at (x, y).
func (f *Frame) SetPixel(x, y int, v uint32) {
	row := y * f.Stride
	if f.Format.Is16Bit() {
		binary.LittleEndian.PutUint16(f.Pixels[row+x*2:], uint16(v))
		return
	}
	binary.LittleEndian.PutUint32(f.Pixels[row+x*4:], v)
}

// Clear zero-fills the frame's pixels.
func (f *Frame) Clear() {
	for i := range f.Pixels {
		f.Pixels[i] = 0
	}
}

func le16(b []byte) uint16     { return binary.LittleEndian.Uint16(b) }
func le32(b []byte) uint32     { return binary.LittleEndian.Uint32(b) }
func put16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func put32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

// averagePixel averages two packed pixels of the given format without
// unpacking to floats: per-channel halving with the carry-free
// (a & b) + ((a ^ b) >> 1) identity applied under a per-format mask
// that keeps channels from bleeding into each other.
func averagePixel(f vram.PixelFormat, a, b uint32) uint32 {
	var lowMask uint32
	switch f {
	case vram.FormatRGBA5551:
		lowMask = 0x8421 // low bit of each channel, including the 1-bit alpha
	case vram.FormatRGB565:
		lowMask = 0x0821
	default:
		lowMask = 0x01010101
	}
	return (a & b) + (((a ^ b) &^ lowMask) >> 1)
}
