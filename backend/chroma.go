// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import "github.com/yeager/psxgpu/vram"

// unpackRGB extracts 8-bit channels from a packed display pixel. The
// 16-bit formats expand by bit shift, mirroring how they were packed
// from VRAM.
func unpackRGB(f vram.PixelFormat, v uint32) (r, g, b int32) {
	switch f {
	case vram.FormatRGBA5551:
		return int32(((v >> 10) & 31) << 3), int32(((v >> 5) & 31) << 3), int32((v & 31) << 3)
	case vram.FormatRGB565:
		return int32(((v >> 11) & 31) << 3), int32(((v >> 5) & 63) << 2), int32((v & 31) << 3)
	case vram.FormatBGRA8:
		return int32((v >> 16) & 255), int32((v >> 8) & 255), int32(v & 255)
	default: // RGBA8
		return int32(v & 255), int32((v >> 8) & 255), int32((v >> 16) & 255)
	}
}

// packRGB packs 8-bit channels back into the display format, keeping
// the extra bits (alpha or mask) from the original pixel.
func packRGB(f vram.PixelFormat, orig uint32, r, g, b int32) uint32 {
	switch f {
	case vram.FormatRGBA5551:
		return uint32(r>>3)<<10 | uint32(g>>3)<<5 | uint32(b>>3) | (orig & 0x8000)
	case vram.FormatRGB565:
		return uint32(r>>3)<<11 | uint32(g>>2)<<5 | uint32(b>>3)
	case vram.FormatBGRA8:
		return uint32(b) | uint32(g)<<8 | uint32(r)<<16 | (orig & 0xFF000000)
	default:
		return uint32(r) | uint32(g)<<8 | uint32(b)<<16 | (orig & 0xFF000000)
	}
}

func clamp255(v int32) int32 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// ChromaSmoother removes the block chroma artifacts of dithered
// 24-bit video by averaging the chroma of each aligned 2x2 block
// while keeping full-resolution luma.
type ChromaSmoother struct {
	out Frame
}

// Apply smooths the view rectangle of src and returns the smoothed
// frame with its view. The result aliases the smoother's scratch
// buffer until the next call.
func (c *ChromaSmoother) Apply(src *Frame, viewX, viewY, viewW, viewH int) (*Frame, int, int, int, int) {
	if viewW < 2 || viewH < 2 {
		return src, viewX, viewY, viewW, viewH
	}
	c.out.Resize(src.Format, viewW, viewH)

	for by := 0; by < viewH; by += 2 {
		bh := 2
		if by+2 > viewH {
			bh = 1
		}
		for bx := 0; bx < viewW; bx += 2 {
			bw := 2
			if bx+2 > viewW {
				bw = 1
			}

			// Block chroma: average of (B - Y) and (R - Y) over the
			// block, luma weighted 77/150/29 out of 256.
			var sumU, sumV int32
			var ys [4]int32
			var origs [4]uint32
			n := int32(0)
			for dy := 0; dy < bh; dy++ {
				for dx := 0; dx < bw; dx++ {
					p := src.Pixel(viewX+bx+dx, viewY+by+dy)
					r, g, b := unpackRGB(src.Format, p)
					y := (77*r + 150*g + 29*b) >> 8
					ys[dy*2+dx] = y
					origs[dy*2+dx] = p
					sumU += b - y
					sumV += r - y
					n++
				}
			}
			avgU := sumU / n
			avgV := sumV / n

			for dy := 0; dy < bh; dy++ {
				for dx := 0; dx < bw; dx++ {
					y := ys[dy*2+dx]
					r := clamp255(y + avgV)
					b := clamp255(y + avgU)
					g := clamp255((y<<8 - 77*r - 29*b) / 150)
					c.out.SetPixel(bx+dx, by+dy, packRGB(src.Format, origs[dy*2+dx], r, g, b))
				}
			}
		}
	}
	return &c.out, 0, 0, viewW, viewH
}
