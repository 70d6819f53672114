// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"github.com/yeager/psxgpu/cmdq"
	"github.com/yeager/psxgpu/vram"
)

// The hardware converts 24-bit shading results to 15-bit through a
// 4x4 ordered dither matrix. The lookup table folds the offset, the
// shift and the saturation into one step: ditherLUT[y&3][x&3][v] is
// the 5-bit channel value for a 9-bit intermediate v. Entry [2][3]
// has offset zero and doubles as the no-dither truncation table.
var ditherTable = [4][4]int32{
	{-4, 0, -3, 1},
	{2, -2, 3, -1},
	{-3, 1, -4, 0},
	{3, -1, 2, -2},
}

var ditherLUT = buildDitherLUT()

func buildDitherLUT() (lut [4][4][512]uint8) {
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			for v := int32(0); v < 512; v++ {
				d := (v + ditherTable[y][x]) >> 3
				if d < 0 {
					d = 0
				} else if d > 31 {
					d = 31
				}
				lut[y][x][v] = uint8(d)
			}
		}
	}
	return lut
}

// pixelState is the per-command draw state decoded once before
// rasterization.
type pixelState struct {
	textured bool
	raw      bool
	semi     bool
	dither   bool

	depth        vram.TexDepth
	blend        vram.BlendMode
	baseX, baseY int

	interlaced bool
	activeLSB  int

	maskAnd, maskOr uint16
}

// makePixelState decodes command flags, the texture page attribute and
// the draw parameters. Sprites never dither.
func makePixelState(flags cmdq.DrawFlags, page vram.TexPageReg, params cmdq.Params, sprite bool) pixelState {
	return pixelState{
		textured:   flags.Textured(),
		raw:        flags.Textured() && flags.RawTexture(),
		semi:       flags.SemiTransparent(),
		dither:     !sprite && page.Dither(),
		depth:      page.Depth(),
		blend:      page.Blend(),
		baseX:      page.BaseX(),
		baseY:      page.BaseY(),
		interlaced: params.Interlaced(),
		activeLSB:  params.ActiveLineLSB(),
		maskAnd:    params.MaskAnd(),
		maskOr:     params.MaskOr(),
	}
}

// skipLine reports whether interlaced rendering excludes scanline y.
func (st *pixelState) skipLine(y int32) bool {
	return st.interlaced && int(y&1) == st.activeLSB
}

// sampleTexture fetches one texel. Palette depths read an index cell
// from the texture page and look the color up in the palette cache;
// 15-bit reads the color directly. All reads wrap toroidally.
func (s *Software) sampleTexture(st *pixelState, u, v uint8) uint16 {
	switch st.depth {
	case vram.TexDepth4Bit:
		cell := s.env.VRAM.At(st.baseX+int(u>>2), st.baseY+int(v))
		return s.env.CLUT[(cell>>((uint16(u)&3)*4))&0xF]
	case vram.TexDepth8Bit:
		cell := s.env.VRAM.At(st.baseX+int(u>>1), st.baseY+int(v))
		return s.env.CLUT[(cell>>((uint16(u)&1)*8))&0xFF]
	default:
		return s.env.VRAM.At(st.baseX+int(u), st.baseY+int(v))
	}
}

// blend5 applies the semi-transparency function to one 5-bit channel.
func blend5(mode vram.BlendMode, bg, fg uint16) uint16 {
	switch mode {
	case vram.BlendHalf:
		return (bg + fg) >> 1
	case vram.BlendAdd:
		return min(bg+fg, 31)
	case vram.BlendSubtract:
		if fg > bg {
			return 0
		}
		return bg - fg
	default: // BlendQuarter
		return min(bg+fg>>2, 31)
	}
}

// blendPixel blends a foreground color onto the framebuffer pixel,
// keeping the foreground's mask bit.
func blendPixel(mode vram.BlendMode, bg, fg uint16) uint16 {
	r := blend5(mode, bg&31, fg&31)
	g := blend5(mode, (bg>>5)&31, (fg>>5)&31)
	b := blend5(mode, (bg>>10)&31, (fg>>10)&31)
	return r | g<<5 | b<<10 | fg&0x8000
}

// shadePixel runs the per-pixel pipeline: texture sampling, color
// modulation, dithering, semi-transparency and mask handling. The
// caller has already clipped (x, y) to the drawing area.
func (s *Software) shadePixel(st *pixelState, x, y int32, r, g, b uint8, u, v uint8) {
	lut := &ditherLUT[2][3]
	if st.dither {
		lut = &ditherLUT[y&3][x&3]
	}

	var color uint16
	blendable := true
	if st.textured {
		texel := s.sampleTexture(st, u, v)
		if texel == 0 {
			// Fully transparent texel, nothing is written.
			return
		}
		blendable = texel&0x8000 != 0
		if st.raw {
			color = texel
		} else {
			cr := lut[uint32(texel&31)*uint32(r)>>4]
			cg := lut[uint32(texel>>5&31)*uint32(g)>>4]
			cb := lut[uint32(texel>>10&31)*uint32(b)>>4]
			color = uint16(cr) | uint16(cg)<<5 | uint16(cb)<<10 | texel&0x8000
		}
	} else {
		color = uint16(lut[r]) | uint16(lut[g])<<5 | uint16(lut[b])<<10
	}

	bg := s.env.VRAM.At(int(x), int(y))
	if st.semi && blendable {
		color = blendPixel(st.blend, bg, color)
	}
	if bg&st.maskAnd != 0 {
		return
	}
	s.env.VRAM.Set(int(x), int(y), color|st.maskOr)
}

// DrawPolygon rasterizes a triangle, or two triangles sharing an edge
// for quads.
func (s *Software) DrawPolygon(cmd *cmdq.DrawPolygon) {
	st := makePixelState(cmd.Flags, vram.TexPageReg(cmd.TexPage), cmd.Params, false)
	shaded := cmd.Flags.Shaded()
	s.drawTriangle(&st, shaded, &cmd.Verts[0], &cmd.Verts[1], &cmd.Verts[2])
	if cmd.Flags.Quad() {
		s.drawTriangle(&st, shaded, &cmd.Verts[2], &cmd.Verts[1], &cmd.Verts[3])
	}
}

// DrawPrecisePolygon quantizes the sub-pixel vertices to their native
// integer positions and rasterizes like DrawPolygon. The software
// rasterizer has no use for the fractional parts.
func (s *Software) DrawPrecisePolygon(cmd *cmdq.DrawPrecisePolygon) {
	var verts [4]cmdq.Vertex
	for i, v := range cmd.Verts {
		verts[i] = cmdq.Vertex{X: v.NativeX, Y: v.NativeY, Color: v.Color, U: v.U, V: v.V}
	}
	poly := cmdq.DrawPolygon{
		Flags:   cmd.Flags,
		TexPage: cmd.TexPage,
		Palette: cmd.Palette,
		Params:  cmd.Params,
		Verts:   verts[:len(cmd.Verts)],
	}
	s.DrawPolygon(&poly)
}

// edgeWeights holds one edge function of the triangle: its value at
// the raster origin and the per-step deltas.
type edgeWeights struct {
	row, val   int64
	dx, dy     int64
	fillAtZero bool
}

func makeEdge(a, b *cmdq.Vertex, ox, oy int32) edgeWeights {
	dx := int64(b.X - a.X)
	dy := int64(b.Y - a.Y)
	return edgeWeights{
		row: dx*int64(oy-a.Y) - dy*int64(ox-a.X),
		dx:  -dy,
		dy:  dx,
		// The hardware omits the right-most and bottom-most pixels:
		// only left and top edges own their boundary pixels.
		fillAtZero: dy < 0 || (dy == 0 && dx > 0),
	}
}

func (e *edgeWeights) inside() bool {
	if e.fillAtZero {
		return e.val >= 0
	}
	return e.val > 0
}

// drawTriangle rasterizes one triangle with half-plane coverage tests
// and barycentric attribute interpolation. Primitives wider than the
// VRAM or taller than its height are culled without drawing, matching
// hardware.
func (s *Software) drawTriangle(st *pixelState, shaded bool, v0, v1, v2 *cmdq.Vertex) {
	minX := min(v0.X, v1.X, v2.X)
	maxX := max(v0.X, v1.X, v2.X)
	minY := min(v0.Y, v1.Y, v2.Y)
	maxY := max(v0.Y, v1.Y, v2.Y)
	if maxX-minX >= vram.Width || maxY-minY >= vram.Height {
		return
	}

	area2 := int64(v1.X-v0.X)*int64(v2.Y-v0.Y) - int64(v1.Y-v0.Y)*int64(v2.X-v0.X)
	if area2 == 0 {
		return
	}
	if area2 < 0 {
		v1, v2 = v2, v1
		area2 = -area2
	}

	left := max(minX, s.area.Left)
	right := min(maxX, s.area.Right)
	top := max(minY, s.area.Top)
	bottom := min(maxY, s.area.Bottom)
	if left > right || top > bottom {
		return
	}

	// Edge k runs opposite vertex k, so its weight interpolates that
	// vertex's attributes.
	e0 := makeEdge(v1, v2, left, top)
	e1 := makeEdge(v2, v0, left, top)
	e2 := makeEdge(v0, v1, left, top)

	r0, g0, b0 := int64(v0.Color&0xFF), int64(v0.Color>>8&0xFF), int64(v0.Color>>16&0xFF)
	r1, g1, b1 := int64(v1.Color&0xFF), int64(v1.Color>>8&0xFF), int64(v1.Color>>16&0xFF)
	r2, g2, b2 := int64(v2.Color&0xFF), int64(v2.Color>>8&0xFF), int64(v2.Color>>16&0xFF)
	flatR, flatG, flatB := uint8(r0), uint8(g0), uint8(b0)

	for y := top; y <= bottom; y++ {
		e0.val, e1.val, e2.val = e0.row, e1.row, e2.row
		e0.row += e0.dy
		e1.row += e1.dy
		e2.row += e2.dy
		if st.skipLine(y) {
			continue
		}
		for x := left; x <= right; x++ {
			w0, w1, w2 := e0.val, e1.val, e2.val
			e0.val += e0.dx
			e1.val += e1.dx
			e2.val += e2.dx
			if !e0.inside() || !e1.inside() || !e2.inside() {
				continue
			}

			r, g, b := flatR, flatG, flatB
			if shaded {
				r = uint8((w0*r0 + w1*r1 + w2*r2) / area2)
				g = uint8((w0*g0 + w1*g1 + w2*g2) / area2)
				b = uint8((w0*b0 + w1*b1 + w2*b2) / area2)
			}
			var u, v uint8
			if st.textured {
				u = uint8((w0*int64(v0.U) + w1*int64(v1.U) + w2*int64(v2.U)) / area2)
				v = uint8((w0*int64(v0.V) + w1*int64(v1.V) + w2*int64(v2.V)) / area2)
			}
			s.shadePixel(st, x, y, r, g, b, u, v)
		}
	}
}

// DrawSprite rasterizes an axis-aligned rectangle. Texture
// coordinates advance one texel per pixel and wrap at 256.
func (s *Software) DrawSprite(cmd *cmdq.DrawRectangle) {
	st := makePixelState(cmd.Flags, vram.TexPageReg(cmd.TexPage), cmd.Params, true)
	r, g, b := uint8(cmd.Color), uint8(cmd.Color>>8), uint8(cmd.Color>>16)

	for oy := 0; oy < int(cmd.H); oy++ {
		y := cmd.Y + int32(oy)
		if y < s.area.Top || y > s.area.Bottom || st.skipLine(y) {
			continue
		}
		v := uint8(int(cmd.TexY) + oy)
		for ox := 0; ox < int(cmd.W); ox++ {
			x := cmd.X + int32(ox)
			if x < s.area.Left || x > s.area.Right {
				continue
			}
			u := uint8(int(cmd.TexX) + ox)
			s.shadePixel(&st, x, y, r, g, b, u, v)
		}
	}
}

// DrawLine rasterizes one segment per vertex pair.
func (s *Software) DrawLine(cmd *cmdq.DrawLine) {
	st := makePixelState(cmd.Flags, vram.TexPageReg(cmd.TexPage), cmd.Params, false)
	shaded := cmd.Flags.Shaded()
	for i := 0; i+1 < len(cmd.Verts); i += 2 {
		s.drawLineSegment(&st, shaded, cmd.Verts[i], cmd.Verts[i+1])
	}
}

const lineFracBits = 32

// lineDelta divides an attribute delta by the step count in fixed
// point, rounding away from zero so the end point is reached exactly.
func lineDelta(delta int32, k int32) int64 {
	d := int64(delta) << lineFracBits
	if k == 0 {
		return d
	}
	if d < 0 {
		d -= int64(k) - 1
	} else if d > 0 {
		d += int64(k) - 1
	}
	return d / int64(k)
}

// drawLineSegment steps a fixed-point DDA over the major axis,
// including both end points. Segments are normalized to run left to
// right so a line renders identically regardless of vertex order.
func (s *Software) drawLineSegment(st *pixelState, shaded bool, p0, p1 cmdq.Vertex) {
	dx := p1.X - p0.X
	if dx < 0 {
		dx = -dx
	}
	dy := p1.Y - p0.Y
	if dy < 0 {
		dy = -dy
	}
	if dx >= vram.Width || dy >= vram.Height {
		return
	}
	k := max(dx, dy)
	if p0.X >= p1.X && k > 0 {
		p0, p1 = p1, p0
	}

	const half = int64(1) << (lineFracBits - 1)
	cx := int64(p0.X)<<lineFracBits + half
	cy := int64(p0.Y)<<lineFracBits + half
	dxdk := lineDelta(p1.X-p0.X, k)
	dydk := lineDelta(p1.Y-p0.Y, k)

	cr := int64(p0.Color&0xFF)<<lineFracBits + half
	cg := int64(p0.Color>>8&0xFF)<<lineFracBits + half
	cb := int64(p0.Color>>16&0xFF)<<lineFracBits + half
	var drdk, dgdk, dbdk int64
	if shaded {
		drdk = lineDelta(int32(p1.Color&0xFF)-int32(p0.Color&0xFF), k)
		dgdk = lineDelta(int32(p1.Color>>8&0xFF)-int32(p0.Color>>8&0xFF), k)
		dbdk = lineDelta(int32(p1.Color>>16&0xFF)-int32(p0.Color>>16&0xFF), k)
	}

	for i := int32(0); i <= k; i++ {
		x := int32(cx >> lineFracBits)
		y := int32(cy >> lineFracBits)
		if s.area.Contains(x, y) && !st.skipLine(y) {
			s.shadePixel(st, x, y, uint8(cr>>lineFracBits), uint8(cg>>lineFracBits), uint8(cb>>lineFracBits), 0, 0)
		}
		cx += dxdk
		cy += dydk
		cr += drdk
		cg += dgdk
		cb += dbdk
	}
}
