// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yeager/psxgpu/backend"
	"github.com/yeager/psxgpu/cmdq"
	"github.com/yeager/psxgpu/vram"
)

func readRect(s *Software, x, y, w, h int) []uint16 {
	out := make([]uint16, 0, w*h)
	for yo := 0; yo < h; yo++ {
		for xo := 0; xo < w; xo++ {
			out = append(out, s.env.VRAM.At(x+xo, y+yo))
		}
	}
	return out
}

// The right triangle (0,0)-(4,0)-(0,4) must fill exactly the pixels
// with x+y < 4: the rightmost and bottommost boundary pixels belong to
// the neighbouring primitive.
func TestFlatTriangleFillRule(t *testing.T) {
	s := newHeadless(t)
	s.DrawPolygon(&cmdq.DrawPolygon{
		Verts: []cmdq.Vertex{
			{X: 0, Y: 0, Color: 0xFFFFFF},
			{X: 4, Y: 0, Color: 0xFFFFFF},
			{X: 0, Y: 4, Color: 0xFFFFFF},
		},
	})

	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			want := uint16(0)
			if x+y < 4 {
				want = 0x7FFF
			}
			if got := s.env.VRAM.At(x, y); got != want {
				t.Errorf("At(%d,%d) = %#04x, want %#04x", x, y, got, want)
			}
		}
	}
}

func TestTriangleWindingIndependent(t *testing.T) {
	a, b := newHeadless(t), newHeadless(t)
	verts := []cmdq.Vertex{
		{X: 2, Y: 1, Color: 0xFFFFFF},
		{X: 11, Y: 3, Color: 0xFFFFFF},
		{X: 5, Y: 9, Color: 0xFFFFFF},
	}
	a.DrawPolygon(&cmdq.DrawPolygon{Verts: verts})
	b.DrawPolygon(&cmdq.DrawPolygon{Verts: []cmdq.Vertex{verts[0], verts[2], verts[1]}})

	if diff := cmp.Diff(readRect(a, 0, 0, 16, 12), readRect(b, 0, 0, 16, 12)); diff != "" {
		t.Errorf("winding changed coverage (-cw +ccw):\n%s", diff)
	}
}

func TestGouraudInterpolation(t *testing.T) {
	s := newHeadless(t)
	s.DrawPolygon(&cmdq.DrawPolygon{
		Flags: cmdq.DrawShaded,
		Verts: []cmdq.Vertex{
			{X: 0, Y: 0, Color: 0x000000},
			{X: 16, Y: 0, Color: 0x0000FF},
			{X: 0, Y: 16, Color: 0x000000},
		},
	})

	// Red ramps linearly along the top edge; 8-bit values truncate to
	// 5 bits on write.
	cases := []struct {
		x    int
		want uint16
	}{
		{1, 0x0001}, // red 15
		{4, 0x0007}, // red 63
		{8, 0x000F}, // red 127
	}
	for _, tc := range cases {
		if got := s.env.VRAM.At(tc.x, 0); got != tc.want {
			t.Errorf("At(%d,0) = %#04x, want %#04x", tc.x, got, tc.want)
		}
	}
}

func TestDitheredShading(t *testing.T) {
	s := newHeadless(t)
	quad := func(page uint16, x0 int32) *cmdq.DrawPolygon {
		return &cmdq.DrawPolygon{
			Flags:   cmdq.DrawQuad,
			TexPage: page,
			Verts: []cmdq.Vertex{
				{X: x0, Y: 0, Color: 0x808080},
				{X: x0 + 8, Y: 0, Color: 0x808080},
				{X: x0, Y: 8, Color: 0x808080},
				{X: x0 + 8, Y: 8, Color: 0x808080},
			},
		}
	}
	s.DrawPolygon(quad(1<<9, 0)) // dither enabled
	s.DrawPolygon(quad(0, 16))   // dither disabled

	// 128 +- the 4x4 offsets straddles the 5-bit step: the dithered
	// area is a checkerboard of 15s and 16s.
	lo, hi := uint16(0x3DEF), uint16(0x4210)
	want := [][2]uint16{{lo, hi}, {hi, lo}}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if got := s.env.VRAM.At(x, y); got != want[y&1][x&1] {
				t.Errorf("dithered At(%d,%d) = %#04x, want %#04x", x, y, got, want[y&1][x&1])
			}
			if got := s.env.VRAM.At(16+x, y); got != hi {
				t.Errorf("undithered At(%d,%d) = %#04x, want %#04x", 16+x, y, got, hi)
			}
		}
	}
}

func TestSprite4BitPalette(t *testing.T) {
	s := newHeadless(t)
	s.env.VRAM.Set(0, 0, 0x4321) // texel indices 1,2,3,4 for u=0..3
	for i := 0; i < 16; i++ {
		s.env.VRAM.Set(16+i, 400, uint16(0x0100+i))
	}
	s.UpdateCLUT(vram.PaletteReg(1|400<<6), false)

	s.DrawSprite(&cmdq.DrawRectangle{
		Flags: cmdq.DrawTextured | cmdq.DrawRawTexture,
		X:     100, Y: 100, W: 4, H: 1,
	})

	want := []uint16{0x0101, 0x0102, 0x0103, 0x0104}
	if diff := cmp.Diff(want, readRect(s, 100, 100, 4, 1)); diff != "" {
		t.Errorf("4-bit sprite mismatch (-want +got):\n%s", diff)
	}
}

func TestSprite8BitPalette(t *testing.T) {
	s := newHeadless(t)
	s.env.VRAM.Set(0, 0, 0x0605) // texel indices 5,6 for u=0..1
	s.env.VRAM.Set(16+5, 400, 0x0105)
	s.env.VRAM.Set(16+6, 400, 0x0106)
	s.UpdateCLUT(vram.PaletteReg(1|400<<6), true)

	s.DrawSprite(&cmdq.DrawRectangle{
		Flags:   cmdq.DrawTextured | cmdq.DrawRawTexture,
		TexPage: 1 << 7, // 8-bit depth
		X:       100, Y: 100, W: 2, H: 1,
	})

	want := []uint16{0x0105, 0x0106}
	if diff := cmp.Diff(want, readRect(s, 100, 100, 2, 1)); diff != "" {
		t.Errorf("8-bit sprite mismatch (-want +got):\n%s", diff)
	}
}

// Texture coordinates are 8-bit and wrap at 256 as the sprite row
// advances.
func TestSpriteTexcoordWrap(t *testing.T) {
	s := newHeadless(t)
	s.env.VRAM.Set(254, 0, 0x0111)
	s.env.VRAM.Set(255, 0, 0x0222)
	s.env.VRAM.Set(0, 0, 0x0333)
	s.env.VRAM.Set(1, 0, 0x0444)

	s.DrawSprite(&cmdq.DrawRectangle{
		Flags:   cmdq.DrawTextured | cmdq.DrawRawTexture,
		TexPage: 2 << 7, // 15-bit direct
		X:       200, Y: 10, W: 4, H: 1,
		TexX: 254,
	})

	want := []uint16{0x0111, 0x0222, 0x0333, 0x0444}
	if diff := cmp.Diff(want, readRect(s, 200, 10, 4, 1)); diff != "" {
		t.Errorf("texcoord wrap mismatch (-want +got):\n%s", diff)
	}
}

func TestTexelZeroIsTransparent(t *testing.T) {
	s := newHeadless(t)
	s.env.VRAM.Set(200, 10, 0x1234) // background to preserve
	// Texel at (0,0) stays zero.
	s.DrawSprite(&cmdq.DrawRectangle{
		Flags:   cmdq.DrawTextured | cmdq.DrawRawTexture,
		TexPage: 2 << 7,
		X:       200, Y: 10, W: 1, H: 1,
	})

	if got := s.env.VRAM.At(200, 10); got != 0x1234 {
		t.Errorf("transparent texel overwrote background: %#04x", got)
	}
}

func TestTextureModulation(t *testing.T) {
	s := newHeadless(t)
	s.env.VRAM.Set(0, 0, 0x7FFF) // white texel

	// 128 is the neutral modulator; 64 halves each channel.
	s.DrawSprite(&cmdq.DrawRectangle{
		Flags:   cmdq.DrawTextured,
		TexPage: 2 << 7,
		X:       100, Y: 50, W: 1, H: 1,
		Color: 0x808080,
	})
	s.DrawSprite(&cmdq.DrawRectangle{
		Flags:   cmdq.DrawTextured,
		TexPage: 2 << 7,
		X:       101, Y: 50, W: 1, H: 1,
		Color: 0x404040,
	})

	if got := s.env.VRAM.At(100, 50); got != 0x7FFF {
		t.Errorf("neutral modulation = %#04x, want 0x7FFF", got)
	}
	if got := s.env.VRAM.At(101, 50); got != 0x3DEF {
		t.Errorf("half modulation = %#04x, want 0x3DEF", got)
	}
}

func TestSemiTransparentBlendModes(t *testing.T) {
	bg := uint16(10 | 20<<5 | 30<<10)
	cases := []struct {
		name string
		mode uint16
		want uint16
	}{
		{"average", 0, 13 | 18<<5 | 23<<10},
		{"add", 1, 26 | 31<<5 | 31<<10},
		{"subtract", 2, 0 | 4<<5 | 14<<10},
		{"add quarter", 3, 14 | 24<<5 | 31<<10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newHeadless(t)
			s.env.VRAM.Set(80, 80, bg)
			s.DrawSprite(&cmdq.DrawRectangle{
				Flags:   cmdq.DrawSemiTransparent,
				TexPage: tc.mode << 5,
				X:       80, Y: 80, W: 1, H: 1,
				Color: 0x808080, // 16 per 5-bit channel
			})
			if got := s.env.VRAM.At(80, 80); got != tc.want {
				t.Errorf("blend mode %d = %#04x, want %#04x", tc.mode, got, tc.want)
			}
		})
	}
}

// Only texels with bit 15 set participate in semi-transparency; others
// are written opaque.
func TestSemiTransparencyGatedByTexelBit(t *testing.T) {
	s := newHeadless(t)
	s.env.VRAM.Set(0, 0, 0x0222)          // opaque texel
	s.env.VRAM.Set(1, 0, 0x8000|16|16<<5) // blendable texel (16,16,0)
	bg := uint16(10 | 20<<5 | 30<<10)
	s.env.VRAM.Set(80, 90, bg)
	s.env.VRAM.Set(81, 90, bg)

	s.DrawSprite(&cmdq.DrawRectangle{
		Flags:   cmdq.DrawTextured | cmdq.DrawRawTexture | cmdq.DrawSemiTransparent,
		TexPage: 2 << 7, // 15-bit, average blend
		X:       80, Y: 90, W: 2, H: 1,
	})

	if got := s.env.VRAM.At(80, 90); got != 0x0222 {
		t.Errorf("opaque texel = %#04x, want 0x0222 unblended", got)
	}
	want := uint16(0x8000 | 13 | 18<<5 | 15<<10) // (10,20,30) avg (16,16,0)
	if got := s.env.VRAM.At(81, 90); got != want {
		t.Errorf("blendable texel = %#04x, want %#04x", got, want)
	}
}

func TestDrawMaskBits(t *testing.T) {
	s := newHeadless(t)
	s.env.VRAM.Set(0, 0, 0x0123)
	s.DrawSprite(&cmdq.DrawRectangle{
		Flags:   cmdq.DrawTextured | cmdq.DrawRawTexture,
		TexPage: 2 << 7,
		Params:  cmdq.ParamSetMask,
		X:       70, Y: 70, W: 1, H: 1,
	})
	if got := s.env.VRAM.At(70, 70); got != 0x8123 {
		t.Errorf("set-mask draw = %#04x, want 0x8123", got)
	}

	s.env.VRAM.Set(71, 70, 0x8000)
	s.DrawSprite(&cmdq.DrawRectangle{
		Flags:   cmdq.DrawTextured | cmdq.DrawRawTexture,
		TexPage: 2 << 7,
		Params:  cmdq.ParamCheckMask,
		X:       71, Y: 70, W: 1, H: 1,
	})
	if got := s.env.VRAM.At(71, 70); got != 0x8000 {
		t.Errorf("check-mask draw overwrote masked pixel: %#04x", got)
	}
}

func TestSpriteInterlacedSkipsLines(t *testing.T) {
	s := newHeadless(t)
	s.DrawSprite(&cmdq.DrawRectangle{
		Params: cmdq.ParamInterlaced, // active lines have y&1 == 0
		X:      60, Y: 40, W: 2, H: 4,
		Color: 0xFFFFFF,
	})

	for y := 40; y < 44; y++ {
		got := s.env.VRAM.At(60, y)
		if y&1 == 0 && got != 0 {
			t.Errorf("interlaced draw touched active line %d: %#04x", y, got)
		}
		if y&1 == 1 && got != 0x7FFF {
			t.Errorf("interlaced draw missed inactive line %d: %#04x", y, got)
		}
	}
}

func TestDrawingAreaClips(t *testing.T) {
	s := newHeadless(t)
	s.DrawingAreaChanged(backend.DrawingArea{Left: 10, Top: 10, Right: 12, Bottom: 12})

	s.DrawPolygon(&cmdq.DrawPolygon{
		Flags: cmdq.DrawQuad,
		Verts: []cmdq.Vertex{
			{X: 0, Y: 0, Color: 0xFFFFFF},
			{X: 32, Y: 0, Color: 0xFFFFFF},
			{X: 0, Y: 32, Color: 0xFFFFFF},
			{X: 32, Y: 32, Color: 0xFFFFFF},
		},
	})

	for y := 8; y < 15; y++ {
		for x := 8; x < 15; x++ {
			want := uint16(0)
			if x >= 10 && x <= 12 && y >= 10 && y <= 12 {
				want = 0x7FFF
			}
			if got := s.env.VRAM.At(x, y); got != want {
				t.Errorf("At(%d,%d) = %#04x, want %#04x", x, y, got, want)
			}
		}
	}
}

func TestOversizedPrimitivesCulled(t *testing.T) {
	s := newHeadless(t)
	s.DrawPolygon(&cmdq.DrawPolygon{
		Verts: []cmdq.Vertex{
			{X: 0, Y: 0, Color: 0xFFFFFF},
			{X: vram.Width, Y: 0, Color: 0xFFFFFF},
			{X: 0, Y: 2, Color: 0xFFFFFF},
		},
	})
	s.DrawLine(&cmdq.DrawLine{
		Verts: []cmdq.Vertex{
			{X: 0, Y: 100, Color: 0xFFFFFF},
			{X: vram.Width, Y: 100, Color: 0xFFFFFF},
		},
	})

	if got := s.env.VRAM.At(0, 0); got != 0 {
		t.Errorf("oversized triangle drew pixels: %#04x", got)
	}
	if got := s.env.VRAM.At(0, 100); got != 0 {
		t.Errorf("oversized line drew pixels: %#04x", got)
	}
}

// A quad's two triangles share the diagonal; with additive blending
// any overdraw or gap along it would show in the sum.
func TestQuadSharedEdgeExact(t *testing.T) {
	s := newHeadless(t)
	s.FillVRAM(0, 0, 8, 8, 0x202020, 0) // background (4,4,4)
	s.DrawPolygon(&cmdq.DrawPolygon{
		Flags:   cmdq.DrawQuad | cmdq.DrawSemiTransparent,
		TexPage: 1 << 5, // additive
		Verts: []cmdq.Vertex{
			{X: 0, Y: 0, Color: 0x404040},
			{X: 8, Y: 0, Color: 0x404040},
			{X: 0, Y: 8, Color: 0x404040},
			{X: 8, Y: 8, Color: 0x404040},
		},
	})

	want := uint16(12 | 12<<5 | 12<<10)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if got := s.env.VRAM.At(x, y); got != want {
				t.Errorf("At(%d,%d) = %#04x, want %#04x (drawn exactly once)", x, y, got, want)
			}
		}
	}
}

func TestLinePixelsAndSymmetry(t *testing.T) {
	s := newHeadless(t)
	s.DrawLine(&cmdq.DrawLine{
		Verts: []cmdq.Vertex{
			{X: 10, Y: 10, Color: 0xFFFFFF},
			{X: 13, Y: 13, Color: 0xFFFFFF},
		},
	})
	// Reversed endpoints normalize to the same left-to-right walk.
	s.DrawLine(&cmdq.DrawLine{
		Verts: []cmdq.Vertex{
			{X: 20, Y: 13, Color: 0xFFFFFF},
			{X: 17, Y: 10, Color: 0xFFFFFF},
		},
	})

	for i := 0; i < 4; i++ {
		if got := s.env.VRAM.At(10+i, 10+i); got != 0x7FFF {
			t.Errorf("diagonal missing pixel (%d,%d): %#04x", 10+i, 10+i, got)
		}
		if got := s.env.VRAM.At(17+i, 10+i); got != 0x7FFF {
			t.Errorf("reversed diagonal missing pixel (%d,%d): %#04x", 17+i, 10+i, got)
		}
	}
	if got := s.env.VRAM.At(14, 14); got != 0 {
		t.Errorf("line overshot endpoint: %#04x", got)
	}
}

func TestLineGouraudSteps(t *testing.T) {
	s := newHeadless(t)
	s.DrawLine(&cmdq.DrawLine{
		Flags: cmdq.DrawShaded,
		Verts: []cmdq.Vertex{
			{X: 30, Y: 50, Color: 0x000000},
			{X: 34, Y: 50, Color: 0x000040},
		},
	})

	want := []uint16{0, 2, 4, 6, 8} // red 0,16,32,48,64 truncated to 5 bits
	for i, w := range want {
		if got := s.env.VRAM.At(30+i, 50); got != w {
			t.Errorf("At(%d,50) = %#04x, want %#04x", 30+i, got, w)
		}
	}
}

func TestLinePairsNotPolyline(t *testing.T) {
	s := newHeadless(t)
	// Four vertices are two independent segments, not three connected
	// ones.
	s.DrawLine(&cmdq.DrawLine{
		Verts: []cmdq.Vertex{
			{X: 0, Y: 200, Color: 0xFFFFFF},
			{X: 2, Y: 200, Color: 0xFFFFFF},
			{X: 10, Y: 200, Color: 0xFFFFFF},
			{X: 12, Y: 200, Color: 0xFFFFFF},
		},
	})

	for _, x := range []int{0, 1, 2, 10, 11, 12} {
		if got := s.env.VRAM.At(x, 200); got != 0x7FFF {
			t.Errorf("segment missing pixel (%d,200): %#04x", x, got)
		}
	}
	for _, x := range []int{5, 6, 7} {
		if got := s.env.VRAM.At(x, 200); got != 0 {
			t.Errorf("gap between pairs drawn at (%d,200): %#04x", x, got)
		}
	}
}

func TestPrecisePolygonUsesNativeCoords(t *testing.T) {
	a, b := newHeadless(t), newHeadless(t)
	a.DrawPrecisePolygon(&cmdq.DrawPrecisePolygon{
		Verts: []cmdq.PreciseVertex{
			{X: 0.7, Y: 0.2, NativeX: 0, NativeY: 0, Color: 0xFFFFFF},
			{X: 4.6, Y: 0.1, NativeX: 4, NativeY: 0, Color: 0xFFFFFF},
			{X: 0.3, Y: 4.9, NativeX: 0, NativeY: 4, Color: 0xFFFFFF},
		},
	})
	b.DrawPolygon(&cmdq.DrawPolygon{
		Verts: []cmdq.Vertex{
			{X: 0, Y: 0, Color: 0xFFFFFF},
			{X: 4, Y: 0, Color: 0xFFFFFF},
			{X: 0, Y: 4, Color: 0xFFFFFF},
		},
	})

	if diff := cmp.Diff(readRect(b, 0, 0, 8, 8), readRect(a, 0, 0, 8, 8)); diff != "" {
		t.Errorf("precise/native mismatch (-native +precise):\n%s", diff)
	}
}
