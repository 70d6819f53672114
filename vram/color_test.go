// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vram

import "testing"

func TestTo5551KnownValues(t *testing.T) {
	tests := []struct {
		name string
		in   uint16
		want uint16
	}{
		{"black", 0x0000, 0x0000},
		{"full red", 0x001F, 0x7C00},
		{"full green", 0x03E0, 0x03E0},
		{"full blue", 0x7C00, 0x001F},
		{"white", 0x7FFF, 0x7FFF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := To5551(tt.in); got != tt.want {
				t.Errorf("To5551(%#04x) = %#04x, want %#04x", tt.in, got, tt.want)
			}
		})
	}
}

func TestTo565KnownValues(t *testing.T) {
	tests := []struct {
		name string
		in   uint16
		want uint16
	}{
		{"black", 0x0000, 0x0000},
		{"full red", 0x001F, 0xF800},
		{"full green", 0x03E0, 0x07E0},
		{"full blue", 0x7C00, 0x001F},
		{"white", 0x7FFF, 0xFFFF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := To565(tt.in); got != tt.want {
				t.Errorf("To565(%#04x) = %#04x, want %#04x", tt.in, got, tt.want)
			}
		})
	}
}

// TestRepackChannelAgreement exhaustively checks that the 5551 and 565
// repackers agree on the top five bits of every channel and never swap
// channel order. Green gains a sixth bit in 565 by duplicating its top
// bit, which is the only permitted difference.
func TestRepackChannelAgreement(t *testing.T) {
	for v := 0; v <= 0xFFFF; v++ {
		p := uint16(v)
		out5551 := To5551(p)
		out565 := To565(p)

		r5551 := (out5551 >> 10) & 0x1F
		g5551 := (out5551 >> 5) & 0x1F
		b5551 := out5551 & 0x1F

		r565 := (out565 >> 11) & 0x1F
		g565 := (out565 >> 5) & 0x3F
		b565 := out565 & 0x1F

		if r5551 != r565 {
			t.Fatalf("red mismatch for %#04x: 5551=%#x 565=%#x", p, r5551, r565)
		}
		if b5551 != b565 {
			t.Fatalf("blue mismatch for %#04x: 5551=%#x 565=%#x", p, b5551, b565)
		}
		if g5551 != g565>>1 {
			t.Fatalf("green top bits mismatch for %#04x: 5551=%#x 565=%#x", p, g5551, g565)
		}
		if wantDup := (g5551 >> 4) & 1; g565&1 != wantDup {
			t.Fatalf("green duplicated bit wrong for %#04x: got %d, want %d", p, g565&1, wantDup)
		}

		// Against the source: channels must come from the right fields.
		if want := p & 0x1F; r5551 != want {
			t.Fatalf("red channel scrambled for %#04x: got %#x, want %#x", p, r5551, want)
		}
		if want := (p >> 10) & 0x1F; b5551 != want {
			t.Fatalf("blue channel scrambled for %#04x: got %#x, want %#x", p, b5551, want)
		}
	}
}

func TestToRGBA8(t *testing.T) {
	tests := []struct {
		name string
		in   uint16
		want uint32
	}{
		{"black transparent", 0x0000, 0x00000000},
		{"black masked", 0x8000, 0xFF000000},
		{"full red", 0x001F, 0x000000F8},
		{"full green", 0x03E0, 0x0000F800},
		{"full blue", 0x7C00, 0x00F80000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToRGBA8(tt.in); got != tt.want {
				t.Errorf("ToRGBA8(%#04x) = %#08x, want %#08x", tt.in, got, tt.want)
			}
		})
	}
}

func TestToBGRA8AlwaysOpaque(t *testing.T) {
	for _, v := range []uint16{0, 0x7FFF, 0x8000, 0x1234} {
		if got := ToBGRA8(v) >> 24; got != 0xFF {
			t.Errorf("ToBGRA8(%#04x) alpha = %#x, want 0xFF", v, got)
		}
	}
	if got := ToBGRA8(0x001F); got != 0xFFF80000 {
		t.Errorf("ToBGRA8(red) = %#08x, want 0xFFF80000", got)
	}
}

func TestPixelFormatProperties(t *testing.T) {
	tests := []struct {
		f     PixelFormat
		bpp   int
		is16  bool
		name  string
	}{
		{FormatRGBA5551, 2, true, "RGBA5551"},
		{FormatRGB565, 2, true, "RGB565"},
		{FormatRGBA8, 4, false, "RGBA8"},
		{FormatBGRA8, 4, false, "BGRA8"},
		{FormatInvalid, 0, false, "Invalid"},
	}
	for _, tt := range tests {
		if got := tt.f.BytesPerPixel(); got != tt.bpp {
			t.Errorf("%v.BytesPerPixel() = %d, want %d", tt.f, got, tt.bpp)
		}
		if got := tt.f.Is16Bit(); got != tt.is16 {
			t.Errorf("%v.Is16Bit() = %v, want %v", tt.f, got, tt.is16)
		}
		if got := tt.f.String(); got != tt.name {
			t.Errorf("PixelFormat.String() = %q, want %q", got, tt.name)
		}
	}
}
