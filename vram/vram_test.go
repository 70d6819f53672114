// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vram

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRAMToroidalAddressing(t *testing.T) {
	r := New()
	r.Set(0, 0, 0x1111)
	r.Set(Width-1, Height-1, 0x2222)

	if got := r.At(Width, 0); got != 0x1111 {
		t.Errorf("At(Width, 0) = %#04x, want wrap to (0,0) = 0x1111", got)
	}
	if got := r.At(0, Height); got != 0x1111 {
		t.Errorf("At(0, Height) = %#04x, want wrap to (0,0) = 0x1111", got)
	}
	if got := r.At(-1, -1); got != 0x2222 {
		t.Errorf("At(-1, -1) = %#04x, want wrap to (Width-1, Height-1) = 0x2222", got)
	}

	r.Set(Width+3, Height+2, 0x3333)
	if got := r.At(3, 2); got != 0x3333 {
		t.Errorf("Set(Width+3, Height+2) did not wrap: At(3,2) = %#04x", got)
	}
}

func TestRAMRowAndClear(t *testing.T) {
	r := New()
	r.Set(5, 7, 0xABCD)
	row := r.Row(7)
	if len(row) != Width {
		t.Fatalf("Row length = %d, want %d", len(row), Width)
	}
	if row[5] != 0xABCD {
		t.Errorf("Row(7)[5] = %#04x, want 0xABCD", row[5])
	}
	if got := r.Row(7 + Height)[5]; got != 0xABCD {
		t.Errorf("Row(7+Height)[5] = %#04x, want wrap to 0xABCD", got)
	}

	r.Clear()
	if r.At(5, 7) != 0 {
		t.Error("Clear left pixel set")
	}
}

func TestCLUTLoad(t *testing.T) {
	r := New()
	row := 100
	base := 3 * 16 // palette register X field = 3
	for i := 0; i < CLUTSize; i++ {
		r.Set(base+i, row, uint16(0x4000+i))
	}

	reg := PaletteReg(3 | row<<6)
	if reg.X() != base || reg.Y() != row {
		t.Fatalf("PaletteReg decode = (%d, %d), want (%d, %d)", reg.X(), reg.Y(), base, row)
	}

	var c CLUT
	c.Load(r, reg, false)
	want16 := make([]uint16, 16)
	for i := range want16 {
		want16[i] = uint16(0x4000 + i)
	}
	if diff := cmp.Diff(want16, c[:16]); diff != "" {
		t.Errorf("4-bit CLUT mismatch (-want +got):\n%s", diff)
	}
	for i := 16; i < CLUTSize; i++ {
		if c[i] != 0 {
			t.Fatalf("4-bit load touched entry %d", i)
		}
	}

	c.Load(r, reg, true)
	if c[255] != 0x4000+255 {
		t.Errorf("8-bit CLUT entry 255 = %#04x, want %#04x", c[255], 0x4000+255)
	}
}

func TestCLUTLoadWrapsInX(t *testing.T) {
	r := New()
	row := 10
	// Palette starting 16 pixels before the right edge wraps to column 0.
	base := Width - 16
	r.Set(0, row, 0xBEEF)

	var c CLUT
	c.Load(r, PaletteReg(uint16(base/16)|uint16(row)<<6), true)
	if c[16] != 0xBEEF {
		t.Errorf("wrapped CLUT entry = %#04x, want 0xBEEF", c[16])
	}
}

func TestRectOps(t *testing.T) {
	a := RectWH(10, 10, 20, 20)
	if a.Width() != 20 || a.Height() != 20 {
		t.Fatalf("RectWH size = %dx%d, want 20x20", a.Width(), a.Height())
	}
	if !a.Contains(10, 10) || a.Contains(30, 30) {
		t.Error("Contains half-open check failed")
	}

	b := RectWH(25, 25, 20, 20)
	got := a.Intersect(b)
	want := Rect{Left: 25, Top: 25, Right: 30, Bottom: 30}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Intersect mismatch (-want +got):\n%s", diff)
	}

	if !a.Intersect(RectWH(100, 100, 5, 5)).Empty() {
		t.Error("disjoint Intersect not empty")
	}

	u := a.Union(b)
	wantU := Rect{Left: 10, Top: 10, Right: 45, Bottom: 45}
	if diff := cmp.Diff(wantU, u); diff != "" {
		t.Errorf("Union mismatch (-want +got):\n%s", diff)
	}
	if got := (Rect{}).Union(a); got != a {
		t.Errorf("empty Union identity = %+v, want %+v", got, a)
	}
}
