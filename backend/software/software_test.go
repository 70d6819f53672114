// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yeager/psxgpu/backend"
	"github.com/yeager/psxgpu/cmdq"
	"github.com/yeager/psxgpu/vram"
)

// fakeTexture records uploads for assertions.
type fakeTexture struct {
	w, h      int
	format    vram.PixelFormat
	pixels    []byte
	stride    int
	updates   int
	updateErr error
	destroyed bool
}

func (t *fakeTexture) Size() (int, int)         { return t.w, t.h }
func (t *fakeTexture) Format() vram.PixelFormat { return t.format }
func (t *fakeTexture) Update(x, y, w, h int, pixels []byte, stride int) error {
	if t.updateErr != nil {
		return t.updateErr
	}
	t.updates++
	t.pixels = append(t.pixels[:0], pixels...)
	t.stride = stride
	return nil
}
func (t *fakeTexture) Destroy() { t.destroyed = true }

// fakeFactory creates fakeTextures for the formats it claims to
// support.
type fakeFactory struct {
	formats   map[vram.PixelFormat]bool
	created   []*fakeTexture
	createErr error
	updateErr error
}

func supportAll() map[vram.PixelFormat]bool {
	return map[vram.PixelFormat]bool{
		vram.FormatRGBA5551: true,
		vram.FormatRGB565:   true,
		vram.FormatRGBA8:    true,
		vram.FormatBGRA8:    true,
	}
}

func (f *fakeFactory) SupportsFormat(p vram.PixelFormat) bool { return f.formats[p] }

func (f *fakeFactory) CreateTexture(w, h int, p vram.PixelFormat) (backend.Texture, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	t := &fakeTexture{w: w, h: h, format: p, updateErr: f.updateErr}
	f.created = append(f.created, t)
	return t, nil
}

func newEnv() *backend.Env {
	return &backend.Env{VRAM: vram.New(), CLUT: new(vram.CLUT)}
}

// newHeadless returns an initialized backend without a texture
// factory, with the drawing area opened to the whole VRAM.
func newHeadless(t *testing.T) *Software {
	t.Helper()
	s := New(newEnv())
	if err := s.Initialize(false); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	s.DrawingAreaChanged(backend.DrawingArea{Right: vram.Width - 1, Bottom: vram.Height - 1})
	return s
}

func TestInitializeFormatNegotiation(t *testing.T) {
	cases := []struct {
		name     string
		supports []vram.PixelFormat
		want16   vram.PixelFormat
		want24   vram.PixelFormat
	}{
		{"all", []vram.PixelFormat{vram.FormatRGBA5551, vram.FormatRGB565, vram.FormatRGBA8, vram.FormatBGRA8},
			vram.FormatRGBA5551, vram.FormatRGBA8},
		{"no packed 16", []vram.PixelFormat{vram.FormatRGBA8, vram.FormatBGRA8},
			vram.FormatRGBA8, vram.FormatRGBA8},
		{"only 565", []vram.PixelFormat{vram.FormatRGB565},
			vram.FormatRGB565, vram.FormatRGB565},
		{"bgra only", []vram.PixelFormat{vram.FormatBGRA8},
			vram.FormatBGRA8, vram.FormatBGRA8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tf := &fakeFactory{formats: map[vram.PixelFormat]bool{}}
			for _, f := range tc.supports {
				tf.formats[f] = true
			}
			env := newEnv()
			env.Textures = tf
			s := New(env)
			if err := s.Initialize(false); err != nil {
				t.Fatalf("Initialize: %v", err)
			}
			if s.fmt16 != tc.want16 || s.fmt24 != tc.want24 {
				t.Errorf("negotiated (%v, %v), want (%v, %v)", s.fmt16, s.fmt24, tc.want16, tc.want24)
			}
		})
	}
}

func TestInitializeNoUsableFormat(t *testing.T) {
	env := newEnv()
	env.Textures = &fakeFactory{formats: map[vram.PixelFormat]bool{}}
	s := New(env)
	err := s.Initialize(false)
	if !errors.Is(err, backend.ErrNoDisplayFormat) {
		t.Fatalf("Initialize err = %v, want ErrNoDisplayFormat", err)
	}
	if s.initialized {
		t.Error("failed Initialize left the backend initialized")
	}
}

func TestInitializeHeadlessDefaults(t *testing.T) {
	s := newHeadless(t)
	if s.fmt16 != vram.FormatRGBA5551 || s.fmt24 != vram.FormatRGBA8 {
		t.Errorf("headless formats = (%v, %v), want (rgba5551, rgba8)", s.fmt16, s.fmt24)
	}
}

func TestInitializeVRAMCarryOver(t *testing.T) {
	env := newEnv()
	env.VRAM.Set(1, 1, 0x7777)

	s := New(env)
	if err := s.Initialize(false); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if env.VRAM.At(1, 1) != 0 {
		t.Error("Initialize(false) kept old VRAM contents")
	}

	env.VRAM.Set(1, 1, 0x7777)
	next := New(env)
	if err := next.Initialize(true); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if env.VRAM.At(1, 1) != 0x7777 {
		t.Error("Initialize(true) dropped carried-over VRAM contents")
	}
}

func TestFillVRAMRepeatsPackedColor(t *testing.T) {
	s := newHeadless(t)
	const color = 0x1234
	s.FillVRAM(8, 8, 16, 16, color, 0)

	want := vram.From24(color)
	if want == 0 {
		t.Fatal("test color packs to zero")
	}
	for y := 8; y < 24; y++ {
		for x := 8; x < 24; x++ {
			if got := s.env.VRAM.At(x, y); got != want {
				t.Fatalf("At(%d,%d) = %#04x, want %#04x", x, y, got, want)
			}
		}
	}
	for _, p := range [][2]int{{7, 8}, {24, 8}, {8, 7}, {8, 24}} {
		if got := s.env.VRAM.At(p[0], p[1]); got != 0 {
			t.Errorf("fill leaked outside rectangle at (%d,%d): %#04x", p[0], p[1], got)
		}
	}
}

func TestFillVRAMWrapsAtEdges(t *testing.T) {
	s := newHeadless(t)
	s.FillVRAM(vram.Width-4, vram.Height-2, 8, 4, 0x0000FF, 0)

	want := vram.From24(0x0000FF)
	for _, p := range [][2]int{
		{vram.Width - 4, vram.Height - 2}, {vram.Width - 1, vram.Height - 1},
		{0, vram.Height - 1}, {3, 0}, {vram.Width - 1, 1}, {0, 0},
	} {
		if got := s.env.VRAM.At(p[0], p[1]); got != want {
			t.Errorf("wrapped fill missing at (%d,%d): %#04x", p[0], p[1], got)
		}
	}
	if got := s.env.VRAM.At(4, 0); got != 0 {
		t.Errorf("fill overshot wrap: At(4,0) = %#04x", got)
	}
}

func TestFillVRAMInterlacedSkipsActiveField(t *testing.T) {
	s := newHeadless(t)
	params := cmdq.ParamInterlaced | cmdq.ParamActiveLineLSB // active lines have y&1 == 1
	s.FillVRAM(0, 0, 4, 4, 0xFFFFFF, params)

	for y := 0; y < 4; y++ {
		got := s.env.VRAM.At(0, y)
		if y&1 == 1 && got != 0 {
			t.Errorf("interlaced fill touched active line %d: %#04x", y, got)
		}
		if y&1 == 0 && got == 0 {
			t.Errorf("interlaced fill skipped inactive line %d", y)
		}
	}
}

func TestUpdateVRAMFastPath(t *testing.T) {
	s := newHeadless(t)
	data := []byte{0x11, 0x00, 0x22, 0x00, 0x33, 0x80, 0x44, 0x00}
	s.UpdateVRAM(100, 200, 2, 2, data, 0)

	want := []uint16{0x0011, 0x0022, 0x8033, 0x0044}
	got := []uint16{
		s.env.VRAM.At(100, 200), s.env.VRAM.At(101, 200),
		s.env.VRAM.At(100, 201), s.env.VRAM.At(101, 201),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("upload mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateVRAMHonorsMaskBits(t *testing.T) {
	s := newHeadless(t)
	s.env.VRAM.Set(5, 5, 0x8000)

	data := []byte{0x11, 0x01, 0x22, 0x02}
	s.UpdateVRAM(5, 5, 2, 1, data, cmdq.ParamCheckMask)
	if got := s.env.VRAM.At(5, 5); got != 0x8000 {
		t.Errorf("masked pixel overwritten: %#04x", got)
	}
	if got := s.env.VRAM.At(6, 5); got != 0x0222 {
		t.Errorf("unmasked pixel = %#04x, want 0x0222", got)
	}

	s.UpdateVRAM(10, 5, 2, 1, data, cmdq.ParamSetMask)
	if got := s.env.VRAM.At(10, 5); got != 0x8111 {
		t.Errorf("set-mask pixel = %#04x, want 0x8111", got)
	}
}

func TestUpdateVRAMWrapsToroidally(t *testing.T) {
	s := newHeadless(t)
	data := make([]byte, 4*3*2)
	for i := 0; i < 12; i++ {
		data[i*2] = byte(i + 1)
	}
	s.UpdateVRAM(vram.Width-2, vram.Height-2, 4, 3, data, 0)

	// Halfwords land row-major across both wrapped axes.
	wantAt := map[[2]int]uint16{
		{vram.Width - 2, vram.Height - 2}: 1, {vram.Width - 1, vram.Height - 2}: 2,
		{0, vram.Height - 2}: 3, {1, vram.Height - 2}: 4,
		{vram.Width - 2, vram.Height - 1}: 5, {1, vram.Height - 1}: 8,
		{vram.Width - 2, 0}: 9, {1, 0}: 12,
	}
	for p, want := range wantAt {
		if got := s.env.VRAM.At(p[0], p[1]); got != want {
			t.Errorf("At(%d,%d) = %d, want %d", p[0], p[1], got, want)
		}
	}
}

func TestCopyVRAMBackwardsOverlap(t *testing.T) {
	s := newHeadless(t)
	for x := 0; x < 6; x++ {
		s.env.VRAM.Set(x, 20, uint16(0x100+x))
	}
	// Destination overlaps the source to the right; a forward copy
	// would re-read its own output.
	s.CopyVRAM(0, 20, 2, 20, 4, 1, 0)

	want := []uint16{0x100, 0x101, 0x100, 0x101, 0x102, 0x103}
	for x, w := range want {
		if got := s.env.VRAM.At(x, 20); got != w {
			t.Errorf("At(%d,20) = %#04x, want %#04x", x, got, w)
		}
	}
}

func TestCopyVRAMForwardOverlap(t *testing.T) {
	s := newHeadless(t)
	for x := 2; x < 8; x++ {
		s.env.VRAM.Set(x, 21, uint16(0x200+x))
	}
	s.CopyVRAM(4, 21, 2, 21, 4, 1, 0)

	want := []uint16{0x204, 0x205, 0x206, 0x207}
	for i, w := range want {
		if got := s.env.VRAM.At(2+i, 21); got != w {
			t.Errorf("At(%d,21) = %#04x, want %#04x", 2+i, got, w)
		}
	}
}

func TestCopyVRAMMaskBits(t *testing.T) {
	s := newHeadless(t)
	s.env.VRAM.Set(0, 30, 0x0123)
	s.env.VRAM.Set(1, 30, 0x0456)
	s.env.VRAM.Set(50, 30, 0x8000)

	s.CopyVRAM(0, 30, 50, 30, 2, 1, cmdq.ParamCheckMask|cmdq.ParamSetMask)
	if got := s.env.VRAM.At(50, 30); got != 0x8000 {
		t.Errorf("masked destination overwritten: %#04x", got)
	}
	if got := s.env.VRAM.At(51, 30); got != 0x8456 {
		t.Errorf("copied pixel = %#04x, want 0x8456 (set-mask applied)", got)
	}
}

func TestCopyVRAMOversizedWidthWraps(t *testing.T) {
	s := newHeadless(t)
	for i := 0; i < 16; i++ {
		s.env.VRAM.Set(vram.Width-8+i, 30, uint16(0x700+i))
	}
	s.CopyVRAM(vram.Width-8, 30, 40, 60, 16, 1, 0)

	for i := 0; i < 16; i++ {
		if got := s.env.VRAM.At(40+i, 60); got != uint16(0x700+i) {
			t.Errorf("At(%d,60) = %#04x, want %#04x", 40+i, got, 0x700+i)
		}
	}
}

func TestClearVRAMClearsPalette(t *testing.T) {
	s := newHeadless(t)
	s.env.VRAM.Set(3, 3, 0x1111)
	s.env.CLUT[7] = 0x2222

	s.ClearVRAM()
	if s.env.VRAM.At(3, 3) != 0 {
		t.Error("VRAM not cleared")
	}
	if s.env.CLUT[7] != 0 {
		t.Error("palette cache not cleared")
	}
}

func TestLoadStateRestoresMemory(t *testing.T) {
	s := newHeadless(t)
	vramData := make([]byte, vram.NumBytes)
	vramData[0], vramData[1] = 0xCD, 0xAB
	vramData[vram.NumBytes-2], vramData[vram.NumBytes-1] = 0x34, 0x12
	clutData := make([]byte, vram.CLUTSize*2)
	clutData[510], clutData[511] = 0xEF, 0xBE

	s.LoadState(vramData, clutData)
	if got := s.env.VRAM.At(0, 0); got != 0xABCD {
		t.Errorf("first pixel = %#04x, want 0xABCD", got)
	}
	if got := s.env.VRAM.At(vram.Width-1, vram.Height-1); got != 0x1234 {
		t.Errorf("last pixel = %#04x, want 0x1234", got)
	}
	if got := s.env.CLUT[255]; got != 0xBEEF {
		t.Errorf("last palette entry = %#04x, want 0xBEEF", got)
	}
}

func TestUpdateCLUTLoadsPalette(t *testing.T) {
	s := newHeadless(t)
	for i := 0; i < 16; i++ {
		s.env.VRAM.Set(16+i, 400, uint16(0x4000+i))
	}
	reg := vram.PaletteReg(1 | 400<<6) // X field 1 -> column 16
	s.UpdateCLUT(reg, false)

	for i := 0; i < 16; i++ {
		if got := s.env.CLUT[i]; got != uint16(0x4000+i) {
			t.Fatalf("CLUT[%d] = %#04x, want %#04x", i, got, 0x4000+i)
		}
	}
}

func TestShutdownReleasesTexture(t *testing.T) {
	tf := &fakeFactory{formats: supportAll()}
	env := newEnv()
	env.Textures = tf
	s := New(env)
	if err := s.Initialize(false); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	s.UpdateDisplay(&cmdq.UpdateDisplay{
		VRAMWidth: 16, VRAMHeight: 16, Width: 16, Height: 16,
	})
	if len(tf.created) != 1 {
		t.Fatalf("created %d textures, want 1", len(tf.created))
	}

	s.Shutdown()
	if !tf.created[0].destroyed {
		t.Error("Shutdown left the display texture alive")
	}
	if s.Display().HasFrame() {
		t.Error("Shutdown left a display frame installed")
	}
}
