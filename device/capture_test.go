// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"errors"
	"testing"

	"github.com/yeager/psxgpu/backend"
	"github.com/yeager/psxgpu/vram"
)

func TestCaptureDisplayFromTexture(t *testing.T) {
	dev := NewNullDevice(nil)
	tex, err := dev.CreateTexture(4, 2, vram.FormatRGBA8)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	px := make([]byte, 4*2*4)
	for i := 0; i < 8; i++ {
		px[i*4+0] = byte(10 * i)
		px[i*4+1] = byte(10*i + 1)
		px[i*4+2] = byte(10*i + 2)
	}
	if err := tex.Update(0, 0, 4, 2, px, 4*4); err != nil {
		t.Fatalf("Update: %v", err)
	}

	disp := &backend.Display{
		Width: 4, Height: 2, VRAMWidth: 4, VRAMHeight: 2,
		Texture:   tex,
		ViewWidth: 4, ViewHeight: 2,
	}
	img, err := CaptureDisplay(dev, disp, backend.ScreenshotRaw, 0, 0)
	if err != nil {
		t.Fatalf("CaptureDisplay: %v", err)
	}
	if got := img.Bounds().Dx(); got != 4 {
		t.Fatalf("capture width = %d, want 4", got)
	}

	// Pixel (1,1) is index 5; alpha is forced opaque.
	o := 1*img.Stride + 1*4
	if img.Pix[o] != 50 || img.Pix[o+1] != 51 || img.Pix[o+2] != 52 || img.Pix[o+3] != 0xFF {
		t.Errorf("pixel (1,1) = %v, want [50 51 52 255]", img.Pix[o:o+4])
	}
}

func TestCaptureDisplayPrefersCPUFrame(t *testing.T) {
	dev := NewNullDevice(nil)
	fr := backend.NewFrame(vram.FormatRGBA8, 2, 1)
	fr.SetPixel(0, 0, 0xFF0000FF)

	disp := &backend.Display{
		Width: 2, Height: 1, VRAMWidth: 2, VRAMHeight: 1,
		Frame:     fr,
		ViewWidth: 2, ViewHeight: 1,
	}
	img, err := CaptureDisplay(dev, disp, backend.ScreenshotRaw, 0, 0)
	if err != nil {
		t.Fatalf("CaptureDisplay: %v", err)
	}
	if img.Pix[0] != 0xFF || img.Pix[1] != 0 || img.Pix[2] != 0 {
		t.Errorf("pixel (0,0) = %v, want red", img.Pix[0:4])
	}
}

func TestCaptureDisplayNothingToCapture(t *testing.T) {
	dev := NewNullDevice(nil)
	_, err := CaptureDisplay(dev, &backend.Display{}, backend.ScreenshotRaw, 0, 0)
	if !errors.Is(err, ErrNoDisplayTexture) {
		t.Errorf("CaptureDisplay = %v, want ErrNoDisplayTexture", err)
	}
}

func TestCaptureDisplayReadFailure(t *testing.T) {
	dev := NewNullDevice(nil)
	tex, err := dev.CreateTexture(2, 2, vram.FormatRGBA8)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	tex.Destroy()

	disp := &backend.Display{
		Texture:   tex,
		ViewWidth: 2, ViewHeight: 2,
	}
	if _, err := CaptureDisplay(dev, disp, backend.ScreenshotRaw, 0, 0); err == nil {
		t.Error("capture of destroyed texture succeeded")
	}
}
