// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"fmt"
	"image"

	"github.com/yeager/psxgpu/backend"
)

// CaptureDisplay renders the current display into an RGBA image. A
// CPU-resident frame is used directly; a display that presents only a
// device texture is read back first. Returns ErrNoDisplayTexture when
// there is nothing to capture.
func CaptureDisplay(dev Device, d *backend.Display, mode backend.ScreenshotMode, windowW, windowH int) (*image.RGBA, error) {
	if img := d.RenderScreenshot(mode, windowW, windowH); img != nil {
		return img, nil
	}
	if d.Texture == nil {
		return nil, ErrNoDisplayTexture
	}

	pixels, err := dev.ReadTexture(d.Texture)
	if err != nil {
		return nil, fmt.Errorf("device: capture display: %w", err)
	}
	w, h := d.Texture.Size()
	f := d.Texture.Format()
	fr := backend.Frame{
		Format: f,
		Width:  w,
		Height: h,
		Stride: w * f.BytesPerPixel(),
		Pixels: pixels,
	}

	// Re-render through the display's own geometry with the readback
	// standing in for the missing CPU frame.
	tmp := *d
	tmp.Frame = &fr
	img := tmp.RenderScreenshot(mode, windowW, windowH)
	if img == nil {
		return nil, ErrNoDisplayTexture
	}
	return img, nil
}
