// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"

	"github.com/yeager/psxgpu/vram"
)

// ScreenshotMode selects the geometry of a rendered screenshot.
type ScreenshotMode uint8

const (
	// ScreenshotWindow renders at the given window size with
	// letterbox borders, exactly as presented.
	ScreenshotWindow ScreenshotMode = iota
	// ScreenshotInternal renders at the internal resolution with the
	// display aspect ratio applied to the width.
	ScreenshotInternal
	// ScreenshotRaw copies the scan-out view untouched.
	ScreenshotRaw
)

// ScreenshotSize computes the output dimensions for a mode given the
// current window size.
func (d *Display) ScreenshotSize(mode ScreenshotMode, windowW, windowH int) (int, int) {
	switch mode {
	case ScreenshotInternal:
		h := d.ViewHeight
		w := d.ViewWidth
		if d.AspectRatio > 0 && h > 0 {
			w = int(math.Round(float64(h) * float64(d.AspectRatio)))
		}
		if w <= 0 || h <= 0 {
			return d.ViewWidth, d.ViewHeight
		}
		return w, h
	case ScreenshotRaw:
		return d.ViewWidth, d.ViewHeight
	default:
		return windowW, windowH
	}
}

// frameToRGBA converts the view rectangle of a frame to an RGBA
// image. Packed 16-bit formats expand channels by bit shift; alpha is
// forced opaque, matching what reaches the screen.
func frameToRGBA(f *Frame, viewX, viewY, viewW, viewH int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, viewW, viewH))
	for y := 0; y < viewH; y++ {
		out := img.Pix[y*img.Stride:]
		for x := 0; x < viewW; x++ {
			r, g, b := unpackRGB(f.Format, f.Pixel(viewX+x, viewY+y))
			o := x * 4
			out[o+0] = uint8(r)
			out[o+1] = uint8(g)
			out[o+2] = uint8(b)
			out[o+3] = 0xFF
		}
	}
	return img
}

// RenderScreenshot renders the current display frame into an RGBA
// image of the mode's geometry. It returns nil when there is no
// frame to render.
func (d *Display) RenderScreenshot(mode ScreenshotMode, windowW, windowH int) *image.RGBA {
	if d.Frame == nil {
		return nil
	}
	src := frameToRGBA(d.Frame, d.ViewX, d.ViewY, d.ViewWidth, d.ViewHeight)
	if mode == ScreenshotRaw {
		return src
	}

	outW, outH := d.ScreenshotSize(mode, windowW, windowH)
	if outW <= 0 || outH <= 0 {
		return src
	}
	out := image.NewRGBA(image.Rect(0, 0, outW, outH))

	var target vram.Rect
	if mode == ScreenshotWindow {
		_, target = d.CalculateDrawRect(outW, outH, true)
	} else {
		target = vram.RectWH(0, 0, int32(outW), int32(outH))
	}
	dst := image.Rect(int(target.Left), int(target.Top), int(target.Right), int(target.Bottom))
	xdraw.NearestNeighbor.Scale(out, dst, src, src.Bounds(), xdraw.Src, nil)
	return out
}

// WriteImage encodes img in the format implied by ext (".png" or
// ".bmp").
func WriteImage(w io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(ext) {
	case ".bmp":
		return bmp.Encode(w, img)
	case ".png", "":
		return png.Encode(w, img)
	default:
		return fmt.Errorf("backend: unsupported screenshot format %q", ext)
	}
}

// SaveScreenshot writes img to path, picking the encoder from the
// file extension.
func SaveScreenshot(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("backend: create screenshot: %w", err)
	}
	if err := WriteImage(f, img, filepath.Ext(path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
