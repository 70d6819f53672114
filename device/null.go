// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"fmt"

	"github.com/yeager/psxgpu/backend"
	"github.com/yeager/psxgpu/vram"
)

func init() {
	RegisterAPI(APINull, func(opts *CreateOptions) (Device, error) {
		return NewNullDevice(opts), nil
	})
}

// NullDevice is the CPU device: textures are process memory and
// presents go nowhere. It supports every display format, making it
// the device of last resort and the workhorse for tests that need
// format negotiation or device failures without a GPU.
type NullDevice struct {
	opts  CreateOptions
	vsync bool

	backW, backH int

	// Formats restricts SupportsFormat to the listed formats. Nil
	// means all formats are supported.
	Formats []vram.PixelFormat

	// PresentHook, when set, runs instead of the default no-op
	// present. Tests use it to inject present failures.
	PresentHook func(d *backend.Display) error

	// CreateHook, when set, runs before each texture creation and can
	// veto it.
	CreateHook func(w, h int, f vram.PixelFormat) error

	// PresentCount counts successful presents.
	PresentCount int
}

// NewNullDevice creates a CPU device. It cannot fail.
func NewNullDevice(opts *CreateOptions) *NullDevice {
	if opts == nil {
		opts = &CreateOptions{}
	}
	return &NullDevice{
		opts:  *opts,
		vsync: opts.VSync,
		backW: opts.WindowWidth,
		backH: opts.WindowHeight,
	}
}

func (d *NullDevice) API() RenderAPI { return APINull }

func (d *NullDevice) AdapterInfo() AdapterInfo {
	return AdapterInfo{Name: "null", API: APINull}
}

// Features reports everything enabled minus the configured disables.
// A CPU device has no capability gaps.
func (d *NullDevice) Features() Feature {
	all := FeatureDualSourceBlend | FeatureFramebufferFetch |
		FeatureTextureBuffers | FeatureMemoryImport | FeatureRasterOrderViews
	return all &^ d.opts.DisableFeatures
}

func (d *NullDevice) SupportsFormat(f vram.PixelFormat) bool {
	if d.Formats == nil {
		return true
	}
	for _, allowed := range d.Formats {
		if f == allowed {
			return true
		}
	}
	return false
}

func (d *NullDevice) CreateTexture(w, h int, f vram.PixelFormat) (backend.Texture, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrTextureAllocation, w, h)
	}
	if !d.SupportsFormat(f) {
		return nil, fmt.Errorf("%w: format %v", ErrTextureAllocation, f)
	}
	if d.CreateHook != nil {
		if err := d.CreateHook(w, h, f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTextureAllocation, err)
		}
	}
	return &nullTexture{
		width:  w,
		height: h,
		format: f,
		pixels: make([]byte, w*h*f.BytesPerPixel()),
	}, nil
}

func (d *NullDevice) ResizeSwapchain(w, h int) error {
	d.backW, d.backH = w, h
	return nil
}

func (d *NullDevice) SetVSync(enabled bool) { d.vsync = enabled }
func (d *NullDevice) VSyncEnabled() bool    { return d.vsync }

func (d *NullDevice) Present(disp *backend.Display) error {
	if d.PresentHook != nil {
		if err := d.PresentHook(disp); err != nil {
			return err
		}
	}
	d.PresentCount++
	return nil
}

func (d *NullDevice) ReadTexture(t backend.Texture) ([]byte, error) {
	tex, ok := t.(*nullTexture)
	if !ok {
		return nil, fmt.Errorf("device: foreign texture")
	}
	if tex.destroyed {
		return nil, fmt.Errorf("device: read of destroyed texture")
	}
	out := make([]byte, len(tex.pixels))
	copy(out, tex.pixels)
	return out, nil
}

func (d *NullDevice) WaitIdle() {}
func (d *NullDevice) Destroy()  {}

// nullTexture is a tightly packed CPU pixel buffer.
type nullTexture struct {
	width     int
	height    int
	format    vram.PixelFormat
	pixels    []byte
	destroyed bool
}

func (t *nullTexture) Size() (w, h int)         { return t.width, t.height }
func (t *nullTexture) Format() vram.PixelFormat { return t.format }

func (t *nullTexture) Update(x, y, w, h int, pixels []byte, stride int) error {
	if t.destroyed {
		return fmt.Errorf("device: update of destroyed texture")
	}
	if x < 0 || y < 0 || w <= 0 || h <= 0 || x+w > t.width || y+h > t.height {
		return fmt.Errorf("device: update rect %dx%d+%d+%d outside %dx%d texture",
			w, h, x, y, t.width, t.height)
	}
	bpp := t.format.BytesPerPixel()
	texStride := t.width * bpp
	for row := 0; row < h; row++ {
		src := pixels[row*stride : row*stride+w*bpp]
		copy(t.pixels[(y+row)*texStride+x*bpp:], src)
	}
	return nil
}

func (t *nullTexture) Destroy() { t.destroyed = true }
