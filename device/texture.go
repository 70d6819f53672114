// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/yeager/psxgpu/vram"
)

// textureFormatFor maps a display pixel format to the texture format
// backing it. Only the byte-per-channel formats have a portable
// texture representation; the packed 16-bit formats are rejected
// during display format negotiation via SupportsFormat.
func textureFormatFor(f vram.PixelFormat) (gputypes.TextureFormat, bool) {
	switch f {
	case vram.FormatRGBA8:
		return gputypes.TextureFormatRGBA8Unorm, true
	case vram.FormatBGRA8:
		return gputypes.TextureFormatBGRA8Unorm, true
	}
	return gputypes.TextureFormatUndefined, false
}

// wgpuTexture is a display texture resident on a wgpuDevice. A CPU
// shadow of the full texture is kept so partial Update rectangles can
// be composed before the upload; display updates rewrite the whole
// frame, so the shadow costs one memcpy on the hot path.
type wgpuTexture struct {
	dev  *wgpuDevice
	tex  hal.Texture
	view hal.TextureView

	width  int
	height int
	format vram.PixelFormat

	shadow    []byte
	destroyed bool
}

func newWgpuTexture(dev *wgpuDevice, w, h int, f vram.PixelFormat) (*wgpuTexture, error) {
	halFormat, ok := textureFormatFor(f)
	if !ok {
		return nil, fmt.Errorf("%w: no texture format for %v", ErrTextureAllocation, f)
	}

	tex, err := dev.hal.CreateTexture(&hal.TextureDescriptor{
		Label:         fmt.Sprintf("display_%dx%d", w, h),
		Size:          hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        halFormat,
		Usage: gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTextureAllocation, err)
	}

	view, err := dev.hal.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "display_view",
		Format:        halFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		dev.hal.DestroyTexture(tex)
		return nil, fmt.Errorf("%w: create view: %v", ErrTextureAllocation, err)
	}

	return &wgpuTexture{
		dev:    dev,
		tex:    tex,
		view:   view,
		width:  w,
		height: h,
		format: f,
		shadow: make([]byte, w*h*f.BytesPerPixel()),
	}, nil
}

func (t *wgpuTexture) Size() (w, h int)         { return t.width, t.height }
func (t *wgpuTexture) Format() vram.PixelFormat { return t.format }

// Update composes the rectangle into the CPU shadow and uploads the
// texture. The copy region API has no destination origin, so the
// upload always spans the full texture; for the usual full-frame
// update the shadow copy and the upload cover the same bytes.
func (t *wgpuTexture) Update(x, y, w, h int, pixels []byte, stride int) error {
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
		dst := t.shadow[(y+row)*texStride+x*bpp:]
		copy(dst, src)
	}

	t.dev.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
		},
		t.shadow,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(texStride),
			RowsPerImage: uint32(t.height),
		},
		&hal.Extent3D{Width: uint32(t.width), Height: uint32(t.height), DepthOrArrayLayers: 1},
	)
	return nil
}

func (t *wgpuTexture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.dev.dropBlitBinding(t.view)
	t.dev.hal.DestroyTextureView(t.view)
	t.dev.hal.DestroyTexture(t.tex)
}
