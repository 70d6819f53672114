// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/yeager/psxgpu/backend"
	"github.com/yeager/psxgpu/vram"
)

// Host presenter errors.
var (
	// ErrNoTextureCreator is returned when the host draw context
	// cannot create textures.
	ErrNoTextureCreator = errors.New("device: host context has no texture creator")

	// ErrHostTextureType is returned when the host hands back a
	// texture that cannot be drawn or updated.
	ErrHostTextureType = errors.New("device: host texture has unexpected type")
)

// HostPresenter presents display frames through a host UI context
// instead of a device swapchain. Embedders hand the render window's
// texture drawer over; display textures then live as host textures
// and presenting is a positioned draw.
//
// HostPresenter is a backend.TextureFactory, so it can be wired into
// a backend Env directly. Host textures are RGBA only, which steers
// format negotiation to FormatRGBA8.
type HostPresenter struct {
	dc gpucontext.TextureDrawer
}

var _ backend.TextureFactory = (*HostPresenter)(nil)

// NewHostPresenter wraps a host texture drawer.
func NewHostPresenter(dc gpucontext.TextureDrawer) *HostPresenter {
	return &HostPresenter{dc: dc}
}

// SupportsFormat reports RGBA8 only; host texture uploads are RGBA.
func (p *HostPresenter) SupportsFormat(f vram.PixelFormat) bool {
	return f == vram.FormatRGBA8
}

// CreateTexture creates a host texture of the given size, initially
// black.
func (p *HostPresenter) CreateTexture(w, h int, f vram.PixelFormat) (backend.Texture, error) {
	if f != vram.FormatRGBA8 {
		return nil, fmt.Errorf("%w: format %v", ErrTextureAllocation, f)
	}
	creator := p.dc.TextureCreator()
	if creator == nil {
		return nil, fmt.Errorf("%w: %v", ErrTextureAllocation, ErrNoTextureCreator)
	}
	shadow := make([]byte, w*h*4)
	raw, err := creator.NewTextureFromRGBA(w, h, shadow)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTextureAllocation, err)
	}
	return &hostTexture{raw: raw, width: w, height: h, shadow: shadow}, nil
}

// Present draws the display's current texture at its letterboxed
// position inside the window. Frames without a host texture are
// skipped.
func (p *HostPresenter) Present(disp *backend.Display, windowW, windowH int) error {
	if disp == nil {
		return nil
	}
	tex, ok := disp.Texture.(*hostTexture)
	if !ok || tex == nil || tex.destroyed {
		return nil
	}
	gpuTex, ok := tex.raw.(gpucontext.Texture)
	if !ok {
		return ErrHostTextureType
	}
	_, drawRect := disp.CalculateDrawRect(windowW, windowH, true)
	return p.dc.DrawTexture(gpuTex, float32(drawRect.Left), float32(drawRect.Top))
}

// hostTexture wraps a host-owned texture. The full-frame shadow
// exists because host uploads replace the whole texture; partial
// updates are composed into it first.
type hostTexture struct {
	raw    any
	width  int
	height int

	shadow    []byte
	destroyed bool
}

func (t *hostTexture) Size() (w, h int)         { return t.width, t.height }
func (t *hostTexture) Format() vram.PixelFormat { return vram.FormatRGBA8 }

func (t *hostTexture) Update(x, y, w, h int, pixels []byte, stride int) error {
	if t.destroyed {
		return fmt.Errorf("device: update of destroyed texture")
	}
	if x < 0 || y < 0 || w <= 0 || h <= 0 || x+w > t.width || y+h > t.height {
		return fmt.Errorf("device: update rect %dx%d+%d+%d outside %dx%d texture",
			w, h, x, y, t.width, t.height)
	}
	texStride := t.width * 4
	for row := 0; row < h; row++ {
		src := pixels[row*stride : row*stride+w*4]
		copy(t.shadow[(y+row)*texStride+x*4:], src)
	}

	updater, ok := t.raw.(gpucontext.TextureUpdater)
	if !ok {
		return ErrHostTextureType
	}
	return updater.UpdateData(t.shadow)
}

func (t *hostTexture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	if destroyer, ok := t.raw.(interface{ Destroy() }); ok {
		destroyer.Destroy()
	}
}
