// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"errors"
	"fmt"

	"github.com/yeager/psxgpu/backend"
	"github.com/yeager/psxgpu/vram"
)

// Device errors. Present failures are classified so the render thread
// can tell a transient skip from a lost device.
var (
	// ErrAPIUnavailable is returned when no factory can serve the
	// requested graphics API.
	ErrAPIUnavailable = errors.New("device: graphics API not available")

	// ErrDeviceLost signals an unrecoverable device failure. The
	// render thread responds by destroying and recreating both the
	// device and the active backend.
	ErrDeviceLost = errors.New("device: device lost")

	// ErrFullscreenLost signals that exclusive fullscreen was taken
	// away by the host. The swapchain must be recreated windowed.
	ErrFullscreenLost = errors.New("device: exclusive fullscreen lost")

	// ErrPresentFailed is a transient present failure that is safe to
	// retry on the next frame.
	ErrPresentFailed = errors.New("device: present failed")

	// ErrTextureAllocation is returned when a texture cannot be
	// created. Callers degrade (the display keeps its stale texture)
	// rather than aborting.
	ErrTextureAllocation = errors.New("device: texture allocation failed")

	// ErrNoDisplayTexture is returned by capture operations when the
	// display has no current frame.
	ErrNoDisplayTexture = errors.New("device: no display texture")
)

// RenderAPI selects the host graphics API a Device is built on.
type RenderAPI uint8

const (
	// APIAuto walks the fallback order and takes the first API that
	// comes up.
	APIAuto RenderAPI = iota
	// APIVulkan is the wgpu HAL on top of Vulkan.
	APIVulkan
	// APINoop is the wgpu HAL on top of its no-output backend. Every
	// resource operation succeeds; nothing reaches a screen. Used to
	// exercise the hardware path on machines without a GPU.
	APINoop
	// APINull is the CPU device: textures live in process memory and
	// presents are dropped. It supports all display formats.
	APINull
)

func (a RenderAPI) String() string {
	switch a {
	case APIAuto:
		return "auto"
	case APIVulkan:
		return "vulkan"
	case APINoop:
		return "noop"
	case APINull:
		return "null"
	}
	return fmt.Sprintf("api(%d)", uint8(a))
}

// ParseAPI maps a configuration string to a RenderAPI.
func ParseAPI(s string) (RenderAPI, error) {
	switch s {
	case "", "auto":
		return APIAuto, nil
	case "vulkan", "vk":
		return APIVulkan, nil
	case "noop":
		return APINoop, nil
	case "null", "none":
		return APINull, nil
	}
	return APIAuto, fmt.Errorf("device: unknown graphics API %q", s)
}

// Feature flags describe optional device capabilities the renderers
// may take advantage of. Configuration can force any of them off.
type Feature uint32

const (
	// FeatureDualSourceBlend enables dual-source blending.
	FeatureDualSourceBlend Feature = 1 << iota
	// FeatureFramebufferFetch enables reading the framebuffer in the
	// fragment stage.
	FeatureFramebufferFetch
	// FeatureTextureBuffers enables texel buffer views.
	FeatureTextureBuffers
	// FeatureMemoryImport enables importing host memory as buffers.
	FeatureMemoryImport
	// FeatureRasterOrderViews enables rasterizer-ordered views.
	FeatureRasterOrderViews
)

// Has reports whether all bits of want are set.
func (f Feature) Has(want Feature) bool { return f&want == want }

func (f Feature) String() string {
	if f == 0 {
		return "none"
	}
	names := []struct {
		bit  Feature
		name string
	}{
		{FeatureDualSourceBlend, "dual-source-blend"},
		{FeatureFramebufferFetch, "framebuffer-fetch"},
		{FeatureTextureBuffers, "texture-buffers"},
		{FeatureMemoryImport, "memory-import"},
		{FeatureRasterOrderViews, "raster-order-views"},
	}
	s := ""
	for _, n := range names {
		if f&n.bit == 0 {
			continue
		}
		if s != "" {
			s += ","
		}
		s += n.name
	}
	return s
}

// AdapterInfo describes the physical adapter behind a device.
type AdapterInfo struct {
	// Name is the adapter name reported by the driver.
	Name string
	// Vendor is the adapter vendor.
	Vendor string
	// Driver is the driver version string, when known.
	Driver string
	// API is the graphics API the adapter was enumerated through.
	API RenderAPI
	// Discrete is true for dedicated GPUs.
	Discrete bool
}

func (a AdapterInfo) String() string {
	if a.Name == "" {
		return a.API.String()
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.API)
}

// CreateOptions carries everything a factory needs to bring a device
// up against the host window.
type CreateOptions struct {
	// WindowWidth and WindowHeight size the swapchain backbuffer.
	// Zero dimensions mean headless operation.
	WindowWidth, WindowHeight int

	// Fullscreen requests a fullscreen swapchain; Exclusive
	// additionally asks for exclusive mode.
	Fullscreen, Exclusive bool

	// VSync sets the initial presentation pacing.
	VSync bool

	// DisableFeatures force-disables capabilities the device would
	// otherwise report.
	DisableFeatures Feature

	// ShaderCacheDir holds compiled shader binaries across runs.
	// Empty disables the on-disk cache.
	ShaderCacheDir string

	// ShaderCacheVersion tags the cache; a mismatch wipes it.
	ShaderCacheVersion string
}

// Device is the host graphics device owned by the render thread. It
// doubles as the backend.TextureFactory handed to backends through
// their Env.
type Device interface {
	// API returns the graphics API this device runs on.
	API() RenderAPI

	// AdapterInfo describes the adapter in use.
	AdapterInfo() AdapterInfo

	// Features returns the capabilities left enabled after the
	// configured force-disables.
	Features() Feature

	// SupportsFormat reports whether display textures of the given
	// format can be created and sampled.
	SupportsFormat(f vram.PixelFormat) bool

	// CreateTexture creates a display texture. Failures wrap
	// ErrTextureAllocation.
	CreateTexture(w, h int, f vram.PixelFormat) (backend.Texture, error)

	// ResizeSwapchain resizes the backbuffer after a window resize.
	ResizeSwapchain(w, h int) error

	// SetVSync switches presentation pacing. Takes effect on the next
	// present.
	SetVSync(enabled bool)

	// VSyncEnabled reports the current pacing mode.
	VSyncEnabled() bool

	// Present blits the display's current frame to the backbuffer and
	// presents it. Errors are one of ErrPresentFailed (transient),
	// ErrFullscreenLost, or ErrDeviceLost.
	Present(d *backend.Display) error

	// ReadTexture copies a texture's pixels back to the CPU, tightly
	// packed at the texture's native stride.
	ReadTexture(t backend.Texture) ([]byte, error)

	// WaitIdle blocks until all submitted GPU work has finished.
	WaitIdle()

	// Destroy releases the device and everything it owns.
	Destroy()
}

// Device implementations must satisfy the backend texture factory so
// they can be wired straight into a backend Env.
var _ backend.TextureFactory = Device(nil)

// Create brings up a device for the requested API. APIAuto (and any
// API whose factory fails) walks the fallback order; the first device
// that comes up wins. When everything fails the error aggregates the
// last failure per attempted API.
func Create(api RenderAPI, opts *CreateOptions) (Device, error) {
	if opts == nil {
		opts = &CreateOptions{}
	}

	order := []RenderAPI{api}
	if api == APIAuto {
		order = fallbackOrder()
	}

	var firstErr error
	for _, candidate := range order {
		factory, ok := lookupAPI(candidate)
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %v", ErrAPIUnavailable, candidate)
			}
			continue
		}
		dev, err := factory(opts)
		if err != nil {
			slogger().Warn("device creation failed", "api", candidate.String(), "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("create %v device: %w", candidate, err)
			}
			continue
		}
		return dev, nil
	}

	if firstErr == nil {
		firstErr = ErrAPIUnavailable
	}
	return nil, firstErr
}
