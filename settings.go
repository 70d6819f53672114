// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package psxgpu

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/yeager/psxgpu/backend"
	"github.com/yeager/psxgpu/cmdq"
	"github.com/yeager/psxgpu/device"
)

// Settings is the user-facing pipeline configuration. String fields
// use the same spellings the command line accepts; Resolve validates
// them and produces the typed form the pipeline consumes.
type Settings struct {
	// Renderer selects the backend: "auto", "hardware" or "software".
	Renderer string `toml:"renderer"`

	// API selects the device API for the hardware path: "auto",
	// "vulkan", "noop" or "null".
	API string `toml:"api"`

	VSync               bool `toml:"vsync"`
	Fullscreen          bool `toml:"fullscreen"`
	ExclusiveFullscreen bool `toml:"exclusive_fullscreen"`

	// Deinterlace selects field reconstruction: "disabled", "weave",
	// "bob" or "blend".
	Deinterlace     string `toml:"deinterlace"`
	ChromaSmoothing bool   `toml:"chroma_smoothing"`

	// ShowVRAM scans out the whole 1024x512 VRAM instead of the
	// configured display area. A debugging aid.
	ShowVRAM bool `toml:"show_vram"`

	// MaxQueuedFrames bounds how many presented frames may be queued
	// ahead of the render thread. Zero disables the bound.
	MaxQueuedFrames int `toml:"max_queued_frames"`

	// CommandBufferSize is the command ring capacity in bytes. Zero
	// means the default. Must be a multiple of 4.
	CommandBufferSize int `toml:"command_buffer_size"`

	// SyncSpinWait makes synchronizing operations spin briefly before
	// sleeping, trading CPU for latency.
	SyncSpinWait bool `toml:"sync_spin_wait"`

	// DisableFeatures force-disables device capabilities by name:
	// "dual_source_blend", "framebuffer_fetch", "texture_buffers",
	// "memory_import", "raster_order_views".
	DisableFeatures []string `toml:"disable_features"`

	// ShaderCacheDir holds compiled shader binaries across runs.
	// Empty disables the on-disk cache.
	ShaderCacheDir string `toml:"shader_cache_dir"`
}

// DefaultSettings returns the configuration used when nothing else is
// specified: automatic renderer and API, vsync on, weave
// deinterlacing, two frames of queue ahead.
func DefaultSettings() Settings {
	return Settings{
		Renderer:        "auto",
		API:             "auto",
		VSync:           true,
		Deinterlace:     "weave",
		MaxQueuedFrames: 2,
	}
}

// LoadSettings reads a TOML settings file. A missing file is not an
// error: it returns the defaults so first runs work unconfigured.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("load settings: %w", err)
	}
	return s, nil
}

// SaveSettings writes the settings as TOML.
func SaveSettings(path string, s Settings) error {
	buf, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return os.WriteFile(path, buf, 0o644)
}

// ResolvedSettings is the validated, typed form of Settings.
type ResolvedSettings struct {
	Renderer        backend.Renderer
	API             device.RenderAPI
	Deinterlace     backend.DeinterlaceMode
	DisableFeatures device.Feature

	VSync               bool
	Fullscreen          bool
	ExclusiveFullscreen bool
	ChromaSmoothing     bool
	ShowVRAM            bool

	MaxQueuedFrames   int
	CommandBufferSize uint32
	SyncSpinWait      bool
	ShaderCacheDir    string
}

// Resolve validates the settings and maps string fields onto their
// typed equivalents. The first invalid field reports an error.
func (s Settings) Resolve() (ResolvedSettings, error) {
	var r ResolvedSettings
	var err error

	if r.Renderer, err = backend.ParseRenderer(s.Renderer); err != nil {
		return r, err
	}
	if r.API, err = device.ParseAPI(s.API); err != nil {
		return r, err
	}
	if r.Deinterlace, err = backend.ParseDeinterlace(s.Deinterlace); err != nil {
		return r, err
	}
	for _, name := range s.DisableFeatures {
		f, err := parseFeature(name)
		if err != nil {
			return r, err
		}
		r.DisableFeatures |= f
	}

	size := s.CommandBufferSize
	if size == 0 {
		size = cmdq.DefaultBufferSize
	}
	if size < cmdq.MinBufferSize || size%4 != 0 {
		return r, fmt.Errorf("command_buffer_size %d: must be a multiple of 4, at least %d", size, cmdq.MinBufferSize)
	}
	r.CommandBufferSize = uint32(size)

	if s.MaxQueuedFrames < 0 {
		return r, fmt.Errorf("max_queued_frames %d: must not be negative", s.MaxQueuedFrames)
	}
	r.MaxQueuedFrames = s.MaxQueuedFrames

	r.VSync = s.VSync
	r.Fullscreen = s.Fullscreen
	r.ExclusiveFullscreen = s.ExclusiveFullscreen
	r.ChromaSmoothing = s.ChromaSmoothing
	r.ShowVRAM = s.ShowVRAM
	r.SyncSpinWait = s.SyncSpinWait
	r.ShaderCacheDir = s.ShaderCacheDir
	return r, nil
}

func parseFeature(name string) (device.Feature, error) {
	switch name {
	case "dual_source_blend":
		return device.FeatureDualSourceBlend, nil
	case "framebuffer_fetch":
		return device.FeatureFramebufferFetch, nil
	case "texture_buffers":
		return device.FeatureTextureBuffers, nil
	case "memory_import":
		return device.FeatureMemoryImport, nil
	case "raster_order_views":
		return device.FeatureRasterOrderViews, nil
	}
	return 0, fmt.Errorf("unknown device feature %q", name)
}
