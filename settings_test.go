// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package psxgpu

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yeager/psxgpu/backend"
	"github.com/yeager/psxgpu/cmdq"
	"github.com/yeager/psxgpu/device"
)

func TestSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpu.toml")

	s := DefaultSettings()
	s.Renderer = "hardware"
	s.API = "vulkan"
	s.Fullscreen = true
	s.CommandBufferSize = 1 << 20
	s.DisableFeatures = []string{"dual_source_blend", "memory_import"}
	s.ShaderCacheDir = "/tmp/shaders"

	if err := SaveSettings(path, s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("settings did not survive the round trip (-want +got):\n%s", diff)
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	got, err := LoadSettings(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadSettings on a missing file: %v", err)
	}
	if diff := cmp.Diff(DefaultSettings(), got); diff != "" {
		t.Errorf("missing file must yield defaults (-want +got):\n%s", diff)
	}
}

func TestSettingsResolve(t *testing.T) {
	s := Settings{
		Renderer:        "hw",
		API:             "vulkan",
		VSync:           true,
		Deinterlace:     "blend",
		ChromaSmoothing: true,
		MaxQueuedFrames: 3,
		DisableFeatures: []string{"texture_buffers", "raster_order_views"},
	}
	r, err := s.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.Renderer != backend.RendererHardware {
		t.Errorf("Renderer = %v, want hardware", r.Renderer)
	}
	if r.API != device.APIVulkan {
		t.Errorf("API = %v, want vulkan", r.API)
	}
	if r.Deinterlace != backend.DeinterlaceBlend {
		t.Errorf("Deinterlace = %v, want blend", r.Deinterlace)
	}
	want := device.FeatureTextureBuffers | device.FeatureRasterOrderViews
	if r.DisableFeatures != want {
		t.Errorf("DisableFeatures = %v, want %v", r.DisableFeatures, want)
	}
	if r.CommandBufferSize != cmdq.DefaultBufferSize {
		t.Errorf("CommandBufferSize = %d, want the default %d", r.CommandBufferSize, cmdq.DefaultBufferSize)
	}
}

func TestSettingsResolveInvalid(t *testing.T) {
	base := DefaultSettings()
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"unknown renderer", func(s *Settings) { s.Renderer = "glide" }},
		{"unknown api", func(s *Settings) { s.API = "direct3d" }},
		{"unknown deinterlace", func(s *Settings) { s.Deinterlace = "woven" }},
		{"unknown feature", func(s *Settings) { s.DisableFeatures = []string{"fast_blit"} }},
		{"buffer too small", func(s *Settings) { s.CommandBufferSize = 128 }},
		{"buffer unaligned", func(s *Settings) { s.CommandBufferSize = 1022 }},
		{"negative frame bound", func(s *Settings) { s.MaxQueuedFrames = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := base
			tc.mutate(&s)
			if _, err := s.Resolve(); err == nil {
				t.Errorf("Resolve accepted %s", tc.name)
			}
		})
	}
}
