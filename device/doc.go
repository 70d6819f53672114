// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package device abstracts the host graphics device that presents the
// emulated display.
//
// A Device owns the adapter, logical device, swapchain backbuffer and
// the presentation pipeline. It creates the display textures backends
// upload into and blits the current display frame to the window every
// present. Two implementations ship with the package:
//
//   - the wgpu device (APIVulkan, APINoop) drives gogpu/wgpu's HAL:
//     real textures, a naga-compiled blit pipeline, fenced readback
//   - the null device (APINull) keeps textures in CPU memory and
//     supports every display format, for headless use and tests
//
// Create resolves an API request against the registered factories,
// walking the fallback order when the preferred API cannot be brought
// up, and tears down every partially created resource on failure so
// the caller sees a single consolidated error.
//
// All Device methods except the constructors must be called from the
// render thread; nothing here is safe for concurrent use.
package device
