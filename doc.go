// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package psxgpu renders the PlayStation GPU for an emulator core.
//
// # Overview
//
// psxgpu runs rendering on a dedicated thread fed by a lock-free
// command ring. The emulation thread queues typed commands (VRAM
// transfers, polygon draws, display updates) through a Pipeline; the
// render thread executes them against a pluggable backend, either a
// bit-exact software rasterizer or a hardware renderer layered on a
// graphics device.
//
// # Quick Start
//
//	import "github.com/yeager/psxgpu"
//
//	p, err := psxgpu.New(nil, psxgpu.DefaultSettings())
//	if err != nil {
//		return err
//	}
//	if err := p.Start(); err != nil {
//		return err
//	}
//	defer p.Shutdown()
//
//	// Queue commands from the emulation thread.
//	p.FillVRAM(cmdq.FillVRAM{W: 1024, H: 512})
//	p.UpdateDisplay(&cmdq.UpdateDisplay{
//		Flags:      cmdq.DisplayPresentFrame,
//		VRAMWidth:  320, VRAMHeight: 240,
//		Width:      320, Height: 240,
//	})
//
// # Architecture
//
// The module is organized into:
//   - psxgpu: the Pipeline (producer API, render thread, presentation)
//   - cmdq: the command ring, wire formats and the wake/sleep protocol
//   - backend: the renderer contract, display state and deinterlacing
//   - backend/software: the scale-1 reference rasterizer
//   - backend/wgpu: the hardware renderer
//   - device: graphics device abstraction and the null test device
//   - vram: the 1024x512 video memory model and pixel conversions
//
// # Threading
//
// Exactly one goroutine produces commands; the render thread consumes
// them. Synchronizing operations (ReadVRAM, Sync, Reconfigure) block
// the producer until the render thread has drained the ring, after
// which the shared VRAM mirror may be read directly.
package psxgpu

// Version information
const (
	// Version is the current version of the library
	Version = "0.3.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 3

	// VersionPatch is the patch version
	VersionPatch = 0
)
