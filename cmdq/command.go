// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cmdq implements the single-producer single-consumer command
// pipeline between the emulation thread and the render worker: a
// fixed-capacity byte arena of variably-sized, self-describing command
// records, and the wake coordinator that arbitrates sleep, wakeup and
// synchronous rendezvous between the two threads.
//
// The producer reserves space with Buffer.Allocate, fills the record's
// payload, and publishes it; the consumer walks records strictly in
// publish order. Records never straddle the physical end of the arena: a
// Wraparound sentinel consumes the tail instead, and the writer resumes
// at offset zero.
package cmdq

import "encoding/binary"

// CommandType tags a record in the command buffer. Values at or below
// CmdShutdown are control commands handled by the worker loop itself;
// everything above is forwarded verbatim to the active backend.
type CommandType uint32

const (
	// CmdWraparound marks the rest of the arena unused; the consumer
	// resets its cursor to offset zero.
	CmdWraparound CommandType = iota

	// CmdAsyncCall runs a deferred closure on the render thread.
	CmdAsyncCall

	// CmdReconfigure synchronously reconfigures renderer and device.
	CmdReconfigure

	// CmdShutdown terminates the worker loop. The buffer must be empty
	// once it is reached.
	CmdShutdown

	// Backend commands. The worker forwards these without interpreting
	// their payloads.

	// CmdClearVRAM zero-fills VRAM and invalidates draw state.
	CmdClearVRAM

	// CmdClearDisplay blanks the current display texture.
	CmdClearDisplay

	// CmdLoadState replaces VRAM and palette memory verbatim.
	CmdLoadState

	// CmdClearCache invalidates any cached texture/palette state.
	CmdClearCache

	// CmdBufferSwapped notifies the backend of an emulated buffer swap.
	CmdBufferSwapped

	// CmdReadVRAM synchronously reads a VRAM rectangle back for the CPU.
	CmdReadVRAM

	// CmdFillVRAM fills a VRAM rectangle with a solid color.
	CmdFillVRAM

	// CmdUpdateVRAM uploads pixel data into a VRAM rectangle.
	CmdUpdateVRAM

	// CmdCopyVRAM copies one VRAM rectangle onto another.
	CmdCopyVRAM

	// CmdSetDrawingArea changes the clipping rectangle for draws.
	CmdSetDrawingArea

	// CmdUpdateCLUT refreshes the palette cache from VRAM.
	CmdUpdateCLUT

	// CmdDrawPolygon rasterizes a triangle or quad.
	CmdDrawPolygon

	// CmdDrawPrecisePolygon rasterizes with sub-pixel source ordinates.
	CmdDrawPrecisePolygon

	// CmdDrawRectangle rasterizes an axis-aligned sprite.
	CmdDrawRectangle

	// CmdDrawLine rasterizes a line strip.
	CmdDrawLine

	// CmdUpdateDisplay selects the display source region and presents.
	CmdUpdateDisplay
)

// IsControl reports whether the type is handled by the worker loop
// rather than a backend.
func (t CommandType) IsControl() bool { return t <= CmdShutdown }

func (t CommandType) String() string {
	names := [...]string{
		"Wraparound", "AsyncCall", "Reconfigure", "Shutdown",
		"ClearVRAM", "ClearDisplay", "LoadState", "ClearCache",
		"BufferSwapped", "ReadVRAM", "FillVRAM", "UpdateVRAM",
		"CopyVRAM", "SetDrawingArea", "UpdateCLUT", "DrawPolygon",
		"DrawPrecisePolygon", "DrawRectangle", "DrawLine", "UpdateDisplay",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return "Unknown"
}

// HeaderSize is the fixed prefix of every record: total size in bytes
// followed by the command type, both 32-bit little-endian.
const HeaderSize = 8

// Record is one published command: a type tag plus a payload slice
// aliasing the arena. A record is immutable from publish until the
// consumer has advanced past it.
type Record struct {
	// Type is the command tag from the header.
	Type CommandType

	// Payload is the type-specific body, aliased into the arena. Its
	// length includes any alignment padding added by Allocate.
	Payload []byte

	off  uint32
	size uint32
}

// Size returns the record's total byte size including the header; it is
// always a multiple of four.
func (r Record) Size() uint32 { return r.size }

// Offset returns the record's header offset within the arena.
func (r Record) Offset() uint32 { return r.off }

func putHeader(dst []byte, size uint32, t CommandType) {
	binary.LittleEndian.PutUint32(dst, size)
	binary.LittleEndian.PutUint32(dst[4:], uint32(t))
}

func alignUp4(v uint32) uint32 { return (v + 3) &^ 3 }
