// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vram

// CLUTSize is the number of palette entries cached for 8-bit textures;
// 4-bit textures use the first 16.
const CLUTSize = 256

// CLUT is the texture palette cache. Draw commands that sample 4- or
// 8-bit textures look colors up here rather than re-reading VRAM, so the
// cache must be refreshed explicitly when the palette location changes.
type CLUT [CLUTSize]uint16

// PaletteReg is the packed palette location from a texturing command:
// bits 0-5 select the X base in units of 16 pixels, bits 6-14 the row.
type PaletteReg uint16

// X returns the palette's starting column in VRAM.
func (p PaletteReg) X() int { return int(p&0x3F) * 16 }

// Y returns the palette's row in VRAM.
func (p PaletteReg) Y() int { return int(p>>6) & HeightMask }

// Load refreshes the cache from VRAM at the location named by reg. A
// 4-bit palette loads 16 entries, an 8-bit palette all 256; reads wrap
// toroidally in X.
func (c *CLUT) Load(ram RAM, reg PaletteReg, clutIs8Bit bool) {
	count := 16
	if clutIs8Bit {
		count = CLUTSize
	}
	x, y := reg.X(), reg.Y()
	row := ram.Row(y)
	for i := 0; i < count; i++ {
		c[i] = row[(x+i)&WidthMask]
	}
}
