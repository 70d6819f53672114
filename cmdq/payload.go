// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cmdq

import (
	"encoding/binary"
	"math"
)

func floatBits(f float32) uint32 { return math.Float32bits(f) }
func floatFrom(b uint32) float32 { return math.Float32frombits(b) }

// Params carries the draw-state flags shared by transfer and draw
// commands: mask-bit handling and the interlaced raster position.
type Params uint32

const (
	// ParamSetMask sets bit 15 on every written pixel.
	ParamSetMask Params = 1 << 0
	// ParamCheckMask skips destination pixels whose bit 15 is set.
	ParamCheckMask Params = 1 << 1
	// ParamInterlaced restricts writes to one field's scanlines.
	ParamInterlaced Params = 1 << 2
	// ParamActiveLineLSB is the parity of the field being drawn when
	// ParamInterlaced is set.
	ParamActiveLineLSB Params = 1 << 3
)

func (p Params) SetMask() bool       { return p&ParamSetMask != 0 }
func (p Params) CheckMask() bool     { return p&ParamCheckMask != 0 }
func (p Params) Interlaced() bool    { return p&ParamInterlaced != 0 }
func (p Params) ActiveLineLSB() int  { return int(p>>3) & 1 }
func (p Params) MaskAnd() uint16 {
	if p.CheckMask() {
		return 0x8000
	}
	return 0
}
func (p Params) MaskOr() uint16 {
	if p.SetMask() {
		return 0x8000
	}
	return 0
}

// DrawFlags qualify polygon, rectangle and line commands.
type DrawFlags uint16

const (
	// DrawTextured samples a texture page for each pixel.
	DrawTextured DrawFlags = 1 << 0
	// DrawRawTexture disables color modulation of texels.
	DrawRawTexture DrawFlags = 1 << 1
	// DrawSemiTransparent blends written pixels with the destination.
	DrawSemiTransparent DrawFlags = 1 << 2
	// DrawShaded interpolates per-vertex colors.
	DrawShaded DrawFlags = 1 << 3
	// DrawQuad rasterizes four vertices as two triangles.
	DrawQuad DrawFlags = 1 << 4
)

func (f DrawFlags) Textured() bool        { return f&DrawTextured != 0 }
func (f DrawFlags) RawTexture() bool      { return f&DrawRawTexture != 0 }
func (f DrawFlags) SemiTransparent() bool { return f&DrawSemiTransparent != 0 }
func (f DrawFlags) Shaded() bool          { return f&DrawShaded != 0 }
func (f DrawFlags) Quad() bool            { return f&DrawQuad != 0 }

// FillVRAM fills the rectangle (X,Y)-(X+W,Y+H) with Color, wrapping
// toroidally at the VRAM edges.
type FillVRAM struct {
	X, Y, W, H uint16
	Color      uint32
	Params     Params
}

// FillVRAMSize is the encoded payload size of a FillVRAM command.
const FillVRAMSize = 16

func (c FillVRAM) Encode(p []byte) {
	le := binary.LittleEndian
	le.PutUint16(p[0:], c.X)
	le.PutUint16(p[2:], c.Y)
	le.PutUint16(p[4:], c.W)
	le.PutUint16(p[6:], c.H)
	le.PutUint32(p[8:], c.Color)
	le.PutUint32(p[12:], uint32(c.Params))
}

func DecodeFillVRAM(p []byte) FillVRAM {
	le := binary.LittleEndian
	return FillVRAM{
		X:      le.Uint16(p[0:]),
		Y:      le.Uint16(p[2:]),
		W:      le.Uint16(p[4:]),
		H:      le.Uint16(p[6:]),
		Color:  le.Uint32(p[8:]),
		Params: Params(le.Uint32(p[12:])),
	}
}

// UpdateVRAM uploads W*H halfwords of pixel data to (X,Y). The pixel
// data follows the fixed fields in the same record.
type UpdateVRAM struct {
	X, Y, W, H uint16
	Params     Params
}

// UpdateVRAMSize is the size of the fixed fields; the pixel data is
// appended directly after and its length is W*H*2 rounded up to four.
const UpdateVRAMSize = 12

func (c UpdateVRAM) Encode(p []byte) {
	le := binary.LittleEndian
	le.PutUint16(p[0:], c.X)
	le.PutUint16(p[2:], c.Y)
	le.PutUint16(p[4:], c.W)
	le.PutUint16(p[6:], c.H)
	le.PutUint32(p[8:], uint32(c.Params))
}

func DecodeUpdateVRAM(p []byte) (UpdateVRAM, []byte) {
	le := binary.LittleEndian
	c := UpdateVRAM{
		X:      le.Uint16(p[0:]),
		Y:      le.Uint16(p[2:]),
		W:      le.Uint16(p[4:]),
		H:      le.Uint16(p[6:]),
		Params: Params(le.Uint32(p[8:])),
	}
	n := int(c.W) * int(c.H) * 2
	return c, p[UpdateVRAMSize : UpdateVRAMSize+n]
}

// CopyVRAM copies a W*H rectangle from (SrcX,SrcY) to (DstX,DstY),
// wrapping both rectangles toroidally.
type CopyVRAM struct {
	SrcX, SrcY uint16
	DstX, DstY uint16
	W, H       uint16
	Params     Params
}

// CopyVRAMSize is the encoded payload size of a CopyVRAM command.
const CopyVRAMSize = 16

func (c CopyVRAM) Encode(p []byte) {
	le := binary.LittleEndian
	le.PutUint16(p[0:], c.SrcX)
	le.PutUint16(p[2:], c.SrcY)
	le.PutUint16(p[4:], c.DstX)
	le.PutUint16(p[6:], c.DstY)
	le.PutUint16(p[8:], c.W)
	le.PutUint16(p[10:], c.H)
	le.PutUint32(p[12:], uint32(c.Params))
}

func DecodeCopyVRAM(p []byte) CopyVRAM {
	le := binary.LittleEndian
	return CopyVRAM{
		SrcX:   le.Uint16(p[0:]),
		SrcY:   le.Uint16(p[2:]),
		DstX:   le.Uint16(p[4:]),
		DstY:   le.Uint16(p[6:]),
		W:      le.Uint16(p[8:]),
		H:      le.Uint16(p[10:]),
		Params: Params(le.Uint32(p[12:])),
	}
}

// SetDrawingArea sets the inclusive clip rectangle for draws.
type SetDrawingArea struct {
	Left, Top, Right, Bottom uint32
}

// SetDrawingAreaSize is the encoded payload size of a SetDrawingArea
// command.
const SetDrawingAreaSize = 16

func (c SetDrawingArea) Encode(p []byte) {
	le := binary.LittleEndian
	le.PutUint32(p[0:], c.Left)
	le.PutUint32(p[4:], c.Top)
	le.PutUint32(p[8:], c.Right)
	le.PutUint32(p[12:], c.Bottom)
}

func DecodeSetDrawingArea(p []byte) SetDrawingArea {
	le := binary.LittleEndian
	return SetDrawingArea{
		Left:   le.Uint32(p[0:]),
		Top:    le.Uint32(p[4:]),
		Right:  le.Uint32(p[8:]),
		Bottom: le.Uint32(p[12:]),
	}
}

// UpdateCLUT reloads the palette cache from the location named by Reg.
type UpdateCLUT struct {
	Reg    uint16
	Is8Bit bool
}

// UpdateCLUTSize is the encoded payload size of an UpdateCLUT command.
const UpdateCLUTSize = 4

func (c UpdateCLUT) Encode(p []byte) {
	binary.LittleEndian.PutUint16(p[0:], c.Reg)
	p[2] = 0
	if c.Is8Bit {
		p[2] = 1
	}
	p[3] = 0
}

func DecodeUpdateCLUT(p []byte) UpdateCLUT {
	return UpdateCLUT{
		Reg:    binary.LittleEndian.Uint16(p[0:]),
		Is8Bit: p[2] != 0,
	}
}

// Vertex is one polygon or line vertex in integer VRAM coordinates.
type Vertex struct {
	X, Y  int32
	Color uint32
	U, V  uint8
}

// VertexSize is the encoded size of one Vertex.
const VertexSize = 16

func (v Vertex) encode(p []byte) {
	le := binary.LittleEndian
	le.PutUint32(p[0:], uint32(v.X))
	le.PutUint32(p[4:], uint32(v.Y))
	le.PutUint32(p[8:], v.Color)
	p[12] = v.U
	p[13] = v.V
	p[14] = 0
	p[15] = 0
}

func decodeVertex(p []byte) Vertex {
	le := binary.LittleEndian
	return Vertex{
		X:     int32(le.Uint32(p[0:])),
		Y:     int32(le.Uint32(p[4:])),
		Color: le.Uint32(p[8:]),
		U:     p[12],
		V:     p[13],
	}
}

// PreciseVertex carries sub-pixel draw coordinates alongside the
// native integer position used for culling and clipping decisions.
type PreciseVertex struct {
	X, Y             float32
	W                float32
	NativeX, NativeY int32
	Color            uint32
	U, V             uint8
}

// PreciseVertexSize is the encoded size of one PreciseVertex.
const PreciseVertexSize = 28

func (v PreciseVertex) encode(p []byte) {
	le := binary.LittleEndian
	le.PutUint32(p[0:], floatBits(v.X))
	le.PutUint32(p[4:], floatBits(v.Y))
	le.PutUint32(p[8:], floatBits(v.W))
	le.PutUint32(p[12:], uint32(v.NativeX))
	le.PutUint32(p[16:], uint32(v.NativeY))
	le.PutUint32(p[20:], v.Color)
	p[24] = v.U
	p[25] = v.V
	p[26] = 0
	p[27] = 0
}

func decodePreciseVertex(p []byte) PreciseVertex {
	le := binary.LittleEndian
	return PreciseVertex{
		X:       floatFrom(le.Uint32(p[0:])),
		Y:       floatFrom(le.Uint32(p[4:])),
		W:       floatFrom(le.Uint32(p[8:])),
		NativeX: int32(le.Uint32(p[12:])),
		NativeY: int32(le.Uint32(p[16:])),
		Color:   le.Uint32(p[20:]),
		U:       p[24],
		V:       p[25],
	}
}

// drawHeader is the fixed prefix shared by polygon and line commands.
const drawHeaderSize = 12

type drawHeader struct {
	Flags    DrawFlags
	NumVerts uint16
	TexPage  uint16
	Palette  uint16
	Params   Params
}

func (h drawHeader) encode(p []byte) {
	le := binary.LittleEndian
	le.PutUint16(p[0:], uint16(h.Flags))
	le.PutUint16(p[2:], h.NumVerts)
	le.PutUint16(p[4:], h.TexPage)
	le.PutUint16(p[6:], h.Palette)
	le.PutUint32(p[8:], uint32(h.Params))
}

func decodeDrawHeader(p []byte) drawHeader {
	le := binary.LittleEndian
	return drawHeader{
		Flags:    DrawFlags(le.Uint16(p[0:])),
		NumVerts: le.Uint16(p[2:]),
		TexPage:  le.Uint16(p[4:]),
		Palette:  le.Uint16(p[6:]),
		Params:   Params(le.Uint32(p[8:])),
	}
}

// DrawPolygon rasterizes NumVerts vertices as one triangle or, with
// DrawQuad set, two triangles sharing an edge.
type DrawPolygon struct {
	Flags   DrawFlags
	TexPage uint16
	Palette uint16
	Params  Params
	Verts   []Vertex
}

// PolygonSize returns the encoded payload size for n vertices.
func PolygonSize(n int) int { return drawHeaderSize + n*VertexSize }

func (c DrawPolygon) Encode(p []byte) {
	drawHeader{
		Flags:    c.Flags,
		NumVerts: uint16(len(c.Verts)),
		TexPage:  c.TexPage,
		Palette:  c.Palette,
		Params:   c.Params,
	}.encode(p)
	for i, v := range c.Verts {
		v.encode(p[drawHeaderSize+i*VertexSize:])
	}
}

func DecodeDrawPolygon(p []byte) DrawPolygon {
	h := decodeDrawHeader(p)
	verts := make([]Vertex, h.NumVerts)
	for i := range verts {
		verts[i] = decodeVertex(p[drawHeaderSize+i*VertexSize:])
	}
	return DrawPolygon{
		Flags:   h.Flags,
		TexPage: h.TexPage,
		Palette: h.Palette,
		Params:  h.Params,
		Verts:   verts,
	}
}

// DrawPrecisePolygon is DrawPolygon with sub-pixel vertex positions.
type DrawPrecisePolygon struct {
	Flags   DrawFlags
	TexPage uint16
	Palette uint16
	Params  Params
	Verts   []PreciseVertex
}

// PrecisePolygonSize returns the encoded payload size for n vertices.
func PrecisePolygonSize(n int) int { return drawHeaderSize + n*PreciseVertexSize }

func (c DrawPrecisePolygon) Encode(p []byte) {
	drawHeader{
		Flags:    c.Flags,
		NumVerts: uint16(len(c.Verts)),
		TexPage:  c.TexPage,
		Palette:  c.Palette,
		Params:   c.Params,
	}.encode(p)
	for i, v := range c.Verts {
		v.encode(p[drawHeaderSize+i*PreciseVertexSize:])
	}
}

func DecodeDrawPrecisePolygon(p []byte) DrawPrecisePolygon {
	h := decodeDrawHeader(p)
	verts := make([]PreciseVertex, h.NumVerts)
	for i := range verts {
		verts[i] = decodePreciseVertex(p[drawHeaderSize+i*PreciseVertexSize:])
	}
	return DrawPrecisePolygon{
		Flags:   h.Flags,
		TexPage: h.TexPage,
		Palette: h.Palette,
		Params:  h.Params,
		Verts:   verts,
	}
}

// DrawRectangle rasterizes an axis-aligned sprite with an optional
// texture window anchored at (TexX,TexY).
type DrawRectangle struct {
	Flags      DrawFlags
	TexPage    uint16
	Palette    uint16
	Params     Params
	X, Y       int32
	W, H       uint16
	TexX, TexY uint8
	Color      uint32
}

// DrawRectangleSize is the encoded payload size of a DrawRectangle
// command.
const DrawRectangleSize = drawHeaderSize + 20

func (c DrawRectangle) Encode(p []byte) {
	drawHeader{
		Flags:   c.Flags,
		TexPage: c.TexPage,
		Palette: c.Palette,
		Params:  c.Params,
	}.encode(p)
	le := binary.LittleEndian
	le.PutUint32(p[12:], uint32(c.X))
	le.PutUint32(p[16:], uint32(c.Y))
	le.PutUint16(p[20:], c.W)
	le.PutUint16(p[22:], c.H)
	p[24] = c.TexX
	p[25] = c.TexY
	p[26] = 0
	p[27] = 0
	le.PutUint32(p[28:], c.Color)
}

func DecodeDrawRectangle(p []byte) DrawRectangle {
	h := decodeDrawHeader(p)
	le := binary.LittleEndian
	return DrawRectangle{
		Flags:   h.Flags,
		TexPage: h.TexPage,
		Palette: h.Palette,
		Params:  h.Params,
		X:       int32(le.Uint32(p[12:])),
		Y:       int32(le.Uint32(p[16:])),
		W:       le.Uint16(p[20:]),
		H:       le.Uint16(p[22:]),
		TexX:    p[24],
		TexY:    p[25],
		Color:   le.Uint32(p[28:]),
	}
}

// DrawLine rasterizes one segment per vertex pair; poly-lines arrive
// pre-expanded into pairs. TexPage carries only the blend mode and
// dither bit, lines are never textured.
type DrawLine struct {
	Flags   DrawFlags
	TexPage uint16
	Params  Params
	Verts   []Vertex
}

// LineSize returns the encoded payload size for n vertices.
func LineSize(n int) int { return drawHeaderSize + n*VertexSize }

func (c DrawLine) Encode(p []byte) {
	drawHeader{
		Flags:    c.Flags,
		NumVerts: uint16(len(c.Verts)),
		TexPage:  c.TexPage,
		Params:   c.Params,
	}.encode(p)
	for i, v := range c.Verts {
		v.encode(p[drawHeaderSize+i*VertexSize:])
	}
}

func DecodeDrawLine(p []byte) DrawLine {
	h := decodeDrawHeader(p)
	verts := make([]Vertex, h.NumVerts)
	for i := range verts {
		verts[i] = decodeVertex(p[drawHeaderSize+i*VertexSize:])
	}
	return DrawLine{Flags: h.Flags, TexPage: h.TexPage, Params: h.Params, Verts: verts}
}

// DisplayFlags qualify an UpdateDisplay command.
type DisplayFlags uint8

const (
	// DisplayDisabled blanks the display instead of scanning out.
	DisplayDisabled DisplayFlags = 1 << 0
	// Display24Bit scans out packed 24-bit RGB instead of 15-bit.
	Display24Bit DisplayFlags = 1 << 1
	// DisplayInterlaced halves the scanned-out field height.
	DisplayInterlaced DisplayFlags = 1 << 2
	// DisplayInterleaved stores the two fields on alternating VRAM
	// lines, so scanning one field skips every other line.
	DisplayInterleaved DisplayFlags = 1 << 3
	// DisplayFieldOdd selects the odd field of an interlaced frame.
	DisplayFieldOdd DisplayFlags = 1 << 4
	// DisplayPresentFrame requests presentation after the update.
	DisplayPresentFrame DisplayFlags = 1 << 5
	// DisplayAllowSkip permits the presenter to drop this frame.
	DisplayAllowSkip DisplayFlags = 1 << 6
)

func (f DisplayFlags) Disabled() bool     { return f&DisplayDisabled != 0 }
func (f DisplayFlags) Is24Bit() bool      { return f&Display24Bit != 0 }
func (f DisplayFlags) Interlaced() bool   { return f&DisplayInterlaced != 0 }
func (f DisplayFlags) Interleaved() bool  { return f&DisplayInterleaved != 0 }
func (f DisplayFlags) Field() uint8       { return uint8(f>>4) & 1 }
func (f DisplayFlags) PresentFrame() bool { return f&DisplayPresentFrame != 0 }
func (f DisplayFlags) AllowSkip() bool    { return f&DisplayAllowSkip != 0 }

// UpdateDisplay describes the frame scan-out: which VRAM region feeds
// the display, the timing-derived output geometry, and whether to
// present.
type UpdateDisplay struct {
	Flags DisplayFlags

	// X is the horizontal start of the raw scan-out in halfwords; the
	// 24-bit path needs it to locate byte triplets independently of the
	// cropped left edge.
	X uint16

	// VRAMLeft/VRAMTop/VRAMWidth/VRAMHeight bound the cropped source
	// rectangle in VRAM.
	VRAMLeft, VRAMTop     uint16
	VRAMWidth, VRAMHeight uint16

	// Width/Height and OriginLeft/OriginTop are the timing-derived
	// display dimensions and the active area's offset within them.
	Width, Height         uint16
	OriginLeft, OriginTop uint16

	// AspectRatio is the display aspect ratio implied by the video
	// timing.
	AspectRatio float32

	// PresentTime is the earliest presentation time in nanoseconds on
	// the worker's monotonic clock, or zero to present immediately.
	PresentTime int64
}

// UpdateDisplaySize is the encoded payload size of an UpdateDisplay
// command.
const UpdateDisplaySize = 40

func (c UpdateDisplay) Encode(p []byte) {
	le := binary.LittleEndian
	p[0] = uint8(c.Flags)
	p[1] = 0
	le.PutUint16(p[2:], c.X)
	le.PutUint16(p[4:], c.VRAMLeft)
	le.PutUint16(p[6:], c.VRAMTop)
	le.PutUint16(p[8:], c.VRAMWidth)
	le.PutUint16(p[10:], c.VRAMHeight)
	le.PutUint16(p[12:], c.Width)
	le.PutUint16(p[14:], c.Height)
	le.PutUint16(p[16:], c.OriginLeft)
	le.PutUint16(p[18:], c.OriginTop)
	le.PutUint32(p[20:], floatBits(c.AspectRatio))
	le.PutUint64(p[24:], uint64(c.PresentTime))
	le.PutUint64(p[32:], 0)
}

func DecodeUpdateDisplay(p []byte) UpdateDisplay {
	le := binary.LittleEndian
	return UpdateDisplay{
		Flags:       DisplayFlags(p[0]),
		X:           le.Uint16(p[2:]),
		VRAMLeft:    le.Uint16(p[4:]),
		VRAMTop:     le.Uint16(p[6:]),
		VRAMWidth:   le.Uint16(p[8:]),
		VRAMHeight:  le.Uint16(p[10:]),
		Width:       le.Uint16(p[12:]),
		Height:      le.Uint16(p[14:]),
		OriginLeft:  le.Uint16(p[16:]),
		OriginTop:   le.Uint16(p[18:]),
		AspectRatio: floatFrom(le.Uint32(p[20:])),
		PresentTime: int64(le.Uint64(p[24:])),
	}
}

// ReadVRAM names the rectangle a synchronous CPU readback wants
// flushed and copied out.
type ReadVRAM struct {
	X, Y, W, H uint16
}

// ReadVRAMSize is the encoded payload size of a ReadVRAM command.
const ReadVRAMSize = 8

func (c ReadVRAM) Encode(p []byte) {
	le := binary.LittleEndian
	le.PutUint16(p[0:], c.X)
	le.PutUint16(p[2:], c.Y)
	le.PutUint16(p[4:], c.W)
	le.PutUint16(p[6:], c.H)
}

func DecodeReadVRAM(p []byte) ReadVRAM {
	le := binary.LittleEndian
	return ReadVRAM{
		X: le.Uint16(p[0:]),
		Y: le.Uint16(p[2:]),
		W: le.Uint16(p[4:]),
		H: le.Uint16(p[6:]),
	}
}
