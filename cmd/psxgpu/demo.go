// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/yeager/psxgpu"
	"github.com/yeager/psxgpu/backend"
	"github.com/yeager/psxgpu/cmdq"
	"github.com/yeager/psxgpu/vram"
)

// Scene geometry. Two 320x240 draw buffers stacked in VRAM are flipped
// every frame, PSX style: draw into one while the other is scanned
// out. The texture page and palette live in spare VRAM to the right.
const (
	demoW = 320
	demoH = 240

	texBaseX = 640 // texture page 10
	texSize  = 32

	clutX = 640
	clutY = 511

	frameDuration = time.Second / 60
)

const clutReg = clutX/16 | clutY<<6

func runDemo(settings psxgpu.Settings, d Demo) error {
	if d.Renderer != "" {
		settings.Renderer = d.Renderer
	}
	settings.ShowVRAM = settings.ShowVRAM || d.ShowVRAM

	p, err := psxgpu.New(psxgpu.NopHost{WindowWidth: 960, WindowHeight: 720}, settings)
	if err != nil {
		return err
	}
	if err := p.Start(); err != nil {
		return err
	}
	defer p.Shutdown()

	fmt.Printf("renderer: %s\n", p.GetRequestedRenderer())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop() // scene done, release the stats reporter
		return playScene(ctx, p, d.Frames)
	})
	g.Go(func() error {
		reportStats(ctx, p, os.Stdout)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	img, err := p.Screenshot(screenshotMode(d.Geometry))
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := backend.SaveScreenshot(d.Output, img); err != nil {
		return err
	}

	s := p.Stats()
	statsPrinter().Printf("presented %d frames, skipped %d, processed %d commands, queue peak %d bytes\n",
		s.FramesPresented, s.FramesSkipped, s.CommandsProcessed, s.MaxQueuedBytes)
	fmt.Printf("saved %s\n", d.Output)
	return nil
}

// playScene runs the frame loop. Presentation is paced by the present
// deadline carried on each display update; the queued-frame bound
// keeps the producer from running further ahead than configured.
func playScene(ctx context.Context, p *psxgpu.Pipeline, frames int) error {
	uploadSceneAssets(p)

	start := psxgpu.Now()
	for i := 0; i < frames; i++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		back := uint16((i & 1) * demoH)
		p.SetDrawingArea(cmdq.SetDrawingArea{
			Left:   0,
			Top:    uint32(back),
			Right:  demoW - 1,
			Bottom: uint32(back) + demoH - 1,
		})
		drawFrame(p, i, int32(back))

		p.UpdateDisplay(&cmdq.UpdateDisplay{
			Flags:       cmdq.DisplayPresentFrame | cmdq.DisplayAllowSkip,
			VRAMTop:     back,
			VRAMWidth:   demoW,
			VRAMHeight:  demoH,
			Width:       demoW,
			Height:      demoH,
			AspectRatio: 4.0 / 3.0,
			PresentTime: start + int64(i+1)*int64(frameDuration),
		})
		p.BufferSwapped()
	}
	p.Sync()
	return nil
}

// uploadSceneAssets writes the 4-bit checker texture and its palette
// into VRAM outside the draw buffers.
func uploadSceneAssets(p *psxgpu.Pipeline) {
	// 32x32 4-bit texels, four per halfword, 8x8 checker cells of
	// palette indices 1 and 2.
	tex := make([]byte, texSize/4*texSize*2)
	for y := 0; y < texSize; y++ {
		for hword := 0; hword < texSize/4; hword++ {
			var v uint16
			for t := 0; t < 4; t++ {
				u := hword*4 + t
				idx := uint16(1)
				if (u/8+y/8)%2 == 1 {
					idx = 2
				}
				v |= idx << (4 * t)
			}
			binary.LittleEndian.PutUint16(tex[(y*texSize/4+hword)*2:], v)
		}
	}
	p.UpdateVRAM(cmdq.UpdateVRAM{X: texBaseX, Y: 0, W: texSize / 4, H: texSize}, tex)

	// Palette: entry 0 stays transparent.
	clut := make([]byte, 16*2)
	binary.LittleEndian.PutUint16(clut[2:], vram.From24(0x1C6CFF)) // orange
	binary.LittleEndian.PutUint16(clut[4:], vram.From24(0xF0F0F0)) // near white
	p.UpdateVRAM(cmdq.UpdateVRAM{X: clutX, Y: clutY, W: 16, H: 1}, clut)
	p.UpdateCLUT(cmdq.UpdateCLUT{Reg: clutReg})
}

// drawFrame paints one frame into the buffer starting at VRAM line
// top: a dithered Gouraud triangle spinning over a dark background, a
// bouncing textured sprite and a border.
func drawFrame(p *psxgpu.Pipeline, frame int, top int32) {
	p.FillVRAM(cmdq.FillVRAM{Y: uint16(top), W: demoW, H: demoH, Color: 0x401810})

	angle := float64(frame) * math.Pi / 90
	colors := [3]uint32{0x0000FF, 0x00FF00, 0xFF0000}
	var tri [3]cmdq.Vertex
	for k := range tri {
		a := angle + float64(k)*2*math.Pi/3
		tri[k] = cmdq.Vertex{
			X:     demoW/2 + int32(math.Round(90*math.Cos(a))),
			Y:     top + demoH/2 + int32(math.Round(90*math.Sin(a))),
			Color: colors[k],
		}
	}
	p.DrawPolygon(&cmdq.DrawPolygon{
		Flags:   cmdq.DrawShaded,
		TexPage: 1 << 9, // dithered
		Verts:   tri[:],
	})

	sx := int32(bounce(frame*3, demoW-texSize))
	sy := int32(bounce(frame*2, demoH-texSize))
	p.DrawSprite(&cmdq.DrawRectangle{
		Flags:   cmdq.DrawTextured | cmdq.DrawRawTexture,
		TexPage: texBaseX / 64,
		Palette: clutReg,
		X:       sx,
		Y:       top + sy,
		W:       texSize,
		H:       texSize,
	})

	// Border, one segment per vertex pair.
	const inset = 4
	l, t := int32(inset), top+inset
	r, b := int32(demoW-1-inset), top+demoH-1-inset
	corner := func(x, y int32) cmdq.Vertex {
		return cmdq.Vertex{X: x, Y: y, Color: 0x808080}
	}
	p.DrawLine(&cmdq.DrawLine{
		Verts: []cmdq.Vertex{
			corner(l, t), corner(r, t),
			corner(r, t), corner(r, b),
			corner(r, b), corner(l, b),
			corner(l, b), corner(l, t),
		},
	})
}

// bounce folds x into [0, limit] so the value sweeps back and forth.
func bounce(x, limit int) int {
	x %= 2 * limit
	if x >= limit {
		x = 2*limit - x
	}
	return x
}

// reportStats prints pipeline counters once a second until the scene
// finishes or the user interrupts.
func reportStats(ctx context.Context, p *psxgpu.Pipeline, w io.Writer) {
	pr := statsPrinter()
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s := p.Stats()
			pr.Fprintf(w, "presented %d, skipped %d, queue peak %d bytes\n",
				s.FramesPresented, s.FramesSkipped, s.MaxQueuedBytes)
		}
	}
}

// statsPrinter formats counters with the user's locale conventions,
// falling back to English digit grouping.
func statsPrinter() *message.Printer {
	lang, _, _ := strings.Cut(os.Getenv("LANG"), ".")
	tag, err := language.Parse(strings.ReplaceAll(lang, "_", "-"))
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

func screenshotMode(s string) backend.ScreenshotMode {
	switch s {
	case "window":
		return backend.ScreenshotWindow
	case "raw":
		return backend.ScreenshotRaw
	default:
		return backend.ScreenshotInternal
	}
}
