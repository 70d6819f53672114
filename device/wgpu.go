// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	// Import the Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/yeager/psxgpu/backend"
	"github.com/yeager/psxgpu/vram"
)

func init() {
	RegisterAPI(APIVulkan, func(opts *CreateOptions) (Device, error) {
		return newWgpuDevice(APIVulkan, opts)
	})
	RegisterAPI(APINoop, func(opts *CreateOptions) (Device, error) {
		return newWgpuDevice(APINoop, opts)
	})
}

// presentTimeout bounds the fence wait after a present submission.
// Blowing it means the device stopped making progress and is treated
// as lost.
const presentTimeout = 5 * time.Second

// backbufferFormat is the composition target format. RGBA8 is
// universally renderable across the HAL backends.
const backbufferFormat = gputypes.TextureFormatRGBA8Unorm

// wgpuDevice is a Device on top of the wgpu HAL. The display frame is
// blitted into an internal backbuffer texture; the host presenter
// scans that texture out (or nothing does, headless).
//
// All methods run on the render thread.
type wgpuDevice struct {
	api   RenderAPI
	info  AdapterInfo
	vsync bool

	instance hal.Instance
	hal      hal.Device
	queue    hal.Queue

	shaders *ShaderCache

	// Blit pipeline used by Present.
	blitShader     hal.ShaderModule
	blitBindLayout hal.BindGroupLayout
	blitPipeLayout hal.PipelineLayout
	blitPipeline   hal.RenderPipeline

	// One bind group per display texture view, built on first use and
	// dropped when the texture goes away.
	blitBindings map[hal.TextureView]hal.BindGroup

	// Composition backbuffer. Nil texture means headless.
	backW, backH int
	backTex      hal.Texture
	backView     hal.TextureView
}

func newWgpuDevice(api RenderAPI, opts *CreateOptions) (*wgpuDevice, error) {
	instance, err := createHALInstance(api)
	if err != nil {
		return nil, err
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no adapters", ErrAPIUnavailable)
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open adapter: %w", err)
	}

	shaders, err := NewShaderCache(opts.ShaderCacheDir, opts.ShaderCacheVersion)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, fmt.Errorf("shader cache: %w", err)
	}

	d := &wgpuDevice{
		api:   api,
		vsync: opts.VSync,
		info: AdapterInfo{
			Name:     selected.Info.Name,
			API:      api,
			Discrete: selected.Info.DeviceType == gputypes.DeviceTypeDiscreteGPU,
		},
		instance:     instance,
		hal:          openDev.Device,
		queue:        openDev.Queue,
		shaders:      shaders,
		blitBindings: make(map[hal.TextureView]hal.BindGroup),
	}

	if err := d.createBlitPipeline(); err != nil {
		d.hal.Destroy()
		d.instance.Destroy()
		return nil, fmt.Errorf("create blit pipeline: %w", err)
	}

	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		if err := d.ResizeSwapchain(opts.WindowWidth, opts.WindowHeight); err != nil {
			d.Destroy()
			return nil, err
		}
	}

	slogger().Info("device created",
		"api", api.String(),
		"adapter", d.info.Name,
		"discrete", d.info.Discrete)
	return d, nil
}

func createHALInstance(api RenderAPI) (hal.Instance, error) {
	switch api {
	case APINoop:
		noopAPI := noop.API{}
		return noopAPI.CreateInstance(nil)
	case APIVulkan:
		be, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return nil, fmt.Errorf("%w: vulkan backend not compiled in", ErrAPIUnavailable)
		}
		instance, err := be.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
		if err != nil {
			return nil, fmt.Errorf("create vulkan instance: %w", err)
		}
		return instance, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrAPIUnavailable, api)
}

func (d *wgpuDevice) API() RenderAPI           { return d.api }
func (d *wgpuDevice) AdapterInfo() AdapterInfo { return d.info }

// Features returns zero: the portable HAL negotiates no optional
// capabilities, so renderers see a baseline device on every API.
func (d *wgpuDevice) Features() Feature { return 0 }

func (d *wgpuDevice) SupportsFormat(f vram.PixelFormat) bool {
	_, ok := textureFormatFor(f)
	return ok
}

func (d *wgpuDevice) CreateTexture(w, h int, f vram.PixelFormat) (backend.Texture, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrTextureAllocation, w, h)
	}
	return newWgpuTexture(d, w, h, f)
}

func (d *wgpuDevice) SetVSync(enabled bool) { d.vsync = enabled }
func (d *wgpuDevice) VSyncEnabled() bool    { return d.vsync }

// ResizeSwapchain recreates the composition backbuffer. All cached
// blit bindings stay valid; they reference display textures, not the
// backbuffer.
func (d *wgpuDevice) ResizeSwapchain(w, h int) error {
	d.destroyBackbuffer()
	if w <= 0 || h <= 0 {
		return nil
	}

	tex, err := d.hal.CreateTexture(&hal.TextureDescriptor{
		Label:         "backbuffer",
		Size:          hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        backbufferFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("%w: backbuffer %dx%d: %v", ErrDeviceLost, w, h, err)
	}
	view, err := d.hal.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "backbuffer_view",
		Format:        backbufferFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.hal.DestroyTexture(tex)
		return fmt.Errorf("%w: backbuffer view: %v", ErrDeviceLost, err)
	}

	d.backTex = tex
	d.backView = view
	d.backW = w
	d.backH = h
	return nil
}

func (d *wgpuDevice) destroyBackbuffer() {
	if d.backView != nil {
		d.hal.DestroyTextureView(d.backView)
		d.backView = nil
	}
	if d.backTex != nil {
		d.hal.DestroyTexture(d.backTex)
		d.backTex = nil
	}
	d.backW, d.backH = 0, 0
}

// Present composes the display into the backbuffer: clear to black,
// then blit the current display texture into its letterboxed
// rectangle. Headless devices drop the frame.
func (d *wgpuDevice) Present(disp *backend.Display) error {
	if d.backTex == nil {
		return nil
	}

	var (
		tex      *wgpuTexture
		dest     vram.Rect
		hasFrame bool
	)
	if disp != nil {
		if t, ok := disp.Texture.(*wgpuTexture); ok && t != nil && !t.destroyed {
			tex = t
			_, dest = disp.CalculateDrawRect(d.backW, d.backH, true)
			hasFrame = true
		}
	}

	var (
		vertBuf hal.Buffer
		binding hal.BindGroup
	)
	if hasFrame {
		var bindErr error
		binding, bindErr = d.blitBindingFor(tex.view)
		if bindErr != nil {
			return fmt.Errorf("%w: bind display texture: %v", ErrPresentFailed, bindErr)
		}

		vertexData := blitVertices(dest, d.backW, d.backH, tex.width, tex.height, disp)
		var bufErr error
		vertBuf, bufErr = d.hal.CreateBuffer(&hal.BufferDescriptor{
			Label: "blit_verts",
			Size:  uint64(len(vertexData)),
			Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
		})
		if bufErr != nil {
			return fmt.Errorf("%w: create vertex buffer: %v", ErrPresentFailed, bufErr)
		}
		defer d.hal.DestroyBuffer(vertBuf)
		d.queue.WriteBuffer(vertBuf, 0, vertexData)
	}

	encoder, err := d.hal.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "present",
	})
	if err != nil {
		return fmt.Errorf("%w: create encoder: %v", ErrPresentFailed, err)
	}
	if err := encoder.BeginEncoding("present"); err != nil {
		return fmt.Errorf("%w: begin encoding: %v", ErrPresentFailed, err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "present_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       d.backView,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	})
	if hasFrame {
		rp.SetPipeline(d.blitPipeline)
		rp.SetBindGroup(0, binding, nil)
		rp.SetVertexBuffer(0, vertBuf, 0)
		rp.Draw(6, 1, 0, 0)
	}
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("%w: end encoding: %v", ErrPresentFailed, err)
	}
	defer d.hal.FreeCommandBuffer(cmdBuf)

	if err := d.submitAndWait([]hal.CommandBuffer{cmdBuf}); err != nil {
		return err
	}
	return nil
}

// submitAndWait runs the command buffers to completion. A submit or
// fence failure means the device stopped accepting work.
func (d *wgpuDevice) submitAndWait(cmdBufs []hal.CommandBuffer) error {
	fence, err := d.hal.CreateFence()
	if err != nil {
		return fmt.Errorf("%w: create fence: %v", ErrDeviceLost, err)
	}
	defer d.hal.DestroyFence(fence)

	if err := d.queue.Submit(cmdBufs, fence, 1); err != nil {
		return fmt.Errorf("%w: submit: %v", ErrDeviceLost, err)
	}
	ok, err := d.hal.Wait(fence, 1, presentTimeout)
	if err != nil || !ok {
		return fmt.Errorf("%w: fence wait ok=%v err=%v", ErrDeviceLost, ok, err)
	}
	return nil
}

// ReadTexture copies the texture through a staging buffer. Rows in
// the staging copy are padded to the 256-byte pitch alignment the
// copy engines require; the padding is stripped before returning.
func (d *wgpuDevice) ReadTexture(t backend.Texture) ([]byte, error) {
	tex, ok := t.(*wgpuTexture)
	if !ok {
		return nil, errors.New("device: foreign texture")
	}
	if tex.destroyed {
		return nil, errors.New("device: read of destroyed texture")
	}

	bpp := tex.format.BytesPerPixel()
	bytesPerRow := uint32(tex.width * bpp)
	const copyPitchAlignment = 256
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(tex.height)

	stagingBuf, err := d.hal.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer d.hal.DestroyBuffer(stagingBuf)

	encoder, err := d.hal.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "readback",
	})
	if err != nil {
		return nil, fmt.Errorf("create encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageTextureBinding,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(tex.tex, stagingBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  alignedBytesPerRow,
			RowsPerImage: uint32(tex.height),
		},
		TextureBase: hal.ImageCopyTexture{Texture: tex.tex, MipLevel: 0},
		Size: hal.Extent3D{
			Width:              uint32(tex.width),
			Height:             uint32(tex.height),
			DepthOrArrayLayers: 1,
		},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageTextureBinding,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer d.hal.FreeCommandBuffer(cmdBuf)

	if err := d.submitAndWait([]hal.CommandBuffer{cmdBuf}); err != nil {
		return nil, err
	}

	readback := make([]byte, stagingSize)
	if err := d.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return nil, fmt.Errorf("read staging buffer: %w", err)
	}

	if alignedBytesPerRow == bytesPerRow {
		return readback[:uint64(bytesPerRow)*uint64(tex.height)], nil
	}
	tight := make([]byte, int(bytesPerRow)*tex.height)
	for row := 0; row < tex.height; row++ {
		srcOff := row * int(alignedBytesPerRow)
		dstOff := row * int(bytesPerRow)
		copy(tight[dstOff:dstOff+int(bytesPerRow)], readback[srcOff:srcOff+int(bytesPerRow)])
	}
	return tight, nil
}

// WaitIdle submits an empty command buffer and waits on its fence,
// draining all work queued before it.
func (d *wgpuDevice) WaitIdle() {
	encoder, err := d.hal.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "wait_idle",
	})
	if err != nil {
		slogger().Warn("wait idle: create encoder failed", "error", err)
		return
	}
	if err := encoder.BeginEncoding("wait_idle"); err != nil {
		slogger().Warn("wait idle: begin encoding failed", "error", err)
		return
	}
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		slogger().Warn("wait idle: end encoding failed", "error", err)
		return
	}
	defer d.hal.FreeCommandBuffer(cmdBuf)

	if err := d.submitAndWait([]hal.CommandBuffer{cmdBuf}); err != nil {
		slogger().Warn("wait idle failed", "error", err)
	}
}

func (d *wgpuDevice) Destroy() {
	d.destroyBackbuffer()
	for view, bg := range d.blitBindings {
		d.hal.DestroyBindGroup(bg)
		delete(d.blitBindings, view)
	}
	d.destroyBlitPipeline()
	if d.hal != nil {
		d.hal.Destroy()
		d.hal = nil
		d.queue = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}

// ---- Blit pipeline ----

func (d *wgpuDevice) createBlitPipeline() error {
	words, err := d.shaders.Get("blit", blitShaderSource)
	if err != nil {
		return fmt.Errorf("compile blit shader: %w", err)
	}
	shader, err := d.hal.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "blit_shader",
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return fmt.Errorf("create blit shader module: %w", err)
	}
	d.blitShader = shader

	bindLayout, err := d.hal.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "blit_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create blit bind layout: %w", err)
	}
	d.blitBindLayout = bindLayout

	pipeLayout, err := d.hal.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "blit_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{d.blitBindLayout},
	})
	if err != nil {
		return fmt.Errorf("create blit pipeline layout: %w", err)
	}
	d.blitPipeLayout = pipeLayout

	pipeline, err := d.hal.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "blit_pipeline",
		Layout: d.blitPipeLayout,
		Vertex: hal.VertexState{
			Module:     d.blitShader,
			EntryPoint: "vs_main",
			Buffers:    blitVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     d.blitShader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    backbufferFormat,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("create blit pipeline: %w", err)
	}
	d.blitPipeline = pipeline
	return nil
}

func (d *wgpuDevice) destroyBlitPipeline() {
	if d.hal == nil {
		return
	}
	if d.blitPipeline != nil {
		d.hal.DestroyRenderPipeline(d.blitPipeline)
		d.blitPipeline = nil
	}
	if d.blitPipeLayout != nil {
		d.hal.DestroyPipelineLayout(d.blitPipeLayout)
		d.blitPipeLayout = nil
	}
	if d.blitBindLayout != nil {
		d.hal.DestroyBindGroupLayout(d.blitBindLayout)
		d.blitBindLayout = nil
	}
	if d.blitShader != nil {
		d.hal.DestroyShaderModule(d.blitShader)
		d.blitShader = nil
	}
}

// blitBindingFor returns the cached bind group for a display texture
// view, creating it on first use.
func (d *wgpuDevice) blitBindingFor(view hal.TextureView) (hal.BindGroup, error) {
	if bg, ok := d.blitBindings[view]; ok {
		return bg, nil
	}
	bg, err := d.hal.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "blit_bind",
		Layout: d.blitBindLayout,
		Entries: []gputypes.BindGroupEntry{
			{
				Binding: 0,
				Resource: gputypes.TextureViewBinding{
					TextureView: view.NativeHandle(),
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	d.blitBindings[view] = bg
	return bg, nil
}

// dropBlitBinding destroys the cached bind group for a view that is
// going away.
func (d *wgpuDevice) dropBlitBinding(view hal.TextureView) {
	if bg, ok := d.blitBindings[view]; ok {
		d.hal.DestroyBindGroup(bg)
		delete(d.blitBindings, view)
	}
}

// blitVertexStride is two vec2<f32> per vertex: clip position and
// texture coordinate.
const blitVertexStride = 16

// blitVertexLayout matches VertexInput in blit.wgsl:
//
//	location 0: position (vec2<f32>)
//	location 1: tex_coord (vec2<f32>)
func blitVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: blitVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}, // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1}, // tex_coord
			},
		},
	}
}

// blitVertices builds the two-triangle quad covering the display's
// destination rectangle. Positions are in clip space (Y up), texture
// coordinates cover the display's view rectangle within the texture.
func blitVertices(dest vram.Rect, backW, backH, texW, texH int, disp *backend.Display) []byte {
	toClipX := func(px int32) float32 {
		return float32(px)/float32(backW)*2 - 1
	}
	toClipY := func(py int32) float32 {
		return 1 - float32(py)/float32(backH)*2
	}
	x0, y0 := toClipX(dest.Left), toClipY(dest.Top)
	x1, y1 := toClipX(dest.Right), toClipY(dest.Bottom)

	u0 := float32(disp.ViewX) / float32(texW)
	v0 := float32(disp.ViewY) / float32(texH)
	u1 := float32(disp.ViewX+disp.ViewWidth) / float32(texW)
	v1 := float32(disp.ViewY+disp.ViewHeight) / float32(texH)

	type corner struct{ x, y, u, v float32 }
	tl := corner{x0, y0, u0, v0}
	tr := corner{x1, y0, u1, v0}
	bl := corner{x0, y1, u0, v1}
	br := corner{x1, y1, u1, v1}

	// Triangle 1: TL, TR, BL. Triangle 2: TR, BR, BL.
	corners := [6]corner{tl, tr, bl, tr, br, bl}

	buf := make([]byte, len(corners)*blitVertexStride)
	off := 0
	for _, c := range corners {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(c.x))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], math.Float32bits(c.y))
		binary.LittleEndian.PutUint32(buf[off+8:off+12], math.Float32bits(c.u))
		binary.LittleEndian.PutUint32(buf[off+12:off+16], math.Float32bits(c.v))
		off += blitVertexStride
	}
	return buf
}
