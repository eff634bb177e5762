package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/crystal"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

var (
	_ crystal.Device = (*Device)(nil)
	_ crystal.Buffer = (*buffer)(nil)
)

type Device struct {
	ctx       *gpuContext
	pipelines *pipelines
	observer  crystal.DiagnosticObserver

	paramsBuf *wgpu.Buffer
	cameraBuf *wgpu.Buffer

	computeBG *wgpu.BindGroup
	renderBG  *wgpu.BindGroup
	bound     *buffer

	// pending holds the finished compute pass until Barrier submits it.
	pending *wgpu.CommandBuffer

	texture  *wgpu.Texture
	released bool
}

// New creates the device, compiles both shaders and builds their pipelines.
func New(opts Options) (*Device, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, crystal.NewError(crystal.ConfigurationError, "gpu device", fmt.Errorf("invalid frame size %dx%d", opts.Width, opts.Height))
	}
	observer := opts.Observer
	if observer == nil {
		observer = crystal.DiagnosticFunc(func(crystal.Diagnostic) {})
	}
	ctx, err := newContext(opts)
	if err != nil {
		return nil, err
	}
	d := &Device{ctx: ctx, observer: observer}
	if err := d.createPipelines(); err != nil {
		d.Release()
		return nil, err
	}
	if err := d.createUniforms(); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

func (d *Device) createUniforms() error {
	var err error
	d.paramsBuf, err = d.ctx.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Integrate Params",
		Size:  paramsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return crystal.NewError(crystal.AllocationError, "params uniform", err)
	}
	d.cameraBuf, err = d.ctx.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Camera",
		Size:  cameraSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return crystal.NewError(crystal.AllocationError, "camera uniform", err)
	}
	d.renderBG, err = d.ctx.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Points BG",
		Layout: d.pipelines.points.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: d.cameraBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return crystal.NewError(crystal.KernelLinkError, "points bind group", err)
	}
	return nil
}

func (d *Device) Name() string { return "wgpu" }

func (d *Device) Allocate(label string, count int, position, velocity mgl32.Vec3) (crystal.Buffer, error) {
	if d.released {
		return nil, crystal.NewError(crystal.AllocationError, label, errors.New("device released"))
	}
	if count <= 0 {
		return nil, crystal.NewError(crystal.AllocationError, label, fmt.Errorf("invalid particle count %d", count))
	}
	buf, err := d.ctx.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: initialData(count, position, velocity),
		Usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageVertex | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, crystal.NewError(crystal.AllocationError, label, err)
	}
	return &buffer{label: label, count: count, buf: buf, dev: d}, nil
}

// Bind creates the integrate bind group for buf. Only StoreSlot exists.
func (d *Device) Bind(buf crystal.Buffer, slot uint32) error {
	if slot != crystal.StoreSlot {
		return fmt.Errorf("bind %q: slot %d not declared by the integrate kernel", buf.Label(), slot)
	}
	b, err := d.own(buf)
	if err != nil {
		return err
	}
	bg, err := d.ctx.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Integrate BG",
		Layout: d.pipelines.integrate.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: b.buf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: d.paramsBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return crystal.NewError(crystal.KernelLinkError, "integrate bind group", err)
	}
	d.unbind()
	d.computeBG = bg
	d.bound = b
	return nil
}

func (d *Device) unbind() {
	if d.computeBG != nil {
		d.computeBG.Release()
		d.computeBG = nil
	}
	d.bound = nil
}

func (d *Device) own(buf crystal.Buffer) (*buffer, error) {
	b, ok := buf.(*buffer)
	if !ok || b.dev != d {
		return nil, fmt.Errorf("buffer %q does not belong to %s", buf.Label(), d.Name())
	}
	if b.buf == nil {
		return nil, fmt.Errorf("buffer %q released", b.label)
	}
	return b, nil
}

// Dispatch records and finishes one compute pass; the next Barrier submits it.
func (d *Device) Dispatch(groups uint32, p crystal.IntegrateParams) error {
	if d.bound == nil {
		return crystal.NewError(crystal.KernelLaunchError, "integrate", fmt.Errorf("no buffer bound at slot %d", crystal.StoreSlot))
	}
	if int(p.Count) > d.bound.count {
		return crystal.NewError(crystal.KernelLaunchError, "integrate",
			fmt.Errorf("kernel count %d exceeds buffer %q of %d", p.Count, d.bound.label, d.bound.count))
	}
	if groups > MaxWorkgroupsPerDimension {
		return crystal.NewError(crystal.KernelLaunchError, "integrate",
			fmt.Errorf("%d workgroups exceed the limit of %d", groups, MaxWorkgroupsPerDimension))
	}
	// params is a single uniform; a second pass must not overwrite it before the first runs
	d.Barrier()
	if groups == 0 {
		return nil
	}

	if err := d.ctx.queue.WriteBuffer(d.paramsBuf, 0, paramsBytes(p, uint32(d.bound.count))); err != nil {
		return crystal.NewError(crystal.KernelLaunchError, "integrate params", err)
	}
	encoder, err := d.ctx.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "Integrate"})
	if err != nil {
		return crystal.NewError(crystal.KernelLaunchError, "integrate encoder", err)
	}
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(d.pipelines.integrate)
	pass.SetBindGroup(0, d.computeBG, nil)
	pass.DispatchWorkgroups(groups, 1, 1)
	err = pass.End()
	pass.Release()
	defer encoder.Release()
	if err != nil {
		return crystal.NewError(crystal.KernelLaunchError, "integrate pass", err)
	}
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return crystal.NewError(crystal.KernelLaunchError, "integrate finish", errors.Wrap(err, "finish compute encoder"))
	}
	d.pending = cmd
	return nil
}

// Barrier submits recorded compute work. The queue executes submissions in
// order, so any draw submitted afterwards reads the integrated positions.
func (d *Device) Barrier() {
	if d.pending == nil {
		return
	}
	cmd := d.pending
	d.pending = nil
	defer cmd.Release()
	d.ctx.queue.Submit(cmd)
}

func (d *Device) Draw(p crystal.DrawParams) error {
	if d.pending != nil {
		d.diagnose(crystal.SeverityWarning, "draw issued with unsynchronized integrate writes; submitting")
		d.Barrier()
	}
	b := d.bound
	if b == nil {
		return fmt.Errorf("draw: no buffer bound at slot %d", crystal.StoreSlot)
	}
	if int(p.Count) > b.count {
		return fmt.Errorf("draw: %d points requested from buffer %q of %d", p.Count, b.label, b.count)
	}
	if err := d.ctx.queue.WriteBuffer(d.cameraBuf, 0, cameraBytes(p)); err != nil {
		return errors.Wrap(err, "draw: camera upload")
	}

	if d.texture != nil {
		d.texture.Release()
		d.texture = nil
	}
	texture, err := d.ctx.surface.GetCurrentTexture()
	if err != nil {
		return errors.Wrap(err, "draw: surface texture")
	}
	d.texture = texture
	view, err := texture.CreateView(nil)
	if err != nil {
		return errors.Wrap(err, "draw: texture view")
	}
	defer view.Release()

	encoder, err := d.ctx.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "Points"})
	if err != nil {
		return errors.Wrap(err, "draw: encoder")
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            d.ctx.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		},
	})
	pass.SetPipeline(d.pipelines.points)
	pass.SetBindGroup(0, d.renderBG, nil)
	if p.Count > 0 {
		// positions are the first half of the store
		pass.SetVertexBuffer(0, b.buf, 0, uint64(p.Count)*vec3Size)
		pass.Draw(p.Count, 1, 0, 0)
	}
	err = pass.End()
	pass.Release()
	if err != nil {
		return errors.Wrap(err, "draw: render pass")
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return errors.Wrap(err, "draw: finish")
	}
	defer cmd.Release()
	d.ctx.queue.Submit(cmd)
	return nil
}

func (d *Device) Present() error {
	if d.texture == nil {
		return errors.New("present: nothing drawn")
	}
	d.ctx.surface.Present()
	d.texture.Release()
	d.texture = nil
	return nil
}

// ReadPositions copies the position region into a staging buffer and blocks
// until it is mapped.
func (d *Device) ReadPositions(buf crystal.Buffer) ([]mgl32.Vec3, error) {
	b, err := d.own(buf)
	if err != nil {
		return nil, err
	}
	d.Barrier()

	size := uint64(b.count) * vec3Size
	staging, err := d.ctx.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, crystal.NewError(crystal.AllocationError, "readback", err)
	}
	defer staging.Release()

	encoder, err := d.ctx.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, errors.Wrap(err, "readback encoder")
	}
	defer encoder.Release()
	encoder.CopyBufferToBuffer(b.buf, 0, staging, 0, size)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, errors.Wrap(err, "readback finish")
	}
	defer cmd.Release()
	d.ctx.queue.Submit(cmd)

	mapped := false
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		mapped = s == wgpu.BufferMapAsyncStatusSuccess
	})
	d.ctx.device.Poll(true, nil)
	if !mapped {
		return nil, errors.New("readback: staging buffer map failed")
	}
	out := decodePositions(staging.GetMappedRange(0, uint(size)), b.count)
	staging.Unmap()
	return out, nil
}

// Release frees every resource in reverse order of creation. Safe to call twice.
func (d *Device) Release() {
	if d.released {
		return
	}
	d.released = true
	if d.ctx != nil && d.ctx.device != nil {
		d.Barrier()
	}
	if d.texture != nil {
		d.texture.Release()
		d.texture = nil
	}
	d.unbind()
	if d.renderBG != nil {
		d.renderBG.Release()
		d.renderBG = nil
	}
	if d.cameraBuf != nil {
		d.cameraBuf.Release()
		d.cameraBuf = nil
	}
	if d.paramsBuf != nil {
		d.paramsBuf.Release()
		d.paramsBuf = nil
	}
	if d.pipelines != nil {
		d.pipelines.release()
	}
	if d.ctx != nil {
		d.ctx.release()
	}
}

type buffer struct {
	label string
	count int
	buf   *wgpu.Buffer
	dev   *Device
}

func (b *buffer) Label() string { return b.label }
func (b *buffer) Count() int    { return b.count }

func (b *buffer) Release() {
	if b.buf == nil {
		return
	}
	b.dev.Barrier()
	if b.dev.bound == b {
		b.dev.unbind()
	}
	b.buf.Release()
	b.buf = nil
}
