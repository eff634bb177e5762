// Package soft is a CPU implementation of crystal.Device. Kernel workgroups run
// on goroutines and points are rasterized into in-memory color and depth planes.
package soft

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"runtime"

	"github.com/gekko3d/crystal"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"
)

// DefaultMemoryLimit caps the bytes all live buffers may occupy.
const DefaultMemoryLimit = 256 << 20

// Presenter receives each finished color plane.
type Presenter interface {
	Present(img *image.RGBA) error
}

type Options struct {
	Width  int
	Height int
	// Workers bounds concurrently running workgroups; 0 means GOMAXPROCS.
	Workers int
	// MemoryLimit in bytes; 0 means DefaultMemoryLimit.
	MemoryLimit int
	Background  color.RGBA
	Presenter   Presenter
	Observer    crystal.DiagnosticObserver
}

var (
	_ crystal.Device    = (*Device)(nil)
	_ crystal.Overlayer = (*Device)(nil)
	_ crystal.Buffer    = (*buffer)(nil)
)

type Device struct {
	width, height int
	workers       int
	memoryLimit   int
	allocated     int
	background    color.RGBA

	presenter Presenter
	observer  crystal.DiagnosticObserver

	slots   map[uint32]*buffer
	pending *errgroup.Group

	color   *image.RGBA
	depth   []float32
	scratch []projected
	overlay []string

	dispatches uint64
	released   bool
}

func New(opts Options) (*Device, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, crystal.NewError(crystal.ConfigurationError, "soft device", fmt.Errorf("invalid frame size %dx%d", opts.Width, opts.Height))
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	limit := opts.MemoryLimit
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	bg := opts.Background
	if bg == (color.RGBA{}) {
		bg = color.RGBA{A: 255}
	}
	observer := opts.Observer
	if observer == nil {
		observer = crystal.DiagnosticFunc(func(crystal.Diagnostic) {})
	}
	return &Device{
		width:       opts.Width,
		height:      opts.Height,
		workers:     workers,
		memoryLimit: limit,
		background:  bg,
		presenter:   opts.Presenter,
		observer:    observer,
		slots:       make(map[uint32]*buffer),
		color:       image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height)),
		depth:       make([]float32, opts.Width*opts.Height),
	}, nil
}

func (d *Device) Name() string { return fmt.Sprintf("soft(%d workers)", d.workers) }

// Frame is the color plane written by the last Draw.
func (d *Device) Frame() *image.RGBA { return d.color }

// DepthAt returns the depth plane value at (x, y); 1 is the far plane.
func (d *Device) DepthAt(x, y int) float32 { return d.depth[y*d.width+x] }

// Dispatches counts launched integrate kernels.
func (d *Device) Dispatches() uint64 { return d.dispatches }

func (d *Device) Allocated() int { return d.allocated }

func (d *Device) Allocate(label string, count int, position, velocity mgl32.Vec3) (crystal.Buffer, error) {
	if d.released {
		return nil, crystal.NewError(crystal.AllocationError, label, errors.New("device released"))
	}
	if count <= 0 {
		return nil, crystal.NewError(crystal.AllocationError, label, fmt.Errorf("invalid particle count %d", count))
	}
	size := crystal.StoreSizeBytes(count)
	if d.allocated+size > d.memoryLimit {
		return nil, crystal.NewError(crystal.AllocationError, label,
			fmt.Errorf("need %d bytes, %d of %d in use", size, d.allocated, d.memoryLimit))
	}
	b := &buffer{
		label: label,
		count: count,
		data:  make([]float32, 6*count),
		dev:   d,
	}
	pos, vel := b.regions()
	for i := 0; i < count; i++ {
		copy(pos[3*i:3*i+3], position[:])
		copy(vel[3*i:3*i+3], velocity[:])
	}
	d.allocated += size
	return b, nil
}

func (d *Device) Bind(buf crystal.Buffer, slot uint32) error {
	b, err := d.own(buf)
	if err != nil {
		return err
	}
	d.slots[slot] = b
	return nil
}

func (d *Device) own(buf crystal.Buffer) (*buffer, error) {
	b, ok := buf.(*buffer)
	if !ok || b.dev != d {
		return nil, fmt.Errorf("buffer %q does not belong to %s", buf.Label(), d.Name())
	}
	if b.data == nil {
		return nil, fmt.Errorf("buffer %q released", b.label)
	}
	return b, nil
}

// Dispatch launches groups workgroups without waiting for them. Work queued
// earlier completes first, matching in-order queue semantics.
func (d *Device) Dispatch(groups uint32, p crystal.IntegrateParams) error {
	b := d.slots[crystal.StoreSlot]
	if b == nil || b.data == nil {
		return crystal.NewError(crystal.KernelLaunchError, "integrate", fmt.Errorf("no buffer bound at slot %d", crystal.StoreSlot))
	}
	if int(p.Count) > b.count {
		return crystal.NewError(crystal.KernelLaunchError, "integrate",
			fmt.Errorf("kernel count %d exceeds buffer %q of %d", p.Count, b.label, b.count))
	}
	d.Barrier()
	if groups == 0 {
		return nil
	}

	pos, vel := b.regions()
	g := new(errgroup.Group)
	g.SetLimit(d.workers)
	for gid := uint32(0); gid < groups; gid++ {
		g.Go(func() error {
			integrateGroup(pos, vel, gid, p)
			return nil
		})
	}
	d.pending = g
	d.dispatches++
	return nil
}

// integrateGroup is one workgroup of the integrate kernel.
func integrateGroup(pos, vel []float32, gid uint32, p crystal.IntegrateParams) {
	base := gid * crystal.WorkgroupSize
	for local := uint32(0); local < crystal.WorkgroupSize; local++ {
		i := base + local
		if i >= p.Count {
			return
		}
		j := 3 * i
		pos[j] += vel[j] * p.DeltaTime
		pos[j+1] += vel[j+1] * p.DeltaTime
		pos[j+2] += vel[j+2] * p.DeltaTime
	}
}

// Barrier waits for queued workgroups. A no-op when nothing is pending.
func (d *Device) Barrier() {
	if d.pending == nil {
		return
	}
	_ = d.pending.Wait()
	d.pending = nil
}

func (d *Device) SetOverlay(lines []string) {
	d.overlay = append(d.overlay[:0], lines...)
}

func (d *Device) Present() error {
	if d.presenter == nil {
		return nil
	}
	return d.presenter.Present(d.color)
}

func (d *Device) ReadPositions(buf crystal.Buffer) ([]mgl32.Vec3, error) {
	b, err := d.own(buf)
	if err != nil {
		return nil, err
	}
	d.Barrier()
	pos, _ := b.regions()
	out := make([]mgl32.Vec3, b.count)
	for i := range out {
		out[i] = mgl32.Vec3{pos[3*i], pos[3*i+1], pos[3*i+2]}
	}
	return out, nil
}

func (d *Device) Release() {
	if d.released {
		return
	}
	d.Barrier()
	for slot, b := range d.slots {
		b.Release()
		delete(d.slots, slot)
	}
	d.released = true
}

type buffer struct {
	label string
	count int
	data  []float32
	dev   *Device
}

func (b *buffer) Label() string { return b.label }
func (b *buffer) Count() int    { return b.count }

// regions splits the buffer into its position and velocity halves.
func (b *buffer) regions() (pos, vel []float32) {
	n := 3 * b.count
	return b.data[:n:n], b.data[n:]
}

func (b *buffer) Release() {
	if b.data == nil {
		return
	}
	b.dev.Barrier()
	for slot, bound := range b.dev.slots {
		if bound == b {
			delete(b.dev.slots, slot)
		}
	}
	b.dev.allocated -= crystal.StoreSizeBytes(b.count)
	b.data = nil
}
