package soft

import (
	"fmt"
	"image"
	"image/color"

	"github.com/gekko3d/crystal"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"
)

type projected struct {
	x, y    int
	z       float32
	visible bool
}

// Draw clears both planes and rasterizes one pixel per visible particle.
// Projection runs in parallel; the depth-tested write is serial.
func (d *Device) Draw(p crystal.DrawParams) error {
	if d.pending != nil {
		d.observer.OnDiagnostic(crystal.Diagnostic{
			Source:   "soft",
			Severity: crystal.SeverityWarning,
			Message:  "draw issued with unsynchronized integrate writes; waiting",
		})
		d.Barrier()
	}
	b := d.slots[crystal.StoreSlot]
	if b == nil || b.data == nil {
		return fmt.Errorf("draw: no buffer bound at slot %d", crystal.StoreSlot)
	}
	if int(p.Count) > b.count {
		return fmt.Errorf("draw: %d points requested from buffer %q of %d", p.Count, b.label, b.count)
	}

	d.clear()

	n := int(p.Count)
	if cap(d.scratch) < n {
		d.scratch = make([]projected, n)
	}
	d.scratch = d.scratch[:n]
	pos, _ := b.regions()

	g := new(errgroup.Group)
	g.SetLimit(d.workers)
	for start := 0; start < n; start += crystal.WorkgroupSize {
		end := min(start+crystal.WorkgroupSize, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				d.scratch[i] = d.project(p, pos, i)
			}
			return nil
		})
	}
	_ = g.Wait()

	c := toRGBA(p.Color)
	for _, pt := range d.scratch {
		if !pt.visible {
			continue
		}
		idx := pt.y*d.width + pt.x
		if pt.z >= d.depth[idx] {
			continue
		}
		d.depth[idx] = pt.z
		d.color.SetRGBA(pt.x, pt.y, c)
	}

	if len(d.overlay) > 0 {
		d.drawOverlay()
	}
	return nil
}

func (d *Device) project(p crystal.DrawParams, pos []float32, i int) projected {
	ndc, ok := crystal.ProjectPoint(p.ViewProj, mgl32.Vec3{pos[3*i], pos[3*i+1], pos[3*i+2]})
	if !ok {
		return projected{}
	}
	x := int((ndc.X()*0.5 + 0.5) * float32(d.width))
	y := int((0.5 - ndc.Y()*0.5) * float32(d.height))
	if x < 0 || x >= d.width || y < 0 || y >= d.height {
		return projected{}
	}
	return projected{x: x, y: y, z: ndc.Z()*0.5 + 0.5, visible: true}
}

func (d *Device) clear() {
	pix := d.color.Pix
	bg := d.background
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = bg.R, bg.G, bg.B, bg.A
	}
	for i := range d.depth {
		d.depth[i] = 1
	}
}

func (d *Device) drawOverlay() {
	face := basicfont.Face7x13
	dr := font.Drawer{
		Dst:  d.color,
		Src:  image.NewUniform(color.RGBA{R: 255, G: 255, B: 0, A: 255}),
		Face: face,
	}
	lineHeight := face.Metrics().Height
	y := fixed.I(4) + face.Metrics().Ascent
	for _, line := range d.overlay {
		dr.Dot = fixed.Point26_6{X: fixed.I(4), Y: y}
		dr.DrawString(line)
		y += lineHeight
	}
}

func toRGBA(c [4]float32) color.RGBA {
	ch := func(v float32) uint8 {
		switch {
		case v <= 0:
			return 0
		case v >= 1:
			return 255
		default:
			return uint8(v*255 + 0.5)
		}
	}
	return color.RGBA{R: ch(c[0]), G: ch(c[1]), B: ch(c[2]), A: ch(c[3])}
}
