package soft

import (
	"image/color"
	"testing"

	"github.com/gekko3d/crystal"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Odd sizes keep the view axis in the middle of a pixel.
const rasterW, rasterH = 65, 49

var red = [4]float32{1, 0, 0, 1}

func defaultViewProj() mgl32.Mat4 {
	cfg := crystal.DefaultConfig()
	return crystal.NewCamera(cfg.Camera, rasterW, rasterH).ViewProj()
}

func bindPoints(t *testing.T, d *Device, points ...mgl32.Vec3) *buffer {
	t.Helper()
	buf, err := d.Allocate("p", len(points), mgl32.Vec3{}, mgl32.Vec3{})
	require.NoError(t, err)
	require.NoError(t, d.Bind(buf, crystal.StoreSlot))
	b := buf.(*buffer)
	pos, _ := b.regions()
	for i, p := range points {
		copy(pos[3*i:], p[:])
	}
	return b
}

func litPixels(d *Device) int {
	bg := d.background
	n := 0
	for y := 0; y < rasterH; y++ {
		for x := 0; x < rasterW; x++ {
			if d.color.RGBAAt(x, y) != bg {
				n++
			}
		}
	}
	return n
}

func TestDrawOriginAtCenter(t *testing.T) {
	d := newTestDevice(t, Options{Width: rasterW, Height: rasterH})
	bindPoints(t, d, mgl32.Vec3{})

	require.NoError(t, d.Draw(crystal.DrawParams{ViewProj: defaultViewProj(), Count: 1, Color: red}))

	assert.Equal(t, color.RGBA{R: 255, A: 255}, d.Frame().RGBAAt(32, 24))
	assert.Less(t, d.DepthAt(32, 24), float32(1))
	assert.Equal(t, 1, litPixels(d))
	assert.Equal(t, float32(1), d.DepthAt(0, 0))
}

func TestDrawDepthTest(t *testing.T) {
	eye := mgl32.Vec3{0, 5, 15}
	far := mgl32.Vec3{}
	near := eye.Mul(0.5)
	vp := defaultViewProj()
	nearNDC, ok := crystal.ProjectPoint(vp, near)
	require.True(t, ok)
	wantDepth := nearNDC.Z()*0.5 + 0.5

	for _, order := range [][]mgl32.Vec3{{far, near}, {near, far}} {
		d := newTestDevice(t, Options{Width: rasterW, Height: rasterH})
		bindPoints(t, d, order...)
		require.NoError(t, d.Draw(crystal.DrawParams{ViewProj: vp, Count: 2, Color: red}))
		assert.InDelta(t, wantDepth, d.DepthAt(32, 24), 1e-6)
		assert.Equal(t, 1, litPixels(d))
	}
}

func TestDrawClipsOutsidePoints(t *testing.T) {
	d := newTestDevice(t, Options{Width: rasterW, Height: rasterH})
	// behind the eye, far off to the side, past the far plane
	bindPoints(t, d, mgl32.Vec3{0, 5, 20}, mgl32.Vec3{100, 0, 0}, mgl32.Vec3{0, -50, -200})

	require.NoError(t, d.Draw(crystal.DrawParams{ViewProj: defaultViewProj(), Count: 3, Color: red}))
	assert.Equal(t, 0, litPixels(d))
}

func TestDrawClearsPreviousFrame(t *testing.T) {
	d := newTestDevice(t, Options{Width: rasterW, Height: rasterH})
	b := bindPoints(t, d, mgl32.Vec3{})
	vp := defaultViewProj()
	require.NoError(t, d.Draw(crystal.DrawParams{ViewProj: vp, Count: 1, Color: red}))

	pos, _ := b.regions()
	pos[0] = 1
	require.NoError(t, d.Draw(crystal.DrawParams{ViewProj: vp, Count: 1, Color: red}))
	assert.Equal(t, 1, litPixels(d))
	assert.Equal(t, d.background, d.Frame().RGBAAt(32, 24))
}

func TestDrawWaitsForPendingDispatch(t *testing.T) {
	rec := &crystal.DiagnosticRecorder{}
	d := newTestDevice(t, Options{Width: rasterW, Height: rasterH, Observer: rec})
	buf, err := d.Allocate("p", 1, mgl32.Vec3{}, mgl32.Vec3{1, 0, 0})
	require.NoError(t, err)
	require.NoError(t, d.Bind(buf, crystal.StoreSlot))

	require.NoError(t, d.Dispatch(1, crystal.IntegrateParams{DeltaTime: 1, Count: 1}))
	require.NoError(t, d.Draw(crystal.DrawParams{ViewProj: defaultViewProj(), Count: 1, Color: red}))

	entries := rec.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, crystal.SeverityWarning, entries[0].Severity)
	assert.Equal(t, d.background, d.Frame().RGBAAt(32, 24))
	assert.Equal(t, 1, litPixels(d))
}

func TestDrawErrors(t *testing.T) {
	d := newTestDevice(t, Options{Width: rasterW, Height: rasterH})
	assert.Error(t, d.Draw(crystal.DrawParams{Count: 1}))

	bindPoints(t, d, mgl32.Vec3{})
	assert.Error(t, d.Draw(crystal.DrawParams{Count: 2}))
}

func TestDrawOverlay(t *testing.T) {
	d := newTestDevice(t, Options{Width: 120, Height: 40})
	bindPoints(t, d, mgl32.Vec3{0, 0, -1000})
	d.SetOverlay([]string{"paused"})

	require.NoError(t, d.Draw(crystal.DrawParams{ViewProj: defaultViewProj(), Count: 1, Color: red}))
	yellow := color.RGBA{R: 255, G: 255, A: 255}
	found := false
	for y := 0; y < 20 && !found; y++ {
		for x := 0; x < 60; x++ {
			if d.Frame().RGBAAt(x, y) == yellow {
				found = true
				break
			}
		}
	}
	assert.True(t, found, "overlay text not drawn")
}

func TestToRGBAClamps(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 255, G: 0, B: 128, A: 255}, toRGBA([4]float32{2, -1, 0.5, 1}))
}

func TestCapturePresenter(t *testing.T) {
	c := &Capture{}
	assert.Nil(t, c.Last())

	d := newTestDevice(t, Options{Width: rasterW, Height: rasterH, Presenter: c})
	bindPoints(t, d, mgl32.Vec3{})
	require.NoError(t, d.Draw(crystal.DrawParams{ViewProj: defaultViewProj(), Count: 1, Color: red}))
	require.NoError(t, d.Present())

	last := c.Last()
	require.NotNil(t, last)
	assert.Equal(t, d.Frame().Pix, last.Pix)
	last.Pix[0] = 7
	assert.NotEqual(t, byte(7), c.Last().Pix[0])
	assert.Equal(t, 1, c.Frames())
}
