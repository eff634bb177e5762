package crystal

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// Renderer draws the whole store as same-colored points in one call.
type Renderer struct {
	device   Device
	camera   Camera
	viewProj mgl32.Mat4
	color    [4]float32
}

func NewRenderer(device Device, camera Camera, color [4]float32) *Renderer {
	return &Renderer{
		device:   device,
		camera:   camera,
		viewProj: camera.ViewProj(),
		color:    color,
	}
}

func (r *Renderer) Camera() Camera { return r.camera }

// Draw projects every position through the fixed view-projection matrix.
// It never writes the store.
func (r *Renderer) Draw(store *Store) error {
	if store == nil || store.Buffer() == nil {
		return errors.New("draw: no particle store")
	}
	return r.device.Draw(DrawParams{
		ViewProj: r.viewProj,
		Count:    uint32(store.Count()),
		Color:    r.color,
	})
}
