package crystal

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is fixed for the process lifetime. Y is up.
type Camera struct {
	Eye    mgl32.Vec3
	Target mgl32.Vec3
	Up     mgl32.Vec3
	FovY   float32 // radians
	Aspect float32
	Near   float32
	Far    float32
}

func NewCamera(cfg CameraConfig, width, height int) Camera {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	return Camera{
		Eye:    mgl32.Vec3(cfg.Eye),
		Target: mgl32.Vec3(cfg.Target),
		Up:     mgl32.Vec3{0, 1, 0},
		FovY:   mgl32.DegToRad(cfg.FovDeg),
		Aspect: aspect,
		Near:   cfg.Near,
		Far:    cfg.Far,
	}
}

func (c Camera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye, c.Target, c.Up)
}

// Projection uses the OpenGL clip convention (z in [-w, w]).
func (c Camera) Projection() mgl32.Mat4 {
	return mgl32.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

func (c Camera) ViewProj() mgl32.Mat4 {
	return c.Projection().Mul4(c.ViewMatrix())
}

// Project maps a world position to normalized device coordinates. ok is false
// when the point is behind the eye or outside the view volume.
func (c Camera) Project(p mgl32.Vec3) (ndc mgl32.Vec3, ok bool) {
	return ProjectPoint(c.ViewProj(), p)
}

func ProjectPoint(viewProj mgl32.Mat4, p mgl32.Vec3) (mgl32.Vec3, bool) {
	clip := viewProj.Mul4x1(p.Vec4(1))
	w := clip.W()
	if w <= 0 {
		return mgl32.Vec3{}, false
	}
	ndc := clip.Vec3().Mul(1 / w)
	for i := 0; i < 3; i++ {
		if ndc[i] < -1 || ndc[i] > 1 {
			return ndc, false
		}
	}
	return ndc, true
}
