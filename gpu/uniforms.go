package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/crystal"
	"github.com/go-gl/mathgl/mgl32"
)

// glToWebGPU remaps GL clip depth [-1, 1] to the [0, 1] range WebGPU clips to.
var glToWebGPU = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// ClipSpace converts a GL-convention view-projection matrix for WebGPU.
func ClipSpace(viewProj mgl32.Mat4) mgl32.Mat4 {
	return glToWebGPU.Mul4(viewProj)
}

// paramsBytes lays out the integrate kernel's Params uniform. capacity is the
// buffer's particle count, which fixes where the velocity region starts.
func paramsBytes(p crystal.IntegrateParams, capacity uint32) []byte {
	b := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(p.DeltaTime))
	binary.LittleEndian.PutUint32(b[4:], p.Count)
	binary.LittleEndian.PutUint32(b[8:], capacity)
	return b
}

// cameraBytes lays out the points shader's Camera uniform. mgl32 matrices are
// column-major, as WGSL expects.
func cameraBytes(p crystal.DrawParams) []byte {
	b := make([]byte, cameraSize)
	m := ClipSpace(p.ViewProj)
	for i, v := range m {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	for i, v := range p.Color {
		binary.LittleEndian.PutUint32(b[64+4*i:], math.Float32bits(v))
	}
	return b
}

// initialData fills count positions followed by count velocities.
func initialData(count int, position, velocity mgl32.Vec3) []byte {
	b := make([]byte, crystal.StoreSizeBytes(count))
	vel := b[count*vec3Size:]
	for i := 0; i < count; i++ {
		for c := 0; c < 3; c++ {
			binary.LittleEndian.PutUint32(b[i*vec3Size+4*c:], math.Float32bits(position[c]))
			binary.LittleEndian.PutUint32(vel[i*vec3Size+4*c:], math.Float32bits(velocity[c]))
		}
	}
	return b
}

func decodePositions(raw []byte, count int) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, count)
	for i := range out {
		for c := 0; c < 3; c++ {
			out[i][c] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*vec3Size+4*c:]))
		}
	}
	return out
}
