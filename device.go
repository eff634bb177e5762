package crystal

import (
	"github.com/go-gl/mathgl/mgl32"
)

// WorkgroupSize is the number of particles one kernel workgroup advances.
// The WGSL integrate kernel declares the same value.
const WorkgroupSize = 256

// StoreSlot is the binding slot the integrate kernel reads the store from.
const StoreSlot uint32 = 0

// Buffer is a device-resident particle buffer: count positions followed by
// count velocities, three float32 each.
type Buffer interface {
	Label() string
	Count() int
	Release()
}

type IntegrateParams struct {
	DeltaTime float32
	Count     uint32
}

type DrawParams struct {
	ViewProj mgl32.Mat4
	Count    uint32
	Color    [4]float32
}

// Device is the parallel compute device the pipeline runs on. Every method is
// called from the frame driver goroutine; parallelism is internal to the device.
type Device interface {
	Name() string
	// Allocate reserves 2*count*vec3 of device memory and fills both regions.
	Allocate(label string, count int, position, velocity mgl32.Vec3) (Buffer, error)
	// Bind exposes buf to kernels at slot. No data is copied.
	Bind(buf Buffer, slot uint32) error
	// Dispatch queues groups workgroups of the integrate kernel.
	Dispatch(groups uint32, p IntegrateParams) error
	// Barrier makes every queued write visible to work issued after it.
	Barrier()
	// Draw clears the color and depth planes and rasterizes Count points.
	Draw(p DrawParams) error
	Present() error
	// ReadPositions copies positions back to the host. Diagnostics and tests only.
	ReadPositions(buf Buffer) ([]mgl32.Vec3, error)
	Release()
}

// Overlayer is implemented by devices that can draw a debug HUD.
type Overlayer interface {
	SetOverlay(lines []string)
}

// InputEvent is a control signal from the window or terminal layer.
type InputEvent int

const (
	EventNone InputEvent = iota
	EventTogglePause
	EventSpeedUp
	EventSpeedDown
	EventQuit
)

func (e InputEvent) String() string {
	switch e {
	case EventTogglePause:
		return "toggle-pause"
	case EventSpeedUp:
		return "speed-up"
	case EventSpeedDown:
		return "speed-down"
	case EventQuit:
		return "quit"
	default:
		return "none"
	}
}

// InputSource is polled once per tick for pending events.
type InputSource interface {
	Poll() []InputEvent
}

type nopInput struct{}

func (nopInput) Poll() []InputEvent { return nil }

// NoInput never produces events.
func NoInput() InputSource { return nopInput{} }
