package crystal

// Barrier orders the integrator's writes before the renderer's reads.
// It has no failure mode and never waits on anything but queued kernels.
type Barrier struct {
	device Device
	syncs  uint64
}

func NewBarrier(device Device) *Barrier {
	return &Barrier{device: device}
}

func (b *Barrier) SyncWritesBeforeReads() {
	b.device.Barrier()
	b.syncs++
}

// Syncs counts barrier invocations.
func (b *Barrier) Syncs() uint64 { return b.syncs }
