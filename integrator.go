package crystal

import (
	"errors"
	"fmt"
)

// DispatchGroups is the number of workgroups needed to cover count particles.
// Rounds up; the kernel discards invocations past count.
func DispatchGroups(count int, groupSize int) uint32 {
	if count <= 0 || groupSize <= 0 {
		return 0
	}
	return uint32((count + groupSize - 1) / groupSize)
}

type Integrator struct {
	device Device
}

func NewIntegrator(device Device) *Integrator {
	return &Integrator{device: device}
}

// Step advances every particle by velocity*dt. A failed launch is returned as
// a KernelLaunchError and leaves positions untouched.
func (in *Integrator) Step(store *Store, dt float32) error {
	if store == nil || store.Buffer() == nil {
		return newError(KernelLaunchError, "integrate", errors.New("no particle store"))
	}
	if _, ok := store.Bound(); !ok {
		return newError(KernelLaunchError, "integrate", fmt.Errorf("store %s not bound", store.ID()))
	}
	if dt < 0 {
		dt = 0
	}
	groups := DispatchGroups(store.Count(), WorkgroupSize)
	err := in.device.Dispatch(groups, IntegrateParams{DeltaTime: dt, Count: uint32(store.Count())})
	if err == nil {
		return nil
	}
	if KindOf(err) == KernelLaunchError {
		return err
	}
	return newError(KernelLaunchError, "integrate", err)
}
