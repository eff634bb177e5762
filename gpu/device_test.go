package gpu

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/crystal"
	"github.com/stretchr/testify/assert"
)

// Recording, including Finish, happens in Dispatch so its failures surface as
// launch errors; the barrier only holds a finished command buffer to submit.
var _ *wgpu.CommandBuffer = (&Device{}).pending

func TestBarrierWithoutPendingWork(t *testing.T) {
	d := &Device{}
	assert.NotPanics(t, d.Barrier)
	assert.Nil(t, d.pending)
}

func TestDispatchRequiresBinding(t *testing.T) {
	d := &Device{}
	err := d.Dispatch(1, crystal.IntegrateParams{DeltaTime: 1, Count: 1})
	assert.Equal(t, crystal.KernelLaunchError, crystal.KindOf(err))
}

func TestDispatchRejectsCountAboveCapacity(t *testing.T) {
	d := &Device{}
	d.bound = &buffer{dev: d, label: "p", count: 4}
	err := d.Dispatch(1, crystal.IntegrateParams{DeltaTime: 1, Count: 5})
	assert.Equal(t, crystal.KernelLaunchError, crystal.KindOf(err))

	err = d.Dispatch(MaxWorkgroupsPerDimension+1, crystal.IntegrateParams{DeltaTime: 1, Count: 4})
	assert.Equal(t, crystal.KernelLaunchError, crystal.KindOf(err))
	assert.Nil(t, d.pending)
}
