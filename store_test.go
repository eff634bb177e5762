package crystal_test

import (
	"errors"
	"testing"

	"github.com/gekko3d/crystal"
	"github.com/gekko3d/crystal/soft"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreUniformInit(t *testing.T) {
	dev := newSoftDevice(t, soft.Options{})
	store, err := crystal.NewStore(dev, 100, mgl32.Vec3{1, 2, 3}, mgl32.Vec3{0.01, 0, 0})
	require.NoError(t, err)
	defer store.Release()

	assert.NotEqual(t, uuid.Nil, store.ID())
	assert.Equal(t, 100, store.Count())
	assert.Equal(t, 2400, store.SizeBytes())
	assert.Contains(t, store.Buffer().Label(), store.ID().String()[:8])

	got, err := store.Positions()
	require.NoError(t, err)
	require.Len(t, got, 100)
	for _, p := range got {
		assert.Equal(t, mgl32.Vec3{1, 2, 3}, p)
	}
}

func TestNewStoreRejectsEmpty(t *testing.T) {
	dev := newSoftDevice(t, soft.Options{})
	for _, n := range []int{0, -5} {
		_, err := crystal.NewStore(dev, n, mgl32.Vec3{}, mgl32.Vec3{})
		assert.True(t, errors.Is(err, crystal.ErrConfiguration), "n=%d", n)
	}
}

// plainAllocFailDevice fails allocation without classifying the error.
type plainAllocFailDevice struct {
	crystal.Device
}

func (plainAllocFailDevice) Allocate(string, int, mgl32.Vec3, mgl32.Vec3) (crystal.Buffer, error) {
	return nil, errors.New("no memory")
}

func TestNewStoreClassifiesAllocationFailure(t *testing.T) {
	_, err := crystal.NewStore(plainAllocFailDevice{}, 10, mgl32.Vec3{}, mgl32.Vec3{})
	require.Error(t, err)
	assert.Equal(t, crystal.AllocationError, crystal.KindOf(err))
	assert.Contains(t, err.Error(), "no memory")
}

func TestStoreBindAndRelease(t *testing.T) {
	dev := newSoftDevice(t, soft.Options{})
	store, err := crystal.NewStore(dev, 3, mgl32.Vec3{}, mgl32.Vec3{})
	require.NoError(t, err)

	_, bound := store.Bound()
	assert.False(t, bound)
	require.NoError(t, store.Bind(crystal.StoreSlot))
	slot, bound := store.Bound()
	assert.True(t, bound)
	assert.Equal(t, crystal.StoreSlot, slot)

	store.Release()
	store.Release()
	_, bound = store.Bound()
	assert.False(t, bound)
	assert.Nil(t, store.Buffer())
	assert.Equal(t, 0, dev.Allocated())
	assert.Error(t, store.Bind(crystal.StoreSlot))
	_, err = store.Positions()
	assert.Error(t, err)
}
