package crystal

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Store owns the device buffer holding the whole particle population.
// Particles are addressed by index 0..Count()-1; nothing is added or removed.
type Store struct {
	id     uuid.UUID
	device Device
	buf    Buffer
	count  int
	slot   uint32
	bound  bool
}

func NewStore(device Device, count int, position, velocity mgl32.Vec3) (*Store, error) {
	if count <= 0 {
		return nil, newError(ConfigurationError, "new store", fmt.Errorf("particle count must be positive, got %d", count))
	}
	id := uuid.New()
	buf, err := device.Allocate("Particles "+id.String()[:8], count, position, velocity)
	if err != nil {
		if KindOf(err) == 0 {
			err = newError(AllocationError, "allocate particle store", err)
		}
		return nil, err
	}
	return &Store{id: id, device: device, buf: buf, count: count}, nil
}

func (s *Store) ID() uuid.UUID  { return s.id }
func (s *Store) Count() int     { return s.count }
func (s *Store) Buffer() Buffer { return s.buf }

// SizeBytes is the device footprint: positions then velocities, 12 bytes each.
func (s *Store) SizeBytes() int { return StoreSizeBytes(s.count) }

func StoreSizeBytes(count int) int { return 2 * count * 3 * 4 }

// Bind exposes the store to kernels at slot.
func (s *Store) Bind(slot uint32) error {
	if s.buf == nil {
		return fmt.Errorf("bind store %s: released", s.id)
	}
	if err := s.device.Bind(s.buf, slot); err != nil {
		return err
	}
	s.slot = slot
	s.bound = true
	return nil
}

func (s *Store) Bound() (uint32, bool) { return s.slot, s.bound }

// Positions reads positions back from the device. Not used in steady state.
func (s *Store) Positions() ([]mgl32.Vec3, error) {
	if s.buf == nil {
		return nil, fmt.Errorf("read store %s: released", s.id)
	}
	return s.device.ReadPositions(s.buf)
}

func (s *Store) Release() {
	if s.buf == nil {
		return
	}
	s.buf.Release()
	s.buf = nil
	s.bound = false
}
