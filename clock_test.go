package crystal

import (
	"testing"
	"time"
)

func TestClock(t *testing.T) {
	now := time.Unix(100, 0)
	c := NewClock(func() time.Time { return now })

	if dt := c.Tick(); dt != 0 {
		t.Errorf("first tick = %v, want 0", dt)
	}
	now = now.Add(16 * time.Millisecond)
	if dt := c.Tick(); dt != 16*time.Millisecond {
		t.Errorf("second tick = %v, want 16ms", dt)
	}

	// wall clock stepping backwards never yields negative time
	now = now.Add(-time.Second)
	if dt := c.Tick(); dt != 0 {
		t.Errorf("backwards tick = %v, want 0", dt)
	}

	now = now.Add(time.Hour)
	c.Reset()
	now = now.Add(5 * time.Millisecond)
	if dt := c.Tick(); dt != 5*time.Millisecond {
		t.Errorf("tick after reset = %v, want 5ms", dt)
	}
}

func TestClockDefaultsToWallTime(t *testing.T) {
	c := NewClock(nil)
	c.Tick()
	if c.Time.IsZero() {
		t.Error("expected wall time")
	}
}
