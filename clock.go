package crystal

import (
	"time"
)

// Clock measures wall-clock time between frame ticks.
type Clock struct {
	now     func() time.Time
	Time    time.Time
	Dt      time.Duration
	started bool
}

// NewClock uses time.Now when now is nil.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Tick returns the time since the previous tick. The first tick after
// construction or Reset returns 0.
func (c *Clock) Tick() time.Duration {
	now := c.now()
	if !c.started {
		c.started = true
		c.Dt = 0
	} else {
		c.Dt = now.Sub(c.Time)
		if c.Dt < 0 {
			c.Dt = 0
		}
	}
	c.Time = now
	return c.Dt
}

// Reset makes the next tick measure from the current instant.
func (c *Clock) Reset() {
	c.Time = c.now()
	c.started = true
	c.Dt = 0
}
