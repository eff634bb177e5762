package soft

import (
	"image"
	"sync"
)

// Capture is a headless Presenter that keeps a copy of the last frame.
type Capture struct {
	mu     sync.Mutex
	last   *image.RGBA
	frames int
}

func (c *Capture) Present(img *image.RGBA) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil || c.last.Bounds() != img.Bounds() {
		c.last = image.NewRGBA(img.Bounds())
	}
	copy(c.last.Pix, img.Pix)
	c.frames++
	return nil
}

// Last returns a copy of the most recent frame, or nil before the first one.
func (c *Capture) Last() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return nil
	}
	out := image.NewRGBA(c.last.Bounds())
	copy(out.Pix, c.last.Pix)
	return out
}

func (c *Capture) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}
