// Package term presents soft device frames on a terminal with tcell. Each cell
// shows two vertically stacked pixels using the upper half block glyph.
package term

import (
	"image"
	"image/color"

	"github.com/gdamore/tcell/v2"
	"github.com/gekko3d/crystal"
	"github.com/pkg/errors"
)

const halfBlock = '▀'

type Presenter struct {
	screen tcell.Screen
	events chan tcell.Event
	quit   chan struct{}
}

// New opens the controlling terminal.
func New() (*Presenter, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create screen")
	}
	return NewWithScreen(screen)
}

// NewWithScreen initializes screen and starts forwarding its events.
func NewWithScreen(screen tcell.Screen) (*Presenter, error) {
	if err := screen.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize screen")
	}
	screen.HideCursor()
	screen.Clear()

	p := &Presenter{
		screen: screen,
		events: make(chan tcell.Event, 100),
		quit:   make(chan struct{}),
	}
	go func() {
		for {
			// nil after Fini
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case p.events <- ev:
			case <-p.quit:
				return
			}
		}
	}()
	return p, nil
}

// Size is the frame size in pixels that fills the terminal.
func (p *Presenter) Size() (width, height int) {
	cols, rows := p.screen.Size()
	return cols, rows * 2
}

// Poll drains pending terminal events without blocking.
func (p *Presenter) Poll() []crystal.InputEvent {
	var out []crystal.InputEvent
	for {
		select {
		case ev := <-p.events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if e := KeyEvent(ev); e != crystal.EventNone {
					out = append(out, e)
				}
			case *tcell.EventResize:
				p.screen.Sync()
			}
		default:
			return out
		}
	}
}

// KeyEvent maps a key press to a driver event.
func KeyEvent(ev *tcell.EventKey) crystal.InputEvent {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return crystal.EventQuit
	case tcell.KeyRune:
		switch ev.Rune() {
		case ' ', 'p':
			return crystal.EventTogglePause
		case '+', '=':
			return crystal.EventSpeedUp
		case '-':
			return crystal.EventSpeedDown
		case 'q':
			return crystal.EventQuit
		}
	}
	return crystal.EventNone
}

// Present downsamples img to the terminal grid. Each target pixel takes the
// brightest source pixel it covers so single-pixel particles survive.
func (p *Presenter) Present(img *image.RGBA) error {
	cols, rows := p.screen.Size()
	if cols <= 0 || rows <= 0 {
		return nil
	}
	b := img.Bounds()
	h := rows * 2
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			top := maxPool(img, cellRect(b, col, 2*row, cols, h))
			bottom := maxPool(img, cellRect(b, col, 2*row+1, cols, h))
			style := tcell.StyleDefault.
				Foreground(tcell.NewRGBColor(int32(top.R), int32(top.G), int32(top.B))).
				Background(tcell.NewRGBColor(int32(bottom.R), int32(bottom.G), int32(bottom.B)))
			p.screen.SetContent(col, row, halfBlock, nil, style)
		}
	}
	p.screen.Show()
	return nil
}

// cellRect is the source region of target pixel (x, y) on a w by h grid.
// Never empty, even when the target grid is larger than the source.
func cellRect(b image.Rectangle, x, y, w, h int) image.Rectangle {
	sw, sh := b.Dx(), b.Dy()
	x0 := b.Min.X + x*sw/w
	y0 := b.Min.Y + y*sh/h
	x1 := max(b.Min.X+(x+1)*sw/w, x0+1)
	y1 := max(b.Min.Y+(y+1)*sh/h, y0+1)
	return image.Rect(x0, y0, x1, y1).Intersect(b)
}

func maxPool(img *image.RGBA, r image.Rectangle) color.RGBA {
	var out color.RGBA
	best := -1
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if l := int(c.R) + int(c.G) + int(c.B); l > best {
				best = l
				out = c
			}
		}
	}
	return out
}

// Close restores the terminal.
func (p *Presenter) Close() {
	close(p.quit)
	p.screen.Fini()
}
