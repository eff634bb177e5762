package term

import (
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gekko3d/crystal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimPresenter(t *testing.T, cols, rows int) (*Presenter, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	p, err := NewWithScreen(screen)
	require.NoError(t, err)
	screen.SetSize(cols, rows)
	t.Cleanup(p.Close)
	return p, screen
}

func TestKeyEvent(t *testing.T) {
	cases := []struct {
		ev   *tcell.EventKey
		want crystal.InputEvent
	}{
		{tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), crystal.EventTogglePause},
		{tcell.NewEventKey(tcell.KeyRune, 'p', tcell.ModNone), crystal.EventTogglePause},
		{tcell.NewEventKey(tcell.KeyRune, '+', tcell.ModNone), crystal.EventSpeedUp},
		{tcell.NewEventKey(tcell.KeyRune, '=', tcell.ModNone), crystal.EventSpeedUp},
		{tcell.NewEventKey(tcell.KeyRune, '-', tcell.ModNone), crystal.EventSpeedDown},
		{tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone), crystal.EventQuit},
		{tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), crystal.EventQuit},
		{tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), crystal.EventQuit},
		{tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone), crystal.EventNone},
		{tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), crystal.EventNone},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, KeyEvent(c.ev), "key %v rune %q", c.ev.Key(), c.ev.Rune())
	}
}

func TestPollForwardsKeys(t *testing.T) {
	p, screen := newSimPresenter(t, 10, 5)
	screen.InjectKey(tcell.KeyRune, 'p', tcell.ModNone)
	screen.InjectKey(tcell.KeyRune, 'x', tcell.ModNone)
	screen.InjectKey(tcell.KeyRune, '+', tcell.ModNone)
	screen.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)

	var mu sync.Mutex
	var got []crystal.InputEvent
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, p.Poll()...)
		return len(got) >= 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []crystal.InputEvent{crystal.EventTogglePause, crystal.EventSpeedUp, crystal.EventQuit}, got)
}

func TestPresentHalfBlocks(t *testing.T) {
	p, screen := newSimPresenter(t, 4, 2)
	w, h := p.Size()
	require.Equal(t, 4, w)
	require.Equal(t, 4, h)

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	img.SetRGBA(1, 1, color.RGBA{R: 255, A: 255})
	img.SetRGBA(7, 7, color.RGBA{G: 200, A: 255})
	require.NoError(t, p.Present(img))

	r, _, style, _ := screen.GetContent(0, 0)
	assert.Equal(t, halfBlock, r)
	fg, bg, _ := style.Decompose()
	assert.Equal(t, tcell.NewRGBColor(255, 0, 0), fg)
	assert.Equal(t, tcell.NewRGBColor(0, 0, 0), bg)

	_, _, style, _ = screen.GetContent(3, 1)
	fg, bg, _ = style.Decompose()
	assert.Equal(t, tcell.NewRGBColor(0, 0, 0), fg)
	assert.Equal(t, tcell.NewRGBColor(0, 200, 0), bg)
}

func TestCellRectNeverEmpty(t *testing.T) {
	b := image.Rect(0, 0, 3, 3)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			r := cellRect(b, x, y, 10, 10)
			assert.False(t, r.Empty(), "cell %d,%d", x, y)
		}
	}
}

func TestMaxPoolKeepsBrightest(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(2, 3, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	img.SetRGBA(3, 3, color.RGBA{R: 200, A: 255})
	assert.Equal(t, color.RGBA{R: 200, A: 255}, maxPool(img, img.Bounds()))
}
