// Package window owns the glfw window the GPU backend renders into.
// glfw must be driven from the main thread; callers lock it in init.
package window

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/crystal"
	"github.com/go-gl/glfw/v3.3/glfw"
)

type Window struct {
	win *glfw.Window

	mu      sync.Mutex
	pending []crystal.InputEvent
}

// New initializes glfw and opens a fixed-size window without a client API.
func New(width, height int, title string) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw init: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}

	w := &Window{win: win}
	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if ev := KeyEvent(key, action); ev != crystal.EventNone {
			w.mu.Lock()
			w.pending = append(w.pending, ev)
			w.mu.Unlock()
		}
	})
	return w, nil
}

// KeyEvent maps a glfw key action to a driver event.
func KeyEvent(key glfw.Key, action glfw.Action) crystal.InputEvent {
	if action != glfw.Press && action != glfw.Repeat {
		return crystal.EventNone
	}
	switch key {
	case glfw.KeySpace, glfw.KeyP:
		if action == glfw.Press {
			return crystal.EventTogglePause
		}
	case glfw.KeyEqual, glfw.KeyKPAdd:
		return crystal.EventSpeedUp
	case glfw.KeyMinus, glfw.KeyKPSubtract:
		return crystal.EventSpeedDown
	case glfw.KeyEscape, glfw.KeyQ:
		if action == glfw.Press {
			return crystal.EventQuit
		}
	}
	return crystal.EventNone
}

// Poll pumps the glfw event queue and returns what arrived since the last call.
// Closing the window reports EventQuit.
func (w *Window) Poll() []crystal.InputEvent {
	glfw.PollEvents()
	w.mu.Lock()
	out := w.pending
	w.pending = nil
	w.mu.Unlock()
	if w.win.ShouldClose() {
		out = append(out, crystal.EventQuit)
	}
	return out
}

func (w *Window) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(w.win)
}

func (w *Window) Size() (int, int) {
	return w.win.GetFramebufferSize()
}

// Destroy closes the window and terminates glfw.
func (w *Window) Destroy() {
	w.win.Destroy()
	glfw.Terminate()
}
