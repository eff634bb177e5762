// Package gpu implements crystal.Device on WebGPU: the integrate kernel is a
// compute pipeline over a storage buffer, and the same buffer feeds a point
// list render pipeline as its vertex buffer.
package gpu

import (
	"github.com/pkg/errors"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/crystal"
)

type Options struct {
	Surface *wgpu.SurfaceDescriptor
	Width   int
	Height  int
	// Observer receives shader compiler and validation messages.
	Observer crystal.DiagnosticObserver
}

// gpuContext holds the handles every pipeline needs. Released in reverse
// order of creation.
type gpuContext struct {
	instance      *wgpu.Instance
	surface       *wgpu.Surface
	adapter       *wgpu.Adapter
	device        *wgpu.Device
	queue         *wgpu.Queue
	surfaceConfig *wgpu.SurfaceConfiguration

	depthTexture *wgpu.Texture
	depthView    *wgpu.TextureView
}

func newContext(opts Options) (*gpuContext, error) {
	if opts.Surface == nil {
		return nil, crystal.NewError(crystal.ConfigurationError, "gpu context", errors.New("no surface descriptor"))
	}
	c := &gpuContext{}
	c.instance = wgpu.CreateInstance(nil)
	// wraps the window into a wgpu surface
	c.surface = c.instance.CreateSurface(opts.Surface)

	adapter, err := c.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: c.surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		c.release()
		return nil, crystal.NewError(crystal.AllocationError, "request adapter", err)
	}
	c.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Crystal Device",
	})
	if err != nil {
		c.release()
		return nil, crystal.NewError(crystal.AllocationError, "request device", err)
	}
	c.device = device
	c.queue = device.GetQueue()

	caps := c.surface.GetCapabilities(adapter)
	if len(caps.Formats) == 0 || len(caps.AlphaModes) == 0 {
		c.release()
		return nil, crystal.NewError(crystal.AllocationError, "configure surface", errors.New("surface reports no formats"))
	}
	c.surfaceConfig = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(opts.Width),
		Height:      uint32(opts.Height),
		PresentMode: wgpu.PresentModeFifo, // vsync
		AlphaMode:   caps.AlphaModes[0],
	}
	c.surface.Configure(adapter, device, c.surfaceConfig)

	if err := c.createDepth(); err != nil {
		c.release()
		return nil, err
	}
	return c, nil
}

func (c *gpuContext) createDepth() error {
	tex, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth",
		Size: wgpu.Extent3D{
			Width:              c.surfaceConfig.Width,
			Height:             c.surfaceConfig.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return crystal.NewError(crystal.AllocationError, "depth texture", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return crystal.NewError(crystal.AllocationError, "depth view", err)
	}
	c.depthTexture = tex
	c.depthView = view
	return nil
}

func (c *gpuContext) release() {
	if c.depthView != nil {
		c.depthView.Release()
		c.depthView = nil
	}
	if c.depthTexture != nil {
		c.depthTexture.Release()
		c.depthTexture = nil
	}
	if c.queue != nil {
		c.queue.Release()
		c.queue = nil
	}
	if c.device != nil {
		c.device.Release()
		c.device = nil
	}
	if c.adapter != nil {
		c.adapter.Release()
		c.adapter = nil
	}
	if c.surface != nil {
		c.surface.Release()
		c.surface = nil
	}
	if c.instance != nil {
		c.instance.Release()
		c.instance = nil
	}
}
