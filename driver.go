package crystal

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

type DriverState int

const (
	Running DriverState = iota
	Paused
)

func (s DriverState) String() string {
	if s == Paused {
		return "paused"
	}
	return "running"
}

type DriverOptions struct {
	Config  Config
	Device  Device
	Input   InputSource
	Logger  Logger
	Metrics *Metrics
	// Now overrides the wall clock; nil means time.Now.
	Now func() time.Time
}

// FrameStats describes one tick.
type FrameStats struct {
	Frame     uint64
	State     DriverState
	DeltaTime time.Duration
	// SimDelta is DeltaTime scaled by the speed multiplier, 0 when paused.
	SimDelta float32
	Stepped  bool
	StepErr  error
	DrawErr  error
}

// FrameDriver runs Integrator, Barrier and Renderer strictly in sequence on the
// calling goroutine. It owns the device once constructed.
type FrameDriver struct {
	cfg    Config
	device Device
	input  InputSource
	logger Logger

	store      *Store
	integrator *Integrator
	barrier    *Barrier
	renderer   *Renderer

	clock    *Clock
	profiler *Profiler
	metrics  *Metrics

	state  DriverState
	speed  float64
	frame  uint64
	closed bool
}

// NewFrameDriver validates the config, allocates and binds the particle store.
// On error the device is not released; the caller still owns it.
func NewFrameDriver(opts DriverOptions) (*FrameDriver, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Device == nil {
		return nil, newError(ConfigurationError, "new driver", fmt.Errorf("no device"))
	}
	logger := opts.Logger
	if logger == nil {
		logger = NewNopLogger()
	}
	input := opts.Input
	if input == nil {
		input = NoInput()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	cfg := opts.Config

	store, err := NewStore(opts.Device, cfg.Particles, mgl32.Vec3(cfg.Position), mgl32.Vec3(cfg.Velocity))
	if err != nil {
		return nil, err
	}
	if err := store.Bind(StoreSlot); err != nil {
		store.Release()
		return nil, err
	}
	logger.Infof("Particle store %s: %d particles, %d bytes on %s", store.ID(), store.Count(), store.SizeBytes(), opts.Device.Name())

	if logger.DebugEnabled() {
		logInitialPositions(logger, store)
	}

	d := &FrameDriver{
		cfg:        cfg,
		device:     opts.Device,
		input:      input,
		logger:     logger,
		store:      store,
		integrator: NewIntegrator(opts.Device),
		barrier:    NewBarrier(opts.Device),
		renderer:   NewRenderer(opts.Device, NewCamera(cfg.Camera, cfg.Width, cfg.Height), cfg.Color),
		clock:      NewClock(opts.Now),
		profiler:   NewProfiler(),
		metrics:    metrics,
		speed:      cfg.Speed,
	}
	if cfg.Paused {
		d.state = Paused
	}
	metrics.Particles.Set(float64(store.Count()))
	metrics.Speed.Set(d.speed)
	return d, nil
}

func logInitialPositions(logger Logger, store *Store) {
	positions, err := store.Positions()
	if err != nil {
		logger.Warnf("Initial position readback failed: %v", err)
		return
	}
	for i := 0; i < len(positions) && i < 10; i++ {
		p := positions[i]
		logger.Debugf("Particle %d initialized at position: %g, %g, %g", i, p.X(), p.Y(), p.Z())
	}
}

func (d *FrameDriver) Store() *Store           { return d.store }
func (d *FrameDriver) State() DriverState      { return d.state }
func (d *FrameDriver) Speed() float64          { return d.speed }
func (d *FrameDriver) Frame() uint64           { return d.frame }
func (d *FrameDriver) Metrics() *Metrics       { return d.metrics }
func (d *FrameDriver) Integrator() *Integrator { return d.integrator }
func (d *FrameDriver) Barrier() *Barrier       { return d.barrier }
func (d *FrameDriver) Renderer() *Renderer     { return d.renderer }
func (d *FrameDriver) Profiler() *Profiler     { return d.profiler }
func (d *FrameDriver) Config() Config          { return d.cfg }

// SetPaused switches state. Resuming restarts the clock so paused time is
// never integrated.
func (d *FrameDriver) SetPaused(paused bool) {
	switch {
	case paused && d.state == Running:
		d.state = Paused
		// the HUD would otherwise keep showing the last step's timing
		d.profiler.Reset()
		d.logger.Infof("Simulation paused at frame %d", d.frame)
	case !paused && d.state == Paused:
		d.state = Running
		d.clock.Reset()
		d.logger.Infof("Simulation resumed at frame %d", d.frame)
	}
}

func (d *FrameDriver) TogglePause() {
	d.SetPaused(d.state == Running)
}

func (d *FrameDriver) SetSpeed(speed float64) error {
	if err := ValidateSpeed(speed); err != nil {
		return err
	}
	d.speed = speed
	d.metrics.Speed.Set(speed)
	return nil
}

// HandleEvent applies one input event and reports whether it asks to quit.
func (d *FrameDriver) HandleEvent(ev InputEvent) bool {
	switch ev {
	case EventTogglePause:
		d.TogglePause()
	case EventSpeedUp:
		next := d.speed * 2
		// doubling zero would never leave zero
		if next == 0 {
			next = 1
		}
		d.applySpeed(next)
	case EventSpeedDown:
		d.applySpeed(d.speed / 2)
	case EventQuit:
		return true
	}
	return false
}

func (d *FrameDriver) applySpeed(speed float64) {
	if err := d.SetSpeed(speed); err != nil {
		d.logger.Warnf("Speed x%g kept: %v", d.speed, err)
		return
	}
	d.logger.Infof("Speed x%g", d.speed)
}

// Tick runs one frame. Per-frame failures are logged and reported in the
// stats; they never stop the loop.
func (d *FrameDriver) Tick() FrameStats {
	start := time.Now()
	dt := d.clock.Tick()
	stats := FrameStats{Frame: d.frame, State: d.state, DeltaTime: dt}

	if d.state == Running {
		var err error
		if sim := dt.Seconds() * d.speed; sim > math.MaxFloat32 {
			err = newError(ConfigurationError, "step delta", fmt.Errorf("%v at speed x%g does not fit in float32", dt, d.speed))
		} else {
			stats.SimDelta = float32(sim)
			d.profiler.BeginScope("step")
			err = d.integrator.Step(d.store, stats.SimDelta)
			d.metrics.StageSeconds.WithLabelValues("step").Observe(d.profiler.EndScope("step").Seconds())
		}
		if err != nil {
			stats.StepErr = err
			d.metrics.SkippedSteps.Inc()
			d.logger.Warnf("Frame %d: integration step skipped: %v", d.frame, err)
		} else {
			stats.Stepped = true
			d.metrics.Steps.Inc()
		}
	}

	d.profiler.BeginScope("sync")
	d.barrier.SyncWritesBeforeReads()
	d.metrics.StageSeconds.WithLabelValues("sync").Observe(d.profiler.EndScope("sync").Seconds())

	d.updateOverlay()

	d.profiler.BeginScope("draw")
	err := d.renderer.Draw(d.store)
	d.metrics.StageSeconds.WithLabelValues("draw").Observe(d.profiler.EndScope("draw").Seconds())
	if err == nil {
		d.profiler.BeginScope("present")
		err = d.device.Present()
		d.metrics.StageSeconds.WithLabelValues("present").Observe(d.profiler.EndScope("present").Seconds())
	}
	if err != nil {
		stats.DrawErr = err
		d.metrics.DrawErrors.Inc()
		d.logger.Errorf("Frame %d: render failed: %v", d.frame, err)
	}

	d.frame++
	d.metrics.Frames.Inc()
	d.metrics.FrameSeconds.Observe(time.Since(start).Seconds())
	return stats
}

func (d *FrameDriver) updateOverlay() {
	o, ok := d.device.(Overlayer)
	if !ok || !d.logger.DebugEnabled() {
		return
	}
	lines := []string{
		fmt.Sprintf("%s x%g frame %d", d.state, d.speed, d.frame),
		fmt.Sprintf("%d particles on %s", d.store.Count(), d.device.Name()),
	}
	o.SetOverlay(append(lines, d.profiler.Lines()...))
}

// Run ticks until ctx is cancelled, a quit event arrives or the configured
// frame limit is reached. It does not release resources; call Close.
func (d *FrameDriver) Run(ctx context.Context) error {
	if d.closed {
		return fmt.Errorf("run: driver closed")
	}
	d.logger.Infof("Frame loop started (%s, speed x%g)", d.state, d.speed)
	for {
		select {
		case <-ctx.Done():
			d.logger.Infof("Frame loop stopped after %d frames: %v", d.frame, ctx.Err())
			return nil
		default:
		}
		for _, ev := range d.input.Poll() {
			if d.HandleEvent(ev) {
				d.logger.Infof("Quit requested after %d frames", d.frame)
				return nil
			}
		}
		d.Tick()
		if d.cfg.Frames > 0 && d.frame >= uint64(d.cfg.Frames) {
			d.logger.Infof("Frame limit %d reached", d.cfg.Frames)
			return nil
		}
	}
}

// Close releases the store and then the device.
func (d *FrameDriver) Close() {
	if d.closed {
		return
	}
	d.closed = true
	if summary, err := d.metrics.Summary(); err == nil && summary != "" {
		d.logger.Debugf("Metrics:\n%s", summary)
	}
	d.store.Release()
	d.device.Release()
}
