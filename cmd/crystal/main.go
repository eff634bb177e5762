package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/gekko3d/crystal"
	"github.com/gekko3d/crystal/gpu"
	"github.com/gekko3d/crystal/soft"
	"github.com/gekko3d/crystal/term"
	"github.com/gekko3d/crystal/window"
)

func init() {
	// glfw and the wgpu surface live on the main thread
	runtime.LockOSThread()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "crystal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := crystal.DefaultConfig()
	velocity := cfg.Velocity

	configPath := flag.String("config", "", "YAML config file; flags override its values")
	particles := flag.Int("particles", cfg.Particles, "number of particles")
	width := flag.Int("width", cfg.Width, "frame width in pixels")
	height := flag.Int("height", cfg.Height, "frame height in pixels")
	flag.Var(crystal.Vec3Flag{V: &velocity}, "velocity", "initial velocity x,y,z of every particle")
	speed := flag.Float64("speed", cfg.Speed, "simulation speed multiplier")
	paused := flag.Bool("paused", cfg.Paused, "start paused")
	backend := flag.String("backend", cfg.Backend, "compute backend: gpu or soft")
	presenter := flag.String("presenter", cfg.Presenter, "soft backend output: term or none")
	frames := flag.Int("frames", cfg.Frames, "stop after this many frames; 0 runs until quit")
	workers := flag.Int("workers", cfg.Workers, "soft backend workgroup concurrency; 0 means GOMAXPROCS")
	logFormat := flag.String("log-format", cfg.Log.Format, "log output: text or zap")
	debug := flag.Bool("debug", cfg.Log.Debug, "enable debug logging and the frame overlay")
	flag.Parse()

	if *configPath != "" {
		loaded, err := crystal.LoadConfigFile(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	sizeSet := false
	// only flags given explicitly override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "particles":
			cfg.Particles = *particles
		case "width":
			cfg.Width = *width
			sizeSet = true
		case "height":
			cfg.Height = *height
			sizeSet = true
		case "velocity":
			cfg.Velocity = velocity
		case "speed":
			cfg.Speed = *speed
		case "paused":
			cfg.Paused = *paused
		case "backend":
			cfg.Backend = *backend
		case "presenter":
			cfg.Presenter = *presenter
		case "frames":
			cfg.Frames = *frames
		case "workers":
			cfg.Workers = *workers
		case "log-format":
			cfg.Log.Format = *logFormat
		case "debug":
			cfg.Log.Debug = *debug
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := crystal.NewLogger(cfg.Log.Format, "crystal", cfg.Log.Debug)
	if err != nil {
		return err
	}
	if s, ok := logger.(interface{ Sync() }); ok {
		defer s.Sync()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observer := crystal.LogDiagnostics{Logger: logger}
	opts := crystal.DriverOptions{Config: cfg, Logger: logger}

	switch cfg.Backend {
	case crystal.BackendGPU:
		win, err := window.New(cfg.Width, cfg.Height, cfg.Title)
		if err != nil {
			return err
		}
		defer win.Destroy()
		dev, err := gpu.New(gpu.Options{
			Surface:  win.SurfaceDescriptor(),
			Width:    cfg.Width,
			Height:   cfg.Height,
			Observer: observer,
		})
		if err != nil {
			return err
		}
		opts.Device = dev
		opts.Input = win
	case crystal.BackendSoft:
		var present soft.Presenter
		if cfg.Presenter == crystal.PresenterTerm {
			tp, err := term.New()
			if err != nil {
				return err
			}
			defer tp.Close()
			present = tp
			opts.Input = tp
			// render at terminal resolution unless a size was asked for
			if !sizeSet && *configPath == "" {
				if w, h := tp.Size(); w > 0 && h > 0 {
					cfg.Width, cfg.Height = w, h
					opts.Config = cfg
				}
			}
		}
		dev, err := soft.New(soft.Options{
			Width:     cfg.Width,
			Height:    cfg.Height,
			Workers:   cfg.Workers,
			Presenter: present,
			Observer:  observer,
		})
		if err != nil {
			return err
		}
		opts.Device = dev
	}

	driver, err := crystal.NewFrameDriver(opts)
	if err != nil {
		opts.Device.Release()
		return err
	}
	defer driver.Close()

	logger.Infof("Starting %q: %d particles on %s", cfg.Title, cfg.Particles, opts.Device.Name())
	return driver.Run(ctx)
}
