package crystal

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

const (
	BackendGPU  = "gpu"
	BackendSoft = "soft"

	PresenterTerm = "term"
	PresenterNone = "none"

	LogFormatText = "text"
	LogFormatZap  = "zap"
)

type CameraConfig struct {
	Eye    [3]float32 `yaml:"eye"`
	Target [3]float32 `yaml:"target"`
	FovDeg float32    `yaml:"fov_deg"`
	Near   float32    `yaml:"near"`
	Far    float32    `yaml:"far"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Debug  bool   `yaml:"debug"`
}

type Config struct {
	Particles int          `yaml:"particles"`
	Width     int          `yaml:"width"`
	Height    int          `yaml:"height"`
	Position  [3]float32   `yaml:"position"`
	Velocity  [3]float32   `yaml:"velocity"`
	Speed     float64      `yaml:"speed"`
	Paused    bool         `yaml:"paused"`
	Backend   string       `yaml:"backend"`
	Presenter string       `yaml:"presenter"`
	Camera    CameraConfig `yaml:"camera"`
	Color     [4]float32   `yaml:"color"`
	Frames    int          `yaml:"frames"`
	Workers   int          `yaml:"workers"`
	Title     string       `yaml:"title"`
	Log       LogConfig    `yaml:"log"`
}

func DefaultConfig() Config {
	return Config{
		Particles: 100,
		Width:     800,
		Height:    600,
		Velocity:  [3]float32{0.01, 0, 0},
		Speed:     1.0,
		Backend:   BackendGPU,
		Presenter: PresenterTerm,
		Camera: CameraConfig{
			Eye:    [3]float32{0, 5, 15},
			FovDeg: 45,
			Near:   1,
			Far:    100,
		},
		Color: [4]float32{1, 0, 0, 1},
		Title: "Crystal Growth Simulation",
		Log:   LogConfig{Format: LogFormatText},
	}
}

// LoadConfigFile reads a YAML file over the defaults. Unknown keys are rejected.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, newError(ConfigurationError, "read config", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, newError(ConfigurationError, "decode "+path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once, wrapped as a ConfigurationError.
func (c Config) Validate() error {
	var errs []error
	if c.Particles <= 0 {
		errs = append(errs, fmt.Errorf("particles must be positive, got %d", c.Particles))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("image size must be positive, got %dx%d", c.Width, c.Height))
	}
	if err := ValidateSpeed(c.Speed); err != nil {
		errs = append(errs, err)
	}
	if !finite3(c.Position) || !finite3(c.Velocity) {
		errs = append(errs, errors.New("initial position and velocity must be finite"))
	}
	switch c.Backend {
	case BackendGPU, BackendSoft:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	switch c.Presenter {
	case PresenterTerm, PresenterNone:
	default:
		errs = append(errs, fmt.Errorf("unknown presenter %q", c.Presenter))
	}
	switch c.Log.Format {
	case "", LogFormatText, LogFormatZap:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Camera.FovDeg <= 0 || c.Camera.FovDeg >= 180 {
		errs = append(errs, fmt.Errorf("camera fov must be in (0, 180), got %g", c.Camera.FovDeg))
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		errs = append(errs, fmt.Errorf("camera planes must satisfy 0 < near < far, got %g/%g", c.Camera.Near, c.Camera.Far))
	}
	if mgl32.Vec3(c.Camera.Eye).ApproxEqual(mgl32.Vec3(c.Camera.Target)) {
		errs = append(errs, errors.New("camera eye and target coincide"))
	}
	if c.Frames < 0 {
		errs = append(errs, fmt.Errorf("frames must not be negative, got %d", c.Frames))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if len(errs) == 0 {
		return nil
	}
	return newError(ConfigurationError, "validate", errors.Join(errs...))
}

// ValidateSpeed accepts any nonnegative finite multiplier.
func ValidateSpeed(speed float64) error {
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed < 0 {
		return newError(ConfigurationError, "speed", fmt.Errorf("speed multiplier must be a nonnegative real, got %v", speed))
	}
	// the kernel takes its step delta as f32
	if speed > math.MaxFloat32 {
		return newError(ConfigurationError, "speed", fmt.Errorf("speed multiplier %v exceeds the float32 range", speed))
	}
	return nil
}

func finite3(v [3]float32) bool {
	for _, c := range v {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Vec3Flag parses "x,y,z" for flag.Var.
type Vec3Flag struct {
	V *[3]float32
}

func (f Vec3Flag) String() string {
	if f.V == nil {
		return ""
	}
	return fmt.Sprintf("%g,%g,%g", f.V[0], f.V[1], f.V[2])
}

func (f Vec3Flag) Set(s string) error {
	v, err := ParseVec3(s)
	if err != nil {
		return err
	}
	*f.V = v
	return nil
}

func ParseVec3(s string) ([3]float32, error) {
	var out [3]float32
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("want x,y,z, got %q", s)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return out, fmt.Errorf("component %d of %q: %w", i, s, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
