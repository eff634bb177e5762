package crystal

import (
	"errors"
	"flag"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.Particles)
	assert.Equal(t, [3]float32{0, 5, 15}, cfg.Camera.Eye)
	assert.Equal(t, "Crystal Growth Simulation", cfg.Title)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Particles = 0
	cfg.Width = -1
	cfg.Speed = -2
	cfg.Backend = "vulkan"
	cfg.Camera.Target = cfg.Camera.Eye

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	for _, want := range []string{"particles", "image size", "speed", "vulkan", "coincide"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateSpeed(t *testing.T) {
	for _, ok := range []float64{0, 0.5, 1, 1000, math.MaxFloat32} {
		assert.NoError(t, ValidateSpeed(ok), "%v", ok)
	}
	for _, bad := range []float64{-0.1, math.NaN(), math.Inf(1), 1e300, math.MaxFloat64} {
		err := ValidateSpeed(bad)
		assert.True(t, errors.Is(err, ErrConfiguration), "%v", bad)
	}
}

func TestValidateRejectsNonFiniteVelocity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Velocity[1] = float32(math.Inf(-1))
	assert.True(t, errors.Is(cfg.Validate(), ErrConfiguration))
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crystal.yaml")
	data := `particles: 1000
velocity: [0.5, 0, -0.5]
backend: soft
presenter: none
camera:
  eye: [0, 0, 30]
  fov_deg: 60
  near: 0.5
  far: 200
log:
  format: zap
  debug: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1000, cfg.Particles)
	assert.Equal(t, [3]float32{0.5, 0, -0.5}, cfg.Velocity)
	assert.Equal(t, BackendSoft, cfg.Backend)
	assert.Equal(t, float32(60), cfg.Camera.FovDeg)
	assert.Equal(t, LogFormatZap, cfg.Log.Format)
	assert.True(t, cfg.Log.Debug)
	// untouched keys keep their defaults
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 1.0, cfg.Speed)
}

func TestLoadConfigFileErrors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, ErrConfiguration))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("particels: 3\n"), 0o644))
	_, err = LoadConfigFile(path)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestVec3Flag(t *testing.T) {
	var v [3]float32
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(Vec3Flag{V: &v}, "velocity", "")
	require.NoError(t, fs.Parse([]string{"-velocity", "1, -2.5,3"}))
	assert.Equal(t, [3]float32{1, -2.5, 3}, v)

	_, err := ParseVec3("1,2")
	assert.Error(t, err)
	_, err = ParseVec3("1,two,3")
	assert.Error(t, err)
}
