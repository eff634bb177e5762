package crystal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are registered on a private registry so several drivers (tests) can coexist.
type Metrics struct {
	Registry *prometheus.Registry

	Frames       prometheus.Counter
	Steps        prometheus.Counter
	SkippedSteps prometheus.Counter
	DrawErrors   prometheus.Counter
	Particles    prometheus.Gauge
	Speed        prometheus.Gauge
	FrameSeconds prometheus.Histogram
	StageSeconds *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		Frames: f.NewCounter(prometheus.CounterOpts{
			Name: "crystal_frames_total",
			Help: "Frames presented",
		}),
		Steps: f.NewCounter(prometheus.CounterOpts{
			Name: "crystal_integration_steps_total",
			Help: "Integrator dispatches that launched",
		}),
		SkippedSteps: f.NewCounter(prometheus.CounterOpts{
			Name: "crystal_skipped_steps_total",
			Help: "Integration steps skipped after a kernel launch error",
		}),
		DrawErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "crystal_draw_errors_total",
			Help: "Frames whose draw or present failed",
		}),
		Particles: f.NewGauge(prometheus.GaugeOpts{
			Name: "crystal_particles",
			Help: "Particle population",
		}),
		Speed: f.NewGauge(prometheus.GaugeOpts{
			Name: "crystal_speed_multiplier",
			Help: "Current simulation speed multiplier",
		}),
		FrameSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "crystal_frame_seconds",
			Help:    "Wall time of one tick",
			Buckets: []float64{0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066, 0.1, 0.25},
		}),
		StageSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crystal_stage_seconds",
			Help:    "Wall time per pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}, []string{"stage"}),
	}
}

// Summary renders counters and gauges as one line per metric, sorted by name.
func (m *Metrics) Summary() (string, error) {
	families, err := m.Registry.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}
	lines := make([]string, 0, len(families))
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s=%g", mf.GetName(), metric.GetCounter().GetValue()))
			case metric.GetGauge() != nil:
				lines = append(lines, fmt.Sprintf("%s=%g", mf.GetName(), metric.GetGauge().GetValue()))
			case metric.GetHistogram() != nil:
				h := metric.GetHistogram()
				if h.GetSampleCount() == 0 {
					continue
				}
				name := mf.GetName()
				for _, lp := range metric.GetLabel() {
					name += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
				}
				lines = append(lines, fmt.Sprintf("%s avg=%.3fms n=%d", name,
					1000*h.GetSampleSum()/float64(h.GetSampleCount()), h.GetSampleCount()))
			}
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}
