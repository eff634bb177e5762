package crystal

import (
	"fmt"
	"time"
)

// Profiler keeps the CPU time of each pipeline stage for the last frame.
type Profiler struct {
	Scopes     map[string]time.Duration
	StartTimes map[string]time.Time
	Order      []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Order:      make([]string, 0, 4),
	}
}

func (p *Profiler) BeginScope(name string) {
	p.StartTimes[name] = time.Now()
	for _, n := range p.Order {
		if n == name {
			return
		}
	}
	p.Order = append(p.Order, name)
}

func (p *Profiler) EndScope(name string) time.Duration {
	start, ok := p.StartTimes[name]
	if !ok {
		return 0
	}
	d := time.Since(start)
	p.Scopes[name] = d
	return d
}

func (p *Profiler) Reset() {
	for k := range p.Scopes {
		p.Scopes[k] = 0
	}
}

// Lines formats one "stage: ms" entry per scope in first-seen order.
func (p *Profiler) Lines() []string {
	out := make([]string, 0, len(p.Order))
	for _, name := range p.Order {
		ms := float64(p.Scopes[name].Microseconds()) / 1000.0
		out = append(out, fmt.Sprintf("%-8s %.2f ms", name, ms))
	}
	return out
}
