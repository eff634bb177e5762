package crystal

import (
	"fmt"
	"sync"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Diagnostic is an advisory message from a device: shader compiler output,
// validation messages, pipeline hazards.
type Diagnostic struct {
	Source   string
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s: %s", d.Source, d.Severity, d.Message)
}

type DiagnosticObserver interface {
	OnDiagnostic(d Diagnostic)
}

// DiagnosticFunc adapts a function to DiagnosticObserver.
type DiagnosticFunc func(d Diagnostic)

func (f DiagnosticFunc) OnDiagnostic(d Diagnostic) { f(d) }

// LogDiagnostics forwards diagnostics to a Logger at the matching level.
type LogDiagnostics struct {
	Logger Logger
}

func (l LogDiagnostics) OnDiagnostic(d Diagnostic) {
	if l.Logger == nil {
		return
	}
	switch d.Severity {
	case SeverityError:
		l.Logger.Errorf("%s: %s", d.Source, d.Message)
	case SeverityWarning:
		l.Logger.Warnf("%s: %s", d.Source, d.Message)
	default:
		l.Logger.Debugf("%s: %s", d.Source, d.Message)
	}
}

// DiagnosticRecorder keeps every diagnostic it sees.
type DiagnosticRecorder struct {
	mu      sync.Mutex
	entries []Diagnostic
}

func (r *DiagnosticRecorder) OnDiagnostic(d Diagnostic) {
	r.mu.Lock()
	r.entries = append(r.entries, d)
	r.mu.Unlock()
}

func (r *DiagnosticRecorder) Entries() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Diagnostic(nil), r.entries...)
}
