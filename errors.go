package crystal

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by how the frame loop reacts to them.
type ErrorKind int

const (
	// AllocationError: device memory unavailable at startup. Fatal.
	AllocationError ErrorKind = iota + 1
	// KernelCompileError: kernel source rejected by the device. Fatal.
	KernelCompileError
	// KernelLinkError: pipeline could not be built from compiled kernels. Fatal.
	KernelLinkError
	// KernelLaunchError: a dispatch failed at runtime. The step is skipped.
	KernelLaunchError
	// ConfigurationError: invalid input. Fatal before the loop starts.
	ConfigurationError
)

func (k ErrorKind) String() string {
	switch k {
	case AllocationError:
		return "allocation"
	case KernelCompileError:
		return "kernel compile"
	case KernelLinkError:
		return "kernel link"
	case KernelLaunchError:
		return "kernel launch"
	case ConfigurationError:
		return "configuration"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sentinels for errors.Is.
var (
	ErrAllocation    = &Error{Kind: AllocationError}
	ErrKernelCompile = &Error{Kind: KernelCompileError}
	ErrKernelLink    = &Error{Kind: KernelLinkError}
	ErrKernelLaunch  = &Error{Kind: KernelLaunchError}
	ErrConfiguration = &Error{Kind: ConfigurationError}
)

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewError is used by device backends to report classified failures.
func NewError(kind ErrorKind, op string, err error) error {
	return newError(kind, op, err)
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s error: %s", e.Kind, e.Op)
	default:
		return e.Kind.String() + " error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Fatal reports whether err must abort the process instead of skipping a frame.
func Fatal(err error) bool {
	return err != nil && KindOf(err) != KernelLaunchError
}
