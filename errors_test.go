package crystal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	cause := errors.New("out of memory")
	err := fmt.Errorf("startup: %w", newError(AllocationError, "allocate particle store", cause))

	assert.True(t, errors.Is(err, ErrAllocation))
	assert.False(t, errors.Is(err, ErrKernelLaunch))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, AllocationError, KindOf(err))
	assert.Equal(t, "startup: allocation error: allocate particle store: out of memory", err.Error())
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(0), KindOf(nil))
}

func TestFatal(t *testing.T) {
	assert.False(t, Fatal(nil))
	assert.False(t, Fatal(NewError(KernelLaunchError, "integrate", errors.New("lost"))))
	for _, k := range []ErrorKind{AllocationError, KernelCompileError, KernelLinkError, ConfigurationError} {
		assert.True(t, Fatal(NewError(k, "op", nil)), k.String())
	}
	assert.True(t, Fatal(errors.New("unclassified")))
}

func TestErrorStrings(t *testing.T) {
	assert.Equal(t, "kernel compile error: integrate.wgsl", (&Error{Kind: KernelCompileError, Op: "integrate.wgsl"}).Error())
	assert.Equal(t, "kernel link error", ErrKernelLink.Error())
	assert.Equal(t, "configuration error: bad", (&Error{Kind: ConfigurationError, Err: errors.New("bad")}).Error())
	assert.Equal(t, "ErrorKind(42)", ErrorKind(42).String())
}
