package load_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantis/ocitool/pkg/load"
)

type staticRuntime struct {
	available bool
}

func (r *staticRuntime) Load(ctx context.Context, rd io.Reader) error { return nil }

func (r *staticRuntime) Tag(ctx context.Context, source, target string) error { return nil }

func (r *staticRuntime) Available() bool { return r.available }

// TestRuntimeLookup tests the runtime registry lookup priority
func TestRuntimeLookup(t *testing.T) {
	defer load.ClearRuntimeRegistry()

	foo := &staticRuntime{available: false}
	bar := &staticRuntime{available: true}
	baz := &staticRuntime{available: true}

	load.RegisterRuntime("foo", foo)
	load.RegisterRuntime("bar", bar)
	load.RegisterRuntime("baz", baz)

	runtime, err := load.LookupRuntime("")
	require.NoError(t, err)
	assert.Same(t, bar, runtime, "runtime registry lookup failure")

	// explicitly named runtimes are returned even if unavailable
	runtime, err = load.LookupRuntime("foo")
	require.NoError(t, err)
	assert.Same(t, foo, runtime)

	_, err = load.LookupRuntime("qux")
	assert.EqualError(t, err, "unknown runtime qux, expected one of: foo, bar, baz")
}

func TestRuntimeOverwrite(t *testing.T) {
	defer load.ClearRuntimeRegistry()

	first := &staticRuntime{available: true}
	second := &staticRuntime{available: true}

	load.RegisterRuntime("foo", first)
	load.RegisterRuntime("foo", second)

	runtime, err := load.LookupRuntime("")
	require.NoError(t, err)
	assert.Same(t, second, runtime)
}

func TestRuntimeNoneAvailable(t *testing.T) {
	defer load.ClearRuntimeRegistry()

	load.RegisterRuntime("foo", &staticRuntime{})

	_, err := load.LookupRuntime("")
	assert.EqualError(t, err, "no runtime available, tried: foo")
}
