package load

import (
	"context"
	"fmt"
	"io"
	"strings"
)

var (
	registry = make(map[string]Runtime)
	priority = []string{}
)

// Runtime is a container runtime that can import image archives
type Runtime interface {

	// Load imports the tar archive read from r. The archive is either an OCI
	// layout or anything else the runtime understands.
	Load(ctx context.Context, r io.Reader) error

	// Tag adds the target reference to the image known as source. The source
	// may be an image id or the digest of a loaded manifest.
	Tag(ctx context.Context, source, target string) error

	// Available returns true if the runtime can be used on this host (i.e.
	// the binary is installed or the daemon socket exists)
	Available() bool
}

// LookupRuntime returns the runtime registered under the given name. Without
// name, the first available runtime in order of registration is returned.
func LookupRuntime(name string) (Runtime, error) {
	if len(name) > 0 {
		runtime, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown runtime %s, expected one of: %s",
				name, strings.Join(priority, ", "))
		}

		return runtime, nil
	}

	for _, name := range priority {
		if registry[name].Available() {
			return registry[name], nil
		}
	}

	return nil, fmt.Errorf("no runtime available, tried: %s", strings.Join(priority, ", "))
}

// RegisterRuntime registers a runtime with the given name. Runtimes are
// meant to be registered once during initialisation and doing so concurrently
// is not safe. If a runtime with the same name exists, it is overwritten.
func RegisterRuntime(name string, runtime Runtime) {
	if _, ok := registry[name]; !ok {
		priority = append(priority, name)
	}

	registry[name] = runtime
}

// ClearRuntimeRegistry clears the runtime registry (mainly useful for tests)
func ClearRuntimeRegistry() {
	registry = make(map[string]Runtime)
	priority = []string{}
}
