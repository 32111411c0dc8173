// Package provider implements the container runtimes images are loaded into.
// Each runtime registers itself with the loader when the package is imported.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/seantis/ocitool/pkg/load"
)

// CommandError is returned if a runtime binary exits with a non-zero code
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	if len(e.Stderr) == 0 {
		return fmt.Sprintf("command '%s' failed with exit code %d", e.Command, e.ExitCode)
	}

	return fmt.Sprintf("command '%s' failed with exit code %d: %s", e.Command, e.ExitCode, e.Stderr)
}

// CLIRuntime talks to a runtime through its command line client. Docker and
// Podman share the same commands for loading and tagging.
type CLIRuntime struct {
	Binary string
}

func init() {
	load.RegisterRuntime("docker", NewCLIRuntime("docker"))
	load.RegisterRuntime("podman", NewCLIRuntime("podman"))
}

// NewCLIRuntime returns a runtime using the given binary, which is looked up
// in PATH unless it contains a path separator
func NewCLIRuntime(binary string) *CLIRuntime {
	return &CLIRuntime{Binary: binary}
}

// Available returns true if the binary can be found
func (r *CLIRuntime) Available() bool {
	_, err := exec.LookPath(r.Binary)
	return err == nil
}

// Load runs "<binary> load" with the archive on stdin
func (r *CLIRuntime) Load(ctx context.Context, rd io.Reader) error {
	return r.run(ctx, rd, "load")
}

// Tag runs "<binary> tag <source> <target>"
func (r *CLIRuntime) Tag(ctx context.Context, source, target string) error {
	return r.run(ctx, nil, "tag", source, target)
}

func (r *CLIRuntime) run(ctx context.Context, stdin io.Reader, args ...string) error {
	line := commandLine(r.Binary, args)
	log.Infof("running %s", line)

	stdout := log.StandardLogger().WriterLevel(log.InfoLevel)
	defer stdout.Close()

	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &CommandError{
			Command:  line,
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}

	return fmt.Errorf("failed to run %s: %w", line, err)
}
