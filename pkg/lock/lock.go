// Package lock serializes work on a directory across goroutines and
// processes, using a process-local mutex followed by a flock
package lock

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alexflint/go-filemutex"
)

var (
	locksmu = &sync.Mutex{}
	locks   = make(map[string]*sync.Mutex)
)

// InterProcessLock is held by at most one goroutine of one process at a time.
//
// The local mutex is taken before the file lock because closing one of
// several flocks on the same file within a process releases all of them.
// See: http://0pointer.de/blog/projects/locking.html
type InterProcessLock struct {
	Path     string
	filelock *filemutex.FileMutex
}

// ForDirectory returns the lock guarding the given directory. The lock file
// lives next to the directory, so it never ends up inside of it.
func ForDirectory(dir string) *InterProcessLock {
	clean := strings.TrimRight(filepath.Clean(dir), string(filepath.Separator))
	return &InterProcessLock{Path: clean + ".lock"}
}

func (l *InterProcessLock) localMutex() *sync.Mutex {
	locksmu.Lock()
	defer locksmu.Unlock()

	if locks[l.Path] == nil {
		locks[l.Path] = &sync.Mutex{}
	}

	return locks[l.Path]
}

// Lock blocks until the lock has been acquired
func (l *InterProcessLock) Lock() error {
	if l.filelock != nil {
		return fmt.Errorf("lock %s is already held by this instance", l.Path)
	}

	local := l.localMutex()
	local.Lock()

	filelock, err := filemutex.New(l.Path)
	if err != nil {
		local.Unlock()
		return fmt.Errorf("could not create lock file %s: %w", l.Path, err)
	}

	if err := filelock.Lock(); err != nil {
		filelock.Close()
		local.Unlock()
		return fmt.Errorf("could not acquire file lock %s: %w", l.Path, err)
	}

	l.filelock = filelock
	return nil
}

// Unlock releases the lock. The lock file itself is left in place.
func (l *InterProcessLock) Unlock() error {
	if l.filelock == nil {
		return fmt.Errorf("lock %s is not held", l.Path)
	}

	filelock := l.filelock
	l.filelock = nil
	defer l.localMutex().Unlock()

	if err := filelock.Unlock(); err != nil {
		filelock.Close()
		return fmt.Errorf("could not release file lock %s: %w", l.Path, err)
	}

	return filelock.Close()
}
