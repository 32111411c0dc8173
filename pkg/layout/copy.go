package layout

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// exists returns true if something is stored at the given path
func exists(path string) (bool, error) {
	_, err := os.Lstat(path)

	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, fmt.Errorf("error accessing %s: %w", path, err)
}

// copyFile copies the content of src to dst. The permissions of src are not
// carried over.
func copyFile(src, dst string) error {
	r, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("error opening %s: %w", src, err)
	}
	defer r.Close()

	if err := writeAtomic(dst, bufio.NewReader(r)); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	return nil
}

// writeAtomic writes everything read from r to a temporary file next to dst
// and renames it into place once complete
func writeAtomic(dst string, r io.Reader) error {
	dir := filepath.Dir(dst)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(dst)+"-")
	if err != nil {
		return fmt.Errorf("error creating temporary file in %s: %w", dir, err)
	}

	// no-op once the rename went through
	defer os.Remove(f.Name())

	w := bufio.NewWriter(f)

	if _, err := io.Copy(w, r); err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", f.Name(), err)
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", f.Name(), err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("error closing %s: %w", f.Name(), err)
	}

	// CreateTemp uses 0600, blobs are meant to be readable
	if err := os.Chmod(f.Name(), 0644); err != nil {
		return fmt.Errorf("error setting permissions on %s: %w", f.Name(), err)
	}

	if err := os.Rename(f.Name(), dst); err != nil {
		return fmt.Errorf("error moving %s to %s: %w", f.Name(), dst, err)
	}

	return nil
}
