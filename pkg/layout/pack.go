package layout

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// packHandler adds a single entry of the layout to the archive
type packHandler func(rel string, d fs.DirEntry) error

// Pack writes the layout stored in dir to w as an uncompressed tar archive,
// as expected by "docker load". Only the oci-layout marker, index.json and
// the blobs directory are included. Entries are sorted and carry neither
// timestamps nor ownership, so the same layout always yields the same archive.
func Pack(ctx context.Context, dir string, w io.Writer) error {
	for _, required := range []string{ocispec.ImageLayoutFile, ocispec.ImageIndexFile} {
		if _, err := os.Stat(filepath.Join(dir, required)); err != nil {
			return fmt.Errorf("%s is not a layout directory: %w", dir, err)
		}
	}

	tw := tar.NewWriter(w)

	handler := func(rel string, d fs.DirEntry) error {
		return addEntry(tw, dir, rel, d)
	}

	for _, root := range []string{ocispec.ImageLayoutFile, ocispec.ImageIndexFile, ocispec.ImageBlobsDir} {
		if err := walkLayout(ctx, dir, root, handler); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("error finishing archive: %w", err)
	}

	return nil
}

// walkLayout calls the handler for root and everything below it, in lexical
// order, with paths relative to dir
func walkLayout(ctx context.Context, dir, root string, handler packHandler) error {
	return filepath.WalkDir(filepath.Join(dir, root), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", p, err)
		}

		select {
		case <-ctx.Done():
			return errors.New("interrupted")
		default:
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		rel = filepath.ToSlash(rel)

		// leftovers of an interrupted write
		if strings.HasPrefix(path.Base(rel), ".tmp-") {
			return nil
		}

		if rel == ".." || strings.HasPrefix(rel, "../") {
			return fmt.Errorf("refusing to pack unsafe path: %s", rel)
		}

		return handler(rel, d)
	})
}

// addEntry writes a directory or regular file to the archive
func addEntry(tw *tar.Writer, dir, rel string, d fs.DirEntry) error {
	header := &tar.Header{
		Name:    rel,
		ModTime: time.Unix(0, 0),
		Format:  tar.FormatPAX,
	}

	switch {
	case d.IsDir():
		header.Typeflag = tar.TypeDir
		header.Name += "/"
		header.Mode = 0755
	case d.Type().IsRegular():
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("error accessing %s: %w", rel, err)
		}

		header.Typeflag = tar.TypeReg
		header.Mode = 0644
		header.Size = info.Size()
	default:
		return fmt.Errorf("refusing to pack %s, not a regular file", rel)
	}

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("error writing header for %s: %w", rel, err)
	}

	if header.Typeflag != tar.TypeReg {
		return nil
	}

	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("error opening %s: %w", rel, err)
	}
	defer f.Close()

	n, err := io.Copy(tw, bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("error packing %s: %w", rel, err)
	}

	if n != header.Size {
		return fmt.Errorf("%s changed size while packing", rel)
	}

	return nil
}
