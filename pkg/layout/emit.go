package layout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// layoutMarker is the literal content of the oci-layout file
const layoutMarker = `{"imageLayoutVersion": "` + ocispec.ImageLayoutVersion + `"}`

// PlatformMap records the platform of every manifest in a layout
type PlatformMap map[digest.Digest]ocispec.Platform

// WriteScaffold creates the blobs directory and the oci-layout marker. Any
// content already present in dir is left untouched.
func WriteScaffold(dir string) error {
	blobs := filepath.Join(dir, ocispec.ImageBlobsDir, digest.Canonical.String())

	if err := os.MkdirAll(blobs, 0755); err != nil {
		return fmt.Errorf("error creating %s: %w", blobs, err)
	}

	marker := filepath.Join(dir, ocispec.ImageLayoutFile)
	if err := os.WriteFile(marker, []byte(layoutMarker), 0644); err != nil {
		return fmt.Errorf("error writing %s: %w", marker, err)
	}

	return nil
}

// WriteIndex stores the given index document as index.json
func WriteIndex(dir string, data []byte) error {
	path := filepath.Join(dir, ocispec.ImageIndexFile)

	if err := writeAtomic(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("error writing index: %w", err)
	}

	return nil
}

// WritePlatforms stores the platform map as pretty JSON at path. Keys are
// sorted by digest.
func WritePlatforms(path string, platforms PlatformMap) error {
	if len(platforms) == 0 {
		return fmt.Errorf("refusing to write %s: %w", path, ErrNoPlatforms)
	}

	data, err := marshalPretty(platforms)
	if err != nil {
		return fmt.Errorf("error encoding platforms: %w", err)
	}

	if err := writeAtomic(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("error writing platforms: %w", err)
	}

	return nil
}

func marshalPretty(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
