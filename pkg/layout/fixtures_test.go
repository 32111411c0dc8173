package layout

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/require"

	"github.com/seantis/ocitool/pkg/content"
)

// fixture is a pool of files describing one or more images, some of them
// stored under digest-named paths and some under arbitrary names
type fixture struct {
	dir   string
	paths map[digest.Digest]string
	count int
}

func newFixture(t *testing.T) *fixture {
	return &fixture{
		dir:   t.TempDir(),
		paths: make(map[digest.Digest]string),
	}
}

// files returns every file of the pool
func (f *fixture) files() []string {
	files := make([]string, 0, len(f.paths))
	for _, path := range f.paths {
		files = append(files, path)
	}

	return files
}

// without returns every file of the pool except the one with the given digest
func (f *fixture) without(d digest.Digest) []string {
	files := make([]string, 0, len(f.paths))
	for other, path := range f.paths {
		if other != d {
			files = append(files, path)
		}
	}

	return files
}

// add stores data in the pool, alternating between digest-named files and
// files named like a build tool would name them
func (f *fixture) add(t *testing.T, mediaType string, data []byte) ocispec.Descriptor {
	t.Helper()

	d := content.Digest(data)
	f.count++

	var path string
	if f.count%2 == 0 {
		path = filepath.Join(f.dir, "external", "blobs", d.Algorithm().String(), d.Encoded())
	} else {
		path = filepath.Join(f.dir, "bazel-out", fmt.Sprintf("file-%d.bin", f.count))
	}

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0600))

	f.paths[d] = path

	return ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    d,
		Size:      int64(len(data)),
	}
}

func (f *fixture) addJSON(t *testing.T, mediaType string, v interface{}) ocispec.Descriptor {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	return f.add(t, mediaType, data)
}

// layer adds an opaque layer blob
func (f *fixture) layer(t *testing.T, text string) ocispec.Descriptor {
	return f.add(t, ocispec.MediaTypeImageLayer, []byte(text))
}

// image adds a config and a manifest for the given platform and layers and
// returns the manifest descriptor, including the platform
func (f *fixture) image(t *testing.T, platform ocispec.Platform, layers ...ocispec.Descriptor) ocispec.Descriptor {
	t.Helper()

	diffIDs := make([]digest.Digest, len(layers))
	for i, l := range layers {
		diffIDs[i] = l.Digest
	}

	config := f.addJSON(t, ocispec.MediaTypeImageConfig, ocispec.Image{
		Platform: platform,
		RootFS: ocispec.RootFS{
			Type:    "layers",
			DiffIDs: diffIDs,
		},
	})

	if layers == nil {
		layers = []ocispec.Descriptor{}
	}

	manifest := f.addJSON(t, ocispec.MediaTypeImageManifest, ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageManifest,
		Config:    config,
		Layers:    layers,
	})

	manifest.Platform = &platform
	return manifest
}

// index adds an index referencing the given manifests
func (f *fixture) index(t *testing.T, manifests ...ocispec.Descriptor) ocispec.Descriptor {
	t.Helper()

	return f.addJSON(t, ocispec.MediaTypeImageIndex, ocispec.Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageIndex,
		Manifests: manifests,
	})
}

// config returns the config descriptor referenced by the given manifest
func (f *fixture) config(t *testing.T, manifest ocispec.Descriptor) ocispec.Descriptor {
	t.Helper()

	data, err := os.ReadFile(f.paths[manifest.Digest])
	require.NoError(t, err)

	var m ocispec.Manifest
	require.NoError(t, json.Unmarshal(data, &m))

	return m.Config
}

// descriptor writes the given descriptor to a file, as a user would
func (f *fixture) descriptor(t *testing.T, desc ocispec.Descriptor) string {
	t.Helper()

	data, err := json.Marshal(desc)
	require.NoError(t, err)

	path := filepath.Join(f.dir, "descriptor.json")
	require.NoError(t, os.WriteFile(path, data, 0644))

	return path
}

// listBlobs returns the digests of all blobs in the layout
func listBlobs(t *testing.T, dir string) []digest.Digest {
	t.Helper()

	var blobs []digest.Digest

	root := filepath.Join(dir, ocispec.ImageBlobsDir)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		blobs = append(blobs, digest.NewDigestFromEncoded(
			digest.Algorithm(filepath.Base(filepath.Dir(path))), filepath.Base(path)))
		return nil
	})
	require.NoError(t, err)

	return blobs
}
