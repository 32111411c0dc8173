// Package layout assembles OCI image layout directories from a top-level
// descriptor and a pool of blob files.
//
// An OCI layout directory looks like this:
//
//	./oci-layout
//	./index.json
//	./blobs/sha256/9c03df60186916e2ab82ec082c4c841409e0399d66647acf72343b3865c68139
//	./blobs/sha256/...
//
// See https://github.com/opencontainers/image-spec/blob/main/image-layout.md
package layout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/image-spec/schema"
	"github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	log "github.com/sirupsen/logrus"

	"github.com/seantis/ocitool/pkg/content"
	"github.com/seantis/ocitool/pkg/lock"
)

// Builder writes the layout for a single top-level descriptor into Dir,
// taking every blob from the Pool.
//
// A failed build leaves whatever was copied up to that point in Dir. Build
// into a temporary directory and rename it if that's a problem.
type Builder struct {
	Dir  string
	Pool Pool

	platforms PlatformMap
}

// NewBuilder returns a new builder
func NewBuilder(dir string, pool Pool) *Builder {
	return &Builder{
		Dir:  dir,
		Pool: pool,
	}
}

// Build writes the scaffolding, the index and every blob reachable from the
// top-level descriptor. It returns the platform of each manifest in the index.
func (b *Builder) Build(top ocispec.Descriptor) (PlatformMap, error) {
	b.platforms = make(PlatformMap)

	if err := WriteScaffold(b.Dir); err != nil {
		return nil, err
	}

	var err error

	switch top.MediaType {
	case ocispec.MediaTypeImageIndex:
		err = b.buildFromIndex(top)
	case ocispec.MediaTypeImageManifest:
		err = b.buildFromManifest(top)
	default:
		err = fmt.Errorf("unexpected top-level media type %s, the descriptor was not validated", top.MediaType)
	}

	if err != nil {
		return nil, err
	}

	return b.platforms, nil
}

// buildFromIndex uses the index given by the user verbatim
func (b *Builder) buildFromIndex(top ocispec.Descriptor) error {
	src, err := b.Pool.Resolve("index", top.Digest)
	if err != nil {
		return err
	}

	if err := copyFile(src, filepath.Join(b.Dir, ocispec.ImageIndexFile)); err != nil {
		return err
	}

	if err := b.copyBlob(src, top.Digest); err != nil {
		return err
	}

	var index ocispec.Index
	if err := readDocument(src, "index", schema.ValidatorMediaTypeImageIndex, &index); err != nil {
		return err
	}

	for _, m := range index.Manifests {
		if err := b.resolveManifest(m); err != nil {
			return err
		}
	}

	return nil
}

// buildFromManifest wraps the manifest given by the user in a new index
func (b *Builder) buildFromManifest(top ocispec.Descriptor) error {
	index := ocispec.Index{
		Versioned: specs.Versioned{
			SchemaVersion: 2,
		},
		MediaType: ocispec.MediaTypeImageIndex,
		Manifests: []ocispec.Descriptor{top},
	}

	data, err := marshalPretty(index)
	if err != nil {
		return fmt.Errorf("error encoding index: %w", err)
	}

	if err := WriteIndex(b.Dir, data); err != nil {
		return err
	}

	if err := b.writeBlob(data, content.Digest(data)); err != nil {
		return err
	}

	for _, m := range index.Manifests {
		if err := b.resolveManifest(m); err != nil {
			return err
		}
	}

	return nil
}

// resolveManifest copies the manifest, its config and its layers. The
// platform is checked before touching any file.
func (b *Builder) resolveManifest(m ocispec.Descriptor) error {
	if m.Platform == nil {
		return fmt.Errorf("manifest with digest %s: %w", m.Digest, ErrMissingPlatform)
	}

	b.platforms[m.Digest] = *m.Platform

	src, err := b.Pool.Resolve("manifest", m.Digest)
	if err != nil {
		return err
	}

	manifest, err := readManifest(src)
	if err != nil {
		return err
	}

	if err := b.copyBlob(src, m.Digest); err != nil {
		return err
	}

	log.Debugf("resolved manifest %s for %s", m.Digest, platformString(m.Platform))

	src, err = b.Pool.Resolve("config", manifest.Config.Digest)
	if err != nil {
		return err
	}

	// the config is only read to make sure it's well-formed
	if err := readDocument(src, "config", schema.ValidatorMediaTypeImageConfig, nil); err != nil {
		return err
	}

	if err := b.copyBlob(src, manifest.Config.Digest); err != nil {
		return err
	}

	for _, layer := range manifest.Layers {
		src, err := b.Pool.Resolve("layer", layer.Digest)
		if err != nil {
			return err
		}

		if err := b.copyBlob(src, layer.Digest); err != nil {
			return err
		}
	}

	return nil
}

// copyBlob copies src to the blob path of d, unless a blob is already there
func (b *Builder) copyBlob(src string, d digest.Digest) error {
	dst := filepath.Join(b.Dir, content.BlobPath(d))

	present, err := exists(dst)
	if err != nil {
		return err
	}

	if present {
		log.Debugf("blob %s exists already", d)
		return nil
	}

	if err := copyFile(src, dst); err != nil {
		return err
	}

	log.Debugf("copied blob %s from %s", d, src)
	return nil
}

// writeBlob writes data to the blob path of d, unless a blob is already there
func (b *Builder) writeBlob(data []byte, d digest.Digest) error {
	dst := filepath.Join(b.Dir, content.BlobPath(d))

	present, err := exists(dst)
	if err != nil || present {
		return err
	}

	return writeAtomic(dst, bytes.NewReader(data))
}

// readDocument validates the file at path against the schema of its media
// type and, if v is not nil, decodes it into v
func readDocument(path, role string, validator schema.Validator, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading %s %s: %w", role, path, err)
	}

	if err := validator.Validate(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to parse %s as %s: %w: %v", path, role, ErrInvalidDocument, err)
	}

	if v == nil {
		return nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s as %s: %w: %v", path, role, ErrInvalidDocument, err)
	}

	return nil
}

// readManifest decodes the manifest at path. The manifest schema is not used,
// as it requires at least one layer and manifests without layers are valid.
func readManifest(path string) (ocispec.Manifest, error) {
	var manifest ocispec.Manifest

	data, err := os.ReadFile(path)
	if err != nil {
		return manifest, fmt.Errorf("error reading manifest %s: %w", path, err)
	}

	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("failed to parse %s as manifest: %w: %s", path, ErrInvalidDocument, fmt.Sprintf(format, args...))
	}

	if err := json.Unmarshal(data, &manifest); err != nil {
		return manifest, invalid("%v", err)
	}

	if manifest.SchemaVersion != 2 {
		return manifest, invalid("unsupported schemaVersion %d", manifest.SchemaVersion)
	}

	if manifest.MediaType != "" && manifest.MediaType != ocispec.MediaTypeImageManifest {
		return manifest, invalid("unexpected mediaType %s", manifest.MediaType)
	}

	if err := manifest.Config.Digest.Validate(); err != nil {
		return manifest, invalid("config digest %q: %v", manifest.Config.Digest, err)
	}

	for i, layer := range manifest.Layers {
		if err := layer.Digest.Validate(); err != nil {
			return manifest, invalid("digest %q of layer %d: %v", layer.Digest, i, err)
		}
	}

	return manifest, nil
}

func platformString(p *ocispec.Platform) string {
	if p.Variant != "" {
		return fmt.Sprintf("%s/%s/%s", p.OS, p.Architecture, p.Variant)
	}

	return fmt.Sprintf("%s/%s", p.OS, p.Architecture)
}

// Options describe a complete layout build
type Options struct {
	DescriptorPath string
	Files          []string
	OutDir         string
	PlatformsPath  string

	// VerifyDigests hashes every file, see WithVerifiedDigests
	VerifyDigests bool

	// Lock holds an inter-process lock on OutDir during the build
	Lock bool
}

// BuildLayout validates the descriptor, indexes the files, builds the layout
// and writes the platform map
func BuildLayout(o Options) (err error) {
	top, err := content.DescriptorFromPath(o.DescriptorPath)
	if err != nil {
		return err
	}

	var opts []PoolOption
	if o.VerifyDigests {
		opts = append(opts, WithVerifiedDigests())
	}

	pool, err := NewPool(o.Files, opts...)
	if err != nil {
		return err
	}

	if o.Lock {
		l := lock.ForDirectory(o.OutDir)
		if err := l.Lock(); err != nil {
			return err
		}
		defer func() {
			if uerr := l.Unlock(); uerr != nil && err == nil {
				err = uerr
			}
		}()
	}

	platforms, err := NewBuilder(o.OutDir, pool).Build(top)
	if err != nil {
		return err
	}

	if err := WritePlatforms(o.PlatformsPath, platforms); err != nil {
		return err
	}

	log.Infof("wrote layout %s with %d manifest(s)", o.OutDir, len(platforms))
	return nil
}
