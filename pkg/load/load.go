// Package load imports OCI layouts into a local container runtime and tags
// the loaded manifests with a repository name.
package load

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/google/go-containerregistry/pkg/name"
	log "github.com/sirupsen/logrus"

	"github.com/seantis/ocitool/pkg/layout"
)

// Retag is a single tag operation after loading
type Retag struct {
	Source string
	Target string
}

// TagsFor returns the tags for the given platforms, sorted by digest. A
// single platform is tagged as "latest", multiple platforms are told apart
// by their architecture ("latest-amd64", "latest-arm64").
func TagsFor(repository string, platforms layout.PlatformMap) []Retag {
	tags := make([]Retag, 0, len(platforms))

	for d, p := range platforms {
		target := repository + ":latest"
		if len(platforms) > 1 {
			target = fmt.Sprintf("%s:latest-%s", repository, p.Architecture)
		}

		tags = append(tags, Retag{Source: d.String(), Target: target})
	}

	sort.Slice(tags, func(i, j int) bool {
		return tags[i].Source < tags[j].Source
	})

	return tags
}

// Options describe a single load
type Options struct {
	PlatformsPath string
	Repository    string

	// TarPath points to a packed layout, LayoutDir to a layout directory
	// that is packed on the fly. Exactly one of them is required.
	TarPath   string
	LayoutDir string

	// Runtime selects the runtime by name, the first available one is used
	// if empty
	Runtime string
}

// Load reads the platform map, loads the archive into the runtime and tags
// every manifest in it. If the repository name is invalid, the images are
// loaded but not tagged, which is logged as a warning.
func Load(ctx context.Context, o Options) error {
	if (len(o.TarPath) == 0) == (len(o.LayoutDir) == 0) {
		return errors.New("either a tar path or a layout directory is required")
	}

	platforms, err := ReadPlatforms(o.PlatformsPath)
	if err != nil {
		return err
	}

	runtime, err := LookupRuntime(o.Runtime)
	if err != nil {
		return err
	}

	if len(o.TarPath) > 0 {
		err = loadTar(ctx, runtime, o.TarPath)
	} else {
		err = loadDirectory(ctx, runtime, o.LayoutDir)
	}

	if err != nil {
		return err
	}

	repository, ok := RepositoryName(o.Repository)
	if !ok {
		log.Warnf("loaded %d image(s) but did not tag them, %q is not a valid "+
			"repository name (allowed are a-z, 0-9, '.', '_', '-' and '/'), the "+
			"images are still available by digest", len(platforms), o.Repository)
		return nil
	}

	for _, tag := range TagsFor(repository, platforms) {
		if _, err := name.NewTag(tag.Target); err != nil {
			return fmt.Errorf("cannot tag %s: %w", tag.Source, err)
		}

		log.Infof("tagging %s as %s", tag.Source, tag.Target)

		if err := runtime.Tag(ctx, tag.Source, tag.Target); err != nil {
			return err
		}
	}

	return nil
}

func loadTar(ctx context.Context, runtime Runtime, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()

	log.Infof("loading %s", path)
	return runtime.Load(ctx, bufio.NewReader(f))
}

var errStoppedReading = errors.New("runtime stopped reading")

// loadDirectory streams a tar of the layout directory into the runtime
// without storing it anywhere
func loadDirectory(ctx context.Context, runtime Runtime, dir string) error {
	pr, pw := io.Pipe()
	packed := make(chan error, 1)

	go func() {
		err := layout.Pack(ctx, dir, pw)
		pw.CloseWithError(err)
		packed <- err
	}()

	log.Infof("loading %s", dir)
	err := runtime.Load(ctx, pr)

	// unblocks the packer if the runtime stopped reading early
	pr.CloseWithError(errStoppedReading)

	if perr := <-packed; perr != nil && !errors.Is(perr, errStoppedReading) {
		return fmt.Errorf("error packing %s: %w", dir, perr)
	}

	return err
}
