package layout

import (
	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"

	"github.com/seantis/ocitool/pkg/content"
)

// Pool maps digests to the files carrying that content
type Pool map[digest.Digest]string

// PoolOption configures NewPool
type PoolOption func(*poolOptions)

type poolOptions struct {
	digestOf func(string) (digest.Digest, error)
}

// WithVerifiedDigests hashes every file, instead of trusting files that are
// named after their digest
func WithVerifiedDigests() PoolOption {
	return func(o *poolOptions) {
		o.digestOf = content.DigestFromContent
	}
}

// NewPool computes the digest of every given file. The files may be given in
// any order and the same file may be given more than once.
//
// If two different paths have the same digest, the first one is kept and the
// other one is logged as a warning. With the
// default (unverified) digests, a digest-named file with unexpected content
// can shadow the real one, so WithVerifiedDigests should be used for
// untrusted input.
func NewPool(files []string, opts ...PoolOption) (Pool, error) {
	o := &poolOptions{digestOf: content.DigestFromPath}
	for _, opt := range opts {
		opt(o)
	}

	pool := make(Pool, len(files))

	for _, file := range files {
		d, err := o.digestOf(file)
		if err != nil {
			return nil, err
		}

		if existing, ok := pool[d]; ok {
			if existing != file {
				log.Warnf("ignoring %s, %s already provides %s", file, existing, d)
			}
			continue
		}

		pool[d] = file
	}

	return pool, nil
}

// Resolve returns the path of the file with the given digest. The role is
// used in the error message (index, manifest, config or layer).
func (p Pool) Resolve(role string, d digest.Digest) (string, error) {
	path, ok := p[d]
	if !ok {
		return "", &NotFoundError{Role: role, Digest: d}
	}

	return path, nil
}
