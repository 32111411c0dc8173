// Package content knows how blobs are addressed: how digests are computed,
// where a digest lives inside a layout and how descriptors are read from disk
package content

import (
	"bufio"
	_ "crypto/sha256" // register sha256 for go-digest
	_ "crypto/sha512" // register sha384 and sha512 for go-digest
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// algorithms whose digests may be read straight from a blob path
var algorithms = []digest.Algorithm{
	digest.SHA256,
	digest.SHA384,
	digest.SHA512,
}

// Digest returns the sha256 digest of the given content
func Digest(b []byte) digest.Digest {
	return digest.Canonical.FromBytes(b)
}

// DigestReader returns the sha256 digest of everything read from r
func DigestReader(r io.Reader) (digest.Digest, error) {
	return digest.Canonical.FromReader(r)
}

// DigestFromPath returns the digest of the file at the given path.
//
// Files that live in a digest-named directory structure (".../sha256/<hex>")
// are trusted to carry the digest they are named after and are not read at
// all. Every other file is hashed. Callers that need to detect tampering
// should use DigestFromContent instead.
func DigestFromPath(path string) (digest.Digest, error) {
	if d, ok := digestFromName(path); ok {
		return d, nil
	}

	return DigestFromContent(path)
}

// DigestFromContent hashes the file at the given path
func DigestFromContent(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()

	d, err := DigestReader(bufio.NewReader(f))
	if err != nil {
		return "", fmt.Errorf("error hashing %s: %w", path, err)
	}

	return d, nil
}

// digestFromName derives the digest from the parent directory and the base
// name of the path, returning false if the path doesn't look like a blob path
func digestFromName(path string) (digest.Digest, bool) {
	if !utf8.ValidString(path) {
		return "", false
	}

	name := filepath.Base(path)
	parent := filepath.Base(filepath.Dir(path))

	for _, alg := range algorithms {
		if parent != alg.String() || len(name) != alg.Size()*2 {
			continue
		}

		d, err := digest.Parse(fmt.Sprintf("%s:%s", parent, name))
		if err != nil {
			return "", false
		}

		return d, true
	}

	return "", false
}

// BlobPath returns the location of the blob with the given digest, relative
// to the root of a layout directory
func BlobPath(d digest.Digest) string {
	return filepath.Join(ocispec.ImageBlobsDir, d.Algorithm().String(), d.Encoded())
}
