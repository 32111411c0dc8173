package load

import (
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

// RepositoryName normalizes the given repository for use in image references.
// Upper case letters are lowered, anything but [a-z0-9._-/] is rejected.
//
// The result must also parse as a repository reference, which rules out empty
// names and names that exceed the length limit.
func RepositoryName(repository string) (string, bool) {
	var b strings.Builder
	b.Grow(len(repository))

	for _, c := range repository {
		switch {
		case 'a' <= c && c <= 'z', '0' <= c && c <= '9':
			b.WriteRune(c)
		case c == '.', c == '_', c == '-', c == '/':
			b.WriteRune(c)
		case 'A' <= c && c <= 'Z':
			b.WriteRune(c + ('a' - 'A'))
		default:
			return "", false
		}
	}

	normalized := b.String()

	if _, err := name.NewRepository(normalized); err != nil {
		return "", false
	}

	return normalized, true
}
