package layout

import (
	"errors"
	"fmt"

	"github.com/opencontainers/go-digest"
)

var (
	// ErrMissingPlatform is returned for a manifest descriptor without platform
	ErrMissingPlatform = errors.New("missing platform")

	// ErrInvalidDocument is returned for an index, manifest or config that
	// could not be parsed
	ErrInvalidDocument = errors.New("invalid document")

	// ErrNoPlatforms is returned when an empty platform map would be written
	ErrNoPlatforms = errors.New("no platforms found")
)

// NotFoundError is returned if a referenced digest is not part of the pool
type NotFoundError struct {
	Role   string
	Digest digest.Digest
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("failed to find %s with digest %s", e.Role, e.Digest)
}
