package content

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDescriptor is wrapped by every error returned for a descriptor
// that could not be turned into a valid top-level descriptor
var ErrInvalidDescriptor = errors.New("invalid descriptor")

// MissingFieldsError lists all the mandatory fields absent from a descriptor
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("descriptor is missing required fields: %s", strings.Join(e.Fields, ", "))
}

// Unwrap allows errors.Is(err, ErrInvalidDescriptor)
func (e *MissingFieldsError) Unwrap() error {
	return ErrInvalidDescriptor
}

// UnsupportedMediaTypeError is returned for a top-level descriptor whose
// media type is neither an image index nor an image manifest
type UnsupportedMediaTypeError struct {
	MediaType string
	Supported []string
}

func (e *UnsupportedMediaTypeError) Error() string {
	return fmt.Sprintf("invalid media type in descriptor, got %q, expected one of: %s",
		e.MediaType, strings.Join(e.Supported, ", "))
}

// Unwrap allows errors.Is(err, ErrInvalidDescriptor)
func (e *UnsupportedMediaTypeError) Unwrap() error {
	return ErrInvalidDescriptor
}
