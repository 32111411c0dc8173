package content

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// SupportedMediaTypes are the media types a top-level descriptor may have
var SupportedMediaTypes = []string{
	ocispec.MediaTypeImageIndex,
	ocispec.MediaTypeImageManifest,
}

// rawDescriptor is a descriptor as given by the user, with every field
// optional so that all missing fields can be reported at once
type rawDescriptor struct {
	MediaType    *string           `json:"mediaType"`
	Digest       *digest.Digest    `json:"digest"`
	Size         *int64            `json:"size"`
	ArtifactType string            `json:"artifactType,omitempty"`
	Annotations  map[string]string `json:"annotations,omitempty"`
	Data         string            `json:"data,omitempty"`
	Platform     *ocispec.Platform `json:"platform,omitempty"`
	URLs         []string          `json:"urls,omitempty"`
}

// DescriptorFromPath reads and validates the descriptor stored at path
func DescriptorFromPath(path string) (ocispec.Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("error opening descriptor %s: %w", path, err)
	}
	defer f.Close()

	desc, err := ParseDescriptor(bufio.NewReader(f))
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("error reading descriptor %s: %w", path, err)
	}

	return desc, nil
}

// ParseDescriptor decodes a top-level descriptor and validates it. Either an
// image index or an image manifest are accepted.
func ParseDescriptor(r io.Reader) (ocispec.Descriptor, error) {
	var raw rawDescriptor

	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: failed to decode json: %v", ErrInvalidDescriptor, err)
	}

	var missing []string
	if raw.Digest == nil {
		missing = append(missing, "digest")
	}
	if raw.MediaType == nil {
		missing = append(missing, "mediaType")
	}
	if raw.Size == nil {
		missing = append(missing, "size")
	}
	if len(missing) > 0 {
		return ocispec.Descriptor{}, &MissingFieldsError{Fields: missing}
	}

	if err := raw.Digest.Validate(); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: digest %q: %v", ErrInvalidDescriptor, *raw.Digest, err)
	}

	if *raw.Size < 0 {
		return ocispec.Descriptor{}, fmt.Errorf("%w: negative size %d", ErrInvalidDescriptor, *raw.Size)
	}

	if !isSupportedMediaType(*raw.MediaType) {
		return ocispec.Descriptor{}, &UnsupportedMediaTypeError{
			MediaType: *raw.MediaType,
			Supported: SupportedMediaTypes,
		}
	}

	// embedded content is base64, as ocispec.Descriptor keeps the decoded bytes
	var data []byte
	if len(raw.Data) > 0 {
		decoded, err := base64.StdEncoding.DecodeString(raw.Data)
		if err != nil {
			return ocispec.Descriptor{}, fmt.Errorf("%w: data is not base64 encoded: %v", ErrInvalidDescriptor, err)
		}
		data = decoded
	}

	return ocispec.Descriptor{
		MediaType:    *raw.MediaType,
		Digest:       *raw.Digest,
		Size:         *raw.Size,
		ArtifactType: raw.ArtifactType,
		Annotations:  raw.Annotations,
		Data:         data,
		Platform:     raw.Platform,
		URLs:         raw.URLs,
	}, nil
}

func isSupportedMediaType(mediaType string) bool {
	for _, supported := range SupportedMediaTypes {
		if mediaType == supported {
			return true
		}
	}

	return false
}
