package load_test

import (
	"os"
	"path/filepath"
	"testing"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantis/ocitool/pkg/layout"
	"github.com/seantis/ocitool/pkg/load"
)

func TestReadPlatforms(t *testing.T) {
	platforms := layout.PlatformMap{
		amd64: {OS: "linux", Architecture: "amd64"},
		arm64: {OS: "linux", Architecture: "arm64", Variant: "v8"},
	}

	read, err := load.ReadPlatforms(writePlatforms(t, platforms))
	require.NoError(t, err)
	assert.Equal(t, platforms, read)
	assert.Equal(t, ocispec.Platform{OS: "linux", Architecture: "arm64", Variant: "v8"}, read[arm64])
}

func TestReadPlatformsInvalid(t *testing.T) {
	var tests = []struct {
		content string
		err     string
	}{
		{"{}", "no platforms found"},
		{"[]", "failed to parse"},
		{"nope", "failed to parse"},
		{`{"sha256:abc": {"os": "linux", "architecture": "amd64"}}`, "invalid digest"},
	}

	for _, test := range tests {
		path := filepath.Join(t.TempDir(), "platforms.json")
		require.NoError(t, os.WriteFile(path, []byte(test.content), 0644))

		_, err := load.ReadPlatforms(path)
		assert.ErrorContains(t, err, test.err, test.content)
	}

	_, err := load.ReadPlatforms(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
