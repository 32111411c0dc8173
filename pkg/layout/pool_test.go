package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolResolve(t *testing.T) {
	f := newFixture(t)
	a := f.layer(t, "a")
	b := f.layer(t, "b")

	pool, err := NewPool(f.files())
	require.NoError(t, err)
	assert.Len(t, pool, 2)

	path, err := pool.Resolve("layer", a.Digest)
	assert.NoError(t, err)
	assert.Equal(t, f.paths[a.Digest], path)

	path, err = pool.Resolve("layer", b.Digest)
	assert.NoError(t, err)
	assert.Equal(t, f.paths[b.Digest], path)

	missing := digest.FromString("missing")
	_, err = pool.Resolve("config", missing)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "config", notFound.Role)
	assert.Equal(t, missing, notFound.Digest)
	assert.EqualError(t, err, "failed to find config with digest "+missing.String())
}

func TestPoolDuplicates(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first")
	second := filepath.Join(dir, "second")

	require.NoError(t, os.WriteFile(first, []byte("same"), 0644))
	require.NoError(t, os.WriteFile(second, []byte("same"), 0644))

	hook := test.NewGlobal()
	defer hook.Reset()

	pool, err := NewPool([]string{first, second, first})
	require.NoError(t, err)
	assert.Equal(t, Pool{digest.FromString("same"): first}, pool)

	// the same path given twice is not worth a warning
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, log.WarnLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, second)
	assert.Contains(t, hook.LastEntry().Message, first)
	hook.Reset()

	pool, err = NewPool([]string{second, first})
	require.NoError(t, err)
	assert.Equal(t, Pool{digest.FromString("same"): second}, pool)
}

func TestPoolVerifiedDigests(t *testing.T) {
	dir := t.TempDir()
	claimed := digest.FromString("claimed")

	// named after a digest, but with other content
	path := filepath.Join(dir, "sha256", claimed.Encoded())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("actual"), 0644))

	pool, err := NewPool([]string{path})
	require.NoError(t, err)
	assert.Contains(t, pool, claimed)

	pool, err = NewPool([]string{path}, WithVerifiedDigests())
	require.NoError(t, err)
	assert.NotContains(t, pool, claimed)
	assert.Contains(t, pool, digest.FromString("actual"))
}

func TestPoolMissingFile(t *testing.T) {
	_, err := NewPool([]string{filepath.Join(t.TempDir(), "nope")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPoolEmpty(t *testing.T) {
	pool, err := NewPool(nil)
	assert.NoError(t, err)
	assert.Empty(t, pool)
}
