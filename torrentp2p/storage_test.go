package torrentp2p

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_storageWriteRead(t *testing.T) {
	s, err := NewStorage(filepath.Join(t.TempDir(), "peer_6882"))
	require.NoError(t, err)

	require.NoError(t, s.WriteFile("a.txt", []byte("hello")))
	data, err := s.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	entries, err := os.ReadDir(s.Root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func Test_storageRejectsEscapes(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", ".", "..", "../etc/passwd", "a/b", `a\b`} {
		_, err := s.Open(name)
		assert.ErrorIs(t, err, ErrNotFound, name)
		assert.Error(t, s.WriteFile(name, []byte("x")), name)
	}

	_, err = s.Open("missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_storageOpenDirectory(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(s.Root, "sub"), 0o755))

	_, err = s.Open("sub")
	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_storageImport(t *testing.T) {
	src := filepath.Join(t.TempDir(), "share.bin")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	s, err := NewStorage(filepath.Join(t.TempDir(), "peer_6881"))
	require.NoError(t, err)

	name, err := s.Import(src)
	require.NoError(t, err)
	assert.Equal(t, "share.bin", name)

	data, err := s.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// Importing a file already inside the root is a no-op.
	name, err = s.Import(filepath.Join(s.Root, "share.bin"))
	require.NoError(t, err)
	assert.Equal(t, "share.bin", name)

	_, err = s.Import(filepath.Join(t.TempDir(), "nope.bin"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func Test_storageImportReplacesStaleCopy(t *testing.T) {
	s, err := NewStorage(filepath.Join(t.TempDir(), "peer_6881"))
	require.NoError(t, err)
	require.NoError(t, s.WriteFile("share.bin", []byte("old payload")))

	src := filepath.Join(t.TempDir(), "share.bin")
	require.NoError(t, os.WriteFile(src, []byte("new payload"), 0o644))

	_, err = s.Import(src)
	require.NoError(t, err)
	data, err := s.ReadFile("share.bin")
	require.NoError(t, err)
	assert.Equal(t, "new payload", string(data))

	same, err := sameContent(src, filepath.Join(s.Root, "share.bin"))
	require.NoError(t, err)
	assert.True(t, same)

	require.NoError(t, os.WriteFile(src, []byte("short"), 0o644))
	same, err = sameContent(src, filepath.Join(s.Root, "share.bin"))
	require.NoError(t, err)
	assert.False(t, same)
}
