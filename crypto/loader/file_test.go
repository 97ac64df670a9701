package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/pre/internal/testing/fake"
)

func TestFileLoader_LoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owner.key")

	generator := fakeGenerator{
		calls: fake.NewCall(),
	}

	loader := NewFileLoader(path, KindEncryption).(fileLoader)

	data, err := loader.LoadOrCreate(generator)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)
	require.Equal(t, 1, generator.calls.Len())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "encryption:010203\n", string(content))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0400), info.Mode().Perm())

	data, err = loader.LoadOrCreate(generator)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)
	require.Equal(t, 1, generator.calls.Len())

	_, err = NewFileLoader(path, KindLedger).LoadOrCreate(generator)
	require.EqualError(t, err, path+" holds a encryption key instead of ledger")
	require.Equal(t, 1, generator.calls.Len())

	require.NoError(t, os.Remove(path))

	_, err = loader.LoadOrCreate(fakeGenerator{err: fake.GetError()})
	require.EqualError(t, err, fake.Err("generator failed"))

	loader.openFileFn = func(path string, flags int, perms os.FileMode) (*os.File, error) {
		return nil, fake.GetError()
	}
	_, err = loader.LoadOrCreate(generator)
	require.EqualError(t, err, fake.Err("while creating file"))

	loader.openFn = func(path string) (*os.File, error) {
		return nil, fake.GetError()
	}
	_, err = loader.LoadOrCreate(generator)
	require.EqualError(t, err, fake.Err("while opening file"))
}

func TestFileLoader_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.key")

	_, err := NewFileLoader(path, KindLedger).Load()
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(path, []byte("aabb"), 0600))

	_, err = NewFileLoader(path, KindLedger).Load()
	require.EqualError(t, err, "malformed key file: missing kind")

	require.NoError(t, os.WriteFile(path, []byte("ledger:not hex"), 0600))

	_, err = NewFileLoader(path, KindLedger).Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "malformed key file: ")

	require.NoError(t, os.WriteFile(path, []byte("  ledger:aabb \n"), 0600))

	data, err := NewFileLoader(path, KindLedger).Load()
	require.NoError(t, err)
	require.Equal(t, []byte{0xaa, 0xbb}, data)

	loader := NewFileLoader(path, KindLedger).(fileLoader)
	loader.openFn = func(path string) (*os.File, error) {
		return os.Open(os.TempDir())
	}
	_, err = loader.Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "while reading file: ")
}

// -----------------------------------------------------------------------------
// Utility functions

type fakeGenerator struct {
	calls *fake.Call
	err   error
}

func (g fakeGenerator) Generate() ([]byte, error) {
	if g.calls != nil {
		g.calls.Add("Generate")
	}

	return []byte{1, 2, 3}, g.err
}
