package crypto

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/require"
)

func TestCryptographicRandomGenerator_Read(t *testing.T) {
	f := func(buffer []byte) bool {
		n, err := CryptographicRandomGenerator{}.Read(buffer)

		return err == nil && n == len(buffer)
	}

	require.NoError(t, quick.Check(f, nil))
}

func TestSeededRandomGenerator_Read(t *testing.T) {
	first := make([]byte, 64)
	second := make([]byte, 64)

	n, err := NewSeededRandomGenerator([]byte("seed")).Read(first)
	require.NoError(t, err)
	require.Equal(t, 64, n)

	_, err = NewSeededRandomGenerator([]byte("seed")).Read(second)
	require.NoError(t, err)
	require.Equal(t, first, second)

	_, err = NewSeededRandomGenerator([]byte("other")).Read(second)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// Consecutive reads continue the stream.
	gen := NewSeededRandomGenerator([]byte("seed"))
	head := make([]byte, 32)
	tail := make([]byte, 32)

	gen.Read(head)
	gen.Read(tail)
	require.Equal(t, first, append(head, tail...))
}
