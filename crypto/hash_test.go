package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashFactory_New(t *testing.T) {
	require.Equal(t, 32, NewHashFactory(Sha256).New().Size())
	require.Equal(t, 32, NewHashFactory(Sha3_256).New().Size())

	require.Panics(t, func() { NewHashFactory(HashAlgorithm(42)).New() })
}

func TestHashAlgorithm_Sum(t *testing.T) {
	digest := Sha256.Sum([]byte("ab"), []byte("c"))
	require.Len(t, digest, 32)
	require.Equal(t, digest, Sha256.Sum([]byte("ab"), []byte("c")))

	require.NotEqual(t, digest, Sha256.Sum([]byte("a"), []byte("bc")))
	require.NotEqual(t, digest, Sha256.Sum([]byte("abc")))
	require.NotEqual(t, digest, Sha3_256.Sum([]byte("ab"), []byte("c")))

	require.NotEqual(t, Sha256.Sum(), Sha256.Sum(nil))
}
