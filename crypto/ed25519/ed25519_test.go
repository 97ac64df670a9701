package ed25519

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublicKey_New(t *testing.T) {
	signer := NewSigner()

	buffer, err := signer.GetPublicKey().MarshalBinary()
	require.NoError(t, err)

	pk, err := NewPublicKey(buffer)
	require.NoError(t, err)
	require.True(t, pk.Equal(signer.GetPublicKey()))

	_, err = NewPublicKey([]byte{})
	require.EqualError(t, err, "couldn't unmarshal point: invalid Ed25519 curve point")
}

func TestPublicKey_Equal(t *testing.T) {
	signer := NewSigner()

	require.True(t, signer.GetPublicKey().Equal(signer.GetPublicKey()))
	require.False(t, signer.GetPublicKey().Equal(NewSigner().GetPublicKey()))
	require.False(t, signer.GetPublicKey().Equal(PublicKey{}))
}

func TestPublicKey_String(t *testing.T) {
	pk := NewSigner().GetPublicKey()
	require.Len(t, pk.String(), 24)
	require.Contains(t, pk.String(), "schnorr:")
}

func TestSigner_Sign(t *testing.T) {
	signer := NewSigner()

	sig, err := signer.Sign([]byte("deadbeef"))
	require.NoError(t, err)

	err = signer.GetPublicKey().Verify([]byte("deadbeef"), sig)
	require.NoError(t, err)

	err = signer.GetPublicKey().Verify([]byte("abc"), sig)
	require.Error(t, err)
	require.Contains(t, err.Error(), "schnorr verify failed: ")
}

func TestSigner_FromBytes(t *testing.T) {
	signer := NewSigner()

	data, err := signer.MarshalBinary()
	require.NoError(t, err)

	loaded, err := NewSignerFromBytes(data)
	require.NoError(t, err)
	require.True(t, loaded.GetPublicKey().Equal(signer.GetPublicKey()))

	_, err = NewSignerFromBytes([]byte{1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "couldn't unmarshal scalar: ")
}
