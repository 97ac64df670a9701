package umbral

import (
	"crypto/cipher"
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/pre/crypto"
	"golang.org/x/xerrors"
)

// PrivateKey is the secret scalar of an encryption key pair.
//
// - implements crypto.PrivateKey
type PrivateKey struct {
	scalar kyber.Scalar
}

// GeneratePrivateKey returns a new random private key.
func GeneratePrivateKey(stream cipher.Stream) *PrivateKey {
	return &PrivateKey{
		scalar: suite.Scalar().Pick(stream),
	}
}

// NewPrivateKey returns the private key marshaled in the data.
func NewPrivateKey(data []byte) (*PrivateKey, error) {
	if len(data) != scalarSize {
		return nil, xerrors.Errorf("invalid key length: %d != %d", len(data), scalarSize)
	}

	scalar := suite.Scalar()
	err := scalar.UnmarshalBinary(data)
	if err != nil {
		return nil, xerrors.Errorf("couldn't unmarshal scalar: %v", err)
	}

	if scalar.Equal(suite.Scalar().Zero()) {
		return nil, xerrors.New("invalid zero key")
	}

	return &PrivateKey{scalar: scalar}, nil
}

// PublicKey implements crypto.PrivateKey. It returns the public key of the
// pair.
func (sk *PrivateKey) PublicKey() crypto.PublicKey {
	return sk.public()
}

func (sk *PrivateKey) public() *PublicKey {
	return &PublicKey{
		point: suite.Point().Mul(sk.scalar, nil),
	}
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (sk *PrivateKey) MarshalBinary() ([]byte, error) {
	return sk.scalar.MarshalBinary()
}

// Zero implements crypto.PrivateKey. It overwrites the scalar with zero.
func (sk *PrivateKey) Zero() {
	sk.scalar.Zero()
}

// String implements fmt.Stringer. It never prints the secret.
func (sk *PrivateKey) String() string {
	return "umbral:private_key"
}

// GoString implements fmt.GoStringer.
func (sk *PrivateKey) GoString() string {
	return sk.String()
}

// PublicKey is the public point of an encryption key pair.
//
// - implements crypto.PublicKey
type PublicKey struct {
	point kyber.Point
}

// NewPublicKey returns the public key marshaled in the data.
func NewPublicKey(data []byte) (*PublicKey, error) {
	if len(data) != pointSize {
		return nil, xerrors.Errorf("invalid key length: %d != %d", len(data), pointSize)
	}

	point := suite.Point()
	err := point.UnmarshalBinary(data)
	if err != nil {
		return nil, xerrors.Errorf("couldn't unmarshal point: %v", err)
	}

	if point.Equal(suite.Point().Null()) {
		return nil, xerrors.New("invalid identity key")
	}

	return &PublicKey{point: point}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (pk *PublicKey) MarshalBinary() ([]byte, error) {
	return pk.point.MarshalBinary()
}

// Equal implements crypto.PublicKey.
func (pk *PublicKey) Equal(other crypto.PublicKey) bool {
	o, ok := other.(*PublicKey)
	if !ok || o == nil {
		return false
	}

	return pk.point.Equal(o.point)
}

// String implements fmt.Stringer. It prints the first bytes of the point.
func (pk *PublicKey) String() string {
	data, err := pk.point.MarshalBinary()
	if err != nil {
		return "umbral:malformed_key"
	}

	return fmt.Sprintf("umbral:%x", data[:8])
}

func asPrivateKey(key crypto.PrivateKey) (*PrivateKey, error) {
	sk, ok := key.(*PrivateKey)
	if !ok || sk == nil {
		return nil, xerrors.Errorf("invalid private key type '%T'", key)
	}

	return sk, nil
}

func asPublicKey(key crypto.PublicKey) (*PublicKey, error) {
	pk, ok := key.(*PublicKey)
	if !ok || pk == nil {
		return nil, xerrors.Errorf("invalid public key type '%T'", key)
	}

	return pk, nil
}
