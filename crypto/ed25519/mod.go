// Package ed25519 implements the signing keys of the ledger accounts on the
// Edwards 25519 elliptic curve.
//
// The signatures are created using the Schnorr algorithm.
//
// Related Papers:
//
// Efficient Identification and Signatures for Smart Cards (1989)
// https://link.springer.com/chapter/10.1007/0-387-34805-0_22
package ed25519

import (
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/suites"
	"go.dedis.ch/kyber/v3/util/key"
	"golang.org/x/xerrors"
)

const (
	// Algorithm is the name of the curve used for the schnorr signature.
	Algorithm = "CURVE-ED25519"
)

var suite = suites.MustFind("Ed25519")

// PublicKey is the public key adapter to the Kyber Ed25519 public key.
type PublicKey struct {
	point kyber.Point
}

// NewPublicKey returns a new public key from the data.
func NewPublicKey(data []byte) (PublicKey, error) {
	point := suite.Point()
	err := point.UnmarshalBinary(data)
	if err != nil {
		return PublicKey{}, xerrors.Errorf("couldn't unmarshal point: %v", err)
	}

	return PublicKey{point: point}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler. It produces a slice of
// bytes representing the public key.
func (pk PublicKey) MarshalBinary() ([]byte, error) {
	return pk.point.MarshalBinary()
}

// Verify returns nil if the signature matches the message for this public key.
func (pk PublicKey) Verify(msg, sig []byte) error {
	err := schnorr.Verify(suite, pk.point, msg, sig)
	if err != nil {
		return xerrors.Errorf("schnorr verify failed: %v", err)
	}

	return nil
}

// Equal returns true if the other public key is the same.
func (pk PublicKey) Equal(other PublicKey) bool {
	return other.point != nil && pk.point.Equal(other.point)
}

// String implements fmt.Stringer. It returns a short representation of the
// point.
func (pk PublicKey) String() string {
	buffer, err := pk.MarshalBinary()
	if err != nil {
		return "schnorr:malformed_point"
	}

	// Output only the prefix and 16 characters of the buffer in hexadecimal.
	return fmt.Sprintf("schnorr:%x", buffer)[:8+16]
}

// Signer creates Schnorr signatures using a private key of the Ed25519
// elliptic curve.
type Signer struct {
	keyPair *key.Pair
}

// NewSigner returns a new random schnorr signer.
func NewSigner() Signer {
	return Signer{
		keyPair: key.NewKeyPair(suite),
	}
}

// NewSignerFromBytes returns the signer of the marshaled private key.
func NewSignerFromBytes(data []byte) (Signer, error) {
	scalar := suite.Scalar()
	err := scalar.UnmarshalBinary(data)
	if err != nil {
		return Signer{}, xerrors.Errorf("couldn't unmarshal scalar: %v", err)
	}

	kp := &key.Pair{
		Private: scalar,
		Public:  suite.Point().Mul(scalar, nil),
	}

	return Signer{keyPair: kp}, nil
}

// GetPublicKey returns the public key of the signer that can be used to verify
// signatures.
func (s Signer) GetPublicKey() PublicKey {
	return PublicKey{point: s.keyPair.Public}
}

// MarshalBinary implements encoding.BinaryMarshaler. It returns the private
// scalar.
func (s Signer) MarshalBinary() ([]byte, error) {
	return s.keyPair.Private.MarshalBinary()
}

// Sign signs the message in parameter and returns the signature, or an error
// if it cannot sign.
func (s Signer) Sign(msg []byte) ([]byte, error) {
	sig, err := schnorr.Sign(suite, s.keyPair.Private, msg)
	if err != nil {
		return nil, xerrors.Errorf("couldn't make schnorr signature: %v", err)
	}

	return sig, nil
}
