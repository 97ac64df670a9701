// Package crypto defines the abstraction of the threshold proxy re-encryption
// engine and the errors shared by its implementations.
//
// The engine works on opaque bytes for everything that travels through the
// contract (capsules, delegation strings and fragments) so that the agents
// never depend on a concrete construction.
package crypto

import (
	"encoding"
	"hash"

	"golang.org/x/xerrors"
)

var (
	// ErrDecryption is returned when a verification or a symmetric decryption
	// fails. It signals either tampering, a wrong key or a malicious proxy.
	ErrDecryption = xerrors.New("decryption failed")

	// ErrIncorrectFormatOfDelegationString is returned when the bytes of a
	// delegation string cannot be parsed.
	ErrIncorrectFormatOfDelegationString = xerrors.New("incorrect format of delegation string")

	// ErrNotEnoughFragments is returned when fewer verified fragments than the
	// threshold are provided to the decryption.
	ErrNotEnoughFragments = xerrors.New("not enough fragments")

	// ErrInvalidThreshold is returned when the threshold is not compatible
	// with the list of proxies.
	ErrInvalidThreshold = xerrors.New("invalid threshold")
)

// HashFactory is an interface to produce a hash digest.
type HashFactory interface {
	New() hash.Hash
}

// PublicKey is the public part of an encryption key. It can be freely copied
// and published.
type PublicKey interface {
	encoding.BinaryMarshaler

	// Equal returns true when both keys are the same.
	Equal(other PublicKey) bool

	String() string
}

// PrivateKey is the secret part of an encryption key. An implementation must
// never reveal the secret through its string representation.
type PrivateKey interface {
	encoding.BinaryMarshaler

	// PublicKey returns the public key associated to the secret.
	PublicKey() PublicKey

	// Zero wipes the secret. The key must not be used afterwards.
	Zero()
}

// EncryptedData is the output of an encryption: a ciphertext and the capsule
// that encapsulates its symmetric key.
type EncryptedData struct {
	Data    []byte
	Capsule []byte
}

// Delegation is one encrypted key fragment addressed to a single proxy.
type Delegation struct {
	ProxyKey         PublicKey
	DelegationString []byte
}

// Engine is the threshold proxy re-encryption engine. The implementations are
// pure and perform no I/O.
type Engine interface {
	// MakeNewKey returns a new random private key.
	MakeNewKey() (PrivateKey, error)

	// LoadKey returns the private key marshaled in the data.
	LoadKey(data []byte) (PrivateKey, error)

	// LoadPublicKey returns the public key marshaled in the data.
	LoadPublicKey(data []byte) (PublicKey, error)

	// Encrypt encrypts the data for the delegator and returns the ciphertext
	// and its capsule.
	Encrypt(data []byte, delegator PublicKey) (EncryptedData, error)

	// GenerateDelegations splits the re-encryption key from the delegator to
	// the delegatee into one delegation per proxy, in the same order. Any
	// threshold of them is enough to grant access.
	GenerateDelegations(threshold int, delegatee PublicKey, proxies []PublicKey,
		delegator PrivateKey) ([]Delegation, error)

	// Reencrypt decrypts and verifies the delegation of the proxy, and returns
	// the capsule fragment for the delegatee.
	Reencrypt(capsule, delegation []byte, proxy PrivateKey,
		delegator, delegatee PublicKey) ([]byte, error)

	// Decrypt verifies the fragments, combines them and decrypts the data.
	Decrypt(data EncryptedData, fragments [][]byte, delegatee PrivateKey,
		delegator PublicKey) ([]byte, error)

	// DecryptOriginal decrypts the data with the key of the delegator.
	DecryptOriginal(data EncryptedData, delegator PrivateKey) ([]byte, error)
}
