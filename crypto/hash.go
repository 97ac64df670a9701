package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"

	"golang.org/x/crypto/sha3"
)

// HashAlgorithm is the identifier of the hash functions available through the
// factory.
type HashAlgorithm int

const (
	// Sha256 derives the addresses of the ledger and the scalars of the
	// re-encryption.
	Sha256 HashAlgorithm = iota
	// Sha3_256 is the alternative based on Keccak.
	Sha3_256
)

// NewHashFactory returns the factory of the algorithm.
func NewHashFactory(a HashAlgorithm) HashFactory {
	return a
}

// New implements crypto.HashFactory. It panics for an unknown algorithm.
func (a HashAlgorithm) New() hash.Hash {
	switch a {
	case Sha256:
		return sha256.New()
	case Sha3_256:
		return sha3.New256()
	default:
		panic("unknown hash type")
	}
}

// Sum returns the digest of the parts. Each part is prefixed by its length so
// that different splits of the same bytes never collide.
func (a HashAlgorithm) Sum(parts ...[]byte) []byte {
	h := a.New()
	length := make([]byte, 8)

	for _, part := range parts {
		binary.LittleEndian.PutUint64(length, uint64(len(part)))
		h.Write(length)
		h.Write(part)
	}

	return h.Sum(nil)
}
