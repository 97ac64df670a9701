package crypto

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/sha3"
)

// RandGenerator is the source of randomness used for the keys, the nonces and
// the polynomials of the delegations.
type RandGenerator interface {
	io.Reader
}

// CryptographicRandomGenerator reads from the random source of the operating
// system.
//
// - implements crypto.RandGenerator
type CryptographicRandomGenerator struct{}

// Read implements crypto.RandGenerator.
func (CryptographicRandomGenerator) Read(buffer []byte) (int, error) {
	return rand.Read(buffer)
}

// SeededRandomGenerator is a reproducible stream expanded from a seed. Two
// generators with the same seed produce the same bytes. It must only be used
// to replay a scenario, never to protect real data.
//
// - implements crypto.RandGenerator
type SeededRandomGenerator struct {
	xof sha3.ShakeHash
}

// NewSeededRandomGenerator returns a generator that expands the seed.
func NewSeededRandomGenerator(seed []byte) *SeededRandomGenerator {
	xof := sha3.NewShake256()
	// A shake hash never fails to write.
	xof.Write(seed)

	return &SeededRandomGenerator{xof: xof}
}

// Read implements crypto.RandGenerator. It always fills the whole buffer.
func (g *SeededRandomGenerator) Read(buffer []byte) (int, error) {
	return g.xof.Read(buffer)
}
