// Package loader reads and writes the private keys of the command line. A key
// file is tagged with the kind of the key so that a wallet key is never used as
// an encryption key and conversely.
package loader

// Kind is the tag of a key file.
type Kind string

const (
	// KindLedger tags the signing key of a wallet.
	KindLedger Kind = "ledger"
	// KindEncryption tags a re-encryption key.
	KindEncryption Kind = "encryption"
)

// Generator is the interface to implement to generate a key.
type Generator interface {
	Generate() ([]byte, error)
}

// GeneratorFunc is a function that implements the Generator interface.
type GeneratorFunc func() ([]byte, error)

// Generate implements loader.Generator.
func (fn GeneratorFunc) Generate() ([]byte, error) {
	return fn()
}

// Loader loads a key of a given kind.
type Loader interface {
	// LoadOrCreate returns the key if it exists, otherwise it generates a new
	// one and stores it.
	LoadOrCreate(Generator) ([]byte, error)

	// Load returns the key if it exists, otherwise an error.
	Load() ([]byte, error)
}
