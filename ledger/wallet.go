package ledger

import (
	"encoding/hex"
	"strings"

	"go.dedis.ch/pre/crypto"
	"go.dedis.ch/pre/crypto/ed25519"
	"go.dedis.ch/pre/crypto/loader"
	"golang.org/x/xerrors"
)

const (
	// AddressPrefix is the human readable part of the addresses.
	AddressPrefix = "pre1"

	addressLength = 20
)

// Address returns the address derived from the marshaled public key.
func Address(pubkey []byte) string {
	digest := crypto.Sha256.Sum(pubkey)

	return AddressPrefix + hex.EncodeToString(digest[:addressLength])
}

// ValidateAddress returns an error if the address is not a prefix followed by
// the hexadecimal encoding of 20 bytes.
func ValidateAddress(address string) error {
	if !strings.HasPrefix(address, AddressPrefix) {
		return xerrors.Errorf("address '%s' must start with '%s'", address, AddressPrefix)
	}

	data, err := hex.DecodeString(address[len(AddressPrefix):])
	if err != nil {
		return xerrors.Errorf("malformed address '%s': %v", address, err)
	}

	if len(data) != addressLength {
		return xerrors.Errorf("invalid address length %d", len(data))
	}

	return nil
}

// Wallet is a ledger identity backed by a Schnorr signer.
//
// - implements ledger.Crypto
type Wallet struct {
	signer  ed25519.Signer
	pubkey  []byte
	address string
}

// NewWallet returns a wallet with a random key.
func NewWallet() (*Wallet, error) {
	return newWallet(ed25519.NewSigner())
}

// NewWalletFromBytes returns the wallet of the marshaled private key.
func NewWalletFromBytes(data []byte) (*Wallet, error) {
	signer, err := ed25519.NewSignerFromBytes(data)
	if err != nil {
		return nil, xerrors.Errorf("invalid wallet key: %v", err)
	}

	return newWallet(signer)
}

// LoadWallet loads the wallet stored in the file, or creates a new one.
func LoadWallet(path string) (*Wallet, error) {
	gen := loader.GeneratorFunc(func() ([]byte, error) {
		return ed25519.NewSigner().MarshalBinary()
	})

	data, err := loader.NewFileLoader(path, loader.KindLedger).LoadOrCreate(gen)
	if err != nil {
		return nil, xerrors.Errorf("failed to load wallet: %v", err)
	}

	return NewWalletFromBytes(data)
}

func newWallet(signer ed25519.Signer) (*Wallet, error) {
	pubkey, err := signer.GetPublicKey().MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal public key: %v", err)
	}

	return &Wallet{
		signer:  signer,
		pubkey:  pubkey,
		address: Address(pubkey),
	}, nil
}

// GetAddress implements ledger.Crypto.
func (w *Wallet) GetAddress() string {
	return w.address
}

// GetPublicKey implements ledger.Crypto.
func (w *Wallet) GetPublicKey() []byte {
	return append([]byte{}, w.pubkey...)
}

// Sign implements ledger.Crypto.
func (w *Wallet) Sign(msg []byte) ([]byte, error) {
	return w.signer.Sign(msg)
}

// MarshalBinary implements encoding.BinaryMarshaler. It returns the private
// key.
func (w *Wallet) MarshalBinary() ([]byte, error) {
	return w.signer.MarshalBinary()
}

// String implements fmt.Stringer.
func (w *Wallet) String() string {
	return w.address
}

// VerifyTx returns nil if the transaction is signed by the owner of the sender
// address.
func VerifyTx(tx *Transaction) error {
	if Address(tx.PublicKey) != tx.Sender {
		return xerrors.New("public key does not match the sender")
	}

	pk, err := ed25519.NewPublicKey(tx.PublicKey)
	if err != nil {
		return xerrors.Errorf("invalid public key: %v", err)
	}

	digest, err := tx.Hash()
	if err != nil {
		return err
	}

	err = pk.Verify(digest, tx.Signature)
	if err != nil {
		return xerrors.Errorf("invalid signature: %v", err)
	}

	return nil
}
