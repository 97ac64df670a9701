// Package ledger defines the abstraction of the distributed ledger that hosts
// the re-encryption contract.
//
// A ledger moves coins between addresses and executes transactions against
// smart contracts. A transaction is signed by the key of the sender and
// carries a nonce, which is the sequence number of the sender, to prevent
// replay attacks.
package ledger

import (
	"context"
	"encoding"
	"fmt"

	"golang.org/x/xerrors"
)

// Result codes of a transaction.
const (
	CodeOK uint32 = iota
	CodeContractFailed
	CodeInsufficientFunds
	CodeInvalidSignature
	CodeInvalidNonce
	CodeUnknownContract
)

// ErrUnknownContract is returned when the address does not point to a
// contract.
var ErrUnknownContract = xerrors.New("unknown contract")

// Coin is an amount of a given denomination.
type Coin struct {
	Denom  string `json:"denom"`
	Amount uint64 `json:"amount"`
}

// NewCoin returns a coin of the amount.
func NewCoin(amount uint64, denom string) Coin {
	return Coin{Denom: denom, Amount: amount}
}

// String implements fmt.Stringer.
func (c Coin) String() string {
	return fmt.Sprintf("%d%s", c.Amount, c.Denom)
}

// Crypto is the signing identity of an account on the ledger.
type Crypto interface {
	encoding.BinaryMarshaler

	// GetAddress returns the address of the account.
	GetAddress() string

	// GetPublicKey returns the marshaled public key used to verify the
	// signatures.
	GetPublicKey() []byte

	// Sign returns the signature of the message.
	Sign(msg []byte) ([]byte, error)
}

// Result is the outcome of a transaction included in a block.
type Result struct {
	Hash   string
	Height uint64
	Code   uint32
	Log    string
	Data   []byte
}

// TxError is returned when a transaction is included but rejected.
type TxError struct {
	Code uint32
	Log  string
}

// Error implements error.
func (e *TxError) Error() string {
	return fmt.Sprintf("transaction failed with code %d: %s", e.Code, e.Log)
}

// QueryError is returned when a contract refuses a query.
type QueryError struct {
	Msg string
}

// Error implements error.
func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %s", e.Msg)
}

// Ledger is the interface of a ledger hosting contracts. Every call that
// reaches the ledger may block and takes a context.
type Ledger interface {
	// SignTx fills the public key and the signature of the transaction.
	SignTx(tx *Transaction, signer Crypto) error

	// BroadcastTx sends the transaction and waits for its inclusion. A
	// rejected transaction is returned as a *TxError.
	BroadcastTx(ctx context.Context, tx *Transaction) (Result, error)

	// Query runs a read-only message against the contract.
	Query(ctx context.Context, contract string, msg []byte) ([]byte, error)

	// GetBalance returns the amount of the denomination owned by the address.
	GetBalance(ctx context.Context, address, denom string) (uint64, error)

	// GetNonce returns the next nonce expected for the address.
	GetNonce(ctx context.Context, address string) (uint64, error)

	// EnsureFunds tops up the addresses whose balance is below the threshold
	// of the ledger faucet.
	EnsureFunds(ctx context.Context, addresses ...string) error

	// ValidateAddress returns an error if the address is malformed.
	ValidateAddress(address string) error

	// LoadCryptoFromFile loads the signing key stored in the file, or creates
	// a new one if the file does not exist.
	LoadCryptoFromFile(path string) (Crypto, error)

	// CheckAvailability returns an error if the ledger cannot be reached.
	CheckAvailability(ctx context.Context) error

	// InstantiateContract deploys a new instance of the contract code and
	// returns its address.
	InstantiateContract(ctx context.Context, signer Crypto, code string,
		msg []byte, funds ...Coin) (string, error)

	// GetHeight returns the height of the last block.
	GetHeight(ctx context.Context) (uint64, error)
}
