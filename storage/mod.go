// Package storage defines the content-addressed storage where the delegators
// publish their encrypted data.
//
// A storage must be connected before it can be used, and it is owned by the
// agent that connected it.
package storage

import (
	"context"

	"go.dedis.ch/pre/crypto"
	"golang.org/x/xerrors"
)

var (
	// ErrNotConnected is returned when the storage is used before Connect or
	// after Disconnect.
	ErrNotConnected = xerrors.New("storage not connected")

	// ErrAlreadyConnected is returned by a second call to Connect.
	ErrAlreadyConnected = xerrors.New("storage already connected")

	// ErrTimeout is returned when the deadline of the context expires before
	// the storage answers.
	ErrTimeout = xerrors.New("storage timeout")

	// ErrNetwork is returned when the backend of the storage fails.
	ErrNetwork = xerrors.New("storage network error")

	// ErrNotAvailable is returned when the content cannot be found or does
	// not match its identifier.
	ErrNotAvailable = xerrors.New("storage not available")
)

// Storage is the interface of a content-addressed storage. The identifiers it
// returns only depend on the content.
type Storage interface {
	// Connect opens the connection to the backend.
	Connect(ctx context.Context) error

	// Disconnect releases the connection.
	Disconnect() error

	// StoreEncryptedData stores the ciphertext and its capsule, and returns
	// the identifier of the pair.
	StoreEncryptedData(ctx context.Context, data crypto.EncryptedData) (string, error)

	// GetEncryptedData returns the pair stored under the identifier.
	GetEncryptedData(ctx context.Context, id string) (crypto.EncryptedData, error)

	// GetCapsule returns only the capsule of the pair stored under the
	// identifier.
	GetCapsule(ctx context.Context, id string) ([]byte, error)

	// StoreEncryptedPart stores a single object and returns its identifier.
	StoreEncryptedPart(ctx context.Context, part []byte) (string, error)

	// GetEncryptedPart returns the object stored under the identifier.
	GetEncryptedPart(ctx context.Context, id string) ([]byte, error)
}

// FromContext translates the error of a context into an error of the storage.
// It returns nil if the context is still alive.
func FromContext(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}

	if xerrors.Is(err, context.DeadlineExceeded) {
		return xerrors.Errorf("%v: %w", err, ErrTimeout)
	}

	return xerrors.Errorf("aborted: %w", err)
}
