// Package delegatee implements the agent of a reader that was granted access to
// some data.
package delegatee

import (
	"context"

	"go.dedis.ch/pre"
	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/crypto"
	"go.dedis.ch/pre/storage"
	"golang.org/x/xerrors"
)

// ErrDataNotReady is returned when the data is read before enough fragments
// are provided.
var ErrDataNotReady = xerrors.New("data is not ready")

// DataStatus is the progress of the re-encryption of a data for the delegatee.
type DataStatus struct {
	Ready     bool
	State     contract.RequestState
	Threshold uint32
	Fragments [][]byte
	Capsule   []byte
}

// Config is the configuration of a delegatee agent.
type Config struct {
	Key      crypto.PrivateKey
	Contract contract.Queries
	Storage  storage.Storage
	Engine   crypto.Engine
}

// Agent is the agent of a delegatee.
type Agent struct {
	key      crypto.PrivateKey
	pubkey   []byte
	contract contract.Queries
	storage  storage.Storage
	engine   crypto.Engine
}

// NewAgent returns a new delegatee agent.
func NewAgent(cfg Config) (*Agent, error) {
	if cfg.Key == nil || cfg.Contract == nil || cfg.Storage == nil || cfg.Engine == nil {
		return nil, xerrors.New("incomplete configuration")
	}

	pubkey, err := cfg.Key.PublicKey().MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal public key: %v", err)
	}

	a := &Agent{
		key:      cfg.Key,
		pubkey:   pubkey,
		contract: cfg.Contract,
		storage:  cfg.Storage,
		engine:   cfg.Engine,
	}

	return a, nil
}

// PublicKey returns the encryption public key of the delegatee.
func (a *Agent) PublicKey() crypto.PublicKey {
	return a.key.PublicKey()
}

// IsDataReady returns the status of the data. A data is ready when the request
// is granted. Any other state is reported without an error.
func (a *Agent) IsDataReady(ctx context.Context, dataID string) (DataStatus, error) {
	resp, err := a.contract.GetFragmentsResponse(ctx, dataID, a.pubkey)
	if err != nil {
		return DataStatus{}, xerrors.Errorf("failed to read fragments: %w", err)
	}

	status := DataStatus{
		Ready:     resp.State == contract.RequestGranted,
		State:     resp.State,
		Threshold: resp.Threshold,
		Fragments: resp.Fragments,
		Capsule:   resp.Capsule,
	}

	return status, nil
}

// ReadData fetches the ciphertext of the data and decrypts it with the
// fragments of the proxies.
func (a *Agent) ReadData(ctx context.Context, dataID string, delegator crypto.PublicKey) ([]byte, error) {
	status, err := a.IsDataReady(ctx, dataID)
	if err != nil {
		return nil, err
	}

	if !status.Ready {
		return nil, xerrors.Errorf("request is %s: %w", status.State, ErrDataNotReady)
	}

	encrypted, err := a.storage.GetEncryptedData(ctx, dataID)
	if err != nil {
		return nil, xerrors.Errorf("failed to fetch data: %w", err)
	}

	encrypted.Capsule = status.Capsule

	data, err := a.engine.Decrypt(encrypted, status.Fragments, a.key, delegator)
	if err != nil {
		return nil, xerrors.Errorf("failed to decrypt: %w", err)
	}

	pre.Logger.Debug().Str("data", dataID).Int("fragments", len(status.Fragments)).Msg("data decrypted")

	return data, nil
}
