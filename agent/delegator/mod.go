// Package delegator implements the agent of a data owner. It publishes
// encrypted data and grants the access to delegatees through the proxies of the
// contract.
package delegator

import (
	"context"
	"sort"

	"go.dedis.ch/pre"
	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/crypto"
	"go.dedis.ch/pre/ledger"
	"go.dedis.ch/pre/storage"
	"golang.org/x/xerrors"
)

// ErrNoProxies is returned when no proxy is available for a new delegation.
var ErrNoProxies = xerrors.New("no proxies available")

// Config is the configuration of a delegator agent.
type Config struct {
	// Signer is the ledger identity paying the transactions.
	Signer ledger.Crypto
	// Key is the encryption key of the delegator.
	Key      crypto.PrivateKey
	Contract contract.Delegator
	Storage  storage.Storage
	Engine   crypto.Engine
}

// Agent is the agent of a data owner.
type Agent struct {
	signer   ledger.Crypto
	key      crypto.PrivateKey
	pubkey   []byte
	contract contract.Delegator
	storage  storage.Storage
	engine   crypto.Engine
}

// NewAgent returns a new delegator agent.
func NewAgent(cfg Config) (*Agent, error) {
	if cfg.Signer == nil || cfg.Key == nil || cfg.Contract == nil || cfg.Storage == nil || cfg.Engine == nil {
		return nil, xerrors.New("incomplete configuration")
	}

	pubkey, err := cfg.Key.PublicKey().MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal public key: %v", err)
	}

	a := &Agent{
		signer:   cfg.Signer,
		key:      cfg.Key,
		pubkey:   pubkey,
		contract: cfg.Contract,
		storage:  cfg.Storage,
		engine:   cfg.Engine,
	}

	return a, nil
}

// PublicKey returns the encryption public key of the delegator.
func (a *Agent) PublicKey() crypto.PublicKey {
	return a.key.PublicKey()
}

// AddData encrypts the data, publishes it to the storage and registers it in
// the contract. It returns the identifier of the data.
func (a *Agent) AddData(ctx context.Context, data []byte) (string, error) {
	id, _, err := a.addData(ctx, data)
	if err != nil {
		return "", err
	}

	return id, nil
}

func (a *Agent) addData(ctx context.Context, data []byte) (string, []byte, error) {
	encrypted, err := a.engine.Encrypt(data, a.key.PublicKey())
	if err != nil {
		return "", nil, xerrors.Errorf("failed to encrypt: %v", err)
	}

	id, err := a.storage.StoreEncryptedData(ctx, encrypted)
	if err != nil {
		return "", nil, xerrors.Errorf("failed to store: %w", err)
	}

	err = a.contract.AddData(ctx, a.signer, id, a.pubkey, encrypted.Capsule)
	if err != nil {
		return "", nil, xerrors.Errorf("failed to add data: %w", err)
	}

	pre.Logger.Info().Str("data", id).Msg("data added")

	return id, encrypted.Capsule, nil
}

// GrantAccess gives the delegatee access to the data. A delegation is created
// first if none exists between the delegator and the delegatee, with at most
// maxProxies proxies of the highest stakes when maxProxies is positive. The
// threshold must be zero, which selects the threshold of the contract, or equal
// to it.
func (a *Agent) GrantAccess(ctx context.Context, dataID string, delegatee crypto.PublicKey,
	threshold, maxProxies int) error {

	delegateeKey, err := delegatee.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("failed to marshal delegatee key: %v", err)
	}

	status, err := a.contract.GetDelegationStatus(ctx, a.pubkey, delegateeKey)
	if err != nil {
		return xerrors.Errorf("failed to read delegation: %w", err)
	}

	switch status.State {
	case contract.DelegationNonExisting, contract.DelegationWaitingForStrings:
		err = a.delegate(ctx, delegatee, delegateeKey, threshold, maxProxies)
		if err != nil {
			return err
		}

		status, err = a.contract.GetDelegationStatus(ctx, a.pubkey, delegateeKey)
		if err != nil {
			return xerrors.Errorf("failed to read delegation: %w", err)
		}
	case contract.DelegationProxiesAreTooBusy:
		return xerrors.Errorf("delegation to %s: %w", delegatee, contract.ErrProxiesAreTooBusy)
	}

	if status.State != contract.DelegationActive {
		return xerrors.Errorf("delegation is %s: %w", status.State, contract.ErrProxiesAreTooBusy)
	}

	err = a.contract.RequestReencryption(ctx, a.signer, dataID, delegateeKey, status.TotalRequestRewardAmount)
	if err != nil {
		return xerrors.Errorf("failed to request re-encryption: %w", err)
	}

	pre.Logger.Info().
		Str("data", dataID).
		Stringer("delegatee", delegatee).
		Stringer("reward", status.TotalRequestRewardAmount).
		Msg("re-encryption requested")

	return nil
}

// AddDataAndGrant adds the data and gives the delegatee access to it.
func (a *Agent) AddDataAndGrant(ctx context.Context, data []byte, delegatee crypto.PublicKey,
	threshold, maxProxies int) (string, error) {

	id, err := a.AddData(ctx, data)
	if err != nil {
		return "", err
	}

	err = a.GrantAccess(ctx, id, delegatee, threshold, maxProxies)
	if err != nil {
		return id, err
	}

	return id, nil
}

// RemoveData removes the data from the contract. The pending requests of the
// data are refunded. The content is left in the storage.
func (a *Agent) RemoveData(ctx context.Context, dataID string) error {
	err := a.contract.RemoveData(ctx, a.signer, dataID)
	if err != nil {
		return xerrors.Errorf("failed to remove data: %w", err)
	}

	pre.Logger.Info().Str("data", dataID).Msg("data removed")

	return nil
}

func (a *Agent) delegate(ctx context.Context, delegatee crypto.PublicKey, delegateeKey []byte,
	threshold, maxProxies int) error {

	state, err := a.contract.GetContractState(ctx)
	if err != nil {
		return xerrors.Errorf("failed to read contract: %w", err)
	}

	if threshold == 0 {
		threshold = int(state.Threshold)
	}

	if threshold != int(state.Threshold) {
		return xerrors.Errorf("threshold %d differs from the contract threshold %d: %w",
			threshold, state.Threshold, crypto.ErrInvalidThreshold)
	}

	proxies, err := a.contract.GetAvailableProxies(ctx)
	if err != nil {
		return xerrors.Errorf("failed to read proxies: %w", err)
	}

	proxies = selectProxies(proxies, maxProxies)

	if len(proxies) == 0 {
		return ErrNoProxies
	}

	if len(proxies) < threshold {
		return xerrors.Errorf("%d proxies for a threshold of %d: %w",
			len(proxies), threshold, crypto.ErrInvalidThreshold)
	}

	keys := make([]crypto.PublicKey, len(proxies))
	for i, proxy := range proxies {
		keys[i], err = a.engine.LoadPublicKey(proxy.ProxyPubkey)
		if err != nil {
			return xerrors.Errorf("invalid key of proxy %s: %v", proxy.ProxyAddr, err)
		}
	}

	delegations, err := a.engine.GenerateDelegations(threshold, delegatee, keys, a.key)
	if err != nil {
		return xerrors.Errorf("failed to generate delegations: %w", err)
	}

	msg := make([]contract.ProxyDelegation, len(proxies))
	for i, proxy := range proxies {
		msg[i] = contract.ProxyDelegation{
			ProxyAddr:        proxy.ProxyAddr,
			DelegationString: delegations[i].DelegationString,
		}
	}

	err = a.contract.AddDelegations(ctx, a.signer, a.pubkey, delegateeKey, msg)
	if err != nil {
		return xerrors.Errorf("failed to add delegations: %w", err)
	}

	pre.Logger.Info().
		Stringer("delegatee", delegatee).
		Int("proxies", len(proxies)).
		Int("threshold", threshold).
		Msg("delegation created")

	return nil
}

// selectProxies returns the max proxies of the highest stakes, or all of them
// if max is not positive. The ties are broken by address.
func selectProxies(proxies []contract.ProxyAvailability, max int) []contract.ProxyAvailability {
	if max <= 0 || len(proxies) <= max {
		return proxies
	}

	sorted := append([]contract.ProxyAvailability{}, proxies...)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StakeAmount != sorted[j].StakeAmount {
			return sorted[i].StakeAmount > sorted[j].StakeAmount
		}

		return sorted[i].ProxyAddr < sorted[j].ProxyAddr
	})

	return sorted[:max]
}
