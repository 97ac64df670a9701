// Package proxy implements the agent of a re-encryption proxy. The agent
// manages the registration of the proxy in the contract and turns the tasks
// addressed to it into capsule fragments.
package proxy

import (
	"context"

	"go.dedis.ch/pre"
	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/crypto"
	"go.dedis.ch/pre/ledger"
	"golang.org/x/xerrors"
)

// Config is the configuration of a proxy agent.
type Config struct {
	// Signer is the ledger identity of the proxy. Its address identifies the
	// proxy in the contract.
	Signer ledger.Crypto
	// Key is the encryption key used to open the delegations.
	Key      crypto.PrivateKey
	Contract contract.Proxy
	Engine   crypto.Engine
}

// Agent is the agent of a proxy.
type Agent struct {
	signer   ledger.Crypto
	key      crypto.PrivateKey
	pubkey   []byte
	contract contract.Proxy
	engine   crypto.Engine
}

// NewAgent returns a new proxy agent.
func NewAgent(cfg Config) (*Agent, error) {
	if cfg.Signer == nil || cfg.Key == nil || cfg.Contract == nil || cfg.Engine == nil {
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
		engine:   cfg.Engine,
	}

	return a, nil
}

// Address returns the ledger address of the proxy.
func (a *Agent) Address() string {
	return a.signer.GetAddress()
}

// Status returns the status of the proxy in the contract, or nil if the proxy
// is unknown.
func (a *Agent) Status(ctx context.Context) (*contract.ProxyStatus, error) {
	status, err := a.contract.GetProxyStatus(ctx, a.Address())
	if err != nil {
		return nil, xerrors.Errorf("failed to read status: %w", err)
	}

	return status, nil
}

// Registered returns true when the proxy is registered and active.
func (a *Agent) Registered(ctx context.Context) (bool, error) {
	status, err := a.Status(ctx)
	if err != nil {
		return false, err
	}

	return status != nil && status.State == contract.ProxyRegistered, nil
}

// Register registers the proxy with the minimum stake of the contract. A
// leaving proxy is reactivated without a new stake and a registered proxy is
// left untouched. It returns the stake sent to the contract, if any.
func (a *Agent) Register(ctx context.Context) (*ledger.Coin, error) {
	status, err := a.Status(ctx)
	if err != nil {
		return nil, err
	}

	state := contract.ProxyAuthorised
	if status != nil {
		state = status.State
	}

	switch state {
	case contract.ProxyRegistered:
		return nil, nil
	case contract.ProxyLeaving:
		return nil, a.Reactivate(ctx)
	}

	cfg, err := a.contract.GetStakingConfig(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to read staking config: %w", err)
	}

	stake := ledger.NewCoin(cfg.MinimumProxyStakeAmount, cfg.StakeDenom)

	err = a.contract.ProxyRegister(ctx, a.signer, a.pubkey, stake)
	if err != nil {
		return nil, xerrors.Errorf("failed to register: %w", err)
	}

	pre.Logger.Info().Str("proxy", a.Address()).Stringer("stake", stake).Msg("proxy registered")

	return &stake, nil
}

// Unregister deactivates the proxy and, unless deactivateOnly is set, removes
// it from the contract which pays back its stake.
func (a *Agent) Unregister(ctx context.Context, deactivateOnly bool) error {
	status, err := a.Status(ctx)
	if err != nil {
		return err
	}

	if status == nil || status.State == contract.ProxyAuthorised {
		return xerrors.Errorf("%s: %w", a.Address(), contract.ErrProxyNotRegistered)
	}

	if status.State == contract.ProxyRegistered {
		err = a.Deactivate(ctx)
		if err != nil {
			return err
		}
	}

	if deactivateOnly {
		return nil
	}

	err = a.contract.ProxyUnregister(ctx, a.signer)
	if err != nil {
		return xerrors.Errorf("failed to unregister: %w", err)
	}

	pre.Logger.Info().Str("proxy", a.Address()).Msg("proxy unregistered")

	return nil
}

// Deactivate stops the assignment of new tasks to the proxy.
func (a *Agent) Deactivate(ctx context.Context) error {
	err := a.contract.ProxyDeactivate(ctx, a.signer)
	if err != nil {
		return xerrors.Errorf("failed to deactivate: %w", err)
	}

	pre.Logger.Info().Str("proxy", a.Address()).Msg("proxy deactivated")

	return nil
}

// Reactivate registers again a leaving proxy with its current stake.
func (a *Agent) Reactivate(ctx context.Context) error {
	err := a.contract.ProxyRegister(ctx, a.signer, a.pubkey)
	if err != nil {
		return xerrors.Errorf("failed to reactivate: %w", err)
	}

	pre.Logger.Info().Str("proxy", a.Address()).Msg("proxy reactivated")

	return nil
}

// WithdrawStake withdraws up to the amount of the stake, or all the
// withdrawable stake when the amount is nil.
func (a *Agent) WithdrawStake(ctx context.Context, amount *uint64) error {
	err := a.contract.WithdrawStake(ctx, a.signer, amount)
	if err != nil {
		return xerrors.Errorf("failed to withdraw stake: %w", err)
	}

	return nil
}

// AddStake increases the stake of the proxy by the amount of the stake
// denomination of the contract.
func (a *Agent) AddStake(ctx context.Context, amount uint64) error {
	cfg, err := a.contract.GetStakingConfig(ctx)
	if err != nil {
		return xerrors.Errorf("failed to read staking config: %w", err)
	}

	err = a.contract.AddStake(ctx, a.signer, ledger.NewCoin(amount, cfg.StakeDenom))
	if err != nil {
		return xerrors.Errorf("failed to add stake: %w", err)
	}

	return nil
}

// GetReencryptionRequests returns the tasks addressed to the proxy. The order
// of the tasks is not meaningful.
func (a *Agent) GetReencryptionRequests(ctx context.Context) ([]contract.ProxyTask, error) {
	tasks, err := a.contract.GetProxyTasks(ctx, a.Address())
	if err != nil {
		return nil, xerrors.Errorf("failed to read tasks: %w", err)
	}

	return tasks, nil
}

// SkipTask abandons the task. The request of the task is abandoned and the
// delegator is expected to request it again.
func (a *Agent) SkipTask(ctx context.Context, task contract.ProxyTask) error {
	err := a.contract.SkipReencryptionTask(ctx, a.signer, task.DataID, task.DelegateePubkey)
	if err != nil {
		return xerrors.Errorf("failed to skip task: %w", err)
	}

	pre.Logger.Warn().Str("proxy", a.Address()).Str("data", task.DataID).Msg("task skipped")

	return nil
}

// ProcessReencryptionRequest re-encrypts the capsule of the task and provides
// the fragment to the contract. A task that cannot be opened is reported as a
// crypto.ErrDecryption or a crypto.ErrIncorrectFormatOfDelegationString, and a
// rejection of the contract as a contract error.
func (a *Agent) ProcessReencryptionRequest(ctx context.Context, task contract.ProxyTask) error {
	delegator, err := a.engine.LoadPublicKey(task.DelegatorPubkey)
	if err != nil {
		return xerrors.Errorf("invalid delegator key: %v: %w", err, crypto.ErrDecryption)
	}

	delegatee, err := a.engine.LoadPublicKey(task.DelegateePubkey)
	if err != nil {
		return xerrors.Errorf("invalid delegatee key: %v: %w", err, crypto.ErrDecryption)
	}

	fragment, err := a.engine.Reencrypt(task.Capsule, task.DelegationString, a.key, delegator, delegatee)
	if err != nil {
		return xerrors.Errorf("failed to re-encrypt: %w", err)
	}

	err = a.contract.ProvideReencryptedFragment(ctx, a.signer, task.DataID, task.DelegateePubkey, fragment)
	if err != nil {
		return xerrors.Errorf("failed to provide fragment: %w", err)
	}

	pre.Logger.Info().Str("proxy", a.Address()).Str("data", task.DataID).Msg("fragment provided")

	return nil
}
