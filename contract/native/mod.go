// Package native implements the re-encryption contract as a native contract
// of the local ledger.
//
// The state is kept in the private storage of the contract as JSON documents
// indexed by prefixed namespaces. Every failure is a plain message that the
// ledger reports in the log of the rejected transaction.
package native

import (
	"encoding/json"

	"go.dedis.ch/pre"
	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/ledger"
	"go.dedis.ch/pre/ledger/local"
	"golang.org/x/xerrors"
)

// Default parameters of an instance.
const (
	DefaultThreshold                = 1
	DefaultMinimumProxyStakeAmount  = 1000
	DefaultPerProxyTaskRewardAmount = 100
	DefaultPerTaskSlashStakeAmount  = 100
	DefaultTimeoutHeight            = 50
	DefaultWithdrawalPeriod         = 500
)

// Contract is the re-encryption contract.
//
// - implements local.Contract
type Contract struct{}

// NewContract returns a new instance of the contract.
func NewContract() Contract {
	return Contract{}
}

// Instantiate implements local.Contract. It stores the parameters of the
// message, or their default.
func (Contract) Instantiate(env local.Env, data []byte) error {
	var msg contract.InstantiateMsg

	err := json.Unmarshal(data, &msg)
	if err != nil {
		return xerrors.Errorf("failed to decode message: %v", err)
	}

	st := &stateEntry{
		Admin:            env.Sender,
		Threshold:        DefaultThreshold,
		TimeoutHeight:    DefaultTimeoutHeight,
		WithdrawalPeriod: DefaultWithdrawalPeriod,
	}

	if msg.Admin != nil {
		st.Admin = *msg.Admin
	}
	if msg.Threshold != nil {
		if *msg.Threshold == 0 {
			return xerrors.New("Threshold cannot be 0")
		}

		st.Threshold = *msg.Threshold
	}
	if msg.ProxyWhitelisting != nil {
		st.ProxyWhitelisting = *msg.ProxyWhitelisting
	}
	if msg.TimeoutHeight != nil {
		st.TimeoutHeight = *msg.TimeoutHeight
	}
	if msg.WithdrawalPeriod != nil {
		st.WithdrawalPeriod = *msg.WithdrawalPeriod
	}

	if msg.StakeDenom == "" {
		return xerrors.New("Stake denom cannot be empty")
	}

	cfg := contract.StakingConfig{
		StakeDenom:               msg.StakeDenom,
		MinimumProxyStakeAmount:  optional(msg.MinimumProxyStakeAmount, DefaultMinimumProxyStakeAmount),
		PerProxyTaskRewardAmount: optional(msg.PerProxyTaskRewardAmount, DefaultPerProxyTaskRewardAmount),
		PerTaskSlashStakeAmount:  optional(msg.PerTaskSlashStakeAmount, DefaultPerTaskSlashStakeAmount),
	}

	s := storage{root: env.Store}

	for _, addr := range msg.Proxies {
		err = s.setProxy(addr, &proxyEntry{State: contract.ProxyAuthorised})
		if err != nil {
			return xerrors.Errorf("failed to store proxy: %v", err)
		}
	}

	err = s.setStaking(cfg)
	if err != nil {
		return xerrors.Errorf("failed to store staking config: %v", err)
	}

	err = s.setState(st)
	if err != nil {
		return xerrors.Errorf("failed to store state: %v", err)
	}

	return nil
}

// Execute implements local.Contract.
func (Contract) Execute(env local.Env, data []byte) ([]byte, error) {
	var msg contract.ExecuteMsg

	err := json.Unmarshal(data, &msg)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode message: %v", err)
	}

	c, err := newCall(env)
	if err != nil {
		return nil, err
	}

	action, resp, err := c.execute(msg)
	if err != nil {
		return nil, err
	}

	err = c.store.setState(c.state)
	if err != nil {
		return nil, xerrors.Errorf("failed to store state: %v", err)
	}

	pre.Logger.Trace().
		Str("action", action).
		Str("sender", env.Sender).
		Uint64("height", env.Height).
		Msg("contract executed")

	if resp == nil {
		return nil, nil
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode response: %v", err)
	}

	return out, nil
}

func (c *call) execute(msg contract.ExecuteMsg) (string, interface{}, error) {
	switch {
	case msg.AddProxy != nil:
		return "add_proxy", nil, c.addProxy(msg.AddProxy.ProxyAddr)
	case msg.RemoveProxy != nil:
		return "remove_proxy", nil, c.removeProxy(msg.RemoveProxy.ProxyAddr)
	case msg.TerminateContract != nil:
		return "terminate_contract", nil, c.terminateContract()
	case msg.WithdrawContract != nil:
		return "withdraw_contract", nil, c.withdrawContract(msg.WithdrawContract.RecipientAddr)
	case msg.RegisterProxy != nil:
		return "register_proxy", nil, c.registerProxy(msg.RegisterProxy.ProxyPubkey)
	case msg.UnregisterProxy != nil:
		return "unregister_proxy", nil, c.unregisterProxy()
	case msg.DeactivateProxy != nil:
		return "deactivate_proxy", nil, c.deactivateProxy()
	case msg.ProvideFragment != nil:
		m := msg.ProvideFragment
		return "provide_reencrypted_fragment", nil, c.provideFragment(m.DataID, m.DelegateePubkey, m.Fragment)
	case msg.SkipTask != nil:
		return "skip_reencryption_task", nil, c.skipTask(msg.SkipTask.DataID, msg.SkipTask.DelegateePubkey)
	case msg.WithdrawStake != nil:
		return "withdraw_stake", nil, c.withdrawStake(msg.WithdrawStake.StakeAmount)
	case msg.AddStake != nil:
		return "add_stake", nil, c.addStake()
	case msg.AddData != nil:
		m := msg.AddData
		return "add_data", nil, c.addData(m.DataID, m.DelegatorPubkey, m.Capsule)
	case msg.RemoveData != nil:
		resp, err := c.removeData(msg.RemoveData.DataID)
		return "remove_data", resp, err
	case msg.AddDelegation != nil:
		m := msg.AddDelegation
		return "add_delegation", nil, c.addDelegation(m.DelegatorPubkey, m.DelegateePubkey, m.ProxyDelegations)
	case msg.RequestReencrypt != nil:
		m := msg.RequestReencrypt
		resp, err := c.requestReencryption(m.DataID, m.DelegateePubkey)
		return "request_reencryption", resp, err
	case msg.ResolveTimedOut != nil:
		m := msg.ResolveTimedOut
		return "resolve_timed_out_request", nil, c.resolveTimedOutRequest(m.DataID, m.DelegateePubkey)
	default:
		return "", nil, xerrors.New("unknown message")
	}
}

// Query implements local.Contract.
func (Contract) Query(env local.Env, data []byte) ([]byte, error) {
	var msg contract.QueryMsg

	err := json.Unmarshal(data, &msg)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode message: %v", err)
	}

	c, err := newCall(env)
	if err != nil {
		return nil, err
	}

	resp, err := c.query(msg)
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode response: %v", err)
	}

	return out, nil
}

func (c *call) query(msg contract.QueryMsg) (interface{}, error) {
	switch {
	case msg.GetAvailableProxies != nil:
		return c.getAvailableProxies()
	case msg.GetDataID != nil:
		return c.getDataID(msg.GetDataID.DataID)
	case msg.GetFragments != nil:
		return c.getFragments(msg.GetFragments.DataID, msg.GetFragments.DelegateePubkey)
	case msg.GetContractState != nil:
		return c.getContractState(), nil
	case msg.GetStakingConfig != nil:
		return c.cfg, nil
	case msg.GetProxyTasks != nil:
		return c.getProxyTasks(msg.GetProxyTasks.ProxyAddr)
	case msg.GetDelegationStatus != nil:
		m := msg.GetDelegationStatus
		return c.getDelegationStatus(m.DelegatorPubkey, m.DelegateePubkey)
	case msg.GetProxyStatus != nil:
		return c.getProxyStatus(msg.GetProxyStatus.ProxyAddr)
	default:
		return nil, xerrors.New("unknown query")
	}
}

// call is the context of a single execution or query.
type call struct {
	env   local.Env
	store storage
	state *stateEntry
	cfg   contract.StakingConfig
}

func newCall(env local.Env) (*call, error) {
	s := storage{root: env.Store}

	st, err := s.state()
	if err != nil {
		return nil, xerrors.Errorf("failed to read state: %v", err)
	}

	cfg, err := s.staking()
	if err != nil {
		return nil, xerrors.Errorf("failed to read staking config: %v", err)
	}

	c := &call{
		env:   env,
		store: s,
		state: st,
		cfg:   cfg,
	}

	return c, nil
}

func (c *call) ensureAdmin() error {
	if c.env.Sender != c.state.Admin {
		return xerrors.New("Only admin can execute this method.")
	}

	return nil
}

func (c *call) ensureNotTerminated() error {
	if c.state.Terminated {
		return xerrors.New("Contract was terminated.")
	}

	return nil
}

func (c *call) ensureNotWithdrawn() error {
	if c.state.Withdrawn {
		return xerrors.New("Remaining balances from contract were already withdrawn.")
	}

	return nil
}

// ensureStake returns the amount of the funds if they are made of a single
// coin of the stake denomination with at least the required amount.
func (c *call) ensureStake(required uint64) (uint64, error) {
	denom := c.cfg.StakeDenom

	if len(c.env.Funds) != 1 || c.env.Funds[0].Denom != denom {
		return 0, xerrors.Errorf("Expected 1 Coin with denom %s", denom)
	}

	amount := c.env.Funds[0].Amount
	if amount < required {
		return 0, xerrors.Errorf("Requires at least %d %s.", required, denom)
	}

	return amount, nil
}

// send transfers the amount of the stake denomination from the contract.
func (c *call) send(to string, amount uint64) error {
	if amount == 0 {
		return nil
	}

	err := c.env.Bank.Send(to, ledger.NewCoin(amount, c.cfg.StakeDenom))
	if err != nil {
		return xerrors.Errorf("failed to send %d%s to %s: %v", amount, c.cfg.StakeDenom, to, err)
	}

	return nil
}

func optional(v *uint64, def uint64) uint64 {
	if v == nil {
		return def
	}

	return *v
}
