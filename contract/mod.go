// Package contract defines the protocol of the re-encryption contract: the
// state machines of the delegations, the re-encryption requests and the proxies,
// the messages understood by the contract and the interfaces of the roles that
// interact with it.
//
// Public keys are exchanged as marshaled bytes of the encryption engine and
// identities on the ledger as addresses.
package contract

import (
	"context"

	"go.dedis.ch/pre/ledger"
	"golang.org/x/xerrors"
)

// DelegationState is the state of the delegation of a delegator to a
// delegatee.
type DelegationState int

const (
	// DelegationNonExisting means that no delegation string was provided.
	DelegationNonExisting DelegationState = iota
	// DelegationWaitingForStrings means that proxies were selected but the
	// delegation strings are not provided yet.
	DelegationWaitingForStrings
	// DelegationActive means that re-encryption can be requested.
	DelegationActive
	// DelegationProxiesAreTooBusy means that not enough proxies of the
	// delegation can accept a task at the moment.
	DelegationProxiesAreTooBusy
)

var delegationStates = []string{
	"non_existing",
	"waiting_for_delegation_strings",
	"active",
	"proxies_are_too_busy",
}

// String implements fmt.Stringer.
func (s DelegationState) String() string {
	return enumString(delegationStates, int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s DelegationState) MarshalText() ([]byte, error) {
	return enumMarshal(delegationStates, int(s))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *DelegationState) UnmarshalText(text []byte) error {
	return enumUnmarshal(delegationStates, text, (*int)(s))
}

// RequestState is the state of a re-encryption request of a data for a
// delegatee.
type RequestState int

const (
	// RequestInaccessible means that nothing was requested.
	RequestInaccessible RequestState = iota
	// RequestReady means that the proxies are working on the request.
	RequestReady
	// RequestGranted means that enough fragments are available to decrypt.
	RequestGranted
	// RequestAbandoned means that a proxy skipped its task. The request must
	// be done again.
	RequestAbandoned
	// RequestTimedOut means that the proxies did not provide enough fragments
	// in time.
	RequestTimedOut
)

var requestStates = []string{
	"inaccessible",
	"ready",
	"granted",
	"abandoned",
	"timed_out",
}

// String implements fmt.Stringer.
func (s RequestState) String() string {
	return enumString(requestStates, int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s RequestState) MarshalText() ([]byte, error) {
	return enumMarshal(requestStates, int(s))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *RequestState) UnmarshalText(text []byte) error {
	return enumUnmarshal(requestStates, text, (*int)(s))
}

// ProxyState is the lifecycle state of a proxy.
type ProxyState int

const (
	// ProxyAuthorised is a proxy allowed to register.
	ProxyAuthorised ProxyState = iota
	// ProxyRegistered is a proxy with stake that accepts tasks.
	ProxyRegistered
	// ProxyLeaving is a deactivated proxy that finishes its pending tasks.
	ProxyLeaving
)

var proxyStates = []string{
	"authorised",
	"registered",
	"leaving",
}

// String implements fmt.Stringer.
func (s ProxyState) String() string {
	return enumString(proxyStates, int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s ProxyState) MarshalText() ([]byte, error) {
	return enumMarshal(proxyStates, int(s))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ProxyState) UnmarshalText(text []byte) error {
	return enumUnmarshal(proxyStates, text, (*int)(s))
}

// ProxyAvailability is a registered proxy that can be selected for a
// delegation.
type ProxyAvailability struct {
	ProxyAddr   string `json:"proxy_addr"`
	ProxyPubkey []byte `json:"proxy_pubkey"`
	StakeAmount uint64 `json:"stake_amount"`
}

// ContractState is the administrative state of the contract.
type ContractState struct {
	Admin      string `json:"admin"`
	Threshold  uint32 `json:"threshold"`
	Terminated bool   `json:"terminated"`
	Withdrawn  bool   `json:"withdrawn"`
}

// StakingConfig is the economic configuration of the contract.
type StakingConfig struct {
	StakeDenom               string `json:"stake_denom"`
	MinimumProxyStakeAmount  uint64 `json:"minimum_proxy_stake_amount"`
	PerProxyTaskRewardAmount uint64 `json:"per_proxy_task_reward_amount"`
	PerTaskSlashStakeAmount  uint64 `json:"per_task_slash_stake_amount"`
}

// DelegationStatus is the state of a delegation and the reward that a
// re-encryption request currently requires.
type DelegationStatus struct {
	State                    DelegationState `json:"delegation_state"`
	TotalRequestRewardAmount ledger.Coin     `json:"total_request_reward_amount"`
}

// ProxyStatus is the state of a proxy.
type ProxyStatus struct {
	ProxyAddr               string     `json:"proxy_addr"`
	ProxyPubkey             []byte     `json:"proxy_pubkey,omitempty"`
	StakeAmount             uint64     `json:"stake_amount"`
	WithdrawableStakeAmount uint64     `json:"withdrawable_stake_amount"`
	State                   ProxyState `json:"proxy_state"`
}

// ProxyTask is a pending re-encryption addressed to a proxy.
type ProxyTask struct {
	DataID           string `json:"data_id"`
	Capsule          []byte `json:"capsule"`
	DelegateePubkey  []byte `json:"delegatee_pubkey"`
	DelegatorPubkey  []byte `json:"delegator_pubkey"`
	DelegationString []byte `json:"delegation_string"`
}

// DataEntry is the public record of a data.
type DataEntry struct {
	DelegatorPubkey []byte `json:"delegator_pubkey"`
	Capsule         []byte `json:"capsule"`
}

// FragmentsResponse is the progress of a re-encryption request.
type FragmentsResponse struct {
	State     RequestState `json:"reencryption_request_state"`
	Capsule   []byte       `json:"capsule"`
	Fragments [][]byte     `json:"fragments"`
	Threshold uint32       `json:"threshold"`
}

// ProxyDelegation is the delegation string addressed to one proxy.
type ProxyDelegation struct {
	ProxyAddr        string `json:"proxy_addr"`
	DelegationString []byte `json:"delegation_string"`
}

// InstantiateParams are the parameters of a new contract. Zero values take the
// default of the contract.
type InstantiateParams struct {
	Admin             string
	Threshold         uint32
	ProxyWhitelisting bool
	Proxies           []string

	StakeDenom               string
	MinimumProxyStakeAmount  uint64
	PerProxyTaskRewardAmount uint64
	PerTaskSlashStakeAmount  uint64

	TimeoutHeight    uint64
	WithdrawalPeriod uint64
}

// Queries are the read-only requests of the contract.
type Queries interface {
	GetAvailableProxies(ctx context.Context) ([]ProxyAvailability, error)

	GetContractState(ctx context.Context) (ContractState, error)

	GetStakingConfig(ctx context.Context) (StakingConfig, error)

	// GetDataEntry returns the entry of the data, or nil if it does not exist.
	GetDataEntry(ctx context.Context, dataID string) (*DataEntry, error)

	GetFragmentsResponse(ctx context.Context, dataID string, delegateePubkey []byte) (FragmentsResponse, error)

	GetDelegationStatus(ctx context.Context, delegatorPubkey, delegateePubkey []byte) (DelegationStatus, error)

	// GetProxyTasks returns the tasks of the proxy that have not timed out.
	GetProxyTasks(ctx context.Context, proxyAddr string) ([]ProxyTask, error)

	// GetProxyStatus returns the status of the proxy, or nil if the address
	// is unknown.
	GetProxyStatus(ctx context.Context, proxyAddr string) (*ProxyStatus, error)
}

// Admin is the role that manages the contract.
type Admin interface {
	Queries

	AddProxy(ctx context.Context, signer ledger.Crypto, proxyAddr string) error

	RemoveProxy(ctx context.Context, signer ledger.Crypto, proxyAddr string) error

	TerminateContract(ctx context.Context, signer ledger.Crypto) error

	WithdrawContract(ctx context.Context, signer ledger.Crypto, recipient string) error
}

// Delegator is the role of the data owners.
type Delegator interface {
	Queries

	AddData(ctx context.Context, signer ledger.Crypto, dataID string, delegatorPubkey, capsule []byte) error

	RemoveData(ctx context.Context, signer ledger.Crypto, dataID string) error

	AddDelegations(ctx context.Context, signer ledger.Crypto, delegatorPubkey, delegateePubkey []byte,
		delegations []ProxyDelegation) error

	RequestReencryption(ctx context.Context, signer ledger.Crypto, dataID string, delegateePubkey []byte,
		reward ledger.Coin) error

	// ResolveTimedOutRequest refunds the unfinished tasks of a timed out
	// request.
	ResolveTimedOutRequest(ctx context.Context, signer ledger.Crypto, dataID string, delegateePubkey []byte) error
}

// Proxy is the role of the re-encryption proxies.
type Proxy interface {
	Queries

	// ProxyRegister registers the proxy with the stake. The stake can be
	// omitted to reactivate a leaving proxy.
	ProxyRegister(ctx context.Context, signer ledger.Crypto, proxyPubkey []byte, stake ...ledger.Coin) error

	ProxyDeactivate(ctx context.Context, signer ledger.Crypto) error

	ProxyUnregister(ctx context.Context, signer ledger.Crypto) error

	ProvideReencryptedFragment(ctx context.Context, signer ledger.Crypto, dataID string,
		delegateePubkey, fragment []byte) error

	SkipReencryptionTask(ctx context.Context, signer ledger.Crypto, dataID string, delegateePubkey []byte) error

	// WithdrawStake withdraws up to the amount, or everything that can be
	// withdrawn if it is nil.
	WithdrawStake(ctx context.Context, signer ledger.Crypto, amount *uint64) error

	AddStake(ctx context.Context, signer ledger.Crypto, stake ledger.Coin) error
}

func enumString(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return "unknown"
	}

	return names[v]
}

func enumMarshal(names []string, v int) ([]byte, error) {
	if v < 0 || v >= len(names) {
		return nil, xerrors.Errorf("invalid state %d", v)
	}

	return []byte(names[v]), nil
}

func enumUnmarshal(names []string, text []byte, v *int) error {
	for i, name := range names {
		if name == string(text) {
			*v = i
			return nil
		}
	}

	return xerrors.Errorf("unknown state '%s'", text)
}
