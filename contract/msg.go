package contract

// Code is the name of the contract code registered on the ledger.
const Code = "proxy_reencryption"

// InstantiateMsg is the message that creates a contract. Nil fields take the
// default of the contract.
type InstantiateMsg struct {
	Threshold         *uint32  `json:"threshold,omitempty"`
	Admin             *string  `json:"admin,omitempty"`
	ProxyWhitelisting *bool    `json:"proxy_whitelisting,omitempty"`
	Proxies           []string `json:"proxies,omitempty"`

	StakeDenom               string  `json:"stake_denom"`
	MinimumProxyStakeAmount  *uint64 `json:"minimum_proxy_stake_amount,omitempty"`
	PerProxyTaskRewardAmount *uint64 `json:"per_proxy_task_reward_amount,omitempty"`
	PerTaskSlashStakeAmount  *uint64 `json:"per_task_slash_stake_amount,omitempty"`

	TimeoutHeight    *uint64 `json:"timeout_height,omitempty"`
	WithdrawalPeriod *uint64 `json:"withdrawal_period,omitempty"`
}

// NewInstantiateMsg returns the message of the parameters.
func NewInstantiateMsg(params InstantiateParams) InstantiateMsg {
	msg := InstantiateMsg{
		Proxies:    params.Proxies,
		StakeDenom: params.StakeDenom,
	}

	if params.Threshold > 0 {
		msg.Threshold = &params.Threshold
	}
	if params.Admin != "" {
		msg.Admin = &params.Admin
	}
	if params.ProxyWhitelisting {
		msg.ProxyWhitelisting = &params.ProxyWhitelisting
	}
	if params.MinimumProxyStakeAmount > 0 {
		msg.MinimumProxyStakeAmount = &params.MinimumProxyStakeAmount
	}
	if params.PerProxyTaskRewardAmount > 0 {
		msg.PerProxyTaskRewardAmount = &params.PerProxyTaskRewardAmount
	}
	if params.PerTaskSlashStakeAmount > 0 {
		msg.PerTaskSlashStakeAmount = &params.PerTaskSlashStakeAmount
	}
	if params.TimeoutHeight > 0 {
		msg.TimeoutHeight = &params.TimeoutHeight
	}
	if params.WithdrawalPeriod > 0 {
		msg.WithdrawalPeriod = &params.WithdrawalPeriod
	}

	return msg
}

// Empty is the body of the messages without argument.
type Empty struct{}

// ExecuteMsg is the message of a transaction. Exactly one field is set.
type ExecuteMsg struct {
	AddProxy          *ProxyAddrMsg  `json:"add_proxy,omitempty"`
	RemoveProxy       *ProxyAddrMsg  `json:"remove_proxy,omitempty"`
	TerminateContract *Empty         `json:"terminate_contract,omitempty"`
	WithdrawContract  *WithdrawMsg   `json:"withdraw_contract,omitempty"`
	RegisterProxy     *RegisterMsg   `json:"register_proxy,omitempty"`
	UnregisterProxy   *Empty         `json:"unregister_proxy,omitempty"`
	DeactivateProxy   *Empty         `json:"deactivate_proxy,omitempty"`
	ProvideFragment   *FragmentMsg   `json:"provide_reencrypted_fragment,omitempty"`
	SkipTask          *TaskMsg       `json:"skip_reencryption_task,omitempty"`
	WithdrawStake     *StakeMsg      `json:"withdraw_stake,omitempty"`
	AddStake          *Empty         `json:"add_stake,omitempty"`
	AddData           *AddDataMsg    `json:"add_data,omitempty"`
	RemoveData        *DataMsg       `json:"remove_data,omitempty"`
	AddDelegation     *DelegationMsg `json:"add_delegation,omitempty"`
	RequestReencrypt  *TaskMsg       `json:"request_reencryption,omitempty"`
	ResolveTimedOut   *TaskMsg       `json:"resolve_timed_out_request,omitempty"`
}

// ProxyAddrMsg is the body of the messages about a proxy.
type ProxyAddrMsg struct {
	ProxyAddr string `json:"proxy_addr"`
}

// WithdrawMsg is the body of the withdrawal of the contract.
type WithdrawMsg struct {
	RecipientAddr string `json:"recipient_addr"`
}

// RegisterMsg is the body of the registration of a proxy.
type RegisterMsg struct {
	ProxyPubkey []byte `json:"proxy_pubkey"`
}

// FragmentMsg is the body of a re-encrypted fragment.
type FragmentMsg struct {
	DataID          string `json:"data_id"`
	DelegateePubkey []byte `json:"delegatee_pubkey"`
	Fragment        []byte `json:"fragment"`
}

// TaskMsg is the body of the messages about a re-encryption request.
type TaskMsg struct {
	DataID          string `json:"data_id"`
	DelegateePubkey []byte `json:"delegatee_pubkey"`
}

// StakeMsg is the body of a stake withdrawal. A nil amount withdraws
// everything possible.
type StakeMsg struct {
	StakeAmount *uint64 `json:"stake_amount,omitempty"`
}

// AddDataMsg is the body of a new data.
type AddDataMsg struct {
	DataID          string `json:"data_id"`
	DelegatorPubkey []byte `json:"delegator_pubkey"`
	Capsule         []byte `json:"capsule"`
}

// DataMsg is the body of the messages about a data.
type DataMsg struct {
	DataID string `json:"data_id"`
}

// DelegationMsg is the body of a new delegation.
type DelegationMsg struct {
	DelegatorPubkey  []byte            `json:"delegator_pubkey"`
	DelegateePubkey  []byte            `json:"delegatee_pubkey"`
	ProxyDelegations []ProxyDelegation `json:"proxy_delegations"`
}

// ProxyStake is the stake of a proxy after a request.
type ProxyStake struct {
	ProxyAddr string `json:"proxy_addr"`
	Stake     uint64 `json:"stake"`
}

// StakesResponse is the data of the transactions that change the stake of
// several proxies.
type StakesResponse struct {
	Proxies []ProxyStake `json:"proxies"`
}

// QueryMsg is the message of a query. Exactly one field is set.
type QueryMsg struct {
	GetAvailableProxies *Empty          `json:"get_available_proxies,omitempty"`
	GetDataID           *DataMsg        `json:"get_data_id,omitempty"`
	GetFragments        *TaskMsg        `json:"get_fragments,omitempty"`
	GetContractState    *Empty          `json:"get_contract_state,omitempty"`
	GetStakingConfig    *Empty          `json:"get_staking_config,omitempty"`
	GetProxyTasks       *ProxyAddrMsg   `json:"get_proxy_tasks,omitempty"`
	GetDelegationStatus *DelegationKeys `json:"get_delegation_status,omitempty"`
	GetProxyStatus      *ProxyAddrMsg   `json:"get_proxy_status,omitempty"`
}

// DelegationKeys identifies a delegation.
type DelegationKeys struct {
	DelegatorPubkey []byte `json:"delegator_pubkey"`
	DelegateePubkey []byte `json:"delegatee_pubkey"`
}

// AvailableProxiesResponse is the response of the query of the same name.
type AvailableProxiesResponse struct {
	Proxies []ProxyAvailability `json:"proxies"`
}

// DataIDResponse is the response of the query of a data.
type DataIDResponse struct {
	DataEntry *DataEntry `json:"data_entry"`
}

// ProxyTasksResponse is the response of the query of the tasks of a proxy.
type ProxyTasksResponse struct {
	ProxyTasks []ProxyTask `json:"proxy_tasks"`
}

// ProxyStatusResponse is the response of the query of a proxy.
type ProxyStatusResponse struct {
	ProxyStatus *ProxyStatus `json:"proxy_status"`
}
