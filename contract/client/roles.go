package client

import (
	"context"

	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/ledger"
)

// Queries

// GetAvailableProxies implements contract.Queries.
func (c *Client) GetAvailableProxies(ctx context.Context) ([]contract.ProxyAvailability, error) {
	var resp contract.AvailableProxiesResponse

	err := c.query(ctx, contract.QueryMsg{GetAvailableProxies: &contract.Empty{}}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.Proxies, nil
}

// GetContractState implements contract.Queries.
func (c *Client) GetContractState(ctx context.Context) (contract.ContractState, error) {
	var resp contract.ContractState

	err := c.query(ctx, contract.QueryMsg{GetContractState: &contract.Empty{}}, &resp)

	return resp, err
}

// GetStakingConfig implements contract.Queries.
func (c *Client) GetStakingConfig(ctx context.Context) (contract.StakingConfig, error) {
	var resp contract.StakingConfig

	err := c.query(ctx, contract.QueryMsg{GetStakingConfig: &contract.Empty{}}, &resp)

	return resp, err
}

// GetDataEntry implements contract.Queries.
func (c *Client) GetDataEntry(ctx context.Context, dataID string) (*contract.DataEntry, error) {
	var resp contract.DataIDResponse

	err := c.query(ctx, contract.QueryMsg{GetDataID: &contract.DataMsg{DataID: dataID}}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.DataEntry, nil
}

// GetFragmentsResponse implements contract.Queries.
func (c *Client) GetFragmentsResponse(ctx context.Context, dataID string,
	delegateePubkey []byte) (contract.FragmentsResponse, error) {

	var resp contract.FragmentsResponse

	msg := contract.QueryMsg{GetFragments: &contract.TaskMsg{
		DataID:          dataID,
		DelegateePubkey: delegateePubkey,
	}}

	err := c.query(ctx, msg, &resp)

	return resp, err
}

// GetDelegationStatus implements contract.Queries.
func (c *Client) GetDelegationStatus(ctx context.Context, delegatorPubkey,
	delegateePubkey []byte) (contract.DelegationStatus, error) {

	var resp contract.DelegationStatus

	msg := contract.QueryMsg{GetDelegationStatus: &contract.DelegationKeys{
		DelegatorPubkey: delegatorPubkey,
		DelegateePubkey: delegateePubkey,
	}}

	err := c.query(ctx, msg, &resp)

	return resp, err
}

// GetProxyTasks implements contract.Queries.
func (c *Client) GetProxyTasks(ctx context.Context, proxyAddr string) ([]contract.ProxyTask, error) {
	var resp contract.ProxyTasksResponse

	err := c.query(ctx, contract.QueryMsg{GetProxyTasks: &contract.ProxyAddrMsg{ProxyAddr: proxyAddr}}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.ProxyTasks, nil
}

// GetProxyStatus implements contract.Queries.
func (c *Client) GetProxyStatus(ctx context.Context, proxyAddr string) (*contract.ProxyStatus, error) {
	var resp contract.ProxyStatusResponse

	err := c.query(ctx, contract.QueryMsg{GetProxyStatus: &contract.ProxyAddrMsg{ProxyAddr: proxyAddr}}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.ProxyStatus, nil
}

// Admin

// AddProxy implements contract.Admin.
func (c *Client) AddProxy(ctx context.Context, signer ledger.Crypto, proxyAddr string) error {
	_, err := c.execute(ctx, signer, contract.ExecuteMsg{
		AddProxy: &contract.ProxyAddrMsg{ProxyAddr: proxyAddr},
	})

	return err
}

// RemoveProxy implements contract.Admin.
func (c *Client) RemoveProxy(ctx context.Context, signer ledger.Crypto, proxyAddr string) error {
	_, err := c.execute(ctx, signer, contract.ExecuteMsg{
		RemoveProxy: &contract.ProxyAddrMsg{ProxyAddr: proxyAddr},
	})

	return err
}

// TerminateContract implements contract.Admin.
func (c *Client) TerminateContract(ctx context.Context, signer ledger.Crypto) error {
	_, err := c.execute(ctx, signer, contract.ExecuteMsg{TerminateContract: &contract.Empty{}})

	return err
}

// WithdrawContract implements contract.Admin.
func (c *Client) WithdrawContract(ctx context.Context, signer ledger.Crypto, recipient string) error {
	_, err := c.execute(ctx, signer, contract.ExecuteMsg{
		WithdrawContract: &contract.WithdrawMsg{RecipientAddr: recipient},
	})

	return err
}

// Delegator

// AddData implements contract.Delegator.
func (c *Client) AddData(ctx context.Context, signer ledger.Crypto, dataID string,
	delegatorPubkey, capsule []byte) error {

	_, err := c.execute(ctx, signer, contract.ExecuteMsg{AddData: &contract.AddDataMsg{
		DataID:          dataID,
		DelegatorPubkey: delegatorPubkey,
		Capsule:         capsule,
	}})

	return err
}

// RemoveData implements contract.Delegator.
func (c *Client) RemoveData(ctx context.Context, signer ledger.Crypto, dataID string) error {
	_, err := c.execute(ctx, signer, contract.ExecuteMsg{
		RemoveData: &contract.DataMsg{DataID: dataID},
	})

	return err
}

// AddDelegations implements contract.Delegator.
func (c *Client) AddDelegations(ctx context.Context, signer ledger.Crypto, delegatorPubkey,
	delegateePubkey []byte, delegations []contract.ProxyDelegation) error {

	_, err := c.execute(ctx, signer, contract.ExecuteMsg{AddDelegation: &contract.DelegationMsg{
		DelegatorPubkey:  delegatorPubkey,
		DelegateePubkey:  delegateePubkey,
		ProxyDelegations: delegations,
	}})

	return err
}

// RequestReencryption implements contract.Delegator.
func (c *Client) RequestReencryption(ctx context.Context, signer ledger.Crypto, dataID string,
	delegateePubkey []byte, reward ledger.Coin) error {

	msg := contract.ExecuteMsg{RequestReencrypt: &contract.TaskMsg{
		DataID:          dataID,
		DelegateePubkey: delegateePubkey,
	}}

	_, err := c.execute(ctx, signer, msg, reward)

	return err
}

// ResolveTimedOutRequest implements contract.Delegator.
func (c *Client) ResolveTimedOutRequest(ctx context.Context, signer ledger.Crypto, dataID string,
	delegateePubkey []byte) error {

	_, err := c.execute(ctx, signer, contract.ExecuteMsg{ResolveTimedOut: &contract.TaskMsg{
		DataID:          dataID,
		DelegateePubkey: delegateePubkey,
	}})

	return err
}

// Proxy

// ProxyRegister implements contract.Proxy.
func (c *Client) ProxyRegister(ctx context.Context, signer ledger.Crypto, proxyPubkey []byte,
	stake ...ledger.Coin) error {

	msg := contract.ExecuteMsg{RegisterProxy: &contract.RegisterMsg{ProxyPubkey: proxyPubkey}}

	_, err := c.execute(ctx, signer, msg, stake...)

	return err
}

// ProxyDeactivate implements contract.Proxy.
func (c *Client) ProxyDeactivate(ctx context.Context, signer ledger.Crypto) error {
	_, err := c.execute(ctx, signer, contract.ExecuteMsg{DeactivateProxy: &contract.Empty{}})

	return err
}

// ProxyUnregister implements contract.Proxy.
func (c *Client) ProxyUnregister(ctx context.Context, signer ledger.Crypto) error {
	_, err := c.execute(ctx, signer, contract.ExecuteMsg{UnregisterProxy: &contract.Empty{}})

	return err
}

// ProvideReencryptedFragment implements contract.Proxy.
func (c *Client) ProvideReencryptedFragment(ctx context.Context, signer ledger.Crypto, dataID string,
	delegateePubkey, fragment []byte) error {

	_, err := c.execute(ctx, signer, contract.ExecuteMsg{ProvideFragment: &contract.FragmentMsg{
		DataID:          dataID,
		DelegateePubkey: delegateePubkey,
		Fragment:        fragment,
	}})

	return err
}

// SkipReencryptionTask implements contract.Proxy.
func (c *Client) SkipReencryptionTask(ctx context.Context, signer ledger.Crypto, dataID string,
	delegateePubkey []byte) error {

	_, err := c.execute(ctx, signer, contract.ExecuteMsg{SkipTask: &contract.TaskMsg{
		DataID:          dataID,
		DelegateePubkey: delegateePubkey,
	}})

	return err
}

// WithdrawStake implements contract.Proxy.
func (c *Client) WithdrawStake(ctx context.Context, signer ledger.Crypto, amount *uint64) error {
	_, err := c.execute(ctx, signer, contract.ExecuteMsg{
		WithdrawStake: &contract.StakeMsg{StakeAmount: amount},
	})

	return err
}

// AddStake implements contract.Proxy.
func (c *Client) AddStake(ctx context.Context, signer ledger.Crypto, stake ledger.Coin) error {
	_, err := c.execute(ctx, signer, contract.ExecuteMsg{AddStake: &contract.Empty{}}, stake)

	return err
}
