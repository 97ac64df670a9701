package native

import (
	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/ledger"
	"golang.org/x/xerrors"
)

func (c *call) getAvailableProxies() (contract.AvailableProxiesResponse, error) {
	resp := contract.AvailableProxiesResponse{Proxies: []contract.ProxyAvailability{}}

	if c.state.Terminated {
		return resp, nil
	}

	addrs, err := c.store.activeProxies()
	if err != nil {
		return resp, xerrors.Errorf("failed to read proxies: %v", err)
	}

	for _, addr := range addrs {
		proxy, err := c.store.proxy(addr)
		if err != nil {
			return resp, err
		}
		if proxy == nil {
			continue
		}

		resp.Proxies = append(resp.Proxies, contract.ProxyAvailability{
			ProxyAddr:   addr,
			ProxyPubkey: proxy.Pubkey,
			StakeAmount: proxy.Stake,
		})
	}

	return resp, nil
}

func (c *call) getDataID(dataID string) (contract.DataIDResponse, error) {
	entry, err := c.store.data(dataID)
	if err != nil {
		return contract.DataIDResponse{}, err
	}

	return contract.DataIDResponse{DataEntry: entry}, nil
}

func (c *call) getFragments(dataID string, delegatee []byte) (contract.FragmentsResponse, error) {
	resp := contract.FragmentsResponse{
		Fragments: [][]byte{},
		Threshold: c.state.Threshold,
	}

	entry, err := c.store.data(dataID)
	if err != nil {
		return resp, err
	}
	if entry == nil {
		return resp, xerrors.New("Data entry doesn't exist")
	}

	resp.Capsule = entry.Capsule

	resp.State, err = c.requestState(dataID, delegatee)
	if err != nil {
		return resp, err
	}

	ids, err := c.store.requestTasks(dataID, delegatee)
	if err != nil {
		return resp, err
	}

	for _, id := range ids {
		task, err := c.store.task(id)
		if err != nil {
			return resp, err
		}

		if task.Fragment != nil {
			resp.Fragments = append(resp.Fragments, task.Fragment)
		}
	}

	return resp, nil
}

func (c *call) getContractState() contract.ContractState {
	return contract.ContractState{
		Admin:      c.state.Admin,
		Threshold:  c.state.Threshold,
		Terminated: c.state.Terminated,
		Withdrawn:  c.state.Withdrawn,
	}
}

// getProxyTasks returns the tasks of the proxy that have not timed out yet.
func (c *call) getProxyTasks(addr string) (contract.ProxyTasksResponse, error) {
	resp := contract.ProxyTasksResponse{ProxyTasks: []contract.ProxyTask{}}

	if c.state.Withdrawn {
		return resp, nil
	}

	ids, err := c.store.queuedTasks(addr)
	if err != nil {
		return resp, err
	}

	for _, id := range ids {
		task, err := c.store.task(id)
		if err != nil {
			return resp, err
		}

		if c.env.Height >= task.TimeoutHeight {
			continue
		}

		entry, err := c.store.data(task.DataID)
		if err != nil {
			return resp, err
		}
		if entry == nil {
			continue
		}

		resp.ProxyTasks = append(resp.ProxyTasks, contract.ProxyTask{
			DataID:           task.DataID,
			Capsule:          entry.Capsule,
			DelegateePubkey:  task.DelegateePubkey,
			DelegatorPubkey:  entry.DelegatorPubkey,
			DelegationString: task.DelegationString,
		})
	}

	return resp, nil
}

func (c *call) getDelegationStatus(delegator, delegatee []byte) (contract.DelegationStatus, error) {
	state, available, err := c.delegationState(delegator, delegatee)
	if err != nil {
		return contract.DelegationStatus{}, err
	}

	status := contract.DelegationStatus{
		State: state,
		TotalRequestRewardAmount: ledger.NewCoin(
			c.cfg.PerProxyTaskRewardAmount*uint64(available), c.cfg.StakeDenom),
	}

	return status, nil
}

func (c *call) getProxyStatus(addr string) (contract.ProxyStatusResponse, error) {
	proxy, err := c.store.proxy(addr)
	if err != nil || proxy == nil {
		return contract.ProxyStatusResponse{}, err
	}

	status := &contract.ProxyStatus{
		ProxyAddr:               addr,
		ProxyPubkey:             proxy.Pubkey,
		StakeAmount:             proxy.Stake,
		WithdrawableStakeAmount: c.withdrawable(proxy),
		State:                   proxy.State,
	}

	return contract.ProxyStatusResponse{ProxyStatus: status}, nil
}
