package native

import (
	"go.dedis.ch/pre/contract"
	"golang.org/x/xerrors"
)

func (c *call) addData(dataID string, delegator, capsule []byte) error {
	err := c.ensureNotTerminated()
	if err != nil {
		return err
	}

	entry, err := c.store.data(dataID)
	if err != nil {
		return err
	}
	if entry != nil {
		return xerrors.Errorf("Entry with ID %s already exist.", dataID)
	}

	err = c.ensureDelegator(delegator)
	if err != nil {
		return err
	}

	return c.store.setData(dataID, &contract.DataEntry{
		DelegatorPubkey: delegator,
		Capsule:         capsule,
	})
}

// removeData removes the data and every task of it. The unfinished tasks are
// refunded and their proxies get the slashed stake back.
func (c *call) removeData(dataID string) (*contract.StakesResponse, error) {
	err := c.ensureNotTerminated()
	if err != nil {
		return nil, err
	}

	entry, err := c.store.data(dataID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, xerrors.Errorf("Entry with ID %s does not exist.", dataID)
	}

	err = c.ensureDelegator(entry.DelegatorPubkey)
	if err != nil {
		return nil, err
	}

	ids, err := c.store.dataTasks(dataID)
	if err != nil {
		return nil, err
	}

	var credited []string

	for _, id := range ids {
		task, err := c.store.task(id)
		if err != nil {
			return nil, err
		}

		if !task.Resolved && task.Fragment == nil {
			err = c.send(task.RefundAddr, c.cfg.PerProxyTaskRewardAmount)
			if err != nil {
				return nil, err
			}

			err = c.credit(task.ProxyAddr, c.cfg.PerTaskSlashStakeAmount)
			if err != nil {
				return nil, err
			}

			credited = append(credited, task.ProxyAddr)
		}

		err = c.store.deleteTask(id, task)
		if err != nil {
			return nil, xerrors.Errorf("failed to remove task: %v", err)
		}
	}

	err = c.store.removeData(dataID)
	if err != nil {
		return nil, err
	}

	return c.stakes(credited)
}

// ensureDelegator binds the public key to the sender on its first use.
func (c *call) ensureDelegator(pubkey []byte) error {
	addr := c.store.delegatorAddr(pubkey)

	if addr == "" {
		return c.store.setDelegatorAddr(pubkey, c.env.Sender)
	}

	if addr != c.env.Sender {
		return xerrors.Errorf("Delegator %s already registered with this pubkey.", c.env.Sender)
	}

	return nil
}

// addDelegation stores the delegation strings of the delegator for the
// delegatee, one per proxy.
func (c *call) addDelegation(delegator, delegatee []byte, delegations []contract.ProxyDelegation) error {
	err := c.ensureDelegator(delegator)
	if err != nil {
		return err
	}

	err = c.ensureNotTerminated()
	if err != nil {
		return err
	}

	proxies, err := c.store.delegationProxies(delegator, delegatee)
	if err != nil {
		return err
	}
	if len(proxies) > 0 {
		return xerrors.New("Delegation already exists.")
	}

	if len(delegations) < int(c.state.Threshold) {
		return xerrors.Errorf("Required at least %d proxies.", c.state.Threshold)
	}

	for _, d := range delegations {
		proxy, err := c.store.proxy(d.ProxyAddr)
		if err != nil {
			return err
		}
		if proxy == nil {
			return xerrors.Errorf("Unknown proxy with address %s", d.ProxyAddr)
		}
		if proxy.Pubkey == nil || !c.store.isActive(d.ProxyAddr) {
			return xerrors.Errorf("Unregistered proxy with address %s", d.ProxyAddr)
		}

		_, found := c.store.delegationID(delegator, delegatee, d.ProxyAddr)
		if found {
			return xerrors.Errorf("Delegation string was already provided for proxy %s.", d.ProxyAddr)
		}

		entry := &delegationEntry{
			DelegatorPubkey:  delegator,
			DelegateePubkey:  delegatee,
			DelegationString: d.DelegationString,
		}

		err = c.store.addDelegation(c.state.NextDelegationID, d.ProxyAddr, entry)
		if err != nil {
			return xerrors.Errorf("failed to store delegation: %v", err)
		}

		c.state.NextDelegationID++
	}

	return nil
}

// requestReencryption creates a task for every available proxy of the
// delegation. A request that was abandoned or that timed out is replaced.
func (c *call) requestReencryption(dataID string, delegatee []byte) (*contract.StakesResponse, error) {
	err := c.ensureNotTerminated()
	if err != nil {
		return nil, err
	}

	entry, err := c.store.data(dataID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, xerrors.New("Data entry doesn't exist.")
	}

	delegatorAddr := c.store.delegatorAddr(entry.DelegatorPubkey)
	if delegatorAddr == "" {
		return nil, xerrors.New("Invalid delegator pubkey.")
	}

	proxies, err := c.store.delegationProxies(entry.DelegatorPubkey, delegatee)
	if err != nil {
		return nil, err
	}
	if len(proxies) == 0 {
		return nil, xerrors.New("ProxyDelegation doesn't exist.")
	}

	if c.env.Sender != delegatorAddr {
		return nil, xerrors.New("Reencryption is not permitted.")
	}

	available, err := c.availableProxies(proxies)
	if err != nil {
		return nil, err
	}

	if len(available) < int(c.state.Threshold) {
		return nil, xerrors.Errorf("Proxies are too busy, try again later. "+
			"Available %d proxies out of %d, minimum is %d",
			len(available), len(proxies), c.state.Threshold)
	}

	state, err := c.requestState(dataID, delegatee)
	if err != nil {
		return nil, err
	}

	switch state {
	case contract.RequestInaccessible:
	case contract.RequestAbandoned, contract.RequestTimedOut:
		err = c.purgeRequest(dataID, delegatee)
		if err != nil {
			return nil, err
		}
	default:
		return nil, xerrors.New("Reencryption already requested")
	}

	required := c.cfg.PerProxyTaskRewardAmount * uint64(len(available))

	amount, err := c.ensureStake(required)
	if err != nil {
		return nil, err
	}

	for _, addr := range available {
		proxy, err := c.store.proxy(addr)
		if err != nil {
			return nil, err
		}

		proxy.Stake -= c.cfg.PerTaskSlashStakeAmount

		err = c.store.setProxy(addr, proxy)
		if err != nil {
			return nil, err
		}

		id, _ := c.store.delegationID(entry.DelegatorPubkey, delegatee, addr)

		delegation, err := c.store.delegation(id)
		if err != nil {
			return nil, err
		}
		if delegation == nil {
			return nil, xerrors.Errorf("missing delegation of proxy %s", addr)
		}

		task := &taskEntry{
			DelegateePubkey:  delegatee,
			DataID:           dataID,
			ProxyAddr:        addr,
			DelegationString: delegation.DelegationString,
			TimeoutHeight:    c.env.Height + c.state.TimeoutHeight,
			RefundAddr:       c.env.Sender,
		}

		err = c.store.addTask(c.state.NextProxyTaskID, task)
		if err != nil {
			return nil, xerrors.Errorf("failed to store task: %v", err)
		}

		c.state.NextProxyTaskID++
	}

	err = c.send(c.env.Sender, amount-required)
	if err != nil {
		return nil, err
	}

	return c.stakes(available)
}

// purgeRequest removes every task of the request. The tasks still pending are
// resolved as timed out beforehand.
func (c *call) purgeRequest(dataID string, delegatee []byte) error {
	ids, err := c.store.requestTasks(dataID, delegatee)
	if err != nil {
		return err
	}

	for _, id := range ids {
		task, err := c.store.task(id)
		if err != nil {
			return err
		}

		if !task.Resolved && task.Fragment == nil {
			err = c.timeoutTask(id, task)
			if err != nil {
				return err
			}
		}

		err = c.store.deleteTask(id, task)
		if err != nil {
			return xerrors.Errorf("failed to remove task: %v", err)
		}
	}

	return nil
}

// availableProxies returns the active proxies with enough stake to be
// slashed.
func (c *call) availableProxies(proxies []string) ([]string, error) {
	var available []string

	for _, addr := range proxies {
		if !c.store.isActive(addr) {
			continue
		}

		proxy, err := c.store.proxy(addr)
		if err != nil {
			return nil, err
		}

		if proxy != nil && proxy.Stake >= c.cfg.PerTaskSlashStakeAmount {
			available = append(available, addr)
		}
	}

	return available, nil
}

func (c *call) delegationState(delegator, delegatee []byte) (contract.DelegationState, int, error) {
	proxies, err := c.store.delegationProxies(delegator, delegatee)
	if err != nil {
		return 0, 0, err
	}

	if len(proxies) == 0 {
		return contract.DelegationNonExisting, 0, nil
	}

	available, err := c.availableProxies(proxies)
	if err != nil {
		return 0, 0, err
	}

	if len(available) < int(c.state.Threshold) {
		return contract.DelegationProxiesAreTooBusy, len(available), nil
	}

	return contract.DelegationActive, len(available), nil
}

func (c *call) requestState(dataID string, delegatee []byte) (contract.RequestState, error) {
	ids, err := c.store.requestTasks(dataID, delegatee)
	if err != nil {
		return 0, err
	}

	if len(ids) == 0 {
		return contract.RequestInaccessible, nil
	}

	var fragments uint32
	abandoned := false
	timedOut := false

	for _, id := range ids {
		task, err := c.store.task(id)
		if err != nil {
			return 0, err
		}

		if task.Fragment != nil {
			fragments++
		}

		abandoned = abandoned || task.Abandoned
		timedOut = timedOut || c.env.Height >= task.TimeoutHeight
	}

	switch {
	case fragments >= c.state.Threshold:
		return contract.RequestGranted, nil
	case abandoned:
		return contract.RequestAbandoned, nil
	case timedOut:
		return contract.RequestTimedOut, nil
	default:
		return contract.RequestReady, nil
	}
}

func (c *call) stakes(addrs []string) (*contract.StakesResponse, error) {
	resp := &contract.StakesResponse{Proxies: []contract.ProxyStake{}}

	for _, addr := range addrs {
		proxy, err := c.store.proxy(addr)
		if err != nil {
			return nil, err
		}
		if proxy == nil {
			continue
		}

		resp.Proxies = append(resp.Proxies, contract.ProxyStake{
			ProxyAddr: addr,
			Stake:     proxy.Stake,
		})
	}

	return resp, nil
}
