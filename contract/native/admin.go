package native

import (
	"go.dedis.ch/pre/contract"
	"golang.org/x/xerrors"
)

func (c *call) addProxy(addr string) error {
	err := c.ensureAdmin()
	if err != nil {
		return err
	}

	err = c.ensureNotTerminated()
	if err != nil {
		return err
	}

	proxy, err := c.store.proxy(addr)
	if err != nil {
		return err
	}
	if proxy != nil {
		return xerrors.Errorf("%s is already proxy", addr)
	}

	return c.store.setProxy(addr, &proxyEntry{State: contract.ProxyAuthorised})
}

// removeProxy removes the proxy after abandoning its tasks, and returns its
// stake.
func (c *call) removeProxy(addr string) error {
	err := c.ensureAdmin()
	if err != nil {
		return err
	}

	err = c.ensureNotTerminated()
	if err != nil {
		return err
	}

	proxy, err := c.store.proxy(addr)
	if err != nil {
		return err
	}
	if proxy == nil {
		return xerrors.New("Sender is not a proxy")
	}

	if proxy.Pubkey != nil && proxy.State != contract.ProxyLeaving {
		err = c.deactivate(addr)
		if err != nil {
			return err
		}
	}

	err = c.abandonAllTasks(addr)
	if err != nil {
		return err
	}

	// Abandoning the tasks can slash the proxy.
	proxy, err = c.store.proxy(addr)
	if err != nil {
		return err
	}

	err = c.send(addr, proxy.Stake)
	if err != nil {
		return err
	}

	return c.store.removeProxy(addr)
}

func (c *call) terminateContract() error {
	err := c.ensureAdmin()
	if err != nil {
		return err
	}

	err = c.ensureNotTerminated()
	if err != nil {
		return err
	}

	c.state.Terminated = true
	c.state.TerminateHeight = c.env.Height

	return nil
}

// withdrawContract sends the whole balance of the contract to the recipient
// once the withdrawal period after the termination is over.
func (c *call) withdrawContract(recipient string) error {
	err := c.ensureAdmin()
	if err != nil {
		return err
	}

	if !c.state.Terminated {
		return xerrors.New("Contract not terminated")
	}

	available := c.state.TerminateHeight + c.state.WithdrawalPeriod
	if c.env.Height < available {
		return xerrors.Errorf("Withdrawal will be possible at height %d", available)
	}

	balances, err := c.env.Bank.Balances(c.env.Contract)
	if err != nil {
		return err
	}
	if len(balances) == 0 {
		return xerrors.New("Nothing to withdraw")
	}

	err = c.env.Bank.Send(recipient, balances...)
	if err != nil {
		return xerrors.Errorf("failed to withdraw: %v", err)
	}

	c.state.Withdrawn = true

	return nil
}
