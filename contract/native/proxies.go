package native

import (
	"bytes"

	"go.dedis.ch/pre/contract"
	"golang.org/x/xerrors"
)

// registerProxy registers the sender with the public key and the attached
// stake. A leaving proxy is reactivated with the same key, in which case the
// stake is optional.
func (c *call) registerProxy(pubkey []byte) error {
	err := c.ensureNotTerminated()
	if err != nil {
		return err
	}

	addr := c.env.Sender

	proxy, err := c.store.proxy(addr)
	if err != nil {
		return err
	}

	if proxy == nil {
		if c.state.ProxyWhitelisting {
			return xerrors.New("Sender is not a proxy")
		}

		proxy = &proxyEntry{State: contract.ProxyAuthorised}
	}

	var amount uint64

	if proxy.Pubkey != nil {
		if proxy.State == contract.ProxyRegistered {
			return xerrors.New("Proxy already registered.")
		}

		if !bytes.Equal(proxy.Pubkey, pubkey) {
			return xerrors.New("Proxy need to be unregistered to use a different public key.")
		}

		if len(c.env.Funds) > 0 {
			amount, err = c.ensureStake(0)
			if err != nil {
				return err
			}
		}

		if proxy.Stake+amount < c.cfg.MinimumProxyStakeAmount {
			return xerrors.Errorf("Requires at least %d %s.",
				c.cfg.MinimumProxyStakeAmount-proxy.Stake, c.cfg.StakeDenom)
		}
	} else {
		if len(pubkey) == 0 {
			return xerrors.New("Proxy pubkey cannot be empty.")
		}

		amount, err = c.ensureStake(c.cfg.MinimumProxyStakeAmount)
		if err != nil {
			return err
		}

		proxy.Pubkey = pubkey
	}

	proxy.State = contract.ProxyRegistered
	proxy.Stake += amount

	err = c.store.setProxy(addr, proxy)
	if err != nil {
		return err
	}

	return c.store.setActive(addr, true)
}

// unregisterProxy abandons the tasks of the sender and returns its whole stake.
// The proxy can register again with a different key afterwards.
func (c *call) unregisterProxy() error {
	err := c.ensureNotWithdrawn()
	if err != nil {
		return err
	}

	addr := c.env.Sender

	proxy, err := c.store.proxy(addr)
	if err != nil {
		return err
	}
	if proxy == nil {
		return xerrors.New("Sender is not a proxy")
	}
	if proxy.Pubkey == nil {
		return xerrors.New("Proxy already unregistered")
	}

	if proxy.State != contract.ProxyLeaving {
		err = c.deactivate(addr)
		if err != nil {
			return err
		}
	}

	err = c.abandonAllTasks(addr)
	if err != nil {
		return err
	}

	proxy, err = c.store.proxy(addr)
	if err != nil {
		return err
	}

	err = c.send(addr, proxy.Stake)
	if err != nil {
		return err
	}

	return c.store.setProxy(addr, &proxyEntry{State: contract.ProxyAuthorised})
}

// deactivateProxy stops the assignment of new tasks to the sender. The pending
// tasks can still be completed.
func (c *call) deactivateProxy() error {
	err := c.ensureNotWithdrawn()
	if err != nil {
		return err
	}

	addr := c.env.Sender

	proxy, err := c.store.proxy(addr)
	if err != nil {
		return err
	}
	if proxy == nil {
		return xerrors.New("Sender is not a proxy")
	}
	if proxy.State != contract.ProxyRegistered {
		return xerrors.New("Proxy already deactivated")
	}

	err = c.deactivate(addr)
	if err != nil {
		return err
	}

	proxy.State = contract.ProxyLeaving

	return c.store.setProxy(addr, proxy)
}

func (c *call) deactivate(addr string) error {
	err := c.store.setActive(addr, false)
	if err != nil {
		return err
	}

	err = c.store.removeProxyFromDelegations(addr)
	if err != nil {
		return xerrors.Errorf("failed to remove delegations: %v", err)
	}

	return nil
}

// withdrawStake sends up to the amount of the stake above the minimum, or all
// of it when the amount is nil.
func (c *call) withdrawStake(amount *uint64) error {
	err := c.ensureNotWithdrawn()
	if err != nil {
		return err
	}

	addr := c.env.Sender

	proxy, err := c.store.proxy(addr)
	if err != nil {
		return err
	}
	if proxy == nil {
		return xerrors.New("Sender is not a proxy")
	}

	max := c.withdrawable(proxy)
	if max == 0 {
		return xerrors.New("Not enough stake to withdraw")
	}

	value := max
	if amount != nil && *amount < max {
		value = *amount
	}

	proxy.Stake -= value

	err = c.store.setProxy(addr, proxy)
	if err != nil {
		return err
	}

	return c.send(addr, value)
}

func (c *call) addStake() error {
	err := c.ensureNotTerminated()
	if err != nil {
		return err
	}

	addr := c.env.Sender

	proxy, err := c.store.proxy(addr)
	if err != nil {
		return err
	}
	if proxy == nil {
		return xerrors.New("Sender is not a proxy")
	}

	amount, err := c.ensureStake(1)
	if err != nil {
		return err
	}

	proxy.Stake += amount

	return c.store.setProxy(addr, proxy)
}

func (c *call) withdrawable(proxy *proxyEntry) uint64 {
	if proxy.Stake <= c.cfg.MinimumProxyStakeAmount {
		return 0
	}

	return proxy.Stake - c.cfg.MinimumProxyStakeAmount
}

// credit adds the amount to the stake of the proxy, if it still exists.
func (c *call) credit(addr string, amount uint64) error {
	proxy, err := c.store.proxy(addr)
	if err != nil || proxy == nil {
		return err
	}

	proxy.Stake += amount

	return c.store.setProxy(addr, proxy)
}
