package native

import (
	"bytes"

	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/crypto/umbral"
	"golang.org/x/xerrors"
)

// provideFragment stores the fragment of the task of the sender. The proxy
// gets its slashed stake back with the reward.
func (c *call) provideFragment(dataID string, delegatee, fragment []byte) error {
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
		return xerrors.New("Proxy not registered")
	}
	if proxy.Pubkey == nil {
		return xerrors.New("Proxy not active")
	}

	id, found := c.store.delegateeTask(dataID, delegatee, addr)
	if !found {
		return xerrors.New("This fragment was not requested.")
	}

	task, err := c.store.task(id)
	if err != nil {
		return err
	}

	if c.env.Height >= task.TimeoutHeight {
		return xerrors.New("Request timed out.")
	}
	if task.Fragment != nil {
		return xerrors.New("Fragment already provided.")
	}
	if task.Resolved {
		return xerrors.New("Task was already resolved.")
	}

	data, err := c.store.data(dataID)
	if err != nil {
		return err
	}
	if data == nil {
		return xerrors.New("Data entry doesn't exist.")
	}

	err = umbral.VerifyFragment(data.Capsule, fragment, data.DelegatorPubkey, delegatee)
	if err != nil {
		return xerrors.Errorf("Fragment verification failed: %v", err)
	}

	ids, err := c.store.requestTasks(dataID, delegatee)
	if err != nil {
		return err
	}

	for _, other := range ids {
		t, err := c.store.task(other)
		if err != nil {
			return err
		}

		if bytes.Equal(t.Fragment, fragment) {
			return xerrors.New("Fragment already provided by other proxy.")
		}
	}

	task.Fragment = fragment
	task.Resolved = true

	err = c.store.setTask(id, task)
	if err != nil {
		return err
	}

	err = c.store.queue(addr).remove(encodeID(id))
	if err != nil {
		return err
	}

	proxy.Stake += c.cfg.PerProxyTaskRewardAmount + c.cfg.PerTaskSlashStakeAmount

	return c.store.setProxy(addr, proxy)
}

// skipTask abandons the request of the task of the sender, which loses the
// slashed stake.
func (c *call) skipTask(dataID string, delegatee []byte) error {
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
		return xerrors.New("Proxy not registered")
	}

	id, found := c.store.delegateeTask(dataID, delegatee, addr)
	if !found {
		return xerrors.New("Task doesn't exist.")
	}

	task, err := c.store.task(id)
	if err != nil {
		return err
	}

	if task.Fragment != nil {
		return xerrors.New("Task was already completed.")
	}
	if task.Resolved {
		return xerrors.New("Task was already resolved.")
	}
	if c.env.Height >= task.TimeoutHeight {
		return xerrors.New("Task timed out.")
	}

	return c.abandonRequest(id, task)
}

// abandonAllTasks abandons every request the proxy has a pending task for.
func (c *call) abandonAllTasks(addr string) error {
	ids, err := c.store.queuedTasks(addr)
	if err != nil {
		return err
	}

	for _, id := range ids {
		task, err := c.store.task(id)
		if err != nil {
			return err
		}

		if task.Resolved {
			continue
		}

		err = c.abandonRequest(id, task)
		if err != nil {
			return err
		}
	}

	return nil
}

// abandonRequest resolves every unfinished task of the request the given task
// belongs to. The rewards are refunded and the other proxies get their slashed
// stake back, but the proxy of the task loses it.
func (c *call) abandonRequest(id uint64, task *taskEntry) error {
	ids, err := c.store.requestTasks(task.DataID, task.DelegateePubkey)
	if err != nil {
		return err
	}

	for _, other := range ids {
		t, err := c.store.task(other)
		if err != nil {
			return err
		}

		if t.Resolved || t.Fragment != nil {
			continue
		}

		t.Resolved = true
		t.Abandoned = true

		err = c.store.setTask(other, t)
		if err != nil {
			return err
		}

		err = c.store.queue(t.ProxyAddr).remove(encodeID(other))
		if err != nil {
			return err
		}

		err = c.send(t.RefundAddr, c.cfg.PerProxyTaskRewardAmount)
		if err != nil {
			return err
		}

		if other != id {
			err = c.credit(t.ProxyAddr, c.cfg.PerTaskSlashStakeAmount)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// timeoutTask resolves a task that was not completed in time. The reward is
// refunded and the proxy loses the slashed stake.
func (c *call) timeoutTask(id uint64, task *taskEntry) error {
	task.Resolved = true

	err := c.store.setTask(id, task)
	if err != nil {
		return err
	}

	err = c.store.queue(task.ProxyAddr).remove(encodeID(id))
	if err != nil {
		return err
	}

	return c.send(task.RefundAddr, c.cfg.PerProxyTaskRewardAmount)
}

func (c *call) resolveTimedOutRequest(dataID string, delegatee []byte) error {
	err := c.ensureNotWithdrawn()
	if err != nil {
		return err
	}

	state, err := c.requestState(dataID, delegatee)
	if err != nil {
		return err
	}

	if state != contract.RequestTimedOut {
		return xerrors.New("Task is not timed-out.")
	}

	ids, err := c.store.requestTasks(dataID, delegatee)
	if err != nil {
		return err
	}

	for _, id := range ids {
		task, err := c.store.task(id)
		if err != nil {
			return err
		}

		if task.Resolved || task.Fragment != nil {
			continue
		}

		err = c.timeoutTask(id, task)
		if err != nil {
			return err
		}
	}

	return nil
}
