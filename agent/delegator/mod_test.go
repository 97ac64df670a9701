package delegator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/crypto"
	"go.dedis.ch/pre/internal/testing/sandbox"
	"go.dedis.ch/pre/storage"
)

func TestNewAgent(t *testing.T) {
	_, err := NewAgent(Config{})
	require.EqualError(t, err, "incomplete configuration")

	sb := sandbox.New(t, contract.InstantiateParams{})

	agent := makeAgent(t, sb)
	require.NotNil(t, agent.PublicKey())
}

func TestAgent_AddData(t *testing.T) {
	sb := sandbox.New(t, contract.InstantiateParams{})
	agent := makeAgent(t, sb)
	ctx := context.Background()

	id, err := agent.AddData(ctx, []byte("Valuable text to reencrypt."))
	require.NoError(t, err)

	entry, err := sb.Client.GetDataEntry(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, entry)

	encrypted, err := sb.Storage.GetEncryptedData(ctx, id)
	require.NoError(t, err)
	require.Equal(t, encrypted.Capsule, entry.Capsule)

	data, err := sb.Engine.DecryptOriginal(encrypted, agent.key)
	require.NoError(t, err)
	require.Equal(t, []byte("Valuable text to reencrypt."), data)

	// The encryption is randomized so the same content is a new data.
	_, err = agent.AddData(ctx, []byte("Valuable text to reencrypt."))
	require.NoError(t, err)

	require.NoError(t, agent.RemoveData(ctx, id))

	err = agent.RemoveData(ctx, id)
	require.ErrorIs(t, err, contract.ErrDataEntryDoesNotExist)

	require.NoError(t, sb.Storage.Disconnect())

	_, err = agent.AddData(ctx, []byte("data"))
	require.ErrorIs(t, err, storage.ErrNotConnected)

	require.NoError(t, sb.Storage.Connect(ctx))
}

func TestAgent_GrantAccess(t *testing.T) {
	sb := sandbox.New(t, contract.InstantiateParams{Threshold: 2})
	agent := makeAgent(t, sb)
	ctx := context.Background()

	proxies := []sandbox.Proxy{
		sb.RegisterProxy(1000),
		sb.RegisterProxy(1000),
		sb.RegisterProxy(1000),
	}

	delegatee := sb.Key().PublicKey()
	delegateeKey := marshal(t, delegatee)

	id, err := agent.AddDataAndGrant(ctx, []byte("a"), delegatee, 0, 0)
	require.NoError(t, err)

	status, err := sb.Client.GetDelegationStatus(ctx, agent.pubkey, delegateeKey)
	require.NoError(t, err)
	require.Equal(t, contract.DelegationActive, status.State)

	resp, err := sb.Client.GetFragmentsResponse(ctx, id, delegateeKey)
	require.NoError(t, err)
	require.Equal(t, contract.RequestReady, resp.State)

	for _, p := range proxies {
		tasks, err := sb.Client.GetProxyTasks(ctx, p.Wallet.GetAddress())
		require.NoError(t, err)
		require.Len(t, tasks, 1)
	}

	// The delegation is reused for another data of the same delegator.
	other, err := agent.AddData(ctx, []byte("b"))
	require.NoError(t, err)

	before := sb.Balance(agent.signer.GetAddress())
	require.NoError(t, agent.GrantAccess(ctx, other, delegatee, 2, 0))
	require.Equal(t, before-300, sb.Balance(agent.signer.GetAddress()))

	err = agent.GrantAccess(ctx, other, delegatee, 2, 0)
	require.ErrorIs(t, err, contract.ErrReencryptionAlreadyRequested)

	err = agent.GrantAccess(ctx, "unknown", delegatee, 0, 0)
	require.ErrorIs(t, err, contract.ErrDataEntryDoesNotExist)
}

func TestAgent_GrantAccessAgain(t *testing.T) {
	sb := sandbox.New(t, contract.InstantiateParams{TimeoutHeight: 5})
	agent := makeAgent(t, sb)
	ctx := context.Background()

	p := sb.RegisterProxy(1000)

	delegatee := sb.Key().PublicKey()
	delegateeKey := marshal(t, delegatee)

	id, err := agent.AddDataAndGrant(ctx, []byte("a"), delegatee, 1, 0)
	require.NoError(t, err)

	requireState := func(expected contract.RequestState) {
		resp, err := sb.Client.GetFragmentsResponse(ctx, id, delegateeKey)
		require.NoError(t, err)
		require.Equal(t, expected, resp.State)
	}

	requireTasks := func(n int) {
		tasks, err := sb.Client.GetProxyTasks(ctx, p.Wallet.GetAddress())
		require.NoError(t, err)
		require.Len(t, tasks, n)
	}

	// An abandoned request is replaced by a fresh one.
	err = sb.Client.SkipReencryptionTask(ctx, p.Wallet, id, delegateeKey)
	require.NoError(t, err)
	requireState(contract.RequestAbandoned)
	requireTasks(0)

	require.NoError(t, agent.GrantAccess(ctx, id, delegatee, 1, 0))
	requireState(contract.RequestReady)
	requireTasks(1)

	// So is a request that timed out.
	require.NoError(t, sb.Ledger.Advance(5))
	requireState(contract.RequestTimedOut)

	require.NoError(t, agent.GrantAccess(ctx, id, delegatee, 1, 0))
	requireState(contract.RequestReady)
	requireTasks(1)

	// The delegation was reused by every request.
	status, err := sb.Client.GetDelegationStatus(ctx, agent.pubkey, delegateeKey)
	require.NoError(t, err)
	require.Equal(t, contract.DelegationActive, status.State)

	require.Equal(t, 1, sb.Reencrypt(p))
	requireState(contract.RequestGranted)
}

func TestAgent_GrantAccessMaxProxies(t *testing.T) {
	sb := sandbox.New(t, contract.InstantiateParams{})
	agent := makeAgent(t, sb)
	ctx := context.Background()

	low := sb.RegisterProxy(1000)
	high := sb.RegisterProxy(3000)
	mid := sb.RegisterProxy(2000)

	id, err := agent.AddDataAndGrant(ctx, []byte("a"), sb.Key().PublicKey(), 1, 2)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	counts := []struct {
		proxy sandbox.Proxy
		tasks int
	}{
		{proxy: low, tasks: 0},
		{proxy: mid, tasks: 1},
		{proxy: high, tasks: 1},
	}

	for _, count := range counts {
		tasks, err := sb.Client.GetProxyTasks(ctx, count.proxy.Wallet.GetAddress())
		require.NoError(t, err)
		require.Len(t, tasks, count.tasks)
	}
}

func TestAgent_GrantAccessFailures(t *testing.T) {
	sb := sandbox.New(t, contract.InstantiateParams{Threshold: 2})
	agent := makeAgent(t, sb)
	ctx := context.Background()

	id, err := agent.AddData(ctx, []byte("a"))
	require.NoError(t, err)

	delegatee := sb.Key().PublicKey()

	err = agent.GrantAccess(ctx, id, delegatee, 0, 0)
	require.ErrorIs(t, err, ErrNoProxies)

	err = agent.GrantAccess(ctx, id, delegatee, 1, 0)
	require.ErrorIs(t, err, crypto.ErrInvalidThreshold)

	p := sb.RegisterProxy(1000)

	err = agent.GrantAccess(ctx, id, delegatee, 0, 0)
	require.ErrorIs(t, err, crypto.ErrInvalidThreshold)

	q := sb.RegisterProxy(1000)
	require.NoError(t, agent.GrantAccess(ctx, id, delegatee, 0, 0))

	require.NoError(t, sb.Client.ProxyDeactivate(ctx, p.Wallet))
	require.NoError(t, sb.Client.ProxyDeactivate(ctx, q.Wallet))

	other, err := agent.AddData(ctx, []byte("b"))
	require.NoError(t, err)

	err = agent.GrantAccess(ctx, other, delegatee, 0, 0)
	require.ErrorIs(t, err, contract.ErrProxiesAreTooBusy)
}

func TestSelectProxies(t *testing.T) {
	proxies := []contract.ProxyAvailability{
		{ProxyAddr: "c", StakeAmount: 1},
		{ProxyAddr: "b", StakeAmount: 2},
		{ProxyAddr: "a", StakeAmount: 2},
	}

	require.Equal(t, proxies, selectProxies(proxies, 0))
	require.Equal(t, proxies, selectProxies(proxies, 3))

	selected := selectProxies(proxies, 2)
	require.Equal(t, []contract.ProxyAvailability{
		{ProxyAddr: "a", StakeAmount: 2},
		{ProxyAddr: "b", StakeAmount: 2},
	}, selected)

	// The input is left untouched.
	require.Equal(t, "c", proxies[0].ProxyAddr)
}

// -----------------------------------------------------------------------------
// Utility functions

func makeAgent(t *testing.T, sb *sandbox.Sandbox) *Agent {
	agent, err := NewAgent(Config{
		Signer:   sb.Wallet(),
		Key:      sb.Key(),
		Contract: sb.Client,
		Storage:  sb.Storage,
		Engine:   sb.Engine,
	})
	require.NoError(t, err)

	return agent
}

func marshal(t *testing.T, key crypto.PublicKey) []byte {
	data, err := key.MarshalBinary()
	require.NoError(t, err)

	return data
}
