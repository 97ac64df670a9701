package proxy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/crypto"
	"go.dedis.ch/pre/internal/testing/sandbox"
	"go.dedis.ch/pre/ledger"
)

func TestNewAgent(t *testing.T) {
	_, err := NewAgent(Config{})
	require.EqualError(t, err, "incomplete configuration")
}

func TestAgent_Lifecycle(t *testing.T) {
	sb := sandbox.New(t, contract.InstantiateParams{})
	agent := makeAgent(t, sb)
	ctx := context.Background()

	status, err := agent.Status(ctx)
	require.NoError(t, err)
	require.Nil(t, status)

	err = agent.Unregister(ctx, false)
	require.ErrorIs(t, err, contract.ErrProxyNotRegistered)

	stake, err := agent.Register(ctx)
	require.NoError(t, err)
	require.Equal(t, &ledger.Coin{Denom: sandbox.Denom, Amount: 1000}, stake)
	require.Equal(t, uint64(sandbox.Balance-1000), sb.Balance(agent.Address()))

	registered, err := agent.Registered(ctx)
	require.NoError(t, err)
	require.True(t, registered)

	// Registering again is a no-op.
	stake, err = agent.Register(ctx)
	require.NoError(t, err)
	require.Nil(t, stake)

	err = agent.Reactivate(ctx)
	require.ErrorIs(t, err, contract.ErrProxyAlreadyRegistered)

	require.NoError(t, agent.Unregister(ctx, true))

	status, err = agent.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, contract.ProxyLeaving, status.State)

	registered, err = agent.Registered(ctx)
	require.NoError(t, err)
	require.False(t, registered)

	err = agent.Deactivate(ctx)
	require.ErrorIs(t, err, contract.ErrProxyNotActive)

	// A leaving proxy is reactivated with its current stake.
	stake, err = agent.Register(ctx)
	require.NoError(t, err)
	require.Nil(t, stake)
	require.Equal(t, uint64(sandbox.Balance-1000), sb.Balance(agent.Address()))

	require.NoError(t, agent.Deactivate(ctx))
	require.NoError(t, agent.Reactivate(ctx))

	require.NoError(t, agent.Unregister(ctx, false))
	require.Equal(t, uint64(sandbox.Balance), sb.Balance(agent.Address()))

	status, err = agent.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, contract.ProxyAuthorised, status.State)

	err = agent.Unregister(ctx, false)
	require.ErrorIs(t, err, contract.ErrProxyNotRegistered)
}

func TestAgent_Stake(t *testing.T) {
	sb := sandbox.New(t, contract.InstantiateParams{})
	agent := makeAgent(t, sb)
	ctx := context.Background()

	_, err := agent.Register(ctx)
	require.NoError(t, err)

	err = agent.WithdrawStake(ctx, nil)
	require.ErrorIs(t, err, contract.ErrNotEnoughStakeToWithdraw)

	require.NoError(t, agent.AddStake(ctx, 500))

	status, err := agent.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1500), status.StakeAmount)
	require.Equal(t, uint64(500), status.WithdrawableStakeAmount)

	amount := uint64(200)
	require.NoError(t, agent.WithdrawStake(ctx, &amount))

	status, err = agent.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(300), status.WithdrawableStakeAmount)

	require.NoError(t, agent.WithdrawStake(ctx, nil))
	require.Equal(t, uint64(sandbox.Balance-1000), sb.Balance(agent.Address()))

	err = agent.AddStake(ctx, sandbox.Balance)
	require.ErrorIs(t, err, contract.ErrWalletInsufficientFunds)
}

func TestAgent_ProcessReencryptionRequest(t *testing.T) {
	sb := sandbox.New(t, contract.InstantiateParams{Threshold: 2})
	ctx := context.Background()

	agents := []*Agent{makeAgent(t, sb), makeAgent(t, sb)}
	for _, agent := range agents {
		_, err := agent.Register(ctx)
		require.NoError(t, err)
	}

	delegatee := sb.Key()
	dataID := grant(t, sb, delegatee.PublicKey())

	tasks, err := agents[0].GetReencryptionRequests(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	others, err := agents[1].GetReencryptionRequests(ctx)
	require.NoError(t, err)
	require.Len(t, others, 1)

	// The delegation of another proxy cannot be opened.
	err = agents[0].ProcessReencryptionRequest(ctx, others[0])
	require.ErrorIs(t, err, crypto.ErrDecryption)

	bad := tasks[0]
	bad.DelegationString = []byte("garbage")
	err = agents[0].ProcessReencryptionRequest(ctx, bad)
	require.ErrorIs(t, err, crypto.ErrIncorrectFormatOfDelegationString)

	bad = tasks[0]
	bad.DelegatorPubkey = []byte("garbage")
	err = agents[0].ProcessReencryptionRequest(ctx, bad)
	require.ErrorIs(t, err, crypto.ErrDecryption)

	require.NoError(t, agents[0].ProcessReencryptionRequest(ctx, tasks[0]))

	err = agents[0].ProcessReencryptionRequest(ctx, tasks[0])
	require.ErrorIs(t, err, contract.ErrReencryptedCapsuleFragAlreadyProvided)

	tasks, err = agents[0].GetReencryptionRequests(ctx)
	require.NoError(t, err)
	require.Empty(t, tasks)

	require.NoError(t, agents[1].ProcessReencryptionRequest(ctx, others[0]))

	resp, err := sb.Client.GetFragmentsResponse(ctx, dataID, marshal(t, delegatee.PublicKey()))
	require.NoError(t, err)
	require.Equal(t, contract.RequestGranted, resp.State)
	require.Len(t, resp.Fragments, 2)
}

func TestAgent_SkipTask(t *testing.T) {
	sb := sandbox.New(t, contract.InstantiateParams{})
	agent := makeAgent(t, sb)
	ctx := context.Background()

	_, err := agent.Register(ctx)
	require.NoError(t, err)

	delegatee := sb.Key().PublicKey()
	dataID := grant(t, sb, delegatee)

	tasks, err := agent.GetReencryptionRequests(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, agent.SkipTask(ctx, tasks[0]))

	err = agent.SkipTask(ctx, tasks[0])
	require.ErrorIs(t, err, contract.ErrUnknownReencryptionRequest)

	tasks, err = agent.GetReencryptionRequests(ctx)
	require.NoError(t, err)
	require.Empty(t, tasks)

	resp, err := sb.Client.GetFragmentsResponse(ctx, dataID, marshal(t, delegatee))
	require.NoError(t, err)
	require.Equal(t, contract.RequestAbandoned, resp.State)
}

// -----------------------------------------------------------------------------
// Utility functions

func makeAgent(t *testing.T, sb *sandbox.Sandbox) *Agent {
	agent, err := NewAgent(Config{
		Signer:   sb.Wallet(),
		Key:      sb.Key(),
		Contract: sb.Client,
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

// grant adds a data and requests its re-encryption for the delegatee by all
// the available proxies.
func grant(t *testing.T, sb *sandbox.Sandbox, delegatee crypto.PublicKey) string {
	ctx := context.Background()

	owner := sb.Wallet()
	key := sb.Key()
	pubkey := marshal(t, key.PublicKey())

	encrypted, err := sb.Engine.Encrypt([]byte("data"), key.PublicKey())
	require.NoError(t, err)

	dataID, err := sb.Storage.StoreEncryptedData(ctx, encrypted)
	require.NoError(t, err)

	require.NoError(t, sb.Client.AddData(ctx, owner, dataID, pubkey, encrypted.Capsule))

	proxies, err := sb.Client.GetAvailableProxies(ctx)
	require.NoError(t, err)

	state, err := sb.Client.GetContractState(ctx)
	require.NoError(t, err)

	keys := make([]crypto.PublicKey, len(proxies))
	for i, p := range proxies {
		keys[i], err = sb.Engine.LoadPublicKey(p.ProxyPubkey)
		require.NoError(t, err)
	}

	delegations, err := sb.Engine.GenerateDelegations(int(state.Threshold), delegatee, keys, key)
	require.NoError(t, err)

	msg := make([]contract.ProxyDelegation, len(proxies))
	for i, p := range proxies {
		msg[i] = contract.ProxyDelegation{ProxyAddr: p.ProxyAddr, DelegationString: delegations[i].DelegationString}
	}

	delegateeKey := marshal(t, delegatee)

	require.NoError(t, sb.Client.AddDelegations(ctx, owner, pubkey, delegateeKey, msg))

	status, err := sb.Client.GetDelegationStatus(ctx, pubkey, delegateeKey)
	require.NoError(t, err)

	require.NoError(t, sb.Client.RequestReencryption(ctx, owner, dataID, delegateeKey, status.TotalRequestRewardAmount))

	return dataID
}
