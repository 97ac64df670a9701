package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/internal/testing/sandbox"
	"go.dedis.ch/pre/ledger"
)

func TestInstantiateContract(t *testing.T) {
	sb := sandbox.New(t, contract.InstantiateParams{})
	ctx := context.Background()

	agent, c, err := InstantiateContract(ctx, sb.Ledger, sb.Admin, contract.InstantiateParams{
		Threshold:  2,
		StakeDenom: sandbox.Denom,
	})
	require.NoError(t, err)
	require.NotNil(t, agent)
	require.NotEqual(t, sb.Client.Address(), c.Address())

	state, err := c.GetContractState(ctx)
	require.NoError(t, err)
	require.Equal(t, sb.Admin.GetAddress(), state.Admin)
	require.Equal(t, uint32(2), state.Threshold)

	_, _, err = InstantiateContract(ctx, sb.Ledger, sb.Admin, contract.InstantiateParams{})
	require.ErrorIs(t, err, contract.ErrInstantiateFailure)
}

func TestAgent_Proxies(t *testing.T) {
	sb := sandbox.New(t, contract.InstantiateParams{ProxyWhitelisting: true})
	agent := NewAgent(sb.Admin, sb.Client)
	ctx := context.Background()

	p := sandbox.Proxy{Wallet: sb.Wallet(), Key: sb.Key()}
	addr := p.Wallet.GetAddress()

	require.NoError(t, agent.AddProxy(ctx, addr))

	err := agent.AddProxy(ctx, addr)
	require.ErrorIs(t, err, contract.ErrProxyAlreadyExist)

	other := NewAgent(sb.Wallet(), sb.Client)

	err = other.AddProxy(ctx, ledger.Address([]byte("proxy")))
	require.ErrorIs(t, err, contract.ErrNotAdmin)

	pubkey, err := p.Key.PublicKey().MarshalBinary()
	require.NoError(t, err)

	err = sb.Client.ProxyRegister(ctx, p.Wallet, pubkey, ledger.NewCoin(1000, sandbox.Denom))
	require.NoError(t, err)
	require.Equal(t, uint64(sandbox.Balance-1000), sb.Balance(addr))

	require.NoError(t, agent.RemoveProxy(ctx, addr))
	require.Equal(t, uint64(sandbox.Balance), sb.Balance(addr))

	status, err := sb.Client.GetProxyStatus(ctx, addr)
	require.NoError(t, err)
	require.Nil(t, status)

	err = agent.RemoveProxy(ctx, addr)
	require.ErrorIs(t, err, contract.ErrUnknownProxy)
}

func TestAgent_TerminateAndWithdraw(t *testing.T) {
	sb := sandbox.New(t, contract.InstantiateParams{WithdrawalPeriod: 10})
	agent := NewAgent(sb.Admin, sb.Client)
	ctx := context.Background()

	recipient := ledger.Address([]byte("recipient"))

	err := agent.WithdrawContract(ctx, recipient)
	require.ErrorIs(t, err, contract.ErrContractNotTerminated)

	sb.RegisterProxy(1000)

	require.NoError(t, agent.TerminateContract(ctx))

	err = agent.TerminateContract(ctx)
	require.ErrorIs(t, err, contract.ErrContractTerminated)

	err = agent.AddProxy(ctx, recipient)
	require.ErrorIs(t, err, contract.ErrContractTerminated)

	err = agent.WithdrawContract(ctx, recipient)
	require.ErrorIs(t, err, contract.ErrWithdrawalNotAvailable)

	require.NoError(t, sb.Ledger.Advance(10))

	require.NoError(t, agent.WithdrawContract(ctx, recipient))
	require.Equal(t, uint64(1000), sb.Balance(recipient))

	err = agent.WithdrawContract(ctx, recipient)
	require.Error(t, err)
}
