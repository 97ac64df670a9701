package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/contract/native"
	"go.dedis.ch/pre/crypto/umbral"
	"go.dedis.ch/pre/internal/testing/fake"
	"go.dedis.ch/pre/ledger"
	"go.dedis.ch/pre/ledger/local"
	"golang.org/x/xerrors"
)

const testDenom = "upre"

var (
	_ contract.Admin     = (*Client)(nil)
	_ contract.Delegator = (*Client)(nil)
	_ contract.Proxy     = (*Client)(nil)
)

func TestInstantiate(t *testing.T) {
	l, admin := makeLedger(t)
	ctx := context.Background()

	client, err := Instantiate(ctx, l, admin, contract.InstantiateParams{
		StakeDenom: testDenom,
		Threshold:  2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, client.Address())
	require.Equal(t, l, client.Ledger())

	state, err := client.GetContractState(ctx)
	require.NoError(t, err)
	require.Equal(t, contract.ContractState{Admin: admin.GetAddress(), Threshold: 2}, state)

	_, err = Instantiate(ctx, l, admin, contract.InstantiateParams{})
	require.ErrorIs(t, err, contract.ErrInstantiateFailure)
	require.ErrorIs(t, err, contract.ErrContractExecution)

	_, err = Instantiate(ctx, fakeLedger{err: fake.GetError()}, admin, contract.InstantiateParams{})
	require.EqualError(t, err, fake.Err("failed to instantiate"))
}

func TestClient_Proxy(t *testing.T) {
	l, admin := makeLedger(t)
	ctx := context.Background()

	client, err := Instantiate(ctx, l, admin, contract.InstantiateParams{StakeDenom: testDenom})
	require.NoError(t, err)

	proxy := makeWallet(t, l, 2000)
	pubkey := makePubkey(t)

	status, err := client.GetProxyStatus(ctx, proxy.GetAddress())
	require.NoError(t, err)
	require.Nil(t, status)

	err = client.ProxyRegister(ctx, proxy, pubkey, ledger.NewCoin(5000, testDenom))
	require.ErrorIs(t, err, contract.ErrWalletInsufficientFunds)

	err = client.ProxyRegister(ctx, proxy, pubkey, ledger.NewCoin(10, testDenom))
	require.ErrorIs(t, err, contract.ErrInvalidFunds)

	var execErr *contract.ExecutionError
	require.True(t, xerrors.As(err, &execErr))
	require.Equal(t, "Requires at least 1000 upre.", execErr.Msg)

	// The manager resynchronizes after a rejection.
	require.NoError(t, client.ProxyRegister(ctx, proxy, pubkey, ledger.NewCoin(1500, testDenom)))

	// A coin within the remaining balance reaches the contract.
	err = client.ProxyRegister(ctx, proxy, pubkey, ledger.NewCoin(100, testDenom))
	require.ErrorIs(t, err, contract.ErrProxyAlreadyRegistered)
	require.Equal(t, uint64(500), balanceOf(t, l, proxy.GetAddress()))

	status, err = client.GetProxyStatus(ctx, proxy.GetAddress())
	require.NoError(t, err)
	require.Equal(t, contract.ProxyRegistered, status.State)
	require.Equal(t, uint64(500), status.WithdrawableStakeAmount)

	proxies, err := client.GetAvailableProxies(ctx)
	require.NoError(t, err)
	require.Len(t, proxies, 1)
	require.Equal(t, pubkey, proxies[0].ProxyPubkey)

	require.NoError(t, client.AddStake(ctx, proxy, ledger.NewCoin(100, testDenom)))
	require.NoError(t, client.WithdrawStake(ctx, proxy, nil))

	err = client.WithdrawStake(ctx, proxy, nil)
	require.ErrorIs(t, err, contract.ErrNotEnoughStakeToWithdraw)

	tasks, err := client.GetProxyTasks(ctx, proxy.GetAddress())
	require.NoError(t, err)
	require.Empty(t, tasks)

	err = client.SkipReencryptionTask(ctx, proxy, "data", pubkey)
	require.ErrorIs(t, err, contract.ErrUnknownReencryptionRequest)

	err = client.ProvideReencryptedFragment(ctx, proxy, "data", pubkey, []byte("fragment"))
	require.ErrorIs(t, err, contract.ErrUnknownReencryptionRequest)

	require.NoError(t, client.ProxyDeactivate(ctx, proxy))

	err = client.ProxyDeactivate(ctx, proxy)
	require.ErrorIs(t, err, contract.ErrProxyNotActive)

	require.NoError(t, client.ProxyUnregister(ctx, proxy))

	err = client.ProxyUnregister(ctx, proxy)
	require.ErrorIs(t, err, contract.ErrProxyNotRegistered)

	balance, err := l.GetBalance(ctx, proxy.GetAddress(), testDenom)
	require.NoError(t, err)
	require.Equal(t, uint64(2000), balance)
}

func TestClient_Delegator(t *testing.T) {
	l, admin := makeLedger(t)
	ctx := context.Background()

	client, err := Instantiate(ctx, l, admin, contract.InstantiateParams{StakeDenom: testDenom})
	require.NoError(t, err)

	owner := makeWallet(t, l, 1000)
	delegator := makePubkey(t)
	delegatee := makePubkey(t)

	entry, err := client.GetDataEntry(ctx, "data")
	require.NoError(t, err)
	require.Nil(t, entry)

	_, err = client.GetFragmentsResponse(ctx, "data", delegatee)
	require.ErrorIs(t, err, contract.ErrQueryDataEntryDoesNotExist)
	require.ErrorIs(t, err, contract.ErrContractQuery)

	require.NoError(t, client.AddData(ctx, owner, "data", delegator, []byte("capsule")))

	err = client.AddData(ctx, owner, "data", delegator, []byte("capsule"))
	require.ErrorIs(t, err, contract.ErrDataAlreadyExist)

	entry, err = client.GetDataEntry(ctx, "data")
	require.NoError(t, err)
	require.Equal(t, []byte("capsule"), entry.Capsule)

	resp, err := client.GetFragmentsResponse(ctx, "data", delegatee)
	require.NoError(t, err)
	require.Equal(t, contract.RequestInaccessible, resp.State)

	status, err := client.GetDelegationStatus(ctx, delegator, delegatee)
	require.NoError(t, err)
	require.Equal(t, contract.DelegationNonExisting, status.State)

	err = client.AddDelegations(ctx, owner, delegator, delegatee, []contract.ProxyDelegation{
		{ProxyAddr: admin.GetAddress(), DelegationString: []byte("a")},
	})
	require.ErrorIs(t, err, contract.ErrUnknownProxy)

	err = client.RequestReencryption(ctx, owner, "data", delegatee, ledger.NewCoin(100, testDenom))
	require.ErrorIs(t, err, contract.ErrDelegationDoesNotExist)

	err = client.ResolveTimedOutRequest(ctx, owner, "data", delegatee)
	require.ErrorIs(t, err, contract.ErrRequestNotTimedOut)

	cfg, err := client.GetStakingConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, testDenom, cfg.StakeDenom)

	require.NoError(t, client.RemoveData(ctx, owner, "data"))

	err = client.RemoveData(ctx, owner, "data")
	require.ErrorIs(t, err, contract.ErrDataEntryDoesNotExist)
}

func TestClient_Admin(t *testing.T) {
	l, admin := makeLedger(t)
	ctx := context.Background()

	client, err := Instantiate(ctx, l, admin, contract.InstantiateParams{
		StakeDenom:        testDenom,
		ProxyWhitelisting: true,
		WithdrawalPeriod:  5,
	})
	require.NoError(t, err)

	proxy := makeWallet(t, l, 1000)

	err = client.AddProxy(ctx, proxy, proxy.GetAddress())
	require.ErrorIs(t, err, contract.ErrNotAdmin)

	require.NoError(t, client.AddProxy(ctx, admin, proxy.GetAddress()))

	err = client.AddProxy(ctx, admin, proxy.GetAddress())
	require.ErrorIs(t, err, contract.ErrProxyAlreadyExist)

	require.NoError(t, client.RemoveProxy(ctx, admin, proxy.GetAddress()))

	err = client.RemoveProxy(ctx, admin, proxy.GetAddress())
	require.ErrorIs(t, err, contract.ErrUnknownProxy)

	err = client.WithdrawContract(ctx, admin, admin.GetAddress())
	require.ErrorIs(t, err, contract.ErrContractNotTerminated)

	require.NoError(t, client.TerminateContract(ctx, admin))

	err = client.TerminateContract(ctx, admin)
	require.ErrorIs(t, err, contract.ErrContractTerminated)

	err = client.WithdrawContract(ctx, admin, admin.GetAddress())
	require.ErrorIs(t, err, contract.ErrWithdrawalNotAvailable)
}

func TestClient_BadContractAddress(t *testing.T) {
	l, admin := makeLedger(t)
	ctx := context.Background()

	client := NewClient(l, ledger.Address([]byte("unknown")))

	_, err := client.GetContractState(ctx)
	require.ErrorIs(t, err, contract.ErrBadContractAddress)

	err = client.TerminateContract(ctx, admin)
	require.ErrorIs(t, err, contract.ErrBadContractAddress)
}

func TestClient_LedgerFailures(t *testing.T) {
	_, admin := makeLedger(t)
	ctx := context.Background()

	client := NewClient(fakeLedger{err: fake.GetError()}, "contract")

	_, err := client.GetContractState(ctx)
	require.EqualError(t, err, fake.Err("failed to query"))

	err = client.TerminateContract(ctx, admin)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to execute: ")

	client = NewClient(fakeLedger{resp: []byte("{")}, "contract")

	_, err = client.GetContractState(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to decode response: ")

	client = NewClient(fakeLedger{txErr: &ledger.TxError{Code: ledger.CodeInvalidNonce, Log: "nonce"}}, "contract")

	err = client.TerminateContract(ctx, admin)
	require.EqualError(t, err, "failed to execute: transaction failed with code 4: nonce")
}

// -----------------------------------------------------------------------------
// Utility functions

func makeLedger(t *testing.T) (*local.Ledger, ledger.Crypto) {
	l, err := local.NewLedger(fake.NewInMemoryDB(),
		local.WithContract(contract.Code, native.NewContract()))
	require.NoError(t, err)

	return l, makeWallet(t, l, 1000)
}

func makeWallet(t *testing.T, l *local.Ledger, amount uint64) ledger.Crypto {
	wallet, err := ledger.NewWallet()
	require.NoError(t, err)

	require.NoError(t, l.Mint(wallet.GetAddress(), ledger.NewCoin(amount, testDenom)))

	return wallet
}

func balanceOf(t *testing.T, l *local.Ledger, addr string) uint64 {
	balance, err := l.GetBalance(context.Background(), addr, testDenom)
	require.NoError(t, err)

	return balance
}

func makePubkey(t *testing.T) []byte {
	key, err := umbral.NewEngine().MakeNewKey()
	require.NoError(t, err)

	data, err := key.PublicKey().MarshalBinary()
	require.NoError(t, err)

	return data
}

type fakeLedger struct {
	ledger.Ledger

	err   error
	txErr *ledger.TxError
	resp  []byte
}

func (l fakeLedger) SignTx(tx *ledger.Transaction, signer ledger.Crypto) error {
	return tx.Sign(signer)
}

func (l fakeLedger) GetNonce(context.Context, string) (uint64, error) {
	return 0, nil
}

func (l fakeLedger) BroadcastTx(context.Context, *ledger.Transaction) (ledger.Result, error) {
	if l.txErr != nil {
		return ledger.Result{}, l.txErr
	}

	return ledger.Result{}, l.err
}

func (l fakeLedger) Query(context.Context, string, []byte) ([]byte, error) {
	return l.resp, l.err
}

func (l fakeLedger) InstantiateContract(context.Context, ledger.Crypto, string,
	[]byte, ...ledger.Coin) (string, error) {

	return "", l.err
}
