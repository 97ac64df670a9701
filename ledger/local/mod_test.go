package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/pre/internal/testing/fake"
	"go.dedis.ch/pre/ledger"
	"golang.org/x/xerrors"
)

const testDenom = "upre"

func TestLedger_BroadcastTx(t *testing.T) {
	l, wallet, contract := makeLedger(t)
	ctx := context.Background()

	mgr := ledger.NewManager(l, wallet)

	res, err := mgr.Execute(ctx, contract, []byte("incr"), ledger.NewCoin(10, testDenom))
	require.NoError(t, err)
	require.Equal(t, uint64(2), res.Height)
	require.Equal(t, []byte{1}, res.Data)
	require.Len(t, res.Hash, 64)

	balance, err := l.GetBalance(ctx, wallet.GetAddress(), testDenom)
	require.NoError(t, err)
	require.Equal(t, uint64(990), balance)

	balance, err = l.GetBalance(ctx, contract, testDenom)
	require.NoError(t, err)
	require.Equal(t, uint64(10), balance)

	nonce, err := l.GetNonce(ctx, wallet.GetAddress())
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)

	resp, err := l.Query(ctx, contract, []byte("count"))
	require.NoError(t, err)
	require.Equal(t, []byte{1}, resp)

	// The contract refunds with the bank.
	_, err = mgr.Execute(ctx, contract, []byte("refund"))
	require.NoError(t, err)

	balance, err = l.GetBalance(ctx, wallet.GetAddress(), testDenom)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), balance)
}

func TestLedger_BroadcastTx_Rejected(t *testing.T) {
	l, wallet, contract := makeLedger(t)
	ctx := context.Background()

	mgr := ledger.NewManager(l, wallet)

	_, err := mgr.Execute(ctx, contract, []byte("fail"))
	var txErr *ledger.TxError
	require.True(t, xerrors.As(err, &txErr))
	require.Equal(t, ledger.CodeContractFailed, txErr.Code)
	require.Equal(t, "contract refused", txErr.Log)

	_, err = mgr.Execute(ctx, contract, []byte("incr"), ledger.NewCoin(5000, testDenom))
	require.True(t, xerrors.As(err, &txErr))
	require.Equal(t, ledger.CodeInsufficientFunds, txErr.Code)

	_, err = mgr.Execute(ctx, ledger.Address([]byte("unknown")), []byte("incr"))
	require.True(t, xerrors.As(err, &txErr))
	require.Equal(t, ledger.CodeUnknownContract, txErr.Code)

	// Rejected transactions leave no trace.
	nonce, err := l.GetNonce(ctx, wallet.GetAddress())
	require.NoError(t, err)
	require.Equal(t, uint64(0), nonce)

	resp, err := l.Query(ctx, contract, []byte("count"))
	require.NoError(t, err)
	require.Equal(t, []byte{0}, resp)

	// The manager resynchronizes after a rejection.
	_, err = mgr.Execute(ctx, contract, []byte("incr"))
	require.NoError(t, err)
}

func TestLedger_BroadcastTx_InvalidNonce(t *testing.T) {
	l, wallet, contract := makeLedger(t)

	tx := &ledger.Transaction{Sender: wallet.GetAddress(), Nonce: 5, Contract: contract}
	require.NoError(t, l.SignTx(tx, wallet))

	res, err := l.BroadcastTx(context.Background(), tx)
	var txErr *ledger.TxError
	require.True(t, xerrors.As(err, &txErr))
	require.Equal(t, ledger.CodeInvalidNonce, txErr.Code)
	require.Equal(t, ledger.CodeInvalidNonce, res.Code)
	require.Equal(t, "nonce 5 != 0", res.Log)
}

func TestLedger_BroadcastTx_InvalidSignature(t *testing.T) {
	l, wallet, contract := makeLedger(t)

	tx := &ledger.Transaction{Sender: wallet.GetAddress(), Contract: contract}
	require.NoError(t, l.SignTx(tx, wallet))

	tx.Msg = []byte("incr")

	_, err := l.BroadcastTx(context.Background(), tx)
	var txErr *ledger.TxError
	require.True(t, xerrors.As(err, &txErr))
	require.Equal(t, ledger.CodeInvalidSignature, txErr.Code)

	other, err := ledger.NewWallet()
	require.NoError(t, err)

	tx.PublicKey = other.GetPublicKey()

	_, err = l.BroadcastTx(context.Background(), tx)
	require.True(t, xerrors.As(err, &txErr))
	require.Equal(t, "public key does not match the sender", txErr.Log)
}

func TestLedger_BroadcastTx_Closed(t *testing.T) {
	l, wallet, contract := makeLedger(t)
	require.NoError(t, l.Close())

	tx := &ledger.Transaction{Sender: wallet.GetAddress(), Contract: contract}
	require.NoError(t, l.SignTx(tx, wallet))

	_, err := l.BroadcastTx(context.Background(), tx)
	require.EqualError(t, err, "ledger closed")

	err = l.CheckAvailability(context.Background())
	require.EqualError(t, err, "ledger closed")
}

func TestLedger_Query_Failures(t *testing.T) {
	l, _, contract := makeLedger(t)
	ctx := context.Background()

	_, err := l.Query(ctx, contract, []byte("fail"))
	var queryErr *ledger.QueryError
	require.True(t, xerrors.As(err, &queryErr))
	require.EqualError(t, err, "query failed: unknown query")

	_, err = l.Query(ctx, "pre1unknown", nil)
	require.ErrorIs(t, err, ledger.ErrUnknownContract)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	_, err = l.Query(cancelled, contract, []byte("count"))
	require.EqualError(t, err, "query aborted: context canceled")
}

func TestLedger_EnsureFunds(t *testing.T) {
	l, wallet, _ := makeLedger(t)
	ctx := context.Background()

	other, err := ledger.NewWallet()
	require.NoError(t, err)

	err = l.EnsureFunds(ctx, wallet.GetAddress(), other.GetAddress())
	require.NoError(t, err)

	// Above the minimum, nothing is given.
	balance, err := l.GetBalance(ctx, wallet.GetAddress(), testDenom)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), balance)

	balance, err = l.GetBalance(ctx, other.GetAddress(), testDenom)
	require.NoError(t, err)
	require.Equal(t, uint64(500), balance)

	err = l.EnsureFunds(ctx, "bad")
	require.EqualError(t, err, "invalid address: address 'bad' must start with 'pre1'")

	noFaucet, err := NewLedger(fake.NewInMemoryDB())
	require.NoError(t, err)

	err = noFaucet.EnsureFunds(ctx, wallet.GetAddress())
	require.EqualError(t, err, "faucet not available")
}

func TestLedger_Advance(t *testing.T) {
	l, _, _ := makeLedger(t)
	ctx := context.Background()

	height, err := l.GetHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), height)

	require.NoError(t, l.Advance(10))

	height, err = l.GetHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(11), height)
}

func TestLedger_InstantiateContract(t *testing.T) {
	l, wallet, _ := makeLedger(t)
	ctx := context.Background()

	_, err := l.InstantiateContract(ctx, wallet, "unknown", nil)
	require.EqualError(t, err, "unknown contract code 'unknown'")

	_, err = l.InstantiateContract(ctx, wallet, "counter", []byte("fail"))
	var txErr *ledger.TxError
	require.True(t, xerrors.As(err, &txErr))
	require.Equal(t, ledger.CodeContractFailed, txErr.Code)

	_, err = l.InstantiateContract(ctx, wallet, "counter", nil, ledger.NewCoin(2000, testDenom))
	require.True(t, xerrors.As(err, &txErr))
	require.Equal(t, ledger.CodeInsufficientFunds, txErr.Code)

	addr, err := l.InstantiateContract(ctx, wallet, "counter", nil, ledger.NewCoin(1, testDenom))
	require.NoError(t, err)
	require.NoError(t, ledger.ValidateAddress(addr))
}

func TestLedger_LoadCryptoFromFile(t *testing.T) {
	l, _, _ := makeLedger(t)

	path := t.TempDir() + "/wallet.key"

	signer, err := l.LoadCryptoFromFile(path)
	require.NoError(t, err)

	again, err := l.LoadCryptoFromFile(path)
	require.NoError(t, err)
	require.Equal(t, signer.GetAddress(), again.GetAddress())
}

func TestService_Set(t *testing.T) {
	srvc := NewExecution()
	srvc.Set("counter", counter{})

	require.Panics(t, func() { srvc.Set("counter", counter{}) })

	_, err := srvc.Get("counter")
	require.NoError(t, err)
}

// -----------------------------------------------------------------------------
// Utility functions

func makeLedger(t *testing.T) (*Ledger, *ledger.Wallet, string) {
	faucet := Faucet{Denom: testDenom, Amount: 500, Minimum: 100}

	l, err := NewLedger(fake.NewInMemoryDB(), WithContract("counter", counter{}), WithFaucet(faucet))
	require.NoError(t, err)

	wallet, err := ledger.NewWallet()
	require.NoError(t, err)

	require.NoError(t, l.Mint(wallet.GetAddress(), ledger.NewCoin(1000, testDenom)))

	addr, err := l.InstantiateContract(context.Background(), wallet, "counter", nil)
	require.NoError(t, err)

	return l, wallet, addr
}

var countKey = []byte("count")

// counter is a contract that counts the number of increments.
type counter struct{}

func (counter) Instantiate(env Env, msg []byte) error {
	if string(msg) == "fail" {
		return xerrors.New("contract refused")
	}

	return env.Store.Set(countKey, []byte{0})
}

func (counter) Execute(env Env, msg []byte) ([]byte, error) {
	switch string(msg) {
	case "incr":
		value := []byte{env.Store.Get(countKey)[0] + 1}
		return value, env.Store.Set(countKey, value)
	case "refund":
		coins, err := env.Bank.Balances(env.Contract)
		if err != nil {
			return nil, err
		}

		return nil, env.Bank.Send(env.Sender, coins...)
	default:
		err := env.Store.Set(countKey, []byte{42})
		if err != nil {
			return nil, err
		}

		return nil, xerrors.New("contract refused")
	}
}

func (counter) Query(env Env, msg []byte) ([]byte, error) {
	if string(msg) != "count" {
		return nil, xerrors.New("unknown query")
	}

	return env.Store.Get(countKey), nil
}
