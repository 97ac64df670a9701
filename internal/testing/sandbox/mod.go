// Package sandbox provides a local deployment of the contract for the tests of
// the agents: an in-memory ledger running the native contract, a blob store in
// a temporary directory and the umbral engine.
package sandbox

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/contract/client"
	"go.dedis.ch/pre/contract/native"
	"go.dedis.ch/pre/crypto"
	"go.dedis.ch/pre/crypto/umbral"
	"go.dedis.ch/pre/internal/testing/fake"
	"go.dedis.ch/pre/ledger"
	"go.dedis.ch/pre/ledger/local"
	"go.dedis.ch/pre/storage/blob"
)

// Denom is the denomination of the stakes and rewards.
const Denom = "upre"

// Balance is the amount given to every wallet.
const Balance = 10000

// Sandbox is a local deployment of the contract.
type Sandbox struct {
	t *testing.T

	Ledger  *local.Ledger
	Client  *client.Client
	Storage *blob.Store
	Engine  crypto.Engine
	Admin   ledger.Crypto
}

// New instantiates a contract with the parameters. The stake denomination
// defaults to Denom.
func New(t *testing.T, params contract.InstantiateParams) *Sandbox {
	l, err := local.NewLedger(fake.NewInMemoryDB(),
		local.WithContract(contract.Code, native.NewContract()))
	require.NoError(t, err)

	s := &Sandbox{
		t:       t,
		Ledger:  l,
		Storage: blob.NewStore(filepath.Join(t.TempDir(), "blobs.db")),
		Engine:  umbral.NewEngine(),
	}

	s.Admin = s.Wallet()

	if params.StakeDenom == "" {
		params.StakeDenom = Denom
	}

	s.Client, err = client.Instantiate(context.Background(), l, s.Admin, params)
	require.NoError(t, err)

	require.NoError(t, s.Storage.Connect(context.Background()))
	t.Cleanup(func() { s.Storage.Disconnect() })

	return s
}

// Wallet returns a new ledger identity with Balance coins.
func (s *Sandbox) Wallet() ledger.Crypto {
	wallet, err := ledger.NewWallet()
	require.NoError(s.t, err)

	require.NoError(s.t, s.Ledger.Mint(wallet.GetAddress(), ledger.NewCoin(Balance, Denom)))

	return wallet
}

// Key returns a new encryption key.
func (s *Sandbox) Key() crypto.PrivateKey {
	key, err := s.Engine.MakeNewKey()
	require.NoError(s.t, err)

	return key
}

// Balance returns the balance of the address.
func (s *Sandbox) Balance(addr string) uint64 {
	balance, err := s.Ledger.GetBalance(context.Background(), addr, Denom)
	require.NoError(s.t, err)

	return balance
}

// Proxy is a proxy registered in the contract.
type Proxy struct {
	Wallet ledger.Crypto
	Key    crypto.PrivateKey
}

// RegisterProxy registers a new proxy with the stake.
func (s *Sandbox) RegisterProxy(stake uint64) Proxy {
	p := Proxy{Wallet: s.Wallet(), Key: s.Key()}

	pubkey, err := p.Key.PublicKey().MarshalBinary()
	require.NoError(s.t, err)

	err = s.Client.ProxyRegister(context.Background(), p.Wallet, pubkey, ledger.NewCoin(stake, Denom))
	require.NoError(s.t, err)

	return p
}

// Reencrypt provides the fragments of all the tasks of the proxy.
func (s *Sandbox) Reencrypt(p Proxy) int {
	ctx := context.Background()

	tasks, err := s.Client.GetProxyTasks(ctx, p.Wallet.GetAddress())
	require.NoError(s.t, err)

	for _, task := range tasks {
		delegator, err := s.Engine.LoadPublicKey(task.DelegatorPubkey)
		require.NoError(s.t, err)

		delegatee, err := s.Engine.LoadPublicKey(task.DelegateePubkey)
		require.NoError(s.t, err)

		fragment, err := s.Engine.Reencrypt(task.Capsule, task.DelegationString, p.Key, delegator, delegatee)
		require.NoError(s.t, err)

		err = s.Client.ProvideReencryptedFragment(ctx, p.Wallet, task.DataID, task.DelegateePubkey, fragment)
		require.NoError(s.t, err)
	}

	return len(tasks)
}
