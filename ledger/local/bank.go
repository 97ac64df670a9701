package local

import (
	"encoding/binary"

	"go.dedis.ch/pre/core/store/kv"
	"go.dedis.ch/pre/core/store/prefixed"
	"go.dedis.ch/pre/ledger"
	"golang.org/x/xerrors"
)

var (
	bankBucket      = []byte("bank")
	nonceBucket     = []byte("nonces")
	contractsBucket = []byte("contracts")
	metaBucket      = []byte("meta")

	heightKey = []byte("height")
)

// errInsufficientFunds is wrapped in the transfer failures so that the ledger
// can report them with the dedicated code.
var errInsufficientFunds = xerrors.New("insufficient funds")

// state is the view of the ledger state inside a database transaction.
type state struct {
	bank      kv.Bucket
	nonces    kv.Bucket
	contracts kv.Bucket
	meta      kv.Bucket
}

func newState(txn kv.WritableTx) (state, error) {
	var s state
	var err error

	buckets := map[string]*kv.Bucket{
		string(bankBucket):      &s.bank,
		string(nonceBucket):     &s.nonces,
		string(contractsBucket): &s.contracts,
		string(metaBucket):      &s.meta,
	}

	for name, b := range buckets {
		*b, err = txn.GetBucketOrCreate([]byte(name))
		if err != nil {
			return s, xerrors.Errorf("failed to get bucket '%s': %v", name, err)
		}
	}

	return s, nil
}

// readState returns the view of a read-only transaction, or false if the
// ledger was never initialized.
func readState(txn kv.ReadableTx) (state, bool) {
	s := state{
		bank:      txn.GetBucket(bankBucket),
		nonces:    txn.GetBucket(nonceBucket),
		contracts: txn.GetBucket(contractsBucket),
		meta:      txn.GetBucket(metaBucket),
	}

	return s, s.bank != nil && s.nonces != nil && s.contracts != nil && s.meta != nil
}

func (s state) balance(address, denom string) uint64 {
	return decodeUint(prefixed.NewBucket(s.bank, []byte(address)).Get([]byte(denom)))
}

func (s state) balances(address string) ([]ledger.Coin, error) {
	var coins []ledger.Coin

	err := prefixed.NewBucket(s.bank, []byte(address)).ForEach(func(k, v []byte) error {
		amount := decodeUint(v)
		if amount > 0 {
			coins = append(coins, ledger.NewCoin(amount, string(k)))
		}

		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to read balances: %v", err)
	}

	return coins, nil
}

func (s state) setBalance(address, denom string, amount uint64) error {
	b := prefixed.NewBucket(s.bank, []byte(address))

	if amount == 0 {
		return b.Delete([]byte(denom))
	}

	return b.Set([]byte(denom), encodeUint(amount))
}

func (s state) mint(address string, coins ...ledger.Coin) error {
	for _, coin := range coins {
		err := s.setBalance(address, coin.Denom, s.balance(address, coin.Denom)+coin.Amount)
		if err != nil {
			return xerrors.Errorf("failed to mint %v: %v", coin, err)
		}
	}

	return nil
}

func (s state) transfer(from, to string, coins ...ledger.Coin) error {
	for _, coin := range coins {
		if coin.Amount == 0 {
			continue
		}

		current := s.balance(from, coin.Denom)
		if current < coin.Amount {
			return xerrors.Errorf("%s has %d%s, needs %v: %w",
				from, current, coin.Denom, coin, errInsufficientFunds)
		}

		err := s.setBalance(from, coin.Denom, current-coin.Amount)
		if err != nil {
			return xerrors.Errorf("failed to debit: %v", err)
		}

		err = s.setBalance(to, coin.Denom, s.balance(to, coin.Denom)+coin.Amount)
		if err != nil {
			return xerrors.Errorf("failed to credit: %v", err)
		}
	}

	return nil
}

func (s state) nonce(address string) uint64 {
	return decodeUint(s.nonces.Get([]byte(address)))
}

func (s state) setNonce(address string, nonce uint64) error {
	return s.nonces.Set([]byte(address), encodeUint(nonce))
}

func (s state) code(contract string) string {
	return string(s.contracts.Get([]byte(contract)))
}

func (s state) height() uint64 {
	return decodeUint(s.meta.Get(heightKey))
}

func (s state) setHeight(height uint64) error {
	return s.meta.Set(heightKey, encodeUint(height))
}

// contractBank gives a contract access to its own balances.
//
// - implements local.Bank
type contractBank struct {
	state
	contract string
}

// Send implements local.Bank.
func (b contractBank) Send(to string, coins ...ledger.Coin) error {
	err := ledger.ValidateAddress(to)
	if err != nil {
		return xerrors.Errorf("invalid recipient: %v", err)
	}

	return b.transfer(b.contract, to, coins...)
}

// Balances implements local.Bank.
func (b contractBank) Balances(address string) ([]ledger.Coin, error) {
	return b.balances(address)
}

func encodeUint(v uint64) []byte {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, v)

	return buffer
}

func decodeUint(data []byte) uint64 {
	if len(data) != 8 {
		return 0
	}

	return binary.BigEndian.Uint64(data)
}

func contractStore(contract string) []byte {
	return append([]byte("contract:"), contract...)
}
