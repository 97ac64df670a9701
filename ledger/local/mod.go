// Package local implements a single-process ledger backed by a key/value
// database.
//
// Every transaction is executed in its own block, atomically: a rejected
// transaction leaves no trace in the state. Contracts are native Go contracts
// registered by code name before they can be instantiated.
package local

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"go.dedis.ch/pre"
	"go.dedis.ch/pre/core/store/kv"
	"go.dedis.ch/pre/ledger"
	"golang.org/x/xerrors"
)

var (
	promTxs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pre_ledger_transactions_total",
		Help: "total number of transactions broadcast to the local ledger",
	}, []string{"code"})

	promHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pre_ledger_height",
		Help: "height of the last block of the local ledger",
	})
)

func init() {
	pre.PromCollectors = append(pre.PromCollectors, promTxs, promHeight)
}

// Faucet is the configuration of the coins given by EnsureFunds.
type Faucet struct {
	Denom string
	// Amount is given to an address whose balance is below the minimum.
	Amount  uint64
	Minimum uint64
}

// Ledger is a local ledger.
//
// - implements ledger.Ledger
type Ledger struct {
	sync.Mutex

	db     kv.DB
	exec   *Service
	faucet Faucet
	closed bool
}

// Option is the type of options to create a local ledger.
type Option func(*Ledger)

// WithContract registers the contract under the code name.
func WithContract(code string, contract Contract) Option {
	return func(l *Ledger) {
		l.exec.Set(code, contract)
	}
}

// WithFaucet sets the faucet of the ledger.
func WithFaucet(faucet Faucet) Option {
	return func(l *Ledger) {
		l.faucet = faucet
	}
}

// NewLedger creates a ledger on top of the database.
func NewLedger(db kv.DB, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		db:   db,
		exec: NewExecution(),
	}

	for _, opt := range opts {
		opt(l)
	}

	err := db.Update(func(txn kv.WritableTx) error {
		_, err := newState(txn)
		return err
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to initialize: %v", err)
	}

	return l, nil
}

// SignTx implements ledger.Ledger.
func (l *Ledger) SignTx(tx *ledger.Transaction, signer ledger.Crypto) error {
	return tx.Sign(signer)
}

// BroadcastTx implements ledger.Ledger. The transaction is executed in a new
// block. A rejection is returned as a *ledger.TxError and leaves the state
// untouched.
func (l *Ledger) BroadcastTx(ctx context.Context, tx *ledger.Transaction) (ledger.Result, error) {
	err := ctx.Err()
	if err != nil {
		return ledger.Result{}, xerrors.Errorf("broadcast aborted: %v", err)
	}

	hash, err := ledger.TxHash(tx)
	if err != nil {
		return ledger.Result{}, xerrors.Errorf("failed to hash tx: %v", err)
	}

	err = ledger.VerifyTx(tx)
	if err != nil {
		return l.reject(hash, 0, &ledger.TxError{Code: ledger.CodeInvalidSignature, Log: err.Error()})
	}

	l.Lock()
	defer l.Unlock()

	if l.closed {
		return ledger.Result{}, xerrors.New("ledger closed")
	}

	res := ledger.Result{Hash: hash}

	err = l.db.Update(func(txn kv.WritableTx) error {
		s, err := newState(txn)
		if err != nil {
			return err
		}

		res.Height = s.height() + 1

		nonce := s.nonce(tx.Sender)
		if tx.Nonce != nonce {
			return &ledger.TxError{
				Code: ledger.CodeInvalidNonce,
				Log:  xerrors.Errorf("nonce %d != %d", tx.Nonce, nonce).Error(),
			}
		}

		code := s.code(tx.Contract)
		if code == "" {
			return &ledger.TxError{
				Code: ledger.CodeUnknownContract,
				Log:  xerrors.Errorf("%s: %v", tx.Contract, ledger.ErrUnknownContract).Error(),
			}
		}

		contract, err := l.exec.Get(code)
		if err != nil {
			return err
		}

		env, err := l.prepare(txn, s, tx.Sender, tx.Contract, res.Height, tx.Funds)
		if err != nil {
			return err
		}

		res.Data, err = contract.Execute(env, tx.Msg)
		if err != nil {
			return &ledger.TxError{Code: ledger.CodeContractFailed, Log: err.Error()}
		}

		err = s.setNonce(tx.Sender, nonce+1)
		if err != nil {
			return xerrors.Errorf("failed to update nonce: %v", err)
		}

		txn.OnCommit(func() { promHeight.Set(float64(res.Height)) })

		return s.setHeight(res.Height)
	})

	var txErr *ledger.TxError
	if xerrors.As(err, &txErr) {
		return l.reject(hash, res.Height, txErr)
	}

	if err != nil {
		return ledger.Result{}, xerrors.Errorf("failed to execute tx: %v", err)
	}

	promTxs.WithLabelValues(codeLabel(ledger.CodeOK)).Inc()

	pre.Logger.Debug().
		Str("hash", hash).
		Str("sender", tx.Sender).
		Uint64("height", res.Height).
		Msg("transaction included")

	return res, nil
}

// prepare transfers the funds to the contract and returns the environment of
// the call.
func (l *Ledger) prepare(txn kv.WritableTx, s state, sender, contract string,
	height uint64, funds []ledger.Coin) (Env, error) {

	err := s.transfer(sender, contract, funds...)
	if xerrors.Is(err, errInsufficientFunds) {
		return Env{}, &ledger.TxError{Code: ledger.CodeInsufficientFunds, Log: err.Error()}
	}
	if err != nil {
		return Env{}, xerrors.Errorf("failed to transfer funds: %v", err)
	}

	store, err := txn.GetBucketOrCreate(contractStore(contract))
	if err != nil {
		return Env{}, xerrors.Errorf("failed to get contract store: %v", err)
	}

	env := Env{
		Sender:   sender,
		Funds:    funds,
		Height:   height,
		Contract: contract,
		Store:    store,
		Bank:     contractBank{state: s, contract: contract},
	}

	return env, nil
}

func (l *Ledger) reject(hash string, height uint64, txErr *ledger.TxError) (ledger.Result, error) {
	promTxs.WithLabelValues(codeLabel(txErr.Code)).Inc()

	pre.Logger.Debug().
		Str("hash", hash).
		Uint32("code", txErr.Code).
		Str("log", txErr.Log).
		Msg("transaction rejected")

	res := ledger.Result{
		Hash:   hash,
		Height: height,
		Code:   txErr.Code,
		Log:    txErr.Log,
	}

	return res, txErr
}

// Query implements ledger.Ledger.
func (l *Ledger) Query(ctx context.Context, contract string, msg []byte) ([]byte, error) {
	err := ctx.Err()
	if err != nil {
		return nil, xerrors.Errorf("query aborted: %v", err)
	}

	var resp []byte

	err = l.db.View(func(txn kv.ReadableTx) error {
		s, ok := readState(txn)
		if !ok {
			return xerrors.New("ledger not initialized")
		}

		code := s.code(contract)
		if code == "" {
			return xerrors.Errorf("%s: %w", contract, ledger.ErrUnknownContract)
		}

		c, err := l.exec.Get(code)
		if err != nil {
			return err
		}

		store := txn.GetBucket(contractStore(contract))
		if store == nil {
			return xerrors.Errorf("missing store of contract %s", contract)
		}

		env := Env{
			Height:   s.height(),
			Contract: contract,
			Store:    store,
		}

		resp, err = c.Query(env, msg)
		if err != nil {
			return &ledger.QueryError{Msg: err.Error()}
		}

		return nil
	})

	var queryErr *ledger.QueryError
	if xerrors.As(err, &queryErr) {
		return nil, queryErr
	}

	if err != nil {
		return nil, xerrors.Errorf("failed to query: %w", err)
	}

	return resp, nil
}

// GetBalance implements ledger.Ledger.
func (l *Ledger) GetBalance(ctx context.Context, address, denom string) (uint64, error) {
	var amount uint64

	err := l.view(ctx, func(s state) error {
		amount = s.balance(address, denom)
		return nil
	})
	if err != nil {
		return 0, xerrors.Errorf("failed to read balance: %v", err)
	}

	return amount, nil
}

// GetNonce implements ledger.Ledger.
func (l *Ledger) GetNonce(ctx context.Context, address string) (uint64, error) {
	var nonce uint64

	err := l.view(ctx, func(s state) error {
		nonce = s.nonce(address)
		return nil
	})
	if err != nil {
		return 0, xerrors.Errorf("failed to read nonce: %v", err)
	}

	return nonce, nil
}

// GetHeight implements ledger.Ledger.
func (l *Ledger) GetHeight(ctx context.Context) (uint64, error) {
	var height uint64

	err := l.view(ctx, func(s state) error {
		height = s.height()
		return nil
	})
	if err != nil {
		return 0, xerrors.Errorf("failed to read height: %v", err)
	}

	return height, nil
}

// EnsureFunds implements ledger.Ledger. It gives the faucet amount to every
// address whose balance is below the minimum.
func (l *Ledger) EnsureFunds(ctx context.Context, addresses ...string) error {
	if l.faucet.Denom == "" {
		return xerrors.New("faucet not available")
	}

	for _, addr := range addresses {
		err := l.ValidateAddress(addr)
		if err != nil {
			return xerrors.Errorf("invalid address: %v", err)
		}
	}

	err := ctx.Err()
	if err != nil {
		return xerrors.Errorf("aborted: %v", err)
	}

	l.Lock()
	defer l.Unlock()

	return l.db.Update(func(txn kv.WritableTx) error {
		s, err := newState(txn)
		if err != nil {
			return err
		}

		for _, addr := range addresses {
			if s.balance(addr, l.faucet.Denom) >= l.faucet.Minimum {
				continue
			}

			err = s.mint(addr, ledger.NewCoin(l.faucet.Amount, l.faucet.Denom))
			if err != nil {
				return err
			}

			pre.Logger.Info().Str("address", addr).Msg("faucet funded address")
		}

		return nil
	})
}

// Mint creates coins for the address.
func (l *Ledger) Mint(address string, coins ...ledger.Coin) error {
	l.Lock()
	defer l.Unlock()

	return l.db.Update(func(txn kv.WritableTx) error {
		s, err := newState(txn)
		if err != nil {
			return err
		}

		return s.mint(address, coins...)
	})
}

// Advance increases the height of the ledger by the number of empty blocks.
func (l *Ledger) Advance(blocks uint64) error {
	l.Lock()
	defer l.Unlock()

	return l.db.Update(func(txn kv.WritableTx) error {
		s, err := newState(txn)
		if err != nil {
			return err
		}

		height := s.height() + blocks
		txn.OnCommit(func() { promHeight.Set(float64(height)) })

		return s.setHeight(height)
	})
}

// ValidateAddress implements ledger.Ledger.
func (l *Ledger) ValidateAddress(address string) error {
	return ledger.ValidateAddress(address)
}

// LoadCryptoFromFile implements ledger.Ledger.
func (l *Ledger) LoadCryptoFromFile(path string) (ledger.Crypto, error) {
	return ledger.LoadWallet(path)
}

// CheckAvailability implements ledger.Ledger.
func (l *Ledger) CheckAvailability(ctx context.Context) error {
	return l.view(ctx, func(state) error { return nil })
}

// InstantiateContract implements ledger.Ledger. The address of the instance
// is derived from a unique identifier.
func (l *Ledger) InstantiateContract(ctx context.Context, signer ledger.Crypto,
	code string, msg []byte, funds ...ledger.Coin) (string, error) {

	contract, err := l.exec.Get(code)
	if err != nil {
		return "", err
	}

	err = ctx.Err()
	if err != nil {
		return "", xerrors.Errorf("aborted: %v", err)
	}

	address := ledger.Address(xid.New().Bytes())
	sender := signer.GetAddress()

	l.Lock()
	defer l.Unlock()

	err = l.db.Update(func(txn kv.WritableTx) error {
		s, err := newState(txn)
		if err != nil {
			return err
		}

		height := s.height() + 1

		err = s.contracts.Set([]byte(address), []byte(code))
		if err != nil {
			return xerrors.Errorf("failed to store contract: %v", err)
		}

		env, err := l.prepare(txn, s, sender, address, height, funds)
		if err != nil {
			return err
		}

		err = contract.Instantiate(env, msg)
		if err != nil {
			return &ledger.TxError{Code: ledger.CodeContractFailed, Log: err.Error()}
		}

		txn.OnCommit(func() { promHeight.Set(float64(height)) })

		return s.setHeight(height)
	})

	var txErr *ledger.TxError
	if xerrors.As(err, &txErr) {
		return "", txErr
	}

	if err != nil {
		return "", xerrors.Errorf("failed to instantiate: %v", err)
	}

	pre.Logger.Info().
		Str("code", code).
		Str("address", address).
		Msg("contract instantiated")

	return address, nil
}

// Close closes the ledger. The database is left open for its owner.
func (l *Ledger) Close() error {
	l.Lock()
	l.closed = true
	l.Unlock()

	return nil
}

func (l *Ledger) view(ctx context.Context, fn func(state) error) error {
	err := ctx.Err()
	if err != nil {
		return xerrors.Errorf("aborted: %v", err)
	}

	l.Lock()
	closed := l.closed
	l.Unlock()

	if closed {
		return xerrors.New("ledger closed")
	}

	return l.db.View(func(txn kv.ReadableTx) error {
		s, ok := readState(txn)
		if !ok {
			return xerrors.New("ledger not initialized")
		}

		return fn(s)
	})
}

func codeLabel(code uint32) string {
	switch code {
	case ledger.CodeOK:
		return "ok"
	case ledger.CodeContractFailed:
		return "contract_failed"
	case ledger.CodeInsufficientFunds:
		return "insufficient_funds"
	case ledger.CodeInvalidSignature:
		return "invalid_signature"
	case ledger.CodeInvalidNonce:
		return "invalid_nonce"
	case ledger.CodeUnknownContract:
		return "unknown_contract"
	default:
		return "unknown"
	}
}
