// Package client implements the roles of the re-encryption contract on top of
// a ledger. The messages are JSON documents and the failures reported by the
// ledger are classified with the errors of the contract package.
package client

import (
	"context"
	"encoding/json"
	"sync"

	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/ledger"
	"golang.org/x/xerrors"
)

// Client is a connection to an instance of the contract. It keeps one
// transaction manager per signer so that the nonces are managed locally.
//
// - implements contract.Admin
// - implements contract.Delegator
// - implements contract.Proxy
type Client struct {
	sync.Mutex

	ledger   ledger.Ledger
	contract string
	managers map[string]*ledger.TransactionManager
}

// NewClient returns a client of the contract at the address.
func NewClient(l ledger.Ledger, contractAddr string) *Client {
	return &Client{
		ledger:   l,
		contract: contractAddr,
		managers: make(map[string]*ledger.TransactionManager),
	}
}

// Instantiate deploys a new instance of the contract and returns a client of
// it.
func Instantiate(ctx context.Context, l ledger.Ledger, signer ledger.Crypto,
	params contract.InstantiateParams) (*Client, error) {

	msg, err := json.Marshal(contract.NewInstantiateMsg(params))
	if err != nil {
		return nil, xerrors.Errorf("failed to encode message: %v", err)
	}

	addr, err := l.InstantiateContract(ctx, signer, contract.Code, msg)
	if err != nil {
		var txErr *ledger.TxError
		if xerrors.As(err, &txErr) {
			return nil, &contract.ExecutionError{Kind: contract.ErrInstantiateFailure, Msg: txErr.Log}
		}

		return nil, xerrors.Errorf("failed to instantiate: %v", err)
	}

	return NewClient(l, addr), nil
}

// Address returns the address of the contract.
func (c *Client) Address() string {
	return c.contract
}

// Ledger returns the ledger hosting the contract.
func (c *Client) Ledger() ledger.Ledger {
	return c.ledger
}

func (c *Client) manager(signer ledger.Crypto) *ledger.TransactionManager {
	c.Lock()
	defer c.Unlock()

	mgr := c.managers[signer.GetAddress()]
	if mgr == nil {
		mgr = ledger.NewManager(c.ledger, signer)
		c.managers[signer.GetAddress()] = mgr
	}

	return mgr
}

func (c *Client) execute(ctx context.Context, signer ledger.Crypto, msg contract.ExecuteMsg,
	funds ...ledger.Coin) ([]byte, error) {

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode message: %v", err)
	}

	res, err := c.manager(signer).Execute(ctx, c.contract, data, funds...)
	if err != nil {
		return nil, c.classify(err)
	}

	return res.Data, nil
}

func (c *Client) classify(err error) error {
	var txErr *ledger.TxError
	if !xerrors.As(err, &txErr) {
		return xerrors.Errorf("failed to execute: %v", err)
	}

	switch txErr.Code {
	case ledger.CodeContractFailed:
		return contract.NewExecutionError(txErr.Log)
	case ledger.CodeInsufficientFunds:
		return &contract.ExecutionError{Kind: contract.ErrWalletInsufficientFunds, Msg: txErr.Log}
	case ledger.CodeUnknownContract:
		return xerrors.Errorf("%s: %w", c.contract, contract.ErrBadContractAddress)
	default:
		return xerrors.Errorf("failed to execute: %w", txErr)
	}
}

func (c *Client) query(ctx context.Context, msg contract.QueryMsg, resp interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return xerrors.Errorf("failed to encode query: %v", err)
	}

	out, err := c.ledger.Query(ctx, c.contract, data)
	if err != nil {
		var queryErr *ledger.QueryError
		if xerrors.As(err, &queryErr) {
			return contract.NewQueryError(queryErr.Msg)
		}

		if xerrors.Is(err, ledger.ErrUnknownContract) {
			return xerrors.Errorf("%s: %w", c.contract, contract.ErrBadContractAddress)
		}

		return xerrors.Errorf("failed to query: %v", err)
	}

	err = json.Unmarshal(out, resp)
	if err != nil {
		return xerrors.Errorf("failed to decode response: %v", err)
	}

	return nil
}
