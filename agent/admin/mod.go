// Package admin implements the agent of the administrator of a contract.
package admin

import (
	"context"

	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/contract/client"
	"go.dedis.ch/pre/ledger"
	"golang.org/x/xerrors"
)

// Agent is the agent of an administrator.
type Agent struct {
	signer   ledger.Crypto
	contract contract.Admin
}

// NewAgent returns the agent of the administrator of the contract.
func NewAgent(signer ledger.Crypto, c contract.Admin) *Agent {
	return &Agent{
		signer:   signer,
		contract: c,
	}
}

// InstantiateContract deploys a new contract administered by the signer, unless
// the parameters name another administrator.
func InstantiateContract(ctx context.Context, l ledger.Ledger, signer ledger.Crypto,
	params contract.InstantiateParams) (*Agent, *client.Client, error) {

	c, err := client.Instantiate(ctx, l, signer, params)
	if err != nil {
		return nil, nil, xerrors.Errorf("failed to instantiate contract: %w", err)
	}

	return NewAgent(signer, c), c, nil
}

// AddProxy authorises the address to register as a proxy.
func (a *Agent) AddProxy(ctx context.Context, addr string) error {
	err := a.contract.AddProxy(ctx, a.signer, addr)
	if err != nil {
		return xerrors.Errorf("failed to add proxy: %w", err)
	}

	return nil
}

// RemoveProxy removes the proxy from the contract and pays back its stake.
func (a *Agent) RemoveProxy(ctx context.Context, addr string) error {
	err := a.contract.RemoveProxy(ctx, a.signer, addr)
	if err != nil {
		return xerrors.Errorf("failed to remove proxy: %w", err)
	}

	return nil
}

// TerminateContract stops the contract from accepting new requests.
func (a *Agent) TerminateContract(ctx context.Context) error {
	err := a.contract.TerminateContract(ctx, a.signer)
	if err != nil {
		return xerrors.Errorf("failed to terminate contract: %w", err)
	}

	return nil
}

// WithdrawContract sends the remaining balance of a terminated contract to the
// recipient.
func (a *Agent) WithdrawContract(ctx context.Context, recipient string) error {
	err := a.contract.WithdrawContract(ctx, a.signer, recipient)
	if err != nil {
		return xerrors.Errorf("failed to withdraw contract: %w", err)
	}

	return nil
}
