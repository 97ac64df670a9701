package local

import (
	"go.dedis.ch/pre/core/store/kv"
	"go.dedis.ch/pre/ledger"
	"golang.org/x/xerrors"
)

// Bank is the view of the balances given to a contract. Coins are always sent
// from the account of the contract.
type Bank interface {
	// Send transfers the coins from the contract to the address.
	Send(to string, coins ...ledger.Coin) error

	// Balances returns the coins owned by the address.
	Balances(address string) ([]ledger.Coin, error)
}

// Env is the environment of a contract call.
type Env struct {
	// Sender is the address that signed the transaction, or empty for a
	// query.
	Sender string

	// Funds are the coins attached to the transaction. They are already
	// transferred to the contract when it is called.
	Funds []ledger.Coin

	// Height is the height of the block that includes the transaction.
	Height uint64

	// Contract is the address of the contract.
	Contract string

	// Store is the private storage of the contract. It is read-only for a
	// query.
	Store kv.Bucket

	// Bank is nil for a query.
	Bank Bank
}

// Contract is the interface to implement to register a smart contract that
// will be executed natively. An error rolls back every change of the call.
type Contract interface {
	Instantiate(env Env, msg []byte) error
	Execute(env Env, msg []byte) ([]byte, error)
	Query(env Env, msg []byte) ([]byte, error)
}

// Service is an execution service for packaged contracts.
type Service struct {
	contracts map[string]Contract
}

// NewExecution returns a new native execution.
func NewExecution() *Service {
	return &Service{
		contracts: map[string]Contract{},
	}
}

// Set stores the contract using the code name as the key. An instantiation
// with the same code name creates a new instance of this contract.
func (s *Service) Set(code string, contract Contract) {
	if _, ok := s.contracts[code]; ok {
		panic(xerrors.Errorf("contract '%s' already registered", code))
	}

	s.contracts[code] = contract
}

// Get returns the contract of the code name.
func (s *Service) Get(code string) (Contract, error) {
	contract := s.contracts[code]
	if contract == nil {
		return nil, xerrors.Errorf("unknown contract code '%s'", code)
	}

	return contract, nil
}
