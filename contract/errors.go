package contract

import (
	"fmt"
	"strings"

	"golang.org/x/xerrors"
)

// Errors of the transactions refused by the contract. They are wrapped in an
// *ExecutionError.
var (
	ErrContractExecution                     = xerrors.New("contract execution failed")
	ErrProxyAlreadyExist                     = xerrors.New("proxy already exists")
	ErrProxyAlreadyRegistered                = xerrors.New("proxy already registered")
	ErrProxyNotActive                        = xerrors.New("proxy not active")
	ErrProxyNotRegistered                    = xerrors.New("proxy not registered")
	ErrUnknownProxy                          = xerrors.New("unknown proxy")
	ErrProxyPubkeyMismatch                   = xerrors.New("proxy public key mismatch")
	ErrDataAlreadyExist                      = xerrors.New("data already exists")
	ErrDataEntryDoesNotExist                 = xerrors.New("data entry does not exist")
	ErrNotOwner                              = xerrors.New("not the data owner")
	ErrDelegationAlreadyExist                = xerrors.New("delegation already exists")
	ErrDelegationAlreadyAdded                = xerrors.New("delegation string already added")
	ErrDelegationDoesNotExist                = xerrors.New("delegation does not exist")
	ErrReencryptionNotPermitted              = xerrors.New("re-encryption not permitted")
	ErrReencryptionAlreadyRequested          = xerrors.New("re-encryption already requested")
	ErrUnknownReencryptionRequest            = xerrors.New("unknown re-encryption request")
	ErrRequestTimedOut                       = xerrors.New("re-encryption request timed out")
	ErrRequestNotTimedOut                    = xerrors.New("re-encryption request not timed out")
	ErrReencryptedCapsuleFragAlreadyProvided = xerrors.New("re-encrypted capsule fragment already provided")
	ErrFragmentVerificationFailed            = xerrors.New("fragment verification failed")
	ErrNotEnoughStakeToWithdraw              = xerrors.New("not enough stake to withdraw")
	ErrNotEnoughProxies                      = xerrors.New("not enough proxies")
	ErrProxiesAreTooBusy                     = xerrors.New("proxies are too busy")
	ErrInvalidFunds                          = xerrors.New("invalid funds")
	ErrWalletInsufficientFunds               = xerrors.New("wallet has insufficient funds")
	ErrContractTerminated                    = xerrors.New("contract terminated")
	ErrContractNotTerminated                 = xerrors.New("contract not terminated")
	ErrContractWithdrawn                     = xerrors.New("contract withdrawn")
	ErrWithdrawalNotAvailable                = xerrors.New("withdrawal not available")
	ErrNotAdmin                              = xerrors.New("not the admin")
	ErrInstantiateFailure                    = xerrors.New("contract instantiation failed")
)

// Errors of the queries. They are wrapped in a *QueryError.
var (
	ErrContractQuery              = xerrors.New("contract query failed")
	ErrQueryDataEntryDoesNotExist = xerrors.New("queried data entry does not exist")
	ErrBadContractAddress         = xerrors.New("bad contract address")
)

// Phrases of the contract failures and the error they are classified as. The
// first match wins.
var executionPhrases = []struct {
	phrase string
	err    error
}{
	{"Proxy already registered.", ErrProxyAlreadyRegistered},
	{"is already proxy", ErrProxyAlreadyExist},
	{"Proxy already deactivated", ErrProxyNotActive},
	{"Proxy not active", ErrProxyNotActive},
	{"Proxy already unregistered", ErrProxyNotRegistered},
	{"Proxy not registered", ErrProxyNotRegistered},
	{"Unregistered proxy with address", ErrProxyNotRegistered},
	{"Sender is not a proxy", ErrUnknownProxy},
	{"Unknown proxy with address", ErrUnknownProxy},
	{"to use a different public key", ErrProxyPubkeyMismatch},
	{"already exist.", ErrDataAlreadyExist},
	{"does not exist.", ErrDataEntryDoesNotExist},
	{"Data entry doesn't exist", ErrDataEntryDoesNotExist},
	{"Sender is not a data owner.", ErrNotOwner},
	{"already registered with this pubkey.", ErrNotOwner},
	{"Delegation already exists.", ErrDelegationAlreadyExist},
	{"Delegation string was already provided", ErrDelegationAlreadyAdded},
	{"ProxyDelegation doesn't exist.", ErrDelegationDoesNotExist},
	{"Reencryption is not permitted.", ErrReencryptionNotPermitted},
	{"Reencryption already requested", ErrReencryptionAlreadyRequested},
	{"This fragment was not requested.", ErrUnknownReencryptionRequest},
	{"Task doesn't exist.", ErrUnknownReencryptionRequest},
	{"Task was already resolved.", ErrUnknownReencryptionRequest},
	{"Request timed out.", ErrRequestTimedOut},
	{"Task timed out.", ErrRequestTimedOut},
	{"Task is not timed-out.", ErrRequestNotTimedOut},
	{"Fragment already provided", ErrReencryptedCapsuleFragAlreadyProvided},
	{"Task was already completed.", ErrReencryptedCapsuleFragAlreadyProvided},
	{"Fragment verification failed", ErrFragmentVerificationFailed},
	{"Not enough stake to withdraw", ErrNotEnoughStakeToWithdraw},
	{"Required at least", ErrNotEnoughProxies},
	{"Proxies are too busy", ErrProxiesAreTooBusy},
	{"Expected 1 Coin with denom", ErrInvalidFunds},
	{"Requires at least", ErrInvalidFunds},
	{"Contract was terminated.", ErrContractTerminated},
	{"Contract not terminated", ErrContractNotTerminated},
	{"were already withdrawn.", ErrContractWithdrawn},
	{"Withdrawal will be possible at height", ErrWithdrawalNotAvailable},
	{"Nothing to withdraw", ErrWithdrawalNotAvailable},
	{"Only admin can execute this method.", ErrNotAdmin},
	{"Threshold cannot be 0", ErrInstantiateFailure},
	{"Stake denom cannot be empty", ErrInstantiateFailure},
}

// ExecutionError is a transaction refused by the contract or the ledger.
type ExecutionError struct {
	// Kind is the class of the failure, or nil if it is unknown.
	Kind error
	Msg  string
}

// NewExecutionError returns the error of the failure message of the contract.
func NewExecutionError(msg string) *ExecutionError {
	e := &ExecutionError{Msg: msg}

	for _, p := range executionPhrases {
		if strings.Contains(msg, p.phrase) {
			e.Kind = p.err
			break
		}
	}

	return e
}

// Error implements error.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%v: %s", ErrContractExecution, e.Msg)
}

// Unwrap returns the class of the failure.
func (e *ExecutionError) Unwrap() error {
	return e.Kind
}

// Is returns true for ErrContractExecution so that every refused transaction
// can be recognized.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrContractExecution
}

// QueryError is a query refused by the contract.
type QueryError struct {
	Kind error
	Msg  string
}

// NewQueryError returns the error of the failure message of a query.
func NewQueryError(msg string) *QueryError {
	e := &QueryError{Msg: msg}

	if strings.Contains(msg, "Data entry doesn't exist") {
		e.Kind = ErrQueryDataEntryDoesNotExist
	}

	return e
}

// Error implements error.
func (e *QueryError) Error() string {
	return fmt.Sprintf("%v: %s", ErrContractQuery, e.Msg)
}

// Unwrap returns the class of the failure.
func (e *QueryError) Unwrap() error {
	return e.Kind
}

// Is returns true for ErrContractQuery.
func (e *QueryError) Is(target error) bool {
	return target == ErrContractQuery
}
