package types

import (
	"errors"
	"fmt"
)

// Protocol error taxonomy. Trade-validation errors are fatal to the specific
// trade attempt, not to the process; balance and allowance errors are
// recoverable once the caller tops up.
var (
	ErrInsufficientBalanceForTransfer   = errors.New("insufficient balance for transfer")
	ErrInsufficientAllowanceForTransfer = errors.New("insufficient allowance for transfer")
	ErrInsufficientCollateralBalance    = errors.New("insufficient collateral balance")
	ErrInvalidSignature                 = errors.New("invalid order signature")
	ErrInvalidTaker                     = errors.New("order taker does not match sender")
	ErrOrderExpired                     = errors.New("order expired")
	ErrOrderFilledOrCancelled           = errors.New("order already filled or cancelled")
	ErrBuySellMismatch                  = errors.New("fill qty sign does not match order qty sign")
	ErrOrderDead                        = errors.New("order dead")
	ErrUnknownOrder                     = errors.New("unknown order error")
	ErrContractAlreadySettled           = errors.New("market contract already settled")
	ErrUserNotEnabledForContract        = errors.New("user not enabled for contract")

	// ErrHashComputation wraps a remote oracle failure during order hashing.
	// It is propagated, never retried at this layer.
	ErrHashComputation = errors.New("order hash computation failed")

	// Watcher misuse. Programmer errors, not retried.
	ErrSubscriptionAlreadyPresent = errors.New("subscription already present")
	ErrSubscriptionNotFound       = errors.New("subscription not found")
)

// InvalidAddressError reports a malformed or zero ledger address supplied to
// an operation that requires a real one. Raised before any remote call.
type InvalidAddressError struct {
	Field   string
	Address string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid address for %s: %q", e.Field, e.Address)
}

// InvalidOrderFieldError reports a missing or malformed order field caught
// before hashing.
type InvalidOrderFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidOrderFieldError) Error() string {
	return fmt.Sprintf("invalid order field %s: %s", e.Field, e.Reason)
}
