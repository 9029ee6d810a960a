package mintsdk

import (
	"errors"
	"fmt"

	"github.com/kaifufi/mint-sdk-go/chain"
)

var (
	// ErrInvalidParam represents an invalid parameter error
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrNotEligible represents a wallet that cannot mint the requested quantity
	ErrNotEligible = errors.New("not eligible")

	// ErrBalanceNotEnough represents insufficient balance error
	ErrBalanceNotEnough = errors.New("balance not enough")

	// ErrWrongNetwork represents an account connected to the wrong network
	ErrWrongNetwork = errors.New("wrong network")

	// ErrTransactionReverted represents a mined transaction with failed status
	ErrTransactionReverted = errors.New("transaction reverted")

	// ErrTokenMismatch represents arithmetic across different tokens
	ErrTokenMismatch = errors.New("token mismatch")

	// ErrAmountOverflow represents an amount that does not fit in 256 bits
	ErrAmountOverflow = errors.New("amount overflow")

	// ErrPurchaseConsumed represents a prepared purchase that was already executed
	ErrPurchaseConsumed = errors.New("purchase already executed")

	// ErrExecutionAborted represents an execution stopped by its caller
	ErrExecutionAborted = errors.New("execution aborted")

	// ErrTransactionPending represents a broadcast transaction whose receipt is still unknown
	ErrTransactionPending = errors.New("transaction pending")

	// ErrOrderCompleted represents a resume request for an order with nothing left to do
	ErrOrderCompleted = errors.New("order already completed")

	// ErrAllowlist represents an allowlist provider failure
	ErrAllowlist = errors.New("allowlist error")

	// ErrContractRead represents a failed on-chain read
	ErrContractRead = errors.New("contract read failed")
)

// InvalidParamError represents an invalid parameter error with context
type InvalidParamError struct {
	Message string
}

func (e *InvalidParamError) Error() string {
	return e.Message
}

func (e *InvalidParamError) Unwrap() error {
	return ErrInvalidParam
}

func invalidParam(format string, args ...interface{}) error {
	return &InvalidParamError{Message: fmt.Sprintf(format, args...)}
}

// EligibilityError reports why a wallet cannot mint the requested quantity
type EligibilityError struct {
	Reason      string
	MaxQuantity int64
}

func (e *EligibilityError) Error() string {
	if e.MaxQuantity > 0 {
		return fmt.Sprintf("not eligible: %s (max %d)", e.Reason, e.MaxQuantity)
	}
	return "not eligible: " + e.Reason
}

func (e *EligibilityError) Unwrap() error {
	return ErrNotEligible
}

// InsufficientFundsError reports a wallet balance below the required amount
type InsufficientFundsError struct {
	Token     TokenID
	Required  Money
	Available Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient %s balance: required %s, available %s", e.Required.Symbol(), e.Required, e.Available)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrBalanceNotEnough
}

// NetworkMismatchError reports an account that could not be moved to the product network
type NetworkMismatchError struct {
	Want NetworkID
	Got  NetworkID
}

func (e *NetworkMismatchError) Error() string {
	return fmt.Sprintf("account on network %d, product on network %d", e.Got, e.Want)
}

func (e *NetworkMismatchError) Unwrap() error {
	return ErrWrongNetwork
}

// StepError reports the transaction step that stopped an execution
type StepError struct {
	StepID string
	Kind   StepKind
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step %s failed: %v", e.Kind, e.StepID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ContractReadError represents an on-chain read failure with the method that failed
type ContractReadError struct {
	Method string
	Err    error
}

func (e *ContractReadError) Error() string {
	return fmt.Sprintf("contract read %s: %v", e.Method, e.Err)
}

func (e *ContractReadError) Unwrap() []error {
	return []error{ErrContractRead, e.Err}
}

func contractReadError(fallbackMethod string, err error) error {
	var already *ContractReadError
	if errors.As(err, &already) {
		return err
	}
	method := fallbackMethod
	var callErr *chain.CallError
	if errors.As(err, &callErr) {
		method = callErr.Method
	}
	return &ContractReadError{Method: method, Err: err}
}

// AllowlistError represents an allowlist provider error with context
type AllowlistError struct {
	Message string
	Status  int
}

func (e *AllowlistError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("allowlist: HTTP %d: %s", e.Status, e.Message)
	}
	return "allowlist: " + e.Message
}

func (e *AllowlistError) Unwrap() error {
	return ErrAllowlist
}
