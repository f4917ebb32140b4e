package ledger

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the ledger services.
var (
	ErrInvalidAmount             = errors.New("invalid amount")
	ErrInsufficientStake         = errors.New("insufficient stake")
	ErrUnauthorized              = errors.New("unauthorized")
	ErrNothingToClaim            = errors.New("nothing to claim")
	ErrNoMoreRewardsAvailable    = errors.New("no more rewards available")
	ErrInvalidSubscriptionType   = errors.New("invalid subscription type")
	ErrInvalidSubscriptionPrices = errors.New("invalid subscription prices")
	ErrInvalidCallPrice          = errors.New("invalid call price")
	ErrCallDoesNotExist          = errors.New("call does not exist")
	ErrPaymentRequired           = errors.New("payment required")
	ErrInsufficientAllowance     = errors.New("insufficient allowance")
	ErrInsufficientBalance       = errors.New("insufficient balance")
	ErrInvalidAddress            = errors.New("invalid address")
	ErrArithmeticOverflow        = errors.New("arithmetic overflow")
	ErrClubDoesNotExist          = errors.New("club does not exist")
	ErrTokenNotAccepted          = errors.New("token not accepted")
	ErrEligibilityFrozen         = errors.New("eligibility frozen")
	ErrStakeOutstanding          = errors.New("stake outstanding")
	ErrInvalidUsername           = errors.New("invalid username")
	ErrInvalidClubName           = errors.New("invalid club name")
	ErrInvalidCall               = errors.New("invalid call")
	ErrNotConfigured             = errors.New("not configured")
	ErrProfileDoesNotExist       = errors.New("profile does not exist")
	ErrAlreadyPaid               = errors.New("call already paid")
	ErrInvalidServiceConfig      = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
