package service

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailTaken            = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrUserBlocked           = errors.New("user account is blocked")
	ErrCannotBlockAdmin      = errors.New("admin accounts cannot be blocked")
	ErrAccountHasObligations = errors.New("account still holds funds, active rentals or open withdrawals")

	ErrRentalNotFound  = errors.New("rental not found")
	ErrRentalNotActive = errors.New("rental is not active")
	ErrUnknownCurrency = errors.New("unknown rental currency")

	ErrPaymentNotFound  = errors.New("payment not found")
	ErrGatewayRejected  = errors.New("payment gateway rejected the request")
	ErrCallbackRejected = errors.New("callback token mismatch")

	ErrWithdrawalNotFound   = errors.New("withdrawal not found")
	ErrWithdrawalPending    = errors.New("a withdrawal is already pending")
	ErrWithdrawalBelowMin   = errors.New("withdrawal amount is below the minimum")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrKycNotFound          = errors.New("kyc profile not found")
	ErrSupportMessageAbsent = errors.New("support message not found")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
