package transaction

import (
	"errors"
	"fmt"
)

// ErrorKind is the coarse classification callers switch on. Business errors
// never count against the circuit breaker; infrastructure errors always do.
type ErrorKind string

const (
	// KindValidation marks malformed input caught before any remote call.
	KindValidation ErrorKind = "VALIDATION"
	// KindBusiness marks an expected domain rejection (insufficient funds,
	// inactive account, same-account transfer).
	KindBusiness ErrorKind = "BUSINESS"
	// KindInfrastructure marks remote timeouts, connection failures, and
	// unexpected authority responses.
	KindInfrastructure ErrorKind = "INFRASTRUCTURE"
	// KindUnavailable marks an operation short-circuited by an open breaker.
	KindUnavailable ErrorKind = "UNAVAILABLE"
	// KindCompensation marks a failed transfer reversal. Requires operator
	// reconciliation and must stay distinguishable on every surface.
	KindCompensation ErrorKind = "COMPENSATION"
)

// ErrorCode identifies the specific failure within a kind.
type ErrorCode string

const (
	CodeInvalidAmount      ErrorCode = "INVALID_AMOUNT"
	CodeInvalidAccountPair ErrorCode = "INVALID_ACCOUNT_PAIR"
	CodeInsufficientFunds  ErrorCode = "INSUFFICIENT_BALANCE"
	CodeAccountInactive    ErrorCode = "ACCOUNT_INACTIVE"
	CodeAccountNotFound    ErrorCode = "ACCOUNT_NOT_FOUND"
	CodeBalanceRejected    ErrorCode = "BALANCE_ADJUSTMENT_REJECTED"
	CodeRemoteFailure      ErrorCode = "ACCOUNT_SERVICE_FAILURE"
	CodeCircuitOpen        ErrorCode = "ACCOUNT_SERVICE_UNAVAILABLE"
	CodeLedgerFailure      ErrorCode = "LEDGER_WRITE_FAILURE"
	CodeCompensationFailed ErrorCode = "COMPENSATION_FAILED"
)

// Error is the tagged error type for every failure the orchestrator surfaces.
type Error struct {
	Kind    ErrorKind
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// NewError builds a tagged error.
func NewError(kind ErrorKind, code ErrorCode, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: cause}
}

// KindOf returns the kind of err, or empty string if err is not a tagged
// transaction error.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}

	return ""
}

// CodeOf returns the code of err, or empty string for untagged errors.
func CodeOf(err error) ErrorCode {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}

	return ""
}

// IsBusiness reports whether err is an expected domain rejection.
func IsBusiness(err error) bool { return KindOf(err) == KindBusiness }

// IsInfrastructure reports whether err is a remote infrastructure fault.
func IsInfrastructure(err error) bool { return KindOf(err) == KindInfrastructure }

// IsUnavailable reports whether err comes from an open circuit breaker.
func IsUnavailable(err error) bool { return KindOf(err) == KindUnavailable }

// IsCompensationFailure reports whether err marks a failed transfer reversal.
func IsCompensationFailure(err error) bool { return KindOf(err) == KindCompensation }
