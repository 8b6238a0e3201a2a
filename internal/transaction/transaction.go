// Package transaction holds the domain model for money-movement operations:
// the persisted transaction record, the error taxonomy callers switch on, and
// correlation-id generation.
package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a money-movement operation.
type Kind string

const (
	// KindDeposit credits a single destination account.
	KindDeposit Kind = "DEPOSIT"
	// KindWithdraw debits a single source account.
	KindWithdraw Kind = "WITHDRAW"
	// KindTransfer debits a source account and credits a destination account.
	KindTransfer Kind = "TRANSFER"
)

// Status is the terminal outcome recorded for an attempted operation.
//
// Semantics:
//   - SUCCESS: every remote mutation applied.
//   - FAILED: rejected or failed before any net balance change.
//   - COMPENSATED: a transfer debit was applied, the credit failed, and the
//     reversing credit succeeded. Net effect is no balance change.
//   - COMPENSATION_FAILED: the reversing credit itself failed. Manual
//     reconciliation is required; this state is never self-healing.
//   - SERVICE_UNAVAILABLE: the circuit breaker short-circuited the operation
//     before it could complete.
type Status string

const (
	StatusSuccess            Status = "SUCCESS"
	StatusFailed             Status = "FAILED"
	StatusCompensated        Status = "COMPENSATED"
	StatusCompensationFailed Status = "COMPENSATION_FAILED"
	StatusServiceUnavailable Status = "SERVICE_UNAVAILABLE"
)

// Record is one row of the transaction ledger: exactly one per attempted
// operation, immutable after creation.
type Record struct {
	ID                 string          `json:"id"`
	CorrelationID      string          `json:"transactionId"`
	Kind               Kind            `json:"type"`
	Amount             decimal.Decimal `json:"amount"`
	SourceAccount      string          `json:"sourceAccount,omitempty"`
	DestinationAccount string          `json:"destinationAccount,omitempty"`
	Status             Status          `json:"status"`
	CreatedAt          time.Time       `json:"timestamp"`
}

// NewDepositRecord builds a deposit record. The account is the destination.
func NewDepositRecord(accountNumber string, amount decimal.Decimal, status Status) Record {
	return Record{
		ID:                 NewRecordID(),
		CorrelationID:      NextCorrelationID(),
		Kind:               KindDeposit,
		Amount:             amount,
		DestinationAccount: accountNumber,
		Status:             status,
		CreatedAt:          time.Now().UTC(),
	}
}

// NewWithdrawRecord builds a withdrawal record. The account is the source.
func NewWithdrawRecord(accountNumber string, amount decimal.Decimal, status Status) Record {
	return Record{
		ID:            NewRecordID(),
		CorrelationID: NextCorrelationID(),
		Kind:          KindWithdraw,
		Amount:        amount,
		SourceAccount: accountNumber,
		Status:        status,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewTransferRecord builds a transfer record with both sides populated.
func NewTransferRecord(source, destination string, amount decimal.Decimal, status Status) Record {
	return Record{
		ID:                 NewRecordID(),
		CorrelationID:      NextCorrelationID(),
		Kind:               KindTransfer,
		Amount:             amount,
		SourceAccount:      source,
		DestinationAccount: destination,
		Status:             status,
		CreatedAt:          time.Now().UTC(),
	}
}

// Involves reports whether the record touches the given account as source or
// destination.
func (r Record) Involves(accountNumber string) bool {
	return r.SourceAccount == accountNumber || r.DestinationAccount == accountNumber
}

// ValidateAmount rejects non-positive amounts. Request shape validation
// happens upstream; this is the orchestrator's defensive re-check.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewError(KindValidation, CodeInvalidAmount, "amount must be greater than zero", nil)
	}

	return nil
}
