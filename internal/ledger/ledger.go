// Package ledger persists the transaction records produced by the
// orchestrator. The store is append-mostly: records are written once with a
// terminal status and never deleted by this service.
package ledger

import (
	"context"
	"errors"

	"github.com/jettyvasavi/banking-system-phase2/internal/transaction"
)

var (
	// ErrDuplicateRecord is returned when a record with the same correlation
	// id was already appended. It is the idempotency guard against a retried
	// orchestration step re-logging the same attempt.
	ErrDuplicateRecord = errors.New("ledger: record with this correlation id already exists")
	// ErrEmptyCorrelationID is returned when a record is missing its
	// correlation id.
	ErrEmptyCorrelationID = errors.New("ledger: correlation id is required")
)

// Store is the ledger contract. Append must be safe to call concurrently for
// different correlation ids. FindByAccount returns records where the account
// appears as source or destination, in creation order; result size is
// unbounded (pagination is an external concern).
type Store interface {
	Append(ctx context.Context, rec transaction.Record) (string, error)
	FindByAccount(ctx context.Context, accountNumber string) ([]transaction.Record, error)
}
