package ledger

import (
	"context"
	"sync"

	"github.com/jettyvasavi/banking-system-phase2/internal/transaction"
)

// Memory is an in-memory Store used for tests and the local profile. Records
// are kept in insertion order; a map by correlation id enforces idempotency.
type Memory struct {
	mu      sync.Mutex
	records []transaction.Record
	byCorr  map[string]struct{}
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{byCorr: make(map[string]struct{})}
}

// Append stores the record, rejecting duplicate correlation ids.
func (m *Memory) Append(ctx context.Context, rec transaction.Record) (string, error) {
	if rec.CorrelationID == "" {
		return "", ErrEmptyCorrelationID
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byCorr[rec.CorrelationID]; exists {
		return "", ErrDuplicateRecord
	}

	m.byCorr[rec.CorrelationID] = struct{}{}
	m.records = append(m.records, rec)

	return rec.ID, nil
}

// FindByAccount returns all records touching the account, in creation order.
func (m *Memory) FindByAccount(ctx context.Context, accountNumber string) ([]transaction.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]transaction.Record, 0)
	for _, rec := range m.records {
		if rec.Involves(accountNumber) {
			out = append(out, rec)
		}
	}

	return out, nil
}

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.records)
}
