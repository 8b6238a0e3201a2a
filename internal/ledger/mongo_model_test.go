package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jettyvasavi/banking-system-phase2/internal/transaction"
)

func TestMongoRecordKeepsDecimalPrecision(t *testing.T) {
	rec := transaction.NewTransferRecord("A1", "A2", decimal.RequireFromString("100.10"), transaction.StatusSuccess)

	doc := mongoRecord(rec)
	assert.Equal(t, "100.1", doc.Amount)

	back, err := doc.toRecord()
	require.NoError(t, err)
	assert.True(t, rec.Amount.Equal(back.Amount))
	assert.Equal(t, rec.CorrelationID, back.CorrelationID)
	assert.Equal(t, rec.Kind, back.Kind)
	assert.Equal(t, rec.Status, back.Status)
}

func TestMongoRecordRejectsCorruptAmount(t *testing.T) {
	doc := mongoRecordDoc{ID: "r1", CorrelationID: "TXN-x", Amount: "not-a-number"}

	_, err := doc.toRecord()
	assert.Error(t, err)
}
