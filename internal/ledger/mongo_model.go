package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jettyvasavi/banking-system-phase2/internal/transaction"
)

// mongoRecordDoc is the persisted shape of a transaction record. The amount
// is stored as its decimal string form so currency precision survives the
// round trip.
type mongoRecordDoc struct {
	ID                 string    `bson:"_id"`
	CorrelationID      string    `bson:"correlationId"`
	Kind               string    `bson:"kind"`
	Amount             string    `bson:"amount"`
	SourceAccount      string    `bson:"sourceAccount,omitempty"`
	DestinationAccount string    `bson:"destinationAccount,omitempty"`
	Status             string    `bson:"status"`
	CreatedAt          time.Time `bson:"createdAt"`
}

func mongoRecord(rec transaction.Record) mongoRecordDoc {
	return mongoRecordDoc{
		ID:                 rec.ID,
		CorrelationID:      rec.CorrelationID,
		Kind:               string(rec.Kind),
		Amount:             rec.Amount.String(),
		SourceAccount:      rec.SourceAccount,
		DestinationAccount: rec.DestinationAccount,
		Status:             string(rec.Status),
		CreatedAt:          rec.CreatedAt,
	}
}

func (d mongoRecordDoc) toRecord() (transaction.Record, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return transaction.Record{}, fmt.Errorf("ledger: corrupt amount %q for record %s: %w", d.Amount, d.ID, err)
	}

	return transaction.Record{
		ID:                 d.ID,
		CorrelationID:      d.CorrelationID,
		Kind:               transaction.Kind(d.Kind),
		Amount:             amount,
		SourceAccount:      d.SourceAccount,
		DestinationAccount: d.DestinationAccount,
		Status:             transaction.Status(d.Status),
		CreatedAt:          d.CreatedAt,
	}, nil
}
