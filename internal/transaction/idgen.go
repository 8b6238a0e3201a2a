package transaction

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// correlationIDPrefix keeps ids human-sortable by creation time.
const correlationIDPrefix = "TXN"

// suffixBytes widens the random suffix to 32 bits (8 hex chars). The legacy
// three-digit decimal suffix collided under concurrent load within the same
// second.
const suffixBytes = 4

// NextCorrelationID returns a new externally visible transaction identifier
// in the form TXN-<yyyyMMddHHmmss>-<8 hex chars>. Safe for concurrent use.
func NextCorrelationID() string {
	return fmt.Sprintf("%s-%s-%s",
		correlationIDPrefix,
		time.Now().UTC().Format("20060102150405"),
		randomSuffix(),
	)
}

func randomSuffix() string {
	buf := make([]byte, suffixBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in a bad state; fall back
		// to uuid randomness rather than panic in a request path.
		return uuid.NewString()[:2*suffixBytes]
	}

	return hex.EncodeToString(buf)
}

// NewRecordID returns the opaque storage key for a ledger record. UUIDv7 keeps
// records time-ordered in the store; falls back to v4 if the clock source
// misbehaves.
func NewRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
