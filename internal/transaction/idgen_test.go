package transaction

import (
	"regexp"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var correlationIDPattern = regexp.MustCompile(`^TXN-\d{14}-[0-9a-f]{8}$`)

func TestNextCorrelationIDFormat(t *testing.T) {
	id := NextCorrelationID()
	assert.Regexp(t, correlationIDPattern, id)
}

func TestNextCorrelationIDUniqueUnderConcurrency(t *testing.T) {
	const workers = 16
	const perWorker = 200

	var (
		mu  sync.Mutex
		ids = make(map[string]struct{}, workers*perWorker)
		wg  sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, NextCorrelationID())
			}

			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				ids[id] = struct{}{}
			}
		}()
	}

	wg.Wait()

	assert.Len(t, ids, workers*perWorker, "correlation ids collided")
}

func TestNewRecordID(t *testing.T) {
	id := NewRecordID()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	assert.NotEqual(t, id, NewRecordID())
}
