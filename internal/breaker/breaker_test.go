package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jettyvasavi/banking-system-phase2/pkg/log"
)

var errRemote = errors.New("connection refused")

func newTestBreaker(threshold uint32, cooldown time.Duration) *Breaker {
	return New("accountService", Config{FailureThreshold: threshold, Cooldown: cooldown}, log.NewNop())
}

func failNTimes(t *testing.T, b *Breaker, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		_, err := b.Execute(func() (any, error) { return nil, errRemote })
		require.ErrorIs(t, err, errRemote)
	}
}

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	b := newTestBreaker(3, time.Minute)

	failNTimes(t, b, 2)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(2), b.Counts().ConsecutiveFailures)
}

func TestBreakerOpensAtThresholdAndFastFails(t *testing.T) {
	b := newTestBreaker(3, time.Minute)

	failNTimes(t, b, 3)
	require.Equal(t, StateOpen, b.State())

	called := false
	_, err := b.Execute(func() (any, error) {
		called = true
		return nil, nil
	})

	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "open breaker must not dispatch the call")
}

func TestBreakerSuccessResetsConsecutiveFailures(t *testing.T) {
	b := newTestBreaker(5, time.Minute)

	failNTimes(t, b, 4)

	_, err := b.Execute(func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, uint32(0), b.Counts().ConsecutiveFailures)

	// Threshold counts from scratch again.
	failNTimes(t, b, 4)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerProbeAfterCooldown(t *testing.T) {
	cooldown := 50 * time.Millisecond
	b := newTestBreaker(2, cooldown)

	failNTimes(t, b, 2)
	require.Equal(t, StateOpen, b.State())

	time.Sleep(cooldown + 20*time.Millisecond)

	// Failed probe reopens immediately.
	_, err := b.Execute(func() (any, error) { return nil, errRemote })
	require.ErrorIs(t, err, errRemote)
	assert.Equal(t, StateOpen, b.State())

	time.Sleep(cooldown + 20*time.Millisecond)

	// Successful probe closes and resets the failure counter.
	result, err := b.Execute(func() (any, error) { return "recovered", nil })
	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(0), b.Counts().ConsecutiveFailures)
}

func TestBreakerSingleProbePerWindow(t *testing.T) {
	cooldown := 50 * time.Millisecond
	b := newTestBreaker(1, cooldown)

	failNTimes(t, b, 1)
	require.Equal(t, StateOpen, b.State())

	time.Sleep(cooldown + 20*time.Millisecond)

	probeStarted := make(chan struct{})
	probeRelease := make(chan struct{})
	probeDone := make(chan error, 1)

	go func() {
		_, err := b.Execute(func() (any, error) {
			close(probeStarted)
			<-probeRelease
			return "ok", nil
		})
		probeDone <- err
	}()

	<-probeStarted

	// Second call during the in-flight probe is rejected without dispatch.
	_, err := b.Execute(func() (any, error) { return "ok", nil })
	assert.ErrorIs(t, err, ErrOpen)

	close(probeRelease)
	require.NoError(t, <-probeDone)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, DefaultFailureThreshold, cfg.FailureThreshold)
	assert.Equal(t, DefaultCooldown, cfg.Cooldown)
}
