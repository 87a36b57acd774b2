package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	breaker := NewCircuitBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		require.NoError(t, breaker.Allow())
		breaker.RecordFailure()
	}
	assert.Equal(t, CircuitStateClosed, breaker.State())

	require.NoError(t, breaker.Allow())
	breaker.RecordFailure()

	assert.Equal(t, CircuitStateOpen, breaker.State())
	assert.ErrorIs(t, breaker.Allow(), ErrCircuitOpen)
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	breaker := NewCircuitBreaker(2, time.Minute)

	breaker.RecordFailure()
	breaker.RecordSuccess()
	breaker.RecordFailure()

	assert.Equal(t, CircuitStateClosed, breaker.State())
	assert.NoError(t, breaker.Allow())
}

func TestCircuitBreakerProbesAfterOpenTimeout(t *testing.T) {
	breaker := NewCircuitBreaker(1, time.Minute)
	current := time.Now()
	breaker.now = func() time.Time { return current }

	breaker.RecordFailure()
	assert.ErrorIs(t, breaker.Allow(), ErrCircuitOpen)

	current = current.Add(2 * time.Minute)

	// One probe passes while it is in flight, the rest are rejected.
	require.NoError(t, breaker.Allow())
	assert.ErrorIs(t, breaker.Allow(), ErrCircuitOpen)

	breaker.RecordSuccess()
	assert.Equal(t, CircuitStateClosed, breaker.State())
	assert.NoError(t, breaker.Allow())
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	breaker := NewCircuitBreaker(1, time.Minute)
	current := time.Now()
	breaker.now = func() time.Time { return current }

	breaker.RecordFailure()
	current = current.Add(2 * time.Minute)
	require.NoError(t, breaker.Allow())

	breaker.RecordFailure()
	assert.ErrorIs(t, breaker.Allow(), ErrCircuitOpen)
}
