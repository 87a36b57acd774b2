package resilience

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleFlightSharesResult(t *testing.T) {
	var flight SingleFlight[int]
	var executions atomic.Int32
	release := make(chan struct{})

	const callers = 6
	shared := make([]bool, callers)
	values := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			value, err, wasShared := flight.Do("key", func() (int, error) {
				executions.Add(1)
				<-release
				return 7, nil
			})
			require.NoError(t, err)
			values[slot] = value
			shared[slot] = wasShared
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), executions.Load())
	sharedCount := 0
	for i := range values {
		assert.Equal(t, 7, values[i])
		if shared[i] {
			sharedCount++
		}
	}
	assert.Equal(t, callers-1, sharedCount)
}

func TestSingleFlightDistinctKeysRunIndependently(t *testing.T) {
	var flight SingleFlight[string]

	a, err, _ := flight.Do("a", func() (string, error) { return "a", nil })
	require.NoError(t, err)
	b, err, _ := flight.Do("b", func() (string, error) { return "b", nil })
	require.NoError(t, err)

	assert.Equal(t, "a", a)
	assert.Equal(t, "b", b)
}

func TestSingleFlightRunsAgainAfterCompletion(t *testing.T) {
	var flight SingleFlight[int]
	var executions atomic.Int32

	for i := 0; i < 3; i++ {
		_, err, _ := flight.Do("key", func() (int, error) {
			executions.Add(1)
			return 0, nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, int32(3), executions.Load())
}
