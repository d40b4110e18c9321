package resilience

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitprofile/analyzer/internal/errors"
)

func newTestBreaker(recovery time.Duration) *CircuitBreaker {
	return NewCircuitBreaker("upstream", CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  recovery,
		SuccessThreshold: 1,
	})
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker(time.Minute)
	boom := fmt.Errorf("connection refused")

	for i := 0; i < 2; i++ {
		err := cb.Call(func() error { return boom })
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, CircuitOpen, cb.State())

	calls := 0
	err := cb.Call(func() error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 0, calls, "open breaker must reject without calling through")
	assert.Contains(t, err.Error(), "upstream")
}

func TestCircuitBreakerOpenErrorIsRetryable(t *testing.T) {
	cb := newTestBreaker(time.Minute)
	for i := 0; i < 2; i++ {
		_ = cb.Call(func() error { return fmt.Errorf("connection refused") })
	}

	err := cb.Call(func() error { return nil })
	require.Error(t, err)

	// A later attempt may land after the recovery timeout, so the retry
	// layer should not give up on a rejected call
	assert.True(t, errors.IsRetryableError(err))
	appErr := errors.ToAppError(err)
	assert.Equal(t, errors.CategoryExternalAPI, appErr.Category)
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := newTestBreaker(10 * time.Millisecond)
	for i := 0; i < 2; i++ {
		_ = cb.Call(func() error { return fmt.Errorf("connection refused") })
	}
	require.Equal(t, CircuitOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := newTestBreaker(time.Minute)
	for i := 0; i < 2; i++ {
		_ = cb.Call(func() error { return fmt.Errorf("connection refused") })
	}
	require.Equal(t, CircuitOpen, cb.State())

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.NoError(t, cb.Call(func() error { return nil }))
}

func TestGetCircuitBreakerSharesInstance(t *testing.T) {
	first := GetCircuitBreaker("shared-service", CircuitBreakerConfig{})
	second := GetCircuitBreaker("shared-service", CircuitBreakerConfig{FailureThreshold: 99})

	assert.Same(t, first, second)
	assert.Equal(t, "shared-service", first.Name())
}

func TestGetCircuitBreakerStatsReportsRegisteredBreakers(t *testing.T) {
	cb := GetCircuitBreaker("stats-service", CircuitBreakerConfig{FailureThreshold: 5})
	_ = cb.Call(func() error { return fmt.Errorf("connection refused") })

	stats := GetCircuitBreakerStats()
	entry, ok := stats["stats-service"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "closed", entry["state"])
	assert.Equal(t, 1, entry["failures"])
}

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half_open", CircuitHalfOpen.String())
}
