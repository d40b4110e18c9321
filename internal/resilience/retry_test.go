package resilience

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quickConfig(maxAttempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:     maxAttempts,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffFactor:   2.0,
		RetryableErrors: isRetryable,
	}
}

func TestRetryRepeatsServerErrors(t *testing.T) {
	attempts := 0
	err := RetryWithConfig(context.Background(), quickConfig(3), func() error {
		attempts++
		if attempts < 3 {
			return NewHTTPError(http.StatusInternalServerError, "status 500")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnClientError(t *testing.T) {
	attempts := 0
	err := RetryWithConfig(context.Background(), quickConfig(5), func() error {
		attempts++
		return NewHTTPError(http.StatusBadRequest, "status 400")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "4xx responses are not transient")
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	err := RetryWithConfig(context.Background(), quickConfig(5), func() error {
		attempts++
		return fmt.Errorf("malformed payload")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryRepeatsNetworkErrors(t *testing.T) {
	attempts := 0
	err := RetryWithConfig(context.Background(), quickConfig(3), func() error {
		attempts++
		return fmt.Errorf("dial tcp: connection refused")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsRetryableHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsRetryableHTTPStatus(code), "status %d", code)
	}
}

func TestRetryWithPolicyUsesHTTPClassification(t *testing.T) {
	policy := RetryPolicy{
		Name: "test",
		Config: RetryConfig{
			MaxAttempts:   4,
			InitialDelay:  time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 2.0,
		},
	}

	attempts := 0
	err := RetryWithPolicy(context.Background(), policy, func() error {
		attempts++
		return NewHTTPError(http.StatusBadGateway, "status 502")
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := RetryWithConfig(ctx, quickConfig(5), func() error {
		attempts++
		cancel()
		return NewHTTPError(http.StatusServiceUnavailable, "status 503")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
