package resilience

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand"
	"time"

	"github.com/gitprofile/analyzer/internal/errors"
)

// RetryConfig holds configuration for retry behavior
type RetryConfig struct {
	MaxAttempts     int              `json:"max_attempts"`
	InitialDelay    time.Duration    `json:"initial_delay"`
	MaxDelay        time.Duration    `json:"max_delay"`
	BackoffFactor   float64          `json:"backoff_factor"`
	JitterEnabled   bool             `json:"jitter_enabled"`
	RetryableErrors func(error) bool `json:"-"`
}

// DefaultRetryConfig returns sensible defaults for retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		BackoffFactor:   2.0,
		JitterEnabled:   true,
		RetryableErrors: isRetryable,
	}
}

// isRetryable decides whether a failed attempt is worth repeating. HTTP
// failures are judged by status code, everything else by error category.
func isRetryable(err error) bool {
	var httpErr *HTTPError
	if stderrors.As(err, &httpErr) {
		return IsRetryableHTTPStatus(httpErr.StatusCode)
	}
	return errors.IsRetryableError(err)
}

// RetryableFunc represents a function that can be retried
type RetryableFunc func() error

// RetryWithConfig executes a function with retry logic using custom configuration
func RetryWithConfig(ctx context.Context, config RetryConfig, fn RetryableFunc) error {
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !config.RetryableErrors(err) {
			break
		}

		// Don't delay on the last attempt
		if attempt == config.MaxAttempts-1 {
			break
		}

		delay := calculateDelay(config, attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// Retry executes a function with retry logic using default configuration
func Retry(ctx context.Context, fn RetryableFunc) error {
	return RetryWithConfig(ctx, DefaultRetryConfig(), fn)
}

// calculateDelay computes the delay for the next retry attempt
func calculateDelay(config RetryConfig, attempt int) time.Duration {
	// Exponential backoff: initial_delay * (backoff_factor ^ attempt)
	delay := time.Duration(float64(config.InitialDelay) * math.Pow(config.BackoffFactor, float64(attempt)))

	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	// Jitter prevents thundering herd
	if config.JitterEnabled && delay > 0 {
		jitter := time.Duration(rand.Int63n(int64(delay/10) + 1))
		delay += jitter
	}

	return delay
}

// IsRetryableHTTPStatus checks if an HTTP status code should trigger a retry
func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429:
		return true
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return e.Status
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, status string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Status:     status,
	}
}

// RetryPolicy defines different retry strategies
type RetryPolicy struct {
	Name   string
	Config RetryConfig
}

// Common retry policies
var (
	// FastRetryPolicy for quick-retry scenarios
	FastRetryPolicy = RetryPolicy{
		Name: "fast",
		Config: RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  50 * time.Millisecond,
			MaxDelay:      1 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		},
	}

	// StandardRetryPolicy for general use cases
	StandardRetryPolicy = RetryPolicy{
		Name: "standard",
		Config: RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  100 * time.Millisecond,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		},
	}

	// SlowRetryPolicy for external APIs that need longer delays
	SlowRetryPolicy = RetryPolicy{
		Name: "slow",
		Config: RetryConfig{
			MaxAttempts:   5,
			InitialDelay:  1 * time.Second,
			MaxDelay:      30 * time.Second,
			BackoffFactor: 1.5,
			JitterEnabled: true,
		},
	}
)

// RetryWithPolicy executes a function with a predefined retry policy
func RetryWithPolicy(ctx context.Context, policy RetryPolicy, fn RetryableFunc) error {
	policy.Config.RetryableErrors = isRetryable
	return RetryWithConfig(ctx, policy.Config, fn)
}

// RetryManager manages retry policies for different services
type RetryManager struct {
	policies map[string]RetryPolicy
}

// NewRetryManager creates a new retry manager
func NewRetryManager() *RetryManager {
	return &RetryManager{
		policies: make(map[string]RetryPolicy),
	}
}

// RegisterPolicy registers a retry policy for a service
func (rm *RetryManager) RegisterPolicy(serviceName string, policy RetryPolicy) {
	rm.policies[serviceName] = policy
}

// GetPolicy returns the retry policy for a service, or standard policy if not found
func (rm *RetryManager) GetPolicy(serviceName string) RetryPolicy {
	if policy, exists := rm.policies[serviceName]; exists {
		return policy
	}
	return StandardRetryPolicy
}

// Execute executes a function with retry using the appropriate policy for the service
func (rm *RetryManager) Execute(ctx context.Context, serviceName string, fn RetryableFunc) error {
	policy := rm.GetPolicy(serviceName)
	return RetryWithPolicy(ctx, policy, fn)
}

// Global retry manager instance
var globalRetryManager = NewRetryManager()

// RegisterServicePolicy registers a retry policy for a service globally
func RegisterServicePolicy(serviceName string, policy RetryPolicy) {
	globalRetryManager.RegisterPolicy(serviceName, policy)
}

// ExecuteWithRetry executes a function with retry using the appropriate policy
func ExecuteWithRetry(ctx context.Context, serviceName string, fn RetryableFunc) error {
	return globalRetryManager.Execute(ctx, serviceName, fn)
}
