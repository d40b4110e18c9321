package resilience

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gitprofile/analyzer/internal/errors"
)

// CircuitState is the current position of a breaker.
type CircuitState int32

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds the thresholds for a breaker
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"` // Consecutive failures before opening
	RecoveryTimeout  time.Duration `json:"recovery_timeout"`  // How long to stay open before probing
	SuccessThreshold int           `json:"success_threshold"` // Successes in half-open needed to close
}

// CircuitBreaker guards an upstream service. While open it rejects calls
// immediately; after the recovery timeout it goes half-open and lets trial
// calls through.
type CircuitBreaker struct {
	name      string
	config    CircuitBreakerConfig
	state     int32
	failures  int32
	successes int32

	mu          sync.Mutex
	nextAttempt time.Time
}

// NewCircuitBreaker creates a named breaker, filling in default thresholds
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 3
	}

	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  int32(CircuitClosed),
	}
}

// Name returns the service name the breaker guards
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Call executes fn unless the breaker is open and still inside its recovery
// window. Rejections surface as external API errors so the retry layer treats
// them as transient.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if cb.State() == CircuitOpen {
		cb.mu.Lock()
		waiting := time.Now().Before(cb.nextAttempt)
		cb.mu.Unlock()

		if waiting {
			return errors.NewExternalAPIError(cb.name,
				fmt.Errorf("circuit breaker for %s is %s", cb.name, CircuitOpen))
		}

		atomic.StoreInt32(&cb.state, int32(CircuitHalfOpen))
		atomic.StoreInt32(&cb.successes, 0)
	}

	if err := fn(); err != nil {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) recordFailure() {
	failures := atomic.AddInt32(&cb.failures, 1)
	atomic.StoreInt32(&cb.successes, 0)

	if failures >= int32(cb.config.FailureThreshold) {
		atomic.StoreInt32(&cb.state, int32(CircuitOpen))
		cb.mu.Lock()
		cb.nextAttempt = time.Now().Add(cb.config.RecoveryTimeout)
		cb.mu.Unlock()
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	atomic.StoreInt32(&cb.failures, 0)

	if cb.State() == CircuitHalfOpen {
		successes := atomic.AddInt32(&cb.successes, 1)
		if successes >= int32(cb.config.SuccessThreshold) {
			atomic.StoreInt32(&cb.state, int32(CircuitClosed))
		}
	}
}

// State returns the current breaker state
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(atomic.LoadInt32(&cb.state))
}

// Failures returns the consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	return int(atomic.LoadInt32(&cb.failures))
}

// Reset forces the breaker back to closed
func (cb *CircuitBreaker) Reset() {
	atomic.StoreInt32(&cb.state, int32(CircuitClosed))
	atomic.StoreInt32(&cb.failures, 0)
	atomic.StoreInt32(&cb.successes, 0)
}

// breakerRegistry tracks the breakers guarding each upstream service so the
// health endpoint can report all of them.
type breakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

func (r *breakerRegistry) getOrCreate(name string, config CircuitBreakerConfig) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if breaker, ok := r.breakers[name]; ok {
		return breaker
	}

	breaker := NewCircuitBreaker(name, config)
	r.breakers[name] = breaker
	return breaker
}

func (r *breakerRegistry) stats() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make(map[string]interface{}, len(r.breakers))
	for name, breaker := range r.breakers {
		stats[name] = map[string]interface{}{
			"state":    breaker.State().String(),
			"failures": breaker.Failures(),
		}
	}
	return stats
}

var registry = &breakerRegistry{breakers: make(map[string]*CircuitBreaker)}

// GetCircuitBreaker returns the shared breaker for a named service, creating
// it on first use
func GetCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	return registry.getOrCreate(name, config)
}

// GetCircuitBreakerStats reports state and failure counts for every
// registered breaker
func GetCircuitBreakerStats() map[string]interface{} {
	return registry.stats()
}
