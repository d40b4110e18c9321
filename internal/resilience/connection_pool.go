package resilience

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ConnectionPool manages a pool of HTTP connections with circuit breaker integration
type ConnectionPool struct {
	maxIdle     int
	maxActive   int
	idleTimeout time.Duration

	circuitBreaker *CircuitBreaker

	activeConnections int
	idleConnections   []*pooledConnection
	mutex             sync.RWMutex

	transport *http.Transport
}

type pooledConnection struct {
	client   *http.Client
	lastUsed time.Time
	inUse    bool
}

// NewConnectionPool creates a new connection pool with circuit breaker
func NewConnectionPool(maxIdle, maxActive int, idleTimeout time.Duration, cb *CircuitBreaker) *ConnectionPool {
	transport := &http.Transport{
		MaxIdleConns:          maxIdle,
		MaxConnsPerHost:       maxActive,
		MaxIdleConnsPerHost:   maxIdle / 2,
		IdleConnTimeout:       idleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &ConnectionPool{
		maxIdle:           maxIdle,
		maxActive:         maxActive,
		idleTimeout:       idleTimeout,
		circuitBreaker:    cb,
		transport:         transport,
		activeConnections: 0,
		idleConnections:   make([]*pooledConnection, 0),
	}
}

// GetClient retrieves a pooled HTTP client
func (cp *ConnectionPool) GetClient() (*http.Client, error) {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()

	cp.cleanupIdleConnections()

	if len(cp.idleConnections) > 0 {
		conn := cp.idleConnections[0]
		cp.idleConnections = cp.idleConnections[1:]

		conn.lastUsed = time.Now()
		conn.inUse = true

		slog.Debug("Reusing idle connection", "active", cp.activeConnections, "idle", len(cp.idleConnections))
		return conn.client, nil
	}

	if cp.activeConnections >= cp.maxActive {
		return nil, fmt.Errorf("connection pool exhausted: %d/%d active connections", cp.activeConnections, cp.maxActive)
	}

	client := &http.Client{
		Transport: cp.transport,
		Timeout:   30 * time.Second,
	}

	cp.activeConnections++

	slog.Debug("Created new connection", "active", cp.activeConnections, "idle", len(cp.idleConnections))
	return client, nil
}

// ReturnClient returns a connection to the pool
func (cp *ConnectionPool) ReturnClient(client *http.Client) {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()

	for _, conn := range cp.idleConnections {
		if conn.client == client {
			conn.inUse = false
			conn.lastUsed = time.Now()
			return
		}
	}

	if len(cp.idleConnections) < cp.maxIdle {
		conn := &pooledConnection{
			client:   client,
			lastUsed: time.Now(),
			inUse:    false,
		}
		cp.idleConnections = append(cp.idleConnections, conn)
		slog.Debug("Added connection to idle pool", "idle", len(cp.idleConnections))
	} else {
		slog.Debug("Connection pool full, not tracking returned connection")
	}
}

// cleanupIdleConnections removes expired idle connections
func (cp *ConnectionPool) cleanupIdleConnections() {
	now := time.Now()
	validConnections := make([]*pooledConnection, 0)

	for _, conn := range cp.idleConnections {
		if now.Sub(conn.lastUsed) > cp.idleTimeout {
			slog.Debug("Removing expired idle connection")
		} else {
			validConnections = append(validConnections, conn)
		}
	}

	cp.idleConnections = validConnections
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	cp.mutex.RLock()
	defer cp.mutex.RUnlock()

	return map[string]interface{}{
		"active_connections":    cp.activeConnections,
		"idle_connections":      len(cp.idleConnections),
		"max_idle":              cp.maxIdle,
		"max_active":            cp.maxActive,
		"idle_timeout_ms":       cp.idleTimeout.Milliseconds(),
		"circuit_breaker_state": cp.circuitBreaker.State().String(),
	}
}

// DoRequest executes an HTTP request with circuit breaker and connection pooling.
// The body may be nil for requests without a payload. The body bytes are
// buffered per call so the request is safe to rebuild inside the breaker.
func (cp *ConnectionPool) DoRequest(ctx context.Context, method, url string, headers map[string]string, body []byte) (*http.Response, error) {
	var resp *http.Response

	err := cp.circuitBreaker.Call(func() error {
		client, err := cp.GetClient()
		if err != nil {
			return err
		}

		var reader *bytes.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		var req *http.Request
		if reader != nil {
			req, err = http.NewRequestWithContext(ctx, method, url, reader)
		} else {
			req, err = http.NewRequestWithContext(ctx, method, url, nil)
		}
		if err != nil {
			cp.ReturnClient(client)
			return err
		}

		for key, value := range headers {
			req.Header.Set(key, value)
		}

		start := time.Now()
		resp, err = client.Do(req)
		duration := time.Since(start)

		if err != nil {
			slog.Warn("Request failed", "url", url, "error", err, "duration_ms", duration.Milliseconds())
			return err
		}

		slog.Debug("Request completed", "url", url, "status", resp.StatusCode, "duration_ms", duration.Milliseconds())

		cp.ReturnClient(client)

		return nil
	})

	if err != nil {
		return nil, err
	}

	return resp, nil
}

// Close closes all connections in the pool
func (cp *ConnectionPool) Close() error {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()

	for _, conn := range cp.idleConnections {
		if transport, ok := conn.client.Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
	}

	cp.idleConnections = nil
	cp.activeConnections = 0

	slog.Info("Connection pool closed")
	return nil
}
