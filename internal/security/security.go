package security

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/gitprofile/analyzer/internal/types"
)

// GitHub usernames are alphanumeric with single hyphens, max 39 characters
const maxUsernameLength = 39

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxInputLength int           `json:"max_input_length"`
	EnableCORS     bool          `json:"enable_cors"`
	AllowedOrigins []string      `json:"allowed_origins"`
	TrustedProxies []string      `json:"trusted_proxies"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxInputLength: 200,
		EnableCORS:     true,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		TrustedProxies: []string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		RequestTimeout: 30 * time.Second,
	}
}

// SecurityMiddleware provides request validation and hardening middleware
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	return &SecurityMiddleware{config: config}
}

// ValidateUsername checks that the input is a well-formed GitHub username
func (sm *SecurityMiddleware) ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}

	if len(username) > maxUsernameLength {
		return fmt.Errorf("username exceeds maximum length of %d characters", maxUsernameLength)
	}

	if len(username) > sm.config.MaxInputLength {
		return fmt.Errorf("input exceeds maximum length of %d characters", sm.config.MaxInputLength)
	}

	// Null bytes indicate an injection attempt
	if strings.Contains(username, "\x00") {
		return fmt.Errorf("username contains invalid characters")
	}

	if !utf8.ValidString(username) {
		return fmt.Errorf("username contains invalid UTF-8 encoding")
	}

	// GitHub never issues consecutive hyphens
	if strings.Contains(username, "--") {
		return fmt.Errorf("invalid GitHub username format")
	}

	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("invalid GitHub username format")
	}

	return nil
}

// SanitizeUsername trims surrounding whitespace and a leading @ prefix
func (sm *SecurityMiddleware) SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.TrimPrefix(username, "@")
	return username
}

// SecurityHeaders adds security headers to responses
func (sm *SecurityMiddleware) SecurityHeaders(c *gin.Context) {
	// Prevent MIME type sniffing
	c.Header("X-Content-Type-Options", "nosniff")

	// Prevent clickjacking
	c.Header("X-Frame-Options", "DENY")

	// XSS protection
	c.Header("X-XSS-Protection", "1; mode=block")

	// HSTS (HTTP Strict Transport Security) - only over TLS
	if c.Request.TLS != nil {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	c.Header("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; connect-src 'self'")

	// Referrer Policy
	c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

	c.Header("Permissions-Policy", "camera=(), microphone=()")

	c.Next()
}

// ValidateContentType validates request content type
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	contentType := c.GetHeader("Content-Type")

	allowedTypes := []string{
		"application/json",
		"application/x-www-form-urlencoded",
	}

	if contentType != "" {
		found := false
		for _, allowed := range allowedTypes {
			if strings.Contains(strings.ToLower(contentType), allowed) {
				found = true
				break
			}
		}

		if !found {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{
				"error": "unsupported content type",
			})
			c.Abort()
			return
		}
	}

	c.Next()
}

// RequestTimeout enforces request timeout
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)

	// Set timeout header for client
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}

// ValidateAnalyzeRequest validates the analyze endpoint request body
func (sm *SecurityMiddleware) ValidateAnalyzeRequest(c *gin.Context) {
	var req types.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid JSON format",
		})
		c.Abort()
		return
	}

	req.Username = sm.SanitizeUsername(req.Username)
	if err := sm.ValidateUsername(req.Username); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("username validation failed: %v", err),
		})
		c.Abort()
		return
	}

	// Store sanitized username in context for the handler
	c.Set("sanitized_username", req.Username)
	c.Next()
}
