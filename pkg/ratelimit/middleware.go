package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/tendant/simple-idm-switchuser/pkg/errors"
)

// Config holds rate limiting configuration
type Config struct {
	// Per-IP rate limiting
	PerIPEnabled    bool
	PerIPCapacity   int
	PerIPRefillRate float64

	// Per-user rate limiting, keyed by UserKey
	PerUserEnabled    bool
	PerUserCapacity   int
	PerUserRefillRate float64
	// UserKey identifies the acting user of a request, "" for anonymous requests
	UserKey func(r *http.Request) string

	// Endpoint limits keyed by "METHOD /path", counted per client IP
	EndpointLimits map[string]EndpointLimit

	// MaxKeys bounds the buckets kept per limiter
	MaxKeys int

	// Headers to include in response
	IncludeHeaders bool
}

// EndpointLimit defines rate limits for a specific endpoint
type EndpointLimit struct {
	Capacity   int
	RefillRate float64
}

// DefaultConfig limits each IP to 100 and each user to 200 requests per minute
func DefaultConfig() *Config {
	return &Config{
		PerIPEnabled:    true,
		PerIPCapacity:   100,
		PerIPRefillRate: 100.0 / 60.0,

		PerUserEnabled:    true,
		PerUserCapacity:   200,
		PerUserRefillRate: 200.0 / 60.0,

		EndpointLimits: make(map[string]EndpointLimit),
		MaxKeys:        DefaultMaxKeys,
		IncludeHeaders: true,
	}
}

// Middleware holds the rate limiting middleware state
type Middleware struct {
	config           *Config
	ipLimiter        *RateLimiter
	userLimiter      *RateLimiter
	endpointLimiters map[string]*RateLimiter
}

// NewMiddleware creates a new rate limiting middleware
func NewMiddleware(config *Config) (*Middleware, error) {
	if config == nil {
		config = DefaultConfig()
	}

	m := &Middleware{
		config:           config,
		endpointLimiters: make(map[string]*RateLimiter),
	}

	var err error
	if config.PerIPEnabled {
		if m.ipLimiter, err = NewRateLimiter(config.PerIPCapacity, config.PerIPRefillRate, config.MaxKeys); err != nil {
			return nil, err
		}
	}
	if config.PerUserEnabled && config.UserKey != nil {
		if m.userLimiter, err = NewRateLimiter(config.PerUserCapacity, config.PerUserRefillRate, config.MaxKeys); err != nil {
			return nil, err
		}
	}
	for endpoint, limit := range config.EndpointLimits {
		limiter, err := NewRateLimiter(limit.Capacity, limit.RefillRate, config.MaxKeys)
		if err != nil {
			return nil, err
		}
		m.endpointLimiters[endpoint] = limiter
	}

	return m, nil
}

// Handler returns the rate limiting middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		if m.ipLimiter != nil && ip != "" && !m.ipLimiter.Allow(ip) {
			m.rateLimitExceeded(w, r, "ip")
			return
		}

		userKey := m.userKey(r)
		if m.userLimiter != nil && userKey != "" && !m.userLimiter.Allow(userKey) {
			m.rateLimitExceeded(w, r, "user")
			return
		}

		endpointKey := r.Method + " " + r.URL.Path
		if limiter, ok := m.endpointLimiters[endpointKey]; ok && !limiter.Allow(ip) {
			m.rateLimitExceeded(w, r, "endpoint")
			return
		}

		if m.config.IncludeHeaders {
			if m.ipLimiter != nil && ip != "" {
				w.Header().Set("X-RateLimit-Limit-IP", strconv.Itoa(m.config.PerIPCapacity))
			}
			if m.userLimiter != nil && userKey != "" {
				w.Header().Set("X-RateLimit-Limit-User", strconv.Itoa(m.config.PerUserCapacity))
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) userKey(r *http.Request) string {
	if m.config.UserKey == nil {
		return ""
	}
	return m.config.UserKey(r)
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, limitType string) {
	slog.Warn("Rate limit exceeded",
		"type", limitType,
		"ip", getClientIP(r),
		"user", m.userKey(r),
		"path", r.URL.Path,
		"method", r.Method,
	)

	w.Header().Set("Retry-After", "60")
	render.Status(r, errors.MapErrorCodeToHTTPStatus(errors.ErrCodeTooManyRequests))
	render.JSON(w, r, map[string]string{
		"error": "too many requests, please try again later",
		"code":  string(errors.ErrCodeTooManyRequests),
		"type":  limitType,
	})
}

// GetStats returns statistics about all rate limiters
func (m *Middleware) GetStats() map[string]Stats {
	stats := make(map[string]Stats)
	if m.ipLimiter != nil {
		stats["ip"] = m.ipLimiter.GetStats()
	}
	if m.userLimiter != nil {
		stats["user"] = m.userLimiter.GetStats()
	}
	for endpoint, limiter := range m.endpointLimiters {
		stats["endpoint:"+endpoint] = limiter.GetStats()
	}
	return stats
}

// Reset resets rate limits for a specific IP or user
func (m *Middleware) Reset(key string) {
	if m.ipLimiter != nil {
		m.ipLimiter.Reset(key)
	}
	if m.userLimiter != nil {
		m.userLimiter.Reset(key)
	}
	for _, limiter := range m.endpointLimiters {
		limiter.Reset(key)
	}
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
