// Package ratelimit provides rate limiting middleware using a token
// bucket per client.
package ratelimit

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Config holds rate limiter configuration.
type Config struct {
	// RequestsPerSecond is the rate limit (tokens added per second).
	RequestsPerSecond float64
	// BurstSize is the maximum number of tokens (burst capacity).
	BurstSize int
	// Logger for rate limit events.
	Logger *slog.Logger
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10.0,
		BurstSize:         20,
		Logger:            slog.Default(),
	}
}

// TokenBucket implements a token bucket rate limiter.
type TokenBucket struct {
	tokens         float64
	maxTokens      float64
	refillRate     float64 // tokens per second
	lastRefillTime time.Time
	mu             sync.Mutex
}

// NewTokenBucket creates a new token bucket with the specified rate and
// burst size. The bucket starts full.
func NewTokenBucket(refillRate float64, burstSize int) *TokenBucket {
	return &TokenBucket{
		tokens:         float64(burstSize),
		maxTokens:      float64(burstSize),
		refillRate:     refillRate,
		lastRefillTime: time.Now(),
	}
}

// Allow checks if a request is allowed and consumes a token if so.
// Returns whether the request is allowed, remaining tokens, and a
// retry-after duration.
func (tb *TokenBucket) Allow() (allowed bool, remaining int, retryAfter time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens >= 1 {
		tb.tokens--
		return true, int(tb.tokens), 0
	}

	tokensNeeded := 1 - tb.tokens
	retryAfter = time.Duration(tokensNeeded/tb.refillRate*float64(time.Second)) + time.Millisecond
	return false, 0, retryAfter
}

// Remaining returns the current number of available tokens.
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return int(tb.tokens)
}

// Limit returns the maximum burst size.
func (tb *TokenBucket) Limit() int {
	return int(tb.maxTokens)
}

// refill adds tokens based on elapsed time. Caller must hold the lock.
func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefillTime)
	tb.tokens = math.Min(tb.maxTokens, tb.tokens+tb.refillRate*elapsed.Seconds())
	tb.lastRefillTime = now
}

// Limiter rate limits requests per client, with optional per-endpoint
// overrides. Clients are identified by the remote IP address.
type Limiter struct {
	config          Config
	mu              sync.Mutex
	buckets         map[string]*TokenBucket
	endpointBuckets map[string]*TokenBucket
}

// New creates a new rate limiter with the given configuration.
func New(config Config) *Limiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 10.0
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 20
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Limiter{
		config:          config,
		buckets:         make(map[string]*TokenBucket),
		endpointBuckets: make(map[string]*TokenBucket),
	}
}

// SetEndpointLimit sets a specific rate limit for a request path. The
// endpoint bucket is shared across clients.
func (l *Limiter) SetEndpointLimit(endpoint string, requestsPerSecond float64, burstSize int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.endpointBuckets[endpoint] = NewTokenBucket(requestsPerSecond, burstSize)
}

// RemoveEndpointLimit removes a path's specific limit; requests fall
// back to the per-client bucket.
func (l *Limiter) RemoveEndpointLimit(endpoint string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.endpointBuckets, endpoint)
}

// bucketFor returns the bucket governing a request: the endpoint
// bucket when the path has an override, otherwise the client's.
func (l *Limiter) bucketFor(r *http.Request) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bucket, ok := l.endpointBuckets[r.URL.Path]; ok {
		return bucket
	}

	client := clientKey(r)
	bucket, ok := l.buckets[client]
	if !ok {
		bucket = NewTokenBucket(l.config.RequestsPerSecond, l.config.BurstSize)
		l.buckets[client] = bucket
	}
	return bucket
}

// clientKey extracts the client IP from a request.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware returns an HTTP middleware that applies rate limiting.
func (l *Limiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bucket := l.bucketFor(r)

		allowed, remaining, retryAfter := bucket.Allow()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(bucket.Limit()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))

		if !allowed {
			l.config.Logger.Warn("rate limit exceeded",
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.Duration("retry_after", retryAfter),
			)

			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error":       "rate limit exceeded",
				"retry_after": int(math.Ceil(retryAfter.Seconds())),
			})
			return
		}

		next(w, r)
	}
}
