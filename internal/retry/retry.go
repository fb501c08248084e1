// Package retry provides automatic retry with exponential backoff and
// jitter for transient Google API failures.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
)

// ErrMaxRetriesExceeded is returned when all retry attempts have been
// exhausted.
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Config holds retry configuration.
type Config struct {
	// MaxRetries is the maximum number of retry attempts (default: 3).
	MaxRetries int
	// InitialDelay is the delay before the first retry (default: 1s).
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries (default: 16s).
	MaxDelay time.Duration
	// Multiplier is the backoff multiplier (default: 2.0).
	Multiplier float64
	// JitterFactor is the jitter factor (0.0 to 1.0) for randomization
	// (default: 0.2).
	JitterFactor float64
	// Logger for retry events.
	Logger *slog.Logger
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
		Logger:       slog.Default(),
	}
}

// Retryer provides retry functionality with exponential backoff.
type Retryer struct {
	config Config
}

// New creates a new Retryer with the given configuration.
func New(config Config) *Retryer {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 16 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.JitterFactor <= 0 || config.JitterFactor > 1 {
		config.JitterFactor = 0.2
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Retryer{config: config}
}

// IsRetryable reports whether an error represents a transient Google
// API failure: rate limiting or a server-side error.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	// Network-level failures without an API status are retried.
	var netErr interface{ Temporary() bool }
	if errors.As(err, &netErr) {
		return netErr.Temporary()
	}

	return false
}

// CalculateDelay calculates the delay for a given attempt using
// exponential backoff with jitter. Attempt is 1-based.
func (r *Retryer) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(r.config.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= r.config.Multiplier
	}

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	// Jitter gives a range of [delay*(1-jitter), delay*(1+jitter)].
	jitterRange := delay * r.config.JitterFactor
	delay += rand.Float64()*2*jitterRange - jitterRange

	if delay < float64(time.Millisecond) {
		delay = float64(time.Millisecond)
	}

	return time.Duration(delay)
}

// Do executes the operation, retrying transient failures.
func (r *Retryer) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := DoWithResult(ctx, r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoWithResult executes the operation with retry logic and returns its
// result.
func DoWithResult[T any](ctx context.Context, r *Retryer, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				r.config.Logger.Info("operation succeeded after retry",
					slog.Int("attempts", attempt+1),
				)
			}
			return result, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}

		if attempt >= r.config.MaxRetries {
			break
		}

		delay := r.CalculateDelay(attempt + 1)
		r.config.Logger.Warn("retrying operation",
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", r.config.MaxRetries),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	r.config.Logger.Error("max retries exceeded",
		slog.Int("max_retries", r.config.MaxRetries),
		slog.String("last_error", lastErr.Error()),
	)

	return zero, errors.Join(ErrMaxRetriesExceeded, lastErr)
}

// MaxRetries returns the maximum number of retries.
func (r *Retryer) MaxRetries() int {
	return r.config.MaxRetries
}
