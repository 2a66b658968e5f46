// Package retrylimit provides an adaptive rate limiter and a bounded retry
// loop for outbound calls (LLM requests, media downloads).
//
//	lim := retrylimit.NewAdaptiveLimiter(2, 1, 10, 1, 0.5)
//	err := retrylimit.WithRetryMax(ctx, func() error { return fetch() }, lim, 3)
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter is a rate limit that rises after successes and falls after
// rate-limit responses. Safe for concurrent use.
type AdaptiveLimiter struct {
	mu        sync.RWMutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
}

// NewAdaptiveLimiter creates an AdaptiveLimiter.
//
//   - initial: starting requests per second
//   - minRate, maxRate: bounds for the rate
//   - stepUp: increment on success
//   - stepDown: multiplier applied on a rate-limit (e.g. 0.5 halves)
func NewAdaptiveLimiter(initial, minRate, maxRate rate.Limit, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	if initial <= 0 {
		initial = 1
	}
	if minRate <= 0 {
		minRate = initial
	}
	if maxRate < initial {
		maxRate = initial
	}
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, burstFor(initial)),
		minLimit: minRate,
		maxLimit: maxRate,
		stepUp:   stepUp,
		stepDown: stepDown,
	}
}

// burstFor allows one token per whole request per second, at least one.
func burstFor(l rate.Limit) int {
	return max(1, int(l))
}

// Wait blocks until a token is available or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// Success raises the rate unless a rate-limit happened in the last 10s.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastError) > 10*time.Second {
		a.adjustLimit(a.limiter.Limit() + a.stepUp)
	}
}

// RateLimited lowers the rate.
func (a *AdaptiveLimiter) RateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = time.Now()
	a.adjustLimit(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// CurrentLimit returns the current requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) adjustLimit(newLimit rate.Limit) {
	if newLimit > a.maxLimit {
		newLimit = a.maxLimit
	} else if newLimit < a.minLimit {
		newLimit = a.minLimit
	}
	if newLimit != a.limiter.Limit() {
		a.limiter.SetLimit(newLimit)
		a.limiter.SetBurst(burstFor(newLimit))
	}
}

// HTTPError is implemented by errors that carry an HTTP status code.
type HTTPError interface {
	error
	StatusCode() int
}

// StatusError is an HTTPError for a non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string   { return fmt.Sprintf("GET %s: http %d", e.URL, e.Code) }
func (e *StatusError) StatusCode() int { return e.Code }

// FatalError stops retries immediately.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Fatal wraps err so WithRetry gives up on it.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// RetryConfig configures WithRetryConfig.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	RateLimitDelay time.Duration
	Multiplier     float64
	Jitter         bool
	OnRetry        func(attempt int, err error)
}

// DefaultRetryConfig returns the defaults used by WithRetryMax.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		RateLimitDelay: time.Second,
		Multiplier:     2.0,
		Jitter:         true,
	}
}

// WithRetryMax runs fn up to maxAttempts times with exponential backoff.
func WithRetryMax(ctx context.Context, fn func() error, lim *AdaptiveLimiter, maxAttempts int) error {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = maxAttempts
	return WithRetryConfig(ctx, fn, lim, cfg)
}

// WithRetryConfig runs fn until it succeeds, returns a FatalError, ctx is
// done or MaxAttempts is reached. The last error is returned wrapped.
func WithRetryConfig(ctx context.Context, fn func() error, lim *AdaptiveLimiter, cfg RetryConfig) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			if attempt > 1 {
				log.Debugf("[RETRY] success after %d attempts", attempt)
			}
			return nil
		}
		lastErr = err

		var fatal *FatalError
		if errors.As(err, &fatal) {
			return fatal.Err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := delay
		if IsRateLimit(err) {
			if lim != nil {
				lim.RateLimited()
			}
			wait = cfg.RateLimitDelay
			log.Warnf("[RETRY] rate limited (attempt %d)", attempt)
		} else {
			if IsServerError(err) && lim != nil {
				lim.RateLimited()
			}
			if cfg.Jitter {
				wait = addJitter(delay)
			}
			log.Warnf("[RETRY] attempt %d failed: %v, sleeping %v", attempt, err, wait)
			delay = min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

func addJitter(delay time.Duration) time.Duration {
	if delay < 4 {
		return delay
	}
	return delay + time.Duration(rand.Int64N(int64(delay/4)))
}

// IsRateLimit reports an HTTPError with status 429.
func IsRateLimit(err error) bool {
	var httpErr HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode() == http.StatusTooManyRequests
}

// IsServerError reports an HTTPError with a 5xx status.
func IsServerError(err error) bool {
	var httpErr HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	code := httpErr.StatusCode()
	return code >= 500 && code < 600
}
