// Package upstream defines the error taxonomy and retry policy shared by
// all outbound API clients.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrNotFound marks content that does not exist upstream (404, deleted,
// forbidden). Callers skip the unit instead of retrying.
var ErrNotFound = errors.New("upstream: not found")

// AuthError indicates invalid credentials. Never retried.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "upstream: authentication failed: " + e.Reason
}

// RateLimitError indicates a 429-equivalent response. RetryAfter is the
// provider-supplied wait, zero when the provider gave none.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("upstream: rate limited, retry after %s", e.RetryAfter)
	}
	return "upstream: rate limited"
}

// StatusError indicates an unexpected HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: unexpected status %d", e.Code)
}

// Policy is the retry schedule applied to transient upstream failures.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts  uint64
	BaseDelay time.Duration
}

// DefaultPolicy retries transient errors up to three attempts with an
// exponential delay starting at one second.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, BaseDelay: time.Second}
}

// Do runs fn under the policy. Auth errors and not-found are surfaced
// immediately; rate-limit errors honor the provider-supplied Retry-After
// before the next attempt; everything else backs off exponentially until
// the attempt budget is exhausted.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(attempts-1, retry.NewExponential(p.BaseDelay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}

		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			if werr := wait(ctx, rl.RetryAfter); werr != nil {
				return werr
			}
		}
		return retry.RetryableError(err)
	})
}

// Retryable reports whether an error class is worth another attempt:
// rate limits and transient transport/server failures are, auth failures
// and missing content are not.
func Retryable(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}
	return true
}

// ParseRetryAfter interprets a Retry-After header value given in seconds.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
