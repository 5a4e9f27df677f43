package upstream

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func fastPolicy(attempts uint64) Policy {
	return Policy{Attempts: attempts, BaseDelay: time.Millisecond}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := fastPolicy(3).Do(ctx, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &StatusError{Code: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(3, calls); diff != "" {
		t.Errorf("call count mismatch (-want +got):\n%s", diff)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := fastPolicy(3).Do(ctx, func(ctx context.Context) error {
		calls++
		return &StatusError{Code: 500}
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if diff := cmp.Diff(3, calls); diff != "" {
		t.Errorf("call count mismatch (-want +got):\n%s", diff)
	}
}

func TestDoAuthErrorFailsFast(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := fastPolicy(3).Do(ctx, func(ctx context.Context) error {
		calls++
		return &AuthError{Reason: "bad key"}
	})

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if diff := cmp.Diff(1, calls); diff != "" {
		t.Errorf("auth errors must not retry (-want +got):\n%s", diff)
	}
}

func TestDoNotFoundFailsFast(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := fastPolicy(3).Do(ctx, func(ctx context.Context) error {
		calls++
		return ErrNotFound
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if diff := cmp.Diff(1, calls); diff != "" {
		t.Errorf("not-found must not retry (-want +got):\n%s", diff)
	}
}

func TestDoHonorsRetryAfter(t *testing.T) {
	ctx := context.Background()

	calls := 0
	start := time.Now()
	err := fastPolicy(2).Do(ctx, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &RateLimitError{RetryAfter: 30 * time.Millisecond}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected to wait at least 30ms, waited %v", elapsed)
	}
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Policy{Attempts: 5, BaseDelay: time.Minute}.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return &StatusError{Code: 500}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls > 1 {
		t.Errorf("expected no retries after cancel, got %d calls", calls)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate limit", err: &RateLimitError{}, want: true},
		{name: "server error", err: &StatusError{Code: 502}, want: true},
		{name: "too many requests", err: &StatusError{Code: http.StatusTooManyRequests}, want: true},
		{name: "client error", err: &StatusError{Code: 400}, want: false},
		{name: "auth", err: &AuthError{Reason: "nope"}, want: false},
		{name: "not found", err: ErrNotFound, want: false},
		{name: "cancelled", err: context.Canceled, want: false},
		{name: "plain error", err: errors.New("conn reset"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"0", 0},
		{"-3", 0},
		{"soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := ParseRetryAfter(tt.value); got != tt.want {
				t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
