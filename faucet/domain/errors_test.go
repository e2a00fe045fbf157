package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRateLimitedError_MatchesSentinel(t *testing.T) {
	var err error = &RateLimitedError{AvailableAt: 3600, RetryAfter: 30 * time.Minute}
	wrapped := fmt.Errorf("claim next: %w", err)

	if !errors.Is(wrapped, ErrRateLimited) {
		t.Fatalf("expected wrapped error to match ErrRateLimited")
	}
	var rl *RateLimitedError
	if !errors.As(wrapped, &rl) {
		t.Fatalf("expected errors.As to find RateLimitedError")
	}
	if rl.AvailableAt != 3600 {
		t.Fatalf("expected AvailableAt=3600, got %d", rl.AvailableAt)
	}
}

func TestErrorCode(t *testing.T) {
	cases := map[string]error{
		"ok":                  nil,
		"rate_limited":        &RateLimitedError{},
		"already_claimed":     fmt.Errorf("x: %w", ErrAlreadyClaimed),
		"insufficient_funds":  fmt.Errorf("transfer: %w", ErrInsufficientFunds),
		"already_initialized": ErrAlreadyInitialized,
		"internal":            errors.New("boom"),
	}
	for want, err := range cases {
		if got := ErrorCode(err); got != want {
			t.Fatalf("ErrorCode(%v): expected %q, got %q", err, want, got)
		}
	}
}

func TestCooldownRecord_AvailableAtSaturates(t *testing.T) {
	r := CooldownRecord{LastTimestamp: 100}
	if got := r.AvailableAt(3600); got != 3700 {
		t.Fatalf("expected 3700, got %d", got)
	}

	r.LastTimestamp = maxInt64 - 10
	if got := r.AvailableAt(3600); got != maxInt64 {
		t.Fatalf("expected saturation at max int64, got %d", got)
	}
}
