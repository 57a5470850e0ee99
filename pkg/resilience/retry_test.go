// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/nwiesmann/faktotum/pkg/errors"
)

// sleepRecorder captures backoff durations instead of blocking.
type sleepRecorder struct {
	slept []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return nil
}

func rateLimitErr() error {
	return errors.New(errors.CodeRateLimit, "throttled", nil)
}

func TestRetrySucceedsAfterTwoRateLimits(t *testing.T) {
	rec := &sleepRecorder{}
	cfg := DefaultRetryConfig().WithSleep(rec.sleep)

	calls := 0
	result, err := cfg.DoWithResult(context.Background(), func() (interface{}, error) {
		calls++
		if calls <= 2 {
			return nil, rateLimitErr()
		}
		return "payload", nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if result != "payload" {
		t.Errorf("result = %v, want payload", result)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	want := []time.Duration{60 * time.Second, 120 * time.Second}
	if len(rec.slept) != len(want) {
		t.Fatalf("slept %v, want %v", rec.slept, want)
	}
	for i := range want {
		if rec.slept[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, rec.slept[i], want[i])
		}
	}
}

func TestRetryExhaustion(t *testing.T) {
	rec := &sleepRecorder{}
	cfg := DefaultRetryConfig().WithSleep(rec.sleep)

	calls := 0
	err := cfg.Do(context.Background(), func() error {
		calls++
		return rateLimitErr()
	})
	if err == nil {
		t.Fatal("expected terminal error")
	}

	var ae *errors.AgentError
	if !stderrors.As(err, &ae) {
		t.Fatalf("expected AgentError, got %T", err)
	}
	if ae.Code != errors.CodeRateLimit {
		t.Errorf("code = %s, want RATE_LIMITED", ae.Code)
	}
	if ae.Recoverable {
		t.Error("terminal error must not be recoverable")
	}

	// Initial attempt plus 3 retries.
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
	want := []time.Duration{60 * time.Second, 120 * time.Second, 240 * time.Second}
	if len(rec.slept) != len(want) {
		t.Fatalf("slept %v, want %v", rec.slept, want)
	}
	for i := range want {
		if rec.slept[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, rec.slept[i], want[i])
		}
	}
}

func TestNonRateLimitErrorFailsImmediately(t *testing.T) {
	rec := &sleepRecorder{}
	cfg := DefaultRetryConfig().WithSleep(rec.sleep)

	fatal := fmt.Errorf("invalid api key")
	calls := 0
	err := cfg.Do(context.Background(), func() error {
		calls++
		return fatal
	})
	if !stderrors.Is(err, fatal) {
		t.Errorf("err = %v, want the original failure", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(rec.slept) != 0 {
		t.Errorf("slept %v, want no sleeps", rec.slept)
	}
}

func TestBackoffCapped(t *testing.T) {
	rec := &sleepRecorder{}
	cfg := DefaultRetryConfig().WithMaxRetries(5).WithSleep(rec.sleep)

	_ = cfg.Do(context.Background(), func() error { return rateLimitErr() })

	want := []time.Duration{60, 120, 240, 300, 300}
	for i := range want {
		if rec.slept[i] != want[i]*time.Second {
			t.Errorf("sleep %d = %v, want %vs", i, rec.slept[i], want[i])
		}
	}
}

func TestContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultRetryConfig() // real timer sleep, returns immediately on done ctx
	err := cfg.Do(ctx, func() error { return rateLimitErr() })

	var ae *errors.AgentError
	if !stderrors.As(err, &ae) || ae.Code != errors.CodeTimeout {
		t.Errorf("expected TIMEOUT error on cancellation, got %v", err)
	}
}

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New(errors.CodeRateLimit, "x", nil), true},
		{errors.New(errors.CodeLLMError, "upstream", nil).WithStatusCode(429), true},
		{fmt.Errorf("server returned 429"), true},
		{fmt.Errorf("rate_limit_error: too many requests"), true},
		{fmt.Errorf("connection refused"), false},
		{errors.New(errors.CodeLLMError, "boom", nil), false},
	}
	for i, tc := range cases {
		if got := IsRateLimited(tc.err); got != tc.want {
			t.Errorf("case %d: IsRateLimited(%v) = %v, want %v", i, tc.err, got, tc.want)
		}
	}
}
