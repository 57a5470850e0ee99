// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

// Package resilience provides the retry policy applied to model provider
// calls. Only throttling failures are retried; everything else propagates
// immediately. Backoff is a blocking sleep on the calling goroutine.
package resilience

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/nwiesmann/faktotum/pkg/errors"
)

// RetryConfig controls retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the exponential backoff delay.
	MaxDelay time.Duration

	// Multiplier for exponential backoff (default 2.0).
	Multiplier float64

	// IsRecoverable determines if an error should be retried.
	// If nil, IsRateLimited is used.
	IsRecoverable func(error) bool

	// Sleep blocks for the given duration or until ctx is done.
	// If nil, a timer-based sleep is used. Tests inject their own.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig returns the retry configuration used for provider
// calls: wait 60s, double up to 300s, at most 3 retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  60 * time.Second,
		MaxDelay:      300 * time.Second,
		Multiplier:    2.0,
		IsRecoverable: IsRateLimited,
	}
}

// WithMaxRetries returns a new config with MaxRetries set.
func (rc RetryConfig) WithMaxRetries(n int) RetryConfig {
	rc.MaxRetries = n
	return rc
}

// WithInitialDelay returns a new config with InitialDelay set.
func (rc RetryConfig) WithInitialDelay(d time.Duration) RetryConfig {
	rc.InitialDelay = d
	return rc
}

// WithSleep returns a new config with the sleep function set.
func (rc RetryConfig) WithSleep(fn func(ctx context.Context, d time.Duration) error) RetryConfig {
	rc.Sleep = fn
	return rc
}

// Do executes fn, retrying recoverable failures with exponential backoff.
// After MaxRetries retries it returns a terminal RATE_LIMITED error
// wrapping the last failure.
func (rc RetryConfig) Do(ctx context.Context, fn func() error) error {
	if rc.IsRecoverable == nil {
		rc.IsRecoverable = IsRateLimited
	}
	if rc.Multiplier == 0 {
		rc.Multiplier = 2.0
	}
	if rc.Sleep == nil {
		rc.Sleep = sleepTimer
	}

	delay := rc.InitialDelay
	var lastErr error
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !rc.IsRecoverable(err) {
			return err
		}
		lastErr = err
		if attempt >= rc.MaxRetries {
			break
		}
		if err := rc.Sleep(ctx, delay); err != nil {
			return errors.New(errors.CodeTimeout, "context canceled during retry backoff", err).
				WithContext("attempt", attempt+1).
				WithContext("max_retries", rc.MaxRetries)
		}
		delay = time.Duration(float64(delay) * rc.Multiplier)
		if delay > rc.MaxDelay {
			delay = rc.MaxDelay
		}
	}

	return errors.New(errors.CodeRateLimit, "retries exhausted", lastErr).
		WithContext("max_retries", rc.MaxRetries).
		WithRecoverable(false)
}

// DoWithResult executes fn with retry logic, returning both result and error.
func (rc RetryConfig) DoWithResult(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	var result interface{}
	err := rc.Do(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	return result, err
}

// IsRateLimited reports whether err signals provider throttling: a typed
// RATE_LIMITED error, an HTTP 429 status, or a rate-limit marker in the
// error text. All other failures are fatal and must not be retried.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if ae := asAgentError(err); ae != nil {
		if ae.Code == errors.CodeRateLimit || ae.StatusCode == 429 {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate_limit") || strings.Contains(msg, "rate limit")
}

func asAgentError(err error) *errors.AgentError {
	var ae *errors.AgentError
	if stderrors.As(err, &ae) {
		return ae
	}
	return nil
}

func sleepTimer(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
