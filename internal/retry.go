package internal

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	retryBaseDelay = 300 * time.Millisecond
	retryFactor    = 2.3
	retryAttempts  = 3
)

// IsTransient classifies an external-call failure as retryable. Only
// network-level trouble qualifies; auth rejections and malformed input are
// permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var transient *TransientNetworkError
	return errors.As(err, &transient)
}

// WithRetry runs fn up to three times total, backing off exponentially with
// jitter between attempts. Non-transient failures abort immediately; a
// transient failure that survives the budget is wrapped as
// TransientNetworkError.
func WithRetry(ctx context.Context, op string, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryBaseDelay
	bo.Multiplier = retryFactor
	bo.RandomizationFactor = 0.4

	var lastTransient error
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		lastTransient = err
		Log.Debug("transient failure, retrying", "op", op, "attempt", attempt, "err", err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, retryAttempts-1), ctx))

	if err != nil && lastTransient != nil && IsTransient(err) {
		return &TransientNetworkError{Op: op, Err: err}
	}
	return err
}
