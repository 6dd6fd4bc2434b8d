package internal

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped deadline", errors.Join(errors.New("call"), context.DeadlineExceeded), true},
		{"net timeout", timeoutErr{}, true},
		{"op error", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"conn reset", syscall.ECONNRESET, true},
		{"broken pipe", syscall.EPIPE, true},
		{"already transient", &TransientNetworkError{Op: "sts", Err: errors.New("x")}, true},
		{"access denied", errors.New("AccessDenied: not authorized"), false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestWithRetryExhaustsTransient(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "sts assume-role", func() error {
		calls++
		return context.DeadlineExceeded
	})

	assert.Equal(t, retryAttempts, calls)

	var terr *TransientNetworkError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "sts assume-role", terr.Op)
	assert.Equal(t, ExitInternal, ExitCode(err))
}

func TestWithRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	boom := errors.New("ExpiredToken")
	err := WithRetry(context.Background(), "sts get-caller-identity", func() error {
		calls++
		return boom
	})

	assert.Equal(t, 1, calls, "non-transient errors must not be retried")
	assert.ErrorIs(t, err, boom)
	var terr *TransientNetworkError
	assert.False(t, errors.As(err, &terr), "permanent failure must not be wrapped as transient")
}

func TestWithRetrySucceedsAfterTransient(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "sts", func() error {
		calls++
		if calls < 3 {
			return syscall.ECONNRESET
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetrySucceedsImmediately(t *testing.T) {
	calls := 0
	require.NoError(t, WithRetry(context.Background(), "sts", func() error {
		calls++
		return nil
	}))
	assert.Equal(t, 1, calls)
}
