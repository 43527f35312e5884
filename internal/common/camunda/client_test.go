package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-workers/internal/common/errors"
)

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(stderrors.New("rpc error: code = Unavailable desc = connection refused")))
	assert.True(t, isRetryableZeebeError(stderrors.New("context deadline exceeded")))
	assert.False(t, isRetryableZeebeError(stderrors.New("permission denied")))
}

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		code errors.ErrorCode
	}{
		{"context deadline exceeded", errors.ErrCodeTimeout},
		{"process not found", errors.ErrCodeResourceNotFound},
		{"connection refused", errors.ErrCodeExternalService},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := mapZeebeError(stderrors.New(tt.msg), "topology", 2)
			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, stdErr.Code)
		})
	}
}

func TestBackoff(t *testing.T) {
	retry := &RetryConfig{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	assert.Equal(t, time.Second, backoff(retry, 0))
	assert.Equal(t, 4*time.Second, backoff(retry, 2))
	assert.Equal(t, 5*time.Second, backoff(retry, 4))
}

func TestWithRetry(t *testing.T) {
	c := &Client{config: &ClientConfig{
		ConnectionTimeout: time.Second,
		RetryConfig:       &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}}

	calls := 0
	err := c.withRetry(context.Background(), "topology", func(context.Context) error {
		calls++
		if calls < 3 {
			return stderrors.New("unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = c.withRetry(context.Background(), "topology", func(context.Context) error {
		calls++
		return stderrors.New("invalid argument")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
