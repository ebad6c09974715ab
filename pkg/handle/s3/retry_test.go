package s3

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ofio/pkg/handle"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), false},
		{"throttling", &smithy.GenericAPIError{Code: "SlowDown"}, true},
		{"internal", &smithy.GenericAPIError{Code: "InternalError"}, true},
		{"no such key", &smithy.GenericAPIError{Code: "NoSuchKey"}, false},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"status 503", errors.New("https response error StatusCode: 503"), true},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, isNotFoundError(&types.NoSuchKey{}))
	assert.True(t, isNotFoundError(fmt.Errorf("head: %w", &types.NotFound{})))
	assert.True(t, isNotFoundError(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.True(t, isNotFoundError(errors.New("StatusCode: 404, not found")))
	assert.False(t, isNotFoundError(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFoundError(nil))
}

func TestIsInvalidRangeError(t *testing.T) {
	assert.True(t, isInvalidRangeError(&smithy.GenericAPIError{Code: "InvalidRange"}))
	assert.False(t, isInvalidRangeError(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.False(t, isInvalidRangeError(nil))
}

func TestMapError(t *testing.T) {
	err := mapError("k", &types.NoSuchKey{})
	assert.ErrorIs(t, err, handle.ErrNotFound)

	err = mapError("k", &smithy.GenericAPIError{Code: "AccessDenied"})
	assert.ErrorIs(t, err, handle.ErrAccessDenied)

	boom := errors.New("boom")
	assert.ErrorIs(t, mapError("k", boom), boom)
}

func TestBackoff(t *testing.T) {
	r := defaultRetryConfig(5)

	assert.Equal(t, 100*time.Millisecond, r.backoff(0))
	assert.Equal(t, 200*time.Millisecond, r.backoff(1))
	assert.Equal(t, 400*time.Millisecond, r.backoff(2))
	assert.Equal(t, 2*time.Second, r.backoff(10))
}

func TestRetryDo(t *testing.T) {
	r := retryConfig{maxRetries: 3, initialBackoff: time.Millisecond, maxBackoff: time.Millisecond, backoffMultiplier: 2}

	t.Run("RetriesTransient", func(t *testing.T) {
		calls := 0
		err := r.do(context.Background(), "get_object", "k", func() error {
			calls++
			if calls < 3 {
				return &smithy.GenericAPIError{Code: "SlowDown"}
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("StopsOnPermanent", func(t *testing.T) {
		calls := 0
		err := r.do(context.Background(), "get_object", "k", func() error {
			calls++
			return &smithy.GenericAPIError{Code: "NoSuchKey"}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("GivesUp", func(t *testing.T) {
		calls := 0
		err := r.do(context.Background(), "get_object", "k", func() error {
			calls++
			return &smithy.GenericAPIError{Code: "ServiceUnavailable"}
		})
		require.Error(t, err)
		assert.Equal(t, r.maxRetries+1, calls)
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := retryConfig{maxRetries: 3, initialBackoff: time.Hour, maxBackoff: time.Hour, backoffMultiplier: 1}
		calls := 0
		err := slow.do(ctx, "get_object", "k", func() error {
			calls++
			cancel()
			return &smithy.GenericAPIError{Code: "SlowDown"}
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestResize(t *testing.T) {
	b := []byte("hello")
	b = resize(b, 3)
	assert.Equal(t, []byte("hel"), b)

	b = resize(b, 5)
	assert.Equal(t, []byte{'h', 'e', 'l', 0, 0}, b)

	b = resize(b, 8)
	assert.Len(t, b, 8)
	assert.Equal(t, []byte("hel"), b[:3])
}
