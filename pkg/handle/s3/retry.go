package s3

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/marmos91/ofio/internal/logger"
)

// retryConfig controls retry behavior for transient S3 errors.
type retryConfig struct {
	maxRetries        int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
}

func defaultRetryConfig(maxRetries int) retryConfig {
	return retryConfig{
		maxRetries:        maxRetries,
		initialBackoff:    100 * time.Millisecond,
		maxBackoff:        2 * time.Second,
		backoffMultiplier: 2,
	}
}

// backoff returns the delay before retry number attempt (0-based).
func (r retryConfig) backoff(attempt int) time.Duration {
	d := float64(r.initialBackoff)
	for range attempt {
		d *= r.backoffMultiplier
	}
	if d > float64(r.maxBackoff) {
		d = float64(r.maxBackoff)
	}
	return time.Duration(d)
}

// do runs fn until it succeeds, fails permanently or retries run out.
func (r retryConfig) do(ctx context.Context, op, key string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			wait := r.backoff(attempt - 1)
			logger.DebugCtx(ctx, "s3: retrying",
				logger.KeyOperation, op,
				logger.KeyKey, key,
				logger.KeyAttempt, attempt,
				logger.KeyMaxRetries, r.maxRetries,
				"backoff", wait)

			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		if err = fn(); err == nil || !isRetryableError(err) {
			return err
		}
	}
	return err
}

// isRetryableError returns true if the error is transient and the
// operation should be retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "ThrottlingException", "RequestThrottled", "SlowDown",
			"InternalError", "ServiceUnavailable", "ServiceException":
			return true
		case "NoSuchKey", "NotFound", "AccessDenied", "Forbidden",
			"InvalidRange", "InvalidRequest", "NoSuchBucket":
			return false
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "StatusCode: 500") ||
		strings.Contains(msg, "StatusCode: 503")
}

// isNotFoundError returns true if the error indicates the object doesn't
// exist.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound" || code == "404"
	}
	return strings.Contains(err.Error(), "StatusCode: 404")
}

// isAccessDeniedError returns true for authorization failures.
func isAccessDeniedError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "AccessDenied" || code == "Forbidden"
	}
	return false
}

// isInvalidRangeError returns true if the error indicates an invalid byte
// range, which S3 reports for reads starting past the end.
func isInvalidRangeError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "InvalidRange"
	}
	return err != nil && strings.Contains(err.Error(), "InvalidRange")
}
