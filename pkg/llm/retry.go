package llm

import (
	"context"
	"time"
)

// retryGateway wraps a Gateway and retries transient failures with
// exponential backoff: baseDelay, 2×baseDelay, 4×baseDelay, …
type retryGateway struct {
	inner       Gateway
	maxAttempts int
	baseDelay   time.Duration
}

// WithRetry wraps g with automatic retry on transient errors. Defaults:
// 3 attempts, 500ms base delay, factor 2.
func WithRetry(g Gateway) Gateway {
	return &retryGateway{inner: g, maxAttempts: 3, baseDelay: 500 * time.Millisecond}
}

func (r *retryGateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return retryCall(ctx, r.maxAttempts, r.baseDelay, func() ([][]float32, error) {
		return r.inner.Embed(ctx, texts)
	})
}

func (r *retryGateway) ChatStructured(ctx context.Context, messages []Message, schema Schema, out any) error {
	_, err := retryCall(ctx, r.maxAttempts, r.baseDelay, func() (struct{}, error) {
		return struct{}{}, r.inner.ChatStructured(ctx, messages, schema, out)
	})
	return err
}

// retryCall invokes fn up to maxAttempts times, doubling the delay between
// transient failures. Non-transient errors return immediately.
func retryCall[T any](ctx context.Context, maxAttempts int, base time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var last error
	for i := 0; i < maxAttempts; i++ {
		result, err := fn()
		if err == nil || !IsTransient(err) {
			return result, err
		}
		last = err
		if i < maxAttempts-1 {
			timer := time.NewTimer(base * (1 << i))
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return zero, last
}

var _ Gateway = (*retryGateway)(nil)
