package resilience

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/product-catalog/internal/catalog"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestPolicyRetriesTransientFailures(t *testing.T) {
	p := New("product", Config{Retry: fastRetry(3)})

	var calls atomic.Int32
	got, err := Call(context.Background(), p, func(context.Context) (string, error) {
		if calls.Add(1) < 3 {
			return "", fmt.Errorf("dial: %w", catalog.ErrUnavailable)
		}
		return "widget", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "widget", got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPolicyGivesUpAfterMaxAttempts(t *testing.T) {
	p := New("product", Config{Retry: fastRetry(3)})

	var calls atomic.Int32
	err := p.Execute(context.Background(), failing(&calls))

	assert.ErrorIs(t, err, catalog.ErrUnavailable)
	assert.Equal(t, int32(3), calls.Load())
	// One breaker outcome per wrapped call, not per attempt.
	assert.Equal(t, 1, p.Breaker().Snapshot().BufferedCalls)
}

func TestPolicyDoesNotRetryPermanentFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", catalog.ErrNotFound},
		{"invalid response", catalog.ErrInvalidResponse},
		{"invalid input", catalog.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New("review", Config{Retry: fastRetry(5)})
			var calls atomic.Int32
			err := p.Execute(context.Background(), func(context.Context) error {
				calls.Add(1)
				return fmt.Errorf("P1: %w", tt.err)
			})
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestPolicyTimeout(t *testing.T) {
	p := New("recommendation", Config{Timeout: 20 * time.Millisecond})

	start := time.Now()
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, catalog.ErrTimedOut)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPolicyTimeoutDoesNotWaitForStuckCalls(t *testing.T) {
	p := New("recommendation", Config{Timeout: 20 * time.Millisecond})

	block := make(chan struct{})
	defer close(block)
	err := p.Execute(context.Background(), func(context.Context) error {
		<-block
		return nil
	})

	assert.ErrorIs(t, err, catalog.ErrTimedOut)
}

func TestPolicyTimeoutBoundsRetries(t *testing.T) {
	p := New("review", Config{
		Timeout: 30 * time.Millisecond,
		Retry: RetryConfig{
			MaxAttempts:     10,
			InitialInterval: 20 * time.Millisecond,
			MaxInterval:     20 * time.Millisecond,
			Multiplier:      1,
		},
	})

	var calls atomic.Int32
	err := p.Execute(context.Background(), failing(&calls))

	assert.ErrorIs(t, err, catalog.ErrTimedOut)
	assert.Less(t, calls.Load(), int32(10))
}

func TestPolicyBulkheadRejectsWithoutInvoking(t *testing.T) {
	p := New("review", Config{Bulkhead: BulkheadConfig{MaxConcurrentCalls: 1}})

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- p.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	var calls atomic.Int32
	err := p.Execute(context.Background(), succeeding(&calls))
	assert.ErrorIs(t, err, catalog.ErrOverloaded)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, int64(1), p.Snapshot().BulkheadInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int64(1), p.Snapshot().BulkheadRejected)
}

func TestPolicyRateLimiter(t *testing.T) {
	p := New("product", Config{RateLimiter: RateLimiterConfig{LimitForPeriod: 2, LimitRefreshPeriod: time.Hour}})

	var calls atomic.Int32
	require.NoError(t, p.Execute(context.Background(), succeeding(&calls)))
	require.NoError(t, p.Execute(context.Background(), succeeding(&calls)))

	err := p.Execute(context.Background(), succeeding(&calls))
	assert.ErrorIs(t, err, catalog.ErrRateLimited)
	assert.Equal(t, int32(2), calls.Load())
	// Shed load never reaches the breaker window.
	assert.Equal(t, 2, p.Breaker().Snapshot().BufferedCalls)
	assert.Equal(t, int64(1), p.Snapshot().RateLimited)
}

func TestPolicyOpenBreakerIsNotRetried(t *testing.T) {
	p := New("review", Config{
		CircuitBreaker: BreakerConfig{SlidingWindowSize: 1, FailureRateThreshold: 0.5, WaitDurationInOpenState: time.Hour},
		Retry:          fastRetry(3),
	})

	var calls atomic.Int32
	_ = p.Execute(context.Background(), failing(&calls))
	require.Equal(t, int32(3), calls.Load())

	err := p.Execute(context.Background(), failing(&calls))
	assert.ErrorIs(t, err, catalog.ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRegistrySnapshots(t *testing.T) {
	r := NewRegistry()
	r.Register("review", Config{})
	r.Register("product", Config{})

	p, ok := r.Get("product")
	require.True(t, ok)
	assert.Equal(t, "product", p.Name())

	snaps := r.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "product", snaps[0].Name)
	assert.Equal(t, "review", snaps[1].Name)
	assert.Equal(t, "CLOSED", snaps[1].Breaker.State)
}
