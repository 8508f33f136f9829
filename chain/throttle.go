package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// ThrottleConfig configures Throttle's rate limiting and retry behaviour.
type ThrottleConfig struct {
	// MinDelay is the minimum spacing enforced between successive calls.
	MinDelay time.Duration
	// BackoffFactor multiplies the initial backoff interval on each
	// retry; zero selects backoff's own default (1.5).
	BackoffFactor float64
	// MaxRetries caps the number of attempts per call; zero selects a
	// default of 5.
	MaxRetries uint
}

// Throttle serializes calls to the chain's JSON-RPC endpoint through a
// single rate limiter, queueing callers FIFO and retrying transient
// failures with exponential backoff (spec §4.4, §5: "the chain adapter
// wraps the external JSON-RPC transport with rate-limited retry").
type Throttle struct {
	limiter *rate.Limiter
	cfg     ThrottleConfig
	queue   chan struct{}
}

// NewThrottle returns a Throttle ready for concurrent use. The FIFO queue
// is a single-slot channel: callers acquire it in arrival order and hold
// it for the duration of one call, so concurrent callers never reorder
// relative to each other even though the rate limiter alone would not
// guarantee that.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = 200 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	queue := make(chan struct{}, 1)
	queue <- struct{}{}
	return &Throttle{
		limiter: rate.NewLimiter(rate.Every(cfg.MinDelay), 1),
		cfg:     cfg,
		queue:   queue,
	}
}

// Do runs call under the throttle: it waits its FIFO turn, respects the
// rate limit, and retries call on error with exponential backoff up to
// MaxRetries attempts.
func Do[T any](ctx context.Context, t *Throttle, call func(ctx context.Context) (T, error)) (T, error) {
	select {
	case <-t.queue:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	defer func() { t.queue <- struct{}{} }()

	bo := backoff.NewExponentialBackOff()
	if t.cfg.BackoffFactor > 0 {
		bo.Multiplier = t.cfg.BackoffFactor
	}
	bo.RandomizationFactor = 1

	result, err := backoff.Retry(ctx, func() (T, error) {
		if err := t.limiter.Wait(ctx); err != nil {
			var zero T
			return zero, backoff.Permanent(err)
		}
		return call(ctx)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(t.cfg.MaxRetries))

	// ctx.Err() != nil means Retry gave up because the caller cancelled,
	// not because the transport itself kept failing; that case keeps its
	// own identity rather than being relabeled Transport.
	if err != nil && ctx.Err() == nil {
		return result, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return result, err
}
