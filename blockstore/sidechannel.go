package blockstore

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
)

// BreakerThreshold is the default consecutive-failure count at which the
// remote-pin side channel's breaker opens and stays open for the rest of
// the process's life.
const BreakerThreshold = 5

// Breaker wraps gobreaker.CircuitBreaker for the remote-pin side channel.
// Once it trips, Execute is never attempted again: a pinning service that
// is down is treated as permanently unavailable for this process rather
// than retried indefinitely.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

// NewBreaker returns a Breaker that opens after threshold consecutive
// failures and never half-closes (gobreaker's default half-open probing is
// disabled by giving the open state an effectively infinite timeout).
func NewBreaker(threshold uint32) *Breaker {
	if threshold == 0 {
		threshold = BreakerThreshold
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name: "blockstore-remote-pin",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		Timeout: 365 * 24 * time.Hour,
	})
	return &Breaker{cb: cb}
}

func (b *Breaker) run(fn func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// sideChannel serializes remote-pin calls through a single rate limiter
// (a FIFO queue of one, matching the chain throttle's shape) and guards
// them with a Breaker.
type sideChannel struct {
	pinner  Pinner
	breaker *Breaker

	limiter *rate.Limiter
	queue   chan struct{}
}

func newSideChannel(pinner Pinner, breaker *Breaker) *sideChannel {
	queue := make(chan struct{}, 1)
	queue <- struct{}{}
	return &sideChannel{
		pinner:  pinner,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		queue:   queue,
	}
}

func (s *sideChannel) pin(ctx context.Context, c dagcid.Cid) error {
	select {
	case <-s.queue:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { s.queue <- struct{}{} }()

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	err := s.breaker.run(func() error { return s.pinner.Pin(ctx, c) })
	if err == gobreaker.ErrOpenState {
		return ErrSideChannelOpen
	}
	return err
}
