// Package ratelimit provides a polling token-bucket throttle for outbound calls.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const minPollInterval = 50 * time.Millisecond

// Bucket is a token bucket refilled at refill tokens per period, capped at capacity.
type Bucket struct {
	mu       sync.Mutex
	capacity int
	refill   int
	per      time.Duration
	tokens   int
	last     time.Time
	now      func() time.Time
}

// Option configures a Bucket.
type Option func(*Bucket)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Bucket) {
		b.now = now
	}
}

// NewBucket creates a full bucket.
func NewBucket(capacity, refill int, per time.Duration, opts ...Option) (*Bucket, error) {
	if capacity < 1 {
		return nil, errors.Errorf("capacity must be positive, got %d", capacity)
	}
	if refill < 1 {
		return nil, errors.Errorf("refill must be positive, got %d", refill)
	}
	if per <= 0 {
		return nil, errors.Errorf("period must be positive, got %s", per)
	}

	b := &Bucket{
		capacity: capacity,
		refill:   refill,
		per:      per,
		tokens:   capacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.last = b.now()

	return b, nil
}

// Acquire takes n tokens if available and reports whether it did.
// Refill is credited in whole tokens; the refill timestamp only advances when at least one token was added.
func (b *Bucket) Acquire(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if elapsed := now.Sub(b.last); elapsed > 0 {
		add := int(float64(elapsed) * float64(b.refill) / float64(b.per))
		if add > 0 {
			b.tokens = min(b.capacity, b.tokens+add)
			b.last = now
		}
	}

	if b.tokens >= n {
		b.tokens -= n
		return true
	}
	return false
}

// Wait blocks until n tokens are acquired, polling at PollInterval.
// It only returns early when ctx is done.
func (b *Bucket) Wait(ctx context.Context, n int) error {
	if n > b.capacity {
		return errors.Errorf("requested %d tokens exceeds capacity %d", n, b.capacity)
	}

	interval := b.PollInterval()
	for {
		if b.Acquire(n) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// PollInterval is max(50ms, per/refill).
func (b *Bucket) PollInterval() time.Duration {
	return max(minPollInterval, b.per/time.Duration(b.refill))
}

// Tokens returns the tokens currently available without refilling.
func (b *Bucket) Tokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}
