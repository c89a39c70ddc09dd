package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestBucket_Acquire(t *testing.T) {
	t.Run("drains to capacity", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		b, err := NewBucket(2, 2, time.Second, WithClock(clock.Now))
		require.NoError(t, err)

		assert.True(t, b.Acquire(1))
		assert.True(t, b.Acquire(1))
		assert.False(t, b.Acquire(1))
	})

	t.Run("refills whole tokens only", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		b, err := NewBucket(2, 2, time.Second, WithClock(clock.Now))
		require.NoError(t, err)
		require.True(t, b.Acquire(2))

		clock.Advance(400 * time.Millisecond)
		assert.False(t, b.Acquire(1), "0.8 tokens must not be credited")

		// last did not move, so the elapsed 600ms accumulates with the previous 400ms
		clock.Advance(200 * time.Millisecond)
		assert.True(t, b.Acquire(1))
	})

	t.Run("caps at capacity", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		b, err := NewBucket(3, 1, time.Second, WithClock(clock.Now))
		require.NoError(t, err)
		require.True(t, b.Acquire(3))

		clock.Advance(time.Hour)
		assert.True(t, b.Acquire(3))
		assert.False(t, b.Acquire(1))
	})

	t.Run("rejects n above available without deducting", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		b, err := NewBucket(2, 1, time.Second, WithClock(clock.Now))
		require.NoError(t, err)
		assert.False(t, b.Acquire(3))
		assert.Equal(t, 2, b.Tokens())
	})
}

func TestNewBucket_Validation(t *testing.T) {
	_, err := NewBucket(0, 1, time.Second)
	assert.Error(t, err)
	_, err = NewBucket(1, 0, time.Second)
	assert.Error(t, err)
	_, err = NewBucket(1, 1, 0)
	assert.Error(t, err)
}

func TestBucket_PollInterval(t *testing.T) {
	b, err := NewBucket(110, 110, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute/110, b.PollInterval())

	fast, err := NewBucket(2, 100, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, fast.PollInterval())
}

func TestBucket_Wait(t *testing.T) {
	t.Run("blocks until refill", func(t *testing.T) {
		b, err := NewBucket(1, 20, time.Second)
		require.NoError(t, err)
		require.True(t, b.Acquire(1))

		start := time.Now()
		require.NoError(t, b.Wait(context.Background(), 1))
		assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	})

	t.Run("returns on cancelled context", func(t *testing.T) {
		b, err := NewBucket(1, 1, time.Hour)
		require.NoError(t, err)
		require.True(t, b.Acquire(1))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, b.Wait(ctx, 1), context.DeadlineExceeded)
	})

	t.Run("rejects n above capacity", func(t *testing.T) {
		b, err := NewBucket(1, 1, time.Second)
		require.NoError(t, err)
		assert.Error(t, b.Wait(context.Background(), 2))
	})
}

func TestBucket_ConcurrentAcquireNeverOverspends(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b, err := NewBucket(50, 1, time.Hour, WithClock(clock.Now))
	require.NoError(t, err)

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Acquire(1) {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), granted.Load())
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()

	data, err := r.Get(ScopeData, 110, 110, time.Minute)
	require.NoError(t, err)
	again, err := r.Get(ScopeData, 1, 1, time.Second)
	require.NoError(t, err)
	assert.Same(t, data, again)

	trade, err := r.Get(ScopeTrade, 2, 2, time.Second)
	require.NoError(t, err)
	assert.NotSame(t, data, trade)

	got, ok := r.Lookup(ScopeTrade)
	assert.True(t, ok)
	assert.Same(t, trade, got)

	_, err = r.Get("bad", 0, 1, time.Second)
	assert.Error(t, err)
	_, ok = r.Lookup("bad")
	assert.False(t, ok)
}
