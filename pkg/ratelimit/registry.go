package ratelimit

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Well-known scopes.
const (
	ScopeData  = "data"
	ScopeTrade = "trade"
)

// Registry owns one Bucket per scope name. Callers sharing a registry share the buckets.
type Registry struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
	opts    []Option
}

// NewRegistry creates an empty registry; opts apply to every bucket it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		buckets: make(map[string]*Bucket),
		opts:    opts,
	}
}

// Get returns the bucket for scope, creating it on first use.
// Parameters of later calls for an existing scope are ignored.
func (r *Registry) Get(scope string, capacity, refill int, per time.Duration) (*Bucket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.buckets[scope]; ok {
		return b, nil
	}

	b, err := NewBucket(capacity, refill, per, r.opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "create %q limiter", scope)
	}
	r.buckets[scope] = b
	return b, nil
}

// Lookup returns an existing bucket.
func (r *Registry) Lookup(scope string) (*Bucket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buckets[scope]
	return b, ok
}
