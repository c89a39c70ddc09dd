// Package events fans out journal entries to live subscribers such as the dashboard stream.
package events

import (
	"sync"

	"github.com/vadiminshakov/qqqm/internal/storage/journal"
)

// Filter selects journal entries by kind. An empty filter selects every kind.
type Filter map[journal.Kind]struct{}

// NewFilter returns a filter for kinds.
func NewFilter(kinds ...journal.Kind) Filter {
	f := make(Filter, len(kinds))
	for _, k := range kinds {
		f[k] = struct{}{}
	}
	return f
}

// Match reports whether ev passes the filter.
func (f Filter) Match(ev journal.Event) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[ev.Kind]
	return ok
}

// Broadcaster fans out journal events to subscribers via buffered channels.
// Each subscriber receives only the kinds it asked for.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan journal.Event]Filter
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[chan journal.Event]Filter),
		buffer: buffer,
	}
}

// Publish sends ev to matching subscribers, dropping it for readers whose buffer is full.
func (b *Broadcaster) Publish(ev journal.Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, filter := range b.subs {
		if !filter.Match(ev) {
			continue
		}
		select {
		case ch <- ev:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives events of kinds, or of every kind
// when none are given, until Unsubscribe is called.
func (b *Broadcaster) Subscribe(kinds ...journal.Kind) chan journal.Event {
	ch := make(chan journal.Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = NewFilter(kinds...)
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan journal.Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
