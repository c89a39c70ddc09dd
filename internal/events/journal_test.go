package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/qqqm/internal/storage/journal"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(4)
	a := b.Subscribe()
	c := b.Subscribe()
	require.Equal(t, 2, b.Subscribers())

	b.Publish(journal.Event{ID: "1", Kind: journal.KindTrade})

	assert.Equal(t, "1", (<-a).ID)
	assert.Equal(t, "1", (<-c).ID)
}

func TestBroadcaster_DropsForSlowReader(t *testing.T) {
	b := NewBroadcaster(1)
	ch := b.Subscribe()

	b.Publish(journal.Event{ID: "1"})
	b.Publish(journal.Event{ID: "2"})

	assert.Equal(t, "1", (<-ch).ID)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %s", ev.ID)
	default:
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster(0)
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, b.Subscribers())

	var nilB *Broadcaster
	nilB.Publish(journal.Event{})
}

func TestBroadcaster_KindFilter(t *testing.T) {
	b := NewBroadcaster(4)
	trades := b.Subscribe(journal.KindTrade, journal.KindGuard)
	all := b.Subscribe()

	b.Publish(journal.Event{ID: "1", Kind: journal.KindMark})
	b.Publish(journal.Event{ID: "2", Kind: journal.KindTrade})

	assert.Equal(t, "2", (<-trades).ID)
	assert.Len(t, trades, 0)
	assert.Equal(t, "1", (<-all).ID)
	assert.Equal(t, "2", (<-all).ID)
}

func TestFilter_Match(t *testing.T) {
	assert.True(t, NewFilter().Match(journal.Event{Kind: journal.KindSkip}))

	f := NewFilter(journal.KindGuard)
	assert.True(t, f.Match(journal.Event{Kind: journal.KindGuard}))
	assert.False(t, f.Match(journal.Event{Kind: journal.KindTrade}))
}
