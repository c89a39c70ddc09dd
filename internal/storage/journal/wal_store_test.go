package journal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/qqqm/internal/domain"
)

func TestWALStore_AppendAndRead(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	require.NoError(t, err)

	ts := time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC)
	trade := domain.NewMarketTrade(ts, domain.TradeActionBuy, "QQQM", decimal.NewFromInt(2), decimal.NewFromInt(50), "DCA", "")

	first, err := store.Append(TradeEvent("a", trade))
	require.NoError(t, err)
	second, err := store.Append(MarkEvent("b", domain.LedgerSnapshot{
		Timestamp: ts, Cash: decimal.NewFromInt(900), Equity: decimal.NewFromInt(1000), Note: "mark",
	}))
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
	assert.Equal(t, second, store.CurrentIndex())

	events, err := store.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, KindTrade, events[0].Kind)
	assert.Equal(t, "QQQM", events[0].Symbol)
	assert.True(t, events[0].Price.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, KindMark, events[1].Kind)
	assert.True(t, events[1].Equity.Equal(decimal.NewFromInt(1000)))

	tail, err := store.EventsAfter(first)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "b", tail[0].ID)

	none, err := store.EventsAfter(second)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, store.Close())
}

func TestWALStore_RejectsEventWithoutKind(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Append(Event{})
	assert.Error(t, err)
}

func TestWALStore_ReopenKeepsEvents(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	require.NoError(t, err)
	_, err = store.Append(MarkEvent("x", domain.LedgerSnapshot{Cash: decimal.NewFromInt(1), Equity: decimal.NewFromInt(1)}))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	events, err := reopened.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "x", events[0].ID)
}

func TestNilStore(t *testing.T) {
	var s *WALStore
	assert.Zero(t, s.CurrentIndex())
	_, err := s.Append(Event{Kind: KindMark})
	assert.Error(t, err)
}

func TestNoticeEvent(t *testing.T) {
	at := time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC)
	ev := NoticeEvent("n", KindGuard, at, "dca", "Paused")

	assert.Equal(t, KindGuard, ev.Kind)
	assert.Equal(t, "dca", ev.Tag)
	assert.Equal(t, "Paused", ev.Details)
	assert.Equal(t, at, ev.Time)
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds(" trade, guard ,")
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindTrade, KindGuard}, kinds)

	kinds, err = ParseKinds("")
	require.NoError(t, err)
	assert.Empty(t, kinds)

	_, err = ParseKinds("trade,fill")
	assert.EqualError(t, err, `unknown journal kind "fill"`)
}
