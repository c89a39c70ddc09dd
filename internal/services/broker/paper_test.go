package broker

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/events"
	"github.com/vadiminshakov/qqqm/internal/storage/journal"
	"github.com/vadiminshakov/qqqm/internal/storage/sqlstore"
)

type fakeMarket struct {
	mu       sync.Mutex
	prices   map[string]decimal.Decimal
	chain    []domain.Quote
	chainErr error
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{prices: make(map[string]decimal.Decimal)}
}

func (m *fakeMarket) setPrice(symbol string, px int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = decimal.NewFromInt(px)
}

func (m *fakeMarket) setChain(quotes ...domain.Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chain = quotes
}

func (m *fakeMarket) Price(_ context.Context, symbol string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	px, ok := m.prices[symbol]
	if !ok {
		return decimal.Zero, errors.Errorf("no price for %s", symbol)
	}
	return px, nil
}

func (m *fakeMarket) Chain(context.Context, string, time.Time) ([]domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chain, m.chainErr
}

func (m *fakeMarket) Expirations(context.Context, string) ([]time.Time, error) {
	return nil, nil
}

func (m *fakeMarket) VIX(context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(18), nil
}

func quote(typ domain.OptionType, strike int64, bid, ask string) domain.Quote {
	return domain.Quote{
		Type:   typ,
		Strike: decimal.NewFromInt(strike),
		Bid:    decimal.RequireFromString(bid),
		Ask:    decimal.RequireFromString(ask),
	}
}

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

var testExpiry = time.Date(2025, 4, 4, 0, 0, 0, 0, time.UTC)

func newTestPaper(t *testing.T, startingCash int64, opts ...PaperOption) (*Paper, *sqlstore.Store, *fakeMarket) {
	t.Helper()
	ctx := context.Background()

	store, err := sqlstore.Open(ctx, filepath.Join(t.TempDir(), "paper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	market := newFakeMarket()
	p, err := NewPaper(ctx, store, market, d(startingCash), opts...)
	require.NoError(t, err)

	return p, store, market
}

func latestCash(t *testing.T, store *sqlstore.Store) decimal.Decimal {
	t.Helper()
	snap, err := store.LatestLedger(context.Background())
	require.NoError(t, err)
	return snap.Cash
}

func TestNewPaper_BootstrapsLedgerOnce(t *testing.T) {
	p, store, market := newTestPaper(t, 1000)

	snap, err := store.LatestLedger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "init", snap.Note)
	assert.True(t, snap.Cash.Equal(d(1000)))
	assert.True(t, snap.Equity.Equal(d(1000)))

	_, err = NewPaper(context.Background(), store, market, d(5000))
	require.NoError(t, err)
	assert.True(t, latestCash(t, store).Equal(d(1000)))

	list, err := store.ListLedger(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.NotNil(t, p)
}

func TestPaper_BuyThenSellScenario(t *testing.T) {
	ctx := context.Background()
	p, store, market := newTestPaper(t, 1000)

	market.setPrice("QQQM", 50)
	res, err := p.BuyEquity(ctx, "QQQM", d(2), "DCA", "weekly")
	require.NoError(t, err)
	require.True(t, res.OK(), res.Reason)
	assert.True(t, latestCash(t, store).Equal(d(900)))

	market.setPrice("QQQM", 60)
	res, err = p.SellEquity(ctx, "QQQM", d(1), "SWEEP", "")
	require.NoError(t, err)
	require.True(t, res.OK(), res.Reason)

	snap, err := store.LatestLedger(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Cash.Equal(d(960)), "got %s", snap.Cash)
	assert.True(t, snap.Equity.Equal(d(1000)), "equity carries forward, got %s", snap.Equity)
	assert.Equal(t, "SELL QQQM", snap.Note)

	pos, err := store.GetPosition(ctx, "QQQM", domain.PositionKindEquity)
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(d(1)))
	assert.True(t, pos.AveragePrice.Equal(d(50)))

	trades, err := store.ListTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, domain.TradeActionSell, trades[0].Action)
	assert.Equal(t, "weekly", trades[1].Details)
}

func TestPaper_SellCreditsOnlyHeldShares(t *testing.T) {
	ctx := context.Background()
	p, store, market := newTestPaper(t, 1000)
	market.setPrice("QQQM", 50)

	res, err := p.SellEquity(ctx, "QQQM", d(1), "SWEEP", "")
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, "no shares to sell", res.Reason)

	_, err = p.BuyEquity(ctx, "QQQM", d(1), "DCA", "")
	require.NoError(t, err)
	res, err = p.SellEquity(ctx, "QQQM", d(5), "SWEEP", "")
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.True(t, res.Qty.Equal(d(1)))
	assert.True(t, latestCash(t, store).Equal(d(1000)))
}

func TestPaper_PriceFailureSkipsWithoutWrites(t *testing.T) {
	ctx := context.Background()
	p, store, _ := newTestPaper(t, 1000)

	res, err := p.BuyEquity(ctx, "NOPE", d(1), "DCA", "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusSkipped, res.Status)

	list, err := store.ListLedger(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPaper_CoveredCall(t *testing.T) {
	ctx := context.Background()
	p, store, market := newTestPaper(t, 1000)
	market.setChain(quote(domain.OptionTypeCall, 210, "1.00", "1.20"))

	res, err := p.SellCoveredCall(ctx, "QQQM", 99, d(210), testExpiry, "CC")
	require.NoError(t, err)
	assert.Equal(t, "insufficient shares for covered call", res.Reason)

	res, err = p.SellCoveredCall(ctx, "QQQM", 250, d(210), testExpiry, "CC")
	require.NoError(t, err)
	require.True(t, res.OK(), res.Reason)
	assert.Equal(t, 2, res.Contracts)
	assert.True(t, res.Premium.Equal(d(220)), "got %s", res.Premium)
	assert.True(t, latestCash(t, store).Equal(d(1220)))

	op, err := store.GetOption(ctx, res.OptionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyKindCoveredCall, op.Kind)
	assert.Equal(t, domain.DirectionNeutral, op.Direction)

	items, err := store.OpenRiskItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPaper_CashSecuredPutOpenAndClose(t *testing.T) {
	ctx := context.Background()
	p, store, market := newTestPaper(t, 50000)
	market.setChain(quote(domain.OptionTypePut, 400, "2.00", "2.20"))

	res, err := p.SellCashSecuredPut(ctx, "QQQ", d(39999), d(400), testExpiry, "CSP")
	require.NoError(t, err)
	assert.Equal(t, "insufficient cash for CSP", res.Reason)

	res, err = p.SellCashSecuredPut(ctx, "QQQ", d(50000), d(400), testExpiry, "CSP")
	require.NoError(t, err)
	require.True(t, res.OK(), res.Reason)
	assert.Equal(t, 1, res.Contracts)
	assert.True(t, res.Premium.Equal(d(210)), "got %s", res.Premium)
	assert.True(t, latestCash(t, store).Equal(d(10210)))

	market.setChain(quote(domain.OptionTypePut, 400, "1.00", "1.00"))
	closed, err := p.CloseOption(ctx, res.OptionID, "TP")
	require.NoError(t, err)
	require.True(t, closed.OK(), closed.Reason)
	assert.True(t, closed.Debit.Equal(d(100)))
	assert.True(t, latestCash(t, store).Equal(d(50110)), "collateral released, got %s", latestCash(t, store))
}

func TestPaper_CashSecuredPutRejectsWhenLedgerCashShort(t *testing.T) {
	ctx := context.Background()
	p, _, market := newTestPaper(t, 1000)
	market.setChain()

	res, err := p.SellCashSecuredPut(ctx, "QQQ", d(50000), d(400), testExpiry, "CSP")
	require.NoError(t, err)
	assert.Equal(t, "insufficient cash for CSP", res.Reason)
}

func TestPaper_VerticalSpreadLifecycle(t *testing.T) {
	ctx := context.Background()
	p, store, market := newTestPaper(t, 1000)
	market.setChain(
		quote(domain.OptionTypePut, 400, "2.00", "2.20"),
		quote(domain.OptionTypePut, 395, "0.50", "0.70"),
	)

	res, err := p.OpenVerticalSpread(ctx, "QQQ", domain.SpreadKindBullPut, d(400), d(395), testExpiry, "SPREAD")
	require.NoError(t, err)
	require.True(t, res.OK(), res.Reason)
	assert.True(t, res.Premium.Equal(d(150)), "got %s", res.Premium)
	assert.True(t, res.MaxLoss.Equal(d(350)), "got %s", res.MaxLoss)
	assert.True(t, latestCash(t, store).Equal(d(800)))

	items, err := store.OpenRiskItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].RiskAmount.Equal(d(500)))
	assert.Equal(t, domain.DirectionBull, items[0].Direction)
	assert.Equal(t, res.OptionID, items[0].OptionID)

	market.setChain(
		quote(domain.OptionTypePut, 400, "1.00", "1.00"),
		quote(domain.OptionTypePut, 395, "0.40", "0.40"),
	)
	closed, err := p.CloseOption(ctx, res.OptionID, "TP")
	require.NoError(t, err)
	require.True(t, closed.OK(), closed.Reason)
	assert.True(t, closed.Debit.Equal(d(60)), "got %s", closed.Debit)
	assert.True(t, latestCash(t, store).Equal(d(1090)), "got %s", latestCash(t, store))

	items, err = store.OpenRiskItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	again, err := p.CloseOption(ctx, res.OptionID, "TP")
	require.NoError(t, err)
	assert.Equal(t, "not open", again.Reason)
}

func TestPaper_SpreadPlaceholderCreditAndCashCheck(t *testing.T) {
	ctx := context.Background()
	p, store, market := newTestPaper(t, 489)
	market.setChain()

	res, err := p.OpenVerticalSpread(ctx, "QQQ", domain.SpreadKindBearCall, d(420), d(425), testExpiry, "SPREAD")
	require.NoError(t, err)
	require.True(t, res.OK(), res.Reason)
	assert.True(t, res.Premium.Equal(d(10)))
	assert.True(t, res.MaxLoss.Equal(d(490)))
	assert.True(t, latestCash(t, store).Equal(d(9)))

	res, err = p.OpenVerticalSpread(ctx, "QQQ", domain.SpreadKindBearCall, d(420), d(425), testExpiry, "SPREAD")
	require.NoError(t, err)
	assert.Equal(t, "insufficient cash for spread collateral", res.Reason)
}

func TestPaper_IronCondorCashBoundary(t *testing.T) {
	ctx := context.Background()

	// no quotes: credit 12, width 500, max loss 488
	t.Run("accepted at exactly zero", func(t *testing.T) {
		p, store, market := newTestPaper(t, 476)
		market.setChain()

		res, err := p.OpenIronCondor(ctx, "QQQ", d(390), d(395), d(420), d(425), testExpiry, "CONDOR")
		require.NoError(t, err)
		require.True(t, res.OK(), res.Reason)
		assert.True(t, res.Premium.Equal(d(12)))
		assert.True(t, res.MaxLoss.Equal(d(488)))
		assert.True(t, latestCash(t, store).IsZero())

		items, err := store.OpenRiskItems(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, domain.DirectionNeutral, items[0].Direction)
	})

	t.Run("rejected below zero", func(t *testing.T) {
		p, store, market := newTestPaper(t, 475)
		market.setChain()

		res, err := p.OpenIronCondor(ctx, "QQQ", d(390), d(395), d(420), d(425), testExpiry, "CONDOR")
		require.NoError(t, err)
		assert.Equal(t, "insufficient cash for condor collateral", res.Reason)
		assert.True(t, latestCash(t, store).Equal(d(475)))

		open, err := store.ListOpenOptions(ctx)
		require.NoError(t, err)
		assert.Empty(t, open)
	})

	t.Run("rejects inverted strikes", func(t *testing.T) {
		p, _, _ := newTestPaper(t, 1000)
		res, err := p.OpenIronCondor(ctx, "QQQ", d(395), d(390), d(420), d(425), testExpiry, "CONDOR")
		require.NoError(t, err)
		assert.Equal(t, "invalid condor strikes", res.Reason)
	})
}

func TestPaper_CloseWithoutQuotesKeepsPositionOpen(t *testing.T) {
	ctx := context.Background()
	p, store, market := newTestPaper(t, 1000)
	market.setChain()

	res, err := p.OpenVerticalSpread(ctx, "QQQ", domain.SpreadKindBullPut, d(400), d(395), testExpiry, "SPREAD")
	require.NoError(t, err)
	require.True(t, res.OK())

	closed, err := p.CloseOption(ctx, res.OptionID, "SL")
	require.NoError(t, err)
	assert.Equal(t, "no quotes", closed.Reason)

	market.chainErr = errors.New("timeout")
	closed, err = p.CloseOption(ctx, res.OptionID, "SL")
	require.NoError(t, err)
	assert.Equal(t, "no quotes", closed.Reason)

	op, err := store.GetOption(ctx, res.OptionID)
	require.NoError(t, err)
	assert.True(t, op.IsOpen())
}

func TestPaper_CloseAllOptions(t *testing.T) {
	ctx := context.Background()
	p, store, market := newTestPaper(t, 5000)
	market.setChain(
		quote(domain.OptionTypePut, 400, "2.00", "2.20"),
		quote(domain.OptionTypePut, 395, "0.50", "0.70"),
	)

	for i := 0; i < 2; i++ {
		res, err := p.OpenVerticalSpread(ctx, "QQQ", domain.SpreadKindBullPut, d(400), d(395), testExpiry, "SPREAD")
		require.NoError(t, err)
		require.True(t, res.OK())
	}

	n, err := p.CloseAllOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	open, err := store.ListOpenOptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	trades, err := store.ListTrades(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, CloseAllReason, trades[0].Tag)
}

func TestPaper_AccountMarksEverything(t *testing.T) {
	ctx := context.Background()
	p, store, market := newTestPaper(t, 1000)
	market.setPrice("QQQM", 50)
	market.setPrice("SPY", 500)
	market.setChain(
		quote(domain.OptionTypePut, 400, "2.00", "2.20"),
		quote(domain.OptionTypePut, 395, "0.50", "0.70"),
	)

	_, err := p.BuyEquity(ctx, "QQQM", d(2), "DCA", "")
	require.NoError(t, err)
	_, err = p.BuyEquity(ctx, "SPY", d(1), "DCA", "")
	require.NoError(t, err)
	_, err = p.OpenVerticalSpread(ctx, "QQQ", domain.SpreadKindBullPut, d(400), d(395), testExpiry, "SPREAD")
	require.NoError(t, err)
	// cash 1000 - 100 - 500 + 150 - 350 = 200

	market.setPrice("QQQM", 55)
	delete(market.prices, "SPY")
	market.setChain(
		quote(domain.OptionTypePut, 400, "1.00", "1.00"),
		quote(domain.OptionTypePut, 395, "0.40", "0.40"),
	)

	acct, err := p.Account(ctx)
	require.NoError(t, err)
	assert.True(t, acct.Cash.Equal(d(200)), "got %s", acct.Cash)
	// 200 + collateral 350 + 2*55 - mark 60, SPY skipped
	assert.True(t, acct.Equity.Equal(d(600)), "got %s", acct.Equity)

	snap, err := store.LatestLedger(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mark", snap.Note)
	assert.True(t, snap.Equity.Equal(d(600)))
}

func TestPaper_AccountSkipsOptionsWithoutQuotes(t *testing.T) {
	ctx := context.Background()
	p, _, market := newTestPaper(t, 1000)
	market.setChain()

	_, err := p.OpenVerticalSpread(ctx, "QQQ", domain.SpreadKindBullPut, d(400), d(395), testExpiry, "SPREAD")
	require.NoError(t, err)

	acct, err := p.Account(ctx)
	require.NoError(t, err)
	// 1000 + 10 - 490 = 520 cash, collateral 490 counted, no mark
	assert.True(t, acct.Cash.Equal(d(520)), "got %s", acct.Cash)
	assert.True(t, acct.Equity.Equal(d(1010)), "got %s", acct.Equity)
}

func TestPaper_JournalsTradesAndSkips(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBroadcaster(16)
	sub := bus.Subscribe()
	p, _, market := newTestPaper(t, 1000, WithRecorder(events.NewRecorder(nil, bus, nil)))
	market.setPrice("QQQM", 50)

	_, err := p.BuyEquity(ctx, "QQQM", d(1), "DCA", "")
	require.NoError(t, err)
	_, err = p.SellEquity(ctx, "NOPE", d(1), "SWEEP", "")
	require.NoError(t, err)

	first := <-sub
	assert.Equal(t, journal.KindTrade, first.Kind)
	assert.Equal(t, "QQQM", first.Symbol)

	second := <-sub
	assert.Equal(t, journal.KindSkip, second.Kind)
	assert.Equal(t, "SWEEP", second.Tag)
}
