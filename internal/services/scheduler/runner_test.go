package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/qqqm/config"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/events"
	"github.com/vadiminshakov/qqqm/internal/metrics"
	"github.com/vadiminshakov/qqqm/internal/notify"
	"github.com/vadiminshakov/qqqm/internal/services/riskguard"
	"github.com/vadiminshakov/qqqm/internal/services/strategy"
	"github.com/vadiminshakov/qqqm/internal/storage/journal"
	brokerMock "github.com/vadiminshakov/qqqm/mocks/broker"
)

var testNow = time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decimalMatcher(expected decimal.Decimal) interface{} {
	return mock.MatchedBy(func(actual decimal.Decimal) bool {
		return expected.Equal(actual)
	})
}

type fakeGuard struct {
	decision riskguard.Decision
	noted    int
}

func (f *fakeGuard) Check(context.Context) riskguard.Decision {
	return f.decision
}

func (f *fakeGuard) NoteTrade(context.Context) error {
	f.noted++
	return nil
}

type fakeGate struct {
	decision riskguard.Decision
	calls    int
}

func (f *fakeGate) Check(context.Context, riskguard.AccountSource) riskguard.Decision {
	f.calls++
	return f.decision
}

type message struct {
	event, title, body string
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []message
}

func (n *recordingNotifier) Notify(event, title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, message{event: event, title: title, body: body})
}

func (n *recordingNotifier) bodies() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.msgs))
	for _, m := range n.msgs {
		out = append(out, m.body)
	}
	return out
}

type fakeStore struct {
	open     []domain.OptionPosition
	trades   int
	ledger   []domain.LedgerSnapshot
	openErr  error
	tradeErr error
}

func (f *fakeStore) ListOpenOptions(context.Context) ([]domain.OptionPosition, error) {
	return f.open, f.openErr
}

func (f *fakeStore) CountTradesBetween(context.Context, time.Time, time.Time) (int, error) {
	return f.trades, f.tradeErr
}

func (f *fakeStore) AppendLedger(_ context.Context, snap domain.LedgerSnapshot) (int64, error) {
	f.ledger = append(f.ledger, snap)
	return int64(len(f.ledger)), nil
}

type harness struct {
	broker   *brokerMock.Broker
	guard    *fakeGuard
	gate     *fakeGate
	store    *fakeStore
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	bus      *events.Broadcaster
	runner   *Runner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		broker:   brokerMock.NewBroker(t),
		guard:    &fakeGuard{decision: riskguard.Allowed()},
		gate:     &fakeGate{decision: riskguard.Allowed()},
		store:    &fakeStore{},
		notifier: &recordingNotifier{},
		metrics:  metrics.New(),
		bus:      events.NewBroadcaster(8),
	}
	h.runner = NewRunner(h.broker, h.guard, h.gate, h.store, config.NewHolder(config.Default()),
		WithNotifier(h.notifier),
		WithRecorder(events.NewRecorder(nil, h.bus, nil)),
		WithMetrics(h.metrics),
		WithClock(func() time.Time { return testNow }))
	return h
}

func (h *harness) jobRuns(job, outcome string) float64 {
	return testutil.ToFloat64(h.metrics.JobRuns.WithLabelValues(job, outcome))
}

func TestGuarded_BlockedByGuard(t *testing.T) {
	h := newHarness(t)
	h.guard.decision = riskguard.Decision{Reason: "Paused", Check: riskguard.CheckPaused}
	sub := h.bus.Subscribe()

	called := false
	outcome := h.runner.Guarded(context.Background(), "dca", func(context.Context) (strategy.Outcome, error) {
		called = true
		return strategy.Outcome{}, nil
	})

	assert.Equal(t, metrics.OutcomeBlocked, outcome)
	assert.False(t, called)
	assert.Zero(t, h.gate.calls)
	assert.Equal(t, []string{"Guard block: Paused"}, h.notifier.bodies())
	assert.Equal(t, float64(1), h.jobRuns("dca", metrics.OutcomeBlocked))

	select {
	case ev := <-sub:
		assert.Equal(t, journal.KindGuard, ev.Kind)
		assert.Equal(t, "dca", ev.Tag)
		assert.Equal(t, "Paused", ev.Details)
		assert.NotEmpty(t, ev.ID)
	default:
		t.Fatal("guard block was not journaled")
	}
}

func TestGuarded_BlockedByGate(t *testing.T) {
	h := newHarness(t)
	h.gate.decision = riskguard.Decision{Reason: "Skipping trades: VIX 30.0 > 28", Check: riskguard.CheckGateVIX}

	called := false
	outcome := h.runner.Guarded(context.Background(), "wheel", func(context.Context) (strategy.Outcome, error) {
		called = true
		return strategy.Outcome{}, nil
	})

	assert.Equal(t, metrics.OutcomeBlocked, outcome)
	assert.False(t, called)
	assert.Zero(t, h.guard.noted)
}

func TestGuarded_StrategyErrorAndPanic(t *testing.T) {
	tests := []struct {
		name string
		fn   Action
		want string
	}{
		{
			name: "error",
			fn: func(context.Context) (strategy.Outcome, error) {
				return strategy.Outcome{}, errors.New("chain unavailable")
			},
			want: "Strategy error: chain unavailable",
		},
		{
			name: "panic",
			fn: func(context.Context) (strategy.Outcome, error) {
				panic("kaboom")
			},
			want: "Strategy error: panic: kaboom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			outcome := h.runner.Guarded(context.Background(), "spreads", tt.fn)

			assert.Equal(t, metrics.OutcomeError, outcome)
			assert.Equal(t, []string{tt.want}, h.notifier.bodies())
			assert.Zero(t, h.guard.noted)
			assert.Equal(t, float64(1), h.jobRuns("spreads", metrics.OutcomeError))
		})
	}
}

func TestGuarded_ExecutedNotesTrade(t *testing.T) {
	h := newHarness(t)

	outcome := h.runner.Guarded(context.Background(), "dca", func(context.Context) (strategy.Outcome, error) {
		return strategy.Outcome{Executed: true, Summary: "DCA: bought 0.25 QQQM @ ~$400.00"}, nil
	})

	assert.Equal(t, metrics.OutcomeOK, outcome)
	assert.Equal(t, 1, h.guard.noted)
	assert.Equal(t, 1, h.gate.calls)
	require.Len(t, h.notifier.msgs, 1)
	assert.Equal(t, notify.EventStrategy, h.notifier.msgs[0].event)
	assert.Equal(t, "dca", h.notifier.msgs[0].title)
}

func TestGuarded_SkippedDoesNotNoteTrade(t *testing.T) {
	h := newHarness(t)

	outcome := h.runner.Guarded(context.Background(), "condor", func(context.Context) (strategy.Outcome, error) {
		return strategy.Outcome{Summary: "Condor skipped: wing strikes not listed"}, nil
	})

	assert.Equal(t, metrics.OutcomeSkipped, outcome)
	assert.Zero(t, h.guard.noted)
	assert.Equal(t, []string{"Condor skipped: wing strikes not listed"}, h.notifier.bodies())
}

func TestRunStrategy(t *testing.T) {
	h := newHarness(t)
	h.broker.On("Price", mock.Anything, "QQQM").Return(d("400"), nil)
	h.broker.On("BuyEquity", mock.Anything, "QQQM", decimalMatcher(d("0.25")), strategy.TagDCA, mock.Anything).
		Return(domain.OrderResult{Status: domain.OrderStatusOK, Price: d("400")}, nil)

	outcome := h.runner.RunStrategy(context.Background(), strategy.NewDCA(strategy.Deps{}))
	assert.Equal(t, metrics.OutcomeOK, outcome)
	assert.Equal(t, 1, h.guard.noted)
}

func TestRebalance(t *testing.T) {
	t.Run("sweeps excess", func(t *testing.T) {
		h := newHarness(t)
		h.broker.On("Account", mock.Anything).Return(domain.Account{Cash: d("500"), Equity: d("1000")}, nil)
		h.broker.On("Price", mock.Anything, "QQQM").Return(d("400"), nil)
		h.broker.On("BuyEquity", mock.Anything, "QQQM", decimalMatcher(d("0.95")), TagSweep, "rebalance to buffer").
			Return(domain.OrderResult{Status: domain.OrderStatusOK, Price: d("400")}, nil).Once()

		assert.Equal(t, metrics.OutcomeOK, h.runner.Rebalance(context.Background()))
		assert.Equal(t, []string{"Rebalanced: invested $380.00 into QQQM"}, h.notifier.bodies())
		assert.Equal(t, 1, h.guard.noted)
	})

	t.Run("excess of five is kept", func(t *testing.T) {
		h := newHarness(t)
		h.broker.On("Account", mock.Anything).Return(domain.Account{Cash: d("125"), Equity: d("1000")}, nil)

		assert.Equal(t, metrics.OutcomeSkipped, h.runner.Rebalance(context.Background()))
		h.broker.AssertNotCalled(t, "BuyEquity", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestInitialDeploy(t *testing.T) {
	t.Run("deploys from cash-only account", func(t *testing.T) {
		h := newHarness(t)
		h.broker.On("Account", mock.Anything).Return(domain.Account{Cash: d("1000")}, nil)
		h.broker.On("Price", mock.Anything, "QQQM").Return(d("200"), nil)
		h.broker.On("BuyEquity", mock.Anything, "QQQM", decimalMatcher(d("4.4")), TagInit, "initial deploy to buffer").
			Return(domain.OrderResult{Status: domain.OrderStatusOK, Price: d("200")}, nil).Once()

		assert.Equal(t, metrics.OutcomeOK, h.runner.InitialDeploy(context.Background()))
	})

	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t)
		s := config.Default()
		s.DeployFullCashOnStart = false
		h.runner.settings.Store(s)

		assert.Equal(t, metrics.OutcomeSkipped, h.runner.InitialDeploy(context.Background()))
		assert.Zero(t, h.gate.calls)
	})
}

func TestDailyReport(t *testing.T) {
	h := newHarness(t)
	h.store.trades = 2
	h.store.open = []domain.OptionPosition{{ID: 1}}
	h.broker.On("Account", mock.Anything).Return(domain.Account{Cash: d("100"), Equity: d("1000.5")}, nil)

	assert.Equal(t, metrics.OutcomeOK, h.runner.DailyReport(context.Background()))
	require.Len(t, h.notifier.msgs, 1)
	assert.Equal(t, notify.EventReport, h.notifier.msgs[0].event)
	assert.Equal(t, "Daily: Cash $100.00 | Equity $1000.50 | Trades today 2 | Open options 1", h.notifier.msgs[0].body)
}

func TestDailyReport_AccountFailure(t *testing.T) {
	h := newHarness(t)
	h.broker.On("Account", mock.Anything).Return(domain.Account{}, errors.New("timeout"))

	assert.Equal(t, metrics.OutcomeError, h.runner.DailyReport(context.Background()))
	assert.Equal(t, []string{"Daily report failed: timeout"}, h.notifier.bodies())
}

func TestSnapshot(t *testing.T) {
	t.Run("paper re-marks", func(t *testing.T) {
		h := newHarness(t)
		h.broker.On("Account", mock.Anything).Return(domain.Account{Cash: d("100"), Equity: d("900")}, nil).Once()

		assert.Equal(t, metrics.OutcomeOK, h.runner.Snapshot(context.Background(), nil))
		assert.Empty(t, h.store.ledger)
	})

	t.Run("live mirrors into ledger", func(t *testing.T) {
		h := newHarness(t)
		h.broker.On("Account", mock.Anything).Return(domain.Account{Cash: d("250"), Equity: d("5000")}, nil).Once()
		live := NewLiveSync(h.broker, h.store, h.notifier, h.metrics, nil)
		live.now = func() time.Time { return testNow }

		assert.Equal(t, metrics.OutcomeOK, h.runner.Snapshot(context.Background(), live))
		require.Len(t, h.store.ledger, 1)
		snap := h.store.ledger[0]
		assert.Equal(t, NoteLiveSync, snap.Note)
		assert.True(t, snap.Equity.Equal(d("5000")))
		assert.Equal(t, testNow, snap.Timestamp)
		assert.Equal(t, float64(5000), testutil.ToFloat64(h.metrics.Equity))
	})

	t.Run("live account failure is notified", func(t *testing.T) {
		h := newHarness(t)
		h.broker.On("Account", mock.Anything).Return(domain.Account{}, errors.New("401")).Once()
		live := NewLiveSync(h.broker, h.store, h.notifier, nil, nil)

		assert.Equal(t, metrics.OutcomeError, h.runner.Snapshot(context.Background(), live))
		assert.Equal(t, []string{"LiveSync account error: 401"}, h.notifier.bodies())
		assert.Empty(t, h.store.ledger)
	})
}

func TestHealthcheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := newHarness(t)
		h.broker.On("Account", mock.Anything).Return(domain.Account{Cash: d("1")}, nil)
		h.broker.On("Positions", mock.Anything).Return([]domain.Position(nil), nil)

		ok, issues := h.runner.Healthcheck(context.Background())
		assert.True(t, ok)
		assert.Empty(t, issues)
		assert.Empty(t, h.notifier.bodies())
	})

	t.Run("positions issue only", func(t *testing.T) {
		h := newHarness(t)
		h.broker.On("Account", mock.Anything).Return(domain.Account{Cash: d("1")}, nil)
		h.broker.On("Positions", mock.Anything).Return(nil, errors.New("500"))

		ok, issues := h.runner.Healthcheck(context.Background())
		assert.True(t, ok)
		assert.Equal(t, []string{"positions: 500"}, issues)
		assert.Empty(t, h.notifier.bodies())
	})

	t.Run("account failure", func(t *testing.T) {
		h := newHarness(t)
		h.broker.On("Account", mock.Anything).Return(domain.Account{}, errors.New("401"))
		h.broker.On("Positions", mock.Anything).Return([]domain.Position(nil), nil)

		ok, _ := h.runner.Healthcheck(context.Background())
		assert.False(t, ok)
		assert.Equal(t, []string{"Broker healthcheck: account: 401"}, h.notifier.bodies())
	})
}

func TestStartStopNotices(t *testing.T) {
	h := newHarness(t)
	h.runner.Started()
	h.runner.Stopped()

	assert.Equal(t, []string{
		"QQQM bot started (mode paper, broker paper, profile balanced).",
		"QQQM bot stopped.",
	}, h.notifier.bodies())
}
