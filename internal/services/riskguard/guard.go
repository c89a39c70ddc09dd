// Package riskguard gates every scheduled trading action behind an ordered set
// of account, exposure and pacing checks backed by the persisted store.
package riskguard

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/config"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/metrics"
	"github.com/vadiminshakov/qqqm/internal/notify"
	"github.com/vadiminshakov/qqqm/internal/storage/sqlstore"
	"go.uber.org/zap"
)

// Check names, used as the metrics label and in decisions.
const (
	CheckKillSwitch   = "kill_switch"
	CheckPaused       = "paused"
	CheckVIX          = "vix"
	CheckDailyLoss    = "daily_loss"
	CheckWeeklyLoss   = "weekly_loss"
	CheckOpenRisk     = "open_risk"
	CheckDirection    = "direction"
	CheckTradesPerDay = "trades_per_day"
	CheckCooldown     = "cooldown"
	CheckState        = "state"
)

// ReasonStateUnavailable is returned when the guard cannot read its state.
const ReasonStateUnavailable = "Risk state unavailable"

// Decision is the outcome of a guard evaluation.
type Decision struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason,omitempty"`
	Check  string `json:"check,omitempty"`
}

// Allowed is the passing decision.
func Allowed() Decision {
	return Decision{Allow: true}
}

// Store is the persisted state the guard reads and writes.
type Store interface {
	ControlState(ctx context.Context) (domain.ControlState, error)
	SetBoolFlag(ctx context.Context, key string, b bool) error
	SetLastTrade(ctx context.Context, ts time.Time) error
	LatestLedger(ctx context.Context) (domain.LedgerSnapshot, error)
	LedgerWindow(ctx context.Context, since, until time.Time) (first, last domain.LedgerSnapshot, err error)
	OpenRiskItems(ctx context.Context) ([]domain.RiskItem, error)
	CountTradesBetween(ctx context.Context, since, until time.Time) (int, error)
}

// Notifier receives operator notifications.
type Notifier interface {
	Notify(event, title, body string)
}

// Controls is the operator surface over the control flags.
type Controls interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	ResetKillSwitch(ctx context.Context) error
	State(ctx context.Context) (domain.ControlState, error)
}

var _ Controls = (*Guard)(nil)

// Guard evaluates the risk checks against the store on every call.
// Settings are read from the holder each time so reloads apply immediately.
type Guard struct {
	store    Store
	settings *config.Holder
	vol      *Volatility
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(g *Guard) { g.notifier = n }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// NewGuard creates a guard over store.
func NewGuard(store Store, settings *config.Holder, vol *Volatility, opts ...Option) *Guard {
	g := &Guard{
		store:    store,
		settings: settings,
		vol:      vol,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check runs the checks in order and returns the first failure, or an allow.
// Store read errors deny.
func (g *Guard) Check(ctx context.Context) Decision {
	d := g.evaluate(ctx, true)
	if !d.Allow {
		g.metrics.GuardDenied(d.Check)
		g.logger.Info("Guard denied", zap.String("check", d.Check), zap.String("reason", d.Reason))
	}
	return d
}

// Evaluate runs the same checks as Check for display. It does not trip the
// kill switch, notify or count denials.
func (g *Guard) Evaluate(ctx context.Context) Decision {
	return g.evaluate(ctx, false)
}

func (g *Guard) evaluate(ctx context.Context, apply bool) Decision {
	d, err := g.check(ctx, apply)
	if err != nil {
		g.logger.Error("Risk state unavailable", zap.Error(err))
		return denied(CheckState, ReasonStateUnavailable)
	}
	return d
}

func (g *Guard) check(ctx context.Context, apply bool) (Decision, error) {
	s := g.settings.Current()
	r := s.Risk
	now := g.now().UTC()

	state, err := g.store.ControlState(ctx)
	if err != nil {
		return Decision{}, err
	}
	if state.KillSwitch {
		return denied(CheckKillSwitch, "Kill-switch active"), nil
	}
	if state.Paused {
		return denied(CheckPaused, "Paused"), nil
	}

	vix := g.vol.Level(ctx)
	if vix.GreaterThan(r.VixCeiling) {
		return denied(CheckVIX, fmt.Sprintf("VIX %s > ceiling %s", vix.StringFixed(1), r.VixCeiling.String())), nil
	}

	day := DayStart(now)
	pnl, err := g.dayPnL(ctx, day)
	if err != nil {
		return Decision{}, err
	}
	if pnl.Neg().GreaterThan(r.DayAbsLossStop) {
		if apply {
			if err := g.trip(ctx, fmt.Sprintf("Kill-switch: daily loss exceeded $%s", r.DayAbsLossStop.StringFixed(0))); err != nil {
				return Decision{}, err
			}
		}
		return denied(CheckDailyLoss, "Daily loss stop"), nil
	}

	pct, err := g.weekPnLPct(ctx, WeekStart(now))
	if err != nil {
		return Decision{}, err
	}
	if pct.Neg().GreaterThan(r.WeekLossPctStop) {
		if apply {
			msg := fmt.Sprintf("Kill-switch: weekly loss exceeded %s%%", r.WeekLossPctStop.Mul(decimal.NewFromInt(100)).StringFixed(0))
			if err := g.trip(ctx, msg); err != nil {
				return Decision{}, err
			}
		}
		return denied(CheckWeeklyLoss, "Weekly loss stop"), nil
	}

	items, err := g.store.OpenRiskItems(ctx)
	if err != nil {
		return Decision{}, err
	}
	exposure := domain.NewExposure(items)
	if apply {
		g.metrics.ObserveOpenRisk(exposure.OpenRisk)
	}

	equity, err := g.equityNow(ctx)
	if err != nil {
		return Decision{}, err
	}
	if equity.IsPositive() && exposure.OpenRisk.Div(equity).GreaterThan(r.MaxOpenRiskPct) {
		return denied(CheckOpenRisk, "Max open risk cap reached"), nil
	}

	if reason, capped := directionCapped(exposure, r.DirectionCapRatio); capped {
		return denied(CheckDirection, reason), nil
	}

	trades, err := g.store.CountTradesBetween(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		return Decision{}, err
	}
	if trades >= r.MaxTradesPerDay {
		return denied(CheckTradesPerDay, "Max trades/day reached"), nil
	}

	if state.LastTradeAt != nil && now.Sub(*state.LastTradeAt) < r.Cooldown() {
		return denied(CheckCooldown, "Cooldown active"), nil
	}

	return Allowed(), nil
}

// NoteTrade records now as the last trade time, starting the cooldown.
func (g *Guard) NoteTrade(ctx context.Context) error {
	return errors.Wrap(g.store.SetLastTrade(ctx, g.now().UTC()), "note trade")
}

// Pause blocks new actions until Resume.
func (g *Guard) Pause(ctx context.Context) error {
	g.logger.Info("Trading paused")
	return errors.Wrap(g.store.SetBoolFlag(ctx, domain.FlagPaused, true), "pause")
}

// Resume clears the paused flag.
func (g *Guard) Resume(ctx context.Context) error {
	g.logger.Info("Trading resumed")
	return errors.Wrap(g.store.SetBoolFlag(ctx, domain.FlagPaused, false), "resume")
}

// ResetKillSwitch clears the kill switch. A loss window that is still breached trips it again.
func (g *Guard) ResetKillSwitch(ctx context.Context) error {
	g.logger.Warn("Kill-switch reset by operator")
	return errors.Wrap(g.store.SetBoolFlag(ctx, domain.FlagKillSwitch, false), "reset kill-switch")
}

// State returns the current control flags.
func (g *Guard) State(ctx context.Context) (domain.ControlState, error) {
	st, err := g.store.ControlState(ctx)
	return st, errors.Wrap(err, "load control state")
}

// dayPnL is last minus first equity of today's snapshots.
func (g *Guard) dayPnL(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	first, last, err := g.store.LedgerWindow(ctx, day, day.Add(24*time.Hour))
	if errors.Is(err, sqlstore.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return last.Equity.Sub(first.Equity), nil
}

// weekPnLPct is the relative equity change since the week start, 0 when the first equity is 0.
func (g *Guard) weekPnLPct(ctx context.Context, week time.Time) (decimal.Decimal, error) {
	first, last, err := g.store.LedgerWindow(ctx, week, time.Time{})
	if errors.Is(err, sqlstore.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	if first.Equity.IsZero() {
		return decimal.Zero, nil
	}
	return last.Equity.Sub(first.Equity).Div(first.Equity), nil
}

func (g *Guard) equityNow(ctx context.Context) (decimal.Decimal, error) {
	snap, err := g.store.LatestLedger(ctx)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return snap.Equity, nil
}

func directionCapped(e domain.Exposure, ratio decimal.Decimal) (string, bool) {
	bulls := decimal.NewFromInt(int64(e.Bulls))
	bears := decimal.NewFromInt(int64(e.Bears))
	if e.Bears > 0 && bulls.Div(bears).GreaterThan(ratio) {
		return "Direction cap (too bullish)", true
	}
	if e.Bulls > 0 && bears.Div(bulls).GreaterThan(ratio) {
		return "Direction cap (too bearish)", true
	}
	return "", false
}

func denied(check, reason string) Decision {
	return Decision{Allow: false, Reason: reason, Check: check}
}

// trip sets the kill switch. It stays set until an operator resets it.
func (g *Guard) trip(ctx context.Context, msg string) error {
	if err := g.store.SetBoolFlag(ctx, domain.FlagKillSwitch, true); err != nil {
		return err
	}
	g.notify(notify.EventKill, "Kill-switch", msg)
	return nil
}

func (g *Guard) notify(event, title, body string) {
	if g.notifier != nil {
		g.notifier.Notify(event, title, body)
	}
}

// DayStart returns 00:00 UTC of t's day.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekStart returns Monday 00:00 UTC of t's week.
func WeekStart(t time.Time) time.Time {
	day := DayStart(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
