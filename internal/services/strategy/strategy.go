// Package strategy implements the scheduled trading strategies: weekly DCA,
// the covered-call/cash-secured-put wheel, bull put spreads and iron condors.
package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/config"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/services/broker"
	"go.uber.org/zap"
)

// Trade tags written by strategies.
const (
	TagDCA    = "DCA"
	TagCC     = "CC"
	TagCSP    = "CSP"
	TagSpread = "SPREAD"
	TagCondor = "CONDOR"
)

var (
	hundred = decimal.NewFromInt(domain.ContractMultiplier)
	one     = decimal.NewFromInt(1)
)

// Strategy is one scheduled trading routine.
type Strategy interface {
	// Name is the schedule key of the strategy.
	Name() string
	// Run evaluates the market and places at most one action per target.
	Run(ctx context.Context, b broker.Broker, s config.Settings) (Outcome, error)
}

// Outcome reports what a run did. Executed means an order was applied and the
// cooldown should start.
type Outcome struct {
	Executed bool
	Summary  string
}

func skipped(format string, args ...any) Outcome {
	return Outcome{Summary: fmt.Sprintf(format, args...)}
}

func executed(format string, args ...any) Outcome {
	return Outcome{Executed: true, Summary: fmt.Sprintf(format, args...)}
}

// fromResult maps a broker result to an outcome.
func fromResult(res domain.OrderResult, name string, format string, args ...any) Outcome {
	if !res.OK() {
		return skipped("%s skipped: %s", name, res.Reason)
	}
	return executed(format, args...)
}

// Margin checks cash availability above the buffer.
type Margin interface {
	CanAfford(ctx context.Context, amount decimal.Decimal) (bool, error)
}

// Volatility reports the current VIX level.
type Volatility interface {
	Level(ctx context.Context) decimal.Decimal
}

// Expirations lists option expirations of a symbol.
type Expirations interface {
	Expirations(ctx context.Context, symbol string) ([]time.Time, error)
}

// Deps are the collaborators shared by all strategies.
type Deps struct {
	Margin      Margin
	Volatility  Volatility
	Expirations Expirations
	Logger      *zap.Logger
	Now         func() time.Time
}

// All returns every strategy keyed by its schedule name.
func All(deps Deps) map[string]Strategy {
	out := make(map[string]Strategy, 4)
	for _, s := range []Strategy{NewDCA(deps), NewWheel(deps), NewSpreads(deps), NewCondor(deps)} {
		out[s.Name()] = s
	}
	return out
}

type base struct {
	margin      Margin
	vol         Volatility
	expirations Expirations
	logger      *zap.Logger
	now         func() time.Time
}

func newBase(d Deps, name string) base {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return base{
		margin:      d.Margin,
		vol:         d.Volatility,
		expirations: d.Expirations,
		logger:      logger.With(zap.String("strategy", name)),
		now:         now,
	}
}

// pickExpiry returns the earliest listed expiration inside the DTE window.
func (b base) pickExpiry(ctx context.Context, symbol string, w config.DTEWindow) (time.Time, bool) {
	if b.expirations == nil {
		return time.Time{}, false
	}
	list, err := b.expirations.Expirations(ctx, symbol)
	if err != nil {
		b.logger.Warn("Failed to list expirations", zap.String("symbol", symbol), zap.Error(err))
		return time.Time{}, false
	}
	return PickExpiry(list, b.now(), w.Min, w.Max)
}

// volFactor sizes by the current VIX, assuming the target level when no source is set.
func (b base) volFactor(ctx context.Context, s config.Settings) decimal.Decimal {
	vix := s.VolSizing.VixTarget
	if b.vol != nil {
		vix = b.vol.Level(ctx)
	}
	return VolFactor(vix, s.VolSizing)
}

func (b base) canAfford(ctx context.Context, amount decimal.Decimal) (bool, error) {
	if b.margin == nil {
		return true, nil
	}
	return b.margin.CanAfford(ctx, amount)
}
