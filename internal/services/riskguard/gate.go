package riskguard

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/config"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/notify"
	"go.uber.org/zap"
)

// Gate check names.
const (
	CheckGateVIX        = "gate_vix"
	CheckGateCashBuffer = "gate_cash_buffer"
	CheckGateAccount    = "gate_account"
)

var minEquity = decimal.New(1, -9)

// AccountSource reports the broker account.
type AccountSource interface {
	Account(ctx context.Context) (domain.Account, error)
}

// Gate is the secondary market and liquidity check run after the guard allows.
type Gate struct {
	settings *config.Holder
	vol      *Volatility
	notifier Notifier
	logger   *zap.Logger
}

// NewGate creates a gate. notifier may be nil.
func NewGate(settings *config.Holder, vol *Volatility, notifier Notifier, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{settings: settings, vol: vol, notifier: notifier, logger: logger}
}

// Check denies when the VIX is above vix_max or cash is below the buffer share of equity.
func (g *Gate) Check(ctx context.Context, acct AccountSource) Decision {
	s := g.settings.Current()

	a, err := acct.Account(ctx)
	if err != nil {
		g.logger.Warn("Gate could not read account", zap.Error(err))
		return g.deny(CheckGateAccount, "Skipping trades: account unavailable")
	}

	vix := g.vol.Level(ctx)
	if vix.GreaterThan(s.VixMax) {
		return g.deny(CheckGateVIX, fmt.Sprintf("Skipping trades: VIX %s > %s", vix.StringFixed(1), s.VixMax.String()))
	}

	if a.Cash.Div(decimal.Max(a.Equity, minEquity)).LessThan(s.CashBufferPct) {
		return g.deny(CheckGateCashBuffer,
			fmt.Sprintf("Skipping trades: cash buffer below %s%%", s.CashBufferPct.Mul(decimal.NewFromInt(100)).StringFixed(0)))
	}

	return Allowed()
}

func (g *Gate) deny(check, reason string) Decision {
	g.logger.Info("Gate denied", zap.String("check", check), zap.String("reason", reason))
	if g.notifier != nil {
		g.notifier.Notify(notify.EventGuard, "Gate", reason)
	}
	return Decision{Allow: false, Reason: reason, Check: check}
}
