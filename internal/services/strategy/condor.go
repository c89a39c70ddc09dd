package strategy

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/config"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/services/broker"
	"go.uber.org/zap"
)

var (
	condorMinFactor = decimal.RequireFromString("0.6")
	innerCall       = decimal.RequireFromString("1.05")
	outerCall       = decimal.RequireFromString("1.07")
	innerPut        = decimal.RequireFromString("0.95")
	outerPut        = decimal.RequireFromString("0.93")
)

// Condor opens an iron condor with wings about 5% and 7% around spot.
type Condor struct {
	base
}

// NewCondor creates the condor strategy.
func NewCondor(d Deps) *Condor {
	return &Condor{base: newBase(d, config.JobCondor)}
}

// Name returns the schedule key.
func (c *Condor) Name() string {
	return config.JobCondor
}

// Run requires an expiry in the DTE window and all four wing strikes.
func (c *Condor) Run(ctx context.Context, b broker.Broker, s config.Settings) (Outcome, error) {
	factor := c.volFactor(ctx, s)
	if factor.LessThan(condorMinFactor) {
		return skipped("Condor skipped: vol factor %s below %s", factor.StringFixed(2), condorMinFactor.String()), nil
	}

	sym := s.OptionsSymbol
	expiry, ok := c.pickExpiry(ctx, sym, s.DTEWindow)
	if !ok {
		return skipped("Condor skipped: no expiry within %d-%d DTE", s.DTEWindow.Min, s.DTEWindow.Max), nil
	}

	px, err := b.Price(ctx, sym)
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "price %s", sym)
	}
	chain, err := b.OptionsChain(ctx, sym, expiry)
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "options chain %s", sym)
	}
	chain = domain.UsableQuotes(chain)
	if len(chain) == 0 {
		return skipped("Condor skipped: empty chain for %s", expiry.Format(domain.ExpiryLayout)), nil
	}

	up1, ok1 := lowestAtOrAbove(chain, domain.OptionTypeCall, px.Mul(innerCall))
	up2, ok2 := lowestAtOrAbove(chain, domain.OptionTypeCall, px.Mul(outerCall))
	dn1, ok3 := highestAtOrBelow(chain, domain.OptionTypePut, px.Mul(innerPut))
	dn2, ok4 := highestAtOrBelow(chain, domain.OptionTypePut, px.Mul(outerPut))
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return skipped("Condor skipped: wing strikes not listed"), nil
	}

	width := decimal.Max(up2.Strike.Sub(up1.Strike), dn1.Strike.Sub(dn2.Strike)).Mul(hundred)
	afford, err := c.canAfford(ctx, width)
	if err != nil {
		return Outcome{}, err
	}
	if !afford {
		return skipped("Condor skipped: cannot hold %s collateral above the cash buffer", width.StringFixed(2)), nil
	}

	res, err := b.OpenIronCondor(ctx, sym, dn2.Strike, dn1.Strike, up1.Strike, up2.Strike, expiry, TagCondor)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "open iron condor")
	}
	c.logger.Info("Iron condor result",
		zap.String("width", width.String()),
		zap.String("factor", factor.String()),
		zap.String("status", string(res.Status)))
	return fromResult(res, "Condor", "Opened iron condor %s %s | wings %s-%s & %s-%s",
		sym, expiry.Format(domain.ExpiryLayout),
		dn2.Strike.String(), dn1.Strike.String(), up1.Strike.String(), up2.Strike.String()), nil
}
