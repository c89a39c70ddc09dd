package strategy

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/config"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/services/broker"
	"go.uber.org/zap"
)

var cspCashShare = decimal.RequireFromString("0.9")

// Wheel sells covered calls against round lots and cash-secured puts otherwise.
type Wheel struct {
	base
}

// NewWheel creates the wheel strategy.
func NewWheel(d Deps) *Wheel {
	return &Wheel{base: newBase(d, config.JobWheel)}
}

// Name returns the schedule key.
func (w *Wheel) Name() string {
	return config.JobWheel
}

// Run trades the primary symbol. Options are written on the held underlying so
// the covered call matches the shares it covers.
func (w *Wheel) Run(ctx context.Context, b broker.Broker, s config.Settings) (Outcome, error) {
	sym := s.Symbol

	px, err := b.Price(ctx, sym)
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "price %s", sym)
	}
	positions, err := b.Positions(ctx)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "positions")
	}
	shares := heldShares(positions, sym)

	expiry, ok := w.pickExpiry(ctx, sym, s.DTEWindow)
	if !ok {
		expiry = NextWeekly(w.now())
	}
	chain, err := b.OptionsChain(ctx, sym, expiry)
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "options chain %s", sym)
	}
	chain = domain.UsableQuotes(chain)

	if shares.GreaterThanOrEqual(hundred) {
		return w.coveredCall(ctx, b, s, px, shares, chain, expiry)
	}
	return w.cashSecuredPut(ctx, b, s, px, chain, expiry)
}

func (w *Wheel) coveredCall(ctx context.Context, b broker.Broker, s config.Settings, px, shares decimal.Decimal,
	chain []domain.Quote, expiry time.Time) (Outcome, error) {
	lots := int(shares.Div(hundred).Floor().IntPart()) * domain.ContractMultiplier
	target := px.Mul(one.Add(s.CallPctOTM)).Round(2)
	strike := strikeAtOrAbove(chain, domain.OptionTypeCall, target)

	res, err := b.SellCoveredCall(ctx, s.Symbol, lots, strike, expiry, TagCC)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "sell covered call")
	}
	w.logger.Info("Covered call result",
		zap.String("strike", strike.String()),
		zap.Int("shares", lots),
		zap.String("status", string(res.Status)))
	return fromResult(res, "Wheel", "Sold covered call %s %s %s against %d shares",
		s.Symbol, strike.String(), expiry.Format(domain.ExpiryLayout), lots), nil
}

func (w *Wheel) cashSecuredPut(ctx context.Context, b broker.Broker, s config.Settings, px decimal.Decimal,
	chain []domain.Quote, expiry time.Time) (Outcome, error) {
	acct, err := b.Account(ctx)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "account")
	}

	target := px.Mul(one.Sub(s.PutPctOTM)).Round(2)
	strike := strikeAtOrBelow(chain, domain.OptionTypePut, target)
	if !strike.IsPositive() {
		return skipped("Wheel skipped: no usable put strike"), nil
	}

	reserve := strike.Mul(hundred)
	contracts := acct.Cash.Div(reserve).Floor()
	if contracts.LessThan(one) {
		return skipped("Wheel skipped: insufficient cash for CSP"), nil
	}
	ok, err := w.canAfford(ctx, reserve.Mul(contracts))
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return skipped("Wheel skipped: CSP collateral would breach the cash buffer"), nil
	}

	res, err := b.SellCashSecuredPut(ctx, s.Symbol, acct.Cash.Mul(cspCashShare), strike, expiry, TagCSP)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "sell cash-secured put")
	}
	w.logger.Info("Cash-secured put result",
		zap.String("strike", strike.String()),
		zap.String("status", string(res.Status)))
	return fromResult(res, "Wheel", "Sold cash-secured put %s %s %s",
		s.Symbol, strike.String(), expiry.Format(domain.ExpiryLayout)), nil
}

func heldShares(positions []domain.Position, symbol string) decimal.Decimal {
	for _, p := range positions {
		if p.Symbol == symbol && p.Kind == domain.PositionKindEquity {
			return p.Quantity
		}
	}
	return decimal.Zero
}

// strikeAtOrAbove returns the lowest strike of typ at or above target, or target when none.
func strikeAtOrAbove(chain []domain.Quote, typ domain.OptionType, target decimal.Decimal) decimal.Decimal {
	q, ok := lowestAtOrAbove(chain, typ, target)
	if !ok {
		return target
	}
	return q.Strike
}

// strikeAtOrBelow returns the highest strike of typ at or below target, or target when none.
func strikeAtOrBelow(chain []domain.Quote, typ domain.OptionType, target decimal.Decimal) decimal.Decimal {
	q, ok := highestAtOrBelow(chain, typ, target)
	if !ok {
		return target
	}
	return q.Strike
}

func highestAtOrBelow(chain []domain.Quote, typ domain.OptionType, limit decimal.Decimal) (domain.Quote, bool) {
	var (
		best  domain.Quote
		found bool
	)
	for _, q := range chain {
		if q.Type != typ || q.Strike.GreaterThan(limit) {
			continue
		}
		if !found || q.Strike.GreaterThan(best.Strike) {
			best, found = q, true
		}
	}
	return best, found
}

func lowestAtOrAbove(chain []domain.Quote, typ domain.OptionType, limit decimal.Decimal) (domain.Quote, bool) {
	var (
		best  domain.Quote
		found bool
	)
	for _, q := range chain {
		if q.Type != typ || q.Strike.LessThan(limit) {
			continue
		}
		if !found || q.Strike.LessThan(best.Strike) {
			best, found = q, true
		}
	}
	return best, found
}
