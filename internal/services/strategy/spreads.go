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

var (
	spreadMinFactor = decimal.RequireFromString("0.5")
	shortPutOTM     = decimal.RequireFromString("0.95")
)

// Spreads opens a one-lot bull put spread about 5% out of the money.
type Spreads struct {
	base
}

// NewSpreads creates the spreads strategy.
func NewSpreads(d Deps) *Spreads {
	return &Spreads{base: newBase(d, config.JobSpreads)}
}

// Name returns the schedule key.
func (sp *Spreads) Name() string {
	return config.JobSpreads
}

// Run sells the highest put at or below 95% of spot and buys the nearest put more
// than one point below it. Without an expiry in the DTE window the nearest chain is used.
func (sp *Spreads) Run(ctx context.Context, b broker.Broker, s config.Settings) (Outcome, error) {
	factor := sp.volFactor(ctx, s)
	if factor.LessThan(spreadMinFactor) {
		return skipped("Spreads skipped: vol factor %s below %s", factor.StringFixed(2), spreadMinFactor.String()), nil
	}

	sym := s.OptionsSymbol
	px, err := b.Price(ctx, sym)
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "price %s", sym)
	}
	expiry, _ := sp.pickExpiry(ctx, sym, s.DTEWindow)
	chain, err := b.OptionsChain(ctx, sym, expiry)
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "options chain %s", sym)
	}
	chain = domain.UsableQuotes(chain)

	short, ok := highestAtOrBelow(chain, domain.OptionTypePut, px.Mul(shortPutOTM))
	if !ok {
		return skipped("Spreads skipped: no put at or below %s", px.Mul(shortPutOTM).StringFixed(2)), nil
	}
	long, ok := highestBelow(chain, domain.OptionTypePut, short.Strike.Sub(one))
	if !ok {
		return skipped("Spreads skipped: no long put below %s", short.Strike.String()), nil
	}

	width := short.Strike.Sub(long.Strike).Abs().Mul(hundred)
	afford, err := sp.canAfford(ctx, width)
	if err != nil {
		return Outcome{}, err
	}
	if !afford {
		return skipped("Spreads skipped: cannot hold %s collateral above the cash buffer", width.StringFixed(2)), nil
	}

	if expiry.IsZero() {
		expiry = short.Expiry
	}
	res, err := b.OpenVerticalSpread(ctx, sym, domain.SpreadKindBullPut, short.Strike, long.Strike, expiry, TagSpread)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "open vertical spread")
	}
	sp.logger.Info("Bull put spread result",
		zap.String("short", short.Strike.String()),
		zap.String("long", long.Strike.String()),
		zap.String("factor", factor.String()),
		zap.String("status", string(res.Status)))
	return fromResult(res, "Spreads", "Opened bull put spread %s %s/%s %s",
		sym, long.Strike.String(), short.Strike.String(), fmtExpiry(expiry)), nil
}

// highestBelow returns the highest strike of typ strictly below limit.
func highestBelow(chain []domain.Quote, typ domain.OptionType, limit decimal.Decimal) (domain.Quote, bool) {
	var (
		best  domain.Quote
		found bool
	)
	for _, q := range chain {
		if q.Type != typ || !q.Strike.LessThan(limit) {
			continue
		}
		if !found || q.Strike.GreaterThan(best.Strike) {
			best, found = q, true
		}
	}
	return best, found
}

func fmtExpiry(t time.Time) string {
	if t.IsZero() {
		return "nearest"
	}
	return t.Format(domain.ExpiryLayout)
}
