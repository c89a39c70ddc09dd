package strategy

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/config"
	"github.com/vadiminshakov/qqqm/internal/services/broker"
	"go.uber.org/zap"
)

var minShares = decimal.New(1, -2)

// DCA buys the weekly dollar amount split across the weighted basket.
type DCA struct {
	base
}

// NewDCA creates the DCA strategy.
func NewDCA(d Deps) *DCA {
	return &DCA{base: newBase(d, config.JobDCA)}
}

// Name returns the schedule key.
func (d *DCA) Name() string {
	return config.JobDCA
}

// Run buys round(budget/price, 4) shares of every basket asset. Assets whose share
// count rounds below 0.01 are skipped. An error is returned only when nothing was
// bought and at least one asset failed.
func (d *DCA) Run(ctx context.Context, b broker.Broker, s config.Settings) (Outcome, error) {
	basket := s.Basket()
	total := decimal.Zero
	for _, a := range basket {
		if a.Weight.IsPositive() {
			total = total.Add(a.Weight)
		}
	}
	if !total.IsPositive() {
		return skipped("DCA skipped: basket has no positive weights"), nil
	}

	var (
		bought  []string
		notices []string
		lastErr error
	)
	for _, a := range basket {
		if !a.Weight.IsPositive() {
			continue
		}
		budget := s.WeeklyDCA.Mul(a.Weight).Div(total)

		px, err := b.Price(ctx, a.Ticker)
		if err != nil {
			d.logger.Warn("DCA price unavailable", zap.String("symbol", a.Ticker), zap.Error(err))
			lastErr = errors.Wrapf(err, "price %s", a.Ticker)
			continue
		}
		if !px.IsPositive() {
			notices = append(notices, "DCA skipped "+a.Ticker+": no price")
			continue
		}

		shares := budget.Div(px).Round(4)
		if shares.LessThan(minShares) {
			notices = append(notices, "DCA skipped "+a.Ticker+": amount too small for a share fraction")
			continue
		}

		res, err := b.BuyEquity(ctx, a.Ticker, shares, TagDCA, "$"+budget.StringFixed(2)+" weekly DCA")
		if err != nil {
			lastErr = errors.Wrapf(err, "buy %s", a.Ticker)
			continue
		}
		if !res.OK() {
			notices = append(notices, "DCA skipped "+a.Ticker+": "+res.Reason)
			continue
		}

		d.logger.Info("DCA buy",
			zap.String("symbol", a.Ticker),
			zap.String("shares", shares.String()),
			zap.String("price", res.Price.String()))
		bought = append(bought, "bought "+shares.String()+" "+a.Ticker+" @ ~$"+res.Price.StringFixed(2))
	}

	if len(bought) == 0 {
		if lastErr != nil {
			return Outcome{}, lastErr
		}
		return skipped("%s", strings.Join(notices, "; ")), nil
	}
	return executed("DCA: %s", strings.Join(bought, "; ")), nil
}
