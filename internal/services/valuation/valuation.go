// Package valuation marks multi-leg option positions from bid/ask quotes.
package valuation

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/internal/domain"
)

// ErrNoQuotes is returned when at least one leg has no usable quote.
var ErrNoQuotes = errors.New("no quotes")

var (
	strikeTolerance = decimal.New(1, -6)
	two             = decimal.NewFromInt(2)
	multiplier      = decimal.NewFromInt(domain.ContractMultiplier)
)

// Mid returns the bid when ask is zero, the ask when bid is zero, and their mean otherwise.
func Mid(bid, ask decimal.Decimal) decimal.Decimal {
	switch {
	case ask.IsZero():
		return bid
	case bid.IsZero():
		return ask
	default:
		return bid.Add(ask).Div(two)
	}
}

// Mark returns the net credit value of one contract of legs: short legs add their mid,
// long legs subtract it, and the sum is scaled by the contract multiplier.
// The second return is false when any leg has no usable quote; partial sums are never returned.
func Mark(quotes []domain.Quote, legs []domain.Leg) (decimal.Decimal, bool) {
	if len(legs) == 0 {
		return decimal.Zero, false
	}

	total := decimal.Zero
	for _, leg := range legs {
		q, ok := find(quotes, leg)
		if !ok {
			return decimal.Zero, false
		}
		mid := Mid(q.Bid, q.Ask)
		if leg.Side == domain.SideShort {
			total = total.Add(mid)
		} else {
			total = total.Sub(mid)
		}
	}

	return total.Mul(multiplier), true
}

// MarkPosition marks every contract of an option position.
func MarkPosition(quotes []domain.Quote, op domain.OptionPosition) (decimal.Decimal, error) {
	mark, ok := Mark(quotes, op.Legs)
	if !ok {
		return decimal.Zero, ErrNoQuotes
	}
	contracts := op.Contracts
	if contracts < 1 {
		contracts = 1
	}
	return mark.Mul(decimal.NewFromInt(int64(contracts))), nil
}

// LegMid returns the mid of the quote matching a single leg, or false.
func LegMid(quotes []domain.Quote, leg domain.Leg) (decimal.Decimal, bool) {
	q, ok := find(quotes, leg)
	if !ok {
		return decimal.Zero, false
	}
	return Mid(q.Bid, q.Ask), true
}

func find(quotes []domain.Quote, leg domain.Leg) (domain.Quote, bool) {
	for _, q := range quotes {
		if q.Type != leg.Type || !q.Usable() {
			continue
		}
		if q.Strike.Sub(leg.Strike).Abs().LessThan(strikeTolerance) {
			return q, true
		}
	}
	return domain.Quote{}, false
}
