package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PositionKind distinguishes equity holdings from option holdings.
type PositionKind string

const (
	PositionKindEquity PositionKind = "equity"
	PositionKindOption PositionKind = "option"
)

// Position is a long-only holding tracked at weighted-average cost.
type Position struct {
	Symbol       string          `json:"symbol"`
	Kind         PositionKind    `json:"kind"`
	Quantity     decimal.Decimal `json:"qty"`
	AveragePrice decimal.Decimal `json:"avg_price"`
}

// NewEquityPosition returns an empty equity position for symbol.
func NewEquityPosition(symbol string) *Position {
	return &Position{
		Symbol:       symbol,
		Kind:         PositionKindEquity,
		Quantity:     decimal.Zero,
		AveragePrice: decimal.Zero,
	}
}

// ApplyBuy adds qty at price and recomputes the weighted-average cost.
func (p *Position) ApplyBuy(qty, price decimal.Decimal) error {
	if !qty.IsPositive() {
		return errors.Errorf("buy quantity must be positive, got %s", qty.String())
	}
	if price.IsNegative() {
		return errors.Errorf("buy price must not be negative, got %s", price.String())
	}

	totalQty := p.Quantity.Add(qty)
	existingNotional := p.AveragePrice.Mul(p.Quantity)
	addedNotional := qty.Mul(price)
	p.Quantity = totalQty
	p.AveragePrice = existingNotional.Add(addedNotional).Div(totalQty)
	return nil
}

// ApplySell removes qty, flooring the holding at zero. Average cost is unchanged.
// It returns the quantity actually removed.
func (p *Position) ApplySell(qty decimal.Decimal) (decimal.Decimal, error) {
	if !qty.IsPositive() {
		return decimal.Zero, errors.Errorf("sell quantity must be positive, got %s", qty.String())
	}

	removed := decimal.Min(qty, p.Quantity)
	p.Quantity = p.Quantity.Sub(removed)
	return removed, nil
}

// MarketValue returns quantity times price.
func (p *Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return p.Quantity.Mul(price)
}

// IsPositive returns true if the position holds a positive quantity.
func (p *Position) IsPositive() bool {
	return p != nil && p.Quantity.IsPositive()
}
