package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const orderTypeMarket = "market"

// Trade is one row of the append-only trade history.
type Trade struct {
	ID        int64
	Timestamp time.Time
	// Action buy, sell, open or close.
	Action TradeAction
	Symbol string
	Qty    decimal.Decimal
	// Price fill price for equity, premium or debit for options.
	Price     decimal.Decimal
	OrderType string
	// Tag strategy tag (DCA, CC, CSP, SPREAD, CONDOR, TP, SL...).
	Tag     string
	Details string
}

// NewMarketTrade builds a market trade stamped with ts in UTC.
func NewMarketTrade(ts time.Time, action TradeAction, symbol string, qty, price decimal.Decimal, tag, details string) Trade {
	return Trade{
		Timestamp: ts.UTC(),
		Action:    action,
		Symbol:    symbol,
		Qty:       qty,
		Price:     price,
		OrderType: orderTypeMarket,
		Tag:       tag,
		Details:   details,
	}
}

// String returns a human-readable string representation.
func (t Trade) String() string {
	return fmt.Sprintf("%s %s qty: %s price: %s tag: %s", t.Action, t.Symbol, t.Qty.String(), t.Price.String(), t.Tag)
}
