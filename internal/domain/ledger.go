package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerSnapshot is an immutable account state row. The latest snapshot is the current state.
type LedgerSnapshot struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"ts"`
	Cash      decimal.Decimal `json:"cash"`
	Equity    decimal.Decimal `json:"equity"`
	Note      string          `json:"note"`
}

// Account is the cash/equity pair reported by a broker.
type Account struct {
	Cash   decimal.Decimal `json:"cash"`
	Equity decimal.Decimal `json:"equity"`
}

// EffectiveEquity returns equity, or cash when equity is not positive.
func (a Account) EffectiveEquity() decimal.Decimal {
	if a.Equity.IsPositive() {
		return a.Equity
	}
	return a.Cash
}
