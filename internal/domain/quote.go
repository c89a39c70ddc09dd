package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one entry of an option chain.
type Quote struct {
	Symbol string          `json:"symbol,omitempty"`
	Type   OptionType      `json:"type"`
	Strike decimal.Decimal `json:"strike"`
	Expiry time.Time       `json:"expiry"`
	Bid    decimal.Decimal `json:"bid"`
	Ask    decimal.Decimal `json:"ask"`
}

// Usable reports whether the quote has any side priced.
func (q Quote) Usable() bool {
	return q.Bid.IsPositive() || q.Ask.IsPositive()
}

// UsableQuotes filters out quotes with neither bid nor ask.
func UsableQuotes(chain []Quote) []Quote {
	out := make([]Quote, 0, len(chain))
	for _, q := range chain {
		if q.Usable() {
			out = append(out, q)
		}
	}
	return out
}
