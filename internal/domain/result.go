package domain

import "github.com/shopspring/decimal"

// OrderStatus outcome of a broker mutation.
type OrderStatus string

const (
	OrderStatusOK      OrderStatus = "ok"
	OrderStatusSkipped OrderStatus = "skipped"
)

// OrderResult is returned by every broker mutation. Skipped results carry a reason and mutate nothing.
type OrderResult struct {
	Status    OrderStatus     `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Qty       decimal.Decimal `json:"qty"`
	Premium   decimal.Decimal `json:"premium"`
	MaxLoss   decimal.Decimal `json:"max_loss"`
	Debit     decimal.Decimal `json:"debit"`
	Contracts int             `json:"contracts,omitempty"`
	OptionID  int64           `json:"option_id,omitempty"`
}

// Skipped builds a skipped result with reason.
func Skipped(reason string) OrderResult {
	return OrderResult{Status: OrderStatusSkipped, Reason: reason}
}

// OK reports whether the mutation was applied.
func (r OrderResult) OK() bool {
	return r.Status == OrderStatusOK
}
