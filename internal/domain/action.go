package domain

// TradeAction is the action recorded in the trade history.
type TradeAction string

const (
	TradeActionBuy   TradeAction = "BUY"
	TradeActionSell  TradeAction = "SELL"
	TradeActionOpen  TradeAction = "OPEN"
	TradeActionClose TradeAction = "CLOSE"
)

// String returns the string representation of the action
func (a TradeAction) String() string {
	return string(a)
}

// IsValid checks if the action is one of the known values.
func (a TradeAction) IsValid() bool {
	switch a {
	case TradeActionBuy, TradeActionSell, TradeActionOpen, TradeActionClose:
		return true
	}
	return false
}
