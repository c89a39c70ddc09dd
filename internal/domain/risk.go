package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskItem tracks max-loss exposure of one open option position.
type RiskItem struct {
	ID         int64           `json:"id"`
	Kind       StrategyKind    `json:"kind"`
	RiskAmount decimal.Decimal `json:"risk_amount"`
	Direction  Direction       `json:"direction"`
	OptionID   int64           `json:"option_id"`
	OpenedAt   time.Time       `json:"opened_at"`
	ClosedAt   *time.Time      `json:"closed_at,omitempty"`
}

// Control flag keys persisted in the store.
const (
	FlagPaused      = "paused"
	FlagKillSwitch  = "kill_switch"
	FlagLastTradeTS = "last_trade_ts"
)

// ControlState is the typed view of the persisted control flags.
type ControlState struct {
	Paused      bool       `json:"paused"`
	KillSwitch  bool       `json:"kill_switch"`
	LastTradeAt *time.Time `json:"last_trade_ts,omitempty"`
}

// Exposure aggregates open risk items.
type Exposure struct {
	OpenRisk decimal.Decimal `json:"open_risk"`
	Bulls    int             `json:"bulls"`
	Bears    int             `json:"bears"`
}

// NewExposure sums risk and counts bullish and bearish items.
func NewExposure(items []RiskItem) Exposure {
	e := Exposure{OpenRisk: decimal.Zero}
	for _, it := range items {
		e.OpenRisk = e.OpenRisk.Add(it.RiskAmount)
		switch it.Direction {
		case DirectionBull:
			e.Bulls++
		case DirectionBear:
			e.Bears++
		}
	}
	return e
}
