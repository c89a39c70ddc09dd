package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContractMultiplier is the number of shares covered by one option contract.
const ContractMultiplier = 100

// OptionType call or put.
type OptionType string

const (
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
)

// IsValid checks if the OptionType value is valid.
func (o OptionType) IsValid() bool {
	return o == OptionTypeCall || o == OptionTypePut
}

// Side of a leg.
type Side string

const (
	// SideShort collects premium.
	SideShort Side = "short"
	// SideLong pays premium.
	SideLong Side = "long"
)

// IsValid checks if the Side value is valid.
func (s Side) IsValid() bool {
	return s == SideShort || s == SideLong
}

// Leg is one option contract within a multi-leg position.
type Leg struct {
	Type   OptionType      `json:"type"`
	Strike decimal.Decimal `json:"strike"`
	Side   Side            `json:"side"`
}

// StrategyKind is the kind of multi-leg option position.
type StrategyKind string

const (
	StrategyKindSpread         StrategyKind = "spread"
	StrategyKindCondor         StrategyKind = "condor"
	StrategyKindCoveredCall    StrategyKind = "covered_call"
	StrategyKindCashSecuredPut StrategyKind = "cash_secured_put"
)

// IsValid checks if the StrategyKind value is valid.
func (k StrategyKind) IsValid() bool {
	switch k {
	case StrategyKindSpread, StrategyKindCondor, StrategyKindCoveredCall, StrategyKindCashSecuredPut:
		return true
	}
	return false
}

// IsWheel reports whether the kind belongs to the wheel strategy.
func (k StrategyKind) IsWheel() bool {
	return k == StrategyKindCoveredCall || k == StrategyKindCashSecuredPut
}

// Direction market bias of a position.
type Direction string

const (
	DirectionBull    Direction = "bull"
	DirectionBear    Direction = "bear"
	DirectionNeutral Direction = "neutral"
)

// IsValid checks if the Direction value is valid.
func (d Direction) IsValid() bool {
	switch d {
	case DirectionBull, DirectionBear, DirectionNeutral:
		return true
	}
	return false
}

// SpreadKind vertical spread flavour.
type SpreadKind string

const (
	SpreadKindBullPut  SpreadKind = "bull_put"
	SpreadKindBearCall SpreadKind = "bear_call"
)

// IsValid checks if the SpreadKind value is valid.
func (s SpreadKind) IsValid() bool {
	return s == SpreadKindBullPut || s == SpreadKindBearCall
}

// Legs returns the short and long legs of the vertical spread.
func (s SpreadKind) Legs(short, long decimal.Decimal) []Leg {
	typ := OptionTypePut
	if s == SpreadKindBearCall {
		typ = OptionTypeCall
	}
	return []Leg{
		{Type: typ, Strike: short, Side: SideShort},
		{Type: typ, Strike: long, Side: SideLong},
	}
}

// Direction returns the market bias of the spread.
func (s SpreadKind) Direction() Direction {
	if s == SpreadKindBearCall {
		return DirectionBear
	}
	return DirectionBull
}

// OptionStatus lifecycle state of an option position.
type OptionStatus string

const (
	OptionStatusOpen   OptionStatus = "open"
	OptionStatusClosed OptionStatus = "closed"
)

// OptionPosition is a multi-leg option position. Status moves open to closed once.
type OptionPosition struct {
	ID        int64        `json:"id"`
	Kind      StrategyKind `json:"kind"`
	Direction Direction    `json:"direction"`
	Symbol    string       `json:"symbol"`
	Legs      []Leg        `json:"legs"`
	Expiry    time.Time    `json:"expiry"`
	Contracts int          `json:"contracts"`
	// EntryCredit total premium received at open; negative for a net debit.
	EntryCredit decimal.Decimal `json:"entry_credit"`
	// Collateral cash reserved at open and released on close.
	Collateral  decimal.Decimal `json:"collateral"`
	Status      OptionStatus    `json:"status"`
	OpenedAt    time.Time       `json:"opened_at"`
	ClosedAt    *time.Time      `json:"closed_at,omitempty"`
	CloseReason string          `json:"close_reason,omitempty"`
}

// IsOpen reports whether the position is still open.
func (o *OptionPosition) IsOpen() bool {
	return o != nil && o.Status == OptionStatusOpen
}

// IronCondorLegs returns the four condor legs: short puts and calls at the inner strikes.
func IronCondorLegs(lowerPut, upperPut, lowerCall, upperCall decimal.Decimal) []Leg {
	return []Leg{
		{Type: OptionTypePut, Strike: upperPut, Side: SideShort},
		{Type: OptionTypePut, Strike: lowerPut, Side: SideLong},
		{Type: OptionTypeCall, Strike: lowerCall, Side: SideShort},
		{Type: OptionTypeCall, Strike: upperCall, Side: SideLong},
	}
}

// ExpiryLayout is the date format used for option expirations.
const ExpiryLayout = "2006-01-02"
