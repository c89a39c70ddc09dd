// Package broker defines the brokerage capability interface and its paper and live variants.
package broker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/internal/domain"
)

// ErrUnsupported marks a capability the broker variant does not provide.
var ErrUnsupported = errors.New("operation not supported by broker")

// Broker is the capability set used by strategies, jobs and the control surface.
// Mutations that cannot be applied return a skipped OrderResult; errors mean the
// broker was unable to act now.
type Broker interface {
	Account(ctx context.Context) (domain.Account, error)
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
	OptionsChain(ctx context.Context, symbol string, expiry time.Time) ([]domain.Quote, error)

	BuyEquity(ctx context.Context, symbol string, qty decimal.Decimal, tag, note string) (domain.OrderResult, error)
	SellEquity(ctx context.Context, symbol string, qty decimal.Decimal, tag, note string) (domain.OrderResult, error)
	SellCoveredCall(ctx context.Context, symbol string, shares int, strike decimal.Decimal, expiry time.Time, tag string) (domain.OrderResult, error)
	SellCashSecuredPut(ctx context.Context, symbol string, cash, strike decimal.Decimal, expiry time.Time, tag string) (domain.OrderResult, error)
	OpenVerticalSpread(ctx context.Context, symbol string, kind domain.SpreadKind, short, long decimal.Decimal, expiry time.Time, tag string) (domain.OrderResult, error)
	OpenIronCondor(ctx context.Context, symbol string, lowerPut, upperPut, lowerCall, upperCall decimal.Decimal, expiry time.Time, tag string) (domain.OrderResult, error)

	Positions(ctx context.Context) ([]domain.Position, error)
	CloseOption(ctx context.Context, id int64, reason string) (domain.OrderResult, error)
	CloseAllOptions(ctx context.Context) (int, error)
}
