// Package marketdata fetches quotes, option chains, expirations and the VIX level.
package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/internal/domain"
)

// Provider is the market data source used by brokers and strategies.
type Provider interface {
	// Price returns the last traded price of symbol.
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
	// Chain returns the option chain for symbol at expiry. A zero expiry selects the nearest expiration.
	Chain(ctx context.Context, symbol string, expiry time.Time) ([]domain.Quote, error)
	// Expirations returns the listed expirations of symbol in ascending order.
	Expirations(ctx context.Context, symbol string) ([]time.Time, error)
	// VIX returns the current CBOE volatility index level.
	VIX(ctx context.Context) (decimal.Decimal, error)
}
