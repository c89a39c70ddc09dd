package riskguard

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FallbackVIX is used when the volatility index cannot be fetched.
var FallbackVIX = decimal.NewFromInt(20)

// VIXSource fetches the current volatility index.
type VIXSource interface {
	VIX(ctx context.Context) (decimal.Decimal, error)
}

// Volatility reads the VIX and falls back to FallbackVIX on failure.
type Volatility struct {
	src    VIXSource
	logger *zap.Logger
}

// NewVolatility wraps src. A nil src always yields the fallback.
func NewVolatility(src VIXSource, logger *zap.Logger) *Volatility {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Volatility{src: src, logger: logger}
}

// Level returns the current VIX level.
func (v *Volatility) Level(ctx context.Context) decimal.Decimal {
	if v == nil || v.src == nil {
		return FallbackVIX
	}
	vix, err := v.src.VIX(ctx)
	if err != nil || !vix.IsPositive() {
		v.logger.Warn("VIX unavailable, using fallback",
			zap.String("fallback", FallbackVIX.String()),
			zap.Error(err))
		return FallbackVIX
	}
	return vix
}
