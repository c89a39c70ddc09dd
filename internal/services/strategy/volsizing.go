package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/config"
)

// VolFactor maps vix to a sizing factor: max_factor at or below the floor, min_factor
// at or above the ceiling and a linear interpolation in between.
func VolFactor(vix decimal.Decimal, v config.VolSizing) decimal.Decimal {
	if vix.LessThanOrEqual(v.VixFloor) {
		return v.MaxFactor
	}
	if vix.GreaterThanOrEqual(v.VixCeiling) {
		return v.MinFactor
	}
	t := vix.Sub(v.VixFloor).Div(v.VixCeiling.Sub(v.VixFloor))
	f := v.MaxFactor.Sub(t.Mul(v.MaxFactor.Sub(v.MinFactor)))
	return decimal.Max(v.MinFactor, f)
}
