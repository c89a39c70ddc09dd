// Package broker provides a testify mock of the broker.Broker interface for tests.
package broker

import (
	context "context"
	time "time"

	decimal "github.com/shopspring/decimal"
	mock "github.com/stretchr/testify/mock"
	domain "github.com/vadiminshakov/qqqm/internal/domain"
)

// Broker is a mock type for the Broker type
type Broker struct {
	mock.Mock
}

// Account provides a mock function with given fields: ctx
func (_m *Broker) Account(ctx context.Context) (domain.Account, error) {
	ret := _m.Called(ctx)
	return ret.Get(0).(domain.Account), ret.Error(1)
}

// Price provides a mock function with given fields: ctx, symbol
func (_m *Broker) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ret := _m.Called(ctx, symbol)
	return ret.Get(0).(decimal.Decimal), ret.Error(1)
}

// OptionsChain provides a mock function with given fields: ctx, symbol, expiry
func (_m *Broker) OptionsChain(ctx context.Context, symbol string, expiry time.Time) ([]domain.Quote, error) {
	ret := _m.Called(ctx, symbol, expiry)
	var r0 []domain.Quote
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.Quote)
	}
	return r0, ret.Error(1)
}

// BuyEquity provides a mock function with given fields: ctx, symbol, qty, tag, note
func (_m *Broker) BuyEquity(ctx context.Context, symbol string, qty decimal.Decimal, tag string, note string) (domain.OrderResult, error) {
	ret := _m.Called(ctx, symbol, qty, tag, note)
	return ret.Get(0).(domain.OrderResult), ret.Error(1)
}

// SellEquity provides a mock function with given fields: ctx, symbol, qty, tag, note
func (_m *Broker) SellEquity(ctx context.Context, symbol string, qty decimal.Decimal, tag string, note string) (domain.OrderResult, error) {
	ret := _m.Called(ctx, symbol, qty, tag, note)
	return ret.Get(0).(domain.OrderResult), ret.Error(1)
}

// SellCoveredCall provides a mock function with given fields: ctx, symbol, shares, strike, expiry, tag
func (_m *Broker) SellCoveredCall(ctx context.Context, symbol string, shares int, strike decimal.Decimal, expiry time.Time, tag string) (domain.OrderResult, error) {
	ret := _m.Called(ctx, symbol, shares, strike, expiry, tag)
	return ret.Get(0).(domain.OrderResult), ret.Error(1)
}

// SellCashSecuredPut provides a mock function with given fields: ctx, symbol, cash, strike, expiry, tag
func (_m *Broker) SellCashSecuredPut(ctx context.Context, symbol string, cash decimal.Decimal, strike decimal.Decimal, expiry time.Time, tag string) (domain.OrderResult, error) {
	ret := _m.Called(ctx, symbol, cash, strike, expiry, tag)
	return ret.Get(0).(domain.OrderResult), ret.Error(1)
}

// OpenVerticalSpread provides a mock function with given fields: ctx, symbol, kind, short, long, expiry, tag
func (_m *Broker) OpenVerticalSpread(ctx context.Context, symbol string, kind domain.SpreadKind, short decimal.Decimal, long decimal.Decimal, expiry time.Time, tag string) (domain.OrderResult, error) {
	ret := _m.Called(ctx, symbol, kind, short, long, expiry, tag)
	return ret.Get(0).(domain.OrderResult), ret.Error(1)
}

// OpenIronCondor provides a mock function with given fields: ctx, symbol, lowerPut, upperPut, lowerCall, upperCall, expiry, tag
func (_m *Broker) OpenIronCondor(ctx context.Context, symbol string, lowerPut decimal.Decimal, upperPut decimal.Decimal, lowerCall decimal.Decimal, upperCall decimal.Decimal, expiry time.Time, tag string) (domain.OrderResult, error) {
	ret := _m.Called(ctx, symbol, lowerPut, upperPut, lowerCall, upperCall, expiry, tag)
	return ret.Get(0).(domain.OrderResult), ret.Error(1)
}

// Positions provides a mock function with given fields: ctx
func (_m *Broker) Positions(ctx context.Context) ([]domain.Position, error) {
	ret := _m.Called(ctx)
	var r0 []domain.Position
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.Position)
	}
	return r0, ret.Error(1)
}

// CloseOption provides a mock function with given fields: ctx, id, reason
func (_m *Broker) CloseOption(ctx context.Context, id int64, reason string) (domain.OrderResult, error) {
	ret := _m.Called(ctx, id, reason)
	return ret.Get(0).(domain.OrderResult), ret.Error(1)
}

// CloseAllOptions provides a mock function with given fields: ctx
func (_m *Broker) CloseAllOptions(ctx context.Context) (int, error) {
	ret := _m.Called(ctx)
	return ret.Int(0), ret.Error(1)
}

// NewBroker creates a new instance of Broker. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewBroker(t interface {
	mock.TestingT
	Cleanup(func())
}) *Broker {
	mock := &Broker{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
