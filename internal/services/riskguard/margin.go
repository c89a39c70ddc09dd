package riskguard

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/config"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/storage/sqlstore"
)

// LedgerReader reads the current account snapshot.
type LedgerReader interface {
	LatestLedger(ctx context.Context) (domain.LedgerSnapshot, error)
}

// MarginGuard keeps strategies from spending into the cash buffer.
type MarginGuard struct {
	ledger   LedgerReader
	settings *config.Holder
}

// NewMarginGuard creates a margin guard over the ledger.
func NewMarginGuard(ledger LedgerReader, settings *config.Holder) *MarginGuard {
	return &MarginGuard{ledger: ledger, settings: settings}
}

// AvailableAfterBuffer returns ledger cash minus equity times cash_buffer_pct, 0 when the ledger is empty.
func (m *MarginGuard) AvailableAfterBuffer(ctx context.Context) (decimal.Decimal, error) {
	snap, err := m.ledger.LatestLedger(ctx)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "margin guard")
	}
	buffer := snap.Equity.Mul(m.settings.Current().CashBufferPct)
	return snap.Cash.Sub(buffer), nil
}

// CanAfford reports whether amount fits in the cash available after the buffer.
func (m *MarginGuard) CanAfford(ctx context.Context, amount decimal.Decimal) (bool, error) {
	avail, err := m.AvailableAfterBuffer(ctx)
	if err != nil {
		return false, err
	}
	return avail.GreaterThanOrEqual(amount), nil
}
