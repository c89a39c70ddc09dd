package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/metrics"
	"github.com/vadiminshakov/qqqm/internal/notify"
	"github.com/vadiminshakov/qqqm/internal/services/riskguard"
	"go.uber.org/zap"
)

// NoteLiveSync marks ledger rows mirrored from a live broker.
const NoteLiveSync = "live-sync"

// LedgerAppender writes account snapshots.
type LedgerAppender interface {
	AppendLedger(ctx context.Context, snap domain.LedgerSnapshot) (int64, error)
}

// LiveSync mirrors live broker balances into the ledger so the guard sees real equity.
type LiveSync struct {
	broker   riskguard.AccountSource
	ledger   LedgerAppender
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewLiveSync creates a live sync. notifier and m may be nil.
func NewLiveSync(b riskguard.AccountSource, ledger LedgerAppender, notifier Notifier, m *metrics.Metrics, logger *zap.Logger) *LiveSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveSync{broker: b, ledger: ledger, notifier: notifier, metrics: m, logger: logger, now: time.Now}
}

// Snapshot reads the broker account and appends a "live-sync" ledger row.
func (l *LiveSync) Snapshot(ctx context.Context) (domain.Account, error) {
	acct, err := l.broker.Account(ctx)
	if err != nil {
		l.fail("LiveSync account error: ", err)
		return domain.Account{}, errors.Wrap(err, "live account")
	}

	_, err = l.ledger.AppendLedger(ctx, domain.LedgerSnapshot{
		Timestamp: l.now().UTC(),
		Cash:      acct.Cash,
		Equity:    acct.Equity,
		Note:      NoteLiveSync,
	})
	if err != nil {
		l.fail("LiveSync ledger error: ", err)
		return domain.Account{}, err
	}

	l.metrics.ObserveAccount(acct.Cash, acct.Equity)
	l.logger.Debug("Live account synced",
		zap.String("cash", acct.Cash.String()),
		zap.String("equity", acct.Equity.String()))
	return acct, nil
}

func (l *LiveSync) fail(prefix string, err error) {
	l.logger.Error("Live sync failed", zap.Error(err))
	if l.notifier != nil {
		l.notifier.Notify(notify.EventError, "live-sync", prefix+err.Error())
	}
}
