package broker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/qqqm/config"
	"github.com/vadiminshakov/qqqm/internal/events"
	"github.com/vadiminshakov/qqqm/internal/metrics"
	"github.com/vadiminshakov/qqqm/internal/services/marketdata"
	"github.com/vadiminshakov/qqqm/internal/storage/sqlstore"
	"github.com/vadiminshakov/qqqm/pkg/ratelimit"
	"go.uber.org/zap"
)

var (
	_ Broker = (*Paper)(nil)
	_ Broker = (*Tradier)(nil)
)

// Deps are the shared components a broker is built from.
type Deps struct {
	Store    *sqlstore.Store
	Limiters *ratelimit.Registry
	Recorder *events.Recorder
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// NewMarketData builds the market data client throttled by the "data" limiter scope.
func NewMarketData(s config.Settings, limiters *ratelimit.Registry, logger *zap.Logger) (*marketdata.TradierClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	bucket, err := limiters.Get(ratelimit.ScopeData, s.Limits.DataCapacityPerMin, s.Limits.DataCapacityPerMin, time.Minute)
	if err != nil {
		return nil, err
	}
	if s.Tradier.Token == "" {
		logger.Warn("Tradier token is empty, market data requests will be rejected")
	}
	return marketdata.NewTradierClient(s.Tradier.BaseURL, s.Tradier.Token, bucket, logger.Named("marketdata")), nil
}

// New returns the broker selected by s.Broker.
func New(ctx context.Context, s config.Settings, market marketdata.Provider, deps Deps) (Broker, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch s.Broker {
	case config.BrokerPaper:
		return NewPaper(ctx, deps.Store, market, s.StartingCash,
			WithRecorder(deps.Recorder),
			WithMetrics(deps.Metrics),
			WithLogger(logger.Named("paper")))
	case config.BrokerTradier:
		bucket, err := deps.Limiters.Get(ratelimit.ScopeTrade, s.Limits.TradeCapacityPerSec, s.Limits.TradeCapacityPerSec, time.Second)
		if err != nil {
			return nil, err
		}
		account := marketdata.NewTradierClient(s.Tradier.BaseURL, s.Tradier.Token, bucket, logger.Named("tradier"))
		return NewTradier(account, market, s.Tradier.AccountID, logger.Named("tradier"))
	default:
		return nil, errors.Errorf("unsupported broker %q", s.Broker)
	}
}
