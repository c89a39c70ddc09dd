// Package app wires the store, broker, risk guard, strategies, scheduler and
// control surface into a runnable bot.
package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/qqqm/config"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/events"
	"github.com/vadiminshakov/qqqm/internal/metrics"
	"github.com/vadiminshakov/qqqm/internal/notify"
	"github.com/vadiminshakov/qqqm/internal/services/broker"
	"github.com/vadiminshakov/qqqm/internal/services/riskguard"
	"github.com/vadiminshakov/qqqm/internal/services/scheduler"
	"github.com/vadiminshakov/qqqm/internal/services/strategy"
	"github.com/vadiminshakov/qqqm/internal/storage/journal"
	"github.com/vadiminshakov/qqqm/internal/storage/sqlstore"
	"github.com/vadiminshakov/qqqm/internal/web"
	"github.com/vadiminshakov/qqqm/pkg/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const busBuffer = 64

// App holds the wired components.
type App struct {
	Settings *config.Holder
	Store    *sqlstore.Store
	Journal  *journal.WALStore
	Bus      *events.Broadcaster
	Metrics  *metrics.Metrics
	Broker   broker.Broker
	Guard    *riskguard.Guard
	Notifier *notify.Notifier
	Runner   *scheduler.Runner

	strategies map[string]strategy.Strategy
	live       *scheduler.LiveSync
	configPath string
	logger     *zap.Logger
}

// New builds every component from s. configPath is watched for changes by Run
// when not empty. The journal is optional: when it cannot be opened events are
// only streamed live.
func New(ctx context.Context, s config.Settings, configPath string, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := sqlstore.Open(ctx, s.DBURL)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}

	a := &App{
		Settings:   config.NewHolder(s),
		Store:      store,
		Bus:        events.NewBroadcaster(busBuffer),
		Metrics:    metrics.New(),
		configPath: configPath,
		logger:     logger,
	}

	var appender events.Appender
	if s.JournalDir != "" {
		wal, err := journal.NewWALStore(s.JournalDir)
		if err != nil {
			logger.Warn("Journal unavailable, events are streamed only", zap.String("dir", s.JournalDir), zap.Error(err))
		} else {
			a.Journal = wal
			appender = wal
		}
	}
	recorder := events.NewRecorder(appender, a.Bus, logger.Named("journal"))

	a.Notifier = notify.NewNotifier(senders(s.Notify), s.Notify.Events, logger.Named("notify"))

	limiters := ratelimit.NewRegistry()
	market, err := broker.NewMarketData(s, limiters, logger)
	if err != nil {
		_ = a.Close()
		return nil, errors.Wrap(err, "create market data client")
	}

	a.Broker, err = broker.New(ctx, s, market, broker.Deps{
		Store:    store,
		Limiters: limiters,
		Recorder: recorder,
		Metrics:  a.Metrics,
		Logger:   logger,
	})
	if err != nil {
		_ = a.Close()
		return nil, errors.Wrap(err, "create broker")
	}

	vol := riskguard.NewVolatility(market, logger.Named("vix"))
	a.Guard = riskguard.NewGuard(store, a.Settings, vol,
		riskguard.WithNotifier(a.Notifier),
		riskguard.WithMetrics(a.Metrics),
		riskguard.WithLogger(logger.Named("guard")))
	gate := riskguard.NewGate(a.Settings, vol, a.Notifier, logger.Named("gate"))

	a.strategies = strategy.All(strategy.Deps{
		Margin:      riskguard.NewMarginGuard(store, a.Settings),
		Volatility:  vol,
		Expirations: market,
		Logger:      logger.Named("strategy"),
	})

	a.Runner = scheduler.NewRunner(a.Broker, a.Guard, gate, store, a.Settings,
		scheduler.WithNotifier(a.Notifier),
		scheduler.WithRecorder(recorder),
		scheduler.WithMetrics(a.Metrics),
		scheduler.WithLogger(logger.Named("runner")))

	if s.Mode == domain.ModeLive {
		a.live = scheduler.NewLiveSync(a.Broker, store, a.Notifier, a.Metrics, logger.Named("live-sync"))
	}

	return a, nil
}

func senders(n config.Notify) []notify.Sender {
	var out []notify.Sender
	if n.DiscordWebhook != "" {
		out = append(out, notify.NewDiscordSender(n.DiscordWebhook))
	}
	if n.TelegramToken != "" && n.TelegramChatID != "" {
		out = append(out, notify.NewTelegramSender(n.TelegramToken, n.TelegramChatID))
	}
	return out
}

// Run performs the startup checks and runs the scheduler, the web server and the
// config watcher until ctx is done or one of them fails.
func (a *App) Run(ctx context.Context) error {
	s := a.Settings.Current()

	sched, err := scheduler.New(a.Runner, a.strategies, a.live, s, a.logger.Named("scheduler"))
	if err != nil {
		return err
	}

	notifyCtx, stopNotify := context.WithCancel(context.Background())
	notifyDone := make(chan struct{})
	go func() {
		defer close(notifyDone)
		_ = a.Notifier.Run(notifyCtx)
	}()
	defer func() {
		a.Runner.Stopped()
		stopNotify()
		<-notifyDone
	}()

	if healthy, issues := a.Runner.Healthcheck(ctx); !healthy {
		a.logger.Warn("Starting with an unhealthy broker", zap.Strings("issues", issues))
	}
	a.Runner.InitialDeploy(ctx)
	a.Runner.Started()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(ctx)
	})

	if s.Web.Addr != "" {
		srv := web.NewServer(s.Web.Addr, a.Store, a.Guard, a.Broker,
			web.WithPassword(s.Web.Password),
			web.WithJournal(a.journalReader(), a.Bus),
			web.WithMetrics(a.Metrics.Handler()),
			web.WithLogger(a.logger.Named("web")))
		g.Go(func() error {
			return errors.Wrap(srv.Start(ctx), "web server")
		})
	}

	if a.configPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, a.configPath, a.Settings, a.logger.Named("config"), func(config.Settings) {
				a.logger.Info("Settings reloaded, schedule and broker changes apply after restart")
			})
		})
	}

	a.logger.Info("Bot running",
		zap.String("mode", string(s.Mode)),
		zap.String("broker", s.Broker),
		zap.String("profile", string(s.Profile)))

	return g.Wait()
}

// journalReader returns the journal as an interface value that is nil when the journal is absent.
func (a *App) journalReader() web.JournalReader {
	if a.Journal == nil {
		return nil
	}
	return a.Journal
}

// Close releases the journal and the store.
func (a *App) Close() error {
	var firstErr error
	if a.Journal != nil {
		if err := a.Journal.Close(); err != nil {
			firstErr = errors.Wrap(err, "close journal")
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "close store")
		}
	}
	return firstErr
}
