// Package scheduler runs strategies and maintenance jobs on cron schedules behind
// the risk guard and the secondary gate.
package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/qqqm/config"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/events"
	"github.com/vadiminshakov/qqqm/internal/metrics"
	"github.com/vadiminshakov/qqqm/internal/notify"
	"github.com/vadiminshakov/qqqm/internal/services/broker"
	"github.com/vadiminshakov/qqqm/internal/services/riskguard"
	"github.com/vadiminshakov/qqqm/internal/services/strategy"
	"github.com/vadiminshakov/qqqm/internal/storage/journal"
	"github.com/vadiminshakov/qqqm/pkg/id"
	"go.uber.org/zap"
)

// Guard is the primary risk check.
type Guard interface {
	Check(ctx context.Context) riskguard.Decision
	NoteTrade(ctx context.Context) error
}

// Gate is the secondary market and liquidity check.
type Gate interface {
	Check(ctx context.Context, acct riskguard.AccountSource) riskguard.Decision
}

// Notifier receives operator notifications.
type Notifier interface {
	Notify(event, title, body string)
}

// Store is the state read by maintenance jobs.
type Store interface {
	ListOpenOptions(ctx context.Context) ([]domain.OptionPosition, error)
	CountTradesBetween(ctx context.Context, since, until time.Time) (int, error)
	AppendLedger(ctx context.Context, snap domain.LedgerSnapshot) (int64, error)
}

// Action is a unit of guarded work.
type Action func(ctx context.Context) (strategy.Outcome, error)

// Runner executes jobs against the broker. Jobs never return errors: failures are
// logged, notified and counted.
type Runner struct {
	broker   broker.Broker
	guard    Guard
	gate     Gate
	store    Store
	settings *config.Holder
	notifier Notifier
	recorder *events.Recorder
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithRecorder journals guard blocks.
func WithRecorder(rec *events.Recorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

// WithMetrics counts job outcomes.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner.
func NewRunner(b broker.Broker, guard Guard, gate Gate, store Store, settings *config.Holder, opts ...RunnerOption) *Runner {
	r := &Runner{
		broker:   b,
		guard:    guard,
		gate:     gate,
		store:    store,
		settings: settings,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunStrategy runs st behind the guard and the gate.
func (r *Runner) RunStrategy(ctx context.Context, st strategy.Strategy) string {
	return r.Guarded(ctx, st.Name(), func(ctx context.Context) (strategy.Outcome, error) {
		return st.Run(ctx, r.broker, r.settings.Current())
	})
}

// Guarded checks the guard, then the gate, then runs fn. Panics and errors are
// recovered and notified; an executed outcome starts the trade cooldown.
// It returns the job outcome label.
func (r *Runner) Guarded(ctx context.Context, name string, fn Action) string {
	runID := id.New()
	logger := r.logger.With(zap.String("job", name), zap.String("run_id", runID))

	if d := r.guard.Check(ctx); !d.Allow {
		logger.Info("Job blocked by guard", zap.String("check", d.Check), zap.String("reason", d.Reason))
		r.notify(notify.EventGuard, name, "Guard block: "+d.Reason)
		r.recorder.Record(journal.NoticeEvent(runID, journal.KindGuard, r.now().UTC(), name, d.Reason))
		return r.finish(name, metrics.OutcomeBlocked)
	}

	if d := r.gate.Check(ctx, r.broker); !d.Allow {
		logger.Info("Job blocked by gate", zap.String("check", d.Check), zap.String("reason", d.Reason))
		r.recorder.Record(journal.NoticeEvent(runID, journal.KindGuard, r.now().UTC(), name, d.Reason))
		return r.finish(name, metrics.OutcomeBlocked)
	}

	out, err := safeRun(ctx, fn)
	if err != nil {
		logger.Error("Strategy failed", zap.Error(err))
		r.notify(notify.EventError, name, "Strategy error: "+err.Error())
		return r.finish(name, metrics.OutcomeError)
	}

	if out.Summary != "" {
		r.notify(notify.EventStrategy, name, out.Summary)
	}
	if !out.Executed {
		logger.Info("Job finished without action", zap.String("summary", out.Summary))
		return r.finish(name, metrics.OutcomeSkipped)
	}

	logger.Info("Job executed", zap.String("summary", out.Summary))
	if err := r.guard.NoteTrade(ctx); err != nil {
		logger.Error("Failed to note trade", zap.Error(err))
	}
	return r.finish(name, metrics.OutcomeOK)
}

func safeRun(ctx context.Context, fn Action) (out strategy.Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx)
}

func (r *Runner) finish(job, outcome string) string {
	r.metrics.JobRun(job, outcome)
	return outcome
}

func (r *Runner) notify(event, title, body string) {
	if r.notifier != nil {
		r.notifier.Notify(event, title, body)
	}
}
