package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/vadiminshakov/qqqm/config"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/services/strategy"
	"go.uber.org/zap"
)

// Scheduler triggers the runner's jobs on cron schedules in the configured zone.
// A job whose previous run is still going is skipped; different jobs may overlap.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	live   *LiveSync
	jobs   map[string]cron.EntryID
	ctx    context.Context
	logger *zap.Logger
}

// New registers the job table for s. strategies are keyed by schedule name;
// live is used by the snapshot job in live mode and may be nil in paper mode.
func New(runner *Runner, strategies map[string]strategy.Strategy, live *LiveSync, s config.Settings, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := s.Location()
	if err != nil {
		return nil, err
	}

	cl := cronLogger{l: logger.Named("cron").Sugar()}
	sc := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner: runner,
		jobs:   make(map[string]cron.EntryID),
		ctx:    context.Background(),
		logger: logger,
	}
	if s.Mode == domain.ModeLive {
		sc.live = live
	}

	strategyJobs := []string{config.JobDCA, config.JobWheel}
	if s.Profile == domain.ProfileEnhanced {
		strategyJobs = append(strategyJobs, config.JobSpreads, config.JobCondor)
	}
	for _, name := range strategyJobs {
		st, ok := strategies[name]
		if !ok {
			return nil, errors.Errorf("no strategy registered for job %q", name)
		}
		if err := sc.add(s, name, func(ctx context.Context) { runner.RunStrategy(ctx, st) }); err != nil {
			return nil, err
		}
	}

	maintenance := map[string]func(ctx context.Context){
		config.JobExits:     func(ctx context.Context) { runner.Exits(ctx) },
		config.JobSnapshot:  func(ctx context.Context) { runner.Snapshot(ctx, sc.live) },
		config.JobRebalance: func(ctx context.Context) { runner.Rebalance(ctx) },
	}
	if s.DailyReports {
		maintenance[config.JobDailyReport] = func(ctx context.Context) { runner.DailyReport(ctx) }
	}
	for name, fn := range maintenance {
		if err := sc.add(s, name, fn); err != nil {
			return nil, err
		}
	}

	return sc, nil
}

func (s *Scheduler) add(settings config.Settings, name string, fn func(ctx context.Context)) error {
	spec, err := Spec(settings, name)
	if err != nil {
		return err
	}
	entry, err := s.cron.AddFunc(spec, func() { fn(s.ctx) })
	if err != nil {
		return errors.Wrapf(err, "incorrect cron spec %q for job %s", spec, name)
	}
	s.jobs[name] = entry
	s.logger.Info("Job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Spec returns the cron spec of job. The daily report defaults to report_time on weekdays.
func Spec(s config.Settings, job string) (string, error) {
	if spec, ok := s.Schedules[job]; ok && spec != "" {
		return spec, nil
	}
	if job == config.JobDailyReport {
		hour, minute, err := s.ReportClock()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d * * MON-FRI", minute, hour), nil
	}
	return "", errors.Errorf("no schedule configured for job %s", job)
}

// Jobs returns the registered job names in order.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run starts the cron loop and blocks until ctx is done, then waits for running jobs.
// Jobs receive ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Strings("jobs", s.Jobs()))

	<-ctx.Done()

	s.logger.Info("Stopping scheduler, waiting for running jobs")
	<-s.cron.Stop().Done()
	return nil
}

// cronLogger adapts zap to the cron logger. Cron's info output is per-tick noise and goes to debug.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
