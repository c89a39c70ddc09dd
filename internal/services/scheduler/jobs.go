package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/config"
	"github.com/vadiminshakov/qqqm/internal/metrics"
	"github.com/vadiminshakov/qqqm/internal/notify"
	"github.com/vadiminshakov/qqqm/internal/services/riskguard"
	"github.com/vadiminshakov/qqqm/internal/services/strategy"
	"go.uber.org/zap"
)

// Tags of cash deployment buys.
const (
	TagSweep = "SWEEP"
	TagInit  = "INIT"
)

// JobInitialDeploy names the startup deployment in logs and metrics.
const JobInitialDeploy = "initial_deploy"

var minDeploy = decimal.NewFromInt(5)

// Rebalance invests cash above the buffer into the primary symbol when the excess exceeds $5.
func (r *Runner) Rebalance(ctx context.Context) string {
	return r.Guarded(ctx, config.JobRebalance, func(ctx context.Context) (strategy.Outcome, error) {
		excess, err := r.excessCash(ctx)
		if err != nil {
			return strategy.Outcome{}, err
		}
		if !excess.GreaterThan(minDeploy) {
			return strategy.Outcome{}, nil
		}
		return r.deploy(ctx, excess, TagSweep, "rebalance to buffer", "Rebalanced: invested $%s into %s")
	})
}

// InitialDeploy invests all cash above the buffer at startup when deploy_full_cash_on_start
// is set and at least $5 is deployable.
func (r *Runner) InitialDeploy(ctx context.Context) string {
	if !r.settings.Current().DeployFullCashOnStart {
		return metrics.OutcomeSkipped
	}
	return r.Guarded(ctx, JobInitialDeploy, func(ctx context.Context) (strategy.Outcome, error) {
		excess, err := r.excessCash(ctx)
		if err != nil {
			return strategy.Outcome{}, err
		}
		if excess.LessThan(minDeploy) {
			return strategy.Outcome{}, nil
		}
		return r.deploy(ctx, excess, TagInit, "initial deploy to buffer", "Initial deploy: invested $%s into %s")
	})
}

// excessCash is cash minus equity x cash_buffer_pct, using cash as equity when equity is not positive.
func (r *Runner) excessCash(ctx context.Context) (decimal.Decimal, error) {
	acct, err := r.broker.Account(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "account")
	}
	target := acct.EffectiveEquity().Mul(r.settings.Current().CashBufferPct)
	return acct.Cash.Sub(target), nil
}

func (r *Runner) deploy(ctx context.Context, amount decimal.Decimal, tag, note, summary string) (strategy.Outcome, error) {
	sym := r.settings.Current().Symbol
	px, err := r.broker.Price(ctx, sym)
	if err != nil {
		return strategy.Outcome{}, errors.Wrapf(err, "price %s", sym)
	}
	if !px.IsPositive() {
		return strategy.Outcome{}, errors.Errorf("non-positive price %s for %s", px.String(), sym)
	}

	qty := amount.Div(px).Round(4)
	if !qty.IsPositive() {
		return strategy.Outcome{}, nil
	}
	res, err := r.broker.BuyEquity(ctx, sym, qty, tag, note)
	if err != nil {
		return strategy.Outcome{}, errors.Wrap(err, "buy equity")
	}
	if !res.OK() {
		return strategy.Outcome{Summary: tag + " skipped: " + res.Reason}, nil
	}
	return strategy.Outcome{Executed: true, Summary: fmt.Sprintf(summary, amount.StringFixed(2), sym)}, nil
}

// DailyReport notifies the current cash and equity with today's trade count and open options.
func (r *Runner) DailyReport(ctx context.Context) string {
	const job = config.JobDailyReport

	acct, err := r.broker.Account(ctx)
	if err != nil {
		r.logger.Error("Daily report: account unavailable", zap.Error(err))
		r.notify(notify.EventError, job, "Daily report failed: "+err.Error())
		return r.finish(job, metrics.OutcomeError)
	}

	msg := fmt.Sprintf("Daily: Cash $%s | Equity $%s", acct.Cash.StringFixed(2), acct.Equity.StringFixed(2))
	day := riskguard.DayStart(r.now())
	if n, err := r.store.CountTradesBetween(ctx, day, day.AddDate(0, 0, 1)); err == nil {
		msg += fmt.Sprintf(" | Trades today %d", n)
	} else {
		r.logger.Warn("Daily report: trade count unavailable", zap.Error(err))
	}
	if ops, err := r.store.ListOpenOptions(ctx); err == nil {
		msg += fmt.Sprintf(" | Open options %d", len(ops))
	} else {
		r.logger.Warn("Daily report: open options unavailable", zap.Error(err))
	}

	r.notify(notify.EventReport, job, msg)
	return r.finish(job, metrics.OutcomeOK)
}

// Snapshot records the account: live mode mirrors the broker into the ledger,
// paper mode re-marks the simulated account.
func (r *Runner) Snapshot(ctx context.Context, live *LiveSync) string {
	const job = config.JobSnapshot

	if live != nil {
		if _, err := live.Snapshot(ctx); err != nil {
			return r.finish(job, metrics.OutcomeError)
		}
		return r.finish(job, metrics.OutcomeOK)
	}

	if _, err := r.broker.Account(ctx); err != nil {
		r.logger.Error("Account re-mark failed", zap.Error(err))
		return r.finish(job, metrics.OutcomeError)
	}
	return r.finish(job, metrics.OutcomeOK)
}

// Healthcheck probes the broker. An account failure makes it unhealthy and is
// notified; a positions failure is only reported as an issue.
func (r *Runner) Healthcheck(ctx context.Context) (bool, []string) {
	healthy := true
	var issues []string

	if _, err := r.broker.Account(ctx); err != nil {
		healthy = false
		issues = append(issues, "account: "+err.Error())
	}
	if _, err := r.broker.Positions(ctx); err != nil {
		issues = append(issues, "positions: "+err.Error())
	}

	if len(issues) > 0 {
		r.logger.Warn("Broker healthcheck issues", zap.Bool("healthy", healthy), zap.Strings("issues", issues))
	}
	if !healthy {
		r.notify(notify.EventError, "healthcheck", "Broker healthcheck: "+strings.Join(issues, "; "))
	}
	return healthy, issues
}

// Started announces startup.
func (r *Runner) Started() {
	s := r.settings.Current()
	r.notify(notify.EventSystem, "qqqm", fmt.Sprintf("QQQM bot started (mode %s, broker %s, profile %s).", s.Mode, s.Broker, s.Profile))
}

// Stopped announces shutdown.
func (r *Runner) Stopped() {
	r.notify(notify.EventSystem, "qqqm", "QQQM bot stopped.")
}
