package scheduler

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/config"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/metrics"
	"github.com/vadiminshakov/qqqm/internal/notify"
	"github.com/vadiminshakov/qqqm/internal/services/valuation"
	"go.uber.org/zap"
)

// Exit reasons.
const (
	ReasonTakeProfit = "TP"
	ReasonStopLoss   = "SL"
)

// EvaluateExit compares the unrealised P&L of a credit position against its rule.
// pnl = entry credit - max(0, mark); pnl >= tp% x credit takes profit and
// pnl <= -sl% x credit stops out.
func EvaluateExit(op domain.OptionPosition, mark decimal.Decimal, rule config.ExitRule) (string, bool) {
	credit := op.EntryCredit
	pnl := credit.Sub(decimal.Max(decimal.Zero, mark))
	if pnl.GreaterThanOrEqual(rule.TakeProfitPct.Mul(credit)) {
		return ReasonTakeProfit, true
	}
	if pnl.LessThanOrEqual(rule.StopLossPct.Mul(credit).Neg()) {
		return ReasonStopLoss, true
	}
	return "", false
}

// Exits closes open option positions that reached their take-profit or stop-loss.
// It returns the number of positions closed.
func (r *Runner) Exits(ctx context.Context) int {
	const job = config.JobExits

	ops, err := r.store.ListOpenOptions(ctx)
	if err != nil {
		r.logger.Error("Failed to list open options", zap.Error(err))
		r.finish(job, metrics.OutcomeError)
		return 0
	}

	s := r.settings.Current()
	closed := 0
	for _, op := range ops {
		logger := r.logger.With(zap.Int64("option_id", op.ID), zap.String("kind", string(op.Kind)))
		if !op.EntryCredit.IsPositive() {
			logger.Debug("Skipping exit check for position without credit")
			continue
		}

		mark, err := r.mark(ctx, op)
		if err != nil {
			logger.Debug("Skipping exit check", zap.Error(err))
			continue
		}

		reason, hit := EvaluateExit(op, mark, s.Exits.Rule(op.Kind))
		if !hit {
			continue
		}

		res, err := r.broker.CloseOption(ctx, op.ID, reason)
		if err != nil {
			logger.Error("Failed to close option", zap.String("reason", reason), zap.Error(err))
			continue
		}
		if !res.OK() {
			logger.Warn("Option close skipped", zap.String("reason", reason), zap.String("skip", res.Reason))
			continue
		}

		closed++
		logger.Info("Option closed", zap.String("reason", reason), zap.String("mark", mark.String()))
		r.notify(notify.EventExit, job, fmt.Sprintf("Closed %s #%d %s (%s): entry %s, debit %s",
			op.Kind, op.ID, op.Symbol, reason, op.EntryCredit.StringFixed(2), res.Debit.StringFixed(2)))
	}

	r.finish(job, metrics.OutcomeOK)
	return closed
}

func (r *Runner) mark(ctx context.Context, op domain.OptionPosition) (decimal.Decimal, error) {
	chain, err := r.broker.OptionsChain(ctx, op.Symbol, op.Expiry)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "options chain")
	}
	return valuation.MarkPosition(domain.UsableQuotes(chain), op)
}
