package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/events"
	"github.com/vadiminshakov/qqqm/internal/metrics"
	"github.com/vadiminshakov/qqqm/internal/services/marketdata"
	"github.com/vadiminshakov/qqqm/internal/services/valuation"
	"github.com/vadiminshakov/qqqm/internal/storage/journal"
	"github.com/vadiminshakov/qqqm/internal/storage/sqlstore"
	"go.uber.org/zap"
)

const (
	noteInit  = "init"
	noteMark  = "mark"
	noteClose = "close option"

	// CloseAllReason tags closes issued by CloseAllOptions.
	CloseAllReason = "CLOSEALL"
)

var (
	placeholderSpreadCredit = decimal.NewFromInt(10)
	placeholderCondorCredit = decimal.NewFromInt(12)
	hundred                 = decimal.NewFromInt(domain.ContractMultiplier)
)

// errSkip aborts a transaction and is turned into a skipped result.
type errSkip struct{ reason string }

func (e errSkip) Error() string { return e.reason }

// Paper simulates a brokerage account in the SQL store. It is the only writer of
// ledger, trade, position, option and risk rows in paper mode.
type Paper struct {
	mu       sync.Mutex
	store    *sqlstore.Store
	market   marketdata.Provider
	recorder *events.Recorder
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// PaperOption configures Paper.
type PaperOption func(*Paper)

// WithRecorder journals executed trades, skips and marks.
func WithRecorder(r *events.Recorder) PaperOption {
	return func(p *Paper) { p.recorder = r }
}

// WithMetrics exports account gauges.
func WithMetrics(m *metrics.Metrics) PaperOption {
	return func(p *Paper) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) PaperOption {
	return func(p *Paper) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) PaperOption {
	return func(p *Paper) { p.now = now }
}

// NewPaper creates the paper broker and writes the "init" ledger row with startingCash
// when the ledger is empty.
func NewPaper(ctx context.Context, store *sqlstore.Store, market marketdata.Provider, startingCash decimal.Decimal, opts ...PaperOption) (*Paper, error) {
	if store == nil {
		return nil, errors.New("store is required for paper broker")
	}
	if market == nil {
		return nil, errors.New("market data provider is required for paper broker")
	}

	p := &Paper{
		store:  store,
		market: market,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	_, err := store.LatestLedger(ctx)
	switch {
	case errors.Is(err, sqlstore.ErrNotFound):
		snap := domain.LedgerSnapshot{Timestamp: p.now(), Cash: startingCash, Equity: startingCash, Note: noteInit}
		if _, err := store.AppendLedger(ctx, snap); err != nil {
			return nil, errors.Wrap(err, "bootstrap ledger")
		}
		p.logger.Info("Paper ledger initialised", zap.String("cash", startingCash.String()))
	case err != nil:
		return nil, err
	}

	return p, nil
}

// Price returns the last price of symbol.
func (p *Paper) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return p.market.Price(ctx, symbol)
}

// OptionsChain returns the option chain of symbol at expiry.
func (p *Paper) OptionsChain(ctx context.Context, symbol string, expiry time.Time) ([]domain.Quote, error) {
	return p.market.Chain(ctx, symbol, expiry)
}

// Positions returns every stored holding.
func (p *Paper) Positions(ctx context.Context) ([]domain.Position, error) {
	return p.store.ListPositions(ctx)
}

// BuyEquity buys qty of symbol at the current price.
func (p *Paper) BuyEquity(ctx context.Context, symbol string, qty decimal.Decimal, tag, note string) (domain.OrderResult, error) {
	if !qty.IsPositive() {
		return p.skip(tag, "quantity must be positive"), nil
	}
	price, err := p.market.Price(ctx, symbol)
	if err != nil {
		return p.skip(tag, fmt.Sprintf("price unavailable: %v", err)), nil
	}

	trade := domain.NewMarketTrade(p.now(), domain.TradeActionBuy, symbol, qty, price, tag, note)

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.store.InTx(ctx, func(tx *sqlstore.Tx) error {
		last, err := tx.LatestLedger(ctx)
		if err != nil {
			return err
		}
		pos, err := loadEquityPosition(ctx, tx, symbol)
		if err != nil {
			return err
		}
		if err := pos.ApplyBuy(qty, price); err != nil {
			return errSkip{reason: err.Error()}
		}
		if _, err := tx.InsertTrade(ctx, trade); err != nil {
			return err
		}
		if err := tx.UpsertPosition(ctx, *pos); err != nil {
			return err
		}
		return p.appendLedger(ctx, tx, last, last.Cash.Sub(qty.Mul(price)), "BUY "+symbol)
	})
	if res, ok := p.asSkip(tag, err); ok {
		return res, nil
	}
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "buy %s", symbol)
	}

	p.recordTrade(trade)
	return domain.OrderResult{Status: domain.OrderStatusOK, Price: price, Qty: qty}, nil
}

// SellEquity sells up to qty of symbol at the current price. Only the held quantity is sold.
func (p *Paper) SellEquity(ctx context.Context, symbol string, qty decimal.Decimal, tag, note string) (domain.OrderResult, error) {
	if !qty.IsPositive() {
		return p.skip(tag, "quantity must be positive"), nil
	}
	price, err := p.market.Price(ctx, symbol)
	if err != nil {
		return p.skip(tag, fmt.Sprintf("price unavailable: %v", err)), nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var trade domain.Trade
	err = p.store.InTx(ctx, func(tx *sqlstore.Tx) error {
		last, err := tx.LatestLedger(ctx)
		if err != nil {
			return err
		}
		pos, err := loadEquityPosition(ctx, tx, symbol)
		if err != nil {
			return err
		}
		removed, err := pos.ApplySell(qty)
		if err != nil {
			return errSkip{reason: err.Error()}
		}
		if !removed.IsPositive() {
			return errSkip{reason: "no shares to sell"}
		}

		trade = domain.NewMarketTrade(p.now(), domain.TradeActionSell, symbol, removed, price, tag, note)
		if _, err := tx.InsertTrade(ctx, trade); err != nil {
			return err
		}
		if err := tx.UpsertPosition(ctx, *pos); err != nil {
			return err
		}
		return p.appendLedger(ctx, tx, last, last.Cash.Add(removed.Mul(price)), "SELL "+symbol)
	})
	if res, ok := p.asSkip(tag, err); ok {
		return res, nil
	}
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "sell %s", symbol)
	}

	p.recordTrade(trade)
	return domain.OrderResult{Status: domain.OrderStatusOK, Price: price, Qty: trade.Qty}, nil
}

// SellCoveredCall writes calls at strike against shares, in lots of 100.
func (p *Paper) SellCoveredCall(ctx context.Context, symbol string, shares int, strike decimal.Decimal, expiry time.Time, tag string) (domain.OrderResult, error) {
	contracts := shares / domain.ContractMultiplier
	if contracts < 1 {
		return p.skip(tag, "insufficient shares for covered call"), nil
	}
	chain, err := p.market.Chain(ctx, symbol, expiry)
	if err != nil {
		return p.skip(tag, fmt.Sprintf("chain unavailable: %v", err)), nil
	}

	leg := domain.Leg{Type: domain.OptionTypeCall, Strike: strike, Side: domain.SideShort}
	premium := legPremium(chain, leg, contracts)

	op := domain.OptionPosition{
		Kind:        domain.StrategyKindCoveredCall,
		Direction:   domain.DirectionNeutral,
		Symbol:      symbol,
		Legs:        []domain.Leg{leg},
		Expiry:      expiry,
		Contracts:   contracts,
		EntryCredit: premium,
		Collateral:  decimal.Zero,
	}
	trade := domain.NewMarketTrade(p.now(), domain.TradeActionOpen, symbol,
		decimal.NewFromInt(int64(contracts*domain.ContractMultiplier)), premium, tag,
		fmt.Sprintf("covered call %s %s", strike, expiry.Format(domain.ExpiryLayout)))

	optionID, err := p.openOption(ctx, op, nil, trade, "open CC", func(cash decimal.Decimal) (decimal.Decimal, error) {
		return cash.Add(premium), nil
	})
	if res, ok := p.asSkip(tag, err); ok {
		return res, nil
	}
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "sell covered call %s", symbol)
	}

	return domain.OrderResult{Status: domain.OrderStatusOK, Premium: premium, Contracts: contracts, OptionID: optionID}, nil
}

// SellCashSecuredPut writes as many puts at strike as cash secures, reserving strike×100 per contract.
func (p *Paper) SellCashSecuredPut(ctx context.Context, symbol string, cash, strike decimal.Decimal, expiry time.Time, tag string) (domain.OrderResult, error) {
	if !strike.IsPositive() {
		return p.skip(tag, "invalid strike"), nil
	}
	contracts := int(cash.Div(strike.Mul(hundred)).Floor().IntPart())
	if contracts < 1 {
		return p.skip(tag, "insufficient cash for CSP"), nil
	}
	chain, err := p.market.Chain(ctx, symbol, expiry)
	if err != nil {
		return p.skip(tag, fmt.Sprintf("chain unavailable: %v", err)), nil
	}

	leg := domain.Leg{Type: domain.OptionTypePut, Strike: strike, Side: domain.SideShort}
	premium := legPremium(chain, leg, contracts)
	reserve := strike.Mul(hundred).Mul(decimal.NewFromInt(int64(contracts)))

	op := domain.OptionPosition{
		Kind:        domain.StrategyKindCashSecuredPut,
		Direction:   domain.DirectionBull,
		Symbol:      symbol,
		Legs:        []domain.Leg{leg},
		Expiry:      expiry,
		Contracts:   contracts,
		EntryCredit: premium,
		Collateral:  reserve,
	}
	trade := domain.NewMarketTrade(p.now(), domain.TradeActionOpen, symbol,
		decimal.NewFromInt(int64(contracts*domain.ContractMultiplier)), premium, tag,
		fmt.Sprintf("cash secured put %s %s", strike, expiry.Format(domain.ExpiryLayout)))

	optionID, err := p.openOption(ctx, op, nil, trade, "open CSP reserve", func(cash decimal.Decimal) (decimal.Decimal, error) {
		next := cash.Add(premium).Sub(reserve)
		if next.IsNegative() {
			return decimal.Zero, errSkip{reason: "insufficient cash for CSP"}
		}
		return next, nil
	})
	if res, ok := p.asSkip(tag, err); ok {
		return res, nil
	}
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "sell cash secured put %s", symbol)
	}

	return domain.OrderResult{Status: domain.OrderStatusOK, Premium: premium, Contracts: contracts, OptionID: optionID, MaxLoss: reserve}, nil
}

// OpenVerticalSpread opens a one-lot credit spread and reserves its max loss.
func (p *Paper) OpenVerticalSpread(ctx context.Context, symbol string, kind domain.SpreadKind, short, long decimal.Decimal, expiry time.Time, tag string) (domain.OrderResult, error) {
	if !kind.IsValid() {
		return p.skip(tag, fmt.Sprintf("unknown spread kind %q", kind)), nil
	}
	if short.Equal(long) {
		return p.skip(tag, "invalid spread width"), nil
	}
	chain, err := p.market.Chain(ctx, symbol, expiry)
	if err != nil {
		return p.skip(tag, fmt.Sprintf("chain unavailable: %v", err)), nil
	}

	legs := kind.Legs(short, long)
	credit, ok := valuation.Mark(chain, legs)
	if !ok {
		credit = placeholderSpreadCredit
	}
	width := short.Sub(long).Abs().Mul(hundred)
	maxLoss := decimal.Max(decimal.Zero, width.Sub(credit))

	op := domain.OptionPosition{
		Kind:        domain.StrategyKindSpread,
		Direction:   kind.Direction(),
		Symbol:      symbol,
		Legs:        legs,
		Expiry:      expiry,
		Contracts:   1,
		EntryCredit: credit,
		Collateral:  maxLoss,
	}
	risk := &domain.RiskItem{Kind: domain.StrategyKindSpread, RiskAmount: width, Direction: kind.Direction()}
	trade := domain.NewMarketTrade(p.now(), domain.TradeActionOpen, symbol, decimal.NewFromInt(1), credit, tag,
		fmt.Sprintf("%s %s/%s %s max_loss=%s", kind, short, long, expiry.Format(domain.ExpiryLayout), maxLoss))

	optionID, err := p.openOption(ctx, op, risk, trade, "open spread", func(cash decimal.Decimal) (decimal.Decimal, error) {
		next := cash.Add(credit).Sub(maxLoss)
		if next.IsNegative() {
			return decimal.Zero, errSkip{reason: "insufficient cash for spread collateral"}
		}
		return next, nil
	})
	if res, ok := p.asSkip(tag, err); ok {
		return res, nil
	}
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "open spread %s", symbol)
	}

	return domain.OrderResult{Status: domain.OrderStatusOK, Premium: credit, MaxLoss: maxLoss, Contracts: 1, OptionID: optionID}, nil
}

// OpenIronCondor opens a one-lot iron condor and reserves its max loss.
func (p *Paper) OpenIronCondor(ctx context.Context, symbol string, lowerPut, upperPut, lowerCall, upperCall decimal.Decimal, expiry time.Time, tag string) (domain.OrderResult, error) {
	if !lowerPut.LessThan(upperPut) || !lowerCall.LessThan(upperCall) {
		return p.skip(tag, "invalid condor strikes"), nil
	}
	chain, err := p.market.Chain(ctx, symbol, expiry)
	if err != nil {
		return p.skip(tag, fmt.Sprintf("chain unavailable: %v", err)), nil
	}

	legs := domain.IronCondorLegs(lowerPut, upperPut, lowerCall, upperCall)
	credit, ok := valuation.Mark(chain, legs)
	if !ok {
		credit = placeholderCondorCredit
	}
	putWidth := upperPut.Sub(lowerPut).Abs().Mul(hundred)
	callWidth := upperCall.Sub(lowerCall).Abs().Mul(hundred)
	width := decimal.Max(putWidth, callWidth)
	maxLoss := decimal.Max(decimal.Zero, width.Sub(credit))

	op := domain.OptionPosition{
		Kind:        domain.StrategyKindCondor,
		Direction:   domain.DirectionNeutral,
		Symbol:      symbol,
		Legs:        legs,
		Expiry:      expiry,
		Contracts:   1,
		EntryCredit: credit,
		Collateral:  maxLoss,
	}
	risk := &domain.RiskItem{Kind: domain.StrategyKindCondor, RiskAmount: width, Direction: domain.DirectionNeutral}
	trade := domain.NewMarketTrade(p.now(), domain.TradeActionOpen, symbol, decimal.NewFromInt(1), credit, tag,
		fmt.Sprintf("iron condor %s/%s/%s/%s %s max_loss=%s", lowerPut, upperPut, lowerCall, upperCall,
			expiry.Format(domain.ExpiryLayout), maxLoss))

	optionID, err := p.openOption(ctx, op, risk, trade, "open condor reserve", func(cash decimal.Decimal) (decimal.Decimal, error) {
		next := cash.Add(credit).Sub(maxLoss)
		if next.IsNegative() {
			return decimal.Zero, errSkip{reason: "insufficient cash for condor collateral"}
		}
		return next, nil
	})
	if res, ok := p.asSkip(tag, err); ok {
		return res, nil
	}
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "open iron condor %s", symbol)
	}

	return domain.OrderResult{Status: domain.OrderStatusOK, Premium: credit, MaxLoss: maxLoss, Contracts: 1, OptionID: optionID}, nil
}

// CloseOption buys back an open position at its current mark and releases its collateral.
func (p *Paper) CloseOption(ctx context.Context, id int64, reason string) (domain.OrderResult, error) {
	op, err := p.store.GetOption(ctx, id)
	if errors.Is(err, sqlstore.ErrNotFound) || (err == nil && !op.IsOpen()) {
		return p.skip(reason, "not open"), nil
	}
	if err != nil {
		return domain.OrderResult{}, err
	}

	chain, err := p.market.Chain(ctx, op.Symbol, op.Expiry)
	if err != nil {
		p.logger.Warn("Option chain unavailable for close", zap.Int64("option_id", id), zap.Error(err))
		return p.skip(reason, "no quotes"), nil
	}
	mark, err := valuation.MarkPosition(chain, op)
	if err != nil {
		return p.skip(reason, "no quotes"), nil
	}
	debit := decimal.Max(decimal.Zero, mark)
	closedAt := p.now()
	trade := domain.NewMarketTrade(closedAt, domain.TradeActionClose, op.Symbol,
		decimal.NewFromInt(int64(op.Contracts)), debit.Neg(), reason,
		fmt.Sprintf("%s #%d %s", op.Kind, op.ID, op.Expiry.Format(domain.ExpiryLayout)))

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.store.InTx(ctx, func(tx *sqlstore.Tx) error {
		last, err := tx.LatestLedger(ctx)
		if err != nil {
			return err
		}
		if err := tx.CloseOption(ctx, id, closedAt, reason); err != nil {
			if errors.Is(err, sqlstore.ErrNotOpen) {
				return errSkip{reason: "not open"}
			}
			return err
		}
		if _, err := tx.CloseRiskItemsFor(ctx, id, closedAt); err != nil {
			return err
		}
		if _, err := tx.InsertTrade(ctx, trade); err != nil {
			return err
		}
		return p.appendLedger(ctx, tx, last, last.Cash.Sub(debit).Add(op.Collateral), noteClose)
	})
	if res, ok := p.asSkip(reason, err); ok {
		return res, nil
	}
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "close option %d", id)
	}

	p.recordTrade(trade)
	p.logger.Info("Option position closed",
		zap.Int64("option_id", id),
		zap.String("reason", reason),
		zap.String("debit", debit.String()))

	return domain.OrderResult{Status: domain.OrderStatusOK, Debit: debit, Contracts: op.Contracts, OptionID: id}, nil
}

// CloseAllOptions closes every open position and returns how many were closed.
func (p *Paper) CloseAllOptions(ctx context.Context) (int, error) {
	open, err := p.store.ListOpenOptions(ctx)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, op := range open {
		res, err := p.CloseOption(ctx, op.ID, CloseAllReason)
		if err != nil {
			p.logger.Error("Failed to close option", zap.Int64("option_id", op.ID), zap.Error(err))
			continue
		}
		if res.OK() {
			closed++
		}
	}

	return closed, nil
}

// Account marks every holding to market, appends a "mark" ledger row and returns it.
// Equity is cash plus open collateral plus equity value minus the cost to close open options.
// Holdings without a price or quotes are left out.
func (p *Paper) Account(ctx context.Context) (domain.Account, error) {
	started := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	last, err := p.store.LatestLedger(ctx)
	if err != nil {
		return domain.Account{}, err
	}
	positions, err := p.store.ListPositions(ctx)
	if err != nil {
		return domain.Account{}, err
	}
	open, err := p.store.ListOpenOptions(ctx)
	if err != nil {
		return domain.Account{}, err
	}

	equity := last.Cash
	for _, pos := range positions {
		if pos.Kind != domain.PositionKindEquity || !pos.IsPositive() {
			continue
		}
		price, err := p.market.Price(ctx, pos.Symbol)
		if err != nil {
			p.logger.Warn("Skipping position without price", zap.String("symbol", pos.Symbol), zap.Error(err))
			continue
		}
		equity = equity.Add(pos.MarketValue(price))
	}

	for _, op := range open {
		equity = equity.Add(op.Collateral)
		chain, err := p.market.Chain(ctx, op.Symbol, op.Expiry)
		if err != nil {
			p.logger.Warn("Skipping option without chain", zap.Int64("option_id", op.ID), zap.Error(err))
			continue
		}
		mark, err := valuation.MarkPosition(chain, op)
		if err != nil {
			p.logger.Warn("Skipping option without quotes", zap.Int64("option_id", op.ID))
			continue
		}
		equity = equity.Sub(decimal.Max(decimal.Zero, mark))
	}

	snap := domain.LedgerSnapshot{Timestamp: p.now(), Cash: last.Cash, Equity: equity, Note: noteMark}
	if snap.ID, err = p.store.AppendLedger(ctx, snap); err != nil {
		return domain.Account{}, err
	}

	p.metrics.ObserveAccount(snap.Cash, snap.Equity)
	p.metrics.ObserveMark(time.Since(started))
	p.recorder.Record(journal.MarkEvent("", snap))

	return domain.Account{Cash: snap.Cash, Equity: snap.Equity}, nil
}

// openOption stores op with its risk item, trade and ledger row in one transaction.
// nextCash maps the current cash to the cash after opening, or returns errSkip.
func (p *Paper) openOption(ctx context.Context, op domain.OptionPosition, risk *domain.RiskItem, trade domain.Trade, note string,
	nextCash func(cash decimal.Decimal) (decimal.Decimal, error)) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	op.OpenedAt = p.now()
	op.Status = domain.OptionStatusOpen

	var optionID int64
	err := p.store.InTx(ctx, func(tx *sqlstore.Tx) error {
		last, err := tx.LatestLedger(ctx)
		if err != nil {
			return err
		}
		cash, err := nextCash(last.Cash)
		if err != nil {
			return err
		}
		if optionID, err = tx.InsertOption(ctx, op); err != nil {
			return err
		}
		if risk != nil {
			risk.OptionID = optionID
			risk.OpenedAt = op.OpenedAt
			if _, err := tx.InsertRiskItem(ctx, *risk); err != nil {
				return err
			}
		}
		if _, err := tx.InsertTrade(ctx, trade); err != nil {
			return err
		}
		return p.appendLedger(ctx, tx, last, cash, note)
	})
	if err != nil {
		return 0, err
	}

	p.recordTrade(trade)
	p.logger.Info("Option position opened",
		zap.Int64("option_id", optionID),
		zap.String("kind", string(op.Kind)),
		zap.String("symbol", op.Symbol),
		zap.String("credit", op.EntryCredit.String()))

	return optionID, nil
}

// appendLedger writes a trade ledger row. Equity is carried forward from last.
func (p *Paper) appendLedger(ctx context.Context, tx *sqlstore.Tx, last domain.LedgerSnapshot, cash decimal.Decimal, note string) error {
	_, err := tx.AppendLedger(ctx, domain.LedgerSnapshot{
		Timestamp: p.now(),
		Cash:      cash,
		Equity:    last.Equity,
		Note:      note,
	})
	return err
}

func (p *Paper) skip(tag, reason string) domain.OrderResult {
	p.logger.Info("Order skipped", zap.String("tag", tag), zap.String("reason", reason))
	p.recorder.Record(journal.NoticeEvent("", journal.KindSkip, p.now(), tag, reason))
	return domain.Skipped(reason)
}

func (p *Paper) asSkip(tag string, err error) (domain.OrderResult, bool) {
	var s errSkip
	if errors.As(err, &s) {
		return p.skip(tag, s.reason), true
	}
	return domain.OrderResult{}, false
}

func (p *Paper) recordTrade(t domain.Trade) {
	p.logger.Info("Trade executed", zap.String("trade", t.String()))
	p.recorder.Record(journal.TradeEvent("", t))
}

func loadEquityPosition(ctx context.Context, tx *sqlstore.Tx, symbol string) (*domain.Position, error) {
	pos, err := tx.GetPosition(ctx, symbol, domain.PositionKindEquity)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return domain.NewEquityPosition(symbol), nil
	}
	return pos, err
}

// legPremium is max(0, mid) for all contracts, or zero without a quote.
func legPremium(chain []domain.Quote, leg domain.Leg, contracts int) decimal.Decimal {
	mid, ok := valuation.LegMid(chain, leg)
	if !ok {
		return decimal.Zero
	}
	return decimal.Max(decimal.Zero, mid).Mul(decimal.NewFromInt(int64(contracts))).Mul(hundred)
}
