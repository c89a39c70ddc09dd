package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/internal/services/marketdata"
	"go.uber.org/zap"
)

// occSymbol matches OCC option symbols such as QQQ250404P00400000.
var occSymbol = regexp.MustCompile(`^[A-Z]{1,6}\d{6}[CP]\d{8}$`)

// Tradier mirrors a live Tradier account. It reads balances, positions and market
// data; order placement is not implemented and returns ErrUnsupported.
type Tradier struct {
	account   *marketdata.TradierClient
	market    marketdata.Provider
	accountID string
	logger    *zap.Logger
}

// NewTradier creates the live adapter. account issues account requests and market serves quotes.
func NewTradier(account *marketdata.TradierClient, market marketdata.Provider, accountID string, logger *zap.Logger) (*Tradier, error) {
	if account == nil || market == nil {
		return nil, errors.New("tradier clients are required")
	}
	if accountID == "" {
		return nil, errors.New("tradier account id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tradier{account: account, market: market, accountID: accountID, logger: logger}, nil
}

// Account returns the total cash and equity reported by Tradier.
func (t *Tradier) Account(ctx context.Context) (domain.Account, error) {
	var resp struct {
		Balances struct {
			TotalCash   decimal.Decimal `json:"total_cash"`
			TotalEquity decimal.Decimal `json:"total_equity"`
		} `json:"balances"`
	}
	if err := t.account.GetJSON(ctx, fmt.Sprintf("/accounts/%s/balances", t.accountID), nil, &resp); err != nil {
		return domain.Account{}, errors.Wrap(err, "get tradier balances")
	}
	return domain.Account{Cash: resp.Balances.TotalCash, Equity: resp.Balances.TotalEquity}, nil
}

type tradierPosition struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	CostBasis decimal.Decimal `json:"cost_basis"`
}

// Positions returns the account holdings. Option holdings are reported with kind option.
func (t *Tradier) Positions(ctx context.Context) ([]domain.Position, error) {
	var resp struct {
		Positions json.RawMessage `json:"positions"`
	}
	if err := t.account.GetJSON(ctx, fmt.Sprintf("/accounts/%s/positions", t.accountID), nil, &resp); err != nil {
		return nil, errors.Wrap(err, "get tradier positions")
	}

	raw, err := unwrapPositions(resp.Positions)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Position, 0, len(raw))
	for _, rp := range raw {
		pos := domain.Position{
			Symbol:       rp.Symbol,
			Kind:         domain.PositionKindEquity,
			Quantity:     rp.Quantity,
			AveragePrice: decimal.Zero,
		}
		if occSymbol.MatchString(rp.Symbol) {
			pos.Kind = domain.PositionKindOption
		}
		if !rp.Quantity.IsZero() {
			pos.AveragePrice = rp.CostBasis.Div(rp.Quantity).Abs()
		}
		out = append(out, pos)
	}

	return out, nil
}

// unwrapPositions handles {"position": [...]}, {"position": {...}} and the "null" string.
func unwrapPositions(raw json.RawMessage) ([]tradierPosition, error) {
	var wrapper struct {
		Position json.RawMessage `json:"position"`
	}
	if len(raw) == 0 || string(raw) == "null" || string(raw) == `"null"` {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, errors.Wrap(err, "decode tradier positions")
	}
	if len(wrapper.Position) == 0 {
		return nil, nil
	}
	if wrapper.Position[0] == '[' {
		var many []tradierPosition
		err := json.Unmarshal(wrapper.Position, &many)
		return many, errors.Wrap(err, "decode tradier positions")
	}
	var one tradierPosition
	if err := json.Unmarshal(wrapper.Position, &one); err != nil {
		return nil, errors.Wrap(err, "decode tradier position")
	}
	return []tradierPosition{one}, nil
}

// Price returns the last price of symbol.
func (t *Tradier) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return t.market.Price(ctx, symbol)
}

// OptionsChain returns the option chain of symbol at expiry.
func (t *Tradier) OptionsChain(ctx context.Context, symbol string, expiry time.Time) ([]domain.Quote, error) {
	return t.market.Chain(ctx, symbol, expiry)
}

func (t *Tradier) unsupported(op string) (domain.OrderResult, error) {
	t.logger.Warn("Order routing is not available for tradier", zap.String("op", op))
	return domain.OrderResult{}, errors.Wrap(ErrUnsupported, op)
}

// BuyEquity is not supported.
func (t *Tradier) BuyEquity(context.Context, string, decimal.Decimal, string, string) (domain.OrderResult, error) {
	return t.unsupported("buy equity")
}

// SellEquity is not supported.
func (t *Tradier) SellEquity(context.Context, string, decimal.Decimal, string, string) (domain.OrderResult, error) {
	return t.unsupported("sell equity")
}

// SellCoveredCall is not supported.
func (t *Tradier) SellCoveredCall(context.Context, string, int, decimal.Decimal, time.Time, string) (domain.OrderResult, error) {
	return t.unsupported("sell covered call")
}

// SellCashSecuredPut is not supported.
func (t *Tradier) SellCashSecuredPut(context.Context, string, decimal.Decimal, decimal.Decimal, time.Time, string) (domain.OrderResult, error) {
	return t.unsupported("sell cash secured put")
}

// OpenVerticalSpread is not supported.
func (t *Tradier) OpenVerticalSpread(context.Context, string, domain.SpreadKind, decimal.Decimal, decimal.Decimal, time.Time, string) (domain.OrderResult, error) {
	return t.unsupported("open vertical spread")
}

// OpenIronCondor is not supported.
func (t *Tradier) OpenIronCondor(context.Context, string, decimal.Decimal, decimal.Decimal, decimal.Decimal, decimal.Decimal, time.Time, string) (domain.OrderResult, error) {
	return t.unsupported("open iron condor")
}

// CloseOption is not supported.
func (t *Tradier) CloseOption(context.Context, int64, string) (domain.OrderResult, error) {
	return t.unsupported("close option")
}

// CloseAllOptions is not supported.
func (t *Tradier) CloseAllOptions(context.Context) (int, error) {
	_, err := t.unsupported("close all options")
	return 0, err
}
