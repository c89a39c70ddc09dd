package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/qqqm/internal/domain"
	"github.com/vadiminshakov/qqqm/pkg/ratelimit"
	"github.com/vadiminshakov/qqqm/pkg/retrier"
	"go.uber.org/zap"
)

const (
	defaultTradierURL = "https://api.tradier.com/v1"
	vixSymbol         = "VIX"
	httpTimeout       = 10 * time.Second
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

// TradierClient is a REST client for the Tradier brokerage API.
// Every request waits on the limiter bucket and is retried on transient failures;
// 4xx responses are returned immediately.
type TradierClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *ratelimit.Bucket
	retrier    *retrier.Retrier
	logger     *zap.Logger
}

// NewTradierClient creates a client. limiter may be nil to disable throttling.
func NewTradierClient(baseURL, token string, limiter *ratelimit.Bucket, logger *zap.Logger, opts ...retrier.Option) *TradierClient {
	if baseURL == "" {
		baseURL = defaultTradierURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &TradierClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: httpTimeout},
		limiter:    limiter,
		logger:     logger,
	}
	c.retrier = retrier.New(append([]retrier.Option{
		retrier.WithOnRetry(func(attempt int, err error) {
			c.logger.Warn("Retrying Tradier request", zap.Int("attempt", attempt), zap.Error(err))
		}),
	}, opts...)...)

	return c
}

// GetJSON performs a GET on path and decodes the JSON body into out.
func (c *TradierClient) GetJSON(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil, out)
}

// PostForm performs a form-encoded POST on path and decodes the JSON body into out.
func (c *TradierClient) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	return c.do(ctx, http.MethodPost, c.baseURL+path, form, out)
}

func (c *TradierClient) do(ctx context.Context, method, u string, form url.Values, out any) error {
	body, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) ([]byte, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, 1); err != nil {
				return nil, retrier.Permanent(errors.Wrap(err, "wait for rate limiter"))
			}
		}
		var payload io.Reader
		if form != nil {
			payload = bytes.NewBufferString(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, u, payload)
		if err != nil {
			return nil, retrier.Permanent(errors.Wrap(err, "build request"))
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "send request")
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "read response")
		}
		if resp.StatusCode >= 400 {
			serr := &StatusError{Code: resp.StatusCode, Body: truncate(string(b), 256)}
			if resp.StatusCode < 500 {
				return nil, retrier.Permanent(serr)
			}
			return nil, serr
		}
		return b, nil
	})
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, u)
	}

	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(body, out), "decode response")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// oneOrMany decodes Tradier collections, which are a bare object when they hold a single item
// and the string "null" or JSON null when empty.
func oneOrMany[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`"null"`)) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var many []T
		err := json.Unmarshal(trimmed, &many)
		return many, err
	}
	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}

type tradierQuote struct {
	Symbol string          `json:"symbol"`
	Last   decimal.Decimal `json:"last"`
}

// Price returns the last price of symbol.
func (c *TradierClient) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var resp struct {
		Quotes struct {
			Quote json.RawMessage `json:"quote"`
		} `json:"quotes"`
	}
	if err := c.GetJSON(ctx, "/markets/quotes", url.Values{"symbols": {symbol}}, &resp); err != nil {
		return decimal.Zero, errors.Wrapf(err, "get quote %s", symbol)
	}

	quotes, err := oneOrMany[tradierQuote](resp.Quotes.Quote)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "decode quote %s", symbol)
	}
	if len(quotes) == 0 || !quotes[0].Last.IsPositive() {
		return decimal.Zero, errors.Errorf("no price for %s", symbol)
	}

	return quotes[0].Last, nil
}

// VIX returns the last VIX level.
func (c *TradierClient) VIX(ctx context.Context) (decimal.Decimal, error) {
	return c.Price(ctx, vixSymbol)
}

// Expirations returns the listed option expirations for symbol, ascending.
func (c *TradierClient) Expirations(ctx context.Context, symbol string) ([]time.Time, error) {
	var resp struct {
		Expirations struct {
			Date json.RawMessage `json:"date"`
		} `json:"expirations"`
	}
	params := url.Values{"symbol": {symbol}, "includeAllRoots": {"false"}}
	if err := c.GetJSON(ctx, "/markets/options/expirations", params, &resp); err != nil {
		return nil, errors.Wrapf(err, "get expirations %s", symbol)
	}

	dates, err := oneOrMany[string](resp.Expirations.Date)
	if err != nil {
		return nil, errors.Wrapf(err, "decode expirations %s", symbol)
	}

	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		t, err := time.Parse(domain.ExpiryLayout, d)
		if err != nil {
			c.logger.Warn("Skipping malformed expiration", zap.String("symbol", symbol), zap.String("date", d))
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })

	return out, nil
}

type tradierOption struct {
	Symbol     string          `json:"symbol"`
	OptionType string          `json:"option_type"`
	Strike     decimal.Decimal `json:"strike"`
	Bid        decimal.Decimal `json:"bid"`
	Ask        decimal.Decimal `json:"ask"`
}

// Chain returns the option chain for symbol at expiry. A zero expiry selects the nearest listed expiration.
func (c *TradierClient) Chain(ctx context.Context, symbol string, expiry time.Time) ([]domain.Quote, error) {
	if expiry.IsZero() {
		exps, err := c.Expirations(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if len(exps) == 0 {
			return nil, errors.Errorf("no expirations listed for %s", symbol)
		}
		expiry = exps[0]
	}

	var resp struct {
		Options struct {
			Option json.RawMessage `json:"option"`
		} `json:"options"`
	}
	params := url.Values{"symbol": {symbol}, "expiration": {expiry.Format(domain.ExpiryLayout)}}
	if err := c.GetJSON(ctx, "/markets/options/chains", params, &resp); err != nil {
		return nil, errors.Wrapf(err, "get chain %s %s", symbol, expiry.Format(domain.ExpiryLayout))
	}

	options, err := oneOrMany[tradierOption](resp.Options.Option)
	if err != nil {
		return nil, errors.Wrapf(err, "decode chain %s", symbol)
	}

	quotes := make([]domain.Quote, 0, len(options))
	for _, o := range options {
		typ := domain.OptionType(strings.ToLower(o.OptionType))
		if !typ.IsValid() {
			continue
		}
		quotes = append(quotes, domain.Quote{
			Symbol: o.Symbol,
			Type:   typ,
			Strike: o.Strike,
			Expiry: expiry,
			Bid:    o.Bid,
			Ask:    o.Ask,
		})
	}

	return quotes, nil
}
