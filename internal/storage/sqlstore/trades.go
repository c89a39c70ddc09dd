package sqlstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/qqqm/internal/domain"
)

// InsertTrade appends a trade to the history and returns its id.
func (q Queries) InsertTrade(ctx context.Context, t domain.Trade) (int64, error) {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	id, err := q.insert(ctx,
		`INSERT INTO trades (ts, action, symbol, qty, price, order_type, tag, details) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		toNanos(t.Timestamp), string(t.Action), t.Symbol, t.Qty, t.Price, t.OrderType, t.Tag, t.Details,
	)
	return id, errors.Wrap(err, "insert trade")
}

// CountTradesBetween counts trades with since <= ts < until.
func (q Queries) CountTradesBetween(ctx context.Context, since, until time.Time) (int, error) {
	var n int
	err := q.queryRow(ctx, `SELECT COUNT(*) FROM trades WHERE ts >= ? AND ts < ?`, toNanos(since), toNanos(until)).Scan(&n)
	return n, errors.Wrap(err, "count trades")
}

// ListTrades returns up to limit trades, newest first.
func (q Queries) ListTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.query(ctx,
		`SELECT id, ts, action, symbol, qty, price, order_type, tag, details FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list trades")
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var (
			t      domain.Trade
			ts     int64
			action string
		)
		if err := rows.Scan(&t.ID, &ts, &action, &t.Symbol, &t.Qty, &t.Price, &t.OrderType, &t.Tag, &t.Details); err != nil {
			return nil, errors.Wrap(err, "scan trade row")
		}
		t.Timestamp = fromNanos(ts)
		t.Action = domain.TradeAction(action)
		out = append(out, t)
	}
	return out, errors.Wrap(rows.Err(), "iterate trades")
}
