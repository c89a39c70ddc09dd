package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/qqqm/internal/domain"
)

// InsertRiskItem records the max-loss exposure of an open position.
func (q Queries) InsertRiskItem(ctx context.Context, it domain.RiskItem) (int64, error) {
	if it.OpenedAt.IsZero() {
		it.OpenedAt = time.Now()
	}
	id, err := q.insert(ctx,
		`INSERT INTO risk_items (kind, risk_amount, direction, option_id, opened_at, closed_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(it.Kind), it.RiskAmount, string(it.Direction), it.OptionID, toNanos(it.OpenedAt), nullableNanos(it.ClosedAt),
	)
	return id, errors.Wrap(err, "insert risk item")
}

// OpenRiskItems returns every risk item not yet closed.
func (q Queries) OpenRiskItems(ctx context.Context) ([]domain.RiskItem, error) {
	rows, err := q.query(ctx,
		`SELECT id, kind, risk_amount, direction, option_id, opened_at, closed_at FROM risk_items WHERE closed_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list open risk items")
	}
	defer rows.Close()

	var out []domain.RiskItem
	for rows.Next() {
		var (
			it              domain.RiskItem
			kind, direction string
			openedAt        int64
			closedAt        sql.NullInt64
		)
		if err := rows.Scan(&it.ID, &kind, &it.RiskAmount, &direction, &it.OptionID, &openedAt, &closedAt); err != nil {
			return nil, errors.Wrap(err, "scan risk item row")
		}
		it.Kind = domain.StrategyKind(kind)
		it.Direction = domain.Direction(direction)
		it.OpenedAt = fromNanos(openedAt)
		it.ClosedAt = fromNullable(closedAt)
		out = append(out, it)
	}
	return out, errors.Wrap(rows.Err(), "iterate risk items")
}

// CloseRiskItemsFor closes the open risk items linked to an option position.
func (q Queries) CloseRiskItemsFor(ctx context.Context, optionID int64, closedAt time.Time) (int64, error) {
	res, err := q.exec(ctx,
		`UPDATE risk_items SET closed_at = ? WHERE option_id = ? AND closed_at IS NULL`, toNanos(closedAt), optionID)
	if err != nil {
		return 0, errors.Wrapf(err, "close risk items of option %d", optionID)
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "rows affected")
}
