package sqlstore

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/qqqm/internal/domain"
)

// GetPosition returns the holding for (symbol, kind) or ErrNotFound.
func (q Queries) GetPosition(ctx context.Context, symbol string, kind domain.PositionKind) (*domain.Position, error) {
	p := &domain.Position{Symbol: symbol, Kind: kind}
	err := q.queryRow(ctx,
		`SELECT qty, avg_price FROM positions WHERE symbol = ? AND kind = ?`, symbol, string(kind),
	).Scan(&p.Quantity, &p.AveragePrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load position %s", symbol)
	}
	return p, nil
}

// UpsertPosition writes the holding, replacing any existing row for (symbol, kind).
func (q Queries) UpsertPosition(ctx context.Context, p domain.Position) error {
	_, err := q.exec(ctx,
		`INSERT INTO positions (symbol, kind, qty, avg_price) VALUES (?, ?, ?, ?)
		ON CONFLICT (symbol, kind) DO UPDATE SET qty = excluded.qty, avg_price = excluded.avg_price`,
		p.Symbol, string(p.Kind), p.Quantity, p.AveragePrice,
	)
	return errors.Wrapf(err, "upsert position %s", p.Symbol)
}

// ListPositions returns every holding ordered by symbol, including zero quantities.
func (q Queries) ListPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := q.query(ctx, `SELECT symbol, kind, qty, avg_price FROM positions ORDER BY symbol, kind`)
	if err != nil {
		return nil, errors.Wrap(err, "list positions")
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var (
			p    domain.Position
			kind string
		)
		if err := rows.Scan(&p.Symbol, &kind, &p.Quantity, &p.AveragePrice); err != nil {
			return nil, errors.Wrap(err, "scan position row")
		}
		p.Kind = domain.PositionKind(kind)
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "iterate positions")
}
