package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/qqqm/internal/domain"
)

// ErrNotOpen is returned when closing an option position that is already closed or missing.
var ErrNotOpen = errors.New("option position not open")

const optionColumns = `id, kind, direction, symbol, legs, expiry, contracts, entry_credit, collateral, status, opened_at, closed_at, close_reason`

// InsertOption stores a new open option position and returns its id.
func (q Queries) InsertOption(ctx context.Context, op domain.OptionPosition) (int64, error) {
	legs, err := json.Marshal(op.Legs)
	if err != nil {
		return 0, errors.Wrap(err, "marshal legs")
	}
	if op.Status == "" {
		op.Status = domain.OptionStatusOpen
	}
	if op.OpenedAt.IsZero() {
		op.OpenedAt = time.Now()
	}

	id, err := q.insert(ctx,
		`INSERT INTO option_positions (kind, direction, symbol, legs, expiry, contracts, entry_credit, collateral, status, opened_at, closed_at, close_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(op.Kind), string(op.Direction), op.Symbol, string(legs), op.Expiry.Format(domain.ExpiryLayout),
		op.Contracts, op.EntryCredit, op.Collateral, string(op.Status), toNanos(op.OpenedAt),
		nullableNanos(op.ClosedAt), op.CloseReason,
	)
	return id, errors.Wrap(err, "insert option position")
}

// GetOption loads an option position by id or returns ErrNotFound.
func (q Queries) GetOption(ctx context.Context, id int64) (domain.OptionPosition, error) {
	op, err := scanOption(q.queryRow(ctx, `SELECT `+optionColumns+` FROM option_positions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.OptionPosition{}, ErrNotFound
	}
	return op, errors.Wrapf(err, "load option position %d", id)
}

// ListOpenOptions returns open option positions ordered by id.
func (q Queries) ListOpenOptions(ctx context.Context) ([]domain.OptionPosition, error) {
	return q.listOptions(ctx, `SELECT `+optionColumns+` FROM option_positions WHERE status = ? ORDER BY id`, string(domain.OptionStatusOpen))
}

// ListOptions returns up to limit option positions in any status, newest first.
func (q Queries) ListOptions(ctx context.Context, limit int) ([]domain.OptionPosition, error) {
	if limit <= 0 {
		limit = 100
	}
	return q.listOptions(ctx, `SELECT `+optionColumns+` FROM option_positions ORDER BY id DESC LIMIT ?`, limit)
}

func (q Queries) listOptions(ctx context.Context, query string, args ...any) ([]domain.OptionPosition, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list option positions")
	}
	defer rows.Close()

	var out []domain.OptionPosition
	for rows.Next() {
		op, err := scanOption(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan option position row")
		}
		out = append(out, op)
	}
	return out, errors.Wrap(rows.Err(), "iterate option positions")
}

// CloseOption marks an open position closed. Returns ErrNotOpen if it was not open.
func (q Queries) CloseOption(ctx context.Context, id int64, closedAt time.Time, reason string) error {
	res, err := q.exec(ctx,
		`UPDATE option_positions SET status = ?, closed_at = ?, close_reason = ? WHERE id = ? AND status = ?`,
		string(domain.OptionStatusClosed), toNanos(closedAt), reason, id, string(domain.OptionStatusOpen),
	)
	if err != nil {
		return errors.Wrapf(err, "close option position %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotOpen
	}
	return nil
}

func scanOption(s scanner) (domain.OptionPosition, error) {
	var (
		op                      domain.OptionPosition
		kind, direction, status string
		legs, expiry            string
		openedAt                int64
		closedAt                sql.NullInt64
	)
	err := s.Scan(&op.ID, &kind, &direction, &op.Symbol, &legs, &expiry, &op.Contracts,
		&op.EntryCredit, &op.Collateral, &status, &openedAt, &closedAt, &op.CloseReason)
	if err != nil {
		return domain.OptionPosition{}, err
	}

	if err := json.Unmarshal([]byte(legs), &op.Legs); err != nil {
		return domain.OptionPosition{}, errors.Wrapf(err, "decode legs of option %d", op.ID)
	}
	op.Expiry, err = time.Parse(domain.ExpiryLayout, expiry)
	if err != nil {
		return domain.OptionPosition{}, errors.Wrapf(err, "parse expiry of option %d", op.ID)
	}
	op.Kind = domain.StrategyKind(kind)
	op.Direction = domain.Direction(direction)
	op.Status = domain.OptionStatus(status)
	op.OpenedAt = fromNanos(openedAt)
	op.ClosedAt = fromNullable(closedAt)

	return op, nil
}
