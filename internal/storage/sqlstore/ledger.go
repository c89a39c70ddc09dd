package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/qqqm/internal/domain"
)

const ledgerColumns = `id, ts, cash, equity, note`

// AppendLedger inserts an account snapshot and returns its id.
func (q Queries) AppendLedger(ctx context.Context, snap domain.LedgerSnapshot) (int64, error) {
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}
	id, err := q.insert(ctx,
		`INSERT INTO ledger (ts, cash, equity, note) VALUES (?, ?, ?, ?)`,
		toNanos(snap.Timestamp), snap.Cash, snap.Equity, snap.Note,
	)
	return id, errors.Wrap(err, "append ledger snapshot")
}

// LatestLedger returns the most recent snapshot or ErrNotFound when the ledger is empty.
func (q Queries) LatestLedger(ctx context.Context) (domain.LedgerSnapshot, error) {
	row := q.queryRow(ctx, `SELECT `+ledgerColumns+` FROM ledger ORDER BY id DESC LIMIT 1`)
	snap, err := scanLedger(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LedgerSnapshot{}, ErrNotFound
	}
	return snap, errors.Wrap(err, "load latest ledger snapshot")
}

// LedgerWindow returns the first and last snapshot with since <= ts < until.
// A zero until leaves the window open-ended. ErrNotFound means no snapshot falls inside.
func (q Queries) LedgerWindow(ctx context.Context, since, until time.Time) (first, last domain.LedgerSnapshot, err error) {
	upper := int64(1<<63 - 1)
	if !until.IsZero() {
		upper = toNanos(until)
	}
	lower := toNanos(since)

	first, err = scanLedger(q.queryRow(ctx,
		`SELECT `+ledgerColumns+` FROM ledger WHERE ts >= ? AND ts < ? ORDER BY ts ASC, id ASC LIMIT 1`, lower, upper))
	if errors.Is(err, sql.ErrNoRows) {
		return first, last, ErrNotFound
	}
	if err != nil {
		return first, last, errors.Wrap(err, "load first ledger snapshot in window")
	}

	last, err = scanLedger(q.queryRow(ctx,
		`SELECT `+ledgerColumns+` FROM ledger WHERE ts >= ? AND ts < ? ORDER BY ts DESC, id DESC LIMIT 1`, lower, upper))
	if err != nil {
		return first, last, errors.Wrap(err, "load last ledger snapshot in window")
	}

	return first, last, nil
}

// ListLedger returns up to limit snapshots, newest first.
func (q Queries) ListLedger(ctx context.Context, limit int) ([]domain.LedgerSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.query(ctx, `SELECT `+ledgerColumns+` FROM ledger ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list ledger")
	}
	defer rows.Close()

	var out []domain.LedgerSnapshot
	for rows.Next() {
		snap, err := scanLedger(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan ledger row")
		}
		out = append(out, snap)
	}
	return out, errors.Wrap(rows.Err(), "iterate ledger")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLedger(s scanner) (domain.LedgerSnapshot, error) {
	var (
		snap domain.LedgerSnapshot
		ts   int64
	)
	if err := s.Scan(&snap.ID, &ts, &snap.Cash, &snap.Equity, &snap.Note); err != nil {
		return domain.LedgerSnapshot{}, err
	}
	snap.Timestamp = fromNanos(ts)
	return snap, nil
}
