package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/qqqm/internal/domain"
)

// GetFlag returns the value for key. ok is false when the flag was never set.
func (q Queries) GetFlag(ctx context.Context, key string) (value string, ok bool, err error) {
	err = q.queryRow(ctx, `SELECT value FROM control_flags WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "load flag %s", key)
	}
	return value, true, nil
}

// SetFlag writes value under key, overwriting any previous value.
func (q Queries) SetFlag(ctx context.Context, key, value string) error {
	_, err := q.exec(ctx,
		`INSERT INTO control_flags (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value)
	return errors.Wrapf(err, "set flag %s", key)
}

// ControlState decodes the paused, kill-switch and last-trade flags.
// Absent or unparseable booleans read as false.
func (q Queries) ControlState(ctx context.Context) (domain.ControlState, error) {
	var st domain.ControlState

	paused, _, err := q.GetFlag(ctx, domain.FlagPaused)
	if err != nil {
		return st, err
	}
	kill, _, err := q.GetFlag(ctx, domain.FlagKillSwitch)
	if err != nil {
		return st, err
	}
	last, ok, err := q.GetFlag(ctx, domain.FlagLastTradeTS)
	if err != nil {
		return st, err
	}

	st.Paused = paused == "1"
	st.KillSwitch = kill == "1"
	if ok {
		if ts, err := time.Parse(time.RFC3339Nano, last); err == nil {
			ts = ts.UTC()
			st.LastTradeAt = &ts
		}
	}

	return st, nil
}

// SetBoolFlag stores b as "1" or "0".
func (q Queries) SetBoolFlag(ctx context.Context, key string, b bool) error {
	return q.SetFlag(ctx, key, strconv.Itoa(boolToInt(b)))
}

// SetLastTrade stores the last trade timestamp.
func (q Queries) SetLastTrade(ctx context.Context, ts time.Time) error {
	return q.SetFlag(ctx, domain.FlagLastTradeTS, ts.UTC().Format(time.RFC3339Nano))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
