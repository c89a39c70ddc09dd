// Package sqlstore persists the ledger, trades, positions, option positions,
// risk items and control flags in a relational database (SQLite or PostgreSQL).
package sqlstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

const sqliteParams = "_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries implements every read and write. It is embedded by Store and Tx.
type Queries struct {
	q       querier
	dialect dialect
}

// Store is the database handle. Each method call runs in its own implicit transaction;
// use InTx to group writes atomically.
type Store struct {
	Queries
	db *sql.DB
}

// Tx is a store bound to an open transaction.
type Tx struct {
	Queries
}

// Open connects to url and creates the schema if missing.
// Supported forms: postgres://..., postgresql://..., sqlite://path, sqlite://:memory: and a bare file path.
func Open(ctx context.Context, url string) (*Store, error) {
	driver, dsn, d, err := parseURL(url)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", driver)
	}
	if d == dialectSQLite {
		// one connection serialises writers and keeps :memory: databases shared
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping %s database", driver)
	}

	s := &Store{Queries: Queries{q: db, dialect: d}, db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func parseURL(url string) (driver, dsn string, d dialect, _ error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "pgx", url, dialectPostgres, nil
	case url == "":
		return "", "", 0, errors.New("database url is empty")
	}

	path := strings.TrimPrefix(url, "sqlite://")
	if path == ":memory:" {
		return "sqlite3", "file::memory:?" + sqliteParams, dialectSQLite, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", "", 0, errors.Wrapf(err, "create database directory %s", dir)
		}
	}
	return "sqlite3", "file:" + path + "?" + sqliteParams, dialectSQLite, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.dialect == dialectPostgres {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "apply schema")
		}
	}
	return nil
}

// InTx runs fn inside a transaction, committing on nil and rolling back otherwise.
// fn must only use the Tx it receives.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{Queries: Queries{q: sqlTx, dialect: s.dialect}}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return err
	}

	return errors.Wrap(sqlTx.Commit(), "commit transaction")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (q Queries) rebind(query string) string {
	if q.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (q Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.q.ExecContext(ctx, q.rebind(query), args...)
}

func (q Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.q.QueryContext(ctx, q.rebind(query), args...)
}

func (q Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.q.QueryRowContext(ctx, q.rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id statement.
func (q Queries) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := q.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func fromNullable(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}
