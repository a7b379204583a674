package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"granttrack/internal/core"
	applog "granttrack/internal/log"
)

// Dialect selects the SQL flavour and migration set.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Config describes how to reach the backing store.
type Config struct {
	Dialect     Dialect
	SQLitePath  string
	DatabaseURL string
	Normalizer  core.Normalizer
}

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the explicitly constructed handle to the relational store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
	norm    core.Normalizer
}

// Open connects to the configured backend, verifies the connection and applies migrations.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Dialect == "" {
		cfg.Dialect = DialectSQLite
	}

	var driverName, dsn string
	switch cfg.Dialect {
	case DialectSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		driverName, dsn = "sqlite", sqliteDSN(cfg.SQLitePath)
	case DialectPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("postgres backend requires a database URL")
		}
		driverName, dsn = "pgx", cfg.DatabaseURL
	default:
		return nil, fmt.Errorf("unsupported dialect %q", cfg.Dialect)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Dialect, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &core.StoreError{Op: "ping", Err: err}
	}

	if err := RunMigrations(cfg.Dialect, driverName, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.InfoContext(ctx, "Store opened", applog.FieldComponent, applog.ComponentStorage, "dialect", cfg.Dialect)

	return newStore(db, cfg.Dialect, cfg.Normalizer), nil
}

func newStore(db *sql.DB, dialect Dialect, norm core.Normalizer) *Store {
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if dialect == DialectPostgres {
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &Store{db: db, dialect: dialect, sb: sb, norm: norm}
}

// sqliteDSN turns a file path into a DSN with foreign keys on and write transactions
// that take the lock on BEGIN.
func sqliteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &core.StoreError{Op: "ping", Err: err}
	}
	return nil
}

func (s *Store) Dialect() Dialect { return s.dialect }

// Normalizer returns the name policy applied to titled columns.
func (s *Store) Normalizer() core.Normalizer { return s.norm }

// WithTx runs fn inside a transaction. It commits when fn returns nil and rolls back
// on every other exit, including a panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.StoreError{Op: "begin", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return &core.StoreError{Op: "commit", Err: err}
	}
	return nil
}

// FetchAll runs a query and hands every row to scan.
func (s *Store) FetchAll(ctx context.Context, q DBTX, b sq.Sqlizer, scan func(*sql.Rows) error) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return classify("query", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
	}
	return classify("iterate rows", rows.Err())
}

// FetchOne scans the first row into dest. It reports false when no row matched.
func (s *Store) FetchOne(ctx context.Context, q DBTX, b sq.Sqlizer, dest ...any) (bool, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	err = q.QueryRowContext(ctx, query, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classify("query row", err)
	}
	return true, nil
}

// Exec runs a statement and returns the number of affected rows.
func (s *Store) Exec(ctx context.Context, q DBTX, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify("exec", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify("rows affected", err)
	}
	return n, nil
}

// ExecReturningID runs an insert and returns the generated id of idColumn. The second
// result is false when the insert was swallowed by an ON CONFLICT DO NOTHING clause.
func (s *Store) ExecReturningID(ctx context.Context, q DBTX, b sq.InsertBuilder, idColumn string) (int64, bool, error) {
	var id int64
	found, err := s.FetchOne(ctx, q, b.Suffix("RETURNING "+idColumn), &id)
	if err != nil {
		return 0, false, err
	}
	return id, found, nil
}
