package persistence

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hyeonwoo-dev/subpay/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor is the query surface shared by *pgxpool.Pool and pgx.Tx. A
// repository bound to an Executor runs the same SQL whether a saga step
// executes inside WithTx or against the bare pool.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type DB struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect opens the pgx pool for the payment ledger and pings it once so a
// bad DSN fails at startup instead of on the first saga step.
func Connect(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	pgxCfg, err := cfg.PgxConfig(ctx)
	if err != nil {
		logger.Error("invalid database config", "error", err)
		return nil, err
	}

	logger.Info("opening payment ledger pool",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		logger.Error("opening connection pool failed", "error", err)
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		pool.Close()
		return nil, err
	}

	logger.Info("payment ledger pool ready",
		"max_conns", pgxCfg.MaxConns,
		"min_conns", pgxCfg.MinConns,
	)

	return &DB{
		Pool:   pool,
		logger: logger,
	}, nil
}

func (db *DB) Close() {
	db.logger.Info("closing payment ledger pool")
	db.Pool.Close()
}

// IsUniqueViolation reports whether err is a Postgres 23505. The payments
// table relies on this to turn a duplicate order_id insert into a domain
// error instead of a retryable failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
