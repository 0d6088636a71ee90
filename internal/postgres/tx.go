package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the subset of *pgxpool.Pool the facility needs.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Querier executes single statements. Errors it returns are classified.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxConfig bounds a unit of work.
type TxConfig struct {
	Timeout        time.Duration
	MaxTries       uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DB is the data access facility: classified single statements on the pool
// plus InTx for multi-statement units of work.
type DB struct {
	pool Pool
	tx   TxConfig
	log  *slog.Logger
}

func New(pool Pool, cfg TxConfig, log *slog.Logger) *DB {
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 20 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 500 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &DB{pool: pool, tx: cfg, log: log}
}

func (db *DB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return classified{db.pool}.Exec(ctx, sql, args...)
}

func (db *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return classified{db.pool}.Query(ctx, sql, args...)
}

func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return classified{db.pool}.QueryRow(ctx, sql, args...)
}

// InTx runs fn inside one read-committed transaction, committed once when fn
// returns nil and rolled back on any error or panic. Deadlocks and
// serialization failures rerun the whole of fn, so fn must not keep state
// across attempts.
func (db *DB) InTx(ctx context.Context, fn func(q Querier) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = db.tx.InitialBackoff
	b.MaxInterval = db.tx.MaxBackoff

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := db.runTx(ctx, fn)
		switch {
		case err == nil:
			return struct{}{}, nil
		case IsRetryable(err):
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(db.tx.MaxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			db.log.WarnContext(ctx, "retrying transaction", "attempt", attempt, "wait", wait, "err", err)
		}),
	)
	return err
}

func (db *DB) runTx(ctx context.Context, fn func(q Querier) error) error {
	if db.tx.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, db.tx.Timeout)
		defer cancel()
	}

	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return &TxError{Op: "begin", Err: Classify(err)}
	}
	// rollback must still reach the server after the caller went away
	rbCtx := context.WithoutCancel(ctx)
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(rbCtx)
			panic(p)
		}
	}()

	if err := fn(classified{tx}); err != nil {
		if rbErr := tx.Rollback(rbCtx); rbErr != nil {
			db.log.WarnContext(ctx, "rollback failed", "err", rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &TxError{Op: "commit", Err: Classify(err)}
	}
	return nil
}

type classified struct{ q Querier }

func (c classified) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tag, err := c.q.Exec(ctx, sql, args...)
	return tag, Classify(err)
}

func (c classified) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, err := c.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, Classify(err)
	}
	return classifiedRows{rows}, nil
}

func (c classified) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return classifiedRow{c.q.QueryRow(ctx, sql, args...)}
}

type classifiedRow struct{ r pgx.Row }

func (r classifiedRow) Scan(dest ...any) error { return Classify(r.r.Scan(dest...)) }

type classifiedRows struct{ pgx.Rows }

func (r classifiedRows) Scan(dest ...any) error { return Classify(r.Rows.Scan(dest...)) }
func (r classifiedRows) Err() error              { return Classify(r.Rows.Err()) }
