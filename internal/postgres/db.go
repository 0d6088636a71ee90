package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Options describes how to reach the store and how big the pool may grow.
type Options struct {
	Host             string
	Port             int
	Name             string
	User             string
	Password         string
	PoolSize         int
	StatementTimeout time.Duration
}

// DSN renders the options as a postgres:// URL.
func (o Options) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(o.User, o.Password),
		Host:     net.JoinHostPort(o.Host, strconv.Itoa(o.Port)),
		Path:     "/" + o.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Connect opens a bounded pool. Callers beyond PoolSize wait inside pgxpool
// until a connection is released or their context ends.
func Connect(ctx context.Context, o Options) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(o.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	size := o.PoolSize
	if size <= 0 {
		size = 10
	}
	cfg.MaxConns = int32(size)
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	if o.StatementTimeout > 0 {
		cfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(o.StatementTimeout.Milliseconds(), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, Classify(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, Classify(err)
	}
	return pool, nil
}
