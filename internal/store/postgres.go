package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds the recognized connection options.
type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	ConnectionLimit int
	ConnectTimeout  time.Duration
}

// ConnString builds a postgres:// URL for database.
func (c PostgresConfig) ConnString(database string) string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + database,
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Postgres wraps the process-wide connection pool.
type Postgres struct {
	Pool *pgxpool.Pool
}

// OpenPostgres creates the pool and verifies it. When the database does not
// exist it is created through the maintenance database and the pool is
// opened again; if creation fails the error keeps KindUnknownDatabase.
// Failures are returned as *ConnectivityError.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	pool, err := connect(ctx, cfg)
	if err == nil {
		return &Postgres{Pool: pool}, nil
	}
	if Classify(err).Kind != KindUnknownDatabase {
		return nil, Classify(err)
	}

	if cerr := createDatabase(ctx, cfg); cerr != nil {
		return nil, &ConnectivityError{Kind: KindUnknownDatabase, Err: errors.Join(err, cerr)}
	}
	pool, err = connect(ctx, cfg)
	if err != nil {
		return nil, Classify(err)
	}
	return &Postgres{Pool: pool}, nil
}

func connect(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgxpool config: %w", err)
	}
	if cfg.ConnectionLimit > 0 {
		poolConfig.MaxConns = int32(cfg.ConnectionLimit)
	}
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func createDatabase(ctx context.Context, cfg PostgresConfig) error {
	conn, err := pgx.Connect(ctx, cfg.ConnString("postgres"))
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{cfg.Database}.Sanitize())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeDuplicateDatabase {
		return nil
	}
	return err
}

// Close closes the pool.
func (p *Postgres) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// Healthy verifies the pool can reach the server.
func (p *Postgres) Healthy(ctx context.Context) bool {
	if p == nil || p.Pool == nil {
		return false
	}
	return p.Pool.Ping(ctx) == nil
}

// TransactionFn is a function that executes within a transaction.
type TransactionFn func(ctx context.Context, tx pgx.Tx) error

// WithTransaction runs fn in a transaction, committing only when fn
// succeeds. The connection goes back to the pool on every path.
func (p *Postgres) WithTransaction(ctx context.Context, fn TransactionFn) error {
	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
