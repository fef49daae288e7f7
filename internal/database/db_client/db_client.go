package db_client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"auctionhouse/internal/database/migrations"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

type Options struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	// ConnectTimeout bounds the boot-time ping retries.
	ConnectTimeout time.Duration
}

// DSN renders the pgx connection URL. Credentials are escaped.
func (o Options) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(o.User, o.Password),
		Host:   net.JoinHostPort(o.Host, o.Port),
		Path:   "/" + o.Database,
	}
	if o.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {o.SSLMode}}.Encode()
	}
	return u.String()
}

// Open returns a pool once Postgres answers a ping.
func Open(opts Options) (*sql.DB, error) {
	db, err := sql.Open("pgx", opts.DSN())
	if err != nil {
		return nil, err
	}
	maxConns := opts.MaxConns
	if maxConns <= 0 {
		maxConns = 50
	}
	db.SetMaxOpenConns(maxConns)
	db.SetConnMaxIdleTime(time.Minute)

	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	}
	notify := func(err error, next time.Duration) {
		zap.L().Warn("pg_connect_retry", zap.Duration("next", next), zap.Error(err))
	}
	b := backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(connectTimeout))
	if err := backoff.RetryNotify(ping, b, notify); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres %s: %w", net.JoinHostPort(opts.Host, opts.Port), err)
	}
	zap.L().Info("postgres connected", zap.String("host", opts.Host), zap.String("db", opts.Database), zap.Int("max_conns", maxConns))
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	drv, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx", drv)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	version, dirty, _ := m.Version()
	zap.L().Info("db migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
