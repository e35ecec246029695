package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/library-lending-go/lending/sqlengine"
)

const (
	defaultMaxConnLifetime   = time.Hour
	defaultMaxConnIdleTime   = time.Minute * 5
	defaultHealthCheckPeriod = time.Minute
	defaultConnectTimeout    = time.Second * 5
)

// Database is an open store together with the connections it runs on.
type Database struct {
	Store sqlengine.Store
	close func()
}

// Close releases the connections.
func (d Database) Close() {
	if d.close != nil {
		d.close()
	}
}

// OpenDatabase connects with the configured driver, pings, and wraps the connection in a store.
func OpenDatabase(ctx context.Context, cfg DatabaseConfig, options ...sqlengine.Option) (Database, error) {
	switch cfg.Driver {
	case DriverPGX:
		return openPGX(ctx, cfg, options)
	case DriverSQL:
		db, err := openSQLDB(ctx, "postgres", cfg)
		if err != nil {
			return Database{}, err
		}

		return newDatabase(func() (sqlengine.Store, error) { return sqlengine.NewStoreFromSQLDB(db, options...) }, func() { _ = db.Close() })
	case DriverSQLX:
		db, err := openSQLX(ctx, cfg)
		if err != nil {
			return Database{}, err
		}

		return newDatabase(func() (sqlengine.Store, error) { return sqlengine.NewStoreFromSQLX(db, options...) }, func() { _ = db.Close() })
	case DriverSQLite:
		// sqlite serializes writers anyway, one connection avoids "database is locked" between them.
		db, err := openSQLDB(ctx, "sqlite3", DatabaseConfig{DSN: cfg.DSN, MaxConns: 1})
		if err != nil {
			return Database{}, err
		}

		options = append([]sqlengine.Option{sqlengine.WithDialect(sqlengine.DialectSQLite)}, options...)

		return newDatabase(func() (sqlengine.Store, error) { return sqlengine.NewStoreFromSQLDB(db, options...) }, func() { _ = db.Close() })
	default:
		return Database{}, fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, cfg.Driver)
	}
}

func newDatabase(build func() (sqlengine.Store, error), closeFn func()) (Database, error) {
	store, err := build()
	if err != nil {
		closeFn()
		return Database{}, err
	}

	return Database{Store: store, close: closeFn}, nil
}

func openPGX(ctx context.Context, cfg DatabaseConfig, options []sqlengine.Option) (Database, error) {
	primary, err := newPGXPool(ctx, cfg.DSN, cfg.MaxConns)
	if err != nil {
		return Database{}, err
	}

	if cfg.ReplicaDSN == "" {
		return newDatabase(func() (sqlengine.Store, error) { return sqlengine.NewStoreFromPGXPool(primary, options...) }, primary.Close)
	}

	replica, err := newPGXPool(ctx, cfg.ReplicaDSN, cfg.MaxConns)
	if err != nil {
		primary.Close()
		return Database{}, err
	}

	return newDatabase(
		func() (sqlengine.Store, error) {
			return sqlengine.NewStoreFromPGXPoolWithReplica(primary, replica, options...)
		},
		func() {
			replica.Close()
			primary.Close()
		},
	)
}

func newPGXPool(ctx context.Context, dsn string, maxConns int) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}

	poolConfig.MaxConns = int32(maxConns) //nolint:gosec // validated to be small and positive
	poolConfig.MinConns = min(int32(2), poolConfig.MaxConns)
	poolConfig.MaxConnLifetime = defaultMaxConnLifetime
	poolConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	poolConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func openSQLDB(ctx context.Context, driverName string, cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	configurePool(db, cfg.MaxConns)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

func openSQLX(ctx context.Context, cfg DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	configurePool(db.DB, cfg.MaxConns)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

func configurePool(db *sql.DB, maxConns int) {
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(max(1, maxConns/4))
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)
}

// NewRedisClient returns nil when no redis address is configured.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
