// Package store implements the persistence writer (spec §4.10): a pgxpool
// connection and a retrying upsert of one row per run, adapted from the
// teacher's pkg/database/postgres.NewPostgresDB and its
// internal/data/repositories/postgres constructor/logging idiom (sqlc
// codegen is dropped in favor of plain pgx queries).
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PoolConfig configures the Postgres connection pool (spec §2.1 ambient config).
type PoolConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SslMode        string
	MinConns       int32
	MaxConns       int32
	AcquireTimeout time.Duration
}

// NewPool builds and pings a pgxpool.Pool from cfg.
func NewPool(ctx context.Context, cfg PoolConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SslMode)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MaxConnLifetime = time.Hour

	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to postgres", zap.String("host", cfg.Host), zap.Int("port", cfg.Port), zap.String("database", cfg.Name))
	return pool, nil
}
