// Package database builds the pgx connection pool backing the route store.
package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config describes the Postgres target and pool sizing. Pool bounds map
// straight onto pgxpool's MaxConns/MinConns.
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	MaxConns    int
	MinConns    int
	MaxConnLife time.Duration
}

// ConfigFromEnv reads the DB_* environment with local-dev defaults. A worker
// replica holds few connections; generation traffic is one scheduler plus
// incremental saves.
func ConfigFromEnv() Config {
	port, _ := strconv.Atoi(envOrDefault("DB_PORT", "5432"))
	maxConns, _ := strconv.Atoi(envOrDefault("DB_MAX_CONNS", "10"))
	minConns, _ := strconv.Atoi(envOrDefault("DB_MIN_CONNS", "2"))
	life, _ := time.ParseDuration(envOrDefault("DB_CONN_MAX_LIFETIME", "5m"))

	return Config{
		Host:        envOrDefault("DB_HOST", "localhost"),
		Port:        port,
		User:        envOrDefault("DB_USER", "laps"),
		Password:    envOrDefault("DB_PASSWORD", "localdev"),
		Database:    envOrDefault("DB_NAME", "laps_routes"),
		SSLMode:     envOrDefault("DB_SSL_MODE", "disable"),
		MaxConns:    maxConns,
		MinConns:    minConns,
		MaxConnLife: life,
	}
}

func (c Config) connString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// Connect builds the pool and pings it, so a bad target fails at startup
// rather than on the first save mid-run.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns) //nolint:gosec // pool sizes come from small env defaults
	poolConfig.MinConns = int32(cfg.MinConns) //nolint:gosec // pool sizes come from small env defaults
	poolConfig.MaxConnLifetime = cfg.MaxConnLife

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
