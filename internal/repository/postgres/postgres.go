package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Config struct {
	URL          string
	PingTimeout  time.Duration
	MaxOpenConns int
	MaxIdleConns int
}

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("database url is required")
	}
	if c.PingTimeout <= 0 {
		return errors.New("ping timeout must be positive")
	}
	if c.MaxOpenConns < 1 {
		return errors.New("max open conns must be >= 1")
	}
	if c.MaxIdleConns < 0 || c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max idle conns must be between 0 and max open conns")
	}
	return nil
}

// Open connects through the pgx stdlib driver and pings under PingTimeout.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return db, nil
}
