package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"subscription-api/internal/config"
)

// NewPgxPool connects to Postgres, retrying while the server comes up.
func NewPgxPool(ctx context.Context, cfg config.DatabaseConfig, logger *zerolog.Logger) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	var pool *pgxpool.Pool
	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		p, err := pgxpool.ConnectConfig(connectCtx, pcfg)
		if err == nil {
			err = p.Ping(connectCtx)
			if err != nil {
				p.Close()
			}
		}
		if err != nil {
			logger.Warn().Err(err).Msg("postgres not ready, retrying")
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}
