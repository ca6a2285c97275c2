package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"subscription-api/internal/domain/ports/repository"
	"subscription-api/internal/infra/metrics"
)

// PoolStater is satisfied by *pgxpool.Pool.
type PoolStater interface {
	Stat() *pgxpool.Stat
}

// StatsWorker periodically publishes account totals per status and
// connection pool usage as gauges.
type StatsWorker struct {
	interval time.Duration
	accounts repository.AccountRepository
	pool     PoolStater // optional
	log      *zerolog.Logger
}

func NewStatsWorker(interval time.Duration, accounts repository.AccountRepository, pool PoolStater, logger *zerolog.Logger) *StatsWorker {
	l := logger.With().Str("component", "StatsWorker").Logger()
	return &StatsWorker{
		interval: interval,
		accounts: accounts,
		pool:     pool,
		log:      &l,
	}
}

// Run collects once immediately and then on every tick until ctx is done.
func (w *StatsWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting stats worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.collect(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stats worker")
			return ctx.Err()
		case <-ticker.C:
			w.collect(ctx)
		}
	}
}

func (w *StatsWorker) collect(ctx context.Context) {
	counts, err := w.accounts.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("stats worker: count accounts")
		}
	} else {
		metrics.SetAccountsTotal(counts)
	}

	if w.pool != nil {
		st := w.pool.Stat()
		metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
	}
}
