package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"edu-storefront/internal/infra/metrics"
)

// PoolStater is satisfied by *pgxpool.Pool.
type PoolStater interface {
	Stat() *pgxpool.Stat
}

// PoolStatsWorker publishes connection pool gauges on an interval.
type PoolStatsWorker struct {
	interval time.Duration
	pool     PoolStater
	log      *zerolog.Logger
}

func NewPoolStatsWorker(interval time.Duration, pool PoolStater, logger *zerolog.Logger) *PoolStatsWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	l := logger.With().Str("component", "PoolStatsWorker").Logger()
	return &PoolStatsWorker{interval: interval, pool: pool, log: &l}
}

func (w *PoolStatsWorker) Run(ctx context.Context) error {
	w.log.Debug().Msg("Starting pool stats worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.publish()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.publish()
		}
	}
}

func (w *PoolStatsWorker) publish() {
	s := w.pool.Stat()
	metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
}
