package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SessionSweeper drops checkout sessions idle for longer than idle.
type SessionSweeper interface {
	SweepSessions(idle time.Duration) int
}

// Sweeper evicts expired entries and reports how many went.
type Sweeper interface {
	Sweep() int
}

// SessionJanitor periodically evicts idle checkout sessions, expired widget
// sessions and expired entries of the process-local stores (intents, guard
// locks, rate-limit buckets).
type SessionJanitor struct {
	interval time.Duration
	idle     time.Duration
	sessions SessionSweeper
	widgets  Sweeper
	stores   []Sweeper
	log      *zerolog.Logger
}

func NewSessionJanitor(interval, idle time.Duration, sessions SessionSweeper, widgets Sweeper, logger *zerolog.Logger, stores ...Sweeper) *SessionJanitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if idle <= 0 {
		idle = time.Hour
	}
	l := logger.With().Str("component", "SessionJanitor").Logger()
	return &SessionJanitor{
		interval: interval,
		idle:     idle,
		sessions: sessions,
		widgets:  widgets,
		stores:   stores,
		log:      &l,
	}
}

func (j *SessionJanitor) Run(ctx context.Context) error {
	j.log.Info().Dur("interval", j.interval).Msg("Starting session janitor")
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("Stopping session janitor")
			return ctx.Err()
		case <-ticker.C:
			j.tick()
		}
	}
}

func (j *SessionJanitor) tick() {
	// widgets first: an expired widget moves its session back out of flight
	closed := 0
	if j.widgets != nil {
		closed = j.widgets.Sweep()
	}
	dropped := j.sessions.SweepSessions(j.idle)
	evicted := 0
	for _, st := range j.stores {
		evicted += st.Sweep()
	}
	if closed > 0 || dropped > 0 || evicted > 0 {
		j.log.Info().Int("widgets_expired", closed).Int("sessions_dropped", dropped).Int("state_evicted", evicted).Msg("checkout sessions swept")
	}
}
