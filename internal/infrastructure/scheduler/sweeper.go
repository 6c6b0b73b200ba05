// Package scheduler drives the demo identity purge on a fixed interval.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/grafeo/grafeo-api/internal/api/metrics"
	"github.com/grafeo/grafeo-api/internal/core/ports"
)

const defaultInterval = 30 * time.Second

// LockName identifies the sweep lock shared by all replicas.
const LockName = "demo-sweep"

// Locker serialises sweep cycles across replicas.
type Locker interface {
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context) error
}

// Sweeper runs DemoLifecycle.Sweep on a ticker until its context ends. Cycles
// never overlap: the loop is sequential and, when a Locker is configured, a
// replica skips a tick while another one holds the lock.
type Sweeper struct {
	demos    ports.DemoLifecycle
	lock     Locker
	interval time.Duration
	log      zerolog.Logger
}

// NewSweeper creates a Sweeper. lock may be nil for single-replica setups.
func NewSweeper(demos ports.DemoLifecycle, lock Locker, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Sweeper{
		demos:    demos,
		lock:     lock,
		interval: interval,
		log:      log.With().Str("component", "demo_sweeper").Logger(),
	}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("demo sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("demo sweeper stopped")
			return
		case <-ticker.C:
			_, _ = s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single cycle, honouring the lock when present. A cycle
// skipped because another replica holds the lock returns an empty report and
// no error.
func (s *Sweeper) RunOnce(ctx context.Context) (ports.SweepReport, error) {
	if s.lock != nil {
		// The lease outlives one interval so a slow cycle keeps exclusivity
		// until it releases explicitly.
		ok, err := s.lock.Acquire(ctx, 2*s.interval)
		if err != nil {
			s.log.Warn().Err(err).Msg("sweep lock unavailable, skipping cycle")
			metrics.DemoSweepsTotal.WithLabelValues("lock_error").Inc()
			return ports.SweepReport{}, err
		}
		if !ok {
			s.log.Debug().Msg("sweep held by another replica")
			metrics.DemoSweepsTotal.WithLabelValues("skipped").Inc()
			return ports.SweepReport{}, nil
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn().Err(err).Msg("failed to release sweep lock")
			}
		}()
	}

	report, err := s.demos.Sweep(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("demo sweep failed, retrying next cycle")
		metrics.DemoSweepsTotal.WithLabelValues("error").Inc()
		return report, err
	}

	metrics.DemoSweepsTotal.WithLabelValues("ok").Inc()
	metrics.DemoSweepDuration.Observe(report.Duration.Seconds())
	metrics.DemoIdentitiesPurgedTotal.Add(float64(report.Purged))
	metrics.DemoPurgeFailuresTotal.Add(float64(report.Failed))
	return report, nil
}
