package registry

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tourney/go/internal/models"
	"github.com/mcdev12/tourney/go/internal/tournament/metrics"
	"github.com/rs/zerolog/log"
)

// Sweeper is the part of the registry the monitor drives
type Sweeper interface {
	Sweep(now time.Time, timeout time.Duration) []models.Endpoint
	ActiveCount() int
}

// Monitor periodically sweeps the registry. It is the only thing that marks
// participants inactive.
type Monitor struct {
	sweeper  Sweeper
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration
	metrics  metrics.Collector
}

// NewMonitor creates a liveness monitor sweeping every interval with the
// given liveness timeout.
func NewMonitor(sweeper Sweeper, clock clockwork.Clock, interval, timeout time.Duration, m metrics.Collector) *Monitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Monitor{
		sweeper:  sweeper,
		clock:    clock,
		interval: interval,
		timeout:  timeout,
		metrics:  metrics.OrNoOp(m),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", m.interval).
		Dur("timeout", m.timeout).
		Msg("liveness monitor started")

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("liveness monitor shutting down")
			return nil
		case <-ticker.Chan():
			m.sweep()
		}
	}
}

func (m *Monitor) sweep() {
	deactivated := m.sweeper.Sweep(m.clock.Now(), m.timeout)
	for _, ep := range deactivated {
		log.Info().Str("endpoint", ep.String()).Msg("participant went inactive")
	}

	active := m.sweeper.ActiveCount()
	m.metrics.SetActiveParticipants(active)
	log.Debug().
		Int("active", active).
		Int("deactivated", len(deactivated)).
		Msg("liveness sweep complete")
}
