package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tourney/go/internal/config"
	"github.com/mcdev12/tourney/go/internal/tournament/admin"
	"github.com/mcdev12/tourney/go/internal/tournament/board"
	"github.com/mcdev12/tourney/go/internal/tournament/broadcast"
	"github.com/mcdev12/tourney/go/internal/tournament/events"
	"github.com/mcdev12/tourney/go/internal/tournament/gateway"
	"github.com/mcdev12/tourney/go/internal/tournament/metrics"
	"github.com/mcdev12/tourney/go/internal/tournament/registry"
	"github.com/mcdev12/tourney/go/internal/tournament/round"
	"github.com/mcdev12/tourney/go/internal/tournament/server"
	"github.com/mcdev12/tourney/go/internal/tournament/session"
	"github.com/prometheus/client_golang/prometheus"
)

type Services struct {
	Registry    *registry.Registry
	Monitor     *registry.Monitor
	Board       *board.Board
	Broadcaster *broadcast.Broadcaster
	Rounds      *round.Coordinator
	Sessions    *session.Manager
	Dispatcher  *server.Dispatcher
	Hub         *gateway.Hub
	Admin       *admin.Handler

	jetstream *events.JetStreamPublisher
}

func setupServices(ctx context.Context, cfg config.Config, transport broadcast.Transport, reg prometheus.Registerer) (*Services, error) {
	// Wire up dependency chain
	// Registry → Board → Broadcaster → Round → Session
	clock := clockwork.NewRealClock()
	m := metrics.NewPrometheus(reg)

	registrySvc := registry.New(clock)
	monitor := registry.NewMonitor(registrySvc, clock, cfg.Liveness.SweepInterval, cfg.Liveness.Timeout, m)
	boardSvc := board.New(registrySvc)
	broadcaster := broadcast.New(transport, registrySvc, m)
	rounds := round.NewCoordinator(boardSvc, registrySvc, broadcaster, clock, cfg.Round.CollectTimeout, m)

	hub := gateway.NewHub(gateway.DefaultConnectionConfig())
	publishers := events.FanOut{events.LogPublisher{}, hub}

	var js *events.JetStreamPublisher
	if cfg.NATSEnabled() {
		var err error
		js, err = events.NewJetStreamPublisher(ctx, events.JetStreamConfigFrom(cfg.NATS))
		if err != nil {
			return nil, fmt.Errorf("setup JetStream publisher: %w", err)
		}
		publishers = append(publishers, js)
	}

	sessions := session.NewManager(registrySvc, rounds, broadcaster, publishers, clock, session.Config{
		RoundInterval:  cfg.Round.Interval,
		CollectTimeout: cfg.Round.CollectTimeout,
		MaxRounds:      cfg.Round.MaxRounds,
	}, m)

	return &Services{
		Registry:    registrySvc,
		Monitor:     monitor,
		Board:       boardSvc,
		Broadcaster: broadcaster,
		Rounds:      rounds,
		Sessions:    sessions,
		Dispatcher:  server.NewDispatcher(registrySvc, boardSvc, m),
		Hub:         hub,
		Admin:       admin.NewHandler(sessions, registrySvc, broadcaster),
		jetstream:   js,
	}, nil
}

// Close releases external connections
func (s *Services) Close() error {
	if s.jetstream != nil {
		return s.jetstream.Close()
	}
	return nil
}
