// Package session runs tournaments: rounds are played until one or zero
// participants remain, and at most one tournament runs at a time.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tourney/go/internal/models"
	"github.com/mcdev12/tourney/go/internal/tournament/broadcast"
	"github.com/mcdev12/tourney/go/internal/tournament/events"
	"github.com/mcdev12/tourney/go/internal/tournament/metrics"
	"github.com/mcdev12/tourney/go/internal/tournament/round"
	"github.com/rs/zerolog/log"
)

// ErrManagerStopped is returned by Start once Run has returned
var ErrManagerStopped = errors.New("session manager stopped")

// Clock is the interface we use for time operations.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// Roster is the registry view a session needs
type Roster interface {
	SnapshotActive() []models.Endpoint
	IsActive(ep models.Endpoint) bool
	Lookup(ep models.Endpoint) (models.Participant, bool)
}

// RoundRunner plays one round
type RoundRunner interface {
	Run(ctx context.Context, number int, participants []models.Endpoint) (round.Result, error)
	Phase() round.Phase
}

// Announcer sends status strings to participants
type Announcer interface {
	SendTo(ctx context.Context, message string, eps []models.Endpoint) broadcast.Report
}

// Config paces a session
type Config struct {
	// RoundInterval is the pause between rounds; zero skips it
	RoundInterval time.Duration
	// CollectTimeout is only used to stamp RoundStarted deadlines
	CollectTimeout time.Duration
	// MaxRounds bounds a session; zero means unlimited
	MaxRounds int
}

type startRequest struct {
	reply chan StartResult
}

// Manager owns session lifecycles. Start requests are serialized through
// Run, so the running check and the transition to Running never race.
type Manager struct {
	roster    Roster
	rounds    RoundRunner
	announcer Announcer
	publisher events.Publisher
	clock     Clock
	cfg       Config
	metrics   metrics.Collector

	startCh chan startRequest
	stopped chan struct{}
	wg      sync.WaitGroup

	mu      sync.RWMutex
	running bool
	current *Summary
}

func NewManager(roster Roster, rounds RoundRunner, announcer Announcer, publisher events.Publisher, clock Clock, cfg Config, m metrics.Collector) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &Manager{
		roster:    roster,
		rounds:    rounds,
		announcer: announcer,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		metrics:   metrics.OrNoOp(m),
		startCh:   make(chan startRequest),
		stopped:   make(chan struct{}),
	}
}

// Run serves start requests until ctx is cancelled, then waits for a
// running session to broadcast its abort notice and finish.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.stopped)
	log.Info().Msg("session manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("session manager shutting down")
			m.wg.Wait()
			return nil
		case req := <-m.startCh:
			req.reply <- m.handleStart(ctx)
		}
	}
}

// Start asks the manager to begin a tournament with the currently active
// participants.
func (m *Manager) Start(ctx context.Context) (StartResult, error) {
	req := startRequest{reply: make(chan StartResult, 1)}

	select {
	case m.startCh <- req:
	case <-m.stopped:
		return StartResult{}, ErrManagerStopped
	case <-ctx.Done():
		return StartResult{}, ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res, nil
	case <-ctx.Done():
		return StartResult{}, ctx.Err()
	}
}

// Status returns the current or most recent session. State is Idle when no
// session has ever started.
func (m *Manager) Status() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return Summary{State: StateIdle}
	}
	s := m.current.clone()
	if s.State == StateRunning {
		s.Phase = m.rounds.Phase().String()
	}
	return s
}

func (m *Manager) handleStart(ctx context.Context) StartResult {
	m.mu.RLock()
	running := m.running
	m.mu.RUnlock()
	if running {
		log.Warn().Msg("tournament start rejected, a session is already running")
		return StartResult{Status: StartAlreadyRunning}
	}

	participants := m.roster.SnapshotActive()
	if len(participants) < MinParticipants {
		log.Warn().
			Int("active", len(participants)).
			Int("required", MinParticipants).
			Msg("tournament start rejected, not enough active participants")
		return StartResult{Status: StartNotEnoughPlayers, Participants: len(participants)}
	}

	s := &Summary{
		ID:           uuid.New(),
		State:        StateRunning,
		Initial:      append([]models.Endpoint(nil), participants...),
		Participants: participants,
		StartedAt:    m.clock.Now(),
	}

	m.mu.Lock()
	m.running = true
	m.current = s
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.play(ctx, s.ID, s.Initial)
	}()

	return StartResult{Status: StartStarted, SessionID: s.ID, Participants: len(participants)}
}
