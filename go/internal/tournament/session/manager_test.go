package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tourney/go/internal/models"
	"github.com/mcdev12/tourney/go/internal/testutil"
	"github.com/mcdev12/tourney/go/internal/tournament/board"
	"github.com/mcdev12/tourney/go/internal/tournament/broadcast"
	"github.com/mcdev12/tourney/go/internal/tournament/events"
	"github.com/mcdev12/tourney/go/internal/tournament/protocol"
	"github.com/mcdev12/tourney/go/internal/tournament/registry"
	"github.com/mcdev12/tourney/go/internal/tournament/resolver"
	"github.com/mcdev12/tourney/go/internal/tournament/round"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	e1 models.Endpoint = "10.0.0.1:1"
	e2 models.Endpoint = "10.0.0.2:1"
	e3 models.Endpoint = "10.0.0.3:1"
)

type runFunc func(ctx context.Context, number int, participants []models.Endpoint) (round.Result, error)

// stubRunner replays scripted rounds and records the participant sets it saw
type stubRunner struct {
	mu    sync.Mutex
	calls [][]models.Endpoint
	run   runFunc
}

func (s *stubRunner) Run(ctx context.Context, number int, participants []models.Endpoint) (round.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, append([]models.Endpoint(nil), participants...))
	s.mu.Unlock()
	return s.run(ctx, number, participants)
}

func (s *stubRunner) Phase() round.Phase { return round.PhaseCollecting }

func (s *stubRunner) Calls() [][]models.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]models.Endpoint(nil), s.calls...)
}

func survive(survivors ...models.Endpoint) runFunc {
	return func(_ context.Context, number int, participants []models.Endpoint) (round.Result, error) {
		return round.Result{
			Number:       number,
			Participants: participants,
			Outcome: resolver.Outcome{
				Kind:      resolver.OutcomeWin,
				Message:   "Rock beats scissors!",
				Survivors: survivors,
			},
		}, nil
	}
}

func blockUntilCancelled(ctx context.Context, _ int, _ []models.Endpoint) (round.Result, error) {
	<-ctx.Done()
	return round.Result{}, fmt.Errorf("%w: %w", round.ErrAborted, ctx.Err())
}

type harness struct {
	clock     *clockwork.FakeClock
	registry  *registry.Registry
	transport *testutil.RecordingTransport
	recorder  *events.Recorder
	manager   *Manager
	cancel    context.CancelFunc
	done      chan error
}

func newHarness(t *testing.T, runner RoundRunner, cfg Config, eps ...models.Endpoint) *harness {
	t.Helper()

	clock := clockwork.NewFakeClock()
	reg := registry.New(clock)
	for _, ep := range eps {
		reg.Register(ep, "name-"+string(ep), "")
	}
	transport := testutil.NewRecordingTransport()
	recorder := &events.Recorder{}
	sender := broadcast.New(transport, reg, nil)

	h := &harness{
		clock:     clock,
		registry:  reg,
		transport: transport,
		recorder:  recorder,
		manager:   NewManager(reg, runner, sender, recorder, clock, cfg, nil),
		done:      make(chan error, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.manager.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func (h *harness) waitFinished(t *testing.T) Summary {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.manager.Status().State == StateFinished
	}, 2*time.Second, 5*time.Millisecond)
	return h.manager.Status()
}

func TestStatusIdleBeforeAnySession(t *testing.T) {
	h := newHarness(t, &stubRunner{run: survive()}, Config{})
	assert.Equal(t, StateIdle, h.manager.Status().State)
}

func TestStartRequiresTwoActive(t *testing.T) {
	for _, eps := range [][]models.Endpoint{nil, {e1}} {
		h := newHarness(t, &stubRunner{run: survive()}, Config{}, eps...)

		res, err := h.manager.Start(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StartNotEnoughPlayers, res.Status)
		assert.Equal(t, len(eps), res.Participants)
		assert.Empty(t, h.transport.All())
	}
}

func TestSessionProducesWinner(t *testing.T) {
	runner := &stubRunner{run: survive(e1)}
	h := newHarness(t, runner, Config{MaxRounds: 10}, e1, e2, e3)

	res, err := h.manager.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StartStarted, res.Status)
	assert.Equal(t, 3, res.Participants)

	summary := h.waitFinished(t)
	assert.Equal(t, ResultWinner, summary.Result)
	assert.Equal(t, e1, summary.Winner)
	assert.Equal(t, "name-"+string(e1), summary.WinnerName)
	assert.Equal(t, 1, summary.Round)
	assert.Equal(t, res.SessionID, summary.ID)

	assert.Equal(t, []string{
		protocol.TournamentStarting(3),
		"Rock beats scissors!",
		protocol.Winner("name-"+string(e1), e1),
	}, h.transport.MessagesTo(e2))

	assert.Equal(t, []string{
		events.TypeTournamentStarted,
		events.TypeRoundStarted,
		events.TypeRoundResolved,
		events.TypeTournamentFinished,
	}, h.recorder.Types())
}

func TestSessionNoSubmissionsEndsWithoutWinner(t *testing.T) {
	h := newHarness(t, &stubRunner{run: survive()}, Config{}, e1, e2)

	_, err := h.manager.Start(context.Background())
	require.NoError(t, err)

	summary := h.waitFinished(t)
	assert.Equal(t, ResultNoWinner, summary.Result)
	assert.Empty(t, summary.Winner)
	assert.Contains(t, h.transport.MessagesTo(e1), protocol.AnnounceNoWinner)
}

func TestSessionRefiltersInactiveBetweenRounds(t *testing.T) {
	var h *harness
	runner := &stubRunner{}
	runner.run = func(ctx context.Context, number int, participants []models.Endpoint) (round.Result, error) {
		if number == 1 {
			// e3 falls silent during round one while the others keep pinging
			h.clock.Advance(11 * time.Second)
			h.registry.Heartbeat(e1)
			h.registry.Heartbeat(e2)
			h.registry.Sweep(h.clock.Now(), 10*time.Second)
			return survive(e1, e2, e3)(ctx, number, participants)
		}
		return survive(e2)(ctx, number, participants)
	}
	h = newHarness(t, runner, Config{}, e1, e2, e3)

	_, err := h.manager.Start(context.Background())
	require.NoError(t, err)
	summary := h.waitFinished(t)

	calls := runner.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []models.Endpoint{e1, e2, e3}, calls[0])
	assert.Equal(t, []models.Endpoint{e1, e2}, calls[1])
	assert.Equal(t, e2, summary.Winner)

	for i := 1; i < len(calls); i++ {
		assert.LessOrEqual(t, len(calls[i]), len(calls[i-1]))
	}
}

func TestSessionIgnoresSurvivorsOutsideRound(t *testing.T) {
	// e3 never joined, a runner reporting it must not grow the set
	runner := &stubRunner{run: survive(e1, e3)}
	h := newHarness(t, runner, Config{}, e1, e2)

	_, err := h.manager.Start(context.Background())
	require.NoError(t, err)

	summary := h.waitFinished(t)
	assert.Equal(t, ResultWinner, summary.Result)
	assert.Equal(t, e1, summary.Winner)
	assert.Equal(t, []models.Endpoint{e1}, summary.Participants)
}

func TestSessionRoundLimit(t *testing.T) {
	runner := &stubRunner{run: survive(e1, e2)}
	h := newHarness(t, runner, Config{MaxRounds: 3}, e1, e2)

	_, err := h.manager.Start(context.Background())
	require.NoError(t, err)

	summary := h.waitFinished(t)
	assert.Equal(t, ResultRoundLimit, summary.Result)
	assert.Len(t, runner.Calls(), 3)
	assert.Contains(t, h.transport.MessagesTo(e1), protocol.AnnounceNoWinner)
}

func TestSecondStartRejectedWhileRunning(t *testing.T) {
	h := newHarness(t, &stubRunner{run: blockUntilCancelled}, Config{}, e1, e2)

	first, err := h.manager.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, StartStarted, first.Status)

	second, err := h.manager.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StartAlreadyRunning, second.Status)

	status := h.manager.Status()
	assert.Equal(t, StateRunning, status.State)
	assert.Equal(t, round.PhaseCollecting.String(), status.Phase)
}

func TestShutdownAbortsRunningSession(t *testing.T) {
	h := newHarness(t, &stubRunner{run: blockUntilCancelled}, Config{}, e1, e2)

	_, err := h.manager.Start(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return h.manager.Status().Round == 1
	}, time.Second, 5*time.Millisecond)

	h.cancel()
	select {
	case err := <-h.done:
		require.NoError(t, err)
		h.done <- nil
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not stop")
	}

	summary := h.manager.Status()
	assert.Equal(t, ResultAborted, summary.Result)
	assert.Equal(t, []string{protocol.TournamentStarting(2), protocol.AnnounceAborted}, h.transport.MessagesTo(e1))
	assert.Contains(t, h.recorder.Types(), events.TypeTournamentAborted)

	_, err = h.manager.Start(context.Background())
	assert.ErrorIs(t, err, ErrManagerStopped)
}

func TestShutdownDuringRoundInterval(t *testing.T) {
	runner := &stubRunner{run: survive(e1, e2)}
	h := newHarness(t, runner, Config{RoundInterval: time.Second}, e1, e2)

	_, err := h.manager.Start(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))

	h.cancel()
	summary := h.waitFinished(t)
	assert.Equal(t, ResultAborted, summary.Result)
	assert.Equal(t, 1, summary.Round)
}

func TestRoundErrorAbortsWithError(t *testing.T) {
	boom := fmt.Errorf("resolve round 1: %w", resolver.ErrInvariantViolation)
	runner := &stubRunner{run: func(context.Context, int, []models.Endpoint) (round.Result, error) {
		return round.Result{}, boom
	}}
	h := newHarness(t, runner, Config{}, e1, e2)

	_, err := h.manager.Start(context.Background())
	require.NoError(t, err)

	summary := h.waitFinished(t)
	assert.Equal(t, ResultError, summary.Result)
	assert.Contains(t, summary.Error, resolver.ErrInvariantViolation.Error())
	assert.Contains(t, h.transport.MessagesTo(e2), protocol.AnnounceAborted)
}

func TestFullTournamentWithRealRounds(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := registry.New(clock)
	reg.Register(e1, "alice", "")
	reg.Register(e2, "bob", "")
	reg.Register(e3, "carol", "")

	b := board.New(reg)
	answers := map[models.Endpoint]models.Choice{
		e1: models.ChoiceRock,
		e2: models.ChoiceScissors,
		e3: models.ChoiceScissors,
	}
	transport := testutil.NewRecordingTransport()
	transport.OnSend(func(s testutil.Sent) {
		if s.Payload == protocol.TokenChoose {
			_ = b.Submit(s.To, answers[s.To])
		}
	})
	sender := broadcast.New(transport, reg, nil)
	coord := round.NewCoordinator(b, reg, sender, clock, 15*time.Second, nil)
	manager := NewManager(reg, coord, sender, nil, clock, Config{MaxRounds: 100}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- manager.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	res, err := manager.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, StartStarted, res.Status)

	require.Eventually(t, func() bool {
		return manager.Status().State == StateFinished
	}, 2*time.Second, 5*time.Millisecond)

	summary := manager.Status()
	assert.Equal(t, ResultWinner, summary.Result)
	assert.Equal(t, e1, summary.Winner)
	assert.Equal(t, []string{
		"TOURNAMENT STARTING! Participants: 3",
		"CHOOSE",
		"Rock beats scissors!",
		"WINNER: alice (10.0.0.1:1)!!!",
	}, transport.MessagesTo(e3))
}
