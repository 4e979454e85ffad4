package round

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tourney/go/internal/models"
	"github.com/mcdev12/tourney/go/internal/testutil"
	"github.com/mcdev12/tourney/go/internal/tournament/board"
	"github.com/mcdev12/tourney/go/internal/tournament/broadcast"
	"github.com/mcdev12/tourney/go/internal/tournament/protocol"
	"github.com/mcdev12/tourney/go/internal/tournament/registry"
	"github.com/mcdev12/tourney/go/internal/tournament/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	e1 models.Endpoint = "10.0.0.1:1"
	e2 models.Endpoint = "10.0.0.2:1"
	e3 models.Endpoint = "10.0.0.3:1"
)

type fixture struct {
	clock     *clockwork.FakeClock
	registry  *registry.Registry
	board     *board.Board
	transport *testutil.RecordingTransport
	coord     *Coordinator
}

// newFixture registers eps and answers CHOOSE with the given choices.
// Endpoints missing from answers stay silent.
func newFixture(t *testing.T, answers map[models.Endpoint]models.Choice, eps ...models.Endpoint) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClock()
	reg := registry.New(clock)
	for _, ep := range eps {
		reg.Register(ep, string(ep), "")
	}
	b := board.New(reg)
	transport := testutil.NewRecordingTransport()
	transport.OnSend(func(s testutil.Sent) {
		if s.Payload != protocol.TokenChoose {
			return
		}
		if choice, ok := answers[s.To]; ok {
			_ = b.Submit(s.To, choice)
		}
	})

	sender := broadcast.New(transport, reg, nil)
	return &fixture{
		clock:     clock,
		registry:  reg,
		board:     b,
		transport: transport,
		coord:     NewCoordinator(b, reg, sender, clock, 15*time.Second, nil),
	}
}

func TestRunAllAnswer(t *testing.T) {
	f := newFixture(t, map[models.Endpoint]models.Choice{
		e1: models.ChoiceRock,
		e2: models.ChoiceScissors,
	}, e1, e2)

	res, err := f.coord.Run(context.Background(), 1, []models.Endpoint{e2, e1})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Number)
	assert.Equal(t, 2, res.Expected)
	assert.Equal(t, 2, res.Submitted)
	assert.False(t, res.TimedOut)
	assert.Equal(t, resolver.OutcomeWin, res.Outcome.Kind)
	assert.Equal(t, []models.Endpoint{e1}, res.Outcome.Survivors)
	assert.Equal(t, []models.Endpoint{e1, e2}, res.Participants)
	assert.Equal(t, PhaseDone, f.coord.Phase())
	assert.False(t, f.board.Collecting())

	assert.Equal(t, []string{protocol.TokenChoose}, f.transport.MessagesTo(e1))
}

func TestRunTimesOutWithPartialAnswers(t *testing.T) {
	f := newFixture(t, map[models.Endpoint]models.Choice{e1: models.ChoicePaper}, e1, e2)

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := f.coord.Run(context.Background(), 2, []models.Endpoint{e1, e2})
		done <- outcome{res, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, PhaseCollecting, f.coord.Phase())

	f.clock.Advance(15 * time.Second)

	select {
	case got := <-done:
		require.NoError(t, got.err)
		assert.True(t, got.res.TimedOut)
		assert.Equal(t, 1, got.res.Submitted)
		assert.Equal(t, resolver.OutcomeDraw, got.res.Outcome.Kind)
		assert.Equal(t, []models.Endpoint{e1}, got.res.Outcome.Survivors)
		assert.Equal(t, 15*time.Second, got.res.Duration)
	case <-time.After(time.Second):
		t.Fatal("round did not resolve after the deadline")
	}
}

func TestRunLateSubmissionWakesWaiter(t *testing.T) {
	f := newFixture(t, map[models.Endpoint]models.Choice{e1: models.ChoicePaper}, e1, e2)

	done := make(chan Result, 1)
	go func() {
		res, err := f.coord.Run(context.Background(), 1, []models.Endpoint{e1, e2})
		assert.NoError(t, err)
		done <- res
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))

	require.NoError(t, f.board.Submit(e2, models.ChoiceRock))

	select {
	case res := <-done:
		assert.False(t, res.TimedOut)
		assert.Equal(t, []models.Endpoint{e1}, res.Outcome.Survivors)
	case <-time.After(time.Second):
		t.Fatal("submission did not wake the round")
	}
}

func TestRunNoActiveParticipants(t *testing.T) {
	f := newFixture(t, nil, e1)
	f.clock.Advance(time.Minute)
	f.registry.Sweep(f.clock.Now(), 10*time.Second)

	res, err := f.coord.Run(context.Background(), 1, []models.Endpoint{e1})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Expected)
	assert.Equal(t, resolver.OutcomeNoSubmissions, res.Outcome.Kind)
	assert.Empty(t, res.Outcome.Survivors)
	assert.Empty(t, f.transport.All())
}

func TestRunExcludesEndpointsInactiveAtResolution(t *testing.T) {
	f := newFixture(t, map[models.Endpoint]models.Choice{
		e1: models.ChoiceRock,
		e2: models.ChoiceRock,
	}, e1, e2, e3)

	done := make(chan Result, 1)
	go func() {
		res, err := f.coord.Run(context.Background(), 1, []models.Endpoint{e1, e2, e3})
		assert.NoError(t, err)
		done <- res
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))

	// e2 goes silent past the liveness window while e1 keeps pinging
	f.clock.Advance(11 * time.Second)
	f.registry.Heartbeat(e1)
	f.registry.Sweep(f.clock.Now(), 10*time.Second)
	f.clock.Advance(4 * time.Second)

	select {
	case res := <-done:
		assert.True(t, res.TimedOut)
		assert.Equal(t, []models.Endpoint{e1}, res.Outcome.Survivors)
		for _, ep := range res.Outcome.Survivors {
			assert.True(t, f.registry.IsActive(ep))
		}
	case <-time.After(time.Second):
		t.Fatal("round did not resolve")
	}
}

func TestRunAbortsOnCancel(t *testing.T) {
	f := newFixture(t, nil, e1, e2)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := f.coord.Run(ctx, 1, []models.Endpoint{e1, e2})
		done <- err
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, f.clock.BlockUntilContext(waitCtx, 1))
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrAborted)
		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, f.board.Collecting())
	case <-time.After(time.Second):
		t.Fatal("round ignored cancellation")
	}
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "collecting_choices", PhaseCollecting.String())
}
