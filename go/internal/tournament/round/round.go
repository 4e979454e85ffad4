// Package round drives a single choose/collect/resolve cycle.
package round

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tourney/go/internal/models"
	"github.com/mcdev12/tourney/go/internal/tournament/broadcast"
	"github.com/mcdev12/tourney/go/internal/tournament/metrics"
	"github.com/mcdev12/tourney/go/internal/tournament/protocol"
	"github.com/mcdev12/tourney/go/internal/tournament/resolver"
	"github.com/rs/zerolog/log"
)

// ErrAborted is returned when the context is cancelled mid-round
var ErrAborted = errors.New("round aborted")

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// Phase is the coordinator's position in the round state machine
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhaseCollecting
	PhaseResolving
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseCollecting:
		return "collecting_choices"
	case PhaseResolving:
		return "resolving"
	case PhaseDone:
		return "done"
	default:
		return "idle"
	}
}

// Board is the submission table the coordinator drives
type Board interface {
	Clear()
	Open(participants []models.Endpoint)
	Close()
	CountValid(participants []models.Endpoint) int
	Snapshot() map[models.Endpoint]models.Choice
	Notify() <-chan struct{}
}

// Activity reports registry liveness
type Activity interface {
	IsActive(ep models.Endpoint) bool
}

// Sender is the broadcaster view used to request choices
type Sender interface {
	SendTo(ctx context.Context, message string, eps []models.Endpoint) broadcast.Report
}

// Result describes a resolved round
type Result struct {
	Number       int               `json:"number"`
	Participants []models.Endpoint `json:"participants"`
	Expected     int               `json:"expected"`
	Submitted    int               `json:"submitted"`
	TimedOut     bool              `json:"timed_out"`
	Outcome      resolver.Outcome  `json:"outcome"`
	Duration     time.Duration     `json:"duration"`
}

// Coordinator runs rounds one at a time. It is not safe to call Run
// concurrently; the session owns the coordinator.
type Coordinator struct {
	board    Board
	activity Activity
	sender   Sender
	clock    Clock
	timeout  time.Duration
	metrics  metrics.Collector

	phase atomic.Int32
}

// NewCoordinator creates a coordinator that waits at most timeout for choices
func NewCoordinator(board Board, activity Activity, sender Sender, clock Clock, timeout time.Duration, m metrics.Collector) *Coordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Coordinator{
		board:    board,
		activity: activity,
		sender:   sender,
		clock:    clock,
		timeout:  timeout,
		metrics:  metrics.OrNoOp(m),
	}
}

// Phase returns the current phase
func (c *Coordinator) Phase() Phase {
	return Phase(c.phase.Load())
}

func (c *Coordinator) setPhase(p Phase) {
	c.phase.Store(int32(p))
}

// Run plays round number with the given participants and returns its
// survivors. Survivors are always a subset of participants that were active
// at resolution time.
func (c *Coordinator) Run(ctx context.Context, number int, participants []models.Endpoint) (Result, error) {
	started := c.clock.Now()
	members := models.NewEndpointSet(participants...)

	// Starting
	c.setPhase(PhaseStarting)
	c.board.Clear()

	active := make([]models.Endpoint, 0, len(participants))
	for _, ep := range participants {
		if c.activity.IsActive(ep) {
			active = append(active, ep)
		}
	}
	expected := len(active)

	c.board.Open(participants)
	c.sender.SendTo(ctx, protocol.TokenChoose, active)

	log.Info().
		Int("round", number).
		Int("participants", len(participants)).
		Int("expected", expected).
		Msg("round started, waiting for choices")

	// CollectingChoices
	c.setPhase(PhaseCollecting)
	timedOut, err := c.collect(ctx, participants, expected)
	if err != nil {
		c.board.Close()
		c.setPhase(PhaseDone)
		return Result{}, err
	}

	// Resolving
	c.setPhase(PhaseResolving)
	c.board.Close()
	snapshot := c.board.Snapshot()

	valid := make(map[models.Endpoint]models.Choice, len(snapshot))
	for ep, choice := range snapshot {
		if !members.Has(ep) || !choice.Valid() {
			continue
		}
		if !c.activity.IsActive(ep) {
			continue
		}
		valid[ep] = choice
	}

	outcome, err := resolver.Resolve(valid)
	if err != nil {
		c.setPhase(PhaseDone)
		return Result{}, fmt.Errorf("resolve round %d: %w", number, err)
	}

	result := Result{
		Number:       number,
		Participants: models.SortEndpoints(append([]models.Endpoint(nil), participants...)),
		Expected:     expected,
		Submitted:    len(valid),
		TimedOut:     timedOut,
		Outcome:      outcome,
		Duration:     c.clock.Now().Sub(started),
	}
	c.metrics.RecordRound(string(outcome.Kind), timedOut, result.Duration)
	c.setPhase(PhaseDone)

	log.Info().
		Int("round", number).
		Str("outcome", string(outcome.Kind)).
		Int("submitted", result.Submitted).
		Int("survivors", len(outcome.Survivors)).
		Bool("timed_out", timedOut).
		Msg("round resolved")

	return result, nil
}

// collect blocks until every expected participant has a valid choice on the
// board, the deadline passes, or ctx is cancelled. It reports whether the
// deadline was hit.
func (c *Coordinator) collect(ctx context.Context, participants []models.Endpoint, expected int) (bool, error) {
	if expected == 0 {
		return false, nil
	}
	if c.board.CountValid(participants) >= expected {
		return false, nil
	}

	timer := c.clock.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
		case <-timer.Chan():
			log.Info().
				Dur("timeout", c.timeout).
				Int("expected", expected).
				Msg("collection window timed out")
			return true, nil
		case <-c.board.Notify():
			if c.board.CountValid(participants) >= expected {
				return false, nil
			}
		}
	}
}
