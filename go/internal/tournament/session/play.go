package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mcdev12/tourney/go/internal/models"
	"github.com/mcdev12/tourney/go/internal/tournament/events"
	"github.com/mcdev12/tourney/go/internal/tournament/protocol"
	"github.com/mcdev12/tourney/go/internal/tournament/round"
	"github.com/rs/zerolog/log"
)

// play runs one session to completion. The participant set only shrinks.
func (m *Manager) play(ctx context.Context, id uuid.UUID, initial []models.Endpoint) {
	logger := log.With().Str("session_id", id.String()).Logger()
	participants := append([]models.Endpoint(nil), initial...)

	m.announcer.SendTo(ctx, protocol.TournamentStarting(len(participants)), participants)
	m.publish(ctx, id, events.TypeTournamentStarted, events.TournamentStartedPayload{
		Participants: participants,
		StartedAt:    m.clock.Now(),
		MaxRounds:    m.cfg.MaxRounds,
	})
	logger.Info().Int("participants", len(participants)).Msg("tournament started")

	number := 0
	for {
		if ctx.Err() != nil {
			m.abort(ctx, id, number, participants, ResultAborted, ctx.Err())
			return
		}

		participants = m.stillActive(participants)
		m.update(func(s *Summary) { s.Participants = participants })

		if len(participants) < MinParticipants {
			m.finish(ctx, id, number, initial, participants)
			return
		}
		if m.cfg.MaxRounds > 0 && number >= m.cfg.MaxRounds {
			logger.Warn().Int("max_rounds", m.cfg.MaxRounds).Msg("round limit reached")
			m.complete(ctx, id, number, initial, "", ResultRoundLimit)
			return
		}

		number++
		m.update(func(s *Summary) { s.Round = number })
		m.publish(ctx, id, events.TypeRoundStarted, events.RoundStartedPayload{
			Round:        number,
			Participants: participants,
			Deadline:     m.clock.Now().Add(m.cfg.CollectTimeout),
		})

		res, err := m.rounds.Run(ctx, number, participants)
		if err != nil {
			if errors.Is(err, round.ErrAborted) {
				m.abort(ctx, id, number, participants, ResultAborted, err)
			} else {
				logger.Error().Err(err).Int("round", number).Msg("round failed, aborting tournament")
				m.abort(ctx, id, number, participants, ResultError, err)
			}
			return
		}

		m.announcer.SendTo(ctx, res.Outcome.Message, res.Participants)
		m.publish(ctx, id, events.TypeRoundResolved, events.RoundResolvedPayload{
			Round:     number,
			Outcome:   string(res.Outcome.Kind),
			Message:   res.Outcome.Message,
			Winning:   res.Outcome.Winning,
			Survivors: res.Outcome.Survivors,
			Expected:  res.Expected,
			Submitted: res.Submitted,
			TimedOut:  res.TimedOut,
		})

		participants = m.survivorsOf(participants, res.Outcome.Survivors)
		m.update(func(s *Summary) {
			s.Participants = participants
			r := res
			s.LastRound = &r
		})

		if !m.pause(ctx) {
			m.abort(ctx, id, number, participants, ResultAborted, ctx.Err())
			return
		}
	}
}

// pause waits RoundInterval and reports false if ctx was cancelled first
func (m *Manager) pause(ctx context.Context) bool {
	if m.cfg.RoundInterval <= 0 {
		return ctx.Err() == nil
	}
	timer := m.clock.NewTimer(m.cfg.RoundInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func (m *Manager) stillActive(eps []models.Endpoint) []models.Endpoint {
	out := make([]models.Endpoint, 0, len(eps))
	for _, ep := range eps {
		if m.roster.IsActive(ep) {
			out = append(out, ep)
		}
	}
	return out
}

// survivorsOf keeps only survivors that were in the round, so a faulty
// runner can never grow the set.
func (m *Manager) survivorsOf(participants, survivors []models.Endpoint) []models.Endpoint {
	members := models.NewEndpointSet(participants...)
	out := make([]models.Endpoint, 0, len(survivors))
	for _, ep := range survivors {
		if members.Has(ep) {
			out = append(out, ep)
		}
	}
	return models.SortEndpoints(out)
}

func (m *Manager) finish(ctx context.Context, id uuid.UUID, rounds int, initial, remaining []models.Endpoint) {
	if len(remaining) == 1 {
		m.complete(ctx, id, rounds, initial, remaining[0], ResultWinner)
		return
	}
	m.complete(ctx, id, rounds, initial, "", ResultNoWinner)
}

// complete announces the result to every initial participant still active
func (m *Manager) complete(ctx context.Context, id uuid.UUID, rounds int, initial []models.Endpoint, winner models.Endpoint, result Result) {
	var name string
	announcement := protocol.AnnounceNoWinner
	if winner != "" {
		if p, ok := m.roster.Lookup(winner); ok {
			name = p.Name
		}
		announcement = protocol.Winner(name, winner)
	}
	m.announcer.SendTo(ctx, announcement, initial)

	now := m.clock.Now()
	started := m.Status().StartedAt
	m.publish(ctx, id, events.TypeTournamentFinished, events.TournamentFinishedPayload{
		Winner:     winner,
		WinnerName: name,
		Rounds:     rounds,
		Reason:     string(result),
		FinishedAt: now,
		Duration:   now.Sub(started).String(),
	})

	m.end(result, func(s *Summary) {
		s.Winner = winner
		s.WinnerName = name
	})

	log.Info().
		Str("session_id", id.String()).
		Str("result", string(result)).
		Str("winner", winner.String()).
		Int("rounds", rounds).
		Msg("tournament finished")
}

// abort notifies the remaining participants. It runs after shutdown has
// begun, so sends use a context that is not cancelled.
func (m *Manager) abort(ctx context.Context, id uuid.UUID, number int, remaining []models.Endpoint, result Result, cause error) {
	notifyCtx := context.WithoutCancel(ctx)

	m.announcer.SendTo(notifyCtx, protocol.AnnounceAborted, remaining)

	reason := string(result)
	if cause != nil {
		reason = cause.Error()
	}
	m.publish(notifyCtx, id, events.TypeTournamentAborted, events.TournamentAbortedPayload{
		Round:     number,
		Remaining: remaining,
		Reason:    reason,
		AbortedAt: m.clock.Now(),
	})

	m.end(result, func(s *Summary) {
		s.Participants = remaining
		if result == ResultError {
			s.Error = reason
		}
	})

	log.Warn().
		Str("session_id", id.String()).
		Int("round", number).
		Int("remaining", len(remaining)).
		Str("reason", reason).
		Msg("tournament aborted")
}

func (m *Manager) end(result Result, apply func(s *Summary)) {
	now := m.clock.Now()

	m.mu.Lock()
	if m.current != nil {
		apply(m.current)
		m.current.State = StateFinished
		m.current.Result = result
		m.current.FinishedAt = &now
	}
	m.running = false
	m.mu.Unlock()

	m.metrics.RecordSession(string(result))
}

func (m *Manager) update(apply func(s *Summary)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		apply(m.current)
	}
}

func (m *Manager) publish(ctx context.Context, id uuid.UUID, eventType string, payload any) {
	env, err := events.NewEnvelope(eventType, id, m.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}
	if err := m.publisher.Publish(ctx, env); err != nil {
		log.Error().
			Err(err).
			Str("event_type", eventType).
			Str("session_id", id.String()).
			Msg("failed to publish event")
	}
}
