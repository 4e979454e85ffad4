package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/tourney/go/internal/models"
)

// Event types published by the session
const (
	TypeTournamentStarted  = "TournamentStarted"
	TypeRoundStarted       = "RoundStarted"
	TypeRoundResolved      = "RoundResolved"
	TypeTournamentFinished = "TournamentFinished"
	TypeTournamentAborted  = "TournamentAborted"
)

// Envelope wraps one domain event for every publisher
type Envelope struct {
	ID        uuid.UUID       `json:"event_id"`
	Type      string          `json:"event_type"`
	SessionID uuid.UUID       `json:"session_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload and stamps a fresh event id
func NewEnvelope(eventType string, sessionID uuid.UUID, at time.Time, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		ID:        uuid.New(),
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: at.UTC(),
		Payload:   data,
	}, nil
}

// TournamentStartedPayload is the payload for a TournamentStarted event
type TournamentStartedPayload struct {
	Participants []models.Endpoint `json:"participants"`
	StartedAt    time.Time         `json:"started_at"`
	MaxRounds    int               `json:"max_rounds"`
}

// RoundStartedPayload is the payload for a RoundStarted event
type RoundStartedPayload struct {
	Round        int               `json:"round"`
	Participants []models.Endpoint `json:"participants"`
	Deadline     time.Time         `json:"deadline"`
}

// RoundResolvedPayload is the payload for a RoundResolved event
type RoundResolvedPayload struct {
	Round     int               `json:"round"`
	Outcome   string            `json:"outcome"`
	Message   string            `json:"message"`
	Winning   models.Choice     `json:"winning,omitempty"`
	Survivors []models.Endpoint `json:"survivors"`
	Expected  int               `json:"expected"`
	Submitted int               `json:"submitted"`
	TimedOut  bool              `json:"timed_out"`
}

// TournamentFinishedPayload is the payload for a TournamentFinished event.
// Winner is empty when nobody is left.
type TournamentFinishedPayload struct {
	Winner     models.Endpoint `json:"winner,omitempty"`
	WinnerName string          `json:"winner_name,omitempty"`
	Rounds     int             `json:"rounds"`
	Reason     string          `json:"reason"`
	FinishedAt time.Time       `json:"finished_at"`
	Duration   string          `json:"duration"`
}

// TournamentAbortedPayload is the payload for a TournamentAborted event
type TournamentAbortedPayload struct {
	Round     int               `json:"round"`
	Remaining []models.Endpoint `json:"remaining"`
	Reason    string            `json:"reason"`
	AbortedAt time.Time         `json:"aborted_at"`
}
