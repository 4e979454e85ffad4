package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/tourney/go/internal/models"
	"github.com/mcdev12/tourney/go/internal/tournament/round"
)

// State of a tournament session
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateFinished State = "finished"
)

// Result tags how a finished session ended
type Result string

const (
	ResultWinner     Result = "winner"
	ResultNoWinner   Result = "no_winner"
	ResultRoundLimit Result = "round_limit"
	ResultAborted    Result = "aborted"
	ResultError      Result = "error"
)

// StartStatus is the answer to a start request. Rejections are not errors.
type StartStatus string

const (
	StartStarted          StartStatus = "started"
	StartAlreadyRunning   StartStatus = "already running"
	StartNotEnoughPlayers StartStatus = "not enough participants"
)

// MinParticipants is the smallest active set a session starts or continues with
const MinParticipants = 2

// StartResult reports what a start request did
type StartResult struct {
	Status       StartStatus `json:"status"`
	SessionID    uuid.UUID   `json:"session_id,omitempty"`
	Participants int         `json:"participants"`
}

// Summary is a point-in-time copy of the current or most recent session
type Summary struct {
	ID           uuid.UUID         `json:"id"`
	State        State             `json:"state"`
	Phase        string            `json:"phase,omitempty"`
	Round        int               `json:"round"`
	Initial      []models.Endpoint `json:"initial"`
	Participants []models.Endpoint `json:"participants"`
	Winner       models.Endpoint   `json:"winner,omitempty"`
	WinnerName   string            `json:"winner_name,omitempty"`
	Result       Result            `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty"`
	LastRound    *round.Result     `json:"last_round,omitempty"`
}

func (s Summary) clone() Summary {
	s.Initial = append([]models.Endpoint(nil), s.Initial...)
	s.Participants = append([]models.Endpoint(nil), s.Participants...)
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		s.FinishedAt = &t
	}
	if s.LastRound != nil {
		r := *s.LastRound
		s.LastRound = &r
	}
	return s
}
