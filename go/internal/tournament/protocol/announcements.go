package protocol

import (
	"fmt"

	"github.com/mcdev12/tourney/go/internal/models"
)

// Status texts sent by the coordinator
const (
	AnnounceNoWinner = "NO WINNER"
	AnnounceAborted  = "TOURNAMENT ABORTED"

	tournamentStartingPrefix = "TOURNAMENT STARTING! Participants: "
	winnerPrefix             = "WINNER: "
)

// TournamentStarting announces a new session with n participants
func TournamentStarting(n int) string {
	return fmt.Sprintf("%s%d", tournamentStartingPrefix, n)
}

// Winner announces the last remaining participant
func Winner(name string, ep models.Endpoint) string {
	if name == "" {
		return fmt.Sprintf("%s%s!!!", winnerPrefix, ep)
	}
	return fmt.Sprintf("%s%s (%s)!!!", winnerPrefix, name, ep)
}
