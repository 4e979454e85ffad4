// Package resolver computes the survivors of a round from its valid
// submissions. It is pure and holds no state.
package resolver

import (
	"errors"
	"fmt"

	"github.com/mcdev12/tourney/go/internal/models"
)

// ErrInvariantViolation means the input held submissions but none of them
// carried a valid choice. Callers filter invalid choices out first, so this
// is a defect.
var ErrInvariantViolation = errors.New("resolver: no valid choice types in non-empty submissions")

// OutcomeKind tags how a round ended
type OutcomeKind string

const (
	OutcomeNoSubmissions OutcomeKind = "no_submissions"
	OutcomeDraw          OutcomeKind = "draw"
	OutcomeWin           OutcomeKind = "win"
)

// Message texts broadcast to participants
const (
	MessageNoSubmissions = "no valid submissions"
	MessageDraw          = "DRAW! New round..."
)

var winMessages = map[models.Choice]string{
	models.ChoiceRock:     "Rock beats scissors!",
	models.ChoicePaper:    "Paper covers rock!",
	models.ChoiceScissors: "Scissors cut paper!",
}

// Outcome is the result of resolving one round. Survivors is sorted.
type Outcome struct {
	Kind      OutcomeKind                         `json:"kind"`
	Message   string                              `json:"message"`
	Winning   models.Choice                       `json:"winning,omitempty"`
	Survivors []models.Endpoint                   `json:"survivors"`
	Groups    map[models.Choice][]models.Endpoint `json:"groups,omitempty"`
}

// Resolve groups submissions by choice and picks the survivors.
//
// One or three distinct choices is a draw and everybody who submitted
// advances. Two distinct choices means the dominant group advances.
func Resolve(submissions map[models.Endpoint]models.Choice) (Outcome, error) {
	if len(submissions) == 0 {
		return Outcome{
			Kind:      OutcomeNoSubmissions,
			Message:   MessageNoSubmissions,
			Survivors: []models.Endpoint{},
		}, nil
	}

	groups := make(map[models.Choice][]models.Endpoint)
	all := make([]models.Endpoint, 0, len(submissions))
	for ep, choice := range submissions {
		if !choice.Valid() {
			continue
		}
		groups[choice] = append(groups[choice], ep)
		all = append(all, ep)
	}
	for choice := range groups {
		models.SortEndpoints(groups[choice])
	}

	switch len(groups) {
	case 0:
		return Outcome{}, fmt.Errorf("%w: %d submissions", ErrInvariantViolation, len(submissions))
	case 1, 3:
		return Outcome{
			Kind:      OutcomeDraw,
			Message:   MessageDraw,
			Survivors: models.SortEndpoints(all),
			Groups:    groups,
		}, nil
	}

	winner, err := dominant(groups)
	if err != nil {
		return Outcome{}, err
	}
	survivors := append([]models.Endpoint(nil), groups[winner]...)
	return Outcome{
		Kind:      OutcomeWin,
		Message:   winMessages[winner],
		Winning:   winner,
		Survivors: survivors,
		Groups:    groups,
	}, nil
}

// dominant picks the choice that beats the other one present
func dominant(groups map[models.Choice][]models.Endpoint) (models.Choice, error) {
	present := make([]models.Choice, 0, 2)
	for _, c := range models.Choices {
		if _, ok := groups[c]; ok {
			present = append(present, c)
		}
	}
	if len(present) != 2 {
		return models.ChoiceInvalid, fmt.Errorf("%w: expected two choice types, got %d", ErrInvariantViolation, len(present))
	}
	if present[0].Beats(present[1]) {
		return present[0], nil
	}
	return present[1], nil
}
