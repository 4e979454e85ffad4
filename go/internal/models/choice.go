package models

// Choice is a move in a round. The three valid moves dominate each other
// cyclically: rock beats scissors, paper beats rock, scissors beats paper.
type Choice string

const (
	ChoiceRock     Choice = "ROCK"
	ChoicePaper    Choice = "PAPER"
	ChoiceScissors Choice = "SCISSORS"
	ChoiceInvalid  Choice = "INVALID"
)

// Choices lists the valid moves
var Choices = []Choice{ChoiceRock, ChoicePaper, ChoiceScissors}

// beats maps each valid choice to the one it defeats
var beats = map[Choice]Choice{
	ChoiceRock:     ChoiceScissors,
	ChoicePaper:    ChoiceRock,
	ChoiceScissors: ChoicePaper,
}

// ParseChoice maps a wire token to a Choice, returning ChoiceInvalid for
// anything that is not one of the three literal tokens.
func ParseChoice(token string) Choice {
	switch Choice(token) {
	case ChoiceRock, ChoicePaper, ChoiceScissors:
		return Choice(token)
	default:
		return ChoiceInvalid
	}
}

// Valid reports whether c is one of the three moves
func (c Choice) Valid() bool {
	_, ok := beats[c]
	return ok
}

// Beats reports whether c defeats other
func (c Choice) Beats(other Choice) bool {
	loser, ok := beats[c]
	return ok && loser == other
}

// DisplayName returns the human-readable name used in announcements
func (c Choice) DisplayName() string {
	switch c {
	case ChoiceRock:
		return "Rock"
	case ChoicePaper:
		return "Paper"
	case ChoiceScissors:
		return "Scissors"
	default:
		return "Unknown"
	}
}
