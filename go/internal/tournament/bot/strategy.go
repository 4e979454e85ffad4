package bot

import (
	"math/rand"
	"sync"
	"time"

	"github.com/mcdev12/tourney/go/internal/models"
)

// Strategy picks the answer to a choose request
type Strategy interface {
	Choose() models.Choice
}

// RandomStrategy picks uniformly among the three moves.
type RandomStrategy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStrategy constructs a RandomStrategy with its own seed.
func NewRandomStrategy() *RandomStrategy {
	src := rand.NewSource(time.Now().UnixNano())
	return &RandomStrategy{rng: rand.New(src)}
}

func (s *RandomStrategy) Choose() models.Choice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Choices[s.rng.Intn(len(models.Choices))]
}

// FixedStrategy always answers with the same move
type FixedStrategy models.Choice

func (s FixedStrategy) Choose() models.Choice {
	return models.Choice(s)
}
