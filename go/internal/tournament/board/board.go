// Package board holds the per-round submission table and the collecting flag
// that gates it.
package board

import (
	"errors"
	"sync"

	"github.com/mcdev12/tourney/go/internal/models"
)

var (
	// ErrWindowClosed is returned for submissions outside a collection window
	ErrWindowClosed = errors.New("collection window is closed")
	// ErrNotParticipant is returned when the sender is not in the current round
	ErrNotParticipant = errors.New("sender is not a participant in this round")
	// ErrInactive is returned when the sender is not active in the registry
	ErrInactive = errors.New("sender is not active")
)

// ActivityChecker reports whether an endpoint is currently active
type ActivityChecker interface {
	IsActive(ep models.Endpoint) bool
}

// Board records at most one choice per endpoint per round. Invalid choices
// are recorded too and filtered out at resolution.
//
// The registry is consulted before the board lock is taken so the two locks
// are never held together.
type Board struct {
	activity ActivityChecker

	mu           sync.Mutex
	collecting   bool
	participants models.EndpointSet
	submissions  map[models.Endpoint]models.Choice

	notify chan struct{}
}

// New creates a closed, empty board
func New(activity ActivityChecker) *Board {
	return &Board{
		activity:     activity,
		participants: models.NewEndpointSet(),
		submissions:  make(map[models.Endpoint]models.Choice),
		notify:       make(chan struct{}, 1),
	}
}

// Clear drops every submission and closes the window
func (b *Board) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collecting = false
	b.submissions = make(map[models.Endpoint]models.Choice)
}

// Open starts a collection window for the given participants. Submissions
// from a previous round are dropped.
func (b *Board) Open(participants []models.Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.participants = models.NewEndpointSet(participants...)
	b.submissions = make(map[models.Endpoint]models.Choice)
	b.collecting = true

	// drain a stale wakeup from the previous window
	select {
	case <-b.notify:
	default:
	}
}

// Close ends the collection window. Later submissions are rejected.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collecting = false
}

// Collecting reports whether a window is open
func (b *Board) Collecting() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.collecting
}

// Submit records choice for ep, replacing any earlier submission from the
// same endpoint in this window.
func (b *Board) Submit(ep models.Endpoint, choice models.Choice) error {
	if b.activity != nil && !b.activity.IsActive(ep) {
		return ErrInactive
	}

	b.mu.Lock()
	if !b.collecting {
		b.mu.Unlock()
		return ErrWindowClosed
	}
	if !b.participants.Has(ep) {
		b.mu.Unlock()
		return ErrNotParticipant
	}
	b.submissions[ep] = choice
	b.mu.Unlock()

	b.wake()
	return nil
}

func (b *Board) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Notify fires after each accepted submission. Wakeups coalesce.
func (b *Board) Notify() <-chan struct{} {
	return b.notify
}

// CountValid counts recorded valid choices from the given endpoints
func (b *Board) CountValid(endpoints []models.Endpoint) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, ep := range endpoints {
		if c, ok := b.submissions[ep]; ok && c.Valid() {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of every recorded submission
func (b *Board) Snapshot() map[models.Endpoint]models.Choice {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[models.Endpoint]models.Choice, len(b.submissions))
	for ep, c := range b.submissions {
		out[ep] = c
	}
	return out
}
