// Package events carries tournament domain events to spectators and the
// message bus.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// Publisher delivers envelopes somewhere. Failures never stop a tournament.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// LogPublisher writes every event as a debug line
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, env Envelope) error {
	log.Debug().
		Str("event_id", env.ID.String()).
		Str("event_type", env.Type).
		Str("session_id", env.SessionID.String()).
		RawJSON("payload", env.Payload).
		Msg("domain event")
	return nil
}

// FanOut publishes to every publisher and joins their errors
type FanOut []Publisher

func (f FanOut) Publish(ctx context.Context, env Envelope) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every envelope in memory
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *Recorder) Publish(_ context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, env)
	return nil
}

// Events returns a copy of the recorded envelopes
func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.events...)
}

// Types returns the recorded event types in order
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.events))
	for i, env := range r.events {
		out[i] = env.Type
	}
	return out
}
