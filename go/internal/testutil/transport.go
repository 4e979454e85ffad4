// Package testutil holds fakes shared by tournament tests.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/mcdev12/tourney/go/internal/models"
)

// ErrSendFailed is returned for endpoints configured to fail
var ErrSendFailed = errors.New("testutil: send failed")

// Sent is one recorded datagram
type Sent struct {
	To      models.Endpoint
	Payload string
}

// RecordingTransport records every send instead of touching the network.
type RecordingTransport struct {
	mu      sync.Mutex
	sent    []Sent
	failFor map[models.Endpoint]bool
	onSend  func(Sent)
}

func NewRecordingTransport() *RecordingTransport {
	return &RecordingTransport{failFor: make(map[models.Endpoint]bool)}
}

// FailFor makes every send to ep return ErrSendFailed
func (t *RecordingTransport) FailFor(ep models.Endpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failFor[ep] = true
}

// OnSend registers a hook invoked after each successful send, outside the
// transport lock.
func (t *RecordingTransport) OnSend(fn func(Sent)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSend = fn
}

func (t *RecordingTransport) Send(_ context.Context, to models.Endpoint, payload []byte) error {
	t.mu.Lock()
	if t.failFor[to] {
		t.mu.Unlock()
		return ErrSendFailed
	}
	s := Sent{To: to, Payload: string(payload)}
	t.sent = append(t.sent, s)
	hook := t.onSend
	t.mu.Unlock()

	if hook != nil {
		hook(s)
	}
	return nil
}

// All returns a copy of every recorded send
func (t *RecordingTransport) All() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Sent(nil), t.sent...)
}

// MessagesTo returns the payloads sent to ep in order
func (t *RecordingTransport) MessagesTo(ep models.Endpoint) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for _, s := range t.sent {
		if s.To == ep {
			out = append(out, s.Payload)
		}
	}
	return out
}

// Count returns how many times payload was sent to anybody
func (t *RecordingTransport) Count(payload string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, s := range t.sent {
		if s.Payload == payload {
			n++
		}
	}
	return n
}
