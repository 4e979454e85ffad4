// Package registry keeps the authoritative endpoint → participant mapping and
// its liveness state.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tourney/go/internal/models"
)

// Registry is safe for concurrent use. Records are never deleted; stale
// entries stay inactive until the endpoint registers or heartbeats again.
type Registry struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	records map[models.Endpoint]*models.Participant
}

// New creates an empty registry reading time from clock
func New(clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		clock:   clock,
		records: make(map[models.Endpoint]*models.Participant),
	}
}

// Register upserts the record for ep and marks it active. It reports whether
// the endpoint was seen for the first time.
func (r *Registry) Register(ep models.Endpoint, name, hardware string) bool {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[ep]
	if !exists {
		rec = &models.Participant{Endpoint: ep, RegisteredAt: now}
		r.records[ep] = rec
	}
	rec.Name = name
	rec.Hardware = hardware
	rec.LastSeen = now
	rec.Active = true
	return !exists
}

// Heartbeat refreshes a known endpoint. Unknown endpoints are ignored and
// false is returned.
func (r *Registry) Heartbeat(ep models.Endpoint) bool {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[ep]
	if !ok {
		return false
	}
	rec.LastSeen = now
	rec.Active = true
	return true
}

// Sweep recomputes every record's active flag as now-lastSeen <= timeout and
// returns the endpoints that went from active to inactive.
func (r *Registry) Sweep(now time.Time, timeout time.Duration) []models.Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deactivated []models.Endpoint
	for ep, rec := range r.records {
		active := now.Sub(rec.LastSeen) <= timeout
		if rec.Active && !active {
			deactivated = append(deactivated, ep)
		}
		rec.Active = active
	}
	return models.SortEndpoints(deactivated)
}

// IsActive reports whether ep is registered and currently active
func (r *Registry) IsActive(ep models.Endpoint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[ep]
	return ok && rec.Active
}

// Lookup returns a copy of the record for ep
func (r *Registry) Lookup(ep models.Endpoint) (models.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[ep]
	if !ok {
		return models.Participant{}, false
	}
	return *rec, true
}

// SnapshotActive returns the active endpoints in a stable order. The slice is
// owned by the caller.
func (r *Registry) SnapshotActive() []models.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Endpoint, 0, len(r.records))
	for ep, rec := range r.records {
		if rec.Active {
			out = append(out, ep)
		}
	}
	return models.SortEndpoints(out)
}

// List returns copies of every record ordered by endpoint
func (r *Registry) List() []models.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Participant, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out
}

// ActiveCount returns the number of active records
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rec := range r.records {
		if rec.Active {
			n++
		}
	}
	return n
}
