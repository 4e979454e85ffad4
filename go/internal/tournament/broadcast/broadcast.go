// Package broadcast fans best-effort datagrams out to active participants.
package broadcast

import (
	"context"

	"github.com/mcdev12/tourney/go/internal/models"
	"github.com/mcdev12/tourney/go/internal/tournament/metrics"
	"github.com/rs/zerolog/log"
)

// Transport sends one datagram to one endpoint. Implementations must be safe
// for concurrent use.
type Transport interface {
	Send(ctx context.Context, to models.Endpoint, payload []byte) error
}

// Roster is the registry view the broadcaster filters through
type Roster interface {
	IsActive(ep models.Endpoint) bool
	SnapshotActive() []models.Endpoint
}

// Report summarises one fan-out
type Report struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Broadcaster never retries; delivery is best effort.
type Broadcaster struct {
	transport Transport
	roster    Roster
	metrics   metrics.Collector
}

func New(transport Transport, roster Roster, m metrics.Collector) *Broadcaster {
	return &Broadcaster{
		transport: transport,
		roster:    roster,
		metrics:   metrics.OrNoOp(m),
	}
}

// SendTo sends message to every endpoint in eps that is active right now.
// Inactive endpoints are skipped and send failures are logged.
func (b *Broadcaster) SendTo(ctx context.Context, message string, eps []models.Endpoint) Report {
	var report Report
	payload := []byte(message)

	for _, ep := range eps {
		if !b.roster.IsActive(ep) {
			report.Skipped++
			continue
		}
		if err := b.transport.Send(ctx, ep, payload); err != nil {
			report.Failed++
			b.metrics.RecordSend(false)
			log.Warn().
				Err(err).
				Str("endpoint", ep.String()).
				Str("message", message).
				Msg("failed to send datagram")
			continue
		}
		report.Sent++
		b.metrics.RecordSend(true)
	}

	log.Debug().
		Str("message", message).
		Int("sent", report.Sent).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("broadcast complete")
	return report
}

// SendToAllActive sends message to the registry's current active snapshot
func (b *Broadcaster) SendToAllActive(ctx context.Context, message string) Report {
	return b.SendTo(ctx, message, b.roster.SnapshotActive())
}
