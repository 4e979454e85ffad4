package server

import (
	"errors"

	"github.com/mcdev12/tourney/go/internal/models"
	"github.com/mcdev12/tourney/go/internal/tournament/board"
	"github.com/mcdev12/tourney/go/internal/tournament/metrics"
	"github.com/mcdev12/tourney/go/internal/tournament/protocol"
	"github.com/rs/zerolog/log"
)

// Registrar is the registry view used by the dispatcher
type Registrar interface {
	Register(ep models.Endpoint, name, hardware string) bool
	Heartbeat(ep models.Endpoint) bool
}

// Submitter is the board view used by the dispatcher
type Submitter interface {
	Submit(ep models.Endpoint, choice models.Choice) error
}

// Dispatcher routes parsed datagrams. It is the single entry point for
// inbound traffic and never returns an error to the read loop.
type Dispatcher struct {
	registry Registrar
	board    Submitter
	metrics  metrics.Collector
}

func NewDispatcher(registry Registrar, board Submitter, m metrics.Collector) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		board:    board,
		metrics:  metrics.OrNoOp(m),
	}
}

// Dispatch handles one datagram from the given endpoint
func (d *Dispatcher) Dispatch(from models.Endpoint, payload []byte) {
	msg, err := protocol.Parse(payload)
	if err != nil {
		d.metrics.RecordDatagram("malformed")
		log.Warn().
			Err(err).
			Str("endpoint", from.String()).
			Msg("dropping malformed datagram")
		return
	}
	d.metrics.RecordDatagram(msg.Kind())

	switch m := msg.(type) {
	case protocol.Register:
		created := d.registry.Register(from, m.Name, m.Hardware)
		event := log.Debug()
		if created {
			event = log.Info()
		}
		event.
			Str("endpoint", from.String()).
			Str("name", m.Name).
			Str("hardware", m.Hardware).
			Bool("new", created).
			Msg("client registered")

	case protocol.Heartbeat:
		if !d.registry.Heartbeat(from) {
			log.Debug().Str("endpoint", from.String()).Msg("heartbeat from unknown endpoint ignored")
		}

	case protocol.Submission:
		d.submit(from, m.Choice)

	case protocol.Unknown:
		log.Debug().
			Str("endpoint", from.String()).
			Str("payload", m.Raw).
			Msg("unknown datagram ignored")
	}
}

func (d *Dispatcher) submit(from models.Endpoint, choice models.Choice) {
	err := d.board.Submit(from, choice)

	result := metrics.SubmissionAccepted
	switch {
	case err == nil && !choice.Valid():
		result = metrics.SubmissionInvalid
	case errors.Is(err, board.ErrWindowClosed):
		result = metrics.SubmissionWindowClosed
	case errors.Is(err, board.ErrNotParticipant):
		result = metrics.SubmissionNotParticipant
	case errors.Is(err, board.ErrInactive):
		result = metrics.SubmissionInactive
	}
	d.metrics.RecordSubmission(result)

	if err != nil {
		log.Debug().
			Err(err).
			Str("endpoint", from.String()).
			Str("choice", string(choice)).
			Msg("submission rejected")
		return
	}
	log.Info().
		Str("endpoint", from.String()).
		Str("choice", choice.DisplayName()).
		Msg("choice received")
}
