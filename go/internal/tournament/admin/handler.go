// Package admin exposes the operator surface: start a tournament, inspect
// clients, and tell every client to shut down.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcdev12/tourney/go/internal/models"
	"github.com/mcdev12/tourney/go/internal/tournament/broadcast"
	"github.com/mcdev12/tourney/go/internal/tournament/protocol"
	"github.com/mcdev12/tourney/go/internal/tournament/session"
	"github.com/rs/zerolog/log"
)

// Sessions starts and reports tournaments
type Sessions interface {
	Start(ctx context.Context) (session.StartResult, error)
	Status() session.Summary
}

// Clients lists registry records
type Clients interface {
	List() []models.Participant
}

// Broadcaster reaches every active client
type Broadcaster interface {
	SendToAllActive(ctx context.Context, message string) broadcast.Report
}

// Handler serves the admin JSON API
type Handler struct {
	sessions    Sessions
	clients     Clients
	broadcaster Broadcaster
}

func NewHandler(sessions Sessions, clients Clients, broadcaster Broadcaster) *Handler {
	return &Handler{
		sessions:    sessions,
		clients:     clients,
		broadcaster: broadcaster,
	}
}

// RegisterRoutes mounts the admin routes on mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/tournament/start", h.HandleStartTournament)
	mux.HandleFunc("GET /admin/tournament", h.HandleGetTournament)
	mux.HandleFunc("POST /admin/clients/shutdown", h.HandleShutdownClients)
	mux.HandleFunc("GET /admin/clients", h.HandleListClients)
	mux.HandleFunc("GET /admin/clients/active", h.HandleListActiveClients)
}

// HandleStartTournament handles POST /admin/tournament/start
func (h *Handler) HandleStartTournament(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.Start(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrManagerStopped) {
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
			return
		}
		log.Error().Err(err).Msg("failed to start tournament")
		http.Error(w, "Failed to start tournament", http.StatusInternalServerError)
		return
	}

	status := http.StatusAccepted
	switch res.Status {
	case session.StartAlreadyRunning:
		status = http.StatusConflict
	case session.StartNotEnoughPlayers:
		status = http.StatusPreconditionFailed
	}
	writeJSON(w, status, res)
}

// HandleGetTournament handles GET /admin/tournament
func (h *Handler) HandleGetTournament(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Status())
}

// HandleShutdownClients handles POST /admin/clients/shutdown
func (h *Handler) HandleShutdownClients(w http.ResponseWriter, r *http.Request) {
	report := h.broadcaster.SendToAllActive(r.Context(), protocol.TokenShutdown)
	log.Info().
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Msg("shutdown broadcast to clients")
	writeJSON(w, http.StatusOK, report)
}

// HandleListClients handles GET /admin/clients
func (h *Handler) HandleListClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.clients.List())
}

// HandleListActiveClients handles GET /admin/clients/active
func (h *Handler) HandleListActiveClients(w http.ResponseWriter, r *http.Request) {
	all := h.clients.List()
	active := make([]models.Participant, 0, len(all))
	for _, p := range all {
		if p.Active {
			active = append(active, p)
		}
	}
	writeJSON(w, http.StatusOK, active)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode admin response")
	}
}
