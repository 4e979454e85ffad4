// Package gateway streams tournament events to spectators over WebSocket.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/tourney/go/internal/tournament/events"
	"github.com/rs/zerolog/log"
)

// Hub fans domain events out to every connected spectator. It implements
// events.Publisher.
type Hub struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan []byte
}

// Connection is one spectator socket
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	hub  *Hub

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		CheckOrigin: func(r *http.Request) bool {
			// spectating is read-only and public
			return true
		},
	}
}

func NewHub(config ConnectionConfig) *Hub {
	return &Hub{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan []byte, 1000),
	}
}

// Start processes queued broadcasts until ctx is cancelled, then closes every
// spectator connection.
func (h *Hub) Start(ctx context.Context) error {
	log.Info().Msg("spectator hub started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("spectator hub shutting down")
			h.closeAll()
			return nil
		case data := <-h.broadcastCh:
			h.handleBroadcast(data)
		}
	}
}

// Publish queues env for every spectator. A full queue drops the event.
func (h *Hub) Publish(_ context.Context, env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event for spectators: %w", err)
	}

	select {
	case h.broadcastCh <- data:
	default:
		log.Warn().Str("event_type", env.Type).Msg("spectator broadcast channel full, dropping event")
	}
	return nil
}

// HandleSpectate upgrades the request and registers a spectator
func (h *Hub) HandleSpectate(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	c := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, h.config.SendBuffer),
		hub:         h,
		ConnectedAt: time.Now(),
	}
	h.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("spectator connected")
}

// HandleStats reports the number of connected spectators
func (h *Hub) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]int{
		"total_connections": h.ConnectionCount(),
	}); err != nil {
		log.Error().Err(err).Msg("failed to encode spectator stats")
	}
}

// RegisterRoutes mounts the spectator endpoints
func (h *Hub) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/spectate", h.HandleSpectate)
	mux.HandleFunc("GET /ws/stats", h.HandleStats)
}

// ConnectionCount returns the number of registered spectators
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true

	log.Debug().
		Str("connection_id", c.ID).
		Int("total_connections", len(h.connections)).
		Msg("connection registered")
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[c]; !ok {
		return
	}
	delete(h.connections, c)
	close(c.Send)

	log.Info().
		Str("connection_id", c.ID).
		Msg("spectator disconnected")
}

func (h *Hub) handleBroadcast(data []byte) {
	var slow []*Connection

	// sends happen under the read lock so unregister cannot close Send
	// underneath them
	h.mu.RLock()
	for c := range h.connections {
		select {
		case c.Send <- data:
		default:
			slow = append(slow, c)
		}
	}
	total := len(h.connections)
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().
			Str("connection_id", c.ID).
			Msg("connection send buffer full, closing connection")
		h.unregister(c)
		c.Conn.Close()
	}

	log.Debug().
		Int("connections", total).
		Int("dropped", len(slow)).
		Msg("event broadcasted to spectators")
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		h.unregister(c)
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump keeps the read deadline fresh and discards anything spectators send
func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}
