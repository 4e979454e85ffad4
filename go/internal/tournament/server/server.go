// Package server owns the coordinator's UDP socket: the read loop that feeds
// the dispatcher and the transport every broadcast goes out through.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/mcdev12/tourney/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Handler consumes inbound datagrams
type Handler interface {
	Dispatch(from models.Endpoint, payload []byte)
}

// Config for the UDP listener
type Config struct {
	ListenAddr     string
	ReadBufferSize int
	ReadTimeout    time.Duration
}

// Server is a bound UDP socket
type Server struct {
	conn      *net.UDPConn
	cfg       Config
	transport *UDPTransport
}

// Listen binds the socket. Bind failures are returned before any loop runs.
func Listen(cfg Config) (*Server, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", cfg.ListenAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %q: %w", cfg.ListenAddr, err)
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = 1024
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Second
	}

	log.Info().Str("addr", conn.LocalAddr().String()).Msg("udp listener bound")
	return &Server{conn: conn, cfg: cfg, transport: &UDPTransport{conn: conn}}, nil
}

// LocalAddr is the bound address
func (s *Server) LocalAddr() netip.AddrPort {
	return s.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Transport sends through the bound socket
func (s *Server) Transport() *UDPTransport {
	return s.transport
}

// Serve reads datagrams until ctx is cancelled. Each read is bounded by the
// read timeout so cancellation is observed promptly.
func (s *Server) Serve(ctx context.Context, h Handler) error {
	buf := make([]byte, s.cfg.ReadBufferSize)
	log.Info().Msg("dispatch loop started")

	for {
		if ctx.Err() != nil {
			log.Info().Msg("dispatch loop shutting down")
			return nil
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		n, from, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn().Err(err).Msg("udp read failed")
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		h.Dispatch(models.EndpointFromAddrPort(from), payload)
	}
}

// Close releases the socket
func (s *Server) Close() error {
	return s.conn.Close()
}

// UDPTransport sends datagrams from the server socket. Safe for concurrent use.
type UDPTransport struct {
	conn *net.UDPConn
}

func (t *UDPTransport) Send(ctx context.Context, to models.Endpoint, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr, err := to.AddrPort()
	if err != nil {
		return fmt.Errorf("parse endpoint %q: %w", to, err)
	}
	if _, err := t.conn.WriteToUDPAddrPort(payload, addr); err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}
	return nil
}
