// Package bot is a tournament client: it registers, keeps itself alive with
// heartbeats and answers every choose request.
package bot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tourney/go/internal/tournament/protocol"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidName is returned for names the REGISTER grammar cannot carry
var ErrInvalidName = errors.New("bot name must not contain ':'")

// errShutdown stops the bot's task group when the server says SHUTDOWN
var errShutdown = errors.New("shutdown requested by server")

// Config for a bot
type Config struct {
	ServerAddr   string
	Name         string
	Hardware     string
	PingInterval time.Duration
	ReadTimeout  time.Duration
}

// DefaultHardware describes the local machine
func DefaultHardware() string {
	return fmt.Sprintf("CPU:%d OS:%s/%s", runtime.NumCPU(), runtime.GOOS, runtime.GOARCH)
}

// Bot talks to one coordinator over a connected UDP socket
type Bot struct {
	cfg      Config
	conn     *net.UDPConn
	clock    clockwork.Clock
	strategy Strategy
}

// Dial connects to the coordinator. UDP is connectionless so this only fixes
// the peer address.
func Dial(cfg Config, strategy Strategy, clock clockwork.Clock) (*Bot, error) {
	if strings.Contains(cfg.Name, ":") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, cfg.Name)
	}
	addr, err := net.ResolveUDPAddr("udp", cfg.ServerAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", cfg.ServerAddr, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %q: %w", cfg.ServerAddr, err)
	}

	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 3 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.Hardware == "" {
		cfg.Hardware = DefaultHardware()
	}
	if strategy == nil {
		strategy = NewRandomStrategy()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Bot{cfg: cfg, conn: conn, clock: clock, strategy: strategy}, nil
}

// Run registers and then serves until ctx is cancelled or the server sends
// SHUTDOWN. Both end the run without error.
func (b *Bot) Run(ctx context.Context) error {
	defer b.conn.Close()

	if err := b.send(protocol.FormatRegister(b.cfg.Name, b.cfg.Hardware)); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	log.Info().
		Str("server", b.cfg.ServerAddr).
		Str("name", b.cfg.Name).
		Str("hardware", b.cfg.Hardware).
		Msg("registered with server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.heartbeat(gctx) })
	g.Go(func() error { return b.listen(gctx) })

	err := g.Wait()
	if errors.Is(err, errShutdown) {
		log.Info().Msg("received shutdown command")
		return nil
	}
	return err
}

func (b *Bot) heartbeat(ctx context.Context) error {
	ticker := b.clock.NewTicker(b.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if err := b.send([]byte(protocol.TokenPing)); err != nil {
				log.Warn().Err(err).Msg("failed to send heartbeat")
			}
		}
	}
}

func (b *Bot) listen(ctx context.Context) error {
	buf := make([]byte, 1024)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := b.conn.SetReadDeadline(time.Now().Add(b.cfg.ReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		n, err := b.conn.Read(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			// ICMP port unreachable shows up here while the server is down
			log.Debug().Err(err).Msg("read from server failed")
			continue
		}

		if err := b.handle(string(buf[:n])); err != nil {
			return err
		}
	}
}

func (b *Bot) handle(cmd string) error {
	switch cmd {
	case protocol.TokenChoose:
		choice := b.strategy.Choose()
		if err := b.send([]byte(choice)); err != nil {
			log.Warn().Err(err).Msg("failed to send choice")
			return nil
		}
		log.Info().Str("choice", choice.DisplayName()).Msg("choice sent")
	case protocol.TokenShutdown:
		return errShutdown
	default:
		log.Info().Str("message", cmd).Msg("message from server")
	}
	return nil
}

func (b *Bot) send(payload []byte) error {
	_, err := b.conn.Write(payload)
	return err
}
