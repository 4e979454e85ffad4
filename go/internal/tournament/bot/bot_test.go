package bot

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tourney/go/internal/models"
	"github.com/mcdev12/tourney/go/internal/tournament/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	t    *testing.T
	conn *net.UDPConn
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &fakeServer{t: t, conn: conn}
}

func (s *fakeServer) read() (string, *net.UDPAddr) {
	s.t.Helper()
	require.NoError(s.t, s.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1024)
	n, from, err := s.conn.ReadFromUDP(buf)
	require.NoError(s.t, err)
	return string(buf[:n]), from
}

func (s *fakeServer) send(to *net.UDPAddr, msg string) {
	s.t.Helper()
	_, err := s.conn.WriteToUDP([]byte(msg), to)
	require.NoError(s.t, err)
}

func TestBotLifecycle(t *testing.T) {
	srv := newFakeServer(t)
	clock := clockwork.NewFakeClock()

	b, err := Dial(Config{
		ServerAddr:  srv.conn.LocalAddr().String(),
		Name:        "tester",
		Hardware:    "CPU:1",
		ReadTimeout: 20 * time.Millisecond,
	}, FixedStrategy(models.ChoicePaper), clock)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	msg, from := srv.read()
	assert.Equal(t, "REGISTER:tester:CPU:1", msg)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(3 * time.Second)
	msg, _ = srv.read()
	assert.Equal(t, protocol.TokenPing, msg)

	srv.send(from, protocol.TokenChoose)
	msg, _ = srv.read()
	assert.Equal(t, string(models.ChoicePaper), msg)

	srv.send(from, protocol.TournamentStarting(2))
	srv.send(from, protocol.TokenShutdown)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop on SHUTDOWN")
	}
}

func TestBotStopsOnCancel(t *testing.T) {
	srv := newFakeServer(t)
	b, err := Dial(Config{ServerAddr: srv.conn.LocalAddr().String(), Name: "x", ReadTimeout: 20 * time.Millisecond}, nil, clockwork.NewFakeClock())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	msg, _ := srv.read()
	assert.Contains(t, msg, "REGISTER:x:CPU:")
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bot ignored cancellation")
	}
}

func TestRandomStrategyOnlyValidChoices(t *testing.T) {
	s := NewRandomStrategy()
	for i := 0; i < 100; i++ {
		assert.True(t, s.Choose().Valid())
	}
}

func TestDialRejectsColonInName(t *testing.T) {
	_, err := Dial(Config{ServerAddr: "127.0.0.1:8080", Name: "a:b"}, nil, nil)
	require.ErrorIs(t, err, ErrInvalidName)
}
