package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tourney/go/internal/models"
	"github.com/mcdev12/tourney/go/internal/testutil"
	"github.com/mcdev12/tourney/go/internal/tournament/registry"
	"github.com/stretchr/testify/assert"
)

const (
	e1 models.Endpoint = "10.0.0.1:1"
	e2 models.Endpoint = "10.0.0.2:1"
	e3 models.Endpoint = "10.0.0.3:1"
)

func TestSendToFiltersAndSkipsFailures(t *testing.T) {
	reg := registry.New(clockwork.NewFakeClock())
	reg.Register(e1, "a", "")
	reg.Register(e2, "b", "")

	transport := testutil.NewRecordingTransport()
	transport.FailFor(e2)

	b := New(transport, reg, nil)
	report := b.SendTo(context.Background(), "CHOOSE", []models.Endpoint{e1, e2, e3})

	assert.Equal(t, Report{Sent: 1, Skipped: 1, Failed: 1}, report)
	assert.Equal(t, []string{"CHOOSE"}, transport.MessagesTo(e1))
	assert.Empty(t, transport.MessagesTo(e3))
}

func TestSendToAllActive(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := registry.New(clock)
	reg.Register(e1, "a", "")
	reg.Register(e2, "b", "")
	reg.Sweep(clock.Now().Add(time.Minute), 10*time.Second)
	reg.Heartbeat(e2)

	transport := testutil.NewRecordingTransport()
	report := New(transport, reg, nil).SendToAllActive(context.Background(), "SHUTDOWN")

	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, []testutil.Sent{{To: e2, Payload: "SHUTDOWN"}}, transport.All())
}
