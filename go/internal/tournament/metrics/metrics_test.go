package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg)

	m.RecordDatagram("register")
	m.RecordDatagram("register")
	m.RecordSubmission(SubmissionAccepted)
	m.RecordSubmission(SubmissionWindowClosed)
	m.RecordSend(true)
	m.RecordSend(false)
	m.RecordRound("draw", true, 15*time.Second)
	m.RecordSession("winner")
	m.SetActiveParticipants(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.datagrams.WithLabelValues("register")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues(SubmissionAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sends.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rounds.WithLabelValues("draw", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions.WithLabelValues("winner")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.active))
	assert.Equal(t, 1, testutil.CollectAndCount(m.roundDuration))
}

func TestOrNoOp(t *testing.T) {
	assert.Equal(t, NoOp{}, OrNoOp(nil))

	m := NewPrometheus(prometheus.NewRegistry())
	assert.Same(t, m, OrNoOp(m))
}
