package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector defines the counters the coordinator reports
type Collector interface {
	RecordDatagram(kind string)
	RecordSubmission(result string)
	RecordSend(success bool)
	RecordRound(outcome string, timedOut bool, duration time.Duration)
	RecordSession(result string)
	SetActiveParticipants(n int)
}

// Submission results reported by the dispatcher
const (
	SubmissionAccepted       = "accepted"
	SubmissionInvalid        = "invalid"
	SubmissionWindowClosed   = "window_closed"
	SubmissionNotParticipant = "not_participant"
	SubmissionInactive       = "inactive"
)

// NoOp is a Collector that discards everything
type NoOp struct{}

func (NoOp) RecordDatagram(kind string)                                        {}
func (NoOp) RecordSubmission(result string)                                    {}
func (NoOp) RecordSend(success bool)                                           {}
func (NoOp) RecordRound(outcome string, timedOut bool, duration time.Duration) {}
func (NoOp) RecordSession(result string)                                       {}
func (NoOp) SetActiveParticipants(n int)                                       {}

// OrNoOp returns c, or NoOp when c is nil
func OrNoOp(c Collector) Collector {
	if c == nil {
		return NoOp{}
	}
	return c
}

// Prometheus implements Collector with client_golang collectors
type Prometheus struct {
	datagrams     *prometheus.CounterVec
	submissions   *prometheus.CounterVec
	sends         *prometheus.CounterVec
	rounds        *prometheus.CounterVec
	roundDuration prometheus.Histogram
	sessions      *prometheus.CounterVec
	active        prometheus.Gauge
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	m := &Prometheus{
		datagrams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tourney",
			Name:      "datagrams_total",
			Help:      "Inbound datagrams by parsed kind.",
		}, []string{"kind"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tourney",
			Name:      "submissions_total",
			Help:      "Choice submissions by result.",
		}, []string{"result"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tourney",
			Name:      "sends_total",
			Help:      "Outbound datagrams by result.",
		}, []string{"status"}),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tourney",
			Name:      "rounds_total",
			Help:      "Resolved rounds by outcome and whether the window timed out.",
		}, []string{"outcome", "timed_out"}),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tourney",
			Name:      "round_duration_seconds",
			Help:      "Time from choose-request to resolution.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tourney",
			Name:      "sessions_total",
			Help:      "Finished tournament sessions by result.",
		}, []string{"result"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tourney",
			Name:      "active_participants",
			Help:      "Registry entries marked active at the last sweep.",
		}),
	}

	reg.MustRegister(m.datagrams, m.submissions, m.sends, m.rounds, m.roundDuration, m.sessions, m.active)
	return m
}

func (m *Prometheus) RecordDatagram(kind string) {
	m.datagrams.WithLabelValues(kind).Inc()
}

func (m *Prometheus) RecordSubmission(result string) {
	m.submissions.WithLabelValues(result).Inc()
}

func (m *Prometheus) RecordSend(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.sends.WithLabelValues(status).Inc()
}

func (m *Prometheus) RecordRound(outcome string, timedOut bool, duration time.Duration) {
	m.rounds.WithLabelValues(outcome, strconv.FormatBool(timedOut)).Inc()
	m.roundDuration.Observe(duration.Seconds())
}

func (m *Prometheus) RecordSession(result string) {
	m.sessions.WithLabelValues(result).Inc()
}

func (m *Prometheus) SetActiveParticipants(n int) {
	m.active.Set(float64(n))
}
