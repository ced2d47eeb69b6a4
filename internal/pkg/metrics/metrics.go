package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	StageStore          = "store"
	StageFanout         = "fanout"
	StageEmailImmediate = "email_immediate"
	StageEmailDigest    = "email_digest"
	StageWebhook        = "webhook"
	StageRealtime       = "realtime"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Recorder counts and times pipeline stages. A nil *Recorder is a no-op.
type Recorder struct {
	stages   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_stage_total",
			Help: "Notification pipeline stage runs by outcome.",
		}, []string{"stage", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notifications_stage_duration_seconds",
			Help:    "Notification pipeline stage latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_delivery_failures_total",
			Help: "Individual delivery attempts that failed, by channel.",
		}, []string{"channel"}),
	}
	reg.MustRegister(r.stages, r.duration, r.failures)
	return r
}

// Time runs fn, records its latency under stage and counts the outcome.
func (r *Recorder) Time(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	if r == nil {
		return err
	}

	r.duration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	r.stages.WithLabelValues(stage, outcome).Inc()
	return err
}

// DeliveryFailures adds n failed deliveries for channel.
func (r *Recorder) DeliveryFailures(channel string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.failures.WithLabelValues(channel).Add(float64(n))
}
