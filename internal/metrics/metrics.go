// Package metrics holds the Prometheus collectors exported on /metrics.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Check-in results.
const (
	CheckInOK       = "ok"
	CheckInNotFound = "not_found"
	CheckInConflict = "already_checked_in"
	CheckInInvalid  = "invalid"
	CheckInError    = "error"
)

type Metrics struct {
	passesIssued prometheus.Counter
	emailsSent   prometheus.Counter
	emailsFailed prometheus.Counter
	checkIns     *prometheus.CounterVec
	syncDuration prometheus.Histogram
	rateLimited  prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		passesIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "entrypass_passes_issued_total",
			Help: "Passes generated and stored in the ledger.",
		}),
		emailsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "entrypass_emails_sent_total",
			Help: "Pass emails accepted by the mail provider.",
		}),
		emailsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "entrypass_emails_failed_total",
			Help: "Pass emails the mail provider rejected.",
		}),
		checkIns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_checkins_total",
			Help: "Check-in attempts by result.",
		}, []string{"result"}),
		syncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "entrypass_sync_duration_seconds",
			Help:    "Duration of registration sync cycles.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "entrypass_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
	}
}

func (m *Metrics) PassIssued() {
	if m == nil {
		return
	}
	m.passesIssued.Inc()
}

func (m *Metrics) EmailSent() {
	if m == nil {
		return
	}
	m.emailsSent.Inc()
}

func (m *Metrics) EmailFailed() {
	if m == nil {
		return
	}
	m.emailsFailed.Inc()
}

func (m *Metrics) CheckIn(result string) {
	if m == nil {
		return
	}
	m.checkIns.WithLabelValues(result).Inc()
}

func (m *Metrics) SyncFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.syncDuration.Observe(d.Seconds())
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
