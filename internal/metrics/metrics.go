// Package metrics содержит prometheus-метрики планировщика встреч.
// Методы безопасно вызывать на nil *Metrics: метрики просто не пишутся.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/magabrotheeeer/session-scheduler/internal/lib/apperr"
)

// Metrics — набор счётчиков сервиса.
type Metrics struct {
	meetingsManaged      *prometheus.CounterVec
	remoteCalls          *prometheus.CounterVec
	remoteCallDuration   *prometheus.HistogramVec
	subscriptionDecision *prometheus.CounterVec
	attendeesEnrolled    *prometheus.CounterVec
}

// New регистрирует метрики в registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		meetingsManaged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meetings_managed_total",
				Help: "Meetings returned by manage meeting, by resolution state",
			},
			[]string{"state"},
		),
		remoteCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remote_calls_total",
				Help: "Calls to conferencing platforms by result",
			},
			[]string{"platform", "operation", "result"},
		),
		remoteCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "remote_call_duration_seconds",
				Help:    "Latency of conferencing platform calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"platform", "operation"},
		),
		subscriptionDecision: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscription_decisions_total",
				Help: "Subscription eligibility decisions",
			},
			[]string{"admit", "reason"},
		),
		attendeesEnrolled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendees_enrolled_total",
				Help: "Attendees added to meetings",
			},
			[]string{"platform"},
		),
	}
}

// MeetingManaged учитывает итоговое состояние встречи (local_found, remote_found, created).
func (m *Metrics) MeetingManaged(state string) {
	if m == nil {
		return
	}
	m.meetingsManaged.WithLabelValues(state).Inc()
}

// RemoteCall учитывает вызов платформы и его длительность.
func (m *Metrics) RemoteCall(platform, operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.remoteCalls.WithLabelValues(platform, operation, resultOf(err)).Inc()
	m.remoteCallDuration.WithLabelValues(platform, operation).Observe(time.Since(started).Seconds())
}

// SubscriptionDecision учитывает решение о допуске подписки.
func (m *Metrics) SubscriptionDecision(admit bool, reason string) {
	if m == nil {
		return
	}
	m.subscriptionDecision.WithLabelValues(strconv.FormatBool(admit), reason).Inc()
}

// AttendeesEnrolled учитывает добавленных участников.
func (m *Metrics) AttendeesEnrolled(platform string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.attendeesEnrolled.WithLabelValues(platform).Add(float64(n))
}

func resultOf(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := apperr.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
