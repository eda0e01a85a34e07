// Package metrics описывает метрики prometheus портала и планировщика.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics набор счётчиков и гистограмм. Нулевое значение не используется,
// создавайте через New.
type Metrics struct {
	AccessDecisions   *prometheus.CounterVec
	Expirations       *prometheus.CounterVec
	AdminUpdates      *prometheus.CounterVec
	PredictorRequests *prometheus.CounterVec
	PredictorLatency  *prometheus.HistogramVec
	SweepDuration     prometheus.Histogram
}

// New создаёт метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AccessDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "access_decisions_total",
			Help:      "Access gate decisions by result.",
		}, []string{"result"}),
		Expirations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "plan_expirations_total",
			Help:      "Plans moved to Expired, by source.",
		}, []string{"source"}),
		AdminUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "admin_plan_updates_total",
			Help:      "Administrative plan updates by resulting plan type.",
		}, []string{"plan_type"}),
		PredictorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "predictor_requests_total",
			Help:      "Requests to the prediction service by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		PredictorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Name:      "predictor_request_duration_seconds",
			Help:      "Latency of prediction service calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "portal",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of expiry sweep runs.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.AccessDecisions,
		m.Expirations,
		m.AdminUpdates,
		m.PredictorRequests,
		m.PredictorLatency,
		m.SweepDuration,
	)
	return m
}

// Access учитывает решение шлюза доступа. result: entitled, not_found, expired, inactive.
func (m *Metrics) Access(result string) {
	if m == nil {
		return
	}
	m.AccessDecisions.WithLabelValues(result).Inc()
}

// Expired учитывает n истёкших планов из источника source.
func (m *Metrics) Expired(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Expirations.WithLabelValues(source).Add(float64(n))
}

// AdminUpdate учитывает изменение плана администратором.
func (m *Metrics) AdminUpdate(planType string) {
	if m == nil {
		return
	}
	m.AdminUpdates.WithLabelValues(planType).Inc()
}

// Predictor учитывает вызов сервиса предсказаний.
func (m *Metrics) Predictor(endpoint string, err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.PredictorRequests.WithLabelValues(endpoint, outcome).Inc()
	m.PredictorLatency.WithLabelValues(endpoint).Observe(took.Seconds())
}

// Sweep учитывает длительность прогона планировщика.
func (m *Metrics) Sweep(took time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(took.Seconds())
}
