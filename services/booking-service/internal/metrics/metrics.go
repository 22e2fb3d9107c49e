package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for availability requests and booking submissions.
const (
	OutcomeOK            = "ok"
	OutcomeCreated       = "created"
	OutcomeReplayed      = "replayed"
	OutcomeFetchFailure  = "fetch_failure"
	OutcomeConflict      = "conflict"
	OutcomeValidation    = "validation"
	OutcomeInsertFailure = "insert_failed"
	OutcomeRaceLost      = "race_lost"
)

// BookingMetrics counts availability and booking outcomes. A nil
// *BookingMetrics is valid and records nothing.
type BookingMetrics struct {
	availabilityTotal *prometheus.CounterVec
	submissionsTotal  *prometheus.CounterVec
	statusChanges     *prometheus.CounterVec
	storeLatency      *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		availabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barbershop",
			Subsystem: "booking",
			Name:      "availability_requests_total",
			Help:      "Slot availability requests by outcome",
		}, []string{"outcome"}),
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barbershop",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Booking submissions by outcome",
		}, []string{"outcome"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barbershop",
			Subsystem: "booking",
			Name:      "status_changes_total",
			Help:      "Admin status changes by target status",
		}, []string{"status"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "barbershop",
			Subsystem: "booking",
			Name:      "store_latency_seconds",
			Help:      "Latency of booking store operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.availabilityTotal, m.submissionsTotal, m.statusChanges, m.storeLatency)
	return m
}

func (m *BookingMetrics) ObserveAvailability(outcome string) {
	if m == nil {
		return
	}
	m.availabilityTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveStoreLatency(op string, seconds float64) {
	if m == nil {
		return
	}
	m.storeLatency.WithLabelValues(op).Observe(seconds)
}
