package metrics

import "github.com/prometheus/client_golang/prometheus"

// InventoryMetrics tracks reservation outcomes and admission cache traffic.
type InventoryMetrics struct {
	reservations *prometheus.CounterVec
	admission    *prometheus.CounterVec
	expired      prometheus.Counter
}

// NewInventoryMetrics registers the inventory metrics on the provided registerer.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_total",
		Help: "Reservation attempts by outcome.",
	}, []string{"outcome"})
	admission := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_admission_total",
		Help: "Admission cache decisions by result.",
	}, []string{"result"})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_expired_total",
		Help: "Reservations expired by the reaper.",
	})
	reg.MustRegister(reservations, admission, expired)
	return &InventoryMetrics{
		reservations: reservations,
		admission:    admission,
		expired:      expired,
	}
}

// IncReservation increments the reservation counter for the given outcome.
func (m *InventoryMetrics) IncReservation(outcome string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncAdmission increments the admission counter for the given result.
func (m *InventoryMetrics) IncAdmission(result string) {
	if m == nil || m.admission == nil {
		return
	}
	m.admission.WithLabelValues(normalizeLabel(result)).Inc()
}

// AddExpired records reservations expired by the reaper.
func (m *InventoryMetrics) AddExpired(count int) {
	if m == nil || m.expired == nil || count <= 0 {
		return
	}
	m.expired.Add(float64(count))
}
