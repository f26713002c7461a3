package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics counts booking-service outcomes. A nil *BookingMetrics is a no-op.
type BookingMetrics struct {
	slotRequests  *prometheus.CounterVec
	slotsOffered  prometheus.Histogram
	bookings      *prometheus.CounterVec
	cancellations *prometheus.CounterVec
	reschedules   *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		slotRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "slot_requests_total",
			Help:      "Slot listing requests by day state",
		}, []string{"day"}),
		slotsOffered: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "available_slots",
			Help:      "Available slots per slot listing",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 40},
		}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Booking attempts by result",
		}, []string{"result"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by result",
		}, []string{"result"}),
		reschedules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "reschedules_total",
			Help:      "Reschedule attempts by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotRequests, m.slotsOffered, m.bookings, m.cancellations, m.reschedules)
	return m
}

func (m *BookingMetrics) ObserveSlots(working bool, available int) {
	if m == nil {
		return
	}
	day := "open"
	if !working {
		day = "closed"
	}
	m.slotRequests.WithLabelValues(day).Inc()
	if working {
		m.slotsOffered.Observe(float64(available))
	}
}

func (m *BookingMetrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveCancellation(result string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveReschedule(result string) {
	if m == nil {
		return
	}
	m.reschedules.WithLabelValues(result).Inc()
}
