package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kidspark",
			Name:      "reservation_created_total",
			Help:      "Count of reservations created by payment type.",
		},
		[]string{"payment_type"},
	)

	slotConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kidspark",
			Name:      "slot_conflict_total",
			Help:      "Count of reserve attempts that lost the slot race.",
		},
	)

	reservationReleased = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kidspark",
			Name:      "reservation_released_total",
			Help:      "Count of reservations released by final status.",
		},
		[]string{"status"},
	)

	reservationConfirmed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kidspark",
			Name:      "reservation_confirmed_total",
			Help:      "Count of reservations confirmed with payment proof.",
		},
	)

	reservationsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kidspark",
			Name:      "reservation_expired_total",
			Help:      "Count of pending reservations reclaimed by the sweeper.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kidspark",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by handler.",
		},
		[]string{"handler"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationCreated, slotConflicts, reservationReleased,
			reservationConfirmed, reservationsExpired, httpRequests,
		)
	})
}

func IncReservationCreated(paymentType string) {
	reservationCreated.WithLabelValues(paymentType).Inc()
}

func IncSlotConflict() {
	slotConflicts.Inc()
}

func IncReservationReleased(status string) {
	reservationReleased.WithLabelValues(status).Inc()
}

func IncReservationConfirmed() {
	reservationConfirmed.Inc()
}

func AddReservationsExpired(n float64) {
	reservationsExpired.Add(n)
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}
