package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingOutcome = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "booking_attempts_total",
			Help:      "Count of booking attempts by outcome.",
		},
		[]string{"outcome"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "booking_cancelled_total",
			Help:      "Count of reservations cancelled.",
		},
	)

	pointsCharged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "points_charged_total",
			Help:      "Total points debited from member wallets.",
		},
	)

	pointsRefunded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "points_refunded_total",
			Help:      "Total points credited back to member wallets.",
		},
	)

	resets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "wallet_resets_total",
			Help:      "Count of bulk wallet resets by kind.",
		},
		[]string{"kind"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	storeRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "store_contention_retries_total",
			Help:      "Count of retried transactions after store contention.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingOutcome, bookingCancelled, pointsCharged,
			pointsRefunded, resets, httpRequests, storeRetries)
	})
}

func IncBookingOutcome(outcome string) {
	bookingOutcome.WithLabelValues(outcome).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func AddPointsCharged(points int) {
	pointsCharged.Add(float64(points))
}

func AddPointsRefunded(points int) {
	pointsRefunded.Add(float64(points))
}

func IncReset(kind string) {
	resets.WithLabelValues(kind).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncStoreRetry() {
	storeRetries.Inc()
}
