package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cb_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cb_bookings_created_total",
			Help: "Bookings successfully placed in PENDING",
		},
	)

	SeatConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cb_seat_conflicts_total",
			Help: "Reservations rejected because a requested seat was taken",
		},
	)

	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cb_settlements_total",
			Help: "Settlement attempts by terminal outcome",
		},
		[]string{"outcome"},
	)

	SweeperReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cb_sweeper_released_total",
			Help: "Expired bookings reclaimed by the sweeper",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cb_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cb_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cb_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
