package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "escrow_market"

// ResultOK is the result label of a successful operation.
const ResultOK = "ok"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Engine operations by name and result code.",
		},
		[]string{"op", "result"},
	)
	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation duration in seconds, including the wait for the engine lock.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	listings = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "listings",
			Help:      "Active listings by kind and state.",
		},
		[]string{"kind", "state"},
	)
	routerEvents = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "events",
			Help:      "Cumulative router event counts as of the last sample.",
		},
		[]string{"type"},
	)
	routerSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "subscribers",
			Help:      "Current feed subscriptions.",
		},
	)
	writerRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "rows",
			Help:      "Cumulative journal writer counts as of the last sample.",
		},
		[]string{"type"},
	)
	feedConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "connections",
			Help:      "Open WebSocket feed connections.",
		},
	)
)

// RegisterMetrics registers every collector with the default registry.
// Safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			operations, operationDuration,
			listings,
			routerEvents, routerSubscribers,
			writerRows,
			feedConnections,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordOperation counts one engine call. result is ResultOK or an error code.
func RecordOperation(op, result string, duration time.Duration) {
	RegisterMetrics()
	operations.WithLabelValues(op, result).Inc()
	operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// ListingCensus is one sample of the listing tables.
type ListingCensus struct {
	SellOpen    int // No bid yet, window not closed
	SellBid     int // Leading bid, window not closed
	SellEnded   int // Window closed, awaiting Claim
	RentOffered int
	RentRenting int // Rented, deadline not passed
	RentOverdue int // Rented, deadline passed
}

func RecordListings(c ListingCensus) {
	RegisterMetrics()
	listings.WithLabelValues("sell", "no_bid").Set(float64(c.SellOpen))
	listings.WithLabelValues("sell", "has_bid").Set(float64(c.SellBid))
	listings.WithLabelValues("sell", "ended").Set(float64(c.SellEnded))
	listings.WithLabelValues("rent", "offered").Set(float64(c.RentOffered))
	listings.WithLabelValues("rent", "renting").Set(float64(c.RentRenting))
	listings.WithLabelValues("rent", "overdue").Set(float64(c.RentOverdue))
}

// RouterSample mirrors the router counters the poller exports.
type RouterSample struct {
	Published   int64
	Rejected    int64
	Deliveries  int64
	Drops       int64
	Subscribers int
}

func RecordRouter(s RouterSample) {
	RegisterMetrics()
	routerEvents.WithLabelValues("published").Set(float64(s.Published))
	routerEvents.WithLabelValues("rejected").Set(float64(s.Rejected))
	routerEvents.WithLabelValues("delivered").Set(float64(s.Deliveries))
	routerEvents.WithLabelValues("dropped").Set(float64(s.Drops))
	routerSubscribers.Set(float64(s.Subscribers))
}

// WriterSample mirrors the journal writer counters.
type WriterSample struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64
	Pending   int
}

func RecordWriter(s WriterSample) {
	RegisterMetrics()
	writerRows.WithLabelValues("inserted").Set(float64(s.Inserts))
	writerRows.WithLabelValues("conflict").Set(float64(s.Conflicts))
	writerRows.WithLabelValues("error").Set(float64(s.Errors))
	writerRows.WithLabelValues("flush").Set(float64(s.Flushes))
	writerRows.WithLabelValues("dropped").Set(float64(s.Dropped))
	writerRows.WithLabelValues("pending").Set(float64(s.Pending))
}

// FeedConnected adjusts the open feed connection gauge by delta.
func FeedConnected(delta int) {
	RegisterMetrics()
	feedConnections.Add(float64(delta))
}
