package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetrics_Idempotent(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()
}

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(operations.WithLabelValues("bid", "TooLowBidPrice"))

	RecordOperation("bid", "TooLowBidPrice", 3*time.Millisecond)
	RecordOperation("bid", "TooLowBidPrice", 2*time.Millisecond)

	got := testutil.ToFloat64(operations.WithLabelValues("bid", "TooLowBidPrice"))
	if got-before != 2 {
		t.Errorf("operations delta = %v, want 2", got-before)
	}
}

func TestRecordListings(t *testing.T) {
	RecordListings(ListingCensus{SellOpen: 3, SellBid: 1, SellEnded: 5, RentOffered: 4, RentRenting: 2, RentOverdue: 6})

	tests := []struct {
		kind, state string
		want        float64
	}{
		{"sell", "no_bid", 3},
		{"sell", "has_bid", 1},
		{"sell", "ended", 5},
		{"rent", "offered", 4},
		{"rent", "renting", 2},
		{"rent", "overdue", 6},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(listings.WithLabelValues(tt.kind, tt.state)); got != tt.want {
			t.Errorf("listings{%s,%s} = %v, want %v", tt.kind, tt.state, got, tt.want)
		}
	}
}

func TestRecordRouterAndWriter(t *testing.T) {
	RecordRouter(RouterSample{Published: 10, Deliveries: 25, Drops: 1, Subscribers: 3})
	if got := testutil.ToFloat64(routerEvents.WithLabelValues("delivered")); got != 25 {
		t.Errorf("router delivered = %v, want 25", got)
	}
	if got := testutil.ToFloat64(routerSubscribers); got != 3 {
		t.Errorf("router subscribers = %v, want 3", got)
	}

	RecordWriter(WriterSample{Inserts: 9, Conflicts: 1, Dropped: 3, Pending: 4})
	if got := testutil.ToFloat64(writerRows.WithLabelValues("inserted")); got != 9 {
		t.Errorf("writer inserted = %v, want 9", got)
	}
	if got := testutil.ToFloat64(writerRows.WithLabelValues("pending")); got != 4 {
		t.Errorf("writer pending = %v, want 4", got)
	}
	if got := testutil.ToFloat64(writerRows.WithLabelValues("dropped")); got != 3 {
		t.Errorf("writer dropped = %v, want 3", got)
	}
}

func TestFeedConnected(t *testing.T) {
	before := testutil.ToFloat64(feedConnections)
	FeedConnected(1)
	FeedConnected(1)
	FeedConnected(-1)
	if got := testutil.ToFloat64(feedConnections) - before; got != 1 {
		t.Errorf("feed connections delta = %v, want 1", got)
	}
}

func TestRequestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestMetricsMiddleware())
	r.GET("/v1/auctions/:class/:token", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(Handler()))

	labels := []string{http.MethodGet, "/v1/auctions/:class/:token", "204"}
	before := testutil.ToFloat64(httpRequests.WithLabelValues(labels...))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/auctions/1/2", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	if got := testutil.ToFloat64(httpRequests.WithLabelValues(labels...)) - before; got != 1 {
		t.Errorf("requests delta = %v, want 1", got)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "escrow_market_http_requests_total") {
		t.Error("metrics output missing escrow_market_http_requests_total")
	}
}
