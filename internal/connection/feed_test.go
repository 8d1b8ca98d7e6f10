package connection

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/escrow-market/internal/market"
	"github.com/rickgao/escrow-market/internal/model"
	"github.com/rickgao/escrow-market/internal/router"
)

var testAsset = model.AssetID{Class: 1, Token: 7}

func startRouter(t *testing.T) router.Router {
	t.Helper()
	r := router.NewRouter(router.DefaultRouterConfig(), nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("router Start() error = %v", err)
	}
	t.Cleanup(func() { r.Stop(context.Background()) })
	return r
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func nextFrame(t *testing.T, c Client) Frame {
	t.Helper()
	select {
	case msg := <-c.Messages():
		f, err := DecodeFrame(msg.Data)
		if err != nil {
			t.Fatalf("DecodeFrame failed: %v", err)
		}
		return f
	case err := <-c.Errors():
		t.Fatalf("client error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return Frame{}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantKinds int
		wantAsset *model.AssetID
		wantErr   bool
	}{
		{name: "empty", query: ""},
		{name: "one kind", query: "kind=bid", wantKinds: 1},
		{name: "comma kinds", query: "kind=bid,closed", wantKinds: 2},
		{name: "repeated kinds", query: "kind=rented&kind=repaid", wantKinds: 2},
		{name: "asset", query: "class_id=1&token_id=7", wantAsset: &testAsset},
		{name: "unknown kind", query: "kind=sold", wantErr: true},
		{name: "class without token", query: "class_id=1", wantErr: true},
		{name: "bad token", query: "class_id=1&token_id=x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			f, params, err := ParseFilter(q)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFilter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(f.Kinds) != tt.wantKinds {
				t.Errorf("len(Kinds) = %d, want %d", len(f.Kinds), tt.wantKinds)
			}
			if (f.Asset == nil) != (tt.wantAsset == nil) || (f.Asset != nil && *f.Asset != *tt.wantAsset) {
				t.Errorf("Asset = %v, want %v", f.Asset, tt.wantAsset)
			}

			// Query round trip yields the same filter.
			again, _, err := ParseFilter(params.Query())
			if err != nil {
				t.Fatalf("ParseFilter(Query()) error = %v", err)
			}
			if len(again.Kinds) != len(f.Kinds) {
				t.Errorf("round trip kinds = %v, want %v", again.Kinds, f.Kinds)
			}
		})
	}
}

func TestFeed_StreamsFilteredEvents(t *testing.T) {
	r := startRouter(t)
	feed := NewFeedServer(FeedConfig{PingInterval: time.Second, WriteTimeout: time.Second}, r, nil)
	server := httptest.NewServer(feed)
	defer server.Close()
	defer feed.Close()

	c := NewClient(ClientConfig{
		URL:    wsURL(server),
		Filter: FilterParams{Kinds: []string{"bid"}},
	}, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	sub := nextFrame(t, c)
	if sub.Type != FrameSubscribed {
		t.Fatalf("first frame type = %q, want %q", sub.Type, FrameSubscribed)
	}
	if sub.Filter == nil || len(sub.Filter.Kinds) != 1 || sub.Filter.Kinds[0] != "bid" {
		t.Errorf("subscribed filter = %+v, want kinds [bid]", sub.Filter)
	}
	waitFor(t, func() bool { return feed.Connections() == 1 })

	bidder := model.DeriveAccountID("bidder")
	seller := model.DeriveAccountID("seller")
	r.Publish(market.Event{ID: uuid.New(), Kind: market.EventOpened, Account: seller, Asset: testAsset, Amount: 100})
	bid := market.Event{ID: uuid.New(), Kind: market.EventBid, Account: bidder, Asset: testAsset, Amount: 150, Counterparty: seller, Timestamp: 1010}
	r.Publish(bid)

	f := nextFrame(t, c)
	if f.Type != FrameEvent || f.Event == nil {
		t.Fatalf("frame = %+v, want an event frame", f)
	}
	if f.SubscriptionID != sub.SubscriptionID {
		t.Errorf("sid = %d, want %d", f.SubscriptionID, sub.SubscriptionID)
	}
	if *f.Event != bid {
		t.Errorf("event = %+v, want %+v", *f.Event, bid)
	}
}

func TestFeed_RejectsBadFilter(t *testing.T) {
	r := startRouter(t)
	server := httptest.NewServer(NewFeedServer(DefaultFeedConfig(), r, nil))
	defer server.Close()

	resp, err := http.Get(server.URL + "?kind=sold")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

// brokenWriter accepts headers but fails every body write.
type brokenWriter struct {
	header http.Header
	status int
}

func (w *brokenWriter) Header() http.Header { return w.header }

func (w *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func (w *brokenWriter) WriteHeader(status int) { w.status = status }

func TestFeed_BadFilterWriteFailureLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	feed := NewFeedServer(DefaultFeedConfig(), startRouter(t), logger)

	w := &brokenWriter{header: make(http.Header)}
	feed.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?class_id=x", nil))

	if w.status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.status)
	}
	if !strings.Contains(logs.String(), "write filter rejection failed") {
		t.Errorf("log = %q, want the failed write recorded", logs.String())
	}
	if !strings.Contains(logs.String(), "connection reset") {
		t.Errorf("log = %q, want the write error", logs.String())
	}
}

func TestFeed_ClientDisconnectUnsubscribes(t *testing.T) {
	r := startRouter(t)
	feed := NewFeedServer(DefaultFeedConfig(), r, nil)
	server := httptest.NewServer(feed)
	defer server.Close()

	c := NewClient(ClientConfig{URL: wsURL(server)}, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	nextFrame(t, c)
	waitFor(t, func() bool { return r.Stats().Subscribers == 1 })

	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if c.IsConnected() {
		t.Error("expected IsConnected to return false after Close")
	}

	waitFor(t, func() bool { return r.Stats().Subscribers == 0 && feed.Connections() == 0 })
}

func TestFeed_RouterStopEndsStream(t *testing.T) {
	r := router.NewRouter(router.DefaultRouterConfig(), nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("router Start() error = %v", err)
	}
	feed := NewFeedServer(DefaultFeedConfig(), r, nil)
	server := httptest.NewServer(feed)
	defer server.Close()

	c := NewClient(ClientConfig{URL: wsURL(server)}, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()
	nextFrame(t, c)

	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("router Stop() error = %v", err)
	}

	select {
	case err := <-c.Errors():
		if err != ErrFeedClosed {
			t.Errorf("stream error = %v, want ErrFeedClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream end")
	}
	waitFor(t, func() bool { return feed.Connections() == 0 })
}

func TestClient_StaleWithoutPings(t *testing.T) {
	r := startRouter(t)
	feed := NewFeedServer(FeedConfig{PingInterval: time.Hour}, r, nil)
	server := httptest.NewServer(feed)
	defer server.Close()
	defer feed.Close()

	c := NewClient(ClientConfig{URL: wsURL(server), PingTimeout: 100 * time.Millisecond}, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()
	nextFrame(t, c)

	select {
	case err := <-c.Errors():
		if err != ErrStaleConnection {
			t.Errorf("stream error = %v, want ErrStaleConnection", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stale connection")
	}
	if c.IsConnected() {
		t.Error("expected IsConnected to return false after a stale read")
	}
}

func TestClient_ConnectAfterClose(t *testing.T) {
	c := NewClient(ClientConfig{URL: "ws://127.0.0.1:1"}, nil)
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Connect(context.Background()); err != ErrAlreadyClosed {
		t.Errorf("Connect after Close error = %v, want ErrAlreadyClosed", err)
	}
}
