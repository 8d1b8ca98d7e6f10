package connection

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/escrow-market/internal/metrics"
	"github.com/rickgao/escrow-market/internal/router"
)

// Subscriber is the part of the router the feed needs.
type Subscriber interface {
	Subscribe(filter router.Filter) *router.Subscription
	Unsubscribe(sub *router.Subscription)
}

// FeedServer streams router events to WebSocket peers.
type FeedServer struct {
	cfg      FeedConfig
	router   Subscriber
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	wg    sync.WaitGroup
}

// NewFeedServer creates a FeedServer over r.
func NewFeedServer(cfg FeedConfig, r Subscriber, logger *slog.Logger) *FeedServer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultFeedConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &FeedServer{
		cfg:    cfg,
		router: r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With("component", "feed"),
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and streams events until either side
// closes. A bad filter is rejected before the upgrade.
func (s *FeedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter, params, err := ParseFilter(r.URL.Query())
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		body := map[string]string{"error": err.Error(), "code": "InvalidFilter"}
		if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
			s.logger.Debug("write filter rejection failed", "error", encErr, "remote", r.RemoteAddr)
		}
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	sub := s.router.Subscribe(filter)
	s.track(conn, true)
	s.wg.Add(1)
	go s.serve(conn, sub, params)
}

// Connections returns the number of open feed connections.
func (s *FeedServer) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close closes every open connection and waits for their goroutines.
func (s *FeedServer) Close() {
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *FeedServer) track(conn *websocket.Conn, open bool) {
	s.mu.Lock()
	if open {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
	s.mu.Unlock()

	if open {
		metrics.FeedConnected(1)
	} else {
		metrics.FeedConnected(-1)
	}
}

// serve runs one connection: a read loop that notices the peer leaving, a
// ping loop, and the event write loop on this goroutine.
func (s *FeedServer) serve(conn *websocket.Conn, sub *router.Subscription, params FilterParams) {
	defer s.wg.Done()

	logger := s.logger.With("sid", sub.ID(), "remote", conn.RemoteAddr().String())
	logger.Info("feed subscriber connected", "kinds", params.Kinds)

	var writeMu sync.Mutex
	done := make(chan struct{})

	defer func() {
		close(done)
		s.router.Unsubscribe(sub)
		conn.Close()
		s.track(conn, false)
		logger.Info("feed subscriber disconnected", "dropped", sub.Stats().Dropped)
	}()

	write := func(f Frame) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		return conn.WriteJSON(f)
	}

	if err := write(Frame{Type: FrameSubscribed, SubscriptionID: sub.ID(), Filter: &params}); err != nil {
		logger.Warn("feed write failed", "error", err)
		return
	}

	pongWait := 2 * s.cfg.PingInterval
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Peer messages are ignored; a read error means the peer is gone.
	go func() {
		defer sub.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout))
				writeMu.Unlock()
				if err != nil {
					logger.Debug("failed to send ping", "error", err)
					return
				}
			}
		}
	}()

	for {
		ev, ok := sub.Receive()
		if !ok {
			writeMu.Lock()
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			writeMu.Unlock()
			return
		}
		if err := write(Frame{Type: FrameEvent, SubscriptionID: sub.ID(), Event: &ev}); err != nil {
			logger.Warn("feed write failed", "error", err)
			return
		}
	}
}
