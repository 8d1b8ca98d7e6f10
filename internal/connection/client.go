package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single feed connection.
type Client interface {
	// Connect establishes the WebSocket connection.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection.
	Close() error

	// Messages returns a channel of raw frames, each stamped with the local
	// receive time. It is never closed; watch Errors for the end of stream:
	// ErrFeedClosed when the server ends it, ErrStaleConnection when pings
	// stop arriving.
	Messages() <-chan TimestampedMessage

	// Errors returns a channel of connection errors.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool
}

// client implements the Client interface.
type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn *websocket.Conn

	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}

	writeMu sync.Mutex

	mu        sync.RWMutex
	connected bool
	closed    bool
}

// NewClient creates a new feed client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultClientConfig()
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}

	return &client{
		cfg:      cfg,
		logger:   logger.With("component", "feed_client"),
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// dialURL appends the filter to the configured URL.
func (c *client) dialURL() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	for k, v := range c.cfg.Filter.Query() {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the feed. The server pings periodically; each ping pushes
// the read deadline PingTimeout into the future.
func (c *client) Connect(ctx context.Context) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrAlreadyClosed
	}

	target, err := c.dialURL()
	if err != nil {
		return err
	}

	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial feed: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial feed: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.cfg.PingTimeout))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.PingTimeout))
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.cfg.WriteTimeout))
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)

	c.logger.Debug("feed connected", "url", target)
	return nil
}

// Close sends a close frame and closes the connection.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	close(c.done)
	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.cfg.WriteTimeout),
	)
	c.writeMu.Unlock()
	return conn.Close()
}

// Messages returns the messages channel.
func (c *client) Messages() <-chan TimestampedMessage {
	return c.messages
}

// Errors returns the errors channel.
func (c *client) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current connection state.
func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// readLoop forwards frames until the connection ends. A slow consumer
// stalls the socket; the server drops the oldest events for it.
func (c *client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			c.fail(streamError(err))
			return
		}

		select {
		case c.messages <- TimestampedMessage{Data: data, ReceivedAt: time.Now()}:
		case <-c.done:
			return
		}
	}
}

// fail reports err unless the client was closed locally.
func (c *client) fail(err error) {
	select {
	case <-c.done:
		return
	default:
	}
	c.logger.Debug("feed ended", "error", err)
	select {
	case c.errors <- err:
	default:
	}
}

// streamError maps a read error to the reason the stream ended.
func streamError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return ErrFeedClosed
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrStaleConnection
	}
	return fmt.Errorf("read feed: %w", err)
}
