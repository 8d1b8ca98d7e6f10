package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/escrow-market/internal/market"
	"github.com/rickgao/escrow-market/internal/model"
	"github.com/rickgao/escrow-market/internal/router"
)

// Errors
var (
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrFeedClosed      = errors.New("feed closed by server")
)

// Frame types.
const (
	FrameSubscribed = "subscribed"
	FrameEvent      = "event"
	FrameError      = "error"
)

// Frame is one server-to-client message.
type Frame struct {
	Type           string        `json:"type"`
	SubscriptionID uint64        `json:"sid,omitempty"`
	Filter         *FilterParams `json:"filter,omitempty"` // subscribed only
	Event          *market.Event `json:"event,omitempty"`  // event only
	Error          string        `json:"error,omitempty"`  // error only
}

// FilterParams is the query-string form of a router.Filter.
type FilterParams struct {
	Kinds   []string `json:"kinds,omitempty"`
	ClassID *uint64  `json:"class_id,omitempty"`
	TokenID *uint64  `json:"token_id,omitempty"`
}

// ParseFilter reads kind, class_id and token_id from a query. kind may be
// repeated or comma separated. class_id and token_id must appear together.
func ParseFilter(q url.Values) (router.Filter, FilterParams, error) {
	var (
		f      router.Filter
		params FilterParams
	)

	for _, raw := range q["kind"] {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			kind, ok := market.ParseEventKind(s)
			if !ok {
				return f, params, fmt.Errorf("unknown event kind %q", s)
			}
			f.Kinds = append(f.Kinds, kind)
			params.Kinds = append(params.Kinds, s)
		}
	}

	class, token := q.Get("class_id"), q.Get("token_id")
	if class == "" && token == "" {
		return f, params, nil
	}
	if class == "" || token == "" {
		return f, params, errors.New("class_id and token_id must be given together")
	}
	c, err := strconv.ParseUint(class, 10, 64)
	if err != nil {
		return f, params, fmt.Errorf("class_id: %w", err)
	}
	t, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return f, params, fmt.Errorf("token_id: %w", err)
	}
	f.Asset = &model.AssetID{Class: c, Token: t}
	params.ClassID, params.TokenID = &c, &t
	return f, params, nil
}

// Query renders the params as URL query values.
func (p FilterParams) Query() url.Values {
	q := url.Values{}
	if len(p.Kinds) > 0 {
		q.Set("kind", strings.Join(p.Kinds, ","))
	}
	if p.ClassID != nil && p.TokenID != nil {
		q.Set("class_id", strconv.FormatUint(*p.ClassID, 10))
		q.Set("token_id", strconv.FormatUint(*p.TokenID, 10))
	}
	return q
}

// DecodeFrame parses one frame.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // Feed URL (e.g., ws://localhost:8080/v1/stream)
	Filter       FilterParams  // Appended to URL as query parameters
	Token        string        // Optional bearer token
	PingTimeout  time.Duration // Max time between server pings before the stream is stale
	WriteTimeout time.Duration // Write deadline for control frames
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1024,
	}
}

// FeedConfig configures the FeedServer.
type FeedConfig struct {
	PingInterval time.Duration // Server ping period
	WriteTimeout time.Duration // Write deadline per frame
}

// DefaultFeedConfig returns sensible defaults.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}
