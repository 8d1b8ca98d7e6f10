package router

import (
	"slices"

	"github.com/rickgao/escrow-market/internal/market"
	"github.com/rickgao/escrow-market/internal/model"
)

// RouterConfig holds configuration for the Event Router.
type RouterConfig struct {
	InputBufferSize         int  // Default: 1024
	SubscriberBufferSize    int  // Default: 256
	SubscriberMaxBufferSize int  // Default: 4096, oldest events dropped beyond this
	Journal                 bool // Keep a journal buffer for the event writer
	JournalBufferSize       int  // Initial journal capacity; defaults to InputBufferSize
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		InputBufferSize:         1024,
		SubscriberBufferSize:    256,
		SubscriberMaxBufferSize: 4096,
	}
}

// Filter selects events for a subscription. The zero Filter matches
// everything.
type Filter struct {
	Kinds []market.EventKind // Empty means all kinds
	Asset *model.AssetID     // Nil means all assets
}

// Match reports whether ev passes the filter.
func (f Filter) Match(ev market.Event) bool {
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, ev.Kind) {
		return false
	}
	if f.Asset != nil && *f.Asset != ev.Asset {
		return false
	}
	return true
}

// Subscription is one consumer's view of the event stream.
type Subscription struct {
	id     uint64
	filter Filter
	buf    *GrowableBuffer[market.Event]
}

// ID returns the subscription's identifier.
func (s *Subscription) ID() uint64 {
	return s.id
}

// Filter returns the subscription's filter.
func (s *Subscription) Filter() Filter {
	return s.filter
}

// Receive blocks until an event is available. It returns false once the
// subscription is closed and drained.
func (s *Subscription) Receive() (market.Event, bool) {
	return s.buf.Receive()
}

// TryReceive returns the next event without blocking.
func (s *Subscription) TryReceive() (market.Event, bool) {
	return s.buf.TryReceive()
}

// Close ends the subscription. Pending events remain readable.
func (s *Subscription) Close() {
	s.buf.Close()
}

// Stats returns the subscription buffer statistics.
func (s *Subscription) Stats() BufferStats {
	return s.buf.Stats()
}
