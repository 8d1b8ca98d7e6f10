package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rickgao/escrow-market/internal/market"
)

// Router fans marketplace events out to stream subscribers and the journal.
// It implements market.EventSink; Publish never blocks.
type Router interface {
	// Start begins routing published events.
	Start(ctx context.Context) error

	// Stop routes any queued events, then closes every buffer.
	Stop(ctx context.Context) error

	// Publish queues an event for routing.
	Publish(ev market.Event)

	// Subscribe registers a consumer for events matching filter.
	Subscribe(filter Filter) *Subscription

	// Unsubscribe removes and closes a subscription.
	Unsubscribe(sub *Subscription)

	// Journal returns the buffer the event writer consumes, or nil when
	// journaling is disabled.
	Journal() *GrowableBuffer[market.Event]

	// Stats returns current router statistics.
	Stats() RouterStats
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	EventsPublished int64
	EventsRejected  int64 // Published after Stop
	Deliveries      int64
	Subscribers     int
	SubscriberDrops int64
	InputBuffer     BufferStats
	JournalBuffer   BufferStats
}

// router is the internal implementation.
type router struct {
	cfg    RouterConfig
	logger *slog.Logger

	input   *GrowableBuffer[market.Event]
	journal *GrowableBuffer[market.Event]

	mu          sync.RWMutex
	subscribers map[uint64]*Subscription
	nextID      uint64

	wg sync.WaitGroup

	statsMu    sync.Mutex
	published  int64
	rejected   int64
	deliveries int64
	drops      int64 // From closed subscriptions
}

// NewRouter creates a new Event Router.
func NewRouter(cfg RouterConfig, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &router{
		cfg:         cfg,
		logger:      logger,
		input:       NewGrowableBuffer[market.Event](cfg.InputBufferSize),
		subscribers: make(map[uint64]*Subscription),
	}
	if cfg.Journal {
		size := cfg.JournalBufferSize
		if size < 1 {
			size = cfg.InputBufferSize
		}
		r.journal = NewGrowableBuffer[market.Event](size)
	}
	return r
}

// Start begins routing events.
func (r *router) Start(ctx context.Context) error {
	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("event router started",
		"input_buffer", r.cfg.InputBufferSize,
		"subscriber_buffer", r.cfg.SubscriberBufferSize,
		"subscriber_max_buffer", r.cfg.SubscriberMaxBufferSize,
		"journal", r.cfg.Journal,
	)
	return nil
}

// Stop drains the input and closes all buffers.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping event router")

	// Closing input lets routeLoop finish queued events and exit.
	r.input.Close()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("event router stopped")
	case <-ctx.Done():
		r.logger.Warn("event router stop timed out")
	}

	if r.journal != nil {
		r.journal.Close()
	}

	r.mu.Lock()
	for id, sub := range r.subscribers {
		sub.Close()
		delete(r.subscribers, id)
	}
	r.mu.Unlock()

	return nil
}

// Publish queues ev for routing.
func (r *router) Publish(ev market.Event) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	if !r.input.Send(ev) {
		r.rejected++
		r.logger.Warn("event published after router stop", "id", ev.ID, "kind", ev.Kind)
		return
	}
	r.published++
}

// Subscribe registers a new subscription.
func (r *router) Subscribe(filter Filter) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	sub := &Subscription{
		id:     r.nextID,
		filter: filter,
		buf:    NewBoundedBuffer[market.Event](r.cfg.SubscriberBufferSize, r.cfg.SubscriberMaxBufferSize),
	}
	r.subscribers[sub.id] = sub

	r.logger.Debug("subscriber added", "id", sub.id, "subscribers", len(r.subscribers))
	return sub
}

// Unsubscribe removes and closes sub.
func (r *router) Unsubscribe(sub *Subscription) {
	r.mu.Lock()
	_, ok := r.subscribers[sub.id]
	delete(r.subscribers, sub.id)
	remaining := len(r.subscribers)
	r.mu.Unlock()

	if !ok {
		return
	}
	sub.Close()

	stats := sub.Stats()
	r.statsMu.Lock()
	r.drops += stats.Dropped
	r.statsMu.Unlock()

	r.logger.Debug("subscriber removed", "id", sub.id, "dropped", stats.Dropped, "subscribers", remaining)
}

// Journal returns the journal buffer.
func (r *router) Journal() *GrowableBuffer[market.Event] {
	return r.journal
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	subscribers := len(r.subscribers)
	var liveDrops int64
	for _, sub := range r.subscribers {
		liveDrops += sub.Stats().Dropped
	}
	r.mu.RUnlock()

	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	stats := RouterStats{
		EventsPublished: r.published,
		EventsRejected:  r.rejected,
		Deliveries:      r.deliveries,
		Subscribers:     subscribers,
		SubscriberDrops: r.drops + liveDrops,
		InputBuffer:     r.input.Stats(),
	}
	if r.journal != nil {
		stats.JournalBuffer = r.journal.Stats()
	}
	return stats
}

// routeLoop is the main routing goroutine.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		ev, ok := r.input.Receive()
		if !ok {
			return
		}
		r.route(ev)
	}
}

// route delivers one event to the journal and matching subscribers.
func (r *router) route(ev market.Event) {
	if r.journal != nil {
		r.journal.Send(ev)
	}

	var delivered int64
	r.mu.RLock()
	for _, sub := range r.subscribers {
		if sub.filter.Match(ev) && sub.buf.Send(ev) {
			delivered++
		}
	}
	r.mu.RUnlock()

	r.statsMu.Lock()
	r.deliveries += delivered
	r.statsMu.Unlock()
}
