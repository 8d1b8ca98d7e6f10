package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/escrow-market/internal/market"
	"github.com/rickgao/escrow-market/internal/metrics"
	"github.com/rickgao/escrow-market/internal/model"
)

// ListingSource provides the listings to count.
type ListingSource interface {
	SellListings(ctx context.Context) ([]model.SellListing, error)
	RentListings(ctx context.Context) ([]model.RentListing, error)
}

// CensusHandler receives each completed census.
type CensusHandler interface {
	HandleCensus(census metrics.ListingCensus) error
}

// CensusHandlerFunc is a function adapter for CensusHandler.
type CensusHandlerFunc func(metrics.ListingCensus) error

func (f CensusHandlerFunc) HandleCensus(c metrics.ListingCensus) error {
	return f(c)
}

// Sampler exports one component's counters. It runs once per cycle.
type Sampler func()

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Census interval (default: 30s)
	Timeout  time.Duration // Per-census timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Poller periodically counts listings and samples component stats.
type Poller struct {
	cfg      Config
	source   ListingSource
	clock    market.Clock
	handler  CensusHandler
	samplers []Sampler
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. A nil clock reads the wall clock.
func New(cfg Config, source ListingSource, clock market.Clock, handler CensusHandler, logger *slog.Logger, samplers ...Sampler) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = market.SystemClock{}
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:      cfg,
		source:   source,
		clock:    clock,
		handler:  handler,
		samplers: samplers,
		logger:   logger.With("component", "poller"),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("listing poller started",
		"interval", p.cfg.Interval,
		"samplers", len(p.samplers),
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("listing poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.pollAll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll runs one census and every sampler.
func (p *Poller) pollAll() {
	start := time.Now()

	for _, sample := range p.samplers {
		sample()
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	census, err := p.Census(ctx)
	if err != nil {
		p.logger.Warn("listing census failed", "error", err)
		return
	}

	metrics.RecordListings(census)
	if p.handler != nil {
		if err := p.handler.HandleCensus(census); err != nil {
			p.logger.Warn("census handler failed", "error", err)
		}
	}

	p.logger.Debug("poll cycle complete",
		"sell", census.SellOpen+census.SellBid+census.SellEnded,
		"rent", census.RentOffered+census.RentRenting+census.RentOverdue,
		"overdue", census.RentOverdue,
		"duration", time.Since(start),
	)
}

// Census counts listings by state as of the clock's current time.
func (p *Poller) Census(ctx context.Context) (metrics.ListingCensus, error) {
	var c metrics.ListingCensus
	now := p.clock.Now()

	sells, err := p.source.SellListings(ctx)
	if err != nil {
		return c, fmt.Errorf("sell listings: %w", err)
	}
	for _, l := range sells {
		switch {
		case l.Ended(now):
			c.SellEnded++
		case l.HasBid():
			c.SellBid++
		default:
			c.SellOpen++
		}
	}

	rents, err := p.source.RentListings(ctx)
	if err != nil {
		return c, fmt.Errorf("rent listings: %w", err)
	}
	for _, l := range rents {
		switch {
		case !l.IsRenting():
			c.RentOffered++
		case l.Expired(now):
			c.RentOverdue++
		default:
			c.RentRenting++
		}
	}

	return c, nil
}
