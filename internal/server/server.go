package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/escrow-market/internal/market"
	"github.com/rickgao/escrow-market/internal/metrics"
	"github.com/rickgao/escrow-market/internal/model"
)

// Market is the serialized engine surface the server drives. Mutations
// that answer with a listing return it from the same critical section.
type Market interface {
	Open(ctx context.Context, seller model.AccountID, asset model.AssetID, basePrice model.Amount, delay, bidDuration model.Timestamp) (model.SellListing, error)
	Cancel(ctx context.Context, seller model.AccountID, asset model.AssetID) error
	Bid(ctx context.Context, bidder model.AccountID, asset model.AssetID, price model.Amount) (model.SellListing, error)
	Claim(ctx context.Context, winner model.AccountID, asset model.AssetID) error

	Offer(ctx context.Context, leaser model.AccountID, asset model.AssetID, duration model.Timestamp, collateral, price model.Amount) (model.RentListing, error)
	CancelOffer(ctx context.Context, leaser model.AccountID, asset model.AssetID) error
	Rent(ctx context.Context, renter model.AccountID, asset model.AssetID) (model.RentListing, error)
	Repay(ctx context.Context, renter model.AccountID, asset model.AssetID) error
	Liquidate(ctx context.Context, leaser model.AccountID, asset model.AssetID) error

	SellListing(ctx context.Context, asset model.AssetID) (model.SellListing, error)
	RentListing(ctx context.Context, asset model.AssetID) (model.RentListing, error)
	SellListings(ctx context.Context) ([]model.SellListing, error)
	RentListings(ctx context.Context) ([]model.RentListing, error)
	Custodian() model.AccountID
}

var _ Market = (*market.Serial)(nil)

// TokenVerifier resolves a bearer token to an account.
type TokenVerifier interface {
	Verify(token string) (model.AccountID, error)
}

// Config holds HTTP server settings.
type Config struct {
	InstanceID      string
	CustodianID     string
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MetricsPath     string // Empty disables /metrics
}

// Deps are the components the server routes to.
type Deps struct {
	Market   Market        // Required
	Verifier TokenVerifier // Required
	Feed     http.Handler  // Optional; served at /v1/stream
	Holdings Holdings      // Optional; serves accounts, supply and classes
}

// Server is the marketplace HTTP API.
type Server struct {
	cfg      Config
	market   Market
	verifier TokenVerifier
	feed     http.Handler
	holdings Holdings
	logger   *slog.Logger
	started  time.Time

	engine *gin.Engine

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
	done     chan struct{}
}

// New creates a Server and registers its routes.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Market == nil {
		return nil, errors.New("server: market is required")
	}
	if deps.Verifier == nil {
		return nil, errors.New("server: token verifier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(logger))
	if cfg.MetricsPath != "" {
		engine.Use(metrics.RequestMetricsMiddleware())
	}

	s := &Server{
		cfg:      cfg,
		market:   deps.Market,
		verifier: deps.Verifier,
		feed:     deps.Feed,
		holdings: deps.Holdings,
		logger:   logger,
		started:  time.Now(),
		engine:   engine,
	}
	s.routes()
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	done := make(chan struct{})

	s.mu.Lock()
	s.http, s.listener, s.done = srv, ln, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
		}
	}()

	s.logger.Info("http server started", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop drains in-flight requests. Hijacked feed connections are not
// tracked here; the feed closes them.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.http, s.done
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	err := srv.Shutdown(ctx)
	<-done
	if err != nil {
		s.logger.Warn("http server shutdown incomplete", "error", err)
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}
