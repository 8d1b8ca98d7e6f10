// marketd runs the escrow marketplace: the HTTP API, the event feed and,
// with the postgres backend, the event journal.
// Usage: go run ./cmd/marketd --config configs/marketd.example.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/escrow-market/internal/auth"
	"github.com/rickgao/escrow-market/internal/config"
	"github.com/rickgao/escrow-market/internal/connection"
	"github.com/rickgao/escrow-market/internal/database"
	"github.com/rickgao/escrow-market/internal/ledger"
	"github.com/rickgao/escrow-market/internal/market"
	"github.com/rickgao/escrow-market/internal/metrics"
	"github.com/rickgao/escrow-market/internal/model"
	"github.com/rickgao/escrow-market/internal/poller"
	"github.com/rickgao/escrow-market/internal/registry"
	"github.com/rickgao/escrow-market/internal/router"
	"github.com/rickgao/escrow-market/internal/server"
	"github.com/rickgao/escrow-market/internal/version"
	"github.com/rickgao/escrow-market/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/marketd.example.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting marketd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
		"backend", cfg.Storage.Backend,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("marketd failed", "error", err)
		os.Exit(1)
	}
	logger.Info("marketd stopped")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// backend holds the engine capabilities for one storage choice.
type backend struct {
	deps     market.Deps
	holdings server.Holdings
	pool     *pgxpool.Pool // nil for the memory backend
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := seedGenesis(ctx, cfg.Genesis, b.deps, logger); err != nil {
		return err
	}

	// Router
	routerCfg := router.DefaultRouterConfig()
	routerCfg.SubscriberBufferSize = cfg.Feed.BufferSize
	routerCfg.SubscriberMaxBufferSize = cfg.Feed.MaxBufferSize
	routerCfg.Journal = b.pool != nil
	routerCfg.JournalBufferSize = cfg.Writer.BufferSize
	rt := router.NewRouter(routerCfg, logger.With("component", "router"))
	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}

	// Engine
	b.deps.Events = rt
	engine, err := market.New(cfg.Market.Engine(), b.deps, logger)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	mkt := market.NewSerial(engine)
	logger.Info("engine ready", "custodian", engine.Custodian().String())

	// Event writer
	var ew *writer.EventWriter
	if journal := rt.Journal(); journal != nil {
		ew = writer.NewEventWriter(writer.WriterConfig{
			BatchSize:     cfg.Writer.BatchSize,
			FlushInterval: cfg.Writer.FlushInterval,
			MaxPending:    cfg.Writer.MaxPending,
		}, journal, b.pool, logger)
		if err := ew.Start(ctx); err != nil {
			return fmt.Errorf("start event writer: %w", err)
		}
	}

	// Poller
	samplers := []poller.Sampler{func() {
		s := rt.Stats()
		metrics.RecordRouter(metrics.RouterSample{
			Published:   s.EventsPublished,
			Rejected:    s.EventsRejected,
			Deliveries:  s.Deliveries,
			Drops:       s.SubscriberDrops,
			Subscribers: s.Subscribers,
		})
	}}
	if ew != nil {
		samplers = append(samplers, func() {
			s := ew.Stats()
			metrics.RecordWriter(metrics.WriterSample{
				Inserts:   s.Inserts,
				Conflicts: s.Conflicts,
				Errors:    s.Errors,
				Flushes:   s.Flushes,
				Dropped:   s.Dropped,
				Pending:   ew.Pending(),
			})
		})
	}
	census := poller.CensusHandlerFunc(func(c metrics.ListingCensus) error {
		logger.Debug("listing census",
			"sell_open", c.SellOpen,
			"sell_bid", c.SellBid,
			"sell_ended", c.SellEnded,
			"rent_offered", c.RentOffered,
			"rent_renting", c.RentRenting,
			"rent_overdue", c.RentOverdue,
		)
		return nil
	})
	pl := poller.New(poller.Config{Interval: cfg.Poller.Interval}, mkt, b.deps.Clock, census, logger, samplers...)
	if err := pl.Start(ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}

	// HTTP
	verifier, err := auth.LoadVerifier(cfg.Auth.Issuer, cfg.Auth.PublicKeyPath)
	if err != nil {
		return fmt.Errorf("load token verifier: %w", err)
	}
	feed := connection.NewFeedServer(connection.FeedConfig{
		PingInterval: cfg.Feed.PingInterval,
		WriteTimeout: cfg.Feed.WriteTimeout,
	}, rt, logger)

	serverCfg := server.Config{
		InstanceID:      cfg.Instance.ID,
		CustodianID:     cfg.Market.CustodianID,
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	if cfg.Metrics.IsEnabled() {
		serverCfg.MetricsPath = cfg.Metrics.Path
	}
	srv, err := server.New(serverCfg, server.Deps{
		Market:   mkt,
		Verifier: verifier,
		Feed:     feed,
		Holdings: b.holdings,
	}, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	logger.Info("marketd running",
		"addr", srv.Addr(),
		"metrics", serverCfg.MetricsPath,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+5*time.Second)
	defer shutdownCancel()

	// Requests first, so no operation publishes after the router stops.
	// Stopping the router also ends every feed stream and closes the
	// journal the writer drains.
	var errs []error
	errs = append(errs, srv.Stop(shutdownCtx))
	errs = append(errs, rt.Stop(shutdownCtx))
	feed.Close()

	g, gctx := errgroup.WithContext(shutdownCtx)
	if ew != nil {
		g.Go(func() error { return ew.Stop(gctx) })
	}
	g.Go(func() error { return pl.Stop(gctx) })
	errs = append(errs, g.Wait())

	return errors.Join(errs...)
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		db := cfg.Database.Postgres
		logger.Info("connecting to database",
			"host", db.Host,
			"port", db.Port,
			"database", db.Name,
		)
		pool, err := database.Connect(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := database.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("database connected")
		holdings := database.NewHoldings(pool)
		return &backend{
			pool:     pool,
			holdings: holdings,
			deps: market.Deps{
				Ledger:   holdings.Ledger,
				Registry: holdings.Registry,
				Store:    database.NewListingStore(pool),
				Clock:    market.SystemClock{},
			},
		}, nil

	default:
		l, r := ledger.NewMemory(), registry.NewMemory()
		return &backend{
			holdings: server.MemoryHoldings{Ledger: l, Registry: r},
			deps: market.Deps{
				Ledger:   l,
				Registry: r,
				Store:    market.NewMemoryStore(),
				Clock:    market.SystemClock{},
			},
		}, nil
	}
}

var _ server.Holdings = (*database.Holdings)(nil)

// genesisSeeder is implemented by both storage backends.
type genesisSeeder interface {
	SeedBalance(ctx context.Context, account model.AccountID, amount model.Amount) error
}

type tokenSeeder interface {
	SeedToken(ctx context.Context, owner model.AccountID, asset model.AssetID) error
}

// seedGenesis applies configured balances and token ownership. The postgres
// backend skips rows that already exist.
func seedGenesis(ctx context.Context, g config.GenesisConfig, deps market.Deps, logger *slog.Logger) error {
	balances, ok := deps.Ledger.(genesisSeeder)
	if !ok && len(g.Balances) > 0 {
		return errors.New("ledger does not support genesis balances")
	}
	for _, b := range g.Balances {
		account := model.ResolveAccountID(b.Account)
		if err := balances.SeedBalance(ctx, account, b.Amount); err != nil {
			return fmt.Errorf("seed balance for %s: %w", b.Account, err)
		}
		logger.Debug("seeded balance", "account", b.Account, "id", account.String(), "amount", b.Amount)
	}

	tokens, ok := deps.Registry.(tokenSeeder)
	if !ok && len(g.Tokens) > 0 {
		return errors.New("registry does not support genesis tokens")
	}
	for _, t := range g.Tokens {
		owner := model.ResolveAccountID(t.Owner)
		asset := model.AssetID{Class: t.ClassID, Token: t.TokenID}
		if err := tokens.SeedToken(ctx, owner, asset); err != nil {
			return fmt.Errorf("seed token %s: %w", asset, err)
		}
		logger.Debug("seeded token", "owner", t.Owner, "asset", asset.String())
	}

	if len(g.Balances)+len(g.Tokens) > 0 {
		logger.Info("genesis applied", "balances", len(g.Balances), "tokens", len(g.Tokens))
	}
	return nil
}
