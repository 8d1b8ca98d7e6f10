package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/rickgao/escrow-market/internal/model"
)

// Deps are the capabilities an Engine is built on.
type Deps struct {
	Ledger   Ledger       // Required
	Registry Registry     // Required
	Clock    Clock        // Defaults to SystemClock
	Store    ListingStore // Defaults to a new MemoryStore
	Events   EventSink    // Optional
}

// Engine runs auctions and rentals against the Ledger and Registry.
type Engine struct {
	cfg       Config
	custodian model.AccountID

	ledger   Ledger
	registry Registry
	clock    Clock
	store    ListingStore
	events   EventSink

	logger *slog.Logger
}

// New creates an Engine. Capabilities are resolved once here.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Engine, error) {
	if deps.Ledger == nil {
		return nil, errors.New("market: ledger is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("market: registry is required")
	}
	if cfg.CustodianID == "" {
		return nil, errors.New("market: custodian id is required")
	}
	if err := cfg.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("market: limits: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Store == nil {
		deps.Store = NewMemoryStore()
	}
	if deps.Events == nil {
		deps.Events = discardSink{}
	}

	return &Engine{
		cfg:       cfg,
		custodian: cfg.Custodian(),
		ledger:    deps.Ledger,
		registry:  deps.Registry,
		clock:     deps.Clock,
		store:     deps.Store,
		events:    deps.Events,
		logger:    logger.With("component", "market"),
	}, nil
}

// Custodian returns the escrow account.
func (e *Engine) Custodian() model.AccountID {
	return e.custodian
}

// Limits returns the configured parameter bounds.
func (e *Engine) Limits() Limits {
	return e.cfg.Limits
}

// SellListing returns the auction for asset.
func (e *Engine) SellListing(ctx context.Context, asset model.AssetID) (model.SellListing, error) {
	l, ok, err := e.store.GetSell(ctx, asset)
	if err != nil {
		return model.SellListing{}, fmt.Errorf("load auction %s: %w", asset, err)
	}
	if !ok {
		return model.SellListing{}, ErrSellItemNotExist
	}
	return l, nil
}

// RentListing returns the rental offer for asset.
func (e *Engine) RentListing(ctx context.Context, asset model.AssetID) (model.RentListing, error) {
	l, ok, err := e.store.GetRent(ctx, asset)
	if err != nil {
		return model.RentListing{}, fmt.Errorf("load rental %s: %w", asset, err)
	}
	if !ok {
		return model.RentListing{}, ErrRentItemNotExist
	}
	return l, nil
}

// HasSellListing reports whether asset is up for auction.
func (e *Engine) HasSellListing(ctx context.Context, asset model.AssetID) (bool, error) {
	_, ok, err := e.store.GetSell(ctx, asset)
	return ok, err
}

// HasRentListing reports whether asset is offered for rent.
func (e *Engine) HasRentListing(ctx context.Context, asset model.AssetID) (bool, error) {
	_, ok, err := e.store.GetRent(ctx, asset)
	return ok, err
}

// SellListings returns every live auction.
func (e *Engine) SellListings(ctx context.Context) ([]model.SellListing, error) {
	return e.store.ListSell(ctx)
}

// RentListings returns every live rental offer.
func (e *Engine) RentListings(ctx context.Context) ([]model.RentListing, error) {
	return e.store.ListRent(ctx)
}

// emit publishes the event for a successful operation.
func (e *Engine) emit(kind EventKind, account model.AccountID, asset model.AssetID, amount model.Amount, counterparty model.AccountID, now model.Timestamp) {
	ev := Event{
		ID:           uuid.New(),
		Kind:         kind,
		Account:      account,
		Asset:        asset,
		Amount:       amount,
		Counterparty: counterparty,
		Timestamp:    now,
	}
	e.events.Publish(ev)
	e.logger.Info("market event",
		"kind", kind,
		"account", account,
		"asset", asset,
		"amount", amount,
	)
}

// checkOwner maps a false ownership check to notOwner.
func (e *Engine) checkOwner(ctx context.Context, account model.AccountID, asset model.AssetID, notOwner error) error {
	owns, err := e.registry.IsOwnerOf(ctx, account, asset)
	if err != nil {
		return fmt.Errorf("check owner of %s: %w", asset, err)
	}
	if !owns {
		return notOwner
	}
	return nil
}

// addTime returns a+b and false on uint64 overflow.
func addTime(a, b model.Timestamp) (model.Timestamp, bool) {
	if b > math.MaxUint64-a {
		return 0, false
	}
	return a + b, true
}
