package market

import (
	"context"
	"sync"

	"github.com/rickgao/escrow-market/internal/model"
)

// Serial wraps an Engine so it can be shared by concurrent callers. Every
// call holds one lock, which gives all operations a single total order.
//
// Open, Bid, Offer and Rent also return the listing as the call left it,
// read under the same lock, so no other operation can slip in between.
type Serial struct {
	mu sync.Mutex
	e  *Engine
}

// NewSerial wraps e.
func NewSerial(e *Engine) *Serial {
	return &Serial{e: e}
}

// Open escrows asset and lists it for auction. See Engine.Open.
func (s *Serial) Open(ctx context.Context, seller model.AccountID, asset model.AssetID, basePrice model.Amount, delay, bidDuration model.Timestamp) (model.SellListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.e.Open(ctx, seller, asset, basePrice, delay, bidDuration); err != nil {
		return model.SellListing{}, err
	}
	return s.e.SellListing(ctx, asset)
}

// Cancel withdraws an auction with no bid.
func (s *Serial) Cancel(ctx context.Context, seller model.AccountID, asset model.AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.e.Cancel(ctx, seller, asset)
}

// Bid places a bid and returns the auction with the bidder leading.
func (s *Serial) Bid(ctx context.Context, bidder model.AccountID, asset model.AssetID, price model.Amount) (model.SellListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.e.Bid(ctx, bidder, asset, price); err != nil {
		return model.SellListing{}, err
	}
	return s.e.SellListing(ctx, asset)
}

// Claim settles an ended auction to its winner.
func (s *Serial) Claim(ctx context.Context, winner model.AccountID, asset model.AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.e.Claim(ctx, winner, asset)
}

// Offer escrows asset and lists it for rent.
func (s *Serial) Offer(ctx context.Context, leaser model.AccountID, asset model.AssetID, duration model.Timestamp, collateral, price model.Amount) (model.RentListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.e.Offer(ctx, leaser, asset, duration, collateral, price); err != nil {
		return model.RentListing{}, err
	}
	return s.e.RentListing(ctx, asset)
}

// CancelOffer withdraws an untaken rental offer.
func (s *Serial) CancelOffer(ctx context.Context, leaser model.AccountID, asset model.AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.e.CancelOffer(ctx, leaser, asset)
}

// Rent takes an offer and returns the running rental.
func (s *Serial) Rent(ctx context.Context, renter model.AccountID, asset model.AssetID) (model.RentListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.e.Rent(ctx, renter, asset); err != nil {
		return model.RentListing{}, err
	}
	return s.e.RentListing(ctx, asset)
}

// Repay ends a rental before its deadline.
func (s *Serial) Repay(ctx context.Context, renter model.AccountID, asset model.AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.e.Repay(ctx, renter, asset)
}

// Liquidate hands the collateral of an overdue rental to the leaser.
func (s *Serial) Liquidate(ctx context.Context, leaser model.AccountID, asset model.AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.e.Liquidate(ctx, leaser, asset)
}

// SellListing returns the auction for asset.
func (s *Serial) SellListing(ctx context.Context, asset model.AssetID) (model.SellListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.e.SellListing(ctx, asset)
}

// RentListing returns the rental for asset.
func (s *Serial) RentListing(ctx context.Context, asset model.AssetID) (model.RentListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.e.RentListing(ctx, asset)
}

// SellListings returns a snapshot of every auction.
func (s *Serial) SellListings(ctx context.Context) ([]model.SellListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.e.SellListings(ctx)
}

// RentListings returns a snapshot of every rental.
func (s *Serial) RentListings(ctx context.Context) ([]model.RentListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.e.RentListings(ctx)
}

// Custodian returns the escrow account. It is fixed at construction and
// read without the lock.
func (s *Serial) Custodian() model.AccountID { return s.e.Custodian() }

// Limits returns the engine's configured bounds, also lock free.
func (s *Serial) Limits() Limits { return s.e.Limits() }
