package market

import (
	"context"
	"slices"
	"sync"

	"github.com/rickgao/escrow-market/internal/model"
)

// ListingStore persists live listings keyed by asset.
//
// Get methods return ok=false when no listing exists. Delete of a missing
// listing is not an error.
type ListingStore interface {
	GetSell(ctx context.Context, asset model.AssetID) (model.SellListing, bool, error)
	PutSell(ctx context.Context, l model.SellListing) error
	DeleteSell(ctx context.Context, asset model.AssetID) error
	ListSell(ctx context.Context) ([]model.SellListing, error)

	GetRent(ctx context.Context, asset model.AssetID) (model.RentListing, bool, error)
	PutRent(ctx context.Context, l model.RentListing) error
	DeleteRent(ctx context.Context, asset model.AssetID) error
	ListRent(ctx context.Context) ([]model.RentListing, error)
}

// MemoryStore is a thread-safe in-memory ListingStore.
type MemoryStore struct {
	mu   sync.RWMutex
	sell map[model.AssetID]model.SellListing
	rent map[model.AssetID]model.RentListing
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sell: make(map[model.AssetID]model.SellListing),
		rent: make(map[model.AssetID]model.RentListing),
	}
}

// GetSell returns the auction for asset.
func (s *MemoryStore) GetSell(_ context.Context, asset model.AssetID) (model.SellListing, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.sell[asset]
	return l, ok, nil
}

// PutSell inserts or replaces an auction.
func (s *MemoryStore) PutSell(_ context.Context, l model.SellListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sell[l.Asset] = l
	return nil
}

// DeleteSell removes the auction for asset.
func (s *MemoryStore) DeleteSell(_ context.Context, asset model.AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sell, asset)
	return nil
}

// ListSell returns all auctions ordered by asset.
func (s *MemoryStore) ListSell(_ context.Context) ([]model.SellListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.SellListing, 0, len(s.sell))
	for _, l := range s.sell {
		result = append(result, l)
	}
	slices.SortFunc(result, func(a, b model.SellListing) int {
		return model.CompareAssets(a.Asset, b.Asset)
	})
	return result, nil
}

// GetRent returns the rental offer for asset.
func (s *MemoryStore) GetRent(_ context.Context, asset model.AssetID) (model.RentListing, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.rent[asset]
	return l, ok, nil
}

// PutRent inserts or replaces a rental offer.
func (s *MemoryStore) PutRent(_ context.Context, l model.RentListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rent[l.Asset] = l
	return nil
}

// DeleteRent removes the rental offer for asset.
func (s *MemoryStore) DeleteRent(_ context.Context, asset model.AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rent, asset)
	return nil
}

// ListRent returns all rental offers ordered by asset.
func (s *MemoryStore) ListRent(_ context.Context) ([]model.RentListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.RentListing, 0, len(s.rent))
	for _, l := range s.rent {
		result = append(result, l)
	}
	slices.SortFunc(result, func(a, b model.RentListing) int {
		return model.CompareAssets(a.Asset, b.Asset)
	})
	return result, nil
}
