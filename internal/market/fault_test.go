package market

import (
	"context"
	"errors"

	"github.com/rickgao/escrow-market/internal/model"
)

var errInjected = errors.New("injected failure")

// faultyLedger fails the Transfer calls whose 1-based index is in fail.
type faultyLedger struct {
	Ledger
	fail  map[int]bool
	calls int
}

func (l *faultyLedger) Transfer(ctx context.Context, src, dst model.AccountID, amount model.Amount) error {
	l.calls++
	if l.fail[l.calls] {
		return errInjected
	}
	return l.Ledger.Transfer(ctx, src, dst, amount)
}

// faultyRegistry fails the Transfer calls whose 1-based index is in fail.
type faultyRegistry struct {
	Registry
	fail  map[int]bool
	calls int
}

func (r *faultyRegistry) Transfer(ctx context.Context, src, dst model.AccountID, asset model.AssetID) error {
	r.calls++
	if r.fail[r.calls] {
		return errInjected
	}
	return r.Registry.Transfer(ctx, src, dst, asset)
}

// faultyStore fails every write once armed.
type faultyStore struct {
	*MemoryStore
	armed bool
}

func (s *faultyStore) PutSell(ctx context.Context, l model.SellListing) error {
	if s.armed {
		return errInjected
	}
	return s.MemoryStore.PutSell(ctx, l)
}

func (s *faultyStore) DeleteSell(ctx context.Context, asset model.AssetID) error {
	if s.armed {
		return errInjected
	}
	return s.MemoryStore.DeleteSell(ctx, asset)
}

func (s *faultyStore) PutRent(ctx context.Context, l model.RentListing) error {
	if s.armed {
		return errInjected
	}
	return s.MemoryStore.PutRent(ctx, l)
}

func (s *faultyStore) DeleteRent(ctx context.Context, asset model.AssetID) error {
	if s.armed {
		return errInjected
	}
	return s.MemoryStore.DeleteRent(ctx, asset)
}
