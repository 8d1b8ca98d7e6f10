package market

import (
	"context"
	"testing"

	"github.com/rickgao/escrow-market/internal/model"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	assets := []model.AssetID{{Class: 2, Token: 1}, {Class: 1, Token: 5}, {Class: 1, Token: 2}}
	for _, a := range assets {
		s.PutSell(ctx, model.SellListing{Asset: a, CurrentPrice: a.Token})
		s.PutRent(ctx, model.RentListing{Asset: a, Price: a.Class})
	}

	sells, err := s.ListSell(ctx)
	if err != nil {
		t.Fatalf("ListSell failed: %v", err)
	}
	want := []model.AssetID{{Class: 1, Token: 2}, {Class: 1, Token: 5}, {Class: 2, Token: 1}}
	for i, l := range sells {
		if l.Asset != want[i] {
			t.Errorf("ListSell[%d] = %v, want %v", i, l.Asset, want[i])
		}
	}

	got, ok, _ := s.GetSell(ctx, model.AssetID{Class: 1, Token: 5})
	if !ok || got.CurrentPrice != 5 {
		t.Errorf("GetSell = %+v, %v", got, ok)
	}

	s.DeleteSell(ctx, model.AssetID{Class: 1, Token: 5})
	if _, ok, _ := s.GetSell(ctx, model.AssetID{Class: 1, Token: 5}); ok {
		t.Error("listing present after DeleteSell")
	}
	if err := s.DeleteRent(ctx, model.AssetID{Class: 9, Token: 9}); err != nil {
		t.Errorf("DeleteRent of missing listing: %v", err)
	}

	rents, _ := s.ListRent(ctx)
	if len(rents) != 3 {
		t.Errorf("len(ListRent) = %d, want 3", len(rents))
	}
}
