package api

import (
	"github.com/rickgao/escrow-market/internal/model"
)

// FromSellListing converts an engine auction to its wire form.
func FromSellListing(l model.SellListing) SellListing {
	out := SellListing{
		ClassID:      l.Asset.Class,
		TokenID:      l.Asset.Token,
		Seller:       l.Seller.String(),
		CurrentPrice: l.CurrentPrice,
		State:        l.State.String(),
		StartTime:    l.StartTime,
		EndTime:      l.EndTime,
	}
	if l.HasBid() {
		out.Winner = l.Winner.String()
	}
	return out
}

// FromRentListing converts an engine rental to its wire form.
func FromRentListing(l model.RentListing) RentListing {
	out := RentListing{
		ClassID:    l.Asset.Class,
		TokenID:    l.Asset.Token,
		Leaser:     l.Leaser.String(),
		State:      l.State.String(),
		Collateral: l.Collateral,
		Price:      l.Price,
		Duration:   l.Duration,
	}
	if l.IsRenting() {
		out.Renter = l.Renter.String()
		out.StartTime = l.StartTime
		out.Deadline = l.Deadline()
	}
	return out
}

// Asset returns the listing's asset id.
func (l SellListing) Asset() model.AssetID {
	return model.AssetID{Class: l.ClassID, Token: l.TokenID}
}

// Asset returns the listing's asset id.
func (l RentListing) Asset() model.AssetID {
	return model.AssetID{Class: l.ClassID, Token: l.TokenID}
}

// FromAsset converts an asset id to its wire form.
func FromAsset(a model.AssetID) Asset {
	return Asset{ClassID: a.Class, TokenID: a.Token}
}

// Asset returns the asset id.
func (a Asset) Asset() model.AssetID {
	return model.AssetID{Class: a.ClassID, Token: a.TokenID}
}
