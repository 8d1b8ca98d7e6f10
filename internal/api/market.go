package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rickgao/escrow-market/internal/model"
)

func auctionPath(asset model.AssetID) string {
	return fmt.Sprintf("/v1/auctions/%d/%d", asset.Class, asset.Token)
}

func rentalPath(asset model.AssetID) string {
	return fmt.Sprintf("/v1/rentals/%d/%d", asset.Class, asset.Token)
}

// -----------------------------------------------------------------------------
// Auctions
// -----------------------------------------------------------------------------

// OpenAuction escrows the asset and lists it for auction.
func (c *Client) OpenAuction(ctx context.Context, req OpenAuctionRequest) (*SellListing, error) {
	var out SellListing
	if err := c.send(ctx, http.MethodPost, "/v1/auctions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Bid places a bid on an auction.
func (c *Client) Bid(ctx context.Context, asset model.AssetID, price uint64) (*SellListing, error) {
	var out SellListing
	if err := c.send(ctx, http.MethodPost, auctionPath(asset)+"/bids", BidRequest{Price: price}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Claim settles an ended auction.
func (c *Client) Claim(ctx context.Context, asset model.AssetID) error {
	return c.send(ctx, http.MethodPost, auctionPath(asset)+"/claim", nil, nil)
}

// CancelAuction withdraws an auction that has no bids.
func (c *Client) CancelAuction(ctx context.Context, asset model.AssetID) error {
	return c.send(ctx, http.MethodDelete, auctionPath(asset), nil, nil)
}

// Auction fetches one auction.
func (c *Client) Auction(ctx context.Context, asset model.AssetID) (*SellListing, error) {
	var out SellListing
	if err := c.get(ctx, auctionPath(asset), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Auctions lists every live auction.
func (c *Client) Auctions(ctx context.Context) ([]SellListing, error) {
	var out AuctionsResponse
	if err := c.get(ctx, "/v1/auctions", nil, &out); err != nil {
		return nil, err
	}
	return out.Auctions, nil
}

// -----------------------------------------------------------------------------
// Rentals
// -----------------------------------------------------------------------------

// OfferRental escrows the asset and lists it for rent.
func (c *Client) OfferRental(ctx context.Context, req OfferRentalRequest) (*RentListing, error) {
	var out RentListing
	if err := c.send(ctx, http.MethodPost, "/v1/rentals", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rent takes a rental offer.
func (c *Client) Rent(ctx context.Context, asset model.AssetID) (*RentListing, error) {
	var out RentListing
	if err := c.send(ctx, http.MethodPost, rentalPath(asset)+"/rent", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Repay returns a rented asset and recovers the collateral.
func (c *Client) Repay(ctx context.Context, asset model.AssetID) error {
	return c.send(ctx, http.MethodPost, rentalPath(asset)+"/repay", nil, nil)
}

// Liquidate seizes the collateral of an overdue rental.
func (c *Client) Liquidate(ctx context.Context, asset model.AssetID) error {
	return c.send(ctx, http.MethodPost, rentalPath(asset)+"/liquidate", nil, nil)
}

// CancelRental withdraws an untaken rental offer.
func (c *Client) CancelRental(ctx context.Context, asset model.AssetID) error {
	return c.send(ctx, http.MethodDelete, rentalPath(asset), nil, nil)
}

// Rental fetches one rental.
func (c *Client) Rental(ctx context.Context, asset model.AssetID) (*RentListing, error) {
	var out RentListing
	if err := c.get(ctx, rentalPath(asset), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rentals lists every live rental.
func (c *Client) Rentals(ctx context.Context) ([]RentListing, error) {
	var out RentalsResponse
	if err := c.get(ctx, "/v1/rentals", nil, &out); err != nil {
		return nil, err
	}
	return out.Rentals, nil
}

// -----------------------------------------------------------------------------
// Misc
// -----------------------------------------------------------------------------

// Custodian fetches the escrow account.
func (c *Client) Custodian(ctx context.Context) (*CustodianResponse, error) {
	var out CustodianResponse
	if err := c.get(ctx, "/v1/custodian", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health fetches the daemon health summary.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.get(ctx, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
