package market

import (
	"context"
	"fmt"

	"github.com/rickgao/escrow-market/internal/model"
)

// Open puts asset up for auction. Bidding starts delay seconds from now and
// lasts bidDuration seconds. The asset moves into escrow.
func (e *Engine) Open(ctx context.Context, seller model.AccountID, asset model.AssetID, basePrice model.Amount, delay, bidDuration model.Timestamp) error {
	now := e.clock.Now()

	if !e.cfg.Limits.BasePrice.Contains(basePrice) {
		return ErrInvalidBasePrice
	}
	start, ok := addTime(now, delay)
	if !ok {
		return ErrInvalidBidTime
	}
	end, ok := addTime(start, bidDuration)
	if !ok || start >= end || !e.cfg.Limits.BidDuration.Contains(bidDuration) {
		return ErrInvalidBidTime
	}
	if err := e.checkOwner(ctx, seller, asset, ErrOnlyOwnerCanSellNFT); err != nil {
		return err
	}

	tx := newTxn("open", e.logger)
	if err := tx.transferAsset(ctx, e.registry, seller, e.custodian, asset); err != nil {
		return tx.rollback(ctx, err)
	}

	listing := model.SellListing{
		Asset:        asset,
		Seller:       seller,
		CurrentPrice: basePrice,
		State:        model.BidStateOpen,
		StartTime:    start,
		EndTime:      end,
	}
	if err := e.store.PutSell(ctx, listing); err != nil {
		return tx.rollback(ctx, fmt.Errorf("store auction %s: %w", asset, err))
	}

	e.emit(EventOpened, seller, asset, basePrice, model.ZeroAccount, now)
	return nil
}

// Cancel withdraws an auction that has no bids and returns the asset.
func (e *Engine) Cancel(ctx context.Context, seller model.AccountID, asset model.AssetID) error {
	now := e.clock.Now()

	listing, err := e.SellListing(ctx, asset)
	if err != nil {
		return err
	}
	if listing.Seller != seller {
		return ErrOnlyOwnerCanCancel
	}
	if listing.HasBid() {
		return ErrCannotCancel
	}

	tx := newTxn("cancel", e.logger)
	if err := tx.transferAsset(ctx, e.registry, e.custodian, seller, asset); err != nil {
		return tx.rollback(ctx, err)
	}
	if err := e.store.DeleteSell(ctx, asset); err != nil {
		return tx.rollback(ctx, fmt.Errorf("delete auction %s: %w", asset, err))
	}

	e.emit(EventCanceled, seller, asset, 0, model.ZeroAccount, now)
	return nil
}

// Bid raises the auction price to price.
//
// The bidder pays the increment to the seller and, unless already leading,
// refunds the current price to the previous winner. Before the first bid the
// previous winner is the seller, so the seller's proceeds always equal the
// highest bid.
func (e *Engine) Bid(ctx context.Context, bidder model.AccountID, asset model.AssetID, price model.Amount) error {
	now := e.clock.Now()

	listing, err := e.SellListing(ctx, asset)
	if err != nil {
		return err
	}
	if listing.Seller == bidder {
		return ErrOwnerCannotBid
	}
	if !listing.InBidWindow(now) {
		return ErrNotInBidDuration
	}
	if price <= listing.CurrentPrice {
		return ErrTooLowBidPrice
	}

	previous := listing.CurrentWinner()

	tx := newTxn("bid", e.logger)
	if err := tx.transferFunds(ctx, e.ledger, bidder, listing.Seller, price-listing.CurrentPrice); err != nil {
		return tx.rollback(ctx, err)
	}
	if bidder != previous {
		if err := tx.transferFunds(ctx, e.ledger, bidder, previous, listing.CurrentPrice); err != nil {
			return tx.rollback(ctx, err)
		}
	}

	listing.State = model.BidStateLeading
	listing.Winner = bidder
	listing.CurrentPrice = price
	if err := e.store.PutSell(ctx, listing); err != nil {
		return tx.rollback(ctx, fmt.Errorf("store auction %s: %w", asset, err))
	}

	e.emit(EventBid, bidder, asset, price, previous, now)
	return nil
}

// Claim ends the auction and delivers the asset to the current winner.
// With no bids the seller is the winner and reclaims the asset.
func (e *Engine) Claim(ctx context.Context, winner model.AccountID, asset model.AssetID) error {
	now := e.clock.Now()

	listing, err := e.SellListing(ctx, asset)
	if err != nil {
		return err
	}
	if listing.CurrentWinner() != winner {
		return ErrOnlyWinnerCanClaim
	}
	if !listing.Ended(now) {
		return ErrSellIsNotEnded
	}

	tx := newTxn("claim", e.logger)
	if err := tx.transferAsset(ctx, e.registry, e.custodian, winner, asset); err != nil {
		return tx.rollback(ctx, err)
	}
	if err := e.store.DeleteSell(ctx, asset); err != nil {
		return tx.rollback(ctx, fmt.Errorf("delete auction %s: %w", asset, err))
	}

	e.emit(EventClosed, winner, asset, listing.CurrentPrice, listing.Seller, now)
	return nil
}
