package market

import (
	"context"
	"fmt"

	"github.com/rickgao/escrow-market/internal/model"
)

// Offer lists asset for rent. The asset moves into escrow until rented.
func (e *Engine) Offer(ctx context.Context, leaser model.AccountID, asset model.AssetID, duration model.Timestamp, collateral, price model.Amount) error {
	now := e.clock.Now()

	if !e.cfg.Limits.RentPrice.Contains(price) {
		return ErrInvalidRentPrice
	}
	if !e.cfg.Limits.RentDuration.Contains(duration) {
		return ErrInvalidRentDuration
	}
	if !e.cfg.Limits.Collateral.Contains(collateral) {
		return ErrInvalidRentCollateral
	}
	if err := e.checkOwner(ctx, leaser, asset, ErrOnlyOwnerCanOffer); err != nil {
		return err
	}

	tx := newTxn("offer", e.logger)
	if err := tx.transferAsset(ctx, e.registry, leaser, e.custodian, asset); err != nil {
		return tx.rollback(ctx, err)
	}

	listing := model.RentListing{
		Asset:      asset,
		Leaser:     leaser,
		State:      model.RentStateAvailable,
		Collateral: collateral,
		Price:      price,
		Duration:   duration,
	}
	if err := e.store.PutRent(ctx, listing); err != nil {
		return tx.rollback(ctx, fmt.Errorf("store rental %s: %w", asset, err))
	}

	e.emit(EventOffered, leaser, asset, price, model.ZeroAccount, now)
	return nil
}

// CancelOffer withdraws an unrented offer and returns the asset.
func (e *Engine) CancelOffer(ctx context.Context, leaser model.AccountID, asset model.AssetID) error {
	now := e.clock.Now()

	listing, err := e.RentListing(ctx, asset)
	if err != nil {
		return err
	}
	if listing.IsRenting() {
		return ErrItemIsRenting
	}
	if listing.Leaser != leaser {
		return ErrOnlyOwnerCanCancelRent
	}

	tx := newTxn("cancel_offer", e.logger)
	if err := tx.transferAsset(ctx, e.registry, e.custodian, leaser, asset); err != nil {
		return tx.rollback(ctx, err)
	}
	if err := e.store.DeleteRent(ctx, asset); err != nil {
		return tx.rollback(ctx, fmt.Errorf("delete rental %s: %w", asset, err))
	}

	e.emit(EventRentCanceled, leaser, asset, 0, model.ZeroAccount, now)
	return nil
}

// Rent takes an offer. The renter escrows the collateral, pays the price to
// the leaser and receives the asset. All three transfers happen or none do.
func (e *Engine) Rent(ctx context.Context, renter model.AccountID, asset model.AssetID) error {
	now := e.clock.Now()

	listing, err := e.RentListing(ctx, asset)
	if err != nil {
		return err
	}
	if listing.IsRenting() {
		return ErrItemIsRenting
	}
	if listing.Leaser == renter {
		return ErrRenterMustNotBeLeaser
	}

	tx := newTxn("rent", e.logger)
	if err := tx.transferFunds(ctx, e.ledger, renter, e.custodian, listing.Collateral); err != nil {
		return tx.rollback(ctx, err)
	}
	if err := tx.transferFunds(ctx, e.ledger, renter, listing.Leaser, listing.Price); err != nil {
		return tx.rollback(ctx, err)
	}
	if err := tx.transferAsset(ctx, e.registry, e.custodian, renter, asset); err != nil {
		return tx.rollback(ctx, err)
	}

	listing.State = model.RentStateRented
	listing.Renter = renter
	listing.StartTime = now
	if err := e.store.PutRent(ctx, listing); err != nil {
		return tx.rollback(ctx, fmt.Errorf("store rental %s: %w", asset, err))
	}

	e.emit(EventRented, renter, asset, listing.Price, listing.Leaser, now)
	return nil
}

// Repay returns the asset to the leaser within the term and refunds the
// collateral. The listing is removed; the leaser must Offer again to relist.
func (e *Engine) Repay(ctx context.Context, renter model.AccountID, asset model.AssetID) error {
	now := e.clock.Now()

	listing, err := e.RentListing(ctx, asset)
	if err != nil {
		return err
	}
	if !listing.IsRenting() {
		return ErrItemIsNotRenting
	}
	if listing.Renter != renter {
		return ErrOnlyRenterCanRepay
	}
	if listing.Expired(now) {
		return ErrRentIsExpired
	}

	tx := newTxn("repay", e.logger)
	if err := tx.transferAsset(ctx, e.registry, renter, listing.Leaser, asset); err != nil {
		return tx.rollback(ctx, err)
	}
	if err := tx.transferFunds(ctx, e.ledger, e.custodian, renter, listing.Collateral); err != nil {
		return tx.rollback(ctx, err)
	}
	if err := e.store.DeleteRent(ctx, asset); err != nil {
		return tx.rollback(ctx, fmt.Errorf("delete rental %s: %w", asset, err))
	}

	e.emit(EventRepaid, renter, asset, listing.Collateral, listing.Leaser, now)
	return nil
}

// Liquidate pays the collateral to the leaser after the term has expired
// without repayment. The asset stays with the renter.
func (e *Engine) Liquidate(ctx context.Context, leaser model.AccountID, asset model.AssetID) error {
	now := e.clock.Now()

	listing, err := e.RentListing(ctx, asset)
	if err != nil {
		return err
	}
	if !listing.IsRenting() {
		return ErrItemIsNotRenting
	}
	if listing.Leaser != leaser {
		return ErrOnlyLeaserCanLiquidate
	}
	if !listing.Expired(now) {
		return ErrRentIsNotExpired
	}

	tx := newTxn("liquidate", e.logger)
	if err := tx.transferFunds(ctx, e.ledger, e.custodian, leaser, listing.Collateral); err != nil {
		return tx.rollback(ctx, err)
	}
	if err := e.store.DeleteRent(ctx, asset); err != nil {
		return tx.rollback(ctx, fmt.Errorf("delete rental %s: %w", asset, err))
	}

	e.emit(EventLiquidated, leaser, asset, listing.Collateral, listing.Renter, now)
	return nil
}
