package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/escrow-market/internal/model"
)

// ListingStore persists listings in PostgreSQL. It implements
// market.ListingStore.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore creates a store on pool.
func NewListingStore(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// sellRow is a sell_listings row in its text encoding.
type sellRow struct {
	ClassID      string
	TokenID      string
	Seller       string
	CurrentPrice string
	Winner       *string
	StartTime    string
	EndTime      string
}

func sellRowFromModel(l model.SellListing) sellRow {
	r := sellRow{
		ClassID:      numeric(l.Asset.Class),
		TokenID:      numeric(l.Asset.Token),
		Seller:       l.Seller.String(),
		CurrentPrice: numeric(l.CurrentPrice),
		StartTime:    numeric(l.StartTime),
		EndTime:      numeric(l.EndTime),
	}
	if l.HasBid() {
		r.Winner = nullableAccount(l.Winner)
	}
	return r
}

func (r sellRow) toModel() (model.SellListing, error) {
	var l model.SellListing
	var err error

	if l.Asset.Class, err = parseNumeric("class_id", r.ClassID); err != nil {
		return l, err
	}
	if l.Asset.Token, err = parseNumeric("token_id", r.TokenID); err != nil {
		return l, err
	}
	if l.Seller, err = parseAccount("seller", r.Seller); err != nil {
		return l, err
	}
	if l.CurrentPrice, err = parseNumeric("current_price", r.CurrentPrice); err != nil {
		return l, err
	}
	if l.Winner, err = parseNullableAccount("winner", r.Winner); err != nil {
		return l, err
	}
	if l.StartTime, err = parseNumeric("start_time", r.StartTime); err != nil {
		return l, err
	}
	if l.EndTime, err = parseNumeric("end_time", r.EndTime); err != nil {
		return l, err
	}
	if r.Winner != nil {
		l.State = model.BidStateLeading
	}
	return l, nil
}

// rentRow is a rent_listings row in its text encoding.
type rentRow struct {
	ClassID    string
	TokenID    string
	Leaser     string
	Renter     *string
	Collateral string
	Price      string
	StartTime  string
	Duration   string
}

func rentRowFromModel(l model.RentListing) rentRow {
	r := rentRow{
		ClassID:    numeric(l.Asset.Class),
		TokenID:    numeric(l.Asset.Token),
		Leaser:     l.Leaser.String(),
		Collateral: numeric(l.Collateral),
		Price:      numeric(l.Price),
		StartTime:  numeric(l.StartTime),
		Duration:   numeric(l.Duration),
	}
	if l.IsRenting() {
		r.Renter = nullableAccount(l.Renter)
	}
	return r
}

func (r rentRow) toModel() (model.RentListing, error) {
	var l model.RentListing
	var err error

	if l.Asset.Class, err = parseNumeric("class_id", r.ClassID); err != nil {
		return l, err
	}
	if l.Asset.Token, err = parseNumeric("token_id", r.TokenID); err != nil {
		return l, err
	}
	if l.Leaser, err = parseAccount("leaser", r.Leaser); err != nil {
		return l, err
	}
	if l.Renter, err = parseNullableAccount("renter", r.Renter); err != nil {
		return l, err
	}
	if l.Collateral, err = parseNumeric("collateral", r.Collateral); err != nil {
		return l, err
	}
	if l.Price, err = parseNumeric("price", r.Price); err != nil {
		return l, err
	}
	if l.StartTime, err = parseNumeric("start_time", r.StartTime); err != nil {
		return l, err
	}
	if l.Duration, err = parseNumeric("duration", r.Duration); err != nil {
		return l, err
	}
	if r.Renter != nil {
		l.State = model.RentStateRented
	}
	return l, nil
}

const selectSell = `
	SELECT class_id::text, token_id::text, seller::text, current_price::text,
	       winner::text, start_time::text, end_time::text
	FROM sell_listings`

const selectRent = `
	SELECT class_id::text, token_id::text, leaser::text, renter::text,
	       collateral::text, price::text, start_time::text, duration::text
	FROM rent_listings`

func scanSell(row pgx.CollectableRow) (model.SellListing, error) {
	var r sellRow
	if err := row.Scan(&r.ClassID, &r.TokenID, &r.Seller, &r.CurrentPrice, &r.Winner, &r.StartTime, &r.EndTime); err != nil {
		return model.SellListing{}, err
	}
	return r.toModel()
}

func scanRent(row pgx.CollectableRow) (model.RentListing, error) {
	var r rentRow
	if err := row.Scan(&r.ClassID, &r.TokenID, &r.Leaser, &r.Renter, &r.Collateral, &r.Price, &r.StartTime, &r.Duration); err != nil {
		return model.RentListing{}, err
	}
	return r.toModel()
}

// GetSell returns the auction for asset.
func (s *ListingStore) GetSell(ctx context.Context, asset model.AssetID) (model.SellListing, bool, error) {
	rows, err := s.pool.Query(ctx, selectSell+` WHERE class_id = $1::numeric AND token_id = $2::numeric`,
		numeric(asset.Class), numeric(asset.Token))
	if err != nil {
		return model.SellListing{}, false, fmt.Errorf("query sell listing: %w", err)
	}
	l, err := pgx.CollectOneRow(rows, scanSell)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SellListing{}, false, nil
	}
	if err != nil {
		return model.SellListing{}, false, fmt.Errorf("scan sell listing: %w", err)
	}
	return l, true, nil
}

// PutSell inserts or replaces an auction.
func (s *ListingStore) PutSell(ctx context.Context, l model.SellListing) error {
	r := sellRowFromModel(l)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sell_listings (class_id, token_id, seller, current_price, winner, start_time, end_time)
		VALUES ($1::numeric, $2::numeric, $3::uuid, $4::numeric, $5::uuid, $6::numeric, $7::numeric)
		ON CONFLICT (class_id, token_id) DO UPDATE SET
			seller = EXCLUDED.seller,
			current_price = EXCLUDED.current_price,
			winner = EXCLUDED.winner,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time`,
		r.ClassID, r.TokenID, r.Seller, r.CurrentPrice, r.Winner, r.StartTime, r.EndTime,
	)
	if err != nil {
		return fmt.Errorf("upsert sell listing: %w", err)
	}
	return nil
}

// DeleteSell removes the auction for asset.
func (s *ListingStore) DeleteSell(ctx context.Context, asset model.AssetID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sell_listings WHERE class_id = $1::numeric AND token_id = $2::numeric`,
		numeric(asset.Class), numeric(asset.Token))
	if err != nil {
		return fmt.Errorf("delete sell listing: %w", err)
	}
	return nil
}

// ListSell returns all auctions ordered by asset.
func (s *ListingStore) ListSell(ctx context.Context) ([]model.SellListing, error) {
	rows, err := s.pool.Query(ctx, selectSell+` ORDER BY class_id, token_id`)
	if err != nil {
		return nil, fmt.Errorf("query sell listings: %w", err)
	}
	listings, err := pgx.CollectRows(rows, scanSell)
	if err != nil {
		return nil, fmt.Errorf("scan sell listings: %w", err)
	}
	return listings, nil
}

// GetRent returns the rental offer for asset.
func (s *ListingStore) GetRent(ctx context.Context, asset model.AssetID) (model.RentListing, bool, error) {
	rows, err := s.pool.Query(ctx, selectRent+` WHERE class_id = $1::numeric AND token_id = $2::numeric`,
		numeric(asset.Class), numeric(asset.Token))
	if err != nil {
		return model.RentListing{}, false, fmt.Errorf("query rent listing: %w", err)
	}
	l, err := pgx.CollectOneRow(rows, scanRent)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RentListing{}, false, nil
	}
	if err != nil {
		return model.RentListing{}, false, fmt.Errorf("scan rent listing: %w", err)
	}
	return l, true, nil
}

// PutRent inserts or replaces a rental offer.
func (s *ListingStore) PutRent(ctx context.Context, l model.RentListing) error {
	r := rentRowFromModel(l)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rent_listings (class_id, token_id, leaser, renter, collateral, price, start_time, duration)
		VALUES ($1::numeric, $2::numeric, $3::uuid, $4::uuid, $5::numeric, $6::numeric, $7::numeric, $8::numeric)
		ON CONFLICT (class_id, token_id) DO UPDATE SET
			leaser = EXCLUDED.leaser,
			renter = EXCLUDED.renter,
			collateral = EXCLUDED.collateral,
			price = EXCLUDED.price,
			start_time = EXCLUDED.start_time,
			duration = EXCLUDED.duration`,
		r.ClassID, r.TokenID, r.Leaser, r.Renter, r.Collateral, r.Price, r.StartTime, r.Duration,
	)
	if err != nil {
		return fmt.Errorf("upsert rent listing: %w", err)
	}
	return nil
}

// DeleteRent removes the rental offer for asset.
func (s *ListingStore) DeleteRent(ctx context.Context, asset model.AssetID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM rent_listings WHERE class_id = $1::numeric AND token_id = $2::numeric`,
		numeric(asset.Class), numeric(asset.Token))
	if err != nil {
		return fmt.Errorf("delete rent listing: %w", err)
	}
	return nil
}

// ListRent returns all rental offers ordered by asset.
func (s *ListingStore) ListRent(ctx context.Context) ([]model.RentListing, error) {
	rows, err := s.pool.Query(ctx, selectRent+` ORDER BY class_id, token_id`)
	if err != nil {
		return nil, fmt.Errorf("query rent listings: %w", err)
	}
	listings, err := pgx.CollectRows(rows, scanRent)
	if err != nil {
		return nil, fmt.Errorf("scan rent listings: %w", err)
	}
	return listings, nil
}
