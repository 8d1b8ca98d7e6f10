package model

import "math"

// -----------------------------------------------------------------------------
// Auction Listings
// -----------------------------------------------------------------------------

// BidState tracks whether an auction has an accepted bid.
type BidState uint8

const (
	BidStateOpen    BidState = iota // No bid accepted yet; seller is the implicit winner
	BidStateLeading                 // Winner holds the highest accepted bid
)

func (s BidState) String() string {
	switch s {
	case BidStateOpen:
		return "open"
	case BidStateLeading:
		return "leading"
	default:
		return "unknown"
	}
}

// SellListing is a live English auction for one asset held in escrow.
type SellListing struct {
	Asset        AssetID
	Seller       AccountID
	CurrentPrice Amount    // Base price until the first bid, then the highest bid
	State        BidState  // BidStateOpen until a bid is accepted
	Winner       AccountID // Zero while State is BidStateOpen
	StartTime    Timestamp // First second bids are accepted
	EndTime      Timestamp // Last second bids are accepted (inclusive)
}

// HasBid reports whether any bid has been accepted.
func (l SellListing) HasBid() bool {
	return l.State == BidStateLeading
}

// CurrentWinner returns the account entitled to claim the asset once the
// auction ends. Before any bid this is the seller.
func (l SellListing) CurrentWinner() AccountID {
	if l.HasBid() {
		return l.Winner
	}
	return l.Seller
}

// InBidWindow reports whether now lies in [StartTime, EndTime].
func (l SellListing) InBidWindow(now Timestamp) bool {
	return l.StartTime <= now && now <= l.EndTime
}

// Ended reports whether the bid window has closed.
func (l SellListing) Ended(now Timestamp) bool {
	return now > l.EndTime
}

// -----------------------------------------------------------------------------
// Rental Listings
// -----------------------------------------------------------------------------

// RentState tracks whether a rental offer has been taken.
type RentState uint8

const (
	RentStateAvailable RentState = iota // Asset held in escrow, waiting for a renter
	RentStateRented                     // Asset held by the renter, collateral in escrow
)

func (s RentState) String() string {
	switch s {
	case RentStateAvailable:
		return "available"
	case RentStateRented:
		return "rented"
	default:
		return "unknown"
	}
}

// RentListing is a collateralized rental offer for one asset.
type RentListing struct {
	Asset      AssetID
	Leaser     AccountID
	State      RentState
	Renter     AccountID // Zero while available
	Collateral Amount    // Held by the custodian while rented
	Price      Amount    // Paid to the leaser up front
	StartTime  Timestamp // Zero while available, Rent time once rented
	Duration   Timestamp // Rental term in seconds
}

// IsRenting reports whether the asset is currently rented out.
func (l RentListing) IsRenting() bool {
	return l.State == RentStateRented
}

// Deadline returns the last second the renter may repay. It saturates at
// math.MaxUint64, so an overflowing term never expires.
func (l RentListing) Deadline() Timestamp {
	if l.Duration > math.MaxUint64-l.StartTime {
		return math.MaxUint64
	}
	return l.StartTime + l.Duration
}

// Expired reports whether the rental term has passed.
func (l RentListing) Expired(now Timestamp) bool {
	return now > l.Deadline()
}
