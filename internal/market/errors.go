package market

import "errors"

// Category groups engine errors by the kind of precondition they report.
type Category uint8

const (
	CategoryValidation    Category = iota + 1 // Argument outside configured bounds
	CategoryAuthorization                     // Caller is not allowed to act on the listing
	CategoryState                             // Listing is missing or in the wrong state
)

func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryAuthorization:
		return "authorization"
	case CategoryState:
		return "state"
	default:
		return "unknown"
	}
}

// Error is an engine precondition failure. Values are package-level
// sentinels compared with errors.Is.
type Error struct {
	Code     string
	Category Category
	msg      string
}

func (e *Error) Error() string {
	return e.msg
}

func newError(code string, category Category, msg string) *Error {
	return &Error{Code: code, Category: category, msg: msg}
}

// Validation errors.
var (
	ErrInvalidBasePrice      = newError("InvalidBasePrice", CategoryValidation, "base price out of range")
	ErrInvalidBidTime        = newError("InvalidBidTime", CategoryValidation, "invalid bid window")
	ErrInvalidRentPrice      = newError("InvalidRentPrice", CategoryValidation, "rent price out of range")
	ErrInvalidRentDuration   = newError("InvalidRentDuration", CategoryValidation, "rent duration out of range")
	ErrInvalidRentCollateral = newError("InvalidRentCollateral", CategoryValidation, "rent collateral out of range")
)

// Authorization errors.
var (
	ErrOnlyOwnerCanSellNFT    = newError("OnlyOwnerCanSellNFT", CategoryAuthorization, "only the asset owner can sell it")
	ErrOnlyOwnerCanOffer      = newError("OnlyOwnerCanOffer", CategoryAuthorization, "only the asset owner can offer it for rent")
	ErrOnlyOwnerCanCancel     = newError("OnlyOwnerCanCancel", CategoryAuthorization, "only the seller can cancel the auction")
	ErrOnlyOwnerCanCancelRent = newError("OnlyOwnerCanCancelRent", CategoryAuthorization, "only the leaser can cancel the offer")
	ErrOwnerCannotBid         = newError("OwnerCannotBid", CategoryAuthorization, "seller cannot bid on own auction")
	ErrOnlyWinnerCanClaim     = newError("OnlyWinnerCanClaim", CategoryAuthorization, "only the current winner can claim")
	ErrOnlyRenterCanRepay     = newError("OnlyRenterCanRepay", CategoryAuthorization, "only the renter can repay")
	ErrOnlyLeaserCanLiquidate = newError("OnlyLeaserCanLiquidate", CategoryAuthorization, "only the leaser can liquidate")
	ErrRenterMustNotBeLeaser  = newError("RenterMustNotBeLeaser", CategoryAuthorization, "leaser cannot rent own asset")
)

// State errors.
var (
	ErrSellItemNotExist = newError("SellItemNotExist", CategoryState, "auction does not exist")
	ErrRentItemNotExist = newError("RentItemNotExist", CategoryState, "rental offer does not exist")
	ErrCannotCancel     = newError("CannotCancel", CategoryState, "auction already has a bid")
	ErrItemIsRenting    = newError("ItemIsRenting", CategoryState, "asset is rented")
	ErrItemIsNotRenting = newError("ItemIsNotRenting", CategoryState, "asset is not rented")
	ErrNotInBidDuration = newError("NotInBidDuration", CategoryState, "outside the bid window")
	ErrTooLowBidPrice   = newError("TooLowBidPrice", CategoryState, "bid must exceed the current price")
	ErrSellIsNotEnded   = newError("SellIsNotEnded", CategoryState, "auction has not ended")
	ErrRentIsExpired    = newError("RentIsExpired", CategoryState, "rental term has expired")
	ErrRentIsNotExpired = newError("RentIsNotExpired", CategoryState, "rental term has not expired")
)

// ErrRollbackFailed is joined to the cause when a compensating action could
// not be applied. State may be inconsistent and needs operator attention.
var ErrRollbackFailed = errors.New("rollback failed")

// AsError returns the engine error wrapped in err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsNotExist reports whether err means the addressed listing is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, ErrSellItemNotExist) || errors.Is(err, ErrRentItemNotExist)
}

// AllErrors returns every engine error sentinel.
func AllErrors() []*Error {
	return []*Error{
		ErrInvalidBasePrice, ErrInvalidBidTime, ErrInvalidRentPrice,
		ErrInvalidRentDuration, ErrInvalidRentCollateral,
		ErrOnlyOwnerCanSellNFT, ErrOnlyOwnerCanOffer, ErrOnlyOwnerCanCancel,
		ErrOnlyOwnerCanCancelRent, ErrOwnerCannotBid, ErrOnlyWinnerCanClaim,
		ErrOnlyRenterCanRepay, ErrOnlyLeaserCanLiquidate, ErrRenterMustNotBeLeaser,
		ErrSellItemNotExist, ErrRentItemNotExist, ErrCannotCancel, ErrItemIsRenting,
		ErrItemIsNotRenting, ErrNotInBidDuration, ErrTooLowBidPrice,
		ErrSellIsNotEnded, ErrRentIsExpired, ErrRentIsNotExpired,
	}
}
