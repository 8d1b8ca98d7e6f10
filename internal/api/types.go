package api

// OpenAuctionRequest is the body of POST /v1/auctions.
type OpenAuctionRequest struct {
	ClassID     uint64 `json:"class_id"`
	TokenID     uint64 `json:"token_id"`
	BasePrice   uint64 `json:"base_price"`
	Delay       uint64 `json:"delay"`        // Seconds before bids open
	BidDuration uint64 `json:"bid_duration"` // Seconds bids stay open
}

// BidRequest is the body of POST /v1/auctions/:class/:token/bids.
type BidRequest struct {
	Price uint64 `json:"price"`
}

// OfferRentalRequest is the body of POST /v1/rentals.
type OfferRentalRequest struct {
	ClassID    uint64 `json:"class_id"`
	TokenID    uint64 `json:"token_id"`
	Duration   uint64 `json:"duration"`
	Collateral uint64 `json:"collateral"`
	Price      uint64 `json:"price"`
}

// SellListing is the wire form of an auction.
type SellListing struct {
	ClassID      uint64 `json:"class_id"`
	TokenID      uint64 `json:"token_id"`
	Seller       string `json:"seller"`
	CurrentPrice uint64 `json:"current_price"`
	State        string `json:"state"`
	Winner       string `json:"winner,omitempty"`
	StartTime    uint64 `json:"start_time"`
	EndTime      uint64 `json:"end_time"`
}

// RentListing is the wire form of a rental offer.
type RentListing struct {
	ClassID    uint64 `json:"class_id"`
	TokenID    uint64 `json:"token_id"`
	Leaser     string `json:"leaser"`
	State      string `json:"state"`
	Renter     string `json:"renter,omitempty"`
	Collateral uint64 `json:"collateral"`
	Price      uint64 `json:"price"`
	StartTime  uint64 `json:"start_time,omitempty"`
	Duration   uint64 `json:"duration"`
	Deadline   uint64 `json:"deadline,omitempty"` // Set once rented
}

// AuctionsResponse from GET /v1/auctions
type AuctionsResponse struct {
	Auctions []SellListing `json:"auctions"`
}

// RentalsResponse from GET /v1/rentals
type RentalsResponse struct {
	Rentals []RentListing `json:"rentals"`
}

// CustodianResponse from GET /v1/custodian
type CustodianResponse struct {
	CustodianID string `json:"custodian_id"`
	Account     string `json:"account"`
}

// HealthResponse from GET /health
type HealthResponse struct {
	Status   string `json:"status"`
	Instance string `json:"instance"`
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Uptime   string `json:"uptime"`
}

// StatusResponse acknowledges a call with no listing to return.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every 4xx and 5xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Asset names one token.
type Asset struct {
	ClassID uint64 `json:"class_id"`
	TokenID uint64 `json:"token_id"`
}

// Class is the wire form of an asset class. Metadata is base64 in JSON.
type Class struct {
	ClassID       uint64 `json:"class_id"`
	Owner         string `json:"owner"`
	TotalIssuance uint64 `json:"total_issuance"`
	Metadata      []byte `json:"metadata,omitempty"`
}

// CreateClassRequest is the body of POST /v1/classes.
type CreateClassRequest struct {
	Metadata []byte `json:"metadata,omitempty"`
}

// MintRequest is the body of POST /v1/classes/:class/tokens. An empty
// owner mints to the caller.
type MintRequest struct {
	Owner    string `json:"owner,omitempty"`
	Metadata []byte `json:"metadata,omitempty"`
}

// BalanceResponse from GET /v1/accounts/:account/balance
type BalanceResponse struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

// TokensResponse from GET /v1/accounts/:account/tokens
type TokensResponse struct {
	Account string  `json:"account"`
	Tokens  []Asset `json:"tokens"`
}

// SupplyResponse from GET /v1/supply
type SupplyResponse struct {
	TotalSupply uint64 `json:"total_supply"`
}
