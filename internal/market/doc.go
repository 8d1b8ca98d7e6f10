// Package market implements the escrow marketplace engine.
//
// The engine:
//   - Runs English auctions (Open, Bid, Cancel, Claim)
//   - Runs collateralized rentals (Offer, Rent, Repay, CancelOffer, Liquidate)
//   - Holds listed assets and rental collateral in a custodian account
//   - Settles payments and custody through the Ledger and Registry capabilities
//   - Emits exactly one Event per successful operation
//
// An Engine is not safe for concurrent use. Callers admit operations one at a
// time; marketd does this with a single mutex in front of every call.
package market
