// Package api defines the marketplace HTTP wire types and a REST client.
//
// Endpoints (all JSON):
//   - /v1/auctions: open, bid, claim, cancel and read English auctions
//   - /v1/rentals: offer, rent, repay, liquidate, cancel and read rentals
//   - /v1/custodian: the escrow account
//   - /health
//
// Mutating calls need a bearer token whose subject is the caller's account.
// Reads are public. Only GETs are retried.
package api
