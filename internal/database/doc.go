// Package database provides the PostgreSQL storage backend.
//
// One database holds all marketplace state:
//   - sell_listings, rent_listings: live listings (market.ListingStore)
//   - balances: fungible balances (market.Ledger)
//   - tokens: asset custody (market.Registry)
//   - market_events: event journal written by internal/writer
//
// Unsigned 64-bit values are stored as NUMERIC(20,0) and travel as decimal
// text, since PostgreSQL has no unsigned integer type.
package database
