// Package model defines shared data types used across the escrow marketplace.
//
// Conventions:
//   - Amounts: uint64 units of the fungible ledger's currency
//   - Timestamps: uint64 seconds since Unix epoch
//   - Accounts: UUID-backed opaque identifiers, text encoded
//   - Assets: (class, token) pairs, both uint64
package model
