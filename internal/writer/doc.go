// Package writer persists the marketplace event journal.
//
// The EventWriter drains the router's journal buffer and appends events to
// the market_events table in batches. Inserts are idempotent on the event
// id, so replaying a batch after a partial failure never duplicates rows.
// Numeric columns are NUMERIC(20,0) and are sent as decimal text.
package writer
