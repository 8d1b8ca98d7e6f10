// Package poller implements the listing census.
//
// The poller:
//   - Samples every sell and rent listing on a fixed interval
//   - Classifies auctions as open, leading or ended and rentals as offered,
//     renting or overdue against the engine clock
//   - Exports the census and any registered component samplers as gauges
package poller
