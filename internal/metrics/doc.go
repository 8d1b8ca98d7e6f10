// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - HTTP request counts and latencies
//   - Engine operation outcomes by error code
//   - Listing census by kind and state
//   - Router fan-out and subscriber buffer drops
//   - Event journal writer inserts, conflicts and errors
//   - Live feed connections
package metrics
