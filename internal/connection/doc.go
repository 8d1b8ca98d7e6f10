// Package connection implements the WebSocket event feed.
//
// The FeedServer:
//   - Upgrades GET /v1/stream requests and subscribes each connection to
//     the router with a kind/asset filter taken from the query string
//   - Writes one JSON frame per event, pinging idle peers
//   - Unsubscribes when the peer goes away or the router stops
//
// The Client dials a feed and hands frames to the caller with a local
// receive timestamp.
package connection
