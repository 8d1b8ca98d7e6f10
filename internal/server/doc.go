// Package server exposes the marketplace engine over HTTP.
//
// Mutating routes require a bearer token whose subject is the calling
// account. Every engine call goes through a single serialized Market, so
// requests observe one total order of operations. Errors are returned as
// {"error": message, "code": code} with a status chosen by error category.
package server
