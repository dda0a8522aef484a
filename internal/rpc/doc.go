// Package rpc owns the call server and its client.
//
// Ownership boundary:
// - TCP accept loop and per-connection readers
//
// - ordered dispatch of requests to the calls registry
//
// - client dial/retry and request/response exchange
//
// Requests from every connection share one queue and are handled in arrival
// order by a single dispatcher; a response always returns on the connection
// its request arrived on.
package rpc
