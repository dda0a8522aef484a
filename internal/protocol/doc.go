// Package protocol owns the call wire contract and parsing primitives.
//
// Ownership boundary:
// - length-prefixed frame primitives
// - msgpack request/response bodies
// - transport session defaults
package protocol
