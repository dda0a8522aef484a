// Package calls owns the named functions a call server exposes.
//
// Ownership boundary:
// - call registration and lookup
//
// - arity checks
//
// - builtin demo calls (hello, goodbye, add, echo)
package calls
