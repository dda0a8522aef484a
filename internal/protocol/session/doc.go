// Package session owns client transport reliability settings.
//
// Ownership boundary:
// - connect/read/write timeouts
//
// - connect retry backoff
package session
