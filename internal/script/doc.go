// Package script owns the embedded scripting host contract.
//
// Ownership boundary:
// - engine/environment/object interfaces implemented by backends
//
// - backend registration by file extension
//
// - the RemoteCallable capability hosts invoke
//
// Backends live in subpackages (starscript, luascript) and register
// themselves from init.
package script
