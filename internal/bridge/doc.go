// Package bridge adapts a scripted client to the host lifecycle.
//
// Start boots a script engine, appends the data search paths, runs the
// client script and constructs its client object. Each Tick then performs
// exactly one remote call through that client and logs the integer result
// when one is returned. Errors are returned to the host unchanged in kind;
// the adapter does not retry or recover.
package bridge
